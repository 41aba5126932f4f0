package utils

import (
	"encoding/binary"
	"fmt"

	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/core"
)

// Challenger is a Fiat-Shamir transcript built on a duplex Poseidon sponge.
// Observed elements overwrite the rate portion of the state once a full
// rate has been buffered; samples are popped from the squeezed rate.
type Challenger struct {
	perm   *core.Poseidon
	rate   int
	state  []core.Element
	input  []core.Element
	output []core.Element
}

// NewChallenger creates an empty transcript.
func NewChallenger(perm *core.Poseidon, rate int) (*Challenger, error) {
	if perm == nil {
		return nil, fmt.Errorf("challenger permutation cannot be nil")
	}
	if rate <= 0 || rate >= perm.Width() {
		return nil, fmt.Errorf("challenger rate %d must be in (0, %d)", rate, perm.Width())
	}
	return &Challenger{
		perm:   perm,
		rate:   rate,
		state:  make([]core.Element, perm.Width()),
		input:  make([]core.Element, 0, rate),
		output: make([]core.Element, 0, rate),
	}, nil
}

// Clone returns an independent copy of the transcript.
func (c *Challenger) Clone() *Challenger {
	return &Challenger{
		perm:   c.perm,
		rate:   c.rate,
		state:  append([]core.Element(nil), c.state...),
		input:  append(make([]core.Element, 0, c.rate), c.input...),
		output: append(make([]core.Element, 0, c.rate), c.output...),
	}
}

// Observe absorbs one field element.
func (c *Challenger) Observe(e core.Element) {
	// Any pending output is stale once new input arrives
	c.output = c.output[:0]

	c.input = append(c.input, e)
	if len(c.input) == c.rate {
		c.duplex()
	}
}

// ObserveSlice absorbs elements in order.
func (c *Challenger) ObserveSlice(elems []core.Element) {
	for _, e := range elems {
		c.Observe(e)
	}
}

// ObserveUint32 absorbs a machine word as two 16-bit limbs so that every
// word maps to a distinct pair of field elements.
func (c *Challenger) ObserveUint32(v uint32) {
	c.Observe(core.New(uint64(v & 0xffff)))
	c.Observe(core.New(uint64(v >> 16)))
}

// ObserveDigest absorbs a Merkle root as eight little-endian words.
func (c *Challenger) ObserveDigest(d core.Digest) {
	for i := 0; i < core.DigestSize; i += 4 {
		c.Observe(core.New(uint64(binary.LittleEndian.Uint32(d[i:]))))
	}
}

// ObserveExt absorbs the limbs of an extension element.
func (c *Challenger) ObserveExt(e core.Ext) {
	for _, limb := range e {
		c.Observe(limb)
	}
}

// Sample squeezes one field element.
func (c *Challenger) Sample() core.Element {
	if len(c.input) > 0 || len(c.output) == 0 {
		c.duplex()
	}
	last := len(c.output) - 1
	e := c.output[last]
	c.output = c.output[:last]
	return e
}

// SampleExt squeezes an extension element, lowest limb first.
func (c *Challenger) SampleExt() core.Ext {
	var out core.Ext
	for i := range out {
		out[i] = c.Sample()
	}
	return out
}

// SampleBits returns the low bits of one sampled element.
func (c *Challenger) SampleBits(bits int) int {
	return int(c.Sample().Value() & (1<<uint(bits) - 1))
}

// CheckWitness absorbs a proof-of-work witness and reports whether the next
// bits sampled bits are all zero.
func (c *Challenger) CheckWitness(bits int, witness core.Element) bool {
	c.Observe(witness)
	return c.SampleBits(bits) == 0
}

// Grind searches for a proof-of-work witness, leaving the transcript in the
// state CheckWitness would leave it in.
func (c *Challenger) Grind(bits int) (core.Element, error) {
	for w := uint64(0); w < uint64(core.Modulus); w++ {
		witness := core.New(w)
		if c.Clone().CheckWitness(bits, witness) {
			c.CheckWitness(bits, witness)
			return witness, nil
		}
	}
	return core.Zero, fmt.Errorf("no proof of work witness for %d bits", bits)
}

func (c *Challenger) duplex() {
	copy(c.state, c.input)
	c.input = c.input[:0]

	c.perm.Permute(c.state)

	c.output = append(c.output[:0], c.state[:c.rate]...)
}
