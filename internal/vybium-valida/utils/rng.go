package utils

import (
	"math/rand/v2"

	"github.com/dchest/siphash"

	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/core"
)

// SeededRNG is a deterministic PCG stream derived from a string seed. Two
// SipHash-2-4 digests of the seed bytes form the 128-bit PCG state, so equal
// seeds always give equal streams.
type SeededRNG struct {
	pcg *rand.PCG
}

// NewSeededRNG creates a generator for seed.
func NewSeededRNG(seed string) *SeededRNG {
	b := []byte(seed)
	return &SeededRNG{
		pcg: rand.NewPCG(siphash.Hash(0, 0, b), siphash.Hash(0, 1, b)),
	}
}

// Uint64 returns the next 64 bits of the stream.
func (r *SeededRNG) Uint64() uint64 {
	return r.pcg.Uint64()
}

// FieldElement samples a uniform BabyBear element by rejection on the top
// 31 bits of each draw.
func (r *SeededRNG) FieldElement() core.Element {
	for {
		v := uint32(r.pcg.Uint64() >> 33)
		if v < core.Modulus {
			return core.New(uint64(v))
		}
	}
}

// FieldElements samples n elements.
func (r *SeededRNG) FieldElements(n int) []core.Element {
	out := make([]core.Element, n)
	for i := range out {
		out[i] = r.FieldElement()
	}
	return out
}
