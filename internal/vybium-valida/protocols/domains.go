package protocols

import (
	"fmt"

	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/core"
)

// ArithmeticDomain is a coset of a multiplicative subgroup:
// {Offset * Generator^i : i = 0..Length-1}.
//
// All domains have power-of-2 lengths for efficient NTT operations.
type ArithmeticDomain struct {
	Offset    core.Element
	Generator core.Element
	Length    int
	LogLength int
}

// NewArithmeticDomain creates the subgroup of order 2^logLength
func NewArithmeticDomain(logLength int) (ArithmeticDomain, error) {
	generator, err := core.PrimitiveRootOfUnity(logLength)
	if err != nil {
		return ArithmeticDomain{}, err
	}
	return ArithmeticDomain{
		Offset:    core.One,
		Generator: generator,
		Length:    1 << uint(logLength),
		LogLength: logLength,
	}, nil
}

// WithOffset returns the coset offset*D
func (d ArithmeticDomain) WithOffset(offset core.Element) ArithmeticDomain {
	d.Offset = offset
	return d
}

// Element returns the i-th point of the domain
func (d ArithmeticDomain) Element(i int) core.Element {
	return d.Offset.Mul(d.Generator.Exp(uint64(i)))
}

// Halve returns the domain of squares, which has half the length
func (d ArithmeticDomain) Halve() ArithmeticDomain {
	return ArithmeticDomain{
		Offset:    d.Offset.Square(),
		Generator: d.Generator.Square(),
		Length:    d.Length / 2,
		LogLength: d.LogLength - 1,
	}
}

// TraceDomains bundles the trace subgroup with its low-degree extension.
type TraceDomains struct {
	// Trace is the subgroup H of order n the trace is interpolated over
	Trace ArithmeticDomain

	// LDE is the coset g*H' of order n << logBlowup the trace is committed on
	LDE ArithmeticDomain

	// lastRow is omega_n^(n-1)
	lastRow core.Element
}

// NewTraceDomains creates the domains of a trace with 2^degreeBits rows
func NewTraceDomains(degreeBits, logBlowup int) (*TraceDomains, error) {
	if degreeBits < MinDegreeBits || degreeBits > MaxDegreeBits {
		return nil, fmt.Errorf("degree bits %d out of range [%d, %d]", degreeBits, MinDegreeBits, MaxDegreeBits)
	}
	trace, err := NewArithmeticDomain(degreeBits)
	if err != nil {
		return nil, err
	}
	lde, err := NewArithmeticDomain(degreeBits + logBlowup)
	if err != nil {
		return nil, err
	}
	return &TraceDomains{
		Trace:   trace,
		LDE:     lde.WithOffset(core.Generator),
		lastRow: trace.Generator.Exp(uint64(trace.Length - 1)),
	}, nil
}

// NextRowOffset is how far apart an LDE point and its successor under the
// trace generator lie.
func (td *TraceDomains) NextRowOffset() int {
	return td.LDE.Length / td.Trace.Length
}

// Zerofiers holds the inverted vanishing polynomials at one point.
type Zerofiers struct {
	Transition core.Element // rows 0..n-2
	AllRows    core.Element
	FirstRow   core.Element
	LastRow    core.Element
}

// ZerofiersAt evaluates the inverted vanishing polynomials at x, which must
// lie outside the trace subgroup.
func (td *TraceDomains) ZerofiersAt(x core.Element) (Zerofiers, error) {
	all := x.Exp(uint64(td.Trace.Length)).Sub(core.One)
	first := x.Sub(core.One)
	last := x.Sub(td.lastRow)

	inv, err := core.BatchInversion([]core.Element{all, first, last})
	if err != nil {
		return Zerofiers{}, fmt.Errorf("point %s lies on the trace domain", x)
	}
	return Zerofiers{
		Transition: last.Mul(inv[0]),
		AllRows:    inv[0],
		FirstRow:   inv[1],
		LastRow:    inv[2],
	}, nil
}
