// Package core provides the arithmetic and commitment primitives of the
// Valida proof system: the BabyBear prime field, its quintic extension,
// radix-2 NTTs, the Poseidon permutation and Keccak Merkle trees.
package core

import (
	"fmt"
	"math/bits"
)

const (
	// Modulus is the BabyBear prime 15 * 2^27 + 1.
	Modulus uint32 = 2013265921

	// TwoAdicity is the largest k such that 2^k divides Modulus-1.
	TwoAdicity = 27

	// GeneratorValue generates the full multiplicative group.
	GeneratorValue uint32 = 31
)

// Element is a BabyBear field element kept in canonical form [0, Modulus).
type Element struct {
	v uint32
}

var (
	// Zero is the additive identity
	Zero = Element{}

	// One is the multiplicative identity
	One = Element{v: 1}

	// Generator is the multiplicative generator used for cosets
	Generator = Element{v: GeneratorValue}
)

// New reduces value modulo the field prime.
func New(value uint64) Element {
	return Element{v: uint32(value % uint64(Modulus))}
}

// NewCanonical builds an element from a value that must already be reduced.
func NewCanonical(value uint32) (Element, error) {
	if value >= Modulus {
		return Zero, fmt.Errorf("value %d is not a canonical field element", value)
	}
	return Element{v: value}, nil
}

// Value returns the canonical representative.
func (e Element) Value() uint32 {
	return e.v
}

// Add returns e + o.
func (e Element) Add(o Element) Element {
	s := e.v + o.v
	if s >= Modulus || s < e.v {
		s -= Modulus
	}
	return Element{v: s}
}

// Sub returns e - o.
func (e Element) Sub(o Element) Element {
	if e.v >= o.v {
		return Element{v: e.v - o.v}
	}
	return Element{v: e.v + (Modulus - o.v)}
}

// Neg returns -e.
func (e Element) Neg() Element {
	if e.v == 0 {
		return e
	}
	return Element{v: Modulus - e.v}
}

// Mul returns e * o.
func (e Element) Mul(o Element) Element {
	hi, lo := bits.Mul64(uint64(e.v), uint64(o.v))
	_, rem := bits.Div64(hi, lo, uint64(Modulus))
	return Element{v: uint32(rem)}
}

// Square returns e * e.
func (e Element) Square() Element {
	return e.Mul(e)
}

// Double returns 2e.
func (e Element) Double() Element {
	return e.Add(e)
}

// Exp returns e^power by square and multiply.
func (e Element) Exp(power uint64) Element {
	result := One
	base := e
	for power > 0 {
		if power&1 == 1 {
			result = result.Mul(base)
		}
		base = base.Square()
		power >>= 1
	}
	return result
}

// Inverse returns e^-1 using Fermat's little theorem.
func (e Element) Inverse() (Element, error) {
	if e.v == 0 {
		return Zero, fmt.Errorf("cannot invert zero")
	}
	return e.Exp(uint64(Modulus) - 2), nil
}

// Equal reports whether e and o are the same element.
func (e Element) Equal(o Element) bool {
	return e.v == o.v
}

// IsZero reports whether e is zero.
func (e Element) IsZero() bool {
	return e.v == 0
}

// String formats the canonical value.
func (e Element) String() string {
	return fmt.Sprintf("%d", e.v)
}

// PrimitiveRootOfUnity returns a generator of the subgroup of order 2^logN.
func PrimitiveRootOfUnity(logN int) (Element, error) {
	if logN < 0 || logN > TwoAdicity {
		return Zero, fmt.Errorf("no root of unity of order 2^%d", logN)
	}
	return Generator.Exp(uint64(Modulus-1) >> uint(logN)), nil
}

// Powers returns [1, base, base^2, ..., base^(n-1)].
func Powers(base Element, n int) []Element {
	out := make([]Element, n)
	acc := One
	for i := range out {
		out[i] = acc
		acc = acc.Mul(base)
	}
	return out
}
