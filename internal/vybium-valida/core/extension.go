package core

import (
	"fmt"
	"strings"
)

const (
	// ExtensionDegree is the degree of the challenge field over BabyBear.
	ExtensionDegree = 5

	// ExtensionW defines the extension as F[X]/(X^5 - W). X^5 - 2 is
	// irreducible because 2 is not a fifth power modulo the prime.
	ExtensionW uint32 = 2
)

// Ext is an element of the quintic extension, coefficients in ascending
// powers of X.
type Ext [ExtensionDegree]Element

var (
	// ExtZero is the additive identity of the extension
	ExtZero = Ext{}

	// ExtOne is the multiplicative identity of the extension
	ExtOne = Ext{One}
)

// FromBase embeds a base field element.
func FromBase(e Element) Ext {
	return Ext{e}
}

// ExtFromValues builds an extension element from canonical limbs.
func ExtFromValues(values []uint32) (Ext, error) {
	var out Ext
	if len(values) != ExtensionDegree {
		return out, fmt.Errorf("extension element needs %d limbs, got %d", ExtensionDegree, len(values))
	}
	for i, v := range values {
		e, err := NewCanonical(v)
		if err != nil {
			return out, err
		}
		out[i] = e
	}
	return out, nil
}

// Values returns the canonical limbs.
func (a Ext) Values() []uint32 {
	out := make([]uint32, ExtensionDegree)
	for i, e := range a {
		out[i] = e.Value()
	}
	return out
}

// Add returns a + b.
func (a Ext) Add(b Ext) Ext {
	var out Ext
	for i := range out {
		out[i] = a[i].Add(b[i])
	}
	return out
}

// Sub returns a - b.
func (a Ext) Sub(b Ext) Ext {
	var out Ext
	for i := range out {
		out[i] = a[i].Sub(b[i])
	}
	return out
}

// AddBase returns a + b for a base field b.
func (a Ext) AddBase(b Element) Ext {
	a[0] = a[0].Add(b)
	return a
}

// MulBase scales every coefficient by b.
func (a Ext) MulBase(b Element) Ext {
	var out Ext
	for i := range out {
		out[i] = a[i].Mul(b)
	}
	return out
}

// Mul returns a * b reduced by X^5 = W.
func (a Ext) Mul(b Ext) Ext {
	var wide [2*ExtensionDegree - 1]Element
	for i := 0; i < ExtensionDegree; i++ {
		if a[i].IsZero() {
			continue
		}
		for j := 0; j < ExtensionDegree; j++ {
			wide[i+j] = wide[i+j].Add(a[i].Mul(b[j]))
		}
	}

	w := Element{v: ExtensionW}
	var out Ext
	copy(out[:], wide[:ExtensionDegree])
	for i := ExtensionDegree; i < len(wide); i++ {
		out[i-ExtensionDegree] = out[i-ExtensionDegree].Add(wide[i].Mul(w))
	}
	return out
}

// Square returns a * a.
func (a Ext) Square() Ext {
	return a.Mul(a)
}

// Equal reports whether a and b are equal.
func (a Ext) Equal(b Ext) bool {
	return a == b
}

// IsZero reports whether a is zero.
func (a Ext) IsZero() bool {
	return a == ExtZero
}

// String formats a as a polynomial in X.
func (a Ext) String() string {
	parts := make([]string, ExtensionDegree)
	for i, e := range a {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
