package core

import (
	"fmt"
	"math/bits"
)

// NTT evaluates the polynomial with the given coefficients over the
// subgroup of order len(values), in place. Output index i holds the
// evaluation at omega^i.
func NTT(values []Element) error {
	return transform(values, false)
}

// INTT interpolates evaluations over the subgroup back to coefficients, in
// place.
func INTT(values []Element) error {
	if err := transform(values, true); err != nil {
		return err
	}
	nInv, err := New(uint64(len(values))).Inverse()
	if err != nil {
		return err
	}
	for i := range values {
		values[i] = values[i].Mul(nInv)
	}
	return nil
}

// CosetLDE extends evaluations over the subgroup of order n to the coset
// shift*H of order n<<logBlowup.
func CosetLDE(evals []Element, logBlowup int, shift Element) ([]Element, error) {
	n := len(evals)
	if n == 0 || n&(n-1) != 0 {
		return nil, fmt.Errorf("evaluation count must be a power of two, got %d", n)
	}
	if logBlowup < 0 {
		return nil, fmt.Errorf("negative blowup %d", logBlowup)
	}

	coeffs := make([]Element, n<<uint(logBlowup))
	copy(coeffs, evals)
	if err := INTT(coeffs[:n]); err != nil {
		return nil, fmt.Errorf("failed to interpolate: %w", err)
	}

	// Evaluating p(shift*x) is the same as scaling coefficient k by shift^k
	power := One
	for k := 0; k < n; k++ {
		coeffs[k] = coeffs[k].Mul(power)
		power = power.Mul(shift)
	}

	if err := NTT(coeffs); err != nil {
		return nil, fmt.Errorf("failed to evaluate extension: %w", err)
	}
	return coeffs, nil
}

// EvaluatePolynomial evaluates coefficients at x with Horner's rule.
func EvaluatePolynomial(coeffs []Element, x Element) Element {
	acc := Zero
	for i := len(coeffs) - 1; i >= 0; i-- {
		acc = acc.Mul(x).Add(coeffs[i])
	}
	return acc
}

func transform(values []Element, inverse bool) error {
	n := len(values)
	if n == 0 || n&(n-1) != 0 {
		return fmt.Errorf("transform size must be a power of two, got %d", n)
	}
	logN := bits.TrailingZeros(uint(n))
	if logN > TwoAdicity {
		return fmt.Errorf("transform size 2^%d exceeds two-adicity %d", logN, TwoAdicity)
	}
	if n == 1 {
		return nil
	}

	bitReverse(values, logN)

	for logM := 1; logM <= logN; logM++ {
		m := 1 << uint(logM)
		half := m >> 1
		root, err := PrimitiveRootOfUnity(logM)
		if err != nil {
			return err
		}
		if inverse {
			root, err = root.Inverse()
			if err != nil {
				return err
			}
		}
		twiddles := Powers(root, half)
		for k := 0; k < n; k += m {
			for j := 0; j < half; j++ {
				t := twiddles[j].Mul(values[k+j+half])
				u := values[k+j]
				values[k+j] = u.Add(t)
				values[k+j+half] = u.Sub(t)
			}
		}
	}
	return nil
}

func bitReverse(values []Element, logN int) {
	shift := uint(bits.UintSize - logN)
	for i := range values {
		j := int(bits.Reverse(uint(i)) >> shift)
		if i < j {
			values[i], values[j] = values[j], values[i]
		}
	}
}
