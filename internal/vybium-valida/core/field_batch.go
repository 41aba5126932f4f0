package core

import "fmt"

// BatchInversion inverts every element with a single field inversion
// (Montgomery's trick).
//
// Algorithm:
// 1. Compute accumulative products: acc[i] = elements[0] * ... * elements[i]
// 2. Invert the final accumulator
// 3. Back-substitute to compute individual inverses
func BatchInversion(elements []Element) ([]Element, error) {
	n := len(elements)
	if n == 0 {
		return []Element{}, nil
	}

	for i, elem := range elements {
		if elem.IsZero() {
			return nil, fmt.Errorf("cannot invert zero element at index %d", i)
		}
	}

	acc := make([]Element, n)
	acc[0] = elements[0]
	for i := 1; i < n; i++ {
		acc[i] = acc[i-1].Mul(elements[i])
	}

	accInv, err := acc[n-1].Inverse()
	if err != nil {
		return nil, fmt.Errorf("failed to invert accumulator: %w", err)
	}

	// elements[i]^-1 = acc[i-1] * acc[i]^-1
	results := make([]Element, n)
	for i := n - 1; i > 0; i-- {
		results[i] = accInv.Mul(acc[i-1])
		accInv = accInv.Mul(elements[i])
	}
	results[0] = accInv

	return results, nil
}
