package protocols

import (
	"fmt"

	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/core"
)

// invTwo is the inverse of 2 in the base field
var invTwo = core.New((uint64(core.Modulus) + 1) / 2)

// FoldPair folds the evaluations of f at x and -x into the evaluation of
//
//	f'(x^2) = (f(x) + f(-x))/2 + beta * (f(x) - f(-x))/(2x)
//
// which halves the degree of f.
func FoldPair(lo, hi core.Ext, x core.Element, beta core.Ext) (core.Ext, error) {
	invX, err := x.Inverse()
	if err != nil {
		return core.ExtZero, fmt.Errorf("cannot fold at zero")
	}
	return foldWithInverse(lo, hi, invX, beta), nil
}

func foldWithInverse(lo, hi core.Ext, invX core.Element, beta core.Ext) core.Ext {
	even := lo.Add(hi).MulBase(invTwo)
	odd := lo.Sub(hi).MulBase(invTwo.Mul(invX))
	return even.Add(beta.Mul(odd))
}

// FoldCodeword folds a codeword over domain into a codeword of half the
// length over domain.Halve().
func FoldCodeword(values []core.Ext, domain ArithmeticDomain, beta core.Ext) ([]core.Ext, error) {
	if len(values) != domain.Length || domain.Length < 2 {
		return nil, fmt.Errorf("codeword of length %d does not match domain of length %d", len(values), domain.Length)
	}
	half := domain.Length / 2

	xs := make([]core.Element, half)
	x := domain.Offset
	for j := range xs {
		xs[j] = x
		x = x.Mul(domain.Generator)
	}
	invXs, err := core.BatchInversion(xs)
	if err != nil {
		return nil, fmt.Errorf("domain contains zero: %w", err)
	}

	folded := make([]core.Ext, half)
	for j := range folded {
		folded[j] = foldWithInverse(values[j], values[j+half], invXs[j], beta)
	}
	return folded, nil
}

// PairLeaf is the committed leaf of a folding layer: f(x) followed by
// f(-x), limb by limb.
func PairLeaf(lo, hi core.Ext) []core.Element {
	leaf := make([]core.Element, 0, 2*core.ExtensionDegree)
	leaf = append(leaf, lo[:]...)
	return append(leaf, hi[:]...)
}

// SplitPairLeaf is the inverse of PairLeaf
func SplitPairLeaf(leaf []core.Element) (lo, hi core.Ext, err error) {
	if len(leaf) != 2*core.ExtensionDegree {
		return lo, hi, fmt.Errorf("folding leaf must have %d elements, got %d", 2*core.ExtensionDegree, len(leaf))
	}
	copy(lo[:], leaf[:core.ExtensionDegree])
	copy(hi[:], leaf[core.ExtensionDegree:])
	return lo, hi, nil
}

// CommitCodeword commits to a folding layer, one leaf per (x, -x) pair
func CommitCodeword(values []core.Ext) (*core.MerkleTree, error) {
	half := len(values) / 2
	if half == 0 {
		return nil, fmt.Errorf("cannot commit a codeword of length %d", len(values))
	}
	leaves := make([][]core.Element, half)
	for j := range leaves {
		leaves[j] = PairLeaf(values[j], values[j+half])
	}
	return core.NewMerkleTree(leaves)
}
