package protocols

import (
	"testing"

	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/core"
	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/utils"
)

func randomExt(rng *utils.SeededRNG) core.Ext {
	var e core.Ext
	copy(e[:], rng.FieldElements(core.ExtensionDegree))
	return e
}

// codewordOf evaluates a polynomial with extension coefficients over domain
func codewordOf(coeffs []core.Ext, domain ArithmeticDomain) []core.Ext {
	out := make([]core.Ext, domain.Length)
	for i := range out {
		x := domain.Element(i)
		acc := core.ExtZero
		for k := len(coeffs) - 1; k >= 0; k-- {
			acc = acc.MulBase(x).Add(coeffs[k])
		}
		out[i] = acc
	}
	return out
}

// TestFoldCodewordReducesDegree tests that a rate-1/2 codeword folds down to
// a constant
func TestFoldCodewordReducesDegree(t *testing.T) {
	rng := utils.NewSeededRNG("fold test")

	for _, logN := range []int{2, 3, 6} {
		lde, err := NewArithmeticDomain(logN)
		if err != nil {
			t.Fatal(err)
		}
		domain := lde.WithOffset(core.Generator)

		coeffs := make([]core.Ext, domain.Length/2)
		for i := range coeffs {
			coeffs[i] = randomExt(rng)
		}
		codeword := codewordOf(coeffs, domain)

		for len(codeword) > 2 {
			codeword, err = FoldCodeword(codeword, domain, randomExt(rng))
			if err != nil {
				t.Fatalf("FoldCodeword failed: %v", err)
			}
			domain = domain.Halve()
		}
		if !codeword[0].Equal(codeword[1]) {
			t.Errorf("log n = %d: folded to %s and %s, want a constant", logN, codeword[0], codeword[1])
		}
	}
}

// TestFoldCodewordDetectsHighDegree tests that a full-degree codeword does
// not fold to a constant
func TestFoldCodewordDetectsHighDegree(t *testing.T) {
	rng := utils.NewSeededRNG("high degree")
	lde, err := NewArithmeticDomain(4)
	if err != nil {
		t.Fatal(err)
	}
	domain := lde.WithOffset(core.Generator)

	coeffs := make([]core.Ext, domain.Length)
	for i := range coeffs {
		coeffs[i] = randomExt(rng)
	}
	codeword := codewordOf(coeffs, domain)
	for len(codeword) > 2 {
		codeword, err = FoldCodeword(codeword, domain, randomExt(rng))
		if err != nil {
			t.Fatal(err)
		}
		domain = domain.Halve()
	}
	if codeword[0].Equal(codeword[1]) {
		t.Error("full-degree codeword folded to a constant")
	}
}

// TestFoldPairMatchesCodeword tests the verifier's fold against the prover's
func TestFoldPairMatchesCodeword(t *testing.T) {
	rng := utils.NewSeededRNG("fold pair")
	lde, err := NewArithmeticDomain(5)
	if err != nil {
		t.Fatal(err)
	}
	domain := lde.WithOffset(core.Generator)

	codeword := make([]core.Ext, domain.Length)
	for i := range codeword {
		codeword[i] = randomExt(rng)
	}
	beta := randomExt(rng)

	folded, err := FoldCodeword(codeword, domain, beta)
	if err != nil {
		t.Fatal(err)
	}
	half := domain.Length / 2
	for j := range folded {
		x := domain.Element(j)
		if !domain.Element(j + half).Equal(x.Neg()) {
			t.Fatalf("point %d and %d are not negations", j, j+half)
		}
		want, err := FoldPair(codeword[j], codeword[j+half], x, beta)
		if err != nil {
			t.Fatal(err)
		}
		if !folded[j].Equal(want) {
			t.Errorf("index %d: FoldCodeword = %s, FoldPair = %s", j, folded[j], want)
		}
	}

	if _, err := FoldPair(codeword[0], codeword[1], core.Zero, beta); err == nil {
		t.Error("expected error folding at zero")
	}
	if _, err := FoldCodeword(codeword[:3], domain, beta); err == nil {
		t.Error("expected error for a length mismatch")
	}
}

// TestCommitCodeword tests that folding leaves pair opposite points
func TestCommitCodeword(t *testing.T) {
	rng := utils.NewSeededRNG("commit")
	codeword := make([]core.Ext, 8)
	for i := range codeword {
		codeword[i] = randomExt(rng)
	}

	tree, err := CommitCodeword(codeword)
	if err != nil {
		t.Fatal(err)
	}
	if tree.Height() != 4 {
		t.Fatalf("tree has %d leaves, want 4", tree.Height())
	}

	leaf, path, err := tree.Open(1)
	if err != nil {
		t.Fatal(err)
	}
	lo, hi, err := SplitPairLeaf(leaf)
	if err != nil {
		t.Fatal(err)
	}
	if !lo.Equal(codeword[1]) || !hi.Equal(codeword[5]) {
		t.Error("leaf 1 does not hold positions 1 and 5")
	}
	if err := core.VerifyMerklePath(tree.Root(), 1, 4, leaf, path); err != nil {
		t.Errorf("VerifyMerklePath failed: %v", err)
	}

	if _, err := CommitCodeword(codeword[:1]); err == nil {
		t.Error("expected error for a single-element codeword")
	}
	if _, _, err := SplitPairLeaf(leaf[:9]); err == nil {
		t.Error("expected error for a short leaf")
	}
}

// TestTraceDomains tests domain construction and zerofiers
func TestTraceDomains(t *testing.T) {
	td, err := NewTraceDomains(3, utils.FRILogBlowup)
	if err != nil {
		t.Fatal(err)
	}
	if td.Trace.Length != 8 || td.LDE.Length != 16 {
		t.Fatalf("lengths %d and %d, want 8 and 16", td.Trace.Length, td.LDE.Length)
	}
	if td.NextRowOffset() != 2 {
		t.Errorf("NextRowOffset = %d, want 2", td.NextRowOffset())
	}

	// The successor of an LDE point under the trace generator
	x := td.LDE.Element(5)
	if !x.Mul(td.Trace.Generator).Equal(td.LDE.Element(7)) {
		t.Error("trace generator does not step two LDE points")
	}

	// No LDE point lies on the trace subgroup
	for i := 0; i < td.LDE.Length; i++ {
		if _, err := td.ZerofiersAt(td.LDE.Element(i)); err != nil {
			t.Fatalf("LDE point %d: %v", i, err)
		}
	}
	if _, err := td.ZerofiersAt(td.Trace.Element(3)); err == nil {
		t.Error("expected error on a trace point")
	}

	for _, bits := range []int{MinDegreeBits - 1, MaxDegreeBits + 1} {
		if _, err := NewTraceDomains(bits, utils.FRILogBlowup); err == nil {
			t.Errorf("NewTraceDomains(%d): expected error", bits)
		}
	}
}

func BenchmarkFoldCodeword(b *testing.B) {
	rng := utils.NewSeededRNG("bench")
	lde, _ := NewArithmeticDomain(12)
	domain := lde.WithOffset(core.Generator)
	codeword := make([]core.Ext, domain.Length)
	for i := range codeword {
		codeword[i] = randomExt(rng)
	}
	beta := randomExt(rng)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := FoldCodeword(codeword, domain, beta); err != nil {
			b.Fatal(err)
		}
	}
}
