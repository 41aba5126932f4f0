// Package protocols provides the STARK proof system for Valida executions,
// from the processor AIR through FRI to the verifier and its matching prover.
package protocols

import (
	"errors"
	"fmt"

	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/core"
	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/utils"
)

// ErrRejected is returned when a well-formed proof fails a cryptographic or
// consistency check.
var ErrRejected = errors.New("proof rejected")

// Verifier verifies machine proofs
//
// Verification follows the prover's transcript:
// 1. Check the public values against the expected statement
// 2. Replay Fiat-Shamir over the trace and folding commitments
// 3. Check the proof of work and derive the query positions
// 4. For every query, open the trace, recompute the composition and follow
// it through the folding layers down to the final value
type Verifier struct {
	config *utils.VerificationConfig
	params STARKParameters
}

// NewVerifier creates a verifier for the given configuration
func NewVerifier(cfg *utils.VerificationConfig) (*Verifier, error) {
	params, err := ParametersFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &Verifier{config: cfg, params: params}, nil
}

func reject(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRejected, fmt.Sprintf(format, args...))
}

// transcript holds the challenges a proof's commitments determine.
type transcript struct {
	composition CompositionChallenges
	betas       []core.Ext
	finalValue  core.Ext
	queries     []int
}

// Verify checks proof against the statement a fresh execution produced.
// It returns nil only if the proof is accepted.
func (v *Verifier) Verify(proof *MachineProof, expected *PublicValues) error {
	if proof == nil || expected == nil {
		return reject("proof and public values are required")
	}
	if !proof.PublicValues.Equal(expected) {
		return reject("public values do not match the execution")
	}

	degreeBits, err := TraceDegreeBits(expected.Cycles)
	if err != nil {
		return reject("%v", err)
	}
	if int(proof.DegreeBits) != degreeBits {
		return reject("trace height 2^%d does not fit %d cycles", proof.DegreeBits, expected.Cycles)
	}
	if err := v.checkShape(proof, degreeBits); err != nil {
		return err
	}

	domains, err := NewTraceDomains(degreeBits, v.params.LogBlowup)
	if err != nil {
		return reject("%v", err)
	}

	tr, err := v.replay(proof, degreeBits, domains.LDE.LogLength)
	if err != nil {
		return err
	}

	traceRoot, _ := core.DigestFromBytes(proof.TraceRoot)
	boundary := NewBoundary(expected)
	for i, idx := range tr.queries {
		if err := v.verifyQuery(idx, &proof.FRI.Queries[i], proof, traceRoot, domains, boundary, tr); err != nil {
			return fmt.Errorf("query %d: %w", i, err)
		}
	}
	return nil
}

// checkShape checks the counts that depend on the trace height and the
// configuration.
func (v *Verifier) checkShape(proof *MachineProof, degreeBits int) error {
	fri := &proof.FRI
	if len(fri.CommitRoots) != degreeBits-1 {
		return reject("expected %d folding commitments, got %d", degreeBits-1, len(fri.CommitRoots))
	}
	if len(fri.Queries) != v.params.NumQueries {
		return reject("expected %d queries, got %d", v.params.NumQueries, len(fri.Queries))
	}
	for i := range fri.Queries {
		if len(fri.Queries[i].Trace) != 4 {
			return reject("query %d opens %d trace rows, want 4", i, len(fri.Queries[i].Trace))
		}
		if len(fri.Queries[i].Layers) != degreeBits-1 {
			return reject("query %d opens %d folding layers, want %d", i, len(fri.Queries[i].Layers), degreeBits-1)
		}
	}
	return nil
}

// replay rebuilds the Fiat-Shamir transcript and checks the proof of work.
func (v *Verifier) replay(proof *MachineProof, degreeBits, logLDE int) (*transcript, error) {
	ch, err := v.config.NewChallenger()
	if err != nil {
		return nil, err
	}

	proof.PublicValues.observe(ch)
	ch.Observe(core.New(uint64(degreeBits)))
	traceRoot, err := core.DigestFromBytes(proof.TraceRoot)
	if err != nil {
		return nil, reject("%v", err)
	}
	ch.ObserveDigest(traceRoot)

	tr := &transcript{
		composition: CompositionChallenges{Alpha: ch.SampleExt(), Gamma: ch.SampleExt()},
		betas:       make([]core.Ext, degreeBits),
	}

	for r := range tr.betas {
		tr.betas[r] = ch.SampleExt()
		if r < degreeBits-1 {
			root, err := core.DigestFromBytes(proof.FRI.CommitRoots[r])
			if err != nil {
				return nil, reject("%v", err)
			}
			ch.ObserveDigest(root)
		}
	}

	tr.finalValue, err = core.ExtFromValues(proof.FRI.FinalValue)
	if err != nil {
		return nil, reject("final value: %v", err)
	}
	ch.ObserveExt(tr.finalValue)

	if !ch.CheckWitness(v.params.ProofOfWorkBits, core.New(uint64(proof.FRI.PowWitness))) {
		return nil, reject("insufficient proof of work")
	}

	tr.queries = make([]int, v.params.NumQueries)
	for i := range tr.queries {
		tr.queries[i] = ch.SampleBits(logLDE)
	}
	return tr, nil
}

// verifyQuery checks one query position from the trace down to the final
// value.
func (v *Verifier) verifyQuery(idx int, query *QueryProof, proof *MachineProof, traceRoot core.Digest,
	domains *TraceDomains, boundary Boundary, tr *transcript) error {
	n := domains.LDE.Length
	half := n / 2
	step := domains.NextRowOffset()
	a := idx % half

	positions := [4]int{a, (a + step) % n, a + half, (a + half + step) % n}
	rows := make([][]core.Element, len(positions))
	for i, pos := range positions {
		opening := &query.Trace[i]
		rows[i] = opening.elements()
		if err := core.VerifyMerklePath(traceRoot, pos, n, rows[i], opening.digests()); err != nil {
			return reject("trace opening at %d: %v", pos, err)
		}
	}

	x := domains.LDE.Element(a)
	lo, err := domains.Composition(x, rows[0], rows[1], boundary, tr.composition)
	if err != nil {
		return reject("%v", err)
	}
	hi, err := domains.Composition(x.Neg(), rows[2], rows[3], boundary, tr.composition)
	if err != nil {
		return reject("%v", err)
	}
	value, err := FoldPair(lo, hi, x, tr.betas[0])
	if err != nil {
		return reject("%v", err)
	}

	domain := domains.LDE.Halve()
	for r := 1; r < len(tr.betas); r++ {
		length := domain.Length
		i := idx % length
		j := i % (length / 2)

		opening := &query.Layers[r-1]
		leaf := opening.elements()
		lo, hi, err := SplitPairLeaf(leaf)
		if err != nil {
			return reject("layer %d: %v", r, err)
		}
		root, _ := core.DigestFromBytes(proof.FRI.CommitRoots[r-1])
		if err := core.VerifyMerklePath(root, j, length/2, leaf, opening.digests()); err != nil {
			return reject("layer %d opening at %d: %v", r, j, err)
		}

		expected := lo
		if i >= length/2 {
			expected = hi
		}
		if !value.Equal(expected) {
			return reject("layer %d is inconsistent with the previous fold", r)
		}

		value, err = FoldPair(lo, hi, domain.Element(j), tr.betas[r])
		if err != nil {
			return reject("%v", err)
		}
		domain = domain.Halve()
	}

	if !value.Equal(tr.finalValue) {
		return reject("fold does not reach the final value")
	}
	return nil
}
