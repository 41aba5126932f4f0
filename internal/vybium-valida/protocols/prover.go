package protocols

import (
	"fmt"

	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/core"
	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/utils"
	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/vm"
)

// Prover produces machine proofs for recorded executions. It is the exact
// counterpart of Verifier and shares its transcript order.
type Prover struct {
	config *utils.VerificationConfig
	params STARKParameters
}

// NewProver creates a prover for the given configuration
func NewProver(cfg *utils.VerificationConfig) (*Prover, error) {
	params, err := ParametersFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &Prover{config: cfg, params: params}, nil
}

// Prove generates a proof for the execution recorded in steps, whose
// statement is pv.
func (p *Prover) Prove(steps []vm.StepRecord, pv *PublicValues) (*MachineProof, error) {
	if pv == nil {
		return nil, fmt.Errorf("public values cannot be nil")
	}
	if uint64(len(steps)) != pv.Cycles {
		return nil, fmt.Errorf("recorded %d steps for %d cycles", len(steps), pv.Cycles)
	}

	degreeBits, err := TraceDegreeBits(pv.Cycles)
	if err != nil {
		return nil, err
	}
	domains, err := NewTraceDomains(degreeBits, p.params.LogBlowup)
	if err != nil {
		return nil, err
	}

	// Step 1: Commit to the trace LDE
	trace, err := BuildTrace(steps, degreeBits)
	if err != nil {
		return nil, fmt.Errorf("failed to build trace: %w", err)
	}
	ldeRows, err := p.extendTrace(trace, domains)
	if err != nil {
		return nil, err
	}
	traceTree, err := core.NewMerkleTree(ldeRows)
	if err != nil {
		return nil, fmt.Errorf("failed to commit trace: %w", err)
	}

	ch, err := p.config.NewChallenger()
	if err != nil {
		return nil, err
	}
	pv.observe(ch)
	ch.Observe(core.New(uint64(degreeBits)))
	ch.ObserveDigest(traceTree.Root())

	// Step 2: Evaluate the composition polynomial over the LDE domain
	challenges := CompositionChallenges{Alpha: ch.SampleExt(), Gamma: ch.SampleExt()}
	boundary := NewBoundary(pv)
	n := domains.LDE.Length
	step := domains.NextRowOffset()
	codeword := make([]core.Ext, n)
	x := domains.LDE.Offset
	for i := range codeword {
		codeword[i], err = domains.Composition(x, ldeRows[i], ldeRows[(i+step)%n], boundary, challenges)
		if err != nil {
			return nil, err
		}
		x = x.Mul(domains.LDE.Generator)
	}

	// Step 3: Fold down to a constant, committing every intermediate layer
	layerTrees := make([]*core.MerkleTree, 0, degreeBits-1)
	domain := domains.LDE
	for r := 0; r < degreeBits; r++ {
		beta := ch.SampleExt()
		codeword, err = FoldCodeword(codeword, domain, beta)
		if err != nil {
			return nil, fmt.Errorf("failed to fold layer %d: %w", r, err)
		}
		domain = domain.Halve()

		if r < degreeBits-1 {
			tree, err := CommitCodeword(codeword)
			if err != nil {
				return nil, fmt.Errorf("failed to commit layer %d: %w", r+1, err)
			}
			layerTrees = append(layerTrees, tree)
			ch.ObserveDigest(tree.Root())
		}
	}
	if !codeword[0].Equal(codeword[1]) {
		return nil, fmt.Errorf("composition is not of low degree: the trace violates its constraints")
	}
	finalValue := codeword[0]
	ch.ObserveExt(finalValue)

	// Step 4: Grind and answer the queries
	witness, err := ch.Grind(p.params.ProofOfWorkBits)
	if err != nil {
		return nil, err
	}

	queries := make([]QueryProof, p.params.NumQueries)
	for q := range queries {
		idx := ch.SampleBits(domains.LDE.LogLength)
		queries[q], err = openQuery(idx, n, step, traceTree, layerTrees)
		if err != nil {
			return nil, fmt.Errorf("failed to open query %d: %w", q, err)
		}
	}

	roots := make([][]byte, len(layerTrees))
	for i, tree := range layerTrees {
		root := tree.Root()
		roots[i] = append([]byte(nil), root[:]...)
	}
	traceRoot := traceTree.Root()

	return &MachineProof{
		PublicValues: *pv,
		DegreeBits:   uint32(degreeBits),
		TraceRoot:    append([]byte(nil), traceRoot[:]...),
		FRI: FRIProof{
			CommitRoots: roots,
			FinalValue:  finalValue.Values(),
			PowWitness:  witness.Value(),
			Queries:     queries,
		},
	}, nil
}

// extendTrace interpolates every column and evaluates it over the LDE coset,
// returning the extended rows.
func (p *Prover) extendTrace(trace [][]core.Element, domains *TraceDomains) ([][]core.Element, error) {
	n := domains.LDE.Length
	ldeRows := make([][]core.Element, n)
	for i := range ldeRows {
		ldeRows[i] = make([]core.Element, NumColumns)
	}

	column := make([]core.Element, len(trace))
	for c := 0; c < NumColumns; c++ {
		for i, row := range trace {
			column[i] = row[c]
		}
		extended, err := core.CosetLDE(column, p.params.LogBlowup, domains.LDE.Offset)
		if err != nil {
			return nil, fmt.Errorf("failed to extend column %d: %w", c, err)
		}
		for i, e := range extended {
			ldeRows[i][c] = e
		}
	}
	return ldeRows, nil
}

func openQuery(idx, n, step int, traceTree *core.MerkleTree, layerTrees []*core.MerkleTree) (QueryProof, error) {
	half := n / 2
	a := idx % half
	positions := [4]int{a, (a + step) % n, a + half, (a + half + step) % n}

	var query QueryProof
	for _, pos := range positions {
		row, path, err := traceTree.Open(pos)
		if err != nil {
			return query, err
		}
		query.Trace = append(query.Trace, newRowOpening(row, path))
	}

	length := half
	for _, tree := range layerTrees {
		j := idx % (length / 2)
		leaf, path, err := tree.Open(j)
		if err != nil {
			return query, err
		}
		query.Layers = append(query.Layers, newRowOpening(leaf, path))
		length /= 2
	}
	return query, nil
}
