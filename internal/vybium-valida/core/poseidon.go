package core

import "fmt"

// PoseidonParameters holds a fully specified Poseidon instance. Round
// constants and the MDS matrix are supplied by the caller so that a
// configuration can derive them deterministically from a seed.
type PoseidonParameters struct {
	Width         int // t: Width of permutation
	Alpha         uint64
	FullRounds    int // RF: split evenly before and after the partial rounds
	PartialRounds int // RP
	// RoundConstants has FullRounds+PartialRounds rows of Width entries.
	RoundConstants [][]Element
	// MDS is a Width x Width maximum distance separable matrix.
	MDS [][]Element
}

// Validate checks that the parameter shapes are consistent.
func (p *PoseidonParameters) Validate() error {
	if p.Width <= 1 {
		return fmt.Errorf("poseidon width must be greater than 1, got %d", p.Width)
	}
	if p.FullRounds <= 0 || p.FullRounds%2 != 0 {
		return fmt.Errorf("poseidon full rounds must be positive and even, got %d", p.FullRounds)
	}
	if p.PartialRounds < 0 {
		return fmt.Errorf("poseidon partial rounds must be non-negative, got %d", p.PartialRounds)
	}
	if p.Alpha < 3 {
		return fmt.Errorf("poseidon s-box degree must be at least 3, got %d", p.Alpha)
	}
	if g := gcd(p.Alpha, uint64(Modulus-1)); g != 1 {
		return fmt.Errorf("s-box x^%d is not a permutation of the field", p.Alpha)
	}
	rounds := p.FullRounds + p.PartialRounds
	if len(p.RoundConstants) != rounds {
		return fmt.Errorf("expected %d rows of round constants, got %d", rounds, len(p.RoundConstants))
	}
	for i, row := range p.RoundConstants {
		if len(row) != p.Width {
			return fmt.Errorf("round constant row %d has %d entries, want %d", i, len(row), p.Width)
		}
	}
	if len(p.MDS) != p.Width {
		return fmt.Errorf("MDS matrix has %d rows, want %d", len(p.MDS), p.Width)
	}
	for i, row := range p.MDS {
		if len(row) != p.Width {
			return fmt.Errorf("MDS row %d has %d entries, want %d", i, len(row), p.Width)
		}
	}
	return nil
}

// Poseidon is the Poseidon permutation over BabyBear.
type Poseidon struct {
	width          int
	alpha          uint64
	halfFullRounds int
	partialRounds  int
	roundConstants [][]Element
	mds            [][]Element
}

// NewPoseidon creates a permutation from validated parameters.
func NewPoseidon(params *PoseidonParameters) (*Poseidon, error) {
	if params == nil {
		return nil, fmt.Errorf("poseidon parameters cannot be nil")
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid poseidon parameters: %w", err)
	}

	return &Poseidon{
		width:          params.Width,
		alpha:          params.Alpha,
		halfFullRounds: params.FullRounds / 2,
		partialRounds:  params.PartialRounds,
		roundConstants: params.RoundConstants,
		mds:            params.MDS,
	}, nil
}

// Width returns the state size.
func (p *Poseidon) Width() int {
	return p.width
}

// Permute applies the permutation to state in place. It panics if
// len(state) differs from Width.
func (p *Poseidon) Permute(state []Element) {
	if len(state) != p.width {
		panic(fmt.Sprintf("poseidon: state has %d elements, want %d", len(state), p.width))
	}

	round := 0

	// First half of full rounds
	for i := 0; i < p.halfFullRounds; i++ {
		p.fullRound(state, round)
		round++
	}

	// Partial rounds
	for i := 0; i < p.partialRounds; i++ {
		p.partialRound(state, round)
		round++
	}

	// Second half of full rounds
	for i := 0; i < p.halfFullRounds; i++ {
		p.fullRound(state, round)
		round++
	}
}

func (p *Poseidon) fullRound(state []Element, round int) {
	for i := range state {
		state[i] = state[i].Add(p.roundConstants[round][i]).Exp(p.alpha)
	}
	p.mixLayer(state)
}

func (p *Poseidon) partialRound(state []Element, round int) {
	for i := range state {
		state[i] = state[i].Add(p.roundConstants[round][i])
	}
	state[0] = state[0].Exp(p.alpha)
	p.mixLayer(state)
}

func (p *Poseidon) mixLayer(state []Element) {
	mixed := make([]Element, p.width)
	for i := 0; i < p.width; i++ {
		acc := Zero
		for j := 0; j < p.width; j++ {
			acc = acc.Add(p.mds[i][j].Mul(state[j]))
		}
		mixed[i] = acc
	}
	copy(state, mixed)
}

// CauchyMatrix builds M[i][j] = 1 / (xs[i] + ys[j]). Every such matrix is
// MDS when the xs are distinct, the ys are distinct and no sum is zero.
func CauchyMatrix(xs, ys []Element) ([][]Element, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("cauchy points differ in length: %d and %d", len(xs), len(ys))
	}
	if hasDuplicate(xs) || hasDuplicate(ys) {
		return nil, fmt.Errorf("cauchy points must be distinct")
	}

	t := len(xs)
	sums := make([]Element, 0, t*t)
	for i := 0; i < t; i++ {
		for j := 0; j < t; j++ {
			sums = append(sums, xs[i].Add(ys[j]))
		}
	}
	inverses, err := BatchInversion(sums)
	if err != nil {
		return nil, fmt.Errorf("cauchy matrix is singular: %w", err)
	}

	matrix := make([][]Element, t)
	for i := range matrix {
		matrix[i] = inverses[i*t : (i+1)*t : (i+1)*t]
	}
	return matrix, nil
}

func hasDuplicate(points []Element) bool {
	seen := make(map[uint32]struct{}, len(points))
	for _, p := range points {
		if _, ok := seen[p.Value()]; ok {
			return true
		}
		seen[p.Value()] = struct{}{}
	}
	return false
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
