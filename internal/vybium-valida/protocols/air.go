package protocols

import (
	"fmt"

	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/core"
	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/vm"
)

// Processor trace columns
const (
	ColClock = iota
	ColPC
	ColFP
	ColOpcode
	ColSequential // next PC is PC+1
	ColKeepFP     // next FP is FP
	ColHalted
	NumColumns
)

// NumConstraints is the number of AIR constraints folded into the
// composition polynomial.
const NumConstraints = 16

// Boundary holds the public register values the first and last rows are
// pinned to.
type Boundary struct {
	InitialPC core.Element
	InitialFP core.Element
	FinalPC   core.Element
	FinalFP   core.Element
}

// NewBoundary lifts the register values of a statement into the field
func NewBoundary(pv *PublicValues) Boundary {
	return Boundary{
		InitialPC: core.New(uint64(pv.InitialPC)),
		InitialFP: core.New(uint64(pv.InitialFP)),
		FinalPC:   core.New(uint64(pv.FinalPC)),
		FinalFP:   core.New(uint64(pv.FinalFP)),
	}
}

// BuildTrace lays out an execution as a processor table of 2^degreeBits
// rows. Rows past the last step repeat the halted row with the clock still
// counting.
func BuildTrace(steps []vm.StepRecord, degreeBits int) ([][]core.Element, error) {
	height := 1 << uint(degreeBits)
	if len(steps) == 0 {
		return nil, fmt.Errorf("execution has no steps")
	}
	if len(steps) > height {
		return nil, fmt.Errorf("%d steps do not fit in %d rows", len(steps), height)
	}
	if last := steps[len(steps)-1]; last.Opcode != vm.Stop {
		return nil, fmt.Errorf("execution did not halt: last opcode is %s", last.Opcode)
	}

	rows := make([][]core.Element, height)
	for i, step := range steps {
		rows[i] = traceRow(uint64(i), step)
	}
	last := steps[len(steps)-1]
	for i := len(steps); i < height; i++ {
		rows[i] = traceRow(uint64(i), last)
	}
	return rows, nil
}

func traceRow(clock uint64, step vm.StepRecord) []core.Element {
	row := make([]core.Element, NumColumns)
	row[ColClock] = core.New(clock)
	row[ColPC] = core.New(uint64(step.PC))
	row[ColFP] = core.New(uint64(step.FP))
	row[ColOpcode] = core.New(uint64(step.Opcode))
	row[ColSequential] = flag(step.NextPC == step.PC+1)
	row[ColKeepFP] = flag(step.NextFP == step.FP)
	row[ColHalted] = flag(step.Opcode == vm.Stop)
	return row
}

func flag(b bool) core.Element {
	if b {
		return core.One
	}
	return core.Zero
}

// EvaluateConstraints evaluates every constraint on a pair of consecutive
// rows. Entries 0-5 are transition constraints, 6-9 hold on every row,
// 10-12 on the first row and 13-15 on the last.
func EvaluateConstraints(local, next []core.Element, b Boundary) [NumConstraints]core.Element {
	clk, pc, fp := local[ColClock], local[ColPC], local[ColFP]
	opcode, seq, keepFP, halted := local[ColOpcode], local[ColSequential], local[ColKeepFP], local[ColHalted]
	pcStep := next[ColPC].Sub(pc)
	fpStep := next[ColFP].Sub(fp)

	var c [NumConstraints]core.Element

	c[0] = next[ColClock].Sub(clk).Sub(core.One)
	c[1] = seq.Mul(pcStep.Sub(core.One))
	c[2] = keepFP.Mul(fpStep)
	c[3] = halted.Mul(core.One.Sub(next[ColHalted]))
	c[4] = halted.Mul(pcStep)
	c[5] = halted.Mul(fpStep)

	c[6] = seq.Mul(seq.Sub(core.One))
	c[7] = keepFP.Mul(keepFP.Sub(core.One))
	c[8] = halted.Mul(halted.Sub(core.One))
	c[9] = halted.Mul(opcode.Sub(core.New(uint64(vm.Stop))))

	c[10] = clk
	c[11] = pc.Sub(b.InitialPC)
	c[12] = fp.Sub(b.InitialFP)

	c[13] = pc.Sub(b.FinalPC)
	c[14] = fp.Sub(b.FinalFP)
	c[15] = halted.Sub(core.One)

	return c
}

// CompositionChallenges are the transcript challenges that combine the
// constraints and the trace columns into one polynomial.
type CompositionChallenges struct {
	Alpha core.Ext
	Gamma core.Ext
}

// Composition evaluates F(x) = sum_k alpha^k C_k(x)/Z_k(x) +
// sum_j gamma^(j+1) T_j(x) at a point of the LDE domain. For an honest trace
// F has degree below the trace height.
func (td *TraceDomains) Composition(x core.Element, local, next []core.Element, b Boundary, ch CompositionChallenges) (core.Ext, error) {
	if len(local) != NumColumns || len(next) != NumColumns {
		return core.ExtZero, fmt.Errorf("trace rows must have %d columns, got %d and %d", NumColumns, len(local), len(next))
	}
	z, err := td.ZerofiersAt(x)
	if err != nil {
		return core.ExtZero, err
	}

	c := EvaluateConstraints(local, next, b)
	acc := core.ExtZero
	power := core.ExtOne
	for k, value := range c {
		var inv core.Element
		switch {
		case k < 6:
			inv = z.Transition
		case k < 10:
			inv = z.AllRows
		case k < 13:
			inv = z.FirstRow
		default:
			inv = z.LastRow
		}
		acc = acc.Add(power.MulBase(value.Mul(inv)))
		power = power.Mul(ch.Alpha)
	}

	power = ch.Gamma
	for _, value := range local {
		acc = acc.Add(power.MulBase(value))
		power = power.Mul(ch.Gamma)
	}
	return acc, nil
}
