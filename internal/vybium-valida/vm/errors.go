package vm

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedExecutable is returned for executables that cannot be
	// parsed or laid out.
	ErrMalformedExecutable = errors.New("malformed executable")

	// ErrEntryOutOfRange is returned when the entry point does not address
	// an instruction of the code image.
	ErrEntryOutOfRange = fmt.Errorf("%w: entry point outside code", ErrMalformedExecutable)

	// ErrExecutionFault matches every *ExecutionFault with errors.Is.
	ErrExecutionFault = errors.New("execution fault")

	// ErrAdviceExhausted is returned by an AdviceSource with no more input.
	ErrAdviceExhausted = errors.New("advice exhausted")
)

// FaultKind classifies an execution fault
type FaultKind int

const (
	FaultIllegalInstruction FaultKind = iota + 1
	FaultPCOutOfRange
	FaultUnalignedAccess
	FaultOutOfBounds
	FaultDivisionByZero
	FaultAdviceExhausted
	FaultCycleLimit
	FaultHalted
)

func (k FaultKind) String() string {
	switch k {
	case FaultIllegalInstruction:
		return "illegal instruction"
	case FaultPCOutOfRange:
		return "pc out of range"
	case FaultUnalignedAccess:
		return "unaligned memory access"
	case FaultOutOfBounds:
		return "memory access out of bounds"
	case FaultDivisionByZero:
		return "division by zero"
	case FaultAdviceExhausted:
		return "advice exhausted"
	case FaultCycleLimit:
		return "cycle limit exceeded"
	case FaultHalted:
		return "machine already halted"
	default:
		return fmt.Sprintf("fault(%d)", int(k))
	}
}

// ExecutionFault reports a machine fault during re-execution
type ExecutionFault struct {
	Kind  FaultKind
	PC    uint32
	Cycle uint64
	Cause error
}

// Error returns the error message
func (f *ExecutionFault) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("execution fault at cycle %d, pc %d: %s: %v", f.Cycle, f.PC, f.Kind, f.Cause)
	}
	return fmt.Sprintf("execution fault at cycle %d, pc %d: %s", f.Cycle, f.PC, f.Kind)
}

// Unwrap returns the cause of the fault
func (f *ExecutionFault) Unwrap() error {
	return f.Cause
}

// Is matches ErrExecutionFault
func (f *ExecutionFault) Is(target error) bool {
	return target == ErrExecutionFault
}
