package vm

import (
	"errors"
	"fmt"
	"math"
)

const (
	// DefaultStackHeight is the initial frame pointer when none is given.
	DefaultStackHeight uint32 = 1 << 24

	// DefaultMaxCycles bounds re-execution to the largest provable trace.
	DefaultMaxCycles uint64 = 1 << 26

	// DefaultMaxMemoryCells bounds the number of distinct words a run may
	// write, about 200 MiB of map storage.
	DefaultMaxMemoryCells = 1 << 22
)

// Registers holds the machine's control registers
type Registers struct {
	PC uint32 // instruction index
	FP uint32 // frame pointer, byte address
}

// MachineState represents the complete state of the Valida machine
type MachineState struct {
	// Program memory (read-only)
	Program *Executable

	// Word-addressed data memory keyed by byte address. Unset cells read 0.
	Memory map[uint32]uint32

	Registers Registers

	// Public output stream
	Output []uint32

	// Execution state
	Cycles    uint64
	Halted    bool
	MaxCycles uint64

	// MaxMemoryCells bounds len(Memory); a store to a new cell past it
	// faults with FaultOutOfBounds.
	MaxMemoryCells int

	initial Registers
}

// StateOption configures machine initialization
type StateOption func(*stateOptions)

type stateOptions struct {
	stackHeight    uint32
	maxCycles      uint64
	maxMemoryCells int
}

// WithStackHeight sets the initial frame pointer
func WithStackHeight(height uint32) StateOption {
	return func(o *stateOptions) {
		o.stackHeight = height
	}
}

// WithMaxCycles bounds the number of executed instructions
func WithMaxCycles(limit uint64) StateOption {
	return func(o *stateOptions) {
		o.maxCycles = limit
	}
}

// WithMaxMemoryCells bounds the number of distinct memory words
func WithMaxMemoryCells(limit int) StateOption {
	return func(o *stateOptions) {
		o.maxMemoryCells = limit
	}
}

// StepRecord describes one executed instruction
type StepRecord struct {
	Cycle  uint64
	PC     uint32
	FP     uint32
	Opcode Opcode
	NextPC uint32
	NextFP uint32
}

// StepObserver is notified after every executed instruction
type StepObserver interface {
	RecordStep(step StepRecord) error
}

// NewMachineState initializes a machine for exe: code loaded, static data
// written, PC at the entry point and FP at the stack height.
func NewMachineState(exe *Executable, opts ...StateOption) (*MachineState, error) {
	if exe == nil {
		return nil, fmt.Errorf("%w: executable cannot be nil", ErrMalformedExecutable)
	}
	if uint64(exe.EntryPoint) >= uint64(len(exe.Code)) {
		return nil, fmt.Errorf("%w: instruction %d, code has %d", ErrEntryOutOfRange, exe.EntryPoint, len(exe.Code))
	}

	options := stateOptions{
		stackHeight:    DefaultStackHeight,
		maxCycles:      DefaultMaxCycles,
		maxMemoryCells: DefaultMaxMemoryCells,
	}
	for _, opt := range opts {
		opt(&options)
	}

	memory := make(map[uint32]uint32, len(exe.Data))
	for _, w := range exe.Data {
		memory[w.Address] = w.Value
	}

	regs := Registers{PC: exe.EntryPoint, FP: options.stackHeight}
	return &MachineState{
		Program:        exe,
		Memory:         memory,
		Registers:      regs,
		Output:         make([]uint32, 0),
		MaxCycles:      options.maxCycles,
		MaxMemoryCells: options.maxMemoryCells,
		initial:        regs,
	}, nil
}

// InitialRegisters returns the registers saved at initialization
func (vm *MachineState) InitialRegisters() Registers {
	return vm.initial
}

// Run executes until STOP. advice may be nil for programs that never read
// advice; observer may be nil.
func (vm *MachineState) Run(advice AdviceSource, observer StepObserver) error {
	if advice == nil {
		advice = NoAdvice()
	}
	for !vm.Halted {
		if err := vm.Step(advice, observer); err != nil {
			return err
		}
	}
	return nil
}

// Step executes one instruction
func (vm *MachineState) Step(advice AdviceSource, observer StepObserver) error {
	if vm.Halted {
		return vm.fault(FaultHalted, nil)
	}
	if vm.Cycles >= vm.MaxCycles {
		return vm.fault(FaultCycleLimit, fmt.Errorf("limit %d", vm.MaxCycles))
	}

	// Fetch instruction
	inst, err := vm.CurrentInstruction()
	if err != nil {
		return err
	}

	before := vm.Registers
	if err := vm.ExecuteInstruction(inst, advice); err != nil {
		return err
	}

	if observer != nil {
		step := StepRecord{
			Cycle:  vm.Cycles,
			PC:     before.PC,
			FP:     before.FP,
			Opcode: inst.Opcode,
			NextPC: vm.Registers.PC,
			NextFP: vm.Registers.FP,
		}
		if err := observer.RecordStep(step); err != nil {
			return fmt.Errorf("failed to record cycle %d: %w", vm.Cycles, err)
		}
	}

	vm.Cycles++
	return nil
}

// CurrentInstruction fetches the instruction at PC
func (vm *MachineState) CurrentInstruction() (Instruction, error) {
	pc := vm.Registers.PC
	if uint64(pc) >= uint64(len(vm.Program.Code)) {
		return Instruction{}, vm.fault(FaultPCOutOfRange, fmt.Errorf("code has %d instructions", len(vm.Program.Code)))
	}
	inst := vm.Program.Code[pc]
	if !inst.Opcode.IsValid() {
		return Instruction{}, vm.fault(FaultIllegalInstruction, fmt.Errorf("opcode %d", uint32(inst.Opcode)))
	}
	return inst, nil
}

// ReadWord reads the cell at a byte address
func (vm *MachineState) ReadWord(addr uint32) uint32 {
	return vm.Memory[addr]
}

// address resolves base + offset to a word-aligned byte address.
func (vm *MachineState) address(base uint32, offset int32) (uint32, error) {
	a := int64(base) + int64(offset)
	if a < 0 || a > math.MaxUint32-3 {
		return 0, vm.fault(FaultOutOfBounds, fmt.Errorf("address %d", a))
	}
	if a%4 != 0 {
		return 0, vm.fault(FaultUnalignedAccess, fmt.Errorf("address %#x", a))
	}
	return uint32(a), nil
}

func (vm *MachineState) load(base uint32, offset int32) (uint32, error) {
	addr, err := vm.address(base, offset)
	if err != nil {
		return 0, err
	}
	return vm.Memory[addr], nil
}

func (vm *MachineState) store(base uint32, offset int32, value uint32) error {
	addr, err := vm.address(base, offset)
	if err != nil {
		return err
	}
	if _, ok := vm.Memory[addr]; !ok && len(vm.Memory) >= vm.MaxMemoryCells {
		return vm.fault(FaultOutOfBounds, fmt.Errorf("memory limit of %d cells reached at %#x", vm.MaxMemoryCells, addr))
	}
	vm.Memory[addr] = value
	return nil
}

func (vm *MachineState) fault(kind FaultKind, cause error) error {
	return &ExecutionFault{
		Kind:  kind,
		PC:    vm.Registers.PC,
		Cycle: vm.Cycles,
		Cause: cause,
	}
}

// IsFault reports whether err is an execution fault of the given kind
func IsFault(err error, kind FaultKind) bool {
	var f *ExecutionFault
	return errors.As(err, &f) && f.Kind == kind
}
