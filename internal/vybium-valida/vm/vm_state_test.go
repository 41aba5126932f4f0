package vm_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/fixtures"
	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/vm"
)

func loadFixture(t *testing.T, raw []byte) *vm.Executable {
	t.Helper()
	exe, err := vm.LoadExecutable(raw)
	if err != nil {
		t.Fatalf("LoadExecutable failed: %v", err)
	}
	return exe
}

// TestNewMachineStateDefaults tests the default stack height and entry
func TestNewMachineStateDefaults(t *testing.T) {
	exe := loadFixture(t, fixtures.NewImage(fixtures.DoubleViaCall(5), 0).Bytes())

	state, err := vm.NewMachineState(exe)
	if err != nil {
		t.Fatal(err)
	}

	if vm.DefaultStackHeight != 16777216 {
		t.Fatalf("DefaultStackHeight = %d", vm.DefaultStackHeight)
	}
	want := vm.Registers{PC: 0, FP: 16777216}
	if state.Registers != want {
		t.Errorf("Registers = %+v, want %+v", state.Registers, want)
	}
	if state.InitialRegisters() != want {
		t.Errorf("InitialRegisters = %+v, want %+v", state.InitialRegisters(), want)
	}
}

// TestNewMachineStateStackHeight tests that an explicit stack height is used verbatim
func TestNewMachineStateStackHeight(t *testing.T) {
	exe := loadFixture(t, fixtures.NewImage(fixtures.DoubleViaCall(5), 0).Bytes())

	for _, height := range []uint32{0, 4, 1 << 20, 1<<32 - 4} {
		state, err := vm.NewMachineState(exe, vm.WithStackHeight(height))
		if err != nil {
			t.Fatal(err)
		}
		if state.Registers.FP != height {
			t.Errorf("FP = %d, want %d", state.Registers.FP, height)
		}
	}
}

// TestNewMachineStateStaticData tests that data words are in memory before execution
func TestNewMachineStateStaticData(t *testing.T) {
	exe := loadFixture(t, fixtures.StaticDataELF())
	state, err := vm.NewMachineState(exe)
	if err != nil {
		t.Fatal(err)
	}
	if state.ReadWord(fixtures.DataBase) != 7 {
		t.Errorf("mem[DataBase] = %d, want 7", state.ReadWord(fixtures.DataBase))
	}

	if err := state.Run(nil, nil); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(state.Output, []uint32{42}) {
		t.Errorf("Output = %v, want [42]", state.Output)
	}
}

// TestNewMachineStateEntryOutOfRange tests that initialization re-checks the entry
func TestNewMachineStateEntryOutOfRange(t *testing.T) {
	exe := &vm.Executable{Code: fixtures.ReturnConstant(1), EntryPoint: 3}
	_, err := vm.NewMachineState(exe)
	if !errors.Is(err, vm.ErrEntryOutOfRange) {
		t.Errorf("expected ErrEntryOutOfRange, got %v", err)
	}

	if _, err := vm.NewMachineState(nil); !errors.Is(err, vm.ErrMalformedExecutable) {
		t.Errorf("expected ErrMalformedExecutable, got %v", err)
	}
}

// TestRunRecordsTrace tests the step observer contract
func TestRunRecordsTrace(t *testing.T) {
	exe := loadFixture(t, fixtures.NewImage(fixtures.DoubleViaCall(21), 0).Bytes())
	state, err := vm.NewMachineState(exe)
	if err != nil {
		t.Fatal(err)
	}

	recorder := vm.NewTraceRecorder()
	if err := state.Run(nil, recorder); err != nil {
		t.Fatal(err)
	}

	steps := recorder.Steps()
	if uint64(len(steps)) != state.Cycles {
		t.Fatalf("recorded %d steps for %d cycles", len(steps), state.Cycles)
	}

	wantPCs := []uint32{0, 1, 2, 5, 6, 3, 4}
	for i, step := range steps {
		if step.PC != wantPCs[i] {
			t.Errorf("step %d: PC = %d, want %d", i, step.PC, wantPCs[i])
		}
		if i+1 < len(steps) && (step.NextPC != steps[i+1].PC || step.NextFP != steps[i+1].FP) {
			t.Errorf("step %d does not chain into step %d", i, i+1)
		}
	}

	last := steps[len(steps)-1]
	if last.Opcode != vm.Stop || last.NextPC != last.PC || last.NextFP != last.FP {
		t.Errorf("final step %+v is not a stop", last)
	}
	if steps[3].FP != vm.DefaultStackHeight-16 {
		t.Errorf("callee frame FP = %d", steps[3].FP)
	}
	if state.Registers.PC != 4 || state.Registers.FP != vm.DefaultStackHeight {
		t.Errorf("final registers %+v", state.Registers)
	}
}

// TestMemoryCellLimit tests that writes to new cells stop at the limit
func TestMemoryCellLimit(t *testing.T) {
	tests := []struct {
		name  string
		code  []vm.Instruction
		limit int
		fault bool
	}{
		{"within limit", fixtures.ReturnConstant(1), 1, false},
		{"call frame past limit", fixtures.DoubleViaCall(3), 2, true},
		{"call frame at limit", fixtures.DoubleViaCall(3), 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exe := loadFixture(t, fixtures.NewImage(tt.code, 0).Bytes())
			state, err := vm.NewMachineState(exe, vm.WithMaxMemoryCells(tt.limit))
			if err != nil {
				t.Fatal(err)
			}

			err = state.Run(nil, nil)
			if tt.fault {
				if !vm.IsFault(err, vm.FaultOutOfBounds) {
					t.Fatalf("expected an out of bounds fault, got %v", err)
				}
				if len(state.Memory) != tt.limit {
					t.Errorf("memory holds %d cells, want %d", len(state.Memory), tt.limit)
				}
				return
			}
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
		})
	}

	exe := loadFixture(t, fixtures.ReturnConstantELF(1))
	state, err := vm.NewMachineState(exe)
	if err != nil {
		t.Fatal(err)
	}
	if state.MaxMemoryCells != vm.DefaultMaxMemoryCells {
		t.Errorf("MaxMemoryCells = %d, want %d", state.MaxMemoryCells, vm.DefaultMaxMemoryCells)
	}
}

// TestAdviceSources tests the string-backed advice capability
func TestAdviceSources(t *testing.T) {
	src := vm.NewStringAdvice("hi")
	for _, want := range []byte("hi") {
		b, err := src.Next()
		if err != nil || b != want {
			t.Fatalf("Next() = %q, %v", b, err)
		}
	}
	if _, err := src.Next(); !errors.Is(err, vm.ErrAdviceExhausted) {
		t.Errorf("expected ErrAdviceExhausted, got %v", err)
	}
	if src.Remaining() != 0 {
		t.Errorf("Remaining = %d", src.Remaining())
	}

	if _, err := vm.NoAdvice().Next(); !errors.Is(err, vm.ErrAdviceExhausted) {
		t.Errorf("expected ErrAdviceExhausted, got %v", err)
	}
}
