package vm

import (
	"errors"
	"fmt"
	"math/bits"
)

// ExecuteInstruction dispatches to the appropriate instruction handler and
// advances PC unless the instruction transfers control.
func (vm *MachineState) ExecuteInstruction(inst Instruction, advice AdviceSource) error {
	if inst.Opcode.IsALU() {
		return vm.execALU(inst)
	}

	switch inst.Opcode {
	case Load32:
		return vm.execLoad32(inst)
	case Store32:
		return vm.execStore32(inst)
	case Jal:
		return vm.execJal(inst)
	case Jalv:
		return vm.execJalv(inst)
	case Beq, Bne:
		return vm.execBranch(inst)
	case Imm32:
		return vm.execImm32(inst)
	case Stop:
		return vm.execStop()
	case ReadAdvice:
		return vm.execReadAdvice(inst, advice)
	case LoadFP:
		return vm.execLoadFP(inst)
	case Write:
		return vm.execWrite(inst)
	default:
		return vm.fault(FaultIllegalInstruction, fmt.Errorf("opcode %d", uint32(inst.Opcode)))
	}
}

func (vm *MachineState) next() error {
	vm.Registers.PC++
	return nil
}

// execLoad32: [a] = mem[[c] + b]
func (vm *MachineState) execLoad32(inst Instruction) error {
	o := inst.Operands
	base, err := vm.load(vm.Registers.FP, o[2])
	if err != nil {
		return err
	}
	value, err := vm.load(base, o[1])
	if err != nil {
		return err
	}
	if err := vm.store(vm.Registers.FP, o[0], value); err != nil {
		return err
	}
	return vm.next()
}

// execStore32: mem[[b] + a] = [c]
func (vm *MachineState) execStore32(inst Instruction) error {
	o := inst.Operands
	base, err := vm.load(vm.Registers.FP, o[1])
	if err != nil {
		return err
	}
	value, err := vm.load(vm.Registers.FP, o[2])
	if err != nil {
		return err
	}
	if err := vm.store(base, o[0], value); err != nil {
		return err
	}
	return vm.next()
}

// execJal: [a] = pc + 1, pc = b, fp += c
func (vm *MachineState) execJal(inst Instruction) error {
	o := inst.Operands
	if err := vm.store(vm.Registers.FP, o[0], vm.Registers.PC+1); err != nil {
		return err
	}
	vm.Registers.PC = uint32(o[1])
	vm.Registers.FP += uint32(o[2])
	return nil
}

// execJalv: [a] = pc + 1, pc = [b], fp += [c]
func (vm *MachineState) execJalv(inst Instruction) error {
	o := inst.Operands
	target, err := vm.load(vm.Registers.FP, o[1])
	if err != nil {
		return err
	}
	delta, err := vm.load(vm.Registers.FP, o[2])
	if err != nil {
		return err
	}
	if err := vm.store(vm.Registers.FP, o[0], vm.Registers.PC+1); err != nil {
		return err
	}
	vm.Registers.PC = target
	vm.Registers.FP += delta
	return nil
}

// execBranch handles BEQ and BNE: pc = a when the comparison holds
func (vm *MachineState) execBranch(inst Instruction) error {
	o := inst.Operands
	lhs, err := vm.load(vm.Registers.FP, o[1])
	if err != nil {
		return err
	}
	rhs, err := vm.operandC(o)
	if err != nil {
		return err
	}

	taken := lhs == rhs
	if inst.Opcode == Bne {
		taken = !taken
	}
	if taken {
		vm.Registers.PC = uint32(o[0])
		return nil
	}
	return vm.next()
}

// execImm32: [a] = b<<24 | c<<16 | d<<8 | e
func (vm *MachineState) execImm32(inst Instruction) error {
	if err := vm.store(vm.Registers.FP, inst.Operands[0], packImmediate(inst.Operands)); err != nil {
		return err
	}
	return vm.next()
}

// execStop halts; PC and FP keep their values
func (vm *MachineState) execStop() error {
	vm.Halted = true
	return nil
}

// execReadAdvice: [a] = next advice byte
func (vm *MachineState) execReadAdvice(inst Instruction, advice AdviceSource) error {
	b, err := advice.Next()
	if errors.Is(err, ErrAdviceExhausted) {
		return vm.fault(FaultAdviceExhausted, err)
	}
	if err != nil {
		return fmt.Errorf("failed to read advice: %w", err)
	}
	if err := vm.store(vm.Registers.FP, inst.Operands[0], uint32(b)); err != nil {
		return err
	}
	return vm.next()
}

// execLoadFP: [a] = fp + b
func (vm *MachineState) execLoadFP(inst Instruction) error {
	o := inst.Operands
	if err := vm.store(vm.Registers.FP, o[0], vm.Registers.FP+uint32(o[1])); err != nil {
		return err
	}
	return vm.next()
}

// execWrite appends [b] to the output stream
func (vm *MachineState) execWrite(inst Instruction) error {
	value, err := vm.load(vm.Registers.FP, inst.Operands[1])
	if err != nil {
		return err
	}
	vm.Output = append(vm.Output, value)
	return vm.next()
}

// execALU: [a] = [b] op c
func (vm *MachineState) execALU(inst Instruction) error {
	o := inst.Operands
	b, err := vm.load(vm.Registers.FP, o[1])
	if err != nil {
		return err
	}
	c, err := vm.operandC(o)
	if err != nil {
		return err
	}

	var result uint32
	switch inst.Opcode {
	case Add32:
		result = b + c
	case Sub32:
		result = b - c
	case Mul32:
		result = b * c
	case Mulhu32:
		hi, _ := bits.Mul32(b, c)
		result = hi
	case Div32:
		if c == 0 {
			return vm.fault(FaultDivisionByZero, nil)
		}
		result = b / c
	case Sdiv32:
		if c == 0 {
			return vm.fault(FaultDivisionByZero, nil)
		}
		// MinInt32 / -1 wraps to MinInt32
		result = uint32(int32(b) / int32(c))
	case Shl32:
		result = b << (c & 31)
	case Shr32:
		result = b >> (c & 31)
	case Sra32:
		result = uint32(int32(b) >> (c & 31))
	case Lt32:
		result = boolWord(b < c)
	case Lte32:
		result = boolWord(b <= c)
	case And32:
		result = b & c
	case Or32:
		result = b | c
	case Xor32:
		result = b ^ c
	case Ne32:
		result = boolWord(b != c)
	case Eq32:
		result = boolWord(b == c)
	default:
		return vm.fault(FaultIllegalInstruction, fmt.Errorf("opcode %d", uint32(inst.Opcode)))
	}

	if err := vm.store(vm.Registers.FP, o[0], result); err != nil {
		return err
	}
	return vm.next()
}

// operandC reads the third operand: an immediate when e is non-zero,
// otherwise the cell [c].
func (vm *MachineState) operandC(o [5]int32) (uint32, error) {
	if o[4] != 0 {
		return uint32(o[2]), nil
	}
	return vm.load(vm.Registers.FP, o[2])
}

func boolWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
