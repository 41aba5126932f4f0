package fixtures

import (
	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/vm"
)

// DataBase is where sample programs keep their static data.
const DataBase uint32 = 0x10000

// imm32 builds an IMM32 storing value into [fp+slot]
func imm32(slot int32, value uint32) vm.Instruction {
	return vm.NewInstruction(vm.Imm32, slot,
		int32(value>>24&0xff), int32(value>>16&0xff), int32(value>>8&0xff), int32(value&0xff))
}

// ReturnConstant writes value to the output and stops.
func ReturnConstant(value uint32) []vm.Instruction {
	return []vm.Instruction{
		imm32(4, value),
		vm.NewInstruction(vm.Write, 0, 4),
		vm.NewInstruction(vm.Stop),
	}
}

// SumTo writes n + (n-1) + ... + 1 using a counting loop.
func SumTo(n uint32) []vm.Instruction {
	return []vm.Instruction{
		imm32(4, n),
		imm32(8, 0),
		vm.NewInstruction(vm.Add32, 8, 8, 4),
		vm.NewInstruction(vm.Sub32, 4, 4, 1, 0, 1),
		vm.NewInstruction(vm.Bne, 2, 4, 0, 0, 1),
		vm.NewInstruction(vm.Write, 0, 8),
		vm.NewInstruction(vm.Stop),
	}
}

// DoubleViaCall passes arg to a function in a new frame that doubles it,
// then writes the result. The callee returns through JALV, restoring FP.
func DoubleViaCall(arg uint32) []vm.Instruction {
	return []vm.Instruction{
		imm32(-8, arg),
		imm32(-12, 16),
		vm.NewInstruction(vm.Jal, -16, 5, -16),
		vm.NewInstruction(vm.Write, 0, -4),
		vm.NewInstruction(vm.Stop),
		// callee: [fp+12] = [fp+8] + [fp+8]
		vm.NewInstruction(vm.Add32, 12, 8, 8),
		vm.NewInstruction(vm.Jalv, 20, 0, 4),
	}
}

// AdviceSum reads two advice bytes and writes their sum.
func AdviceSum() []vm.Instruction {
	return []vm.Instruction{
		vm.NewInstruction(vm.ReadAdvice, 4),
		vm.NewInstruction(vm.ReadAdvice, 8),
		vm.NewInstruction(vm.Add32, 12, 4, 8),
		vm.NewInstruction(vm.Write, 0, 12),
		vm.NewInstruction(vm.Stop),
	}
}

// StaticData loads the word at DataBase, multiplies it by 6, stores the
// product in the next word, reloads and writes it.
func StaticData() []vm.Instruction {
	return []vm.Instruction{
		imm32(4, DataBase),
		vm.NewInstruction(vm.Load32, 8, 0, 4),
		vm.NewInstruction(vm.Mul32, 8, 8, 6, 0, 1),
		vm.NewInstruction(vm.Store32, 4, 4, 8),
		vm.NewInstruction(vm.Load32, 12, 4, 4),
		vm.NewInstruction(vm.Write, 0, 12),
		vm.NewInstruction(vm.Stop),
	}
}

// ReturnConstantELF is the encoded ReturnConstant program.
func ReturnConstantELF(value uint32) []byte {
	return NewImage(ReturnConstant(value), 0).Bytes()
}

// StaticDataELF is the encoded StaticData program with 7 at DataBase.
func StaticDataELF() []byte {
	return NewImage(StaticData(), 0).WithData(DataBase, 7, 0).Bytes()
}
