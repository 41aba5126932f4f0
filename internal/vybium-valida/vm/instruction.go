// Package vm provides the Valida register machine: executable loading,
// machine state and the instruction interpreter.
package vm

import (
	"encoding/binary"
	"fmt"
)

// InstructionSize is the byte length of one encoded instruction: a u32
// opcode followed by five i32 operands.
const InstructionSize = 24

// Opcode identifies a machine instruction
type Opcode uint32

// Core instructions
const (
	// Load32 reads memory: [a] = mem[[c] + b]
	Load32 Opcode = 1

	// Store32 writes memory: mem[[b] + a] = [c]
	Store32 Opcode = 2

	// Jal jumps and links: [a] = pc + 1, pc = b, fp += c
	Jal Opcode = 3

	// Jalv jumps and links through registers: [a] = pc + 1, pc = [b], fp += [c]
	Jalv Opcode = 4

	// Beq branches to a when [b] == c
	Beq Opcode = 5

	// Bne branches to a when [b] != c
	Bne Opcode = 6

	// Imm32 stores the big-endian byte packing of b, c, d, e into [a]
	Imm32 Opcode = 7

	// Stop halts the machine
	Stop Opcode = 8

	// ReadAdvice stores the next advice byte into [a]
	ReadAdvice Opcode = 9

	// LoadFP stores fp + b into [a]
	LoadFP Opcode = 10
)

// ALU instructions compute [a] = [b] op c, where c is an immediate when e
// is non-zero and the cell [c] otherwise.
const (
	Add32   Opcode = 100
	Sub32   Opcode = 101
	Mul32   Opcode = 102
	Mulhu32 Opcode = 103
	Div32   Opcode = 104
	Shl32   Opcode = 105
	Shr32   Opcode = 106
	Lt32    Opcode = 107
	And32   Opcode = 108
	Or32    Opcode = 109
	Xor32   Opcode = 110
	Ne32    Opcode = 111
	Eq32    Opcode = 112
	Sdiv32  Opcode = 113
	Sra32   Opcode = 114
	Lte32   Opcode = 115
)

// Output instructions
const (
	// Write appends [b] to the public output
	Write Opcode = 200
)

var opcodeNames = map[Opcode]string{
	Load32:     "load32",
	Store32:    "store32",
	Jal:        "jal",
	Jalv:       "jalv",
	Beq:        "beq",
	Bne:        "bne",
	Imm32:      "imm32",
	Stop:       "stop",
	ReadAdvice: "readadvice",
	LoadFP:     "loadfp",
	Add32:      "add",
	Sub32:      "sub",
	Mul32:      "mul",
	Mulhu32:    "mulhu",
	Div32:      "divu",
	Shl32:      "shl",
	Shr32:      "shr",
	Lt32:       "lt",
	And32:      "and",
	Or32:       "or",
	Xor32:      "xor",
	Ne32:       "ne",
	Eq32:       "eq",
	Sdiv32:     "div",
	Sra32:      "sra",
	Lte32:      "lte",
	Write:      "write",
}

// String returns the mnemonic
func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint32(op))
}

// IsValid reports whether op is part of the instruction set
func (op Opcode) IsValid() bool {
	_, ok := opcodeNames[op]
	return ok
}

// IsALU reports whether op is a two-operand arithmetic or logic instruction
func (op Opcode) IsALU() bool {
	return op >= Add32 && op <= Lte32
}

// Instruction is a decoded machine instruction
type Instruction struct {
	Opcode   Opcode
	Operands [5]int32
}

// NewInstruction builds an instruction, zero-filling missing operands
func NewInstruction(op Opcode, operands ...int32) Instruction {
	inst := Instruction{Opcode: op}
	copy(inst.Operands[:], operands)
	return inst
}

// String formats the instruction in assembler-like syntax
func (i Instruction) String() string {
	o := i.Operands
	switch {
	case i.Opcode == Stop:
		return "stop"
	case i.Opcode == Imm32:
		return fmt.Sprintf("imm32 %d(fp), %d", o[0], packImmediate(o))
	case i.Opcode.IsALU() || i.Opcode == Beq || i.Opcode == Bne:
		if o[4] != 0 {
			return fmt.Sprintf("%s %d(fp), %d(fp), %d", i.Opcode, o[0], o[1], o[2])
		}
		return fmt.Sprintf("%s %d(fp), %d(fp), %d(fp)", i.Opcode, o[0], o[1], o[2])
	default:
		return fmt.Sprintf("%s %d, %d, %d, %d, %d", i.Opcode, o[0], o[1], o[2], o[3], o[4])
	}
}

// EncodeMachineCode serializes instructions in the given byte order
func EncodeMachineCode(code []Instruction, order binary.AppendByteOrder) []byte {
	out := make([]byte, 0, len(code)*InstructionSize)
	for _, inst := range code {
		out = order.AppendUint32(out, uint32(inst.Opcode))
		for _, operand := range inst.Operands {
			out = order.AppendUint32(out, uint32(operand))
		}
	}
	return out
}

// DecodeMachineCode parses a raw instruction stream
func DecodeMachineCode(b []byte, order binary.ByteOrder) ([]Instruction, error) {
	if len(b)%InstructionSize != 0 {
		return nil, fmt.Errorf("%w: code length %d is not a multiple of %d",
			ErrMalformedExecutable, len(b), InstructionSize)
	}

	code := make([]Instruction, len(b)/InstructionSize)
	for i := range code {
		word := b[i*InstructionSize : (i+1)*InstructionSize]
		code[i].Opcode = Opcode(order.Uint32(word))
		for j := range code[i].Operands {
			code[i].Operands[j] = int32(order.Uint32(word[4+4*j:]))
		}
	}
	return code, nil
}

func packImmediate(o [5]int32) uint32 {
	return uint32(byte(o[1]))<<24 | uint32(byte(o[2]))<<16 | uint32(byte(o[3]))<<8 | uint32(byte(o[4]))
}
