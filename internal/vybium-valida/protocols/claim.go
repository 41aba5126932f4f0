package protocols

import (
	"slices"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"

	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/core"
	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/utils"
	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/vm"
)

// PublicValues is the public statement a proof is about: which program ran,
// where it started and stopped, and what it wrote. A corresponding proof is
// only accepted when these match a fresh execution.
type PublicValues struct {
	_ struct{} `cbor:",toarray"`

	// ProgramDigest is the hash of the code image, entry point and static
	// data. It ties the proof to one executable.
	ProgramDigest []uint64

	InitialPC uint32
	InitialFP uint32
	FinalPC   uint32
	FinalFP   uint32

	// Cycles is the number of executed instructions, STOP included
	Cycles uint64

	// Output is the public output stream
	Output []uint32
}

// ProgramDigest hashes an executable into a field-element digest. The code
// and data sections are each prefixed with their length so that no element
// sequence splits into two different images.
func ProgramDigest(exe *vm.Executable) []uint64 {
	elements := make([]field.Element, 0, 2+len(exe.Code)*6+1+len(exe.Data)*2)
	elements = append(elements, field.New(uint64(len(exe.Code))))
	for _, inst := range exe.Code {
		elements = append(elements, field.New(uint64(inst.Opcode)))
		for _, operand := range inst.Operands {
			elements = append(elements, field.New(uint64(uint32(operand))))
		}
	}
	elements = append(elements, field.New(uint64(exe.EntryPoint)))
	elements = append(elements, field.New(uint64(len(exe.Data))))
	for _, w := range exe.Data {
		elements = append(elements, field.New(uint64(w.Address)), field.New(uint64(w.Value)))
	}

	digest := hash.HashVarlen(elements)
	out := make([]uint64, 0, len(digest))
	for _, elem := range digest {
		out = append(out, elem.Value())
	}
	return out
}

// NewPublicValues captures the statement of a finished execution
func NewPublicValues(state *vm.MachineState) *PublicValues {
	initial := state.InitialRegisters()
	return &PublicValues{
		ProgramDigest: ProgramDigest(state.Program),
		InitialPC:     initial.PC,
		InitialFP:     initial.FP,
		FinalPC:       state.Registers.PC,
		FinalFP:       state.Registers.FP,
		Cycles:        state.Cycles,
		Output:        slices.Clone(state.Output),
	}
}

// Equal reports whether two statements are identical
func (pv *PublicValues) Equal(o *PublicValues) bool {
	if pv == nil || o == nil {
		return pv == o
	}
	return slices.Equal(pv.ProgramDigest, o.ProgramDigest) &&
		pv.InitialPC == o.InitialPC &&
		pv.InitialFP == o.InitialFP &&
		pv.FinalPC == o.FinalPC &&
		pv.FinalFP == o.FinalFP &&
		pv.Cycles == o.Cycles &&
		slices.Equal(pv.Output, o.Output)
}

// observe absorbs the statement into the transcript. Every word goes in as
// 16-bit limbs so that no two statements collide after reduction.
func (pv *PublicValues) observe(ch *utils.Challenger) {
	ch.Observe(core.New(uint64(len(pv.ProgramDigest))))
	for _, v := range pv.ProgramDigest {
		ch.ObserveUint32(uint32(v))
		ch.ObserveUint32(uint32(v >> 32))
	}
	ch.ObserveUint32(pv.InitialPC)
	ch.ObserveUint32(pv.InitialFP)
	ch.ObserveUint32(pv.FinalPC)
	ch.ObserveUint32(pv.FinalFP)
	ch.ObserveUint32(uint32(pv.Cycles))
	ch.ObserveUint32(uint32(pv.Cycles >> 32))
	ch.ObserveUint32(uint32(len(pv.Output)))
	for _, v := range pv.Output {
		ch.ObserveUint32(v)
	}
}
