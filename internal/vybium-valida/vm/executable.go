package vm

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/utils"
)

// MaxCodeBytes bounds the code image a loaded executable may span.
const MaxCodeBytes = 64 << 20

// EntrySymbol names the program entry point when a symbol table is present.
const EntrySymbol = "__start"

// DataWord is one initialized 32-bit memory cell
type DataWord struct {
	Address uint32
	Value   uint32
}

// Executable is a loaded program image. Code is laid out from address 0,
// one instruction per InstructionSize bytes; EntryPoint is an instruction
// index into Code.
type Executable struct {
	Code       []Instruction
	Data       []DataWord
	EntryPoint uint32
}

// LoadExecutable parses an ELF32 image into code, static data and entry
// point. Any parse failure is reported as ErrMalformedExecutable.
func LoadExecutable(b []byte) (*Executable, error) {
	f, err := elf.NewFile(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedExecutable, err)
	}
	defer f.Close()

	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("%w: expected a 32-bit image, got %s", ErrMalformedExecutable, f.Class)
	}

	code, err := loadCode(f)
	if err != nil {
		return nil, err
	}

	data, err := loadData(f)
	if err != nil {
		return nil, err
	}

	entry, err := resolveEntry(f)
	if err != nil {
		return nil, err
	}
	if entry%InstructionSize != 0 || uint64(entry/InstructionSize) >= uint64(len(code)) {
		return nil, fmt.Errorf("%w: address %#x, code spans %#x bytes",
			ErrEntryOutOfRange, entry, len(code)*InstructionSize)
	}

	return &Executable{
		Code:       code,
		Data:       data,
		EntryPoint: uint32(entry / InstructionSize),
	}, nil
}

// CodeSize returns the number of instructions in the code image
func (e *Executable) CodeSize() int {
	return len(e.Code)
}

func isText(s *elf.Section) bool {
	return s.Type == elf.SHT_PROGBITS && s.Flags&elf.SHF_EXECINSTR != 0
}

func isData(s *elf.Section) bool {
	return s.Type == elf.SHT_PROGBITS && s.Flags&elf.SHF_ALLOC != 0 && s.Flags&elf.SHF_EXECINSTR == 0
}

func loadCode(f *elf.File) ([]Instruction, error) {
	var text []*elf.Section
	for _, s := range f.Sections {
		if isText(s) {
			text = append(text, s)
		}
	}
	if len(text) == 0 {
		return nil, fmt.Errorf("%w: no executable section", ErrMalformedExecutable)
	}
	sort.Slice(text, func(i, j int) bool { return text[i].Addr < text[j].Addr })

	var end uint64
	for _, s := range text {
		if s.Addr%InstructionSize != 0 || s.Size%InstructionSize != 0 {
			return nil, fmt.Errorf("%w: section %s at %#x with size %d is not instruction aligned",
				ErrMalformedExecutable, s.Name, s.Addr, s.Size)
		}
		if s.Addr < end {
			return nil, fmt.Errorf("%w: section %s overlaps preceding code", ErrMalformedExecutable, s.Name)
		}
		end = s.Addr + s.Size
		if end > MaxCodeBytes {
			return nil, fmt.Errorf("%w: code image of %d bytes exceeds %d", ErrMalformedExecutable, end, MaxCodeBytes)
		}
	}

	// Gaps before and between sections stay zero, which decodes to an
	// illegal opcode.
	code := make([]Instruction, end/InstructionSize)
	for _, s := range text {
		raw, err := s.Data()
		if err != nil {
			return nil, fmt.Errorf("%w: section %s: %v", ErrMalformedExecutable, s.Name, err)
		}
		if uint64(len(raw)) != s.Size {
			return nil, fmt.Errorf("%w: section %s is truncated", ErrMalformedExecutable, s.Name)
		}
		decoded, err := DecodeMachineCode(raw, f.ByteOrder)
		if err != nil {
			return nil, err
		}
		copy(code[s.Addr/InstructionSize:], decoded)
	}
	return code, nil
}

func loadData(f *elf.File) ([]DataWord, error) {
	words := make(map[uint32]uint32)
	for _, s := range f.Sections {
		if !isData(s) {
			continue
		}
		if s.Addr%4 != 0 {
			return nil, fmt.Errorf("%w: data section %s at unaligned address %#x",
				ErrMalformedExecutable, s.Name, s.Addr)
		}
		if utils.AlignUp(s.Addr+s.Size, 4) > math.MaxUint32+1 {
			return nil, fmt.Errorf("%w: data section %s exceeds the address space", ErrMalformedExecutable, s.Name)
		}

		raw, err := s.Data()
		if err != nil {
			return nil, fmt.Errorf("%w: section %s: %v", ErrMalformedExecutable, s.Name, err)
		}
		if uint64(len(raw)) != s.Size {
			return nil, fmt.Errorf("%w: section %s is truncated", ErrMalformedExecutable, s.Name)
		}

		for off := 0; off < len(raw); off += 4 {
			var word [4]byte
			copy(word[:], raw[off:])
			addr := uint32(s.Addr) + uint32(off)
			if _, dup := words[addr]; dup {
				return nil, fmt.Errorf("%w: data sections overlap at %#x", ErrMalformedExecutable, addr)
			}
			words[addr] = f.ByteOrder.Uint32(word[:])
		}
	}

	data := make([]DataWord, 0, len(words))
	for addr, value := range words {
		data = append(data, DataWord{Address: addr, Value: value})
	}
	sort.Slice(data, func(i, j int) bool { return data[i].Address < data[j].Address })
	return data, nil
}

// resolveEntry prefers the entry symbol and falls back to the header's entry
// field when the image carries no symbol table.
func resolveEntry(f *elf.File) (uint64, error) {
	symbols, err := f.Symbols()
	if errors.Is(err, elf.ErrNoSymbols) {
		return f.Entry, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: symbol table: %v", ErrMalformedExecutable, err)
	}

	for _, sym := range symbols {
		if sym.Name != EntrySymbol {
			continue
		}
		if sym.Section == elf.SHN_UNDEF {
			return 0, fmt.Errorf("%w: unresolved reference to %s", ErrMalformedExecutable, EntrySymbol)
		}
		return sym.Value, nil
	}
	return f.Entry, nil
}
