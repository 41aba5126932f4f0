// Package fixtures builds executables and honest proofs for tests and
// examples.
package fixtures

import (
	"bytes"
	"debug/elf"
	"encoding/binary"

	"github.com/vybium/vybium-valida-verifier/internal/vybium-valida/vm"
)

// ByteOrder is both a reader and an appender, as binary.LittleEndian and
// binary.BigEndian are.
type ByteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// Section is one section of a synthetic image
type Section struct {
	Name   string
	Addr   uint32
	Data   []byte
	Exec   bool
	NoBits bool   // .bss style: occupies Size bytes of memory, none of the file
	Size   uint32 // only for NoBits
}

// Image describes an ELF32 executable. Section headers are written last, so
// every proper prefix of the encoding fails to parse.
type Image struct {
	Order    ByteOrder
	Sections []Section
	Entry    uint32 // e_entry, a byte address

	// Symbols emits a symbol table defining the entry symbol at StartValue,
	// or leaving it undefined when UndefinedStart is set.
	Symbols        bool
	StartValue     uint32
	UndefinedStart bool
}

// NewImage creates a little-endian image with a single text section at
// address 0 and the entry point at instruction entry.
func NewImage(code []vm.Instruction, entry uint32) *Image {
	return &Image{
		Order: binary.LittleEndian,
		Sections: []Section{{
			Name: ".text",
			Data: vm.EncodeMachineCode(code, binary.LittleEndian),
			Exec: true,
		}},
		Entry: entry * vm.InstructionSize,
	}
}

// WithData appends an initialized data section
func (img *Image) WithData(addr uint32, words ...uint32) *Image {
	data := make([]byte, 0, 4*len(words))
	for _, w := range words {
		data = img.Order.AppendUint32(data, w)
	}
	img.Sections = append(img.Sections, Section{Name: ".data", Addr: addr, Data: data})
	return img
}

// WithStartSymbol adds a symbol table whose entry symbol points at
// instruction entry.
func (img *Image) WithStartSymbol(entry uint32) *Image {
	img.Symbols = true
	img.StartValue = entry * vm.InstructionSize
	return img
}

// Bytes encodes the image
func (img *Image) Bytes() []byte {
	order := img.Order
	if order == nil {
		order = binary.LittleEndian
	}

	const (
		headerSize  = 52
		sectionSize = 40
		symbolSize  = 16
	)

	var body bytes.Buffer
	offset := func() uint32 { return uint32(headerSize + body.Len()) }
	align := func() {
		for body.Len()%4 != 0 {
			body.WriteByte(0)
		}
	}

	shstrtab := []byte{0}
	nameOf := func(name string) uint32 {
		idx := uint32(len(shstrtab))
		shstrtab = append(shstrtab, name...)
		shstrtab = append(shstrtab, 0)
		return idx
	}

	headers := []elf.Section32{{}}
	firstText := uint16(0)
	for _, s := range img.Sections {
		align()
		h := elf.Section32{
			Name:      nameOf(s.Name),
			Type:      uint32(elf.SHT_PROGBITS),
			Flags:     uint32(elf.SHF_ALLOC),
			Addr:      s.Addr,
			Off:       offset(),
			Size:      uint32(len(s.Data)),
			Addralign: 4,
		}
		switch {
		case s.Exec:
			h.Flags |= uint32(elf.SHF_EXECINSTR)
			if firstText == 0 {
				firstText = uint16(len(headers))
			}
		case s.NoBits:
			h.Type = uint32(elf.SHT_NOBITS)
			h.Flags |= uint32(elf.SHF_WRITE)
			h.Size = s.Size
		default:
			h.Flags |= uint32(elf.SHF_WRITE)
		}
		if !s.NoBits {
			body.Write(s.Data)
		}
		headers = append(headers, h)
	}

	if img.Symbols {
		strtab := append([]byte{0}, vm.EntrySymbol...)
		strtab = append(strtab, 0)

		shndx := firstText
		if img.UndefinedStart {
			shndx = uint16(elf.SHN_UNDEF)
		}
		symbols := []elf.Sym32{
			{},
			{
				Name:  1,
				Value: img.StartValue,
				Info:  elf.ST_INFO(elf.STB_GLOBAL, elf.STT_FUNC),
				Shndx: shndx,
			},
		}

		align()
		symtabOff := offset()
		for _, sym := range symbols {
			binary.Write(&body, order, sym)
		}
		strtabIndex := uint32(len(headers) + 1)
		headers = append(headers, elf.Section32{
			Name:      nameOf(".symtab"),
			Type:      uint32(elf.SHT_SYMTAB),
			Off:       symtabOff,
			Size:      uint32(len(symbols) * symbolSize),
			Link:      strtabIndex,
			Info:      1,
			Addralign: 4,
			Entsize:   symbolSize,
		})

		strtabOff := offset()
		body.Write(strtab)
		headers = append(headers, elf.Section32{
			Name:      nameOf(".strtab"),
			Type:      uint32(elf.SHT_STRTAB),
			Off:       strtabOff,
			Size:      uint32(len(strtab)),
			Addralign: 1,
		})
	}

	shstrndx := uint16(len(headers))
	shstrName := nameOf(".shstrtab")
	shstrOff := offset()
	body.Write(shstrtab)
	headers = append(headers, elf.Section32{
		Name:      shstrName,
		Type:      uint32(elf.SHT_STRTAB),
		Off:       shstrOff,
		Size:      uint32(len(shstrtab)),
		Addralign: 1,
	})

	align()
	shoff := offset()
	for _, h := range headers {
		binary.Write(&body, order, h)
	}

	var ident [elf.EI_NIDENT]byte
	copy(ident[:], elf.ELFMAG)
	ident[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	if order == binary.BigEndian {
		ident[elf.EI_DATA] = byte(elf.ELFDATA2MSB)
	}
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	header := elf.Header32{
		Ident:     ident,
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_NONE),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     img.Entry,
		Shoff:     shoff,
		Ehsize:    headerSize,
		Shentsize: sectionSize,
		Shnum:     uint16(len(headers)),
		Shstrndx:  shstrndx,
	}

	var out bytes.Buffer
	binary.Write(&out, order, header)
	out.Write(body.Bytes())
	return out.Bytes()
}
