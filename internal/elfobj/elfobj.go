// Package elfobj writes a conforming ELF64 relocatable object file
// (e_type=ET_REL, e_machine=EM_X86_64) from the finalized output of
// internal/codegen: .text bytes, optional .data/.bss, and the symbol and
// relocation tables, following the ELF64/SysV ABI's bit-exact layout.
package elfobj

import "fmt"

// NamedOffset names a symbol at a byte offset within its enclosing
// section.
type NamedOffset struct {
	Name   string
	Offset int
	Size   int // meaningful for Funcs entries only
}

// Reloc mirrors codegen.RelaEntry without importing internal/codegen, so
// this package stays a leaf: a pure function of bytes and tables.
type Reloc struct {
	Offset     int
	Type       uint32
	Addend     int64
	SymbolName string
}

// Object is everything the ELF writer needs: the finalized text bytes,
// the data/bss segments, and the symbol/relocation tables partitioned by
// kind. compiler.Compiler assembles one of these per compiled unit.
type Object struct {
	SourceFile string

	Text []byte
	Data []byte
	Bss  int // .bss is NOBITS: size only, no bytes

	// Local symbols: compiler-internal labels, plus one entry per named
	// data/bss item, keyed to their enclosing section.
	LocalText []NamedOffset
	LocalData []NamedOffset
	LocalBss  []NamedOffset

	// Global symbols.
	Funcs []NamedOffset // public Nmet functions (STT_FUNC)
	FFI   []string      // undefined externals referenced via CALL

	// EntrySymbol names the entry-point symbol ("_start" by default);
	// empty when compiling as a library (no entry point symbol is
	// emitted).
	EntrySymbol string

	Relocs []Reloc
}

// ELF64/SysV ABI constants.
const (
	elfHeaderSize = 64
	shdrEntSize   = 64
	symEntSize    = 24
	relaEntSize   = 24

	shtNull    = 0
	shtProgbits = 1
	shtSymtab  = 2
	shtStrtab  = 3
	shtRela    = 4
	shtNobits  = 8

	shfWrite     = 0x1
	shfAlloc     = 0x2
	shfExecinstr = 0x4

	sttNotype  = 0
	sttFunc    = 2
	sttSection = 3
	sttFile    = 4

	stbLocal  = 0
	stbGlobal = 1
)

func stInfo(bind, typ byte) byte { return bind<<4 | typ }

// section is one payload the writer lays out and pads.
type section struct {
	name      string
	shType    uint32
	flags     uint64
	addralign uint64
	entsize   uint64
	link      int // resolved to a section index after all sections are known
	info      uint32
	payload   []byte
}

// strtab is a NUL-prefixed, NUL-terminated string table with idempotent
// insertion: re-inserting an already-present name returns its existing
// offset rather than appending a duplicate.
type strtab struct {
	bytes  []byte
	offset map[string]uint32
}

func newStrtab() *strtab {
	return &strtab{bytes: []byte{0}, offset: map[string]uint32{"": 0}}
}

func (s *strtab) insert(name string) uint32 {
	if off, ok := s.offset[name]; ok {
		return off
	}
	off := uint32(len(s.bytes))
	s.bytes = append(s.bytes, []byte(name)...)
	s.bytes = append(s.bytes, 0)
	s.offset[name] = off
	return off
}

// symRow is one pending 24-byte symtab row, pre-index assignment.
type symRow struct {
	name    string
	bind    byte
	typ     byte
	shndx   uint16
	value   uint64
	size    uint64
}

// Write assembles the complete ELF64 relocatable object.
func (o *Object) Write() ([]byte, error) {
	shstrtab := newStrtab()
	strtabT := newStrtab()

	var sections []*section
	secIndex := map[string]int{} // name -> index in the final section-header table (1-based; 0 is the null header)

	addSection := func(s *section) {
		sections = append(sections, s)
		secIndex[s.name] = len(sections) // 1-based
		shstrtab.insert(s.name)
	}

	addSection(&section{name: ".text", shType: shtProgbits, flags: shfAlloc | shfExecinstr, addralign: 16, payload: o.Text})
	if len(o.Data) > 0 {
		addSection(&section{name: ".data", shType: shtProgbits, flags: shfAlloc | shfWrite, addralign: 4, payload: o.Data})
	}
	if o.Bss > 0 {
		addSection(&section{name: ".bss", shType: shtNobits, flags: shfAlloc | shfWrite, addralign: 4, payload: nil})
	}
	addSection(&section{name: ".shstrtab", shType: shtStrtab, addralign: 1})
	addSection(&section{name: ".symtab", shType: shtSymtab, addralign: 8, entsize: symEntSize})
	haveRela := len(o.Relocs) > 0
	if haveRela {
		addSection(&section{name: ".rela.text", shType: shtRela, addralign: 8, entsize: relaEntSize})
	}
	addSection(&section{name: ".strtab", shType: shtStrtab, addralign: 1})

	// === Symbol table ===
	var rows []symRow
	rows = append(rows, symRow{}) // null symbol

	rows = append(rows, symRow{name: o.SourceFile, bind: stbLocal, typ: sttFile, shndx: 0xfff1 /* SHN_ABS */})

	for _, name := range []string{".text", ".data", ".bss"} {
		if idx, ok := secIndex[name]; ok {
			rows = append(rows, symRow{name: "", bind: stbLocal, typ: sttSection, shndx: uint16(idx)})
		}
	}

	for _, d := range o.LocalText {
		rows = append(rows, symRow{name: d.Name, bind: stbLocal, typ: sttNotype, shndx: uint16(secIndex[".text"]), value: uint64(d.Offset)})
	}
	for _, d := range o.LocalData {
		rows = append(rows, symRow{name: d.Name, bind: stbLocal, typ: sttNotype, shndx: uint16(secIndex[".data"]), value: uint64(d.Offset)})
	}
	for _, d := range o.LocalBss {
		rows = append(rows, symRow{name: d.Name, bind: stbLocal, typ: sttNotype, shndx: uint16(secIndex[".bss"]), value: uint64(d.Offset)})
	}

	firstGlobal := uint32(len(rows))

	for _, name := range o.FFI {
		rows = append(rows, symRow{name: name, bind: stbGlobal, typ: sttNotype, shndx: 0})
	}
	for _, f := range o.Funcs {
		rows = append(rows, symRow{name: f.Name, bind: stbGlobal, typ: sttFunc, shndx: uint16(secIndex[".text"]), value: uint64(f.Offset), size: uint64(f.Size)})
	}
	if o.EntrySymbol != "" {
		rows = append(rows, symRow{name: o.EntrySymbol, bind: stbGlobal, typ: sttNotype, shndx: uint16(secIndex[".text"])})
	}

	symIndex := map[string]uint32{}
	symtabBytes := make([]byte, 0, len(rows)*symEntSize)
	for i, r := range rows {
		nameOff := uint32(0)
		if r.name != "" {
			nameOff = strtabT.insert(r.name)
			symIndex[r.name] = uint32(i)
		}
		row := make([]byte, symEntSize)
		putU32(row[0:], nameOff)
		row[4] = stInfo(r.bind, r.typ)
		row[5] = 0
		putU16(row[6:], r.shndx)
		putU64(row[8:], r.value)
		putU64(row[16:], r.size)
		symtabBytes = append(symtabBytes, row...)
	}

	// === Relocations ===
	relaBytes := make([]byte, 0, len(o.Relocs)*relaEntSize)
	for _, r := range o.Relocs {
		idx, ok := symIndex[r.SymbolName]
		if !ok {
			return nil, fmt.Errorf("elfobj: relocation references unknown symbol %q", r.SymbolName)
		}
		row := make([]byte, relaEntSize)
		putU64(row[0:], uint64(r.Offset))
		putU64(row[8:], uint64(idx)<<32|uint64(r.Type))
		putU64(row[16:], uint64(r.Addend))
		relaBytes = append(relaBytes, row...)
	}

	// Fill in payloads and cross-links now that strtab/symtab/rela exist.
	for _, s := range sections {
		switch s.name {
		case ".shstrtab":
			s.payload = shstrtab.bytes
		case ".symtab":
			s.payload = symtabBytes
			s.link = secIndex[".strtab"]
			s.info = firstGlobal
		case ".rela.text":
			s.payload = relaBytes
			s.link = secIndex[".symtab"]
			s.info = uint32(secIndex[".text"])
		case ".strtab":
			s.payload = strtabT.bytes
		}
	}

	return assemble(sections, secIndex, shstrtab)
}

func align16(n int) int { return (n + 15) &^ 15 }

func assemble(sections []*section, secIndex map[string]int, shstrtab *strtab) ([]byte, error) {
	n := len(sections)
	shOff := elfHeaderSize
	payloadStart := shOff + (n+1)*shdrEntSize

	offsets := make([]int, n)
	sizes := make([]int, n)
	cursor := payloadStart
	for i, s := range sections {
		sizes[i] = len(s.payload)
		if s.shType == shtNobits {
			offsets[i] = cursor // NOBITS contributes no file bytes but still needs a plausible offset
			continue
		}
		offsets[i] = cursor
		cursor = align16(cursor + len(s.payload))
	}
	total := cursor

	out := make([]byte, total)

	// ELF header
	out[0], out[1], out[2], out[3] = 0x7f, 'E', 'L', 'F'
	out[4] = 2 // ELFCLASS64
	out[5] = 1 // ELFDATA2LSB
	out[6] = 1 // EV_CURRENT
	out[7] = 0 // ELFOSABI_NONE
	putU16(out[16:], 1)      // e_type: ET_REL
	putU16(out[18:], 0x3e)   // e_machine: EM_X86_64
	putU32(out[20:], 1)      // e_version
	putU64(out[24:], 0)      // e_entry
	putU64(out[32:], 0)      // e_phoff
	putU64(out[40:], uint64(shOff)) // e_shoff
	putU32(out[48:], 0)      // e_flags
	putU16(out[52:], elfHeaderSize)
	putU16(out[54:], 0) // e_phentsize
	putU16(out[56:], 0) // e_phnum
	putU16(out[58:], shdrEntSize)
	putU16(out[60:], uint16(n+1))
	putU16(out[62:], uint16(secIndex[".shstrtab"]))

	// Section header 0: SHT_NULL, all zero.
	for i, s := range sections {
		row := out[shOff+(i+1)*shdrEntSize:]
		putU32(row[0:], shstrtab.insert(s.name))
		putU32(row[4:], s.shType)
		putU64(row[8:], s.flags)
		putU64(row[16:], 0) // sh_addr: not loaded (relocatable object)
		putU64(row[24:], uint64(offsets[i]))
		putU64(row[32:], uint64(sizes[i]))
		putU32(row[40:], uint32(s.link))
		putU32(row[44:], s.info)
		putU64(row[48:], s.addralign)
		putU64(row[56:], s.entsize)

		if s.shType != shtNobits {
			copy(out[offsets[i]:], s.payload)
		}
	}

	return out, nil
}

func putU16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
