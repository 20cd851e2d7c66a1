package elfobj

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteProducesAConformingELF64Header(t *testing.T) {
	o := &Object{
		SourceFile:  "prog.nmt",
		Text:        []byte{0x90, 0x90, 0xc3},
		EntrySymbol: "_start",
		Funcs:       []NamedOffset{{Name: "main", Offset: 0, Size: 3}},
	}
	out, err := o.Write()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(out), elfHeaderSize)

	assert.Equal(t, []byte{0x7f, 'E', 'L', 'F'}, out[0:4])
	assert.Equal(t, byte(2), out[4]) // ELFCLASS64
	assert.Equal(t, byte(1), out[5]) // ELFDATA2LSB
	assert.Equal(t, uint16(1), le16(out[16:]))    // e_type: ET_REL
	assert.Equal(t, uint16(0x3e), le16(out[18:])) // e_machine: EM_X86_64
}

func TestWriteOmitsDataAndBssSectionsWhenEmpty(t *testing.T) {
	o := &Object{SourceFile: "a.nmt", Text: []byte{0xc3}}
	out, err := o.Write()
	require.NoError(t, err)

	shnum := le16(out[60:])
	shstrndx := le16(out[62:])
	require.Less(t, int(shstrndx), int(shnum))

	names := sectionNames(t, out)
	assert.Contains(t, names, ".text")
	assert.Contains(t, names, ".symtab")
	assert.Contains(t, names, ".strtab")
	assert.NotContains(t, names, ".data")
	assert.NotContains(t, names, ".bss")
	assert.NotContains(t, names, ".rela.text")
}

func TestWriteIncludesDataBssAndRelaWhenPresent(t *testing.T) {
	o := &Object{
		SourceFile: "a.nmt",
		Text:       []byte{0xb8, 0, 0, 0, 0},
		Data:       []byte("hi\x00"),
		Bss:        8,
		LocalData:  []NamedOffset{{Name: "data0", Offset: 0}},
		Relocs:     []Reloc{{Offset: 1, Type: 0x0B, Addend: 0, SymbolName: "data0"}},
	}
	out, err := o.Write()
	require.NoError(t, err)
	names := sectionNames(t, out)
	assert.Contains(t, names, ".data")
	assert.Contains(t, names, ".bss")
	assert.Contains(t, names, ".rela.text")
}

func TestWriteRejectsRelocationToUnknownSymbol(t *testing.T) {
	o := &Object{
		SourceFile: "a.nmt",
		Text:       []byte{0x90},
		Relocs:     []Reloc{{Offset: 0, SymbolName: "ghost"}},
	}
	_, err := o.Write()
	assert.Error(t, err)
}

func TestStrtabIsIdempotent(t *testing.T) {
	s := newStrtab()
	a := s.insert("foo")
	b := s.insert("foo")
	assert.Equal(t, a, b)
	c := s.insert("bar")
	assert.NotEqual(t, a, c)
}

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }

// sectionNames re-reads the section header table's names out of .shstrtab
// for assertions, mirroring what a linker would do with readelf -S.
func sectionNames(t *testing.T, elf []byte) []string {
	t.Helper()
	shoff := le64(elf[40:])
	shnum := le16(elf[60:])
	shstrndx := le16(elf[62:])

	strOff := le64(elf[int(shoff)+int(shstrndx)*shdrEntSize+24:])

	var names []string
	for i := 0; i < int(shnum); i++ {
		row := elf[int(shoff)+i*shdrEntSize:]
		nameOff := le32(row)
		names = append(names, cstr(elf[int(strOff)+int(nameOff):]))
	}
	return names
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func le64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

func cstr(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
