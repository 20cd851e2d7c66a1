// Package codegen implements the append-only instruction buffer, the
// data/bss segments, the symbol table, the peephole pass, and the
// relocation pass that together turn a stream of typed instructions into
// finalized .text bytes plus the tables the ELF writer consumes.
package codegen

import (
	"fmt"

	"github.com/mahanfr/nmet/internal/encoder"
	"github.com/mahanfr/nmet/internal/operand"
)

// SymbolKind classifies what a symbol table entry refers to.
type SymbolKind int

const (
	TextSec SymbolKind = iota
	DataSec
	BssSec
	Ffi
	Global
	Other
)

func (k SymbolKind) String() string {
	switch k {
	case TextSec:
		return "text"
	case DataSec:
		return "data"
	case BssSec:
		return "bss"
	case Ffi:
		return "ffi"
	case Global:
		return "global"
	default:
		return "other"
	}
}

// Symbol is a name→(offset,kind) symbol table entry. Index is meaningful
// only for DataSec/BssSec entries (the item's position within its
// section), used by the relocation pass as the RELA addend.
type Symbol struct {
	Name   string
	Offset int
	Kind   SymbolKind
	Index  int
}

// DataItem is one named blob in the .data segment.
type DataItem struct {
	Name       string
	Bytes      []byte
	Index      int
	ByteOffset int
	ValueType  string
}

// BSSItem is one named reservation in the .bss segment.
type BSSItem struct {
	Name       string
	Index      int
	ByteOffset int
	Size       int
}

// RelaEntry is a pending relocation, resolved into ELF RELA bytes by
// internal/elfobj.
type RelaEntry struct {
	Offset     int
	Type       uint32
	Addend     int64
	SymbolName string
	SymbolKind SymbolKind
}

// x86-64 SysV relocation types this compiler emits.
const (
	R_X86_64_PC32 uint32 = 0x02
	R_X86_64_32S  uint32 = 0x0B
)

// item is one entry in the buffer's instruction stream: either a real
// instruction or a zero-byte label sentinel.
type item struct {
	instr       encoder.Instruction
	isLabel     bool
	labelName   string // valid only when isLabel
	placeholder int    // byte offset of an unresolved 4-byte field, or -1
}

// Buffer is the Codegen buffer: the single owner of the instruction
// stream, data/bss segments, symbol table and relocation list for one
// compilation unit. There is no aliasing; a compiler.Compiler owns exactly
// one Buffer.
type Buffer struct {
	items   []item
	cursor  int // running .text byte offset, valid only pre-relocation too since emit is size-stable
	Data    []DataItem
	Bss     []BSSItem
	Symbols map[string]Symbol
	Relocs  []RelaEntry

	dataBytes int
	bssBytes  int
}

// New returns an empty Buffer.
func New() *Buffer {
	return &Buffer{Symbols: make(map[string]Symbol)}
}

// Emit appends an instruction in emission order, assembling it eagerly;
// Rela/Label operands are encoded as zero-valued placeholders so length
// never depends on whether the target is already known.
func (b *Buffer) Emit(m encoder.Mnemonic, ops ...operand.Operand) {
	bytes, ph, err := encoder.EncodeWithPlaceholder(m, ops)
	if err != nil {
		panic(fmt.Sprintf("codegen: %v", err))
	}
	b.items = append(b.items, item{
		instr:       encoder.Instruction{Mnemonic: m, Operands: ops, Bytes: bytes},
		placeholder: ph,
	})
	b.cursor += len(bytes)
}

// DefineLabel appends a zero-byte sentinel and records the label's offset
// in the symbol table as TextSec. If a symbol of the same name was
// already provisionally registered as Ffi by Call, this promotes it to a
// local TextSec symbol — a forward call resolved within the same unit.
func (b *Buffer) DefineLabel(name string) {
	b.items = append(b.items, item{isLabel: true, labelName: name, placeholder: -1})
	b.Symbols[name] = Symbol{Name: name, Offset: b.cursor, Kind: TextSec}
}

// LabelNames returns every DefineLabel name in emission order, including
// ones later promoted from a provisional Ffi registration. Used to build
// a deterministically ordered local-symbol table.
func (b *Buffer) LabelNames() []string {
	var names []string
	for _, it := range b.items {
		if it.isLabel {
			names = append(names, it.labelName)
		}
	}
	return names
}

// AddData allocates a fresh data item, returning its generated name.
func (b *Buffer) AddData(bytes []byte, valueType string) string {
	name := fmt.Sprintf("data%d", len(b.Data))
	d := DataItem{Name: name, Bytes: bytes, Index: len(b.Data), ByteOffset: b.dataBytes, ValueType: valueType}
	b.Data = append(b.Data, d)
	b.dataBytes += len(bytes)
	b.Symbols[name] = Symbol{Name: name, Offset: d.ByteOffset, Kind: DataSec, Index: d.Index}
	return name
}

// AddBss allocates a fresh zero-initialized reservation, returning its
// generated name.
func (b *Buffer) AddBss(size int) string {
	name := fmt.Sprintf("arr%d", len(b.Bss))
	it := BSSItem{Name: name, Index: len(b.Bss), ByteOffset: b.bssBytes, Size: size}
	b.Bss = append(b.Bss, it)
	b.bssBytes += size
	b.Symbols[name] = Symbol{Name: name, Offset: it.ByteOffset, Kind: BssSec, Index: it.Index}
	return name
}

// Call emits `CALL name`. If name isn't yet a known symbol it's
// registered provisionally as Ffi; a later DefineLabel of the same name
// promotes it to TextSec.
func (b *Buffer) Call(name string) {
	if _, ok := b.Symbols[name]; !ok {
		b.Symbols[name] = Symbol{Name: name, Kind: Ffi}
	}
	b.Emit(encoder.CALL, operand.Rel(name))
}

// TextLen returns the current cumulative length of the instruction
// stream in bytes.
func (b *Buffer) TextLen() int { return b.cursor }

// ReserveFrame emits `sub rsp, imm32` with a zero placeholder immediate
// and returns an opaque handle for PatchFrame. A function's prologue
// calls this before its body is lowered, since the frame size isn't
// known until every local variable has been allocated a slot.
func (b *Buffer) ReserveFrame() int {
	bytes, ph := encoder.ReserveSubRsp()
	idx := len(b.items)
	b.items = append(b.items, item{
		instr:       encoder.Instruction{Mnemonic: encoder.SUB, Bytes: bytes},
		placeholder: ph,
	})
	b.cursor += len(bytes)
	return idx
}

// PatchFrame overwrites the immediate reserved by ReserveFrame once the
// function's total stack usage is known. size 0 leaves the reservation
// at its harmless sub rsp,0 no-op.
func (b *Buffer) PatchFrame(handle int, size int32) {
	it := &b.items[handle]
	u := uint32(size)
	it.instr.Bytes[it.placeholder] = byte(u)
	it.instr.Bytes[it.placeholder+1] = byte(u >> 8)
	it.instr.Bytes[it.placeholder+2] = byte(u >> 16)
	it.instr.Bytes[it.placeholder+3] = byte(u >> 24)
}
