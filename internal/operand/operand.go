// Package operand implements the Operand sum type consumed by the encoder:
// registers, immediates, memory operands, intra-unit labels, and named
// relocation targets.
package operand

import "github.com/mahanfr/nmet/internal/reg"

// Kind tags which variant of Operand is populated.
type Kind uint8

const (
	KindReg Kind = iota
	KindImm32
	KindImm64
	KindMem
	KindLabel
	KindRela
)

// Scale is the SIB scale factor applied to an index register.
type Scale uint8

const (
	Scale1 Scale = 1
	Scale2 Scale = 2
	Scale4 Scale = 4
	Scale8 Scale = 8
)

// Index is an optional (register, scale) pair inside a Mem operand.
type Index struct {
	Reg   reg.Reg
	Scale Scale
}

// Mem is a base+displacement(+index*scale) memory reference. Size is the
// access width in bytes; 0 means "unspecified, infer from the counterpart
// operand".
type Mem struct {
	Base    reg.Reg
	HasDisp bool
	Disp    int32
	HasIdx  bool
	Idx     Index
	Size    int // 0, 1, 2, 4, or 8
}

// Operand is a tagged union over the six shapes the encoder accepts. Only
// the field matching Kind is meaningful; the zero Operand is invalid.
type Operand struct {
	Kind  Kind
	Reg   reg.Reg
	Imm32 int32
	Imm64 int64
	Mem   Mem
	Name  string // Label or Rela target name
}

// R builds a register operand.
func R(r reg.Reg) Operand { return Operand{Kind: KindReg, Reg: r} }

// I32 builds a 32-bit immediate operand.
func I32(v int32) Operand { return Operand{Kind: KindImm32, Imm32: v} }

// I64 builds a 64-bit immediate operand.
func I64(v int64) Operand { return Operand{Kind: KindImm64, Imm64: v} }

// M builds a base-only memory operand, e.g. [rax].
func M(base reg.Reg, size int) Operand {
	return Operand{Kind: KindMem, Mem: Mem{Base: base, Size: size}}
}

// MDisp builds a base+displacement memory operand, e.g. [rbp-8].
func MDisp(base reg.Reg, disp int32, size int) Operand {
	return Operand{Kind: KindMem, Mem: Mem{Base: base, HasDisp: true, Disp: disp, Size: size}}
}

// MIndex builds a base+displacement+index*scale memory operand, e.g.
// [rbx + rax*8]. scale must be one of 1, 2, 4, 8; any other value is a
// construction-time programmer error and panics rather than producing
// a malformed SIB byte.
func MIndex(base reg.Reg, disp int32, idx reg.Reg, scale Scale, size int) Operand {
	switch scale {
	case Scale1, Scale2, Scale4, Scale8:
	default:
		panic("operand: invalid SIB scale")
	}
	return Operand{Kind: KindMem, Mem: Mem{
		Base: base, HasDisp: disp != 0, Disp: disp,
		HasIdx: true, Idx: Index{Reg: idx, Scale: scale},
		Size: size,
	}}
}

// Lbl builds a Label operand naming an intra-unit jump/call target.
func Lbl(name string) Operand { return Operand{Kind: KindLabel, Name: name} }

// Rel builds a Rela operand naming a symbol requiring a relocation entry.
func Rel(name string) Operand { return Operand{Kind: KindRela, Name: name} }
