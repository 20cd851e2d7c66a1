// Package reg models the x86-64 general purpose registers used by the
// encoder: size class, 3-bit encoding index, and the REX extension bit.
package reg

// Size classifies the width of a register reference in bits.
type Size uint8

const (
	Size8  Size = 8
	Size16 Size = 16
	Size32 Size = 32
	Size64 Size = 64
)

// Reg is a tagged register value: an encoding index in 0..7 plus the REX
// extension bit for r8-r15, and a size class. New-style 8-bit registers
// (SPL/BPL/SIL/DIL) are distinguished from the legacy AH/CH/DH/BH quartet
// even though both share encoding indices 4..7, because the former forces
// a REX prefix and the latter forbids one.
type Reg struct {
	size   Size
	enc    byte // 0..7
	ext    bool // REX.R/X/B applies
	new8   bool // SPL/BPL/SIL/DIL: needs REX even with ext=false
	legacy bool // AH/CH/DH/BH: incompatible with any REX prefix
}

// Size returns the register's width in bits.
func (r Reg) Size() Size { return r.size }

// Encoding returns the 3-bit encoding index (0..7) used in ModR/M and SIB.
func (r Reg) Encoding() byte { return r.enc }

// Extended reports whether this register requires the REX extension bit
// (r8-r15 family).
func (r Reg) Extended() bool { return r.ext }

// NeedsREX reports whether referencing this register forces a REX prefix
// even when no other bit would otherwise be set.
func (r Reg) NeedsREX() bool { return r.ext || r.new8 }

// IsLegacyHighByte reports whether this is one of AH/CH/DH/BH, which cannot
// be addressed in an instruction that also carries a REX prefix.
func (r Reg) IsLegacyHighByte() bool { return r.legacy }

func mk(size Size, enc byte, ext, new8, legacy bool) Reg {
	return Reg{size: size, enc: enc, ext: ext, new8: new8, legacy: legacy}
}

// 64-bit registers.
var (
	RAX = mk(Size64, 0, false, false, false)
	RCX = mk(Size64, 1, false, false, false)
	RDX = mk(Size64, 2, false, false, false)
	RBX = mk(Size64, 3, false, false, false)
	RSP = mk(Size64, 4, false, false, false)
	RBP = mk(Size64, 5, false, false, false)
	RSI = mk(Size64, 6, false, false, false)
	RDI = mk(Size64, 7, false, false, false)
	R8  = mk(Size64, 0, true, false, false)
	R9  = mk(Size64, 1, true, false, false)
	R10 = mk(Size64, 2, true, false, false)
	R11 = mk(Size64, 3, true, false, false)
	R12 = mk(Size64, 4, true, false, false)
	R13 = mk(Size64, 5, true, false, false)
	R14 = mk(Size64, 6, true, false, false)
	R15 = mk(Size64, 7, true, false, false)
)

// 32-bit registers.
var (
	EAX = mk(Size32, 0, false, false, false)
	ECX = mk(Size32, 1, false, false, false)
	EDX = mk(Size32, 2, false, false, false)
	EBX = mk(Size32, 3, false, false, false)
	ESP = mk(Size32, 4, false, false, false)
	EBP = mk(Size32, 5, false, false, false)
	ESI = mk(Size32, 6, false, false, false)
	EDI = mk(Size32, 7, false, false, false)
	R8D = mk(Size32, 0, true, false, false)
	R9D = mk(Size32, 1, true, false, false)
)

// 16-bit registers.
var (
	AX  = mk(Size16, 0, false, false, false)
	CX  = mk(Size16, 1, false, false, false)
	DX  = mk(Size16, 2, false, false, false)
	BX  = mk(Size16, 3, false, false, false)
	SP  = mk(Size16, 4, false, false, false)
	BP  = mk(Size16, 5, false, false, false)
	SI  = mk(Size16, 6, false, false, false)
	DI  = mk(Size16, 7, false, false, false)
	R8W = mk(Size16, 0, true, false, false)
	R9W = mk(Size16, 1, true, false, false)
)

// 8-bit legacy registers (AH/CH/DH/BH cannot carry a REX prefix).
var (
	AL = mk(Size8, 0, false, false, false)
	CL = mk(Size8, 1, false, false, false)
	DL = mk(Size8, 2, false, false, false)
	BL = mk(Size8, 3, false, false, false)
	AH = mk(Size8, 4, false, false, true)
	CH = mk(Size8, 5, false, false, true)
	DH = mk(Size8, 6, false, false, true)
	BH = mk(Size8, 7, false, false, true)
)

// New-style 8-bit registers: require REX even though encoding 4..7 overlaps
// the legacy high-byte registers.
var (
	SPL = mk(Size8, 4, false, true, false)
	BPL = mk(Size8, 5, false, true, false)
	SIL = mk(Size8, 6, false, true, false)
	DIL = mk(Size8, 7, false, true, false)
	R8B = mk(Size8, 0, true, false, false)
	R9B = mk(Size8, 1, true, false, false)
)

// byName is consulted by FromString; names below is the reverse map,
// consulted by String.
var byName = map[string]Reg{
	"rax": RAX, "rcx": RCX, "rdx": RDX, "rbx": RBX,
	"rsp": RSP, "rbp": RBP, "rsi": RSI, "rdi": RDI,
	"r8": R8, "r9": R9, "r10": R10, "r11": R11,
	"r12": R12, "r13": R13, "r14": R14, "r15": R15,
	"eax": EAX, "ecx": ECX, "edx": EDX, "ebx": EBX,
	"esp": ESP, "ebp": EBP, "esi": ESI, "edi": EDI,
	"r8d": R8D, "r9d": R9D,
	"ax": AX, "cx": CX, "dx": DX, "bx": BX,
	"sp": SP, "bp": BP, "si": SI, "di": DI,
	"r8w": R8W, "r9w": R9W,
	"al": AL, "cl": CL, "dl": DL, "bl": BL,
	"ah": AH, "ch": CH, "dh": DH, "bh": BH,
	"spl": SPL, "bpl": BPL, "sil": SIL, "dil": DIL,
	"r8b": R8B, "r9b": R9B,
}

var names = map[Reg]string{
	RAX: "rax", RCX: "rcx", RDX: "rdx", RBX: "rbx",
	RSP: "rsp", RBP: "rbp", RSI: "rsi", RDI: "rdi",
	R8: "r8", R9: "r9", R10: "r10", R11: "r11",
	R12: "r12", R13: "r13", R14: "r14", R15: "r15",
	EAX: "eax", ECX: "ecx", EDX: "edx", EBX: "ebx",
	ESP: "esp", EBP: "ebp", ESI: "esi", EDI: "edi",
	R8D: "r8d", R9D: "r9d",
	AX: "ax", CX: "cx", DX: "dx", BX: "bx",
	SP: "sp", BP: "bp", SI: "si", DI: "di",
	R8W: "r8w", R9W: "r9w",
	AL: "al", CL: "cl", DL: "dl", BL: "bl",
	AH: "ah", CH: "ch", DH: "dh", BH: "bh",
	SPL: "spl", BPL: "bpl", SIL: "sil", DIL: "dil",
	R8B: "r8b", R9B: "r9b",
}

// FromString resolves a lowercase register name such as "rax" or "dil".
func FromString(s string) (Reg, bool) {
	r, ok := byName[s]
	return r, ok
}

// String renders the register using its canonical lowercase assembly name.
func (r Reg) String() string {
	if n, ok := names[r]; ok {
		return n
	}
	return "?reg"
}

// Sized returns the register from the same family as r but at the given
// size, e.g. Sized(RAX, Size8) == AL. Used when a value's natural register
// (the accumulator, a base pointer, ...) must be narrowed to a smaller
// access width.
func Sized(family Reg, size Size) Reg {
	switch {
	case family == RAX || family == EAX || family == AX || family == AL:
		return pick(size, AL, AX, EAX, RAX)
	case family == RBX || family == EBX || family == BX || family == BL:
		return pick(size, BL, BX, EBX, RBX)
	case family == RCX || family == ECX || family == CX || family == CL:
		return pick(size, CL, CX, ECX, RCX)
	case family == RDX || family == EDX || family == DX || family == DL:
		return pick(size, DL, DX, EDX, RDX)
	case family == RSI || family == ESI || family == SI || family == SIL:
		return pick(size, SIL, SI, ESI, RSI)
	case family == RDI || family == EDI || family == DI || family == DIL:
		return pick(size, DIL, DI, EDI, RDI)
	case family == R8 || family == R8D || family == R8W || family == R8B:
		return pick(size, R8B, R8W, R8D, R8)
	case family == R9 || family == R9D || family == R9W || family == R9B:
		return pick(size, R9B, R9W, R9D, R9)
	default:
		return family
	}
}

func pick(size Size, r8, r16, r32, r64 Reg) Reg {
	switch size {
	case Size8:
		return r8
	case Size16:
		return r16
	case Size32:
		return r32
	default:
		return r64
	}
}

// ArgRegs lists the SysV AMD64 integer/pointer argument registers in order.
var ArgRegs = [6]Reg{RDI, RSI, RDX, RCX, R8, R9}
