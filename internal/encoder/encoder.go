// Package encoder assembles typed Instructions (a mnemonic plus 0, 1,
// or 2 operands) into x86-64 machine code bytes, applying the
// REX/ModR/M/SIB/displacement rules by hand the way Nmet's own
// reference assembler does.
//
// Encoding is a pure function of the instruction: it never touches a
// symbol table. References to a Label or Rela operand are substituted
// with a zero-valued 32-bit placeholder so the instruction's encoded
// length never depends on whether the target is already known.
package encoder

import (
	"fmt"

	"github.com/mahanfr/nmet/internal/operand"
	"github.com/mahanfr/nmet/internal/reg"
)

// Mnemonic enumerates the instructions this encoder supports.
type Mnemonic uint8

const (
	MOV Mnemonic = iota
	LEA
	CMOVE
	CMOVNE
	CMOVG
	CMOVL
	CMOVGE
	CMOVLE
	PUSH
	POP
	ADD
	SUB
	IMUL
	IDIV
	MUL
	OR
	AND
	SAL
	SAR
	SHR
	CMP
	TEST
	CQO
	NEG
	NOT
	CALL
	JMP
	JZ
	JNZ
	JNE
	SYSCALL
	LEAVE
	RET
	NOP
)

var mnemonicNames = map[Mnemonic]string{
	MOV: "mov", LEA: "lea", CMOVE: "cmove", CMOVNE: "cmovne", CMOVG: "cmovg",
	CMOVL: "cmovl", CMOVGE: "cmovge", CMOVLE: "cmovle", PUSH: "push", POP: "pop",
	ADD: "add", SUB: "sub", IMUL: "imul", IDIV: "idiv", MUL: "mul", OR: "or",
	AND: "and", SAL: "sal", SAR: "sar", SHR: "shr", CMP: "cmp", TEST: "test",
	CQO: "cqo", NEG: "neg", NOT: "not", CALL: "call", JMP: "jmp", JZ: "jz",
	JNZ: "jnz", JNE: "jne", SYSCALL: "syscall", LEAVE: "leave", RET: "ret", NOP: "nop",
}

func (m Mnemonic) String() string {
	if n, ok := mnemonicNames[m]; ok {
		return n
	}
	return "?mnemonic"
}

// Instruction is mnemonic + 0/1/2 operands, together with its cached
// encoded bytes. Bytes is computed eagerly at construction via Encode and
// may be recomputed once during the relocation pass.
type Instruction struct {
	Mnemonic Mnemonic
	Operands []operand.Operand
	Bytes    []byte
}

// New encodes a fresh Instruction, panicking on unsupported operand shapes
// — those are compiler bugs, not user-facing errors.
func New(m Mnemonic, ops ...operand.Operand) Instruction {
	b, err := Encode(m, ops)
	if err != nil {
		panic(fmt.Sprintf("encoder: %s %v: %v", m, ops, err))
	}
	return Instruction{Mnemonic: m, Operands: ops, Bytes: b}
}

// rexBits accumulates the four REX components before they're folded into
// a single prefix byte.
type rexBits struct {
	w, r, x, b bool
	force      bool // new-style 8-bit register forces REX even at 0x40
}

func (rb rexBits) byte() byte {
	v := byte(0x40)
	if rb.w {
		v |= 0x08
	}
	if rb.r {
		v |= 0x04
	}
	if rb.x {
		v |= 0x02
	}
	if rb.b {
		v |= 0x01
	}
	return v
}

func (rb rexBits) needed() bool {
	return rb.w || rb.r || rb.x || rb.b || rb.force
}

// modrmMem assembles the ModR/M (and, if needed, SIB and displacement)
// bytes addressing a Mem operand, with regField occupying the ModR/M
// "reg" slot. It returns the bytes together with the rexBits contributed
// by the base/index registers. Memory operands never carry Rela/Label
// references, so no placeholder bytes are produced here.
func modrmMem(regField byte, m operand.Mem) (bytes []byte, rb rexBits) {
	if m.HasIdx {
		rb.x = m.Idx.Reg.Extended()
		rb.b = m.Base.Extended()
		disp := m.Disp
		hasDisp := m.HasDisp
		// RBP/R13 base with SIB and no displacement still needs an
		// explicit disp8=0: mod=00,rm=101 is the no-base/disp32 form.
		if m.Base.Encoding() == 5 && !hasDisp {
			hasDisp = true
			disp = 0
		}
		mod := byte(0x00)
		if hasDisp {
			if disp > -128 && disp < 128 {
				mod = 0x01
			} else {
				mod = 0x02
			}
		}
		modrm := mod<<6 | regField<<3 | 0x04 // rm=100 => SIB follows
		scaleLog2 := scaleLog2(m.Idx.Scale)
		sib := scaleLog2<<6 | (m.Idx.Reg.Encoding())<<3 | m.Base.Encoding()
		bytes = append(bytes, modrm, sib)
		if hasDisp {
			if mod == 0x01 {
				bytes = append(bytes, byte(int8(disp)))
			} else {
				bytes = append(bytes, u32le(uint32(disp))...)
			}
		}
		return bytes, rb
	}

	rb.b = m.Base.Extended()
	needsSIB := m.Base.Encoding() == 4 // RSP/R12 can't be addressed without a SIB byte
	disp := m.Disp
	hasDisp := m.HasDisp
	if m.Base.Encoding() == 5 && !hasDisp {
		hasDisp = true
		disp = 0
	}
	mod := byte(0x00)
	if hasDisp {
		if disp > -128 && disp < 128 {
			mod = 0x01
		} else {
			mod = 0x02
		}
	}
	modrm := mod<<6 | regField<<3 | m.Base.Encoding()
	bytes = append(bytes, modrm)
	if needsSIB {
		bytes = append(bytes, 0x24) // scale=00, index=100 (none), base=100 (rsp/r12)
	}
	if hasDisp {
		if mod == 0x01 {
			bytes = append(bytes, byte(int8(disp)))
		} else if mod == 0x02 {
			bytes = append(bytes, u32le(uint32(disp))...)
		}
	}
	return bytes, rb
}

func scaleLog2(s operand.Scale) byte {
	switch s {
	case operand.Scale1:
		return 0
	case operand.Scale2:
		return 1
	case operand.Scale4:
		return 2
	case operand.Scale8:
		return 3
	default:
		panic("encoder: invalid scale")
	}
}

func u32le(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func u64le(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

// modrmReg builds the ModR/M byte for a direct register-register form:
// mod=11, reg=regField's encoding, rm=rmField's encoding.
func modrmReg(regField, rmField reg.Reg) byte {
	return 0xc0 | regField.Encoding()<<3 | rmField.Encoding()
}

// movStoreOp/movLoadOp pick the 8-bit-vs-wider MOV opcode: 0x88/0x8a
// address a single byte, 0x89/0x8b everything else (the size itself
// comes from the REX.W bit and the 0x66 prefix, not the opcode).
func movStoreOp(size reg.Size) byte {
	if size == reg.Size8 {
		return 0x88
	}
	return 0x89
}

func movLoadOp(size reg.Size) byte {
	if size == reg.Size8 {
		return 0x8a
	}
	return 0x8b
}

// regRex folds the REX contributions of a reg-field/rm-field register pair.
func regRex(regField, rmField reg.Reg) rexBits {
	return rexBits{
		r:     regField.Extended(),
		b:     rmField.Extended(),
		force: regField.NeedsREX() && regField.Size() == reg.Size8 || rmField.NeedsREX() && rmField.Size() == reg.Size8,
	}
}

func wBit(size reg.Size) bool { return size == reg.Size64 }

func sizePrefix(size reg.Size) []byte {
	if size == reg.Size16 {
		return []byte{0x66}
	}
	return nil
}

// emit assembles prefix bytes (operand-size override, REX) followed by
// the instruction-specific tail.
func emit(w bool, size reg.Size, rb rexBits, tail ...byte) []byte {
	rb.w = w
	var out []byte
	out = append(out, sizePrefix(size)...)
	if rb.needed() {
		out = append(out, rb.byte())
	}
	out = append(out, tail...)
	return out
}

// Encode assembles a single instruction. Label/Rela operands are encoded
// as a zero 32-bit placeholder; use EncodeWithPlaceholder to learn where
// that placeholder sits.
func Encode(m Mnemonic, ops []operand.Operand) ([]byte, error) {
	b, _, err := encode(m, ops)
	return b, err
}

// EncodeWithPlaceholder is Encode plus the byte offset within the
// returned bytes where a Label/Rela 32-bit placeholder was substituted,
// or -1 if the instruction references no such operand. The relocation
// pass (internal/codegen) uses that offset directly rather than
// re-deriving it.
func EncodeWithPlaceholder(m Mnemonic, ops []operand.Operand) ([]byte, int, error) {
	return encode(m, ops)
}

func encode(m Mnemonic, ops []operand.Operand) ([]byte, int, error) {
	switch m {
	case MOV:
		return encodeMov(ops)
	case LEA:
		return encodeLea(ops)
	case CMOVE, CMOVNE, CMOVG, CMOVL, CMOVGE, CMOVLE:
		return encodeCmovcc(m, ops)
	case PUSH:
		return encodePush(ops)
	case POP:
		return encodePop(ops)
	case ADD, SUB, OR, AND, CMP:
		return encodeArith(m, ops)
	case TEST:
		return encodeTest(ops)
	case IMUL:
		return encodeImul(ops)
	case IDIV:
		return encodeF7(ops, 7)
	case MUL:
		return encodeF7(ops, 4)
	case NEG:
		return encodeF7(ops, 3)
	case NOT:
		return encodeF7(ops, 2)
	case SAL, SAR, SHR:
		return encodeShiftCL(m, ops)
	case CQO:
		return []byte{0x48, 0x99}, -1, nil
	case SYSCALL:
		return []byte{0x0f, 0x05}, -1, nil
	case LEAVE:
		return []byte{0xc9}, -1, nil
	case RET:
		return []byte{0xc3}, -1, nil
	case NOP:
		return []byte{0x90}, -1, nil
	case CALL:
		return encodeRel32(0xe8, nil, ops)
	case JMP:
		return encodeRel32(0xe9, nil, ops)
	case JZ:
		return encodeRel32(0x0f, []byte{0x84}, ops)
	case JNZ, JNE:
		return encodeRel32(0x0f, []byte{0x85}, ops)
	default:
		return nil, -1, fmt.Errorf("unsupported mnemonic %s", m)
	}
}

// placeholder reports whether op is an unresolved reference (Label/Rela)
// that is encoded as a zero 32-bit value.
func placeholder(op operand.Operand) (isPlaceholder bool) {
	return op.Kind == operand.KindLabel || op.Kind == operand.KindRela
}

func expectTwo(ops []operand.Operand) (a, b operand.Operand, err error) {
	if len(ops) != 2 {
		return operand.Operand{}, operand.Operand{}, fmt.Errorf("expected 2 operands, got %d", len(ops))
	}
	return ops[0], ops[1], nil
}

func expectOne(ops []operand.Operand) (operand.Operand, error) {
	if len(ops) != 1 {
		return operand.Operand{}, fmt.Errorf("expected 1 operand, got %d", len(ops))
	}
	return ops[0], nil
}

func encodeMov(ops []operand.Operand) ([]byte, int, error) {
	dst, src, err := expectTwo(ops)
	if err != nil {
		return nil, -1, err
	}
	switch {
	case dst.Kind == operand.KindReg && src.Kind == operand.KindReg:
		rb := regRex(src.Reg, dst.Reg)
		return emit(wBit(dst.Reg.Size()), dst.Reg.Size(), rb, movStoreOp(dst.Reg.Size()), modrmReg(src.Reg, dst.Reg)), -1, nil
	case dst.Kind == operand.KindReg && src.Kind == operand.KindRela:
		// Absolute address load of a data/bss symbol: a 32-bit
		// sign-extended (R_X86_64_32S) placeholder into a 32-bit
		// register, which the CPU zero-extends into the full 64-bit
		// register at runtime, the standard non-PIE small-model
		// absolute addressing form. The destination must be a
		// 32-bit register; callers use reg.Sized(..., reg.Size32).
		rb := rexBits{b: dst.Reg.Extended()}
		tail := append([]byte{0xb8 + dst.Reg.Encoding()}, u32le(0)...)
		out := emit(false, reg.Size32, rb, tail...)
		return out, len(out) - 4, nil
	case dst.Kind == operand.KindReg && (src.Kind == operand.KindImm64 || src.Kind == operand.KindImm32):
		// movabs-style load: encode via B8+r regardless of whether the
		// value originated as Imm32 or Imm64; the
		// peephole pass later shrinks this down to the 32-bit r32,imm32
		// form when the value fits and the destination is still r64.
		val := src.Imm64
		if src.Kind == operand.KindImm32 {
			val = int64(src.Imm32)
		}
		rb := rexBits{b: dst.Reg.Extended()}
		tail := []byte{0xb8 + dst.Reg.Encoding()}
		if dst.Reg.Size() == reg.Size32 {
			return emit(false, reg.Size32, rb, append(tail, u32le(uint32(int32(val)))...)...), -1, nil
		}
		return emit(true, reg.Size64, rb, append(tail, u64le(uint64(val))...)...), -1, nil
	case dst.Kind == operand.KindMem && src.Kind == operand.KindReg:
		mm, rb := modrmMem(src.Reg.Encoding(), dst.Mem)
		rb.r = src.Reg.Extended()
		rb.force = src.Reg.NeedsREX() && src.Reg.Size() == reg.Size8
		return emit(wBit(src.Reg.Size()), src.Reg.Size(), rb, append([]byte{movStoreOp(src.Reg.Size())}, mm...)...), -1, nil
	case dst.Kind == operand.KindReg && src.Kind == operand.KindMem:
		mm, rb := modrmMem(dst.Reg.Encoding(), src.Mem)
		rb.r = dst.Reg.Extended()
		rb.force = dst.Reg.NeedsREX() && dst.Reg.Size() == reg.Size8
		return emit(wBit(dst.Reg.Size()), dst.Reg.Size(), rb, append([]byte{movLoadOp(dst.Reg.Size())}, mm...)...), -1, nil
	case dst.Kind == operand.KindMem && dst.Mem.Size == 1 && src.Kind == operand.KindImm32:
		// MOV r/m8, imm8: a single immediate byte, not the 4-byte id the
		// wider forms below use — a 4-byte store here would clobber the
		// three bytes past a single-byte buffer slot.
		mm, rb := modrmMem(0, dst.Mem)
		out := emit(false, reg.Size8, rb, append([]byte{0xc6}, mm...)...)
		return append(out, byte(int8(src.Imm32))), -1, nil
	case dst.Kind == operand.KindMem && (src.Kind == operand.KindImm32 || placeholder(src)):
		mm, rb := modrmMem(0, dst.Mem)
		size := reg.Size32
		if dst.Mem.Size == 8 {
			size = reg.Size64
		}
		tail := append([]byte{0xc7}, mm...)
		tail = append(tail, u32le(uint32(src.Imm32))...)
		out := emit(wBit(size), size, rb, tail...)
		ph := -1
		if placeholder(src) {
			ph = len(out) - 4
		}
		return out, ph, nil
	default:
		return nil, -1, fmt.Errorf("mov: unsupported operand shape %v, %v", dst, src)
	}
}

func encodeLea(ops []operand.Operand) ([]byte, int, error) {
	dst, src, err := expectTwo(ops)
	if err != nil {
		return nil, -1, err
	}
	if dst.Kind != operand.KindReg || src.Kind != operand.KindMem {
		return nil, -1, fmt.Errorf("lea: requires reg, mem")
	}
	mm, rb := modrmMem(dst.Reg.Encoding(), src.Mem)
	rb.r = dst.Reg.Extended()
	return emit(wBit(dst.Reg.Size()), dst.Reg.Size(), rb, append([]byte{0x8d}, mm...)...), -1, nil
}

var cmovccOpcode = map[Mnemonic]byte{
	CMOVE: 0x44, CMOVNE: 0x45, CMOVG: 0x4f, CMOVL: 0x4c, CMOVGE: 0x4d, CMOVLE: 0x4e,
}

func encodeCmovcc(m Mnemonic, ops []operand.Operand) ([]byte, int, error) {
	dst, src, err := expectTwo(ops)
	if err != nil {
		return nil, -1, err
	}
	if dst.Kind != operand.KindReg {
		return nil, -1, fmt.Errorf("%s: destination must be a register", m)
	}
	op := cmovccOpcode[m]
	switch src.Kind {
	case operand.KindReg:
		rb := regRex(dst.Reg, src.Reg)
		return emit(wBit(dst.Reg.Size()), dst.Reg.Size(), rb, 0x0f, op, modrmReg(dst.Reg, src.Reg)), -1, nil
	case operand.KindMem:
		mm, rb := modrmMem(dst.Reg.Encoding(), src.Mem)
		rb.r = dst.Reg.Extended()
		return emit(wBit(dst.Reg.Size()), dst.Reg.Size(), rb, append([]byte{0x0f, op}, mm...)...), -1, nil
	default:
		return nil, -1, fmt.Errorf("%s: unsupported source operand", m)
	}
}

func encodePush(ops []operand.Operand) ([]byte, int, error) {
	r, err := expectOne(ops)
	if err != nil {
		return nil, -1, err
	}
	if r.Kind != operand.KindReg {
		return nil, -1, fmt.Errorf("push: requires a register operand")
	}
	rb := rexBits{b: r.Reg.Extended()}
	out := []byte{}
	if rb.needed() {
		out = append(out, rb.byte())
	}
	out = append(out, 0x50+r.Reg.Encoding())
	return out, -1, nil
}

func encodePop(ops []operand.Operand) ([]byte, int, error) {
	r, err := expectOne(ops)
	if err != nil {
		return nil, -1, err
	}
	if r.Kind != operand.KindReg {
		return nil, -1, fmt.Errorf("pop: requires a register operand")
	}
	rb := rexBits{b: r.Reg.Extended()}
	out := []byte{}
	if rb.needed() {
		out = append(out, rb.byte())
	}
	out = append(out, 0x58+r.Reg.Encoding())
	return out, -1, nil
}

// arithInfo gives the /digit extension and the direct register-register
// opcodes (store-direction, load-direction) for ADD/SUB/OR/AND/CMP.
type arithInfo struct {
	digit           byte
	storeOp, loadOp byte
}

var arithTable = map[Mnemonic]arithInfo{
	ADD: {0, 0x01, 0x03},
	OR:  {1, 0x09, 0x0b},
	AND: {4, 0x21, 0x23},
	SUB: {5, 0x29, 0x2b},
	CMP: {7, 0x39, 0x3b},
}

func encodeArith(m Mnemonic, ops []operand.Operand) ([]byte, int, error) {
	info := arithTable[m]
	dst, src, err := expectTwo(ops)
	if err != nil {
		return nil, -1, err
	}
	switch {
	case dst.Kind == operand.KindReg && src.Kind == operand.KindReg:
		rb := regRex(src.Reg, dst.Reg)
		return emit(wBit(dst.Reg.Size()), dst.Reg.Size(), rb, info.storeOp, modrmReg(src.Reg, dst.Reg)), -1, nil
	case dst.Kind == operand.KindMem && src.Kind == operand.KindReg:
		mm, rb := modrmMem(src.Reg.Encoding(), dst.Mem)
		rb.r = src.Reg.Extended()
		return emit(wBit(src.Reg.Size()), src.Reg.Size(), rb, append([]byte{info.storeOp}, mm...)...), -1, nil
	case dst.Kind == operand.KindReg && src.Kind == operand.KindMem:
		mm, rb := modrmMem(dst.Reg.Encoding(), src.Mem)
		rb.r = dst.Reg.Extended()
		return emit(wBit(dst.Reg.Size()), dst.Reg.Size(), rb, append([]byte{info.loadOp}, mm...)...), -1, nil
	case dst.Kind == operand.KindReg && src.Kind == operand.KindImm32:
		rb := rexBits{b: dst.Reg.Extended()}
		if src.Imm32 >= -128 && src.Imm32 <= 127 {
			return emit(wBit(dst.Reg.Size()), dst.Reg.Size(), rb, 0x83, 0xc0|info.digit<<3|dst.Reg.Encoding(), byte(int8(src.Imm32))), -1, nil
		}
		out := emit(wBit(dst.Reg.Size()), dst.Reg.Size(), rb, 0x81, 0xc0|info.digit<<3|dst.Reg.Encoding())
		return append(out, u32le(uint32(src.Imm32))...), -1, nil
	case dst.Kind == operand.KindMem && src.Kind == operand.KindImm32:
		mm, rb := modrmMem(info.digit, dst.Mem)
		size := reg.Size32
		if dst.Mem.Size == 8 {
			size = reg.Size64
		}
		out := emit(wBit(size), size, rb, append([]byte{0x81}, mm...)...)
		return append(out, u32le(uint32(src.Imm32))...), -1, nil
	default:
		return nil, -1, fmt.Errorf("%s: unsupported operand shape", m)
	}
}

func encodeTest(ops []operand.Operand) ([]byte, int, error) {
	dst, src, err := expectTwo(ops)
	if err != nil {
		return nil, -1, err
	}
	switch {
	case dst.Kind == operand.KindReg && src.Kind == operand.KindReg:
		rb := regRex(src.Reg, dst.Reg)
		return emit(wBit(dst.Reg.Size()), dst.Reg.Size(), rb, 0x85, modrmReg(src.Reg, dst.Reg)), -1, nil
	case dst.Kind == operand.KindMem && src.Kind == operand.KindReg:
		mm, rb := modrmMem(src.Reg.Encoding(), dst.Mem)
		rb.r = src.Reg.Extended()
		return emit(wBit(src.Reg.Size()), src.Reg.Size(), rb, append([]byte{0x85}, mm...)...), -1, nil
	case dst.Kind == operand.KindReg && src.Kind == operand.KindImm32:
		rb := rexBits{b: dst.Reg.Extended()}
		out := emit(wBit(dst.Reg.Size()), dst.Reg.Size(), rb, 0xf7, 0xc0|dst.Reg.Encoding())
		return append(out, u32le(uint32(src.Imm32))...), -1, nil
	default:
		return nil, -1, fmt.Errorf("test: unsupported operand shape")
	}
}

func encodeImul(ops []operand.Operand) ([]byte, int, error) {
	dst, src, err := expectTwo(ops)
	if err != nil {
		return nil, -1, err
	}
	if dst.Kind != operand.KindReg {
		return nil, -1, fmt.Errorf("imul: destination must be a register")
	}
	switch src.Kind {
	case operand.KindReg:
		rb := regRex(dst.Reg, src.Reg)
		return emit(wBit(dst.Reg.Size()), dst.Reg.Size(), rb, 0x0f, 0xaf, modrmReg(dst.Reg, src.Reg)), -1, nil
	case operand.KindMem:
		mm, rb := modrmMem(dst.Reg.Encoding(), src.Mem)
		rb.r = dst.Reg.Extended()
		return emit(wBit(dst.Reg.Size()), dst.Reg.Size(), rb, append([]byte{0x0f, 0xaf}, mm...)...), -1, nil
	default:
		return nil, -1, fmt.Errorf("imul: unsupported source operand")
	}
}

func encodeF7(ops []operand.Operand, digit byte) ([]byte, int, error) {
	r, err := expectOne(ops)
	if err != nil {
		return nil, -1, err
	}
	if r.Kind != operand.KindReg {
		return nil, -1, fmt.Errorf("f7-group: requires a register operand")
	}
	rb := rexBits{b: r.Reg.Extended()}
	return emit(wBit(r.Reg.Size()), r.Reg.Size(), rb, 0xf7, 0xc0|digit<<3|r.Reg.Encoding()), -1, nil
}

var shiftDigit = map[Mnemonic]byte{SAL: 4, SAR: 7, SHR: 5}

// encodeShiftCL handles both shift forms this instruction set needs: a
// single register operand shifts by the implicit CL count (0xd3), two
// operands with an immediate count use the imm8 form (0xc1) regardless
// of whether the count would fit the 1-bit 0xd1 shorthand.
func encodeShiftCL(m Mnemonic, ops []operand.Operand) ([]byte, int, error) {
	digit := shiftDigit[m]
	if len(ops) == 2 {
		dst, src, err := expectTwo(ops)
		if err != nil {
			return nil, -1, err
		}
		if dst.Kind != operand.KindReg || src.Kind != operand.KindImm32 {
			return nil, -1, fmt.Errorf("%s: requires a register and an immediate count", m)
		}
		rb := rexBits{b: dst.Reg.Extended()}
		return emit(wBit(dst.Reg.Size()), dst.Reg.Size(), rb, 0xc1, 0xc0|digit<<3|dst.Reg.Encoding(), byte(src.Imm32)), -1, nil
	}
	r, err := expectOne(ops)
	if err != nil {
		return nil, -1, err
	}
	if r.Kind != operand.KindReg {
		return nil, -1, fmt.Errorf("%s: requires a register operand", m)
	}
	rb := rexBits{b: r.Reg.Extended()}
	return emit(wBit(r.Reg.Size()), r.Reg.Size(), rb, 0xd3, 0xc0|digit<<3|r.Reg.Encoding()), -1, nil
}

// encodeRel32 assembles a CALL/JMP/Jcc near-form instruction. prefix is
// the leading opcode byte(s) (0xe8 for CALL, 0xe9 for JMP, 0x0f for the
// two-byte Jcc forms), cc is the optional second opcode byte for Jcc.
// The operand must be a Label or Rela; its 4-byte displacement is a
// placeholder until the relocation pass resolves it.
func encodeRel32(prefix byte, cc []byte, ops []operand.Operand) ([]byte, int, error) {
	t, err := expectOne(ops)
	if err != nil {
		return nil, -1, err
	}
	if t.Kind != operand.KindLabel && t.Kind != operand.KindRela {
		return nil, -1, fmt.Errorf("rel32 target must be a Label or Rela operand")
	}
	out := []byte{prefix}
	out = append(out, cc...)
	ph := len(out)
	out = append(out, u32le(0)...)
	return out, ph, nil
}

// ReserveSubRsp encodes `sub rsp, imm32` always using the 4-byte
// immediate form, even though a zero placeholder would otherwise fit in
// a signed byte and take the shorter 0x83 encoding. A per-function
// prologue reserves this slot before its stack frame's high-water usage
// is known, then patches the immediate in place once lowering the body
// is done; the 0x83 short form wouldn't leave room for a frame larger
// than 127 bytes.
func ReserveSubRsp() (bytes []byte, immOffset int) {
	rb := rexBits{w: true}
	out := emit(true, reg.Size64, rb, 0x81, 0xc0|5<<3|reg.RSP.Encoding())
	out = append(out, u32le(0)...)
	return out, len(out) - 4
}
