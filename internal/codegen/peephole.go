package codegen

import (
	"github.com/mahanfr/nmet/internal/encoder"
	"github.com/mahanfr/nmet/internal/operand"
	"github.com/mahanfr/nmet/internal/reg"
)

// Peephole runs a single bounded sweep over the instruction stream:
// push/pop fusion and imm64→imm32 MOV shrinking. It must run after
// lowering completes and before Relocate, since it changes instruction
// byte lengths.
func (b *Buffer) Peephole() {
	for i := 0; i+1 < len(b.items); i++ {
		a, c := b.items[i], b.items[i+1]
		if a.isLabel || c.isLabel {
			continue
		}
		if a.instr.Mnemonic == encoder.PUSH && c.instr.Mnemonic == encoder.POP {
			x := a.instr.Operands[0].Reg
			y := c.instr.Operands[0].Reg
			if x == y {
				b.nopify(i)
				b.nopify(i + 1)
			} else {
				b.reencode(i, encoder.MOV, operand.R(y), operand.R(x))
				b.nopify(i + 1)
			}
			continue
		}
		b.shrinkMovImm(i)
	}
	// the last item can still be a shrink candidate; the loop above only
	// visits indices with a following item.
	if n := len(b.items); n > 0 {
		b.shrinkMovImm(n - 1)
	}
	b.recomputeCursor()
}

// nopify eliminates an instruction's bytes in place, fusing it away.
func (b *Buffer) nopify(i int) {
	b.items[i].instr = encoder.Instruction{Mnemonic: encoder.NOP}
	b.items[i].placeholder = -1
}

func (b *Buffer) reencode(i int, m encoder.Mnemonic, ops ...operand.Operand) {
	bytes, ph, err := encoder.EncodeWithPlaceholder(m, ops)
	if err != nil {
		panic(err)
	}
	b.items[i].instr = encoder.Instruction{Mnemonic: m, Operands: ops, Bytes: bytes}
	b.items[i].placeholder = ph
}

// shrinkMovImm rewrites `MOV r64, imm` to `MOV r32, imm` when the
// immediate fits in 32 bits, as the 32-bit form implicitly zero-extends
// into the full 64-bit register.
func (b *Buffer) shrinkMovImm(i int) {
	it := b.items[i]
	if it.isLabel || it.instr.Mnemonic != encoder.MOV || len(it.instr.Operands) != 2 {
		return
	}
	dst, src := it.instr.Operands[0], it.instr.Operands[1]
	if dst.Kind != operand.KindReg || dst.Reg.Size() != 64 {
		return
	}
	var val int64
	switch src.Kind {
	case operand.KindImm64:
		val = src.Imm64
	case operand.KindImm32:
		val = int64(src.Imm32)
	default:
		return
	}
	if val < -2147483648 || val > 2147483647 {
		return
	}
	newDst := operand.R(reg.Sized(dst.Reg, reg.Size32))
	b.reencode(i, encoder.MOV, newDst, operand.I32(int32(val)))
}

// recomputeCursor recomputes the running byte cursor and every label's
// recorded offset after Peephole has changed instruction lengths.
func (b *Buffer) recomputeCursor() {
	off := 0
	for _, it := range b.items {
		if it.isLabel {
			sym := b.Symbols[it.labelName]
			sym.Offset = off
			b.Symbols[it.labelName] = sym
			continue
		}
		off += len(it.instr.Bytes)
	}
	b.cursor = off
}
