package operand

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mahanfr/nmet/internal/reg"
)

func TestConstructors(t *testing.T) {
	assert.Equal(t, Operand{Kind: KindReg, Reg: reg.RAX}, R(reg.RAX))
	assert.Equal(t, Operand{Kind: KindImm32, Imm32: 7}, I32(7))
	assert.Equal(t, Operand{Kind: KindImm64, Imm64: 7}, I64(7))
	assert.Equal(t, Operand{Kind: KindLabel, Name: "L1"}, Lbl("L1"))
	assert.Equal(t, Operand{Kind: KindRela, Name: "puts"}, Rel("puts"))
}

func TestMDispSetsHasDisp(t *testing.T) {
	m := MDisp(reg.RBP, -8, 8)
	assert.Equal(t, KindMem, m.Kind)
	assert.True(t, m.Mem.HasDisp)
	assert.EqualValues(t, -8, m.Mem.Disp)
	assert.Equal(t, 8, m.Mem.Size)
}

func TestMBaseOnlyHasNoDisp(t *testing.T) {
	m := M(reg.RAX, 8)
	assert.False(t, m.Mem.HasDisp)
	assert.False(t, m.Mem.HasIdx)
}

func TestMIndexValidScales(t *testing.T) {
	for _, s := range []Scale{Scale1, Scale2, Scale4, Scale8} {
		assert.NotPanics(t, func() {
			MIndex(reg.RBX, 0, reg.RCX, s, 8)
		})
	}
}

func TestMIndexInvalidScalePanics(t *testing.T) {
	assert.Panics(t, func() {
		MIndex(reg.RBX, 0, reg.RCX, Scale(3), 8)
	})
}

func TestMIndexZeroDispOmitsHasDisp(t *testing.T) {
	m := MIndex(reg.RBX, 0, reg.RCX, Scale8, 8)
	assert.False(t, m.Mem.HasDisp)
	assert.True(t, m.Mem.HasIdx)
	assert.Equal(t, reg.RCX, m.Mem.Idx.Reg)
	assert.Equal(t, Scale8, m.Mem.Idx.Scale)
}

func TestMIndexNonZeroDispSetsHasDisp(t *testing.T) {
	m := MIndex(reg.RBX, 16, reg.RCX, Scale1, 1)
	assert.True(t, m.Mem.HasDisp)
	assert.EqualValues(t, 16, m.Mem.Disp)
}
