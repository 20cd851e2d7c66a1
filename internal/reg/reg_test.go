package reg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizedFamilyNarrowing(t *testing.T) {
	assert.Equal(t, AL, Sized(RAX, Size8))
	assert.Equal(t, EAX, Sized(RAX, Size32))
	assert.Equal(t, AX, Sized(RAX, Size16))
	assert.Equal(t, RAX, Sized(RAX, Size64))
	assert.Equal(t, DIL, Sized(RDI, Size8))
	assert.Equal(t, R8B, Sized(R8, Size8))
}

func TestSizedUnknownFamilyIsIdentity(t *testing.T) {
	assert.Equal(t, R10, Sized(R10, Size8))
}

func TestNeedsREX(t *testing.T) {
	assert.True(t, R8.NeedsREX())
	assert.True(t, SPL.NeedsREX())
	assert.False(t, RAX.NeedsREX())
	assert.False(t, AH.NeedsREX())
}

func TestLegacyHighByteRegistersRejectREX(t *testing.T) {
	assert.True(t, AH.IsLegacyHighByte())
	assert.True(t, BH.IsLegacyHighByte())
	assert.False(t, SPL.IsLegacyHighByte())
	assert.False(t, AL.IsLegacyHighByte())
}

func TestNewStyleAndLegacyShareEncodingButDiffer(t *testing.T) {
	assert.Equal(t, AH.Encoding(), SPL.Encoding())
	assert.NotEqual(t, AH.NeedsREX(), SPL.NeedsREX())
}

func TestFromStringRoundTrip(t *testing.T) {
	for name, r := range byName {
		got, ok := FromString(name)
		assert.True(t, ok)
		assert.Equal(t, r, got)
		assert.Equal(t, name, r.String())
	}
}

func TestFromStringUnknown(t *testing.T) {
	_, ok := FromString("notareg")
	assert.False(t, ok)
}

func TestArgRegsOrder(t *testing.T) {
	assert.Equal(t, [6]Reg{RDI, RSI, RDX, RCX, R8, R9}, ArgRegs)
}
