package gobpf

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestInstructionBytesLayout(t *testing.T) {
	in := Instruction{Op: 0xb7, Dst: R1, Src: R2, Off: -1, Imm: 42}
	b := in.Bytes()
	assert.Equal(t, b[0], uint8(0xb7))
	assert.Equal(t, b[1], uint8(0x21)) // (src=2)<<4 | dst=1
	assert.Equal(t, int16(le.Uint16(b[2:4])), int16(-1))
	assert.Equal(t, int32(le.Uint32(b[4:8])), int32(42))
}

func TestMov64ImmRoundTrip(t *testing.T) {
	in, err := Mov64Imm(R3, 7)
	assert.NilError(t, err)
	assert.Equal(t, in.Op, classALU64|srcK|uint8(AluMov))
	assert.Equal(t, in.Dst, R3)
	assert.Equal(t, in.Imm, int32(7))
}

func TestAluRegRejectsInvalidRegister(t *testing.T) {
	_, err := AluReg(AluAdd, true, Reg(11), R0)
	assert.ErrorContains(t, err, "invalid register")
	var gerr *Error
	assert.Assert(t, asError(err, &gerr))
	assert.Equal(t, gerr.Kind, KindEncoding)
}

func TestLddwSplitsHighAndLowImmediate(t *testing.T) {
	pair, err := Lddw(R0, 0x1122334455667788, PseudoNone)
	assert.NilError(t, err)
	assert.Equal(t, pair[0].Imm, int32(0x55667788))
	assert.Equal(t, pair[1].Imm, int32(0x11223344))
	assert.Equal(t, pair[1].Op, uint8(0))
}

func TestLddwMapFDUsesPseudoMapFDMode(t *testing.T) {
	pair, err := LddwMapFD(R1, 5)
	assert.NilError(t, err)
	assert.Equal(t, pair[0].Src, Reg(PseudoMapFD))
	assert.Equal(t, pair[0].Imm, int32(5))
}

func TestStImmRejectsEightByteWidth(t *testing.T) {
	_, err := StImm(8, R0, 0, 1)
	assert.ErrorContains(t, err, "stx")
}

func TestCheckWidthRejectsUnsupportedWidth(t *testing.T) {
	_, err := checkWidth(3)
	assert.ErrorContains(t, err, "unsupported width")
}

func TestToLERejectsUnsupportedWidth(t *testing.T) {
	_, err := ToLE(R0, 24)
	assert.ErrorContains(t, err, "unsupported endian width")
}
