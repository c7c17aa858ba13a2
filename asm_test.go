package gobpf

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestAssembleResolvesForwardJump(t *testing.T) {
	mov, _ := Mov64Imm(R0, 0)
	exit, _ := Exit()
	stream := []Elem{
		JImm(JEq, R1, 0, "skip"),
		I(mov),
		L("skip"),
		I(exit),
	}
	insns, err := Assemble(stream)
	assert.NilError(t, err)
	assert.Equal(t, len(insns), 3)
	// jeq r1, 0, skip: skip is at position 2, current position 0 -> offset 1
	assert.Equal(t, insns[0].Off, int16(1))
}

func TestAssembleResolvesBackwardJump(t *testing.T) {
	mov, _ := Mov64Imm(R0, 0)
	exit, _ := Exit()
	stream := []Elem{
		L("loop"),
		I(mov),
		JA("loop"),
		I(exit),
	}
	insns, err := Assemble(stream)
	assert.NilError(t, err)
	// ja at position 1, target "loop" at position 0 -> offset = 0 - 1 - 1 = -2
	assert.Equal(t, insns[1].Off, int16(-2))
}

func TestAssembleRejectsDuplicateLabel(t *testing.T) {
	stream := []Elem{L("x"), L("x")}
	_, err := Assemble(stream)
	assert.ErrorContains(t, err, "duplicate label")
}

func TestAssembleRejectsUndefinedLabel(t *testing.T) {
	stream := []Elem{JA("nowhere")}
	_, err := Assemble(stream)
	assert.ErrorContains(t, err, "undefined label")
}

func TestAssembleAccountsForLddwTwoSlotWidth(t *testing.T) {
	pair, _ := LddwMapFD(R1, 3)
	stream := []Elem{
		ILddw(pair),
		JA("end"),
		L("end"),
	}
	assert.Equal(t, Len(stream), 3) // 2 (lddw) + 1 (ja)
	insns, err := Assemble(stream)
	assert.NilError(t, err)
	// ja at position 2, target "end" at position 3 -> offset = 3 - 2 - 1 = 0
	assert.Equal(t, insns[2].Off, int16(0))
}

func TestAssembleIdempotentOnResolvedInstructions(t *testing.T) {
	mov, _ := Mov64Imm(R0, 1)
	exit, _ := Exit()
	stream := []Elem{I(mov), I(exit)}
	first, err := Assemble(stream)
	assert.NilError(t, err)
	second, err := Assemble(FromInstructions(first))
	assert.NilError(t, err)
	assert.DeepEqual(t, first, second)
}

func TestAssembleRejectsOutOfRangeJump(t *testing.T) {
	stream := make([]Elem, 0, 70000)
	stream = append(stream, JA("end"))
	nop, _ := Mov64Imm(R0, 0)
	for i := 0; i < 70000; i++ {
		stream = append(stream, I(nop))
	}
	stream = append(stream, L("end"))
	_, err := Assemble(stream)
	assert.ErrorContains(t, err, "out of i16 range")
	var gerr *Error
	assert.Assert(t, asError(err, &gerr))
	assert.Equal(t, gerr.Kind, KindJumpOutOfRange)
}
