package gobpf

// JumpCond names a conditional-jump test: jeq, jne, jgt,
// jge, jlt, jle, jsgt, jsge, jslt, jsle, jset. ja (unconditional) is
// represented separately since it carries no comparison operands.
type JumpCond uint8

const (
	JEq  JumpCond = 0x10
	JGt  JumpCond = 0x20
	JGe  JumpCond = 0x30
	JSet JumpCond = 0x40
	JNe  JumpCond = 0x50
	JSGt JumpCond = 0x60
	JSGe JumpCond = 0x70
	JLt  JumpCond = 0xa0
	JLe  JumpCond = 0xb0
	JSLt JumpCond = 0xc0
	JSLe JumpCond = 0xd0
)

// jumpReg encodes a resolved (numeric-offset) conditional jump against a
// register operand: `if dst <cond> src goto pc+off+1`.
func jumpReg(cond JumpCond, dst, src Reg, off int16) (Instruction, error) {
	if err := checkRegs(dst, src); err != nil {
		return Instruction{}, err
	}
	return Instruction{Op: classJMP | srcX | uint8(cond), Dst: dst, Src: src, Off: off}, nil
}

// jumpImm encodes a resolved conditional jump against an immediate operand:
// `if dst <cond> imm goto pc+off+1`.
func jumpImm(cond JumpCond, dst Reg, imm int32, off int16) (Instruction, error) {
	if err := checkRegs(dst); err != nil {
		return Instruction{}, err
	}
	return Instruction{Op: classJMP | srcK | uint8(cond), Dst: dst, Imm: imm, Off: off}, nil
}

// jumpAlways encodes a resolved unconditional jump (`ja`): `goto pc+off+1`.
func jumpAlways(off int16) (Instruction, error) {
	return Instruction{Op: classJMP | 0x00, Off: off}, nil
}
