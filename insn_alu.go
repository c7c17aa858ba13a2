package gobpf

// AluOp names an ALU operation, shared between the 64-bit (ALU64) and
// 32-bit (ALU32) instruction classes.
type AluOp uint8

const (
	AluAdd AluOp = 0x00
	AluSub AluOp = 0x10
	AluMul AluOp = 0x20
	AluDiv AluOp = 0x30
	AluOr  AluOp = 0x40
	AluAnd AluOp = 0x50
	AluLsh AluOp = 0x60
	AluRsh AluOp = 0x70
	AluNeg AluOp = 0x80
	AluMod AluOp = 0x90
	AluXor AluOp = 0xa0
	AluMov AluOp = 0xb0
	AluArsh AluOp = 0xc0
)

// aluClass returns classALU64 for 64-bit width, classALU for 32-bit.
func aluClass(width64 bool) uint8 {
	if width64 {
		return classALU64
	}
	return classALU
}

// AluReg encodes `dst <op>= src` (register form), e.g. ALU64 add dst, src.
// width64 selects ALU64 vs ALU32.
func AluReg(op AluOp, width64 bool, dst, src Reg) (Instruction, error) {
	if err := checkRegs(dst, src); err != nil {
		return Instruction{}, err
	}
	return Instruction{
		Op:  aluClass(width64) | srcX | uint8(op),
		Dst: dst,
		Src: src,
	}, nil
}

// AluImm encodes `dst <op>= imm` (immediate form).
func AluImm(op AluOp, width64 bool, dst Reg, imm int64) (Instruction, error) {
	if err := checkRegs(dst); err != nil {
		return Instruction{}, err
	}
	v, err := checkImm32(imm)
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{
		Op:  aluClass(width64) | srcK | uint8(op),
		Dst: dst,
		Imm: v,
	}, nil
}

// Mov64Reg / Mov32Reg / Mov64Imm / Mov32Imm are convenience wrappers for the
// AluMov op, since `mov` is by far the most frequently emitted instruction
// in hand-written eBPF.
func Mov64Reg(dst, src Reg) (Instruction, error) { return AluReg(AluMov, true, dst, src) }
func Mov32Reg(dst, src Reg) (Instruction, error) { return AluReg(AluMov, false, dst, src) }
func Mov64Imm(dst Reg, imm int32) (Instruction, error) {
	return AluImm(AluMov, true, dst, int64(imm))
}
func Mov32Imm(dst Reg, imm int32) (Instruction, error) {
	return AluImm(AluMov, false, dst, int64(imm))
}

// Neg64 / Neg32 encode the unary negate op; src/imm are unused by the kernel
// for this op but the opcode still needs src_reg=0.
func Neg64(dst Reg) (Instruction, error) { return AluReg(AluNeg, true, dst, R0) }
func Neg32(dst Reg) (Instruction, error) { return AluReg(AluNeg, false, dst, R0) }

// endian mode bits, OR'd into the source field of a BPF_END instruction.
const (
	endianToLE uint8 = 0x00 // BPF_TO_LE
	endianToBE uint8 = 0x08 // BPF_TO_BE
)

// ToLE / ToBE encode endian-conversion instructions for width in {16, 32,
// 64}. These always live in the ALU (32-bit) class per the
// kernel UAPI, regardless of the conversion width.
func ToLE(dst Reg, width int) (Instruction, error) { return endian(endianToLE, dst, width) }
func ToBE(dst Reg, width int) (Instruction, error) { return endian(endianToBE, dst, width) }

func endian(mode uint8, dst Reg, width int) (Instruction, error) {
	if err := checkRegs(dst); err != nil {
		return Instruction{}, err
	}
	switch width {
	case 16, 32, 64:
	default:
		return Instruction{}, encErrf("unsupported endian width %d (want 16, 32, or 64)", width)
	}
	return Instruction{
		Op:  classALU | mode | 0xd0, // BPF_END = 0xd0
		Dst: dst,
		Imm: int32(width),
	}, nil
}
