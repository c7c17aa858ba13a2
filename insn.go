package gobpf

import "fmt"

// Reg names an eBPF register. r0 holds return values/call results, r1-r5
// hold call arguments, r6-r9 are callee-saved, r10 is the read-only frame
// pointer.
type Reg uint8

const (
	R0 Reg = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	R8
	R9
	R10
)

func (r Reg) valid() bool { return r <= R10 }

func (r Reg) String() string {
	if r == R10 {
		return "r10"
	}
	return fmt.Sprintf("r%d", uint8(r))
}

// Instruction is the 8-byte eBPF instruction record:
// {opcode:u8, dst_reg:4b, src_reg:4b, off:i16, imm:i32}. lddw is the sole
// exception — it is carried as two consecutive Instruction values, the
// second of which holds only the high 32 bits of the immediate in its Imm
// field (Op/Dst/Src/Off all zero in that second slot, matching the kernel's
// "opcode 0" convention for lddw's second slot).
type Instruction struct {
	Op  uint8
	Dst Reg
	Src Reg
	Off int16
	Imm int32
}

// Bytes serializes the instruction to its little-endian 8-byte wire form:
// [opcode, (src<<4)|dst, off_lo, off_hi, imm_0, imm_1, imm_2, imm_3], the
// exact layout bpf_insn requires.
func (in Instruction) Bytes() [8]byte {
	var b [8]byte
	b[0] = in.Op
	b[1] = (uint8(in.Src) << 4) | (uint8(in.Dst) & 0x0f)
	le.PutUint16(b[2:4], uint16(in.Off))
	le.PutUint32(b[4:8], uint32(in.Imm))
	return b
}

// opcode class bits, from <linux/bpf.h>.
const (
	classLD    uint8 = 0x00
	classLDX   uint8 = 0x01
	classST    uint8 = 0x02
	classSTX   uint8 = 0x03
	classALU   uint8 = 0x04
	classJMP   uint8 = 0x05
	classJMP32 uint8 = 0x06
	classALU64 uint8 = 0x07
)

// source operand bit (immediate vs register), OR'd into the low opcode byte.
const (
	srcK uint8 = 0x00 // BPF_K: immediate operand
	srcX uint8 = 0x08 // BPF_X: register operand
)

// size bits for load/store opcodes.
const (
	sizeW  uint8 = 0x00 // word, 4 bytes
	sizeH  uint8 = 0x08 // half word, 2 bytes
	sizeB  uint8 = 0x10 // byte, 1 byte
	sizeDW uint8 = 0x18 // double word, 8 bytes
)

// mode bits for load/store opcodes.
const (
	modeIMM uint8 = 0x00
	modeABS uint8 = 0x20
	modeIND uint8 = 0x40
	modeMEM uint8 = 0x60
	modeXADD uint8 = 0xc0
)

func encErrf(format string, args ...any) error {
	return &Error{Kind: KindEncoding, Op: "insn.encode", Err: fmt.Errorf(format, args...)}
}

func checkRegs(regs ...Reg) error {
	for _, r := range regs {
		if !r.valid() {
			return encErrf("invalid register r%d", uint8(r))
		}
	}
	return nil
}

func checkWidth(width int) (uint8, error) {
	switch width {
	case 1:
		return sizeB, nil
	case 2:
		return sizeH, nil
	case 4:
		return sizeW, nil
	case 8:
		return sizeDW, nil
	default:
		return 0, encErrf("unsupported width %d (want 1, 2, 4, or 8)", width)
	}
}

func checkImm32(v int64) (int32, error) {
	if v < -(1<<31) || v > (1<<31)-1 {
		return 0, encErrf("immediate %d out of range for 32-bit imm field", v)
	}
	return int32(v), nil
}
