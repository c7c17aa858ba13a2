package gobpf

// LdxMem encodes `dst = *(width *)(src + off)` — ldx{b,h,w,dw}.
// width is in bytes: 1, 2, 4, or 8.
func LdxMem(width int, dst, src Reg, off int16) (Instruction, error) {
	size, err := checkWidth(width)
	if err != nil {
		return Instruction{}, err
	}
	if err := checkRegs(dst, src); err != nil {
		return Instruction{}, err
	}
	return Instruction{Op: classLDX | modeMEM | size, Dst: dst, Src: src, Off: off}, nil
}

// StxMem encodes `*(width *)(dst + off) = src` — stx{b,h,w,dw}.
func StxMem(width int, dst, src Reg, off int16) (Instruction, error) {
	size, err := checkWidth(width)
	if err != nil {
		return Instruction{}, err
	}
	if err := checkRegs(dst, src); err != nil {
		return Instruction{}, err
	}
	return Instruction{Op: classSTX | modeMEM | size, Dst: dst, Src: src, Off: off}, nil
}

// StImm encodes `*(width *)(dst + off) = imm`, the immediate-store form.
func StImm(width int, dst Reg, off int16, imm int32) (Instruction, error) {
	size, err := checkWidth(width)
	if err != nil {
		return Instruction{}, err
	}
	if width == 8 {
		return Instruction{}, encErrf("st does not support 8-byte immediate stores; use stx")
	}
	if err := checkRegs(dst); err != nil {
		return Instruction{}, err
	}
	return Instruction{Op: classST | modeMEM | size, Dst: dst, Off: off, Imm: imm}, nil
}

// lddw pseudo-modes for the src_reg field of the first slot, distinguishing
// a plain 64-bit immediate load from the verifier-only map-fd/map-value
// relocation forms the verifier resolves at load time.
const (
	// PseudoNone loads a plain 64-bit immediate into dst.
	PseudoNone uint8 = 0x00
	// PseudoMapFD loads a map's file descriptor (src1 = low 32 bits of fd)
	// so the verifier can resolve it to the map object.
	PseudoMapFD uint8 = 0x01
	// PseudoMapValue loads the address of a map's value at a byte offset
	// (src1 = fd, Instruction.Imm of the second slot = offset).
	PseudoMapValue uint8 = 0x02
)

// Lddw encodes a 64-bit immediate load as two consecutive Instruction
// values: the first carries the opcode, pseudo-mode, and low 32 bits of
// imm; the second slot holds the high 32 bits of imm and uses opcode 0.
func Lddw(dst Reg, imm uint64, pseudo uint8) ([2]Instruction, error) {
	if err := checkRegs(dst); err != nil {
		return [2]Instruction{}, err
	}
	switch pseudo {
	case PseudoNone, PseudoMapFD, PseudoMapValue:
	default:
		return [2]Instruction{}, encErrf("unknown lddw pseudo-mode %#x", pseudo)
	}
	return [2]Instruction{
		{Op: classLD | modeIMM | sizeDW, Dst: dst, Src: Reg(pseudo), Imm: int32(uint32(imm))},
		{Op: 0, Imm: int32(uint32(imm >> 32))},
	}, nil
}

// LddwMapFD is the common case of Lddw used to reference a map by its
// kernel file descriptor ( relocation target).
func LddwMapFD(dst Reg, mapFD int32) ([2]Instruction, error) {
	return Lddw(dst, uint64(uint32(mapFD)), PseudoMapFD)
}
