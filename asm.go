package gobpf

import "fmt"

// Elem is one entry in the pre-assembly instruction stream: a raw
// instruction (or lddw pair), a label, or a symbolic jump whose target is a
// label name rather than a resolved offset.
type Elem struct {
	// kind discriminates the variant; the unexported fields below are
	// populated according to kind. Elem is constructed only through the
	// I/ILddw/L/JReg/JImm/JA helpers so callers can't build an inconsistent
	// value.
	kind elemKind

	insns []Instruction // kind == elemInsn: 1 entry, or 2 for lddw

	label string // kind == elemLabel: the label name

	// kind == elemSymJump:
	isJA      bool
	cond      JumpCond
	dst       Reg
	src       Reg
	imm       int32
	useReg    bool
	target    string
}

type elemKind uint8

const (
	elemInsn elemKind = iota
	elemLabel
	elemSymJump
)

// I wraps a single already-encoded instruction as a stream element.
func I(insn Instruction) Elem { return Elem{kind: elemInsn, insns: []Instruction{insn}} }

// ILddw wraps an lddw pair (as returned by Lddw/LddwMapFD) as a single
// stream element contributing 2 positions ( pass 1).
func ILddw(pair [2]Instruction) Elem {
	return Elem{kind: elemInsn, insns: []Instruction{pair[0], pair[1]}}
}

// L declares a label at the current stream position. Label names must be
// unique within a stream.
func L(name string) Elem { return Elem{kind: elemLabel, label: name} }

// JReg emits a symbolic conditional jump against a register operand,
// resolved at assembly time to `target`'s position.
func JReg(cond JumpCond, dst, src Reg, target string) Elem {
	return Elem{kind: elemSymJump, cond: cond, dst: dst, src: src, useReg: true, target: target}
}

// JImm emits a symbolic conditional jump against an immediate operand.
func JImm(cond JumpCond, dst Reg, imm int32, target string) Elem {
	return Elem{kind: elemSymJump, cond: cond, dst: dst, imm: imm, target: target}
}

// JA emits a symbolic unconditional jump to `target`.
func JA(target string) Elem {
	return Elem{kind: elemSymJump, isJA: true, target: target}
}

// FromInstructions lifts an already-resolved instruction slice back into a
// stream of plain Elem values, with no labels or symbolic jumps. Used both
// by callers re-assembling output and to keep Assemble idempotent:
// Assemble(FromInstructions(Assemble(s))) == Assemble(s).
func FromInstructions(insns []Instruction) []Elem {
	out := make([]Elem, len(insns))
	for i, in := range insns {
		out[i] = I(in)
	}
	return out
}

// Assemble runs a two-pass label-resolution algorithm over stream and
// returns the final, position-ordered bytecode.
//
// Pass 1 walks the stream accumulating a position counter (labels
// contribute 0, lddw contributes 2, everything else contributes 1),
// building a label→position map; a duplicate label is fatal.
//
// Pass 2 re-walks the stream emitting a position-indexed instruction
// vector: labels are dropped, and each symbolic jump's offset is computed
// as target_position − current_position − 1 and checked against the
// signed 16-bit range.
func Assemble(stream []Elem) ([]Instruction, error) {
	labelPos, err := resolveLabels(stream)
	if err != nil {
		return nil, err
	}
	return emitResolved(stream, labelPos)
}

func resolveLabels(stream []Elem) (map[string]int, error) {
	labelPos := make(map[string]int, len(stream))
	pos := 0
	for _, e := range stream {
		switch e.kind {
		case elemLabel:
			if _, dup := labelPos[e.label]; dup {
				return nil, &Error{Kind: KindEncoding, Op: "assemble",
					Err: fmt.Errorf("duplicate label %q", e.label)}
			}
			labelPos[e.label] = pos
		case elemInsn:
			pos += len(e.insns)
		case elemSymJump:
			pos++
		}
	}
	return labelPos, nil
}

func emitResolved(stream []Elem, labelPos map[string]int) ([]Instruction, error) {
	out := make([]Instruction, 0, len(stream))
	pos := 0
	for _, e := range stream {
		switch e.kind {
		case elemLabel:
			// Labels elide; position is unaffected.
		case elemInsn:
			out = append(out, e.insns...)
			pos += len(e.insns)
		case elemSymJump:
			target, ok := labelPos[e.target]
			if !ok {
				return nil, &Error{Kind: KindEncoding, Op: "assemble",
					Err: fmt.Errorf("undefined label %q", e.target)}
			}
			offset := target - pos - 1
			if offset < -32768 || offset > 32767 {
				return nil, &Error{Kind: KindJumpOutOfRange, Op: "assemble",
					Err: fmt.Errorf("jump to %q: offset %d out of i16 range", e.target, offset)}
			}
			var insn Instruction
			var err error
			switch {
			case e.isJA:
				insn, err = jumpAlways(int16(offset))
			case e.useReg:
				insn, err = jumpReg(e.cond, e.dst, e.src, int16(offset))
			default:
				insn, err = jumpImm(e.cond, e.dst, e.imm, int16(offset))
			}
			if err != nil {
				return nil, err
			}
			out = append(out, insn)
			pos++
		}
	}
	return out, nil
}

// Len computes the resolved instruction count a stream will assemble to,
// without resolving jumps — the same position accounting pass 1 performs.
func Len(stream []Elem) int {
	n := 0
	for _, e := range stream {
		switch e.kind {
		case elemInsn:
			n += len(e.insns)
		case elemSymJump:
			n++
		}
	}
	return n
}
