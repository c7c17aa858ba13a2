package gobpf

// Call encodes `call helperID` — invoking a kernel helper function by its
// numeric ID. The helper-function metadata catalog itself
// (names, signatures) is out of scope ; callers pass the raw
// numeric ID.
func Call(helperID int32) (Instruction, error) {
	return Instruction{Op: classJMP | 0x80, Imm: helperID}, nil // BPF_CALL = 0x80
}

// Exit encodes the `exit` instruction, returning the value in r0 to the
// caller (or ending the program).
func Exit() (Instruction, error) {
	return Instruction{Op: classJMP | 0x90}, nil // BPF_EXIT = 0x90
}
