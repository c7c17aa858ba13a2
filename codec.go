package gobpf

import "encoding/binary"

// le and be give every file in this package a single, short name for the
// byte order it uses, instead of repeating encoding/binary.LittleEndian
// everywhere. The eBPF ABI and every UAPI struct in this package is
// little-endian; "be" exists only for helper callers that need to pack
// big-endian wire fields (rtnetlink is host-endian, which on every arch
// gobpf supports is little-endian, so the two happen to coincide here).
var (
	le = binary.LittleEndian
	be = binary.BigEndian
)

// packName copies s into a fixed-size, NUL-padded byte array of length n,
// truncating s to n-1 bytes so the result always ends in a NUL. Used for the
// 16-byte map_name/prog_name fields in bpf_attr.
func packName(s string, n int) []byte {
	b := make([]byte, n)
	copy(b[:n-1], s)
	return b
}

// cString trims a NUL-padded byte buffer down to its NUL-terminated prefix,
// used when reading back ELF section contents (license, e.g.) or fixed-size
// name fields.
func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// alignUp8 rounds n up to the next multiple of 8, used for ring-buffer
// record framing (each record is 8-byte aligned including its 8-byte
// header) and for the per-CPU value stride.
func alignUp8(n uint32) uint32 {
	return (n + 7) &^ 7
}

// isPowerOfTwo reports whether n is a power of two, the constraint the
// kernel places on ring-buffer and perf-buffer data region sizes.
func isPowerOfTwo(n uint32) bool {
	return n != 0 && n&(n-1) == 0
}
