package gobpf

import (
	"bytes"
	"debug/elf"
	"testing"

	"gotest.tools/v3/assert"
)

func TestSectionProgTypeRecognizesConventionalPrefixes(t *testing.T) {
	cases := map[string]ProgType{
		"kprobe/do_sys_open":     ProgTypeKprobe,
		"kretprobe/do_sys_open":  ProgTypeKprobe,
		"tracepoint/syscalls/x":  ProgTypeTracepoint,
		"raw_tracepoint/sys_enter": ProgTypeRawTracepoint,
		"xdp_drop":               ProgTypeXDP,
		"classifier/ingress":     ProgTypeSchedCls,
		"lsm/bprm_check_security": ProgTypeLSM,
		"socket1":                ProgTypeSocketFilter,
	}
	for name, want := range cases {
		got, ok := sectionProgType(name)
		assert.Assert(t, ok, name)
		assert.Equal(t, got, want, name)
	}
}

func TestSectionProgTypeRejectsUnknownPrefix(t *testing.T) {
	_, ok := sectionProgType(".text")
	assert.Assert(t, !ok)
	_, ok = sectionProgType(".maps")
	assert.Assert(t, !ok)
}

func TestDecodeInstructionsRejectsUnalignedLength(t *testing.T) {
	_, err := decodeInstructions(make([]byte, 7))
	assert.ErrorContains(t, err, "not a multiple of 8")
}

func TestDecodeInstructionsRoundTripsBytes(t *testing.T) {
	mov, _ := Mov64Imm(R1, 5)
	exit, _ := Exit()
	raw := append(append([]byte{}, mov.Bytes()[:]...), exit.Bytes()[:]...)
	insns, err := decodeInstructions(raw)
	assert.NilError(t, err)
	assert.Equal(t, len(insns), 2)
	assert.Equal(t, insns[0].Imm, int32(5))
	assert.Equal(t, insns[0].Dst, R1)
}

// buildMinimalObject assembles a tiny little-endian ET_REL ELF file with a
// single executable "socket1" section and a license section, enough to
// exercise LoadObject's section/program walk without depending on an
// external compiler toolchain.
func buildMinimalObject(t *testing.T) []byte {
	t.Helper()
	mov, _ := Mov64Imm(R0, 0)
	exit, _ := Exit()
	progBytes := append(append([]byte{}, mov.Bytes()[:]...), exit.Bytes()[:]...)

	var buf bytes.Buffer
	// This hand-rolls just enough of an ELF64 little-endian relocatable
	// object for debug/elf to parse back the "socket1" and "license"
	// sections; it does not attempt to be a valid linker input.
	const (
		ehsize    = 64
		shentsize = 64
	)
	shstrtab := []byte{0}
	addStr := func(s string) uint32 {
		off := uint32(len(shstrtab))
		shstrtab = append(shstrtab, append([]byte(s), 0)...)
		return off
	}
	nullOff := addStr("")
	_ = nullOff
	socketOff := addStr("socket1")
	licenseOff := addStr("license")
	shstrtabOff := addStr(".shstrtab")

	dataStart := uint64(ehsize)
	socketData := progBytes
	licenseData := append([]byte("GPL"), 0)

	socketFileOff := dataStart
	licenseFileOff := socketFileOff + uint64(len(socketData))
	shstrtabFileOff := licenseFileOff + uint64(len(licenseData))
	shoff := shstrtabFileOff + uint64(len(shstrtab))

	// ELF header
	buf.Write([]byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	writeLE16(&buf, uint16(elf.ET_REL))
	writeLE16(&buf, uint16(elf.EM_X86_64))
	writeLE32(&buf, 1) // version
	writeLE64(&buf, 0) // entry
	writeLE64(&buf, 0) // phoff
	writeLE64(&buf, shoff)
	writeLE32(&buf, 0) // flags
	writeLE16(&buf, ehsize)
	writeLE16(&buf, 0) // phentsize
	writeLE16(&buf, 0) // phnum
	writeLE16(&buf, shentsize)
	writeLE16(&buf, 4) // shnum: null, socket1, license, shstrtab
	writeLE16(&buf, 3) // shstrndx

	buf.Write(socketData)
	buf.Write(licenseData)
	buf.Write(shstrtab)

	writeSectionHeader(&buf, 0, 0, 0, 0, 0, 0)
	writeSectionHeader(&buf, socketOff, uint32(elf.SHT_PROGBITS), uint64(elf.SHF_EXECINSTR|elf.SHF_ALLOC), socketFileOff, uint64(len(socketData)))
	writeSectionHeader(&buf, licenseOff, uint32(elf.SHT_PROGBITS), uint64(elf.SHF_ALLOC), licenseFileOff, uint64(len(licenseData)))
	writeSectionHeader(&buf, shstrtabOff, uint32(elf.SHT_STRTAB), 0, shstrtabFileOff, uint64(len(shstrtab)))

	return buf.Bytes()
}

func writeLE16(buf *bytes.Buffer, v uint16) { b := make([]byte, 2); le.PutUint16(b, v); buf.Write(b) }
func writeLE32(buf *bytes.Buffer, v uint32) { b := make([]byte, 4); le.PutUint32(b, v); buf.Write(b) }
func writeLE64(buf *bytes.Buffer, v uint64) { b := make([]byte, 8); le.PutUint64(b, v); buf.Write(b) }

func writeSectionHeader(buf *bytes.Buffer, name uint32, typ uint32, flags uint64, off, size uint64) {
	writeLE32(buf, name)
	writeLE32(buf, typ)
	writeLE64(buf, flags)
	writeLE64(buf, 0) // addr
	writeLE64(buf, off)
	writeLE64(buf, size)
	writeLE32(buf, 0) // link
	writeLE32(buf, 0) // info
	writeLE64(buf, 1) // addralign
	writeLE64(buf, 0) // entsize
}

func TestLoadObjectParsesProgramsAndLicense(t *testing.T) {
	raw := buildMinimalObject(t)
	obj, err := LoadObject(raw, nil)
	assert.NilError(t, err)
	assert.Equal(t, obj.License, "GPL")
	assert.Equal(t, len(obj.Programs), 1)
	assert.Equal(t, obj.Programs[0].SectionName, "socket1")
	assert.Equal(t, obj.Programs[0].Type, ProgTypeSocketFilter)
	assert.Equal(t, len(obj.Programs[0].Instructions), 2)
}

// buildObjectWithLegacyMapsSection builds a minimal ET_REL object with one
// map definition in a section literally named "maps" (no leading dot, the
// convention older compilers emit) plus the symtab/strtab LoadObject needs
// to name it.
func buildObjectWithLegacyMapsSection(t *testing.T) []byte {
	t.Helper()

	mapDef := make([]byte, bpfMapDefWireSize)
	le.PutUint32(mapDef[0:4], uint32(MapTypeHash))
	le.PutUint32(mapDef[4:8], 4)
	le.PutUint32(mapDef[8:12], 8)
	le.PutUint32(mapDef[12:16], 64)

	var buf bytes.Buffer
	const (
		ehsize    = 64
		shentsize = 64
		symsize   = 24
	)
	shstrtab := []byte{0}
	addShStr := func(s string) uint32 {
		off := uint32(len(shstrtab))
		shstrtab = append(shstrtab, append([]byte(s), 0)...)
		return off
	}
	mapsOff := addShStr("maps")
	symtabOff := addShStr(".symtab")
	strtabOff := addShStr(".strtab")
	shstrtabOff := addShStr(".shstrtab")

	strtab := []byte{0}
	addStr := func(s string) uint32 {
		off := uint32(len(strtab))
		strtab = append(strtab, append([]byte(s), 0)...)
		return off
	}
	mapNameOff := addStr("counters")

	// Elf64_Sym: name(4) info(1) other(1) shndx(2) value(8) size(8).
	sym := make([]byte, symsize)
	le.PutUint32(sym[0:4], mapNameOff)
	sym[4] = 0  // info: local, STT_NOTYPE
	sym[5] = 0  // other
	le.PutUint16(sym[6:8], 1) // shndx: section 1 ("maps", see layout below)
	le.PutUint64(sym[8:16], 0)
	le.PutUint64(sym[16:24], uint64(bpfMapDefWireSize))
	symtab := append(make([]byte, symsize), sym...) // null symbol + real one

	dataStart := uint64(ehsize)
	mapsFileOff := dataStart
	symtabFileOff := mapsFileOff + uint64(len(mapDef))
	strtabFileOff := symtabFileOff + uint64(len(symtab))
	shstrtabFileOff := strtabFileOff + uint64(len(strtab))
	shoff := shstrtabFileOff + uint64(len(shstrtab))

	buf.Write([]byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	writeLE16(&buf, uint16(elf.ET_REL))
	writeLE16(&buf, uint16(elf.EM_X86_64))
	writeLE32(&buf, 1)
	writeLE64(&buf, 0)
	writeLE64(&buf, 0)
	writeLE64(&buf, shoff)
	writeLE32(&buf, 0)
	writeLE16(&buf, ehsize)
	writeLE16(&buf, 0)
	writeLE16(&buf, 0)
	writeLE16(&buf, shentsize)
	writeLE16(&buf, 5) // null, maps, .symtab, .strtab, .shstrtab
	writeLE16(&buf, 4) // shstrndx

	buf.Write(mapDef)
	buf.Write(symtab)
	buf.Write(strtab)
	buf.Write(shstrtab)

	writeSectionHeader(&buf, 0, 0, 0, 0, 0, 0)
	writeSectionHeader(&buf, mapsOff, uint32(elf.SHT_PROGBITS), uint64(elf.SHF_ALLOC), mapsFileOff, uint64(len(mapDef)))
	writeSymtabSectionHeader(&buf, symtabOff, symtabFileOff, uint64(len(symtab)), symsize)
	writeSectionHeader(&buf, strtabOff, uint32(elf.SHT_STRTAB), 0, strtabFileOff, uint64(len(strtab)))
	writeSectionHeader(&buf, shstrtabOff, uint32(elf.SHT_STRTAB), 0, shstrtabFileOff, uint64(len(shstrtab)))

	return buf.Bytes()
}

// writeSymtabSectionHeader is writeSectionHeader plus the sh_link (→
// .strtab, section index 3) and sh_entsize fields a SHT_SYMTAB section
// needs for debug/elf to decode its symbols.
func writeSymtabSectionHeader(buf *bytes.Buffer, name uint32, off, size uint64, entsize uint64) {
	writeLE32(buf, name)
	writeLE32(buf, uint32(elf.SHT_SYMTAB))
	writeLE64(buf, 0)
	writeLE64(buf, 0)
	writeLE64(buf, off)
	writeLE64(buf, size)
	writeLE32(buf, 3) // link: .strtab is section index 3
	writeLE32(buf, 2) // info: index of first non-local symbol
	writeLE64(buf, 8)
	writeLE64(buf, entsize)
}

func TestLoadObjectParsesLegacyMapsSectionName(t *testing.T) {
	raw := buildObjectWithLegacyMapsSection(t)
	obj, err := LoadObject(raw, nil)
	assert.NilError(t, err)
	assert.Equal(t, len(obj.Maps), 1)
	assert.Equal(t, obj.Maps[0].Name, "counters")
	assert.Equal(t, obj.Maps[0].Type, MapTypeHash)
	assert.Equal(t, obj.Maps[0].KeySize, uint32(4))
	assert.Equal(t, obj.Maps[0].ValueSize, uint32(8))
	assert.Equal(t, obj.Maps[0].MaxEntries, uint32(64))
}

func TestApplyMapRelocationsRequiresFDForEveryReference(t *testing.T) {
	prog := ObjectProgram{
		Instructions: []Instruction{{}, {}},
		relocations:  []objRelocation{{insnIndex: 0, mapName: "counters"}},
	}
	_, err := ApplyMapRelocations(prog, map[string]int32{})
	assert.ErrorContains(t, err, "no fd provided")
}

func TestApplyMapRelocationsPatchesLddwPair(t *testing.T) {
	prog := ObjectProgram{
		Instructions: []Instruction{{Dst: R1}, {}},
		relocations:  []objRelocation{{insnIndex: 0, mapName: "counters"}},
	}
	out, err := ApplyMapRelocations(prog, map[string]int32{"counters": 42})
	assert.NilError(t, err)
	assert.Equal(t, out[0].Src, Reg(PseudoMapFD))
	assert.Equal(t, out[0].Imm, int32(42))
}
