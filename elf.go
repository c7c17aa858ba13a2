package gobpf

import (
	"bytes"
	"debug/elf"
	"fmt"
	"strings"

	"github.com/xyproto/gobpf/internal/xlog"
)

// Object is the parsed contents of a compiled BPF ELF object file.
// It exposes every program and map definition found in
// the object, with map-fd relocations already identified but not yet
// applied (that happens once the maps are created, via ApplyMapRelocations).
type Object struct {
	License string
	Version uint32

	Programs []ObjectProgram
	Maps     []ObjectMapDef

	logger xlog.Logger
}

// ObjectProgram is one ELF program section, its inferred ProgType, and its
// raw (pre-relocation) instructions.
type ObjectProgram struct {
	SectionName  string
	Type         ProgType
	Instructions []Instruction

	relocations []objRelocation
}

// ObjectMapDef is one entry the compiler emitted into the object's .maps
// section.
type ObjectMapDef struct {
	Name       string
	Type       MapType
	KeySize    uint32
	ValueSize  uint32
	MaxEntries uint32
	Flags      MapFlags
}

// objRelocation records one unresolved lddw-map-fd instruction: which
// instruction index within a program's stream references which map by
// name, to be patched once that map has a live fd (
// "Relocation").
type objRelocation struct {
	insnIndex int
	mapName   string
}

// bpfMapDefWireSize is sizeof(struct bpf_map_def) as libbpf-compatible
// compilers emit it into .maps: type, key_size, value_size, max_entries,
// map_flags, each a u32.
const bpfMapDefWireSize = 20

// sectionProgType infers a program's BPF_PROG_TYPE from its ELF section
// name prefix, the convention every BPF compiler toolchain follows. An
// unrecognized prefix is not an error:
// the section is skipped, since ELF objects routinely carry sections (.text,
// license, .maps, BTF) that are not themselves programs.
func sectionProgType(name string) (ProgType, bool) {
	switch {
	case strings.HasPrefix(name, "kprobe/"), strings.HasPrefix(name, "kretprobe/"):
		return ProgTypeKprobe, true
	case strings.HasPrefix(name, "tracepoint/"):
		return ProgTypeTracepoint, true
	case strings.HasPrefix(name, "raw_tracepoint/"):
		return ProgTypeRawTracepoint, true
	case strings.HasPrefix(name, "xdp"):
		return ProgTypeXDP, true
	case strings.HasPrefix(name, "classifier"), strings.HasPrefix(name, "tc"):
		return ProgTypeSchedCls, true
	case strings.HasPrefix(name, "cgroup_skb/"):
		return ProgTypeCgroupSkb, true
	case strings.HasPrefix(name, "cgroup/sock"):
		return ProgTypeCgroupSock, true
	case strings.HasPrefix(name, "lsm/"):
		return ProgTypeLSM, true
	case strings.HasPrefix(name, "socket"):
		return ProgTypeSocketFilter, true
	case strings.HasPrefix(name, "perf_event"):
		return ProgTypePerfEvent, true
	default:
		return 0, false
	}
}

// LoadObject parses a compiled BPF ELF object from raw, extracting every
// program section, the maps section, and the license/version sections. It
// does not create any kernel objects. After inspecting/adjusting the result,
// create the maps (the convenience Load method does this), patch map
// references with ApplyMapRelocations, and load each program with LoadProg.
func LoadObject(raw []byte, logger xlog.Logger) (*Object, error) {
	f, err := elf.NewFile(bytes.NewReader(raw))
	if err != nil {
		return nil, &Error{Kind: KindEncoding, Op: "elf.parse", Err: err}
	}
	defer f.Close()

	obj := &Object{License: "GPL", logger: logger}

	if sec := f.Section("license"); sec != nil {
		data, err := sec.Data()
		if err != nil {
			return nil, &Error{Kind: KindEncoding, Op: "elf.license", Err: err}
		}
		obj.License = cString(data)
	}
	if sec := f.Section("version"); sec != nil {
		data, err := sec.Data()
		if err == nil && len(data) >= 4 {
			obj.Version = le.Uint32(data[:4])
		}
	}
	// Newer toolchains emit a dense BTF-style ".maps" section holding every
	// map definition; older ones emit a single bpf_map_def-sized section
	// literally named "maps", one map per compilation unit. Both use the
	// same fixed-stride record layout, so parseMapsSection handles either.
	mapsSec := f.Section(".maps")
	if mapsSec == nil {
		mapsSec = f.Section("maps")
	}
	if mapsSec != nil {
		maps, err := parseMapsSection(f, mapsSec)
		if err != nil {
			return nil, err
		}
		obj.Maps = maps
	}

	for _, sec := range f.Sections {
		if sec.Type != elf.SHT_PROGBITS || sec.Flags&elf.SHF_EXECINSTR == 0 {
			continue
		}
		progType, ok := sectionProgType(sec.Name)
		if !ok {
			continue
		}
		data, err := sec.Data()
		if err != nil {
			return nil, &Error{Kind: KindEncoding, Op: "elf.section", Err: err}
		}
		insns, err := decodeInstructions(data)
		if err != nil {
			return nil, &Error{Kind: KindEncoding, Op: fmt.Sprintf("elf.section(%s)", sec.Name), Err: err}
		}
		relocs, err := parseRelocations(f, sec, obj.Maps)
		if err != nil {
			return nil, err
		}
		obj.Programs = append(obj.Programs, ObjectProgram{
			SectionName:  sec.Name,
			Type:         progType,
			Instructions: insns,
			relocations:  relocs,
		})
	}
	return obj, nil
}

// decodeInstructions splits a raw .text-like section into 8-byte
// Instruction records, 's byte-exact bpf_insn layout.
func decodeInstructions(data []byte) ([]Instruction, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("instruction section length %d is not a multiple of 8", len(data))
	}
	out := make([]Instruction, len(data)/8)
	for i := range out {
		b := data[i*8 : i*8+8]
		out[i] = Instruction{
			Op:  b[0],
			Dst: Reg(b[1] & 0x0f),
			Src: Reg(b[1] >> 4),
			Off: int16(le.Uint16(b[2:4])),
			Imm: int32(le.Uint32(b[4:8])),
		}
	}
	return out, nil
}

// parseMapsSection decodes the fixed-stride struct bpf_map_def array in the
// .maps section, naming each map from the matching symbol table entry
// rather than the section data itself.
func parseMapsSection(f *elf.File, sec *elf.Section) ([]ObjectMapDef, error) {
	data, err := sec.Data()
	if err != nil {
		return nil, &Error{Kind: KindEncoding, Op: "elf.maps", Err: err}
	}
	syms, err := f.Symbols()
	if err != nil {
		return nil, &Error{Kind: KindEncoding, Op: "elf.symbols", Err: err}
	}
	secIndex := sectionIndex(f, sec)

	var defs []ObjectMapDef
	for _, sym := range syms {
		if int(sym.Section) != secIndex {
			continue
		}
		off := sym.Value
		if off+bpfMapDefWireSize > uint64(len(data)) {
			continue
		}
		rec := data[off : off+bpfMapDefWireSize]
		defs = append(defs, ObjectMapDef{
			Name:       sym.Name,
			Type:       MapType(le.Uint32(rec[0:4])),
			KeySize:    le.Uint32(rec[4:8]),
			ValueSize:  le.Uint32(rec[8:12]),
			MaxEntries: le.Uint32(rec[12:16]),
			Flags:      MapFlags(le.Uint32(rec[16:20])),
		})
	}
	return defs, nil
}

func sectionIndex(f *elf.File, target *elf.Section) int {
	for i, s := range f.Sections {
		if s == target {
			return i
		}
	}
	return -1
}

// parseRelocations walks the .rel<section>/.rela<section> relocation table
// for sec, identifying every lddw instruction that references a map symbol
// so ApplyMapRelocations can later patch in the real map fd (
// "Relocation: .maps symbol references inside lddw instructions").
func parseRelocations(f *elf.File, sec *elf.Section, maps []ObjectMapDef) ([]objRelocation, error) {
	relSec := findRelocationSection(f, sec.Name)
	if relSec == nil {
		return nil, nil
	}
	syms, err := f.Symbols()
	if err != nil {
		return nil, &Error{Kind: KindEncoding, Op: "elf.symbols", Err: err}
	}
	data, err := relSec.Data()
	if err != nil {
		return nil, &Error{Kind: KindEncoding, Op: "elf.relocations", Err: err}
	}

	entSize := 24 // Elf64_Rela: r_offset, r_info, r_addend
	if relSec.Type == elf.SHT_REL {
		entSize = 16 // Elf64_Rel: r_offset, r_info
	}
	var out []objRelocation
	for off := 0; off+entSize <= len(data); off += entSize {
		rOffset := le.Uint64(data[off : off+8])
		rInfo := le.Uint64(data[off+8 : off+16])
		symIndex := rInfo >> 32
		if int(symIndex) >= len(syms) {
			continue
		}
		name := syms[symIndex].Name
		if !mapNameKnown(maps, name) {
			continue
		}
		out = append(out, objRelocation{insnIndex: int(rOffset / 8), mapName: name})
	}
	return out, nil
}

func findRelocationSection(f *elf.File, targetName string) *elf.Section {
	for _, s := range f.Sections {
		if s.Type == elf.SHT_RELA || s.Type == elf.SHT_REL {
			if s.Name == ".rela"+targetName || s.Name == ".rel"+targetName {
				return s
			}
		}
	}
	return nil
}

func mapNameKnown(maps []ObjectMapDef, name string) bool {
	for _, m := range maps {
		if m.Name == name {
			return true
		}
	}
	return false
}

// ApplyMapRelocations patches every lddw-map-fd relocation recorded against
// prog with the live file descriptors in fdByName, returning a new
// instruction slice ready to pass to LoadProg. fdByName
// must have an entry for every map name the object's relocations reference.
func ApplyMapRelocations(prog ObjectProgram, fdByName map[string]int32) ([]Instruction, error) {
	out := append([]Instruction(nil), prog.Instructions...)
	for _, r := range prog.relocations {
		fd, ok := fdByName[r.mapName]
		if !ok {
			return nil, &Error{Kind: KindUsageError, Op: "elf.relocate",
				Err: fmt.Errorf("no fd provided for map %q", r.mapName)}
		}
		if r.insnIndex < 0 || r.insnIndex+1 >= len(out) {
			return nil, &Error{Kind: KindEncoding, Op: "elf.relocate",
				Err: fmt.Errorf("relocation for %q references out-of-range instruction %d", r.mapName, r.insnIndex)}
		}
		pair, err := LddwMapFD(out[r.insnIndex].Dst, fd)
		if err != nil {
			return nil, err
		}
		out[r.insnIndex] = pair[0]
		out[r.insnIndex+1] = pair[1]
	}
	return out, nil
}

// Load is a convenience wrapper that parses raw into an Object and creates
// every map it declares in order, returning both the Object and the
// created Maps keyed by name — the common case for a caller that doesn't
// need to inspect the object before materializing its maps.
func Load(raw []byte, logger xlog.Logger) (*Object, map[string]*Map, error) {
	obj, err := LoadObject(raw, logger)
	if err != nil {
		return nil, nil, err
	}
	maps := make(map[string]*Map, len(obj.Maps))
	for _, def := range obj.Maps {
		m, err := CreateMap(MapSpec{
			Type:       def.Type,
			Name:       def.Name,
			KeySize:    def.KeySize,
			ValueSize:  def.ValueSize,
			MaxEntries: def.MaxEntries,
			Flags:      def.Flags,
			Logger:     logger,
		})
		if err != nil {
			for _, created := range maps {
				created.Close()
			}
			return nil, nil, err
		}
		maps[def.Name] = m
	}
	return obj, maps, nil
}
