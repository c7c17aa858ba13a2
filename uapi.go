package gobpf

import "unsafe"

// bpfAttrSize is sizeof(union bpf_attr) as the kernel expects it on the
// syscall ABI. Every command is passed a zero-initialized buffer of
// exactly this size, with only the fields that command defines populated
// at their UAPI offsets.
const bpfAttrSize = 128

// bpfAttr is a raw, byte-exact bpf_attr buffer. It is deliberately a flat
// byte array rather than a Go struct: the kernel UAPI defines a union of
// differently-shaped variants at fixed byte offsets, and Go struct field
// layout/padding rules give no such guarantee. Every setter below writes at
// the literal offset the UAPI header names.
type bpfAttr [bpfAttrSize]byte

func (a *bpfAttr) putU32(off int, v uint32) { le.PutUint32(a[off:off+4], v) }
func (a *bpfAttr) putU64(off int, v uint64) { le.PutUint64(a[off:off+8], v) }
func (a *bpfAttr) putPtr(off int, p unsafe.Pointer) {
	le.PutUint64(a[off:off+8], uint64(uintptr(p)))
}
func (a *bpfAttr) putBytes(off int, b []byte) { copy(a[off:], b) }

func (a *bpfAttr) pointer() unsafe.Pointer { return unsafe.Pointer(a) }

// mapCreateSpec is the set of fields the BPF_MAP_CREATE command reads, at
// the offsets the kernel UAPI fixes:
//
//	map_type@0 key_size@4 value_size@8 max_entries@12 map_flags@16
//	inner_map_fd@20 numa_node@24 map_name[16]@28 map_ifindex@44
//	btf_fd@48 btf_key_type_id@52 btf_value_type_id@56
//	btf_vmlinux_value_type_id@60 map_extra@64
type mapCreateSpec struct {
	MapType      uint32
	KeySize      uint32
	ValueSize    uint32
	MaxEntries   uint32
	MapFlags     uint32
	InnerMapFD   uint32
	Name         string
	MapExtra     uint64
}

func newMapCreateAttr(s mapCreateSpec) bpfAttr {
	var a bpfAttr
	a.putU32(0, s.MapType)
	a.putU32(4, s.KeySize)
	a.putU32(8, s.ValueSize)
	a.putU32(12, s.MaxEntries)
	a.putU32(16, s.MapFlags)
	a.putU32(20, s.InnerMapFD)
	a.putBytes(28, packName(s.Name, 16))
	a.putU64(64, s.MapExtra)
	return a
}

// progLoadSpec covers the BPF_PROG_LOAD fields this package sets:
//
//	prog_type@0 insn_cnt@4 insns_ptr@8 license_ptr@16 log_level@24
//	log_size@28 log_buf@32 kern_version@40 prog_flags@44 prog_name[16]@48
//	prog_ifindex@64 expected_attach_type@68 prog_btf_fd@72
//
// attachBTFID is required for LSM attachment; per the recorded Open
// Question decision in DESIGN.md it is set only when non-zero and every
// other unlisted field stays zero.
type progLoadSpec struct {
	ProgType           uint32
	Insns              []byte // raw, already-assembled bytecode
	License            string
	LogLevel           uint32
	LogBuf             []byte
	KernVersion        uint32
	Name               string
	ExpectedAttachType uint32
	AttachBTFID        uint32
}

func newProgLoadAttr(s progLoadSpec, licenseBuf []byte) bpfAttr {
	var a bpfAttr
	a.putU32(0, s.ProgType)
	a.putU32(4, uint32(len(s.Insns)/8))
	if len(s.Insns) > 0 {
		a.putPtr(8, unsafe.Pointer(&s.Insns[0]))
	}
	a.putPtr(16, unsafe.Pointer(&licenseBuf[0]))
	a.putU32(24, s.LogLevel)
	if s.LogLevel > 0 && len(s.LogBuf) > 0 {
		a.putU32(28, uint32(len(s.LogBuf)))
		a.putPtr(32, unsafe.Pointer(&s.LogBuf[0]))
	}
	a.putU32(40, s.KernVersion)
	a.putBytes(48, packName(s.Name, 16))
	a.putU32(68, s.ExpectedAttachType)
	if s.AttachBTFID != 0 {
		a.putU32(108, s.AttachBTFID) // attach_btf_id, current kernel UAPI offset
	}
	return a
}

// mapElemSpec covers MAP_LOOKUP/UPDATE/DELETE/GET_NEXT_KEY_ELEM:
//
//	map_fd@0 key_ptr@8 value_or_next_key_ptr@16 flags@24
func newMapElemAttr(mapFD int32, key, valueOrNextKey []byte, flags uint64) bpfAttr {
	var a bpfAttr
	a.putU32(0, uint32(mapFD))
	if len(key) > 0 {
		a.putPtr(8, unsafe.Pointer(&key[0]))
	}
	if len(valueOrNextKey) > 0 {
		a.putPtr(16, unsafe.Pointer(&valueOrNextKey[0]))
	}
	a.putU64(24, flags)
	return a
}

// objSpec covers BPF_OBJ_PIN / BPF_OBJ_GET:
//
//	pathname_ptr@0 bpf_fd@8 file_flags@12
func newObjAttr(pathname []byte, fd int32, fileFlags uint32) bpfAttr {
	var a bpfAttr
	if len(pathname) > 0 {
		a.putPtr(0, unsafe.Pointer(&pathname[0]))
	}
	a.putU32(8, uint32(fd))
	a.putU32(12, fileFlags)
	return a
}

// batchSpec covers the *_BATCH_ELEM commands: an opaque in/out cursor plus
// parallel key/value arrays and a count.
//
//	in_batch@0 out_batch@8 keys@16 values@24 count@32 map_fd@36 elem_flags@40
func newMapBatchAttr(mapFD int32, inBatch, outBatch, keys, values []byte, count uint32, flags uint64) bpfAttr {
	var a bpfAttr
	if len(inBatch) > 0 {
		a.putPtr(0, unsafe.Pointer(&inBatch[0]))
	}
	if len(outBatch) > 0 {
		a.putPtr(8, unsafe.Pointer(&outBatch[0]))
	}
	if len(keys) > 0 {
		a.putPtr(16, unsafe.Pointer(&keys[0]))
	}
	if len(values) > 0 {
		a.putPtr(24, unsafe.Pointer(&values[0]))
	}
	a.putU32(32, count)
	a.putU32(36, uint32(mapFD))
	a.putU64(40, flags)
	return a
}

// progAttachSpec covers BPF_PROG_ATTACH/DETACH (cgroup attachment):
// target_fd@0 attach_bpf_fd@4 attach_type@8 attach_flags@12.
func newProgAttachAttr(targetFD, progFD int32, attachType, flags uint32) bpfAttr {
	var a bpfAttr
	a.putU32(0, uint32(targetFD))
	a.putU32(4, uint32(progFD))
	a.putU32(8, attachType)
	a.putU32(12, flags)
	return a
}

// rawTracepointOpenSpec covers BPF_RAW_TRACEPOINT_OPEN:
// name@0 (ptr) prog_fd@8.
func newRawTracepointOpenAttr(name []byte, progFD int32) bpfAttr {
	var a bpfAttr
	if len(name) > 0 {
		a.putPtr(0, unsafe.Pointer(&name[0]))
	}
	a.putU32(8, uint32(progFD))
	return a
}

// linkCreateKprobeMultiSpec covers BPF_LINK_CREATE for
// BPF_TRACE_KPROBE_MULTI:
//
//	prog_fd@0 target_fd@4(unused here) attach_type@8 flags@12
//	kprobe_multi.flags@16 kprobe_multi.cnt@20 kprobe_multi.syms@24
//	kprobe_multi.addrs@32 kprobe_multi.cookies@40
func newLinkCreateKprobeMultiAttr(progFD int32, attachType, linkFlags uint32, syms []byte, cnt, kmFlags uint32) bpfAttr {
	var a bpfAttr
	a.putU32(0, uint32(progFD))
	a.putU32(8, attachType)
	a.putU32(12, linkFlags)
	a.putU32(16, kmFlags)
	a.putU32(20, cnt)
	if len(syms) > 0 {
		a.putPtr(24, unsafe.Pointer(&syms[0]))
	}
	return a
}

// linkCreateTargetBTFAttr covers BPF_LINK_CREATE for LSM
// (attach_type=BPF_LSM_MAC, ): prog_fd@0 target_fd@4
// attach_type@8 flags@12.
func newLinkCreateTargetBTFAttr(progFD, targetBTFFD int32, attachType, flags uint32) bpfAttr {
	var a bpfAttr
	a.putU32(0, uint32(progFD))
	a.putU32(4, uint32(targetBTFFD))
	a.putU32(8, attachType)
	a.putU32(12, flags)
	return a
}

// ─── perf_event_attr ────────────────────────────────────────────────────────

// perfEventAttrSize is sizeof(struct perf_event_attr) as the kernel UAPI
// fixes it.
const perfEventAttrSize = 128

// perfEventAttr mirrors bpfAttr's approach: a flat byte buffer with setters
// at the documented offsets, used for both kprobe/tracepoint attachment
// and perf-buffer opens:
//
//	type@0 size@4 config@8 sample_period@16 sample_type@24 read_format@32
//	flags bitfield@40 (bit 0 = disabled) wakeup_events@48
type perfEventAttr [perfEventAttrSize]byte

const (
	perfBitDisabled uint64 = 1 << 0
	perfBitInherit  uint64 = 1 << 1
	perfBitWatermark uint64 = 1 << 14
)

func newPerfEventAttr(typ uint32, config uint64, samplePeriod uint64, bits uint64, wakeupEvents uint32) perfEventAttr {
	var a perfEventAttr
	le.PutUint32(a[0:4], typ)
	le.PutUint32(a[4:8], perfEventAttrSize)
	le.PutUint64(a[8:16], config)
	le.PutUint64(a[16:24], samplePeriod)
	le.PutUint64(a[40:48], bits)
	le.PutUint32(a[48:52], wakeupEvents)
	return a
}

func (a *perfEventAttr) pointer() unsafe.Pointer { return unsafe.Pointer(a) }

// ─── netlink(route) framing ─────────────────────────────────────────────────

const (
	nlmsghdrLen = 16
	tcmsgLen    = 20
)

// putNlmsghdr serializes a struct nlmsghdr {len,type,flags,seq,pid} (16
// bytes, ) into b[0:16].
func putNlmsghdr(b []byte, length uint32, typ, flags uint16, seq, pid uint32) {
	le.PutUint32(b[0:4], length)
	le.PutUint16(b[4:6], typ)
	le.PutUint16(b[6:8], flags)
	le.PutUint32(b[8:12], seq)
	le.PutUint32(b[12:16], pid)
}

// putTcmsg serializes struct tcmsg {family,_pad,ifindex,handle,parent,info}
// (20 bytes) into b[0:20]. family occupies one byte with the kernel's
// implicit padding; tc_family is the only byte field the kernel reads, the
// next 3 are padding and left zero.
func putTcmsg(b []byte, family uint8, ifindex int32, handle, parent, info uint32) {
	b[0] = family
	// b[1:4] padding, left zero
	le.PutUint32(b[4:8], uint32(ifindex))
	le.PutUint32(b[8:12], handle)
	le.PutUint32(b[12:16], parent)
	le.PutUint32(b[16:20], info)
}

// nlaAlign rounds n up to a 4-byte boundary, the padding rule every
// netlink attribute follows.
func nlaAlign(n int) int { return (n + 3) &^ 3 }

// putNLA appends one netlink attribute {len, type, value, pad} to buf and
// returns the extended slice. len includes the 4-byte header but excludes
// trailing pad; the value is right-padded to a 4-byte boundary.
func putNLA(buf []byte, attrType uint16, value []byte) []byte {
	hdrAndValue := 4 + len(value)
	head := make([]byte, 4)
	le.PutUint16(head[0:2], uint16(hdrAndValue))
	le.PutUint16(head[2:4], attrType)
	buf = append(buf, head...)
	buf = append(buf, value...)
	if pad := nlaAlign(hdrAndValue) - hdrAndValue; pad > 0 {
		buf = append(buf, make([]byte, pad)...)
	}
	return buf
}

// nlaFNested is OR'd into an attribute type to mark it as containing
// nested attributes.
const nlaFNested uint16 = 0x8000
