package gobpf

import (
	"runtime"
	"unsafe"
)

// AttachCgroup attaches prog to the cgroup rooted at cgroupFD (an open fd
// on a cgroup2 directory) for the given attach type. Close on the returned Attachment issues BPF_PROG_DETACH.
func AttachCgroup(cgroupFD int, prog *Prog, attachType AttachType, flags uint32) (*Attachment, error) {
	attr := newProgAttachAttr(cgroupFD, prog.FD(), uint32(attachType), flags)
	if _, err := sysBPF(bpfProgAttach, &attr, bpfAttrSize); err != nil {
		return nil, err
	}
	return prog.registerAttachment(&Attachment{kind: attachKindCgroup, cgroupFD: cgroupFD, progFD: prog.FD(), attachType: attachType}), nil
}

// AttachLSM attaches an LSM program via BPF_LINK_CREATE with
// attach_type=BPF_LSM_MAC. The program's BTF fd
// must already describe the target LSM hook. ProgSpec has no attach_btf_id
// field and LoadProg does not set one, so this package makes no hook
// association at load time.
func AttachLSM(prog *Prog, targetBTFFD int32) (*Attachment, error) {
	attr := newLinkCreateTargetBTFAttr(int32(prog.FD()), targetBTFFD, uint32(AttachLSMMac), 0)
	fd, err := sysBPF(bpfLinkCreate, &attr, bpfAttrSize)
	if err != nil {
		return nil, err
	}
	return prog.registerAttachment(&Attachment{kind: attachKindLink, fd: int(fd)}), nil
}

// AttachKprobeMulti attaches prog to every symbol in syms at once via
// BPF_LINK_CREATE/BPF_TRACE_KPROBE_MULTI, the batched kprobe attach
// mechanism that avoids one perf_event per symbol.
func AttachKprobeMulti(prog *Prog, syms []string, retprobe bool) (*Attachment, error) {
	// The kernel wants a u64 pointer to an array of u64 pointers, each
	// pointing at one NUL-terminated symbol name. nameBufs keeps every
	// name's backing array alive until after the syscall returns; without
	// it the GC would be free to collect them the moment this loop ends.
	nameBufs := make([][]byte, len(syms))
	ptrArray := make([]byte, len(syms)*8)
	for i, s := range syms {
		nameBufs[i] = append([]byte(s), 0)
		le.PutUint64(ptrArray[i*8:i*8+8], uint64(uintptr(unsafe.Pointer(&nameBufs[i][0]))))
	}
	var kmFlags uint32
	if retprobe {
		kmFlags = 1 // BPF_F_KPROBE_MULTI_RETURN
	}
	attr := newLinkCreateKprobeMultiAttr(int32(prog.FD()), uint32(AttachTraceKprobeMulti), 0, ptrArray, uint32(len(syms)), kmFlags)
	fd, err := sysBPF(bpfLinkCreate, &attr, bpfAttrSize)
	runtime.KeepAlive(nameBufs)
	if err != nil {
		return nil, err
	}
	return prog.registerAttachment(&Attachment{kind: attachKindLink, fd: int(fd)}), nil
}
