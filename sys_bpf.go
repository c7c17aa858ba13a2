//go:build linux

package gobpf

import (
	"golang.org/x/sys/unix"
)

// bpfCmd names a BPF_* command multiplexed through the single bpf(2) syscall
//.
type bpfCmd uint32

const (
	bpfMapCreate          bpfCmd = 0
	bpfMapLookupElem      bpfCmd = 1
	bpfMapUpdateElem      bpfCmd = 2
	bpfMapDeleteElem      bpfCmd = 3
	bpfMapGetNextKey      bpfCmd = 4
	bpfProgLoad           bpfCmd = 5
	bpfObjPin             bpfCmd = 6
	bpfObjGet             bpfCmd = 7
	bpfProgAttach         bpfCmd = 8
	bpfProgDetach         bpfCmd = 9
	bpfProgTestRun        bpfCmd = 10
	bpfMapLookupAndDeleteElem bpfCmd = 21
	bpfProgGetNextID      bpfCmd = 11
	bpfMapGetNextID       bpfCmd = 12
	bpfProgGetFDByID      bpfCmd = 13
	bpfMapGetFDByID       bpfCmd = 14
	bpfObjGetInfoByFD     bpfCmd = 15
	bpfMapLookupBatch     bpfCmd = 24
	bpfMapLookupAndDelBatch bpfCmd = 25
	bpfMapUpdateBatch     bpfCmd = 26
	bpfMapDeleteBatch     bpfCmd = 27
	bpfLinkCreate         bpfCmd = 28
	bpfLinkUpdate         bpfCmd = 29
	bpfRawTracepointOpen  bpfCmd = 17
)

// sysBPF issues the bpf(2) syscall with the given command and attr buffer,
// the single chokepoint every map/prog/link operation in this package
// ultimately calls through. Every caller is responsible for keeping attr's backing memory
// (and anything it points to) alive until this call returns — Go's garbage
// collector has no visibility into pointers smuggled through attr's raw
// byte layout via unsafe.Pointer/uintptr.
func sysBPF(cmd bpfCmd, attr *bpfAttr, size uintptr) (uintptr, error) {
	info, err := lookupArch()
	if err != nil {
		return 0, err
	}
	r1, _, errno := unix.Syscall(uintptr(info.bpfSyscallNr), uintptr(cmd), uintptr(attr.pointer()), size)
	if errno != 0 {
		return 0, newSyscallError(bpfCmdOpName(cmd), errno)
	}
	return r1, nil
}

func bpfCmdOpName(cmd bpfCmd) string {
	switch cmd {
	case bpfMapCreate:
		return "BPF_MAP_CREATE"
	case bpfMapLookupElem:
		return "BPF_MAP_LOOKUP_ELEM"
	case bpfMapUpdateElem:
		return "BPF_MAP_UPDATE_ELEM"
	case bpfMapDeleteElem:
		return "BPF_MAP_DELETE_ELEM"
	case bpfMapGetNextKey:
		return "BPF_MAP_GET_NEXT_KEY"
	case bpfProgLoad:
		return "BPF_PROG_LOAD"
	case bpfObjPin:
		return "BPF_OBJ_PIN"
	case bpfObjGet:
		return "BPF_OBJ_GET"
	case bpfProgAttach:
		return "BPF_PROG_ATTACH"
	case bpfProgDetach:
		return "BPF_PROG_DETACH"
	case bpfMapLookupAndDeleteElem:
		return "BPF_MAP_LOOKUP_AND_DELETE_ELEM"
	case bpfMapLookupBatch:
		return "BPF_MAP_LOOKUP_BATCH"
	case bpfMapLookupAndDelBatch:
		return "BPF_MAP_LOOKUP_AND_DELETE_BATCH"
	case bpfMapUpdateBatch:
		return "BPF_MAP_UPDATE_BATCH"
	case bpfMapDeleteBatch:
		return "BPF_MAP_DELETE_BATCH"
	case bpfLinkCreate:
		return "BPF_LINK_CREATE"
	case bpfLinkUpdate:
		return "BPF_LINK_UPDATE"
	case bpfRawTracepointOpen:
		return "BPF_RAW_TRACEPOINT_OPEN"
	default:
		return "BPF_UNKNOWN"
	}
}

// ioctlFD issues an ioctl(2) against fd, the mechanism perf_event-based
// attachments use (PERF_EVENT_IOC_SET_BPF, PERF_EVENT_IOC_ENABLE/DISABLE).
func ioctlFD(fd int, req uint, arg uintptr) error {
	if err := unix.IoctlSetInt(fd, req, int(arg)); err != nil {
		return newSyscallError("ioctl", err.(unix.Errno))
	}
	return nil
}

// closeFD closes a kernel object file descriptor, classifying failure the
// same way every other syscall wrapper in this file does.
func closeFD(fd int) error {
	if err := unix.Close(fd); err != nil {
		return newSyscallError("close", err.(unix.Errno))
	}
	return nil
}
