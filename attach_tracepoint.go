package gobpf

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	perfTypeTracepoint = 2

	// PERF_EVENT_IOC_SET_BPF/ENABLE/DISABLE are the ioctl request codes the
	// kernel defines for perf_event-based attachment.
	perfEventIocSetBPF  = 0x40042408
	perfEventIocEnable  = 0x2400
	perfEventIocDisable = 0x2401
)

// readTracepointID reads the numeric event ID the kernel assigns a
// tracepoint under tracefs, the id perf_event_open needs in its config
// field.
func readTracepointID(category, name string) (uint64, error) {
	path := tracefsPath(fmt.Sprintf("events/%s/%s/id", category, name))
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, &Error{Kind: KindNotFound, Op: "tracepoint.readID", Err: err}
	}
	id, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, &Error{Kind: KindProtocolViolation, Op: "tracepoint.readID", Err: err}
	}
	return id, nil
}

// tracefsPath resolves rel under whichever of the two conventional tracefs
// mount points exists, preferring the unified /sys/kernel/tracing mount
// introduced alongside debugfs/tracing's deprecation.
func tracefsPath(rel string) string {
	for _, base := range []string{"/sys/kernel/tracing", "/sys/kernel/debug/tracing"} {
		p := base + "/" + rel
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return "/sys/kernel/tracing/" + rel
}

// AttachTracepoint attaches prog to the static kernel tracepoint named
// category/name (e.g. "syscalls", "sys_enter_execve") via a
// PERF_TYPE_TRACEPOINT perf_event.
func AttachTracepoint(category, name string, prog *Prog) (*Attachment, error) {
	id, err := readTracepointID(category, name)
	if err != nil {
		return nil, err
	}
	attr := newPerfEventAttr(perfTypeTracepoint, id, 0, perfBitDisabled, 0)
	fd, err := sysPerfEventOpen(&attr, -1, 0, -1, uint32(perfFlagFDCloexec))
	if err != nil {
		return nil, err
	}
	if err := ioctlFD(fd, perfEventIocSetBPF, uintptr(prog.FD())); err != nil {
		closeFD(fd)
		return nil, err
	}
	if err := ioctlFD(fd, perfEventIocEnable, 0); err != nil {
		closeFD(fd)
		return nil, err
	}
	return prog.registerAttachment(&Attachment{kind: attachKindPerf, fd: fd}), nil
}

// AttachRawTracepoint attaches prog to a raw tracepoint via
// BPF_RAW_TRACEPOINT_OPEN, the lower-overhead mechanism that bypasses the
// perf subsystem entirely.
func AttachRawTracepoint(name string, prog *Prog) (*Attachment, error) {
	n := append([]byte(name), 0)
	attr := newRawTracepointOpenAttr(n, prog.FD())
	fd, err := sysBPF(bpfRawTracepointOpen, &attr, bpfAttrSize)
	if err != nil {
		return nil, err
	}
	return prog.registerAttachment(&Attachment{kind: attachKindRawTracepoint, fd: int(fd)}), nil
}
