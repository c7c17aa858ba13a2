package gobpf

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// AttachKprobe attaches prog to a dynamic kprobe at the entry of the kernel
// function named symbol. It defines a throwaway kprobe event under
// tracefs, reads back the event ID tracefs
// assigns it, and opens a perf_event the same way AttachTracepoint does.
// The event is removed from kprobe_events when the returned Attachment is
// closed.
func AttachKprobe(symbol string, prog *Prog) (*Attachment, error) {
	return attachKprobeGeneric("p", symbol, prog)
}

// AttachKretprobe attaches prog to the return of the kernel function named
// symbol.
func AttachKretprobe(symbol string, prog *Prog) (*Attachment, error) {
	return attachKprobeGeneric("r", symbol, prog)
}

func attachKprobeGeneric(probeType, symbol string, prog *Prog) (*Attachment, error) {
	eventName := "gobpf_" + probeType + "_" + uuid.NewString()[:8]
	def := fmt.Sprintf("%s:kprobes/%s %s\n", probeType, eventName, symbol)
	path := tracefsPath("kprobe_events")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return nil, &Error{Kind: KindPermission, Op: "kprobe.define", Err: err}
	}
	if _, err := f.WriteString(def); err != nil {
		f.Close()
		return nil, &Error{Kind: KindUnsupported, Op: "kprobe.define", Err: err}
	}
	f.Close()

	id, err := readTracepointID("kprobes", eventName)
	if err != nil {
		removeKprobeEvent(eventName)
		return nil, err
	}
	attr := newPerfEventAttr(perfTypeTracepoint, id, 0, perfBitDisabled, 0)
	fd, err := sysPerfEventOpen(&attr, -1, 0, -1, uint32(perfFlagFDCloexec))
	if err != nil {
		removeKprobeEvent(eventName)
		return nil, err
	}
	if err := ioctlFD(fd, perfEventIocSetBPF, uintptr(prog.FD())); err != nil {
		closeFD(fd)
		removeKprobeEvent(eventName)
		return nil, err
	}
	if err := ioctlFD(fd, perfEventIocEnable, 0); err != nil {
		closeFD(fd)
		removeKprobeEvent(eventName)
		return nil, err
	}
	return prog.registerAttachment(&Attachment{kind: attachKindPerf, fd: fd, kprobeEvent: eventName}), nil
}

func removeKprobeEvent(name string) {
	path := tracefsPath("kprobe_events")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return
	}
	defer f.Close()
	f.WriteString("-:kprobes/" + name + "\n")
}
