package gobpf

// attachKind discriminates the variant of a live Attachment: a tagged
// union over the kernel's several attach mechanisms. Each mechanism tears
// down differently, so Attachment.Close switches on kind rather than
// exposing one generic detach path callers might apply to the wrong kind.
type attachKind uint8

const (
	attachKindPerf attachKind = iota
	attachKindLink
	attachKindXDP
	attachKindTC
	attachKindCgroup
	attachKindRawTracepoint
)

// Attachment represents one live binding of a loaded program to a kernel
// hook point, regardless of which of the six attach mechanisms produced
// it. Close is idempotent and mechanism-appropriate: it closes a perf_event
// fd, a bpf_link fd, removes a cgroup attachment, detaches from an
// interface's XDP hook, or removes a TC filter.
type Attachment struct {
	kind   attachKind
	closed bool

	// attachKindPerf / attachKindLink / attachKindRawTracepoint
	fd int

	// set only for attachKindPerf attachments backed by a dynamically
	// defined kprobe/kretprobe event, so Close can remove it from tracefs.
	kprobeEvent string

	// attachKindXDP
	ifindex int

	// attachKindTC
	tcDir      TCDirection
	tcParent   uint32
	tcPriority uint16

	// attachKindCgroup
	cgroupFD   int
	progFD     int
	attachType AttachType
}

// FD returns the attachment's underlying kernel object file descriptor, for
// mechanisms that have one (perf_event, bpf_link, raw_tracepoint). It
// returns -1 for XDP, TC, and cgroup attachments, which are not represented
// by a dedicated fd.
func (a *Attachment) FD() int {
	switch a.kind {
	case attachKindPerf, attachKindLink, attachKindRawTracepoint:
		return a.fd
	default:
		return -1
	}
}

// Close tears down the attachment. Idempotent.
func (a *Attachment) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	switch a.kind {
	case attachKindPerf, attachKindLink, attachKindRawTracepoint:
		err := closeFD(a.fd)
		if a.kprobeEvent != "" {
			removeKprobeEvent(a.kprobeEvent)
		}
		return err
	case attachKindXDP:
		return detachXDP(a.ifindex)
	case attachKindTC:
		return DetachTC(a.ifindex, a.tcDir)
	case attachKindCgroup:
		attr := newProgAttachAttr(a.cgroupFD, a.progFD, uint32(a.attachType), 0)
		_, err := sysBPF(bpfProgDetach, &attr, bpfAttrSize)
		return err
	default:
		return nil
	}
}
