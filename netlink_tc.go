//go:build linux

package gobpf

import "golang.org/x/sys/unix"

const (
	rtmNewQdisc   = 36
	rtmDelQdisc   = 37
	rtmNewTFilter = 44
	rtmDelTFilter = 45
)

// TC_H_ROOT/TC_H_CLSACT/TC_H_MIN_INGRESS/TC_H_MIN_EGRESS are the fixed
// handle values the kernel reserves for the clsact qdisc and its two
// built-in hooks.
const (
	tcHRoot       uint32 = 0xffffffff
	tcClsactHandle uint32 = 0xffff0000 // major 0xffff : minor 0
	// tcClsactParent is the parent the clsact qdisc itself attaches under —
	// distinct from tcHRoot, which is the sentinel "no parent" handle used
	// elsewhere in rtnetlink.
	tcClsactParent uint32 = 0xfffffff1
	tcMinIngress  uint32 = 0xfffffff2
	tcMinEgress   uint32 = 0xfffffff3
)

// TCDirection selects the clsact ingress or egress hook.
type TCDirection int

const (
	TCIngress TCDirection = iota
	TCEgress
)

const (
	tcaKind    uint16 = 1
	tcaOptions uint16 = 2

	tcaBPFFD            uint16 = 1
	tcaBPFName          uint16 = 2
	tcaBPFFlags         uint16 = 3
	tcaBPFFlagActDirect uint32 = 1
)

// EnsureClsact creates the clsact qdisc on ifindex if it is not already
// present, idempotently. NLM_F_EXCL is deliberately omitted so a
// pre-existing clsact qdisc is not treated as an error — only NLM_F_CREATE
// is set.
func EnsureClsact(ifindex int) error {
	sock, err := openNetlinkRoute()
	if err != nil {
		return err
	}
	defer sock.close()

	body := make([]byte, tcmsgLen)
	putTcmsg(body, unix.AF_UNSPEC, int32(ifindex), tcClsactHandle, tcClsactParent, 0)
	body = putNLA(body, tcaKind, append([]byte("clsact"), 0))

	hdr := make([]byte, nlmsghdrLen)
	msg := append(hdr, body...)
	flags := uint16(unix.NLM_F_REQUEST | unix.NLM_F_ACK | unix.NLM_F_CREATE)
	putNlmsghdr(msg, uint32(len(msg)), rtmNewQdisc, flags, 0, 0)

	return sock.request(msg)
}

// AttachTC installs prog as a direct-action BPF classifier on ifindex's
// clsact ingress or egress hook at the given priority (lower runs first;
// filters at the same priority on the same hook is a kernel-side conflict).
// The caller must have already ensured the clsact qdisc exists via
// EnsureClsact.
func AttachTC(ifindex int, dir TCDirection, prog *Prog, name string, priority uint16) (*Attachment, error) {
	sock, err := openNetlinkRoute()
	if err != nil {
		return nil, err
	}
	defer sock.close()

	parent := tcMinIngress
	if dir == TCEgress {
		parent = tcMinEgress
	}
	const ethPAllNetworkOrder = 0x0300 // htons(ETH_P_ALL)
	protoAndPrio := (uint32(priority) << 16) | ethPAllNetworkOrder

	body := make([]byte, tcmsgLen)
	putTcmsg(body, unix.AF_UNSPEC, int32(ifindex), 0, parent, protoAndPrio)
	body = putNLA(body, tcaKind, append([]byte("bpf"), 0))

	opts := make([]byte, 0, 32)
	fdBuf := make([]byte, 4)
	le.PutUint32(fdBuf, uint32(prog.FD()))
	opts = putNLA(opts, tcaBPFFD, fdBuf)
	opts = putNLA(opts, tcaBPFName, append([]byte(name), 0))
	flagsBuf := make([]byte, 4)
	le.PutUint32(flagsBuf, tcaBPFFlagActDirect)
	opts = putNLA(opts, tcaBPFFlags, flagsBuf)
	body = putNLA(body, tcaOptions|nlaFNested, opts)

	hdr := make([]byte, nlmsghdrLen)
	msg := append(hdr, body...)
	flags := uint16(unix.NLM_F_REQUEST | unix.NLM_F_ACK | unix.NLM_F_CREATE | unix.NLM_F_EXCL)
	putNlmsghdr(msg, uint32(len(msg)), rtmNewTFilter, flags, 0, 0)

	if err := sock.request(msg); err != nil {
		return nil, err
	}
	return prog.registerAttachment(&Attachment{kind: attachKindTC, ifindex: ifindex, tcDir: dir, tcParent: parent, tcPriority: priority, progFD: prog.FD()}), nil
}

// DetachTC removes the BPF filter previously installed by AttachTC.
func DetachTC(ifindex int, dir TCDirection) error {
	sock, err := openNetlinkRoute()
	if err != nil {
		return err
	}
	defer sock.close()

	parent := tcMinIngress
	if dir == TCEgress {
		parent = tcMinEgress
	}
	body := make([]byte, tcmsgLen)
	putTcmsg(body, unix.AF_UNSPEC, int32(ifindex), 0, parent, 0)
	body = putNLA(body, tcaKind, append([]byte("bpf"), 0))

	hdr := make([]byte, nlmsghdrLen)
	msg := append(hdr, body...)
	flags := uint16(unix.NLM_F_REQUEST | unix.NLM_F_ACK)
	putNlmsghdr(msg, uint32(len(msg)), rtmDelTFilter, flags, 0, 0)

	return sock.request(msg)
}
