//go:build linux

package gobpf

import "golang.org/x/sys/unix"

const (
	rtmSetLink = 19

	iflaXDP     uint16 = 43
	iflaXDPFD   uint16 = 1
	iflaXDPFlags uint16 = 3

	xdpFlagsSkbMode     uint32 = 1 << 1
	xdpFlagsDrvMode     uint32 = 1 << 2
	xdpFlagsHwMode      uint32 = 1 << 3
	xdpFlagsReplace     uint32 = 1 << 4
)

// XDPMode selects which of the kernel's three XDP attach modes to request.
// ModeGeneric works on any NIC driver via the generic skb path; ModeDriver
// requires native driver support; ModeOffload requires a SmartNIC capable of
// running the program on-card and rejects it outright if the driver can't.
type XDPMode uint32

const (
	XDPModeDefault XDPMode = 0
	XDPModeGeneric XDPMode = xdpFlagsSkbMode
	XDPModeDriver  XDPMode = xdpFlagsDrvMode
	XDPModeOffload XDPMode = xdpFlagsHwMode
)

type ifinfomsg struct {
	family  uint8
	pad     uint8
	typ     uint16
	index   int32
	flags   uint32
	change  uint32
}

func putIfinfomsg(b []byte, m ifinfomsg) {
	b[0] = m.family
	b[1] = m.pad
	le.PutUint16(b[2:4], m.typ)
	le.PutUint32(b[4:8], uint32(m.index))
	le.PutUint32(b[8:12], m.flags)
	le.PutUint32(b[12:16], m.change)
}

const ifinfomsgLen = 16

// AttachXDP attaches prog to ifindex's XDP hook with RTM_SETLINK. mode
// chooses generic/driver/offload; XDPModeDefault sends no IFLA_XDP_FLAGS
// attribute. The request carries NLM_F_REQUEST|NLM_F_ACK only, and
// XDP_FLAGS_UPDATE_IF_NOEXIST is never set.
func AttachXDP(ifindex int, prog *Prog, mode XDPMode) (*Attachment, error) {
	sock, err := openNetlinkRoute()
	if err != nil {
		return nil, err
	}
	defer sock.close()

	body := make([]byte, ifinfomsgLen)
	putIfinfomsg(body, ifinfomsg{family: unix.AF_UNSPEC, index: int32(ifindex)})

	fdBuf := make([]byte, 4)
	le.PutUint32(fdBuf, uint32(prog.FD()))
	xdpAttrs := putNLA(nil, iflaXDPFD, fdBuf)
	if mode != XDPModeDefault {
		flagsBuf := make([]byte, 4)
		le.PutUint32(flagsBuf, uint32(mode))
		xdpAttrs = putNLA(xdpAttrs, iflaXDPFlags, flagsBuf)
	}
	body = putNLA(body, iflaXDP|nlaFNested, xdpAttrs)

	hdr := make([]byte, nlmsghdrLen)
	msg := append(hdr, body...)
	flags := uint16(unix.NLM_F_REQUEST | unix.NLM_F_ACK)
	putNlmsghdr(msg, uint32(len(msg)), rtmSetLink, flags, 0, 0)

	if err := sock.request(msg); err != nil {
		return nil, err
	}
	return prog.registerAttachment(&Attachment{kind: attachKindXDP, ifindex: ifindex}), nil
}

// detachXDP clears ifindex's XDP hook by setting IFLA_XDP_FD to -1, the
// kernel's documented "remove" convention.
func detachXDP(ifindex int) error {
	sock, err := openNetlinkRoute()
	if err != nil {
		return err
	}
	defer sock.close()

	body := make([]byte, ifinfomsgLen)
	putIfinfomsg(body, ifinfomsg{family: unix.AF_UNSPEC, index: int32(ifindex)})

	fdBuf := make([]byte, 4)
	le.PutUint32(fdBuf, uint32(int32(-1)))
	xdpAttrs := putNLA(nil, iflaXDPFD, fdBuf)
	body = putNLA(body, iflaXDP|nlaFNested, xdpAttrs)

	hdr := make([]byte, nlmsghdrLen)
	msg := append(hdr, body...)
	flags := uint16(unix.NLM_F_REQUEST | unix.NLM_F_ACK)
	putNlmsghdr(msg, uint32(len(msg)), rtmSetLink, flags, 0, 0)

	return sock.request(msg)
}
