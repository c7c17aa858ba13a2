//go:build linux

package gobpf

import (
	"golang.org/x/sys/unix"
)

// netlinkSocket is a thin wrapper over an NETLINK_ROUTE socket, the
// transport the TC driver and XDP attachment both speak.
type netlinkSocket struct {
	fd  int
	seq uint32
	pid uint32
}

func openNetlinkRoute() (*netlinkSocket, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.NETLINK_ROUTE)
	if err != nil {
		return nil, newSyscallError("socket(AF_NETLINK)", err.(unix.Errno))
	}
	sa := &unix.SockaddrNetlink{Family: unix.AF_NETLINK}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, newSyscallError("bind(AF_NETLINK)", err.(unix.Errno))
	}
	addr, err := unix.Getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return nil, newSyscallError("getsockname(AF_NETLINK)", err.(unix.Errno))
	}
	pid := uint32(0)
	if nl, ok := addr.(*unix.SockaddrNetlink); ok {
		pid = nl.Pid
	}
	return &netlinkSocket{fd: fd, pid: pid}, nil
}

func (s *netlinkSocket) close() error { return closeFD(s.fd) }

// request sends msg (a complete nlmsghdr-prefixed buffer, NLM_F_ACK
// expected to already be set by the caller) to the kernel, reads a single
// datagram back, and returns parseNetlinkAck's result for it: a
// KindNetlinkError Error if the kernel reported a negative errno, and an
// error as well if that datagram holds no response matching the request's
// sequence number.
func (s *netlinkSocket) request(msg []byte) error {
	s.seq++
	le.PutUint32(msg[8:12], s.seq)
	le.PutUint32(msg[12:16], s.pid)

	to := &unix.SockaddrNetlink{Family: unix.AF_NETLINK}
	if err := unix.Sendto(s.fd, msg, 0, to); err != nil {
		return newSyscallError("sendto(netlink)", err.(unix.Errno))
	}

	buf := make([]byte, 16384)
	for {
		n, _, err := unix.Recvfrom(s.fd, buf, 0)
		if err != nil {
			return newSyscallError("recvfrom(netlink)", err.(unix.Errno))
		}
		return parseNetlinkAck(buf[:n], s.seq)
	}
}

// parseNetlinkAck walks one or more nlmsghdr-framed messages in buf looking
// for the NLMSG_ERROR reply matching wantSeq. An errno of 0 inside
// NLMSG_ERROR means success (the kernel's quirky "ack is an error message
// with error=0" convention, ).
func parseNetlinkAck(buf []byte, wantSeq uint32) error {
	off := 0
	for off+nlmsghdrLen <= len(buf) {
		length := le.Uint32(buf[off : off+4])
		typ := le.Uint16(buf[off+4 : off+6])
		seq := le.Uint32(buf[off+8 : off+12])
		if length < nlmsghdrLen || off+int(length) > len(buf) {
			return &Error{Kind: KindProtocolViolation, Op: "netlink.parse",
				Err: errUsage("truncated or malformed nlmsghdr")}
		}
		body := buf[off+nlmsghdrLen : off+int(length)]
		if seq == wantSeq {
			switch typ {
			case unix.NLMSG_ERROR:
				if len(body) < 4 {
					return &Error{Kind: KindProtocolViolation, Op: "netlink.parse",
						Err: errUsage("truncated NLMSG_ERROR")}
				}
				errno := int32(le.Uint32(body[0:4]))
				if errno == 0 {
					return nil
				}
				return &Error{Kind: KindNetlinkError, Op: "netlink.ack",
					Errno: unix.Errno(-errno), Err: unix.Errno(-errno)}
			case unix.NLMSG_DONE:
				return nil
			}
		}
		off += nlaAlign(int(length))
	}
	return &Error{Kind: KindProtocolViolation, Op: "netlink.parse",
		Err: errUsage("no matching ack in response")}
}
