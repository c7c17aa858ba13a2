//go:build linux

package gobpf

import (
	"testing"

	"golang.org/x/sys/unix"
	"gotest.tools/v3/assert"
)

func buildAckMsg(seq uint32, errno int32) []byte {
	body := make([]byte, 4+16) // errno + echoed nlmsghdr
	le.PutUint32(body[0:4], uint32(errno))
	hdr := make([]byte, nlmsghdrLen)
	msg := append(hdr, body...)
	putNlmsghdr(msg, uint32(len(msg)), unix.NLMSG_ERROR, 0, seq, 0)
	return msg
}

func TestParseNetlinkAckSuccess(t *testing.T) {
	msg := buildAckMsg(7, 0)
	assert.NilError(t, parseNetlinkAck(msg, 7))
}

func TestParseNetlinkAckReportsNegativeErrno(t *testing.T) {
	msg := buildAckMsg(7, -int32(unix.EEXIST))
	err := parseNetlinkAck(msg, 7)
	var gerr *Error
	assert.Assert(t, asError(err, &gerr))
	assert.Equal(t, gerr.Kind, KindNetlinkError)
}

func TestParseNetlinkAckIgnoresMismatchedSeq(t *testing.T) {
	msg := buildAckMsg(7, 0)
	err := parseNetlinkAck(msg, 9)
	assert.ErrorContains(t, err, "no matching ack")
}

func TestParseNetlinkAckRejectsTruncatedHeader(t *testing.T) {
	err := parseNetlinkAck(make([]byte, 10), 1)
	assert.ErrorContains(t, err, "no matching ack")
}

func TestTCClsactParentDistinctFromHRoot(t *testing.T) {
	assert.Equal(t, tcClsactParent, uint32(0xfffffff1))
	assert.Assert(t, tcClsactParent != tcHRoot)
}
