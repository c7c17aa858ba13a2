package gobpf

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/xyproto/gobpf/internal/retry"
)

// Kind classifies an Error into the taxonomy spec'd for this library. Callers
// should switch on Kind (or use errors.Is/errors.As) rather than string-match
// error messages.
type Kind int

const (
	// KindEncoding means the instruction DSL was asked to emit an impossible
	// instruction (bad register, out-of-range immediate, bad width).
	KindEncoding Kind = iota
	// KindJumpOutOfRange means the assembler could not fit a relative jump
	// offset into the signed 16-bit off field.
	KindJumpOutOfRange
	// KindTransient covers EAGAIN/EINTR/EBUSY/ENOBUFS: retry-eligible.
	KindTransient
	// KindPermission covers EPERM/EACCES.
	KindPermission
	// KindResource covers ENOMEM/ENOSPC/EMFILE/ENFILE.
	KindResource
	// KindNotFound covers ENOENT.
	KindNotFound
	// KindUnsupported covers EINVAL/ENOTSUP and similar "this kernel/arch
	// doesn't do that" errnos.
	KindUnsupported
	// KindVerifierRejection means BPF_PROG_LOAD failed and the kernel
	// attached a non-empty verifier log.
	KindVerifierRejection
	// KindNetlinkError means an rtnetlink response carried a negative error
	// code in its NLMSG_ERROR payload.
	KindNetlinkError
	// KindProtocolViolation means a ring-buffer record header was
	// self-inconsistent (length exceeds available bytes, or zero length
	// without the discard bit set).
	KindProtocolViolation
	// KindArchUnsupported means there is no syscall number table for the
	// detected CPU architecture.
	KindArchUnsupported
	// KindUsageError means the caller passed an invalid, closed, or
	// otherwise misused handle.
	KindUsageError
)

func (k Kind) String() string {
	switch k {
	case KindEncoding:
		return "encoding"
	case KindJumpOutOfRange:
		return "jump-out-of-range"
	case KindTransient:
		return "transient"
	case KindPermission:
		return "permission"
	case KindResource:
		return "resource"
	case KindNotFound:
		return "not-found"
	case KindUnsupported:
		return "unsupported"
	case KindVerifierRejection:
		return "verifier-rejection"
	case KindNetlinkError:
		return "netlink-error"
	case KindProtocolViolation:
		return "protocol-violation"
	case KindArchUnsupported:
		return "arch-unsupported"
	case KindUsageError:
		return "usage-error"
	default:
		return "unknown"
	}
}

// Error is the machine-readable error type every public operation in this
// library returns. Op names the operation that failed (e.g. "MAP_CREATE",
// "assemble", "ringbuf.read"); Errno is set for every error that came from a
// failed syscall, whatever its Kind, and for KindNetlinkError, and is zero
// for errors the library raises itself. VerifierLog carries the
// full, untruncated kernel verifier log for KindVerifierRejection.
type Error struct {
	Kind        Kind
	Op          string
	Errno       unix.Errno
	VerifierLog string
	Err         error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindVerifierRejection:
		return fmt.Sprintf("%s: verifier rejected program: %s", e.Op, e.VerifierLog)
	case e.Errno != 0:
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Err, e.Errno)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether this error's Kind is eligible for the automatic
// exponential-backoff retry policy.
func (e *Error) Retryable() bool { return e.Kind == KindTransient }

// newSyscallError classifies errno and wraps it into an
// Error tagged with the failing operation and command.
func newSyscallError(op string, errno unix.Errno) *Error {
	return &Error{Kind: classifyErrno(errno), Op: op, Errno: errno, Err: errno}
}

// classifyErrno implements the errno-to-Kind taxonomy. Where an errno
// plausibly belongs to more than one bucket (ENOBUFS could be either
// transient or a resource exhaustion), Transient wins since it is the more
// actionable classification for a retrying caller.
func classifyErrno(errno unix.Errno) Kind {
	switch errno {
	case unix.EAGAIN, unix.EINTR, unix.EBUSY:
		return KindTransient
	case unix.ENOBUFS:
		return KindTransient
	case unix.EPERM, unix.EACCES:
		return KindPermission
	case unix.ENOMEM, unix.ENOSPC, unix.EMFILE, unix.ENFILE:
		return KindResource
	case unix.ENOENT:
		return KindNotFound
	default:
		return KindUnsupported
	}
}

// IsNotFound reports whether err (or any error it wraps) is a KindNotFound
// Error, the normalized signal for ending map iteration.
func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindNotFound
	}
	return false
}

// IsRetryable reports whether err is eligible for the retry policy WithRetry
// applies.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return false
}

// WithRetry runs fn, retrying with exponential backoff (3 attempts, 100ms
// base, ×2 factor) as long as fn returns a Retryable *Error. It is never
// applied automatically by any Map/Prog/Attachment method — callers wrap
// the specific call they want retried, e.g.
// WithRetry(func() error { return m.Update(key, value, 0) }).
func WithRetry(fn func() error) error {
	return retry.Do(fn)
}
