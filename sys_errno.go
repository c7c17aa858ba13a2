package gobpf

import "golang.org/x/sys/unix"

// rawResult pairs a raw syscall return value with its errno, the
// (uintptr, errno) shape of unix.Syscall/RawSyscall results. The sys_*.go
// wrappers do not use it; they check the errno they get back directly.
type rawResult struct {
	ret   uintptr
	errno unix.Errno
}

func (r rawResult) ok() bool { return r.errno == 0 }
