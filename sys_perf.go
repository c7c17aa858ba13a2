//go:build linux

package gobpf

import (
	"golang.org/x/sys/unix"
)

// perf_event_open(2) flags this package uses.
const (
	perfFlagFDCloexec = unix.PERF_FLAG_FD_CLOEXEC
)

// sysPerfEventOpen issues perf_event_open(2). cpu/pid follow the kernel's
// "which task/CPU to count" convention: pid=-1,cpu=N means "any process on
// CPU N" (used for both perf-buffer readers and kprobe/tracepoint
// attachment). groupFD=-1 means "new group leader".
func sysPerfEventOpen(attr *perfEventAttr, pid, cpu, groupFD int, flags uint32) (int, error) {
	info, err := lookupArch()
	if err != nil {
		return -1, err
	}
	r1, _, errno := unix.Syscall6(uintptr(info.perfEventOpenNr),
		uintptr(attr.pointer()), uintptr(pid), uintptr(cpu), uintptr(groupFD), uintptr(flags), 0)
	if errno != 0 {
		return -1, newSyscallError("perf_event_open", errno)
	}
	return int(r1), nil
}

// mmapRegion mmaps fd's first length bytes read-write, the shared mapping
// every ring-buffer/perf-buffer consumer in this package uses to read the
// kernel-maintained producer/consumer metadata and data pages without a
// copying syscall per record.
func mmapRegion(fd int, length int) ([]byte, error) {
	b, err := unix.Mmap(fd, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, newSyscallError("mmap", err.(unix.Errno))
	}
	return b, nil
}

// mmapRegionReadOnly mmaps fd read-only — the ring-buffer consumer-position
// page is read-write (the consumer updates it) but the data region for a
// read-only map type is mapped PROT_READ only.
func mmapRegionReadOnly(fd int, length int) ([]byte, error) {
	b, err := unix.Mmap(fd, 0, length, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, newSyscallError("mmap", err.(unix.Errno))
	}
	return b, nil
}

func munmapRegion(b []byte) error {
	if err := unix.Munmap(b); err != nil {
		return newSyscallError("munmap", err.(unix.Errno))
	}
	return nil
}

// epollWaiter is the minimal epoll handle the ring-buffer and perf-buffer
// pollers share for blocking until data (or a shutdown eventfd) is ready.
type epollWaiter struct {
	epfd int
}

func newEpollWaiter() (*epollWaiter, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, newSyscallError("epoll_create1", err.(unix.Errno))
	}
	return &epollWaiter{epfd: fd}, nil
}

func (w *epollWaiter) add(fd int, events uint32) error {
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	if err := unix.EpollCtl(w.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return newSyscallError("epoll_ctl", err.(unix.Errno))
	}
	return nil
}

// wait blocks until at least one registered fd is ready or timeoutMS
// elapses (-1 = forever), returning the ready fds' event bitmasks keyed by
// fd. EINTR is retried transparently since it is not a meaningful signal to
// a caller polling in a loop.
func (w *epollWaiter) wait(timeoutMS int, maxEvents int) (map[int]uint32, error) {
	events := make([]unix.EpollEvent, maxEvents)
	for {
		n, err := unix.EpollWait(w.epfd, events, timeoutMS)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return nil, newSyscallError("epoll_wait", err.(unix.Errno))
		}
		out := make(map[int]uint32, n)
		for i := 0; i < n; i++ {
			out[int(events[i].Fd)] = events[i].Events
		}
		return out, nil
	}
}

func (w *epollWaiter) close() error {
	return closeFD(w.epfd)
}

// newEventFD creates a non-blocking eventfd used as a shutdown signal the
// poller registers alongside its data fds.
func newEventFD() (int, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return -1, newSyscallError("eventfd", err.(unix.Errno))
	}
	return fd, nil
}

func signalEventFD(fd int) error {
	buf := make([]byte, 8)
	le.PutUint64(buf, 1)
	_, err := unix.Write(fd, buf)
	if err != nil {
		return newSyscallError("eventfd.write", err.(unix.Errno))
	}
	return nil
}
