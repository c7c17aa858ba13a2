// Package gobpf is a userspace library for authoring, loading, attaching,
// and operating Linux eBPF programs without linking against libbpf or
// invoking clang. It provides a symbolic instruction DSL and two-pass
// assembler (Instruction, Elem, Assemble), a syscall façade over bpf(2),
// perf_event_open(2), and NETLINK_ROUTE, map/program/attachment lifecycle
// managers (Map, Prog, Attachment), ring-buffer and perf-buffer event
// consumers (RingbufReader, PerfbufReader), and a reader for compiled BPF
// ELF objects (LoadObject).
//
// Every exported operation that can fail returns a *gobpf.Error carrying a
// Kind from the package's error taxonomy; callers that need to distinguish
// failure modes should use errors.As rather than string-matching messages.
package gobpf
