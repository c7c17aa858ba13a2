//go:build linux

package gobpf

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

const (
	perfTypeSoftware   = 1
	perfCountSwBPFOutput = 10 // PERF_COUNT_SW_BPF_OUTPUT

	perfRecordSample = 9

	perfbufPerCPUPages = 8 // data pages per CPU, excluding the metadata page
)

// PerfbufRecord is one decoded PERF_RECORD_SAMPLE payload, tagged with the
// CPU it was read from.
type PerfbufRecord struct {
	CPU  int
	Data []byte
}

// PerfbufStats reports the cross-CPU lost-sample count the kernel reports
// via PERF_RECORD_LOST.
type PerfbufStats struct {
	Lost uint64
}

type perfbufCPU struct {
	cpu    int
	fd     int
	ring   []byte
	region int
}

// PerfbufReader consumes samples a BPF program writes to a
// BPF_MAP_TYPE_PERF_EVENT_ARRAY map, one perf_event per CPU. Read runs one
// poller goroutine per CPU, each calling the callback directly, so records
// arrive in order per CPU but in no global order, and the callback can run
// concurrently from several goroutines.
type PerfbufReader struct {
	cpus   []*perfbufCPU
	epoll  *epollWaiter
	stopFD int
	lost   atomic.Uint64
}

// NewPerfbufReader opens one perf_event per possible CPU and registers each
// in m (a BPF_MAP_TYPE_PERF_EVENT_ARRAY) at its CPU index key, so the BPF
// program's bpf_perf_event_output call targeting BPF_F_CURRENT_CPU lands on
// the right ring.
func NewPerfbufReader(m *Map, perCPUPages int) (*PerfbufReader, error) {
	if perCPUPages <= 0 {
		perCPUPages = perfbufPerCPUPages
	}
	if !isPowerOfTwo(uint32(perCPUPages)) {
		return nil, &Error{Kind: KindUsageError, Op: "perfbuf.open",
			Err: errUsage("perCPUPages must be a power of two")}
	}
	ncpu, err := possibleCPUs()
	if err != nil {
		return nil, err
	}
	regionSize := ringbufPageSize * (1 + perCPUPages) // 1 metadata page + data pages

	ep, err := newEpollWaiter()
	if err != nil {
		return nil, err
	}
	stopFD, err := newEventFD()
	if err != nil {
		ep.close()
		return nil, err
	}
	if err := ep.add(stopFD, unix.EPOLLIN); err != nil {
		closeFD(stopFD)
		ep.close()
		return nil, err
	}

	r := &PerfbufReader{epoll: ep, stopFD: stopFD}
	for cpu := 0; cpu < ncpu; cpu++ {
		attr := newPerfEventAttr(perfTypeSoftware, perfCountSwBPFOutput, 1, perfBitDisabled|perfBitInherit|perfBitWatermark, 1)
		le.PutUint64(attr[24:32], 1<<10) // sample_type = PERF_SAMPLE_RAW
		fd, err := sysPerfEventOpen(&attr, -1, cpu, -1, uint32(perfFlagFDCloexec))
		if err != nil {
			r.closeOpened()
			return nil, err
		}
		ring, err := mmapRegion(fd, regionSize)
		if err != nil {
			closeFD(fd)
			r.closeOpened()
			return nil, err
		}
		if err := ioctlFD(fd, perfEventIocEnable, 0); err != nil {
			munmapRegion(ring)
			closeFD(fd)
			r.closeOpened()
			return nil, err
		}
		key := make([]byte, 4)
		le.PutUint32(key, uint32(cpu))
		value := make([]byte, 4)
		le.PutUint32(value, uint32(fd))
		if err := m.Update(key, value, 0); err != nil {
			munmapRegion(ring)
			closeFD(fd)
			r.closeOpened()
			return nil, err
		}
		if err := ep.add(fd, unix.EPOLLIN); err != nil {
			munmapRegion(ring)
			closeFD(fd)
			r.closeOpened()
			return nil, err
		}
		r.cpus = append(r.cpus, &perfbufCPU{cpu: cpu, fd: fd, ring: ring, region: regionSize})
	}
	return r, nil
}

func (r *PerfbufReader) closeOpened() {
	for _, c := range r.cpus {
		munmapRegion(c.ring)
		closeFD(c.fd)
	}
	closeFD(r.stopFD)
	r.epoll.close()
}

// Read blocks until ctx is canceled or Close is called, calling fn for
// every sample read from any CPU, fanning them in via one goroutine per CPU
// and an errgroup so the first hard error on any CPU cancels the rest.
func (r *PerfbufReader) Read(ctx context.Context, fn func(PerfbufRecord)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range r.cpus {
		c := c
		g.Go(func() error {
			return r.pollCPU(ctx, c, fn)
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		signalEventFD(r.stopFD)
		return nil
	})
	return g.Wait()
}

func (r *PerfbufReader) pollCPU(ctx context.Context, c *perfbufCPU, fn func(PerfbufRecord)) error {
	meta := c.ring[:ringbufPageSize]
	data := c.ring[ringbufPageSize:]
	dataMask := uint64(len(data)) - 1

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		dataHead := le.Uint64(meta[1024 : 1024+8]) // perf_event_mmap_page.data_head
		dataTail := le.Uint64(meta[1032 : 1032+8]) // perf_event_mmap_page.data_tail

		for dataTail < dataHead {
			off := dataTail & dataMask
			if off+8 > uint64(len(data)) {
				break
			}
			typ := le.Uint32(data[off : off+4])
			size := le.Uint32(data[off+4 : off+8])
			if size < 8 || dataTail+uint64(size) > dataHead {
				return &Error{Kind: KindProtocolViolation, Op: "perfbuf.read",
					Err: errUsage("malformed perf sample header")}
			}
			if typ == perfRecordSample {
				payload := readPerfRingWrapped(data, off+8, uint64(size)-8, dataMask)
				// PERF_RECORD_SAMPLE with PERF_SAMPLE_RAW carries a u32
				// length prefix before the raw bytes.
				if len(payload) >= 4 {
					rawLen := le.Uint32(payload[0:4])
					if int(rawLen) <= len(payload)-4 {
						fn(PerfbufRecord{CPU: c.cpu, Data: payload[4 : 4+rawLen]})
					}
				}
			} else if typ == 2 { // PERF_RECORD_LOST
				lost := readPerfRingWrapped(data, off+8, uint64(size)-8, dataMask)
				if len(lost) >= 16 {
					r.lost.Add(le.Uint64(lost[8:16]))
				}
			}
			dataTail += uint64(size)
		}
		le.PutUint64(meta[1032:1032+8], dataTail)

		if _, err := r.epoll.wait(100, len(r.cpus)+1); err != nil {
			return err
		}
	}
}

// readPerfRingWrapped copies length bytes starting at off out of a
// power-of-two-sized ring buffer that may wrap around its end, the same
// accounting the kernel's own perf ring consumers use.
func readPerfRingWrapped(ring []byte, off, length, mask uint64) []byte {
	out := make([]byte, length)
	start := off & mask
	if start+length <= uint64(len(ring)) {
		copy(out, ring[start:start+length])
		return out
	}
	first := uint64(len(ring)) - start
	copy(out[:first], ring[start:])
	copy(out[first:], ring[:length-first])
	return out
}

// Stats returns the cumulative cross-CPU lost-sample count observed so far.
func (r *PerfbufReader) Stats() PerfbufStats { return PerfbufStats{Lost: r.lost.Load()} }

// Close unblocks any in-flight Read, unmaps every per-CPU ring, and closes
// every per-CPU perf_event fd. It does not close the backing Map.
func (r *PerfbufReader) Close() error {
	signalEventFD(r.stopFD)
	for _, c := range r.cpus {
		munmapRegion(c.ring)
		closeFD(c.fd)
	}
	closeFD(r.stopFD)
	return r.epoll.close()
}
