//go:build linux

package gobpf

import (
	"context"
	"sync"

	"golang.org/x/sys/unix"
)

// Ring-buffer record header bits: the low 28 bits of the
// first u32 are the payload length, bit 31 is BUSY, bit 30 is DISCARD.
const (
	ringbufBusyBit    uint32 = 1 << 31
	ringbufDiscardBit uint32 = 1 << 30
	ringbufLenMask    uint32 = 0x0fffffff
)

// RingbufRecord is one decoded record read off a BPF ring buffer.
type RingbufRecord struct {
	Data []byte
}

// RingbufReader consumes records from a BPF_MAP_TYPE_RINGBUF map.
// It owns an mmap of the map's producer page, consumer page, and
// data region, and an epoll fd registered on the map's fd for wake-up on
// new data.
type RingbufReader struct {
	mapFD    int
	prodRing []byte // producer-page + data region, PROT_READ
	consRing []byte // consumer page, PROT_READ|PROT_WRITE
	dataOff  int    // offset into prodRing where the data region starts
	mask     uint64 // dataSize - 1; dataSize is a power of two

	epoll   *epollWaiter
	stopFD  int
	mu      sync.Mutex
	closed  bool
}

// pageSize is assumed to be 4096, true on every architecture this package
// supports; a host with a non-4KiB page size
// would need this derived from unix.Getpagesize at open time, which the
// kernel ABI for ring buffers does not otherwise require.
const ringbufPageSize = 4096

// NewRingbufReader opens a consumer over m, which must have been created
// with MapTypeRingbuf. maxEntries must be the power-of-two byte size the
// map was created with.
func NewRingbufReader(m *Map) (*RingbufReader, error) {
	dataSize := m.spec.MaxEntries
	if !isPowerOfTwo(dataSize) {
		return nil, &Error{Kind: KindUsageError, Op: "ringbuf.open",
			Err: errUsage("ring buffer max_entries must be a power of two")}
	}
	// Layout : consumer page (1 page, RW) mapped
	// separately; producer page (1 page, RO) followed immediately by the
	// data region (RO), mapped together since the kernel requires them
	// contiguous.
	consRing, err := mmapRegion(m.fd, ringbufPageSize)
	if err != nil {
		return nil, err
	}
	prodRing, err := mmapRegionReadOnly(m.fd, ringbufPageSize+int(dataSize))
	if err != nil {
		munmapRegion(consRing)
		return nil, err
	}

	ep, err := newEpollWaiter()
	if err != nil {
		munmapRegion(consRing)
		munmapRegion(prodRing)
		return nil, err
	}
	if err := ep.add(m.fd, unix.EPOLLIN); err != nil {
		ep.close()
		munmapRegion(consRing)
		munmapRegion(prodRing)
		return nil, err
	}
	stopFD, err := newEventFD()
	if err != nil {
		ep.close()
		munmapRegion(consRing)
		munmapRegion(prodRing)
		return nil, err
	}
	if err := ep.add(stopFD, unix.EPOLLIN); err != nil {
		closeFD(stopFD)
		ep.close()
		munmapRegion(consRing)
		munmapRegion(prodRing)
		return nil, err
	}

	return &RingbufReader{
		mapFD:    m.fd,
		prodRing: prodRing,
		consRing: consRing,
		dataOff:  ringbufPageSize,
		mask:     uint64(dataSize) - 1,
		epoll:    ep,
		stopFD:   stopFD,
	}, nil
}

func (r *RingbufReader) consumerPos() uint64 { return le.Uint64(r.consRing[0:8]) }
func (r *RingbufReader) setConsumerPos(p uint64) { le.PutUint64(r.consRing[0:8], p) }
func (r *RingbufReader) producerPos() uint64 { return le.Uint64(r.prodRing[8:16]) }

// drain reads every fully-committed record currently available without
// blocking, invoking fn for each. It returns the number of records read.
func (r *RingbufReader) drain(fn func(RingbufRecord) bool) (int, error) {
	cons := r.consumerPos()
	prod := r.producerPos()
	n := 0
	for cons < prod {
		recordOff := r.dataOff + int(cons&r.mask)
		header := le.Uint32(r.prodRing[recordOff : recordOff+4])
		if header&ringbufBusyBit != 0 {
			// Producer hasn't finished committing; stop here and retry on
			// the next wake-up rather than spinning.
			break
		}
		length := header & ringbufLenMask
		available := prod - cons
		if uint64(8+length) > available || (length == 0 && header&ringbufDiscardBit == 0) {
			r.setConsumerPos(cons)
			return n, &Error{Kind: KindProtocolViolation, Op: "ringbuf.read",
				Err: errUsage("malformed ring buffer record header")}
		}
		recordLen := alignUp8(8 + length)
		if header&ringbufDiscardBit == 0 {
			// The payload may run past the end of the data region; copy
			// the part up to the end, then the rest from its start.
			data := make([]byte, length)
			start := (cons + 8) & r.mask
			first := uint64(length)
			if rem := r.mask + 1 - start; first > rem {
				first = rem
			}
			base := uint64(r.dataOff)
			copy(data[:first], r.prodRing[base+start:base+start+first])
			copy(data[first:], r.prodRing[base:])
			if !fn(RingbufRecord{Data: data}) {
				cons += uint64(recordLen)
				r.setConsumerPos(cons)
				return n + 1, nil
			}
			n++
		}
		cons += uint64(recordLen)
	}
	r.setConsumerPos(cons)
	return n, nil
}

// Read blocks until at least one record is available (or ctx is canceled),
// draining everything currently available and calling fn for each record in
// order. Returning false from fn stops the current drain early but does not
// close the reader. Read itself returns only on ctx cancellation, a
// protocol violation, or Close.
func (r *RingbufReader) Read(ctx context.Context, fn func(RingbufRecord) bool) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if _, err := r.drain(fn); err != nil {
			return err
		}
		ready, err := r.epoll.wait(100, 4)
		if err != nil {
			return err
		}
		if _, woke := ready[r.stopFD]; woke {
			return nil
		}
	}
}

// Close unblocks any in-flight Read, unmaps the ring buffer, and releases
// the epoll fd. It does not close the underlying Map. Idempotent.
func (r *RingbufReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	signalEventFD(r.stopFD)
	closeFD(r.stopFD)
	r.epoll.close()
	munmapRegion(r.consRing)
	munmapRegion(r.prodRing)
	return nil
}
