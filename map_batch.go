package gobpf

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// BatchCursor is an opaque resume token for successive batch lookup/delete
// calls. The zero value means "start from the beginning".
type BatchCursor struct {
	key []byte
}

// maxConcurrentBatchOps bounds how many BPF_MAP_*_BATCH syscalls this
// process has in flight at once. The kernel copies the entire key/value
// buffer pair into kernel memory per call, so a caller fanning a drain loop
// out across many goroutines can pin an amount of pinned memory proportional
// to goroutine count; the semaphore caps that regardless of how many
// goroutines call into batch ops concurrently.
const maxConcurrentBatchOps = 4

var batchSem = semaphore.NewWeighted(maxConcurrentBatchOps)

// acquireBatchSlot blocks until a batch-op slot is free. Batch syscalls are
// not cancelable once issued, so this uses context.Background() rather than
// threading a caller context through.
func acquireBatchSlot() {
	_ = batchSem.Acquire(context.Background(), 1)
}

func releaseBatchSlot() {
	batchSem.Release(1)
}

// LookupBatch reads up to count entries starting at cursor, returning the
// keys, values (concatenated ValueSize-length slices), the next cursor to
// resume from, and whether the map is exhausted. A partial final batch is
// not an error: done reports true once the kernel has nothing left to walk.
func (m *Map) LookupBatch(cursor BatchCursor, count uint32) (keys [][]byte, values [][]byte, next BatchCursor, done bool, err error) {
	keyBuf := make([]byte, uint32(count)*m.spec.KeySize)
	valueBuf := make([]byte, uint32(count)*m.spec.ValueSize)
	outBatch := make([]byte, m.spec.KeySize)

	attr := newMapBatchAttr(int32(m.fd), cursor.key, outBatch, keyBuf, valueBuf, count, 0)
	acquireBatchSlot()
	n, callErr := sysBPF(bpfMapLookupBatch, &attr, bpfAttrSize)
	releaseBatchSlot()
	// The kernel reports the actual element count back through attr's
	// count field at offset 32 even on a partial-batch ENOENT; re-read it
	// rather than trusting the syscall return value, which is just 0/-1.
	got := le.Uint32(attr[32:36])
	_ = n

	if callErr != nil {
		if !IsNotFound(callErr) {
			return nil, nil, BatchCursor{}, false, callErr
		}
		done = true
	}
	keys = sliceInto(keyBuf, m.spec.KeySize, got)
	values = sliceInto(valueBuf, m.spec.ValueSize, got)
	next = BatchCursor{key: append([]byte(nil), outBatch...)}
	return keys, values, next, done, nil
}

// LookupAndDeleteBatch reads up to count entries starting at cursor the
// same way LookupBatch does, atomically removing each entry as it is read
// (the kernel's BPF_MAP_LOOKUP_AND_DELETE_BATCH semantics — useful for
// queue/stack-shaped drain loops where a separate DeleteBatch call could
// race another reader).
func (m *Map) LookupAndDeleteBatch(cursor BatchCursor, count uint32) (keys [][]byte, values [][]byte, next BatchCursor, done bool, err error) {
	keyBuf := make([]byte, uint32(count)*m.spec.KeySize)
	valueBuf := make([]byte, uint32(count)*m.spec.ValueSize)
	outBatch := make([]byte, m.spec.KeySize)

	attr := newMapBatchAttr(int32(m.fd), cursor.key, outBatch, keyBuf, valueBuf, count, 0)
	acquireBatchSlot()
	_, callErr := sysBPF(bpfMapLookupAndDelBatch, &attr, bpfAttrSize)
	releaseBatchSlot()
	got := le.Uint32(attr[32:36])

	if callErr != nil {
		if !IsNotFound(callErr) {
			return nil, nil, BatchCursor{}, false, callErr
		}
		done = true
	}
	keys = sliceInto(keyBuf, m.spec.KeySize, got)
	values = sliceInto(valueBuf, m.spec.ValueSize, got)
	next = BatchCursor{key: append([]byte(nil), outBatch...)}
	return keys, values, next, done, nil
}

// DeleteBatch deletes the entries named by keys in a single syscall,
// returning how many were actually deleted (the kernel stops at the first
// missing key and reports the count processed before that point).
func (m *Map) DeleteBatch(keys [][]byte) (uint32, error) {
	keyBuf := make([]byte, 0, len(keys)*int(m.spec.KeySize))
	for _, k := range keys {
		keyBuf = append(keyBuf, k...)
	}
	attr := newMapBatchAttr(int32(m.fd), nil, nil, keyBuf, nil, uint32(len(keys)), 0)
	acquireBatchSlot()
	_, err := sysBPF(bpfMapDeleteBatch, &attr, bpfAttrSize)
	releaseBatchSlot()
	got := le.Uint32(attr[32:36])
	if err != nil {
		return got, err
	}
	return got, nil
}

// UpdateBatch writes count key/value pairs in a single syscall.
func (m *Map) UpdateBatch(keys, values [][]byte, flags uint64) (uint32, error) {
	if len(keys) != len(values) {
		return 0, &Error{Kind: KindUsageError, Op: "MAP_UPDATE_BATCH",
			Err: errUsage("keys and values count mismatch")}
	}
	keyBuf := make([]byte, 0, len(keys)*int(m.spec.KeySize))
	valueBuf := make([]byte, 0, len(values)*int(m.spec.ValueSize))
	for i := range keys {
		keyBuf = append(keyBuf, keys[i]...)
		valueBuf = append(valueBuf, values[i]...)
	}
	attr := newMapBatchAttr(int32(m.fd), nil, nil, keyBuf, valueBuf, uint32(len(keys)), flags)
	acquireBatchSlot()
	_, err := sysBPF(bpfMapUpdateBatch, &attr, bpfAttrSize)
	releaseBatchSlot()
	got := le.Uint32(attr[32:36])
	if err != nil {
		return got, err
	}
	return got, nil
}

func sliceInto(buf []byte, stride uint32, count uint32) [][]byte {
	out := make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		start := i * stride
		out = append(out, buf[start:start+stride])
	}
	return out
}
