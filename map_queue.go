package gobpf

// Push enqueues/pushes value onto a BPF_MAP_TYPE_QUEUE or
// BPF_MAP_TYPE_STACK map.
// flags may carry BPF_EXIST to overwrite the oldest entry when full.
func (m *Map) Push(value []byte, flags uint64) error {
	if uint32(len(value)) != m.spec.ValueSize {
		return &Error{Kind: KindUsageError, Op: "MAP_UPDATE_ELEM",
			Err: errUsage("value length does not match map value size")}
	}
	attr := newMapElemAttr(int32(m.fd), nil, value, flags)
	_, err := sysBPF(bpfMapUpdateElem, &attr, bpfAttrSize)
	return err
}

// Pop removes and returns the front element (FIFO for queues, LIFO for
// stacks), returning a KindNotFound Error when empty.
func (m *Map) Pop() ([]byte, error) {
	value := make([]byte, m.spec.ValueSize)
	attr := newMapElemAttr(int32(m.fd), nil, value, 0)
	_, err := sysBPF(bpfMapLookupAndDeleteElem, &attr, bpfAttrSize)
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Peek returns the front element without removing it.
func (m *Map) Peek() ([]byte, error) {
	value := make([]byte, m.spec.ValueSize)
	attr := newMapElemAttr(int32(m.fd), nil, value, 0)
	_, err := sysBPF(bpfMapLookupElem, &attr, bpfAttrSize)
	if err != nil {
		return nil, err
	}
	return value, nil
}
