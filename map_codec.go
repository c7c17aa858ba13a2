package gobpf

// Codec converts between a Go value and the fixed-width byte representation
// a map's key or value slot expects. Encode must always produce exactly the
// map's KeySize/ValueSize bytes; TypedMap relies on that rather than
// re-checking lengths itself.
type Codec[T any] interface {
	Encode(T) ([]byte, error)
	Decode([]byte) (T, error)
}

// TypedMap wraps a Map with a key and value Codec, giving callers a
// Go-typed Lookup/Update/Delete instead of raw byte slices. It carries no
// state of its own beyond the codecs and the underlying Map, so it is cheap
// to construct per call site.
type TypedMap[K, V any] struct {
	m          *Map
	keyCodec   Codec[K]
	valueCodec Codec[V]
}

// NewTypedMap pairs an already-created Map with the codecs for its key and
// value types. It does not validate that Encode's output length matches the
// map's KeySize/ValueSize; a mismatched codec surfaces as a KindUsageError
// from the underlying Map call.
func NewTypedMap[K, V any](m *Map, keyCodec Codec[K], valueCodec Codec[V]) *TypedMap[K, V] {
	return &TypedMap[K, V]{m: m, keyCodec: keyCodec, valueCodec: valueCodec}
}

// Map returns the underlying byte-oriented Map, for callers that need batch
// operations or Pin, which TypedMap does not wrap.
func (t *TypedMap[K, V]) Map() *Map { return t.m }

// Lookup encodes key via the key codec, looks it up, and decodes the result
// via the value codec. Like Map.Lookup, it does not retry on its own.
func (t *TypedMap[K, V]) Lookup(key K) (V, error) {
	var zero V
	kb, err := t.keyCodec.Encode(key)
	if err != nil {
		return zero, &Error{Kind: KindUsageError, Op: "typedmap.lookup", Err: err}
	}
	vb, err := t.m.Lookup(kb)
	if err != nil {
		return zero, err
	}
	return t.valueCodec.Decode(vb)
}

// Update encodes key and value and writes them through to the underlying
// Map, honoring the same BPF_ANY/BPF_NOEXIST/BPF_EXIST flags semantics.
func (t *TypedMap[K, V]) Update(key K, value V, flags uint64) error {
	kb, err := t.keyCodec.Encode(key)
	if err != nil {
		return &Error{Kind: KindUsageError, Op: "typedmap.update", Err: err}
	}
	vb, err := t.valueCodec.Encode(value)
	if err != nil {
		return &Error{Kind: KindUsageError, Op: "typedmap.update", Err: err}
	}
	return t.m.Update(kb, vb, flags)
}

// Delete encodes key and removes its entry from the underlying Map.
func (t *TypedMap[K, V]) Delete(key K) error {
	kb, err := t.keyCodec.Encode(key)
	if err != nil {
		return &Error{Kind: KindUsageError, Op: "typedmap.delete", Err: err}
	}
	return t.m.Delete(kb)
}

// FixedUint32Codec encodes a uint32 as a 4-byte little-endian key or value,
// the layout almost every hash/array map in this package's test suite and
// example producers use for simple counters and index keys.
type FixedUint32Codec struct{}

func (FixedUint32Codec) Encode(v uint32) ([]byte, error) {
	b := make([]byte, 4)
	le.PutUint32(b, v)
	return b, nil
}

func (FixedUint32Codec) Decode(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, &Error{Kind: KindUsageError, Op: "codec.uint32",
			Err: errUsage("buffer shorter than 4 bytes")}
	}
	return le.Uint32(b[:4]), nil
}

// FixedUint64Codec encodes a uint64 as an 8-byte little-endian key or value.
type FixedUint64Codec struct{}

func (FixedUint64Codec) Encode(v uint64) ([]byte, error) {
	b := make([]byte, 8)
	le.PutUint64(b, v)
	return b, nil
}

func (FixedUint64Codec) Decode(b []byte) (uint64, error) {
	if len(b) < 8 {
		return 0, &Error{Kind: KindUsageError, Op: "codec.uint64",
			Err: errUsage("buffer shorter than 8 bytes")}
	}
	return le.Uint64(b[:8]), nil
}
