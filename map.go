package gobpf

import (
	"github.com/sirupsen/logrus"

	"github.com/xyproto/gobpf/internal/xlog"
)

// MapType names a BPF_MAP_TYPE_* kernel map kind. Only the
// subset this package gives first-class helpers for is enumerated; any
// other numeric type can still be created via MapSpec.Type.
type MapType uint32

const (
	MapTypeHash          MapType = 1
	MapTypeArray         MapType = 2
	MapTypeProgArray     MapType = 3
	MapTypePerfEventArray MapType = 4
	MapTypePercpuHash    MapType = 5
	MapTypePercpuArray   MapType = 6
	MapTypeLRUHash       MapType = 9
	MapTypeRingbuf       MapType = 27
	MapTypeQueue         MapType = 22
	MapTypeStack         MapType = 23
)

// MapFlags are BPF_F_* bits passed through to map_flags at create time.
type MapFlags uint32

const (
	MapFlagNoPreAlloc MapFlags = 1 << 0
	MapFlagNoCommonLRU MapFlags = 1 << 1
	MapFlagMmapable    MapFlags = 1 << 10
)

// MapSpec describes the map a caller wants BPF_MAP_CREATE to build.
type MapSpec struct {
	Type       MapType
	Name       string
	KeySize    uint32
	ValueSize  uint32
	MaxEntries uint32
	Flags      MapFlags
	InnerMapFD int32 // for BPF_MAP_TYPE_*_OF_MAPS, 0 otherwise

	// Logger receives structured diagnostics for this map's lifetime if
	// set; otherwise the package default logger is used.
	Logger xlog.Logger
}

// Map owns a live BPF map file descriptor and the operations the kernel
// defines over it. The zero value is not usable; obtain one
// via CreateMap, GetMapByID, or an ELF-loaded object's Maps().
type Map struct {
	fd     int
	spec   MapSpec
	log    *logrus.Entry
	closed bool
}

// CreateMap issues BPF_MAP_CREATE and returns a Map owning the resulting fd.
// Map is not safe for concurrent Close with any other method; concurrent
// lookups/updates on a live Map are safe, mirroring the kernel's own
// per-map locking.
func CreateMap(spec MapSpec) (*Map, error) {
	// Ring buffers have no key or value; queue and stack maps have no key.
	keyOK := spec.KeySize != 0 || spec.Type == MapTypeRingbuf || spec.Type == MapTypeQueue || spec.Type == MapTypeStack
	valueOK := spec.ValueSize != 0 || spec.Type == MapTypeRingbuf
	if !keyOK || !valueOK || spec.MaxEntries == 0 {
		return nil, &Error{Kind: KindUsageError, Op: "MAP_CREATE",
			Err: errUsage("key size, value size, and max entries must all be non-zero")}
	}
	attr := newMapCreateAttr(mapCreateSpec{
		MapType:    uint32(spec.Type),
		KeySize:    spec.KeySize,
		ValueSize:  spec.ValueSize,
		MaxEntries: spec.MaxEntries,
		MapFlags:   uint32(spec.Flags),
		InnerMapFD: uint32(spec.InnerMapFD),
		Name:       spec.Name,
	})
	fd, err := sysBPF(bpfMapCreate, &attr, bpfAttrSize)
	if err != nil {
		return nil, err
	}
	m := &Map{
		fd:   int(fd),
		spec: spec,
		log:  xlog.Default(spec.Logger).WithFields(xlog.Fields{"component": "map", "name": spec.Name}),
	}
	m.log.Debug("map created")
	return m, nil
}

// FD returns the map's underlying kernel file descriptor, for callers that
// need to reference it from raw instruction encoding (lddw map-fd pseudo
// mode) or ELF relocation.
func (m *Map) FD() int { return m.fd }

// Spec returns the MapSpec this Map was created with.
func (m *Map) Spec() MapSpec { return m.spec }

// Lookup reads the value for key into a ValueSize-length byte slice,
// returning a KindNotFound Error (checkable with IsNotFound) if the key is
// absent. Lookup does not retry on its own; wrap the call in WithRetry at
// the call site to opt into the Transient-error backoff policy.
func (m *Map) Lookup(key []byte) ([]byte, error) {
	if err := m.checkKey(key); err != nil {
		return nil, err
	}
	value := make([]byte, m.spec.ValueSize)
	attr := newMapElemAttr(int32(m.fd), key, value, 0)
	if _, err := sysBPF(bpfMapLookupElem, &attr, bpfAttrSize); err != nil {
		return nil, err
	}
	return value, nil
}

// Update writes key→value, honoring the BPF_ANY/BPF_NOEXIST/BPF_EXIST
// semantics in flags. Update does not retry on its own; wrap the call in
// WithRetry to opt into the Transient-error backoff policy.
func (m *Map) Update(key, value []byte, flags uint64) error {
	if err := m.checkKey(key); err != nil {
		return err
	}
	if uint32(len(value)) != m.spec.ValueSize {
		return &Error{Kind: KindUsageError, Op: "MAP_UPDATE_ELEM",
			Err: errUsage("value length does not match map value size")}
	}
	attr := newMapElemAttr(int32(m.fd), key, value, flags)
	_, err := sysBPF(bpfMapUpdateElem, &attr, bpfAttrSize)
	return err
}

// Delete removes key, returning a KindNotFound Error if it was absent.
// Delete does not retry on its own; wrap the call in WithRetry to opt into
// the Transient-error backoff policy.
func (m *Map) Delete(key []byte) error {
	if err := m.checkKey(key); err != nil {
		return err
	}
	attr := newMapElemAttr(int32(m.fd), key, nil, 0)
	_, err := sysBPF(bpfMapDeleteElem, &attr, bpfAttrSize)
	return err
}

// NextKey returns the key following key in kernel iteration order, or (nil,
// nil) to signal end-of-map when the kernel's GET_NEXT_KEY returns ENOENT,
// rather than surfacing ENOENT as an error to iterators. Pass a nil key to
// fetch the first key.
func (m *Map) NextKey(key []byte) ([]byte, error) {
	if key != nil {
		if err := m.checkKey(key); err != nil {
			return nil, err
		}
	}
	next := make([]byte, m.spec.KeySize)
	attr := newMapElemAttr(int32(m.fd), key, next, 0)
	_, err := sysBPF(bpfMapGetNextKey, &attr, bpfAttrSize)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return next, nil
}

// Iterate calls fn with every (key, value) pair currently in the map, in
// kernel iteration order, stopping early if fn returns false. This is a
// snapshot-free walk: concurrent mutation by another thread/program can
// cause keys to be skipped or seen twice.
func (m *Map) Iterate(fn func(key, value []byte) bool) error {
	var key []byte
	for {
		next, err := m.NextKey(key)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		value, err := m.Lookup(next)
		if err != nil {
			if IsNotFound(err) {
				key = next
				continue
			}
			return err
		}
		if !fn(next, value) {
			return nil
		}
		key = next
	}
}

// Pin bind-mounts this map's fd at pathname under bpffs, making it visible
// to other processes.
func (m *Map) Pin(pathname string) error {
	p := append([]byte(pathname), 0)
	attr := newObjAttr(p, int32(m.fd), 0)
	_, err := sysBPF(bpfObjPin, &attr, bpfAttrSize)
	return err
}

// GetMapByPin opens a previously pinned map by its bpffs path. The returned
// Map's Spec() is entirely zero-valued (Name is not set either), and the
// length checks in Lookup, Update, Delete and NextKey compare against it, so
// they accept only zero-length keys and values; callers that need KeySize/
// ValueSize to interpret Lookup/Update results should query
// BPF_OBJ_GET_INFO_BY_FD themselves or track the spec out of band.
func GetMapByPin(pathname string) (*Map, error) {
	p := append([]byte(pathname), 0)
	attr := newObjAttr(p, 0, 0)
	fd, err := sysBPF(bpfObjGet, &attr, bpfAttrSize)
	if err != nil {
		return nil, err
	}
	return &Map{
		fd:  int(fd),
		log: xlog.Default(nil).WithFields(xlog.Fields{"component": "map", "pin": pathname}),
	}, nil
}

// Close releases the map's file descriptor. Closing an already-closed Map
// is a no-op, matching the usual idempotent-Close convention.
func (m *Map) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	return closeFD(m.fd)
}

func (m *Map) checkKey(key []byte) error {
	if uint32(len(key)) != m.spec.KeySize {
		return &Error{Kind: KindUsageError, Op: "map.key",
			Err: errUsage("key length does not match map key size")}
	}
	return nil
}

type errUsage string

func (e errUsage) Error() string { return string(e) }
