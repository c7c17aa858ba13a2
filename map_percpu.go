package gobpf

import (
	"os"
	"strconv"
	"strings"
)

// possibleCPUs returns the number of possible CPUs on this host, read from
// /sys/devices/system/cpu/possible. This is the count the kernel uses to size per-CPU map values —
// runtime.NumCPU reports configured, not possible, CPUs and can undercount
// on hosts with hotpluggable CPUs.
func possibleCPUs() (int, error) {
	data, err := os.ReadFile("/sys/devices/system/cpu/possible")
	if err != nil {
		return 0, &Error{Kind: KindResource, Op: "possibleCPUs", Err: err}
	}
	return parseCPURange(strings.TrimSpace(string(data)))
}

// parseCPURange parses the kernel's cpu-list format ("0-3", "0-3,8-11",
// "0"), returning count = highest index + 1.
func parseCPURange(s string) (int, error) {
	max := -1
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		bounds := strings.SplitN(part, "-", 2)
		var hi int
		var err error
		if len(bounds) == 2 {
			hi, err = strconv.Atoi(bounds[1])
		} else {
			hi, err = strconv.Atoi(bounds[0])
		}
		if err != nil {
			return 0, &Error{Kind: KindEncoding, Op: "parseCPURange", Err: err}
		}
		if hi > max {
			max = hi
		}
	}
	if max < 0 {
		return 0, &Error{Kind: KindEncoding, Op: "parseCPURange", Err: errUsage("empty cpu range")}
	}
	return max + 1, nil
}

// percpuValueStride rounds valueSize up to an 8-byte boundary — the padding
// the kernel imposes between each CPU's slot in a per-CPU map's
// lookup/update buffer.
func percpuValueStride(valueSize uint32) uint32 { return alignUp8(valueSize) }

// LookupPercpu reads one value per possible CPU for key from a per-CPU map.
// The returned slice has one entry per possible CPU, in CPU-index order;
// entries for offline CPUs still come back kernel-zeroed, not omitted.
func (m *Map) LookupPercpu(key []byte) ([][]byte, error) {
	if err := m.checkKey(key); err != nil {
		return nil, err
	}
	ncpu, err := possibleCPUs()
	if err != nil {
		return nil, err
	}
	stride := percpuValueStride(m.spec.ValueSize)
	buf := make([]byte, stride*uint32(ncpu))
	attr := newMapElemAttr(int32(m.fd), key, buf, 0)
	if _, err := sysBPF(bpfMapLookupElem, &attr, bpfAttrSize); err != nil {
		return nil, err
	}
	out := make([][]byte, ncpu)
	for i := 0; i < ncpu; i++ {
		start := uint32(i) * stride
		out[i] = buf[start : start+m.spec.ValueSize]
	}
	return out, nil
}

// UpdatePercpu writes one value per possible CPU to key in a per-CPU map.
// len(values) must equal the host's possible-CPU count.
func (m *Map) UpdatePercpu(key []byte, values [][]byte, flags uint64) error {
	if err := m.checkKey(key); err != nil {
		return err
	}
	ncpu, err := possibleCPUs()
	if err != nil {
		return err
	}
	if len(values) != ncpu {
		return &Error{Kind: KindUsageError, Op: "MAP_UPDATE_ELEM",
			Err: errUsage("per-cpu value count does not match possible CPU count")}
	}
	stride := percpuValueStride(m.spec.ValueSize)
	buf := make([]byte, stride*uint32(ncpu))
	for i, v := range values {
		if uint32(len(v)) != m.spec.ValueSize {
			return &Error{Kind: KindUsageError, Op: "MAP_UPDATE_ELEM",
				Err: errUsage("per-cpu value length does not match map value size")}
		}
		copy(buf[uint32(i)*stride:], v)
	}
	attr := newMapElemAttr(int32(m.fd), key, buf, flags)
	_, err = sysBPF(bpfMapUpdateElem, &attr, bpfAttrSize)
	return err
}
