//go:build linux

package gobpf

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestReadPerfRingWrappedContiguous(t *testing.T) {
	ring := make([]byte, 16)
	copy(ring[4:10], []byte{1, 2, 3, 4, 5, 6})
	got := readPerfRingWrapped(ring, 4, 6, 15)
	assert.DeepEqual(t, got, []byte{1, 2, 3, 4, 5, 6})
}

func TestReadPerfRingWrappedAcrossBoundary(t *testing.T) {
	ring := make([]byte, 16)
	copy(ring[12:16], []byte{1, 2, 3, 4})
	copy(ring[0:4], []byte{5, 6, 7, 8})
	got := readPerfRingWrapped(ring, 12, 8, 15)
	assert.DeepEqual(t, got, []byte{1, 2, 3, 4, 5, 6, 7, 8})
}

func TestPerfbufStatsStartsAtZero(t *testing.T) {
	r := &PerfbufReader{}
	assert.Equal(t, r.Stats().Lost, uint64(0))
}
