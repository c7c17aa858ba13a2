package gobpf

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestParseCPURangeSingle(t *testing.T) {
	n, err := parseCPURange("0")
	assert.NilError(t, err)
	assert.Equal(t, n, 1)
}

func TestParseCPURangeSpan(t *testing.T) {
	n, err := parseCPURange("0-3")
	assert.NilError(t, err)
	assert.Equal(t, n, 4)
}

func TestParseCPURangeMultipleSpans(t *testing.T) {
	n, err := parseCPURange("0-3,8-11")
	assert.NilError(t, err)
	assert.Equal(t, n, 12)
}

func TestParseCPURangeRejectsEmpty(t *testing.T) {
	_, err := parseCPURange("")
	assert.ErrorContains(t, err, "empty cpu range")
}

func TestPercpuValueStrideRoundsUpTo8(t *testing.T) {
	assert.Equal(t, percpuValueStride(1), uint32(8))
	assert.Equal(t, percpuValueStride(8), uint32(8))
	assert.Equal(t, percpuValueStride(9), uint32(16))
}
