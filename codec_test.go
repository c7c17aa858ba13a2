package gobpf

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestPackNameTruncatesAndPads(t *testing.T) {
	b := packName("a_very_long_map_name_indeed", 16)
	assert.Equal(t, len(b), 16)
	assert.Equal(t, cString(b), "a_very_long_map")
}

func TestPackNamePadsShortNames(t *testing.T) {
	b := packName("hi", 8)
	assert.DeepEqual(t, b, []byte{'h', 'i', 0, 0, 0, 0, 0, 0})
}

func TestCStringStopsAtFirstNUL(t *testing.T) {
	assert.Equal(t, cString([]byte{'G', 'P', 'L', 0, 'x'}), "GPL")
}

func TestAlignUp8(t *testing.T) {
	cases := map[uint32]uint32{0: 0, 1: 8, 7: 8, 8: 8, 9: 16}
	for in, want := range cases {
		assert.Equal(t, alignUp8(in), want)
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	assert.Assert(t, isPowerOfTwo(1))
	assert.Assert(t, isPowerOfTwo(4096))
	assert.Assert(t, !isPowerOfTwo(0))
	assert.Assert(t, !isPowerOfTwo(100))
}
