package gobpf

import (
	"os"
	"testing"

	"gotest.tools/v3/assert"
)

func TestSliceIntoSplitsFixedStride(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5, 6}
	out := sliceInto(buf, 2, 3)
	assert.Equal(t, len(out), 3)
	assert.DeepEqual(t, out[0], []byte{1, 2})
	assert.DeepEqual(t, out[1], []byte{3, 4})
	assert.DeepEqual(t, out[2], []byte{5, 6})
}

// TestMapLookupAndDeleteBatchRequiresRoot drains a small hash map with
// LookupAndDeleteBatch and checks every entry was both returned and removed.
func TestMapLookupAndDeleteBatchRequiresRoot(t *testing.T) {
	if os.Geteuid() != 0 {
		t.Skip("requires root / CAP_BPF to create a BPF map")
	}
	m, err := CreateMap(MapSpec{
		Type:       MapTypeHash,
		Name:       "gobpf_test_ladb",
		KeySize:    4,
		ValueSize:  4,
		MaxEntries: 8,
	})
	assert.NilError(t, err)
	defer m.Close()

	for i := uint32(0); i < 4; i++ {
		key := make([]byte, 4)
		le.PutUint32(key, i)
		value := make([]byte, 4)
		le.PutUint32(value, i*10)
		assert.NilError(t, m.Update(key, value, 0))
	}

	keys, _, _, done, err := m.LookupAndDeleteBatch(BatchCursor{}, 8)
	assert.NilError(t, err)
	assert.Assert(t, done)
	assert.Equal(t, len(keys), 4)

	_, err = m.Lookup(keys[0])
	assert.Assert(t, IsNotFound(err))
}
