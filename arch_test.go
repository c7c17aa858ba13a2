package gobpf

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestLookupArchKnownArchitectures(t *testing.T) {
	for _, a := range []Arch{ArchAMD64, ArchARM64} {
		info, ok := archTable[a]
		assert.Assert(t, ok)
		assert.Assert(t, info.bpfSyscallNr != 0)
		assert.Assert(t, info.perfEventOpenNr != 0)
		assert.Equal(t, info.pointerSize, 8)
		assert.Assert(t, info.littleEndian)
	}
}

func TestCurrentArchMatchesTable(t *testing.T) {
	arch, ok := CurrentArch()
	if !ok {
		t.Skip("unsupported GOARCH for this test host")
	}
	_, inTable := archTable[arch]
	assert.Assert(t, inTable)
}
