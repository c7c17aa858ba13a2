//go:build linux

package gobpf

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestXDPModesAreDistinctFlagBits(t *testing.T) {
	modes := []XDPMode{XDPModeGeneric, XDPModeDriver, XDPModeOffload}
	for i, a := range modes {
		for j, b := range modes {
			if i == j {
				continue
			}
			assert.Assert(t, a != b, "mode %d collides with mode %d", i, j)
		}
	}
	assert.Equal(t, XDPModeOffload, XDPMode(xdpFlagsHwMode))
}
