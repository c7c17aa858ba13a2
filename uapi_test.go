package gobpf

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestMapCreateAttrFieldOffsets(t *testing.T) {
	a := newMapCreateAttr(mapCreateSpec{
		MapType:    uint32(MapTypeHash),
		KeySize:    4,
		ValueSize:  8,
		MaxEntries: 1024,
		MapFlags:   0,
		Name:       "counters",
	})
	assert.Equal(t, le.Uint32(a[0:4]), uint32(MapTypeHash))
	assert.Equal(t, le.Uint32(a[4:8]), uint32(4))
	assert.Equal(t, le.Uint32(a[8:12]), uint32(8))
	assert.Equal(t, le.Uint32(a[12:16]), uint32(1024))
	assert.Equal(t, cString(a[28:44]), "counters")
}

func TestMapElemAttrFieldOffsets(t *testing.T) {
	key := []byte{1, 2, 3, 4}
	value := []byte{5, 6, 7, 8}
	a := newMapElemAttr(7, key, value, 0x3)
	assert.Equal(t, le.Uint32(a[0:4]), uint32(7))
	assert.Equal(t, le.Uint64(a[24:32]), uint64(0x3))
}

func TestPerfEventAttrFieldOffsets(t *testing.T) {
	a := newPerfEventAttr(perfTypeTracepoint, 99, 0, perfBitDisabled, 0)
	assert.Equal(t, le.Uint32(a[0:4]), uint32(perfTypeTracepoint))
	assert.Equal(t, le.Uint32(a[4:8]), uint32(perfEventAttrSize))
	assert.Equal(t, le.Uint64(a[8:16]), uint64(99))
	assert.Equal(t, le.Uint64(a[40:48]), perfBitDisabled)
}

func TestPutNlmsghdrLayout(t *testing.T) {
	b := make([]byte, 16)
	putNlmsghdr(b, 32, 36, 5, 1, 1234)
	assert.Equal(t, le.Uint32(b[0:4]), uint32(32))
	assert.Equal(t, le.Uint16(b[4:6]), uint16(36))
	assert.Equal(t, le.Uint16(b[6:8]), uint16(5))
	assert.Equal(t, le.Uint32(b[8:12]), uint32(1))
	assert.Equal(t, le.Uint32(b[12:16]), uint32(1234))
}

func TestPutTcmsgLayout(t *testing.T) {
	b := make([]byte, 20)
	putTcmsg(b, 0, 3, 0xffff0000, 0xfffffff1, 42)
	assert.Equal(t, b[0], uint8(0))
	assert.Equal(t, le.Uint32(b[4:8]), uint32(3))
	assert.Equal(t, le.Uint32(b[8:12]), uint32(0xffff0000))
	assert.Equal(t, le.Uint32(b[12:16]), uint32(0xfffffff1))
	assert.Equal(t, le.Uint32(b[16:20]), uint32(42))
}

func TestPutNLAAlignsValueTo4Bytes(t *testing.T) {
	buf := putNLA(nil, 1, []byte{1, 2, 3})
	// header(4) + value(3) = 7, aligned up to 8
	assert.Equal(t, len(buf), 8)
	assert.Equal(t, le.Uint16(buf[0:2]), uint16(7))
	assert.Equal(t, le.Uint16(buf[2:4]), uint16(1))
}

func TestPutNLANoPaddingWhenAlreadyAligned(t *testing.T) {
	buf := putNLA(nil, 2, []byte{1, 2, 3, 4})
	// header(4) + value(4) = 8, already aligned
	assert.Equal(t, len(buf), 8)
}

func TestNlaAlign(t *testing.T) {
	assert.Equal(t, nlaAlign(0), 0)
	assert.Equal(t, nlaAlign(1), 4)
	assert.Equal(t, nlaAlign(4), 4)
	assert.Equal(t, nlaAlign(5), 8)
}
