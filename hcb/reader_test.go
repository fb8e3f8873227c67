package hcb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderPrimitives(t *testing.T) {
	data := []byte{
		0x2a,             // u8 = 42
		0xff,             // i8 = -1
		0x34, 0x12,       // u16 = 0x1234
		0x78, 0x56, 0x34, 0x12, // u32 = 0x12345678
	}
	r := NewByteReader(data, EncodingUTF8)

	u8, err := r.ReadU8()
	require.NoError(t, err)
	assert.Equal(t, uint8(42), u8)

	i8, err := r.ReadI8()
	require.NoError(t, err)
	assert.Equal(t, int8(-1), i8)

	u16, err := r.ReadU16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), u16)

	u32, err := r.ReadU32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678), u32)
}

func TestReaderEndOfStream(t *testing.T) {
	r := NewByteReader([]byte{0x01}, EncodingUTF8)
	_, err := r.ReadU32()
	assert.ErrorIs(t, err, ErrEndOfStream)
}

func TestReaderSeekAndPosition(t *testing.T) {
	r := NewByteReader([]byte{1, 2, 3, 4, 5}, EncodingUTF8)
	assert.Equal(t, uint32(0), r.Position())
	r.SeekTo(3)
	assert.Equal(t, uint32(3), r.Position())
	v, err := r.ReadU8()
	require.NoError(t, err)
	assert.Equal(t, uint8(4), v)
	assert.Equal(t, uint32(4), r.Position())
}

func TestReadStringEmptyAndPayload(t *testing.T) {
	// length=1 means empty string (just the terminator byte).
	r := NewByteReader([]byte{0x01, 0x00}, EncodingUTF8)
	s, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "", s)

	// length=5: 4 payload bytes "test" + 1 terminator.
	data := append([]byte{0x05}, []byte("test")...)
	data = append(data, 0x00)
	r2 := NewByteReader(data, EncodingUTF8)
	s2, err := r2.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "test", s2)
}

func TestReadStringZeroLengthInvalid(t *testing.T) {
	r := NewByteReader([]byte{0x00}, EncodingUTF8)
	_, err := r.ReadString()
	assert.ErrorIs(t, err, ErrInvalidData)
}
