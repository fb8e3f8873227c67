package hcb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetadataRoundTrip(t *testing.T) {
	b := newAsm()
	entry := b.pc()
	b.initStack(0, 0)
	b.pushI32(1)
	b.retv()

	img := image{
		code:        b.buf,
		entryPoint:  entry,
		globalCount: 3,
		syscalls: []SyscallDecl{
			{Name: "print", ArgCount: 1},
			{Name: "noop", ArgCount: 0},
		},
	}

	m, err := ParseMetadata(img.reader())
	require.NoError(t, err)
	assert.Equal(t, entry, m.EntryPoint)
	assert.Equal(t, uint16(3), m.GlobalCount)
	assert.Equal(t, "fixture", m.GameTitle)
	require.Len(t, m.Syscalls, 2)

	decl, ok := m.SyscallByOrdinal(0)
	require.True(t, ok)
	assert.Equal(t, "print", decl.Name)
	assert.Equal(t, uint8(1), decl.ArgCount)

	_, ok = m.SyscallByOrdinal(99)
	assert.False(t, ok)

	assert.Equal(t, uint32(4+len(img.code)), m.CodeRegionEnd())
}
