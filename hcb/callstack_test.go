package hcb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallStackRootLifecycle(t *testing.T) {
	cs := NewCallStack()
	assert.False(t, cs.Seated())
	require.NoError(t, cs.SeatRoot(0, 2))
	assert.True(t, cs.Seated())
	assert.Equal(t, 0, cs.Depth())

	cs.Push(IntValue(1))
	cs.Push(IntValue(2))
	assert.Equal(t, int32(2), cs.OperandCount())

	v, err := cs.Pop()
	require.NoError(t, err)
	assert.Equal(t, int32(2), v.Int())

	_, err = cs.Pop()
	require.NoError(t, err)

	_, terminal, err := cs.Return()
	require.NoError(t, err)
	assert.True(t, terminal)
	assert.False(t, cs.Seated())
}

func TestCallStackPopUnderflow(t *testing.T) {
	cs := NewCallStack()
	require.NoError(t, cs.SeatRoot(0, 0))
	_, err := cs.Pop()
	var sb *StackBreakException
	assert.ErrorAs(t, err, &sb)
}

func TestCallStackLocalsReadWrite(t *testing.T) {
	cs := NewCallStack()
	require.NoError(t, cs.SeatRoot(0, 2))

	require.NoError(t, cs.SetLocal(0, IntValue(10)))
	require.NoError(t, cs.SetLocal(1, IntValue(20)))

	v0, err := cs.GetLocal(0)
	require.NoError(t, err)
	assert.Equal(t, int32(10), v0.Int())

	// Negative indices aren't writable even when they would be in-range for
	// a callee with arguments (the root frame has none here, but the bound
	// check itself must reject i<0 regardless).
	err = cs.SetLocal(-1, IntValue(1))
	assert.Error(t, err)

	_, err = cs.GetLocal(5)
	assert.Error(t, err)
}

func TestCallStackArgumentAddressing(t *testing.T) {
	cs := NewCallStack()
	require.NoError(t, cs.SeatRoot(0, 0))

	// Caller pushes two argument values before the call.
	cs.Push(IntValue(100))
	cs.Push(IntValue(200))

	retAddr := uint32(0xdeadbeef)
	cs.PushCall(retAddr, 2, 1)
	assert.Equal(t, 1, cs.Depth())
	assert.Equal(t, int32(0), cs.OperandCount())

	// local index -1 is the last-pushed argument (index arg_count-1 = 1,
	// i.e. the value 200 that sat on top of the operand stack at call time).
	argTop, err := cs.GetLocal(-1)
	require.NoError(t, err)
	assert.Equal(t, int32(200), argTop.Int())

	argBottom, err := cs.GetLocal(-2)
	require.NoError(t, err)
	assert.Equal(t, int32(100), argBottom.Int())

	require.NoError(t, cs.SetLocal(0, IntValue(999)))
	local0, err := cs.GetLocal(0)
	require.NoError(t, err)
	assert.Equal(t, int32(999), local0.Int())

	addr, terminal, err := cs.Return()
	require.NoError(t, err)
	assert.False(t, terminal)
	assert.Equal(t, retAddr, addr)
	assert.Equal(t, 0, cs.Depth())
	assert.Equal(t, int32(0), cs.OperandCount())
}

func TestCallStackReturnFailsWithOperandsLeft(t *testing.T) {
	cs := NewCallStack()
	require.NoError(t, cs.SeatRoot(0, 0))
	cs.Push(IntValue(1))
	_, _, err := cs.Return()
	assert.Error(t, err)
}
