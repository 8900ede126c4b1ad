package interp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/migwasm/migwasm/internal/wasm"
)

func testFunction() *wasm.Function {
	return &wasm.Function{
		Type:            wasm.NewFunctionType(nil, nil),
		Code:            &wasm.Code{Body: []byte{OpEnd}},
		ParamCellNum:    0,
		LocalCellNum:    2,
		MaxStackCellNum: 8,
		MaxBlockNum:     4,
	}
}

func TestFramePushPopI32(t *testing.T) {
	a := NewFrameAllocator(16)
	f, err := a.Alloc(testFunction(), nil)
	require.NoError(t, err)

	f.PushI32(42)
	f.PushI32(7)
	require.Equal(t, uint32(7), f.PopI32())
	require.Equal(t, uint32(42), f.PopI32())
	require.Equal(t, 0, f.SP)
	require.Equal(t, 0, f.TSP)
}

func TestFramePushPopI64(t *testing.T) {
	a := NewFrameAllocator(16)
	f, err := a.Alloc(testFunction(), nil)
	require.NoError(t, err)

	f.PushI64(0x1122334455667788)
	require.Equal(t, 2, f.SP)
	require.Equal(t, byte(1), f.PeekTag())
	require.Equal(t, uint64(0x1122334455667788), f.PopI64())
	require.Equal(t, 0, f.SP)
}

func TestFrameCheckInvariant(t *testing.T) {
	a := NewFrameAllocator(16)
	f, err := a.Alloc(testFunction(), nil)
	require.NoError(t, err)

	f.PushI32(1)
	f.PushI64(2)
	require.NoError(t, f.CheckInvariant())

	f.SP = 1 // desync sp/tsp by hand
	require.Error(t, f.CheckInvariant())
}

func TestFrameAllocatorCeiling(t *testing.T) {
	a := NewFrameAllocator(2)
	fn := testFunction()
	f1, err := a.Alloc(fn, nil)
	require.NoError(t, err)
	f2, err := a.Alloc(fn, f1)
	require.NoError(t, err)
	_, err = a.Alloc(fn, f2)
	require.ErrorIs(t, err, TrapOperandStackOverflow)
	require.Equal(t, 2, a.Depth())
}

func TestFrameAllocatorFreeNonTopPanics(t *testing.T) {
	a := NewFrameAllocator(16)
	fn := testFunction()
	f1, _ := a.Alloc(fn, nil)
	_, _ = a.Alloc(fn, f1)

	require.Panics(t, func() { a.Free(f1) })
}

func TestFrameAllocatorFreeRestoresDepth(t *testing.T) {
	a := NewFrameAllocator(16)
	fn := testFunction()
	f1, _ := a.Alloc(fn, nil)
	f2, _ := a.Alloc(fn, f1)

	a.Free(f2)
	require.Equal(t, 1, a.Depth())
	a.Free(f1)
	require.Equal(t, 0, a.Depth())
}
