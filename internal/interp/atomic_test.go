package interp

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/migwasm/migwasm/api"
	"github.com/migwasm/migwasm/internal/wasm"
)

func TestExecutorAtomicLoadStoreRoundTrip(t *testing.T) {
	body := []byte{
		OpI32Const, 0,
		OpI32Const, 42,
		OpAtomicPrefix, AtomicI32Store, 2, 0,
		OpI32Const, 0,
		OpAtomicPrefix, AtomicI32Load, 2, 0,
		OpEnd,
	}
	fn := newFn(nil, []api.ValueType{api.ValueTypeI32}, 0, 4, 1, body)
	mi := newTestModule(fn)
	mi.Memories = []*wasm.Memory{wasm.NewMemory(1, nil, true, &sync.Mutex{})}

	e := NewExecutor(mi, 64)
	res, _, err := e.Invoke(0, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, res)
}

// TestExecutorAtomicNarrowRmwZeroExtends exercises an 8-bit RMW add: the
// "old" result must be zero-extended to i32, not sign-extended.
func TestExecutorAtomicNarrowRmwZeroExtends(t *testing.T) {
	body := []byte{OpI32Const, 0}
	body = append(body, OpI32Const)
	body = append(body, sleb32(0xff)...) // seed byte 0xff at address 0
	body = append(body, OpAtomicPrefix, AtomicI32Store8, 0, 0)
	body = append(body,
		OpI32Const, 0,
		OpI32Const, 1,
		OpAtomicPrefix, AtomicI32Rmw8AddU, 0, 0, // returns old value (0xff, zero-extended)
		OpEnd,
	)
	fn := newFn(nil, []api.ValueType{api.ValueTypeI32}, 0, 4, 1, body)
	mi := newTestModule(fn)
	mi.Memories = []*wasm.Memory{wasm.NewMemory(1, nil, true, &sync.Mutex{})}

	e := NewExecutor(mi, 64)
	res, _, err := e.Invoke(0, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{0xff}, res)

	// The byte itself must have wrapped to 0x00 (0xff+1 truncated to 8 bits).
	readBody := []byte{
		OpI32Const, 0,
		OpAtomicPrefix, AtomicI32Load8U, 0, 0,
		OpEnd,
	}
	fn2 := newFn(nil, []api.ValueType{api.ValueTypeI32}, 0, 2, 1, readBody)
	mi2 := newTestModule(fn2)
	mi2.Memories = mi.Memories
	e2 := NewExecutor(mi2, 64)
	res2, _, err := e2.Invoke(0, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{0}, res2)
}

func TestExecutorAtomicCmpxchgSucceedsAndFails(t *testing.T) {
	body := []byte{
		OpI32Const, 0,
		OpI32Const, 7,
		OpAtomicPrefix, AtomicI32Store, 2, 0,
		// cmpxchg(addr=0, expected=7, replacement=9) -> old=7, memory becomes 9
		OpI32Const, 0,
		OpI32Const, 7,
		OpI32Const, 9,
		OpAtomicPrefix, AtomicI32RmwCmpxchg, 2, 0,
		OpEnd,
	}
	fn := newFn(nil, []api.ValueType{api.ValueTypeI32}, 0, 6, 1, body)
	mi := newTestModule(fn)
	mi.Memories = []*wasm.Memory{wasm.NewMemory(1, nil, true, &sync.Mutex{})}

	e := NewExecutor(mi, 64)
	res, _, err := e.Invoke(0, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{7}, res)

	// A second cmpxchg with a stale expected value must fail (old==9, not 7)
	// and leave the memory unchanged.
	body2 := []byte{OpI32Const, 0, OpI32Const, 7} // addr=0, stale expected=7
	body2 = append(body2, OpI32Const)
	body2 = append(body2, sleb32(123)...) // replacement, never actually written
	body2 = append(body2, OpAtomicPrefix, AtomicI32RmwCmpxchg, 2, 0, OpEnd)
	fn2 := newFn(nil, []api.ValueType{api.ValueTypeI32}, 0, 6, 1, body2)
	mi2 := newTestModule(fn2)
	mi2.Memories = mi.Memories
	e2 := NewExecutor(mi2, 64)
	res2, _, err := e2.Invoke(0, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{9}, res2) // old value observed is 9, not the stale 7
}

func TestExecutorAtomicUnalignedTraps(t *testing.T) {
	body := []byte{
		OpI32Const, 1, // address 1 is not 4-byte aligned
		OpAtomicPrefix, AtomicI32Load, 2, 0,
		OpEnd,
	}
	fn := newFn(nil, []api.ValueType{api.ValueTypeI32}, 0, 2, 1, body)
	mi := newTestModule(fn)
	mi.Memories = []*wasm.Memory{wasm.NewMemory(1, nil, true, &sync.Mutex{})}

	e := NewExecutor(mi, 64)
	_, _, err := e.Invoke(0, nil)
	require.ErrorIs(t, err, TrapUnalignedAtomic)
}

func TestExecutorAtomicNotifyIsAddressedNoOp(t *testing.T) {
	body := []byte{
		OpI32Const, 0,
		OpI32Const, 1,
		OpAtomicPrefix, AtomicNotify, 2, 0,
		OpEnd,
	}
	fn := newFn(nil, []api.ValueType{api.ValueTypeI32}, 0, 4, 1, body)
	mi := newTestModule(fn)
	mi.Memories = []*wasm.Memory{wasm.NewMemory(1, nil, true, &sync.Mutex{})}

	e := NewExecutor(mi, 64)
	res, _, err := e.Invoke(0, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{0}, res) // 0 woken, no real waiters are ever parked
}

func TestExecutorAtomicWaitNeverBlocks(t *testing.T) {
	body := []byte{OpI32Const, 0, OpI32Const}
	body = append(body, sleb32(99)...) // expected value does not match the zero-initialized memory
	body = append(body, OpI64Const, 0) // timeout
	body = append(body, OpAtomicPrefix, AtomicWait32, 2, 0, OpEnd)
	fn := newFn(nil, []api.ValueType{api.ValueTypeI32}, 0, 5, 1, body)
	mi := newTestModule(fn)
	mi.Memories = []*wasm.Memory{wasm.NewMemory(1, nil, true, &sync.Mutex{})}

	e := NewExecutor(mi, 64)
	res, suspended, err := e.Invoke(0, nil)
	require.NoError(t, err)
	require.False(t, suspended)
	require.Equal(t, []uint64{1}, res) // "not-equal", returned immediately
}

// TestExecutorConcurrentAtomicRmwOnSharedMemory runs many executors sharing
// one Memory, each incrementing the same cell via atomic.rmw.add, and
// checks the final value accounts for every increment -- the scenario
// Memory.AtomicRMW's single-lock-per-operation design exists to make safe.
func TestExecutorConcurrentAtomicRmwOnSharedMemory(t *testing.T) {
	const goroutines = 32
	const incrementsEach = 50

	mem := wasm.NewMemory(1, nil, true, &sync.Mutex{})
	incBody := []byte{
		OpI32Const, 0,
		OpI32Const, 1,
		OpAtomicPrefix, AtomicI32RmwAdd, 2, 0,
		OpEnd,
	}
	incFn := newFn(nil, []api.ValueType{api.ValueTypeI32}, 0, 4, 1, incBody)

	var g errgroup.Group
	for i := 0; i < goroutines; i++ {
		g.Go(func() error {
			mi := newTestModule(incFn)
			mi.Memories = []*wasm.Memory{mem}
			e := NewExecutor(mi, 64)
			for j := 0; j < incrementsEach; j++ {
				if _, _, err := e.Invoke(0, nil); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	readBody := []byte{
		OpI32Const, 0,
		OpAtomicPrefix, AtomicI32Load, 2, 0,
		OpEnd,
	}
	readFn := newFn(nil, []api.ValueType{api.ValueTypeI32}, 0, 2, 1, readBody)
	mi := newTestModule(readFn)
	mi.Memories = []*wasm.Memory{mem}
	e := NewExecutor(mi, 64)
	res, _, err := e.Invoke(0, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{goroutines * incrementsEach}, res)
}
