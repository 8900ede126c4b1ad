package wasm

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryBytesBoundsCheck(t *testing.T) {
	m := NewMemory(1, nil, false, nil)

	b, ok := m.Bytes(0, 4)
	require.True(t, ok)
	require.Len(t, b, 4)

	_, ok = m.Bytes(MemoryPageSize-3, 4)
	require.False(t, ok, "a span crossing the end of the buffer must fail")

	_, ok = m.Bytes(-1, 4)
	require.False(t, ok)
}

func TestMemoryBytesReflectsGrow(t *testing.T) {
	m := NewMemory(1, nil, false, nil)
	_, ok := m.Bytes(MemoryPageSize, 1)
	require.False(t, ok)

	_, grew := m.Grow(1)
	require.True(t, grew)

	b, ok := m.Bytes(MemoryPageSize, 1)
	require.True(t, ok)
	require.Len(t, b, 1)
}

func TestMemoryCopyWithinOverlapping(t *testing.T) {
	m := NewMemory(1, nil, false, nil)
	copy(m.Buffer, []byte{1, 2, 3, 4, 5})

	require.True(t, m.CopyWithin(2, 0, 3))
	require.Equal(t, []byte{1, 2, 1, 2, 3}, m.Buffer[:5])

	require.False(t, m.CopyWithin(MemoryPageSize+1, 0, 1))
}

func TestMemoryAtomicRMWFetchAndAdd(t *testing.T) {
	m := NewMemory(1, nil, true, &sync.Mutex{})

	ok := m.AtomicStore(0, 4, 10)
	require.True(t, ok)

	old, ok := m.AtomicRMW(0, 4, func(cur uint64) uint64 { return cur + 5 })
	require.True(t, ok)
	require.Equal(t, uint64(10), old)

	v, ok := m.AtomicLoad(0, 4)
	require.True(t, ok)
	require.Equal(t, uint64(15), v)
}

func TestMemoryAtomicCmpxchgOnlyWritesOnMatch(t *testing.T) {
	m := NewMemory(1, nil, true, &sync.Mutex{})
	require.True(t, m.AtomicStore(0, 1, 0x7f))

	old, ok := m.AtomicCmpxchg(0, 1, 0x01, 0x09) // expected mismatch
	require.True(t, ok)
	require.Equal(t, uint64(0x7f), old)
	v, _ := m.AtomicLoad(0, 1)
	require.Equal(t, uint64(0x7f), v, "mismatched cmpxchg must not write")

	old, ok = m.AtomicCmpxchg(0, 1, 0x7f, 0x09) // expected matches
	require.True(t, ok)
	require.Equal(t, uint64(0x7f), old)
	v, _ = m.AtomicLoad(0, 1)
	require.Equal(t, uint64(0x09), v)
}

func TestMemoryAtomicOutOfBoundsFails(t *testing.T) {
	m := NewMemory(1, nil, true, &sync.Mutex{})
	_, ok := m.AtomicLoad(MemoryPageSize-2, 4)
	require.False(t, ok)
	require.False(t, m.AtomicStore(MemoryPageSize-2, 4, 1))
}

func TestMemoryConcurrentAtomicRMWIsMutuallyExclusive(t *testing.T) {
	m := NewMemory(1, nil, true, &sync.Mutex{})
	const n = 200

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.AtomicRMW(0, 4, func(cur uint64) uint64 { return cur + 1 })
		}()
	}
	wg.Wait()

	v, ok := m.AtomicLoad(0, 4)
	require.True(t, ok)
	require.Equal(t, uint64(n), v)
}
