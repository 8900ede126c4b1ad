package wasm

import (
	"encoding/binary"
	"sync/atomic"
)

// MemoryPageSize is the number of bytes per WebAssembly linear-memory page
// (spec.md §3: "num_bytes_per_page = 65536"). Not to be confused with the
// 4096-byte dirty-tracking page used by the checkpoint engine (GLOSSARY:
// "Page").
const MemoryPageSize = 65536

// MemoryMaxPages is the hard ceiling on cur_page_count imposed by the
// 32-bit address space (2^32 / 65536).
const MemoryMaxPages = 1 << 16

// Memory is one linear-memory instance (spec.md §3).
//
// Invariant: len(Buffer) == MemoryPageSize * pageCount at every opcode
// boundary. pageCount is cached separately from len(Buffer)/MemoryPageSize
// so that concurrent readers (spec.md §5) can poll it without taking the
// grow lock; it is only ever updated after Buffer has been re-pointed.
type Memory struct {
	Buffer   []byte
	Max      *uint32 // nil means MemoryMaxPages
	pageCount uint32

	// cachedSize mirrors len(Buffer) and is updated with Store after
	// Buffer is re-pointed by Grow, per spec.md §5 ("memory_data_size ...
	// updated after memory_data is re-pointed").
	cachedSize atomic.Uint64

	// Shared indicates the shared-memory feature (spec.md §4.4 Atomics)
	// applies: atomic opcodes on this memory take Mutex.
	Shared bool
	Mutex  muxer
}

// muxer is satisfied by sync.Mutex; named to keep this file import-light
// and the zero value directly usable.
type muxer interface {
	Lock()
	Unlock()
}

// NewMemory allocates a Memory with minPages already committed.
func NewMemory(minPages uint32, max *uint32, shared bool, mux muxer) *Memory {
	m := &Memory{
		Buffer: make([]byte, uint64(minPages)*MemoryPageSize),
		Max:    max,
		pageCount: minPages,
		Shared: shared,
		Mutex:  mux,
	}
	m.cachedSize.Store(uint64(len(m.Buffer)))
	return m
}

// PageCount returns cur_page_count.
func (m *Memory) PageCount() uint32 { return m.pageCount }

// Size returns memory_data_size, the cached byte length pollable without a
// lock (spec.md §5).
func (m *Memory) Size() uint64 { return m.cachedSize.Load() }

func (m *Memory) maxPages() uint32 {
	if m.Max != nil {
		return *m.Max
	}
	return MemoryMaxPages
}

// Grow implements memory.grow (spec.md §4.4): enlarges memory by delta
// pages, returning the previous page count, or false if the request
// exceeds Max. On success, memory_data[0:old size] is preserved and the
// cached size is refreshed after Buffer is re-pointed (spec.md testable
// property §8.5).
func (m *Memory) Grow(delta uint32) (previous uint32, ok bool) {
	if m.Mutex != nil {
		m.Mutex.Lock()
		defer m.Mutex.Unlock()
	}
	previous = m.pageCount
	next := uint64(previous) + uint64(delta)
	if next > uint64(m.maxPages()) {
		return previous, false
	}
	grown := make([]byte, next*MemoryPageSize)
	copy(grown, m.Buffer)
	m.Buffer = grown
	m.pageCount = uint32(next)
	m.cachedSize.Store(uint64(len(m.Buffer)))
	return previous, true
}

// lock acquires Mutex when this memory is shared and returns the matching
// unlock func; for a non-shared memory it is a no-op, so every accessor
// below can use the same acquire/defer shape regardless of Shared.
func (m *Memory) lock() func() {
	if m.Mutex == nil {
		return func() {}
	}
	m.Mutex.Lock()
	return m.Mutex.Unlock
}

// Bytes returns a bounds-checked subslice of Buffer spanning [ea, ea+size),
// or ok=false if it doesn't fit. The bounds check is taken under the same
// lock Grow uses before re-pointing Buffer, so a concurrent Grow on a
// shared memory can never be interleaved between the check and the slice
// expression (spec.md §5's "readers ... must not observe a torn Buffer
// header").
func (m *Memory) Bytes(ea, size int) (b []byte, ok bool) {
	unlock := m.lock()
	defer unlock()
	if ea < 0 || size < 0 || uint64(ea)+uint64(size) > m.Size() {
		return nil, false
	}
	return m.Buffer[ea : ea+size], true
}

// CopyWithin performs memory.copy's overlap-safe move under a single lock
// acquisition, so dst and src are always validated against the same
// generation of Buffer -- two independent Bytes() calls could otherwise
// straddle a Grow and copy out of an abandoned backing array.
func (m *Memory) CopyWithin(dst, src, n int) bool {
	unlock := m.lock()
	defer unlock()
	if dst < 0 || src < 0 || n < 0 {
		return false
	}
	size := m.Size()
	if uint64(dst)+uint64(n) > size || uint64(src)+uint64(n) > size {
		return false
	}
	copy(m.Buffer[dst:dst+n], m.Buffer[src:src+n]) // copy() is overlap-safe like memmove
	return true
}

// AtomicLoad reads size little-endian bytes at ea as a single locked
// operation, giving the shared-memory proposal's atomic loads true mutual
// exclusion against concurrent atomic stores/RMWs on the same memory, not
// just protection against Grow.
func (m *Memory) AtomicLoad(ea, size int) (v uint64, ok bool) {
	unlock := m.lock()
	defer unlock()
	if ea < 0 || uint64(ea)+uint64(size) > m.Size() {
		return 0, false
	}
	return readLE(m.Buffer[ea : ea+size]), true
}

// AtomicStore writes v's low size bytes, little-endian, at ea.
func (m *Memory) AtomicStore(ea, size int, v uint64) bool {
	unlock := m.lock()
	defer unlock()
	if ea < 0 || uint64(ea)+uint64(size) > m.Size() {
		return false
	}
	writeLE(m.Buffer[ea:ea+size], v)
	return true
}

// AtomicRMW performs a fetch-apply-store under one lock acquisition: apply
// receives the current zero-extended value and returns the value to store
// back (only its low size bytes are written).
func (m *Memory) AtomicRMW(ea, size int, apply func(old uint64) uint64) (old uint64, ok bool) {
	unlock := m.lock()
	defer unlock()
	if ea < 0 || uint64(ea)+uint64(size) > m.Size() {
		return 0, false
	}
	buf := m.Buffer[ea : ea+size]
	old = readLE(buf)
	writeLE(buf, apply(old))
	return old, true
}

// AtomicCmpxchg compares the current value against expected and, if equal,
// stores replacement, all under one lock acquisition. It always returns the
// value observed before the (possible) write.
func (m *Memory) AtomicCmpxchg(ea, size int, expected, replacement uint64) (old uint64, ok bool) {
	unlock := m.lock()
	defer unlock()
	if ea < 0 || uint64(ea)+uint64(size) > m.Size() {
		return 0, false
	}
	buf := m.Buffer[ea : ea+size]
	old = readLE(buf)
	if old == expected {
		writeLE(buf, replacement)
	}
	return old, true
}

// readLE/writeLE convert between a little-endian byte slice and its
// zero-extended uint64 value for the four atomic access widths (1/2/4/8
// bytes); narrow widths are always zero-extended on read and truncated by
// construction on write since only len(b) bytes are touched.
func readLE(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	case 8:
		return binary.LittleEndian.Uint64(b)
	default:
		panic("wasm: unsupported atomic access width")
	}
}

func writeLE(b []byte, v uint64) {
	switch len(b) {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(b, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(b, v)
	default:
		panic("wasm: unsupported atomic access width")
	}
}

// Global is one global variable instance (spec.md §3). Its effective
// storage address, for migration purposes, is ModuleInstance.GlobalData
// sliced at DataOffset, or (if imported) the upstream instance's slice --
// see ModuleInstance.GlobalAddr.
type Global struct {
	Type       GlobalType
	DataOffset int

	// Import, if non-nil, means this global's storage is owned by another
	// ModuleInstance (spec.md §3: "import_link").
	Import *ImportedGlobal
}

type ImportedGlobal struct {
	Instance *ModuleInstance
	Index    uint32
}
