package interp

import (
	"math"

	"github.com/migwasm/migwasm/internal/leb128"
)

// atomicKind classifies an atomic opcode by the shape of its operand/result
// traffic, so execAtomic can dispatch through one table instead of ~70
// near-identical case branches.
type atomicKind int

const (
	atomicLoad atomicKind = iota
	atomicStore
	atomicRMW
	atomicCmpxchg
)

// atomicOp describes one atomic opcode's access width, logical value type,
// and (for RMW) the operation applied to the old value. apply works in
// uint64 throughout: zero-extension on read and truncation on write both
// fall out of only ever touching size bytes of the backing buffer, so apply
// never needs to mask its inputs or output (the threads-proposal semantics
// for narrow RMW/cmpxchg).
type atomicOp struct {
	kind    atomicKind
	size    int // access width in bytes: 1, 2, 4, or 8
	widen64 bool
	apply   func(old, operand uint64) uint64
}

func rmwFamily(size int, widen64 bool, apply func(old, operand uint64) uint64) atomicOp {
	return atomicOp{kind: atomicRMW, size: size, widen64: widen64, apply: apply}
}

var (
	applyAdd  = func(old, v uint64) uint64 { return old + v }
	applySub  = func(old, v uint64) uint64 { return old - v }
	applyAnd  = func(old, v uint64) uint64 { return old & v }
	applyOr   = func(old, v uint64) uint64 { return old | v }
	applyXor  = func(old, v uint64) uint64 { return old ^ v }
	applyXchg = func(_, v uint64) uint64 { return v }
)

// atomicOpTable maps every 0xFE sub-opcode handled outside of
// Fence/Notify/Wait (those three are control-flow-like enough to special
// case directly in execAtomic) to its access shape.
var atomicOpTable = map[byte]atomicOp{
	AtomicI32Load:    {kind: atomicLoad, size: 4, widen64: false},
	AtomicI64Load:    {kind: atomicLoad, size: 8, widen64: true},
	AtomicI32Load8U:  {kind: atomicLoad, size: 1, widen64: false},
	AtomicI32Load16U: {kind: atomicLoad, size: 2, widen64: false},
	AtomicI64Load8U:  {kind: atomicLoad, size: 1, widen64: true},
	AtomicI64Load16U: {kind: atomicLoad, size: 2, widen64: true},
	AtomicI64Load32U: {kind: atomicLoad, size: 4, widen64: true},

	AtomicI32Store:   {kind: atomicStore, size: 4, widen64: false},
	AtomicI64Store:   {kind: atomicStore, size: 8, widen64: true},
	AtomicI32Store8:  {kind: atomicStore, size: 1, widen64: false},
	AtomicI32Store16: {kind: atomicStore, size: 2, widen64: false},
	AtomicI64Store8:  {kind: atomicStore, size: 1, widen64: true},
	AtomicI64Store16: {kind: atomicStore, size: 2, widen64: true},
	AtomicI64Store32: {kind: atomicStore, size: 4, widen64: true},

	AtomicI32RmwAdd:    rmwFamily(4, false, applyAdd),
	AtomicI64RmwAdd:    rmwFamily(8, true, applyAdd),
	AtomicI32Rmw8AddU:  rmwFamily(1, false, applyAdd),
	AtomicI32Rmw16AddU: rmwFamily(2, false, applyAdd),
	AtomicI64Rmw8AddU:  rmwFamily(1, true, applyAdd),
	AtomicI64Rmw16AddU: rmwFamily(2, true, applyAdd),
	AtomicI64Rmw32AddU: rmwFamily(4, true, applyAdd),

	AtomicI32RmwSub:    rmwFamily(4, false, applySub),
	AtomicI64RmwSub:    rmwFamily(8, true, applySub),
	AtomicI32Rmw8SubU:  rmwFamily(1, false, applySub),
	AtomicI32Rmw16SubU: rmwFamily(2, false, applySub),
	AtomicI64Rmw8SubU:  rmwFamily(1, true, applySub),
	AtomicI64Rmw16SubU: rmwFamily(2, true, applySub),
	AtomicI64Rmw32SubU: rmwFamily(4, true, applySub),

	AtomicI32RmwAnd:    rmwFamily(4, false, applyAnd),
	AtomicI64RmwAnd:    rmwFamily(8, true, applyAnd),
	AtomicI32Rmw8AndU:  rmwFamily(1, false, applyAnd),
	AtomicI32Rmw16AndU: rmwFamily(2, false, applyAnd),
	AtomicI64Rmw8AndU:  rmwFamily(1, true, applyAnd),
	AtomicI64Rmw16AndU: rmwFamily(2, true, applyAnd),
	AtomicI64Rmw32AndU: rmwFamily(4, true, applyAnd),

	AtomicI32RmwOr:    rmwFamily(4, false, applyOr),
	AtomicI64RmwOr:    rmwFamily(8, true, applyOr),
	AtomicI32Rmw8OrU:  rmwFamily(1, false, applyOr),
	AtomicI32Rmw16OrU: rmwFamily(2, false, applyOr),
	AtomicI64Rmw8OrU:  rmwFamily(1, true, applyOr),
	AtomicI64Rmw16OrU: rmwFamily(2, true, applyOr),
	AtomicI64Rmw32OrU: rmwFamily(4, true, applyOr),

	AtomicI32RmwXor:    rmwFamily(4, false, applyXor),
	AtomicI64RmwXor:    rmwFamily(8, true, applyXor),
	AtomicI32Rmw8XorU:  rmwFamily(1, false, applyXor),
	AtomicI32Rmw16XorU: rmwFamily(2, false, applyXor),
	AtomicI64Rmw8XorU:  rmwFamily(1, true, applyXor),
	AtomicI64Rmw16XorU: rmwFamily(2, true, applyXor),
	AtomicI64Rmw32XorU: rmwFamily(4, true, applyXor),

	AtomicI32RmwXchg:    rmwFamily(4, false, applyXchg),
	AtomicI64RmwXchg:    rmwFamily(8, true, applyXchg),
	AtomicI32Rmw8XchgU:  rmwFamily(1, false, applyXchg),
	AtomicI32Rmw16XchgU: rmwFamily(2, false, applyXchg),
	AtomicI64Rmw8XchgU:  rmwFamily(1, true, applyXchg),
	AtomicI64Rmw16XchgU: rmwFamily(2, true, applyXchg),
	AtomicI64Rmw32XchgU: rmwFamily(4, true, applyXchg),

	AtomicI32RmwCmpxchg:    {kind: atomicCmpxchg, size: 4, widen64: false},
	AtomicI64RmwCmpxchg:    {kind: atomicCmpxchg, size: 8, widen64: true},
	AtomicI32Rmw8CmpxchgU:  {kind: atomicCmpxchg, size: 1, widen64: false},
	AtomicI32Rmw16CmpxchgU: {kind: atomicCmpxchg, size: 2, widen64: false},
	AtomicI64Rmw8CmpxchgU:  {kind: atomicCmpxchg, size: 1, widen64: true},
	AtomicI64Rmw16CmpxchgU: {kind: atomicCmpxchg, size: 2, widen64: true},
	AtomicI64Rmw32CmpxchgU: {kind: atomicCmpxchg, size: 4, widen64: true},
}

// execAtomic implements the shared-memory proposal's 0xFE-prefixed opcodes
// (spec.md §4.4 Atomics): fence, notify, wait, every load/store width, and
// the seven read-modify-write families. Each memory access is a single
// locked wasm.Memory call (Memory.AtomicLoad/Store/RMW/Cmpxchg), so
// concurrent atomics on a shared memory are mutually exclusive rather than
// merely racing on Buffer's slice header.
func (e *Executor) execAtomic(f *Frame, code []byte) {
	sub, n, err := leb128.DecodeUint32(code, f.IP)
	if err != nil {
		panic(FatalError("interp: malformed atomic opcode"))
	}
	f.IP += n
	subOp := byte(sub)

	if subOp == AtomicFence {
		f.IP++ // reserved byte
		return
	}
	if subOp == AtomicNotify {
		f.PopI32() // count
		atomicAddr(code, f, 4)
		f.PushI32(0)
		return
	}
	if subOp == AtomicWait32 || subOp == AtomicWait64 {
		e.execAtomicWait(f, code, subOp)
		return
	}

	op, ok := atomicOpTable[subOp]
	if !ok {
		panic(TrapUnsupportedOpcode)
	}
	mem := e.mem0()

	switch op.kind {
	case atomicLoad:
		ea := atomicAddr(code, f, op.size)
		v, ok := mem.AtomicLoad(ea, op.size)
		if !ok {
			panic(TrapOutOfBoundsMemoryAccess)
		}
		pushAtomic(f, op.widen64, v)
	case atomicStore:
		v := popAtomic(f, op.widen64)
		ea := atomicAddr(code, f, op.size)
		if !mem.AtomicStore(ea, op.size, v) {
			panic(TrapOutOfBoundsMemoryAccess)
		}
	case atomicRMW:
		operand := popAtomic(f, op.widen64)
		ea := atomicAddr(code, f, op.size)
		old, ok := mem.AtomicRMW(ea, op.size, func(cur uint64) uint64 { return op.apply(cur, operand) })
		if !ok {
			panic(TrapOutOfBoundsMemoryAccess)
		}
		pushAtomic(f, op.widen64, old)
	case atomicCmpxchg:
		replacement := popAtomic(f, op.widen64)
		expected := popAtomic(f, op.widen64)
		ea := atomicAddr(code, f, op.size)
		old, ok := mem.AtomicCmpxchg(ea, op.size, expected, replacement)
		if !ok {
			panic(TrapOutOfBoundsMemoryAccess)
		}
		pushAtomic(f, op.widen64, old)
	}
}

func pushAtomic(f *Frame, widen64 bool, v uint64) {
	if widen64 {
		f.PushI64(v)
	} else {
		f.PushI32(uint32(v))
	}
}

func popAtomic(f *Frame, widen64 bool) uint64 {
	if widen64 {
		return f.PopI64()
	}
	return uint64(f.PopI32())
}

// execAtomicWait implements memory.atomic.wait32/64. This executor has no
// real cross-goroutine parking primitive to block on (spec.md's Non-goals
// exclude a full thread scheduler), so waits never actually suspend: a
// mismatched expected value returns 1 ("not-equal") immediately and a
// matching one returns 2 ("timed-out") immediately rather than 0 ("ok",
// which would promise a wake-up this interpreter cannot deliver). Atomic
// notify on the same memory remains a correctly-addressed no-op (see the
// AtomicNotify case above), so wait/notify pairs never deadlock -- they
// simply don't block.
func (e *Executor) execAtomicWait(f *Frame, code []byte, sub byte) {
	size := 4
	if sub == AtomicWait64 {
		size = 8
	}
	var expected uint64
	_ = f.PopI64() // timeout, unused: waits never actually block
	if sub == AtomicWait64 {
		expected = f.PopI64()
	} else {
		expected = uint64(f.PopI32())
	}
	ea := atomicAddr(code, f, size)

	mem := e.mem0()
	cur, ok := mem.AtomicLoad(ea, size)
	if !ok {
		panic(TrapOutOfBoundsMemoryAccess)
	}
	if cur != expected {
		f.PushI32(1) // "not-equal"
		return
	}
	f.PushI32(2) // "timed-out": see doc comment, no real blocking available
}

// atomicAddr decodes an atomic memarg (align hint + offset), pops the i32
// base address, and traps on out-of-range or misaligned effective
// addresses -- the threads proposal requires natural alignment to size for
// every atomic access (TrapUnalignedAtomic), unlike plain loads/stores.
func atomicAddr(code []byte, f *Frame, size int) int {
	_, n, _ := leb128.DecodeUint32(code, f.IP) // align hint, not cross-checked against size
	f.IP += n
	offset, n, _ := leb128.DecodeUint32(code, f.IP)
	f.IP += n
	base := f.PopI32()
	ea := uint64(base) + uint64(offset)
	if ea > math.MaxInt32 {
		panic(TrapOutOfBoundsMemoryAccess)
	}
	if int(ea)%size != 0 {
		panic(TrapUnalignedAtomic)
	}
	return int(ea)
}
