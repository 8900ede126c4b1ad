package interp

import "github.com/migwasm/migwasm/internal/wasm"

// ControlBlock is a structured-control-flow scope (spec.md §3, §4.3).
type ControlBlock struct {
	LabelType LabelType
	// BeginAddr/TargetAddr are byte offsets into the owning function's
	// Code.Body (spec.md §9 prefers offsets over interior pointers so
	// migration never needs to relocate them).
	BeginAddr, TargetAddr int
	// FrameSP/FrameTSP are the value/type-tag stack watermarks at block
	// entry (spec.md §4.3: "a snapshot of (sp - param_cells, tsp - param_count)").
	FrameSP, FrameTSP int
	CellNum, Count     int
}

type LabelType byte

const (
	LabelFunction LabelType = iota
	LabelBlock
	LabelLoop
	LabelIf
)

// Frame is one activation record (spec.md §3) holding locals, the operand
// (cell) stack, the control stack, and the type-tag stack. Go slices stand
// in for the raw pointer arithmetic spec.md describes (sp/csp/tsp become
// indices into these fixed-capacity regions). Each region is its own slice,
// made by FrameAllocator.Alloc when the call begins; the regions are not
// carved from one contiguous arena allocation.
type Frame struct {
	Prev     *Frame
	Function *wasm.Function

	// IP is the program counter, a byte offset into Function.Code.Body.
	// It is -1 while this frame is suspended on a native import call
	// (spec.md §3 invariant).
	IP int

	// Locals holds ParamCellNum+LocalCellNum cells; Cells is the operand
	// stack region, length MaxStackCellNum, addressed [0:SP).
	Locals []uint32
	Cells  []uint32
	SP     int

	// Tags is the type-tag stack paired with Cells: Tags[i] is the tag for
	// the i-th *logical* value currently on the operand stack, not the
	// i-th cell (spec.md §4.2).
	Tags []byte
	TSP  int

	// Ctrl is the control-block stack, length MaxBlockNum.
	Ctrl []ControlBlock
	CSP  int

	// blockCache is the per-frame direct-mapped else/end address cache
	// (spec.md §4.3), keyed by BeginAddr % len(blockCache).
	blockCache []blockCacheEntry
}

type blockCacheEntry struct {
	start, elseAddr, end int
	valid                bool
}

const blockCacheSize = 32

// PushI32 implements spec.md §4.2's push_i32 contract.
func (f *Frame) PushI32(v uint32) {
	f.Cells[f.SP] = v
	f.SP++
	f.Tags[f.TSP] = 0
	f.TSP++
}

// PushI64 implements spec.md §4.2's push_i64 contract: low half first.
func (f *Frame) PushI64(v uint64) {
	f.Cells[f.SP] = uint32(v)
	f.Cells[f.SP+1] = uint32(v >> 32)
	f.SP += 2
	f.Tags[f.TSP] = 1
	f.TSP++
}

// PopI32 implements spec.md §4.2's pop_i32 contract.
func (f *Frame) PopI32() uint32 {
	f.SP--
	f.TSP--
	return f.Cells[f.SP]
}

// PopI64 implements spec.md §4.2's pop_i64 contract.
func (f *Frame) PopI64() uint64 {
	f.SP -= 2
	f.TSP--
	return uint64(f.Cells[f.SP]) | uint64(f.Cells[f.SP+1])<<32
}

// PeekTag returns the tag of the top logical value without popping.
func (f *Frame) PeekTag() byte { return f.Tags[f.TSP-1] }

// Pop drops `cells` cells and `count` tags (spec.md §4.2 pop(cells,count),
// used for call-site argument consumption and br arity adjustment).
func (f *Frame) Pop(cells, count int) {
	f.SP -= cells
	f.TSP -= count
}

// CheckInvariant validates spec.md §3's per-frame invariants; used by
// tests and by the checkpoint engine before serializing.
func (f *Frame) CheckInvariant() error {
	sum := 0
	for i := 0; i < f.TSP; i++ {
		sum += 1 + int(f.Tags[i])
	}
	if sum != f.SP {
		return FatalError("frame invariant violated: tag/cell stack desync")
	}
	return nil
}

// FrameAllocator allocates Frames for one executor (spec.md §4.1),
// enforcing a frame-depth ceiling and the free-only-the-top-frame rule. It
// does not bump-allocate from an arena: every Alloc makes fresh slices. It
// is not thread-safe: each executor owns its own allocator.
type FrameAllocator struct {
	ceiling int
	depth   int
	top     *Frame
}

// NewFrameAllocator builds an allocator that refuses calls deeper than
// ceiling frames, mirroring the teacher's callStackCeiling guard
// (internal/engine/interpreter/interpreter.go).
func NewFrameAllocator(ceiling int) *FrameAllocator {
	return &FrameAllocator{ceiling: ceiling}
}

// Alloc reserves a new Frame sized for fn and links prev as its caller.
// Every call site must pair this with exactly one Free on every exit path
// (normal return, trap, or migration) per spec.md §4.1.
func (a *FrameAllocator) Alloc(fn *wasm.Function, prev *Frame) (*Frame, error) {
	if a.depth >= a.ceiling {
		return nil, TrapError("wasm operand stack overflow")
	}
	localCells := fn.ParamCellNum + fn.LocalCellNum
	f := &Frame{
		Prev:       prev,
		Function:   fn,
		IP:         0,
		Locals:     make([]uint32, localCells),
		Cells:      make([]uint32, fn.MaxStackCellNum),
		Tags:       make([]byte, fn.MaxStackCellNum),
		Ctrl:       make([]ControlBlock, fn.MaxBlockNum),
		blockCache: make([]blockCacheEntry, blockCacheSize),
	}
	a.depth++
	a.top = f
	return f, nil
}

// Free releases the top frame and makes its caller the new top. It is a programming error to
// free a non-top frame (spec.md §4.1).
func (a *FrameAllocator) Free(f *Frame) {
	if a.top != f {
		panic(FatalError("free_frame called on a non-top frame"))
	}
	a.depth--
	a.top = f.Prev
}

// Depth returns the number of currently-allocated frames (excluding the
// dummy sentinel, which is never passed through this allocator).
func (a *FrameAllocator) Depth() int { return a.depth }
