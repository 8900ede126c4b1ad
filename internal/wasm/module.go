// Package wasm holds the read-only, loader-produced representation of a
// WebAssembly module (spec.md §3: Module) and the mutable ModuleInstance
// created from it at instantiation time. The binary decoder that produces a
// Module lives in internal/binary; this package only defines the shapes the
// interpreter consumes.
package wasm

import (
	"fmt"
	"sync"

	"github.com/migwasm/migwasm/api"
)

// ValueType re-exports api.ValueType so callers of this package don't need
// to also import api for the common case.
type ValueType = api.ValueType

// FunctionType is a function signature, cached with derived cell counts so
// the dispatcher never recomputes them on the hot path (spec.md §3:
// "caches its parameter cell count ... return cell count").
type FunctionType struct {
	Params, Results []ValueType

	// ParamCells and ResultCells are the cell counts of Params/Results
	// (a 64-bit value is 2 cells). ResultCount is len(Results); distinct
	// from ResultCells because of the same reason spec.md calls out.
	ParamCells, ResultCells, ResultCount int

	cachedString string
}

// NewFunctionType builds a FunctionType, pre-computing its cell counts.
func NewFunctionType(params, results []ValueType) *FunctionType {
	return &FunctionType{
		Params:      params,
		Results:     results,
		ParamCells:  api.CellsOf(params),
		ResultCells: api.CellsOf(results),
		ResultCount: len(results),
	}
}

func (t *FunctionType) String() string {
	if t.cachedString != "" {
		return t.cachedString
	}
	s := "("
	for i, p := range t.Params {
		if i > 0 {
			s += ", "
		}
		s += api.ValueTypeName(p)
	}
	s += ") -> ("
	for i, r := range t.Results {
		if i > 0 {
			s += ", "
		}
		s += api.ValueTypeName(r)
	}
	t.cachedString = s + ")"
	return t.cachedString
}

// Equal reports whether two function types have identical signatures. Used
// by call_indirect to raise "indirect call type mismatch" (spec.md §4.5).
func (t *FunctionType) Equal(o *FunctionType) bool {
	if t == o {
		return true
	}
	if len(t.Params) != len(o.Params) || len(t.Results) != len(o.Results) {
		return false
	}
	for i := range t.Params {
		if t.Params[i] != o.Params[i] {
			return false
		}
	}
	for i := range t.Results {
		if t.Results[i] != o.Results[i] {
			return false
		}
	}
	return true
}

// Code is one function's decoded body: its local declarations and its raw
// bytecode. The interpreter dispatches directly over Body (spec.md §1:
// "the source's interpreter ... dispatches ... one byte at a time"),
// unlike a compiled-IR engine.
type Code struct {
	LocalTypes []ValueType
	Body       []byte
}

// Function is one entry in a Module's function index space (imports first,
// then locally defined functions).
type Function struct {
	Type *FunctionType

	// Index is this function's position in the module's function index
	// space (imports first), used by the checkpoint engine to serialize
	// entry_fidx/return_fidx without a separate reverse-lookup table
	// (spec.md §6 stack<i>.img layout).
	Index uint32

	// Code is nil for imported functions; GoFunc is nil for local ones.
	Code   *Code
	GoFunc api.GoFunction

	// DebugName identifies this function in traps and stack traces.
	DebugName string

	// ParamCellNum/LocalCellNum/MaxStackCellNum/MaxBlockNum are bounds
	// precomputed by the loader (spec.md §3): MaxStackCellNum is the
	// largest simultaneous operand-stack depth in cells; MaxBlockNum is
	// the deepest control-stack nesting. Both size a callee's Frame
	// allocation (spec.md §4.5 step 2).
	ParamCellNum    int
	LocalCellNum    int
	MaxStackCellNum int
	MaxBlockNum     int

	localOffsets []int
	localIsI64   []bool
	onceLocals   sync.Once
}

func (f *Function) IsHostFunction() bool { return f.GoFunc != nil }

// LocalInfo returns the cell offset and width of local index idx (params
// first, then Code.LocalTypes, matching the WebAssembly local index space).
// It lazily builds the offset table once per Function and reuses it across
// every activation, since the layout never varies between calls.
func (f *Function) LocalInfo(idx uint32) (offset int, isI64 bool) {
	f.onceLocals.Do(f.buildLocalOffsets)
	return f.localOffsets[idx], f.localIsI64[idx]
}

func (f *Function) buildLocalOffsets() {
	n := len(f.Type.Params)
	if f.Code != nil {
		n += len(f.Code.LocalTypes)
	}
	f.localOffsets = make([]int, n)
	f.localIsI64 = make([]bool, n)
	cell := 0
	i := 0
	for _, t := range f.Type.Params {
		f.localOffsets[i] = cell
		f.localIsI64[i] = api.IsI64(t)
		cell += api.CellsOf([]ValueType{t})
		i++
	}
	if f.Code != nil {
		for _, t := range f.Code.LocalTypes {
			f.localOffsets[i] = cell
			f.localIsI64[i] = api.IsI64(t)
			cell += api.CellsOf([]ValueType{t})
			i++
		}
	}
}

// AllCellNum is the total cell footprint of one activation of f: locals
// plus the worst-case operand stack (spec.md §3 Frame layout).
func (f *Function) AllCellNum() int {
	return f.ParamCellNum + f.LocalCellNum + f.MaxStackCellNum
}

// GlobalType describes a global's value type and mutability.
type GlobalType struct {
	ValType ValueType
	Mutable bool
}

// TableType describes a table's element type and size bounds. Reference
// types (spec.md §4.4) only distinguish funcref/externref at the type
// level; storage is always a 32-bit index (api.NullRef sentinel).
type TableType struct {
	ElemType     ValueType
	Min          uint32
	Max          *uint32
}

// MemoryType describes a linear memory's size bounds, in pages.
type MemoryType struct {
	Min, Max uint32
	HasMax   bool
}

// Import/Export describe the module's linkage surface. The loader and host
// linker that resolve these are external collaborators (spec.md §1); the
// interpreter only reads the resolved ModuleInstance.
type Import struct {
	Module, Name string
	Type         api.ExternType

	DescFunc   uint32 // index into Module.Types
	DescTable  *TableType
	DescMemory *MemoryType
	DescGlobal *GlobalType
}

type Export struct {
	Name  string
	Type  api.ExternType
	Index uint32
}

// DataSegment and ElementSegment back the bulk-memory operations
// memory.init/data.drop and table.init/elem.drop (spec.md §4.4).
type DataSegment struct {
	MemoryIndex uint32
	OffsetExpr  ConstExpr
	Init        []byte
	Passive     bool
}

type ElementSegment struct {
	TableIndex uint32
	OffsetExpr ConstExpr
	Init       []uint32 // function indices, api.NullRef for an empty slot
	Passive    bool
}

// ConstExpr is a restricted constant expression (i32.const/i64.const/
// f32.const/f64.const/global.get), used for global initializers and
// segment offsets.
type ConstExpr struct {
	Opcode byte
	Data   []byte
}

// Module is the immutable, read-only representation of a decoded
// WebAssembly binary (spec.md §3). Every field is populated once by the
// loader (internal/binary) and never mutated afterward.
type Module struct {
	Types     []*FunctionType
	Functions []*Function // imports first, then locally defined
	Tables    []*TableType
	Memories  []*MemoryType
	Globals   []*GlobalType
	GlobalInit []ConstExpr // len(GlobalInit) == len(Globals) - imported-global count

	Imports []Import
	Exports []Export
	StartFunctionIndex *uint32

	DataSegments    []DataSegment
	ElementSegments []ElementSegment

	// NumImportedFunctions/Tables/Memories/Globals separate the imported
	// prefix of each index space from locally defined entries.
	NumImportedFunctions int
	NumImportedTables    int
	NumImportedMemories  int
	NumImportedGlobals   int

	// ID is a descriptive label the decoder sets from the function count
	// ("module-<n>-funcs"). Nothing in this module reads it; there is no
	// compiled-code cache.
	ID string
}

func (m *Module) String() string {
	return fmt.Sprintf("module[funcs=%d tables=%d memories=%d globals=%d]",
		len(m.Functions), len(m.Tables), len(m.Memories), len(m.Globals))
}
