package wasm

import (
	"sync"

	"github.com/migwasm/migwasm/api"
)

// Table holds funcref/externref indices (spec.md §4.4: "tables hold 32-bit
// indices with a NULL_REF sentinel").
type Table struct {
	Type      TableType
	Elements  []uint32 // api.NullRef for empty slots
}

func NewTable(tt TableType) *Table {
	els := make([]uint32, tt.Min)
	for i := range els {
		els[i] = api.NullRef
	}
	return &Table{Type: tt, Elements: els}
}

// ModuleInstance is the mutable, per-instantiation state of a Module
// (spec.md §3): "owns linear Memory instances, Table instances, Global
// cells ..., current exception buffer, import-function pointers, and a
// back-reference to Module."
type ModuleInstance struct {
	Module *Module
	Name   string

	Memories []*Memory
	Tables   []*Table
	Globals  []*Global

	// GlobalData is the flat byte buffer backing every locally defined
	// global; Globals[i].DataOffset indexes into it (spec.md §3).
	GlobalData []byte

	// ImportedFunctions holds resolved function pointers for this
	// instance's import section, indexed the same way as
	// Module.Functions[:NumImportedFunctions].
	ImportedFunctions []*Function

	// Exception is the single null-terminated-equivalent error surface
	// (spec.md §6): at most one live trap message per ModuleInstance.
	mu        sync.Mutex
	exception error
}

// GlobalAddr resolves the effective storage slice for global index idx,
// following one level of import indirection if needed (spec.md §3).
func (mi *ModuleInstance) GlobalAddr(idx uint32) []byte {
	g := mi.Globals[idx]
	if g.Import != nil {
		return g.Import.Instance.GlobalAddr(g.Import.Index)
	}
	width := 4
	if api.IsI64(g.Type.ValType) {
		width = 8
	}
	return mi.GlobalData[g.DataOffset : g.DataOffset+width]
}

// SetException records the active trap/host-error message for this
// instance (spec.md §6), overwriting any previous one.
func (mi *ModuleInstance) SetException(err error) {
	mi.mu.Lock()
	mi.exception = err
	mi.mu.Unlock()
}

// Exception returns the last recorded trap/host-error, if any.
func (mi *ModuleInstance) Exception() error {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	return mi.exception
}

// ClearException resets the exception buffer, e.g. before a fresh call.
func (mi *ModuleInstance) ClearException() {
	mi.mu.Lock()
	mi.exception = nil
	mi.mu.Unlock()
}

// Function resolves the function at idx, whether imported or local.
func (mi *ModuleInstance) Function(idx uint32) *Function {
	if int(idx) < len(mi.ImportedFunctions) {
		return mi.ImportedFunctions[idx]
	}
	return mi.Module.Functions[idx]
}
