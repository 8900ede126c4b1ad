package migwasm

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/migwasm/migwasm/api"
	"github.com/migwasm/migwasm/internal/leb128"
	"github.com/migwasm/migwasm/internal/wasm"
)

// HostFunc binds a Go function to an import slot a guest module declares
// (module, name). Runtime.Instantiate resolves Module.Imports against a
// caller-supplied list of these; an import left unresolved becomes a
// Function whose GoFunc traps with TrapUnlinkedImport if ever called,
// mirroring how the teacher's host-function resolution degrades instead of
// refusing to instantiate a module that never actually calls the import.
type HostFunc struct {
	Module, Name string
	Params       []api.ValueType
	Results      []api.ValueType
	Func         api.GoFunction
}

func unlinkedImport(modName, name string) api.GoFunction {
	return func([]uint64) ([]uint64, error) {
		return nil, errors.Errorf("%s: %s.%s", "failed to call unlinked import function", modName, name)
	}
}

// instantiate builds a ModuleInstance from a decoded Module: allocates
// memories/tables/globals, resolves imported functions against host, and
// applies element/data segments (spec.md §3: Module is read-only, loader
// output; ModuleInstance is the mutable per-instantiation state this
// function produces).
func instantiate(m *wasm.Module, host []HostFunc) (*wasm.ModuleInstance, error) {
	mi := &wasm.ModuleInstance{Module: m}

	if err := linkImportedFunctions(m, host, mi); err != nil {
		return nil, err
	}

	for _, tt := range m.Tables {
		mi.Tables = append(mi.Tables, wasm.NewTable(*tt))
	}

	for i, mt := range m.Memories {
		shared := false
		if i < m.NumImportedMemories {
			// imported memories are shared by convention in this module:
			// the only reason to import memory is the shared-memory
			// thread-manager hooks (spec.md §5).
			shared = true
		}
		var max *uint32
		if mt.HasMax {
			v := mt.Max
			max = &v
		}
		if shared {
			mi.Memories = append(mi.Memories, wasm.NewMemory(mt.Min, max, shared, &sync.Mutex{}))
		} else {
			mi.Memories = append(mi.Memories, wasm.NewMemory(mt.Min, max, shared, nil))
		}
	}

	if err := instantiateGlobals(m, mi); err != nil {
		return nil, err
	}

	if err := applyElementSegments(m, mi); err != nil {
		return nil, err
	}
	if err := applyDataSegments(m, mi); err != nil {
		return nil, err
	}

	return mi, nil
}

func linkImportedFunctions(m *wasm.Module, host []HostFunc, mi *wasm.ModuleInstance) error {
	lookup := make(map[string]HostFunc, len(host))
	for _, h := range host {
		lookup[h.Module+"\x00"+h.Name] = h
	}

	for _, imp := range m.Imports {
		if imp.Type != api.ExternTypeFunc {
			continue
		}
		ft := m.Types[imp.DescFunc]
		fn := &wasm.Function{
			Type:      ft,
			DebugName: imp.Module + "." + imp.Name,
		}
		if h, ok := lookup[imp.Module+"\x00"+imp.Name]; ok {
			fn.GoFunc = h.Func
		} else {
			fn.GoFunc = unlinkedImport(imp.Module, imp.Name)
		}
		mi.ImportedFunctions = append(mi.ImportedFunctions, fn)
	}
	return nil
}

func instantiateGlobals(m *wasm.Module, mi *wasm.ModuleInstance) error {
	// Every global, imported or local, gets a Global entry so
	// ModuleInstance.GlobalAddr can index Globals[idx] uniformly
	// (spec.md §3).
	// Import resolution against another ModuleInstance is a host linking
	// concern outside this module's scope: every global, imported or
	// local, gets its own zeroed storage instead of refusing to
	// instantiate or chasing an Import link.
	localOffset := 0
	for _, gt := range m.Globals {
		width := 4
		if api.IsI64(gt.ValType) {
			width = 8
		}
		mi.Globals = append(mi.Globals, &wasm.Global{Type: *gt, DataOffset: localOffset})
		localOffset += width
	}
	mi.GlobalData = make([]byte, localOffset)

	for i, gt := range m.Globals {
		if i < m.NumImportedGlobals {
			continue
		}
		expr := m.GlobalInit[i-m.NumImportedGlobals]
		v, err := evalConstExpr(expr, mi)
		if err != nil {
			return errors.Wrapf(err, "global %d init", i)
		}
		width := 4
		if api.IsI64(gt.ValType) {
			width = 8
		}
		addr := mi.GlobalAddr(uint32(i))
		putUint(addr[:width], v, width)
	}
	return nil
}

func putUint(b []byte, v uint64, width int) {
	for i := 0; i < width; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// evalConstExpr evaluates a restricted constant expression (i32.const,
// i64.const, f32.const, f64.const, global.get) used by global initializers
// and segment offsets (spec.md §3).
func evalConstExpr(expr wasm.ConstExpr, mi *wasm.ModuleInstance) (uint64, error) {
	switch expr.Opcode {
	case 0x41: // i32.const
		v, _, err := leb128.DecodeInt32(expr.Data, 0)
		return api.EncodeI32(v), err
	case 0x42: // i64.const
		v, _, err := leb128.DecodeInt64(expr.Data, 0)
		return api.EncodeI64(v), err
	case 0x43: // f32.const
		if len(expr.Data) != 4 {
			return 0, errors.New("const expr: malformed f32.const")
		}
		var v uint32
		for i := 0; i < 4; i++ {
			v |= uint32(expr.Data[i]) << (8 * i)
		}
		return uint64(v), nil
	case 0x44: // f64.const
		if len(expr.Data) != 8 {
			return 0, errors.New("const expr: malformed f64.const")
		}
		var v uint64
		for i := 0; i < 8; i++ {
			v |= uint64(expr.Data[i]) << (8 * i)
		}
		return v, nil
	case 0x23: // global.get
		idx, _, err := leb128.DecodeUint32(expr.Data, 0)
		if err != nil {
			return 0, err
		}
		addr := mi.GlobalAddr(idx)
		var v uint64
		for i, b := range addr {
			v |= uint64(b) << (8 * i)
		}
		return v, nil
	default:
		return 0, errors.Errorf("const expr: unsupported opcode %#x", expr.Opcode)
	}
}

func applyElementSegments(m *wasm.Module, mi *wasm.ModuleInstance) error {
	for _, seg := range m.ElementSegments {
		if seg.Passive {
			continue
		}
		off, err := evalConstExpr(seg.OffsetExpr, mi)
		if err != nil {
			return errors.Wrap(err, "element segment offset")
		}
		tbl := mi.Tables[seg.TableIndex]
		for i, fidx := range seg.Init {
			idx := uint32(off) + uint32(i)
			if int(idx) >= len(tbl.Elements) {
				return errors.New("element segment does not fit table")
			}
			tbl.Elements[idx] = fidx
		}
	}
	return nil
}

func applyDataSegments(m *wasm.Module, mi *wasm.ModuleInstance) error {
	for _, seg := range m.DataSegments {
		if seg.Passive {
			continue
		}
		off, err := evalConstExpr(seg.OffsetExpr, mi)
		if err != nil {
			return errors.Wrap(err, "data segment offset")
		}
		mem := mi.Memories[seg.MemoryIndex]
		if int(off)+len(seg.Init) > len(mem.Buffer) {
			return errors.New("data segment does not fit memory")
		}
		copy(mem.Buffer[off:], seg.Init)
	}
	return nil
}
