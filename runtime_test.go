package migwasm

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/migwasm/migwasm/api"
	"github.com/migwasm/migwasm/internal/checkpoint"
	"github.com/migwasm/migwasm/internal/interp"
	"github.com/migwasm/migwasm/internal/wasm"
)

func newFn(idx uint32, params, results []api.ValueType, localCells, stackCells, blockNum int, body []byte) *wasm.Function {
	ft := wasm.NewFunctionType(params, results)
	return &wasm.Function{
		Type:            ft,
		Index:           idx,
		Code:            &wasm.Code{Body: body},
		DebugName:       "test",
		ParamCellNum:    ft.ParamCells,
		LocalCellNum:    localCells,
		MaxStackCellNum: stackCells,
		MaxBlockNum:     blockNum,
	}
}

// addModule builds a one-function module exporting "add": (i32,i32)->i32.
func addModule() *wasm.Module {
	body := []byte{interp.OpLocalGet, 0, interp.OpLocalGet, 1, interp.OpI32Add, interp.OpEnd}
	fn := newFn(0, []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}, 0, 4, 2, body)
	return &wasm.Module{
		Functions: []*wasm.Function{fn},
		Exports:   []wasm.Export{{Name: "add", Type: api.ExternTypeFunc, Index: 0}},
	}
}

func TestRuntimeCompileAndInvokeAdd(t *testing.T) {
	rt := NewRuntime(nil)
	cm := &CompiledModule{module: addModule()}
	require.Equal(t, []string{"add"}, cm.ExportedFunctionNames())
	require.Equal(t, 1, cm.FunctionCount())

	inst, err := rt.Instantiate(cm)
	require.NoError(t, err)
	defer inst.Close()

	res, suspended, err := inst.Invoke("add", 2, 3)
	require.NoError(t, err)
	require.False(t, suspended)
	require.Equal(t, []uint64{5}, res)
}

func TestRuntimeInvokeUnknownExportFails(t *testing.T) {
	rt := NewRuntime(nil)
	cm := &CompiledModule{module: addModule()}
	inst, err := rt.Instantiate(cm)
	require.NoError(t, err)
	defer inst.Close()

	_, _, err = inst.Invoke("nope")
	require.Error(t, err)
}

// importModule builds a module importing one function (env.missing) and
// exporting "call_it" which just calls it, so instantiating with no host
// funcs still succeeds but invoking traps (spec.md's unlinked-import
// degrade-don't-fail behavior, see instantiate.go).
func importModule() *wasm.Module {
	impFn := &wasm.Function{Type: wasm.NewFunctionType(nil, []api.ValueType{api.ValueTypeI32})}
	body := []byte{interp.OpCall, 0, interp.OpEnd}
	local := newFn(1, nil, []api.ValueType{api.ValueTypeI32}, 0, 1, 2, body)
	return &wasm.Module{
		Functions:            []*wasm.Function{impFn, local},
		NumImportedFunctions: 1,
		Imports:              []wasm.Import{{Module: "env", Name: "missing", Type: api.ExternTypeFunc}},
		Exports:              []wasm.Export{{Name: "call_it", Type: api.ExternTypeFunc, Index: 1}},
		Types:                []*wasm.FunctionType{wasm.NewFunctionType(nil, []api.ValueType{api.ValueTypeI32})},
	}
}

func TestRuntimeUnlinkedImportTrapsOnCall(t *testing.T) {
	rt := NewRuntime(nil)
	cm := &CompiledModule{module: importModule()}

	inst, err := rt.Instantiate(cm)
	require.NoError(t, err, "instantiation must not fail just because an import is unresolved")
	defer inst.Close()

	_, _, err = inst.Invoke("call_it")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unlinked import")
}

func TestRuntimeUnlinkedImportResolvesAgainstHostFunc(t *testing.T) {
	rt := NewRuntime(nil)
	cm := &CompiledModule{module: importModule()}

	host := HostFunc{
		Module: "env",
		Name:   "missing",
		Func: func([]uint64) ([]uint64, error) {
			return []uint64{7}, nil
		},
	}
	inst, err := rt.Instantiate(cm, host)
	require.NoError(t, err)
	defer inst.Close()

	res, suspended, err := inst.Invoke("call_it")
	require.NoError(t, err)
	require.False(t, suspended)
	require.Equal(t, []uint64{7}, res)
}

// dataModule declares one page of memory, a data segment writing 42 at
// offset 8, and an exported "read" function loading it back.
func dataModule() *wasm.Module {
	body := []byte{interp.OpI32Const, 8, interp.OpI32Load, 2, 0, interp.OpEnd}
	fn := newFn(0, nil, []api.ValueType{api.ValueTypeI32}, 0, 4, 1, body)
	return &wasm.Module{
		Functions: []*wasm.Function{fn},
		Memories:  []*wasm.MemoryType{{Min: 1}},
		DataSegments: []wasm.DataSegment{
			{MemoryIndex: 0, OffsetExpr: wasm.ConstExpr{Opcode: 0x41, Data: []byte{8}}, Init: []byte{42, 0, 0, 0}},
		},
		Exports: []wasm.Export{{Name: "read", Type: api.ExternTypeFunc, Index: 0}},
	}
}

func TestRuntimeDataSegmentApplied(t *testing.T) {
	rt := NewRuntime(nil)
	cm := &CompiledModule{module: dataModule()}

	inst, err := rt.Instantiate(cm)
	require.NoError(t, err)
	defer inst.Close()

	res, suspended, err := inst.Invoke("read")
	require.NoError(t, err)
	require.False(t, suspended)
	require.Equal(t, []uint64{42}, res)
}

// counterLoopModule exports "count", a loop incrementing local 1 by one,
// n times (n = local 0), and returning the accumulator, long enough to force a mid-loop
// suspension under a small dispatch limit.
func counterLoopModule() *wasm.Module {
	body := []byte{
		interp.OpBlock, interp.BlockTypeVoid,
		interp.OpLoop, interp.BlockTypeVoid,
		interp.OpLocalGet, 0,
		interp.OpI32Eqz,
		interp.OpBrIf, 1,
		interp.OpLocalGet, 1,
		interp.OpI32Const, 1,
		interp.OpI32Add,
		interp.OpLocalSet, 1,
		interp.OpLocalGet, 0,
		interp.OpI32Const, 1,
		interp.OpI32Sub,
		interp.OpLocalSet, 0,
		interp.OpBr, 0,
		interp.OpEnd,
		interp.OpEnd,
		interp.OpLocalGet, 1,
		interp.OpEnd,
	}
	fn := newFn(0, []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}, 1, 8, 4, body)
	return &wasm.Module{
		Functions: []*wasm.Function{fn},
		Exports:   []wasm.Export{{Name: "count", Type: api.ExternTypeFunc, Index: 0}},
	}
}

// TestRuntimeCheckpointRestoreRoundTrip exercises the full embedder-level
// suspend/Checkpoint/Restore/Resume cycle spec.md §4.7/4.8 describes, not
// just the lower-level interp.Executor/checkpoint.Engine pairing already
// covered in internal/checkpoint/engine_test.go.
func TestRuntimeCheckpointRestoreRoundTrip(t *testing.T) {
	m := counterLoopModule()
	cfg := NewRuntimeConfig().WithDispatchLimit(30)
	rt := NewRuntime(cfg)
	cm := &CompiledModule{module: m}

	inst, err := rt.Instantiate(cm)
	require.NoError(t, err)
	defer inst.Close()

	_, suspended, err := inst.Invoke("count", 20)
	require.NoError(t, err)
	require.True(t, suspended)
	require.True(t, inst.Suspended())

	dir := t.TempDir()
	store := checkpoint.NewDirImageStore(dir)
	require.NoError(t, rt.Checkpoint(store, inst))

	restoreRT := NewRuntime(NewRuntimeConfig())
	restored, err := restoreRT.Restore(store, &CompiledModule{module: m})
	require.NoError(t, err)
	defer restored.Close()

	res, suspended2, err := restored.Resume()
	require.NoError(t, err)
	require.False(t, suspended2)
	require.Equal(t, []uint64{20}, res)
}

// TestConcurrentInstancesIndependent runs N goroutines, each instantiating
// and invoking its own Instance from one shared CompiledModule, confirming
// one immutable wasm.Module backs many independent instantiations safely
// (spec.md §3's Module/ModuleInstance split) the way a test harness running
// several executors against one compiled module would.
func TestConcurrentInstancesIndependent(t *testing.T) {
	rt := NewRuntime(nil)
	cm := &CompiledModule{module: addModule()}

	var g errgroup.Group
	for i := 0; i < 16; i++ {
		i := i
		g.Go(func() error {
			inst, err := rt.Instantiate(cm)
			if err != nil {
				return err
			}
			defer inst.Close()

			res, suspended, err := inst.Invoke("add", uint64(i), 100)
			if err != nil {
				return err
			}
			if suspended {
				return fmt.Errorf("goroutine %d: unexpected suspension", i)
			}
			if want := uint64(i + 100); res[0] != want {
				return fmt.Errorf("goroutine %d: got %d, want %d", i, res[0], want)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}
