package checkpoint

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/migwasm/migwasm/api"
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

func quietEngine() *Engine {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.PanicLevel)
	return NewEngine(log)
}

// TestCheckpointRestoreFactorial mirrors spec.md §8 scenario 1: suspend a
// recursive factorial call mid-stack, snapshot, restore into a fresh
// Executor over a fresh ModuleInstance, and confirm the resumed call
// produces the same result an uninterrupted run would.
func TestCheckpointRestoreFactorial(t *testing.T) {
	// fact(n) = n == 0 ? 1 : n * fact(n-1)
	body := []byte{
		interp.OpLocalGet, 0,
		interp.OpI32Eqz,
		interp.OpIf, byte(api.ValueTypeI32),
		interp.OpI32Const, 1,
		interp.OpElse,
		interp.OpLocalGet, 0,
		interp.OpLocalGet, 0,
		interp.OpI32Const, 1,
		interp.OpI32Sub,
		interp.OpCall, 0,
		interp.OpI32Mul,
		interp.OpEnd,
		interp.OpEnd,
	}
	fn := newFn(0, []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}, 0, 8, 4, body)
	module := &wasm.Module{Functions: []*wasm.Function{fn}}

	const n = 8
	const want = 40320 // 8!

	mi := &wasm.ModuleInstance{Module: module}
	ex := interp.NewExecutor(mi, 128)
	ex.SetDispatchLimit(60)
	_, suspended, err := ex.Invoke(0, []uint64{n})
	require.NoError(t, err)
	require.True(t, suspended)
	require.True(t, ex.Suspended())

	depth := 0
	for f := ex.CurrentFrame(); f != nil; f = f.Prev {
		depth++
	}
	require.Greater(t, depth, 1, "expected the dispatch limit to land mid-recursion")

	store := NewDirImageStore(t.TempDir())
	eng := quietEngine()
	require.NoError(t, eng.Snapshot(store, ex))

	mi2 := &wasm.ModuleInstance{Module: module}
	ex2, err := eng.Restore(store, mi2, 128)
	require.NoError(t, err)

	res, suspended2, err := ex2.Resume(ex2.CurrentFrame())
	require.NoError(t, err)
	require.False(t, suspended2)
	require.Equal(t, []uint64{want}, res)
}

// TestCheckpointRestoreGlobalCounter mirrors spec.md §8 scenario 6: a loop
// incrementing a global counter is suspended partway through, snapshotted,
// and restored into a second Executor/ModuleInstance; resuming it must
// reach the exact same final counter value an uninterrupted run would.
func TestCheckpointRestoreGlobalCounter(t *testing.T) {
	// count(limit): while global0 < limit { global0++ }; return global0
	body := []byte{
		interp.OpBlock, interp.BlockTypeVoid,
		interp.OpLoop, interp.BlockTypeVoid,
		interp.OpGlobalGet, 0,
		interp.OpLocalGet, 0,
		interp.OpI32GeS,
		interp.OpBrIf, 1,
		interp.OpGlobalGet, 0,
		interp.OpI32Const, 1,
		interp.OpI32Add,
		interp.OpGlobalSet, 0,
		interp.OpBr, 0,
		interp.OpEnd,
		interp.OpEnd,
		interp.OpGlobalGet, 0,
		interp.OpEnd,
	}
	fn := newFn(0, []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}, 0, 4, 4, body)
	module := &wasm.Module{Functions: []*wasm.Function{fn}}

	newInstance := func() *wasm.ModuleInstance {
		return &wasm.ModuleInstance{
			Module:     module,
			Globals:    []*wasm.Global{{Type: wasm.GlobalType{ValType: api.ValueTypeI32, Mutable: true}, DataOffset: 0}},
			GlobalData: make([]byte, 4),
		}
	}

	const limit = 1000

	baseline := interp.NewExecutor(newInstance(), 64)
	baseRes, baseSuspended, err := baseline.Invoke(0, []uint64{limit})
	require.NoError(t, err)
	require.False(t, baseSuspended)
	require.Equal(t, []uint64{limit}, baseRes)

	mi := newInstance()
	ex := interp.NewExecutor(mi, 64)
	ex.SetDispatchLimit(30)
	_, suspended, err := ex.Invoke(0, []uint64{limit})
	require.NoError(t, err)
	require.True(t, suspended)

	store := NewDirImageStore(t.TempDir())
	eng := quietEngine()
	eng.ArmDirtyTracking()
	require.NoError(t, eng.Snapshot(store, ex))

	mi2 := newInstance()
	ex2, err := eng.Restore(store, mi2, 64)
	require.NoError(t, err)

	res, suspended2, err := ex2.Resume(ex2.CurrentFrame())
	require.NoError(t, err)
	require.False(t, suspended2)
	require.Equal(t, baseRes, res)
	require.Equal(t, []uint64{limit}, res)
}

func TestEngineSnapshotRequiresSuspendedExecutor(t *testing.T) {
	fn := newFn(0, nil, []api.ValueType{api.ValueTypeI32}, 0, 2, 2,
		[]byte{interp.OpI32Const, 1, interp.OpEnd})
	mi := &wasm.ModuleInstance{Module: &wasm.Module{Functions: []*wasm.Function{fn}}}
	ex := interp.NewExecutor(mi, 16)
	_, suspended, err := ex.Invoke(0, nil)
	require.NoError(t, err)
	require.False(t, suspended)

	store := NewDirImageStore(t.TempDir())
	eng := quietEngine()
	err = eng.Snapshot(store, ex)
	require.Error(t, err)
}
