package interp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/migwasm/migwasm/api"
	"github.com/migwasm/migwasm/internal/wasm"
)

func leb32(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func sleb32(v int32) []byte {
	var out []byte
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

func newTestModule(fns ...*wasm.Function) *wasm.ModuleInstance {
	m := &wasm.Module{Functions: fns}
	return &wasm.ModuleInstance{Module: m}
}

func newFn(params, results []api.ValueType, localCells, stackCells, blockNum int, body []byte) *wasm.Function {
	ft := wasm.NewFunctionType(params, results)
	return &wasm.Function{
		Type:            ft,
		Code:            &wasm.Code{Body: body},
		DebugName:       "test",
		ParamCellNum:    ft.ParamCells,
		LocalCellNum:    localCells,
		MaxStackCellNum: stackCells,
		MaxBlockNum:     blockNum,
	}
}

func TestExecutorAddI32(t *testing.T) {
	body := []byte{OpLocalGet, 0, OpLocalGet, 1, OpI32Add, OpEnd}
	fn := newFn([]api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}, 0, 4, 2, body)
	mi := newTestModule(fn)

	e := NewExecutor(mi, 64)
	res, suspended, err := e.Invoke(0, []uint64{2, 3})
	require.NoError(t, err)
	require.False(t, suspended)
	require.Equal(t, []uint64{5}, res)
}

func TestExecutorDivByZeroTraps(t *testing.T) {
	body := []byte{OpLocalGet, 0, OpLocalGet, 1, OpI32DivS, OpEnd}
	fn := newFn([]api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}, 0, 4, 2, body)
	mi := newTestModule(fn)

	e := NewExecutor(mi, 64)
	_, _, err := e.Invoke(0, []uint64{10, 0})
	require.ErrorIs(t, err, TrapIntegerDivideByZero)
}

func TestExecutorDivOverflowTraps(t *testing.T) {
	body := []byte{OpLocalGet, 0, OpLocalGet, 1, OpI32DivS, OpEnd}
	fn := newFn([]api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}, 0, 4, 2, body)
	mi := newTestModule(fn)

	e := NewExecutor(mi, 64)
	_, _, err := e.Invoke(0, []uint64{uint64(uint32(1 << 31)), uint64(uint32(^uint32(0)))})
	require.ErrorIs(t, err, TrapIntegerOverflow)
}

func TestExecutorUnreachableTraps(t *testing.T) {
	body := []byte{OpUnreachable, OpEnd}
	fn := newFn(nil, nil, 0, 2, 2, body)
	mi := newTestModule(fn)

	e := NewExecutor(mi, 64)
	_, _, err := e.Invoke(0, nil)
	require.ErrorIs(t, err, TrapUnreachable)
}

// sum(n): loop decrementing a counter local and accumulating into a result
// local, returning via an explicit br out of the loop (spec.md §4.3 br
// target arity preservation, exercised here with an i32 result).
func TestExecutorLoopAndBranch(t *testing.T) {
	// locals: 0=n (param), 1=acc
	body := []byte{
		OpBlock, BlockTypeVoid,
		OpLoop, BlockTypeVoid,
		OpLocalGet, 0,
		OpI32Eqz,
		OpBrIf, 1, // break out of the block when n == 0
		OpLocalGet, 1,
		OpLocalGet, 0,
		OpI32Add,
		OpLocalSet, 1,
		OpLocalGet, 0,
		OpI32Const, 1,
		OpI32Sub,
		OpLocalSet, 0,
		OpBr, 0, // continue the loop
		OpEnd, // loop
		OpEnd, // block
		OpLocalGet, 1,
		OpEnd, // function
	}
	fn := newFn([]api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}, 1, 8, 4, body)
	mi := newTestModule(fn)

	e := NewExecutor(mi, 64)
	res, suspended, err := e.Invoke(0, []uint64{5})
	require.NoError(t, err)
	require.False(t, suspended)
	require.Equal(t, []uint64{15}, res[:1]) // 5+4+3+2+1
}

func TestExecutorCall(t *testing.T) {
	// fn1(x) = x * 2
	doubleBody := []byte{OpLocalGet, 0, OpI32Const, 2, OpI32Mul, OpEnd}
	double := newFn([]api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}, 0, 4, 2, doubleBody)

	// fn0(x) = call fn1(x) + 1
	callerBody := []byte{OpLocalGet, 0, OpCall, 1, OpI32Const, 1, OpI32Add, OpEnd}
	caller := newFn([]api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}, 0, 4, 2, callerBody)

	mi := newTestModule(caller, double)
	e := NewExecutor(mi, 64)
	res, _, err := e.Invoke(0, []uint64{10})
	require.NoError(t, err)
	require.Equal(t, []uint64{21}, res)
}

func TestExecutorCallIndirectTypeMismatch(t *testing.T) {
	takesI32 := wasm.NewFunctionType([]api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32})

	target := newFn([]api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI64}, 0, 2, 1, []byte{OpLocalGet, 0, OpEnd})

	body := []byte{OpI32Const, 0, OpCallIndirect, 0, 0, OpEnd}
	caller := newFn(nil, []api.ValueType{api.ValueTypeI32}, 0, 4, 2, body)

	mi := newTestModule(caller, target)
	mi.Module.Types = []*wasm.FunctionType{takesI32}
	mi.Tables = []*wasm.Table{{Type: wasm.TableType{ElemType: api.ValueTypeFuncref, Min: 1}, Elements: []uint32{1}}}

	e := NewExecutor(mi, 64)
	_, _, err := e.Invoke(0, nil)
	require.ErrorIs(t, err, TrapIndirectCallTypeMismatch)
}

func TestExecutorMemoryLoadStore(t *testing.T) {
	body := []byte{
		OpI32Const, 0,
		OpI32Const, 42,
		OpI32Store, 2, 0,
		OpI32Const, 0,
		OpI32Load, 2, 0,
		OpEnd,
	}
	fn := newFn(nil, []api.ValueType{api.ValueTypeI32}, 0, 4, 1, body)
	mi := newTestModule(fn)
	mi.Memories = []*wasm.Memory{wasm.NewMemory(1, nil, false, nil)}

	e := NewExecutor(mi, 64)
	res, _, err := e.Invoke(0, nil)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, res)
}

func TestExecutorMemoryOutOfBoundsTraps(t *testing.T) {
	body := []byte{OpI32Const}
	body = append(body, sleb32(0x7fffffff)...)
	body = append(body, OpI32Load, 2, 0, OpEnd)
	fn := newFn(nil, []api.ValueType{api.ValueTypeI32}, 0, 2, 1, body)
	mi := newTestModule(fn)
	mi.Memories = []*wasm.Memory{wasm.NewMemory(1, nil, false, nil)}

	e := NewExecutor(mi, 64)
	_, _, err := e.Invoke(0, nil)
	require.ErrorIs(t, err, TrapOutOfBoundsMemoryAccess)
}

func TestExecutorCheckpointSuspendsAtOpcodeBoundary(t *testing.T) {
	body := []byte{
		OpLoop, BlockTypeVoid,
		OpLocalGet, 0,
		OpI32Const, 1,
		OpI32Add,
		OpLocalSet, 0,
		OpBr, 0,
		OpEnd,
		OpEnd,
	}
	fn := newFn(nil, nil, 1, 4, 2, body)
	mi := newTestModule(fn)

	e := NewExecutor(mi, 64)
	e.SetDispatchLimit(10)
	_, suspended, err := e.Invoke(0, nil)
	require.NoError(t, err)
	require.True(t, suspended)
	require.True(t, e.Suspended())
	require.NotNil(t, e.CurrentFrame())
}
