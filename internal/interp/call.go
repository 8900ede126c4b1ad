package interp

import (
	"github.com/migwasm/migwasm/api"
	"github.com/migwasm/migwasm/internal/wasm"
)

// resolveIndirect implements call_indirect's table lookup and type check
// (spec.md §4.5): an out-of-range or null table entry traps with
// TrapUndefinedElement/TrapUninitializedElement, a present entry whose
// function type disagrees with the call-site's declared type traps with
// TrapIndirectCallTypeMismatch.
func (e *Executor) resolveIndirect(tableIdx uint32, elemIdx uint32, wantType *wasm.FunctionType) *wasm.Function {
	if int(tableIdx) >= len(e.module.Tables) {
		panic(TrapUndefinedElement)
	}
	table := e.module.Tables[tableIdx]
	if elemIdx >= uint32(len(table.Elements)) {
		panic(TrapUndefinedElement)
	}
	funcIdx := table.Elements[elemIdx]
	if funcIdx == api.NullRef {
		panic(TrapUninitializedElement)
	}
	fn := e.module.Function(funcIdx)
	if fn == nil {
		panic(TrapUninitializedElement)
	}
	if !fn.Type.Equal(wantType) {
		panic(TrapIndirectCallTypeMismatch)
	}
	return fn
}

// pushCallArgs copies the top ParamCellNum cells/tags of the caller's
// operand stack into callee's Locals[0:ParamCellNum], consuming them from
// the caller (spec.md §4.5 invoke_wasm_function argument passing).
func pushCallArgs(caller, callee *Frame, fn *wasm.Function) {
	paramCells := fn.ParamCellNum
	copy(callee.Locals[:paramCells], caller.Cells[caller.SP-paramCells:caller.SP])
	caller.Pop(paramCells, len(fn.Type.Params))
}

// callNative invokes a host-provided Go function, translating the cell
// representation to/from the api.GoFunction ABI (spec.md §4.6
// invoke_native). The caller's IP is set to -1 for the duration, matching
// the "suspended on native" invariant documented on Frame.IP. The
// checkpoint engine does not inspect it: checkpoints are only taken between
// opcodes, never inside this call.
func (e *Executor) callNative(caller *Frame, fn *wasm.Function) {
	params := make([]uint64, len(fn.Type.Params))
	// arguments were already popped into nothing by the caller in the
	// classic ABI; here we read them directly off the top of the stack
	// before truncating, high level: last param is top of stack.
	sp := caller.SP
	tsp := caller.TSP
	for i := len(fn.Type.Params) - 1; i >= 0; i-- {
		if api.IsI64(fn.Type.Params[i]) {
			sp -= 2
			params[i] = uint64(caller.Cells[sp]) | uint64(caller.Cells[sp+1])<<32
		} else {
			sp--
			params[i] = uint64(caller.Cells[sp])
		}
		tsp--
	}
	caller.SP = sp
	caller.TSP = tsp

	savedIP := caller.IP
	caller.IP = -1
	results, err := fn.GoFunc(params)
	caller.IP = savedIP

	if err != nil {
		panic(TrapError(err.Error()))
	}
	for i, rv := range results {
		if api.IsI64(fn.Type.Results[i]) {
			caller.PushI64(rv)
		} else {
			caller.PushI32(uint32(rv))
		}
	}
}
