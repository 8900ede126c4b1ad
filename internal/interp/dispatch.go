package interp

import (
	"encoding/binary"
	"math"
	"math/bits"

	"github.com/migwasm/migwasm/api"
	"github.com/migwasm/migwasm/internal/leb128"
	"github.com/migwasm/migwasm/internal/moremath"
	"github.com/migwasm/migwasm/internal/wasm"
)

// mem0 returns the executor's sole linear memory (spec.md's Non-goals cap
// the module at one memory instance, the WebAssembly 1.0 MVP limit).
func (e *Executor) mem0() *wasm.Memory {
	if len(e.module.Memories) == 0 {
		panic(FatalError("interp: no memory instance"))
	}
	return e.module.Memories[0]
}

// step executes exactly one opcode on e.cur, returning done=true with the
// final logical results once the entry frame itself returns. Every call
// site that crosses a frame boundary (call/return/return_call) mutates
// e.cur directly rather than recursing, so the dispatch loop in
// Executor.run can poll the checkpoint flag at a uniform granularity of
// "one opcode" regardless of call depth (spec.md §5).
func (e *Executor) step() (done bool, results []uint64) {
	f := e.cur
	code := f.Function.Code.Body
	op := code[f.IP]
	f.IP++
	e.dispatched++

	switch op {
	case OpUnreachable:
		panic(TrapUnreachable)
	case OpNop:

	case OpBlock, OpLoop:
		cellNum, count := e.blockArity(code, f.IP)
		bodyStart := skipBlockType(code, f.IP)
		_, end := e.lookupOrScan(f, f.IP, bodyStart)
		lt := LabelBlock
		target := end + 1
		if op == OpLoop {
			lt = LabelLoop
			target = bodyStart
			// a loop's branch target re-enters with zero arity: the loop
			// header takes no value off the stack (spec.md §4.3).
			cellNum, count = 0, 0
		}
		f.PushControl(lt, f.IP, target, cellNum, count)
		f.IP = bodyStart

	case OpIf:
		cellNum, count := e.blockArity(code, f.IP)
		bodyStart := skipBlockType(code, f.IP)
		elseAddr, end := e.lookupOrScan(f, f.IP, bodyStart)
		cond := f.PopI32()
		f.PushControl(LabelIf, f.IP, end+1, cellNum, count)
		f.IP = bodyStart
		if cond == 0 {
			if elseAddr != 0 {
				f.IP = elseAddr + 1
			} else {
				f.IP = end + 1
				f.PopControl()
			}
		}

	case OpElse:
		ctrl := f.PopControl()
		f.IP = ctrl.TargetAddr

	case OpEnd:
		ctrl := f.PopControl()
		if ctrl.LabelType == LabelFunction {
			return e.returnFromFrame()
		}

	case OpBr:
		depth := readU32(code, f)
		return e.branchOrReturn(f, int(depth))

	case OpBrIf:
		depth := readU32(code, f)
		if f.PopI32() != 0 {
			return e.branchOrReturn(f, int(depth))
		}

	case OpBrTable:
		count := readU32(code, f)
		targets := make([]uint32, count+1)
		for i := range targets {
			targets[i] = readU32(code, f)
		}
		idx := f.PopI32()
		if idx >= count {
			idx = count
		}
		return e.branchOrReturn(f, int(targets[idx]))

	case OpReturn:
		return e.branchOrReturn(f, f.CSP-1)

	case OpCall:
		idx := readU32(code, f)
		e.doCall(f, e.module.Function(idx), false)

	case OpCallIndirect:
		typeIdx := readU32(code, f)
		tableIdx := readU32(code, f)
		elemIdx := f.PopI32()
		fn := e.resolveIndirect(tableIdx, elemIdx, e.module.Module.Types[typeIdx])
		e.doCall(f, fn, false)

	case OpReturnCall:
		idx := readU32(code, f)
		e.doCall(f, e.module.Function(idx), true)

	case OpReturnCallIndirect:
		typeIdx := readU32(code, f)
		tableIdx := readU32(code, f)
		elemIdx := f.PopI32()
		fn := e.resolveIndirect(tableIdx, elemIdx, e.module.Module.Types[typeIdx])
		e.doCall(f, fn, true)

	case OpDrop:
		if f.PeekTag() == 1 {
			f.PopI64()
		} else {
			f.PopI32()
		}

	case OpSelect, OpSelectT:
		if op == OpSelectT {
			count := readU32(code, f)
			f.IP += int(count) // skip the result-type vector; tags already tell us widths
		}
		cond := f.PopI32()
		isI64 := f.PeekTag() == 1
		var v2h, v1h uint64
		if isI64 {
			v2h = f.PopI64()
			v1h = f.PopI64()
		} else {
			v2h = uint64(f.PopI32())
			v1h = uint64(f.PopI32())
		}
		chosen := v2h
		if cond != 0 {
			chosen = v1h
		}
		if isI64 {
			f.PushI64(chosen)
		} else {
			f.PushI32(uint32(chosen))
		}

	case OpLocalGet:
		idx := readU32(code, f)
		off, isI64 := f.Function.LocalInfo(idx)
		if isI64 {
			f.PushI64(uint64(f.Locals[off]) | uint64(f.Locals[off+1])<<32)
		} else {
			f.PushI32(f.Locals[off])
		}

	case OpLocalSet, OpLocalTee:
		idx := readU32(code, f)
		off, isI64 := f.Function.LocalInfo(idx)
		if isI64 {
			v := f.PopI64()
			f.Locals[off] = uint32(v)
			f.Locals[off+1] = uint32(v >> 32)
			if op == OpLocalTee {
				f.PushI64(v)
			}
		} else {
			v := f.PopI32()
			f.Locals[off] = v
			if op == OpLocalTee {
				f.PushI32(v)
			}
		}

	case OpGlobalGet:
		idx := readU32(code, f)
		addr := e.module.GlobalAddr(idx)
		if len(addr) == 8 {
			f.PushI64(binary.LittleEndian.Uint64(addr))
		} else {
			f.PushI32(binary.LittleEndian.Uint32(addr))
		}

	case OpGlobalSet:
		idx := readU32(code, f)
		addr := e.module.GlobalAddr(idx)
		if len(addr) == 8 {
			binary.LittleEndian.PutUint64(addr, f.PopI64())
		} else {
			binary.LittleEndian.PutUint32(addr, f.PopI32())
		}

	case OpTableGet:
		idx := readU32(code, f)
		i := f.PopI32()
		t := e.module.Tables[idx]
		if i >= uint32(len(t.Elements)) {
			panic(TrapOutOfBoundsMemoryAccess)
		}
		f.PushI32(t.Elements[i])

	case OpTableSet:
		idx := readU32(code, f)
		v := f.PopI32()
		i := f.PopI32()
		t := e.module.Tables[idx]
		if i >= uint32(len(t.Elements)) {
			panic(TrapOutOfBoundsMemoryAccess)
		}
		t.Elements[i] = v

	case OpMemorySize:
		f.IP++ // reserved byte
		f.PushI32(e.mem0().PageCount())

	case OpMemoryGrow:
		f.IP++ // reserved byte
		delta := f.PopI32()
		prev, ok := e.mem0().Grow(delta)
		if !ok {
			f.PushI32(0xffff_ffff)
		} else {
			f.PushI32(prev)
		}

	case OpI32Load:
		ea := loadAddr(code, f)
		f.PushI32(binary.LittleEndian.Uint32(loadBytes(e.mem0(), ea, 4)))
	case OpI64Load:
		ea := loadAddr(code, f)
		f.PushI64(binary.LittleEndian.Uint64(loadBytes(e.mem0(), ea, 8)))
	case OpF32Load:
		ea := loadAddr(code, f)
		f.PushI32(binary.LittleEndian.Uint32(loadBytes(e.mem0(), ea, 4)))
	case OpF64Load:
		ea := loadAddr(code, f)
		f.PushI64(binary.LittleEndian.Uint64(loadBytes(e.mem0(), ea, 8)))
	case OpI32Load8S:
		ea := loadAddr(code, f)
		f.PushI32(uint32(int32(int8(loadBytes(e.mem0(), ea, 1)[0]))))
	case OpI32Load8U:
		ea := loadAddr(code, f)
		f.PushI32(uint32(loadBytes(e.mem0(), ea, 1)[0]))
	case OpI32Load16S:
		ea := loadAddr(code, f)
		f.PushI32(uint32(int32(int16(binary.LittleEndian.Uint16(loadBytes(e.mem0(), ea, 2))))))
	case OpI32Load16U:
		ea := loadAddr(code, f)
		f.PushI32(uint32(binary.LittleEndian.Uint16(loadBytes(e.mem0(), ea, 2))))
	case OpI64Load8S:
		ea := loadAddr(code, f)
		f.PushI64(uint64(int64(int8(loadBytes(e.mem0(), ea, 1)[0]))))
	case OpI64Load8U:
		ea := loadAddr(code, f)
		f.PushI64(uint64(loadBytes(e.mem0(), ea, 1)[0]))
	case OpI64Load16S:
		ea := loadAddr(code, f)
		f.PushI64(uint64(int64(int16(binary.LittleEndian.Uint16(loadBytes(e.mem0(), ea, 2))))))
	case OpI64Load16U:
		ea := loadAddr(code, f)
		f.PushI64(uint64(binary.LittleEndian.Uint16(loadBytes(e.mem0(), ea, 2))))
	case OpI64Load32S:
		ea := loadAddr(code, f)
		f.PushI64(uint64(int64(int32(binary.LittleEndian.Uint32(loadBytes(e.mem0(), ea, 4))))))
	case OpI64Load32U:
		ea := loadAddr(code, f)
		f.PushI64(uint64(binary.LittleEndian.Uint32(loadBytes(e.mem0(), ea, 4))))

	case OpI32Store, OpF32Store:
		v := f.PopI32()
		ea := loadAddr(code, f)
		binary.LittleEndian.PutUint32(storeBytes(e.mem0(), ea, 4), v)
	case OpI64Store, OpF64Store:
		v := f.PopI64()
		ea := loadAddr(code, f)
		binary.LittleEndian.PutUint64(storeBytes(e.mem0(), ea, 8), v)
	case OpI32Store8:
		v := f.PopI32()
		ea := loadAddr(code, f)
		storeBytes(e.mem0(), ea, 1)[0] = byte(v)
	case OpI32Store16:
		v := f.PopI32()
		ea := loadAddr(code, f)
		binary.LittleEndian.PutUint16(storeBytes(e.mem0(), ea, 2), uint16(v))
	case OpI64Store8:
		v := f.PopI64()
		ea := loadAddr(code, f)
		storeBytes(e.mem0(), ea, 1)[0] = byte(v)
	case OpI64Store16:
		v := f.PopI64()
		ea := loadAddr(code, f)
		binary.LittleEndian.PutUint16(storeBytes(e.mem0(), ea, 2), uint16(v))
	case OpI64Store32:
		v := f.PopI64()
		ea := loadAddr(code, f)
		binary.LittleEndian.PutUint32(storeBytes(e.mem0(), ea, 4), uint32(v))

	case OpI32Const:
		v, n, _ := leb128.DecodeInt32(code, f.IP)
		f.IP += n
		f.PushI32(uint32(v))
	case OpI64Const:
		v, n, _ := leb128.DecodeInt64(code, f.IP)
		f.IP += n
		f.PushI64(uint64(v))
	case OpF32Const:
		f.PushI32(binary.LittleEndian.Uint32(code[f.IP : f.IP+4]))
		f.IP += 4
	case OpF64Const:
		f.PushI64(binary.LittleEndian.Uint64(code[f.IP : f.IP+8]))
		f.IP += 8

	default:
		e.execNumeric(f, op, code)
	}

	return false, nil
}

func readU32(code []byte, f *Frame) uint32 {
	v, n, err := leb128.DecodeUint32(code, f.IP)
	if err != nil {
		panic(FatalError("interp: malformed immediate"))
	}
	f.IP += n
	return v
}

func loadAddr(code []byte, f *Frame) int {
	_, n, _ := leb128.DecodeUint32(code, f.IP) // align, unused by the interpreter
	f.IP += n
	offset, n, _ := leb128.DecodeUint32(code, f.IP)
	f.IP += n
	base := f.PopI32()
	ea := uint64(base) + uint64(offset)
	if ea > math.MaxInt32 {
		panic(TrapOutOfBoundsMemoryAccess)
	}
	return int(ea)
}

func loadBytes(m *wasm.Memory, ea, size int) []byte {
	b, ok := m.Bytes(ea, size)
	if !ok {
		panic(TrapOutOfBoundsMemoryAccess)
	}
	return b
}

func storeBytes(m *wasm.Memory, ea, size int) []byte {
	return loadBytes(m, ea, size)
}

// blockArity decodes a block/loop/if type immediate into the result cell
// count and logical-value count a branch out of it carries (spec.md §4.3).
// The immediate is a signed LEB128 S33: negative values select one of the
// single value-type sentinels, non-negative values index Module.Types for
// the multi-value proposal's full (params, results) signature.
func (e *Executor) blockArity(code []byte, pos int) (cellNum, count int) {
	v, _, err := leb128.DecodeInt64(code, pos)
	if err != nil {
		panic(FatalError("interp: malformed block type"))
	}
	if v >= 0 {
		ft := e.module.Module.Types[v]
		return ft.ResultCells, ft.ResultCount
	}
	switch v {
	case -64: // 0x40, void
		return 0, 0
	case -1, -3: // i32, f32
		return 1, 1
	case -2, -4: // i64, f64
		return 2, 1
	case -16, -17: // funcref, externref
		return 1, 1
	default:
		panic(FatalError("interp: invalid block type"))
	}
}

// lookupOrScan resolves a block's else/end addresses via the frame's
// direct-mapped cache (spec.md §4.3), scanning and populating it on a
// cache miss.
func (e *Executor) lookupOrScan(f *Frame, immStart, bodyStart int) (elseAddr, end int) {
	if elseAddr, end, ok := f.LookupBlockEnds(immStart); ok {
		return elseAddr, end
	}
	elseAddr, end = scanBlockEnds(f.Function.Code.Body, bodyStart)
	f.StoreBlockEnds(immStart, elseAddr, end)
	return elseAddr, end
}

// branchOrReturn performs Frame.Branch and either jumps IP to the target
// (block/loop) or, when the branch unwinds past the function's own
// top-level control block, finalizes the call the same way OpEnd/OpReturn
// does.
func (e *Executor) branchOrReturn(f *Frame, depth int) (done bool, results []uint64) {
	target := f.Branch(depth)
	if target.LabelType == LabelFunction {
		return e.returnFromFrame()
	}
	f.IP = target.TargetAddr
	return false, nil
}

// returnFromFrame finalizes the current frame's return, copying its result
// cells into the caller (or, for the entry frame, into the logical
// `results` returned to the embedder) per spec.md §4.5.
func (e *Executor) returnFromFrame() (done bool, results []uint64) {
	f := e.cur
	fn := f.Function
	resultCells := fn.Type.ResultCells
	resultTags := make([]byte, fn.Type.ResultCount)
	copy(resultTags, f.Tags[f.TSP-fn.Type.ResultCount:f.TSP])
	resultVals := append([]uint32(nil), f.Cells[f.SP-resultCells:f.SP]...)

	out := widenCells(resultVals, resultTags)
	if e.listener != nil {
		e.listener.After(fn, out)
	}

	caller := f.Prev
	e.frames.Free(f)

	if caller == nil {
		return true, out
	}

	cell := 0
	for _, tag := range resultTags {
		if tag == 1 {
			caller.PushI64(uint64(resultVals[cell]) | uint64(resultVals[cell+1])<<32)
			cell += 2
		} else {
			caller.PushI32(resultVals[cell])
			cell++
		}
	}
	e.cur = caller
	return false, nil
}

// widenCells folds a cell/tag pair stream into logical uint64 values (tag 1
// means the value spans two cells, low half first), the same conversion
// spec.md §4.6 applies at the dispatcher/embedder boundary.
func widenCells(cells []uint32, tags []byte) []uint64 {
	out := make([]uint64, len(tags))
	cell := 0
	for i, tag := range tags {
		if tag == 1 {
			out[i] = uint64(cells[cell]) | uint64(cells[cell+1])<<32
			cell += 2
		} else {
			out[i] = uint64(cells[cell])
			cell++
		}
	}
	return out
}

// doCall implements call/call_indirect, and, when tail is true,
// return_call/return_call_indirect's frame-reuse semantics (spec.md §4.5).
func (e *Executor) doCall(caller *Frame, fn *wasm.Function, tail bool) {
	if fn == nil {
		panic(TrapUnknownFunction)
	}
	if fn.IsHostFunction() {
		e.callNative(caller, fn)
		return
	}
	if fn.Code == nil {
		panic(TrapUnlinkedImport)
	}
	if tail {
		paramCells := fn.ParamCellNum
		savedArgs := append([]uint32(nil), caller.Cells[caller.SP-paramCells:caller.SP]...)
		grandparent := caller.Prev
		e.frames.Free(caller)
		callee, err := e.frames.Alloc(fn, grandparent)
		if err != nil {
			panic(err)
		}
		copy(callee.Locals[:paramCells], savedArgs)
		callee.PushControl(LabelFunction, 0, len(fn.Code.Body), fn.Type.ResultCells, fn.Type.ResultCount)
		if e.listener != nil {
			e.listener.Before(fn, widenCells(savedArgs, paramTags(fn)))
		}
		e.cur = callee
		return
	}
	callee, err := e.frames.Alloc(fn, caller)
	if err != nil {
		panic(err)
	}
	pushCallArgs(caller, callee, fn)
	callee.PushControl(LabelFunction, 0, len(fn.Code.Body), fn.Type.ResultCells, fn.Type.ResultCount)
	if e.listener != nil {
		e.listener.Before(fn, widenCells(callee.Locals[:fn.ParamCellNum], paramTags(fn)))
	}
	e.cur = callee
}

// paramTags reports, per logical parameter, whether it spans two cells
// (i64/f64) or one (i32/f32) -- the same tag convention the operand stack
// uses (spec.md §4.2).
func paramTags(fn *wasm.Function) []byte {
	tags := make([]byte, len(fn.Type.Params))
	for i, t := range fn.Type.Params {
		if api.IsI64(t) {
			tags[i] = 1
		}
	}
	return tags
}

// execNumeric dispatches the numeric, comparison, conversion, sign-
// extension, and misc/atomic opcode families (spec.md §4.4), the bulk of
// the opcode space that never touches control flow or memory addressing.
func (e *Executor) execNumeric(f *Frame, op byte, code []byte) {
	switch op {
	// i32 comparisons
	case OpI32Eqz:
		f.PushI32(b2i(f.PopI32() == 0))
	case OpI32Eq:
		b, a := f.PopI32(), f.PopI32()
		f.PushI32(b2i(a == b))
	case OpI32Ne:
		b, a := f.PopI32(), f.PopI32()
		f.PushI32(b2i(a != b))
	case OpI32LtS:
		b, a := f.PopI32(), f.PopI32()
		f.PushI32(b2i(int32(a) < int32(b)))
	case OpI32LtU:
		b, a := f.PopI32(), f.PopI32()
		f.PushI32(b2i(a < b))
	case OpI32GtS:
		b, a := f.PopI32(), f.PopI32()
		f.PushI32(b2i(int32(a) > int32(b)))
	case OpI32GtU:
		b, a := f.PopI32(), f.PopI32()
		f.PushI32(b2i(a > b))
	case OpI32LeS:
		b, a := f.PopI32(), f.PopI32()
		f.PushI32(b2i(int32(a) <= int32(b)))
	case OpI32LeU:
		b, a := f.PopI32(), f.PopI32()
		f.PushI32(b2i(a <= b))
	case OpI32GeS:
		b, a := f.PopI32(), f.PopI32()
		f.PushI32(b2i(int32(a) >= int32(b)))
	case OpI32GeU:
		b, a := f.PopI32(), f.PopI32()
		f.PushI32(b2i(a >= b))

	// i32 arithmetic
	case OpI32Clz:
		f.PushI32(uint32(bits.LeadingZeros32(f.PopI32())))
	case OpI32Ctz:
		f.PushI32(uint32(bits.TrailingZeros32(f.PopI32())))
	case OpI32Popcnt:
		f.PushI32(uint32(bits.OnesCount32(f.PopI32())))
	case OpI32Add:
		b, a := f.PopI32(), f.PopI32()
		f.PushI32(a + b)
	case OpI32Sub:
		b, a := f.PopI32(), f.PopI32()
		f.PushI32(a - b)
	case OpI32Mul:
		b, a := f.PopI32(), f.PopI32()
		f.PushI32(a * b)
	case OpI32DivS:
		b, a := int32(f.PopI32()), int32(f.PopI32())
		if b == 0 {
			panic(TrapIntegerDivideByZero)
		}
		if a == math.MinInt32 && b == -1 {
			panic(TrapIntegerOverflow)
		}
		f.PushI32(uint32(a / b))
	case OpI32DivU:
		b, a := f.PopI32(), f.PopI32()
		if b == 0 {
			panic(TrapIntegerDivideByZero)
		}
		f.PushI32(a / b)
	case OpI32RemS:
		b, a := int32(f.PopI32()), int32(f.PopI32())
		if b == 0 {
			panic(TrapIntegerDivideByZero)
		}
		if a == math.MinInt32 && b == -1 {
			f.PushI32(0)
		} else {
			f.PushI32(uint32(a % b))
		}
	case OpI32RemU:
		b, a := f.PopI32(), f.PopI32()
		if b == 0 {
			panic(TrapIntegerDivideByZero)
		}
		f.PushI32(a % b)
	case OpI32And:
		b, a := f.PopI32(), f.PopI32()
		f.PushI32(a & b)
	case OpI32Or:
		b, a := f.PopI32(), f.PopI32()
		f.PushI32(a | b)
	case OpI32Xor:
		b, a := f.PopI32(), f.PopI32()
		f.PushI32(a ^ b)
	case OpI32Shl:
		b, a := f.PopI32(), f.PopI32()
		f.PushI32(a << (b & 31))
	case OpI32ShrS:
		b, a := f.PopI32(), int32(f.PopI32())
		f.PushI32(uint32(a >> (b & 31)))
	case OpI32ShrU:
		b, a := f.PopI32(), f.PopI32()
		f.PushI32(a >> (b & 31))
	case OpI32Rotl:
		b, a := f.PopI32(), f.PopI32()
		f.PushI32(bits.RotateLeft32(a, int(b&31)))
	case OpI32Rotr:
		b, a := f.PopI32(), f.PopI32()
		f.PushI32(bits.RotateLeft32(a, -int(b&31)))

	// i64 comparisons
	case OpI64Eqz:
		f.PushI32(b2i(f.PopI64() == 0))
	case OpI64Eq:
		b, a := f.PopI64(), f.PopI64()
		f.PushI32(b2i(a == b))
	case OpI64Ne:
		b, a := f.PopI64(), f.PopI64()
		f.PushI32(b2i(a != b))
	case OpI64LtS:
		b, a := f.PopI64(), f.PopI64()
		f.PushI32(b2i(int64(a) < int64(b)))
	case OpI64LtU:
		b, a := f.PopI64(), f.PopI64()
		f.PushI32(b2i(a < b))
	case OpI64GtS:
		b, a := f.PopI64(), f.PopI64()
		f.PushI32(b2i(int64(a) > int64(b)))
	case OpI64GtU:
		b, a := f.PopI64(), f.PopI64()
		f.PushI32(b2i(a > b))
	case OpI64LeS:
		b, a := f.PopI64(), f.PopI64()
		f.PushI32(b2i(int64(a) <= int64(b)))
	case OpI64LeU:
		b, a := f.PopI64(), f.PopI64()
		f.PushI32(b2i(a <= b))
	case OpI64GeS:
		b, a := f.PopI64(), f.PopI64()
		f.PushI32(b2i(int64(a) >= int64(b)))
	case OpI64GeU:
		b, a := f.PopI64(), f.PopI64()
		f.PushI32(b2i(a >= b))

	// i64 arithmetic
	case OpI64Clz:
		f.PushI64(uint64(bits.LeadingZeros64(f.PopI64())))
	case OpI64Ctz:
		f.PushI64(uint64(bits.TrailingZeros64(f.PopI64())))
	case OpI64Popcnt:
		f.PushI64(uint64(bits.OnesCount64(f.PopI64())))
	case OpI64Add:
		b, a := f.PopI64(), f.PopI64()
		f.PushI64(a + b)
	case OpI64Sub:
		b, a := f.PopI64(), f.PopI64()
		f.PushI64(a - b)
	case OpI64Mul:
		b, a := f.PopI64(), f.PopI64()
		f.PushI64(a * b)
	case OpI64DivS:
		b, a := int64(f.PopI64()), int64(f.PopI64())
		if b == 0 {
			panic(TrapIntegerDivideByZero)
		}
		if a == math.MinInt64 && b == -1 {
			panic(TrapIntegerOverflow)
		}
		f.PushI64(uint64(a / b))
	case OpI64DivU:
		b, a := f.PopI64(), f.PopI64()
		if b == 0 {
			panic(TrapIntegerDivideByZero)
		}
		f.PushI64(a / b)
	case OpI64RemS:
		b, a := int64(f.PopI64()), int64(f.PopI64())
		if b == 0 {
			panic(TrapIntegerDivideByZero)
		}
		if a == math.MinInt64 && b == -1 {
			f.PushI64(0)
		} else {
			f.PushI64(uint64(a % b))
		}
	case OpI64RemU:
		b, a := f.PopI64(), f.PopI64()
		if b == 0 {
			panic(TrapIntegerDivideByZero)
		}
		f.PushI64(a % b)
	case OpI64And:
		b, a := f.PopI64(), f.PopI64()
		f.PushI64(a & b)
	case OpI64Or:
		b, a := f.PopI64(), f.PopI64()
		f.PushI64(a | b)
	case OpI64Xor:
		b, a := f.PopI64(), f.PopI64()
		f.PushI64(a ^ b)
	case OpI64Shl:
		b, a := f.PopI64(), f.PopI64()
		f.PushI64(a << (b & 63))
	case OpI64ShrS:
		b, a := f.PopI64(), int64(f.PopI64())
		f.PushI64(uint64(a >> (b & 63)))
	case OpI64ShrU:
		b, a := f.PopI64(), f.PopI64()
		f.PushI64(a >> (b & 63))
	case OpI64Rotl:
		b, a := f.PopI64(), f.PopI64()
		f.PushI64(bits.RotateLeft64(a, int(b&63)))
	case OpI64Rotr:
		b, a := f.PopI64(), f.PopI64()
		f.PushI64(bits.RotateLeft64(a, -int(b&63)))

	// f32
	case OpF32Eq:
		b, a := popF32(f), popF32(f)
		f.PushI32(b2i(a == b))
	case OpF32Ne:
		b, a := popF32(f), popF32(f)
		f.PushI32(b2i(a != b))
	case OpF32Lt:
		b, a := popF32(f), popF32(f)
		f.PushI32(b2i(a < b))
	case OpF32Gt:
		b, a := popF32(f), popF32(f)
		f.PushI32(b2i(a > b))
	case OpF32Le:
		b, a := popF32(f), popF32(f)
		f.PushI32(b2i(a <= b))
	case OpF32Ge:
		b, a := popF32(f), popF32(f)
		f.PushI32(b2i(a >= b))
	case OpF32Abs:
		pushF32(f, float32(math.Abs(float64(popF32(f)))))
	case OpF32Neg:
		pushF32(f, -popF32(f))
	case OpF32Ceil:
		pushF32(f, float32(math.Ceil(float64(popF32(f)))))
	case OpF32Floor:
		pushF32(f, float32(math.Floor(float64(popF32(f)))))
	case OpF32Trunc:
		pushF32(f, float32(math.Trunc(float64(popF32(f)))))
	case OpF32Nearest:
		pushF32(f, moremath.WasmCompatNearestF32(popF32(f)))
	case OpF32Sqrt:
		pushF32(f, float32(math.Sqrt(float64(popF32(f)))))
	case OpF32Add:
		b, a := popF32(f), popF32(f)
		pushF32(f, a+b)
	case OpF32Sub:
		b, a := popF32(f), popF32(f)
		pushF32(f, a-b)
	case OpF32Mul:
		b, a := popF32(f), popF32(f)
		pushF32(f, a*b)
	case OpF32Div:
		b, a := popF32(f), popF32(f)
		pushF32(f, a/b)
	case OpF32Min:
		b, a := popF32(f), popF32(f)
		pushF32(f, float32(moremath.WasmCompatMin(float64(a), float64(b))))
	case OpF32Max:
		b, a := popF32(f), popF32(f)
		pushF32(f, float32(moremath.WasmCompatMax(float64(a), float64(b))))
	case OpF32Copysign:
		b, a := popF32(f), popF32(f)
		pushF32(f, float32(math.Copysign(float64(a), float64(b))))

	// f64
	case OpF64Eq:
		b, a := popF64(f), popF64(f)
		f.PushI32(b2i(a == b))
	case OpF64Ne:
		b, a := popF64(f), popF64(f)
		f.PushI32(b2i(a != b))
	case OpF64Lt:
		b, a := popF64(f), popF64(f)
		f.PushI32(b2i(a < b))
	case OpF64Gt:
		b, a := popF64(f), popF64(f)
		f.PushI32(b2i(a > b))
	case OpF64Le:
		b, a := popF64(f), popF64(f)
		f.PushI32(b2i(a <= b))
	case OpF64Ge:
		b, a := popF64(f), popF64(f)
		f.PushI32(b2i(a >= b))
	case OpF64Abs:
		pushF64(f, math.Abs(popF64(f)))
	case OpF64Neg:
		pushF64(f, -popF64(f))
	case OpF64Ceil:
		pushF64(f, math.Ceil(popF64(f)))
	case OpF64Floor:
		pushF64(f, math.Floor(popF64(f)))
	case OpF64Trunc:
		pushF64(f, math.Trunc(popF64(f)))
	case OpF64Nearest:
		pushF64(f, moremath.WasmCompatNearestF64(popF64(f)))
	case OpF64Sqrt:
		pushF64(f, math.Sqrt(popF64(f)))
	case OpF64Add:
		b, a := popF64(f), popF64(f)
		pushF64(f, a+b)
	case OpF64Sub:
		b, a := popF64(f), popF64(f)
		pushF64(f, a-b)
	case OpF64Mul:
		b, a := popF64(f), popF64(f)
		pushF64(f, a*b)
	case OpF64Div:
		b, a := popF64(f), popF64(f)
		pushF64(f, a/b)
	case OpF64Min:
		b, a := popF64(f), popF64(f)
		pushF64(f, moremath.WasmCompatMin(a, b))
	case OpF64Max:
		b, a := popF64(f), popF64(f)
		pushF64(f, moremath.WasmCompatMax(a, b))
	case OpF64Copysign:
		b, a := popF64(f), popF64(f)
		pushF64(f, math.Copysign(a, b))

	// conversions / reinterprets
	case OpI32WrapI64:
		f.PushI32(uint32(f.PopI64()))
	case OpI32TruncF32S:
		f.PushI32(uint32(truncToI32(float64(popF32(f)), true)))
	case OpI32TruncF32U:
		f.PushI32(uint32(truncToI32(float64(popF32(f)), false)))
	case OpI32TruncF64S:
		f.PushI32(uint32(truncToI32(popF64(f), true)))
	case OpI32TruncF64U:
		f.PushI32(uint32(truncToI32(popF64(f), false)))
	case OpI64ExtendI32S:
		f.PushI64(uint64(int64(int32(f.PopI32()))))
	case OpI64ExtendI32U:
		f.PushI64(uint64(f.PopI32()))
	case OpI64TruncF32S:
		f.PushI64(truncToI64(float64(popF32(f)), true))
	case OpI64TruncF32U:
		f.PushI64(truncToI64(float64(popF32(f)), false))
	case OpI64TruncF64S:
		f.PushI64(truncToI64(popF64(f), true))
	case OpI64TruncF64U:
		f.PushI64(truncToI64(popF64(f), false))
	case OpF32ConvertI32S:
		pushF32(f, float32(int32(f.PopI32())))
	case OpF32ConvertI32U:
		pushF32(f, float32(f.PopI32()))
	case OpF32ConvertI64S:
		pushF32(f, float32(int64(f.PopI64())))
	case OpF32ConvertI64U:
		pushF32(f, float32(f.PopI64()))
	case OpF32DemoteF64:
		pushF32(f, float32(popF64(f)))
	case OpF64ConvertI32S:
		pushF64(f, float64(int32(f.PopI32())))
	case OpF64ConvertI32U:
		pushF64(f, float64(f.PopI32()))
	case OpF64ConvertI64S:
		pushF64(f, float64(int64(f.PopI64())))
	case OpF64ConvertI64U:
		pushF64(f, float64(f.PopI64()))
	case OpF64PromoteF32:
		pushF64(f, float64(popF32(f)))
	case OpI32ReinterpretF32:
		f.PushI32(f.PopI32())
	case OpI64ReinterpretF64:
		f.PushI64(f.PopI64())
	case OpF32ReinterpretI32:
		f.PushI32(f.PopI32())
	case OpF64ReinterpretI64:
		f.PushI64(f.PopI64())

	// sign-extension proposal
	case OpI32Extend8S:
		f.PushI32(uint32(int32(int8(f.PopI32()))))
	case OpI32Extend16S:
		f.PushI32(uint32(int32(int16(f.PopI32()))))
	case OpI64Extend8S:
		f.PushI64(uint64(int64(int8(f.PopI64()))))
	case OpI64Extend16S:
		f.PushI64(uint64(int64(int16(f.PopI64()))))
	case OpI64Extend32S:
		f.PushI64(uint64(int64(int32(f.PopI64()))))

	// reference types
	case OpRefNull:
		f.IP++ // reftype byte, unused: NullRef is type-independent
		f.PushI32(api.NullRef)
	case OpRefIsNull:
		f.PushI32(b2i(f.PopI32() == api.NullRef))
	case OpRefFunc:
		idx := readU32(code, f)
		f.PushI32(idx)

	case OpMiscPrefix:
		e.execMisc(f, code)

	case OpAtomicPrefix:
		e.execAtomic(f, code)

	default:
		panic(TrapUnsupportedOpcode)
	}
}

func b2i(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func popF32(f *Frame) float32 { return api.DecodeF32(uint64(f.PopI32())) }
func pushF32(f *Frame, v float32) { f.PushI32(uint32(api.EncodeF32(v))) }
func popF64(f *Frame) float64 { return api.DecodeF64(f.PopI64()) }
func pushF64(f *Frame, v float64) { f.PushI64(api.EncodeF64(v)) }

// truncToI32/truncToI64 implement the trapping i32.trunc_f*/i64.trunc_f*
// family (spec.md §4.4): NaN and out-of-range inputs trap rather than
// saturate (that's what the misc-prefixed trunc_sat opcodes are for).
func truncToI32(v float64, signed bool) int32 {
	if math.IsNaN(v) {
		panic(TrapInvalidConversionToInteger)
	}
	t := math.Trunc(v)
	if signed {
		if t < math.MinInt32 || t > math.MaxInt32 {
			panic(TrapIntegerOverflow)
		}
		return int32(t)
	}
	if t < 0 || t > math.MaxUint32 {
		panic(TrapIntegerOverflow)
	}
	return int32(uint32(t))
}

func truncToI64(v float64, signed bool) uint64 {
	if math.IsNaN(v) {
		panic(TrapInvalidConversionToInteger)
	}
	t := math.Trunc(v)
	if signed {
		if t < math.MinInt64 || t >= math.MaxInt64 {
			panic(TrapIntegerOverflow)
		}
		return uint64(int64(t))
	}
	if t < 0 || t >= math.MaxUint64 {
		panic(TrapIntegerOverflow)
	}
	return uint64(t)
}

// truncSatToI32/truncSatToI64 implement the non-trapping conversions
// (spec.md §4.4 Misc: trunc_sat saturates instead of trapping on NaN/range).
func truncSatToI32(v float64, signed bool) int32 {
	if math.IsNaN(v) {
		return 0
	}
	t := math.Trunc(v)
	if signed {
		if t <= math.MinInt32 {
			return math.MinInt32
		}
		if t >= math.MaxInt32 {
			return math.MaxInt32
		}
		return int32(t)
	}
	if t <= 0 {
		return 0
	}
	if t >= math.MaxUint32 {
		return int32(uint32(math.MaxUint32))
	}
	return int32(uint32(t))
}

func truncSatToI64(v float64, signed bool) uint64 {
	if math.IsNaN(v) {
		return 0
	}
	t := math.Trunc(v)
	if signed {
		if t <= math.MinInt64 {
			return uint64(int64(math.MinInt64))
		}
		if t >= math.MaxInt64 {
			return uint64(int64(math.MaxInt64))
		}
		return uint64(int64(t))
	}
	if t <= 0 {
		return 0
	}
	if t >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(t)
}

// execMisc implements the 0xFC-prefixed opcode family: the non-trapping
// trunc_sat conversions, bulk memory operations, and table management
// (spec.md §4.4).
func (e *Executor) execMisc(f *Frame, code []byte) {
	sub, n, err := leb128.DecodeUint32(code, f.IP)
	if err != nil {
		panic(FatalError("interp: malformed misc opcode"))
	}
	f.IP += n

	switch byte(sub) {
	case MiscI32TruncSatF32S:
		f.PushI32(uint32(truncSatToI32(float64(popF32(f)), true)))
	case MiscI32TruncSatF32U:
		f.PushI32(uint32(truncSatToI32(float64(popF32(f)), false)))
	case MiscI32TruncSatF64S:
		f.PushI32(uint32(truncSatToI32(popF64(f), true)))
	case MiscI32TruncSatF64U:
		f.PushI32(uint32(truncSatToI32(popF64(f), false)))
	case MiscI64TruncSatF32S:
		f.PushI64(truncSatToI64(float64(popF32(f)), true))
	case MiscI64TruncSatF32U:
		f.PushI64(truncSatToI64(float64(popF32(f)), false))
	case MiscI64TruncSatF64S:
		f.PushI64(truncSatToI64(popF64(f), true))
	case MiscI64TruncSatF64U:
		f.PushI64(truncSatToI64(popF64(f), false))

	case MiscMemoryInit:
		dataIdx := readU32(code, f)
		f.IP++ // memidx reserved byte
		n := f.PopI32()
		src := f.PopI32()
		dst := f.PopI32()
		seg := e.module.Module.DataSegments[dataIdx]
		if uint64(src)+uint64(n) > uint64(len(seg.Init)) {
			panic(TrapOutOfBoundsMemoryAccess)
		}
		mem := e.mem0()
		dstBuf := storeBytes(mem, int(dst), int(n))
		copy(dstBuf, seg.Init[src:src+n])

	case MiscDataDrop:
		readU32(code, f) // data segment index; no live-drop bookkeeping needed for a Go GC'd slice

	case MiscMemoryCopy:
		f.IP += 2 // two reserved memidx bytes
		n := f.PopI32()
		src := f.PopI32()
		dst := f.PopI32()
		mem := e.mem0()
		if !mem.CopyWithin(int(dst), int(src), int(n)) {
			panic(TrapOutOfBoundsMemoryAccess)
		}

	case MiscMemoryFill:
		f.IP++ // reserved memidx byte
		n := f.PopI32()
		val := byte(f.PopI32())
		dst := f.PopI32()
		mem := e.mem0()
		buf := storeBytes(mem, int(dst), int(n))
		for i := range buf {
			buf[i] = val
		}

	case MiscTableInit:
		elemIdx := readU32(code, f)
		tableIdx := readU32(code, f)
		n := f.PopI32()
		src := f.PopI32()
		dst := f.PopI32()
		seg := e.module.Module.ElementSegments[elemIdx]
		table := e.module.Tables[tableIdx]
		if uint64(src)+uint64(n) > uint64(len(seg.Init)) || uint64(dst)+uint64(n) > uint64(len(table.Elements)) {
			panic(TrapOutOfBoundsMemoryAccess)
		}
		copy(table.Elements[dst:dst+n], seg.Init[src:src+n])

	case MiscElemDrop:
		readU32(code, f)

	case MiscTableCopy:
		dstTableIdx := readU32(code, f)
		srcTableIdx := readU32(code, f)
		n := f.PopI32()
		src := f.PopI32()
		dst := f.PopI32()
		dstTable := e.module.Tables[dstTableIdx]
		srcTable := e.module.Tables[srcTableIdx]
		if uint64(dst)+uint64(n) > uint64(len(dstTable.Elements)) || uint64(src)+uint64(n) > uint64(len(srcTable.Elements)) {
			panic(TrapOutOfBoundsMemoryAccess)
		}
		copy(dstTable.Elements[dst:dst+n], srcTable.Elements[src:src+n])

	case MiscTableGrow:
		tableIdx := readU32(code, f)
		n := f.PopI32()
		val := f.PopI32()
		table := e.module.Tables[tableIdx]
		prev := uint32(len(table.Elements))
		if table.Type.Max != nil && prev+n > *table.Type.Max {
			f.PushI32(0xffff_ffff)
			return
		}
		grown := make([]uint32, prev+n)
		copy(grown, table.Elements)
		for i := prev; i < prev+n; i++ {
			grown[i] = val
		}
		table.Elements = grown
		f.PushI32(prev)

	case MiscTableSize:
		tableIdx := readU32(code, f)
		f.PushI32(uint32(len(e.module.Tables[tableIdx].Elements)))

	case MiscTableFill:
		tableIdx := readU32(code, f)
		n := f.PopI32()
		val := f.PopI32()
		dst := f.PopI32()
		table := e.module.Tables[tableIdx]
		if uint64(dst)+uint64(n) > uint64(len(table.Elements)) {
			panic(TrapOutOfBoundsMemoryAccess)
		}
		for i := dst; i < dst+n; i++ {
			table.Elements[i] = val
		}

	default:
		panic(TrapUnsupportedOpcode)
	}
}

