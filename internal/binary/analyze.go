package binary

import (
	"github.com/pkg/errors"

	"github.com/migwasm/migwasm/api"
	"github.com/migwasm/migwasm/internal/leb128"
	"github.com/migwasm/migwasm/internal/wasm"
)

// computeBounds is the loader's static-analysis pass (spec.md §3:
// "the loader precomputes ... MaxStackCellNum ... MaxBlockNum"). It assumes
// the bytecode is already well-formed (spec.md's Non-goals exclude
// full-fidelity validation) and does a single forward pass tracking the
// operand-stack depth in cells and the control-stack nesting depth,
// snapshotting/restoring the cell depth at block boundaries the same way a
// real WebAssembly validator does, since a valid module holds every branch
// target's stack height invariant by construction.
func computeBounds(fn *wasm.Function, m *wasm.Module) (maxStack, maxBlock int, err error) {
	locals := append(append([]api.ValueType(nil), fn.Type.Params...), fn.Code.LocalTypes...)
	a := &analyzer{module: m, code: fn.Code.Body, locals: locals}
	if err := a.walk(); err != nil {
		return 0, 0, err
	}
	// +1 for the implicit function-level control block every Frame carries
	// from the moment it's allocated (Executor.Invoke/doCall push it before
	// a single byte of the body runs), which a.maxBlock doesn't itself count
	// since it only tracks the explicit block/loop/if nesting seen in body.
	return a.maxCells, a.maxBlock + 1, nil
}

type analyzer struct {
	module *wasm.Module
	code   []byte
	pos    int
	locals []api.ValueType

	cells    int
	maxCells int

	// blockSave records the cell depth at each block's entry, so OpElse/
	// OpEnd can restore it (a block's else-branch and its fallthrough both
	// start from the same depth as the block itself).
	blockSave []int
	maxBlock  int
}

func (a *analyzer) apply(pop, push int) {
	a.cells -= pop
	a.cells += push
	if a.cells > a.maxCells {
		a.maxCells = a.cells
	}
}

func (a *analyzer) leb() (uint32, error) {
	v, n, err := leb128.DecodeUint32(a.code, a.pos)
	if err != nil {
		return 0, err
	}
	a.pos += n
	return v, nil
}

func (a *analyzer) blockArity() (popParams, pushResults int, err error) {
	v, n, err := leb128.DecodeInt64(a.code, a.pos)
	if err != nil {
		return 0, 0, err
	}
	a.pos += n
	if v >= 0 {
		ft := a.module.Types[v]
		return ft.ParamCells, ft.ResultCells, nil
	}
	switch v {
	case -64:
		return 0, 0, nil
	case -1, -3, -16, -17:
		return 0, 1, nil
	case -2, -4:
		return 0, 2, nil
	default:
		return 0, 0, errors.New("binary: invalid block type during analysis")
	}
}

func (a *analyzer) pushBlock() {
	a.blockSave = append(a.blockSave, a.cells)
	if len(a.blockSave) > a.maxBlock {
		a.maxBlock = len(a.blockSave)
	}
}

func (a *analyzer) popBlock() {
	a.blockSave = a.blockSave[:len(a.blockSave)-1]
}

func (a *analyzer) walk() error {
	for a.pos < len(a.code) {
		op := a.code[a.pos]
		a.pos++
		if err := a.step(op); err != nil {
			return err
		}
	}
	return nil
}

// step accounts for one opcode's effect on the operand-stack depth. Opcodes
// are grouped by cell-width signature rather than individually, since that
// signature (not the specific operation) is what bounds the stack.
func (a *analyzer) step(op byte) error {
	switch op {
	case opUnreachable, opNop:
	case opBlock, opLoop:
		// params/results stay on the flat operand stack across block entry
		// and exit (only br's arity truncation, handled at runtime by
		// Frame.Branch, actually moves cells); the static pass only needs
		// to skip the type immediate and track nesting depth.
		if _, _, err := a.blockArity(); err != nil {
			return err
		}
		a.pushBlock()
	case opIf:
		if _, _, err := a.blockArity(); err != nil {
			return err
		}
		a.apply(1, 0) // condition
		a.pushBlock()
	case opElse:
		a.cells = a.blockSave[len(a.blockSave)-1]
	case opEnd:
		if len(a.blockSave) > 0 {
			a.popBlock()
		}
	case opBr:
		if _, err := a.leb(); err != nil {
			return err
		}
	case opBrIf:
		if _, err := a.leb(); err != nil {
			return err
		}
		a.apply(1, 0)
	case opBrTable:
		count, err := a.leb()
		if err != nil {
			return err
		}
		for i := uint32(0); i <= count; i++ {
			if _, err := a.leb(); err != nil {
				return err
			}
		}
		a.apply(1, 0)
	case opReturn:
	case opCall:
		idx, err := a.leb()
		if err != nil {
			return err
		}
		ft := a.funcType(idx)
		a.apply(ft.ParamCells, ft.ResultCells)
	case opCallIndirect:
		typeIdx, err := a.leb()
		if err != nil {
			return err
		}
		if _, err := a.leb(); err != nil { // table index
			return err
		}
		a.apply(1, 0) // elem index
		ft := a.module.Types[typeIdx]
		a.apply(ft.ParamCells, ft.ResultCells)
	case opReturnCall:
		idx, err := a.leb()
		if err != nil {
			return err
		}
		ft := a.funcType(idx)
		a.apply(ft.ParamCells, ft.ResultCells)
	case opReturnCallIndirect:
		typeIdx, err := a.leb()
		if err != nil {
			return err
		}
		if _, err := a.leb(); err != nil {
			return err
		}
		a.apply(1, 0)
		ft := a.module.Types[typeIdx]
		a.apply(ft.ParamCells, ft.ResultCells)
	case opDrop:
		// the interpreter's own frame tracks tag-width at runtime; the
		// analyzer pops the narrower (1-cell) width so the tracked depth
		// never falls below the real one and the allocated stack never
		// underestimates.
		a.apply(1, 0)
	case opSelect:
		a.apply(1, 0) // condition; net value effect is pop-one-of-two push-one, width unknown here
		a.apply(2, 1) // pops two cells, pushes one: exact for 1-cell operands, an overestimate for 2-cell ones
	case opSelectT:
		count, err := a.leb()
		if err != nil {
			return err
		}
		a.pos += int(count) // skip the result-type vector itself
		a.apply(1, 0)
		a.apply(2, 1)
	case opLocalGet:
		idx, err := a.leb()
		if err != nil {
			return err
		}
		a.apply(0, a.localCells(idx))
	case opLocalSet:
		idx, err := a.leb()
		if err != nil {
			return err
		}
		a.apply(a.localCells(idx), 0)
	case opLocalTee:
		idx, err := a.leb()
		if err != nil {
			return err
		}
		c := a.localCells(idx)
		a.apply(c, c)
	case opGlobalGet:
		idx, err := a.leb()
		if err != nil {
			return err
		}
		a.apply(0, a.globalCells(idx))
	case opGlobalSet:
		idx, err := a.leb()
		if err != nil {
			return err
		}
		a.apply(a.globalCells(idx), 0)
	case opTableGet:
		if _, err := a.leb(); err != nil {
			return err
		}
		a.apply(1, 1)
	case opTableSet:
		if _, err := a.leb(); err != nil {
			return err
		}
		a.apply(2, 0)
	case opMemorySize:
		a.pos++
		a.apply(0, 1)
	case opMemoryGrow:
		a.pos++
		a.apply(1, 1)
	case opI32Const:
		if _, n, err := leb128.DecodeInt32(a.code, a.pos); err != nil {
			return err
		} else {
			a.pos += n
		}
		a.apply(0, 1)
	case opI64Const:
		if _, n, err := leb128.DecodeInt64(a.code, a.pos); err != nil {
			return err
		} else {
			a.pos += n
		}
		a.apply(0, 2)
	case opF32Const:
		a.pos += 4
		a.apply(0, 1)
	case opF64Const:
		a.pos += 8
		a.apply(0, 2)
	case opRefNull:
		a.pos++ // reftype byte
		a.apply(0, 1)
	case opRefFunc:
		if _, err := a.leb(); err != nil {
			return err
		}
		a.apply(0, 1)
	case opMiscPrefix:
		return a.stepMisc()
	case opAtomicPrefix:
		return a.stepAtomic()
	default:
		return a.stepLoadStoreOrNumeric(op)
	}
	return nil
}

func (a *analyzer) funcType(idx uint32) *wasm.FunctionType {
	return a.module.Functions[idx].Type
}

func (a *analyzer) localCells(idx uint32) int {
	if api.IsI64(a.locals[idx]) {
		return 2
	}
	return 1
}

func (a *analyzer) globalCells(idx uint32) int {
	g := a.module.Globals[idx]
	if g != nil && (g.ValType == 0x7e || g.ValType == 0x7c) {
		return 2
	}
	return 1
}

// stepLoadStoreOrNumeric accounts for the load/store family and the whole
// numeric/comparison/conversion opcode space by width signature.
func (a *analyzer) stepLoadStoreOrNumeric(op byte) error {
	switch op {
	case opI32Load, opF32Load, opI32Load8S, opI32Load8U, opI32Load16S, opI32Load16U:
		return a.memImm(1, 1)
	case opI64Load, opF64Load, opI64Load8S, opI64Load8U, opI64Load16S, opI64Load16U, opI64Load32S, opI64Load32U:
		return a.memImm(1, 2)
	case opI32Store, opF32Store, opI32Store8, opI32Store16:
		return a.memImm(2, 0)
	case opI64Store, opF64Store, opI64Store8, opI64Store16, opI64Store32:
		return a.memImm(3, 0)
	}

	sig, ok := numericSignatures[op]
	if !ok {
		return errors.Errorf("binary: unrecognized opcode %#x during analysis", op)
	}
	a.apply(sig.pop, sig.push)
	return nil
}

func (a *analyzer) memImm(pop, push int) error {
	if _, err := a.leb(); err != nil { // align
		return err
	}
	if _, err := a.leb(); err != nil { // offset
		return err
	}
	a.apply(pop, push)
	return nil
}

type cellSig struct{ pop, push int }

// numericSignatures gives the (pop, push) cell footprint of every opcode
// whose immediate-free operation has a fixed width: i32 ops cost 1 cell per
// operand/result, i64 2 cells, f32/f64 mirror i32/i64 (spec.md §4.2).
var numericSignatures = buildNumericSignatures()

func buildNumericSignatures() map[byte]cellSig {
	m := map[byte]cellSig{}
	unary1 := []byte{opI32Eqz, opI32Clz, opI32Ctz, opI32Popcnt}
	for _, op := range unary1 {
		m[op] = cellSig{1, 1}
	}
	bin1to1 := []byte{
		opI32Eq, opI32Ne, opI32LtS, opI32LtU, opI32GtS, opI32GtU, opI32LeS, opI32LeU, opI32GeS, opI32GeU,
		opI32Add, opI32Sub, opI32Mul, opI32DivS, opI32DivU, opI32RemS, opI32RemU,
		opI32And, opI32Or, opI32Xor, opI32Shl, opI32ShrS, opI32ShrU, opI32Rotl, opI32Rotr,
		opF32Eq, opF32Ne, opF32Lt, opF32Gt, opF32Le, opF32Ge,
	}
	for _, op := range bin1to1 {
		m[op] = cellSig{2, 1}
	}
	unary2 := []byte{opI64Eqz}
	for _, op := range unary2 {
		m[op] = cellSig{2, 1}
	}
	i64UnaryKeep2 := []byte{opI64Clz, opI64Ctz, opI64Popcnt}
	for _, op := range i64UnaryKeep2 {
		m[op] = cellSig{2, 2}
	}
	i64Cmp := []byte{opI64Eq, opI64Ne, opI64LtS, opI64LtU, opI64GtS, opI64GtU, opI64LeS, opI64LeU, opI64GeS, opI64GeU}
	for _, op := range i64Cmp {
		m[op] = cellSig{4, 1}
	}
	i64Bin := []byte{
		opI64Add, opI64Sub, opI64Mul, opI64DivS, opI64DivU, opI64RemS, opI64RemU,
		opI64And, opI64Or, opI64Xor, opI64Shl, opI64ShrS, opI64ShrU, opI64Rotl, opI64Rotr,
	}
	for _, op := range i64Bin {
		m[op] = cellSig{4, 2}
	}
	f32Unary := []byte{opF32Abs, opF32Neg, opF32Ceil, opF32Floor, opF32Trunc, opF32Nearest, opF32Sqrt}
	for _, op := range f32Unary {
		m[op] = cellSig{1, 1}
	}
	f32Bin := []byte{opF32Add, opF32Sub, opF32Mul, opF32Div, opF32Min, opF32Max, opF32Copysign}
	for _, op := range f32Bin {
		m[op] = cellSig{2, 1}
	}
	f64Cmp := []byte{opF64Eq, opF64Ne, opF64Lt, opF64Gt, opF64Le, opF64Ge}
	for _, op := range f64Cmp {
		m[op] = cellSig{4, 1}
	}
	f64Unary := []byte{opF64Abs, opF64Neg, opF64Ceil, opF64Floor, opF64Trunc, opF64Nearest, opF64Sqrt}
	for _, op := range f64Unary {
		m[op] = cellSig{2, 2}
	}
	f64Bin := []byte{opF64Add, opF64Sub, opF64Mul, opF64Div, opF64Min, opF64Max, opF64Copysign}
	for _, op := range f64Bin {
		m[op] = cellSig{4, 2}
	}

	m[opI32WrapI64] = cellSig{2, 1}
	m[opI32TruncF32S] = cellSig{1, 1}
	m[opI32TruncF32U] = cellSig{1, 1}
	m[opI32TruncF64S] = cellSig{2, 1}
	m[opI32TruncF64U] = cellSig{2, 1}
	m[opI64ExtendI32S] = cellSig{1, 2}
	m[opI64ExtendI32U] = cellSig{1, 2}
	m[opI64TruncF32S] = cellSig{1, 2}
	m[opI64TruncF32U] = cellSig{1, 2}
	m[opI64TruncF64S] = cellSig{2, 2}
	m[opI64TruncF64U] = cellSig{2, 2}
	m[opF32ConvertI32S] = cellSig{1, 1}
	m[opF32ConvertI32U] = cellSig{1, 1}
	m[opF32ConvertI64S] = cellSig{2, 1}
	m[opF32ConvertI64U] = cellSig{2, 1}
	m[opF32DemoteF64] = cellSig{2, 1}
	m[opF64ConvertI32S] = cellSig{1, 2}
	m[opF64ConvertI32U] = cellSig{1, 2}
	m[opF64ConvertI64S] = cellSig{2, 2}
	m[opF64ConvertI64U] = cellSig{2, 2}
	m[opF64PromoteF32] = cellSig{1, 2}
	m[opI32ReinterpretF32] = cellSig{1, 1}
	m[opI64ReinterpretF64] = cellSig{2, 2}
	m[opF32ReinterpretI32] = cellSig{1, 1}
	m[opF64ReinterpretI64] = cellSig{2, 2}

	m[opI32Extend8S] = cellSig{1, 1}
	m[opI32Extend16S] = cellSig{1, 1}
	m[opI64Extend8S] = cellSig{2, 2}
	m[opI64Extend16S] = cellSig{2, 2}
	m[opI64Extend32S] = cellSig{2, 2}

	m[opRefIsNull] = cellSig{1, 1}

	return m
}

func (a *analyzer) stepMisc() error {
	sub, err := a.leb()
	if err != nil {
		return err
	}
	switch byte(sub) {
	case miscI32TruncSatF32S, miscI32TruncSatF32U:
		a.apply(1, 1)
	case miscI32TruncSatF64S, miscI32TruncSatF64U:
		a.apply(2, 1)
	case miscI64TruncSatF32S, miscI64TruncSatF32U:
		a.apply(1, 2)
	case miscI64TruncSatF64S, miscI64TruncSatF64U:
		a.apply(2, 2)
	case miscMemoryInit:
		if _, err := a.leb(); err != nil {
			return err
		}
		a.pos++
		a.apply(3, 0)
	case miscDataDrop:
		if _, err := a.leb(); err != nil {
			return err
		}
	case miscMemoryCopy:
		a.pos += 2
		a.apply(3, 0)
	case miscMemoryFill:
		a.pos++
		a.apply(3, 0)
	case miscTableInit:
		if _, err := a.leb(); err != nil {
			return err
		}
		if _, err := a.leb(); err != nil {
			return err
		}
		a.apply(3, 0)
	case miscElemDrop:
		if _, err := a.leb(); err != nil {
			return err
		}
	case miscTableCopy:
		if _, err := a.leb(); err != nil {
			return err
		}
		if _, err := a.leb(); err != nil {
			return err
		}
		a.apply(3, 0)
	case miscTableGrow:
		if _, err := a.leb(); err != nil {
			return err
		}
		a.apply(2, 1)
	case miscTableSize:
		if _, err := a.leb(); err != nil {
			return err
		}
		a.apply(0, 1)
	case miscTableFill:
		if _, err := a.leb(); err != nil {
			return err
		}
		a.apply(3, 0)
	default:
		return errors.Errorf("binary: unrecognized misc opcode %#x during analysis", sub)
	}
	return nil
}

// atomicCellSig gives the (pop, push) cell footprint of an atomic opcode
// that takes a memarg: every variant pops a 1-cell i32 address in addition
// to the value cells named here, matching the narrow/full-width, i32/i64
// load-store-RMW-cmpxchg space execAtomic now dispatches (spec.md §4.4).
type atomicCellSig struct{ valuePop, push int }

var atomicSignatures = buildAtomicSignatures()

func buildAtomicSignatures() map[byte]atomicCellSig {
	m := map[byte]atomicCellSig{}

	loads32 := []byte{atomicI32Load, atomicI32Load8U, atomicI32Load16U}
	for _, op := range loads32 {
		m[op] = atomicCellSig{0, 1}
	}
	loads64 := []byte{atomicI64Load, atomicI64Load8U, atomicI64Load16U, atomicI64Load32U}
	for _, op := range loads64 {
		m[op] = atomicCellSig{0, 2}
	}

	stores32 := []byte{atomicI32Store, atomicI32Store8, atomicI32Store16}
	for _, op := range stores32 {
		m[op] = atomicCellSig{1, 0}
	}
	stores64 := []byte{atomicI64Store, atomicI64Store8, atomicI64Store16, atomicI64Store32}
	for _, op := range stores64 {
		m[op] = atomicCellSig{2, 0}
	}

	rmw32 := []byte{
		atomicI32RmwAdd, atomicI32Rmw8AddU, atomicI32Rmw16AddU,
		atomicI32RmwSub, atomicI32Rmw8SubU, atomicI32Rmw16SubU,
		atomicI32RmwAnd, atomicI32Rmw8AndU, atomicI32Rmw16AndU,
		atomicI32RmwOr, atomicI32Rmw8OrU, atomicI32Rmw16OrU,
		atomicI32RmwXor, atomicI32Rmw8XorU, atomicI32Rmw16XorU,
		atomicI32RmwXchg, atomicI32Rmw8XchgU, atomicI32Rmw16XchgU,
	}
	for _, op := range rmw32 {
		m[op] = atomicCellSig{1, 1}
	}
	rmw64 := []byte{
		atomicI64RmwAdd, atomicI64Rmw8AddU, atomicI64Rmw16AddU, atomicI64Rmw32AddU,
		atomicI64RmwSub, atomicI64Rmw8SubU, atomicI64Rmw16SubU, atomicI64Rmw32SubU,
		atomicI64RmwAnd, atomicI64Rmw8AndU, atomicI64Rmw16AndU, atomicI64Rmw32AndU,
		atomicI64RmwOr, atomicI64Rmw8OrU, atomicI64Rmw16OrU, atomicI64Rmw32OrU,
		atomicI64RmwXor, atomicI64Rmw8XorU, atomicI64Rmw16XorU, atomicI64Rmw32XorU,
		atomicI64RmwXchg, atomicI64Rmw8XchgU, atomicI64Rmw16XchgU, atomicI64Rmw32XchgU,
	}
	for _, op := range rmw64 {
		m[op] = atomicCellSig{2, 2}
	}

	cmpxchg32 := []byte{atomicI32RmwCmpxchg, atomicI32Rmw8CmpxchgU, atomicI32Rmw16CmpxchgU}
	for _, op := range cmpxchg32 {
		m[op] = atomicCellSig{2, 1}
	}
	cmpxchg64 := []byte{atomicI64RmwCmpxchg, atomicI64Rmw8CmpxchgU, atomicI64Rmw16CmpxchgU, atomicI64Rmw32CmpxchgU}
	for _, op := range cmpxchg64 {
		m[op] = atomicCellSig{4, 2}
	}

	return m
}

func (a *analyzer) stepAtomic() error {
	sub, err := a.leb()
	if err != nil {
		return err
	}
	switch byte(sub) {
	case atomicFence:
		a.pos++
		return nil
	case atomicNotify:
		if _, err := a.leb(); err != nil { // align
			return err
		}
		if _, err := a.leb(); err != nil { // offset
			return err
		}
		a.apply(2, 1)
		return nil
	case atomicWait32:
		if _, err := a.leb(); err != nil {
			return err
		}
		if _, err := a.leb(); err != nil {
			return err
		}
		a.apply(4, 1) // addr(1) + expected(1) + timeout(2)
		return nil
	case atomicWait64:
		if _, err := a.leb(); err != nil {
			return err
		}
		if _, err := a.leb(); err != nil {
			return err
		}
		a.apply(5, 1) // addr(1) + expected(2) + timeout(2)
		return nil
	}

	if _, err := a.leb(); err != nil { // align
		return err
	}
	if _, err := a.leb(); err != nil { // offset
		return err
	}
	sig, ok := atomicSignatures[byte(sub)]
	if !ok {
		return errors.Errorf("binary: unrecognized atomic opcode %#x during analysis", sub)
	}
	a.apply(1+sig.valuePop, sig.push) // +1 for the i32 effective address every variant pops
	return nil
}
