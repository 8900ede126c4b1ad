package binary

import "github.com/migwasm/migwasm/internal/interp"

// Local lowercase aliases for the opcode constants the dispatcher (internal/
// interp) already defines, so the static-analysis pass in analyze.go walks
// exactly the same opcode space the executor dispatches over, without a
// second, possibly-drifting copy of the opcode table (spec.md §6).
const (
	opUnreachable        = interp.OpUnreachable
	opNop                = interp.OpNop
	opBlock              = interp.OpBlock
	opLoop               = interp.OpLoop
	opIf                 = interp.OpIf
	opElse               = interp.OpElse
	opEnd                = interp.OpEnd
	opBr                 = interp.OpBr
	opBrIf               = interp.OpBrIf
	opBrTable            = interp.OpBrTable
	opReturn             = interp.OpReturn
	opCall               = interp.OpCall
	opCallIndirect       = interp.OpCallIndirect
	opReturnCall         = interp.OpReturnCall
	opReturnCallIndirect = interp.OpReturnCallIndirect

	opDrop    = interp.OpDrop
	opSelect  = interp.OpSelect
	opSelectT = interp.OpSelectT

	opLocalGet  = interp.OpLocalGet
	opLocalSet  = interp.OpLocalSet
	opLocalTee  = interp.OpLocalTee
	opGlobalGet = interp.OpGlobalGet
	opGlobalSet = interp.OpGlobalSet
	opTableGet  = interp.OpTableGet
	opTableSet  = interp.OpTableSet

	opI32Load    = interp.OpI32Load
	opI64Load    = interp.OpI64Load
	opF32Load    = interp.OpF32Load
	opF64Load    = interp.OpF64Load
	opI32Load8S  = interp.OpI32Load8S
	opI32Load8U  = interp.OpI32Load8U
	opI32Load16S = interp.OpI32Load16S
	opI32Load16U = interp.OpI32Load16U
	opI64Load8S  = interp.OpI64Load8S
	opI64Load8U  = interp.OpI64Load8U
	opI64Load16S = interp.OpI64Load16S
	opI64Load16U = interp.OpI64Load16U
	opI64Load32S = interp.OpI64Load32S
	opI64Load32U = interp.OpI64Load32U
	opI32Store   = interp.OpI32Store
	opI64Store   = interp.OpI64Store
	opF32Store   = interp.OpF32Store
	opF64Store   = interp.OpF64Store
	opI32Store8  = interp.OpI32Store8
	opI32Store16 = interp.OpI32Store16
	opI64Store8  = interp.OpI64Store8
	opI64Store16 = interp.OpI64Store16
	opI64Store32 = interp.OpI64Store32
	opMemorySize = interp.OpMemorySize
	opMemoryGrow = interp.OpMemoryGrow

	opI32Const = interp.OpI32Const
	opI64Const = interp.OpI64Const
	opF32Const = interp.OpF32Const
	opF64Const = interp.OpF64Const

	opI32Eqz  = interp.OpI32Eqz
	opI32Eq   = interp.OpI32Eq
	opI32Ne   = interp.OpI32Ne
	opI32LtS  = interp.OpI32LtS
	opI32LtU  = interp.OpI32LtU
	opI32GtS  = interp.OpI32GtS
	opI32GtU  = interp.OpI32GtU
	opI32LeS  = interp.OpI32LeS
	opI32LeU  = interp.OpI32LeU
	opI32GeS  = interp.OpI32GeS
	opI32GeU  = interp.OpI32GeU

	opI64Eqz = interp.OpI64Eqz
	opI64Eq  = interp.OpI64Eq
	opI64Ne  = interp.OpI64Ne
	opI64LtS = interp.OpI64LtS
	opI64LtU = interp.OpI64LtU
	opI64GtS = interp.OpI64GtS
	opI64GtU = interp.OpI64GtU
	opI64LeS = interp.OpI64LeS
	opI64LeU = interp.OpI64LeU
	opI64GeS = interp.OpI64GeS
	opI64GeU = interp.OpI64GeU

	opF32Eq = interp.OpF32Eq
	opF32Ne = interp.OpF32Ne
	opF32Lt = interp.OpF32Lt
	opF32Gt = interp.OpF32Gt
	opF32Le = interp.OpF32Le
	opF32Ge = interp.OpF32Ge

	opF64Eq = interp.OpF64Eq
	opF64Ne = interp.OpF64Ne
	opF64Lt = interp.OpF64Lt
	opF64Gt = interp.OpF64Gt
	opF64Le = interp.OpF64Le
	opF64Ge = interp.OpF64Ge

	opI32Clz    = interp.OpI32Clz
	opI32Ctz    = interp.OpI32Ctz
	opI32Popcnt = interp.OpI32Popcnt
	opI32Add    = interp.OpI32Add
	opI32Sub    = interp.OpI32Sub
	opI32Mul    = interp.OpI32Mul
	opI32DivS   = interp.OpI32DivS
	opI32DivU   = interp.OpI32DivU
	opI32RemS   = interp.OpI32RemS
	opI32RemU   = interp.OpI32RemU
	opI32And    = interp.OpI32And
	opI32Or     = interp.OpI32Or
	opI32Xor    = interp.OpI32Xor
	opI32Shl    = interp.OpI32Shl
	opI32ShrS   = interp.OpI32ShrS
	opI32ShrU   = interp.OpI32ShrU
	opI32Rotl   = interp.OpI32Rotl
	opI32Rotr   = interp.OpI32Rotr

	opI64Clz    = interp.OpI64Clz
	opI64Ctz    = interp.OpI64Ctz
	opI64Popcnt = interp.OpI64Popcnt
	opI64Add    = interp.OpI64Add
	opI64Sub    = interp.OpI64Sub
	opI64Mul    = interp.OpI64Mul
	opI64DivS   = interp.OpI64DivS
	opI64DivU   = interp.OpI64DivU
	opI64RemS   = interp.OpI64RemS
	opI64RemU   = interp.OpI64RemU
	opI64And    = interp.OpI64And
	opI64Or     = interp.OpI64Or
	opI64Xor    = interp.OpI64Xor
	opI64Shl    = interp.OpI64Shl
	opI64ShrS   = interp.OpI64ShrS
	opI64ShrU   = interp.OpI64ShrU
	opI64Rotl   = interp.OpI64Rotl
	opI64Rotr   = interp.OpI64Rotr

	opF32Abs      = interp.OpF32Abs
	opF32Neg      = interp.OpF32Neg
	opF32Ceil     = interp.OpF32Ceil
	opF32Floor    = interp.OpF32Floor
	opF32Trunc    = interp.OpF32Trunc
	opF32Nearest  = interp.OpF32Nearest
	opF32Sqrt     = interp.OpF32Sqrt
	opF32Add      = interp.OpF32Add
	opF32Sub      = interp.OpF32Sub
	opF32Mul      = interp.OpF32Mul
	opF32Div      = interp.OpF32Div
	opF32Min      = interp.OpF32Min
	opF32Max      = interp.OpF32Max
	opF32Copysign = interp.OpF32Copysign

	opF64Abs      = interp.OpF64Abs
	opF64Neg      = interp.OpF64Neg
	opF64Ceil     = interp.OpF64Ceil
	opF64Floor    = interp.OpF64Floor
	opF64Trunc    = interp.OpF64Trunc
	opF64Nearest  = interp.OpF64Nearest
	opF64Sqrt     = interp.OpF64Sqrt
	opF64Add      = interp.OpF64Add
	opF64Sub      = interp.OpF64Sub
	opF64Mul      = interp.OpF64Mul
	opF64Div      = interp.OpF64Div
	opF64Min      = interp.OpF64Min
	opF64Max      = interp.OpF64Max
	opF64Copysign = interp.OpF64Copysign

	opI32WrapI64        = interp.OpI32WrapI64
	opI32TruncF32S      = interp.OpI32TruncF32S
	opI32TruncF32U      = interp.OpI32TruncF32U
	opI32TruncF64S      = interp.OpI32TruncF64S
	opI32TruncF64U      = interp.OpI32TruncF64U
	opI64ExtendI32S     = interp.OpI64ExtendI32S
	opI64ExtendI32U     = interp.OpI64ExtendI32U
	opI64TruncF32S      = interp.OpI64TruncF32S
	opI64TruncF32U      = interp.OpI64TruncF32U
	opI64TruncF64S      = interp.OpI64TruncF64S
	opI64TruncF64U      = interp.OpI64TruncF64U
	opF32ConvertI32S    = interp.OpF32ConvertI32S
	opF32ConvertI32U    = interp.OpF32ConvertI32U
	opF32ConvertI64S    = interp.OpF32ConvertI64S
	opF32ConvertI64U    = interp.OpF32ConvertI64U
	opF32DemoteF64      = interp.OpF32DemoteF64
	opF64ConvertI32S    = interp.OpF64ConvertI32S
	opF64ConvertI32U    = interp.OpF64ConvertI32U
	opF64ConvertI64S    = interp.OpF64ConvertI64S
	opF64ConvertI64U    = interp.OpF64ConvertI64U
	opF64PromoteF32     = interp.OpF64PromoteF32
	opI32ReinterpretF32 = interp.OpI32ReinterpretF32
	opI64ReinterpretF64 = interp.OpI64ReinterpretF64
	opF32ReinterpretI32 = interp.OpF32ReinterpretI32
	opF64ReinterpretI64 = interp.OpF64ReinterpretI64

	opI32Extend8S  = interp.OpI32Extend8S
	opI32Extend16S = interp.OpI32Extend16S
	opI64Extend8S  = interp.OpI64Extend8S
	opI64Extend16S = interp.OpI64Extend16S
	opI64Extend32S = interp.OpI64Extend32S

	opRefNull   = interp.OpRefNull
	opRefIsNull = interp.OpRefIsNull
	opRefFunc   = interp.OpRefFunc

	opMiscPrefix   = interp.OpMiscPrefix
	opAtomicPrefix = interp.OpAtomicPrefix

	miscI32TruncSatF32S = interp.MiscI32TruncSatF32S
	miscI32TruncSatF32U = interp.MiscI32TruncSatF32U
	miscI32TruncSatF64S = interp.MiscI32TruncSatF64S
	miscI32TruncSatF64U = interp.MiscI32TruncSatF64U
	miscI64TruncSatF32S = interp.MiscI64TruncSatF32S
	miscI64TruncSatF32U = interp.MiscI64TruncSatF32U
	miscI64TruncSatF64S = interp.MiscI64TruncSatF64S
	miscI64TruncSatF64U = interp.MiscI64TruncSatF64U
	miscMemoryInit      = interp.MiscMemoryInit
	miscDataDrop        = interp.MiscDataDrop
	miscMemoryCopy      = interp.MiscMemoryCopy
	miscMemoryFill      = interp.MiscMemoryFill
	miscTableInit       = interp.MiscTableInit
	miscElemDrop        = interp.MiscElemDrop
	miscTableCopy       = interp.MiscTableCopy
	miscTableGrow       = interp.MiscTableGrow
	miscTableSize       = interp.MiscTableSize
	miscTableFill       = interp.MiscTableFill

	atomicNotify = interp.AtomicNotify
	atomicWait32 = interp.AtomicWait32
	atomicWait64 = interp.AtomicWait64
	atomicFence  = interp.AtomicFence

	atomicI32Load    = interp.AtomicI32Load
	atomicI64Load    = interp.AtomicI64Load
	atomicI32Load8U  = interp.AtomicI32Load8U
	atomicI32Load16U = interp.AtomicI32Load16U
	atomicI64Load8U  = interp.AtomicI64Load8U
	atomicI64Load16U = interp.AtomicI64Load16U
	atomicI64Load32U = interp.AtomicI64Load32U

	atomicI32Store   = interp.AtomicI32Store
	atomicI64Store   = interp.AtomicI64Store
	atomicI32Store8  = interp.AtomicI32Store8
	atomicI32Store16 = interp.AtomicI32Store16
	atomicI64Store8  = interp.AtomicI64Store8
	atomicI64Store16 = interp.AtomicI64Store16
	atomicI64Store32 = interp.AtomicI64Store32

	atomicI32RmwAdd    = interp.AtomicI32RmwAdd
	atomicI64RmwAdd    = interp.AtomicI64RmwAdd
	atomicI32Rmw8AddU  = interp.AtomicI32Rmw8AddU
	atomicI32Rmw16AddU = interp.AtomicI32Rmw16AddU
	atomicI64Rmw8AddU  = interp.AtomicI64Rmw8AddU
	atomicI64Rmw16AddU = interp.AtomicI64Rmw16AddU
	atomicI64Rmw32AddU = interp.AtomicI64Rmw32AddU

	atomicI32RmwSub    = interp.AtomicI32RmwSub
	atomicI64RmwSub    = interp.AtomicI64RmwSub
	atomicI32Rmw8SubU  = interp.AtomicI32Rmw8SubU
	atomicI32Rmw16SubU = interp.AtomicI32Rmw16SubU
	atomicI64Rmw8SubU  = interp.AtomicI64Rmw8SubU
	atomicI64Rmw16SubU = interp.AtomicI64Rmw16SubU
	atomicI64Rmw32SubU = interp.AtomicI64Rmw32SubU

	atomicI32RmwAnd    = interp.AtomicI32RmwAnd
	atomicI64RmwAnd    = interp.AtomicI64RmwAnd
	atomicI32Rmw8AndU  = interp.AtomicI32Rmw8AndU
	atomicI32Rmw16AndU = interp.AtomicI32Rmw16AndU
	atomicI64Rmw8AndU  = interp.AtomicI64Rmw8AndU
	atomicI64Rmw16AndU = interp.AtomicI64Rmw16AndU
	atomicI64Rmw32AndU = interp.AtomicI64Rmw32AndU

	atomicI32RmwOr    = interp.AtomicI32RmwOr
	atomicI64RmwOr    = interp.AtomicI64RmwOr
	atomicI32Rmw8OrU  = interp.AtomicI32Rmw8OrU
	atomicI32Rmw16OrU = interp.AtomicI32Rmw16OrU
	atomicI64Rmw8OrU  = interp.AtomicI64Rmw8OrU
	atomicI64Rmw16OrU = interp.AtomicI64Rmw16OrU
	atomicI64Rmw32OrU = interp.AtomicI64Rmw32OrU

	atomicI32RmwXor    = interp.AtomicI32RmwXor
	atomicI64RmwXor    = interp.AtomicI64RmwXor
	atomicI32Rmw8XorU  = interp.AtomicI32Rmw8XorU
	atomicI32Rmw16XorU = interp.AtomicI32Rmw16XorU
	atomicI64Rmw8XorU  = interp.AtomicI64Rmw8XorU
	atomicI64Rmw16XorU = interp.AtomicI64Rmw16XorU
	atomicI64Rmw32XorU = interp.AtomicI64Rmw32XorU

	atomicI32RmwXchg    = interp.AtomicI32RmwXchg
	atomicI64RmwXchg    = interp.AtomicI64RmwXchg
	atomicI32Rmw8XchgU  = interp.AtomicI32Rmw8XchgU
	atomicI32Rmw16XchgU = interp.AtomicI32Rmw16XchgU
	atomicI64Rmw8XchgU  = interp.AtomicI64Rmw8XchgU
	atomicI64Rmw16XchgU = interp.AtomicI64Rmw16XchgU
	atomicI64Rmw32XchgU = interp.AtomicI64Rmw32XchgU

	atomicI32RmwCmpxchg    = interp.AtomicI32RmwCmpxchg
	atomicI64RmwCmpxchg    = interp.AtomicI64RmwCmpxchg
	atomicI32Rmw8CmpxchgU  = interp.AtomicI32Rmw8CmpxchgU
	atomicI32Rmw16CmpxchgU = interp.AtomicI32Rmw16CmpxchgU
	atomicI64Rmw8CmpxchgU  = interp.AtomicI64Rmw8CmpxchgU
	atomicI64Rmw16CmpxchgU = interp.AtomicI64Rmw16CmpxchgU
	atomicI64Rmw32CmpxchgU = interp.AtomicI64Rmw32CmpxchgU
)
