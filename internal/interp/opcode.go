package interp

// Opcode constants per the WebAssembly 1.0 binary format (spec.md §6): most
// opcodes occupy one byte; the 0xFC (misc/bulk-memory) and 0xFE (atomic)
// prefixes introduce a second opcode byte.
const (
	OpUnreachable byte = 0x00
	OpNop         byte = 0x01
	OpBlock       byte = 0x02
	OpLoop        byte = 0x03
	OpIf          byte = 0x04
	OpElse        byte = 0x05
	OpEnd         byte = 0x0b
	OpBr          byte = 0x0c
	OpBrIf        byte = 0x0d
	OpBrTable     byte = 0x0e
	OpReturn      byte = 0x0f
	OpCall        byte = 0x10
	OpCallIndirect byte = 0x11
	OpReturnCall  byte = 0x12 // tail-call proposal
	OpReturnCallIndirect byte = 0x13

	OpDrop   byte = 0x1a
	OpSelect byte = 0x1b
	OpSelectT byte = 0x1c // select with explicit result types (reference-types)

	OpLocalGet  byte = 0x20
	OpLocalSet  byte = 0x21
	OpLocalTee  byte = 0x22
	OpGlobalGet byte = 0x23
	OpGlobalSet byte = 0x24

	OpTableGet byte = 0x25
	OpTableSet byte = 0x26

	OpI32Load    byte = 0x28
	OpI64Load    byte = 0x29
	OpF32Load    byte = 0x2a
	OpF64Load    byte = 0x2b
	OpI32Load8S  byte = 0x2c
	OpI32Load8U  byte = 0x2d
	OpI32Load16S byte = 0x2e
	OpI32Load16U byte = 0x2f
	OpI64Load8S  byte = 0x30
	OpI64Load8U  byte = 0x31
	OpI64Load16S byte = 0x32
	OpI64Load16U byte = 0x33
	OpI64Load32S byte = 0x34
	OpI64Load32U byte = 0x35
	OpI32Store   byte = 0x36
	OpI64Store   byte = 0x37
	OpF32Store   byte = 0x38
	OpF64Store   byte = 0x39
	OpI32Store8  byte = 0x3a
	OpI32Store16 byte = 0x3b
	OpI64Store8  byte = 0x3c
	OpI64Store16 byte = 0x3d
	OpI64Store32 byte = 0x3e
	OpMemorySize byte = 0x3f
	OpMemoryGrow byte = 0x40

	OpI32Const byte = 0x41
	OpI64Const byte = 0x42
	OpF32Const byte = 0x43
	OpF64Const byte = 0x44

	// i32 comparison / arithmetic
	OpI32Eqz  byte = 0x45
	OpI32Eq   byte = 0x46
	OpI32Ne   byte = 0x47
	OpI32LtS  byte = 0x48
	OpI32LtU  byte = 0x49
	OpI32GtS  byte = 0x4a
	OpI32GtU  byte = 0x4b
	OpI32LeS  byte = 0x4c
	OpI32LeU  byte = 0x4d
	OpI32GeS  byte = 0x4e
	OpI32GeU  byte = 0x4f

	OpI64Eqz byte = 0x50
	OpI64Eq  byte = 0x51
	OpI64Ne  byte = 0x52
	OpI64LtS byte = 0x53
	OpI64LtU byte = 0x54
	OpI64GtS byte = 0x55
	OpI64GtU byte = 0x56
	OpI64LeS byte = 0x57
	OpI64LeU byte = 0x58
	OpI64GeS byte = 0x59
	OpI64GeU byte = 0x5a

	OpF32Eq byte = 0x5b
	OpF32Ne byte = 0x5c
	OpF32Lt byte = 0x5d
	OpF32Gt byte = 0x5e
	OpF32Le byte = 0x5f
	OpF32Ge byte = 0x60

	OpF64Eq byte = 0x61
	OpF64Ne byte = 0x62
	OpF64Lt byte = 0x63
	OpF64Gt byte = 0x64
	OpF64Le byte = 0x65
	OpF64Ge byte = 0x66

	OpI32Clz    byte = 0x67
	OpI32Ctz    byte = 0x68
	OpI32Popcnt byte = 0x69
	OpI32Add    byte = 0x6a
	OpI32Sub    byte = 0x6b
	OpI32Mul    byte = 0x6c
	OpI32DivS   byte = 0x6d
	OpI32DivU   byte = 0x6e
	OpI32RemS   byte = 0x6f
	OpI32RemU   byte = 0x70
	OpI32And    byte = 0x71
	OpI32Or     byte = 0x72
	OpI32Xor    byte = 0x73
	OpI32Shl    byte = 0x74
	OpI32ShrS   byte = 0x75
	OpI32ShrU   byte = 0x76
	OpI32Rotl   byte = 0x77
	OpI32Rotr   byte = 0x78

	OpI64Clz    byte = 0x79
	OpI64Ctz    byte = 0x7a
	OpI64Popcnt byte = 0x7b
	OpI64Add    byte = 0x7c
	OpI64Sub    byte = 0x7d
	OpI64Mul    byte = 0x7e
	OpI64DivS   byte = 0x7f
	OpI64DivU   byte = 0x80
	OpI64RemS   byte = 0x81
	OpI64RemU   byte = 0x82
	OpI64And    byte = 0x83
	OpI64Or     byte = 0x84
	OpI64Xor    byte = 0x85
	OpI64Shl    byte = 0x86
	OpI64ShrS   byte = 0x87
	OpI64ShrU   byte = 0x88
	OpI64Rotl   byte = 0x89
	OpI64Rotr   byte = 0x8a

	OpF32Abs      byte = 0x8b
	OpF32Neg      byte = 0x8c
	OpF32Ceil     byte = 0x8d
	OpF32Floor    byte = 0x8e
	OpF32Trunc    byte = 0x8f
	OpF32Nearest  byte = 0x90
	OpF32Sqrt     byte = 0x91
	OpF32Add      byte = 0x92
	OpF32Sub      byte = 0x93
	OpF32Mul      byte = 0x94
	OpF32Div      byte = 0x95
	OpF32Min      byte = 0x96
	OpF32Max      byte = 0x97
	OpF32Copysign byte = 0x98

	OpF64Abs      byte = 0x99
	OpF64Neg      byte = 0x9a
	OpF64Ceil     byte = 0x9b
	OpF64Floor    byte = 0x9c
	OpF64Trunc    byte = 0x9d
	OpF64Nearest  byte = 0x9e
	OpF64Sqrt     byte = 0x9f
	OpF64Add      byte = 0xa0
	OpF64Sub      byte = 0xa1
	OpF64Mul      byte = 0xa2
	OpF64Div      byte = 0xa3
	OpF64Min      byte = 0xa4
	OpF64Max      byte = 0xa5
	OpF64Copysign byte = 0xa6

	OpI32WrapI64     byte = 0xa7
	OpI32TruncF32S   byte = 0xa8
	OpI32TruncF32U   byte = 0xa9
	OpI32TruncF64S   byte = 0xaa
	OpI32TruncF64U   byte = 0xab
	OpI64ExtendI32S  byte = 0xac
	OpI64ExtendI32U  byte = 0xad
	OpI64TruncF32S   byte = 0xae
	OpI64TruncF32U   byte = 0xaf
	OpI64TruncF64S   byte = 0xb0
	OpI64TruncF64U   byte = 0xb1
	OpF32ConvertI32S byte = 0xb2
	OpF32ConvertI32U byte = 0xb3
	OpF32ConvertI64S byte = 0xb4
	OpF32ConvertI64U byte = 0xb5
	OpF32DemoteF64   byte = 0xb6
	OpF64ConvertI32S byte = 0xb7
	OpF64ConvertI32U byte = 0xb8
	OpF64ConvertI64S byte = 0xb9
	OpF64ConvertI64U byte = 0xba
	OpF64PromoteF32  byte = 0xbb
	OpI32ReinterpretF32 byte = 0xbc
	OpI64ReinterpretF64 byte = 0xbd
	OpF32ReinterpretI32 byte = 0xbe
	OpF64ReinterpretI64 byte = 0xbf

	// sign-extension proposal
	OpI32Extend8S  byte = 0xc0
	OpI32Extend16S byte = 0xc1
	OpI64Extend8S  byte = 0xc2
	OpI64Extend16S byte = 0xc3
	OpI64Extend32S byte = 0xc4

	OpRefNull   byte = 0xd0
	OpRefIsNull byte = 0xd1
	OpRefFunc   byte = 0xd2

	OpMiscPrefix   byte = 0xfc
	OpAtomicPrefix byte = 0xfe
)

// Misc (0xFC-prefixed) sub-opcodes: non-trapping float-to-int + bulk memory
// + reference-types table ops (spec.md §4.4).
const (
	MiscI32TruncSatF32S byte = 0
	MiscI32TruncSatF32U byte = 1
	MiscI32TruncSatF64S byte = 2
	MiscI32TruncSatF64U byte = 3
	MiscI64TruncSatF32S byte = 4
	MiscI64TruncSatF32U byte = 5
	MiscI64TruncSatF64S byte = 6
	MiscI64TruncSatF64U byte = 7

	MiscMemoryInit byte = 8
	MiscDataDrop   byte = 9
	MiscMemoryCopy byte = 10
	MiscMemoryFill byte = 11
	MiscTableInit  byte = 12
	MiscElemDrop   byte = 13
	MiscTableCopy  byte = 14
	MiscTableGrow  byte = 15
	MiscTableSize  byte = 16
	MiscTableFill  byte = 17
)

// Atomic (0xFE-prefixed) sub-opcodes: the full shared-memory proposal
// instruction set (spec.md §4.4 Atomics) — Notify/Wait/Fence, the i32/i64
// load and store groups including their narrow 8/16-bit variants, and the
// seven read-modify-write families (add/sub/and/or/xor/xchg/cmpxchg) each
// spanning i32 full/8/16-bit and i64 full/8/16/32-bit widths.
const (
	AtomicNotify byte = 0x00
	AtomicWait32 byte = 0x01
	AtomicWait64 byte = 0x02
	AtomicFence  byte = 0x03

	AtomicI32Load    byte = 0x10
	AtomicI64Load    byte = 0x11
	AtomicI32Load8U  byte = 0x12
	AtomicI32Load16U byte = 0x13
	AtomicI64Load8U  byte = 0x14
	AtomicI64Load16U byte = 0x15
	AtomicI64Load32U byte = 0x16

	AtomicI32Store    byte = 0x17
	AtomicI64Store    byte = 0x18
	AtomicI32Store8   byte = 0x19
	AtomicI32Store16  byte = 0x1a
	AtomicI64Store8   byte = 0x1b
	AtomicI64Store16  byte = 0x1c
	AtomicI64Store32  byte = 0x1d

	AtomicI32RmwAdd   byte = 0x1e
	AtomicI64RmwAdd   byte = 0x1f
	AtomicI32Rmw8AddU  byte = 0x20
	AtomicI32Rmw16AddU byte = 0x21
	AtomicI64Rmw8AddU  byte = 0x22
	AtomicI64Rmw16AddU byte = 0x23
	AtomicI64Rmw32AddU byte = 0x24

	AtomicI32RmwSub    byte = 0x25
	AtomicI64RmwSub    byte = 0x26
	AtomicI32Rmw8SubU  byte = 0x27
	AtomicI32Rmw16SubU byte = 0x28
	AtomicI64Rmw8SubU  byte = 0x29
	AtomicI64Rmw16SubU byte = 0x2a
	AtomicI64Rmw32SubU byte = 0x2b

	AtomicI32RmwAnd    byte = 0x2c
	AtomicI64RmwAnd    byte = 0x2d
	AtomicI32Rmw8AndU  byte = 0x2e
	AtomicI32Rmw16AndU byte = 0x2f
	AtomicI64Rmw8AndU  byte = 0x30
	AtomicI64Rmw16AndU byte = 0x31
	AtomicI64Rmw32AndU byte = 0x32

	AtomicI32RmwOr    byte = 0x33
	AtomicI64RmwOr    byte = 0x34
	AtomicI32Rmw8OrU  byte = 0x35
	AtomicI32Rmw16OrU byte = 0x36
	AtomicI64Rmw8OrU  byte = 0x37
	AtomicI64Rmw16OrU byte = 0x38
	AtomicI64Rmw32OrU byte = 0x39

	AtomicI32RmwXor    byte = 0x3a
	AtomicI64RmwXor    byte = 0x3b
	AtomicI32Rmw8XorU  byte = 0x3c
	AtomicI32Rmw16XorU byte = 0x3d
	AtomicI64Rmw8XorU  byte = 0x3e
	AtomicI64Rmw16XorU byte = 0x3f
	AtomicI64Rmw32XorU byte = 0x40

	AtomicI32RmwXchg    byte = 0x41
	AtomicI64RmwXchg    byte = 0x42
	AtomicI32Rmw8XchgU  byte = 0x43
	AtomicI32Rmw16XchgU byte = 0x44
	AtomicI64Rmw8XchgU  byte = 0x45
	AtomicI64Rmw16XchgU byte = 0x46
	AtomicI64Rmw32XchgU byte = 0x47

	AtomicI32RmwCmpxchg    byte = 0x48
	AtomicI64RmwCmpxchg    byte = 0x49
	AtomicI32Rmw8CmpxchgU  byte = 0x4a
	AtomicI32Rmw16CmpxchgU byte = 0x4b
	AtomicI64Rmw8CmpxchgU  byte = 0x4c
	AtomicI64Rmw16CmpxchgU byte = 0x4d
	AtomicI64Rmw32CmpxchgU byte = 0x4e
)

// BlockType encodes a block/loop/if immediate (spec.md §6) as a signed
// LEB128 S33: a negative value selects a single value type (0x40, read as
// -64, for void) and a non-negative value is a type index into
// Module.Types.
const BlockTypeVoid byte = 0x40
