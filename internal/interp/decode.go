package interp

import "github.com/migwasm/migwasm/internal/leb128"

// skipBlockType advances past a block/loop/if type immediate (a signed
// LEB128 S33 per the WebAssembly binary format: negative values select a
// void/value-type sentinel, non-negative values index Module.Types). The
// block-address cache only needs the byte length, not the decoded value.
func skipBlockType(code []byte, pos int) int {
	_, n, err := leb128.DecodeInt64(code, pos)
	if err != nil {
		panic(FatalError("interp: malformed block type"))
	}
	return pos + n
}

// scanBlockEnds walks the body of a block/loop/if starting right after its
// type immediate, returning the byte offset of its matching else marker (0
// if none) and the offset of its matching end marker (spec.md §4.3's
// else/end address cache is populated from this on first encounter of a
// given block).
func scanBlockEnds(code []byte, pos int) (elseAddr, end int) {
	depth := 0
	for pos < len(code) {
		op := code[pos]
		pos++
		switch op {
		case OpBlock, OpLoop, OpIf:
			pos = skipBlockType(code, pos)
			depth++
		case OpElse:
			if depth == 0 {
				elseAddr = pos - 1
			}
		case OpEnd:
			if depth == 0 {
				return elseAddr, pos - 1
			}
			depth--
		default:
			pos = skipImmediate(code, pos, op)
		}
	}
	panic(FatalError("interp: unterminated block"))
}

func leb(code []byte, pos int) int {
	_, n, err := leb128.DecodeUint32(code, pos)
	if err != nil {
		panic(FatalError("interp: malformed LEB128 immediate"))
	}
	return pos + n
}

// skipImmediate advances pos past op's immediate operand(s), for every
// opcode that carries one (spec.md §6). Opcodes with no immediate (the
// numeric/comparison/conversion families, drop, select, control markers
// handled by the caller) fall through unchanged.
func skipImmediate(code []byte, pos int, op byte) int {
	switch op {
	case OpBr, OpBrIf, OpCall, OpLocalGet, OpLocalSet, OpLocalTee,
		OpGlobalGet, OpGlobalSet, OpTableGet, OpTableSet, OpRefFunc,
		OpReturnCall:
		return leb(code, pos)

	case OpCallIndirect, OpReturnCallIndirect:
		pos = leb(code, pos)
		return leb(code, pos)

	case OpBrTable:
		count, n, err := leb128.DecodeUint32(code, pos)
		if err != nil {
			panic(FatalError("interp: malformed br_table"))
		}
		pos += n
		for i := uint32(0); i <= count; i++ {
			pos = leb(code, pos)
		}
		return pos

	case OpI32Load, OpI64Load, OpF32Load, OpF64Load,
		OpI32Load8S, OpI32Load8U, OpI32Load16S, OpI32Load16U,
		OpI64Load8S, OpI64Load8U, OpI64Load16S, OpI64Load16U, OpI64Load32S, OpI64Load32U,
		OpI32Store, OpI64Store, OpF32Store, OpF64Store,
		OpI32Store8, OpI32Store16, OpI64Store8, OpI64Store16, OpI64Store32:
		pos = leb(code, pos)
		return leb(code, pos)

	case OpMemorySize, OpMemoryGrow, OpRefNull:
		return pos + 1

	case OpI32Const:
		_, n, err := leb128.DecodeInt32(code, pos)
		if err != nil {
			panic(FatalError("interp: malformed i32.const"))
		}
		return pos + n

	case OpI64Const:
		_, n, err := leb128.DecodeInt64(code, pos)
		if err != nil {
			panic(FatalError("interp: malformed i64.const"))
		}
		return pos + n

	case OpF32Const:
		return pos + 4

	case OpF64Const:
		return pos + 8

	case OpSelectT:
		count, n, err := leb128.DecodeUint32(code, pos)
		if err != nil {
			panic(FatalError("interp: malformed select"))
		}
		return pos + n + int(count)

	case OpMiscPrefix:
		sub, n, err := leb128.DecodeUint32(code, pos)
		if err != nil {
			panic(FatalError("interp: malformed misc opcode"))
		}
		pos += n
		switch byte(sub) {
		case MiscI32TruncSatF32S, MiscI32TruncSatF32U, MiscI32TruncSatF64S, MiscI32TruncSatF64U,
			MiscI64TruncSatF32S, MiscI64TruncSatF32U, MiscI64TruncSatF64S, MiscI64TruncSatF64U:
			return pos
		case MiscMemoryInit, MiscTableInit, MiscTableCopy:
			pos = leb(code, pos)
			return leb(code, pos)
		case MiscDataDrop, MiscElemDrop, MiscTableGrow, MiscTableSize, MiscTableFill:
			return leb(code, pos)
		case MiscMemoryCopy:
			pos = leb(code, pos)
			return leb(code, pos)
		case MiscMemoryFill:
			return leb(code, pos)
		}
		return pos

	case OpAtomicPrefix:
		sub, n, err := leb128.DecodeUint32(code, pos)
		if err != nil {
			panic(FatalError("interp: malformed atomic opcode"))
		}
		pos += n
		if byte(sub) == AtomicFence {
			return pos + 1
		}
		pos = leb(code, pos)
		return leb(code, pos)
	}
	return pos
}
