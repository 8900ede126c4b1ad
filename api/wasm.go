// Package api includes constants and value encodings shared between the
// interpreter core and anything embedding it.
package api

import (
	"fmt"
	"math"
)

// ExternType classifies imports and exports with their respective types.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#external-types%E2%91%A0
type ExternType = byte

const (
	ExternTypeFunc   ExternType = 0x00
	ExternTypeTable  ExternType = 0x01
	ExternTypeMemory ExternType = 0x02
	ExternTypeGlobal ExternType = 0x03
)

// ValueType describes a numeric type used in Web Assembly 1.0 (20191205),
// plus the reference types added by the reference-types proposal (spec.md
// §1). Function parameters, results and locals are only definable as a
// value type.
//
// Conversions between Wasm and Go:
//
//   - ValueTypeI32 - uint64(uint32,int32)
//   - ValueTypeI64 - uint64(int64)
//   - ValueTypeF32 - EncodeF32 / DecodeF32
//   - ValueTypeF64 - EncodeF64 / DecodeF64
//   - ValueTypeFuncref / ValueTypeExternref - opaque 32-bit handles, widened
//     to uint64 on the operand stack (spec.md §1 Non-goals: no GC types).
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-valtype
type ValueType = byte

const (
	ValueTypeI32 ValueType = 0x7f
	ValueTypeI64 ValueType = 0x7e
	ValueTypeF32 ValueType = 0x7d
	ValueTypeF64 ValueType = 0x7c

	// ValueTypeFuncref is an opaque reference to a function, represented as
	// a 32-bit table index widened to uint64. See CellsOf.
	ValueTypeFuncref ValueType = 0x70
	// ValueTypeExternref is an opaque reference supplied by the embedder.
	ValueTypeExternref ValueType = 0x6f
)

// ValueTypeName returns the WebAssembly text-format name of t, or its
// hexadecimal byte value (for example "0x0") for an unrecognized type.
func ValueTypeName(t ValueType) string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	case ValueTypeFuncref:
		return "funcref"
	case ValueTypeExternref:
		return "externref"
	}
	return fmt.Sprintf("%#x", t)
}

// IsI64 reports whether t occupies two stack cells (spec.md §4.2: tag=1).
// Every other value type occupies exactly one cell (tag=0).
func IsI64(t ValueType) bool {
	return t == ValueTypeI64 || t == ValueTypeF64
}

// CellsOf returns the number of 32-bit cells the given value types occupy
// when laid out consecutively on the operand or locals stack.
func CellsOf(types []ValueType) int {
	n := 0
	for _, t := range types {
		if IsI64(t) {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// EncodeI32 encodes the input as a ValueTypeI32.
func EncodeI32(input int32) uint64 { return uint64(uint32(input)) }

// EncodeI64 encodes the input as a ValueTypeI64.
func EncodeI64(input int64) uint64 { return uint64(input) }

// EncodeF32 encodes the input as a ValueTypeF32. See DecodeF32.
func EncodeF32(input float32) uint64 { return uint64(math.Float32bits(input)) }

// DecodeF32 decodes the input as a ValueTypeF32. See EncodeF32.
func DecodeF32(input uint64) float32 { return math.Float32frombits(uint32(input)) }

// EncodeF64 encodes the input as a ValueTypeF64. See DecodeF64.
func EncodeF64(input float64) uint64 { return math.Float64bits(input) }

// DecodeF64 decodes the input as a ValueTypeF64. See EncodeF64.
func DecodeF64(input uint64) float64 { return math.Float64frombits(input) }

// NullRef is the sentinel table/reference value meaning "no reference", per
// spec.md §4.4 (Reference types): tables hold 32-bit indices with a
// NULL_REF sentinel.
const NullRef uint32 = 0xffff_ffff

// GoFunction is the host-function ABI the dispatcher calls through for
// import invocations (spec.md §2: "invoke_native(function_type, raw_args)
// -> raw_rets"). params and results are raw operand-stack cells, widened to
// uint64, in declaration order.
type GoFunction func(params []uint64) (results []uint64, err error)
