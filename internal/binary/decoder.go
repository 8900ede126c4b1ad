// Package binary decodes the WebAssembly 1.0 binary format into an
// internal/wasm.Module (spec.md §3, §6 "Bytecode"). It performs structural
// decoding only: full type-checking validation is out of scope (spec.md
// Non-goals, "full-fidelity binary validation"), matching wazero's own
// split between a permissive decoder and a separate validation pass.
package binary

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"github.com/migwasm/migwasm/api"
	"github.com/migwasm/migwasm/internal/leb128"
	"github.com/migwasm/migwasm/internal/wasm"
)

var magic = [4]byte{0x00, 0x61, 0x73, 0x6d}

const version = uint32(1)

// section ids per the WebAssembly binary format.
const (
	sectionCustom    = 0
	sectionType      = 1
	sectionImport    = 2
	sectionFunction  = 3
	sectionTable     = 4
	sectionMemory    = 5
	sectionGlobal    = 6
	sectionExport    = 7
	sectionStart     = 8
	sectionElement   = 9
	sectionCode      = 10
	sectionData      = 11
	sectionDataCount = 12
)

// decoder walks a byte slice with an explicit cursor, the same buf+pos style
// internal/leb128 and internal/interp use rather than an io.Reader, so a
// whole module can be decoded without intermediate allocations.
type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) byte() (byte, error) {
	if d.pos >= len(d.buf) {
		return 0, errors.New("binary: unexpected EOF")
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) bytes(n int) ([]byte, error) {
	if d.pos+n > len(d.buf) {
		return nil, errors.New("binary: unexpected EOF reading bytes")
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) u32() (uint32, error) {
	if d.pos+4 > len(d.buf) {
		return 0, errors.New("binary: unexpected EOF reading u32")
	}
	v := binary.LittleEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *decoder) varU32() (uint32, error) {
	v, n, err := leb128.DecodeUint32(d.buf, d.pos)
	if err != nil {
		return 0, errors.Wrap(err, "binary: varuint32")
	}
	d.pos += n
	return v, nil
}

func (d *decoder) varI32() (int32, error) {
	v, n, err := leb128.DecodeInt32(d.buf, d.pos)
	if err != nil {
		return 0, errors.Wrap(err, "binary: varint32")
	}
	d.pos += n
	return v, nil
}

func (d *decoder) varI64() (int64, error) {
	v, n, err := leb128.DecodeInt64(d.buf, d.pos)
	if err != nil {
		return 0, errors.Wrap(err, "binary: varint64")
	}
	d.pos += n
	return v, nil
}

func (d *decoder) name() (string, error) {
	n, err := d.varU32()
	if err != nil {
		return "", err
	}
	b, err := d.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *decoder) valueTypeVec() ([]api.ValueType, error) {
	n, err := d.varU32()
	if err != nil {
		return nil, err
	}
	out := make([]api.ValueType, n)
	for i := range out {
		b, err := d.byte()
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func (d *decoder) limits() (min, max uint32, hasMax bool, err error) {
	flag, err := d.byte()
	if err != nil {
		return 0, 0, false, err
	}
	min, err = d.varU32()
	if err != nil {
		return 0, 0, false, err
	}
	if flag == 1 {
		max, err = d.varU32()
		if err != nil {
			return 0, 0, false, err
		}
		hasMax = true
	}
	return min, max, hasMax, nil
}

// Decode parses a complete WebAssembly binary into a wasm.Module, populating
// the loader-computed per-function bounds (ParamCellNum/LocalCellNum/
// MaxStackCellNum/MaxBlockNum, spec.md §3) via the static-analysis pass in
// analyze.go.
func Decode(raw []byte) (*wasm.Module, error) {
	d := &decoder{buf: raw}

	hdr, err := d.bytes(4)
	if err != nil {
		return nil, errors.Wrap(err, "binary: reading magic")
	}
	if [4]byte(hdr) != magic {
		return nil, errors.New("binary: invalid magic number")
	}
	v, err := d.u32()
	if err != nil {
		return nil, errors.Wrap(err, "binary: reading version")
	}
	if v != version {
		return nil, errors.Errorf("binary: unsupported version %d", v)
	}

	m := &wasm.Module{}
	var codeBodies []rawCode
	var dataCount *uint32

	for d.pos < len(d.buf) {
		id, err := d.byte()
		if err != nil {
			return nil, err
		}
		size, err := d.varU32()
		if err != nil {
			return nil, errors.Wrap(err, "binary: reading section size")
		}
		sectionEnd := d.pos + int(size)
		if sectionEnd > len(d.buf) {
			return nil, errors.New("binary: section size overruns module")
		}
		sd := &decoder{buf: d.buf[:sectionEnd], pos: d.pos}

		switch id {
		case sectionCustom:
			// name + opaque bytes; spec.md carries no use for these sections.
		case sectionType:
			if err := decodeTypeSection(sd, m); err != nil {
				return nil, err
			}
		case sectionImport:
			if err := decodeImportSection(sd, m); err != nil {
				return nil, err
			}
		case sectionFunction:
			if err := decodeFunctionSection(sd, m); err != nil {
				return nil, err
			}
		case sectionTable:
			if err := decodeTableSection(sd, m); err != nil {
				return nil, err
			}
		case sectionMemory:
			if err := decodeMemorySection(sd, m); err != nil {
				return nil, err
			}
		case sectionGlobal:
			if err := decodeGlobalSection(sd, m); err != nil {
				return nil, err
			}
		case sectionExport:
			if err := decodeExportSection(sd, m); err != nil {
				return nil, err
			}
		case sectionStart:
			idx, err := sd.varU32()
			if err != nil {
				return nil, err
			}
			m.StartFunctionIndex = &idx
		case sectionElement:
			if err := decodeElementSection(sd, m); err != nil {
				return nil, err
			}
		case sectionDataCount:
			n, err := sd.varU32()
			if err != nil {
				return nil, err
			}
			dataCount = &n
		case sectionCode:
			codeBodies, err = decodeCodeSection(sd)
			if err != nil {
				return nil, err
			}
		case sectionData:
			if err := decodeDataSection(sd, m); err != nil {
				return nil, err
			}
		default:
			return nil, errors.Errorf("binary: unknown section id %d", id)
		}

		d.pos = sectionEnd
	}

	if dataCount != nil && int(*dataCount) != len(m.DataSegments) {
		return nil, errors.New("binary: data count section disagrees with data section")
	}

	if err := attachCode(m, codeBodies); err != nil {
		return nil, err
	}

	for i, fn := range m.Functions {
		fn.Index = uint32(i)
	}

	m.ID = fmt.Sprintf("module-%d-funcs", len(m.Functions))
	return m, nil
}

func decodeTypeSection(d *decoder, m *wasm.Module) error {
	n, err := d.varU32()
	if err != nil {
		return err
	}
	m.Types = make([]*wasm.FunctionType, n)
	for i := range m.Types {
		tag, err := d.byte()
		if err != nil {
			return err
		}
		if tag != 0x60 {
			return errors.Errorf("binary: expected functype tag 0x60, got %#x", tag)
		}
		params, err := d.valueTypeVec()
		if err != nil {
			return err
		}
		results, err := d.valueTypeVec()
		if err != nil {
			return err
		}
		m.Types[i] = wasm.NewFunctionType(params, results)
	}
	return nil
}

func decodeImportSection(d *decoder, m *wasm.Module) error {
	n, err := d.varU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		modName, err := d.name()
		if err != nil {
			return err
		}
		field, err := d.name()
		if err != nil {
			return err
		}
		kind, err := d.byte()
		if err != nil {
			return err
		}
		imp := wasm.Import{Module: modName, Name: field, Type: kind}
		switch kind {
		case api.ExternTypeFunc:
			idx, err := d.varU32()
			if err != nil {
				return err
			}
			imp.DescFunc = idx
			m.NumImportedFunctions++
			m.Functions = append(m.Functions, &wasm.Function{Type: m.Types[idx], DebugName: modName + "." + field})
		case api.ExternTypeTable:
			et, err := d.byte()
			if err != nil {
				return err
			}
			min, max, hasMax, err := d.limits()
			if err != nil {
				return err
			}
			tt := &wasm.TableType{ElemType: et, Min: min}
			if hasMax {
				tt.Max = &max
			}
			imp.DescTable = tt
			m.NumImportedTables++
			m.Tables = append(m.Tables, tt)
		case api.ExternTypeMemory:
			min, max, hasMax, err := d.limits()
			if err != nil {
				return err
			}
			mt := &wasm.MemoryType{Min: min, Max: max, HasMax: hasMax}
			imp.DescMemory = mt
			m.NumImportedMemories++
			m.Memories = append(m.Memories, mt)
		case api.ExternTypeGlobal:
			vt, err := d.byte()
			if err != nil {
				return err
			}
			mutByte, err := d.byte()
			if err != nil {
				return err
			}
			gt := &wasm.GlobalType{ValType: vt, Mutable: mutByte == 1}
			imp.DescGlobal = gt
			m.NumImportedGlobals++
			m.Globals = append(m.Globals, gt)
		default:
			return errors.Errorf("binary: unknown import kind %#x", kind)
		}
		m.Imports = append(m.Imports, imp)
	}
	return nil
}

func decodeFunctionSection(d *decoder, m *wasm.Module) error {
	n, err := d.varU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		idx, err := d.varU32()
		if err != nil {
			return err
		}
		m.Functions = append(m.Functions, &wasm.Function{Type: m.Types[idx]})
	}
	return nil
}

func decodeTableSection(d *decoder, m *wasm.Module) error {
	n, err := d.varU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		et, err := d.byte()
		if err != nil {
			return err
		}
		min, max, hasMax, err := d.limits()
		if err != nil {
			return err
		}
		tt := &wasm.TableType{ElemType: et, Min: min}
		if hasMax {
			tt.Max = &max
		}
		m.Tables = append(m.Tables, tt)
	}
	return nil
}

func decodeMemorySection(d *decoder, m *wasm.Module) error {
	n, err := d.varU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		min, max, hasMax, err := d.limits()
		if err != nil {
			return err
		}
		m.Memories = append(m.Memories, &wasm.MemoryType{Min: min, Max: max, HasMax: hasMax})
	}
	return nil
}

func decodeConstExpr(d *decoder) (wasm.ConstExpr, error) {
	op, err := d.byte()
	if err != nil {
		return wasm.ConstExpr{}, err
	}
	start := d.pos
	switch op {
	case 0x41: // i32.const
		if _, err := d.varI32(); err != nil {
			return wasm.ConstExpr{}, err
		}
	case 0x42: // i64.const
		if _, err := d.varI64(); err != nil {
			return wasm.ConstExpr{}, err
		}
	case 0x43: // f32.const
		if _, err := d.bytes(4); err != nil {
			return wasm.ConstExpr{}, err
		}
	case 0x44: // f64.const
		if _, err := d.bytes(8); err != nil {
			return wasm.ConstExpr{}, err
		}
	case 0x23: // global.get
		if _, err := d.varU32(); err != nil {
			return wasm.ConstExpr{}, err
		}
	default:
		return wasm.ConstExpr{}, errors.Errorf("binary: unsupported const expr opcode %#x", op)
	}
	data := append([]byte(nil), d.buf[start:d.pos]...)
	end, err := d.byte() // 0x0b
	if err != nil {
		return wasm.ConstExpr{}, err
	}
	if end != 0x0b {
		return wasm.ConstExpr{}, errors.New("binary: const expr missing end marker")
	}
	return wasm.ConstExpr{Opcode: op, Data: data}, nil
}

func decodeGlobalSection(d *decoder, m *wasm.Module) error {
	n, err := d.varU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		vt, err := d.byte()
		if err != nil {
			return err
		}
		mutByte, err := d.byte()
		if err != nil {
			return err
		}
		expr, err := decodeConstExpr(d)
		if err != nil {
			return err
		}
		m.Globals = append(m.Globals, &wasm.GlobalType{ValType: vt, Mutable: mutByte == 1})
		m.GlobalInit = append(m.GlobalInit, expr)
	}
	return nil
}

func decodeExportSection(d *decoder, m *wasm.Module) error {
	n, err := d.varU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		nm, err := d.name()
		if err != nil {
			return err
		}
		kind, err := d.byte()
		if err != nil {
			return err
		}
		idx, err := d.varU32()
		if err != nil {
			return err
		}
		m.Exports = append(m.Exports, wasm.Export{Name: nm, Type: kind, Index: idx})
	}
	return nil
}

// decodeElementSection supports the bulk-memory proposal's flag-encoded
// element segment forms 0, 1, 2 and 4, active and passive, for funcref
// tables; any other flag is rejected with an error.
func decodeElementSection(d *decoder, m *wasm.Module) error {
	n, err := d.varU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		flag, err := d.varU32()
		if err != nil {
			return err
		}
		seg := wasm.ElementSegment{}
		switch flag {
		case 0: // active, table 0, expr offset, vec(funcidx)
			expr, err := decodeConstExpr(d)
			if err != nil {
				return err
			}
			seg.OffsetExpr = expr
			if seg.Init, err = d.funcIdxVec(); err != nil {
				return err
			}
		case 1: // passive, elemkind, vec(funcidx)
			seg.Passive = true
			if _, err := d.byte(); err != nil { // elemkind, always 0x00
				return err
			}
			if seg.Init, err = d.funcIdxVec(); err != nil {
				return err
			}
		case 2: // active, explicit table index
			idx, err := d.varU32()
			if err != nil {
				return err
			}
			seg.TableIndex = idx
			expr, err := decodeConstExpr(d)
			if err != nil {
				return err
			}
			seg.OffsetExpr = expr
			if _, err := d.byte(); err != nil {
				return err
			}
			if seg.Init, err = d.funcIdxVec(); err != nil {
				return err
			}
		case 4: // active, table 0, expr offset, vec(expr) -- funcref exprs
			expr, err := decodeConstExpr(d)
			if err != nil {
				return err
			}
			seg.OffsetExpr = expr
			if seg.Init, err = d.exprFuncIdxVec(); err != nil {
				return err
			}
		default:
			return errors.Errorf("binary: unsupported element segment flag %d", flag)
		}
		m.ElementSegments = append(m.ElementSegments, seg)
	}
	return nil
}

func (d *decoder) funcIdxVec() ([]uint32, error) {
	n, err := d.varU32()
	if err != nil {
		return nil, err
	}
	out := make([]uint32, n)
	for i := range out {
		if out[i], err = d.varU32(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// exprFuncIdxVec decodes a vec(expr) where each expr is either ref.func
// $idx end or ref.null end (spec.md treats both tables and elements as
// plain 32-bit indices with api.NullRef for "no function").
func (d *decoder) exprFuncIdxVec() ([]uint32, error) {
	n, err := d.varU32()
	if err != nil {
		return nil, err
	}
	out := make([]uint32, n)
	for i := range out {
		op, err := d.byte()
		if err != nil {
			return nil, err
		}
		switch op {
		case 0xd2: // ref.func
			idx, err := d.varU32()
			if err != nil {
				return nil, err
			}
			out[i] = idx
		case 0xd0: // ref.null
			if _, err := d.byte(); err != nil {
				return nil, err
			}
			out[i] = api.NullRef
		default:
			return nil, errors.Errorf("binary: unsupported element expr opcode %#x", op)
		}
		end, err := d.byte()
		if err != nil {
			return nil, err
		}
		if end != 0x0b {
			return nil, errors.New("binary: element expr missing end marker")
		}
	}
	return out, nil
}

func decodeDataSection(d *decoder, m *wasm.Module) error {
	n, err := d.varU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		flag, err := d.varU32()
		if err != nil {
			return err
		}
		seg := wasm.DataSegment{}
		switch flag {
		case 0:
			expr, err := decodeConstExpr(d)
			if err != nil {
				return err
			}
			seg.OffsetExpr = expr
		case 1:
			seg.Passive = true
		case 2:
			idx, err := d.varU32()
			if err != nil {
				return err
			}
			seg.MemoryIndex = idx
			expr, err := decodeConstExpr(d)
			if err != nil {
				return err
			}
			seg.OffsetExpr = expr
		default:
			return errors.Errorf("binary: unsupported data segment flag %d", flag)
		}
		ln, err := d.varU32()
		if err != nil {
			return err
		}
		init, err := d.bytes(int(ln))
		if err != nil {
			return err
		}
		seg.Init = append([]byte(nil), init...)
		m.DataSegments = append(m.DataSegments, seg)
	}
	return nil
}

// rawCode holds one code-section entry before it is paired with its
// function's type (the function/code index spaces are parallel but decoded
// from separate sections).
type rawCode struct {
	locals []api.ValueType
	body   []byte
}

func decodeCodeSection(d *decoder) ([]rawCode, error) {
	n, err := d.varU32()
	if err != nil {
		return nil, err
	}
	out := make([]rawCode, n)
	for i := range out {
		size, err := d.varU32()
		if err != nil {
			return nil, err
		}
		end := d.pos + int(size)
		localsDeclCount, err := d.varU32()
		if err != nil {
			return nil, err
		}
		var locals []api.ValueType
		for j := uint32(0); j < localsDeclCount; j++ {
			count, err := d.varU32()
			if err != nil {
				return nil, err
			}
			vt, err := d.byte()
			if err != nil {
				return nil, err
			}
			for k := uint32(0); k < count; k++ {
				locals = append(locals, vt)
			}
		}
		body, err := d.bytes(end - d.pos)
		if err != nil {
			return nil, err
		}
		out[i] = rawCode{locals: locals, body: append([]byte(nil), body...)}
	}
	return out, nil
}

// attachCode pairs decoded code-section bodies with their Function entries
// (local functions only, imports never have a Code section counterpart),
// then runs the static-analysis pass (analyze.go) to fill in the
// loader-computed bounds spec.md §3 requires before any Frame can be sized.
func attachCode(m *wasm.Module, bodies []rawCode) error {
	localFuncs := m.Functions[m.NumImportedFunctions:]
	if len(localFuncs) != len(bodies) {
		return errors.Errorf("binary: function section declares %d local functions, code section has %d bodies",
			len(localFuncs), len(bodies))
	}
	for i, fn := range localFuncs {
		fn.Code = &wasm.Code{LocalTypes: bodies[i].locals, Body: bodies[i].body}
		fn.ParamCellNum = fn.Type.ParamCells
		fn.LocalCellNum = api.CellsOf(bodies[i].locals)
		maxStack, maxBlock, err := computeBounds(fn, m)
		if err != nil {
			return errors.Wrapf(err, "binary: analyzing function %d", i+m.NumImportedFunctions)
		}
		fn.MaxStackCellNum = maxStack
		fn.MaxBlockNum = maxBlock
	}
	return nil
}
