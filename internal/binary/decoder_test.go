package binary

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/migwasm/migwasm/api"
)

func uleb(v uint32) []byte {
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

func name(s string) []byte {
	return append(uleb(uint32(len(s))), []byte(s)...)
}

// section frames payload as one binary-format section: id byte, varu32 size,
// payload bytes.
func section(id byte, payload []byte) []byte {
	out := []byte{id}
	out = append(out, uleb(uint32(len(payload)))...)
	return append(out, payload...)
}

func vec(n int, items ...[]byte) []byte {
	out := uleb(uint32(n))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func header() []byte {
	return []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
}

func functype(params, results []api.ValueType) []byte {
	out := []byte{0x60}
	out = append(out, uleb(uint32(len(params)))...)
	out = append(out, params...)
	out = append(out, uleb(uint32(len(results)))...)
	out = append(out, results...)
	return out
}

func TestDecodeMinimalModule(t *testing.T) {
	m, err := Decode(header())
	require.NoError(t, err)
	require.Empty(t, m.Functions)
	require.Empty(t, m.Types)
}

func TestDecodeInvalidMagicFails(t *testing.T) {
	bad := append([]byte(nil), header()...)
	bad[0] = 0xff
	_, err := Decode(bad)
	require.Error(t, err)
}

func TestDecodeUnsupportedVersionFails(t *testing.T) {
	bad := append([]byte(nil), header()...)
	bad[4] = 2
	_, err := Decode(bad)
	require.Error(t, err)
}

// TestDecodeAddFunction decodes a single local function (i32,i32)->i32 with
// one local.get/local.get/i32.add body, and checks the loader-computed
// bounds analyze.go fills in.
func TestDecodeAddFunction(t *testing.T) {
	ft := functype([]api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32})
	typeSec := section(sectionType, vec(1, ft))
	funcSec := section(sectionFunction, vec(1, uleb(0)))

	body := []byte{
		0x20, 0x00, // local.get 0
		0x20, 0x01, // local.get 1
		0x6a,       // i32.add
		0x0b,       // end
	}
	code := append(uleb(0), body...) // 0 local-decl groups
	codePayload := append(uleb(uint32(len(code))), code...)
	codeSec := section(sectionCode, vec(1, codePayload))

	raw := append([]byte{}, header()...)
	raw = append(raw, typeSec...)
	raw = append(raw, funcSec...)
	raw = append(raw, codeSec...)

	m, err := Decode(raw)
	require.NoError(t, err)
	require.Len(t, m.Functions, 1)

	fn := m.Functions[0]
	require.Equal(t, uint32(0), fn.Index)
	require.Equal(t, 2, fn.ParamCellNum)
	require.Equal(t, 0, fn.LocalCellNum)
	require.GreaterOrEqual(t, fn.MaxStackCellNum, 2)
	require.Equal(t, body, fn.Code.Body)
}

// TestDecodeImportsPrecedeLocalFunctions checks that an imported function
// occupies index 0 and the locally defined one index 1, with Code nil for
// the import and populated for the local function (spec.md §3 function
// index space: imports first).
func TestDecodeImportsPrecedeLocalFunctions(t *testing.T) {
	ft := functype(nil, []api.ValueType{api.ValueTypeI32})
	typeSec := section(sectionType, vec(1, ft))

	importEntry := append(name("env"), name("get_answer")...)
	importEntry = append(importEntry, api.ExternTypeFunc)
	importEntry = append(importEntry, uleb(0)...)
	importSec := section(sectionImport, vec(1, importEntry))

	funcSec := section(sectionFunction, vec(1, uleb(0)))

	body := []byte{0x41, 0x2a, 0x0b} // i32.const 42; end
	code := append(uleb(0), body...)
	codePayload := append(uleb(uint32(len(code))), code...)
	codeSec := section(sectionCode, vec(1, codePayload))

	raw := append([]byte{}, header()...)
	raw = append(raw, typeSec...)
	raw = append(raw, importSec...)
	raw = append(raw, funcSec...)
	raw = append(raw, codeSec...)

	m, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, 1, m.NumImportedFunctions)
	require.Len(t, m.Functions, 2)

	require.Equal(t, uint32(0), m.Functions[0].Index)
	require.Nil(t, m.Functions[0].Code)
	require.Equal(t, uint32(1), m.Functions[1].Index)
	require.NotNil(t, m.Functions[1].Code)
	require.Equal(t, body, m.Functions[1].Code.Body)
}

// TestDecodeDataCountMismatchFails exercises the data-count/data-section
// cross-check (spec.md §3's bulk-memory data.drop needs an accurate count).
func TestDecodeDataCountMismatchFails(t *testing.T) {
	dataCountSec := section(sectionDataCount, uleb(1))
	raw := append([]byte{}, header()...)
	raw = append(raw, dataCountSec...)

	_, err := Decode(raw)
	require.Error(t, err)
}

// TestDecodeNestedBlocksComputeMaxBlockNum checks analyze.go's control-stack
// depth tracking across nested block/loop scopes (spec.md §3 MaxBlockNum).
func TestDecodeNestedBlocksComputeMaxBlockNum(t *testing.T) {
	ft := functype(nil, nil)
	typeSec := section(sectionType, vec(1, ft))
	funcSec := section(sectionFunction, vec(1, uleb(0)))

	body := []byte{
		0x02, 0x40, // block void
		0x03, 0x40, // loop void
		0x0b, // end loop
		0x0b, // end block
		0x0b, // end function
	}
	code := append(uleb(0), body...)
	codePayload := append(uleb(uint32(len(code))), code...)
	codeSec := section(sectionCode, vec(1, codePayload))

	raw := append([]byte{}, header()...)
	raw = append(raw, typeSec...)
	raw = append(raw, funcSec...)
	raw = append(raw, codeSec...)

	m, err := Decode(raw)
	require.NoError(t, err)
	// the function's own implicit scope + block + loop == 3 deep.
	require.Equal(t, 3, m.Functions[0].MaxBlockNum)
}

func TestDecodeUnrecognizedOpcodeFails(t *testing.T) {
	ft := functype(nil, nil)
	typeSec := section(sectionType, vec(1, ft))
	funcSec := section(sectionFunction, vec(1, uleb(0)))

	// 0xff is not a WebAssembly 1.0 + supported-proposal opcode; analyze.go's
	// bounds pass must reject it rather than silently miscompute bounds.
	body := []byte{0xff, 0x0b}
	code := append(uleb(0), body...)
	codePayload := append(uleb(uint32(len(code))), code...)
	codeSec := section(sectionCode, vec(1, codePayload))

	raw := append([]byte{}, header()...)
	raw = append(raw, typeSec...)
	raw = append(raw, funcSec...)
	raw = append(raw, codeSec...)

	_, err := Decode(raw)
	require.Error(t, err)
}
