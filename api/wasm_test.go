package api

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueTypeName(t *testing.T) {
	tests := []struct {
		name string
		in   ValueType
		exp  string
	}{
		{"i32", ValueTypeI32, "i32"},
		{"i64", ValueTypeI64, "i64"},
		{"f32", ValueTypeF32, "f32"},
		{"f64", ValueTypeF64, "f64"},
		{"funcref", ValueTypeFuncref, "funcref"},
		{"externref", ValueTypeExternref, "externref"},
		{"unknown", 0x00, "0x0"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.exp, ValueTypeName(tc.in))
		})
	}
}

func TestIsI64(t *testing.T) {
	require.True(t, IsI64(ValueTypeI64))
	require.True(t, IsI64(ValueTypeF64))
	require.False(t, IsI64(ValueTypeI32))
	require.False(t, IsI64(ValueTypeF32))
	require.False(t, IsI64(ValueTypeFuncref))
}

func TestCellsOf(t *testing.T) {
	require.Equal(t, 0, CellsOf(nil))
	require.Equal(t, 1, CellsOf([]ValueType{ValueTypeI32}))
	require.Equal(t, 2, CellsOf([]ValueType{ValueTypeI64}))
	require.Equal(t, 3, CellsOf([]ValueType{ValueTypeI32, ValueTypeI64}))
	require.Equal(t, 4, CellsOf([]ValueType{ValueTypeI64, ValueTypeF64}))
}

func TestEncodeDecodeFloat(t *testing.T) {
	require.Equal(t, float32(1.5), DecodeF32(EncodeF32(1.5)))
	require.Equal(t, float64(-2.25), DecodeF64(EncodeF64(-2.25)))
}
