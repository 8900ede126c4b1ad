package leb128

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeUint32(t *testing.T) {
	v, n, err := DecodeUint32([]byte{0x00}, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(0), v)
	require.Equal(t, 1, n)

	v, n, err = DecodeUint32([]byte{0xe5, 0x8e, 0x26}, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(624485), v)
	require.Equal(t, 3, n)

	// over-long encoding of zero: still decodes to 0 (spec.md §4.4).
	v, n, err = DecodeUint32([]byte{0x80, 0x80, 0x80, 0x00}, 0)
	require.NoError(t, err)
	require.Equal(t, uint32(0), v)
	require.Equal(t, 4, n)
}

func TestDecodeInt32(t *testing.T) {
	v, n, err := DecodeInt32([]byte{0x7f}, 0)
	require.NoError(t, err)
	require.Equal(t, int32(-1), v)
	require.Equal(t, 1, n)

	v, n, err = DecodeInt32([]byte{0xc0, 0xbb, 0x78}, 0)
	require.NoError(t, err)
	require.Equal(t, int32(-123456), v)
	require.Equal(t, 3, n)
}

func TestDecodeInt64(t *testing.T) {
	v, n, err := DecodeInt64([]byte{0x7f}, 0)
	require.NoError(t, err)
	require.Equal(t, int64(-1), v)
	require.Equal(t, 1, n)
}

func TestDecodeUint32_truncated(t *testing.T) {
	_, _, err := DecodeUint32([]byte{0x80}, 0)
	require.Error(t, err)
}
