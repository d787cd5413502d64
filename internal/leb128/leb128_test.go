package leb128

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeInt32(t *testing.T) {
	for _, v := range []int32{-165675008, -624485, -16256, -4, -1, 0, 1, 4, 16256, 624485, 165675008, math.MaxInt32, math.MinInt32} {
		encoded := EncodeInt32(v)
		decoded, n, err := DecodeInt32(bytes.NewReader(encoded))
		require.NoError(t, err)
		require.Equal(t, v, decoded)
		require.Equal(t, uint64(len(encoded)), n)
	}
}

func TestEncodeDecodeInt64(t *testing.T) {
	for _, v := range []int64{-math.MaxInt32, -165675008, -624485, -1, 0, 1, 624485, math.MaxInt32, math.MaxInt64, math.MinInt64} {
		encoded := EncodeInt64(v)
		decoded, _, err := DecodeInt64(bytes.NewReader(encoded))
		require.NoError(t, err)
		require.Equal(t, v, decoded)
	}
}

func TestEncodeDecodeUint32(t *testing.T) {
	for _, v := range []uint32{0, 1, 4, 16256, 624485, 165675008, math.MaxUint32} {
		encoded := EncodeUint32(v)
		decoded, _, err := DecodeUint32(bytes.NewReader(encoded))
		require.NoError(t, err)
		require.Equal(t, v, decoded)
	}
}

func TestDecodeUint32_Overflow(t *testing.T) {
	// six bytes; the fifth byte (0xff) already carries bits beyond 32.
	overlong := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0x01}
	_, _, err := DecodeUint32(bytes.NewReader(overlong))
	require.ErrorIs(t, err, ErrOverflow32)
}

func TestDecodeUint32_Truncated(t *testing.T) {
	truncated := []byte{0x80, 0x80}
	_, _, err := DecodeUint32(bytes.NewReader(truncated))
	require.Error(t, err)
}
