package storage

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecs_RoundTrip(t *testing.T) {
	data := make([]byte, testSize)
	copy(data, []byte("SCv0"))
	copy(data[100:], bytes.Repeat([]byte("IPL.CB"), 50))

	for _, ct := range []CompressionType{CompressionNone, CompressionZstd, CompressionS2, CompressionLZ4} {
		t.Run(ct.String(), func(t *testing.T) {
			codec, err := CodecFor(ct)
			require.NoError(t, err)

			compressed, err := codec.Compress(data)
			require.NoError(t, err)
			if ct != CompressionNone {
				assert.Less(t, len(compressed), len(data))
			}

			out, err := codec.Decompress(compressed)
			require.NoError(t, err)
			assert.Equal(t, data, out)
		})
	}
}

func TestParseCompression(t *testing.T) {
	testCases := map[string]CompressionType{
		"":     CompressionNone,
		"none": CompressionNone,
		"zstd": CompressionZstd,
		"s2":   CompressionS2,
		"lz4":  CompressionLZ4,
	}
	for in, want := range testCases {
		got, err := ParseCompression(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseCompression("gzip")
	assert.Error(t, err)

	_, err = CodecFor(CompressionType(0x7F))
	assert.Error(t, err)
	assert.Equal(t, "unknown", CompressionType(0x7F).String())
}

func TestZstd_RejectsGarbage(t *testing.T) {
	codec, err := CodecFor(CompressionZstd)
	require.NoError(t, err)

	_, err = codec.Decompress([]byte("definitely not zstd"))
	assert.Error(t, err)
}
