package stream

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/hwdec/internal/codec"
	apperrors "github.com/zsiec/hwdec/internal/errors"
)

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func ivfFile(frames ...[]byte) []byte {
	header := make([]byte, ivfHeaderSize)
	copy(header, ivfMagic)
	binary.LittleEndian.PutUint16(header[6:8], ivfHeaderSize)
	copy(header[8:12], "AV01")
	binary.LittleEndian.PutUint16(header[12:14], 640)
	binary.LittleEndian.PutUint16(header[14:16], 360)
	binary.LittleEndian.PutUint32(header[16:20], 30) // timebase denominator
	binary.LittleEndian.PutUint32(header[20:24], 1)  // timebase numerator
	binary.LittleEndian.PutUint32(header[24:28], uint32(len(frames)))

	out := header
	for i, frame := range frames {
		fh := make([]byte, ivfFrameHdr)
		binary.LittleEndian.PutUint32(fh[0:4], uint32(len(frame)))
		binary.LittleEndian.PutUint64(fh[4:12], uint64(i))
		out = append(out, fh...)
		out = append(out, frame...)
	}
	return out
}

func TestOpenElementaryProbed(t *testing.T) {
	path := writeTempFile(t, "clip.h264", h264Stream())

	src, err := Open(path, Options{})
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, codec.TypeH264, src.Codec())
}

func TestOpenElementaryForcedCodec(t *testing.T) {
	path := writeTempFile(t, "clip.bin", h264Stream())

	src, err := Open(path, Options{ForcedCodec: codec.TypeH264, EnableDemuxing: true})
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, codec.TypeH264, src.Codec())
}

func TestOpenIVF(t *testing.T) {
	seqOBU := []byte{0x0A, 0x05, 0x08, 0x26, 0x7F, 0x8B, 0x38}
	keyframe := append([]byte{0x12, 0x00}, seqOBU...)
	delta := []byte{0x12, 0x00, 0x32, 0x02, 0xAA, 0xBB}

	path := writeTempFile(t, "clip.ivf", ivfFile(keyframe, delta))

	src, err := Open(path, Options{EnableDemuxing: true})
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, codec.TypeAV1, src.Codec())

	first, err := src.Next()
	require.NoError(t, err)
	assert.True(t, first.Keyframe)
	assert.True(t, first.SeqHeader)
	assert.Equal(t, int64(0), first.PTS)

	second, err := src.Next()
	require.NoError(t, err)
	assert.False(t, second.Keyframe)
	// pts 1 at timebase 1/30 is 33ms
	assert.Equal(t, int64(33), second.PTS)

	_, err = src.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpenIVFWithoutDemuxing(t *testing.T) {
	// With demuxing off the DKIF header is not recognized and the payload
	// does not probe as any supported codec
	path := writeTempFile(t, "clip.ivf", ivfFile([]byte{0x12, 0x00}))

	_, err := Open(path, Options{})
	assert.Error(t, err)
}

func TestOpenIVFForcedCodecMismatch(t *testing.T) {
	path := writeTempFile(t, "clip.ivf", ivfFile([]byte{0x12, 0x00}))

	_, err := Open(path, Options{EnableDemuxing: true, ForcedCodec: codec.TypeH264})
	assert.Error(t, err)
}

func TestOpenErrors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{
			name: "missing file",
			path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing.h264") },
		},
		{
			name: "empty file",
			path: func(t *testing.T) string { return writeTempFile(t, "empty.h264", nil) },
		},
		{
			name: "unrecognized content",
			path: func(t *testing.T) string {
				return writeTempFile(t, "noise.bin", []byte{0xDE, 0xAD, 0xBE, 0xEF, 0xDE, 0xAD})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.path(t), Options{EnableDemuxing: true})
			assert.Error(t, err)
		})
	}
}

func TestOpenTruncatedIVF(t *testing.T) {
	data := ivfFile([]byte{0x12, 0x00, 0x32, 0x02, 0xAA, 0xBB})
	path := writeTempFile(t, "trunc.ivf", data[:len(data)-3])

	src, err := Open(path, Options{EnableDemuxing: true})
	require.NoError(t, err)
	defer src.Close()

	_, err = src.Next()
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
	assert.True(t, apperrors.IsCorruptUnit(err))

	// The truncated tail is consumed: the source must not report the same
	// corruption forever
	_, err = src.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestIVFTruncatedTrailingHeader(t *testing.T) {
	frame := []byte{0x12, 0x00, 0x32, 0x02, 0xAA, 0xBB}
	data := ivfFile(frame)
	// A partial trailing frame header, as left by an interrupted download
	data = append(data, 0x06, 0x00, 0x00)
	path := writeTempFile(t, "tail.ivf", data)

	src, err := Open(path, Options{EnableDemuxing: true})
	require.NoError(t, err)
	defer src.Close()

	first, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, frame, first.Data)

	_, err = src.Next()
	require.Error(t, err)
	assert.True(t, apperrors.IsCorruptUnit(err))

	_, err = src.Next()
	assert.ErrorIs(t, err, io.EOF)
}
