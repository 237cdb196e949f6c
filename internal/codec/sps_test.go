package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Baseline profile, 320x240, 8-bit 4:2:0, max_num_ref_frames=1
var h264BaselineSPS = []byte{0x67, 0x42, 0x00, 0x1E, 0xF4, 0x0A, 0x0F, 0xC8}

// High profile, 10-bit, 1920x1088 coded with 8 lines cropped to 1080,
// max_num_ref_frames=3
var h264High10SPS = []byte{
	0x67, 0x64, 0x00, 0x28,
	0xA6, 0xCB, 0x20, 0x0F, 0x00, 0x44, 0xFC, 0xA8,
}

// 1920x1080, 8-bit 4:2:0, sps_max_num_reorder_pics=2
var hevcMainSPS = []byte{
	0x42, 0x01,
	0x01,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xA0, 0x03, 0xC0, 0x80, 0x10, 0xE5, 0xC5, 0x78,
}

// seq_profile 0, reduced still picture header, 640x360
var av1SeqOBU = []byte{0x0A, 0x05, 0x08, 0x26, 0x7F, 0x8B, 0x38}

func TestParseH264SPSBaseline(t *testing.T) {
	hdr, err := ParseH264SPS(h264BaselineSPS)
	require.NoError(t, err)

	assert.Equal(t, TypeH264, hdr.Codec)
	assert.Equal(t, 320, hdr.Width)
	assert.Equal(t, 240, hdr.Height)
	assert.Equal(t, 8, hdr.BitDepthLuma)
	assert.Equal(t, 8, hdr.BitDepthChroma)
	assert.Equal(t, Chroma420, hdr.Chroma)
	assert.Equal(t, 1, hdr.MaxReorderFrames)
}

func TestParseH264SPSHigh10(t *testing.T) {
	hdr, err := ParseH264SPS(h264High10SPS)
	require.NoError(t, err)

	assert.Equal(t, 1920, hdr.Width)
	assert.Equal(t, 1080, hdr.Height)
	assert.Equal(t, 10, hdr.BitDepthLuma)
	assert.Equal(t, 10, hdr.BitDepthChroma)
	assert.Equal(t, Chroma420, hdr.Chroma)
	assert.Equal(t, 3, hdr.MaxReorderFrames)
}

func TestParseH264SPSWithoutNALHeader(t *testing.T) {
	hdr, err := ParseH264SPS(h264BaselineSPS[1:])
	require.NoError(t, err)
	assert.Equal(t, 320, hdr.Width)
	assert.Equal(t, 240, hdr.Height)
}

func TestParseH264SPSErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "too short", data: []byte{0x67, 0x42}},
		{name: "truncated", data: h264BaselineSPS[:5]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseH264SPS(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestParseHEVCSPS(t *testing.T) {
	hdr, err := ParseHEVCSPS(hevcMainSPS)
	require.NoError(t, err)

	assert.Equal(t, TypeHEVC, hdr.Codec)
	assert.Equal(t, 1920, hdr.Width)
	assert.Equal(t, 1080, hdr.Height)
	assert.Equal(t, 8, hdr.BitDepthLuma)
	assert.Equal(t, 8, hdr.BitDepthChroma)
	assert.Equal(t, Chroma420, hdr.Chroma)
	assert.Equal(t, 2, hdr.MaxReorderFrames)
}

func TestParseHEVCSPSTruncated(t *testing.T) {
	_, err := ParseHEVCSPS(hevcMainSPS[:10])
	assert.Error(t, err)
}

func TestParseAV1SequenceHeader(t *testing.T) {
	hdr, err := ParseAV1SequenceHeader(av1SeqOBU, 0)
	require.NoError(t, err)

	assert.Equal(t, TypeAV1, hdr.Codec)
	assert.Equal(t, 640, hdr.Width)
	assert.Equal(t, 360, hdr.Height)
	assert.Equal(t, 8, hdr.BitDepthLuma)
	assert.Equal(t, Chroma420, hdr.Chroma)
	assert.Equal(t, 0, hdr.MaxReorderFrames)
}

// Sequence header OBU with timing_info_present_flag set: display tick 1/30,
// equal picture interval, one operating point, 640x360
var av1TimingSeqOBU = []byte{
	0x0A, 0x10,
	0x04, 0x00, 0x00, 0x00, 0x04, 0x00, 0x00, 0x00,
	0x7B, 0x00, 0x00, 0x00, 0x98, 0x9F, 0xEC, 0xE0,
}

func TestParseAV1SequenceHeaderWithTimingInfo(t *testing.T) {
	hdr, err := ParseAV1SequenceHeader(av1TimingSeqOBU, 0)
	require.NoError(t, err)

	assert.Equal(t, TypeAV1, hdr.Codec)
	assert.Equal(t, 640, hdr.Width)
	assert.Equal(t, 360, hdr.Height)
	assert.Equal(t, 8, hdr.BitDepthLuma)
	assert.Equal(t, Chroma420, hdr.Chroma)
}

func TestParseAV1SequenceHeaderBitDepthHint(t *testing.T) {
	hdr, err := ParseAV1SequenceHeader(av1SeqOBU, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, hdr.BitDepthLuma)
	assert.Equal(t, 10, hdr.BitDepthChroma)
}

func TestParseAV1SequenceHeaderErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "forbidden bit", data: []byte{0x8A, 0x05, 0x08}},
		{name: "wrong obu type", data: []byte{0x12, 0x00}},
		{name: "truncated payload", data: av1SeqOBU[:3]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAV1SequenceHeader(tt.data, 0)
			assert.Error(t, err)
		})
	}
}

func TestParseSequenceHeaderDispatch(t *testing.T) {
	tests := []struct {
		name  string
		codec Type
		data  []byte
		width int
	}{
		{name: "h264", codec: TypeH264, data: h264BaselineSPS, width: 320},
		{name: "hevc", codec: TypeHEVC, data: hevcMainSPS, width: 1920},
		{name: "av1", codec: TypeAV1, data: av1SeqOBU, width: 640},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hdr, err := ParseSequenceHeader(tt.codec, tt.data, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.codec, hdr.Codec)
			assert.Equal(t, tt.width, hdr.Width)
		})
	}

	_, err := ParseSequenceHeader(TypeUnknown, h264BaselineSPS, 0)
	assert.Error(t, err)
}

func TestSequenceHeaderToProfile(t *testing.T) {
	hdr, err := ParseHEVCSPS(hevcMainSPS)
	require.NoError(t, err)

	p := hdr.ToProfile()
	require.NoError(t, p.Validate())
	assert.Equal(t, 1920, p.CodedWidth)
	assert.Equal(t, 1080, p.CodedHeight)
	assert.Contains(t, p.Describe(), "DECODE_H265")
	assert.Contains(t, p.Describe(), "[1920, 1080]")
}
