package stream

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/zsiec/hwdec/internal/codec"
	"github.com/zsiec/hwdec/internal/errors"
	"github.com/zsiec/hwdec/internal/metrics"
)

// IVF container reader (DKIF). Each frame record is a 12-byte header (32-bit
// payload size, 64-bit timestamp) followed by one temporal unit.

const (
	ivfMagic      = "DKIF"
	ivfHeaderSize = 32
	ivfFrameHdr   = 12
)

type ivfSource struct {
	data      []byte
	offset    int
	timeScale uint32
	timeRate  uint32
	closed    bool
}

func newIVFSource(data []byte, opts Options) (*ivfSource, error) {
	if len(data) < ivfHeaderSize {
		return nil, errors.NewStreamOpenError(fmt.Sprintf("IVF header truncated: %d bytes", len(data)))
	}

	headerSize := binary.LittleEndian.Uint16(data[6:8])
	if int(headerSize) < ivfHeaderSize || int(headerSize) > len(data) {
		return nil, errors.NewStreamOpenError(fmt.Sprintf("invalid IVF header size: %d", headerSize))
	}

	fourcc := string(data[8:12])
	if fourcc != "AV01" {
		return nil, errors.NewStreamOpenError(fmt.Sprintf("unsupported IVF codec fourcc: %s", fourcc))
	}

	if opts.ForcedCodec.IsValid() && opts.ForcedCodec != codec.TypeAV1 {
		return nil, errors.NewStreamOpenError(fmt.Sprintf(
			"forced codec %s does not match IVF content AV01", opts.ForcedCodec))
	}

	return &ivfSource{
		data:      data,
		offset:    int(headerSize),
		timeRate:  binary.LittleEndian.Uint32(data[16:20]),
		timeScale: binary.LittleEndian.Uint32(data[20:24]),
	}, nil
}

func (s *ivfSource) Codec() codec.Type {
	return codec.TypeAV1
}

func (s *ivfSource) Next() (*AccessUnit, error) {
	if s.closed || s.offset >= len(s.data) {
		return nil, io.EOF
	}

	if s.offset+ivfFrameHdr > len(s.data) {
		// A truncated tail record cannot be framed; consume the remainder so
		// the next call reports end of stream instead of repeating the error
		off := s.offset
		s.offset = len(s.data)
		return nil, errors.NewCorruptUnitError(fmt.Sprintf(
			"truncated IVF frame header at offset %d", off))
	}

	size := int(binary.LittleEndian.Uint32(s.data[s.offset : s.offset+4]))
	pts := int64(binary.LittleEndian.Uint64(s.data[s.offset+4 : s.offset+12]))
	s.offset += ivfFrameHdr

	if s.offset+size > len(s.data) {
		off := s.offset
		s.offset = len(s.data)
		return nil, errors.NewCorruptUnitError(fmt.Sprintf(
			"truncated IVF frame payload: need %d bytes at offset %d", size, off))
	}

	payload := s.data[s.offset : s.offset+size]
	s.offset += size

	ptsMs := pts
	if s.timeRate > 0 {
		ptsMs = pts * 1000 * int64(s.timeScale) / int64(s.timeRate)
	}

	au := &AccessUnit{
		Data:      payload,
		PTS:       ptsMs,
		DTS:       ptsMs,
		Keyframe:  codec.IsKeyframe(codec.TypeAV1, payload),
		SeqHeader: codec.ExtractSequenceHeader(codec.TypeAV1, payload) != nil,
	}

	metrics.IncrementSourceAccessUnits("ivf")
	return au, nil
}

func (s *ivfSource) Close() error {
	s.closed = true
	s.data = nil
	return nil
}
