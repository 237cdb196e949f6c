package stream

import (
	"bytes"
	"io"

	"github.com/zsiec/hwdec/internal/codec"
	"github.com/zsiec/hwdec/internal/errors"
	"github.com/zsiec/hwdec/internal/metrics"
)

// Elementary bitstream source. Access unit boundaries come only from the
// codec's own syntax: start codes plus picture boundary detection for
// H.264/HEVC, temporal delimiter OBUs for AV1.

type elementarySource struct {
	codecType codec.Type
	units     [][]byte
	pos       int
	closed    bool
}

func newElementarySource(data []byte, c codec.Type) (*elementarySource, error) {
	var units [][]byte
	switch c {
	case codec.TypeH264:
		units = splitH264AccessUnits(data)
	case codec.TypeHEVC:
		units = splitHEVCAccessUnits(data)
	case codec.TypeAV1:
		units = splitAV1TemporalUnits(data)
	}

	if len(units) == 0 {
		return nil, errors.NewStreamOpenError("no access units found in elementary stream")
	}

	return &elementarySource{codecType: c, units: units}, nil
}

func (s *elementarySource) Codec() codec.Type {
	return s.codecType
}

func (s *elementarySource) Next() (*AccessUnit, error) {
	if s.closed || s.pos >= len(s.units) {
		return nil, io.EOF
	}

	data := s.units[s.pos]
	au := &AccessUnit{
		Data: data,
		// No container timing: synthesize a monotonic counter
		PTS:       int64(s.pos),
		DTS:       int64(s.pos),
		Keyframe:  codec.IsKeyframe(s.codecType, data),
		SeqHeader: codec.ExtractSequenceHeader(s.codecType, data) != nil,
	}
	s.pos++

	metrics.IncrementSourceAccessUnits("elementary")
	return au, nil
}

func (s *elementarySource) Close() error {
	s.closed = true
	s.units = nil
	return nil
}

// nalSpan locates one NAL unit inside the stream buffer. start covers the
// full start code (three or four bytes) so access unit slices keep it.
type nalSpan struct {
	start   int
	payload int
}

func scanStartCodes(data []byte) []nalSpan {
	var spans []nalSpan

	off := 0
	for {
		idx := bytes.Index(data[off:], startCode)
		if idx < 0 {
			break
		}

		pos := off + idx
		start := pos
		if start > 0 && data[start-1] == 0x00 {
			start--
		}
		spans = append(spans, nalSpan{start: start, payload: pos + 3})
		off = pos + 3
	}

	return spans
}

var startCode = []byte{0x00, 0x00, 0x01}

func isH264VCL(t uint8) bool {
	return t >= codec.H264NALSlice && t <= codec.H264NALIDR
}

// splitH264AccessUnits groups NAL units into access units. A new unit begins
// at an AUD, at parameter sets or SEI following slice data, or at a slice
// with first_mb_in_slice == 0 once the current unit already holds a slice.
func splitH264AccessUnits(data []byte) [][]byte {
	spans := scanStartCodes(data)
	if len(spans) == 0 {
		return nil
	}

	var aus [][]byte
	auStart := spans[0].start
	seenVCL := false

	for i := 1; i < len(spans); i++ {
		p := data[spans[i].payload:]
		if len(p) == 0 {
			continue
		}
		t := codec.H264NALType(p[0])

		boundary := false
		if seenVCL {
			switch {
			case t == codec.H264NALAUD || t == codec.H264NALSPS ||
				t == codec.H264NALPPS || t == codec.H264NALSEI:
				boundary = true
			case isH264VCL(t) && len(p) > 1 && p[1]&0x80 != 0:
				// first_mb_in_slice ue(v) == 0
				boundary = true
			}
		}

		if boundary {
			aus = append(aus, data[auStart:spans[i].start])
			auStart = spans[i].start
			seenVCL = false
		}
		if isH264VCL(t) {
			seenVCL = true
		}
	}

	aus = append(aus, data[auStart:])
	return aus
}

func isHEVCVCL(t uint8) bool {
	return t <= 31
}

// splitHEVCAccessUnits mirrors the H.264 grouping with HEVC syntax: the
// picture boundary signal is first_slice_segment_in_pic_flag, the first bit
// after the two-byte NAL header.
func splitHEVCAccessUnits(data []byte) [][]byte {
	spans := scanStartCodes(data)
	if len(spans) == 0 {
		return nil
	}

	var aus [][]byte
	auStart := spans[0].start
	seenVCL := false

	for i := 1; i < len(spans); i++ {
		p := data[spans[i].payload:]
		if len(p) < 2 {
			continue
		}
		t := codec.HEVCNALType(p[0])

		boundary := false
		if seenVCL {
			switch {
			case t >= codec.HEVCNALVPS && t <= codec.HEVCNALAUD:
				boundary = true
			case isHEVCVCL(t) && len(p) > 2 && p[2]&0x80 != 0:
				boundary = true
			}
		}

		if boundary {
			aus = append(aus, data[auStart:spans[i].start])
			auStart = spans[i].start
			seenVCL = false
		}
		if isHEVCVCL(t) {
			seenVCL = true
		}
	}

	aus = append(aus, data[auStart:])
	return aus
}

// splitAV1TemporalUnits splits a low-overhead bitstream at temporal
// delimiter OBUs.
func splitAV1TemporalUnits(data []byte) [][]byte {
	obus := codec.SplitOBUs(data)
	if len(obus) == 0 {
		return nil
	}

	var aus [][]byte
	start, off := 0, 0

	for _, obu := range obus {
		if len(obu) > 0 && codec.AV1OBUType(obu[0]) == codec.AV1OBUTemporalDelimiter && off != start {
			aus = append(aus, data[start:off])
			start = off
		}
		off += len(obu)
	}
	if off > start {
		aus = append(aus, data[start:off])
	}

	return aus
}
