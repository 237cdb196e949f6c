// Package stream turns an input file into an ordered series of compressed
// access units. Container formats (MP4, IVF) are unwrapped when demuxing is
// enabled; everything else is treated as a bare elementary bitstream.
package stream

import (
	"bytes"
	"fmt"
	"os"

	"github.com/zsiec/hwdec/internal/codec"
	"github.com/zsiec/hwdec/internal/errors"
)

// AccessUnit is one opaque compressed chunk in decode order. PTS and DTS are
// in milliseconds when the container provides timing; elementary streams
// synthesize a monotonic counter instead.
type AccessUnit struct {
	Data      []byte
	PTS       int64
	DTS       int64
	Keyframe  bool
	SeqHeader bool
}

// Source yields access units in decode order. Next returns io.EOF once the
// stream is exhausted; iteration is forward-only.
type Source interface {
	Codec() codec.Type
	Next() (*AccessUnit, error)
	Close() error
}

// Options control how a stream is opened. Width, Height and BitDepth are
// advisory hints consulted only when the bitstream does not self-describe.
type Options struct {
	ForcedCodec    codec.Type
	EnableDemuxing bool
	Width          int
	Height         int
	BitDepth       int
}

// Open probes the file head and returns a source for its content
func Open(path string, opts Options) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapStreamOpenError(err, fmt.Sprintf("failed to read input %s", path))
	}
	if len(data) == 0 {
		return nil, errors.NewStreamOpenError(fmt.Sprintf("input %s is empty", path))
	}

	if opts.EnableDemuxing {
		if bytes.HasPrefix(data, []byte(ivfMagic)) {
			return newIVFSource(data, opts)
		}
		if isMP4(data) {
			return newMP4Source(data, opts)
		}
	}

	c := opts.ForcedCodec
	if !c.IsValid() {
		c = codec.ProbeElementary(data)
	}
	if !c.IsValid() {
		return nil, errors.NewStreamOpenError(fmt.Sprintf("unable to determine codec of %s", path))
	}

	return newElementarySource(data, c)
}

// isMP4 checks for an ISO BMFF box signature at the file head
func isMP4(data []byte) bool {
	if len(data) < 8 {
		return false
	}
	switch string(data[4:8]) {
	case "ftyp", "styp", "moov", "moof", "free", "mdat", "wide":
		return true
	}
	return false
}
