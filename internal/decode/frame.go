// Package decode drives a hardware (or reference software) decode engine:
// access units go in via Step, decoded pictures come out in presentation
// order through the registered sink.
package decode

import (
	"github.com/zsiec/hwdec/internal/codec"
)

// Frame is one decoded picture. The planes are owned by the decode session;
// a sink borrows them for the duration of Consume only and must not retain
// them afterwards.
type Frame struct {
	// Planar pixel data. Cb and Cr are nil for monochrome content. Samples
	// wider than 8 bits are stored little endian, two bytes each.
	Y  []byte
	Cb []byte
	Cr []byte

	Width    int
	Height   int
	BitDepth int
	Chroma   codec.ChromaSubsampling

	PTS int64
	// PresentationIndex is the zero-based emission position of the frame
	PresentationIndex int64
	Keyframe          bool
	// Complete is false when the engine emitted a partially decoded picture
	Complete bool
}

// BytesPerSample returns the storage width of one sample
func (f *Frame) BytesPerSample() int {
	if f.BitDepth > 8 {
		return 2
	}
	return 1
}

// Planes returns the non-nil pixel planes in Y, Cb, Cr order
func (f *Frame) Planes() [][]byte {
	planes := [][]byte{f.Y}
	if f.Cb != nil {
		planes = append(planes, f.Cb)
	}
	if f.Cr != nil {
		planes = append(planes, f.Cr)
	}
	return planes
}

// Size returns the total payload size in bytes
func (f *Frame) Size() int {
	n := 0
	for _, p := range f.Planes() {
		n += len(p)
	}
	return n
}

// FrameSink consumes decoded frames in presentation order
type FrameSink interface {
	Consume(frame *Frame) error
	Close() error
}
