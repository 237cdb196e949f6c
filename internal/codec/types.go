package codec

import (
	"fmt"
	"strings"
)

// Type represents a video codec decode operation
type Type string

const (
	// TypeH264 represents H.264/AVC decode
	TypeH264 Type = "H264"
	// TypeHEVC represents H.265/HEVC decode
	TypeHEVC Type = "HEVC"
	// TypeAV1 represents AV1 decode
	TypeAV1 Type = "AV1"
	// TypeUnknown represents an unknown codec
	TypeUnknown Type = "UNKNOWN"
)

// String returns the string representation of the codec type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the codec type is valid and supported
func (t Type) IsValid() bool {
	switch t {
	case TypeH264, TypeHEVC, TypeAV1:
		return true
	default:
		return false
	}
}

// OperationName returns the decode operation name used in diagnostics
func (t Type) OperationName() string {
	switch t {
	case TypeH264:
		return "DECODE_H264"
	case TypeHEVC:
		return "DECODE_H265"
	case TypeAV1:
		return "DECODE_AV1"
	default:
		return "DECODE_NONE"
	}
}

// ParseType parses a string into a codec type
func ParseType(s string) Type {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "H264", "H.264", "AVC":
		return TypeH264
	case "HEVC", "H265", "H.265":
		return TypeHEVC
	case "AV1":
		return TypeAV1
	default:
		return TypeUnknown
	}
}

// ChromaSubsampling represents the color sampling layout of decoded pictures
type ChromaSubsampling uint8

const (
	ChromaMonochrome ChromaSubsampling = iota
	Chroma420
	Chroma422
	Chroma444
)

// String returns the conventional notation for the subsampling layout
func (c ChromaSubsampling) String() string {
	switch c {
	case ChromaMonochrome:
		return "MONOCHROME"
	case Chroma420:
		return "4:2:0"
	case Chroma422:
		return "4:2:2"
	case Chroma444:
		return "4:4:4"
	default:
		return "unknown"
	}
}

// PlaneDivisors returns the horizontal and vertical chroma plane divisors.
// Monochrome reports 0,0 since there are no chroma planes.
func (c ChromaSubsampling) PlaneDivisors() (x, y int) {
	switch c {
	case Chroma420:
		return 2, 2
	case Chroma422:
		return 2, 1
	case Chroma444:
		return 1, 1
	default:
		return 0, 0
	}
}

// ParseChroma maps a chroma_format_idc syntax value to a subsampling layout
func ParseChroma(idc uint32) (ChromaSubsampling, error) {
	switch idc {
	case 0:
		return ChromaMonochrome, nil
	case 1:
		return Chroma420, nil
	case 2:
		return Chroma422, nil
	case 3:
		return Chroma444, nil
	default:
		return Chroma420, fmt.Errorf("invalid chroma_format_idc: %d", idc)
	}
}
