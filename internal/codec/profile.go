package codec

import "fmt"

// Profile describes what a decode session is configured to process. It is
// established from the first sequence header and immutable for the life of
// the session.
type Profile struct {
	Codec          Type
	Chroma         ChromaSubsampling
	BitDepthLuma   int
	BitDepthChroma int
	CodedWidth     int
	CodedHeight    int
}

// Validate checks that the profile is complete enough to configure a decoder
func (p *Profile) Validate() error {
	if !p.Codec.IsValid() {
		return fmt.Errorf("invalid codec type: %s", p.Codec)
	}

	if p.CodedWidth <= 0 || p.CodedHeight <= 0 {
		return fmt.Errorf("invalid coded extent: %dx%d", p.CodedWidth, p.CodedHeight)
	}

	switch p.BitDepthLuma {
	case 8, 10, 12:
	default:
		return fmt.Errorf("unsupported luma bit depth: %d", p.BitDepthLuma)
	}

	switch p.BitDepthChroma {
	case 0, 8, 10, 12:
	default:
		return fmt.Errorf("unsupported chroma bit depth: %d", p.BitDepthChroma)
	}

	return nil
}

// Describe returns the human-readable one-shot diagnostic for this profile
func (p *Profile) Describe() string {
	return fmt.Sprintf("Codec        : %s\nCoded size   : [%d, %d]\nChroma Subsampling: %s %d-bit",
		p.Codec.OperationName(), p.CodedWidth, p.CodedHeight, p.Chroma, p.BitDepthLuma)
}

// SequenceHeader carries the stream parameters parsed from the first codec
// sequence header (SPS or sequence OBU).
type SequenceHeader struct {
	Codec            Type
	Width            int
	Height           int
	BitDepthLuma     int
	BitDepthChroma   int
	Chroma           ChromaSubsampling
	MaxReorderFrames int // upper bound on decode-to-presentation delay
}

// ToProfile converts a parsed sequence header into a decode profile
func (h *SequenceHeader) ToProfile() Profile {
	return Profile{
		Codec:          h.Codec,
		Chroma:         h.Chroma,
		BitDepthLuma:   h.BitDepthLuma,
		BitDepthChroma: h.BitDepthChroma,
		CodedWidth:     h.Width,
		CodedHeight:    h.Height,
	}
}
