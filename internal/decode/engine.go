package decode

import (
	"fmt"

	"github.com/zsiec/hwdec/internal/codec"
	"github.com/zsiec/hwdec/internal/device"
	"github.com/zsiec/hwdec/internal/errors"
	"github.com/zsiec/hwdec/internal/stream"
)

// Engine is the decode backend behind a session. Decode may return a nil
// frame while the picture buffer accumulates references; Drain flushes
// whatever is still held once input is exhausted.
type Engine interface {
	Supports(c codec.Type) bool
	Configure(profile codec.Profile) error
	Decode(queue device.Queue, au *stream.AccessUnit) (*Frame, error)
	Drain() []*Frame
	Release()
}

// softwareEngine is the reference backend: it validates access unit syntax
// and synthesizes deterministic planar pictures of the coded geometry, so
// conformance and throughput runs work without a hardware driver.
type softwareEngine struct {
	profile    codec.Profile
	configured bool
	// simulated picture buffer latency in frames
	delay   int
	held    []*Frame
	decoded int64
}

// defaultPipelineDepth is the simulated picture buffer latency when no queue
// size is configured
const defaultPipelineDepth = 2

// NewSoftwareEngine returns the built-in reference engine with the default
// pipeline depth
func NewSoftwareEngine() Engine {
	return NewSoftwareEngineWithDepth(defaultPipelineDepth)
}

// NewSoftwareEngineWithDepth returns the reference engine holding back up to
// depth pictures before the first one is emitted, mirroring the in-flight
// decode depth of a hardware queue.
func NewSoftwareEngineWithDepth(depth int) Engine {
	if depth < 0 {
		depth = 0
	}
	return &softwareEngine{delay: depth}
}

func (e *softwareEngine) Supports(c codec.Type) bool {
	return c.IsValid()
}

func (e *softwareEngine) Configure(profile codec.Profile) error {
	if err := profile.Validate(); err != nil {
		return errors.WrapDecoderConstructionError(err, "invalid decode profile")
	}

	e.profile = profile
	e.configured = true

	return nil
}

func (e *softwareEngine) Decode(queue device.Queue, au *stream.AccessUnit) (*Frame, error) {
	if !e.configured {
		return nil, errors.NewDecoderConstructionError("engine used before Configure")
	}
	if au == nil || len(au.Data) == 0 {
		return nil, errors.NewCorruptUnitError("empty access unit")
	}

	if err := e.checkSyntax(au.Data); err != nil {
		return nil, err
	}

	frame := e.synthesize(au)
	e.decoded++
	e.held = append(e.held, frame)

	if len(e.held) > e.delay {
		out := e.held[0]
		e.held = e.held[1:]
		return out, nil
	}
	return nil, nil
}

func (e *softwareEngine) Drain() []*Frame {
	out := e.held
	e.held = nil
	return out
}

func (e *softwareEngine) Release() {
	e.held = nil
	e.configured = false
}

// checkSyntax rejects access units whose outer framing is unparseable
func (e *softwareEngine) checkSyntax(data []byte) error {
	switch e.profile.Codec {
	case codec.TypeH264, codec.TypeHEVC:
		if len(codec.SplitAnnexBNALUs(data)) == 0 {
			return errors.NewCorruptUnitError("access unit has no start codes")
		}
	case codec.TypeAV1:
		if len(codec.SplitOBUs(data)) == 0 {
			return errors.NewCorruptUnitError("access unit has no parseable OBUs")
		}
	default:
		return errors.NewDecoderConstructionError(fmt.Sprintf("unsupported codec %s", e.profile.Codec))
	}
	return nil
}

// synthesize builds a deterministic test picture for the access unit. The
// content depends only on the decode index, so independent runs over the
// same stream produce byte-identical output.
func (e *softwareEngine) synthesize(au *stream.AccessUnit) *Frame {
	w, h := e.profile.CodedWidth, e.profile.CodedHeight

	frame := &Frame{
		Width:    w,
		Height:   h,
		BitDepth: e.profile.BitDepthLuma,
		Chroma:   e.profile.Chroma,
		PTS:      au.PTS,
		Keyframe: au.Keyframe,
		Complete: true,
	}

	bps := frame.BytesPerSample()
	seed := byte(e.decoded*31 + 7)

	frame.Y = fillPlane(w*h*bps, seed)
	if dx, dy := e.profile.Chroma.PlaneDivisors(); dx > 0 {
		chromaSize := (w / dx) * (h / dy) * bps
		frame.Cb = fillPlane(chromaSize, seed+85)
		frame.Cr = fillPlane(chromaSize, seed+170)
	}

	return frame
}

func fillPlane(size int, seed byte) []byte {
	plane := make([]byte, size)
	v := seed
	for i := range plane {
		plane[i] = v
		v = v*5 + 1
	}
	return plane
}
