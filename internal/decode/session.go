package decode

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/zsiec/hwdec/internal/codec"
	"github.com/zsiec/hwdec/internal/device"
	"github.com/zsiec/hwdec/internal/errors"
	"github.com/zsiec/hwdec/internal/logger"
	"github.com/zsiec/hwdec/internal/metrics"
	"github.com/zsiec/hwdec/internal/stream"
)

// Session is the pull contract over one decode run. Step submits the next
// access unit in exact source order and returns false exactly once, when the
// source is exhausted and every buffered picture has been emitted. Profile
// and CodedExtent are valid from construction on.
type Session interface {
	Profile() codec.Profile
	CodedExtent() (width, height int)
	Step(queueIndex int) bool
	FramesEmitted() int64
	Err() error
	Close() error
}

// maxPrerollUnits bounds the search for the first sequence header
const maxPrerollUnits = 64

// maxCorruptRun bounds consecutive unframeable reads from the source; a
// source stuck reporting the same corruption must not stall termination
const maxCorruptRun = 64

// Config carries the session construction knobs
type Config struct {
	// BitDepthHint resolves the bit depth for bitstreams that do not
	// self-describe it (AV1 sequence headers behind feature flags)
	BitDepthHint int
}

type session struct {
	id      string
	profile codec.Profile

	source stream.Source
	engine Engine
	sink   FrameSink
	queues []device.Queue

	reorderer *Reorderer
	logger    *logger.SampledLogger

	// access units pre-rolled during construction, submitted before the
	// source is read again
	pending []*stream.AccessUnit

	nextQueue        int
	presentationNext int64
	framesEmitted    int64
	reorderedSeen    uint64
	exhausted        bool
	stopped          bool
	err              error
}

// NewSession pre-rolls the source to its first sequence header, establishes
// the immutable decode profile and configures the engine. Construction
// failures leave nothing partially built.
func NewSession(cfg Config, source stream.Source, engine Engine, sink FrameSink,
	queues []device.Queue, log logger.Logger) (Session, error) {

	if len(queues) == 0 {
		return nil, errors.NewDecoderConstructionError("session requires at least one decode queue")
	}
	if !engine.Supports(source.Codec()) {
		return nil, errors.NewDecoderConstructionError(fmt.Sprintf(
			"engine does not support codec %s", source.Codec()))
	}

	pending, hdr, err := preroll(cfg, source)
	if err != nil {
		return nil, err
	}

	if hdr.Codec != source.Codec() {
		return nil, errors.NewDecoderConstructionError(fmt.Sprintf(
			"sequence header codec %s does not match stream codec %s",
			hdr.Codec, source.Codec()))
	}

	profile := hdr.ToProfile()
	if err := profile.Validate(); err != nil {
		return nil, errors.WrapDecoderConstructionError(err, "sequence header yields invalid profile")
	}

	if err := engine.Configure(profile); err != nil {
		return nil, errors.WrapDecoderConstructionError(err, "engine configuration failed")
	}

	id := uuid.New().String()
	s := &session{
		id:        id,
		profile:   profile,
		source:    source,
		engine:    engine,
		sink:      sink,
		queues:    queues,
		pending:   pending,
		reorderer: NewReorderer(hdr.MaxReorderFrames, log.WithField("session_id", id)),
		logger:    logger.NewDecodeLogger(log.WithField("session_id", id)),
	}

	metrics.SetSessionActive(true)

	s.logger.WithFields(map[string]interface{}{
		"codec":         profile.Codec.String(),
		"coded_width":   profile.CodedWidth,
		"coded_height":  profile.CodedHeight,
		"bit_depth":     profile.BitDepthLuma,
		"chroma":        profile.Chroma.String(),
		"reorder_depth": hdr.MaxReorderFrames,
		"decode_queues": len(queues),
	}).Info("Decode session established")

	return s, nil
}

// preroll reads access units until one carries a parseable sequence header.
// Everything read is returned for in-order submission; corruption in the
// sequence header itself is unrecoverable for the stream.
func preroll(cfg Config, source stream.Source) ([]*stream.AccessUnit, *codec.SequenceHeader, error) {
	var pending []*stream.AccessUnit

	for len(pending) < maxPrerollUnits {
		au, err := source.Next()
		if err == io.EOF {
			return nil, nil, errors.NewDecoderConstructionError(
				"stream ended before a sequence header was found")
		}
		if err != nil {
			return nil, nil, errors.WrapDecoderConstructionError(err, "failed to read stream head")
		}

		pending = append(pending, au)
		if !au.SeqHeader {
			continue
		}

		raw := codec.ExtractSequenceHeader(source.Codec(), au.Data)
		if raw == nil {
			continue
		}

		hdr, err := codec.ParseSequenceHeader(source.Codec(), raw, cfg.BitDepthHint)
		if err != nil {
			return nil, nil, errors.WrapDecoderConstructionError(err, "corrupt sequence header")
		}
		return pending, hdr, nil
	}

	return nil, nil, errors.NewDecoderConstructionError(fmt.Sprintf(
		"no sequence header within the first %d access units", maxPrerollUnits))
}

func (s *session) Profile() codec.Profile {
	return s.profile
}

func (s *session) CodedExtent() (int, int) {
	return s.profile.CodedWidth, s.profile.CodedHeight
}

func (s *session) Err() error {
	return s.err
}

// Step advances the session by one access unit. The queueIndex argument is
// advisory: with multiple negotiated decode queues the session distributes
// submissions round-robin itself.
func (s *session) Step(queueIndex int) bool {
	if s.stopped {
		return false
	}

	start := time.Now()
	defer func() {
		metrics.ObserveStepDuration(time.Since(start).Seconds())
	}()

	au, ok := s.nextAccessUnit()
	if !ok {
		// Input exhausted: flush the engine and the reorderer, then report
		// termination exactly once
		for _, frame := range s.engine.Drain() {
			if !s.deliver(s.reorderer.Add(frame)) {
				return false
			}
		}
		if !s.deliver(s.reorderer.Flush()) {
			return false
		}
		s.stop()
		return false
	}

	queue := s.pickQueue(queueIndex)

	codecName := s.profile.Codec.String()
	metrics.IncrementAccessUnitsSubmitted(codecName)
	metrics.AddBytesDecoded(codecName, len(au.Data))

	s.logger.DebugWithCategory(logger.CategoryUnitSubmission, "Submitting access unit",
		map[string]interface{}{
			"bytes":    len(au.Data),
			"dts":      au.DTS,
			"keyframe": au.Keyframe,
			"queue":    queue.Index,
		})

	frame, err := s.engine.Decode(queue, au)
	if err != nil {
		if errors.IsCorruptUnit(err) {
			metrics.IncrementAccessUnitsCorrupt(codecName)
			s.logger.WarnWithCategory(logger.CategoryCorruptUnit, "Skipping corrupt access unit",
				map[string]interface{}{
					"dts":   au.DTS,
					"bytes": len(au.Data),
					"error": err.Error(),
				})
			return true
		}
		s.fail(err)
		return false
	}

	if frame != nil {
		if !s.deliver(s.reorderer.Add(frame)) {
			return false
		}
	}

	return true
}

// nextAccessUnit pulls from the pre-rolled units first, then the source.
// Unframeable units are skipped in place; a run of them longer than
// maxCorruptRun ends the stream rather than spinning on a source that makes
// no progress.
func (s *session) nextAccessUnit() (*stream.AccessUnit, bool) {
	if len(s.pending) > 0 {
		au := s.pending[0]
		s.pending = s.pending[1:]
		return au, true
	}

	for corruptRun := 0; !s.exhausted; {
		au, err := s.source.Next()
		if err == io.EOF {
			s.exhausted = true
			return nil, false
		}
		if err == nil {
			return au, true
		}

		if !errors.IsCorruptUnit(err) {
			s.fail(err)
			s.exhausted = true
			return nil, false
		}

		// The source could not frame this unit; account for it and move on
		metrics.IncrementAccessUnitsCorrupt(s.profile.Codec.String())
		s.logger.WarnWithCategory(logger.CategoryCorruptUnit, "Skipping unframeable access unit",
			map[string]interface{}{"error": err.Error()})

		corruptRun++
		if corruptRun >= maxCorruptRun {
			s.logger.WithField("corrupt_run", corruptRun).
				Warn("Source stuck on corrupt data, ending stream")
			s.exhausted = true
			return nil, false
		}
	}
	return nil, false
}

func (s *session) pickQueue(queueIndex int) device.Queue {
	if len(s.queues) == 1 {
		return s.queues[0]
	}

	queue := s.queues[s.nextQueue]
	s.nextQueue = (s.nextQueue + 1) % len(s.queues)
	return queue
}

// deliver routes emitted frames to the sink in presentation order. Returns
// false when a sink failure stopped the session.
func (s *session) deliver(frames []*Frame) bool {
	// Count only frames the reorderer actually moved out of arrival order
	codecName := s.profile.Codec.String()
	for n := s.reorderer.Stats().FramesReordered; s.reorderedSeen < n; s.reorderedSeen++ {
		metrics.IncrementFramesReordered(codecName)
	}

	for _, frame := range frames {
		frame.PresentationIndex = s.presentationNext
		s.presentationNext++

		metrics.IncrementFramesDecoded(s.profile.Codec.String())
		s.logger.DebugWithCategory(logger.CategoryFrameDecode, "Frame ready",
			map[string]interface{}{
				"presentation_index": frame.PresentationIndex,
				"pts":                frame.PTS,
				"keyframe":           frame.Keyframe,
			})

		if s.sink == nil {
			s.framesEmitted++
			continue
		}
		if err := s.sink.Consume(frame); err != nil {
			s.fail(errors.WrapSinkWriteError(err, "sink rejected frame"))
			return false
		}
		s.framesEmitted++
	}
	return true
}

func (s *session) fail(err error) {
	if s.err == nil {
		s.err = err
	}
	s.logger.WithError(err).Error("Decode session failed")
	s.stop()
}

func (s *session) stop() {
	if !s.stopped {
		s.stopped = true
		metrics.SetSessionActive(false)
	}
}

// FramesEmitted reports how many frames reached the sink (or were counted
// against a nil sink)
func (s *session) FramesEmitted() int64 {
	return s.framesEmitted
}

func (s *session) Close() error {
	s.stop()
	s.engine.Release()

	stats := s.reorderer.Stats()
	s.logger.WithFields(map[string]interface{}{
		"frames_emitted": s.framesEmitted,
		"frames_dropped": stats.FramesDropped,
		"max_buffered":   stats.MaxBuffered,
	}).Info("Decode session closed")

	return s.source.Close()
}
