// Package sink persists decoded frames: raw planar output or a Y4M
// streaming container, with optional per-frame CRC records for conformance
// checking.
package sink

import (
	"bufio"
	"fmt"
	"hash/crc32"
	"os"
	"strings"

	"github.com/zsiec/hwdec/internal/codec"
	"github.com/zsiec/hwdec/internal/decode"
	"github.com/zsiec/hwdec/internal/errors"
	"github.com/zsiec/hwdec/internal/logger"
	"github.com/zsiec/hwdec/internal/metrics"
)

// Create builds the frame sink for a decode run. An empty path with CRC
// disabled yields a discard sink, so decode-only throughput runs still pull
// frames. The CRC side file is opened here: an unwritable path fails before
// any frame is decoded.
func Create(path string, y4m bool, crcPerFrame bool, crcPath string, crcSeed []uint32,
	log logger.Logger) (decode.FrameSink, error) {

	if path == "" && !crcPerFrame {
		return &discardSink{}, nil
	}

	s := &fileSink{
		y4m:    y4m,
		format: "raw",
		logger: logger.NewDecodeLogger(log),
	}
	if y4m {
		s.format = "y4m"
	}

	if path != "" {
		out, err := os.Create(path)
		if err != nil {
			return nil, errors.WrapSinkWriteError(err, fmt.Sprintf("failed to create output %s", path))
		}
		s.out = out
		s.buf = bufio.NewWriterSize(out, 1<<20)
	}

	if crcPerFrame {
		if crcPath == "" {
			s.close()
			return nil, errors.NewSinkWriteError("per-frame CRC requested without a CRC path")
		}
		crcFile, err := os.Create(crcPath)
		if err != nil {
			s.close()
			return nil, errors.WrapSinkWriteError(err, fmt.Sprintf("failed to create CRC file %s", crcPath))
		}
		s.crc = crcFile
		s.seeds = crcSeed
		if len(s.seeds) == 0 {
			s.seeds = []uint32{0}
		}
	}

	return s, nil
}

// discardSink drops every frame
type discardSink struct{}

func (*discardSink) Consume(frame *decode.Frame) error {
	metrics.IncrementSinkFramesWritten("discard")
	return nil
}

func (*discardSink) Close() error { return nil }

type fileSink struct {
	out    *os.File
	buf    *bufio.Writer
	y4m    bool
	format string

	headerWritten bool

	crc   *os.File
	seeds []uint32

	frames int64
	logger *logger.SampledLogger
}

func (s *fileSink) Consume(frame *decode.Frame) error {
	if s.buf != nil {
		if err := s.writeFrame(frame); err != nil {
			return errors.WrapSinkWriteError(err, fmt.Sprintf(
				"failed to write frame %d", frame.PresentationIndex))
		}
	}

	if s.crc != nil {
		if err := s.writeCRC(frame); err != nil {
			return errors.WrapSinkWriteError(err, fmt.Sprintf(
				"failed to write CRC record for frame %d", frame.PresentationIndex))
		}
	}

	s.frames++
	metrics.IncrementSinkFramesWritten(s.format)
	metrics.AddSinkBytesWritten(s.format, frame.Size())

	s.logger.DebugWithCategory(logger.CategorySinkWrite, "Frame written",
		map[string]interface{}{
			"presentation_index": frame.PresentationIndex,
			"bytes":              frame.Size(),
		})

	return nil
}

func (s *fileSink) writeFrame(frame *decode.Frame) error {
	if s.y4m {
		if !s.headerWritten {
			header := fmt.Sprintf("YUV4MPEG2 W%d H%d F30:1 Ip A1:1 %s\n",
				frame.Width, frame.Height, y4mColorSpace(frame.Chroma, frame.BitDepth))
			if _, err := s.buf.WriteString(header); err != nil {
				return err
			}
			s.headerWritten = true
		}
		if _, err := s.buf.WriteString("FRAME\n"); err != nil {
			return err
		}
	}

	for _, plane := range frame.Planes() {
		if _, err := s.buf.Write(plane); err != nil {
			return err
		}
	}
	return nil
}

// writeCRC appends one line with the frame's CRC32 per configured seed
func (s *fileSink) writeCRC(frame *decode.Frame) error {
	values := make([]string, len(s.seeds))
	for i, seed := range s.seeds {
		crc := seed
		for _, plane := range frame.Planes() {
			crc = crc32.Update(crc, crc32.IEEETable, plane)
		}
		values[i] = fmt.Sprintf("0x%08X", crc)
	}

	_, err := fmt.Fprintln(s.crc, strings.Join(values, " "))
	return err
}

func (s *fileSink) Close() error {
	var firstErr error

	s.logger.WithFields(map[string]interface{}{
		"format": s.format,
		"frames": s.frames,
	}).Info("Frame sink closed")

	if s.buf != nil {
		if err := s.buf.Flush(); err != nil {
			firstErr = errors.WrapSinkWriteError(err, "failed to flush output")
		}
	}
	if err := s.close(); err != nil && firstErr == nil {
		firstErr = errors.WrapSinkWriteError(err, "failed to close sink files")
	}
	return firstErr
}

func (s *fileSink) close() error {
	var firstErr error
	if s.out != nil {
		if err := s.out.Close(); err != nil {
			firstErr = err
		}
		s.out = nil
	}
	if s.crc != nil {
		if err := s.crc.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.crc = nil
	}
	return firstErr
}

// y4mColorSpace maps the decode profile to the Y4M colorspace parameter
func y4mColorSpace(chroma codec.ChromaSubsampling, bitDepth int) string {
	var base string
	switch chroma {
	case codec.ChromaMonochrome:
		base = "Cmono"
	case codec.Chroma422:
		base = "C422"
	case codec.Chroma444:
		base = "C444"
	default:
		base = "C420"
	}

	if bitDepth > 8 && chroma != codec.ChromaMonochrome {
		return fmt.Sprintf("%sp%d", base, bitDepth)
	}
	return base
}
