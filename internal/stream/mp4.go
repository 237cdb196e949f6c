package stream

import (
	"bytes"
	"fmt"
	"io"

	"github.com/Eyevinn/mp4ff/hevc"
	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/zsiec/hwdec/internal/codec"
	"github.com/zsiec/hwdec/internal/errors"
	"github.com/zsiec/hwdec/internal/metrics"
)

// MP4 demuxer. Progressive and fragmented files are both supported; samples
// are rewrapped as Annex B access units (AV1 samples pass through as OBUs)
// with parameter sets prepended at sync samples.

type mp4Source struct {
	codecType codec.Type
	units     []*AccessUnit
	pos       int
	closed    bool
}

func newMP4Source(data []byte, opts Options) (*mp4Source, error) {
	reader := bytes.NewReader(data)
	mp4File, err := mp4.DecodeFile(reader)
	if err != nil {
		return nil, errors.WrapStreamOpenError(err, "failed to parse MP4 container")
	}

	var src *mp4Source
	if mp4File.IsFragmented() {
		src, err = extractFragmented(mp4File)
	} else {
		src, err = extractProgressive(mp4File, reader)
	}
	if err != nil {
		return nil, err
	}

	if opts.ForcedCodec.IsValid() && opts.ForcedCodec != src.codecType {
		return nil, errors.NewStreamOpenError(fmt.Sprintf(
			"forced codec %s does not match MP4 content %s", opts.ForcedCodec, src.codecType))
	}

	if len(src.units) == 0 {
		return nil, errors.NewStreamOpenError("MP4 video track has no samples")
	}

	return src, nil
}

func (s *mp4Source) Codec() codec.Type {
	return s.codecType
}

func (s *mp4Source) Next() (*AccessUnit, error) {
	if s.closed || s.pos >= len(s.units) {
		return nil, io.EOF
	}

	au := s.units[s.pos]
	s.pos++

	metrics.IncrementSourceAccessUnits("mp4")
	return au, nil
}

func (s *mp4Source) Close() error {
	s.closed = true
	s.units = nil
	return nil
}

// trackInfo is what sample extraction needs from the moov box
type trackInfo struct {
	trackID   uint32
	timescale uint32
	codecType codec.Type
	// parameter sets in annex-b form (H.264/HEVC) or config OBUs (AV1),
	// prepended at sync samples
	paramSets []byte
}

func findVideoTrack(moov *mp4.MoovBox) (*trackInfo, error) {
	for _, trak := range moov.Traks {
		if trak.Mdia == nil || trak.Mdia.Hdlr == nil || trak.Mdia.Hdlr.HandlerType != "vide" {
			continue
		}

		info := &trackInfo{
			trackID:   trak.Tkhd.TrackID,
			timescale: 1000,
		}
		if trak.Mdia.Mdhd != nil {
			info.timescale = trak.Mdia.Mdhd.Timescale
		}

		if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
			return nil, errors.NewStreamOpenError("video track has no sample description")
		}

		for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
			switch child.Type() {
			case "avc1", "avc3":
				info.codecType = codec.TypeH264
				if vse, ok := child.(*mp4.VisualSampleEntryBox); ok && vse.AvcC != nil {
					for _, sps := range vse.AvcC.SPSnalus {
						info.paramSets = appendAnnexB(info.paramSets, sps)
					}
					for _, pps := range vse.AvcC.PPSnalus {
						info.paramSets = appendAnnexB(info.paramSets, pps)
					}
				}
			case "hvc1", "hev1":
				info.codecType = codec.TypeHEVC
				if vse, ok := child.(*mp4.VisualSampleEntryBox); ok && vse.HvcC != nil {
					for _, t := range []hevc.NaluType{hevc.NALU_VPS, hevc.NALU_SPS, hevc.NALU_PPS} {
						for _, nalu := range vse.HvcC.GetNalusForType(t) {
							info.paramSets = appendAnnexB(info.paramSets, nalu)
						}
					}
				}
			case "av01":
				info.codecType = codec.TypeAV1
				if vse, ok := child.(*mp4.VisualSampleEntryBox); ok && vse.Av1C != nil {
					info.paramSets = vse.Av1C.CodecConfRec.ConfigOBUs
				}
			}
		}

		if info.codecType == "" {
			return nil, errors.NewStreamOpenError("video track carries an unsupported sample entry")
		}
		return info, nil
	}

	return nil, errors.NewStreamOpenError("no video track found")
}

func extractProgressive(mp4File *mp4.File, reader io.ReadSeeker) (*mp4Source, error) {
	if mp4File.Moov == nil {
		return nil, errors.NewStreamOpenError("no moov box found")
	}

	info, err := findVideoTrack(mp4File.Moov)
	if err != nil {
		return nil, err
	}

	var stbl *mp4.StblBox
	for _, trak := range mp4File.Moov.Traks {
		if trak.Tkhd.TrackID == info.trackID {
			stbl = trak.Mdia.Minf.Stbl
			break
		}
	}
	if stbl == nil || stbl.Stsz == nil {
		return nil, errors.NewStreamOpenError("video track has no sample sizes")
	}

	syncSamples := make(map[uint32]bool)
	if stbl.Stss != nil {
		for _, nr := range stbl.Stss.SampleNumber {
			syncSamples[nr] = true
		}
	}

	src := &mp4Source{codecType: info.codecType}

	for sampleNr := uint32(1); sampleNr <= stbl.Stsz.SampleNumber; sampleNr++ {
		raw, err := readSampleData(stbl, reader, sampleNr)
		if err != nil {
			return nil, errors.WrapStreamOpenError(err, fmt.Sprintf("failed to read sample %d", sampleNr))
		}

		var decodeTime uint64
		var dur uint32
		if stbl.Stts != nil {
			decodeTime, dur = stbl.Stts.GetDecodeTime(sampleNr)
		}
		_ = dur

		keyframe := syncSamples[sampleNr] || len(syncSamples) == 0
		src.units = append(src.units, buildAccessUnit(info, raw, decodeTime, keyframe))
	}

	return src, nil
}

func extractFragmented(mp4File *mp4.File) (*mp4Source, error) {
	if mp4File.Init == nil || mp4File.Init.Moov == nil {
		return nil, errors.NewStreamOpenError("fragmented MP4 without init segment")
	}

	info, err := findVideoTrack(mp4File.Init.Moov)
	if err != nil {
		return nil, err
	}

	var trex *mp4.TrexBox
	if mp4File.Init.Moov.Mvex != nil {
		for _, t := range mp4File.Init.Moov.Mvex.Trexs {
			if t.TrackID == info.trackID {
				trex = t
				break
			}
		}
	}

	src := &mp4Source{codecType: info.codecType}

	for _, seg := range mp4File.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil {
				continue
			}

			for _, traf := range frag.Moof.Trafs {
				if traf.Tfhd.TrackID != info.trackID {
					continue
				}

				var baseDecodeTime uint64
				if traf.Tfdt != nil {
					baseDecodeTime = traf.Tfdt.BaseMediaDecodeTime()
				}

				samples, err := frag.GetFullSamples(trex)
				if err != nil {
					return nil, errors.WrapStreamOpenError(err, "failed to read fragment samples")
				}

				currentTime := baseDecodeTime
				for i, sample := range samples {
					keyframe := sample.Flags == mp4.SyncSampleFlags || i == 0
					src.units = append(src.units, buildAccessUnit(info, sample.Data, currentTime, keyframe))
					currentTime += uint64(sample.Dur)
				}
			}
		}
	}

	return src, nil
}

// buildAccessUnit rewraps one sample as an access unit with millisecond timing
func buildAccessUnit(info *trackInfo, raw []byte, decodeTime uint64, keyframe bool) *AccessUnit {
	var data []byte
	if info.codecType == codec.TypeAV1 {
		data = raw
	} else {
		data = avccToAnnexB(raw)
	}

	if keyframe && len(info.paramSets) > 0 {
		joined := make([]byte, 0, len(info.paramSets)+len(data))
		joined = append(joined, info.paramSets...)
		data = append(joined, data...)
	}

	ms := int64(decodeTime * 1000 / uint64(info.timescale))
	return &AccessUnit{
		Data:      data,
		PTS:       ms,
		DTS:       ms,
		Keyframe:  keyframe,
		SeqHeader: codec.ExtractSequenceHeader(info.codecType, data) != nil,
	}
}

// readSampleData reads one sample of a progressive file from its chunk
func readSampleData(stbl *mp4.StblBox, reader io.ReadSeeker, sampleNr uint32) ([]byte, error) {
	if stbl.Stsc == nil || stbl.Stsz == nil {
		return nil, fmt.Errorf("missing stsc or stsz box")
	}

	chunkNr, firstSampleInChunk, err := stbl.Stsc.ChunkNrFromSampleNr(int(sampleNr))
	if err != nil {
		return nil, fmt.Errorf("chunk lookup: %w", err)
	}

	var chunkOffset uint64
	switch {
	case stbl.Stco != nil:
		chunkOffset, err = stbl.Stco.GetOffset(chunkNr)
		if err != nil {
			return nil, fmt.Errorf("chunk offset: %w", err)
		}
	case stbl.Co64 != nil:
		if chunkNr < 1 || chunkNr > len(stbl.Co64.ChunkOffset) {
			return nil, fmt.Errorf("chunk nr %d out of range", chunkNr)
		}
		chunkOffset = stbl.Co64.ChunkOffset[chunkNr-1]
	default:
		return nil, fmt.Errorf("no stco or co64 box")
	}

	offset := chunkOffset
	for s := uint32(firstSampleInChunk); s < sampleNr; s++ {
		offset += uint64(stbl.Stsz.GetSampleSize(int(s)))
	}

	size := stbl.Stsz.GetSampleSize(int(sampleNr))
	if _, err := reader.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to sample: %w", err)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(reader, data); err != nil {
		return nil, fmt.Errorf("read sample: %w", err)
	}

	return data, nil
}

// avccToAnnexB converts length-prefixed NAL units to start code form
func avccToAnnexB(data []byte) []byte {
	var result []byte

	offset := 0
	for offset+4 <= len(data) {
		naluLen := int(data[offset])<<24 | int(data[offset+1])<<16 |
			int(data[offset+2])<<8 | int(data[offset+3])
		offset += 4

		if naluLen < 0 || offset+naluLen > len(data) {
			break
		}

		result = appendAnnexB(result, data[offset:offset+naluLen])
		offset += naluLen
	}

	return result
}

func appendAnnexB(dst, nalu []byte) []byte {
	dst = append(dst, 0, 0, 0, 1)
	return append(dst, nalu...)
}
