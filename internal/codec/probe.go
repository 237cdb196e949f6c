package codec

import (
	"bytes"
	"errors"
)

// Elementary bitstream probing: codec detection and sequence header location
// for Annex B (H.264/HEVC) and low-overhead OBU (AV1) streams.

var startCode3 = []byte{0x00, 0x00, 0x01}

var errUnknownCodec = errors.New("unknown codec type")

// H.264 NAL unit types
const (
	H264NALSlice     = 1
	H264NALIDR       = 5
	H264NALSEI       = 6
	H264NALSPS       = 7
	H264NALPPS       = 8
	H264NALAUD       = 9
	H264NALSubsetSPS = 15
)

// HEVC NAL unit types
const (
	HEVCNALIDRWRadl = 19
	HEVCNALIDRNLP   = 20
	HEVCNALCRA      = 21
	HEVCNALVPS      = 32
	HEVCNALSPS      = 33
	HEVCNALPPS      = 34
	HEVCNALAUD      = 35
)

// AV1 OBU types
const (
	AV1OBUSequenceHeader    = 1
	AV1OBUTemporalDelimiter = 2
	AV1OBUFrameHeader       = 3
	AV1OBUFrame             = 6
)

// H264NALType returns the NAL unit type from an H.264 NAL header byte
func H264NALType(b byte) uint8 {
	return b & 0x1F
}

// HEVCNALType returns the NAL unit type from the first HEVC NAL header byte
func HEVCNALType(b byte) uint8 {
	return (b >> 1) & 0x3F
}

// AV1OBUType returns the OBU type from an OBU header byte
func AV1OBUType(b byte) uint8 {
	return (b >> 3) & 0x0F
}

// SplitAnnexBNALUs splits Annex B data into NAL units, stripping start codes.
// Incomplete trailing data is returned as the final unit.
func SplitAnnexBNALUs(data []byte) [][]byte {
	var units [][]byte

	pos := bytes.Index(data, startCode3)
	if pos < 0 {
		return nil
	}

	for pos >= 0 {
		start := pos + len(startCode3)
		next := bytes.Index(data[start:], startCode3)
		if next < 0 {
			unit := data[start:]
			if len(unit) > 0 {
				units = append(units, unit)
			}
			break
		}

		end := start + next
		// A four-byte start code leaves a trailing zero on the previous unit
		if end > start && data[end-1] == 0x00 {
			end--
		}
		if end > start {
			units = append(units, data[start:end])
		}
		pos = start + next
	}

	return units
}

// ProbeElementary inspects the head of an elementary bitstream and reports
// the codec it carries, or TypeUnknown when nothing matches.
func ProbeElementary(data []byte) Type {
	if len(data) < 2 {
		return TypeUnknown
	}

	// AV1 low-overhead streams open with a temporal delimiter OBU
	if data[0]&0x80 == 0 && AV1OBUType(data[0]) == AV1OBUTemporalDelimiter {
		return TypeAV1
	}

	units := SplitAnnexBNALUs(data)
	if len(units) == 0 {
		return TypeUnknown
	}

	h264Score, hevcScore := 0, 0
	for _, unit := range units {
		if len(unit) < 2 || unit[0]&0x80 != 0 {
			continue
		}

		// HEVC header: layer id 0 gives a second byte of temporal_id_plus1
		if unit[0]&0x01 == 0 && unit[1] >= 1 && unit[1] <= 7 {
			switch HEVCNALType(unit[0]) {
			case HEVCNALVPS, HEVCNALSPS, HEVCNALPPS, HEVCNALAUD,
				HEVCNALIDRWRadl, HEVCNALIDRNLP, HEVCNALCRA:
				hevcScore++
			}
		}

		switch H264NALType(unit[0]) {
		case H264NALSPS, H264NALPPS, H264NALAUD, H264NALIDR, H264NALSEI:
			h264Score++
		}
	}

	switch {
	case hevcScore > h264Score:
		return TypeHEVC
	case h264Score > 0:
		return TypeH264
	default:
		return TypeUnknown
	}
}

// ExtractSequenceHeader scans an access unit for the codec's sequence header
// (SPS or sequence OBU) and returns it, or nil when absent.
func ExtractSequenceHeader(c Type, au []byte) []byte {
	switch c {
	case TypeH264:
		for _, unit := range SplitAnnexBNALUs(au) {
			if len(unit) > 0 && H264NALType(unit[0]) == H264NALSPS {
				return unit
			}
		}
	case TypeHEVC:
		for _, unit := range SplitAnnexBNALUs(au) {
			if len(unit) > 0 && HEVCNALType(unit[0]) == HEVCNALSPS {
				return unit
			}
		}
	case TypeAV1:
		for _, obu := range SplitOBUs(au) {
			if len(obu) > 0 && AV1OBUType(obu[0]) == AV1OBUSequenceHeader {
				return obu
			}
		}
	}
	return nil
}

// IsKeyframe reports whether an access unit starts a refresh point
func IsKeyframe(c Type, au []byte) bool {
	switch c {
	case TypeH264:
		for _, unit := range SplitAnnexBNALUs(au) {
			if len(unit) > 0 && H264NALType(unit[0]) == H264NALIDR {
				return true
			}
		}
	case TypeHEVC:
		for _, unit := range SplitAnnexBNALUs(au) {
			if len(unit) == 0 {
				continue
			}
			switch HEVCNALType(unit[0]) {
			case HEVCNALIDRWRadl, HEVCNALIDRNLP, HEVCNALCRA:
				return true
			}
		}
	case TypeAV1:
		// Sequence headers only precede decodable refresh points
		return ExtractSequenceHeader(TypeAV1, au) != nil
	}
	return false
}

// ParseSequenceHeader dispatches to the codec-specific sequence header parser.
// bitDepthHint is only consulted for AV1.
func ParseSequenceHeader(c Type, data []byte, bitDepthHint int) (*SequenceHeader, error) {
	switch c {
	case TypeH264:
		return ParseH264SPS(data)
	case TypeHEVC:
		return ParseHEVCSPS(data)
	case TypeAV1:
		return ParseAV1SequenceHeader(data, bitDepthHint)
	default:
		return nil, errUnknownCodec
	}
}

// SplitOBUs splits a low-overhead AV1 bitstream chunk into OBUs. OBUs
// without a size field extend to the end of the chunk.
func SplitOBUs(data []byte) [][]byte {
	var obus [][]byte

	for pos := 0; pos < len(data); {
		header := data[pos]
		if header&0x80 != 0 {
			break
		}

		hdrLen := 1
		if header&0x04 != 0 { // extension flag
			hdrLen++
		}

		if header&0x02 == 0 { // no size field: rest of chunk is one OBU
			obus = append(obus, data[pos:])
			break
		}

		// leb128 size
		size := 0
		shift := 0
		sizeLen := 0
		ok := false
		for i := pos + hdrLen; i < len(data) && sizeLen < 8; i++ {
			b := data[i]
			size |= int(b&0x7F) << shift
			shift += 7
			sizeLen++
			if b&0x80 == 0 {
				ok = true
				break
			}
		}
		if !ok {
			break
		}

		end := pos + hdrLen + sizeLen + size
		if end > len(data) {
			end = len(data)
		}
		obus = append(obus, data[pos:end])
		pos = end
	}

	return obus
}
