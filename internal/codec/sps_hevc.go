package codec

import "fmt"

// HEVC sequence parameter set parsing, enough to establish the decode
// profile: geometry, chroma layout, bit depth and the reorder bound.

// ParseHEVCSPS parses an HEVC SPS NAL unit. The data may carry the two-byte
// NAL header (type 33); it is detected and skipped.
func ParseHEVCSPS(data []byte) (*SequenceHeader, error) {
	if len(data) < 6 {
		return nil, fmt.Errorf("SPS too short: %d bytes", len(data))
	}

	payload := data
	if nalType := (data[0] >> 1) & 0x3F; data[0]&0x80 == 0 && nalType == 33 {
		payload = data[2:]
	}

	rbsp, err := RemoveEmulationPreventionBytes(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to extract RBSP from SPS: %w", err)
	}

	br := NewBitReader(rbsp)

	// sps_video_parameter_set_id
	if err := br.SkipBits(4); err != nil {
		return nil, err
	}

	maxSubLayersMinus1, err := br.ReadBits(3)
	if err != nil {
		return nil, fmt.Errorf("failed to read sps_max_sub_layers_minus1: %w", err)
	}
	if maxSubLayersMinus1 > 6 {
		return nil, fmt.Errorf("sps_max_sub_layers_minus1 %d out of range", maxSubLayersMinus1)
	}

	// sps_temporal_id_nesting_flag
	if err := br.SkipBits(1); err != nil {
		return nil, err
	}

	if err := skipProfileTierLevel(br, int(maxSubLayersMinus1)); err != nil {
		return nil, fmt.Errorf("failed to parse profile_tier_level: %w", err)
	}

	spsID, err := br.ReadUE()
	if err != nil {
		return nil, fmt.Errorf("failed to read sps_seq_parameter_set_id: %w", err)
	}
	if spsID > 15 {
		return nil, fmt.Errorf("sps_seq_parameter_set_id %d out of range (0-15)", spsID)
	}

	chromaIDC, err := br.ReadUE()
	if err != nil {
		return nil, fmt.Errorf("failed to read chroma_format_idc: %w", err)
	}
	chroma, err := ParseChroma(chromaIDC)
	if err != nil {
		return nil, err
	}
	if chromaIDC == 3 {
		// separate_colour_plane_flag
		if err := br.SkipBits(1); err != nil {
			return nil, err
		}
	}

	width, err := br.ReadUE()
	if err != nil {
		return nil, fmt.Errorf("failed to read pic_width_in_luma_samples: %w", err)
	}
	height, err := br.ReadUE()
	if err != nil {
		return nil, fmt.Errorf("failed to read pic_height_in_luma_samples: %w", err)
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("invalid SPS geometry: %dx%d", width, height)
	}

	w, h := int(width), int(height)

	conformanceWindow, err := br.ReadBit()
	if err != nil {
		return nil, err
	}
	if conformanceWindow == 1 {
		left, err := br.ReadUE()
		if err != nil {
			return nil, err
		}
		right, err := br.ReadUE()
		if err != nil {
			return nil, err
		}
		top, err := br.ReadUE()
		if err != nil {
			return nil, err
		}
		bottom, err := br.ReadUE()
		if err != nil {
			return nil, err
		}

		subX, subY := 1, 1
		switch chroma {
		case Chroma420:
			subX, subY = 2, 2
		case Chroma422:
			subX, subY = 2, 1
		}
		w -= (int(left) + int(right)) * subX
		h -= (int(top) + int(bottom)) * subY
		if w <= 0 || h <= 0 {
			return nil, fmt.Errorf("conformance window exceeds picture: %dx%d", w, h)
		}
	}

	bitDepthLuma, err := br.ReadUE()
	if err != nil {
		return nil, fmt.Errorf("failed to read bit_depth_luma_minus8: %w", err)
	}
	bitDepthChroma, err := br.ReadUE()
	if err != nil {
		return nil, fmt.Errorf("failed to read bit_depth_chroma_minus8: %w", err)
	}

	// log2_max_pic_order_cnt_lsb_minus4
	if _, err := br.ReadUE(); err != nil {
		return nil, err
	}

	subLayerOrderingPresent, err := br.ReadBit()
	if err != nil {
		return nil, err
	}

	// Read the ordering info for the first advertised layer; the reorder
	// bound for the stream is sps_max_num_reorder_pics of the highest layer,
	// but the first entry is a safe upper estimate for session sizing.
	maxReorder := uint32(0)
	layers := 1
	if subLayerOrderingPresent == 1 {
		layers = int(maxSubLayersMinus1) + 1
	}
	for i := 0; i < layers; i++ {
		if _, err := br.ReadUE(); err != nil { // sps_max_dec_pic_buffering_minus1
			return nil, err
		}
		reorder, err := br.ReadUE()
		if err != nil { // sps_max_num_reorder_pics
			return nil, err
		}
		if reorder > maxReorder {
			maxReorder = reorder
		}
		if _, err := br.ReadUE(); err != nil { // sps_max_latency_increase_plus1
			return nil, err
		}
	}

	return &SequenceHeader{
		Codec:            TypeHEVC,
		Width:            w,
		Height:           h,
		BitDepthLuma:     int(bitDepthLuma) + 8,
		BitDepthChroma:   int(bitDepthChroma) + 8,
		Chroma:           chroma,
		MaxReorderFrames: int(maxReorder),
	}, nil
}

// skipProfileTierLevel skips the profile_tier_level structure
func skipProfileTierLevel(br *BitReader, maxSubLayersMinus1 int) error {
	// general_profile_space(2), general_tier_flag(1), general_profile_idc(5),
	// 32 compatibility flags, progressive/interlaced/non_packed/frame_only(4),
	// 43 reserved bits, one inbld/reserved bit
	if err := br.SkipBits(2 + 1 + 5 + 32 + 4 + 43 + 1); err != nil {
		return err
	}

	// general_level_idc
	if err := br.SkipBits(8); err != nil {
		return err
	}

	profilePresent := make([]bool, maxSubLayersMinus1)
	levelPresent := make([]bool, maxSubLayersMinus1)

	for i := 0; i < maxSubLayersMinus1; i++ {
		p, err := br.ReadBit()
		if err != nil {
			return err
		}
		l, err := br.ReadBit()
		if err != nil {
			return err
		}
		profilePresent[i] = p == 1
		levelPresent[i] = l == 1
	}

	if maxSubLayersMinus1 > 0 {
		// reserved_zero_2bits up to 8 sub-layers
		if err := br.SkipBits(2 * (8 - maxSubLayersMinus1)); err != nil {
			return err
		}
	}

	for i := 0; i < maxSubLayersMinus1; i++ {
		if profilePresent[i] {
			if err := br.SkipBits(88); err != nil {
				return err
			}
		}
		if levelPresent[i] {
			if err := br.SkipBits(8); err != nil {
				return err
			}
		}
	}

	return nil
}
