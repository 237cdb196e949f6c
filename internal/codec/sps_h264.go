package codec

import "fmt"

// H.264 sequence parameter set parsing, enough to establish the decode
// profile: geometry, chroma layout, bit depth and the reorder bound.

var h264HighProfiles = map[uint32]bool{
	100: true, // High
	110: true, // High 10
	122: true, // High 4:2:2
	244: true, // High 4:4:4
	44:  true, // CAVLC 4:4:4
	83:  true, // Scalable Baseline
	86:  true, // Scalable High
	118: true, // Multiview High
	128: true, // Stereo High
	134: true, // MFC High
	135: true, // MFC Depth High
	138: true, // Multiview Depth High
	139: true, // Enhanced Multiview Depth High
}

// ParseH264SPS parses an H.264 SPS NAL unit. The data may carry the one-byte
// NAL header (types 7 or 15); it is detected and skipped.
func ParseH264SPS(data []byte) (*SequenceHeader, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("SPS too short: %d bytes", len(data))
	}

	payload := data
	if nalType := data[0] & 0x1F; data[0]&0x80 == 0 && (nalType == H264NALSPS || nalType == H264NALSubsetSPS) {
		payload = data[1:]
	}

	rbsp, err := RemoveEmulationPreventionBytes(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to extract RBSP from SPS: %w", err)
	}

	br := NewBitReader(rbsp)

	profileIDC, err := br.ReadBits(8)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile_idc: %w", err)
	}

	// constraint flags + reserved
	if err := br.SkipBits(8); err != nil {
		return nil, fmt.Errorf("failed to read constraint flags: %w", err)
	}

	// level_idc
	if err := br.SkipBits(8); err != nil {
		return nil, fmt.Errorf("failed to read level_idc: %w", err)
	}

	spsID, err := br.ReadUE()
	if err != nil {
		return nil, fmt.Errorf("failed to read sps_id: %w", err)
	}
	if spsID > 31 {
		return nil, fmt.Errorf("sps_id %d out of range (0-31)", spsID)
	}

	hdr := &SequenceHeader{
		Codec:          TypeH264,
		Chroma:         Chroma420,
		BitDepthLuma:   8,
		BitDepthChroma: 8,
	}

	chromaIDC := uint32(1)
	if h264HighProfiles[profileIDC] {
		chromaIDC, err = br.ReadUE()
		if err != nil {
			return nil, fmt.Errorf("failed to read chroma_format_idc: %w", err)
		}
		hdr.Chroma, err = ParseChroma(chromaIDC)
		if err != nil {
			return nil, err
		}
		if chromaIDC == 3 {
			// separate_colour_plane_flag
			if err := br.SkipBits(1); err != nil {
				return nil, err
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
		hdr.BitDepthLuma = int(bitDepthLuma) + 8
		hdr.BitDepthChroma = int(bitDepthChroma) + 8

		// qpprime_y_zero_transform_bypass_flag
		if err := br.SkipBits(1); err != nil {
			return nil, err
		}

		scalingMatrixPresent, err := br.ReadBit()
		if err != nil {
			return nil, err
		}
		if scalingMatrixPresent == 1 {
			listCount := 8
			if chromaIDC == 3 {
				listCount = 12
			}
			for i := 0; i < listCount; i++ {
				present, err := br.ReadBit()
				if err != nil {
					return nil, err
				}
				if present == 1 {
					size := 16
					if i >= 6 {
						size = 64
					}
					if err := skipScalingList(br, size); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	// log2_max_frame_num_minus4
	if _, err := br.ReadUE(); err != nil {
		return nil, fmt.Errorf("failed to read log2_max_frame_num_minus4: %w", err)
	}

	pocType, err := br.ReadUE()
	if err != nil {
		return nil, fmt.Errorf("failed to read pic_order_cnt_type: %w", err)
	}
	switch pocType {
	case 0:
		if _, err := br.ReadUE(); err != nil {
			return nil, err
		}
	case 1:
		if err := br.SkipBits(1); err != nil { // delta_pic_order_always_zero_flag
			return nil, err
		}
		if _, err := br.ReadSE(); err != nil { // offset_for_non_ref_pic
			return nil, err
		}
		if _, err := br.ReadSE(); err != nil { // offset_for_top_to_bottom_field
			return nil, err
		}
		numRefFramesInCycle, err := br.ReadUE()
		if err != nil {
			return nil, err
		}
		if numRefFramesInCycle > 255 {
			return nil, fmt.Errorf("num_ref_frames_in_pic_order_cnt_cycle %d out of range", numRefFramesInCycle)
		}
		for i := uint32(0); i < numRefFramesInCycle; i++ {
			if _, err := br.ReadSE(); err != nil {
				return nil, err
			}
		}
	}

	maxNumRefFrames, err := br.ReadUE()
	if err != nil {
		return nil, fmt.Errorf("failed to read max_num_ref_frames: %w", err)
	}
	// Reordering depth is bounded by the reference frame count
	hdr.MaxReorderFrames = int(maxNumRefFrames)

	// gaps_in_frame_num_value_allowed_flag
	if err := br.SkipBits(1); err != nil {
		return nil, err
	}

	picWidthInMbs, err := br.ReadUE()
	if err != nil {
		return nil, fmt.Errorf("failed to read pic_width_in_mbs_minus1: %w", err)
	}
	picHeightInMapUnits, err := br.ReadUE()
	if err != nil {
		return nil, fmt.Errorf("failed to read pic_height_in_map_units_minus1: %w", err)
	}

	frameMbsOnly, err := br.ReadBit()
	if err != nil {
		return nil, err
	}
	if frameMbsOnly == 0 {
		// mb_adaptive_frame_field_flag
		if err := br.SkipBits(1); err != nil {
			return nil, err
		}
	}

	// direct_8x8_inference_flag
	if err := br.SkipBits(1); err != nil {
		return nil, err
	}

	width := (int(picWidthInMbs) + 1) * 16
	height := (2 - int(frameMbsOnly)) * (int(picHeightInMapUnits) + 1) * 16

	croppingFlag, err := br.ReadBit()
	if err != nil {
		return nil, err
	}
	if croppingFlag == 1 {
		cropLeft, err := br.ReadUE()
		if err != nil {
			return nil, err
		}
		cropRight, err := br.ReadUE()
		if err != nil {
			return nil, err
		}
		cropTop, err := br.ReadUE()
		if err != nil {
			return nil, err
		}
		cropBottom, err := br.ReadUE()
		if err != nil {
			return nil, err
		}

		cropUnitX, cropUnitY := cropUnits(chromaIDC, int(frameMbsOnly))
		width -= (int(cropLeft) + int(cropRight)) * cropUnitX
		height -= (int(cropTop) + int(cropBottom)) * cropUnitY
	}

	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid SPS geometry: %dx%d", width, height)
	}

	hdr.Width = width
	hdr.Height = height

	return hdr, nil
}

// cropUnits returns the frame cropping units per chroma_format_idc
func cropUnits(chromaIDC uint32, frameMbsOnly int) (x, y int) {
	switch chromaIDC {
	case 0: // monochrome
		x, y = 1, 1
	case 1: // 4:2:0
		x, y = 2, 2
	case 2: // 4:2:2
		x, y = 2, 1
	default: // 4:4:4
		x, y = 1, 1
	}
	y *= 2 - frameMbsOnly
	return x, y
}

// skipScalingList skips one seq_scaling_list of the given size
func skipScalingList(br *BitReader, size int) error {
	lastScale := int32(8)
	nextScale := int32(8)

	for i := 0; i < size; i++ {
		if nextScale != 0 {
			delta, err := br.ReadSE()
			if err != nil {
				return err
			}
			nextScale = (lastScale + delta + 256) % 256
		}
		if nextScale != 0 {
			lastScale = nextScale
		}
	}

	return nil
}
