package codec

import "fmt"

// AV1 sequence header OBU parsing. Only the fields needed for the decode
// profile are read: seq_profile and the maximum frame geometry. Bit depth is
// taken from the caller's hint since color_config sits behind feature flags
// this layer does not interpret.

const obuTypeSequenceHeader = 1

// ParseAV1SequenceHeader parses an AV1 sequence header OBU. The data must
// start at the OBU header. bitDepthHint supplies the profile bit depth when
// it is not zero; otherwise 8 is assumed.
func ParseAV1SequenceHeader(data []byte, bitDepthHint int) (*SequenceHeader, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("sequence header OBU too short: %d bytes", len(data))
	}

	if data[0]&0x80 != 0 {
		return nil, fmt.Errorf("obu forbidden bit set")
	}

	obuType := (data[0] >> 3) & 0x0F
	if obuType != obuTypeSequenceHeader {
		return nil, fmt.Errorf("not a sequence header OBU: type %d", obuType)
	}

	extensionFlag := data[0]&0x04 != 0
	hasSizeField := data[0]&0x02 != 0

	offset := 1
	if extensionFlag {
		offset++
	}
	if hasSizeField {
		// leb128 obu_size
		for {
			if offset >= len(data) {
				return nil, fmt.Errorf("truncated obu_size field")
			}
			b := data[offset]
			offset++
			if b&0x80 == 0 {
				break
			}
		}
	}
	if offset >= len(data) {
		return nil, fmt.Errorf("empty sequence header payload")
	}

	br := NewBitReader(data[offset:])

	seqProfile, err := br.ReadBits(3)
	if err != nil {
		return nil, fmt.Errorf("failed to read seq_profile: %w", err)
	}
	if seqProfile > 2 {
		return nil, fmt.Errorf("invalid seq_profile: %d", seqProfile)
	}

	// still_picture
	if err := br.SkipBits(1); err != nil {
		return nil, err
	}

	reducedStillPicture, err := br.ReadBit()
	if err != nil {
		return nil, err
	}

	if reducedStillPicture == 1 {
		// seq_level_idx[0]
		if err := br.SkipBits(5); err != nil {
			return nil, err
		}
	} else {
		timingInfoPresent, err := br.ReadBit()
		if err != nil {
			return nil, err
		}

		decoderModelInfoPresent := uint8(0)
		bufferDelayLength := 0
		if timingInfoPresent == 1 {
			// num_units_in_display_tick(32) + time_scale(32)
			if err := br.SkipBits(64); err != nil {
				return nil, fmt.Errorf("truncated timing_info: %w", err)
			}
			equalPictureInterval, err := br.ReadBit()
			if err != nil {
				return nil, err
			}
			if equalPictureInterval == 1 {
				// num_ticks_per_picture_minus_1, uvlc
				if _, err := br.ReadUE(); err != nil {
					return nil, fmt.Errorf("truncated timing_info: %w", err)
				}
			}

			decoderModelInfoPresent, err = br.ReadBit()
			if err != nil {
				return nil, err
			}
			if decoderModelInfoPresent == 1 {
				delayLen, err := br.ReadBits(5)
				if err != nil {
					return nil, err
				}
				bufferDelayLength = int(delayLen) + 1
				// num_units_in_decoding_tick(32) +
				// buffer_removal_time_length_minus_1(5) +
				// frame_presentation_time_length_minus_1(5)
				if err := br.SkipBits(42); err != nil {
					return nil, fmt.Errorf("truncated decoder_model_info: %w", err)
				}
			}
		}

		initialDisplayDelayPresent, err := br.ReadBit()
		if err != nil {
			return nil, err
		}

		operatingPoints, err := br.ReadBits(5)
		if err != nil {
			return nil, err
		}
		for i := uint32(0); i <= operatingPoints; i++ {
			// operating_point_idc(12) + seq_level_idx(5)
			if err := br.SkipBits(12); err != nil {
				return nil, err
			}
			levelIdx, err := br.ReadBits(5)
			if err != nil {
				return nil, err
			}
			if levelIdx > 7 {
				// seq_tier
				if err := br.SkipBits(1); err != nil {
					return nil, err
				}
			}
			if decoderModelInfoPresent == 1 {
				present, err := br.ReadBit()
				if err != nil {
					return nil, err
				}
				if present == 1 {
					// decoder_buffer_delay + encoder_buffer_delay +
					// low_delay_mode_flag
					if err := br.SkipBits(2*bufferDelayLength + 1); err != nil {
						return nil, err
					}
				}
			}
			if initialDisplayDelayPresent == 1 {
				present, err := br.ReadBit()
				if err != nil {
					return nil, err
				}
				if present == 1 {
					if err := br.SkipBits(4); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	widthBits, err := br.ReadBits(4)
	if err != nil {
		return nil, err
	}
	heightBits, err := br.ReadBits(4)
	if err != nil {
		return nil, err
	}

	maxWidth, err := br.ReadBits(int(widthBits) + 1)
	if err != nil {
		return nil, fmt.Errorf("failed to read max_frame_width: %w", err)
	}
	maxHeight, err := br.ReadBits(int(heightBits) + 1)
	if err != nil {
		return nil, fmt.Errorf("failed to read max_frame_height: %w", err)
	}

	bitDepth := bitDepthHint
	if bitDepth == 0 {
		bitDepth = 8
	}

	// seq_profile implies the chroma layout: 0 = 4:2:0, 1 = 4:4:4,
	// 2 = 4:2:2 (or 4:4:4 at 12-bit, resolved by color_config which this
	// layer does not parse)
	chroma := Chroma420
	switch seqProfile {
	case 1:
		chroma = Chroma444
	case 2:
		chroma = Chroma422
	}

	return &SequenceHeader{
		Codec:            TypeAV1,
		Width:            int(maxWidth) + 1,
		Height:           int(maxHeight) + 1,
		BitDepthLuma:     bitDepth,
		BitDepthChroma:   bitDepth,
		Chroma:           chroma,
		MaxReorderFrames: 0, // AV1 emits frames in presentation order at this layer
	}, nil
}
