package codec

import "fmt"

// Bit-level reading for sequence header parsing.

// BitReader provides bit-level reading over RBSP data
type BitReader struct {
	data    []byte
	bytePos int
	bitPos  int
}

// NewBitReader creates a new bit reader
func NewBitReader(data []byte) *BitReader {
	return &BitReader{data: data}
}

// ReadBit reads a single bit
func (br *BitReader) ReadBit() (uint8, error) {
	if br.bytePos >= len(br.data) {
		return 0, fmt.Errorf("end of data reached")
	}

	bit := (br.data[br.bytePos] >> (7 - br.bitPos)) & 1
	br.bitPos++

	if br.bitPos >= 8 {
		br.bitPos = 0
		br.bytePos++
	}

	return bit, nil
}

// ReadBits reads up to 32 bits
func (br *BitReader) ReadBits(n int) (uint32, error) {
	if n < 0 || n > 32 {
		return 0, fmt.Errorf("invalid number of bits to read: %d (must be 0-32)", n)
	}

	if n == 0 {
		return 0, nil
	}

	bitsRemaining := (len(br.data)-br.bytePos)*8 - br.bitPos
	if n > bitsRemaining {
		return 0, fmt.Errorf("insufficient bits: requested %d, have %d", n, bitsRemaining)
	}

	var result uint32
	for i := 0; i < n; i++ {
		bit, err := br.ReadBit()
		if err != nil {
			return 0, err
		}
		result = (result << 1) | uint32(bit)
	}
	return result, nil
}

// SkipBits discards n bits
func (br *BitReader) SkipBits(n int) error {
	for n > 32 {
		if _, err := br.ReadBits(32); err != nil {
			return err
		}
		n -= 32
	}
	_, err := br.ReadBits(n)
	return err
}

// HasMoreBits returns true if there are more bits to read
func (br *BitReader) HasMoreBits() bool {
	return br.bytePos < len(br.data)
}

// ReadUE reads an unsigned exponential Golomb coded value
func (br *BitReader) ReadUE() (uint32, error) {
	leadingZeros := 0

	for {
		bit, err := br.ReadBit()
		if err != nil {
			return 0, fmt.Errorf("failed to read bit while counting zeros: %w", err)
		}
		if bit == 1 {
			break
		}
		leadingZeros++
		// 31 leading zeros would overflow uint32
		if leadingZeros > 31 {
			return 0, fmt.Errorf("invalid exponential Golomb code: too many leading zeros (%d)", leadingZeros)
		}
	}

	if leadingZeros == 0 {
		return 0, nil
	}

	value, err := br.ReadBits(leadingZeros)
	if err != nil {
		return 0, fmt.Errorf("failed to read %d value bits: %w", leadingZeros, err)
	}

	return (uint32(1) << leadingZeros) - 1 + value, nil
}

// ReadSE reads a signed exponential Golomb coded value
func (br *BitReader) ReadSE() (int32, error) {
	ue, err := br.ReadUE()
	if err != nil {
		return 0, err
	}

	if ue == 0 {
		return 0, nil
	}

	// ue=1 => 1, ue=2 => -1, ue=3 => 2, ue=4 => -2, ...
	if ue%2 == 1 {
		return int32((ue + 1) / 2), nil
	}
	return -int32(ue / 2), nil
}

// RemoveEmulationPreventionBytes removes 0x03 emulation prevention bytes from
// NAL unit payload data, converting RBSP to the raw bit string.
func RemoveEmulationPreventionBytes(data []byte) ([]byte, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("empty NAL unit data")
	}

	output := make([]byte, 0, len(data))
	zeroCount := 0

	for i := 0; i < len(data); i++ {
		b := data[i]

		if zeroCount >= 2 && b == 0x03 {
			if i+1 < len(data) {
				// Valid emulation prevention: 0x00 0x00 0x03 followed by 0x00-0x03
				if data[i+1] <= 0x03 {
					zeroCount = 0
					continue
				}
			} else {
				// 0x03 at end of data after two zeros is a valid emulation
				// prevention byte; the RBSP stop bit and padding follow.
				zeroCount = 0
				continue
			}
		}

		if b == 0x00 {
			zeroCount++
		} else {
			zeroCount = 0
		}

		output = append(output, b)
	}

	return output, nil
}
