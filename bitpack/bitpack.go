// Package bitpack decodes the bit-packed numeric vectors used by compressed
// mesh and animation data.
//
// A packed vector stores a sequence of unsigned integers of a fixed bit width,
// least-significant bit first, with items crossing byte boundaries. Floats are
// stored quantized: a raw integer is mapped into [start, start+range] by
// dividing range into 2^bitSize-1 steps.
package bitpack

import (
	"errors"
	"fmt"
)

// MaxBitSize is the widest item supported.
const MaxBitSize = 32

// ErrBitSize indicates a bit size outside [0, MaxBitSize].
var ErrBitSize = errors.New("invalid bit size")

// ErrShortData is matched by every *ShortDataError.
var ErrShortData = errors.New("packed data too short")

// ShortDataError indicates that a packed buffer does not contain the
// requested items.
type ShortDataError struct {
	Start    int
	Items    int
	BitSize  int
	Required int
	Length   int
}

func (err *ShortDataError) Error() string {
	return fmt.Sprintf("unpacking %d items of %d bits from item %d requires %d bytes, have %d", err.Items, err.BitSize, err.Start, err.Required, err.Length)
}

func (err *ShortDataError) Is(target error) bool {
	return target == ErrShortData
}

// RequiredBytes returns the number of bytes a buffer must contain to hold
// numItems items of bitSize bits starting at item start.
func RequiredBytes(bitSize, start, numItems int) int {
	bits := (start + numItems) * bitSize
	return (bits + 7) / 8
}

func check(data []byte, bitSize, start, numItems int) error {
	if bitSize < 0 || bitSize > MaxBitSize {
		return fmt.Errorf("%w: %d", ErrBitSize, bitSize)
	}
	if start < 0 || numItems < 0 {
		return fmt.Errorf("negative item range (start %d, count %d)", start, numItems)
	}
	if need := RequiredBytes(bitSize, start, numItems); need > len(data) {
		return &ShortDataError{Start: start, Items: numItems, BitSize: bitSize, Required: need, Length: len(data)}
	}
	return nil
}

// UnpackInts decodes numItems integers of bitSize bits, beginning at item
// index start. Every result is less than 2^bitSize.
func UnpackInts(data []byte, bitSize, start, numItems int) ([]uint32, error) {
	if err := check(data, bitSize, start, numItems); err != nil {
		return nil, err
	}
	out := make([]uint32, numItems)
	if bitSize == 0 {
		return out, nil
	}
	mask := uint64(1)<<uint(bitSize) - 1
	bitPos := start * bitSize
	index := bitPos / 8
	bitPos %= 8
	for i := range out {
		var value uint64
		for bits := 0; bits < bitSize; {
			value |= uint64(data[index]>>uint(bitPos)) << uint(bits)
			n := bitSize - bits
			if 8-bitPos < n {
				n = 8 - bitPos
			}
			bitPos += n
			bits += n
			if bitPos == 8 {
				index++
				bitPos = 0
			}
		}
		out[i] = uint32(value & mask)
	}
	return out, nil
}

// UnpackFloats decodes numItems quantized floats beginning at item index
// start. Each raw value v maps to v*(rng/(2^bitSize-1)) + offset. With a bit
// size of zero, every value equals offset.
func UnpackFloats(data []byte, bitSize, start, numItems int, rng, offset float32) ([]float32, error) {
	raw, err := UnpackInts(data, bitSize, start, numItems)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(raw))
	if bitSize == 0 {
		for i := range out {
			out[i] = offset
		}
		return out, nil
	}
	scale := float64(rng) / float64(uint64(1)<<uint(bitSize)-1)
	for i, v := range raw {
		out[i] = float32(float64(v)*scale + float64(offset))
	}
	return out, nil
}

// Pack encodes values with bitSize bits each, in the layout read by
// UnpackInts. Values wider than bitSize are rejected.
func Pack(values []uint32, bitSize int) ([]byte, error) {
	if bitSize < 0 || bitSize > MaxBitSize {
		return nil, fmt.Errorf("%w: %d", ErrBitSize, bitSize)
	}
	out := make([]byte, RequiredBytes(bitSize, 0, len(values)))
	if bitSize == 0 {
		return out, nil
	}
	bitPos := 0
	index := 0
	for i, v := range values {
		if bitSize < 32 && v>>uint(bitSize) != 0 {
			return nil, fmt.Errorf("value %d at index %d does not fit in %d bits", v, i, bitSize)
		}
		for bits := 0; bits < bitSize; {
			out[index] |= byte(uint64(v)>>uint(bits)) << uint(bitPos)
			n := bitSize - bits
			if 8-bitPos < n {
				n = 8 - bitPos
			}
			bitPos += n
			bits += n
			if bitPos == 8 {
				index++
				bitPos = 0
			}
		}
	}
	return out, nil
}

// Quantize maps floats onto bitSize-bit integers using the inverse of the
// mapping applied by UnpackFloats, rounding to the nearest step and clamping
// to the representable range.
func Quantize(values []float32, bitSize int, rng, offset float32) ([]uint32, error) {
	if bitSize < 0 || bitSize > MaxBitSize {
		return nil, fmt.Errorf("%w: %d", ErrBitSize, bitSize)
	}
	out := make([]uint32, len(values))
	if bitSize == 0 || rng == 0 {
		return out, nil
	}
	max := float64(uint64(1)<<uint(bitSize) - 1)
	for i, v := range values {
		q := (float64(v) - float64(offset)) / float64(rng) * max
		switch {
		case q <= 0:
			q = 0
		case q >= max:
			q = max
		default:
			q += 0.5
		}
		out[i] = uint32(q)
	}
	return out, nil
}
