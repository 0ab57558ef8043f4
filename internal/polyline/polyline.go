// Package polyline implements the Google encoded polyline algorithm
// used by the skylines live API for its delta-encoded series.
//
// Values are scaled by a factor, delta-encoded against the previous
// value of the same dimension, zigzag-encoded and packed into printable
// ASCII in 5-bit chunks.
package polyline

import (
	"fmt"
	"math"
	"strings"
)

// DecodeDeltas decodes a delta-encoded series of stride-dimensional
// values. The returned slice interleaves dimensions just like the
// input: element i belongs to dimension i % stride.
func DecodeDeltas(encoded string, stride int, factor float64) ([]float64, error) {
	numbers, err := DecodeFloats(encoded, factor)
	if err != nil {
		return nil, err
	}
	if len(numbers)%stride != 0 {
		return nil, fmt.Errorf("polyline: %d values do not fill stride %d", len(numbers), stride)
	}
	last := make([]float64, stride)
	for i := 0; i < len(numbers); {
		for d := 0; d < stride; d, i = d+1, i+1 {
			last[d] += numbers[i]
			numbers[i] = last[d]
		}
	}
	return numbers, nil
}

// DecodeFloats decodes a series of signed integers and divides each by
// factor.
func DecodeFloats(encoded string, factor float64) ([]float64, error) {
	ints, err := DecodeSignedIntegers(encoded)
	if err != nil {
		return nil, err
	}
	floats := make([]float64, len(ints))
	for i, v := range ints {
		floats[i] = float64(v) / factor
	}
	return floats, nil
}

// DecodeSignedIntegers decodes a series of zigzag-encoded integers.
func DecodeSignedIntegers(encoded string) ([]int64, error) {
	var (
		out     []int64
		current int64
		shift   uint
	)
	for i := 0; i < len(encoded); i++ {
		b := int64(encoded[i]) - 63
		if b < 0 {
			return nil, fmt.Errorf("polyline: invalid character %q at offset %d", encoded[i], i)
		}
		current |= (b & 0x1f) << shift
		if b&0x20 != 0 {
			shift += 5
			continue
		}
		if current&1 != 0 {
			out = append(out, ^(current >> 1))
		} else {
			out = append(out, current>>1)
		}
		current, shift = 0, 0
	}
	if shift != 0 {
		return nil, fmt.Errorf("polyline: truncated sequence")
	}
	return out, nil
}

// EncodeDeltas is the inverse of DecodeDeltas.
func EncodeDeltas(numbers []float64, stride int, factor float64) string {
	last := make([]int64, stride)
	deltas := make([]int64, len(numbers))
	for i := 0; i < len(numbers); {
		for d := 0; d < stride; d, i = d+1, i+1 {
			scaled := int64(math.Round(numbers[i] * factor))
			deltas[i] = scaled - last[d]
			last[d] = scaled
		}
	}
	return EncodeSignedIntegers(deltas)
}

// EncodeSignedIntegers zigzag-encodes a series of integers.
func EncodeSignedIntegers(numbers []int64) string {
	var sb strings.Builder
	for _, num := range numbers {
		v := num << 1
		if num < 0 {
			v = -v - 1
		}
		for v >= 0x20 {
			sb.WriteByte(byte(0x20|(v&0x1f)) + 63)
			v >>= 5
		}
		sb.WriteByte(byte(v) + 63)
	}
	return sb.String()
}
