// Package quantize provides the int8 min-max codec used to store snippet embeddings.
//
// A float32 vector is mapped linearly from its own observed [min, max] range onto
// [-128, 127]. The (min, max) pair is kept as Metadata so the affine map can be
// inverted. A 1536-dimension embedding shrinks from 6 KB to 1.5 KB plus 8 bytes of
// metadata, with a per-component reconstruction error of at most (max-min)/255.
package quantize

import (
	"errors"
	"fmt"
	"math"
)

const (
	// levels is the number of quantization steps between min and max.
	levels = 255.0

	// offset shifts [0, 255] onto the signed int8 range.
	offset = 128.0
)

// ErrInvalidMetadata indicates metadata that cannot be used for dequantization.
var ErrInvalidMetadata = errors.New("invalid quantization metadata")

// Metadata is the float range a vector was quantized from.
type Metadata struct {
	Min float32 `json:"min"`
	Max float32 `json:"max"`
}

// Validate reports whether the metadata describes a usable range.
func (m Metadata) Validate() error {
	lo, hi := float64(m.Min), float64(m.Max)
	if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return fmt.Errorf("%w: non-finite range [%v, %v]", ErrInvalidMetadata, m.Min, m.Max)
	}
	if lo > hi {
		return fmt.Errorf("%w: min %v greater than max %v", ErrInvalidMetadata, m.Min, m.Max)
	}
	return nil
}

// MaxError is the largest per-component reconstruction error for this range.
func (m Metadata) MaxError() float64 {
	return (float64(m.Max) - float64(m.Min)) / levels
}

// Quantize maps v onto int8 values using the vector's own min and max.
// A constant vector quantizes to all zeros.
func Quantize(v []float32) ([]int8, Metadata) {
	q := make([]int8, len(v))
	md, ok := bounds(v)
	if !ok || md.Min == md.Max {
		return q, md
	}

	lo := float64(md.Min)
	scale := levels / (float64(md.Max) - lo)
	for i, x := range v {
		q[i] = clampInt8(math.Round((float64(x)-lo)*scale - offset))
	}
	return q, md
}

// Dequantize inverts Quantize using the stored range.
func Dequantize(q []int8, md Metadata) []float32 {
	out := make([]float32, len(q))
	if md.Min == md.Max {
		for i := range out {
			out[i] = md.Min
		}
		return out
	}

	lo := float64(md.Min)
	step := (float64(md.Max) - lo) / levels
	for i, x := range q {
		out[i] = float32((float64(x)+offset)*step + lo)
	}
	return out
}

// RecoverMetadata rebuilds a range for records persisted before metadata was stored.
// The stored bytes carry no information about the original floats, so the range is the
// observed int8 range itself. Cosine similarity over the result is approximate.
func RecoverMetadata(q []int8) Metadata {
	if len(q) == 0 {
		return Metadata{}
	}
	lo, hi := q[0], q[0]
	for _, x := range q[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return Metadata{Min: float32(lo), Max: float32(hi)}
}

// bounds returns the finite min and max of v. ok is false when v has no finite values.
func bounds(v []float32) (Metadata, bool) {
	lo := float32(math.Inf(1))
	hi := float32(math.Inf(-1))
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			continue
		}
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	if lo > hi {
		return Metadata{}, false
	}
	return Metadata{Min: lo, Max: hi}, true
}

func clampInt8(f float64) int8 {
	switch {
	case math.IsNaN(f):
		return 0
	case f < math.MinInt8:
		return math.MinInt8
	case f > math.MaxInt8:
		return math.MaxInt8
	default:
		return int8(f)
	}
}
