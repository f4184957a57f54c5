package colorizer

import (
	"image"
	"math"
)

// midGray is the value of every valid pixel when the samples hold no range
// to stretch.
const midGray = 128

// SimpleScale maps a sample s to round((s - Offset) * Scale), clamped to
// [0, 255].
type SimpleScale struct {
	Offset float64
	Scale  float64
}

func (c SimpleScale) Colorize(samples []float32, width, height int) (image.Image, error) {
	if err := checkSize(samples, width, height); err != nil {
		return nil, err
	}

	img := image.NewGray(image.Rect(0, 0, width, height))
	for i, s := range samples {
		img.Pix[i] = clampByte((float64(s) - c.Offset) * c.Scale)
	}
	return img, nil
}

// MinMaxScale stretches the finite samples linearly so the smallest maps to
// 0 and the largest to 255. Without a range to stretch, every finite sample
// is mid gray.
type MinMaxScale struct{}

func (MinMaxScale) Colorize(samples []float32, width, height int) (image.Image, error) {
	if err := checkSize(samples, width, height); err != nil {
		return nil, err
	}

	lo, hi := Range(samples)

	img := image.NewGray(image.Rect(0, 0, width, height))
	for i, s := range samples {
		v := float64(s)
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			img.Pix[i] = 0
		case hi <= lo:
			img.Pix[i] = midGray
		default:
			img.Pix[i] = clampByte((v - lo) / (hi - lo) * 255)
		}
	}
	return img, nil
}

// Range returns the smallest and largest finite samples. The scan starts
// from the extreme float32 values, so an array without finite samples
// returns lo > hi.
func Range(samples []float32) (lo, hi float64) {
	lo, hi = math.MaxFloat32, -math.MaxFloat32
	for _, s := range samples {
		v := float64(s)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
