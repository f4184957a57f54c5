package colorizer

import (
	"image"
	"image/color"
	"math"

	"github.com/terrascope/scimage"
	"github.com/terrascope/scimage/scicolor"
)

// noDataValue marks NaN samples for scimage, which compares no data by
// value.
const noDataValue = -math.MaxFloat32

// Gradient renders samples between Min and Max through a palette
// interpolated from the given colors.
type Gradient struct {
	Min     float32
	Max     float32
	Palette []color.NRGBA
}

func (c Gradient) Colorize(samples []float32, width, height int) (image.Image, error) {
	if err := checkSize(samples, width, height); err != nil {
		return nil, err
	}

	pix := make([]float32, len(samples))
	for i, s := range samples {
		if math.IsNaN(float64(s)) {
			s = noDataValue
		}
		pix[i] = s
	}

	img := &scimage.GrayF32{Pix: pix, Stride: width, Rect: image.Rect(0, 0, width, height), Min: c.Min, Max: c.Max, NoData: noDataValue}
	return img.AsPaletted(scicolor.GradientNRGBAPalette(c.Palette)), nil
}
