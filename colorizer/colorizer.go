// Package colorizer turns raster samples into 8-bit images.
package colorizer

import (
	"image"
	"math"

	"github.com/rotisserie/eris"

	"github.com/prl900/gray_wms/rastreader"
)

// ErrSizeMismatch is returned when the number of samples does not match the
// requested image size.
var ErrSizeMismatch = eris.New("sample count does not match image size")

// Colorizer maps a row major array of samples to an image of the given
// size. NaN samples are rendered as 0.
type Colorizer interface {
	Colorize(samples []float32, width, height int) (image.Image, error)
}

// ForLayer returns the colorizer configured by a layer document.
func ForLayer(params rastreader.SourceParams) Colorizer {
	switch params.Colorizer {
	case rastreader.ColorizerSimple:
		return SimpleScale{Offset: params.Offset, Scale: params.Scale}
	case rastreader.ColorizerGradient:
		return Gradient{Min: params.MinVal, Max: params.MaxVal, Palette: params.Palette}
	default:
		return MinMaxScale{}
	}
}

func checkSize(samples []float32, width, height int) error {
	if width < 0 || height < 0 || len(samples) != width*height {
		return eris.Wrapf(ErrSizeMismatch, "%d samples for %dx%d", len(samples), width, height)
	}
	return nil
}

// clampByte rounds v to the nearest integer inside [0, 255].
func clampByte(v float64) uint8 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(math.Round(v))
	}
}
