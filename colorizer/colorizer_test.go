package colorizer

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prl900/gray_wms/rastreader"
)

var nan = float32(math.NaN())

func grayPix(t *testing.T, img image.Image) []uint8 {
	t.Helper()
	g, ok := img.(*image.Gray)
	require.True(t, ok, "expected *image.Gray, got %T", img)
	return g.Pix
}

func TestSimpleScale(t *testing.T) {
	img, err := SimpleScale{Offset: 0, Scale: 128}.Colorize([]float32{0, 1, 2}, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 1), img.Bounds())
	assert.Equal(t, []uint8{0, 128, 255}, grayPix(t, img))

	img, err = SimpleScale{Offset: 10, Scale: 0.5}.Colorize([]float32{10, 11, 9, 520, nan, 300.6}, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 1, 0, 255, 0, 145}, grayPix(t, img))
}

func TestMinMaxScale(t *testing.T) {
	img, err := MinMaxScale{}.Colorize([]float32{-5, 0, 5, nan}, 2, 2)
	require.NoError(t, err)
	pix := grayPix(t, img)
	assert.Equal(t, uint8(0), pix[0])
	assert.Equal(t, uint8(128), pix[1])
	assert.Equal(t, uint8(255), pix[2])
	assert.Equal(t, uint8(0), pix[3])
}

func TestMinMaxScaleDegenerate(t *testing.T) {
	img, err := MinMaxScale{}.Colorize([]float32{42, 42, nan, 42}, 4, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint8{128, 128, 0, 128}, grayPix(t, img))

	img, err = MinMaxScale{}.Colorize([]float32{nan, nan}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 0}, grayPix(t, img))
}

func TestRange(t *testing.T) {
	lo, hi := Range([]float32{3, nan, -1, float32(math.Inf(1)), 7})
	assert.Equal(t, -1.0, lo)
	assert.Equal(t, 7.0, hi)

	lo, hi = Range(nil)
	assert.Greater(t, lo, hi)
}

func TestColorizeSizeMismatch(t *testing.T) {
	for _, c := range []Colorizer{
		SimpleScale{Scale: 1},
		MinMaxScale{},
		Gradient{Min: 0, Max: 1, Palette: []color.NRGBA{{0, 0, 0, 255}, {255, 255, 255, 255}}},
	} {
		_, err := c.Colorize([]float32{1, 2, 3}, 2, 2)
		assert.ErrorIs(t, err, ErrSizeMismatch, "%T", c)
	}
}

func TestGradient(t *testing.T) {
	c := Gradient{Min: 0, Max: 10, Palette: []color.NRGBA{{0, 0, 255, 255}, {255, 0, 0, 255}}}
	img, err := c.Colorize([]float32{0, 5, 10, nan, 2, 8}, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())
}

func TestForLayer(t *testing.T) {
	assert.Equal(t, MinMaxScale{}, ForLayer(rastreader.SourceParams{}))
	assert.Equal(t, MinMaxScale{}, ForLayer(rastreader.SourceParams{Colorizer: rastreader.ColorizerMinMax}))
	assert.Equal(t, SimpleScale{Offset: 1, Scale: 2}, ForLayer(rastreader.SourceParams{Colorizer: rastreader.ColorizerSimple, Offset: 1, Scale: 2}))

	palette := []color.NRGBA{{0, 0, 0, 255}, {255, 255, 255, 255}}
	got := ForLayer(rastreader.SourceParams{Colorizer: rastreader.ColorizerGradient, MinVal: 1, MaxVal: 9, Palette: palette})
	assert.Equal(t, Gradient{Min: 1, Max: 9, Palette: palette}, got)
}
