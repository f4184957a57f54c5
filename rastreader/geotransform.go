package rastreader

import (
	"math"

	"github.com/rotisserie/eris"
)

// GeoTransform maps pixel indices to projection coordinates:
// [origin_x, px_width, row_rot, origin_y, col_rot, px_height].
type GeoTransform [6]float64

// RasterToProjection evaluates the affine map at pixel (px, py).
func (gt GeoTransform) RasterToProjection(px, py float64) (float64, float64) {
	x := gt[0] + px*gt[1] + py*gt[2]
	y := gt[3] + px*gt[4] + py*gt[5]
	return x, y
}

// ProjectionToRaster inverts the affine map at (x, y).
func (gt GeoTransform) ProjectionToRaster(x, y float64) (float64, float64, error) {
	det := gt[1]*gt[5] - gt[2]*gt[4]
	if det == 0 || math.IsNaN(det) || math.IsInf(det, 0) {
		return 0, 0, eris.Wrapf(ErrDegenerateTransform, "geotransform %v: determinant %g", [6]float64(gt), det)
	}
	dx := x - gt[0]
	dy := y - gt[3]
	px := (dx*gt[5] - dy*gt[2]) / det
	py := (dy*gt[1] - dx*gt[4]) / det
	return px, py, nil
}

// Window is a region of pixel space. Coordinates are fractional.
type Window struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// PixelWindow converts the corners of bbox to pixel space. The window origin
// is the smallest pixel coordinate of the two corners, so north-up and
// south-up rasters both yield a non-negative size.
func (gt GeoTransform) PixelWindow(bbox BoundingBox) (Window, error) {
	x0, y0, err := gt.ProjectionToRaster(bbox.MinX, bbox.MinY)
	if err != nil {
		return Window{}, err
	}
	x1, y1, err := gt.ProjectionToRaster(bbox.MaxX, bbox.MaxY)
	if err != nil {
		return Window{}, err
	}

	return Window{
		X:      math.Min(x0, x1),
		Y:      math.Min(y0, y1),
		Width:  math.Abs(x1 - x0),
		Height: math.Abs(y1 - y0),
	}, nil
}
