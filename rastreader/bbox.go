package rastreader

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/terrascope/geometry"
)

// BoundingBox is a rectangle in projection coordinates.
type BoundingBox struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// DefaultBoundingBox spans the whole globe in geographic coordinates.
func DefaultBoundingBox() BoundingBox {
	return BoundingBox{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90}
}

// ParseBoundingBox reads "min_x,min_y,max_x,max_y". The result is not
// validated, see Validate.
func ParseBoundingBox(s string) (BoundingBox, error) {
	coords := strings.Split(s, ",")
	if len(coords) != 4 {
		return BoundingBox{}, eris.Wrapf(ErrInvalidParameter, "bbox %q: expected 4 comma separated values, got %d", s, len(coords))
	}

	pts := make([]float64, 4)
	for i, coord := range coords {
		v, err := strconv.ParseFloat(strings.TrimSpace(coord), 64)
		if err != nil {
			return BoundingBox{}, eris.Wrapf(ErrInvalidParameter, "bbox %q: %v", s, err)
		}
		pts[i] = v
	}

	return BoundingBox{MinX: pts[0], MinY: pts[1], MaxX: pts[2], MaxY: pts[3]}, nil
}

// Validate checks that the box is finite and that its minimum corner is not
// above or right of its maximum corner.
func (b BoundingBox) Validate() error {
	for _, v := range []float64{b.MinX, b.MinY, b.MaxX, b.MaxY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return eris.Wrapf(ErrInvalidParameter, "bbox %s: non finite coordinate", b)
		}
	}
	if b.MinX > b.MaxX || b.MinY > b.MaxY {
		return eris.Wrapf(ErrInvalidParameter, "bbox %s: min corner exceeds max corner", b)
	}
	return nil
}

// Geometry returns the box as a terrascope geometry bounding box.
func (b BoundingBox) Geometry() geometry.BoundingBox {
	return geometry.BBox(b.MinX, b.MinY, b.MaxX, b.MaxY)
}

func (b BoundingBox) String() string {
	return strings.Join([]string{
		strconv.FormatFloat(b.MinX, 'g', -1, 64),
		strconv.FormatFloat(b.MinY, 'g', -1, 64),
		strconv.FormatFloat(b.MaxX, 'g', -1, 64),
		strconv.FormatFloat(b.MaxY, 'g', -1, 64),
	}, ",")
}
