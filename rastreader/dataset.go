package rastreader

import (
	"bytes"
	"encoding/binary"
	"math"
	"path"
	"strings"

	"github.com/rotisserie/eris"
)

// Dataset is a decoded raster file. Only its first band is exposed.
type Dataset interface {
	// Size returns the raster dimensions in pixels.
	Size() (int, int)
	GeoTransform() (GeoTransform, error)
	NoData() (float64, bool)
	// Sample returns the band 1 value at pixel (x, y), which must lie
	// inside the raster.
	Sample(x, y int) (float64, error)
}

var (
	tiffMagicLE = []byte{'I', 'I', 42, 0}
	tiffMagicBE = []byte{'M', 'M', 0, 42}
)

// OpenDataset decodes obj. Files named *.snp are headerless snappy rasters
// described by params; everything else must be a GeoTIFF.
func OpenDataset(name string, obj Object, params SourceParams) (Dataset, error) {
	if strings.EqualFold(path.Ext(name), ".snp") {
		return openSnappy(obj, params)
	}

	head := make([]byte, 4)
	if _, err := obj.ReadAt(head, 0); err != nil {
		return nil, eris.Wrapf(ErrInvalidFormat, "%s: reading header: %v", name, err)
	}
	if !bytes.Equal(head, tiffMagicLE) && !bytes.Equal(head, tiffMagicBE) {
		return nil, eris.Wrapf(ErrInvalidFormat, "%s: not a TIFF file", name)
	}
	return openGeoTIFF(obj, obj.Size())
}

// sampleSizes lists the sample types a raster may be stored as, with their
// size in bytes.
var sampleSizes = map[string]int{
	"uint8":   1,
	"int8":    1,
	"uint16":  2,
	"int16":   2,
	"uint32":  4,
	"int32":   4,
	"float32": 4,
	"float64": 8,
}

func decodeSample(b []byte, dataType string, bo binary.ByteOrder) float64 {
	switch dataType {
	case "uint8":
		return float64(b[0])
	case "int8":
		return float64(int8(b[0]))
	case "uint16":
		return float64(bo.Uint16(b))
	case "int16":
		return float64(int16(bo.Uint16(b)))
	case "uint32":
		return float64(bo.Uint32(b))
	case "int32":
		return float64(int32(bo.Uint32(b)))
	case "float32":
		return float64(math.Float32frombits(bo.Uint32(b)))
	case "float64":
		return math.Float64frombits(bo.Uint64(b))
	}
	return math.NaN()
}
