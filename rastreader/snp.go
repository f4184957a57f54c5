package rastreader

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/golang/snappy"
	"github.com/rotisserie/eris"
)

// snappyRaster is a whole-file snappy block of little endian samples. Its
// size, type and georeference come from the layer document.
type snappyRaster struct {
	data     []byte
	dataType string
	elemSize int
	xSize    int
	ySize    int
	params   SourceParams
}

func openSnappy(obj Object, params SourceParams) (*snappyRaster, error) {
	if params.XSize <= 0 || params.YSize <= 0 {
		return nil, eris.Wrapf(ErrConfiguration, "snappy raster needs positive x_size and y_size, got %dx%d", params.XSize, params.YSize)
	}
	dataType := params.DataType
	if dataType == "" {
		dataType = "float32"
	}
	elemSize, ok := sampleSizes[dataType]
	if !ok {
		return nil, eris.Wrapf(ErrConfiguration, "unknown data_type %q", dataType)
	}

	cdata, err := io.ReadAll(io.NewSectionReader(obj, 0, obj.Size()))
	if err != nil {
		return nil, eris.Wrapf(ErrIO, "reading snappy raster: %v", err)
	}
	data, err := snappy.Decode(nil, cdata)
	if err != nil {
		return nil, eris.Wrapf(ErrInvalidFormat, "decompressing data: %v", err)
	}
	if want := params.XSize * params.YSize * elemSize; len(data) != want {
		return nil, eris.Wrapf(ErrInvalidFormat, "snappy raster holds %d bytes, %dx%d %s needs %d", len(data), params.XSize, params.YSize, dataType, want)
	}

	return &snappyRaster{data: data, dataType: dataType, elemSize: elemSize, xSize: params.XSize, ySize: params.YSize, params: params}, nil
}

func (r *snappyRaster) Size() (int, int) { return r.xSize, r.ySize }

func (r *snappyRaster) GeoTransform() (GeoTransform, error) {
	if len(r.params.Geotransform) != 6 {
		return GeoTransform{}, eris.Wrap(ErrMissingGeoreference, "snappy raster: layer has no geotransform")
	}
	var gt GeoTransform
	copy(gt[:], r.params.Geotransform)
	return gt, nil
}

func (r *snappyRaster) NoData() (float64, bool) {
	if r.params.NoData == nil {
		return 0, false
	}
	return *r.params.NoData, true
}

func (r *snappyRaster) Sample(x, y int) (float64, error) {
	off := (y*r.xSize + x) * r.elemSize
	return decodeSample(r.data[off:off+r.elemSize], r.dataType, binary.LittleEndian), nil
}

// EncodeSnappy compresses samples stored as float32 into the snappy raster
// layout.
func EncodeSnappy(samples []float32) []byte {
	raw := make([]byte, 4*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(v))
	}
	return snappy.Encode(nil, raw)
}
