package rastreader

import (
	"context"
	"encoding/json"
	"errors"
	"image/color"
	"io"
	"path"
	"strings"

	"github.com/rotisserie/eris"
)

// Colorizer names accepted in a layer document.
const (
	ColorizerMinMax   = "minmax"
	ColorizerSimple   = "simple"
	ColorizerGradient = "gradient"
)

// SourceParams describes how to find and render the rasters of a layer.
type SourceParams struct {
	DatasetName    string `json:"dataset_name"`
	FileNameFormat string `json:"file_name_format"`
	Tick           *Tick  `json:"tick"`

	Abstract  string        `json:"abstract"`
	Colorizer string        `json:"colorizer"`
	Offset    float64       `json:"offset"`
	Scale     float64       `json:"scale"`
	MinVal    float32       `json:"min_value"`
	MaxVal    float32       `json:"max_value"`
	NoData    *float64      `json:"no_data"`
	Palette   []color.NRGBA `json:"palette"`

	// Headerless rasters carry no metadata of their own.
	XSize        int       `json:"x_size"`
	YSize        int       `json:"y_size"`
	Geotransform []float64 `json:"geotransform"`
	DataType     string    `json:"data_type"`
}

// Validate checks the document for the inconsistencies the pipeline cannot
// recover from at query time.
func (p SourceParams) Validate() error {
	if p.Tick != nil {
		if err := p.Tick.Validate(); err != nil {
			return err
		}
		if p.FileNameFormat == "" {
			return eris.Wrap(ErrConfiguration, "file_name_format is required when tick is set")
		}
	} else if p.DatasetName == "" {
		return eris.Wrap(ErrConfiguration, "dataset_name is required when tick is not set")
	}

	switch p.Colorizer {
	case "", ColorizerMinMax, ColorizerSimple:
	case ColorizerGradient:
		if len(p.Palette) < 2 {
			return eris.Wrap(ErrConfiguration, "gradient colorizer needs at least 2 palette colors")
		}
		if p.MaxVal <= p.MinVal {
			return eris.Wrapf(ErrConfiguration, "gradient colorizer needs max_value > min_value, got [%g, %g]", p.MinVal, p.MaxVal)
		}
	default:
		return eris.Wrapf(ErrConfiguration, "unknown colorizer %q", p.Colorizer)
	}

	if p.Geotransform != nil && len(p.Geotransform) != 6 {
		return eris.Wrapf(ErrConfiguration, "geotransform must have 6 coefficients, got %d", len(p.Geotransform))
	}
	if p.DataType != "" {
		if _, ok := sampleSizes[p.DataType]; !ok {
			return eris.Wrapf(ErrConfiguration, "unknown data_type %q", p.DataType)
		}
	}
	return nil
}

// ReadLayer loads and validates the document of the named layer from store.
// The ".json" suffix is appended to name unless already present.
func ReadLayer(ctx context.Context, store Store, name string) (SourceParams, error) {
	var params SourceParams

	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return params, eris.Wrapf(ErrInvalidParameter, "layer name %q", name)
	}
	fileName := name
	if path.Ext(fileName) != ".json" {
		fileName += ".json"
	}

	obj, err := store.Open(ctx, fileName)
	if err != nil {
		if errors.Is(err, ErrDatasetNotFound) {
			return params, eris.Wrapf(ErrUnknownLayer, "layer %q", name)
		}
		return params, err
	}
	defer obj.Close()

	dec := json.NewDecoder(io.NewSectionReader(obj, 0, obj.Size()))
	if err := dec.Decode(&params); err != nil {
		return params, eris.Wrapf(ErrConfiguration, "layer %q: decoding %s: %v", name, fileName, err)
	}
	if err := params.Validate(); err != nil {
		return params, eris.Wrapf(err, "layer %q", name)
	}

	return params, nil
}
