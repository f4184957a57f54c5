package rastreader

import (
	"context"
	"math"
	"path"

	"github.com/ncruces/go-strftime"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// RasterSource binds a storage root to a layer. It holds no mutable state
// and may be shared by concurrent callers.
type RasterSource struct {
	store  Store
	params SourceParams
}

// NewRasterSource returns a source reading the rasters of params from store.
func NewRasterSource(store Store, params SourceParams) *RasterSource {
	return &RasterSource{store: store, params: params}
}

// Params returns the layer description of the source.
func (s *RasterSource) Params() SourceParams {
	return s.params
}

// FilePath returns the name, relative to the store root, of the raster
// holding q. Layers without a tick always use dataset_name.
func (s *RasterSource) FilePath(q Query) (string, error) {
	if s.params.Tick == nil {
		return path.Clean(s.params.DatasetName), nil
	}
	if err := s.params.Tick.Validate(); err != nil {
		return "", err
	}
	name := strftime.Format(s.params.FileNameFormat, s.params.Tick.Snap(q.Start))
	return path.Clean(name), nil
}

// Pull reads the first band of the raster holding q over q.BBox, resampled
// to q.Width x q.Height. Samples are row major. No data samples and pixels
// outside the raster extent are NaN.
func (s *RasterSource) Pull(ctx context.Context, q Query) ([]float32, error) {
	if q.Width <= 0 || q.Height <= 0 {
		return nil, eris.Wrapf(ErrInvalidParameter, "output size %dx%d", q.Width, q.Height)
	}

	name, err := s.FilePath(q)
	if err != nil {
		return nil, err
	}

	obj, err := s.store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	ds, err := OpenDataset(name, obj, s.params)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset %s", name)
	}

	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, eris.Wrapf(err, "dataset %s", name)
	}

	win, err := gt.PixelWindow(q.BBox)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset %s", name)
	}

	noData, hasNoData := ds.NoData()
	if s.params.NoData != nil {
		noData, hasNoData = *s.params.NoData, true
	}

	zap.L().Debug("pulling raster window",
		zap.String("dataset", name),
		zap.Float64("x", win.X), zap.Float64("y", win.Y),
		zap.Float64("width", win.Width), zap.Float64("height", win.Height),
		zap.Int("out_width", q.Width), zap.Int("out_height", q.Height),
	)

	out, err := readWindow(ctx, ds, win, q.Width, q.Height)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset %s", name)
	}

	if hasNoData {
		nd := float32(noData)
		for i, v := range out {
			if v == nd {
				out[i] = float32(math.NaN())
			}
		}
	}

	return out, nil
}

// readWindow resamples win to width x height using nearest neighbour: each
// output pixel takes the value of the source pixel under its centre.
func readWindow(ctx context.Context, ds Dataset, win Window, width, height int) ([]float32, error) {
	xSize, ySize := ds.Size()
	nan := float32(math.NaN())

	cols := make([]int, width)
	for i := range cols {
		cols[i] = int(math.Floor(win.X + (float64(i)+0.5)*win.Width/float64(width)))
	}

	out := make([]float32, width*height)
	for j := 0; j < height; j++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "reading window")
		}

		row := out[j*width : (j+1)*width]
		y := int(math.Floor(win.Y + (float64(j)+0.5)*win.Height/float64(height)))
		if y < 0 || y >= ySize {
			for i := range row {
				row[i] = nan
			}
			continue
		}

		for i, x := range cols {
			if x < 0 || x >= xSize {
				row[i] = nan
				continue
			}
			v, err := ds.Sample(x, y)
			if err != nil {
				return nil, err
			}
			row[i] = float32(v)
		}
	}

	return out, nil
}
