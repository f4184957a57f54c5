package rastreader

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultSize = 256

// Query is a spatio-temporal raster request: the instant to render, the
// area to cover and the output resolution in pixels.
type Query struct {
	Start  time.Time
	BBox   BoundingBox
	Width  int
	Height int
}

// DecodeQuery converts WMS style query parameters into a Query and the name
// of the requested layer. Parameter names are case insensitive.
func DecodeQuery(values url.Values) (Query, string, error) {
	params := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			params[strings.ToLower(k)] = v[0]
		}
	}

	q := Query{BBox: DefaultBoundingBox(), Width: defaultSize, Height: defaultSize}

	var err error
	if q.Width, err = parseSize(params, "width"); err != nil {
		return q, "", err
	}
	if q.Height, err = parseSize(params, "height"); err != nil {
		return q, "", err
	}

	if s, ok := params["bbox"]; ok {
		if q.BBox, err = ParseBoundingBox(s); err != nil {
			return q, "", err
		}
	}
	if err := q.BBox.Validate(); err != nil {
		return q, "", err
	}

	s, ok := params["time"]
	if !ok || s == "" {
		return q, "", eris.Wrap(ErrMissingParameter, "time")
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return q, "", eris.Wrapf(ErrInvalidParameter, "time %q: %v", s, err)
	}
	q.Start = t.UTC()

	layer := params["layer"]
	if layer == "" {
		layer = strings.Split(params["layers"], ",")[0]
	}
	if layer == "" {
		return q, "", eris.Wrap(ErrMissingParameter, "layer")
	}

	return q, layer, nil
}

func parseSize(params map[string]string, name string) (int, error) {
	s, ok := params[name]
	if !ok {
		return defaultSize, nil
	}
	v, err := strconv.ParseUint(s, 10, 31)
	if err != nil {
		return 0, eris.Wrapf(ErrInvalidParameter, "%s %q: %v", name, s, err)
	}
	if v == 0 {
		return 0, eris.Wrapf(ErrInvalidParameter, "%s must be positive", name)
	}
	return int(v), nil
}
