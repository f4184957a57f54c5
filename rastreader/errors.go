package rastreader

import (
	"context"
	"errors"
	"net/http"

	"github.com/rotisserie/eris"
)

// Error kinds returned by the query pipeline. Call sites wrap one of these
// with context; test for a kind with errors.Is.
var (
	ErrConfiguration       = eris.New("invalid configuration")
	ErrUnknownLayer        = eris.New("unknown layer")
	ErrDatasetNotFound     = eris.New("dataset not found")
	ErrInvalidFormat       = eris.New("invalid raster format")
	ErrMissingGeoreference = eris.New("missing georeference")
	ErrDegenerateTransform = eris.New("degenerate geotransform")
	ErrMissingParameter    = eris.New("missing required parameter")
	ErrInvalidParameter    = eris.New("invalid parameter")
	ErrIO                  = eris.New("i/o error")
)

// StatusClientClosedRequest is answered when the client went away before the
// map was rendered.
const StatusClientClosedRequest = 499

// HTTPStatus maps an error returned by this package to the status code the
// WMS handler answers with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrMissingParameter), errors.Is(err, ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnknownLayer), errors.Is(err, ErrDatasetNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidFormat), errors.Is(err, ErrMissingGeoreference),
		errors.Is(err, ErrDegenerateTransform):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
