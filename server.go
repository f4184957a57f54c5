package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"google.golang.org/api/option"

	"github.com/prl900/gray_wms/colorizer"
	"github.com/prl900/gray_wms/config"
	"github.com/prl900/gray_wms/metrics"
	"github.com/prl900/gray_wms/rastreader"
)

// WMS renders GetMap requests. Pulls are blocking, so the number running at
// once is bounded by sem.
type WMS struct {
	rasters rastreader.Store
	layers  rastreader.Store
	limits  config.ServerConfig
	sem     *semaphore.Weighted
}

// NewWMS returns a renderer reading rasters and layer documents from the
// given stores.
func NewWMS(rasters, layers rastreader.Store, limits config.ServerConfig) *WMS {
	return &WMS{
		rasters: rasters,
		layers:  layers,
		limits:  limits,
		sem:     semaphore.NewWeighted(int64(limits.MaxConcurrent)),
	}
}

// Render resolves q against the named layer and colorizes the result.
func (s *WMS) Render(ctx context.Context, q rastreader.Query, layerName string) (image.Image, error) {
	params, err := rastreader.ReadLayer(ctx, s.layers, layerName)
	if err != nil {
		return nil, err
	}
	src := rastreader.NewRasterSource(s.rasters, params)

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, eris.Wrap(err, "waiting for a pull slot")
	}
	metrics.PullsInFlight.Inc()
	start := time.Now()
	data, err := src.Pull(ctx, q)
	metrics.PullsInFlight.Dec()
	s.sem.Release(1)
	metrics.PullDuration.WithLabelValues(layerName).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PullErrors.WithLabelValues(layerName, fmt.Sprint(rastreader.HTTPStatus(err))).Inc()
		return nil, err
	}

	return colorizer.ForLayer(params).Colorize(data, q.Width, q.Height)
}

var errTooLarge = eris.New("request too large")

// CheckLimits rejects queries covering more area or pixels than the server
// is configured to render.
func (s *WMS) CheckLimits(q rastreader.Query) error {
	g := q.BBox.Geometry()
	if area := g.Area(); s.limits.MaxArea > 0 && area > s.limits.MaxArea {
		return eris.Wrapf(errTooLarge, "too big area: %f", area)
	}
	if limit := s.limits.MaxPixels; limit > 0 && (q.Width > limit || q.Height > limit) {
		return eris.Wrapf(errTooLarge, "too big image: %dx%d, max %d per side", q.Width, q.Height, limit)
	}
	return nil
}

// ServeHTTP answers WMS GetMap requests with a PNG image.
func (s *WMS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	for k, v := range params {
		switch strings.ToLower(k) {
		case "service":
			if len(v) > 0 && !strings.EqualFold(v[0], "WMS") {
				http.Error(w, "Malformed WMS GetMap request", http.StatusBadRequest)
				return
			}
		case "request":
			if len(v) > 0 && !strings.EqualFold(v[0], "GetMap") {
				http.Error(w, fmt.Sprintf("Unsupported WMS request %q", v[0]), http.StatusBadRequest)
				return
			}
		}
	}

	q, layerName, err := rastreader.DecodeQuery(params)
	if err != nil {
		http.Error(w, fmt.Sprintf("Malformed WMS GetMap request: %v", err), rastreader.HTTPStatus(err))
		return
	}

	if err := s.CheckLimits(q); err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}

	img, err := s.Render(r.Context(), q, layerName)
	if err != nil {
		status := rastreader.HTTPStatus(err)
		fields := []zap.Field{
			zap.String("layer", layerName),
			zap.Time("time", q.Start),
			zap.Stringer("bbox", q.BBox),
			zap.Error(err),
		}
		switch {
		case status == rastreader.StatusClientClosedRequest:
		case status == http.StatusServiceUnavailable:
			zap.L().Warn("wms: render timed out", fields...)
		case status >= http.StatusInternalServerError:
			zap.L().Error("wms: render failed", fields...)
		}
		http.Error(w, err.Error(), status)
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		zap.L().Error("wms: png encoding failed", zap.String("layer", layerName), zap.Error(err))
		http.Error(w, fmt.Sprintf("Error PNG encoding tile: %v", err), http.StatusInternalServerError)
		return
	}

	// Enable browser and intermediate caching
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// NewRouter mounts the WMS endpoint with health and metrics routes.
func NewRouter(s *WMS) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
	}))

	r.With(metrics.Middleware("/wms")).Get("/wms", s.ServeHTTP)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
			zap.L().Warn("writing health response", zap.Error(err))
		}
	})
	r.Handle("/metrics", metrics.Handler())
	return r
}

// openStores opens the raster and layer stores named by cfg. The returned
// function releases them.
func openStores(ctx context.Context, cfg *config.Config) (rasters, layers rastreader.Store, closeFn func(), err error) {
	var opts []option.ClientOption
	if cfg.GCS.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.GCS.Endpoint))
	}
	if cfg.GCS.Anonymous {
		opts = append(opts, option.WithoutAuthentication())
	}

	rasters, err = rastreader.OpenStore(ctx, cfg.Data.BasePath, opts...)
	if err != nil {
		return nil, nil, nil, err
	}
	layers = rasters
	if cfg.Data.LayerPath != cfg.Data.BasePath {
		if layers, err = rastreader.OpenStore(ctx, cfg.Data.LayerPath, opts...); err != nil {
			closeStore(rasters)
			return nil, nil, nil, err
		}
	}

	return rasters, layers, func() {
		closeStore(rasters)
		if layers != rasters {
			closeStore(layers)
		}
	}, nil
}

func closeStore(s rastreader.Store) {
	if c, ok := s.(io.Closer); ok {
		if err := c.Close(); err != nil {
			zap.L().Warn("closing store", zap.Error(err))
		}
	}
}

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the WMS server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rasters, layers, closeStores, err := openStores(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStores()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           NewRouter(NewWMS(rasters, layers, cfg.Server)),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("base_path", cfg.Data.BasePath),
			zap.String("layer_path", cfg.Data.LayerPath),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
