package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"

	"github.com/signalsfoundry/geopoly/core"
	"github.com/signalsfoundry/geopoly/internal/config"
	"github.com/signalsfoundry/geopoly/internal/logging"
	"github.com/signalsfoundry/geopoly/internal/observability"
	"github.com/signalsfoundry/geopoly/kb"
)

const (
	requestIDHeader = "X-Request-ID"
	maxRequestBody  = 8 << 20
)

type server struct {
	store     *kb.RegionStore
	collector *observability.Collector
	log       logging.Logger
	cfg       config.Config
}

func newServer(store *kb.RegionStore, collector *observability.Collector, log logging.Logger, cfg config.Config) *server {
	if log == nil {
		log = logging.Noop()
	}
	return &server{store: store, collector: collector, log: log, cfg: cfg}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /v1/regions", s.instrument("regions", s.handleRegions))
	mux.Handle("POST /v1/contains", s.instrument("contains", s.handleContains))
	mux.Handle("GET /v1/locate", s.instrument("locate", s.handleLocate))
	return mux
}

// instrument attaches a request-scoped logger and records route metrics.
func (s *server) instrument(route string, fn http.HandlerFunc) http.Handler {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := r.Header.Get(requestIDHeader); id != "" {
			ctx = logging.ContextWithRequestID(ctx, id)
		}
		ctx, log := logging.WithRequestLogger(ctx, s.log)
		w.Header().Set(requestIDHeader, logging.RequestIDFromContext(ctx))

		start := time.Now()
		fn(w, r.WithContext(ctx))
		log.Debug(ctx, "handled request",
			logging.String("route", route),
			logging.String("method", r.Method),
			logging.Duration("duration", time.Since(start)),
		)
	})
	return s.collector.Middleware(route, h)
}

type regionSummary struct {
	ID       string  `json:"id"`
	Name     string  `json:"name,omitempty"`
	Edges    int     `json:"edges"`
	Global   bool    `json:"global"`
	AreaSr   float64 `json:"area_sr"`
	Bottom   string  `json:"bottom,omitempty"`
	Top      string  `json:"top,omitempty"`
	Volume3D bool    `json:"volume"`
}

func summarize(r *core.Region, _ int) regionSummary {
	out := regionSummary{
		ID:     r.ID,
		Name:   r.Name,
		Edges:  r.Polygon.Len(),
		Global: r.Polygon.IsGlobal(),
		AreaSr: r.Polygon.Area(),
	}
	if r.Volume != nil {
		out.Volume3D = true
		out.Bottom = r.Volume.Bottom().String()
		out.Top = r.Volume.Top().String()
	}
	return out
}

func (s *server) handleRegions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"regions": lo.Map(s.store.List(), summarize),
	})
}

type pointRequest struct {
	Lat      float64  `json:"lat"`
	Lon      float64  `json:"lon"`
	RadiusKm *float64 `json:"radius_km,omitempty"`
	Layer    *int     `json:"layer,omitempty"`
}

type containsRequest struct {
	Region     string         `json:"region,omitempty"`
	Points     []pointRequest `json:"points"`
	LayerRadii []float64      `json:"layer_radii,omitempty"`
}

type containsResponse struct {
	Results map[string][]bool `json:"results"`
}

func (s *server) handleContains(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.LoggerFromContext(ctx)

	var req containsRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	for i, p := range req.Points {
		if p.Lat < -90 || p.Lat > 90 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("point %d: invalid lat %v", i, p.Lat))
			return
		}
	}

	regions := s.store.List()
	if req.Region != "" {
		region := s.store.Get(req.Region)
		if region == nil {
			writeError(w, http.StatusNotFound, fmt.Errorf("region %q not found", req.Region))
			return
		}
		regions = []*core.Region{region}
	}

	points := lo.Map(req.Points, func(p pointRequest, _ int) r3.Vector {
		return s.cfg.Earth.VectorFromLatLonDegrees(p.Lat, p.Lon)
	})
	opts := []core.BatchOption{
		core.WithWorkers(s.cfg.Workers),
		core.WithBatchSize(s.cfg.BatchSize),
		core.WithLogger(log),
		core.WithRecorder(s.collector),
	}

	results := make(map[string][]bool, len(regions))
	for _, region := range regions {
		in, err := region.Polygon.ContainsBatch(ctx, points, opts...)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Errorf("region %q: %w", region.ID, err))
			return
		}
		if region.Volume != nil {
			if err := refineVolume(region.Volume, req, points, in); err != nil {
				status := http.StatusInternalServerError
				if errors.Is(err, core.ErrLayerOutOfRange) {
					status = http.StatusBadRequest
				}
				writeError(w, status, fmt.Errorf("region %q: %w", region.ID, err))
				return
			}
		}
		results[region.ID] = in
	}

	log.Info(ctx, "classified points",
		logging.Int("points", len(points)),
		logging.Int("regions", len(regions)),
	)
	writeJSON(w, http.StatusOK, containsResponse{Results: results})
}

// refineVolume narrows footprint results to the layer and radial bounds of
// v. Points with neither radius nor layer keep their footprint answer; a
// layer without a radius is gated by layer only, and a radius without a
// layer is treated as layer 0.
func refineVolume(v *core.Polygon3D, req containsRequest, points []r3.Vector, in []bool) error {
	for i, p := range req.Points {
		if !in[i] {
			continue
		}
		switch {
		case p.RadiusKm != nil:
			ok, err := v.Contains(points[i], *p.RadiusKm, lo.FromPtr(p.Layer), req.LayerRadii)
			if err != nil {
				return err
			}
			in[i] = ok
		case p.Layer != nil:
			in[i] = v.ContainsLayer(points[i], *p.Layer)
		}
	}
	return nil
}

func (s *server) handleLocate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid lat %q", q.Get("lat")))
		return
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid lon %q", q.Get("lon")))
		return
	}

	ids := s.store.Locate(s.cfg.Earth.VectorFromLatLonDegrees(lat, lon))
	writeJSON(w, http.StatusOK, map[string]any{"regions": ids})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
