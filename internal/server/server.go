// Package server exposes the tile layer over HTTP: rendered map
// snapshots, raw tile passthrough and a health endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/paulmach/orb"

	"maplayer/layer"
	"maplayer/tiles"
)

const (
	defaultWidth  = 800
	defaultHeight = 600
	maxDimension  = 4096
)

type Server struct {
	source    *tiles.Source
	log       *slog.Logger
	startTime time.Time
}

func New(source *tiles.Source, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		source:    source,
		log:       log,
		startTime: time.Now(),
	}
}

// Handler returns the HTTP handler for all endpoints.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Get("/map", s.handleMap)
	r.Get("/tiles/{z}/{x}/{y}", s.handleTile)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := int(time.Since(s.startTime).Seconds())
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"uptime": uptime,
	})
}

// handleMap renders a bounding box to PNG. Query parameters: bbox
// (minLon,minLat,maxLon,maxLat, required), width, height, opacity,
// borders.
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	bound, err := parseBBox(q.Get("bbox"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	width, err := parseDimension(q.Get("width"), defaultWidth)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("width: %v", err))
		return
	}
	height, err := parseDimension(q.Get("height"), defaultHeight)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("height: %v", err))
		return
	}

	opacity := 1.0
	if v := q.Get("opacity"); v != "" {
		opacity, err = strconv.ParseFloat(v, 64)
		if err != nil || opacity < 0 || opacity > 1 {
			s.writeError(w, http.StatusBadRequest, "opacity must be a number in [0, 1]")
			return
		}
	}

	rend := layer.New(s.source, opacity)
	defer rend.Close()
	if q.Get("borders") == "true" || q.Get("borders") == "1" {
		rend.SetDrawTileBorders(true)
	}

	view := layer.NewBoundsView(s.source.Scheme(), bound, width, height)

	img, err := layer.Snapshot(r.Context(), rend, view, width, height)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		// Deadline hit: serve the partial render, missing tiles are
		// simply absent.
		s.log.Warn("map render incomplete", "bbox", q.Get("bbox"), "pending", s.source.PendingCount())
	}

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		s.log.Error("encoding map response", "err", err)
	}
}

// handleTile serves a single tile straight from the provider. The y
// segment may carry a file extension, which is ignored.
func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	z, err := strconv.Atoi(chi.URLParam(r, "z"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "cannot parse zoom level")
		return
	}
	x, err := strconv.Atoi(chi.URLParam(r, "x"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "cannot parse x coordinate")
		return
	}
	ySeg := chi.URLParam(r, "y")
	if i := strings.LastIndex(ySeg, "."); i >= 0 {
		ySeg = ySeg[:i]
	}
	y, err := strconv.Atoi(ySeg)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "cannot parse y coordinate")
		return
	}

	t := tiles.Tile{X: x, Y: y, Zoom: z}
	if !t.Valid() {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("tile %s out of bounds", t))
		return
	}

	img, err := s.source.Provider().GetTile(t)
	if err != nil {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("tile %s unavailable", t))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		s.log.Error("encoding tile response", "tile", t, "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func parseBBox(s string) (orb.Bound, error) {
	if s == "" {
		return orb.Bound{}, fmt.Errorf("bbox is required (minLon,minLat,maxLon,maxLat)")
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("bbox must be minLon,minLat,maxLon,maxLat")
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("invalid bbox component %q", p)
		}
		vals[i] = v
	}
	b := orb.Bound{
		Min: orb.Point{vals[0], vals[1]},
		Max: orb.Point{vals[2], vals[3]},
	}
	if b.Min.Lon() >= b.Max.Lon() || b.Min.Lat() >= b.Max.Lat() {
		return orb.Bound{}, fmt.Errorf("bbox min must be south-west of max")
	}
	return b, nil
}

func parseDimension(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}
	if v <= 0 || v > maxDimension {
		return 0, fmt.Errorf("must be in 1..%d", maxDimension)
	}
	return v, nil
}
