// Package api serves the dashboard page, the JSON API and the live feed.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"node-pulse/pkg/metrics"
	"node-pulse/pkg/model"
	"node-pulse/pkg/pulse"
	"node-pulse/pkg/version"
)

// Fleet is the read side of the collector the handlers need.
type Fleet interface {
	Collect(ctx context.Context) ([]model.NodeSnapshot, error)
	Snapshot(ctx context.Context, name string) (model.NodeSnapshot, error)
}

// Deps are the collaborators of the HTTP layer.
type Deps struct {
	Fleet   Fleet
	Hub     *Hub
	Logger  logrus.FieldLogger
	Metrics *metrics.Metrics
	// Gatherer backs /metrics; the route is skipped when nil.
	Gatherer prometheus.Gatherer
}

// NodeList is the body of GET /api/nodes.
type NodeList struct {
	Nodes []model.NodeSummary `json:"nodes"`
}

type errorBody struct {
	Error string `json:"error"`
}

type server struct {
	Deps
	page *page
}

// RegisterRoutes wires the HTTP handlers on the provided mux.
func RegisterRoutes(mux *http.ServeMux, deps Deps) error {
	if deps.Fleet == nil {
		return errors.New("fleet is required")
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	p, err := newPage()
	if err != nil {
		return err
	}
	s := &server{Deps: deps, page: p}

	mux.HandleFunc("GET /{$}", s.instrument("dashboard", s.handleDashboard))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Node-Pulse-Version", version.Build)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /api/nodes", s.instrument("nodes", s.handleNodes))
	mux.HandleFunc("GET /api/node/{name}", s.instrument("node", s.handleNode))
	if deps.Hub != nil {
		mux.HandleFunc("GET /ws/nodes", deps.Hub.HandleWS)
	}
	if deps.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}
	return nil
}

// collect returns whatever complete snapshots were gathered; a partial fleet
// is logged and still rendered.
func (s *server) collect(r *http.Request) []model.NodeSnapshot {
	snaps, err := s.Fleet.Collect(r.Context())
	if err != nil {
		s.Logger.WithError(err).WithField("collected", len(snaps)).Warn("fleet collection incomplete")
	}
	return snaps
}

func (s *server) handleDashboard(w http.ResponseWriter, r *http.Request) int {
	snaps := s.collect(r)
	if r.Context().Err() != nil {
		return 0
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.render(w, snaps, time.Now()); err != nil {
		s.Logger.WithError(err).Error("render dashboard")
		return http.StatusInternalServerError
	}
	return http.StatusOK
}

func (s *server) handleNodes(w http.ResponseWriter, r *http.Request) int {
	snaps := s.collect(r)
	if r.Context().Err() != nil {
		return 0
	}
	writeJSON(w, http.StatusOK, Summaries(snaps), s.Logger)
	return http.StatusOK
}

func (s *server) handleNode(w http.ResponseWriter, r *http.Request) int {
	snap, err := s.Fleet.Snapshot(r.Context(), r.PathValue("name"))
	switch {
	case errors.Is(err, pulse.ErrNodeNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Node not found"}, s.Logger)
		return http.StatusNotFound
	case err != nil:
		if r.Context().Err() != nil {
			return 0
		}
		s.Logger.WithError(err).WithField("node", r.PathValue("name")).Error("node snapshot failed")
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "Node status unavailable"}, s.Logger)
		return http.StatusServiceUnavailable
	}
	writeJSON(w, http.StatusOK, snap, s.Logger)
	return http.StatusOK
}

// instrument records the status code a handler reports. Zero means the client
// went away before anything was written.
func (s *server) instrument(route string, h func(http.ResponseWriter, *http.Request) int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		code := h(w, r)
		if code == 0 {
			s.Logger.WithField("route", route).Debug("client disconnected before response")
			return
		}
		s.Metrics.HTTPRequest(route, code)
		s.Logger.WithFields(logrus.Fields{
			"route":    route,
			"path":     r.URL.Path,
			"code":     code,
			"duration": time.Since(start).String(),
		}).Debug("request served")
	}
}

// Summaries projects snapshots onto the /api/nodes body, keeping their order.
func Summaries(snaps []model.NodeSnapshot) NodeList {
	out := NodeList{Nodes: make([]model.NodeSummary, 0, len(snaps))}
	for _, s := range snaps {
		out.Nodes = append(out.Nodes, s.Summary())
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}, logger logrus.FieldLogger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Warn("failed to write response")
	}
}
