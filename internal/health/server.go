// Package health exposes the monitor's HTTP surface: liveness and
// readiness probes, Prometheus self-metrics, and the pull-based JSON
// query endpoints a rendering layer polls.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/observability"
	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/internal/query"
	"github.com/filipetorresdecarvalho/NVIDIAWorkloadMonitor/pkg/model"
)

// Server serves health, metrics, and query endpoints.
type Server struct {
	httpServer *http.Server
	metrics    *observability.Metrics
	service    *query.Service
	listener   net.Listener
}

// NewServer creates a health server on the given port. Pass port=0 to
// let the OS pick a free port (useful for tests). When enableDebug is
// true, pprof handlers are registered.
func NewServer(port int, metrics *observability.Metrics, service *query.Service, enableDebug bool) *Server {
	s := &Server{
		metrics: metrics,
		service: service,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/snapshot", s.handleSnapshot)
	mux.HandleFunc("/devices", s.handleDevices)
	mux.HandleFunc("/history", s.handleHistory)
	mux.HandleFunc("/diagnostics", s.handleDiagnostics)

	if enableDebug {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", port),
		Handler:        mux,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	return s
}

// Start begins listening and serving HTTP in a background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("health server listen: %w", err)
	}
	s.listener = ln
	// Update Addr to the actual address (important when port=0).
	s.httpServer.Addr = ln.Addr().String()

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			_ = err // server exited with unexpected error; ignore during shutdown
		}
	}()
	return nil
}

// Addr returns the listening address, valid after Start.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz reports ready once the first cycle has published.
func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	ready := s.service.CurrentSnapshot() != nil
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]bool{"ready": ready})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap := s.service.CurrentSnapshot()
	if snap == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleDevices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Devices())
}

// handleHistory serves one series' window. Query params: metric
// (required), device (omit for host metrics).
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	metric := model.MetricType(r.URL.Query().Get("metric"))
	device := model.DeviceID(r.URL.Query().Get("device"))

	window, err := s.service.History(device, metric)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, window)
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Diagnostics())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
