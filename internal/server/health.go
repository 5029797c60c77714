// Package server exposes the health endpoints of the sage worker.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health state of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheck is the result of one named check.
type HealthCheck struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// HealthResponse is the body of every endpoint.
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Version   string        `json:"version,omitempty"`
	Checks    []HealthCheck `json:"checks,omitempty"`
}

// HealthChecker performs a health check.
type HealthChecker func(ctx context.Context) HealthCheck

// HealthServer serves /healthz, /readyz and /livez.
type HealthServer struct {
	mu      sync.RWMutex
	checks  map[string]HealthChecker
	version string
	ready   bool
}

// NewHealthServer creates a server that is live but not yet ready.
func NewHealthServer(version string) *HealthServer {
	return &HealthServer{
		checks:  make(map[string]HealthChecker),
		version: version,
	}
}

// RegisterCheck adds or replaces a named check.
func (s *HealthServer) RegisterCheck(name string, checker HealthChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = checker
}

// SetReady marks the worker as ready to take tasks.
func (s *HealthServer) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// Handler returns the health endpoints.
func (s *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: HealthStatusHealthy, Timestamp: time.Now().UTC()})
	})
	return mux
}

// Serve listens on addr until ctx is cancelled.
func (s *HealthServer) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleHealth runs every check. One unhealthy check fails the whole
// response; degraded checks only downgrade it.
func (s *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	checks := make(map[string]HealthChecker, len(s.checks))
	for k, v := range s.checks {
		checks[k] = v
	}
	s.mu.RUnlock()
	sort.Strings(names)

	resp := HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now().UTC(),
		Version:   s.version,
		Checks:    make([]HealthCheck, 0, len(names)),
	}
	for _, name := range names {
		check := checks[name](ctx)
		check.Name = name
		resp.Checks = append(resp.Checks, check)
		switch {
		case check.Status == HealthStatusUnhealthy:
			resp.Status = HealthStatusUnhealthy
		case check.Status == HealthStatusDegraded && resp.Status == HealthStatusHealthy:
			resp.Status = HealthStatusDegraded
		}
	}

	code := http.StatusOK
	if resp.Status == HealthStatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (s *HealthServer) handleReady(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	ready := s.ready
	s.mu.RUnlock()

	resp := HealthResponse{Status: HealthStatusHealthy, Timestamp: time.Now().UTC()}
	if !ready {
		resp.Status = HealthStatusUnhealthy
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Check turns an error-returning probe into a HealthChecker. A failing
// required probe is unhealthy; an optional one is only degraded.
func Check(probe func(ctx context.Context) error, required bool) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		if err := probe(ctx); err != nil {
			status := HealthStatusDegraded
			if required {
				status = HealthStatusUnhealthy
			}
			return HealthCheck{Status: status, Message: err.Error()}
		}
		return HealthCheck{Status: HealthStatusHealthy}
	}
}
