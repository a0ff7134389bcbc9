package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

// Version is reported by health endpoints. Overridden at build time via
// -ldflags "-X github.com/stitchworks/stitch/pkg/observability.Version=...".
var Version = "dev"

// HealthChecker provides health check functionality
type HealthChecker struct {
	pluginDir string
	moduleDir string

	mu      sync.RWMutex
	lastRun *RunStatus
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(pluginDir, moduleDir string) *HealthChecker {
	return &HealthChecker{
		pluginDir: pluginDir,
		moduleDir: moduleDir,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version,omitempty"`
	LastRun      *RunStatus                  `json:"last_run,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// RunStatus summarizes the most recent patch run
type RunStatus struct {
	Timestamp time.Time `json:"timestamp"`
	Modules   int       `json:"modules"`
	Errors    int       `json:"errors"`
}

// DependencyStatus represents the health of a single dependency
type DependencyStatus struct {
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency_ms,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// RecordRun records the outcome of a patch run for readiness reporting
func (h *HealthChecker) RecordRun(modules, errs int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastRun = &RunStatus{
		Timestamp: time.Now(),
		Modules:   modules,
		Errors:    errs,
	}
}

// Liveness returns a simple liveness probe (always returns 200 if server is running)
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    StatusHealthy,
		"timestamp": time.Now(),
	})
}

// Readiness returns a readiness probe (checks all dependencies)
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")

	// Return 503 if unhealthy, 200 if healthy or degraded
	if status.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(status)
}

// Check performs a comprehensive health check
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Version:      Version,
		Dependencies: make(map[string]DependencyStatus),
	}

	// Check the module directory. Without it there is nothing to patch.
	moduleStatus := h.checkDir(h.moduleDir)
	status.Dependencies["module_dir"] = moduleStatus
	if moduleStatus.Status == StatusUnhealthy {
		status.Status = StatusUnhealthy
	}

	// Check the plugin directory. A missing plugin directory degrades the
	// daemon (rescans load nothing) but does not make it unhealthy.
	pluginStatus := h.checkDir(h.pluginDir)
	status.Dependencies["plugin_dir"] = pluginStatus
	if pluginStatus.Status == StatusUnhealthy && status.Status != StatusUnhealthy {
		status.Status = StatusDegraded
	}

	h.mu.RLock()
	if h.lastRun != nil {
		run := *h.lastRun
		status.LastRun = &run
	}
	h.mu.RUnlock()

	return status
}

// checkDir checks that a watched directory exists and is a directory
func (h *HealthChecker) checkDir(path string) DependencyStatus {
	start := time.Now()
	status := DependencyStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
	}

	info, err := os.Stat(path)
	status.Latency = time.Since(start)

	if err != nil {
		status.Status = StatusUnhealthy
		status.Message = err.Error()
		return status
	}

	if !info.IsDir() {
		status.Status = StatusUnhealthy
		status.Message = path + " is not a directory"
	}

	return status
}

// RegisterHealthRoutes registers health check endpoints
func RegisterHealthRoutes(r *mux.Router, checker *HealthChecker) {
	r.HandleFunc("/health", checker.Readiness).Methods(http.MethodGet)
	r.HandleFunc("/health/live", checker.Liveness).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", checker.Readiness).Methods(http.MethodGet)
}
