package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
)

func TestNewHealthChecker(t *testing.T) {
	checker := NewHealthChecker("/srv/patchers", "/srv/modules")

	if checker == nil {
		t.Fatal("Expected non-nil health checker")
	}
	if checker.pluginDir != "/srv/patchers" {
		t.Errorf("Expected plugin dir /srv/patchers, got %s", checker.pluginDir)
	}
	if checker.moduleDir != "/srv/modules" {
		t.Errorf("Expected module dir /srv/modules, got %s", checker.moduleDir)
	}
}

func TestLiveness(t *testing.T) {
	checker := NewHealthChecker(t.TempDir(), t.TempDir())

	req := httptest.NewRequest("GET", "/health/live", nil)
	rec := httptest.NewRecorder()

	checker.Liveness(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if body["status"] != StatusHealthy {
		t.Errorf("Expected status %q, got %v", StatusHealthy, body["status"])
	}
}

func TestReadiness_Healthy(t *testing.T) {
	checker := NewHealthChecker(t.TempDir(), t.TempDir())

	req := httptest.NewRequest("GET", "/health/ready", nil)
	rec := httptest.NewRecorder()

	checker.Readiness(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, rec.Code)
	}

	var status HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if status.Status != StatusHealthy {
		t.Errorf("Expected status %q, got %q", StatusHealthy, status.Status)
	}

	if _, ok := status.Dependencies["module_dir"]; !ok {
		t.Error("Expected module_dir dependency in response")
	}
	if _, ok := status.Dependencies["plugin_dir"]; !ok {
		t.Error("Expected plugin_dir dependency in response")
	}
}

func TestReadiness_MissingModuleDir(t *testing.T) {
	checker := NewHealthChecker(t.TempDir(), filepath.Join(t.TempDir(), "gone"))

	req := httptest.NewRequest("GET", "/health/ready", nil)
	rec := httptest.NewRecorder()

	checker.Readiness(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status code %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}

	var status HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if status.Status != StatusUnhealthy {
		t.Errorf("Expected status %q, got %q", StatusUnhealthy, status.Status)
	}

	dep := status.Dependencies["module_dir"]
	if dep.Status != StatusUnhealthy {
		t.Errorf("Expected module_dir to be unhealthy, got %q", dep.Status)
	}
	if dep.Message == "" {
		t.Error("Expected module_dir failure message")
	}
}

func TestReadiness_MissingPluginDirDegrades(t *testing.T) {
	checker := NewHealthChecker(filepath.Join(t.TempDir(), "gone"), t.TempDir())

	req := httptest.NewRequest("GET", "/health/ready", nil)
	rec := httptest.NewRecorder()

	checker.Readiness(rec, req)

	// Degraded still serves 200
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, rec.Code)
	}

	var status HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if status.Status != StatusDegraded {
		t.Errorf("Expected status %q, got %q", StatusDegraded, status.Status)
	}
}

func TestCheck_FileIsNotADirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "modules")
	if err := os.WriteFile(file, []byte("not a dir"), 0644); err != nil {
		t.Fatal(err)
	}

	checker := NewHealthChecker(t.TempDir(), file)
	status := checker.Check(context.Background())

	if status.Status != StatusUnhealthy {
		t.Errorf("Expected status %q, got %q", StatusUnhealthy, status.Status)
	}

	dep := status.Dependencies["module_dir"]
	if dep.Message == "" {
		t.Error("Expected failure message for file target")
	}
}

func TestCheck_LastRun(t *testing.T) {
	checker := NewHealthChecker(t.TempDir(), t.TempDir())

	status := checker.Check(context.Background())
	if status.LastRun != nil {
		t.Error("Expected no last run before any patch run")
	}

	checker.RecordRun(3, 1)

	status = checker.Check(context.Background())
	if status.LastRun == nil {
		t.Fatal("Expected last run after RecordRun")
	}
	if status.LastRun.Modules != 3 {
		t.Errorf("Expected 3 modules, got %d", status.LastRun.Modules)
	}
	if status.LastRun.Errors != 1 {
		t.Errorf("Expected 1 error, got %d", status.LastRun.Errors)
	}
	if status.LastRun.Timestamp.IsZero() {
		t.Error("Expected last run timestamp to be set")
	}
}

func TestCheck_ReportsVersion(t *testing.T) {
	checker := NewHealthChecker(t.TempDir(), t.TempDir())

	status := checker.Check(context.Background())
	if status.Version != Version {
		t.Errorf("Expected version %q, got %q", Version, status.Version)
	}
}

func TestRegisterHealthRoutes(t *testing.T) {
	checker := NewHealthChecker(t.TempDir(), t.TempDir())

	router := mux.NewRouter()
	RegisterHealthRoutes(router, checker)

	paths := []string{"/health", "/health/live", "/health/ready"}
	for _, path := range paths {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("GET %s: expected status code %d, got %d", path, http.StatusOK, rec.Code)
		}
	}

	// Health endpoints are read-only
	req := httptest.NewRequest("POST", "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /health: expected status code %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}
