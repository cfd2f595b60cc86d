package buildinfo_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/otherjamesbrown/notetaker/pkg/buildinfo"
)

func TestHandler(t *testing.T) {
	handler := buildinfo.Handler(buildinfo.ServiceName, time.Now().Add(-90*time.Second))
	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Expected Cache-Control no-store, got %q", cc)
	}

	var info buildinfo.Info
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}

	if info.ServiceName != "notetaker" {
		t.Errorf("Expected service_name 'notetaker', got '%s'", info.ServiceName)
	}
	if info.Version == "" || info.Commit == "" || info.BuildTime == "" {
		t.Errorf("Expected version fields to be non-empty, got %+v", info)
	}
	if !strings.HasPrefix(info.GoVersion, "go") {
		t.Errorf("Expected go_version to start with 'go', got '%s'", info.GoVersion)
	}
	if !strings.HasPrefix(info.Uptime, "1m3") {
		t.Errorf("Expected uptime of about 1m30s, got '%s'", info.Uptime)
	}
}

func TestHandler_NoStartTime(t *testing.T) {
	rec := httptest.NewRecorder()
	buildinfo.Handler("notetaker", time.Time{})(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	var decoded map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	if _, ok := decoded["uptime"]; ok {
		t.Error("uptime should be omitted without a start time")
	}
}
