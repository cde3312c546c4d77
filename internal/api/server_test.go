package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/riverbend-data/passage.report/internal/db"
	"github.com/riverbend-data/passage.report/internal/detections"
	"github.com/riverbend-data/passage.report/internal/topology"
)

var testT0 = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func setupServer(t *testing.T) (*Server, *db.DB) {
	t.Helper()
	database, err := db.NewDB(filepath.Join(t.TempDir(), "api_test.db"))
	if err != nil {
		t.Fatalf("failed to create test DB: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewServer(database, "api-test"), database
}

func seedDetections(t *testing.T, database *db.DB) {
	t.Helper()
	input := []detections.Detection{
		{Reader: "dam_1", Antenna: detections.Ptr(1), TagCode: "T1", DateTime: testT0, TimeZone: "UTC"},
		{Reader: "dam_2", Antenna: detections.Ptr(1), TagCode: "T1", DateTime: testT0.Add(5 * time.Minute), TimeZone: "UTC"},
	}
	if err := database.InsertDetections(context.Background(), input); err != nil {
		t.Fatalf("InsertDetections failed: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	s, _ := setupServer(t)
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestApplyTopologyEndpoint(t *testing.T) {
	s, database := setupServer(t)
	seedDetections(t, database)

	body, _ := json.Marshal(topology.Config{
		Mode:      topology.ModeCombine,
		ArrayName: "fishway",
		R1:        "dam_1",
		R2:        "dam_2",
	})
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/topology", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var report topology.Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("failed to decode report: %v", err)
	}
	if len(report.Triples) != 2 {
		t.Errorf("report triples = %d, want 2", len(report.Triples))
	}

	rows, err := database.AllDetections(context.Background())
	if err != nil {
		t.Fatalf("AllDetections failed: %v", err)
	}
	for _, r := range rows {
		if r.Array == nil || *r.Array != "fishway" {
			t.Errorf("row %d not remapped: %+v", r.ID, r.Detection)
		}
	}
}

func TestApplyTopologyEndpointRejectsInvalidConfig(t *testing.T) {
	s, database := setupServer(t)
	seedDetections(t, database)

	// combine without an array name is a caller error
	body, _ := json.Marshal(topology.Config{Mode: topology.ModeCombine, R1: "dam_1"})
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/topology", bytes.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if resp["error"] == "" {
		t.Error("expected an error message in the response body")
	}
}

func TestApplyTopologyEndpointMethodNotAllowed(t *testing.T) {
	s, _ := setupServer(t)
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/topology", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestRebuildAndListPassages(t *testing.T) {
	s, database := setupServer(t)

	input := []detections.Detection{
		{Reader: "r1", Antenna: detections.Ptr(1), TagCode: "T1", DateTime: testT0, TimeZone: "UTC"},
		{Reader: "r1", Antenna: detections.Ptr(2), TagCode: "T1", DateTime: testT0.Add(5 * time.Minute), TimeZone: "UTC"},
	}
	if err := database.InsertDetections(context.Background(), input); err != nil {
		t.Fatalf("InsertDetections failed: %v", err)
	}

	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/passages/rebuild", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("rebuild status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	url := "/api/passages?start=" + testT0.Add(-time.Hour).Format(time.RFC3339) +
		"&end=" + testT0.Add(time.Hour).Format(time.RFC3339)
	rec = httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", rec.Code)
	}

	var rows []db.PassageRow
	if err := json.NewDecoder(rec.Body).Decode(&rows); err != nil {
		t.Fatalf("failed to decode passages: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d passages, want 1", len(rows))
	}
	if rows[0].Direction != "up" || rows[0].NoAnt != 1 {
		t.Errorf("passage = %+v, want up/1", rows[0])
	}
}

func TestRebuildRejectsHalfRange(t *testing.T) {
	s, _ := setupServer(t)
	body := []byte(`{"start": "2025-06-01T00:00:00Z"}`)
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/passages/rebuild", bytes.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListDetections(t *testing.T) {
	s, database := setupServer(t)
	seedDetections(t, database)

	url := "/api/detections?start=" + testT0.Format(time.RFC3339) +
		"&end=" + testT0.Add(time.Minute).Format(time.RFC3339)
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var rows []db.DetectionRow
	if err := json.NewDecoder(rec.Body).Decode(&rows); err != nil {
		t.Fatalf("failed to decode detections: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d detections, want 1", len(rows))
	}
	if rows[0].Reader != "dam_1" {
		t.Errorf("reader = %q, want dam_1", rows[0].Reader)
	}

	rec = httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/detections?start=bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad start param: status = %d, want 400", rec.Code)
	}
}

func TestTopologyRunsEndpoint(t *testing.T) {
	s, database := setupServer(t)
	seedDetections(t, database)

	body, _ := json.Marshal(topology.Config{Mode: topology.ModeCombine, ArrayName: "fishway", R1: "dam_1"})
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/topology", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("apply status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/topology/runs", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("runs status = %d, want 200", rec.Code)
	}
	var runs []db.TopologyRun
	if err := json.NewDecoder(rec.Body).Decode(&runs); err != nil {
		t.Fatalf("failed to decode runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if runs[0].Mode != "combine" {
		t.Errorf("mode = %q, want combine", runs[0].Mode)
	}
}
