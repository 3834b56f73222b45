package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sgannotator/sg-annotator/internal/config"
	"github.com/sgannotator/sg-annotator/internal/pkg/logger"
)

func newTestMux(t *testing.T, open bool) (*http.ServeMux, *Service) {
	t.Helper()

	svc := NewService(config.DatasetConfig{}, nil, logger.New("error", "text"))
	if open {
		path := writeCSVFile(t, validCSV())
		if _, err := svc.Open(context.Background(), path); err != nil {
			t.Fatalf("Open() error = %v", err)
		}
	}

	mux := http.NewServeMux()
	NewHandler(svc).RegisterRoutes(mux)
	return mux, svc
}

func doRequest(mux *http.ServeMux, method, target string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, reader))
	return rec
}

func TestHandleHealth(t *testing.T) {
	mux, _ := newTestMux(t, false)

	rec := doRequest(mux, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestHandleOpen(t *testing.T) {
	mux, svc := newTestMux(t, false)
	path := writeCSVFile(t, validCSV())

	rec := doRequest(mux, http.MethodPost, "/open", map[string]string{"path": path})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Success   bool `json:"success"`
		TotalRows int  `json:"total_rows"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !body.Success || body.TotalRows != 2 {
		t.Errorf("body = %+v, want success with 2 rows", body)
	}
	if !svc.Loaded() {
		t.Error("service not loaded after /open")
	}
}

func TestHandleOpen_Errors(t *testing.T) {
	mux, _ := newTestMux(t, false)

	tests := []struct {
		name       string
		body       any
		wantStatus int
	}{
		{"missing path", map[string]string{}, http.StatusBadRequest},
		{"file not found", map[string]string{"path": "/nonexistent/x.csv"}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(mux, http.MethodPost, "/open", tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestHandleGetRow(t *testing.T) {
	mux, _ := newTestMux(t, true)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantID     string
	}{
		{"by index", "/row?index=0", http.StatusOK, "r1"},
		{"by query id", "/row?id=r2", http.StatusOK, "r2"},
		{"by path id", "/row/r1", http.StatusOK, "r1"},
		{"index out of range", "/row?index=99", http.StatusNotFound, ""},
		{"index not a number", "/row?index=abc", http.StatusBadRequest, ""},
		{"unknown id", "/row?id=ghost", http.StatusNotFound, ""},
		{"unknown path id", "/row/ghost", http.StatusNotFound, ""},
		{"no parameters", "/row", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(mux, http.MethodGet, tt.target, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantID == "" {
				return
			}
			var row Row
			if err := json.Unmarshal(rec.Body.Bytes(), &row); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if row.ID != tt.wantID {
				t.Errorf("row.ID = %q, want %q", row.ID, tt.wantID)
			}
		})
	}
}

func TestHandleUpdateRow(t *testing.T) {
	mux, svc := newTestMux(t, true)

	rec := doRequest(mux, http.MethodPut, "/row/r2", map[string]any{
		"is_annotated": true,
		"input":        "new text",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	row, _ := svc.RowByID("r2")
	if !row.IsAnnotated || row.Input != "new text" {
		t.Errorf("row = %+v, update not applied", row)
	}
}

func TestHandleUpdateRow_Errors(t *testing.T) {
	mux, _ := newTestMux(t, true)

	tests := []struct {
		name       string
		target     string
		body       any
		wantStatus int
	}{
		{"empty update", "/row/r1", map[string]any{}, http.StatusBadRequest},
		{"unknown row", "/row/ghost", map[string]any{"input": "x"}, http.StatusNotFound},
		{"bad scenegraph", "/row/r1", map[string]any{"scenegraph": "not json"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(mux, http.MethodPut, tt.target, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestHandleRows(t *testing.T) {
	mux, _ := newTestMux(t, true)

	rec := doRequest(mux, http.MethodGet, "/rows", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var summaries []RowSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summaries); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(summaries) != 2 {
		t.Errorf("got %d summaries, want 2", len(summaries))
	}
}

func TestHandleRows_EmptyDataset(t *testing.T) {
	mux, _ := newTestMux(t, false)

	rec := doRequest(mux, http.MethodGet, "/rows", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	// An empty dataset serializes as [], not null.
	if got := rec.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestHandleProgress(t *testing.T) {
	mux, _ := newTestMux(t, true)

	rec := doRequest(mux, http.MethodGet, "/progress", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var p Progress
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if p.Total != 2 || p.Annotated != 1 {
		t.Errorf("Progress = %+v, want total 2, annotated 1", p)
	}
}
