package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sgannotator/sg-annotator/internal/dataset"
	"github.com/sgannotator/sg-annotator/internal/history"
	"github.com/sgannotator/sg-annotator/internal/pkg/logger"
)

type fakeRows struct {
	rows []dataset.Row
}

func (f *fakeRows) Rows() []dataset.Row { return f.rows }

func newTestHandler(rows RowSource) (*Handler, *history.MemoryStore) {
	hist := history.NewMemoryStore(10)
	h := NewHandler(testEvaluator(), rows, hist, nil, logger.New("error", "text"))
	return h, hist
}

func postEvaluate(t *testing.T, h *Handler, req Request) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/evaluate", bytes.NewReader(body)))
	return rec
}

func TestHandleEvaluate_File(t *testing.T) {
	dir := t.TempDir()
	predPath := filepath.Join(dir, "pred.json")
	gtPath := filepath.Join(dir, "gt.json")
	if err := os.WriteFile(predPath, []byte(predDoc), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.WriteFile(gtPath, []byte(gtDoc), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	h, hist := newTestHandler(nil)
	rec := postEvaluate(t, h, Request{
		Type:     TypeFile,
		PredFile: predPath,
		GTFile:   gtPath,
		KValues:  []int{1, 5},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !resp.Success {
		t.Error("Success = false, want true")
	}
	if resp.EvaluationType != TypeFile {
		t.Errorf("EvaluationType = %q, want %q", resp.EvaluationType, TypeFile)
	}
	if len(resp.KValues) != 2 || resp.KValues[0] != 1 || resp.KValues[1] != 5 {
		t.Errorf("KValues = %v, want [1 5]", resp.KValues)
	}
	if resp.Results.Metrics["recall@1"] != 0.5 {
		t.Errorf("recall@1 = %v, want 0.5", resp.Results.Metrics["recall@1"])
	}

	runs, err := hist.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("history has %d runs, want 1", len(runs))
	}
	if runs[0].EvaluationType != TypeFile {
		t.Errorf("run type = %q, want %q", runs[0].EvaluationType, TypeFile)
	}
}

func TestHandleEvaluate_Current(t *testing.T) {
	sg := `[{"time":"T1","nodes":[{"id":"a"},{"id":"b"}],"edges":[["a","on","b"]]}]`
	rows := &fakeRows{rows: []dataset.Row{
		{ID: "r1", Scenegraph: sg, IsAnnotated: true, IsReasonable: true},
	}}

	h, _ := newTestHandler(rows)
	rec := postEvaluate(t, h, Request{Type: TypeCurrent})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if resp.Results.Metrics["recall@1"] != 1.0 {
		t.Errorf("recall@1 = %v, want 1 for self-comparison", resp.Results.Metrics["recall@1"])
	}
}

func TestHandleEvaluate_BadRequests(t *testing.T) {
	h, _ := newTestHandler(nil)

	tests := []struct {
		name       string
		req        Request
		wantStatus int
	}{
		{"missing type", Request{}, http.StatusBadRequest},
		{"unknown type", Request{Type: "magic"}, http.StatusBadRequest},
		{"file without paths", Request{Type: TypeFile}, http.StatusBadRequest},
		{"compare without paths", Request{Type: TypeCompare}, http.StatusBadRequest},
		{"current without rows", Request{Type: TypeCurrent}, http.StatusBadRequest},
		{"missing files", Request{Type: TypeFile, PredFile: "/none/a.json", GTFile: "/none/b.json"}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postEvaluate(t, h, tt.req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}

			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if body["error"] == "" {
				t.Error("error message missing from response body")
			}
		})
	}
}

func TestHandleEvaluate_InvalidBody(t *testing.T) {
	h, _ := newTestHandler(nil)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/evaluate", bytes.NewReader([]byte(`{broken`))))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleHistory(t *testing.T) {
	h, hist := newTestHandler(nil)

	run, err := history.NewRun(TypeFile, []int{1}, sampleResult())
	if err != nil {
		t.Fatalf("NewRun() error = %v", err)
	}
	if err := hist.Save(context.Background(), run); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/evaluate/history?limit=5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Runs []history.Run `json:"runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(body.Runs) != 1 {
		t.Errorf("got %d runs, want 1", len(body.Runs))
	}
}

func TestHandleHistory_BadLimit(t *testing.T) {
	h, _ := newTestHandler(nil)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/evaluate/history?limit=zero", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestResolveKValues(t *testing.T) {
	e := testEvaluator()

	if got := e.ResolveKValues(nil); len(got) != 3 || got[0] != 1 {
		t.Errorf("ResolveKValues(nil) = %v, want evaluator defaults", got)
	}
	if got := e.ResolveKValues([]int{7, 3, 7}); len(got) != 2 || got[0] != 3 || got[1] != 7 {
		t.Errorf("ResolveKValues() = %v, want [3 7]", got)
	}
}
