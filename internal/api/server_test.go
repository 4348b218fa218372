package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/pqgram/internal/config"
	"github.com/dgallion1/pqgram/internal/pipeline"
	"github.com/dgallion1/pqgram/internal/stats"
	"github.com/dgallion1/pqgram/internal/storage"
)

const testKey = "secret"

type part struct {
	field, filename, body string
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Config{
		APIKey:         testKey,
		P:              2,
		Q:              3,
		WorkerCount:    1,
		MaxQueueSize:   4,
		MaxTrees:       10,
		MaxUploadBytes: 1 << 20,
		JobTTL:         time.Hour,
		StatsWindow:    time.Hour,
	}
	log := slog.New(slog.DiscardHandler)

	db, err := storage.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	repo := storage.NewProfileRepo(db)

	orch := pipeline.NewOrchestrator(cfg, repo, stats.NewRecorder(cfg.StatsWindow), log)
	orch.Start(context.Background())
	t.Cleanup(func() {
		orch.Stop()
		db.Close()
	})
	return NewServer(orch, repo, log, cfg)
}

func multipartRequest(t *testing.T, method, path string, fields map[string]string, parts ...part) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for _, p := range parts {
		fw, err := mw.CreateFormFile(p.field, p.filename)
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(fw, p.body)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+testKey)
	return req
}

func authed(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+testKey)
	return req
}

func do(t *testing.T, s *Server, req *http.Request, wantCode int) map[string]any {
	t.Helper()
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != wantCode {
		t.Fatalf("%s %s: expected %d, got %d: %s", req.Method, req.URL.Path, wantCode, rec.Code, rec.Body.String())
	}
	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
	}
	return body
}

const (
	mdA = "# Title\n\nSome words.\n"
	mdB = "# Other\n\nDifferent words.\n"
	mdC = "- x\n- y\n"
)

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	body := do(t, s, httptest.NewRequest(http.MethodGet, "/health", nil), http.StatusOK)
	if body["status"] != "ok" {
		t.Errorf("expected ok, got %v", body["status"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "pqgram_compare_distance") {
		t.Error("expected pqgram metrics in exposition")
	}
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)
	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/profiles", nil),
		func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
			r.Header.Set("Authorization", "Bearer wrong")
			return r
		}(),
	} {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", req.URL.Path, rec.Code)
		}
	}
}

func TestProfilesLifecycle(t *testing.T) {
	s := newTestServer(t)

	body := do(t, s, multipartRequest(t, http.MethodPost, "/api/profiles", nil,
		part{"files", "a.md", mdA}, part{"files", "b.md", mdB}, part{"files", "c.md", mdC}), http.StatusCreated)
	if body["created"] != float64(3) {
		t.Fatalf("expected 3 created, got %v", body["created"])
	}
	results := body["profiles"].([]any)
	idA := results[0].(map[string]any)["id"].(string)
	idB := results[1].(map[string]any)["id"].(string)

	// Same content and shape again is a duplicate.
	body = do(t, s, multipartRequest(t, http.MethodPost, "/api/profiles", nil, part{"file", "again.md", mdA}), http.StatusOK)
	dup := body["profiles"].([]any)[0].(map[string]any)
	if dup["duplicate"] != true || dup["id"] != idA {
		t.Errorf("expected duplicate of %s, got %v", idA, dup)
	}

	body = do(t, s, authed(http.MethodGet, "/api/profiles"), http.StatusOK)
	if body["count"] != float64(3) {
		t.Errorf("expected 3 profiles, got %v", body["count"])
	}

	body = do(t, s, authed(http.MethodGet, "/api/profiles/"+idA+"?tokens=true"), http.StatusOK)
	tokens := body["tokens"].([]any)
	if len(tokens) == 0 || tokens[0] != "*|Document|*|Document|*" {
		t.Errorf("unexpected tokens %v", tokens)
	}
	if body["profile"].(map[string]any)["name"] != "a.md" {
		t.Errorf("unexpected profile %v", body["profile"])
	}

	body = do(t, s, authed(http.MethodGet, "/api/profiles/"+idA+"/nearest?k=1"), http.StatusOK)
	if body["candidates"] != float64(2) {
		t.Errorf("expected 2 candidates, got %v", body["candidates"])
	}
	matches := body["matches"].([]any)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if m := matches[0].(map[string]any); m["id"] != idB || m["distance"] != float64(0) {
		t.Errorf("expected b.md at distance 0, got %v", m)
	}

	do(t, s, authed(http.MethodDelete, "/api/profiles/"+idA), http.StatusOK)
	body = do(t, s, authed(http.MethodGet, "/api/profiles/"+idA), http.StatusNotFound)
	if body["code"] != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND code, got %v", body["code"])
	}
	do(t, s, authed(http.MethodDelete, "/api/profiles/"+idA), http.StatusNotFound)
}

func TestCreateProfiles_Rejections(t *testing.T) {
	s := newTestServer(t)

	do(t, s, multipartRequest(t, http.MethodPost, "/api/profiles", nil, part{"files", "x.exe", "MZ"}), http.StatusUnsupportedMediaType)
	do(t, s, multipartRequest(t, http.MethodPost, "/api/profiles", nil), http.StatusBadRequest)

	body := do(t, s, multipartRequest(t, http.MethodPost, "/api/profiles", map[string]string{"q": "0"}, part{"files", "a.md", mdA}), http.StatusBadRequest)
	if body["code"] != "INVALID_SHAPE" {
		t.Errorf("expected INVALID_SHAPE, got %v", body["code"])
	}
	body = do(t, s, multipartRequest(t, http.MethodPost, "/api/profiles", map[string]string{"leaf_grams": "maybe"}, part{"files", "a.md", mdA}), http.StatusBadRequest)
	if body["code"] != "INVALID_INPUT" {
		t.Errorf("expected INVALID_INPUT, got %v", body["code"])
	}

	// A file that fails to parse is reported per file.
	body = do(t, s, multipartRequest(t, http.MethodPost, "/api/profiles", nil, part{"files", "bad.json", `{"a":`}), http.StatusOK)
	res := body["profiles"].([]any)[0].(map[string]any)
	if res["code"] != "MALFORMED_INPUT" {
		t.Errorf("expected MALFORMED_INPUT, got %v", res)
	}
}

func TestCompareJob(t *testing.T) {
	s := newTestServer(t)

	body := do(t, s, multipartRequest(t, http.MethodPost, "/api/compare", map[string]string{"mode": "matrix"},
		part{"left", "a.md", mdA}, part{"left", "b.md", mdB}, part{"left", "c.md", mdC}), http.StatusAccepted)
	jobID := body["job_id"].(string)
	if body["poll_url"] != "/api/compare/"+jobID+"/status" {
		t.Errorf("unexpected poll url %v", body["poll_url"])
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		body = do(t, s, authed(http.MethodGet, "/api/compare/"+jobID+"/status"), http.StatusOK)
		if body["status"] == string(pipeline.StatusCompleted) || body["status"] == string(pipeline.StatusFailed) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job did not finish, last status %v", body["status"])
		}
		time.Sleep(5 * time.Millisecond)
	}
	if body["status"] != string(pipeline.StatusCompleted) {
		t.Fatalf("expected completed, got %v", body)
	}
	pairs := body["result"].(map[string]any)["pairs"].([]any)
	if len(pairs) != 3 {
		t.Fatalf("expected 3 pairs, got %d", len(pairs))
	}
	if first := pairs[0].(map[string]any); first["distance"] != float64(0) {
		t.Errorf("expected a.md and b.md to match, got %v", first)
	}

	body = do(t, s, authed(http.MethodGet, "/api/stats"), http.StatusOK)
	batches := body["batches"].(map[string]any)
	if _, ok := batches["matrix"]; !ok {
		t.Errorf("expected matrix stats, got %v", batches)
	}
}

func TestCompare_Rejections(t *testing.T) {
	s := newTestServer(t)

	do(t, s, multipartRequest(t, http.MethodPost, "/api/compare", map[string]string{"mode": "pairs"}, part{"left", "a.md", mdA}), http.StatusBadRequest)
	do(t, s, multipartRequest(t, http.MethodPost, "/api/compare", map[string]string{"mode": "cross"}, part{"left", "a.md", mdA}), http.StatusBadRequest)
	do(t, s, multipartRequest(t, http.MethodPost, "/api/compare", map[string]string{"mode": "nearest"},
		part{"left", "a.md", mdA}, part{"left", "b.md", mdB}, part{"right", "c.md", mdC}), http.StatusBadRequest)
	do(t, s, multipartRequest(t, http.MethodPost, "/api/compare", map[string]string{"top_k": "lots"}, part{"left", "a.md", mdA}), http.StatusBadRequest)
	do(t, s, authed(http.MethodGet, "/api/compare/missing/status"), http.StatusNotFound)
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"a.md":             "a.md",
		"../../etc/passwd": "passwd",
		"dir/x..y.txt":     "x_y.txt",
		"":                 "unnamed",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("%q: expected %q, got %q", in, want, got)
		}
	}
}
