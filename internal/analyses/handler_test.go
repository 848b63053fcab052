package analyses

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"resume-insight/internal/documents"
	"resume-insight/internal/gateway"
	"resume-insight/internal/jobstore"
)

func newTestRouter(t *testing.T, aiURL string) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := jobstore.NewMemoryStore(jobstore.DefaultTTL, nil)
	svc := NewService(store, gateway.NewClient(aiURL, 2*time.Second), nil, nil)
	h := NewHandler(svc, documents.DefaultPolicy())
	r := gin.New()
	h.RegisterRoutes(r.Group("/api"))
	return r, svc
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for field, name := range files {
		part, err := w.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := part.Write([]byte("Experienced Go developer for " + field)); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &body, w.FormDataContentType()
}

func postAnalyze(t *testing.T, r http.Handler, files map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, files)
	req := httptest.NewRequest(http.MethodPost, "/api/resume/analyze", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode %q: %v", resp.Body.String(), err)
	}
	return payload
}

func TestAnalyzeEndToEndSuccess(t *testing.T) {
	ai := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyze" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"overall_score": 91, "strengths": ["Go"], "weaknesses": [], "improvement_plan": []}`))
	}))
	defer ai.Close()
	r, svc := newTestRouter(t, ai.URL)

	resp := postAnalyze(t, r, map[string]string{"resume": "cv.txt", "jobDescription": "jd.txt"})
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.Code, resp.Body.String())
	}
	accepted := decode(t, resp)
	id, _ := accepted["analysisId"].(string)
	if id == "" || accepted["status"] != StatusProcessing {
		t.Fatalf("unexpected submit payload %v", accepted)
	}

	drain(t, svc)

	status := decode(t, get(r, "/api/resume/status/"+id))
	if status["status"] != StatusCompleted {
		t.Fatalf("expected completed, got %v", status)
	}
	resp = get(r, "/api/resume/result/"+id)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	result := decode(t, resp)
	report, _ := result["result"].(map[string]any)
	if report["overall_score"] != float64(91) {
		t.Fatalf("unexpected result %v", result)
	}
}

func TestAnalyzeEndToEndUnavailable(t *testing.T) {
	ai := httptest.NewServer(http.NotFoundHandler())
	aiURL := ai.URL
	ai.Close()
	r, svc := newTestRouter(t, aiURL)

	resp := postAnalyze(t, r, map[string]string{"resume": "cv.txt", "jobDescription": "jd.txt"})
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.Code)
	}
	id, _ := decode(t, resp)["analysisId"].(string)
	drain(t, svc)

	status := decode(t, get(r, "/api/resume/status/"+id))
	if status["status"] != StatusFailed {
		t.Fatalf("expected failed, got %v", status)
	}
	if msg, _ := status["error"].(string); msg == "" {
		t.Fatalf("expected error message, got %v", status)
	}
	resp = get(r, "/api/resume/result/"+id)
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.Code)
	}
}

func TestAnalyzeResultWhileProcessing(t *testing.T) {
	release := make(chan struct{})
	ai := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{"overall_score": 10}`))
	}))
	defer ai.Close()
	r, svc := newTestRouter(t, ai.URL)

	resp := postAnalyze(t, r, map[string]string{"resume": "cv.txt", "jobDescription": "jd.txt"})
	id, _ := decode(t, resp)["analysisId"].(string)

	resp = get(r, "/api/resume/result/"+id)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202 while processing, got %d", resp.Code)
	}
	close(release)
	drain(t, svc)
}

func TestAnalyzeMissingFile(t *testing.T) {
	r, svc := newTestRouter(t, "http://127.0.0.1:1")

	resp := postAnalyze(t, r, map[string]string{"resume": "cv.txt"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	payload := decode(t, resp)
	errBody, _ := payload["error"].(map[string]any)
	if errBody["message"] != "Missing files" {
		t.Fatalf("expected Missing files, got %v", payload)
	}
	drain(t, svc)
	if n := svc.Store.(*jobstore.MemoryStore).Len(); n != 0 {
		t.Fatalf("expected no job created, got %d entries", n)
	}
}

func TestAnalyzeRejectsUnsupportedExtension(t *testing.T) {
	r, _ := newTestRouter(t, "http://127.0.0.1:1")

	resp := postAnalyze(t, r, map[string]string{"resume": "cv.exe", "jobDescription": "jd.txt"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestStatusUnknownIDIs404(t *testing.T) {
	r, _ := newTestRouter(t, "http://127.0.0.1:1")

	for _, path := range []string{
		"/api/resume/status/0123456789abcdef0123456789abcdef",
		"/api/resume/result/0123456789abcdef0123456789abcdef",
		"/api/resume/status/not-an-id",
	} {
		if resp := get(r, path); resp.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, resp.Code)
		}
	}
}

func TestHistoryRequiresAuth(t *testing.T) {
	r, _ := newTestRouter(t, "http://127.0.0.1:1")

	if resp := get(r, "/api/analyses"); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestAnalyzeRejectsDuplicateFileParts(t *testing.T) {
	r, svc := newTestRouter(t, "http://127.0.0.1:1")

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, f := range []struct{ field, name string }{
		{FieldResume, "cv-a.txt"},
		{FieldResume, "cv-b.txt"},
		{FieldJobDescription, "jd.txt"},
	} {
		part, err := w.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := part.Write([]byte("Backend engineer, Go and Postgres")); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/resume/analyze", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", resp.Code, resp.Body.String())
	}
	errBody, _ := decode(t, resp)["error"].(map[string]any)
	if errBody["code"] != "validation_error" {
		t.Fatalf("expected validation_error, got %v", errBody)
	}
	drain(t, svc)
	if n := svc.Store.(*jobstore.MemoryStore).Len(); n != 0 {
		t.Fatalf("expected no job created, got %d entries", n)
	}
}

func TestFormMemoryCoversBodyCeiling(t *testing.T) {
	p := documents.Policy{MaxBytes: 20 << 20}
	if got, want := formMemoryFor(p), int64(2*(20<<20)+formOverheadBytes); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
	if got := formMemoryFor(documents.Policy{}); got != 32<<20 {
		t.Fatalf("expected default budget, got %d", got)
	}
}
