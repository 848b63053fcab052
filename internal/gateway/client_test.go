package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-insight/internal/documents"
)

func sampleDocs() (*documents.Upload, *documents.Upload) {
	resume := &documents.Upload{FileName: "cv.txt", MimeType: "text/plain", SizeBytes: 9, Data: []byte("Go expert")}
	jd := &documents.Upload{FileName: "jd.txt", MimeType: "text/plain", SizeBytes: 10, Data: []byte("Need Go dev")}
	return resume, jd
}

func TestAnalyzeSendsMultipartAndReturnsReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/analyze", r.URL.Path)
		assert.Equal(t, "req-1", r.Header.Get("X-Request-Id"))
		require.NoError(t, r.ParseMultipartForm(1<<20))

		f, fh, err := r.FormFile("resume")
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		assert.Equal(t, "cv.txt", fh.Filename)
		assert.Equal(t, "Go expert", string(data))
		assert.Equal(t, "text/plain", fh.Header.Get("Content-Type"))

		_, fh, err = r.FormFile("job_description")
		require.NoError(t, err)
		assert.Equal(t, "jd.txt", fh.Filename)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"overall_score": 82, "strengths": ["Go"], "weaknesses": [], "notes": {"x": 1}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second)
	resume, jd := sampleDocs()
	report, err := c.Analyze(WithRequestID(context.Background(), "req-1"), resume, jd)
	require.NoError(t, err)
	assert.Equal(t, float64(82), report["overall_score"])
	assert.Equal(t, []any{"Go"}, report["strengths"])
	assert.Equal(t, map[string]any{"x": float64(1)}, report["notes"])

	score, ok := report.OverallScore()
	assert.True(t, ok)
	assert.Equal(t, float64(82), score)
}

func TestAnalyzeNon2xxUsesUpstreamMessage(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"error field", http.StatusBadRequest, `{"error":"Resume unreadable"}`, "Resume unreadable"},
		{"detail field", http.StatusUnprocessableEntity, `{"detail":"bad jd"}`, "bad jd"},
		{"nested message", http.StatusBadGateway, `{"error":{"message":"model overloaded"}}`, "model overloaded"},
		{"no body", http.StatusInternalServerError, ``, "external API error: 500"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			resume, jd := sampleDocs()
			_, err := NewClient(srv.URL, time.Second).Analyze(context.Background(), resume, jd)

			var gwErr *ExternalServiceError
			require.True(t, errors.As(err, &gwErr), "expected ExternalServiceError, got %T", err)
			assert.Equal(t, tc.status, gwErr.StatusCode)
			assert.Equal(t, tc.message, gwErr.Message)
		})
	}
}

func TestAnalyzeRejectsMalformedReport(t *testing.T) {
	bodies := []string{
		`not json`,
		`[]`,
		`{}`,
		`{"overall_score": "high"}`,
		`{"overall_score": 140}`,
		`{"strengths": "many"}`,
	}
	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			resume, jd := sampleDocs()
			_, err := NewClient(srv.URL, time.Second).Analyze(context.Background(), resume, jd)

			var gwErr *ExternalServiceError
			require.True(t, errors.As(err, &gwErr), "expected ExternalServiceError, got %v", err)
			assert.Equal(t, http.StatusOK, gwErr.StatusCode)
			assert.Contains(t, gwErr.Message, "invalid report")
		})
	}
}

func TestAnalyzeTimeoutIsUnavailable(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	resume, jd := sampleDocs()
	_, err := NewClient(srv.URL, 50*time.Millisecond).Analyze(context.Background(), resume, jd)

	var unavailable *ExternalServiceUnavailable
	require.True(t, errors.As(err, &unavailable), "expected ExternalServiceUnavailable, got %v", err)
}

func TestAnalyzeConnectionRefusedIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	resume, jd := sampleDocs()
	_, err := NewClient(url, time.Second).Analyze(context.Background(), resume, jd)

	var unavailable *ExternalServiceUnavailable
	require.True(t, errors.As(err, &unavailable))
}

func TestAnalyzeWithoutBaseURLIsUnavailable(t *testing.T) {
	resume, jd := sampleDocs()
	_, err := NewClient("", time.Second).Analyze(context.Background(), resume, jd)

	var unavailable *ExternalServiceUnavailable
	require.True(t, errors.As(err, &unavailable))
}

func TestCheckHealth(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()
	unhealthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer unhealthy.Close()

	assert.True(t, NewClient(healthy.URL, time.Second).CheckHealth(context.Background()))
	assert.False(t, NewClient(unhealthy.URL, time.Second).CheckHealth(context.Background()))
	assert.False(t, NewClient("", time.Second).CheckHealth(context.Background()))
}
