// Package gateway talks to the external resume analysis service.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"resume-insight/internal/documents"
	"resume-insight/internal/shared/metrics"
	"resume-insight/internal/shared/telemetry"
)

const (
	// DefaultTimeout bounds a single analysis call.
	DefaultTimeout = 30 * time.Second

	healthTimeout   = 5 * time.Second
	maxResponseBody = 10 << 20
)

// Client calls POST {baseURL}/analyze and GET {baseURL}/health.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a Client. A non-positive timeout uses DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Analyze sends both documents and returns the validated report.
// Errors are *ExternalServiceError or *ExternalServiceUnavailable.
func (c *Client) Analyze(ctx context.Context, resume, jobDescription *documents.Upload) (Report, error) {
	if c.baseURL == "" {
		return nil, &ExternalServiceUnavailable{Cause: errors.New("AI_API_URL is not configured")}
	}
	if resume == nil || jobDescription == nil {
		return nil, errors.New("analyze: both documents are required")
	}

	body, contentType, err := encodeForm(resume, jobDescription)
	if err != nil {
		return nil, errors.Wrap(err, "encode analysis request")
	}
	url := c.baseURL + "/analyze"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, errors.Wrap(err, "build analysis request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if reqID := RequestIDFromContext(ctx); reqID != "" {
		req.Header.Set("X-Request-Id", reqID)
	}

	telemetry.Info("gateway.request", map[string]any{
		"request_id":  RequestIDFromContext(ctx),
		"method":      http.MethodPost,
		"url":         url,
		"resume_size": resume.SizeBytes,
		"jd_size":     jobDescription.SizeBytes,
	})

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.IncGatewayUnavailable()
		telemetry.Error("gateway.unavailable", map[string]any{
			"request_id":  RequestIDFromContext(ctx),
			"url":         url,
			"duration_ms": metrics.SinceMs(start),
			"error":       err.Error(),
		})
		return nil, &ExternalServiceUnavailable{Cause: err}
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	durationMs := metrics.SinceMs(start)
	metrics.ObserveGatewayDurationMs(durationMs)
	telemetry.Info("gateway.response", map[string]any{
		"request_id":  RequestIDFromContext(ctx),
		"status":      resp.StatusCode,
		"duration_ms": durationMs,
		"bytes":       len(raw),
	})
	if readErr != nil {
		metrics.IncGatewayUnavailable()
		return nil, &ExternalServiceUnavailable{Cause: errors.Wrap(readErr, "read response")}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.IncGatewayError()
		gwErr := &ExternalServiceError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(raw, resp.StatusCode),
		}
		telemetry.Error("gateway.error", map[string]any{
			"request_id": RequestIDFromContext(ctx),
			"status":     resp.StatusCode,
			"message":    gwErr.Message,
		})
		return nil, gwErr
	}

	report, err := ParseReport(raw)
	if err != nil {
		metrics.IncGatewayError()
		var gwErr *ExternalServiceError
		if errors.As(err, &gwErr) {
			gwErr.StatusCode = resp.StatusCode
		}
		telemetry.Error("gateway.invalid_report", map[string]any{
			"request_id": RequestIDFromContext(ctx),
			"status":     resp.StatusCode,
			"error":      err.Error(),
		})
		return nil, err
	}
	return report, nil
}

// CheckHealth reports whether the service answers its health endpoint with 2xx.
func (c *Client) CheckHealth(ctx context.Context) bool {
	if c.baseURL == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		telemetry.Warn("gateway.health_failed", map[string]any{"error": err.Error()})
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

func encodeForm(resume, jobDescription *documents.Upload) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := writeFilePart(w, "resume", resume); err != nil {
		return nil, "", err
	}
	if err := writeFilePart(w, "job_description", jobDescription); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeFilePart(w *multipart.Writer, field string, up *documents.Upload) error {
	contentType := up.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(up.FileName)))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(up.Data)
	return err
}

// errorMessage prefers the upstream error/message/detail field.
func errorMessage(body []byte, status int) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, key := range []string{"error", "message", "detail"} {
			if msg := messageFrom(payload[key]); msg != "" {
				return msg
			}
		}
	}
	return fmt.Sprintf("external API error: %d", status)
}

func messageFrom(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		return messageFrom(t["message"])
	default:
		return ""
	}
}
