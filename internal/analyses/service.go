package analyses

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"runtime/debug"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"

	"resume-insight/internal/documents"
	"resume-insight/internal/gateway"
	"resume-insight/internal/jobstore"
	"resume-insight/internal/shared/apperr"
	"resume-insight/internal/shared/metrics"
	"resume-insight/internal/shared/storage/object"
	"resume-insight/internal/shared/telemetry"
)

// Analyzer runs one analysis against the external service.
type Analyzer interface {
	Analyze(ctx context.Context, resume, jobDescription *documents.Upload) (gateway.Report, error)
}

// Default TTLs for job state.
const (
	DefaultStatusTTL = time.Hour
	DefaultResultTTL = 24 * time.Hour
)

const previewRunes = 280

var jobIDPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// Service coordinates asynchronous analysis jobs.
type Service struct {
	Store     jobstore.Store
	Gateway   Analyzer
	History   Repo
	Archive   object.ObjectStore
	StatusTTL time.Duration
	ResultTTL time.Duration

	now      func() time.Time
	inflight sync.WaitGroup
}

// NewService constructs a Service. History and Archive may be nil.
func NewService(store jobstore.Store, gw Analyzer, history Repo, archive object.ObjectStore) *Service {
	return &Service{
		Store:     store,
		Gateway:   gw,
		History:   history,
		Archive:   archive,
		StatusTTL: DefaultStatusTTL,
		ResultTTL: DefaultResultTTL,
		now:       time.Now,
	}
}

// SubmitInput carries the documents of one analysis request.
type SubmitInput struct {
	Resume         *documents.Upload
	JobDescription *documents.Upload
	UserID         string
}

// Submit registers a job as processing and starts it in the background.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (JobStatus, error) {
	if in.Resume == nil || in.JobDescription == nil {
		return JobStatus{}, apperr.Validation("Missing files")
	}
	id, err := newJobID()
	if err != nil {
		return JobStatus{}, err
	}

	status := JobStatus{AnalysisID: id, Status: StatusProcessing, StartedAt: s.now().UTC()}
	if err := jobstore.PutJSON(ctx, s.Store, jobstore.StatusKey(id), status, s.StatusTTL); err != nil {
		return JobStatus{}, errors.Wrap(err, "record job status")
	}
	metrics.IncAnalysisStarted()
	telemetry.Info("analysis.submitted", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"analysis_id": id,
		"user_id":     in.UserID,
		"resume_size": in.Resume.SizeBytes,
		"jd_size":     in.JobDescription.SizeBytes,
	})

	if in.UserID != "" && s.History != nil {
		s.recordSubmission(ctx, id, in, status.StartedAt)
	}

	s.inflight.Add(1)
	go s.run(backgroundWithRequestID(ctx), id, in)
	return status, nil
}

// run performs the gateway call and writes exactly one terminal status.
func (s *Service) run(ctx context.Context, id string, in SubmitInput) {
	defer s.inflight.Done()
	start := s.now()
	defer func() {
		if rec := recover(); rec != nil {
			metrics.IncPanicRecovered("analysis")
			telemetry.Error("analysis.panic", map[string]any{
				"request_id":  requestIDFromContext(ctx),
				"analysis_id": id,
				"panic":       fmt.Sprint(rec),
				"stack":       string(debug.Stack()),
			})
			s.fail(ctx, id, in.UserID, errors.Newf("internal error: %v", rec))
		}
	}()

	report, err := s.Gateway.Analyze(ctx, in.Resume, in.JobDescription)
	if err != nil {
		s.fail(ctx, id, in.UserID, err)
		return
	}
	s.complete(ctx, id, in.UserID, report)
	metrics.ObserveAnalysisDurationMs(metrics.SinceMs(start))
}

func (s *Service) complete(ctx context.Context, id, userID string, report gateway.Report) {
	if err := jobstore.PutJSON(ctx, s.Store, jobstore.ResultKey(id), report, s.ResultTTL); err != nil {
		s.fail(ctx, id, userID, errors.Wrap(err, "store result"))
		return
	}

	prev := s.currentStatus(ctx, id)
	completedAt := s.now().UTC()
	status := JobStatus{AnalysisID: id, Status: StatusCompleted, StartedAt: prev.StartedAt, CompletedAt: &completedAt}
	if err := jobstore.PutJSON(ctx, s.Store, jobstore.StatusKey(id), status, s.StatusTTL); err != nil {
		telemetry.Error("analysis.status_write_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": id,
			"error":       err.Error(),
		})
	}
	metrics.IncAnalysisCompleted()
	telemetry.Info("analysis.completed", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"analysis_id": id,
	})

	if userID != "" && s.History != nil {
		s.archive(ctx, id, userID, report, completedAt)
	}
}

func (s *Service) fail(ctx context.Context, id, userID string, cause error) {
	message := failureMessage(cause)
	fields := map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"analysis_id": id,
		"error":       message,
	}
	var unavailable *gateway.ExternalServiceUnavailable
	var upstream *gateway.ExternalServiceError
	switch {
	case errors.As(cause, &unavailable):
		telemetry.Error("analysis.upstream_unavailable", fields)
	case errors.As(cause, &upstream):
		fields["upstream_status"] = upstream.StatusCode
		telemetry.Warn("analysis.upstream_rejected", fields)
	default:
		telemetry.Error("analysis.failed", fields)
	}
	prev := s.currentStatus(ctx, id)
	if prev.Terminal() {
		return
	}
	metrics.IncAnalysisFailed()
	failedAt := s.now().UTC()
	status := JobStatus{AnalysisID: id, Status: StatusFailed, StartedAt: prev.StartedAt, FailedAt: &failedAt, Error: message}
	if err := jobstore.PutJSON(ctx, s.Store, jobstore.StatusKey(id), status, s.StatusTTL); err != nil {
		telemetry.Error("analysis.status_write_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": id,
			"error":       err.Error(),
		})
	}

	if userID != "" && s.History != nil {
		s.finishHistory(ctx, id, Outcome{Status: StatusFailed, ErrorMessage: message, CompletedAt: failedAt})
	}
}

func (s *Service) currentStatus(ctx context.Context, id string) JobStatus {
	var st JobStatus
	if ok, err := jobstore.GetJSON(ctx, s.Store, jobstore.StatusKey(id), &st); err != nil || !ok {
		return JobStatus{AnalysisID: id, StartedAt: s.now().UTC()}
	}
	return st
}

func failureMessage(err error) string {
	var upstream *gateway.ExternalServiceError
	if errors.As(err, &upstream) && upstream.Message != "" {
		return upstream.Message
	}
	var unavailable *gateway.ExternalServiceUnavailable
	if errors.As(err, &unavailable) {
		return unavailable.Error()
	}
	return err.Error()
}

func (s *Service) recordSubmission(ctx context.Context, id string, in SubmitInput, startedAt time.Time) {
	rec := Record{
		ID:                     id,
		UserID:                 in.UserID,
		ResumeFileName:         in.Resume.FileName,
		JobDescriptionFileName: in.JobDescription.FileName,
		JobDescriptionPreview:  preview(in.JobDescription),
		Status:                 StatusProcessing,
		CreatedAt:              startedAt,
	}
	if err := s.History.Create(ctx, rec); err != nil {
		telemetry.Warn("analysis.history_create_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": id,
			"error":       err.Error(),
		})
	}
}

func (s *Service) archive(ctx context.Context, id, userID string, report gateway.Report, completedAt time.Time) {
	out := Outcome{Status: StatusCompleted, CompletedAt: completedAt}
	if score, ok := report.OverallScore(); ok {
		out.OverallScore = &score
	}
	if s.Archive != nil {
		key, err := s.putReport(ctx, userID, id, report)
		if err != nil {
			telemetry.Warn("analysis.archive_failed", map[string]any{
				"request_id":  requestIDFromContext(ctx),
				"analysis_id": id,
				"error":       err.Error(),
			})
		} else {
			out.ReportKey = key
		}
	}
	s.finishHistory(ctx, id, out)
}

func (s *Service) putReport(ctx context.Context, userID, id string, report gateway.Report) (string, error) {
	key, err := object.ReportKey(userID, id)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(report)
	if err != nil {
		return "", errors.Wrap(err, "encode report")
	}
	if _, err := s.Archive.Put(ctx, key, "application/json", bytes.NewReader(data)); err != nil {
		return "", err
	}
	return key, nil
}

func (s *Service) finishHistory(ctx context.Context, id string, out Outcome) {
	if err := s.History.Finish(ctx, id, out); err != nil {
		telemetry.Warn("analysis.history_finish_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": id,
			"error":       err.Error(),
		})
	}
}

// Status returns the current status of a job.
func (s *Service) Status(ctx context.Context, id string) (JobStatus, error) {
	if !jobIDPattern.MatchString(id) {
		return JobStatus{}, ErrNotFound
	}
	var st JobStatus
	ok, err := jobstore.GetJSON(ctx, s.Store, jobstore.StatusKey(id), &st)
	if err != nil {
		return JobStatus{}, err
	}
	if !ok {
		return JobStatus{}, ErrNotFound
	}
	return st, nil
}

// Result returns the report of a completed job.
func (s *Service) Result(ctx context.Context, id string) (gateway.Report, error) {
	if !jobIDPattern.MatchString(id) {
		return nil, ErrNotFound
	}
	var report gateway.Report
	ok, err := jobstore.GetJSON(ctx, s.Store, jobstore.ResultKey(id), &report)
	if err != nil {
		return nil, err
	}
	if ok {
		return report, nil
	}

	st, err := s.Status(ctx, id)
	if err != nil {
		return nil, err
	}
	switch st.Status {
	case StatusProcessing:
		return nil, ErrStillProcessing
	case StatusFailed:
		return nil, &JobFailedError{Message: st.Error}
	default:
		return nil, ErrNotFound
	}
}

// Drain waits for in-flight jobs to finish or ctx to end.
func (s *Service) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HistoryEntry is a persisted record plus its archived report, when available.
type HistoryEntry struct {
	Record
	Report gateway.Report `json:"report,omitempty"`
}

// ListHistory returns a user's analyses, newest first.
func (s *Service) ListHistory(ctx context.Context, userID string, limit, offset int) ([]Record, error) {
	if s.History == nil {
		return []Record{}, nil
	}
	return s.History.ListByUser(ctx, userID, clampLimit(limit), max(offset, 0))
}

// GetHistory returns one of a user's analyses with its archived report.
func (s *Service) GetHistory(ctx context.Context, userID, id string) (HistoryEntry, error) {
	if s.History == nil {
		return HistoryEntry{}, ErrNotFound
	}
	rec, err := s.History.Get(ctx, userID, id)
	if err != nil {
		return HistoryEntry{}, err
	}
	entry := HistoryEntry{Record: rec}
	if rec.ReportKey != "" && s.Archive != nil {
		report, err := s.loadReport(ctx, rec.ReportKey)
		if err != nil {
			telemetry.Warn("analysis.archive_read_failed", map[string]any{
				"analysis_id": id,
				"error":       err.Error(),
			})
		} else {
			entry.Report = report
		}
	}
	return entry, nil
}

// DeleteHistory removes a user's analysis and its archived report.
func (s *Service) DeleteHistory(ctx context.Context, userID, id string) error {
	if s.History == nil {
		return ErrNotFound
	}
	rec, err := s.History.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.History.Delete(ctx, userID, id); err != nil {
		return err
	}
	if rec.ReportKey != "" && s.Archive != nil {
		if err := s.Archive.Delete(ctx, rec.ReportKey); err != nil {
			telemetry.Warn("analysis.archive_delete_failed", map[string]any{
				"analysis_id": id,
				"error":       err.Error(),
			})
		}
	}
	return nil
}

// ListAll returns every persisted analysis for the admin console.
func (s *Service) ListAll(ctx context.Context, limit, offset int) ([]Record, error) {
	if s.History == nil {
		return []Record{}, nil
	}
	return s.History.ListAll(ctx, clampLimit(limit), max(offset, 0))
}

// Stats summarizes persisted analyses for the admin console.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	if s.History == nil {
		return Stats{}, nil
	}
	return s.History.Stats(ctx)
}

func (s *Service) loadReport(ctx context.Context, key string) (gateway.Report, error) {
	rc, err := s.Archive.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrap(err, "read report")
	}
	var report gateway.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, errors.Wrap(err, "decode report")
	}
	return report, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}

func preview(up *documents.Upload) string {
	text, err := documents.PlainText(up)
	if err != nil {
		return ""
	}
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= previewRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:previewRunes])
}

func newJobID() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", errors.Wrap(err, "generate analysis id")
	}
	return hex.EncodeToString(buf[:]), nil
}
