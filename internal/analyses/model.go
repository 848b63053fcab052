package analyses

import "time"

// Job statuses. A job moves from processing to exactly one terminal status.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// JobStatus is the store-resident record clients poll.
type JobStatus struct {
	AnalysisID  string     `json:"analysisId"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	FailedAt    *time.Time `json:"failedAt,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Terminal reports whether the job has finished.
func (s JobStatus) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// Record is the persisted history entry of an authenticated user's analysis.
type Record struct {
	ID                     string     `json:"id"`
	UserID                 string     `json:"userId"`
	ResumeFileName         string     `json:"resumeFileName"`
	JobDescriptionFileName string     `json:"jobDescriptionFileName"`
	JobDescriptionPreview  string     `json:"jobDescriptionPreview,omitempty"`
	Status                 string     `json:"status"`
	OverallScore           *float64   `json:"overallScore,omitempty"`
	ReportKey              string     `json:"-"`
	ErrorMessage           string     `json:"errorMessage,omitempty"`
	CreatedAt              time.Time  `json:"createdAt"`
	CompletedAt            *time.Time `json:"completedAt,omitempty"`
}

// Outcome is the terminal state written back to a Record.
type Outcome struct {
	Status       string
	OverallScore *float64
	ReportKey    string
	ErrorMessage string
	CompletedAt  time.Time
}

// Stats summarizes persisted analyses for the admin console.
type Stats struct {
	Total        int      `json:"total"`
	Processing   int      `json:"processing"`
	Completed    int      `json:"completed"`
	Failed       int      `json:"failed"`
	AverageScore *float64 `json:"averageScore,omitempty"`
}
