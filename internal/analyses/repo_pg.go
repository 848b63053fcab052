package analyses

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const recordColumns = `id, user_id, resume_file_name, job_description_file_name, job_description_preview,
       status, overall_score, report_key, error_message, created_at, completed_at`

// Create inserts a new history record.
func (r *PGRepo) Create(ctx context.Context, rec Record) error {
	const query = `
INSERT INTO analyses (
	id, user_id, resume_file_name, job_description_file_name, job_description_preview,
	status, error_message, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.DB.ExecContext(ctx, query,
		rec.ID,
		rec.UserID,
		rec.ResumeFileName,
		rec.JobDescriptionFileName,
		rec.JobDescriptionPreview,
		rec.Status,
		rec.ErrorMessage,
		rec.CreatedAt,
	)
	return errors.Wrap(err, "insert analysis")
}

// Finish writes the terminal outcome of a job.
func (r *PGRepo) Finish(ctx context.Context, id string, out Outcome) error {
	const query = `
UPDATE analyses
SET status = $2, overall_score = $3, report_key = $4, error_message = $5, completed_at = $6
WHERE id = $1`
	var score sql.NullFloat64
	if out.OverallScore != nil {
		score = sql.NullFloat64{Float64: *out.OverallScore, Valid: true}
	}
	res, err := r.DB.ExecContext(ctx, query, id, out.Status, score, out.ReportKey, out.ErrorMessage, out.CompletedAt)
	if err != nil {
		return errors.Wrap(err, "finish analysis")
	}
	return requireAffected(res)
}

// Get returns a record owned by userID.
func (r *PGRepo) Get(ctx context.Context, userID, id string) (Record, error) {
	query := `SELECT ` + recordColumns + ` FROM analyses WHERE id = $1 AND user_id = $2 LIMIT 1`
	rec, err := scanRecord(r.DB.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// ListByUser returns a user's records, newest first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM analyses WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "list analyses")
	}
	return collectRecords(rows)
}

// ListAll returns every record, newest first.
func (r *PGRepo) ListAll(ctx context.Context, limit, offset int) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM analyses
ORDER BY created_at DESC, id DESC
LIMIT $1 OFFSET $2`
	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "list all analyses")
	}
	return collectRecords(rows)
}

// Delete removes a record owned by userID.
func (r *PGRepo) Delete(ctx context.Context, userID, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM analyses WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return errors.Wrap(err, "delete analysis")
	}
	return requireAffected(res)
}

// Stats aggregates record counts by status.
func (r *PGRepo) Stats(ctx context.Context) (Stats, error) {
	const query = `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE status = 'processing'),
       COUNT(*) FILTER (WHERE status = 'completed'),
       COUNT(*) FILTER (WHERE status = 'failed'),
       AVG(overall_score)
FROM analyses`
	var st Stats
	var avg sql.NullFloat64
	if err := r.DB.QueryRowContext(ctx, query).Scan(&st.Total, &st.Processing, &st.Completed, &st.Failed, &avg); err != nil {
		return Stats{}, errors.Wrap(err, "analysis stats")
	}
	if avg.Valid {
		v := avg.Float64
		st.AverageScore = &v
	}
	return st, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var score sql.NullFloat64
	var completedAt sql.NullTime
	if err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.ResumeFileName,
		&rec.JobDescriptionFileName,
		&rec.JobDescriptionPreview,
		&rec.Status,
		&score,
		&rec.ReportKey,
		&rec.ErrorMessage,
		&rec.CreatedAt,
		&completedAt,
	); err != nil {
		return Record{}, err
	}
	if score.Valid {
		v := score.Float64
		rec.OverallScore = &v
	}
	if completedAt.Valid {
		t := completedAt.Time
		rec.CompletedAt = &t
	}
	return rec, nil
}

func collectRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()
	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan analysis")
		}
		out = append(out, rec)
	}
	return out, errors.Wrap(rows.Err(), "iterate analyses")
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
