package analyses

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores analysis history in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Record
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Record)}
}

// Create stores the record.
func (r *MemoryRepo) Create(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[rec.ID] = rec
	return nil
}

// Finish writes the terminal outcome onto an existing record.
func (r *MemoryRepo) Finish(ctx context.Context, id string, out Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	rec.Status = out.Status
	rec.OverallScore = out.OverallScore
	rec.ReportKey = out.ReportKey
	rec.ErrorMessage = out.ErrorMessage
	completedAt := out.CompletedAt
	rec.CompletedAt = &completedAt
	r.byID[id] = rec
	return nil
}

// Get returns a record owned by userID.
func (r *MemoryRepo) Get(ctx context.Context, userID, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byID[id]
	if !ok || rec.UserID != userID {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// ListByUser returns a user's records, newest first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.list(func(rec Record) bool { return rec.UserID == userID }, limit, offset), nil
}

// ListAll returns every record, newest first.
func (r *MemoryRepo) ListAll(ctx context.Context, limit, offset int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.list(func(Record) bool { return true }, limit, offset), nil
}

// Delete removes a record owned by userID.
func (r *MemoryRepo) Delete(ctx context.Context, userID, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	if !ok || rec.UserID != userID {
		return ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

// Stats aggregates record counts by status.
func (r *MemoryRepo) Stats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var st Stats
	var sum float64
	var scored int
	for _, rec := range r.byID {
		st.Total++
		switch rec.Status {
		case StatusProcessing:
			st.Processing++
		case StatusCompleted:
			st.Completed++
		case StatusFailed:
			st.Failed++
		}
		if rec.OverallScore != nil {
			sum += *rec.OverallScore
			scored++
		}
	}
	if scored > 0 {
		avg := sum / float64(scored)
		st.AverageScore = &avg
	}
	return st, nil
}

func (r *MemoryRepo) list(keep func(Record) bool, limit, offset int) []Record {
	r.mu.RLock()
	out := make([]Record, 0, len(r.byID))
	for _, rec := range r.byID {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return []Record{}
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}
