package contact

import (
	"context"
	"sort"
	"sync"
)

type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Message
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Message)}
}

func (r *MemoryRepo) Create(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[msg.ID] = msg
	return nil
}

func (r *MemoryRepo) List(ctx context.Context, status string, limit, offset int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Message, 0, len(r.byID))
	for _, m := range r.byID {
		if status == "" || m.Status == status {
			out = append(out, m)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []Message{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, id, status string) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok {
		return Message{}, ErrNotFound
	}
	m.Status = status
	r.byID[id] = m
	return m, nil
}

func (r *MemoryRepo) CountByStatus(ctx context.Context, status string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, m := range r.byID {
		if status == "" || m.Status == status {
			n++
		}
	}
	return n, nil
}
