package analyses

import "context"

// Repo persists analysis history for authenticated users.
type Repo interface {
	Create(ctx context.Context, rec Record) error
	Finish(ctx context.Context, id string, out Outcome) error
	Get(ctx context.Context, userID, id string) (Record, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Record, error)
	Delete(ctx context.Context, userID, id string) error
	ListAll(ctx context.Context, limit, offset int) ([]Record, error)
	Stats(ctx context.Context) (Stats, error)
}
