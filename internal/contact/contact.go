// Package contact stores messages sent through the public contact form.
package contact

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// Message statuses.
const (
	StatusOpen     = "open"
	StatusResolved = "resolved"
)

var ErrNotFound = errors.New("contact message not found")

type Message struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Repo persists contact messages.
type Repo interface {
	Create(ctx context.Context, msg Message) error
	// List returns messages newest first. An empty status returns all messages.
	List(ctx context.Context, status string, limit, offset int) ([]Message, error)
	UpdateStatus(ctx context.Context, id, status string) (Message, error)
	CountByStatus(ctx context.Context, status string) (int, error)
}
