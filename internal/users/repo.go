package users

import (
	"context"

	"github.com/cockroachdb/errors"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already registered")
)

type Repo interface {
	Create(ctx context.Context, user User) error
	GetByID(ctx context.Context, userID string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	List(ctx context.Context, limit, offset int) ([]User, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, userID string) error
}
