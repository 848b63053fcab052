package users

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPGRepoCreateMapsUniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo := &PGRepo{DB: db}

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	err = repo.Create(context.Background(), User{ID: "u1", Email: "a@example.com", Role: "user", Provider: ProviderPassword})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepoGetByEmailNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo := &PGRepo{DB: db}

	mock.ExpectQuery("SELECT (.+) FROM users WHERE LOWER\\(email\\) = LOWER\\(\\$1\\)").
		WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = repo.GetByEmail(context.Background(), "a@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPGRepoUpdatePasswordMissingUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repo := &PGRepo{DB: db}

	mock.ExpectExec("UPDATE users SET password_hash").
		WithArgs("u1", "hash").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.UpdatePassword(context.Background(), "u1", "hash"), ErrNotFound)
}
