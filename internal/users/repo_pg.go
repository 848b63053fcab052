package users

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

type PGRepo struct {
	DB *sql.DB
}

const userColumns = `id, name, email, password_hash, role, provider, verified, created_at, updated_at`

func (r *PGRepo) Create(ctx context.Context, user User) error {
	const query = `
INSERT INTO users (id, name, email, password_hash, role, provider, verified, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())`
	_, err := r.DB.ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Provider,
		user.Verified,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrEmailTaken
		}
		return errors.Wrap(err, "insert user")
	}
	return nil
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	return r.getOne(ctx, query, userID)
}

func (r *PGRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1`
	return r.getOne(ctx, query, email)
}

func (r *PGRepo) getOne(ctx context.Context, query string, arg any) (User, error) {
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, errors.Wrap(err, "load user")
	}
	return user, nil
}

func (r *PGRepo) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, userID, passwordHash)
	if err != nil {
		return errors.Wrap(err, "update password")
	}
	return requireAffected(res)
}

func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, email LIMIT $1 OFFSET $2`
	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan user")
		}
		out = append(out, u)
	}
	return out, errors.Wrap(rows.Err(), "iterate users")
}

func (r *PGRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count users")
	}
	return n, nil
}

func (r *PGRepo) Delete(ctx context.Context, userID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return errors.Wrap(err, "delete user")
	}
	return requireAffected(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.Provider,
		&u.Verified,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
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
