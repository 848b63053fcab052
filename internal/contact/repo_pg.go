package contact

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
)

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Create(ctx context.Context, msg Message) error {
	const query = `
INSERT INTO contact_messages (id, name, email, subject, message, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.DB.ExecContext(ctx, query, msg.ID, msg.Name, msg.Email, msg.Subject, msg.Message, msg.Status, msg.CreatedAt)
	return errors.Wrap(err, "insert contact message")
}

func (r *PGRepo) List(ctx context.Context, status string, limit, offset int) ([]Message, error) {
	const query = `
SELECT id, name, email, subject, message, status, created_at
FROM contact_messages
WHERE ($1 = '' OR status = $1)
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, status, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "list contact messages")
	}
	defer rows.Close()
	out := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Subject, &m.Message, &m.Status, &m.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan contact message")
		}
		out = append(out, m)
	}
	return out, errors.Wrap(rows.Err(), "iterate contact messages")
}

func (r *PGRepo) UpdateStatus(ctx context.Context, id, status string) (Message, error) {
	const query = `
UPDATE contact_messages SET status = $2 WHERE id = $1
RETURNING id, name, email, subject, message, status, created_at`
	var m Message
	err := r.DB.QueryRowContext(ctx, query, id, status).
		Scan(&m.ID, &m.Name, &m.Email, &m.Subject, &m.Message, &m.Status, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Message{}, ErrNotFound
		}
		return Message{}, errors.Wrap(err, "update contact message")
	}
	return m, nil
}

func (r *PGRepo) CountByStatus(ctx context.Context, status string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM contact_messages WHERE ($1 = '' OR status = $1)`, status).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "count contact messages")
	}
	return n, nil
}
