package repository

import (
	"context"

	"github.com/google/uuid"
)

const findProfileById = `-- name: FindProfileById :one
SELECT id, full_name, email, phone_number, role, created_at, updated_at
FROM profiles WHERE id = $1
`

func (q *Queries) FindProfileById(ctx context.Context, id uuid.UUID) (Profile, error) {
	row := q.db.QueryRow(ctx, findProfileById, id)
	var i Profile
	err := row.Scan(
		&i.ID,
		&i.FullName,
		&i.Email,
		&i.PhoneNumber,
		&i.Role,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
