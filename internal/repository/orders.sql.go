package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, user_id, total_amount, shipping_address, status, created_at, updated_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.TotalAmount,
		&i.ShippingAddress,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const insertOrder = `-- name: InsertOrder :one
INSERT INTO orders (user_id, total_amount, shipping_address, status)
VALUES ($1, $2, $3, $4)
RETURNING ` + orderColumns

type InsertOrderParams struct {
	UserID          uuid.UUID      `json:"user_id"`
	TotalAmount     pgtype.Numeric `json:"total_amount"`
	ShippingAddress []byte         `json:"shipping_address"`
	Status          string         `json:"status"`
}

func (q *Queries) InsertOrder(ctx context.Context, arg InsertOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, insertOrder,
		arg.UserID,
		arg.TotalAmount,
		arg.ShippingAddress,
		arg.Status,
	)
	return scanOrder(row)
}

const deleteOrder = `-- name: DeleteOrder :execrows
DELETE FROM orders WHERE id = $1 AND user_id = $2
`

type DeleteOrderParams struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
}

func (q *Queries) DeleteOrder(ctx context.Context, arg DeleteOrderParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteOrder, arg.ID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const findOrderById = `-- name: FindOrderById :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND user_id = $2
`

type FindOrderByIdParams struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
}

func (q *Queries) FindOrderById(ctx context.Context, arg FindOrderByIdParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, findOrderById, arg.ID, arg.UserID))
}

const findOrdersByUserId = `-- name: FindOrdersByUserId :many
SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC
`

func (q *Queries) FindOrdersByUserId(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	return q.queryOrders(ctx, findOrdersByUserId, userID)
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + ` FROM orders
WHERE ($1::text IS NULL OR status = $1::text)
ORDER BY created_at DESC, id DESC
`

func (q *Queries) ListOrders(ctx context.Context, status pgtype.Text) ([]Order, error) {
	return q.queryOrders(ctx, listOrders, status)
}

func (q *Queries) queryOrders(ctx context.Context, query string, args ...interface{}) ([]Order, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders SET status = $2, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status))
}

const findOrderStatusForUpdate = `-- name: FindOrderStatusForUpdate :one
SELECT status FROM orders WHERE id = $1 FOR UPDATE
`

func (q *Queries) FindOrderStatusForUpdate(ctx context.Context, id uuid.UUID) (string, error) {
	var status string
	err := q.db.QueryRow(ctx, findOrderStatusForUpdate, id).Scan(&status)
	return status, err
}
