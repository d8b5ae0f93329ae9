package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const findCartLinesByUserId = `-- name: FindCartLinesByUserId :many
SELECT ci.id, ci.user_id, ci.product_id, ci.quantity, ci.size, ci.color, ci.created_at,
       p.name AS product_name, p.price AS product_price, p.stock AS product_stock,
       (SELECT pi.image_url FROM product_images pi
         WHERE pi.product_id = p.id
         ORDER BY pi.is_primary DESC, pi.sort_order ASC
         LIMIT 1) AS product_image,
       c.name AS category_name
FROM cart_items ci
LEFT JOIN products p ON p.id = ci.product_id
LEFT JOIN categories c ON c.id = p.category_id
WHERE ci.user_id = $1
ORDER BY ci.created_at ASC, ci.id ASC
`

type FindCartLinesByUserIdRow struct {
	ID           uuid.UUID          `json:"id"`
	UserID       uuid.UUID          `json:"user_id"`
	ProductID    uuid.UUID          `json:"product_id"`
	Quantity     int32              `json:"quantity"`
	Size         string             `json:"size"`
	Color        string             `json:"color"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
	ProductName  pgtype.Text        `json:"product_name"`
	ProductPrice pgtype.Numeric     `json:"product_price"`
	ProductStock pgtype.Int4        `json:"product_stock"`
	ProductImage pgtype.Text        `json:"product_image"`
	CategoryName pgtype.Text        `json:"category_name"`
}

func (q *Queries) FindCartLinesByUserId(ctx context.Context, userID uuid.UUID) ([]FindCartLinesByUserIdRow, error) {
	rows, err := q.db.Query(ctx, findCartLinesByUserId, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []FindCartLinesByUserIdRow{}
	for rows.Next() {
		var i FindCartLinesByUserIdRow
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.ProductID,
			&i.Quantity,
			&i.Size,
			&i.Color,
			&i.CreatedAt,
			&i.ProductName,
			&i.ProductPrice,
			&i.ProductStock,
			&i.ProductImage,
			&i.CategoryName,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertCartLine = `-- name: InsertCartLine :one
INSERT INTO cart_items (user_id, product_id, quantity, size, color)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id, product_id, size, color)
DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()
RETURNING id, user_id, product_id, quantity, size, color, created_at, updated_at
`

type InsertCartLineParams struct {
	UserID    uuid.UUID `json:"user_id"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int32     `json:"quantity"`
	Size      string    `json:"size"`
	Color     string    `json:"color"`
}

func (q *Queries) InsertCartLine(ctx context.Context, arg InsertCartLineParams) (CartItem, error) {
	row := q.db.QueryRow(ctx, insertCartLine,
		arg.UserID,
		arg.ProductID,
		arg.Quantity,
		arg.Size,
		arg.Color,
	)
	var i CartItem
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.ProductID,
		&i.Quantity,
		&i.Size,
		&i.Color,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const updateCartLineQuantity = `-- name: UpdateCartLineQuantity :one
UPDATE cart_items SET quantity = $3, updated_at = now()
WHERE id = $1 AND user_id = $2
RETURNING id, user_id, product_id, quantity, size, color, created_at, updated_at
`

type UpdateCartLineQuantityParams struct {
	ID       uuid.UUID `json:"id"`
	UserID   uuid.UUID `json:"user_id"`
	Quantity int32     `json:"quantity"`
}

func (q *Queries) UpdateCartLineQuantity(ctx context.Context, arg UpdateCartLineQuantityParams) (CartItem, error) {
	row := q.db.QueryRow(ctx, updateCartLineQuantity, arg.ID, arg.UserID, arg.Quantity)
	var i CartItem
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.ProductID,
		&i.Quantity,
		&i.Size,
		&i.Color,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const deleteCartLine = `-- name: DeleteCartLine :execrows
DELETE FROM cart_items WHERE id = $1 AND user_id = $2
`

type DeleteCartLineParams struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
}

func (q *Queries) DeleteCartLine(ctx context.Context, arg DeleteCartLineParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteCartLine, arg.ID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const deleteCartLinesByUserId = `-- name: DeleteCartLinesByUserId :execrows
DELETE FROM cart_items WHERE user_id = $1
`

func (q *Queries) DeleteCartLinesByUserId(ctx context.Context, userID uuid.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, deleteCartLinesByUserId, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const deductCartLines = `-- name: DeductCartLines :execrows
WITH ordered AS (
    SELECT o.id, o.quantity FROM unnest($2::uuid[], $3::int[]) AS o(id, quantity)
), reduced AS (
    UPDATE cart_items ci SET quantity = ci.quantity - ordered.quantity, updated_at = now()
    FROM ordered
    WHERE ci.user_id = $1 AND ci.id = ordered.id AND ci.quantity > ordered.quantity
    RETURNING ci.id
)
DELETE FROM cart_items ci USING ordered
WHERE ci.user_id = $1 AND ci.id = ordered.id AND ci.quantity <= ordered.quantity
`

// DeductCartLinesParams pairs IDs[i] with Quantities[i].
type DeductCartLinesParams struct {
	UserID     uuid.UUID   `json:"user_id"`
	IDs        []uuid.UUID `json:"ids"`
	Quantities []int32     `json:"quantities"`
}

// DeductCartLines takes the given quantities off the lines of a user. Lines
// left with nothing are deleted, and only those count as affected rows.
func (q *Queries) DeductCartLines(ctx context.Context, arg DeductCartLinesParams) (int64, error) {
	result, err := q.db.Exec(ctx, deductCartLines, arg.UserID, arg.IDs, arg.Quantities)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
