package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/hopingminds/menrol-api/internal/model"
)

const createOrder = `
INSERT INTO orders (id, user_id, raised, status, doc)
VALUES ($1, $2, $3, $4, $5)
RETURNING version, created_at, updated_at
`

// CreateOrder inserts a new order row at version 1.
func (q *Queries) CreateOrder(ctx context.Context, ord model.Order) (model.Order, error) {
	doc, err := json.Marshal(ord.Doc)
	if err != nil {
		return model.Order{}, fmt.Errorf("marshal order doc: %w", err)
	}
	row := q.db.QueryRow(ctx, createOrder, ord.ID, ord.UserID, ord.Raised, ord.Status, doc)
	if err := row.Scan(&ord.Version, &ord.CreatedAt, &ord.UpdatedAt); err != nil {
		return model.Order{}, err
	}
	return ord, nil
}

const getOrder = `
SELECT id, user_id, raised, status, doc, version, created_at, updated_at
FROM orders
WHERE id = $1
`

// GetOrder loads one order; pgx.ErrNoRows when absent.
func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (model.Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const userHasRaisedOrder = `
SELECT EXISTS (SELECT 1 FROM orders WHERE user_id = $1 AND raised = TRUE)
`

// UserHasRaisedOrder reports whether the user already has an outstanding
// raised order. A new order cannot be raised while one is outstanding.
func (q *Queries) UserHasRaisedOrder(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, userHasRaisedOrder, userID).Scan(&exists)
	return exists, err
}

const listOrdersByUser = `
SELECT id, user_id, raised, status, doc, version, created_at, updated_at
FROM orders
WHERE user_id = $1
ORDER BY created_at DESC
`

// ListOrdersByUser returns every order owned by the user, newest first.
func (q *Queries) ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		ord, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, ord)
	}
	return orders, rows.Err()
}

// UpdateOrderParams carries a full-document compare-and-set write.
type UpdateOrderParams struct {
	ID      uuid.UUID
	Raised  bool
	Status  string
	Doc     model.OrderDoc
	Version int64
}

const updateOrder = `
UPDATE orders
SET raised = $2, status = $3, doc = $4, version = version + 1, updated_at = now()
WHERE id = $1 AND version = $5
RETURNING version
`

// UpdateOrder writes the document back iff the row still carries the
// expected version. pgx.ErrNoRows signals a lost race (or a vanished row);
// the caller must reload and retry or give up.
func (q *Queries) UpdateOrder(ctx context.Context, arg UpdateOrderParams) (int64, error) {
	doc, err := json.Marshal(arg.Doc)
	if err != nil {
		return 0, fmt.Errorf("marshal order doc: %w", err)
	}
	var version int64
	err = q.db.QueryRow(ctx, updateOrder, arg.ID, arg.Raised, arg.Status, doc, arg.Version).Scan(&version)
	return version, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (model.Order, error) {
	var (
		ord model.Order
		doc []byte
	)
	if err := row.Scan(&ord.ID, &ord.UserID, &ord.Raised, &ord.Status, &doc, &ord.Version, &ord.CreatedAt, &ord.UpdatedAt); err != nil {
		return model.Order{}, err
	}
	if err := json.Unmarshal(doc, &ord.Doc); err != nil {
		return model.Order{}, fmt.Errorf("unmarshal order doc: %w", err)
	}
	return ord, nil
}
