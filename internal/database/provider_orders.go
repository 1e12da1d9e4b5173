package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/hopingminds/menrol-api/internal/model"
)

const createProviderOrder = `
INSERT INTO provider_orders (id, provider_id, order_id, user_id, doc)
VALUES ($1, $2, $3, $4, $5)
RETURNING version, created_at, updated_at
`

// CreateProviderOrder inserts the provider-scoped mirror row; there is at
// most one per (provider, order) pair, enforced by a unique constraint.
func (q *Queries) CreateProviderOrder(ctx context.Context, po model.ProviderOrder) (model.ProviderOrder, error) {
	doc, err := json.Marshal(po.Doc)
	if err != nil {
		return model.ProviderOrder{}, fmt.Errorf("marshal provider order doc: %w", err)
	}
	row := q.db.QueryRow(ctx, createProviderOrder, po.ID, po.ProviderID, po.OrderID, po.UserID, doc)
	if err := row.Scan(&po.Version, &po.CreatedAt, &po.UpdatedAt); err != nil {
		return model.ProviderOrder{}, err
	}
	return po, nil
}

const getProviderOrder = `
SELECT id, provider_id, order_id, user_id, doc, version, created_at, updated_at
FROM provider_orders
WHERE provider_id = $1 AND order_id = $2
`

// GetProviderOrder loads the mirror for (provider, order); pgx.ErrNoRows
// when the provider was never assigned on that order.
func (q *Queries) GetProviderOrder(ctx context.Context, providerID, orderID uuid.UUID) (model.ProviderOrder, error) {
	return scanProviderOrder(q.db.QueryRow(ctx, getProviderOrder, providerID, orderID))
}

const listProviderOrdersByProvider = `
SELECT id, provider_id, order_id, user_id, doc, version, created_at, updated_at
FROM provider_orders
WHERE provider_id = $1
ORDER BY created_at DESC
`

// ListProviderOrdersByProvider returns a provider's fulfillment records,
// newest first.
func (q *Queries) ListProviderOrdersByProvider(ctx context.Context, providerID uuid.UUID) ([]model.ProviderOrder, error) {
	return q.listProviderOrders(ctx, listProviderOrdersByProvider, providerID)
}

const listProviderOrdersByOrder = `
SELECT id, provider_id, order_id, user_id, doc, version, created_at, updated_at
FROM provider_orders
WHERE order_id = $1
`

// ListProviderOrdersByOrder returns every provider mirror of one order.
func (q *Queries) ListProviderOrdersByOrder(ctx context.Context, orderID uuid.UUID) ([]model.ProviderOrder, error) {
	return q.listProviderOrders(ctx, listProviderOrdersByOrder, orderID)
}

func (q *Queries) listProviderOrders(ctx context.Context, sql string, arg any) ([]model.ProviderOrder, error) {
	rows, err := q.db.Query(ctx, sql, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []model.ProviderOrder
	for rows.Next() {
		po, err := scanProviderOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, po)
	}
	return orders, rows.Err()
}

// UpdateProviderOrderParams carries a full-document compare-and-set write.
type UpdateProviderOrderParams struct {
	ID      uuid.UUID
	Doc     model.ProviderOrderDoc
	Version int64
}

const updateProviderOrder = `
UPDATE provider_orders
SET doc = $2, version = version + 1, updated_at = now()
WHERE id = $1 AND version = $3
RETURNING version
`

// UpdateProviderOrder writes the mirror document back iff the version still
// matches; pgx.ErrNoRows on a lost race.
func (q *Queries) UpdateProviderOrder(ctx context.Context, arg UpdateProviderOrderParams) (int64, error) {
	doc, err := json.Marshal(arg.Doc)
	if err != nil {
		return 0, fmt.Errorf("marshal provider order doc: %w", err)
	}
	var version int64
	err = q.db.QueryRow(ctx, updateProviderOrder, arg.ID, doc, arg.Version).Scan(&version)
	return version, err
}

func scanProviderOrder(row rowScanner) (model.ProviderOrder, error) {
	var (
		po  model.ProviderOrder
		doc []byte
	)
	if err := row.Scan(&po.ID, &po.ProviderID, &po.OrderID, &po.UserID, &doc, &po.Version, &po.CreatedAt, &po.UpdatedAt); err != nil {
		return model.ProviderOrder{}, err
	}
	if err := json.Unmarshal(doc, &po.Doc); err != nil {
		return model.ProviderOrder{}, fmt.Errorf("unmarshal provider order doc: %w", err)
	}
	return po, nil
}
