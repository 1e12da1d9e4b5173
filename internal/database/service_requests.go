package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/hopingminds/menrol-api/internal/model"
)

const upsertServiceRequest = `
INSERT INTO service_requests (id, user_id, doc)
VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET doc = EXCLUDED.doc, created_at = now()
RETURNING id, created_at
`

// UpsertServiceRequest replaces the user's pending cart; one cart per user.
func (q *Queries) UpsertServiceRequest(ctx context.Context, sr model.ServiceRequest) (model.ServiceRequest, error) {
	doc, err := json.Marshal(sr.Doc)
	if err != nil {
		return model.ServiceRequest{}, fmt.Errorf("marshal service request doc: %w", err)
	}
	row := q.db.QueryRow(ctx, upsertServiceRequest, sr.ID, sr.UserID, doc)
	if err := row.Scan(&sr.ID, &sr.CreatedAt); err != nil {
		return model.ServiceRequest{}, err
	}
	return sr, nil
}

const getServiceRequestByUser = `
SELECT id, user_id, doc, created_at
FROM service_requests
WHERE user_id = $1
`

// GetServiceRequestByUser loads the pending cart; pgx.ErrNoRows when absent.
func (q *Queries) GetServiceRequestByUser(ctx context.Context, userID uuid.UUID) (model.ServiceRequest, error) {
	var (
		sr  model.ServiceRequest
		doc []byte
	)
	row := q.db.QueryRow(ctx, getServiceRequestByUser, userID)
	if err := row.Scan(&sr.ID, &sr.UserID, &doc, &sr.CreatedAt); err != nil {
		return model.ServiceRequest{}, err
	}
	if err := json.Unmarshal(doc, &sr.Doc); err != nil {
		return model.ServiceRequest{}, fmt.Errorf("unmarshal service request doc: %w", err)
	}
	return sr, nil
}

const deleteServiceRequest = `
DELETE FROM service_requests WHERE user_id = $1
`

// DeleteServiceRequest drops the cart, typically right after the order is
// raised from it.
func (q *Queries) DeleteServiceRequest(ctx context.Context, userID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteServiceRequest, userID)
	return err
}
