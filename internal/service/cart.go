package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hopingminds/menrol-api/internal/enum"
	"github.com/hopingminds/menrol-api/internal/model"
)

// SaveCart validates and replaces the user's pending service-request cart.
func (s *FulfillmentService) SaveCart(ctx context.Context, userID uuid.UUID, doc model.ServiceRequestDoc) (model.ServiceRequest, error) {
	if err := validateCart(&doc); err != nil {
		return model.ServiceRequest{}, err
	}

	sr, err := s.reader.UpsertServiceRequest(ctx, model.ServiceRequest{
		ID:     uuid.New(),
		UserID: userID,
		Doc:    doc,
	})
	if err != nil {
		return model.ServiceRequest{}, fmt.Errorf("upsert service request: %w", err)
	}
	return sr, nil
}

// GetCart returns the user's pending cart.
func (s *FulfillmentService) GetCart(ctx context.Context, userID uuid.UUID) (model.ServiceRequest, error) {
	sr, err := s.reader.GetServiceRequestByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ServiceRequest{}, ErrCartNotFound
		}
		return model.ServiceRequest{}, fmt.Errorf("get service request: %w", err)
	}
	return sr, nil
}

func validateCart(doc *model.ServiceRequestDoc) error {
	itemCount := 0
	for i := range doc.Services {
		line := &doc.Services[i]
		for j := range line.Items {
			itemCount++
			it := &line.Items[j]
			if !isValidRequestType(it.RequestType) {
				return fmt.Errorf("services[%d].subcategory[%d]: %w", i, j, ErrInvalidRequestType)
			}
			if it.Workers <= 0 {
				return fmt.Errorf("services[%d].subcategory[%d]: %w", i, j, ErrInvalidWorkers)
			}
			if it.Amount.IsNegative() {
				return fmt.Errorf("services[%d].subcategory[%d]: %w", i, j, ErrInvalidAmount)
			}
			if !it.Scheduled.End.After(it.Scheduled.Start) {
				return fmt.Errorf("services[%d].subcategory[%d]: %w", i, j, ErrInvalidWindow)
			}
		}
	}
	if itemCount == 0 {
		return ErrCartEmpty
	}
	return nil
}

func isValidRequestType(s string) bool {
	switch s {
	case enum.RequestTypeHourly, enum.RequestTypeDaily, enum.RequestTypeContract:
		return true
	}
	return false
}
