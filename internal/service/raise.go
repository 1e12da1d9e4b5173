package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hopingminds/menrol-api/internal/enum"
	"github.com/hopingminds/menrol-api/internal/model"
)

// ItemOTPCodes carries the plaintext one-time codes for a single item.
// Returned exactly once, from RaiseOrder; only hashes are stored.
type ItemOTPCodes struct {
	ServiceID     uuid.UUID `json:"serviceId"`
	SubcategoryID uuid.UUID `json:"subcategoryId"`
	StartCode     string    `json:"startCode"`
	EndCode       string    `json:"endCode"`
}

// RaisedOrder is the result of converting a cart into a raised order.
type RaisedOrder struct {
	Order    model.Order
	OTPCodes []ItemOTPCodes
}

// RaiseOrder converts the user's pending cart into a raised order: every
// cart item becomes a pending subcategory item with a fresh OTP pair, the
// cart is deleted, and the whole conversion commits atomically. Fails with
// ErrOrderAlreadyRaised while a raised order is outstanding.
func (s *FulfillmentService) RaiseOrder(ctx context.Context, userID uuid.UUID) (*RaisedOrder, error) {
	var result *RaisedOrder

	err := s.inTx(ctx, func(store Store) error {
		cart, err := store.GetServiceRequestByUser(ctx, userID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrCartNotFound
			}
			return fmt.Errorf("get service request: %w", err)
		}

		raised, err := store.UserHasRaisedOrder(ctx, userID)
		if err != nil {
			return fmt.Errorf("check raised order: %w", err)
		}
		if raised {
			return ErrOrderAlreadyRaised
		}

		doc, codes, err := orderDocFromCart(&cart.Doc)
		if err != nil {
			return err
		}
		if len(codes) == 0 {
			return ErrCartEmpty
		}

		ord := model.Order{
			ID:     uuid.New(),
			UserID: userID,
			Doc:    doc,
		}
		ord.Doc.Payment.Total = model.OrderTotal(&ord.Doc)
		ord.Status, ord.Raised = model.DeriveOrderStatus(&ord.Doc)

		ord, err = store.CreateOrder(ctx, ord)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		if err := store.DeleteServiceRequest(ctx, userID); err != nil {
			return fmt.Errorf("delete service request: %w", err)
		}

		result = &RaisedOrder{Order: ord, OTPCodes: codes}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// orderDocFromCart copies the cart into an order document, stamping every
// item pending and attaching a generated OTP pair.
func orderDocFromCart(cart *model.ServiceRequestDoc) (model.OrderDoc, []ItemOTPCodes, error) {
	doc := model.OrderDoc{
		Location: cart.Location,
		Address:  cart.Address,
	}

	var codes []ItemOTPCodes
	for i := range cart.Services {
		src := &cart.Services[i]
		line := model.ServiceLine{ServiceID: src.ServiceID, Title: src.Title}
		for j := range src.Items {
			ci := &src.Items[j]

			startCode, startHash, err := generateOTP()
			if err != nil {
				return model.OrderDoc{}, nil, err
			}
			endCode, endHash, err := generateOTP()
			if err != nil {
				return model.OrderDoc{}, nil, err
			}

			line.Items = append(line.Items, model.SubcategoryItem{
				SubcategoryID: ci.SubcategoryID,
				Title:         ci.Title,
				RequestType:   ci.RequestType,
				Amount:        ci.Amount,
				Workers:       ci.Workers,
				Scheduled:     ci.Scheduled,
				Instructions:  ci.Instructions,
				Attachments:   ci.Attachments,
				Status:        enum.ItemStatusPending,
				OTP: model.OTPPair{
					StartHash: startHash,
					EndHash:   endHash,
				},
			})
			codes = append(codes, ItemOTPCodes{
				ServiceID:     src.ServiceID,
				SubcategoryID: ci.SubcategoryID,
				StartCode:     startCode,
				EndCode:       endCode,
			})
		}
		if len(line.Items) > 0 {
			doc.Services = append(doc.Services, line)
		}
	}
	return doc, codes, nil
}

// nowPtr returns a pointer to the current time, for timestamp fields.
func nowPtr() *time.Time {
	t := time.Now().UTC()
	return &t
}
