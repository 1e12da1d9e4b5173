package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hopingminds/menrol-api/internal/enum"
	"github.com/hopingminds/menrol-api/internal/model"
	"github.com/hopingminds/menrol-api/internal/notify"
)

// AssignProvider attaches a candidate provider to a pending item and mirrors
// the item into that provider's order, creating the mirror lazily on first
// assignment. Duplicate assignment of the same provider is a conflict.
func (s *FulfillmentService) AssignProvider(ctx context.Context, ref ItemRef, providerID uuid.UUID, actor Actor) (model.Order, error) {
	var (
		result model.Order
		events []notify.Event
	)

	err := s.syncTx(ctx, func(store Store) error {
		events = events[:0]

		ord, err := loadOrder(ctx, store, ref.OrderID)
		if err != nil {
			return err
		}
		if err := requireOwnerOrAdmin(&ord, actor); err != nil {
			return err
		}
		it, err := findItem(&ord, ref)
		if err != nil {
			return err
		}
		if it.Status != enum.ItemStatusPending {
			return fmt.Errorf("assign on %s item: %w", it.Status, ErrInvalidTransition)
		}
		if it.Assignment(providerID) != nil {
			return ErrAlreadyAssigned
		}

		it.Providers = append(it.Providers, model.ProviderAssignment{
			ProviderID: providerID,
			Status:     enum.ItemStatusPending,
			AssignedAt: *nowPtr(),
		})

		if err := mirrorAssignment(ctx, store, &ord, it, ref, providerID); err != nil {
			return err
		}
		if err := saveOrder(ctx, store, &ord); err != nil {
			return err
		}

		result = ord
		events = append(events,
			notify.Event{Name: notify.EventAssigned, Role: enum.RoleUser, SubjectID: ord.UserID},
			notify.Event{Name: notify.EventAssigned, Role: enum.RoleProvider, SubjectID: providerID},
		)
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}

	s.publish(events)
	return result, nil
}

// mirrorAssignment copies the assigned item into the provider's order,
// creating the order or its service line on demand.
func mirrorAssignment(ctx context.Context, store Store, ord *model.Order, it *model.SubcategoryItem, ref ItemRef, providerID uuid.UUID) error {
	po, err := store.GetProviderOrder(ctx, providerID, ord.ID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("get provider order: %w", err)
		}
		po = model.ProviderOrder{
			ID:         uuid.New(),
			ProviderID: providerID,
			OrderID:    ord.ID,
			UserID:     ord.UserID,
		}
		addMirroredItem(&po.Doc, it, ref.ServiceID, lineTitle(ord, ref.ServiceID))
		po.Doc.Payment.Total = model.ProviderOrderTotal(&po.Doc)
		if _, err := store.CreateProviderOrder(ctx, po); err != nil {
			return fmt.Errorf("create provider order: %w", err)
		}
		return nil
	}

	if po.Doc.FindItem(ref.ServiceID, ref.SubcategoryID) != nil {
		return ErrAlreadyAssigned
	}
	addMirroredItem(&po.Doc, it, ref.ServiceID, lineTitle(ord, ref.ServiceID))
	return saveProviderOrder(ctx, store, &po)
}

func addMirroredItem(doc *model.ProviderOrderDoc, it *model.SubcategoryItem, serviceID uuid.UUID, title string) {
	line := doc.Line(serviceID)
	if line == nil {
		doc.Services = append(doc.Services, model.ProviderServiceLine{ServiceID: serviceID, Title: title})
		line = &doc.Services[len(doc.Services)-1]
	}
	line.Items = append(line.Items, model.ProviderSubcategoryItem{
		SubcategoryID: it.SubcategoryID,
		Title:         it.Title,
		RequestType:   it.RequestType,
		Amount:        it.Amount,
		Workers:       it.Workers,
		Scheduled:     it.Scheduled,
		Instructions:  it.Instructions,
		Status:        enum.ItemStatusPending,
	})
}

func lineTitle(ord *model.Order, serviceID uuid.UUID) string {
	for i := range ord.Doc.Services {
		if ord.Doc.Services[i].ServiceID == serviceID {
			return ord.Doc.Services[i].Title
		}
	}
	return ""
}

// AcceptAssignment confirms the calling provider for a pending item. The
// first accepted provider wins: the item, the winning assignment, and the
// provider mirror all move to confirmed in one unit.
func (s *FulfillmentService) AcceptAssignment(ctx context.Context, ref ItemRef, providerID uuid.UUID) (model.Order, error) {
	var (
		result model.Order
		events []notify.Event
	)

	err := s.syncTx(ctx, func(store Store) error {
		events = events[:0]

		ord, err := loadOrder(ctx, store, ref.OrderID)
		if err != nil {
			return err
		}
		it, err := findItem(&ord, ref)
		if err != nil {
			return err
		}
		asg := it.Assignment(providerID)
		if asg == nil {
			return ErrNotAssignedProvider
		}
		if asg.Status != enum.ItemStatusPending {
			return fmt.Errorf("accept on %s assignment: %w", asg.Status, ErrInvalidTransition)
		}
		if it.Status != enum.ItemStatusPending {
			return fmt.Errorf("accept on %s item: %w", it.Status, ErrInvalidTransition)
		}

		it.Status = enum.ItemStatusConfirmed
		asg.Status = enum.ItemStatusConfirmed

		if err := syncMirrorItem(ctx, store, providerID, ref, func(mi *model.ProviderSubcategoryItem) {
			mi.Status = enum.ItemStatusConfirmed
		}); err != nil {
			return err
		}
		if err := saveOrder(ctx, store, &ord); err != nil {
			return err
		}

		result = ord
		events = append(events,
			notify.Event{Name: notify.EventAccepted, Role: enum.RoleUser, SubjectID: ord.UserID},
			notify.Event{Name: notify.EventAccepted, Role: enum.RoleProvider, SubjectID: providerID},
		)
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}

	s.publish(events)
	return result, nil
}

// syncMirrorItem applies mutate to the mirrored item in one provider order
// and writes the mirror back. A missing mirror row or item means the two
// stores disagree and the unit must fail.
func syncMirrorItem(ctx context.Context, store Store, providerID uuid.UUID, ref ItemRef, mutate func(*model.ProviderSubcategoryItem)) error {
	po, err := store.GetProviderOrder(ctx, providerID, ref.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrMirrorNotFound
		}
		return fmt.Errorf("get provider order: %w", err)
	}
	mi := po.Doc.FindItem(ref.ServiceID, ref.SubcategoryID)
	if mi == nil {
		return ErrMirrorNotFound
	}
	mutate(mi)
	return saveProviderOrder(ctx, store, &po)
}

// CancelItem cancels a pending or confirmed item together with every
// assignment on it and every provider mirror of it.
func (s *FulfillmentService) CancelItem(ctx context.Context, ref ItemRef, actor Actor) (model.Order, error) {
	var (
		result model.Order
		events []notify.Event
	)

	err := s.syncTx(ctx, func(store Store) error {
		events = events[:0]

		ord, err := loadOrder(ctx, store, ref.OrderID)
		if err != nil {
			return err
		}
		if err := requireOwnerOrAdmin(&ord, actor); err != nil {
			return err
		}
		it, err := findItem(&ord, ref)
		if err != nil {
			return err
		}
		if it.Status != enum.ItemStatusPending && it.Status != enum.ItemStatusConfirmed {
			return fmt.Errorf("cancel on %s item: %w", it.Status, ErrInvalidTransition)
		}

		it.Status = enum.ItemStatusCancelled
		for i := range it.Providers {
			it.Providers[i].Status = enum.ItemStatusCancelled
		}

		mirrors, err := store.ListProviderOrdersByOrder(ctx, ref.OrderID)
		if err != nil {
			return fmt.Errorf("list provider orders: %w", err)
		}
		for i := range mirrors {
			po := &mirrors[i]
			mi := po.Doc.FindItem(ref.ServiceID, ref.SubcategoryID)
			if mi == nil {
				continue
			}
			mi.Status = enum.ItemStatusCancelled
			if err := saveProviderOrder(ctx, store, po); err != nil {
				return err
			}
			events = append(events, notify.Event{Name: notify.EventCancelled, Role: enum.RoleProvider, SubjectID: po.ProviderID})
		}

		if err := saveOrder(ctx, store, &ord); err != nil {
			return err
		}

		result = ord
		events = append(events, notify.Event{Name: notify.EventCancelled, Role: enum.RoleUser, SubjectID: ord.UserID})
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}

	s.publish(events)
	return result, nil
}

// CancelAssignment withdraws a single provider from an item without
// touching the item itself or the other assignments.
func (s *FulfillmentService) CancelAssignment(ctx context.Context, ref ItemRef, providerID uuid.UUID, actor Actor) (model.Order, error) {
	var (
		result model.Order
		events []notify.Event
	)

	err := s.syncTx(ctx, func(store Store) error {
		events = events[:0]

		ord, err := loadOrder(ctx, store, ref.OrderID)
		if err != nil {
			return err
		}
		if err := requireOwnerOrAdmin(&ord, actor); err != nil {
			return err
		}
		it, err := findItem(&ord, ref)
		if err != nil {
			return err
		}
		asg := it.Assignment(providerID)
		if asg == nil {
			return ErrAssignmentNotFound
		}
		if model.IsTerminal(asg.Status) {
			return fmt.Errorf("cancel assignment on %s assignment: %w", asg.Status, ErrInvalidTransition)
		}
		if it.Status == enum.ItemStatusInProgress {
			return fmt.Errorf("cancel assignment while work in progress: %w", ErrInvalidTransition)
		}

		asg.Status = enum.ItemStatusCancelled

		if err := syncMirrorItem(ctx, store, providerID, ref, func(mi *model.ProviderSubcategoryItem) {
			mi.Status = enum.ItemStatusCancelled
		}); err != nil {
			return err
		}
		if err := saveOrder(ctx, store, &ord); err != nil {
			return err
		}

		result = ord
		events = append(events,
			notify.Event{Name: notify.EventCancelled, Role: enum.RoleUser, SubjectID: ord.UserID},
			notify.Event{Name: notify.EventCancelled, Role: enum.RoleProvider, SubjectID: providerID},
		)
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}

	s.publish(events)
	return result, nil
}

// RescheduleItem moves the scheduled window of a non-terminal item and
// re-syncs every provider mirror of it.
func (s *FulfillmentService) RescheduleItem(ctx context.Context, ref ItemRef, window model.TimeWindow, actor Actor) (model.Order, error) {
	if !window.End.After(window.Start) {
		return model.Order{}, ErrInvalidWindow
	}

	var (
		result model.Order
		events []notify.Event
	)

	err := s.syncTx(ctx, func(store Store) error {
		events = events[:0]

		ord, err := loadOrder(ctx, store, ref.OrderID)
		if err != nil {
			return err
		}
		if err := requireOwnerOrAdmin(&ord, actor); err != nil {
			return err
		}
		it, err := findItem(&ord, ref)
		if err != nil {
			return err
		}
		if model.IsTerminal(it.Status) {
			return fmt.Errorf("reschedule on %s item: %w", it.Status, ErrInvalidTransition)
		}

		it.Scheduled = window

		mirrors, err := store.ListProviderOrdersByOrder(ctx, ref.OrderID)
		if err != nil {
			return fmt.Errorf("list provider orders: %w", err)
		}
		for i := range mirrors {
			po := &mirrors[i]
			mi := po.Doc.FindItem(ref.ServiceID, ref.SubcategoryID)
			if mi == nil {
				continue
			}
			mi.Scheduled = window
			if err := saveProviderOrder(ctx, store, po); err != nil {
				return err
			}
			events = append(events, notify.Event{Name: notify.EventRescheduled, Role: enum.RoleProvider, SubjectID: po.ProviderID})
		}

		if err := saveOrder(ctx, store, &ord); err != nil {
			return err
		}

		result = ord
		events = append(events, notify.Event{Name: notify.EventRescheduled, Role: enum.RoleUser, SubjectID: ord.UserID})
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}

	s.publish(events)
	return result, nil
}

// ConfirmStartOTP verifies the start code presented by the confirmed
// provider and moves the item into execution.
func (s *FulfillmentService) ConfirmStartOTP(ctx context.Context, ref ItemRef, providerID uuid.UUID, code string) (model.Order, error) {
	if code == "" {
		return model.Order{}, ErrMissingOTPCode
	}

	var (
		result model.Order
		events []notify.Event
	)

	err := s.syncTx(ctx, func(store Store) error {
		events = events[:0]

		ord, err := loadOrder(ctx, store, ref.OrderID)
		if err != nil {
			return err
		}
		it, err := findItem(&ord, ref)
		if err != nil {
			return err
		}
		asg := it.Assignment(providerID)
		if asg == nil {
			return ErrNotAssignedProvider
		}
		if it.Status != enum.ItemStatusConfirmed || asg.Status != enum.ItemStatusConfirmed {
			return fmt.Errorf("start on %s item: %w", it.Status, ErrInvalidTransition)
		}
		if !verifyOTP(it.OTP.StartHash, code) {
			return ErrOTPMismatch
		}

		now := nowPtr()
		it.Status = enum.ItemStatusInProgress
		asg.Status = enum.ItemStatusInProgress
		it.OTP.StartConfirmed = true
		it.OTP.StartedAt = now

		if err := syncMirrorItem(ctx, store, providerID, ref, func(mi *model.ProviderSubcategoryItem) {
			mi.Status = enum.ItemStatusInProgress
			mi.WorkStarted = true
			mi.StartedAt = now
		}); err != nil {
			return err
		}
		if err := saveOrder(ctx, store, &ord); err != nil {
			return err
		}

		result = ord
		events = append(events,
			notify.Event{Name: notify.EventStarted, Role: enum.RoleUser, SubjectID: ord.UserID},
			notify.Event{Name: notify.EventStarted, Role: enum.RoleProvider, SubjectID: providerID},
		)
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}

	s.publish(events)
	return result, nil
}

// ConfirmEndOTP verifies the end code and completes the item.
func (s *FulfillmentService) ConfirmEndOTP(ctx context.Context, ref ItemRef, providerID uuid.UUID, code string) (model.Order, error) {
	if code == "" {
		return model.Order{}, ErrMissingOTPCode
	}

	var (
		result model.Order
		events []notify.Event
	)

	err := s.syncTx(ctx, func(store Store) error {
		events = events[:0]

		ord, err := loadOrder(ctx, store, ref.OrderID)
		if err != nil {
			return err
		}
		it, err := findItem(&ord, ref)
		if err != nil {
			return err
		}
		asg := it.Assignment(providerID)
		if asg == nil {
			return ErrNotAssignedProvider
		}
		if it.Status != enum.ItemStatusInProgress || asg.Status != enum.ItemStatusInProgress {
			return fmt.Errorf("end on %s item: %w", it.Status, ErrInvalidTransition)
		}
		if !verifyOTP(it.OTP.EndHash, code) {
			return ErrOTPMismatch
		}

		now := nowPtr()
		it.Status = enum.ItemStatusCompleted
		asg.Status = enum.ItemStatusCompleted
		it.OTP.EndConfirmed = true
		it.OTP.EndedAt = now

		if err := syncMirrorItem(ctx, store, providerID, ref, func(mi *model.ProviderSubcategoryItem) {
			mi.Status = enum.ItemStatusCompleted
			mi.WorkEnded = true
			mi.EndedAt = now
		}); err != nil {
			return err
		}
		if err := saveOrder(ctx, store, &ord); err != nil {
			return err
		}

		result = ord
		events = append(events,
			notify.Event{Name: notify.EventCompleted, Role: enum.RoleUser, SubjectID: ord.UserID},
			notify.Event{Name: notify.EventCompleted, Role: enum.RoleProvider, SubjectID: providerID},
		)
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}

	s.publish(events)
	return result, nil
}

// ConfirmPayment records that a provider has been paid for one item, on
// both the assignment and its mirror.
func (s *FulfillmentService) ConfirmPayment(ctx context.Context, ref ItemRef, providerID uuid.UUID, actor Actor) (model.Order, error) {
	var (
		result model.Order
		events []notify.Event
	)

	err := s.syncTx(ctx, func(store Store) error {
		events = events[:0]

		ord, err := loadOrder(ctx, store, ref.OrderID)
		if err != nil {
			return err
		}
		if err := requireOwnerOrAdmin(&ord, actor); err != nil {
			return err
		}
		it, err := findItem(&ord, ref)
		if err != nil {
			return err
		}
		asg := it.Assignment(providerID)
		if asg == nil {
			return ErrAssignmentNotFound
		}
		if asg.Status != enum.ItemStatusCompleted {
			return fmt.Errorf("payment on %s assignment: %w", asg.Status, ErrInvalidTransition)
		}

		asg.PaymentReceived = true

		if err := syncMirrorItem(ctx, store, providerID, ref, func(mi *model.ProviderSubcategoryItem) {
			mi.PaymentReceived = true
		}); err != nil {
			return err
		}
		if err := saveOrder(ctx, store, &ord); err != nil {
			return err
		}

		result = ord
		events = append(events,
			notify.Event{Name: notify.EventPayment, Role: enum.RoleUser, SubjectID: ord.UserID},
			notify.Event{Name: notify.EventPayment, Role: enum.RoleProvider, SubjectID: providerID},
		)
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}

	s.publish(events)
	return result, nil
}
