package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hopingminds/menrol-api/internal/database"
	"github.com/hopingminds/menrol-api/internal/enum"
	"github.com/hopingminds/menrol-api/internal/model"
	"github.com/hopingminds/menrol-api/internal/notify"
	"github.com/hopingminds/menrol-api/internal/view"
)

// maxSyncRetries bounds how often a whole synchronization unit is re-run
// after losing a compare-and-set race before ErrPartialSync is surfaced.
const maxSyncRetries = 3

// errVersionConflict marks a lost compare-and-set inside a transaction;
// the unit is rolled back and retried from a fresh read.
var errVersionConflict = errors.New("optimistic version conflict")

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store defines the DB methods the fulfillment service needs.
// Satisfied by *database.Queries (pool- or tx-backed).
type Store interface {
	GetServiceRequestByUser(ctx context.Context, userID uuid.UUID) (model.ServiceRequest, error)
	UpsertServiceRequest(ctx context.Context, sr model.ServiceRequest) (model.ServiceRequest, error)
	DeleteServiceRequest(ctx context.Context, userID uuid.UUID) error

	CreateOrder(ctx context.Context, ord model.Order) (model.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (model.Order, error)
	UserHasRaisedOrder(ctx context.Context, userID uuid.UUID) (bool, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error)
	UpdateOrder(ctx context.Context, arg database.UpdateOrderParams) (int64, error)

	CreateProviderOrder(ctx context.Context, po model.ProviderOrder) (model.ProviderOrder, error)
	GetProviderOrder(ctx context.Context, providerID, orderID uuid.UUID) (model.ProviderOrder, error)
	ListProviderOrdersByProvider(ctx context.Context, providerID uuid.UUID) ([]model.ProviderOrder, error)
	ListProviderOrdersByOrder(ctx context.Context, orderID uuid.UUID) ([]model.ProviderOrder, error)
	UpdateProviderOrder(ctx context.Context, arg database.UpdateProviderOrderParams) (int64, error)
}

// NewStore creates a Store from a DBTX (pool or tx). This lets the service
// create store instances bound to its transactions.
type NewStore func(db database.DBTX) Store

// Publisher receives recompute signals for live subscribers.
// Satisfied by *notify.Broker.
type Publisher interface {
	Publish(ev notify.Event)
}

// Actor is the verified (role, identifier) pair of the calling principal,
// supplied by the auth middleware.
type Actor struct {
	ID   uuid.UUID
	Role string
}

// ItemRef addresses one subcategory item inside one order.
type ItemRef struct {
	OrderID       uuid.UUID
	ServiceID     uuid.UUID
	SubcategoryID uuid.UUID
}

// FulfillmentService owns the service-order workflow: raising orders,
// provider assignment and acceptance, the OTP-gated execution protocol,
// cancellation and rescheduling. Every transition updates the user's order
// and all affected provider mirrors inside one transaction.
type FulfillmentService struct {
	pool     TxBeginner
	reader   Store
	newStore NewStore
	events   Publisher
}

// NewFulfillmentService wires the service. reader serves non-transactional
// reads; newStore binds stores to transactions begun on pool.
func NewFulfillmentService(pool TxBeginner, reader Store, newStore NewStore, events Publisher) *FulfillmentService {
	return &FulfillmentService{pool: pool, reader: reader, newStore: newStore, events: events}
}

// inTx runs fn inside one transaction, committing only on success.
func (s *FulfillmentService) inTx(ctx context.Context, fn func(store Store) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(s.newStore(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// syncTx is the synchronization unit of the dual-store workflow: fn is
// re-run from a fresh read whenever one of its compare-and-set writes loses
// a race. Exhausting the budget surfaces ErrPartialSync so callers never
// report a half-applied transition as success.
func (s *FulfillmentService) syncTx(ctx context.Context, fn func(store Store) error) error {
	var lastErr error
	for attempt := 0; attempt < maxSyncRetries; attempt++ {
		err := s.inTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errVersionConflict) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %v", ErrPartialSync, lastErr)
}

// saveOrder recomputes the derived order fields (payment total, aggregate
// status, raised flag) and writes the document back under compare-and-set.
func saveOrder(ctx context.Context, store Store, ord *model.Order) error {
	ord.Doc.Payment.Total = model.OrderTotal(&ord.Doc)
	ord.Status, ord.Raised = model.DeriveOrderStatus(&ord.Doc)

	version, err := store.UpdateOrder(ctx, database.UpdateOrderParams{
		ID:      ord.ID,
		Raised:  ord.Raised,
		Status:  ord.Status,
		Doc:     ord.Doc,
		Version: ord.Version,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errVersionConflict
		}
		return fmt.Errorf("update order: %w", err)
	}
	ord.Version = version
	return nil
}

// saveProviderOrder recomputes the provider payment total and writes the
// mirror document back under compare-and-set.
func saveProviderOrder(ctx context.Context, store Store, po *model.ProviderOrder) error {
	po.Doc.Payment.Total = model.ProviderOrderTotal(&po.Doc)

	version, err := store.UpdateProviderOrder(ctx, database.UpdateProviderOrderParams{
		ID:      po.ID,
		Doc:     po.Doc,
		Version: po.Version,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errVersionConflict
		}
		return fmt.Errorf("update provider order: %w", err)
	}
	po.Version = version
	return nil
}

// loadOrder maps a missing row to ErrOrderNotFound.
func loadOrder(ctx context.Context, store Store, orderID uuid.UUID) (model.Order, error) {
	ord, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Order{}, ErrOrderNotFound
		}
		return model.Order{}, fmt.Errorf("get order: %w", err)
	}
	return ord, nil
}

// findItem locates the addressed item or fails with ErrItemNotFound.
func findItem(ord *model.Order, ref ItemRef) (*model.SubcategoryItem, error) {
	it := ord.Doc.FindItem(ref.ServiceID, ref.SubcategoryID)
	if it == nil {
		return nil, ErrItemNotFound
	}
	return it, nil
}

// requireOwnerOrAdmin authorizes user-scoped mutations.
func requireOwnerOrAdmin(ord *model.Order, actor Actor) error {
	if actor.Role == enum.RoleAdmin {
		return nil
	}
	if ord.UserID != actor.ID {
		return ErrNotOrderOwner
	}
	return nil
}

// publish sends events after the synchronization unit has committed.
func (s *FulfillmentService) publish(events []notify.Event) {
	if s.events == nil {
		return
	}
	for _, ev := range events {
		s.events.Publish(ev)
	}
}

// GetOrder returns one order to its owner or an admin.
func (s *FulfillmentService) GetOrder(ctx context.Context, orderID uuid.UUID, actor Actor) (model.Order, error) {
	ord, err := loadOrder(ctx, s.reader, orderID)
	if err != nil {
		return model.Order{}, err
	}
	if err := requireOwnerOrAdmin(&ord, actor); err != nil {
		return model.Order{}, err
	}
	return ord, nil
}

// UserOrderViews rebuilds the categorized dashboard buckets for one user
// from current durable state.
func (s *FulfillmentService) UserOrderViews(ctx context.Context, userID uuid.UUID) (view.UserOrders, error) {
	orders, err := s.reader.ListOrdersByUser(ctx, userID)
	if err != nil {
		return view.UserOrders{}, fmt.Errorf("list orders: %w", err)
	}
	return view.ForUser(orders), nil
}

// ProviderOrderViews rebuilds the categorized buckets for one provider.
func (s *FulfillmentService) ProviderOrderViews(ctx context.Context, providerID uuid.UUID) (view.ProviderOrders, error) {
	orders, err := s.reader.ListProviderOrdersByProvider(ctx, providerID)
	if err != nil {
		return view.ProviderOrders{}, fmt.Errorf("list provider orders: %w", err)
	}
	return view.ForProvider(orders), nil
}
