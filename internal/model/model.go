package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GeoPoint is the order's service location.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// TimeWindow is the scheduled execution window for one subcategory item.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// OTPPair gates the start and end of on-site work for one item. Codes are
// stored as bcrypt hashes; the plaintext is surfaced once, at raise time.
type OTPPair struct {
	StartHash      string     `json:"startHash"`
	EndHash        string     `json:"endHash"`
	StartConfirmed bool       `json:"startConfirmed"`
	EndConfirmed   bool       `json:"endConfirmed"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	EndedAt        *time.Time `json:"endedAt,omitempty"`
}

// ProviderAssignment attaches one candidate or accepted provider to a
// subcategory item. Its status mirrors, but is not always identical to,
// the parent item's status.
type ProviderAssignment struct {
	ProviderID      uuid.UUID `json:"providerId"`
	Status          string    `json:"status"`
	PaymentReceived bool      `json:"paymentReceived"`
	AssignedAt      time.Time `json:"assignedAt"`
}

// SubcategoryItem is the unit of work within an order.
type SubcategoryItem struct {
	SubcategoryID uuid.UUID            `json:"subcategoryId"`
	Title         string               `json:"title"`
	RequestType   string               `json:"requestType"`
	Amount        decimal.Decimal      `json:"selectedAmount"`
	Workers       int32                `json:"workersRequirment"`
	Scheduled     TimeWindow           `json:"scheduledTiming"`
	Instructions  string               `json:"instructions,omitempty"`
	Attachments   []string             `json:"attachments,omitempty"`
	Status        string               `json:"status"`
	Providers     []ProviderAssignment `json:"providers"`
	OTP           OTPPair              `json:"otp"`
}

// ServiceLine groups the items requested under one service category.
type ServiceLine struct {
	ServiceID uuid.UUID         `json:"serviceId"`
	Title     string            `json:"title"`
	Items     []SubcategoryItem `json:"subcategory"`
}

// PaymentSummary is the recomputed payment block of an order or a
// provider order. Totals are derived, never cached across mutations.
type PaymentSummary struct {
	Total decimal.Decimal `json:"totalAmount"`
}

// OrderDoc is the embedded document of a user's order.
type OrderDoc struct {
	Location GeoPoint       `json:"location"`
	Address  string         `json:"address"`
	Payment  PaymentSummary `json:"payment"`
	Services []ServiceLine  `json:"services"`
}

// Order is one user's raised request for services.
type Order struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Raised    bool
	Status    string
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
	Doc       OrderDoc
}

// ProviderSubcategoryItem mirrors the subset of an order's item assigned to
// one provider, with its own execution protocol state.
type ProviderSubcategoryItem struct {
	SubcategoryID   uuid.UUID       `json:"subcategoryId"`
	Title           string          `json:"title"`
	RequestType     string          `json:"requestType"`
	Amount          decimal.Decimal `json:"selectedAmount"`
	Workers         int32           `json:"workersRequirment"`
	Scheduled       TimeWindow      `json:"scheduledTiming"`
	Instructions    string          `json:"instructions,omitempty"`
	Status          string          `json:"serviceStatus"`
	WorkStarted     bool            `json:"workStarted"`
	WorkEnded       bool            `json:"workEnded"`
	StartedAt       *time.Time      `json:"startedAt,omitempty"`
	EndedAt         *time.Time      `json:"endedAt,omitempty"`
	PaymentReceived bool            `json:"paymentReceived"`
}

// ProviderServiceLine groups a provider's mirrored items per service category.
type ProviderServiceLine struct {
	ServiceID uuid.UUID                 `json:"serviceId"`
	Title     string                    `json:"title"`
	Items     []ProviderSubcategoryItem `json:"subcategory"`
}

// ProviderOrderDoc is the embedded document of a provider order.
type ProviderOrderDoc struct {
	Payment  PaymentSummary        `json:"payment"`
	Services []ProviderServiceLine `json:"services"`
}

// ProviderOrder is the provider-scoped mirror of one order, created lazily
// on the first assignment of that provider.
type ProviderOrder struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	OrderID    uuid.UUID
	UserID     uuid.UUID
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Doc        ProviderOrderDoc
}

// RequestedItem is a cart line before the order is raised: no status,
// no assignments, no OTP yet.
type RequestedItem struct {
	SubcategoryID uuid.UUID       `json:"subcategoryId"`
	Title         string          `json:"title"`
	RequestType   string          `json:"requestType"`
	Amount        decimal.Decimal `json:"selectedAmount"`
	Workers       int32           `json:"workersRequirment"`
	Scheduled     TimeWindow      `json:"scheduledTiming"`
	Instructions  string          `json:"instructions,omitempty"`
	Attachments   []string        `json:"attachments,omitempty"`
}

// RequestedService groups cart items per service category.
type RequestedService struct {
	ServiceID uuid.UUID       `json:"serviceId"`
	Title     string          `json:"title"`
	Items     []RequestedItem `json:"subcategory"`
}

// ServiceRequestDoc is the embedded document of a pending cart.
type ServiceRequestDoc struct {
	Location GeoPoint           `json:"location"`
	Address  string             `json:"address"`
	Services []RequestedService `json:"services"`
}

// ServiceRequest is a user's pending cart; deleted when the order is raised.
type ServiceRequest struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	CreatedAt time.Time
	Doc       ServiceRequestDoc
}
