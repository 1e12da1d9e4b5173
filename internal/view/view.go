// Package view builds read-time projections of orders for dashboards and
// realtime pushes. Projections are immutable snapshots computed from typed
// in-memory documents; they are never persisted.
package view

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hopingminds/menrol-api/internal/enum"
	"github.com/hopingminds/menrol-api/internal/model"
)

// ItemView is one subcategory item as presented to clients. OTP hashes are
// deliberately absent.
type ItemView struct {
	SubcategoryID uuid.UUID            `json:"subcategoryId"`
	Title         string               `json:"title"`
	RequestType   string               `json:"requestType"`
	Amount        decimal.Decimal      `json:"selectedAmount"`
	Workers       int32                `json:"workersRequirment"`
	Scheduled     model.TimeWindow     `json:"scheduledTiming"`
	Instructions  string               `json:"instructions,omitempty"`
	Status        string               `json:"status"`
	WorkStarted   bool                 `json:"workStarted"`
	WorkEnded     bool                 `json:"workEnded"`
	Providers     []AssignmentView     `json:"providers,omitempty"`
}

// AssignmentView is one provider attached to an item.
type AssignmentView struct {
	ProviderID      uuid.UUID `json:"providerId"`
	Status          string    `json:"status"`
	PaymentReceived bool      `json:"paymentReceived"`
}

// ServiceView is a filtered service line: only the items matching the
// enclosing bucket survive.
type ServiceView struct {
	ServiceID uuid.UUID  `json:"serviceId"`
	Title     string     `json:"title"`
	Items     []ItemView `json:"subcategory"`
}

// OrderView is a filtered clone of one order inside a bucket.
type OrderView struct {
	OrderID    uuid.UUID       `json:"orderId"`
	Status     string          `json:"status"`
	Raised     bool            `json:"raised"`
	Total      decimal.Decimal `json:"totalAmount"`
	Address    string          `json:"address"`
	CreatedAt  time.Time       `json:"createdAt"`
	Categories []string        `json:"categories"`
	Services   []ServiceView   `json:"services"`
}

// UserOrders partitions a user's orders into the four presentation buckets.
// An inProgress item is presented under confirmed.
type UserOrders struct {
	Pending    []OrderView `json:"pending"`
	Confirmed  []OrderView `json:"confirmed"`
	Completed  []OrderView `json:"completed"`
	Cancelled  []OrderView `json:"cancelled"`
	Categories []string    `json:"categories"`
}

// bucketFor maps an item status to its presentation bucket. Execution in
// progress is shown to clients as confirmed work.
func bucketFor(status string) string {
	if status == enum.ItemStatusInProgress {
		return enum.ItemStatusConfirmed
	}
	return status
}

// ForUser partitions orders by item bucket. An order contributes a filtered
// clone to every bucket in which it has at least one matching item; lines
// left without items are dropped from that clone.
func ForUser(orders []model.Order) UserOrders {
	out := UserOrders{}
	global := map[string]bool{}

	for i := range orders {
		ord := &orders[i]
		for _, bucket := range []string{
			enum.ItemStatusPending,
			enum.ItemStatusConfirmed,
			enum.ItemStatusCompleted,
			enum.ItemStatusCancelled,
		} {
			ov, ok := filterOrder(ord, bucket)
			if !ok {
				continue
			}
			for _, c := range ov.Categories {
				global[c] = true
			}
			switch bucket {
			case enum.ItemStatusPending:
				out.Pending = append(out.Pending, ov)
			case enum.ItemStatusConfirmed:
				out.Confirmed = append(out.Confirmed, ov)
			case enum.ItemStatusCompleted:
				out.Completed = append(out.Completed, ov)
			case enum.ItemStatusCancelled:
				out.Cancelled = append(out.Cancelled, ov)
			}
		}
	}

	out.Categories = sortedKeys(global)
	return out
}

// filterOrder clones ord keeping only items whose bucket matches; reports
// false when no item matched.
func filterOrder(ord *model.Order, bucket string) (OrderView, bool) {
	ov := OrderView{
		OrderID:   ord.ID,
		Status:    ord.Status,
		Raised:    ord.Raised,
		Total:     ord.Doc.Payment.Total,
		Address:   ord.Doc.Address,
		CreatedAt: ord.CreatedAt,
	}

	titles := map[string]bool{}
	for i := range ord.Doc.Services {
		line := &ord.Doc.Services[i]
		sv := ServiceView{ServiceID: line.ServiceID, Title: line.Title}
		for j := range line.Items {
			it := &line.Items[j]
			if bucketFor(it.Status) != bucket {
				continue
			}
			sv.Items = append(sv.Items, itemView(it))
		}
		if len(sv.Items) == 0 {
			continue
		}
		titles[line.Title] = true
		ov.Services = append(ov.Services, sv)
	}

	if len(ov.Services) == 0 {
		return OrderView{}, false
	}
	ov.Categories = sortedKeys(titles)
	return ov, true
}

func itemView(it *model.SubcategoryItem) ItemView {
	iv := ItemView{
		SubcategoryID: it.SubcategoryID,
		Title:         it.Title,
		RequestType:   it.RequestType,
		Amount:        it.Amount,
		Workers:       it.Workers,
		Scheduled:     it.Scheduled,
		Instructions:  it.Instructions,
		Status:        it.Status,
		WorkStarted:   it.OTP.StartConfirmed,
		WorkEnded:     it.OTP.EndConfirmed,
	}
	for k := range it.Providers {
		p := &it.Providers[k]
		iv.Providers = append(iv.Providers, AssignmentView{
			ProviderID:      p.ProviderID,
			Status:          p.Status,
			PaymentReceived: p.PaymentReceived,
		})
	}
	return iv
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
