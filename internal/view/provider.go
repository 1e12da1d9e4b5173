package view

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hopingminds/menrol-api/internal/enum"
	"github.com/hopingminds/menrol-api/internal/model"
)

// ProviderItemView is one mirrored item as shown on a provider dashboard.
type ProviderItemView struct {
	SubcategoryID   uuid.UUID        `json:"subcategoryId"`
	Title           string           `json:"title"`
	RequestType     string           `json:"requestType"`
	Amount          decimal.Decimal  `json:"selectedAmount"`
	Workers         int32            `json:"workersRequirment"`
	Scheduled       model.TimeWindow `json:"scheduledTiming"`
	Instructions    string           `json:"instructions,omitempty"`
	Status          string           `json:"serviceStatus"`
	WorkStarted     bool             `json:"workStarted"`
	WorkEnded       bool             `json:"workEnded"`
	PaymentReceived bool             `json:"paymentReceived"`
}

// ProviderServiceView is a filtered provider line.
type ProviderServiceView struct {
	ServiceID uuid.UUID          `json:"serviceId"`
	Title     string             `json:"title"`
	Items     []ProviderItemView `json:"subcategory"`
}

// ProviderOrderView is a filtered clone of one provider order.
type ProviderOrderView struct {
	ProviderOrderID uuid.UUID             `json:"providerOrderId"`
	OrderID         uuid.UUID             `json:"orderId"`
	UserID          uuid.UUID             `json:"userId"`
	Total           decimal.Decimal       `json:"totalAmount"`
	CreatedAt       time.Time             `json:"createdAt"`
	Categories      []string              `json:"categories"`
	Services        []ProviderServiceView `json:"services"`
}

// ProviderOrders partitions a provider's fulfillment records into the four
// presentation buckets.
type ProviderOrders struct {
	Pending    []ProviderOrderView `json:"pending"`
	Confirmed  []ProviderOrderView `json:"confirmed"`
	Completed  []ProviderOrderView `json:"completed"`
	Cancelled  []ProviderOrderView `json:"cancelled"`
	Categories []string            `json:"categories"`
}

// ForProvider mirrors ForUser for provider orders.
func ForProvider(orders []model.ProviderOrder) ProviderOrders {
	out := ProviderOrders{}
	global := map[string]bool{}

	for i := range orders {
		po := &orders[i]
		for _, bucket := range []string{
			enum.ItemStatusPending,
			enum.ItemStatusConfirmed,
			enum.ItemStatusCompleted,
			enum.ItemStatusCancelled,
		} {
			pv, ok := filterProviderOrder(po, bucket)
			if !ok {
				continue
			}
			for _, c := range pv.Categories {
				global[c] = true
			}
			switch bucket {
			case enum.ItemStatusPending:
				out.Pending = append(out.Pending, pv)
			case enum.ItemStatusConfirmed:
				out.Confirmed = append(out.Confirmed, pv)
			case enum.ItemStatusCompleted:
				out.Completed = append(out.Completed, pv)
			case enum.ItemStatusCancelled:
				out.Cancelled = append(out.Cancelled, pv)
			}
		}
	}

	out.Categories = sortedKeys(global)
	return out
}

func filterProviderOrder(po *model.ProviderOrder, bucket string) (ProviderOrderView, bool) {
	pv := ProviderOrderView{
		ProviderOrderID: po.ID,
		OrderID:         po.OrderID,
		UserID:          po.UserID,
		Total:           po.Doc.Payment.Total,
		CreatedAt:       po.CreatedAt,
	}

	titles := map[string]bool{}
	for i := range po.Doc.Services {
		line := &po.Doc.Services[i]
		sv := ProviderServiceView{ServiceID: line.ServiceID, Title: line.Title}
		for j := range line.Items {
			it := &line.Items[j]
			if bucketFor(it.Status) != bucket {
				continue
			}
			sv.Items = append(sv.Items, ProviderItemView{
				SubcategoryID:   it.SubcategoryID,
				Title:           it.Title,
				RequestType:     it.RequestType,
				Amount:          it.Amount,
				Workers:         it.Workers,
				Scheduled:       it.Scheduled,
				Instructions:    it.Instructions,
				Status:          it.Status,
				WorkStarted:     it.WorkStarted,
				WorkEnded:       it.WorkEnded,
				PaymentReceived: it.PaymentReceived,
			})
		}
		if len(sv.Items) == 0 {
			continue
		}
		titles[line.Title] = true
		pv.Services = append(pv.Services, sv)
	}

	if len(pv.Services) == 0 {
		return ProviderOrderView{}, false
	}
	pv.Categories = sortedKeys(titles)
	return pv, true
}
