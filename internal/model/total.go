package model

import (
	"github.com/shopspring/decimal"

	"github.com/hopingminds/menrol-api/internal/enum"
)

// OrderTotal derives the order's payable amount:
// Σ(selectedAmount × workersRequirment) over all non-cancelled items.
func OrderTotal(doc *OrderDoc) decimal.Decimal {
	total := decimal.Zero
	for i := range doc.Services {
		for j := range doc.Services[i].Items {
			it := &doc.Services[i].Items[j]
			if it.Status == enum.ItemStatusCancelled {
				continue
			}
			total = total.Add(it.Amount.Mul(decimal.NewFromInt32(it.Workers)))
		}
	}
	return total
}

// ProviderOrderTotal derives a provider order's payable amount over its own
// mirrored, non-cancelled items.
func ProviderOrderTotal(doc *ProviderOrderDoc) decimal.Decimal {
	total := decimal.Zero
	for i := range doc.Services {
		for j := range doc.Services[i].Items {
			it := &doc.Services[i].Items[j]
			if it.Status == enum.ItemStatusCancelled {
				continue
			}
			total = total.Add(it.Amount.Mul(decimal.NewFromInt32(it.Workers)))
		}
	}
	return total
}

// CartTotal derives the prospective amount of a pending cart.
func CartTotal(doc *ServiceRequestDoc) decimal.Decimal {
	total := decimal.Zero
	for i := range doc.Services {
		for j := range doc.Services[i].Items {
			it := &doc.Services[i].Items[j]
			total = total.Add(it.Amount.Mul(decimal.NewFromInt32(it.Workers)))
		}
	}
	return total
}
