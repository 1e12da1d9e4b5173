package model

import (
	"github.com/google/uuid"

	"github.com/hopingminds/menrol-api/internal/enum"
)

// FindItem returns a pointer into the document for the item at
// (serviceID, subcategoryID), or nil if absent.
func (d *OrderDoc) FindItem(serviceID, subcategoryID uuid.UUID) *SubcategoryItem {
	for i := range d.Services {
		if d.Services[i].ServiceID != serviceID {
			continue
		}
		for j := range d.Services[i].Items {
			if d.Services[i].Items[j].SubcategoryID == subcategoryID {
				return &d.Services[i].Items[j]
			}
		}
	}
	return nil
}

// Assignment returns a pointer to the assignment for providerID, or nil.
func (it *SubcategoryItem) Assignment(providerID uuid.UUID) *ProviderAssignment {
	for i := range it.Providers {
		if it.Providers[i].ProviderID == providerID {
			return &it.Providers[i]
		}
	}
	return nil
}

// FindItem returns a pointer into the provider document for the mirrored
// item at (serviceID, subcategoryID), or nil if absent.
func (d *ProviderOrderDoc) FindItem(serviceID, subcategoryID uuid.UUID) *ProviderSubcategoryItem {
	for i := range d.Services {
		if d.Services[i].ServiceID != serviceID {
			continue
		}
		for j := range d.Services[i].Items {
			if d.Services[i].Items[j].SubcategoryID == subcategoryID {
				return &d.Services[i].Items[j]
			}
		}
	}
	return nil
}

// Line returns a pointer to the provider service line for serviceID, or nil.
func (d *ProviderOrderDoc) Line(serviceID uuid.UUID) *ProviderServiceLine {
	for i := range d.Services {
		if d.Services[i].ServiceID == serviceID {
			return &d.Services[i]
		}
	}
	return nil
}

// IsTerminal reports whether an item status admits no further transitions.
func IsTerminal(status string) bool {
	return status == enum.ItemStatusCompleted || status == enum.ItemStatusCancelled
}
