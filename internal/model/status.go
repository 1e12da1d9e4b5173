package model

import "github.com/hopingminds/menrol-api/internal/enum"

// DeriveOrderStatus computes the order's aggregate status from the multiset
// of its subcategory item statuses, first matching rule wins:
//
//  1. all pending                              → notStarted
//  2. all confirmed                            → finalized
//  3. all cancelled                            → fullyCancelled
//  4. all completed or cancelled               → completed
//  5. some inProgress, none pending            → underProgress
//  6. otherwise                                → active
//
// The second return value is the "order raised" flag: true iff at least one
// item is still pending. The function is pure; callers must re-run it after
// every item-status mutation rather than caching the result.
func DeriveOrderStatus(doc *OrderDoc) (string, bool) {
	var total, pending, confirmed, inProgress, completed, cancelled int
	for i := range doc.Services {
		for j := range doc.Services[i].Items {
			total++
			switch doc.Services[i].Items[j].Status {
			case enum.ItemStatusPending:
				pending++
			case enum.ItemStatusConfirmed:
				confirmed++
			case enum.ItemStatusInProgress:
				inProgress++
			case enum.ItemStatusCompleted:
				completed++
			case enum.ItemStatusCancelled:
				cancelled++
			}
		}
	}

	raised := pending > 0

	switch {
	case pending == total:
		return enum.OrderStatusNotStarted, raised
	case confirmed == total:
		return enum.OrderStatusFinalized, raised
	case cancelled == total:
		return enum.OrderStatusFullyCancelled, raised
	case completed+cancelled == total:
		return enum.OrderStatusCompleted, raised
	case inProgress > 0 && pending == 0:
		return enum.OrderStatusUnderProgress, raised
	default:
		return enum.OrderStatusActive, raised
	}
}
