package model

import (
	"math/rand"
	"testing"

	"github.com/hopingminds/menrol-api/internal/enum"
)

// docWithStatuses builds an order doc whose items carry the given statuses,
// spread across two service lines to make sure derivation ignores grouping.
func docWithStatuses(statuses ...string) *OrderDoc {
	doc := &OrderDoc{Services: []ServiceLine{{}, {}}}
	for i, s := range statuses {
		line := &doc.Services[i%2]
		line.Items = append(line.Items, SubcategoryItem{Status: s})
	}
	return doc
}

func TestDeriveOrderStatus(t *testing.T) {
	testCases := []struct {
		name       string
		statuses   []string
		wantStatus string
		wantRaised bool
	}{
		{
			name:       "all pending",
			statuses:   []string{enum.ItemStatusPending, enum.ItemStatusPending},
			wantStatus: enum.OrderStatusNotStarted,
			wantRaised: true,
		},
		{
			name:       "all confirmed",
			statuses:   []string{enum.ItemStatusConfirmed, enum.ItemStatusConfirmed},
			wantStatus: enum.OrderStatusFinalized,
			wantRaised: false,
		},
		{
			name:       "all cancelled",
			statuses:   []string{enum.ItemStatusCancelled, enum.ItemStatusCancelled, enum.ItemStatusCancelled},
			wantStatus: enum.OrderStatusFullyCancelled,
			wantRaised: false,
		},
		{
			name:       "completed and cancelled mix",
			statuses:   []string{enum.ItemStatusCompleted, enum.ItemStatusCancelled},
			wantStatus: enum.OrderStatusCompleted,
			wantRaised: false,
		},
		{
			name:       "all completed",
			statuses:   []string{enum.ItemStatusCompleted, enum.ItemStatusCompleted},
			wantStatus: enum.OrderStatusCompleted,
			wantRaised: false,
		},
		{
			name:       "in progress with confirmed",
			statuses:   []string{enum.ItemStatusConfirmed, enum.ItemStatusInProgress},
			wantStatus: enum.OrderStatusUnderProgress,
			wantRaised: false,
		},
		{
			name:       "in progress with completed and cancelled",
			statuses:   []string{enum.ItemStatusInProgress, enum.ItemStatusCompleted, enum.ItemStatusCancelled},
			wantStatus: enum.OrderStatusUnderProgress,
			wantRaised: false,
		},
		{
			name:       "pending and confirmed mix",
			statuses:   []string{enum.ItemStatusPending, enum.ItemStatusConfirmed},
			wantStatus: enum.OrderStatusActive,
			wantRaised: true,
		},
		{
			name:       "in progress with a pending item still falls back to active",
			statuses:   []string{enum.ItemStatusPending, enum.ItemStatusInProgress},
			wantStatus: enum.OrderStatusActive,
			wantRaised: true,
		},
		{
			name:       "pending and cancelled mix",
			statuses:   []string{enum.ItemStatusPending, enum.ItemStatusCancelled},
			wantStatus: enum.OrderStatusActive,
			wantRaised: true,
		},
		{
			name:       "single completed",
			statuses:   []string{enum.ItemStatusCompleted},
			wantStatus: enum.OrderStatusCompleted,
			wantRaised: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			status, raised := DeriveOrderStatus(docWithStatuses(tc.statuses...))
			if status != tc.wantStatus {
				t.Errorf("status: got %s, want %s", status, tc.wantStatus)
			}
			if raised != tc.wantRaised {
				t.Errorf("raised: got %v, want %v", raised, tc.wantRaised)
			}
		})
	}
}

// The aggregate status must be a pure function of the multiset of item
// statuses: any permutation of the same statuses derives the same result.
func TestDeriveOrderStatusPermutationInvariant(t *testing.T) {
	statuses := []string{
		enum.ItemStatusPending,
		enum.ItemStatusConfirmed,
		enum.ItemStatusInProgress,
		enum.ItemStatusCompleted,
		enum.ItemStatusCancelled,
		enum.ItemStatusConfirmed,
	}

	wantStatus, wantRaised := DeriveOrderStatus(docWithStatuses(statuses...))

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		shuffled := append([]string(nil), statuses...)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		status, raised := DeriveOrderStatus(docWithStatuses(shuffled...))
		if status != wantStatus || raised != wantRaised {
			t.Fatalf("permutation %d: got (%s, %v), want (%s, %v)", i, status, raised, wantStatus, wantRaised)
		}
	}
}
