package enum

// Subcategory item state machine:
// pending -> confirmed -> inProgress -> completed, with cancelled
// reachable from pending or confirmed only.
const (
	ItemStatusPending    = "pending"
	ItemStatusConfirmed  = "confirmed"
	ItemStatusInProgress = "inProgress"
	ItemStatusCompleted  = "completed"
	ItemStatusCancelled  = "cancelled"
)

// Order aggregate status, derived from item statuses, never set directly.
const (
	OrderStatusNotStarted     = "notStarted"
	OrderStatusActive         = "active"
	OrderStatusFinalized      = "finalized"
	OrderStatusUnderProgress  = "underProgress"
	OrderStatusFullyCancelled = "fullyCancelled"
	OrderStatusCompleted      = "completed"
)

// Request types, the pricing basis of a subcategory item.
const (
	RequestTypeHourly   = "hourly"
	RequestTypeDaily    = "daily"
	RequestTypeContract = "contract"
)

// Actor roles carried in JWT claims.
const (
	RoleUser     = "USER"
	RoleProvider = "PROVIDER"
	RoleAdmin    = "ADMIN"
)
