package types

import (
	"time"
)

// Order is the canonical record of a submitted order. The sequence number
// is assigned by the store at insert time and is never reused; it is the
// identity and ordering key every downstream system keys on.
type Order struct {
	SequenceNumber    uint64    `gorm:"primaryKey;autoIncrement" json:"secnum"`
	UserID            int64     `json:"user_id"`
	TimestampNS       int64     `json:"timestamp_ns"`
	Price             float64   `json:"price"`
	Symbol            string    `gorm:"index" json:"symbol"`
	Quantity          int64     `json:"quantity"`
	OrderType         string    `json:"order_type"` // MARKET or LIMIT
	TraderType        string    `json:"trader_type"`
	QuantityRemaining int64     `json:"quantity_remaining"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Filled reports whether the order has been fully executed.
func (o *Order) Filled() bool {
	return o.QuantityRemaining == 0
}

// Execution records an applied fill. Immutable once written; always
// references an existing order.
type Execution struct {
	ID               uint      `gorm:"primarykey" json:"-"`
	ExecutionID      string    `gorm:"uniqueIndex" json:"execution_id"`
	SequenceNumber   uint64    `json:"secnum"`
	QuantityExecuted int64     `json:"quantity_executed"`
	CreatedAt        time.Time `json:"created_at"`
}

// Dispatch record statuses
const (
	DispatchDelivered = "DELIVERED"
	DispatchFailed    = "FAILED"
)

// Dispatch record kinds
const (
	DispatchKindOrder     = "ORDER"
	DispatchKindExecution = "EXECUTION"
)

// DispatchRecord is the persisted outcome of one delivery attempt to one
// downstream target. Failures never roll back sequencing; they are kept
// here for operational visibility.
type DispatchRecord struct {
	ID             uint      `gorm:"primarykey" json:"-"`
	SequenceNumber uint64    `json:"secnum"`
	Target         string    `json:"target"`
	Kind           string    `json:"kind"`   // ORDER or EXECUTION
	Status         string    `json:"status"` // DELIVERED or FAILED
	Error          string    `json:"error,omitempty"`
	LatencyMS      int64     `json:"latency_ms"`
	CreatedAt      time.Time `json:"created_at"`
}
