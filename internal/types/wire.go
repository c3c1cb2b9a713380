package types

// NewOrderRequest is the submission body accepted on POST /order.
type NewOrderRequest struct {
	UserID      int64   `json:"user_id"`
	TimestampNS int64   `json:"timestamp_ns"`
	Price       float64 `json:"price" binding:"required"`
	Symbol      string  `json:"symbol" binding:"required"`
	Quantity    int64   `json:"quantity" binding:"required,gt=0"`
	OrderType   string  `json:"order_type" binding:"required"`
	TraderType  string  `json:"trader_type"`
}

// FillReport is an execution report from the matching engine. The
// execution id is optional; when the engine supplies one, reapplying the
// same report is a no-op instead of a second decrement.
type FillReport struct {
	SequenceNumber uint64 `json:"secnum" binding:"required"`
	Quantity       int64  `json:"quantity" binding:"required,gt=0"`
	ExecutionID    string `json:"execution_id"`
}

// SequencedOrder is the body delivered to downstream targets for a newly
// sequenced order. Side carries the order type label.
type SequencedOrder struct {
	SequenceNumber uint64  `json:"secnum"`
	Price          float64 `json:"price"`
	Quantity       int64   `json:"quantity"`
	Symbol         string  `json:"symbol"`
	Side           string  `json:"side"`
}

// ExecutionNotice is the body forwarded to the market-data publisher for
// an applied fill.
type ExecutionNotice struct {
	SequencedOrder
	QuantityExecuted int64  `json:"quantity_executed"`
	ExecutionID      string `json:"execution_id"`
}

// OrderState is the client-facing view of an order.
type OrderState struct {
	SequenceNumber    uint64 `json:"secnum"`
	Symbol            string `json:"symbol"`
	Quantity          int64  `json:"quantity"`
	QuantityRemaining int64  `json:"quantity_remaining"`
	Filled            bool   `json:"filled"`
}

// Sequenced builds the downstream delivery body for an order.
func (o *Order) Sequenced() SequencedOrder {
	return SequencedOrder{
		SequenceNumber: o.SequenceNumber,
		Price:          o.Price,
		Quantity:       o.Quantity,
		Symbol:         o.Symbol,
		Side:           o.OrderType,
	}
}

// State builds the client-facing view of an order.
func (o *Order) State() OrderState {
	return OrderState{
		SequenceNumber:    o.SequenceNumber,
		Symbol:            o.Symbol,
		Quantity:          o.Quantity,
		QuantityRemaining: o.QuantityRemaining,
		Filled:            o.Filled(),
	}
}
