package order

import (
	"time"

	"avellaneda-grid-go/strategy"
)

// Status represents order lifecycle.
type Status string

const (
	StatusNew      Status = "NEW"
	StatusFilled   Status = "FILLED"
	StatusCanceled Status = "CANCELED"
	StatusRejected Status = "REJECTED"
)

// Order is a resting limit order of one hedge-mode leg.
type Order struct {
	ID         string
	Symbol     string
	Side       strategy.OrderSide
	Tag        strategy.PositionSide
	Price      float64
	Quantity   float64
	ReduceOnly bool
	// TakeProfit 标记平仓止盈单
	TakeProfit bool
	Status     Status
	CreatedAt  time.Time
}

// Closes reports whether a fill of o reduces its leg.
func (o Order) Closes() bool {
	return o.TakeProfit || o.ReduceOnly
}

// Crossed reports whether the market price has traded through the order.
func (o Order) Crossed(price float64) bool {
	if o.Side == strategy.Buy {
		return price <= o.Price
	}
	return price >= o.Price
}
