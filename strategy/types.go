package strategy

import (
	"context"
	"time"
)

// PositionSide tags which leg of a hedge-mode position an order belongs to.
type PositionSide string

const (
	Long  PositionSide = "long"
	Short PositionSide = "short"
)

// Opposite returns the other leg.
func (s PositionSide) Opposite() PositionSide {
	if s == Long {
		return Short
	}
	return Long
}

// OrderSide is the exchange-facing direction of an order.
type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// OpenSide 返回开仓方向：多头买入开仓，空头卖出开仓。
func OpenSide(tag PositionSide) OrderSide {
	if tag == Long {
		return Buy
	}
	return Sell
}

// CloseSide 返回止盈（平仓）方向。
func CloseSide(tag PositionSide) OrderSide {
	if tag == Long {
		return Sell
	}
	return Buy
}

// Quote is the per-tick pricing decision. It is recomputed every tick and
// never persisted.
type Quote struct {
	ReservePrice float64
	BestBid      float64
	BestAsk      float64
	Delta        float64
	// Fallback marks a delta taken from grid spacing instead of the model.
	Fallback bool
}

// NearPrice is where a side re-opens: bid for long, ask for short.
func (q Quote) NearPrice(tag PositionSide) float64 {
	if tag == Long {
		return q.BestBid
	}
	return q.BestAsk
}

// FarPrice is where a side takes profit: ask for long, bid for short.
func (q Quote) FarPrice(tag PositionSide) float64 {
	if tag == Long {
		return q.BestAsk
	}
	return q.BestBid
}

// EngineSnapshot is the read-only view of base engine state consulted once per
// tick. InventoryState and the per-side last order times are owned by the base engine.
type EngineSnapshot struct {
	LongPosition       float64
	ShortPosition      float64
	LatestPrice        float64
	LastLongOrderTime  time.Time
	LastShortOrderTime time.Time
	// 当前挂着的止盈单数量
	LongTakeProfitOrders  int
	ShortTakeProfitOrders int
}

// Position returns the size held on one leg.
func (s EngineSnapshot) Position(tag PositionSide) float64 {
	if tag == Long {
		return s.LongPosition
	}
	return s.ShortPosition
}

// LastOrderTime returns the last order timestamp of one leg.
func (s EngineSnapshot) LastOrderTime(tag PositionSide) time.Time {
	if tag == Long {
		return s.LastLongOrderTime
	}
	return s.LastShortOrderTime
}

// TakeProfitOrders returns the resting take-profit count of one leg.
func (s EngineSnapshot) TakeProfitOrders(tag PositionSide) int {
	if tag == Long {
		return s.LongTakeProfitOrders
	}
	return s.ShortTakeProfitOrders
}

// NetInventory is long minus short.
func (s EngineSnapshot) NetInventory() float64 {
	return s.LongPosition - s.ShortPosition
}

// BaseEngine is the order-placement collaborator: the generic grid engine that
// owns positions, resting orders and exchange connectivity.
type BaseEngine interface {
	Symbol() string
	Snapshot() EngineSnapshot

	PlaceOrder(ctx context.Context, side OrderSide, price, qty float64, reduceOnly bool, tag PositionSide) error
	PlaceTakeProfitOrder(ctx context.Context, symbol string, tag PositionSide, price, qty float64) error
	CancelOrdersForSide(ctx context.Context, tag PositionSide) error
	InitializeLongOrders(ctx context.Context) error
	InitializeShortOrders(ctx context.Context) error
	TakeProfitQuantity(position float64, tag PositionSide) float64
	CheckAndReducePositions(ctx context.Context) error
}

// QuotingStrategy is injected into the generic grid engine, which depends only
// on this interface.
type QuotingStrategy interface {
	ComputeQuote(marketPrice, inventory float64) Quote
	OnTick(ctx context.Context) error
}
