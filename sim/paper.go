package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"avellaneda-grid-go/infrastructure/logger"
	"avellaneda-grid-go/infrastructure/monitor"
	"avellaneda-grid-go/inventory"
	"avellaneda-grid-go/order"
	"avellaneda-grid-go/risk"
	"avellaneda-grid-go/strategy"
)

const (
	// 双边持仓都超过阈值的该比例时触发减仓
	reduceTriggerRatio = 0.8
	// 每次减仓阈值的该比例
	reduceSizeRatio = 0.1
)

var (
	ErrNoPrice        = errors.New("no latest price")
	ErrNoPosition     = errors.New("no position to take profit on")
	ErrSymbolMismatch = errors.New("symbol mismatch")
)

// PaperConfig 纸面撮合引擎参数
type PaperConfig struct {
	Symbol            string
	GridSpacing       float64
	InitialQuantity   float64
	PositionThreshold float64
	TickSize          float64
	StepSize          float64
	MinQty            float64
	MaxQty            float64
	MinNotional       float64
	Leverage          int // 0 视为 1
}

func (c PaperConfig) validate() error {
	if c.Symbol == "" {
		return errors.New("symbol is required")
	}
	if c.GridSpacing <= 0 {
		return fmt.Errorf("gridSpacing must be > 0, got %v", c.GridSpacing)
	}
	if c.InitialQuantity <= 0 {
		return fmt.Errorf("initialQuantity must be > 0, got %v", c.InitialQuantity)
	}
	if c.PositionThreshold <= 0 {
		return fmt.Errorf("positionThreshold must be > 0, got %v", c.PositionThreshold)
	}
	if c.Leverage < 0 {
		return fmt.Errorf("leverage must be >= 0, got %d", c.Leverage)
	}
	return nil
}

// PaperEngine 内存中的对冲模式网格基础引擎：持仓、挂单、按价格穿越撮合。
type PaperEngine struct {
	cfg         PaperConfig
	book        *order.Book
	inv         *inventory.Tracker
	constraints order.SymbolConstraints
	clock       risk.Clock
	logger      *logger.Logger
	monitor     *monitor.Monitor

	mu          sync.RWMutex
	latestPrice float64
	lastLong    time.Time
	lastShort   time.Time
}

var _ strategy.BaseEngine = (*PaperEngine)(nil)

// NewPaperEngine 创建纸面引擎；clock/log/mon 均可为 nil。
func NewPaperEngine(cfg PaperConfig, clock risk.Clock, log *logger.Logger, mon *monitor.Monitor) (*PaperEngine, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid paper config: %w", err)
	}
	if clock == nil {
		clock = risk.NowUTC
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &PaperEngine{
		cfg:         cfg,
		book:        order.NewBook(),
		inv:         &inventory.Tracker{},
		constraints: order.SymbolConstraints{
			TickSize:    cfg.TickSize,
			StepSize:    cfg.StepSize,
			MinQty:      cfg.MinQty,
			MaxQty:      cfg.MaxQty,
			MinNotional: cfg.MinNotional,
		},
		clock:       clock,
		logger:      log,
		monitor:     mon,
	}, nil
}

func (p *PaperEngine) Symbol() string { return p.cfg.Symbol }

// Snapshot 返回一次性读取的引擎状态
func (p *PaperEngine) Snapshot() strategy.EngineSnapshot {
	p.mu.RLock()
	price, lastLong, lastShort := p.latestPrice, p.lastLong, p.lastShort
	p.mu.RUnlock()
	return strategy.EngineSnapshot{
		LongPosition:          p.inv.Position(strategy.Long),
		ShortPosition:         p.inv.Position(strategy.Short),
		LatestPrice:           price,
		LastLongOrderTime:     lastLong,
		LastShortOrderTime:    lastShort,
		LongTakeProfitOrders:  p.book.CountTakeProfit(strategy.Long),
		ShortTakeProfitOrders: p.book.CountTakeProfit(strategy.Short),
	}
}

// Orders 当前挂单
func (p *PaperEngine) Orders() []order.Order { return p.book.List() }

// Inventory 持仓跟踪器
func (p *PaperEngine) Inventory() *inventory.Tracker { return p.inv }

// Summary 纸面账户概况
type Summary struct {
	LongPosition  float64
	ShortPosition float64
	NetInventory  float64
	OpenOrders    int
	LatestPrice   float64
	UnrealizedPnL float64
	MarginUsed    float64
}

// Summary 按最新价估值；杠杆用于估算两侧持仓占用的保证金。
func (p *PaperEngine) Summary() Summary {
	p.mu.RLock()
	price := p.latestPrice
	p.mu.RUnlock()

	net, pnl := p.inv.Valuation(price)
	long, short := p.inv.Position(strategy.Long), p.inv.Position(strategy.Short)
	leverage := p.cfg.Leverage
	if leverage <= 0 {
		leverage = 1
	}
	return Summary{
		LongPosition:  long,
		ShortPosition: short,
		NetInventory:  net,
		OpenOrders:    p.book.Len(),
		LatestPrice:   price,
		UnrealizedPnL: pnl,
		MarginUsed:    (long + short) * price / float64(leverage),
	}
}

// OnPrice 更新最新成交价，并撮合被价格穿越的挂单。
func (p *PaperEngine) OnPrice(price float64) []order.Order {
	if price <= 0 {
		return nil
	}
	p.mu.Lock()
	p.latestPrice = price
	p.mu.Unlock()

	var fills []order.Order
	for _, o := range p.book.List() {
		if !o.Crossed(price) {
			continue
		}
		filled, err := p.book.Transition(o.ID, order.StatusFilled)
		if err != nil {
			continue
		}
		qty := filled.Quantity
		if filled.Closes() {
			qty = p.inv.Close(filled.Tag, qty)
		} else {
			p.inv.Open(filled.Tag, qty, filled.Price)
		}
		p.monitor.RecordOrderAction(string(filled.Tag), "fill")
		p.logger.LogOrder("filled", string(filled.Side), map[string]interface{}{
			"order_id":    filled.ID,
			"tag":         string(filled.Tag),
			"price":       filled.Price,
			"qty":         qty,
			"take_profit": filled.TakeProfit,
		})
		fills = append(fills, filled)
	}
	if len(fills) > 0 {
		p.monitor.UpdatePositions(p.inv.Position(strategy.Long), p.inv.Position(strategy.Short))
	}
	return fills
}

// PlaceOrder 挂限价单
func (p *PaperEngine) PlaceOrder(ctx context.Context, side strategy.OrderSide, price, qty float64, reduceOnly bool, tag strategy.PositionSide) error {
	_, err := p.place(ctx, order.Order{
		Symbol:     p.cfg.Symbol,
		Side:       side,
		Tag:        tag,
		Price:      price,
		Quantity:   qty,
		ReduceOnly: reduceOnly,
	})
	return err
}

// PlaceTakeProfitOrder 挂平仓止盈单，数量不超过当前持仓
func (p *PaperEngine) PlaceTakeProfitOrder(ctx context.Context, symbol string, tag strategy.PositionSide, price, qty float64) error {
	if symbol != p.cfg.Symbol {
		return fmt.Errorf("%w: %s != %s", ErrSymbolMismatch, symbol, p.cfg.Symbol)
	}
	position := p.inv.Position(tag)
	if position <= 0 {
		return ErrNoPosition
	}
	if qty > position {
		qty = position
	}
	_, err := p.place(ctx, order.Order{
		Symbol:     symbol,
		Side:       strategy.CloseSide(tag),
		Tag:        tag,
		Price:      price,
		Quantity:   qty,
		ReduceOnly: true,
		TakeProfit: true,
	})
	return err
}

// CancelOrdersForSide 撤掉一侧全部挂单
func (p *PaperEngine) CancelOrdersForSide(ctx context.Context, tag strategy.PositionSide) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, o := range p.book.CancelSide(tag) {
		p.logger.LogOrder("canceled", string(o.Side), map[string]interface{}{
			"order_id":    o.ID,
			"tag":         string(o.Tag),
			"status":      string(o.Status),
			"take_profit": o.TakeProfit,
		})
	}
	return nil
}

func (p *PaperEngine) InitializeLongOrders(ctx context.Context) error {
	return p.initialize(ctx, strategy.Long)
}

func (p *PaperEngine) InitializeShortOrders(ctx context.Context) error {
	return p.initialize(ctx, strategy.Short)
}

// initialize 清空该侧挂单，在距最新价一个网格间距处挂首张开仓单
func (p *PaperEngine) initialize(ctx context.Context, tag strategy.PositionSide) error {
	p.mu.RLock()
	price := p.latestPrice
	p.mu.RUnlock()
	if price <= 0 {
		return ErrNoPrice
	}
	if err := p.CancelOrdersForSide(ctx, tag); err != nil {
		return err
	}
	target := price * (1 - p.cfg.GridSpacing)
	if tag == strategy.Short {
		target = price * (1 + p.cfg.GridSpacing)
	}
	return p.PlaceOrder(ctx, strategy.OpenSide(tag), target, p.cfg.InitialQuantity, false, tag)
}

// TakeProfitQuantity 本侧超过阈值或对侧达到阈值时加倍止盈数量
func (p *PaperEngine) TakeProfitQuantity(position float64, tag strategy.PositionSide) float64 {
	opposite := p.inv.Position(tag.Opposite())
	if position > p.cfg.PositionThreshold || opposite >= p.cfg.PositionThreshold {
		return p.cfg.InitialQuantity * 2
	}
	return p.cfg.InitialQuantity
}

// CheckAndReducePositions 双边持仓都过大时按市价同时减仓
func (p *PaperEngine) CheckAndReducePositions(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	trigger := p.cfg.PositionThreshold * reduceTriggerRatio
	long, short := p.inv.Position(strategy.Long), p.inv.Position(strategy.Short)
	if long <= trigger || short <= trigger {
		return nil
	}
	size := p.cfg.PositionThreshold * reduceSizeRatio
	closedLong := p.inv.Close(strategy.Long, size)
	closedShort := p.inv.Close(strategy.Short, size)
	p.logger.LogRisk("reduce_positions", map[string]interface{}{
		"long_before":   long,
		"short_before":  short,
		"reduced_long":  closedLong,
		"reduced_short": closedShort,
	})
	p.monitor.RecordOrderAction(string(strategy.Long), "reduce")
	p.monitor.RecordOrderAction(string(strategy.Short), "reduce")
	p.monitor.UpdatePositions(p.inv.Position(strategy.Long), p.inv.Position(strategy.Short))
	return nil
}

func (p *PaperEngine) place(ctx context.Context, o order.Order) (order.Order, error) {
	if err := ctx.Err(); err != nil {
		return order.Order{}, err
	}
	o.Price, o.Quantity = p.constraints.Normalize(o.Price, o.Quantity)
	if err := p.constraints.Validate(o.Price, o.Quantity); err != nil {
		p.logger.LogOrder("rejected", string(o.Side), map[string]interface{}{
			"tag":    string(o.Tag),
			"status": string(order.StatusRejected),
			"reason": err.Error(),
		})
		return order.Order{}, fmt.Errorf("%w: %v", order.ErrInvalidOrder, err)
	}
	o.CreatedAt = p.clock.Now()
	placed, err := p.book.Add(o)
	if err != nil {
		return order.Order{}, err
	}

	p.mu.Lock()
	if o.Tag == strategy.Long {
		p.lastLong = placed.CreatedAt
	} else {
		p.lastShort = placed.CreatedAt
	}
	p.mu.Unlock()

	p.logger.LogOrder("placed", string(placed.Side), map[string]interface{}{
		"order_id":    placed.ID,
		"tag":         string(placed.Tag),
		"price":       order.FormatPrice(placed.Price, p.cfg.TickSize),
		"qty":         placed.Quantity,
		"reduce_only": placed.ReduceOnly,
		"take_profit": placed.TakeProfit,
	})
	return placed, nil
}
