package avellaneda

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"avellaneda-grid-go/infrastructure/monitor"
	"avellaneda-grid-go/risk"
	"avellaneda-grid-go/strategy"
)

// GridConfig 网格调整参数（启动时固定）。
type GridConfig struct {
	Symbol            string
	InitialQuantity   float64
	PositionThreshold float64
	Cooldown          time.Duration
}

// Strategy is the Avellaneda grid strategy: a QuoteEngine plus the per-tick
// adjustment of both legs through the base engine.
type Strategy struct {
	quotes  *QuoteEngine
	base    strategy.BaseEngine
	gate    risk.CooldownGate
	cfg     GridConfig
	logger  *zap.Logger
	monitor *monitor.Monitor
}

var _ strategy.QuotingStrategy = (*Strategy)(nil)

// NewStrategy wires the quote engine to a base engine.
func NewStrategy(quotes *QuoteEngine, base strategy.BaseEngine, cfg GridConfig, clock risk.Clock, logger *zap.Logger, mon *monitor.Monitor) (*Strategy, error) {
	if quotes == nil {
		return nil, errors.New("quote engine is required")
	}
	if base == nil {
		return nil, errors.New("base engine is required")
	}
	if cfg.InitialQuantity <= 0 {
		return nil, fmt.Errorf("initialQuantity must be > 0, got %v", cfg.InitialQuantity)
	}
	if cfg.PositionThreshold <= 0 {
		return nil, fmt.Errorf("positionThreshold must be > 0, got %v", cfg.PositionThreshold)
	}
	if cfg.Cooldown < 0 {
		return nil, fmt.Errorf("cooldown must be >= 0, got %v", cfg.Cooldown)
	}
	if cfg.Symbol == "" {
		cfg.Symbol = base.Symbol()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Strategy{
		quotes: quotes,
		base:   base,
		gate: risk.CooldownGate{
			PositionThreshold: cfg.PositionThreshold,
			Cooldown:          cfg.Cooldown,
			Clock:             clock,
		},
		cfg:     cfg,
		logger:  logger.With(zap.String("symbol", cfg.Symbol)),
		monitor: mon,
	}, nil
}

// ComputeQuote delegates to the quote engine.
func (s *Strategy) ComputeQuote(marketPrice, inventory float64) strategy.Quote {
	return s.quotes.ComputeQuote(marketPrice, inventory)
}

// OnTick runs one adjustment pass. Each leg is evaluated independently; a
// failure on one leg is logged and does not stop the other. The returned error
// joins the per-leg failures for the caller's bookkeeping.
func (s *Strategy) OnTick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.monitor.RecordTick()

	if err := s.base.CheckAndReducePositions(ctx); err != nil {
		s.logger.Error("check and reduce positions failed", zap.Error(err))
	}

	snap := s.base.Snapshot()
	s.monitor.UpdatePositions(snap.LongPosition, snap.ShortPosition)

	// 每个 tick 最多计算一次报价，只在有持仓的一侧需要时才计算
	var (
		quote    strategy.Quote
		computed bool
	)
	quoteFn := func() strategy.Quote {
		if !computed {
			quote = s.quotes.ComputeQuote(snap.LatestPrice, snap.NetInventory())
			computed = true
		}
		return quote
	}

	var errs []error
	for _, tag := range []strategy.PositionSide{strategy.Long, strategy.Short} {
		if err := s.adjustSide(ctx, tag, snap, quoteFn); err != nil {
			s.monitor.RecordOrderError(string(tag))
			s.logger.Error("adjust side failed",
				zap.String("side", string(tag)),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", tag, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Strategy) adjustSide(ctx context.Context, tag strategy.PositionSide, snap strategy.EngineSnapshot, quoteFn func() strategy.Quote) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	position := snap.Position(tag)
	if position == 0 {
		initSide := s.base.InitializeShortOrders
		if tag == strategy.Long {
			initSide = s.base.InitializeLongOrders
		}
		if err := initSide(ctx); err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		s.monitor.RecordOrderAction(string(tag), "initialize")
		return nil
	}

	last := snap.LastOrderTime(tag)
	if s.gate.Blocked(position, last) {
		s.monitor.RecordCooldownSkip(string(tag))
		s.logger.Debug("side in cooldown, skipping",
			zap.String("side", string(tag)),
			zap.Float64("position", position),
			zap.Duration("remaining", s.gate.Remaining(last)))
		return nil
	}

	if snap.LatestPrice <= 0 {
		s.logger.Warn("no latest price, cannot quote",
			zap.String("side", string(tag)),
			zap.Float64("position", position))
		return nil
	}

	q := quoteFn()
	tpQty := s.base.TakeProfitQuantity(position, tag)
	far, near := q.FarPrice(tag), q.NearPrice(tag)

	if s.gate.AboveThreshold(position) {
		// 超过阈值：不再开仓，只保证有一张止盈单
		if snap.TakeProfitOrders(tag) > 0 {
			return nil
		}
		return s.placeTakeProfit(ctx, tag, far, tpQty)
	}

	if err := s.base.CancelOrdersForSide(ctx, tag); err != nil {
		return fmt.Errorf("cancel orders: %w", err)
	}
	s.monitor.RecordOrderAction(string(tag), "cancel")

	if err := s.placeTakeProfit(ctx, tag, far, tpQty); err != nil {
		return err
	}
	if err := s.placeOpening(ctx, tag, near); err != nil {
		return err
	}
	s.logger.Info("requoted side",
		zap.String("side", string(tag)),
		zap.Float64("take_profit", far),
		zap.Float64("reopen", near),
		zap.Float64("take_profit_qty", tpQty),
		zap.Float64("open_qty", s.cfg.InitialQuantity))
	return nil
}

func (s *Strategy) placeTakeProfit(ctx context.Context, tag strategy.PositionSide, price, qty float64) error {
	if price <= 0 {
		s.logger.Warn("take-profit price clamped to zero, not placing", zap.String("side", string(tag)))
		return nil
	}
	if err := s.base.PlaceTakeProfitOrder(ctx, s.cfg.Symbol, tag, price, qty); err != nil {
		return fmt.Errorf("place take-profit: %w", err)
	}
	s.monitor.RecordOrderAction(string(tag), "take_profit")
	return nil
}

func (s *Strategy) placeOpening(ctx context.Context, tag strategy.PositionSide, price float64) error {
	if price <= 0 {
		s.logger.Warn("opening price clamped to zero, not placing", zap.String("side", string(tag)))
		return nil
	}
	if err := s.base.PlaceOrder(ctx, strategy.OpenSide(tag), price, s.cfg.InitialQuantity, false, tag); err != nil {
		return fmt.Errorf("place opening order: %w", err)
	}
	s.monitor.RecordOrderAction(string(tag), "open")
	return nil
}
