package avellaneda

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"avellaneda-grid-go/infrastructure/monitor"
	"avellaneda-grid-go/strategy"
)

var (
	ErrZeroEta        = errors.New("eta is zero")
	ErrLogDomain      = errors.New("log argument 1+gamma/eta is not positive")
	ErrNonFiniteDelta = errors.New("delta is not finite")
	ErrNegativeDelta  = errors.New("delta is negative")
)

// DeltaKind tells the caller how to resolve a Delta.
type DeltaKind int

const (
	// DeltaModel: Value is the model half-spread.
	DeltaModel DeltaKind = iota
	// DeltaFallback: the formula is undefined, Err says why; the caller picks
	// the grid-spacing half-spread.
	DeltaFallback
)

// Delta is the result of the optimal half-spread formula.
type Delta struct {
	Kind  DeltaKind
	Value float64
	Err   error
}

// ComputeDelta evaluates
//
//	delta = 0.5 * gamma * sigma^2 * T + (1/gamma) * ln(1 + gamma/eta)
func (p ModelParameters) ComputeDelta() Delta {
	if p.Eta == 0 {
		return Delta{Kind: DeltaFallback, Err: ErrZeroEta}
	}
	arg := 1 + p.Gamma/p.Eta
	if arg <= 0 || math.IsNaN(arg) {
		return Delta{Kind: DeltaFallback, Err: fmt.Errorf("%w: %v", ErrLogDomain, arg)}
	}
	v := 0.5*p.inventoryRisk() + math.Log(arg)/p.Gamma
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Delta{Kind: DeltaFallback, Err: ErrNonFiniteDelta}
	}
	if v < 0 {
		return Delta{Kind: DeltaFallback, Err: fmt.Errorf("%w: %v", ErrNegativeDelta, v)}
	}
	return Delta{Kind: DeltaModel, Value: v}
}

// QuoteEngine 持有固定模型参数与最近一次报价。
type QuoteEngine struct {
	params      ModelParameters
	gridSpacing float64
	logger      *zap.Logger
	monitor     *monitor.Monitor
	logAtInfo   bool

	last    strategy.Quote
	hasLast bool
}

// QuoteEngineOption customizes a QuoteEngine.
type QuoteEngineOption func(*QuoteEngine)

// WithMonitor publishes each quote to Prometheus.
func WithMonitor(m *monitor.Monitor) QuoteEngineOption {
	return func(e *QuoteEngine) { e.monitor = m }
}

// WithQuoteLogAtInfo logs every quote at info instead of debug.
func WithQuoteLogAtInfo(on bool) QuoteEngineOption {
	return func(e *QuoteEngine) { e.logAtInfo = on }
}

// NewQuoteEngine builds a QuoteEngine. gridSpacing is the fallback half-spread
// basis, as a fraction of price.
func NewQuoteEngine(params ModelParameters, gridSpacing float64, logger *zap.Logger, opts ...QuoteEngineOption) (*QuoteEngine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if gridSpacing <= 0 || math.IsNaN(gridSpacing) || math.IsInf(gridSpacing, 0) {
		return nil, fmt.Errorf("gridSpacing must be > 0, got %v", gridSpacing)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &QuoteEngine{
		params:      params,
		gridSpacing: gridSpacing,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Params returns the fixed parameters.
func (e *QuoteEngine) Params() ModelParameters {
	return e.params
}

// ComputeQuote prices around the inventory-skewed reserve price. It never
// touches inventory or places orders.
func (e *QuoteEngine) ComputeQuote(marketPrice, inventory float64) strategy.Quote {
	reserve := e.params.ReservePrice(marketPrice, inventory)

	d := e.params.ComputeDelta()
	delta := d.Value
	fallback := d.Kind == DeltaFallback
	if fallback {
		delta = e.gridSpacing * marketPrice * 0.5
		e.logger.Error("delta computation failed, using grid spacing fallback",
			zap.Error(d.Err),
			zap.Float64("grid_spacing", e.gridSpacing),
			zap.Float64("market_price", marketPrice),
			zap.Float64("fallback_delta", delta))
	}

	// bid/ask 各自按 0 截断
	q := strategy.Quote{
		ReservePrice: reserve,
		BestBid:      math.Max(0, reserve-delta),
		BestAsk:      math.Max(0, reserve+delta),
		Delta:        delta,
		Fallback:     fallback,
	}
	e.last = q
	e.hasLast = true

	logFn := e.logger.Debug
	if e.logAtInfo {
		logFn = e.logger.Info
	}
	logFn("avellaneda quote",
		zap.Float64("reserve_price", q.ReservePrice),
		zap.Float64("inventory", inventory),
		zap.Float64("delta", q.Delta),
		zap.Float64("best_bid", q.BestBid),
		zap.Float64("best_ask", q.BestAsk))
	e.monitor.UpdateQuote(q.ReservePrice, q.BestBid, q.BestAsk, q.Delta, inventory, fallback)
	return q
}

// LastQuote returns the most recent quote, if any.
func (e *QuoteEngine) LastQuote() (strategy.Quote, bool) {
	return e.last, e.hasLast
}
