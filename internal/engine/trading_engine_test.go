package engine_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avellaneda-grid-go/infrastructure/logger"
	"avellaneda-grid-go/internal/engine"
	"avellaneda-grid-go/strategy"
)

// mockStrategy 记录 OnTick 次数
type mockStrategy struct {
	ticks   atomic.Int64
	err     error
	panicky bool
}

func (m *mockStrategy) ComputeQuote(price, inventory float64) strategy.Quote {
	return strategy.Quote{ReservePrice: price, BestBid: price, BestAsk: price}
}

func (m *mockStrategy) OnTick(ctx context.Context) error {
	m.ticks.Add(1)
	if m.panicky {
		panic("boom")
	}
	return m.err
}

// mockBase 只关心撤单
type mockBase struct {
	mu        sync.Mutex
	cancelled []strategy.PositionSide
}

func (m *mockBase) Symbol() string                    { return "XRP" }
func (m *mockBase) Snapshot() strategy.EngineSnapshot { return strategy.EngineSnapshot{} }
func (m *mockBase) PlaceOrder(context.Context, strategy.OrderSide, float64, float64, bool, strategy.PositionSide) error {
	return nil
}
func (m *mockBase) PlaceTakeProfitOrder(context.Context, string, strategy.PositionSide, float64, float64) error {
	return nil
}
func (m *mockBase) CancelOrdersForSide(_ context.Context, tag strategy.PositionSide) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, tag)
	return nil
}
func (m *mockBase) InitializeLongOrders(context.Context) error { return nil }
func (m *mockBase) InitializeShortOrders(context.Context) error { return nil }
func (m *mockBase) TakeProfitQuantity(float64, strategy.PositionSide) float64 { return 1 }
func (m *mockBase) CheckAndReducePositions(context.Context) error { return nil }

func newEngine(t *testing.T, strat strategy.QuotingStrategy, base strategy.BaseEngine) *engine.GridEngine {
	t.Helper()
	e, err := engine.New(engine.Config{
		Symbol:       "XRP",
		TickInterval: 5 * time.Millisecond,
		CancelOnStop: base != nil,
		StopTimeout:  time.Second,
	}, engine.Components{Strategy: strat, Base: base, Logger: logger.NewNop()})
	require.NoError(t, err)
	return e
}

func TestNew_Validation(t *testing.T) {
	testCases := []struct {
		name string
		cfg  engine.Config
		comp engine.Components
	}{
		{name: "缺少交易对", cfg: engine.Config{}, comp: engine.Components{Strategy: &mockStrategy{}, Logger: logger.NewNop()}},
		{name: "缺少策略", cfg: engine.Config{Symbol: "XRP"}, comp: engine.Components{Logger: logger.NewNop()}},
		{name: "缺少日志", cfg: engine.Config{Symbol: "XRP"}, comp: engine.Components{Strategy: &mockStrategy{}}},
		{name: "负的间隔", cfg: engine.Config{Symbol: "XRP", TickInterval: -time.Second}, comp: engine.Components{Strategy: &mockStrategy{}, Logger: logger.NewNop()}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.New(tc.cfg, tc.comp)
			assert.Error(t, err)
		})
	}
}

func TestEngine_TicksUntilStopped(t *testing.T) {
	strat := &mockStrategy{}
	base := &mockBase{}
	e := newEngine(t, strat, base)

	require.NoError(t, e.Start(context.Background()))
	assert.Equal(t, engine.StateRunning, e.GetState())
	assert.Error(t, e.Start(context.Background()), "double start")

	require.Eventually(t, func() bool { return strat.ticks.Load() >= 3 }, time.Second, time.Millisecond)
	require.NoError(t, e.Stop())
	assert.Equal(t, engine.StateStopped, e.GetState())

	stopped := strat.ticks.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, strat.ticks.Load(), "no ticks after stop")

	stats := e.GetStatistics()
	assert.GreaterOrEqual(t, stats.TotalTicks, int64(3))
	assert.Zero(t, stats.TotalErrors)
	assert.NoError(t, e.Err())

	base.mu.Lock()
	assert.Equal(t, []strategy.PositionSide{strategy.Long, strategy.Short}, base.cancelled)
	base.mu.Unlock()

	assert.Error(t, e.Stop(), "stop when not running")
}

func TestEngine_ContextCancelEndsLoop(t *testing.T) {
	strat := &mockStrategy{}
	e := newEngine(t, strat, nil)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, e.Start(ctx))
	done := e.Done()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not exit on context cancel")
	}
}

func TestEngine_StrategyErrorsAreCounted(t *testing.T) {
	strat := &mockStrategy{err: errors.New("long: place take-profit: rejected")}
	e := newEngine(t, strat, nil)

	require.NoError(t, e.Start(context.Background()))
	require.Eventually(t, func() bool { return e.GetStatistics().TotalErrors >= 2 }, time.Second, time.Millisecond)
	require.NoError(t, e.Stop())

	assert.Contains(t, e.GetStatistics().LastError, "rejected")
}

func TestEngine_PanicAbortsLoop(t *testing.T) {
	strat := &mockStrategy{panicky: true}
	base := &mockBase{}
	e := newEngine(t, strat, base)

	require.NoError(t, e.Start(context.Background()))
	select {
	case <-e.Done():
	case <-time.After(time.Second):
		t.Fatal("loop kept running after a strategy panic")
	}

	assert.Equal(t, int64(1), strat.ticks.Load(), "no ticks after the panic")
	assert.ErrorIs(t, e.Err(), engine.ErrStrategyPanic)
	assert.Equal(t, int64(1), e.GetStatistics().TotalErrors)
	assert.Contains(t, e.GetStatistics().LastError, "boom")

	// 停止仍然撤掉两侧挂单
	require.NoError(t, e.Stop())
	base.mu.Lock()
	assert.Equal(t, []strategy.PositionSide{strategy.Long, strategy.Short}, base.cancelled)
	base.mu.Unlock()
}

func TestEngine_ErrClearedOnRestart(t *testing.T) {
	strat := &mockStrategy{panicky: true}
	e := newEngine(t, strat, nil)

	require.NoError(t, e.Start(context.Background()))
	<-e.Done()
	require.Error(t, e.Err())
	require.NoError(t, e.Stop())

	strat.panicky = false
	require.NoError(t, e.Start(context.Background()))
	assert.NoError(t, e.Err())
	require.NoError(t, e.Stop())
	assert.NoError(t, e.Err())
}

func TestEngine_PauseSkipsTicks(t *testing.T) {
	strat := &mockStrategy{}
	e := newEngine(t, strat, nil)

	require.NoError(t, e.Start(context.Background()))
	require.NoError(t, e.Pause())
	assert.Error(t, e.Pause())

	require.Eventually(t, func() bool { return e.GetStatistics().SkippedTicks >= 2 }, time.Second, time.Millisecond)
	paused := strat.ticks.Load()
	require.Eventually(t, func() bool { return e.GetStatistics().SkippedTicks >= 4 }, time.Second, time.Millisecond)
	assert.Equal(t, paused, strat.ticks.Load(), "paused engine must not call the strategy")

	require.NoError(t, e.Resume())
	require.Eventually(t, func() bool { return strat.ticks.Load() > paused }, time.Second, time.Millisecond)
	require.NoError(t, e.Stop())
}

func TestEngine_RestartAfterStop(t *testing.T) {
	strat := &mockStrategy{}
	e := newEngine(t, strat, nil)

	require.NoError(t, e.Start(context.Background()))
	require.NoError(t, e.Stop())
	require.NoError(t, e.Start(context.Background()))
	before := strat.ticks.Load()
	require.Eventually(t, func() bool { return strat.ticks.Load() > before }, time.Second, time.Millisecond)
	require.NoError(t, e.Stop())
}

func TestEngineState_String(t *testing.T) {
	assert.Equal(t, "IDLE", engine.StateIdle.String())
	assert.Equal(t, "RUNNING", engine.StateRunning.String())
	assert.Equal(t, "PAUSED", engine.StatePaused.String())
	assert.Equal(t, "STOPPED", engine.StateStopped.String())
	assert.Equal(t, "UNKNOWN", engine.EngineState(42).String())
}
