package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"avellaneda-grid-go/infrastructure/logger"
	"avellaneda-grid-go/strategy"
)

// EngineState 引擎状态
type EngineState int

const (
	// StateIdle 空闲状态
	StateIdle EngineState = iota
	// StateRunning 运行状态
	StateRunning
	// StatePaused 暂停状态
	StatePaused
	// StateStopped 停止状态
	StateStopped
)

// String 返回状态名称
func (s EngineState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StatePaused:
		return "PAUSED"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// ErrStrategyPanic 策略在 tick 顶层 panic；主循环随即退出
var ErrStrategyPanic = errors.New("strategy panic")

// Config 引擎配置
type Config struct {
	Symbol       string        // 交易对
	TickInterval time.Duration // 策略执行间隔
	// CancelOnStop 停止时撤掉两侧挂单
	CancelOnStop bool
	StopTimeout  time.Duration
}

// Components 引擎依赖组件
type Components struct {
	Strategy strategy.QuotingStrategy
	// Base 可选；仅用于停止时撤单
	Base   strategy.BaseEngine
	Logger *logger.Logger
}

// GridEngine 通用网格引擎：按固定间隔驱动注入的报价策略。
// 它不关心具体定价模型，只依赖 strategy.QuotingStrategy。
type GridEngine struct {
	config Config

	strategy strategy.QuotingStrategy
	base     strategy.BaseEngine
	logger   *logger.Logger

	// 状态
	state EngineState
	mu    sync.RWMutex

	// 控制通道
	stopChan chan struct{}
	doneChan chan struct{}

	// 统计信息
	stats   Statistics
	statsMu sync.RWMutex

	// fatalErr 导致主循环退出的错误
	fatalErr error
}

// Statistics 引擎统计信息
type Statistics struct {
	StartTime    time.Time
	TotalTicks   int64
	TotalErrors  int64
	SkippedTicks int64
	LastTickTime time.Time
	LastError    string
}

// New 创建网格引擎
func New(cfg Config, components Components) (*GridEngine, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := validateComponents(components); err != nil {
		return nil, fmt.Errorf("invalid components: %w", err)
	}

	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 10 * time.Second
	}

	return &GridEngine{
		config:   cfg,
		strategy: components.Strategy,
		base:     components.Base,
		logger:   components.Logger,
		state:    StateIdle,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Start 启动引擎
func (e *GridEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateIdle && e.state != StateStopped {
		e.mu.Unlock()
		return fmt.Errorf("engine already started (state: %s)", e.state)
	}
	// 如果从 StateStopped 复启，需要重建通道
	if e.state == StateStopped {
		e.stopChan = make(chan struct{})
		e.doneChan = make(chan struct{})
	}
	e.fatalErr = nil
	e.state = StateRunning
	e.mu.Unlock()

	e.statsMu.Lock()
	e.stats.StartTime = time.Now()
	e.statsMu.Unlock()

	e.logger.Info("Grid engine starting",
		zap.String("symbol", e.config.Symbol),
		zap.Duration("tick_interval", e.config.TickInterval))

	go e.run(ctx)

	return nil
}

// Stop 停止引擎，等待主循环退出
func (e *GridEngine) Stop() error {
	e.mu.Lock()
	if e.state != StateRunning && e.state != StatePaused {
		e.mu.Unlock()
		return fmt.Errorf("engine not running (state: %s)", e.state)
	}
	e.mu.Unlock()

	e.logger.Info("Grid engine stopping...")

	select {
	case <-e.stopChan:
	default:
		close(e.stopChan)
	}

	select {
	case <-e.doneChan:
	case <-time.After(e.config.StopTimeout):
		e.logger.Warn("Timeout waiting for engine to stop")
	}

	if e.config.CancelOnStop {
		if err := e.cancelAllOrders(); err != nil {
			e.logger.Error("Failed to cancel all orders", zap.Error(err))
		}
	}

	e.mu.Lock()
	e.state = StateStopped
	e.mu.Unlock()

	e.logger.Info("Grid engine stopped")
	return nil
}

// Done 在主循环退出后关闭
func (e *GridEngine) Done() <-chan struct{} {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.doneChan
}

// Pause 暂停引擎
func (e *GridEngine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateRunning {
		return fmt.Errorf("engine not running (state: %s)", e.state)
	}
	e.state = StatePaused
	e.logger.Info("Grid engine paused")
	return nil
}

// Resume 恢复引擎
func (e *GridEngine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatePaused {
		return fmt.Errorf("engine not paused (state: %s)", e.state)
	}
	e.state = StateRunning
	e.logger.Info("Grid engine resumed")
	return nil
}

// run 主事件循环
func (e *GridEngine) run(ctx context.Context) {
	e.mu.RLock()
	stop, done := e.stopChan, e.doneChan
	e.mu.RUnlock()
	defer close(done)

	ticker := time.NewTicker(e.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Context done, stopping engine")
			return
		case <-stop:
			e.logger.Info("Stop signal received")
			return
		case <-ticker.C:
			if err := e.onTick(ctx); err != nil {
				e.mu.Lock()
				e.fatalErr = err
				e.mu.Unlock()
				e.logger.Error("Grid engine loop aborted", zap.Error(err))
				return
			}
		}
	}
}

// onTick 执行一次策略调整；返回非 nil 表示致命错误，主循环应退出
func (e *GridEngine) onTick(ctx context.Context) error {
	e.mu.RLock()
	state := e.state
	e.mu.RUnlock()

	if state == StatePaused {
		e.statsMu.Lock()
		e.stats.SkippedTicks++
		e.statsMu.Unlock()
		return nil
	}

	e.statsMu.Lock()
	e.stats.TotalTicks++
	e.stats.LastTickTime = time.Now()
	e.statsMu.Unlock()

	err := e.safeOnTick(ctx)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, ErrStrategyPanic):
		e.recordError(err)
		return err
	default:
		e.recordError(err)
		e.logger.Warn("Tick finished with errors", zap.Error(err))
		return nil
	}
}

// safeOnTick 把策略顶层的 panic 转成 ErrStrategyPanic
func (e *GridEngine) safeOnTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Strategy panicked during tick", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("%w: %v", ErrStrategyPanic, r)
		}
	}()
	return e.strategy.OnTick(ctx)
}

// cancelAllOrders 撤销两侧挂单
func (e *GridEngine) cancelAllOrders() error {
	if e.base == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.config.StopTimeout)
	defer cancel()

	var errs []error
	for _, tag := range []strategy.PositionSide{strategy.Long, strategy.Short} {
		if err := e.base.CancelOrdersForSide(ctx, tag); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tag, err))
		}
	}
	return errors.Join(errs...)
}

func (e *GridEngine) recordError(err error) {
	e.statsMu.Lock()
	e.stats.TotalErrors++
	e.stats.LastError = err.Error()
	e.statsMu.Unlock()
}

// Err 返回导致主循环退出的致命错误；正常停止时为 nil
func (e *GridEngine) Err() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.fatalErr
}

// GetState 获取引擎状态
func (e *GridEngine) GetState() EngineState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// GetStatistics 获取统计信息
func (e *GridEngine) GetStatistics() Statistics {
	e.statsMu.RLock()
	defer e.statsMu.RUnlock()
	return e.stats
}

// validateConfig 验证配置
func validateConfig(cfg Config) error {
	if cfg.Symbol == "" {
		return errors.New("symbol is required")
	}
	if cfg.TickInterval < 0 {
		return errors.New("tick_interval must be >= 0")
	}
	return nil
}

// validateComponents 验证组件
func validateComponents(comp Components) error {
	if comp.Strategy == nil {
		return errors.New("strategy is required")
	}
	if comp.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}
