package container

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"avellaneda-grid-go/config"
	"avellaneda-grid-go/gateway"
	"avellaneda-grid-go/infrastructure/logger"
	"avellaneda-grid-go/infrastructure/monitor"
	"avellaneda-grid-go/internal/engine"
	"avellaneda-grid-go/risk"
	"avellaneda-grid-go/sim"
	"avellaneda-grid-go/strategy/avellaneda"
)

// configWatchCooldown 合并编辑器保存时的连续事件
const configWatchCooldown = 5 * time.Second

// Container 依赖注入容器，管理所有组件的生命周期
type Container struct {
	// 配置
	cfg     config.AppConfig
	cfgPath string

	// 基础设施
	logger  *logger.Logger
	monitor *monitor.Monitor

	// 校准
	calibrator  *avellaneda.Calibrator
	calibration avellaneda.CalibrationResult

	// 核心服务
	quotes *avellaneda.QuoteEngine
	paper  *sim.PaperEngine
	engine *engine.GridEngine
	prices chan float64

	// 生命周期管理
	lifecycle *LifecycleManager
	built     bool
}

// New 创建新的Container实例。cfgPath 为空时不监听配置文件。
func New(cfgPath string, cfg config.AppConfig, log *logger.Logger) (*Container, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Container{
		cfg:       cfg,
		cfgPath:   cfgPath,
		logger:    log,
		monitor:   monitor.New(monitor.DefaultConfig()),
		lifecycle: NewLifecycleManager(),
	}, nil
}

// NewCalibrator 用 Gate.io REST 客户端作为历史数据源
func NewCalibrator(cfg config.AppConfig, log *logger.Logger, mon *monitor.Monitor) *avellaneda.Calibrator {
	rest := gateway.NewGateRESTClient(gateway.RESTConfig{
		BaseURL:         cfg.Calibration.BaseURL,
		Timeout:         cfg.Calibration.Timeout,
		Logger:          log.Logger,
		Rate:            cfg.Gateway.RESTRate,
		Burst:           cfg.Gateway.RESTBurst,
		BreakerFailures: cfg.Gateway.BreakerFailures,
		BreakerTimeout:  cfg.Gateway.BreakerTimeout,
	}, mon)
	return avellaneda.NewCalibrator(rest, avellaneda.CalibratorConfig{
		Interval:   cfg.Calibration.Interval,
		Limit:      cfg.Calibration.Limit,
		Timeout:    cfg.Calibration.Timeout,
		QuoteAsset: cfg.Calibration.QuoteAsset,
	}, log.Logger, mon)
}

// Build 校准参数并构建所有组件
func (c *Container) Build(ctx context.Context) error {
	if c.built {
		return errors.New("container already built")
	}

	c.calibrator = NewCalibrator(c.cfg, c.logger, c.monitor)
	c.calibration = c.calibrator.Calibrate(ctx, c.cfg.Symbol, c.cfg.Strategy.TakerFeeRate)

	if err := c.buildCoreServices(); err != nil {
		return fmt.Errorf("build core services failed: %w", err)
	}

	c.registerLifecycleComponents()
	c.built = true
	c.logger.Info("container built successfully",
		zap.String("symbol", c.cfg.Symbol),
		zap.Bool("offline", c.cfg.Gateway.Offline))
	return nil
}

func (c *Container) buildCoreServices() error {
	params, err := c.calibration.Params(c.cfg.Strategy.Gamma, c.cfg.Strategy.TEnd)
	if err != nil {
		return fmt.Errorf("calibrated parameters: %w", err)
	}
	c.quotes, err = avellaneda.NewQuoteEngine(params, c.cfg.Strategy.GridSpacing, c.logger.Logger,
		avellaneda.WithMonitor(c.monitor),
		avellaneda.WithQuoteLogAtInfo(c.cfg.Strategy.QuoteLogAtInfo))
	if err != nil {
		return fmt.Errorf("quote engine: %w", err)
	}
	c.logger.Info("avellaneda quote engine ready",
		zap.Float64("gamma", params.Gamma),
		zap.Float64("eta", params.Eta),
		zap.Float64("sigma", params.Sigma),
		zap.Float64("t_end", params.TEnd),
		zap.Float64("grid_spacing", c.cfg.Strategy.GridSpacing))

	c.paper, err = sim.NewPaperEngine(sim.PaperConfig{
		Symbol:            c.cfg.Symbol,
		GridSpacing:       c.cfg.Strategy.GridSpacing,
		InitialQuantity:   c.cfg.Strategy.InitialQuantity,
		PositionThreshold: c.cfg.Strategy.PositionThreshold,
		TickSize:          c.cfg.Paper.TickSize,
		StepSize:          c.cfg.Paper.StepSize,
		MinQty:            c.cfg.Paper.MinQty,
		MaxQty:            c.cfg.Paper.MaxQty,
		MinNotional:       c.cfg.Paper.MinNotional,
		Leverage:          c.cfg.Strategy.Leverage,
	}, risk.NowUTC, c.logger, c.monitor)
	if err != nil {
		return err
	}
	if c.cfg.Paper.StartPrice > 0 {
		c.paper.OnPrice(c.cfg.Paper.StartPrice)
	}

	strat, err := avellaneda.NewStrategy(c.quotes, c.paper, avellaneda.GridConfig{
		Symbol:            c.cfg.Symbol,
		InitialQuantity:   c.cfg.Strategy.InitialQuantity,
		PositionThreshold: c.cfg.Strategy.PositionThreshold,
		Cooldown:          c.cfg.Strategy.Cooldown(),
	}, risk.NowUTC, c.logger.Logger, c.monitor)
	if err != nil {
		return err
	}

	c.engine, err = engine.New(engine.Config{
		Symbol:       c.cfg.Symbol,
		TickInterval: c.cfg.Strategy.TickInterval(),
		CancelOnStop: true,
	}, engine.Components{Strategy: strat, Base: c.paper, Logger: c.logger})
	if err != nil {
		return err
	}
	c.prices = make(chan float64, 64)

	c.logger.Info("core services built")
	return nil
}

// registerLifecycleComponents 启动顺序：指标、行情、撮合、配置监听、引擎；停止时逆序
func (c *Container) registerLifecycleComponents() {
	if c.cfg.MetricsAddr != "" {
		c.lifecycle.Register(&httpServerComponent{
			name:    "metrics_server",
			handler: c.monitor.Handler(),
			addr:    c.cfg.MetricsAddr,
			logger:  c.logger,
		})
	}

	if !c.cfg.Gateway.Offline {
		feed := gateway.NewGateTickerFeed(c.cfg.Gateway.WSEndpoint, c.calibrator.CurrencyPair(c.cfg.Symbol), c.logger.Logger, c.monitor)
		c.lifecycle.Register(&loopComponent{
			name:   "ticker_feed",
			logger: c.logger,
			run:    func(ctx context.Context) error { return feed.Run(ctx, c.prices) },
		})
	}

	runner := &sim.Runner{Engine: c.paper, Prices: c.prices, Logger: c.logger}
	c.lifecycle.Register(&loopComponent{name: "paper_runner", logger: c.logger, run: runner.Run})

	if c.cfgPath != "" {
		c.lifecycle.Register(&loopComponent{name: "config_watcher", logger: c.logger, run: c.watchConfig})
	}

	c.lifecycle.Register(engineComponent{engine: c.engine})
}

// watchConfig 参数启动后固定，文件变化只提示重启
func (c *Container) watchConfig(ctx context.Context) error {
	w, err := config.NewWatcher(c.cfgPath, configWatchCooldown, c.logger.Logger)
	if err != nil {
		c.logger.Warn("config watcher disabled", zap.Error(err))
		<-ctx.Done()
		return ctx.Err()
	}
	defer w.Close()
	return w.Run(ctx, func(_ config.AppConfig, err error) {
		if err != nil {
			c.logger.Warn("config file changed but is invalid", zap.String("path", c.cfgPath), zap.Error(err))
			return
		}
		c.logger.Warn("config file changed, restart required to apply", zap.String("path", c.cfgPath))
	})
}

func (c *Container) Start(ctx context.Context) error {
	if !c.built {
		return errors.New("container not built")
	}
	c.logger.Info("starting container...")

	if err := c.lifecycle.StartAll(ctx); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}

	c.logger.Info("container started")
	return nil
}

// Stop 停止全部组件（引擎先停并撤单），然后输出纸面账户概况
func (c *Container) Stop() error {
	if !c.built {
		return nil
	}
	c.logger.Info("stopping container...")

	err := c.lifecycle.StopAll()
	if err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "stop"})
	}

	sum := c.paper.Summary()
	stats := c.engine.GetStatistics()
	c.logger.Info("paper session summary",
		zap.Float64("long", sum.LongPosition),
		zap.Float64("short", sum.ShortPosition),
		zap.Float64("net", sum.NetInventory),
		zap.Int("open_orders", sum.OpenOrders),
		zap.Float64("last_price", sum.LatestPrice),
		zap.Float64("unrealized_pnl", sum.UnrealizedPnL),
		zap.Float64("margin_used", sum.MarginUsed),
		zap.Int64("ticks", stats.TotalTicks),
		zap.Int64("tick_errors", stats.TotalErrors))
	return err
}

func (c *Container) HealthCheck() error {
	return c.lifecycle.CheckHealth()
}

// Done 引擎主循环退出时关闭
func (c *Container) Done() <-chan struct{} { return c.engine.Done() }

// Err 主循环异常退出的原因
func (c *Container) Err() error { return c.engine.Err() }

func (c *Container) Calibration() avellaneda.CalibrationResult { return c.calibration }

func (c *Container) Paper() *sim.PaperEngine { return c.paper }

func (c *Container) Engine() *engine.GridEngine { return c.engine }

func (c *Container) Monitor() *monitor.Monitor { return c.monitor }

// Prices 纸面撮合的价格入口；离线模式下由调用方推送
func (c *Container) Prices() chan<- float64 { return c.prices }
