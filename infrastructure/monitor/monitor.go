package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor Prometheus监控指标收集器。所有方法在 nil 接收者上是空操作，便于测试时省略。
type Monitor struct {
	registry *prometheus.Registry

	// 报价指标
	reservePrice prometheus.Gauge
	bidPrice     prometheus.Gauge
	askPrice     prometheus.Gauge
	delta        prometheus.Gauge
	inventory    prometheus.Gauge
	quotes       prometheus.Counter
	fallbacks    prometheus.Counter

	// 校准指标
	sigma          prometheus.Gauge
	eta            prometheus.Gauge
	candles        prometheus.Gauge
	sigmaDefaulted prometheus.Counter

	// 仓位指标
	position *prometheus.GaugeVec

	// 网格调整指标
	ticks         prometheus.Counter
	orderActions  *prometheus.CounterVec
	orderErrors   *prometheus.CounterVec
	cooldownSkips *prometheus.CounterVec

	// 系统指标
	restRequests *prometheus.CounterVec
	restErrors   *prometheus.CounterVec
	restLatency  *prometheus.HistogramVec
	wsReconnects prometheus.Counter
}

// Config 监控配置
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "ag",
		Subsystem: "grid",
	}
}

// New 创建新的Monitor实例，指标注册到独立的 registry。
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      name,
			Help:      help,
		})
	}
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      name,
			Help:      help,
		})
	}
	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}

	return &Monitor{
		registry: reg,

		reservePrice: gauge("reserve_price", "库存调整后的公允价格"),
		bidPrice:     gauge("best_bid", "模型买价"),
		askPrice:     gauge("best_ask", "模型卖价"),
		delta:        gauge("half_spread", "最优半价差"),
		inventory:    gauge("net_inventory", "净库存（多-空）"),
		quotes:       counter("quotes_total", "报价计算次数"),
		fallbacks:    counter("delta_fallbacks_total", "使用网格间距备用价差的次数"),

		sigma:          gauge("calibrated_sigma", "校准得到的单周期波动率"),
		eta:            gauge("calibrated_eta", "校准得到的交易成本系数"),
		candles:        gauge("calibration_candles", "校准使用的K线数量"),
		sigmaDefaulted: counter("sigma_defaults_total", "波动率回退到默认值的次数"),

		position: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "position",
			Help:      "各方向持仓",
		}, []string{"side"}),

		ticks:         counter("ticks_total", "网格调整 tick 次数"),
		orderActions:  counterVec("order_actions_total", "下单/撤单动作次数", "side", "action"),
		orderErrors:   counterVec("order_errors_total", "单边下单失败次数", "side"),
		cooldownSkips: counterVec("cooldown_skips_total", "因冷却跳过的次数", "side"),

		restRequests: counterVec("rest_requests_total", "REST请求总数", "action"),
		restErrors:   counterVec("rest_errors_total", "REST错误总数", "action"),
		restLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "rest_latency_seconds",
			Help:      "REST请求延迟（秒）",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		wsReconnects: counter("ws_reconnects_total", "WebSocket重连次数"),
	}
}

// 报价相关方法
func (m *Monitor) UpdateQuote(reserve, bid, ask, delta, inventory float64, fallback bool) {
	if m == nil {
		return
	}
	m.reservePrice.Set(reserve)
	m.bidPrice.Set(bid)
	m.askPrice.Set(ask)
	m.delta.Set(delta)
	m.inventory.Set(inventory)
	m.quotes.Inc()
	if fallback {
		m.fallbacks.Inc()
	}
}

// 校准相关方法
func (m *Monitor) UpdateCalibration(sigma, eta float64, candles int, sigmaDefaulted bool) {
	if m == nil {
		return
	}
	m.sigma.Set(sigma)
	m.eta.Set(eta)
	m.candles.Set(float64(candles))
	if sigmaDefaulted {
		m.sigmaDefaulted.Inc()
	}
}

// 仓位相关方法
func (m *Monitor) UpdatePositions(long, short float64) {
	if m == nil {
		return
	}
	m.position.WithLabelValues("long").Set(long)
	m.position.WithLabelValues("short").Set(short)
}

// 网格调整相关方法
func (m *Monitor) RecordTick() {
	if m == nil {
		return
	}
	m.ticks.Inc()
}

func (m *Monitor) RecordOrderAction(side, action string) {
	if m == nil {
		return
	}
	m.orderActions.WithLabelValues(side, action).Inc()
}

func (m *Monitor) RecordOrderError(side string) {
	if m == nil {
		return
	}
	m.orderErrors.WithLabelValues(side).Inc()
}

func (m *Monitor) RecordCooldownSkip(side string) {
	if m == nil {
		return
	}
	m.cooldownSkips.WithLabelValues(side).Inc()
}

// 系统相关方法
func (m *Monitor) RecordRESTRequest(action string) {
	if m == nil {
		return
	}
	m.restRequests.WithLabelValues(action).Inc()
}

func (m *Monitor) RecordRESTError(action string) {
	if m == nil {
		return
	}
	m.restErrors.WithLabelValues(action).Inc()
}

func (m *Monitor) RecordRESTLatency(action string, seconds float64) {
	if m == nil {
		return
	}
	m.restLatency.WithLabelValues(action).Observe(seconds)
}

func (m *Monitor) RecordWSReconnect() {
	if m == nil {
		return
	}
	m.wsReconnects.Inc()
}

// Handler 返回HTTP handler用于暴露指标
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回prometheus registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}
