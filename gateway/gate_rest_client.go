package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"avellaneda-grid-go/infrastructure/monitor"
	"avellaneda-grid-go/market"
)

const (
	GateRESTEndpoint = "https://api.gateio.ws/api/v4"
	candlesPath      = "/spot/candlesticks"
	actionCandles    = "candles"
)

var (
	ErrBadStatus       = errors.New("unexpected http status")
	ErrMalformedCandle = errors.New("malformed candle")
)

// RESTConfig Gate.io 现货 REST 客户端配置。
type RESTConfig struct {
	BaseURL string
	Timeout time.Duration
	// resty 日志转到 zap；为空时丢弃
	Logger *zap.Logger
	// 限流
	Rate  float64
	Burst int
	// 熔断：连续失败次数与打开后的冷却时间
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

func (c *RESTConfig) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = GateRESTEndpoint
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Rate <= 0 {
		c.Rate = 5
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 3
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = 30 * time.Second
	}
}

// GateRESTClient 只读行情客户端（K线），带限流和熔断。
type GateRESTClient struct {
	http    *resty.Client
	limiter RateLimiter
	breaker *gobreaker.CircuitBreaker
	monitor *monitor.Monitor
}

func NewGateRESTClient(cfg RESTConfig, mon *monitor.Monitor) *GateRESTClient {
	cfg.applyDefaults()
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetLogger(cfg.Logger.Sugar()).
		SetHeader("Accept", "application/json")

	st := gobreaker.Settings{Name: "gate-rest"}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= cfg.BreakerFailures }
	st.Timeout = cfg.BreakerTimeout

	return &GateRESTClient{
		http:    client,
		limiter: NewTokenBucketLimiter(cfg.Rate, cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker(st),
		monitor: mon,
	}
}

// gateError Gate.io 错误响应体
type gateError struct {
	Label   string `json:"label"`
	Message string `json:"message"`
}

// FetchCandles 调用 /spot/candlesticks，返回按时间升序的K线。
func (c *GateRESTClient) FetchCandles(ctx context.Context, currencyPair, interval string, limit int) ([]market.Kline, error) {
	if currencyPair == "" {
		return nil, errors.New("currency pair required")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	c.monitor.RecordRESTRequest(actionCandles)
	start := time.Now()

	out, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"currency_pair": currencyPair,
				"interval":      interval,
				"limit":         strconv.Itoa(limit),
			}).
			Get(candlesPath)
		if err != nil {
			return nil, err
		}
		if !resp.IsSuccess() {
			var ge gateError
			_ = json.Unmarshal(resp.Body(), &ge)
			return nil, fmt.Errorf("%w: %d %s %s", ErrBadStatus, resp.StatusCode(), ge.Label, ge.Message)
		}
		return parseCandles(resp.Body())
	})
	c.monitor.RecordRESTLatency(actionCandles, time.Since(start).Seconds())
	if err != nil {
		c.monitor.RecordRESTError(actionCandles)
		return nil, fmt.Errorf("fetch candles %s: %w", currencyPair, err)
	}
	ks := out.([]market.Kline)
	market.SortKlines(ks)
	return ks, nil
}

// BreakerState 熔断器状态，供日志/诊断
func (c *GateRESTClient) BreakerState() string {
	return c.breaker.State().String()
}

// parseCandles 解析 [timestamp, volume_quote, close, high, low, open, volume_base?, closed?]
func parseCandles(body []byte) ([]market.Kline, error) {
	var rows [][]string
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCandle, err)
	}
	ks := make([]market.Kline, 0, len(rows))
	for i, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("%w: row %d has %d fields", ErrMalformedCandle, i, len(row))
		}
		sec, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d timestamp %q", ErrMalformedCandle, i, row[0])
		}
		var vals [4]float64
		for j, idx := range []int{5, 3, 4, 2} { // open, high, low, close
			d, err := decimal.NewFromString(row[idx])
			if err != nil {
				return nil, fmt.Errorf("%w: row %d field %d %q", ErrMalformedCandle, i, idx, row[idx])
			}
			vals[j] = d.InexactFloat64()
		}
		ks = append(ks, market.Kline{
			Open:  vals[0],
			High:  vals[1],
			Low:   vals[2],
			Close: vals[3],
			Ts:    time.Unix(sec, 0).UTC(),
		})
	}
	return ks, nil
}
