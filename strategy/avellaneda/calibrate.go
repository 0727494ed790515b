package avellaneda

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"avellaneda-grid-go/infrastructure/monitor"
	"avellaneda-grid-go/market"
)

const (
	// KCalib 校准常数，eta = KCalib / takerFee。
	KCalib = 0.05
	// DefaultEta 费率非正时的高成本回退值。
	DefaultEta = 500.0
	// DefaultSigma 波动率过小或计算失败时的安全默认值。
	DefaultSigma = 0.005
	// MinSigma 低于此值视为计算失败。
	MinSigma = 1e-5

	DefaultCandleInterval = "1h"
	DefaultCandleLimit    = 720 // 约 30 天小时线
	DefaultFetchTimeout   = 10 * time.Second
	DefaultQuoteAsset     = "USDT"
)

// EstimateEta maps a taker fee rate to the trading-cost coefficient.
func EstimateEta(takerFeeRate float64) float64 {
	if takerFeeRate > 0 {
		return KCalib / takerFeeRate
	}
	return DefaultEta
}

// CandleSource fetches klines ordered ascending by time.
type CandleSource interface {
	FetchCandles(ctx context.Context, currencyPair, interval string, limit int) ([]market.Kline, error)
}

// CalibrationResult is the calibrated (sigma, eta) pair plus how it was derived.
type CalibrationResult struct {
	Sigma          float64
	Eta            float64
	Candles        int
	SigmaDefaulted bool
	EtaDefaulted   bool
}

// Params combines the result with the operator-fixed gamma and T.
func (r CalibrationResult) Params(gamma, tEnd float64) (ModelParameters, error) {
	return NewModelParameters(gamma, r.Eta, r.Sigma, tEnd)
}

// CalibratorConfig 控制历史数据抓取。
type CalibratorConfig struct {
	Interval   string
	Limit      int
	Timeout    time.Duration
	QuoteAsset string
}

func (c *CalibratorConfig) applyDefaults() {
	if c.Interval == "" {
		c.Interval = DefaultCandleInterval
	}
	if c.Limit <= 0 {
		c.Limit = DefaultCandleLimit
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultFetchTimeout
	}
	if c.QuoteAsset == "" {
		c.QuoteAsset = DefaultQuoteAsset
	}
}

// Calibrator derives sigma and eta once at startup. It never fails: every
// data problem degrades to default parameters.
type Calibrator struct {
	source  CandleSource
	cfg     CalibratorConfig
	logger  *zap.Logger
	monitor *monitor.Monitor
}

// NewCalibrator builds a Calibrator; a nil source behaves like an empty one.
func NewCalibrator(source CandleSource, cfg CalibratorConfig, logger *zap.Logger, mon *monitor.Monitor) *Calibrator {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calibrator{source: source, cfg: cfg, logger: logger, monitor: mon}
}

// CurrencyPair returns "<COIN>_<QUOTE>"; a symbol that already names a pair is kept.
func (c *Calibrator) CurrencyPair(coin string) string {
	coin = strings.ToUpper(strings.TrimSpace(coin))
	if strings.Contains(coin, "_") {
		return coin
	}
	return coin + "_" + strings.ToUpper(c.cfg.QuoteAsset)
}

// Calibrate fetches history for coin and returns usable parameters.
func (c *Calibrator) Calibrate(ctx context.Context, coin string, takerFeeRate float64) CalibrationResult {
	pair := c.CurrencyPair(coin)
	candles := c.fetch(ctx, pair)

	var res CalibrationResult
	res.Candles = len(candles)

	sigma, err := market.HistoricalVolatility(candles)
	if errors.Is(err, market.ErrInsufficientData) {
		c.logger.Warn("not enough klines to compute volatility",
			zap.String("currency_pair", pair),
			zap.Int("candles", len(candles)))
	}
	if sigma < MinSigma {
		c.logger.Warn("volatility too small or failed, using default",
			zap.Float64("computed_sigma", sigma),
			zap.Float64("default_sigma", DefaultSigma))
		sigma = DefaultSigma
		res.SigmaDefaulted = true
	}
	res.Sigma = sigma

	res.Eta = EstimateEta(takerFeeRate)
	res.EtaDefaulted = takerFeeRate <= 0

	c.logger.Info("avellaneda parameters calibrated",
		zap.String("currency_pair", pair),
		zap.Int("candles", res.Candles),
		zap.String("sigma", formatFixed(res.Sigma, 8)),
		zap.String("eta", formatFixed(res.Eta, 2)),
		zap.String("taker_fee", formatPercent(takerFeeRate)))
	c.monitor.UpdateCalibration(res.Sigma, res.Eta, res.Candles, res.SigmaDefaulted)
	return res
}

func (c *Calibrator) fetch(ctx context.Context, pair string) []market.Kline {
	if c.source == nil {
		return nil
	}
	fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	candles, err := c.source.FetchCandles(fetchCtx, pair, c.cfg.Interval, c.cfg.Limit)
	if err != nil {
		c.logger.Error("fetch klines failed",
			zap.String("currency_pair", pair),
			zap.String("interval", c.cfg.Interval),
			zap.Int("limit", c.cfg.Limit),
			zap.Error(err))
		return nil
	}
	market.SortKlines(candles)
	return candles
}
