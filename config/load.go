package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"avellaneda-grid-go/infrastructure/logger"
)

// AppConfig holds the main runtime configuration. It is fixed at startup.
type AppConfig struct {
	Symbol      string            `yaml:"symbol" default:"XRP" validate:"required"`
	Strategy    StrategyConfig    `yaml:"strategy"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Gateway     GatewayConfig     `yaml:"gateway"`
	Paper       PaperConfig       `yaml:"paper"`
	Log         logger.Config     `yaml:"log"`
	MetricsAddr string            `yaml:"metricsAddr" default:":9108"`
}

// StrategyConfig Avellaneda 网格参数
type StrategyConfig struct {
	Gamma             float64 `yaml:"gamma" default:"1.0" validate:"gt=0"`
	TEnd              float64 `yaml:"tEnd" default:"1" validate:"gt=0"` // 时间视野（小时）
	TakerFeeRate      float64 `yaml:"takerFeeRate" default:"0.0005" validate:"lt=1"` // 非正（含返佣）时 eta 取 500
	GridSpacing       float64 `yaml:"gridSpacing" default:"0.0006" validate:"gt=0,lt=1"` // 备用价差基准
	InitialQuantity   float64 `yaml:"initialQuantity" default:"1" validate:"gt=0"`
	Leverage          int     `yaml:"leverage" default:"20" validate:"gte=1,lte=125"`
	PositionThreshold float64 `yaml:"positionThreshold" default:"500" validate:"gt=0"`
	CooldownSeconds   int     `yaml:"cooldownSeconds" default:"60" validate:"gte=0"`
	TickIntervalMs    int     `yaml:"tickIntervalMs" default:"1000" validate:"gte=10"`
	QuoteLogAtInfo    bool    `yaml:"quoteLogAtInfo"`
}

// Cooldown 下单冷却时间
func (s StrategyConfig) Cooldown() time.Duration {
	return time.Duration(s.CooldownSeconds) * time.Second
}

// TickInterval 网格调整间隔
func (s StrategyConfig) TickInterval() time.Duration {
	return time.Duration(s.TickIntervalMs) * time.Millisecond
}

// CalibrationConfig 历史K线抓取参数
type CalibrationConfig struct {
	BaseURL    string        `yaml:"baseURL" default:"https://api.gateio.ws/api/v4" validate:"url"`
	Interval   string        `yaml:"interval" default:"1h" validate:"oneof=10s 1m 5m 15m 30m 1h 4h 8h 1d 7d"`
	Limit      int           `yaml:"limit" default:"720" validate:"gte=2,lte=1000"`
	Timeout    time.Duration `yaml:"timeout" default:"10s" validate:"gt=0"`
	QuoteAsset string        `yaml:"quoteAsset" default:"USDT" validate:"required"`
}

// GatewayConfig 行情连接参数
type GatewayConfig struct {
	WSEndpoint      string        `yaml:"wsEndpoint" default:"wss://api.gateio.ws/ws/v4/" validate:"required"`
	RESTRate        float64       `yaml:"restRate" default:"5" validate:"gt=0"`
	RESTBurst       int           `yaml:"restBurst" default:"1" validate:"gte=1"`
	BreakerFailures uint32        `yaml:"breakerFailures" default:"3" validate:"gte=1"`
	BreakerTimeout  time.Duration `yaml:"breakerTimeout" default:"30s" validate:"gt=0"`
	// 为 true 时不连接 websocket，只用 paper.startPrice
	Offline bool `yaml:"offline"`
}

// PaperConfig 纸面撮合参数
type PaperConfig struct {
	StartPrice float64 `yaml:"startPrice" validate:"gte=0"`
	TickSize   float64 `yaml:"tickSize" default:"0.0001" validate:"gte=0"`
	StepSize   float64 `yaml:"stepSize" validate:"gte=0"`

	// 交易所下单下限；0 表示不限制
	MinQty      float64 `yaml:"minQty" validate:"gte=0"`
	MaxQty      float64 `yaml:"maxQty" validate:"gte=0"`
	MinNotional float64 `yaml:"minNotional" validate:"gte=0"`
}

// Default 返回全部使用默认值的配置。
func Default() (AppConfig, error) {
	var cfg AppConfig
	if err := defaults.Set(&cfg); err != nil {
		return cfg, fmt.Errorf("apply defaults: %w", err)
	}
	return cfg, nil
}

// Load reads YAML config from path on top of the defaults and validates it.
func Load(path string) (AppConfig, error) {
	cfg, err := Default()
	if err != nil {
		return cfg, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads .env (if present) and the config, then applies AG_* env vars.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, Validate(cfg)
}

func applyEnv(cfg *AppConfig) error {
	if v := strings.TrimSpace(os.Getenv("AG_SYMBOL")); v != "" {
		cfg.Symbol = strings.ToUpper(v)
	}
	if v := strings.TrimSpace(os.Getenv("AG_TAKER_FEE_RATE")); v != "" {
		fee, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("AG_TAKER_FEE_RATE: %w", err)
		}
		cfg.Strategy.TakerFeeRate = fee
	}
	if v := strings.TrimSpace(os.Getenv("AG_METRICS_ADDR")); v != "" {
		cfg.MetricsAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("AG_LOG_LEVEL")); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	return nil
}

// ErrInvalid 用于参数验证错误。
type ErrInvalid string

func (e ErrInvalid) Error() string { return string(e) }

var errNoSymbol = errors.New("symbol is required")
