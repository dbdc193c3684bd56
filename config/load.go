// Package config 负责加载/校验 YAML 配置，并支持敏感字段的环境变量覆盖。
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"hyper-mirror-go/infrastructure/logger"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env         string                   `yaml:"env"`
	DryRun      bool                     `yaml:"dryRun"`      // true 时目标交易所使用模拟撮合引擎
	Leverage    int                      `yaml:"leverage"`    // 启动时为每个交易对设置的杠杆
	MetricsAddr string                   `yaml:"metricsAddr"` // Prometheus 监听地址，空则关闭
	Source      SourceConfig             `yaml:"source"`
	Gateway     GatewayConfig            `yaml:"gateway"`
	Reconcile   ReconcileConfig          `yaml:"reconcile"`
	Faker       FakerConfig              `yaml:"faker"`
	Alert       AlertConfig              `yaml:"alert"`
	Logger      logger.Config            `yaml:"logger"`
	Symbols     map[string]SymbolMapping `yaml:"symbols"` // key 为源币种（BTC/ETH/...）
}

// SourceConfig 源交易所（hyperliquid）连接参数。
type SourceConfig struct {
	UserAddress string `yaml:"userAddress"` // 被跟随的钱包地址
	WSURL       string `yaml:"wsURL"`       // 留空使用主网默认
	InfoURL     string `yaml:"infoURL"`
}

// GatewayConfig 目标交易所（币安合约）凭证。
type GatewayConfig struct {
	APIKey    string `yaml:"apiKey"`
	APISecret string `yaml:"apiSecret"`
}

// ReconcileConfig 对账循环参数。
type ReconcileConfig struct {
	IntervalSeconds int `yaml:"intervalSeconds"` // 默认 5
}

// FakerConfig 模拟撮合引擎费率（基点）。
type FakerConfig struct {
	MakerFeeBps float64 `yaml:"makerFeeBps"`
	TakerFeeBps float64 `yaml:"takerFeeBps"`
}

// AlertConfig 告警通道参数。
type AlertConfig struct {
	WebhookURL      string `yaml:"webhookURL"`      // feishu webhook，空则只走日志通道
	ThrottleSeconds int    `yaml:"throttleSeconds"` // 相同告警的最小间隔，默认 60
}

// SymbolMapping 源币种到目标交易对的静态映射。
// 目标下单数量 = 源数量 / ScaleFactor。
type SymbolMapping struct {
	Symbol      string  `yaml:"symbol"`      // 目标交易对，例如 BTCUSDC
	Tolerance   float64 `yaml:"tolerance"`   // 允许的净持仓偏差（源侧单位）
	ScaleFactor float64 `yaml:"scaleFactor"` // 缩小倍数
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides sensitive fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		cfg.Gateway.APIKey = v
	}
	if v := os.Getenv("BINANCE_API_SECRET"); v != "" {
		cfg.Gateway.APISecret = v
	}
	if v := os.Getenv("TARGET_ADDRESS"); v != "" {
		cfg.Source.UserAddress = v
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		cfg.Alert.WebhookURL = v
	}
	return cfg, Validate(cfg)
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Reconcile.IntervalSeconds <= 0 {
		cfg.Reconcile.IntervalSeconds = 5
	}
	if cfg.Alert.ThrottleSeconds <= 0 {
		cfg.Alert.ThrottleSeconds = 60
	}
	if cfg.Leverage <= 0 {
		cfg.Leverage = 20
	}
	if cfg.Logger.Level == "" {
		cfg.Logger = logger.DefaultConfig()
	}
}

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Source.UserAddress == "" {
		return errors.New("source.userAddress is required (or TARGET_ADDRESS env)")
	}
	if !cfg.DryRun && (cfg.Gateway.APIKey == "" || cfg.Gateway.APISecret == "") {
		return errors.New("gateway.apiKey/apiSecret is required outside dryRun (or env overrides)")
	}
	if len(cfg.Symbols) == 0 {
		return errors.New("symbols config is required")
	}
	for coin, sm := range cfg.Symbols {
		if sm.Symbol == "" {
			return fmt.Errorf("symbol mapping %s: symbol is required", coin)
		}
		if sm.ScaleFactor <= 0 {
			return fmt.Errorf("symbol mapping %s: scaleFactor must be > 0", coin)
		}
		if sm.Tolerance <= 0 {
			return fmt.Errorf("symbol mapping %s: tolerance must be > 0", coin)
		}
	}
	return nil
}
