package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"exchange-sim-go/infrastructure/logger"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env         string                  `yaml:"env"`
	MetricsAddr string                  `yaml:"metricsAddr"`
	StreamAddr  string                  `yaml:"streamAddr"`
	Logging     logger.Config           `yaml:"logging"`
	Engine      EngineConfig            `yaml:"engine"`
	Fees        FeesConfig              `yaml:"fees"`
	Markets     map[string]MarketConfig `yaml:"markets"`
}

// EngineConfig 撮合引擎开关。
type EngineConfig struct {
	// DepleteOffers 同一快照内是否按订单消耗档位数量。
	// false 时同档可能被多个订单重复成交（近似行为）。
	DepleteOffers bool `yaml:"depleteOffers"`
	EventBuffer   int  `yaml:"eventBuffer"`
}

// FeesConfig 佣金费率（基点）。
type FeesConfig struct {
	DefaultBps float64            `yaml:"defaultBps"`
	Markets    map[string]float64 `yaml:"markets"`
}

// MarketConfig 市场计数基数（一个报价/数量单位对应的计数）。
type MarketConfig struct {
	PriceBasis  int64 `yaml:"priceBasis"`
	VolumeBasis int64 `yaml:"volumeBasis"`
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
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides listen addresses from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("SIM_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("SIM_STREAM_ADDR"); v != "" {
		cfg.StreamAddr = v
	}
	return cfg, Validate(cfg)
}

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if len(cfg.Markets) == 0 {
		return errors.New("markets config is required")
	}
	for sym, mc := range cfg.Markets {
		if mc.PriceBasis <= 0 {
			return fmt.Errorf("market %s priceBasis must be > 0", sym)
		}
		if mc.VolumeBasis <= 0 {
			return fmt.Errorf("market %s volumeBasis must be > 0", sym)
		}
	}
	if cfg.Fees.DefaultBps < 0 {
		return errors.New("fees.defaultBps must be >= 0")
	}
	for sym, bps := range cfg.Fees.Markets {
		if bps < 0 {
			return fmt.Errorf("fees for market %s must be >= 0", sym)
		}
	}
	if cfg.Engine.EventBuffer < 0 {
		return errors.New("engine.eventBuffer must be >= 0")
	}
	return nil
}
