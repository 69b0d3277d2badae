package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"drawdownwatch/internal/asset"
	"drawdownwatch/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// SchedulerConfig governs polling cadence.
type SchedulerConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	RunImmediately bool          `mapstructure:"run_immediately"`
	StartupDelay   time.Duration `mapstructure:"startup_delay"`
}

// StorageConfig locates the per-asset state and cache files.
type StorageConfig struct {
	Dir           string        `mapstructure:"dir"`
	HistoryMaxAge time.Duration `mapstructure:"history_max_age"`
}

// MonitorConfig holds the drawdown and threshold policy.
type MonitorConfig struct {
	Assets                 []string      `mapstructure:"assets"`
	BaselinePct            float64       `mapstructure:"baseline_pct"`
	DecayStepPct           float64       `mapstructure:"decay_step_pct"`
	DecayPeriod            time.Duration `mapstructure:"decay_period"`
	RearmStepPct           float64       `mapstructure:"rearm_step_pct"`
	PeakSamples            int           `mapstructure:"peak_samples"`
	Lookback               time.Duration `mapstructure:"lookback"`
	MaxConsecutiveFailures int           `mapstructure:"max_consecutive_failures"`
}

// SourcesConfig covers the upstream price APIs.
type SourcesConfig struct {
	AlphaVantage AlphaVantageConfig `mapstructure:"alphavantage"`
	CoinGecko    CoinGeckoConfig    `mapstructure:"coingecko"`
}

// AlphaVantageConfig serves the equity index proxy.
type AlphaVantageConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Symbol  string        `mapstructure:"symbol"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CoinGeckoConfig serves the crypto asset.
type CoinGeckoConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	CoinID     string        `mapstructure:"coin_id"`
	VsCurrency string        `mapstructure:"vs_currency"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// AlertingConfig defines the notification sink.
type AlertingConfig struct {
	NotifyOnStart bool        `mapstructure:"notify_on_start"`
	Email         EmailConfig `mapstructure:"email"`
}

// EmailConfig 描述 SMTP 告警参数。缺少任一凭据时只写日志。
type EmailConfig struct {
	Sender    string        `mapstructure:"sender"`
	Password  string        `mapstructure:"password"`
	Recipient string        `mapstructure:"recipient"`
	SMTPHost  string        `mapstructure:"smtp_host"`
	SMTPPort  int           `mapstructure:"smtp_port"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// ExportConfig sets chart dimensions for the export command.
type ExportConfig struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

// legacyEnv binds the environment names the service has always read.
var legacyEnv = map[string]string{
	"sources.alphavantage.api_key": "ALPHA_VANTAGE_API_KEY",
	"sources.coingecko.api_key":    "COIN_GECKO_API_KEY",
	"alerting.email.sender":        "SENDER_EMAIL",
	"alerting.email.password":      "SENDER_PASSWORD",
	"alerting.email.recipient":     "RECIPIENT_EMAIL",
	"scheduler.interval":           "CHECK_INTERVAL",
	"logging.level":                "LOG_LEVEL",
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("DRAWDOWN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func bindLegacyEnv(v *viper.Viper) error {
	for key, legacy := range legacyEnv {
		prefixed := "DRAWDOWN_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return fmt.Errorf("bind env %s: %w", legacy, err)
		}
	}
	return nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "drawdownwatch")
	v.SetDefault("app.environment", "production")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("scheduler.interval", "1h")
	v.SetDefault("scheduler.run_immediately", true)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("storage.dir", ".")
	v.SetDefault("storage.history_max_age", "24h")

	v.SetDefault("monitor.assets", []string{string(asset.EquityIndex), string(asset.Crypto)})
	v.SetDefault("monitor.baseline_pct", 5.0)
	v.SetDefault("monitor.decay_step_pct", 1.0)
	v.SetDefault("monitor.decay_period", "24h")
	v.SetDefault("monitor.rearm_step_pct", 1.0)
	v.SetDefault("monitor.peak_samples", 10)
	v.SetDefault("monitor.lookback", "2160h")
	v.SetDefault("monitor.max_consecutive_failures", 0)

	v.SetDefault("sources.alphavantage.base_url", "https://www.alphavantage.co")
	v.SetDefault("sources.alphavantage.symbol", "SPY")
	v.SetDefault("sources.alphavantage.timeout", "10s")

	v.SetDefault("sources.coingecko.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("sources.coingecko.coin_id", "bitcoin")
	v.SetDefault("sources.coingecko.vs_currency", "usd")
	v.SetDefault("sources.coingecko.timeout", "10s")

	v.SetDefault("alerting.notify_on_start", true)
	v.SetDefault("alerting.email.smtp_host", "smtp.gmail.com")
	v.SetDefault("alerting.email.smtp_port", 587)
	v.SetDefault("alerting.email.timeout", "30s")

	v.SetDefault("export.width", 1280)
	v.SetDefault("export.height", 720)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			secondsHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Monitor.BaselinePct <= 0 {
		return fmt.Errorf("monitor.baseline_pct must be greater than zero")
	}
	if c.Monitor.DecayStepPct < 0 || c.Monitor.RearmStepPct < 0 {
		return fmt.Errorf("monitor.decay_step_pct and monitor.rearm_step_pct cannot be negative")
	}
	if c.Monitor.DecayPeriod <= 0 {
		return fmt.Errorf("monitor.decay_period must be greater than zero")
	}
	if c.Monitor.PeakSamples < 1 {
		return fmt.Errorf("monitor.peak_samples must be at least 1")
	}
	if c.Monitor.Lookback < 24*time.Hour {
		return fmt.Errorf("monitor.lookback must cover at least one day")
	}
	if c.Monitor.MaxConsecutiveFailures < 0 {
		return fmt.Errorf("monitor.max_consecutive_failures cannot be negative")
	}
	ids, err := c.AssetIDs()
	if err != nil {
		return fmt.Errorf("monitor.assets: %w", err)
	}
	if len(ids) == 0 {
		return fmt.Errorf("monitor.assets must list at least one asset")
	}
	if c.Export.Width <= 0 || c.Export.Height <= 0 {
		return fmt.Errorf("export.width and export.height must be greater than zero")
	}
	return nil
}

// AssetIDs resolves the configured asset keys.
func (c *Config) AssetIDs() ([]asset.ID, error) {
	return asset.ParseList(c.Monitor.Assets)
}
