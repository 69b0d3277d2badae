package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"drawdownwatch/internal/asset"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  environment: test\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Scheduler.Interval != time.Hour {
		t.Fatalf("默认间隔应为 1h，得到 %s", cfg.Scheduler.Interval)
	}
	if !cfg.Scheduler.RunImmediately {
		t.Fatalf("expected run_immediately default true")
	}
	if cfg.Monitor.BaselinePct != 5 || cfg.Monitor.DecayStepPct != 1 || cfg.Monitor.RearmStepPct != 1 {
		t.Fatalf("unexpected threshold policy: %+v", cfg.Monitor)
	}
	if cfg.Monitor.PeakSamples != 10 {
		t.Fatalf("expected 10 peak samples, got %d", cfg.Monitor.PeakSamples)
	}
	if cfg.Monitor.Lookback != 90*24*time.Hour {
		t.Fatalf("expected 90 day lookback, got %s", cfg.Monitor.Lookback)
	}
	if cfg.Alerting.Email.SMTPHost != "smtp.gmail.com" || cfg.Alerting.Email.SMTPPort != 587 {
		t.Fatalf("unexpected smtp defaults: %+v", cfg.Alerting.Email)
	}

	ids, err := cfg.AssetIDs()
	if err != nil {
		t.Fatalf("AssetIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != asset.EquityIndex || ids[1] != asset.Crypto {
		t.Fatalf("unexpected default assets: %v", ids)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfig(t, `
scheduler:
  interval: 15m
  run_immediately: false
monitor:
  assets: [btc]
  baseline_pct: 4
  peak_samples: 5
storage:
  dir: /var/lib/drawdownwatch
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scheduler.Interval != 15*time.Minute || cfg.Scheduler.RunImmediately {
		t.Fatalf("scheduler overrides not applied: %+v", cfg.Scheduler)
	}
	if cfg.Monitor.BaselinePct != 4 || cfg.Monitor.PeakSamples != 5 {
		t.Fatalf("monitor overrides not applied: %+v", cfg.Monitor)
	}
	if cfg.Storage.Dir != "/var/lib/drawdownwatch" {
		t.Fatalf("unexpected storage dir %q", cfg.Storage.Dir)
	}
	ids, _ := cfg.AssetIDs()
	if len(ids) != 1 || ids[0] != asset.Crypto {
		t.Fatalf("expected alias btc to resolve to bitcoin, got %v", ids)
	}
}

func TestLoadLegacyEnvironment(t *testing.T) {
	t.Setenv("ALPHA_VANTAGE_API_KEY", "av-key")
	t.Setenv("COIN_GECKO_API_KEY", "cg-key")
	t.Setenv("SENDER_EMAIL", "bot@example.com")
	t.Setenv("SENDER_PASSWORD", "secret")
	t.Setenv("RECIPIENT_EMAIL", "me@example.com")
	t.Setenv("CHECK_INTERVAL", "1800")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sources.AlphaVantage.APIKey != "av-key" || cfg.Sources.CoinGecko.APIKey != "cg-key" {
		t.Fatalf("api keys not bound: %+v", cfg.Sources)
	}
	email := cfg.Alerting.Email
	if email.Sender != "bot@example.com" || email.Password != "secret" || email.Recipient != "me@example.com" {
		t.Fatalf("email env not bound: %+v", email)
	}
	if cfg.Scheduler.Interval != 30*time.Minute {
		t.Fatalf("CHECK_INTERVAL 按秒解析，应为 30m，得到 %s", cfg.Scheduler.Interval)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected LOG_LEVEL debug, got %q", cfg.Logging.Level)
	}
}

func TestLoadPrefixedEnvironmentWins(t *testing.T) {
	t.Setenv("CHECK_INTERVAL", "1800")
	t.Setenv("DRAWDOWN_SCHEDULER_INTERVAL", "5m")
	t.Setenv("DRAWDOWN_MONITOR_ASSETS", "sp500")

	cfg, err := Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scheduler.Interval != 5*time.Minute {
		t.Fatalf("expected prefixed interval to win, got %s", cfg.Scheduler.Interval)
	}
	ids, _ := cfg.AssetIDs()
	if len(ids) != 1 || ids[0] != asset.EquityIndex {
		t.Fatalf("unexpected assets %v", ids)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"zero interval":    "scheduler:\n  interval: 0s\n",
		"unknown asset":    "monitor:\n  assets: [gold]\n",
		"no assets":        "monitor:\n  assets: []\n",
		"zero baseline":    "monitor:\n  baseline_pct: 0\n",
		"negative decay":   "monitor:\n  decay_step_pct: -1\n",
		"no peak samples":  "monitor:\n  peak_samples: 0\n",
		"short lookback":   "monitor:\n  lookback: 1h\n",
		"negative retries": "monitor:\n  max_consecutive_failures: -2\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}
