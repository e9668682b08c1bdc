package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	DefaultRateAPIURL = "https://api.exchangerate-api.com/v4/latest/USD"

	defaultAlertThresholdPct = "10"
	defaultAlertWindowDays   = 7
	defaultRefreshInterval   = 6 * time.Hour
)

// Config is the runtime configuration of the folio daemon.
type Config struct {
	LedgerDir         string
	RateAPIURL        string
	QuotePlatform     string // binance or bybit
	RefreshInterval   time.Duration
	AlertThresholdPct decimal.Decimal
	AlertWindowDays   int
	KafkaBrokers      []string
}

type configTmp struct {
	LedgerDir            string        `yaml:"ledger_dir"`
	RateAPIURL           string        `yaml:"rate_api_url,omitempty"`
	QuotePlatform        string        `yaml:"quote_platform,omitempty"`
	RefreshInterval      time.Duration `yaml:"refresh_interval,omitempty"`
	AlertThresholdPctStr string        `yaml:"alert_threshold_pct,omitempty"`
	AlertWindowDays      int           `yaml:"alert_window_days,omitempty"`
	KafkaBrokers         []string      `yaml:"kafka_brokers,omitempty"`
}

// Get loads configuration from the yaml file given with --config, or from
// CLI flags when no file is provided.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	ledgerDir := flag.String("ledgerdir", "./wal/transactions", "directory for the transaction ledger")
	rateURL := flag.String("rateapi", DefaultRateAPIURL, "exchange rate API endpoint")
	platform := flag.String("platform", "binance", "quote platform: binance or bybit")
	interval := flag.Duration("refreshinterval", defaultRefreshInterval, "rate and price refresh interval")
	threshold := flag.String("alertthreshold", defaultAlertThresholdPct, "percent move that triggers an alert")
	window := flag.Int("alertwindow", defaultAlertWindowDays, "alert lookback window in days")
	flag.Parse()

	if *configPath != "" {
		return getYaml(*configPath)
	}

	thresholdPct, err := decimal.NewFromString(*threshold)
	if err != nil {
		return Config{}, fmt.Errorf("invalid --alertthreshold provided, --alertthreshold=%s", *threshold)
	}

	cfg := Config{
		LedgerDir:         *ledgerDir,
		RateAPIURL:        *rateURL,
		QuotePlatform:     strings.ToLower(*platform),
		RefreshInterval:   *interval,
		AlertThresholdPct: thresholdPct,
		AlertWindowDays:   *window,
	}
	return cfg, validate(cfg)
}

func getYaml(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp configTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, err
	}

	cfg := Config{
		LedgerDir:       tmp.LedgerDir,
		RateAPIURL:      tmp.RateAPIURL,
		QuotePlatform:   strings.ToLower(tmp.QuotePlatform),
		RefreshInterval: tmp.RefreshInterval,
		AlertWindowDays: tmp.AlertWindowDays,
		KafkaBrokers:    tmp.KafkaBrokers,
	}

	if cfg.LedgerDir == "" {
		cfg.LedgerDir = "./wal/transactions"
	}
	if cfg.RateAPIURL == "" {
		cfg.RateAPIURL = DefaultRateAPIURL
	}
	if cfg.QuotePlatform == "" {
		cfg.QuotePlatform = "binance"
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = defaultRefreshInterval
	}
	if cfg.AlertWindowDays == 0 {
		cfg.AlertWindowDays = defaultAlertWindowDays
	}

	if tmp.AlertThresholdPctStr == "" {
		cfg.AlertThresholdPct = decimal.RequireFromString(defaultAlertThresholdPct)
	} else {
		threshold, err := decimal.NewFromString(tmp.AlertThresholdPctStr)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'alert_threshold_pct' param in yaml config (must be a decimal), error: %w", err)
		}
		cfg.AlertThresholdPct = threshold
	}

	return cfg, validate(cfg)
}

func validate(cfg Config) error {
	if cfg.QuotePlatform != "binance" && cfg.QuotePlatform != "bybit" {
		return fmt.Errorf("unsupported quote platform %q", cfg.QuotePlatform)
	}
	if cfg.AlertWindowDays < 1 {
		return fmt.Errorf("alert window must be at least one day")
	}
	if cfg.AlertThresholdPct.IsNegative() {
		return fmt.Errorf("alert threshold must not be negative")
	}
	return nil
}
