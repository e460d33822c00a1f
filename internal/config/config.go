// Package config loads the process-wide Config once at startup from the
// environment described in spec.md §6, following the same load-defaults-
// then-apply-env-overrides shape as the teacher pack's config loader:
// Default() returns a struct literal of sane defaults, applyEnv mutates it
// field-by-field from os.Getenv, and Load ties the two together.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/LeeXN/finance-gateway/internal/model"
	"github.com/LeeXN/finance-gateway/internal/router"
)

// ProviderTuning is the per-provider slice of Config relevant to
// constructing that provider's adapter: its credential pool source and its
// call timeout.
type ProviderTuning struct {
	APIKey  string
	Timeout time.Duration
}

// RetryTuning mirrors RETRY_ENABLED and friends.
type RetryTuning struct {
	Enabled      bool
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// BreakerTuning mirrors CIRCUIT_BREAKER_ENABLED and friends.
type BreakerTuning struct {
	Enabled          bool
	FailureThreshold int
	Timeout          time.Duration
	HalfOpenAttempts int
}

// KeyRotationTuning mirrors KEY_ROTATION_ENABLED/KEY_ROTATION_RESET_WINDOW_MS.
type KeyRotationTuning struct {
	Enabled     bool
	ResetWindow time.Duration
}

// Config is the fully-resolved process configuration, built once by Load
// and then treated as immutable for the life of the process.
type Config struct {
	Finnhub      ProviderTuning
	AlphaVantage ProviderTuning
	TwelveData   ProviderTuning
	Tiingo       ProviderTuning

	// APITimeout is the fallback call deadline (API_TIMEOUT_MS) applied to
	// any provider that doesn't have its own <PROVIDER>_TIMEOUT_MS set.
	APITimeout time.Duration

	FailoverEnabled bool
	// LegacyOrder comes from PRIMARY_API_SOURCE/SECONDARY_API_SOURCE and, if
	// non-empty, is prepended (in order, deduplicated) ahead of every tool's
	// custom/default priority by the router.
	LegacyOrder []model.Provider

	Retry           RetryTuning
	Breaker         BreakerTuning
	KeyRotation     KeyRotationTuning
	DefaultDeadline time.Duration

	// CustomPriority holds any SOURCE_PRIORITY_<TOOL_NAME> overrides found.
	CustomPriority map[model.Tool][]model.Provider
	// MarketSources holds any MARKET_SOURCES_<MARKET> overrides found.
	MarketSources map[model.Market][]model.Provider

	LogLevel string
	LogFile  string
}

// Default returns the configuration that applies when no environment
// variable from spec.md §6's table is set.
func Default() Config {
	return Config{
		APITimeout:      10 * time.Second,
		DefaultDeadline: 30 * time.Second,
		FailoverEnabled: true,
		Retry: RetryTuning{
			Enabled:      false,
			MaxAttempts:  1,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
		},
		Breaker: BreakerTuning{
			Enabled:          true,
			FailureThreshold: 5,
			Timeout:          30 * time.Second,
			HalfOpenAttempts: 1,
		},
		KeyRotation: KeyRotationTuning{
			Enabled:     true,
			ResetWindow: time.Minute,
		},
		CustomPriority: map[model.Tool][]model.Provider{},
		MarketSources:  map[model.Market][]model.Provider{},
		LogLevel:       "INFO",
	}
}

// Load builds a Config from defaults overlaid with the current process
// environment.
func Load() Config {
	cfg := Default()
	applyEnv(&cfg)
	return cfg
}

func applyEnv(cfg *Config) {
	cfg.Finnhub.APIKey = os.Getenv("FINNHUB_API_KEY")
	cfg.AlphaVantage.APIKey = os.Getenv("ALPHAVANTAGE_API_KEY")
	cfg.TwelveData.APIKey = os.Getenv("TWELVEDATA_API_KEY")
	cfg.Tiingo.APIKey = os.Getenv("TIINGO_API_KEY")

	if v, ok := envDurationMs("API_TIMEOUT_MS"); ok {
		cfg.APITimeout = v
	}
	cfg.Finnhub.Timeout = cfg.APITimeout
	cfg.AlphaVantage.Timeout = cfg.APITimeout
	cfg.TwelveData.Timeout = cfg.APITimeout
	cfg.Tiingo.Timeout = cfg.APITimeout
	if v, ok := envDurationMs("FINNHUB_TIMEOUT_MS"); ok {
		cfg.Finnhub.Timeout = v
	}
	if v, ok := envDurationMs("ALPHAVANTAGE_TIMEOUT_MS"); ok {
		cfg.AlphaVantage.Timeout = v
	}

	if v, ok := envBool("API_FAILOVER_ENABLED"); ok {
		cfg.FailoverEnabled = v
	}

	var legacy []model.Provider
	if v := os.Getenv("PRIMARY_API_SOURCE"); v != "" {
		legacy = append(legacy, router.ParseTagList(v)...)
	}
	if v := os.Getenv("SECONDARY_API_SOURCE"); v != "" {
		legacy = append(legacy, router.ParseTagList(v)...)
	}
	cfg.LegacyOrder = legacy

	if v, ok := envBool("RETRY_ENABLED"); ok {
		cfg.Retry.Enabled = v
	}
	if v, ok := envInt("RETRY_MAX_ATTEMPTS"); ok && v > 0 {
		cfg.Retry.MaxAttempts = v
	}
	if v, ok := envDurationMs("RETRY_INITIAL_DELAY_MS"); ok {
		cfg.Retry.InitialDelay = v
	}
	if v, ok := envDurationMs("RETRY_MAX_DELAY_MS"); ok {
		cfg.Retry.MaxDelay = v
	}

	if v, ok := envBool("CIRCUIT_BREAKER_ENABLED"); ok {
		cfg.Breaker.Enabled = v
	}
	if v, ok := envInt("CIRCUIT_BREAKER_FAILURE_THRESHOLD"); ok && v > 0 {
		cfg.Breaker.FailureThreshold = v
	}
	if v, ok := envDurationMs("CIRCUIT_BREAKER_TIMEOUT_MS"); ok {
		cfg.Breaker.Timeout = v
	}
	if v, ok := envInt("CIRCUIT_BREAKER_HALF_OPEN_ATTEMPTS"); ok && v > 0 {
		cfg.Breaker.HalfOpenAttempts = v
	}

	if v, ok := envBool("KEY_ROTATION_ENABLED"); ok {
		cfg.KeyRotation.Enabled = v
	}
	if v, ok := envDurationMs("KEY_ROTATION_RESET_WINDOW_MS"); ok {
		cfg.KeyRotation.ResetWindow = v
	}

	for _, tool := range allTools {
		key := "SOURCE_PRIORITY_" + strings.ToUpper(string(tool))
		if v := os.Getenv(key); v != "" {
			cfg.CustomPriority[tool] = router.ParseTagList(v)
		}
	}

	for _, mkt := range allMarkets {
		key := "MARKET_SOURCES_" + string(mkt)
		if v := os.Getenv(key); v != "" {
			cfg.MarketSources[mkt] = router.ParseTagList(v)
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToUpper(v)
	}
	cfg.LogFile = os.Getenv("LOG_FILE")
}

var allTools = []model.Tool{
	model.ToolQuote, model.ToolCandles, model.ToolDailyPrices, model.ToolNews,
	model.ToolCompanyOverview, model.ToolBasicFinancials, model.ToolIncomeStatement,
	model.ToolBalanceSheet, model.ToolCashFlow, model.ToolTechnicalIndicator,
}

var allMarkets = []model.Market{
	model.MarketUS, model.MarketSH, model.MarketSZ, model.MarketBJ, model.MarketHK,
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y":
		return true, true
	case "0", "false", "no", "n":
		return false, true
	default:
		return false, false
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envDurationMs(key string) (time.Duration, bool) {
	n, ok := envInt(key)
	if !ok || n < 0 {
		return 0, false
	}
	return time.Duration(n) * time.Millisecond, true
}

// String renders a one-line summary for startup logging, omitting API keys.
func (c Config) String() string {
	return fmt.Sprintf(
		"failover=%t retry=%t breaker=%t(threshold=%d) key_rotation=%t log_level=%s",
		c.FailoverEnabled, c.Retry.Enabled, c.Breaker.Enabled, c.Breaker.FailureThreshold,
		c.KeyRotation.Enabled, c.LogLevel,
	)
}
