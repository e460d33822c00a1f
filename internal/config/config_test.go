package config

import (
	"testing"
	"time"

	"github.com/LeeXN/finance-gateway/internal/model"
	"github.com/stretchr/testify/assert"
)

func Test_Default_MatchesDocumentedDefaults(t *testing.T) {
	cfg := Default()

	assert.True(t, cfg.FailoverEnabled)
	assert.False(t, cfg.Retry.Enabled)
	assert.True(t, cfg.Breaker.Enabled)
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.True(t, cfg.KeyRotation.Enabled)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Empty(t, cfg.LegacyOrder)
	assert.Empty(t, cfg.CustomPriority)
	assert.Empty(t, cfg.MarketSources)
}

func Test_Load_NoEnvVarsSetReturnsDefault(t *testing.T) {
	cfg := Load()
	assert.Equal(t, Default().FailoverEnabled, cfg.FailoverEnabled)
	assert.Equal(t, "", cfg.Finnhub.APIKey)
}

func Test_Load_ReadsProviderAPIKeys(t *testing.T) {
	t.Setenv("FINNHUB_API_KEY", "fh1,fh2")
	t.Setenv("ALPHAVANTAGE_API_KEY", "av1")
	t.Setenv("TWELVEDATA_API_KEY", "")
	t.Setenv("TIINGO_API_KEY", "tg1")

	cfg := Load()
	assert.Equal(t, "fh1,fh2", cfg.Finnhub.APIKey)
	assert.Equal(t, "av1", cfg.AlphaVantage.APIKey)
	assert.Equal(t, "", cfg.TwelveData.APIKey)
	assert.Equal(t, "tg1", cfg.Tiingo.APIKey)
}

func Test_Load_APITimeoutAppliesToAllFourKeyedProviders(t *testing.T) {
	t.Setenv("API_TIMEOUT_MS", "5000")

	cfg := Load()
	assert.Equal(t, 5*time.Second, cfg.APITimeout)
	assert.Equal(t, 5*time.Second, cfg.Finnhub.Timeout)
	assert.Equal(t, 5*time.Second, cfg.AlphaVantage.Timeout)
	assert.Equal(t, 5*time.Second, cfg.TwelveData.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Tiingo.Timeout)
}

func Test_Load_PerProviderTimeoutOverridesGlobal(t *testing.T) {
	t.Setenv("API_TIMEOUT_MS", "5000")
	t.Setenv("FINNHUB_TIMEOUT_MS", "1500")
	t.Setenv("ALPHAVANTAGE_TIMEOUT_MS", "2500")

	cfg := Load()
	assert.Equal(t, 1500*time.Millisecond, cfg.Finnhub.Timeout)
	assert.Equal(t, 2500*time.Millisecond, cfg.AlphaVantage.Timeout)
	assert.Equal(t, 5*time.Second, cfg.TwelveData.Timeout, "no override set, keeps global")
}

func Test_Load_FailoverEnabledAcceptsCommonBooleanSpellings(t *testing.T) {
	t.Setenv("API_FAILOVER_ENABLED", "false")
	assert.False(t, Load().FailoverEnabled)

	t.Setenv("API_FAILOVER_ENABLED", "0")
	assert.False(t, Load().FailoverEnabled)

	t.Setenv("API_FAILOVER_ENABLED", "true")
	assert.True(t, Load().FailoverEnabled)
}

func Test_Load_UnrecognizedBooleanLeavesDefaultUnchanged(t *testing.T) {
	t.Setenv("API_FAILOVER_ENABLED", "maybe")
	assert.Equal(t, Default().FailoverEnabled, Load().FailoverEnabled)
}

func Test_Load_LegacySourceOrderConcatenatesPrimaryThenSecondary(t *testing.T) {
	t.Setenv("PRIMARY_API_SOURCE", "finnhub,twelvedata")
	t.Setenv("SECONDARY_API_SOURCE", "tiingo")

	cfg := Load()
	assert.Equal(t, []model.Provider{model.ProviderFinnhub, model.ProviderTwelveData, model.ProviderTiingo}, cfg.LegacyOrder)
}

func Test_Load_LegacySourceOrderDropsUnknownTags(t *testing.T) {
	t.Setenv("PRIMARY_API_SOURCE", "finnhub,bloomberg,sina")

	cfg := Load()
	assert.Equal(t, []model.Provider{model.ProviderFinnhub, model.ProviderSina}, cfg.LegacyOrder)
}

func Test_Load_RetryTuning(t *testing.T) {
	t.Setenv("RETRY_ENABLED", "true")
	t.Setenv("RETRY_MAX_ATTEMPTS", "3")
	t.Setenv("RETRY_INITIAL_DELAY_MS", "100")
	t.Setenv("RETRY_MAX_DELAY_MS", "1000")

	cfg := Load()
	assert.True(t, cfg.Retry.Enabled)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Retry.InitialDelay)
	assert.Equal(t, time.Second, cfg.Retry.MaxDelay)
}

func Test_Load_RetryMaxAttemptsIgnoresNonPositiveOverride(t *testing.T) {
	t.Setenv("RETRY_MAX_ATTEMPTS", "0")
	assert.Equal(t, Default().Retry.MaxAttempts, Load().Retry.MaxAttempts)

	t.Setenv("RETRY_MAX_ATTEMPTS", "-1")
	assert.Equal(t, Default().Retry.MaxAttempts, Load().Retry.MaxAttempts)
}

func Test_Load_BreakerTuning(t *testing.T) {
	t.Setenv("CIRCUIT_BREAKER_ENABLED", "false")
	t.Setenv("CIRCUIT_BREAKER_FAILURE_THRESHOLD", "10")
	t.Setenv("CIRCUIT_BREAKER_TIMEOUT_MS", "60000")
	t.Setenv("CIRCUIT_BREAKER_HALF_OPEN_ATTEMPTS", "2")

	cfg := Load()
	assert.False(t, cfg.Breaker.Enabled)
	assert.Equal(t, 10, cfg.Breaker.FailureThreshold)
	assert.Equal(t, time.Minute, cfg.Breaker.Timeout)
	assert.Equal(t, 2, cfg.Breaker.HalfOpenAttempts)
}

func Test_Load_KeyRotationTuning(t *testing.T) {
	t.Setenv("KEY_ROTATION_ENABLED", "false")
	t.Setenv("KEY_ROTATION_RESET_WINDOW_MS", "120000")

	cfg := Load()
	assert.False(t, cfg.KeyRotation.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.KeyRotation.ResetWindow)
}

func Test_Load_SourcePriorityIsPerToolAndUppercase(t *testing.T) {
	t.Setenv("SOURCE_PRIORITY_QUOTE", "twelvedata,finnhub")
	t.Setenv("SOURCE_PRIORITY_NEWS", "tiingo")

	cfg := Load()
	assert.Equal(t, []model.Provider{model.ProviderTwelveData, model.ProviderFinnhub}, cfg.CustomPriority[model.ToolQuote])
	assert.Equal(t, []model.Provider{model.ProviderTiingo}, cfg.CustomPriority[model.ToolNews])
	assert.NotContains(t, cfg.CustomPriority, model.ToolCandles)
}

func Test_Load_MarketSourcesIsPerMarket(t *testing.T) {
	t.Setenv("MARKET_SOURCES_SH", "sina,eastmoney")
	t.Setenv("MARKET_SOURCES_HK", "twelvedata")

	cfg := Load()
	assert.Equal(t, []model.Provider{model.ProviderSina, model.ProviderEastmoney}, cfg.MarketSources[model.MarketSH])
	assert.Equal(t, []model.Provider{model.ProviderTwelveData}, cfg.MarketSources[model.MarketHK])
	assert.NotContains(t, cfg.MarketSources, model.MarketUS)
}

func Test_Load_LogLevelIsUppercased(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	assert.Equal(t, "DEBUG", Load().LogLevel)
}

func Test_Load_LogFilePassesThroughVerbatim(t *testing.T) {
	t.Setenv("LOG_FILE", "/var/log/finance-gateway.log")
	assert.Equal(t, "/var/log/finance-gateway.log", Load().LogFile)
}

func Test_String_OmitsAPIKeys(t *testing.T) {
	t.Setenv("FINNHUB_API_KEY", "super-secret-key")
	s := Load().String()
	assert.NotContains(t, s, "super-secret-key")
	assert.Contains(t, s, "failover=")
}
