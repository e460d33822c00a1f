package router

import (
	"testing"
	"time"

	"github.com/LeeXN/finance-gateway/internal/breaker"
	"github.com/LeeXN/finance-gateway/internal/httpx"
	"github.com/LeeXN/finance-gateway/internal/keypool"
	"github.com/LeeXN/finance-gateway/internal/market"
	"github.com/LeeXN/finance-gateway/internal/model"
	"github.com/LeeXN/finance-gateway/internal/provider"
	"github.com/LeeXN/finance-gateway/internal/provider/alphavantage"
	"github.com/LeeXN/finance-gateway/internal/provider/eastmoney"
	"github.com/LeeXN/finance-gateway/internal/provider/finnhub"
	"github.com/LeeXN/finance-gateway/internal/provider/sina"
	"github.com/LeeXN/finance-gateway/internal/provider/tiingo"
	"github.com/LeeXN/finance-gateway/internal/provider/twelvedata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildAllAdapters constructs one instance of every adapter so Router can
// exercise real capability/coverage checks without any network I/O — no
// adapter method used by Route ever makes an HTTP call.
func buildAllAdapters() []provider.Adapter {
	client := httpx.New(time.Second)
	keys := keypool.New("testkey", time.Minute, true)
	newBreaker := func() *breaker.Breaker { return breaker.New(3, time.Minute, 1, true) }

	return []provider.Adapter{
		finnhub.New(finnhub.Config{}, keys, newBreaker(), client),
		alphavantage.New(alphavantage.Config{}, keys, newBreaker(), client),
		twelvedata.New(twelvedata.Config{}, keys, newBreaker(), client),
		tiingo.New(tiingo.Config{}, keys, newBreaker(), client),
		sina.New(sina.Config{}, keypool.NewKeyless(), newBreaker(), client),
		eastmoney.New(eastmoney.Config{}, keypool.NewKeyless(), newBreaker(), client),
	}
}

func Test_Route_USQuote_DefaultsToFinnhubFirst(t *testing.T) {
	r := New(buildAllAdapters(), nil, nil, nil)
	got := r.Route(model.ToolQuote, "AAPL")
	require.NotEmpty(t, got)
	assert.Equal(t, model.ProviderFinnhub, got[0])
}

func Test_Route_ChineseMarketQuote_ExcludesUSOnlyProviders(t *testing.T) {
	r := New(buildAllAdapters(), nil, nil, nil)
	got := r.Route(model.ToolQuote, "601899.SH")
	for _, tag := range got {
		assert.NotEqual(t, model.ProviderFinnhub, tag)
		assert.NotEqual(t, model.ProviderAlphaVantage, tag)
	}
	assert.Contains(t, got, model.ProviderSina)
	assert.Contains(t, got, model.ProviderEastmoney)
}

func Test_Route_NoSymbol_SkipsMarketFiltering(t *testing.T) {
	r := New(buildAllAdapters(), nil, nil, nil)
	got := r.Route(model.ToolDailyPrices, "")
	assert.Equal(t, []model.Provider{model.ProviderAlphaVantage, model.ProviderTiingo}, got)
}

func Test_Route_FiltersByCapability(t *testing.T) {
	r := New(buildAllAdapters(), nil, nil, nil)
	got := r.Route(model.ToolNews, "AAPL")
	for _, tag := range got {
		assert.NotEqual(t, model.ProviderAlphaVantage, tag) // AV has no news capability
	}
}

func Test_Route_CustomPriorityOverridesDefault(t *testing.T) {
	custom := map[model.Tool][]model.Provider{
		model.ToolQuote: {model.ProviderTwelveData, model.ProviderFinnhub},
	}
	r := New(buildAllAdapters(), custom, nil, nil)

	got := r.Route(model.ToolQuote, "AAPL")
	require.NotEmpty(t, got)
	assert.Equal(t, model.ProviderTwelveData, got[0])
}

func Test_Route_EmptyIntersectionFallsBackToCanonicalCoverage(t *testing.T) {
	// force a priority list with no SH coverage at all
	custom := map[model.Tool][]model.Provider{
		model.ToolQuote: {model.ProviderTiingo},
	}
	r := New(buildAllAdapters(), custom, nil, nil)

	got := r.Route(model.ToolQuote, "601899.SH")
	assert.Contains(t, got, model.ProviderSina)
}

func Test_Route_UnknownMarketYieldsEmptyCandidates(t *testing.T) {
	r := New(buildAllAdapters(), nil, nil, nil)
	got := r.Route(model.ToolQuote, "!!!not-a-symbol!!!")
	assert.Empty(t, got)
}

func Test_Route_LegacyOrderPrependsAheadOfDefault(t *testing.T) {
	legacy := []model.Provider{model.ProviderTwelveData, model.ProviderFinnhub}
	r := New(buildAllAdapters(), nil, nil, legacy)

	got := r.Route(model.ToolQuote, "AAPL")
	require.NotEmpty(t, got)
	assert.Equal(t, model.ProviderTwelveData, got[0])
}

func Test_Route_LegacyOrderPrependsAheadOfCustomPriority(t *testing.T) {
	legacy := []model.Provider{model.ProviderTwelveData, model.ProviderFinnhub}
	custom := map[model.Tool][]model.Provider{
		model.ToolQuote: {model.ProviderAlphaVantage, model.ProviderFinnhub},
	}
	r := New(buildAllAdapters(), custom, nil, legacy)

	got := r.Route(model.ToolQuote, "AAPL")
	// legacy comes first, deduplicated against finnhub (shared with custom),
	// then the remainder of the custom list.
	assert.Equal(t, []model.Provider{model.ProviderTwelveData, model.ProviderFinnhub, model.ProviderAlphaVantage}, got)
}

func Test_ParseTagList_DropsUnknownAndBlankTags(t *testing.T) {
	got := ParseTagList("finnhub, bogus ,, SINA")
	assert.Equal(t, []model.Provider{model.ProviderFinnhub, model.ProviderSina}, got)
}

// Property P1: every element of Route's result supports the tool and
// belongs to the symbol's market-coverage set.
func Test_Property_RouteResultAlwaysSupportsToolAndMarket(t *testing.T) {
	adapters := buildAllAdapters()
	r := New(adapters, nil, nil, nil)
	byTag := map[model.Provider]provider.Adapter{}
	for _, a := range adapters {
		byTag[a.Tag()] = a
	}

	symbols := []string{"AAPL", "601899.SH", "000001.SZ", "430047.BJ", "00700.HK"}
	tools := []model.Tool{
		model.ToolQuote, model.ToolCandles, model.ToolDailyPrices, model.ToolNews,
		model.ToolCompanyOverview, model.ToolBasicFinancials, model.ToolIncomeStatement,
		model.ToolBalanceSheet, model.ToolCashFlow, model.ToolTechnicalIndicator,
	}

	coverage := DefaultMarketCoverage()
	for _, sym := range symbols {
		m := market.Classify(sym)
		for _, tool := range tools {
			got := r.Route(tool, sym)
			for _, tag := range got {
				assert.True(t, byTag[tag].Supports(tool), "tool=%s provider=%s", tool, tag)
				assert.Contains(t, coverage[m], tag, "tool=%s symbol=%s provider=%s", tool, sym, tag)
			}
		}
	}
}
