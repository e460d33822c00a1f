package twelvedata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/LeeXN/finance-gateway/internal/breaker"
	"github.com/LeeXN/finance-gateway/internal/httpx"
	"github.com/LeeXN/finance-gateway/internal/keypool"
	"github.com/LeeXN/finance-gateway/internal/model"
	"github.com/LeeXN/finance-gateway/internal/provider"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(handler http.HandlerFunc) (*Adapter, func()) {
	srv := httptest.NewServer(handler)
	keys := keypool.New("testkey", time.Minute, true)
	cb := breaker.New(3, time.Minute, 1, true)
	a := New(Config{BaseURL: srv.URL}, keys, cb, httpx.New(5*time.Second))
	return a, srv.Close
}

func Test_FetchQuote_Success(t *testing.T) {
	a, closeSrv := newTestAdapter(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "quote")
		w.Write([]byte(`{"symbol":"AAPL","open":"149.00","high":"151.00","low":"148.00","close":"150.25","previous_close":"148.75","change":"1.50","percent_change":"1.01"}`))
	})
	defer closeSrv()

	result, err := a.Handle(context.Background(), model.ToolQuote, "testkey", provider.Args{Symbol: "AAPL"})
	require.NoError(t, err)

	q, ok := result.(model.Quote)
	require.True(t, ok)
	assert.True(t, q.Current.Equal(decimal.NewFromFloat(150.25)))
}

func Test_FetchQuote_ErrorEnvelope(t *testing.T) {
	a, closeSrv := newTestAdapter(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":400,"message":"symbol not found","status":"error"}`))
	})
	defer closeSrv()

	_, err := a.Handle(context.Background(), model.ToolQuote, "testkey", provider.Args{Symbol: "BOGUS"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symbol not found")
}

func Test_FetchCandles_DefaultsToDailyInterval(t *testing.T) {
	a, closeSrv := newTestAdapter(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1day", r.URL.Query().Get("interval"))
		w.Write([]byte(`{"values":[{"datetime":"2024-01-02","open":"10","high":"11","low":"9","close":"10.5","volume":"1000"}],"status":"ok"}`))
	})
	defer closeSrv()

	result, err := a.Handle(context.Background(), model.ToolCandles, "testkey", provider.Args{Symbol: "AAPL"})
	require.NoError(t, err)

	candles, ok := result.([]model.Candle)
	require.True(t, ok)
	require.Len(t, candles, 1)
	assert.Equal(t, "2024-01-02", candles[0].Date)
}

func Test_FetchTechnicalIndicator_ParsesValuesMap(t *testing.T) {
	a, closeSrv := newTestAdapter(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "rsi")
		w.Write([]byte(`{"values":[{"datetime":"2024-01-02","rsi":"55.5"},{"datetime":"2024-01-03","rsi":"60.0"}],"status":"ok"}`))
	})
	defer closeSrv()

	result, err := a.Handle(context.Background(), model.ToolTechnicalIndicator, "testkey", provider.Args{Symbol: "AAPL", Indicator: "rsi"})
	require.NoError(t, err)

	ind, ok := result.(model.Indicator)
	require.True(t, ok)
	require.Len(t, ind.Series, 2)
	assert.True(t, ind.Series[0].Value.Equal(decimal.NewFromFloat(55.5)))
}

func Test_Adapter_CoversUSAndSomeAsianMarkets(t *testing.T) {
	a, closeSrv := newTestAdapter(func(w http.ResponseWriter, r *http.Request) {})
	defer closeSrv()

	assert.True(t, a.Covers(model.MarketUS))
	assert.True(t, a.Covers(model.MarketHK))
	assert.True(t, a.Covers(model.MarketSH))
	assert.False(t, a.Covers(model.MarketSZ))
	assert.True(t, a.Supports(model.ToolQuote))
	assert.True(t, a.Supports(model.ToolCandles))
	assert.True(t, a.Supports(model.ToolTechnicalIndicator))
	assert.False(t, a.Supports(model.ToolNews))
}
