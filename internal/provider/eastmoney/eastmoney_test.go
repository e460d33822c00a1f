package eastmoney

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
	keys := keypool.NewKeyless()
	cb := breaker.New(3, time.Minute, 1, true)
	cfg := Config{QuoteBaseURL: srv.URL, HistoryBaseURL: srv.URL}
	a := New(cfg, keys, cb, httpx.New(5*time.Second))
	return a, srv.Close
}

func Test_FetchQuote_DividesFenScaledFieldsByHundred(t *testing.T) {
	a, closeSrv := newTestAdapter(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("secid"), "1.601899")
		w.Write([]byte(`{"data":{"f43":1060,"f44":1070,"f45":1030,"f46":1050,"f60":1040,"f169":20,"f170":192}}`))
	})
	defer closeSrv()

	result, err := a.Handle(context.Background(), model.ToolQuote, "", provider.Args{Symbol: "601899.SH"})
	require.NoError(t, err)

	q, ok := result.(model.Quote)
	require.True(t, ok)
	assert.True(t, q.Current.Equal(decimal.NewFromFloat(10.60)))
	assert.True(t, q.PrevClose.Equal(decimal.NewFromFloat(10.40)))
	assert.True(t, q.Change.Equal(decimal.NewFromFloat(0.20)))
}

func Test_FetchQuote_NilDataMeansSymbolNotFound(t *testing.T) {
	a, closeSrv := newTestAdapter(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":null}`))
	})
	defer closeSrv()

	_, err := a.Handle(context.Background(), model.ToolQuote, "", provider.Args{Symbol: "999999.SH"})
	require.Error(t, err)
}

func Test_FetchCandles_ParsesKlineRows(t *testing.T) {
	a, closeSrv := newTestAdapter(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "101", r.URL.Query().Get("klt"))
		w.Write([]byte(`{"data":{"klines":["2024-01-02,10.0,10.5,10.7,9.8,100000"]}}`))
	})
	defer closeSrv()

	result, err := a.Handle(context.Background(), model.ToolCandles, "", provider.Args{Symbol: "000001.SZ"})
	require.NoError(t, err)

	candles, ok := result.([]model.Candle)
	require.True(t, ok)
	require.Len(t, candles, 1)
	assert.Equal(t, "2024-01-02", candles[0].Date)
	assert.True(t, candles[0].Close.Equal(decimal.NewFromFloat(10.5)))
}

func Test_SecID_ClassifiesExchangeCode(t *testing.T) {
	cases := []struct {
		symbol string
		want   string
	}{
		{"601899.SH", "1.601899"},
		{"000001.SZ", "0.000001"},
		{"430047.BJ", "0.430047"},
		{"00700.HK", "116.00700"},
	}
	for _, c := range cases {
		got, err := secID(c.symbol)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}
}

func Test_SecID_RejectsUnroutableSymbol(t *testing.T) {
	_, err := secID("AAPL")
	assert.Error(t, err)
}

func Test_KlineType_MapsResolutions(t *testing.T) {
	assert.Equal(t, "101", klineType(""))
	assert.Equal(t, "101", klineType("D"))
	assert.Equal(t, "102", klineType("W"))
	assert.Equal(t, "103", klineType("M"))
	assert.Equal(t, "60", klineType("60"))
}

func Test_Adapter_CoversChineseAndHongKongMarkets(t *testing.T) {
	a, closeSrv := newTestAdapter(func(w http.ResponseWriter, r *http.Request) {})
	defer closeSrv()

	assert.True(t, a.Supports(model.ToolQuote))
	assert.True(t, a.Supports(model.ToolCandles))
	assert.False(t, a.Supports(model.ToolNews))
	assert.True(t, a.Covers(model.MarketSH))
	assert.True(t, a.Covers(model.MarketSZ))
	assert.True(t, a.Covers(model.MarketBJ))
	assert.True(t, a.Covers(model.MarketHK))
	assert.False(t, a.Covers(model.MarketUS))
}
