// Package finnhub adapts Finnhub's REST API to the common provider
// contract. Finnhub covers quotes, candles, news, company overview, basic
// financials, and its own technical-indicator endpoint for US symbols.
package finnhub

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/LeeXN/finance-gateway/internal/breaker"
	"github.com/LeeXN/finance-gateway/internal/httpx"
	"github.com/LeeXN/finance-gateway/internal/keypool"
	"github.com/LeeXN/finance-gateway/internal/model"
	"github.com/LeeXN/finance-gateway/internal/provider"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const defaultBaseURL = "https://finnhub.io/api/v1"

// Config configures an Adapter. An empty BaseURL falls back to the real
// Finnhub host; tests override it with an httptest.Server URL.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Adapter implements provider.Adapter for Finnhub.
type Adapter struct {
	*provider.Base
	cfg    Config
	client *httpx.Client
}

// New builds a Finnhub adapter and registers every operation it supports.
func New(cfg Config, keys *keypool.Pool, cb *breaker.Breaker, client *httpx.Client) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	a := &Adapter{
		Base:   provider.NewBase(model.ProviderFinnhub, keys, cb, cfg.Timeout, []model.Market{model.MarketUS}),
		cfg:    cfg,
		client: client,
	}

	a.SetHandler(model.ToolQuote, a.fetchQuote)
	a.SetHandler(model.ToolCandles, a.fetchCandles)
	a.SetHandler(model.ToolNews, a.fetchNews)
	a.SetHandler(model.ToolCompanyOverview, a.fetchCompanyOverview)
	a.SetHandler(model.ToolBasicFinancials, a.fetchBasicFinancials)
	a.SetHandler(model.ToolTechnicalIndicator, a.fetchTechnicalIndicator)

	return a
}

func (a *Adapter) get(ctx context.Context, path string, q url.Values, credential string) (*http.Response, error) {
	q.Set("token", credential)
	req, err := http.NewRequest(http.MethodGet, a.cfg.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Finnhub-Token", credential)
	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", model.ProviderFinnhub, err)
	}
	return resp, nil
}

type quoteResp struct {
	Current       decimal.Decimal `json:"c"`
	Change        decimal.Decimal `json:"d"`
	PercentChange decimal.Decimal `json:"dp"`
	DayHigh       decimal.Decimal `json:"h"`
	DayLow        decimal.Decimal `json:"l"`
	DayOpen       decimal.Decimal `json:"o"`
	PrevClose     decimal.Decimal `json:"pc"`
}

func (a *Adapter) fetchQuote(ctx context.Context, credential string, args provider.Args) (any, error) {
	resp, err := a.get(ctx, "/quote", url.Values{"symbol": {args.Symbol}}, credential)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, provider.StatusError(model.ProviderFinnhub, resp)
	}

	var q quoteResp
	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		log.Error().Err(err).Str("symbol", args.Symbol).Msg("finnhub: decode quote")
		return nil, fmt.Errorf("%s: decode quote: %w", model.ProviderFinnhub, err)
	}

	return model.Quote{
		Symbol:        args.Symbol,
		Current:       q.Current,
		Change:        q.Change,
		PercentChange: q.PercentChange,
		DayHigh:       q.DayHigh,
		DayLow:        q.DayLow,
		DayOpen:       q.DayOpen,
		PrevClose:     q.PrevClose,
	}, nil
}

type candleResp struct {
	Close  []decimal.Decimal `json:"c"`
	High   []decimal.Decimal `json:"h"`
	Low    []decimal.Decimal `json:"l"`
	Open   []decimal.Decimal `json:"o"`
	Status string            `json:"s"`
	Time   []int64           `json:"t"`
	Volume []decimal.Decimal `json:"v"`
}

func (a *Adapter) fetchCandles(ctx context.Context, credential string, args provider.Args) (any, error) {
	resolution := args.Resolution
	if resolution == "" {
		resolution = "D"
	}
	from, to := dateRangeSeconds(args.From, args.To)

	q := url.Values{
		"symbol":     {args.Symbol},
		"resolution": {resolution},
		"from":       {from},
		"to":         {to},
	}
	resp, err := a.get(ctx, "/stock/candle", q, credential)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, provider.StatusError(model.ProviderFinnhub, resp)
	}

	var c candleResp
	if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
		return nil, fmt.Errorf("%s: decode candles: %w", model.ProviderFinnhub, err)
	}
	if c.Status != "" && c.Status != "ok" {
		return nil, provider.AppError(model.ProviderFinnhub, "candle status="+c.Status)
	}

	out := make([]model.Candle, 0, len(c.Time))
	for i := range c.Time {
		out = append(out, model.Candle{
			Date:   time.Unix(c.Time[i], 0).UTC().Format("2006-01-02"),
			Open:   atIndex(c.Open, i),
			High:   atIndex(c.High, i),
			Low:    atIndex(c.Low, i),
			Close:  atIndex(c.Close, i),
			Volume: atIndex(c.Volume, i),
		})
	}
	return out, nil
}

type newsItemResp struct {
	Category string `json:"category"`
	Datetime int64  `json:"datetime"`
	Headline string `json:"headline"`
	ID       int64  `json:"id"`
	Related  string `json:"related"`
	Source   string `json:"source"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
}

func (a *Adapter) fetchNews(ctx context.Context, credential string, args provider.Args) (any, error) {
	from, to := dateRangeDates(args.From, args.To)
	q := url.Values{
		"symbol": {args.Symbol},
		"from":   {from},
		"to":     {to},
	}
	resp, err := a.get(ctx, "/company-news", q, credential)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, provider.StatusError(model.ProviderFinnhub, resp)
	}

	var items []newsItemResp
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("%s: decode news: %w", model.ProviderFinnhub, err)
	}

	out := make([]model.NewsItem, 0, len(items))
	for _, it := range items {
		if args.MinID > 0 && it.ID < args.MinID {
			continue
		}
		if args.Category != "" && !strings.EqualFold(args.Category, it.Category) {
			continue
		}
		out = append(out, model.NewsItem{
			ID:       fmt.Sprintf("%d", it.ID),
			Headline: it.Headline,
			Summary:  it.Summary,
			URL:      it.URL,
			Datetime: it.Datetime,
			Source:   it.Source,
			Category: it.Category,
			Related:  it.Related,
		})
	}
	return out, nil
}

type profileResp struct {
	Country              string          `json:"country"`
	Currency             string          `json:"currency"`
	Exchange             string          `json:"exchange"`
	FinnhubIndustry      string          `json:"finnhubIndustry"`
	MarketCapitalization decimal.Decimal `json:"marketCapitalization"`
	Name                 string          `json:"name"`
	ShareOutstanding     decimal.Decimal `json:"shareOutstanding"`
	Ticker               string          `json:"ticker"`
	Weburl               string          `json:"weburl"`
}

func (a *Adapter) fetchCompanyOverview(ctx context.Context, credential string, args provider.Args) (any, error) {
	resp, err := a.get(ctx, "/stock/profile2", url.Values{"symbol": {args.Symbol}}, credential)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, provider.StatusError(model.ProviderFinnhub, resp)
	}

	var p profileResp
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("%s: decode company profile: %w", model.ProviderFinnhub, err)
	}
	if p.Ticker == "" && p.Name == "" {
		return nil, provider.AppError(model.ProviderFinnhub, "symbol not found: "+args.Symbol)
	}

	return model.CompanyInfo{
		Symbol:            args.Symbol,
		Name:              p.Name,
		Industry:          p.FinnhubIndustry,
		MarketCap:         p.MarketCapitalization,
		HasMarketCap:      !p.MarketCapitalization.IsZero(),
		SharesOutstanding: p.ShareOutstanding,
		HasShares:         !p.ShareOutstanding.IsZero(),
	}, nil
}

type metricResp struct {
	Metric map[string]decimal.Decimal `json:"metric"`
}

func (a *Adapter) fetchBasicFinancials(ctx context.Context, credential string, args provider.Args) (any, error) {
	q := url.Values{"symbol": {args.Symbol}, "metric": {"all"}}
	resp, err := a.get(ctx, "/stock/metric", q, credential)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, provider.StatusError(model.ProviderFinnhub, resp)
	}

	var m metricResp
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("%s: decode basic financials: %w", model.ProviderFinnhub, err)
	}

	return model.Financials{
		Symbol: args.Symbol,
		Income: model.FinancialStatement(m.Metric),
	}, nil
}

func (a *Adapter) fetchTechnicalIndicator(ctx context.Context, credential string, args provider.Args) (any, error) {
	resolution := args.Interval
	if resolution == "" {
		resolution = "daily"
	}
	q := url.Values{
		"symbol":     {args.Symbol},
		"resolution": {resolutionFromInterval(resolution)},
		"indicator":  {strings.ToLower(args.Indicator)},
	}
	if args.TimePeriod > 0 {
		q.Set("timeperiod", fmt.Sprintf("%d", args.TimePeriod))
	}
	from, to := dateRangeSeconds(args.From, args.To)
	q.Set("from", from)
	q.Set("to", to)

	resp, err := a.get(ctx, "/indicator", q, credential)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, provider.StatusError(model.ProviderFinnhub, resp)
	}

	raw := map[string]json.RawMessage{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%s: decode indicator: %w", model.ProviderFinnhub, err)
	}

	var times []int64
	if t, ok := raw["t"]; ok {
		_ = json.Unmarshal(t, &times)
	}

	key := strings.ToLower(args.Indicator)
	var values []decimal.Decimal
	if v, ok := raw[key]; ok {
		_ = json.Unmarshal(v, &values)
	}

	series := make([]model.IndicatorPoint, 0, len(times))
	for i := range times {
		series = append(series, model.IndicatorPoint{
			Timestamp: times[i],
			Value:     atIndex(values, i),
		})
	}

	return model.Indicator{
		Name:   strings.ToUpper(args.Indicator),
		Symbol: args.Symbol,
		Series: series,
	}, nil
}

func atIndex(vals []decimal.Decimal, i int) decimal.Decimal {
	if i < 0 || i >= len(vals) {
		return decimal.Zero
	}
	return vals[i]
}

func resolutionFromInterval(interval string) string {
	switch strings.ToLower(interval) {
	case "weekly":
		return "W"
	case "monthly":
		return "M"
	default:
		return "D"
	}
}

func dateRangeSeconds(from, to string) (string, string) {
	f, t := dateRangeDates(from, to)
	ft, err1 := time.Parse("2006-01-02", f)
	tt, err2 := time.Parse("2006-01-02", t)
	if err1 != nil || err2 != nil {
		now := time.Now().UTC()
		return fmt.Sprintf("%d", now.AddDate(0, -3, 0).Unix()), fmt.Sprintf("%d", now.Unix())
	}
	return fmt.Sprintf("%d", ft.Unix()), fmt.Sprintf("%d", tt.Unix())
}

func dateRangeDates(from, to string) (string, string) {
	now := time.Now().UTC()
	if to == "" {
		to = now.Format("2006-01-02")
	}
	if from == "" {
		from = now.AddDate(0, -3, 0).Format("2006-01-02")
	}
	return from, to
}
