// Package tiingo adapts the Tiingo REST API (https://api.tiingo.com) to the
// common provider contract: daily prices, news, and company metadata for US
// symbols. Tiingo authenticates via an Authorization header by default,
// falling back to a query-parameter token on HTTP 403 — some Tiingo
// endpoints reject the header form depending on account tier.
package tiingo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
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

const defaultBaseURL = "https://api.tiingo.com"

// Config configures an Adapter.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Adapter implements provider.Adapter for Tiingo.
type Adapter struct {
	*provider.Base
	cfg    Config
	client *httpx.Client
}

// New builds a Tiingo adapter and registers every operation it supports.
func New(cfg Config, keys *keypool.Pool, cb *breaker.Breaker, client *httpx.Client) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	a := &Adapter{
		Base:   provider.NewBase(model.ProviderTiingo, keys, cb, cfg.Timeout, []model.Market{model.MarketUS}),
		cfg:    cfg,
		client: client,
	}

	a.SetHandler(model.ToolDailyPrices, a.fetchDailyPrices)
	a.SetHandler(model.ToolNews, a.fetchNews)
	a.SetHandler(model.ToolCompanyOverview, a.fetchCompanyOverview)

	return a
}

// get performs a GET against path, trying the Authorization header first
// and retrying once with a ?token= query parameter if that's met with an
// HTTP 403, per spec §6/§7.
func (a *Adapter) get(ctx context.Context, path string, q url.Values, credential string) ([]byte, int, error) {
	body, status, err := a.doGet(ctx, path, q, credential, true)
	if err != nil {
		return nil, 0, err
	}
	if status == http.StatusForbidden {
		log.Debug().Str("path", path).Msg("tiingo: header auth rejected, retrying with token query param")
		return a.doGet(ctx, path, q, credential, false)
	}
	return body, status, nil
}

func (a *Adapter) doGet(ctx context.Context, path string, q url.Values, credential string, useHeader bool) ([]byte, int, error) {
	full := *cloneValues(q)
	req, err := http.NewRequest(http.MethodGet, a.cfg.BaseURL+path+"?"+full.Encode(), nil)
	if err != nil {
		return nil, 0, err
	}
	if useHeader {
		req.Header.Set("Authorization", "Token "+credential)
	} else {
		qq := req.URL.Query()
		qq.Set("token", credential)
		req.URL.RawQuery = qq.Encode()
	}

	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", model.ProviderTiingo, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

func cloneValues(q url.Values) *url.Values {
	out := url.Values{}
	for k, v := range q {
		out[k] = v
	}
	return &out
}

type dailyMetaRaw struct {
	Ticker       string `json:"ticker"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	ExchangeCode string `json:"exchangeCode"`
}

func (a *Adapter) fetchCompanyOverview(ctx context.Context, credential string, args provider.Args) (any, error) {
	body, status, err := a.get(ctx, "/tiingo/daily/"+args.Symbol, url.Values{}, credential)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%s: unexpected status %d: %s", model.ProviderTiingo, status, string(body))
	}

	var meta dailyMetaRaw
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("%s: decode company metadata: %w", model.ProviderTiingo, err)
	}
	if meta.Ticker == "" {
		return nil, provider.AppError(model.ProviderTiingo, "symbol not found: "+args.Symbol)
	}

	return model.CompanyInfo{
		Symbol:      meta.Ticker,
		Name:        meta.Name,
		Description: meta.Description,
	}, nil
}

type dailyPriceRaw struct {
	Date     string          `json:"date"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	Volume   decimal.Decimal `json:"volume"`
	AdjClose decimal.Decimal `json:"adjClose"`
}

func (a *Adapter) fetchDailyPrices(ctx context.Context, credential string, args provider.Args) (any, error) {
	q := url.Values{}
	if args.From != "" {
		q.Set("startDate", args.From)
	}
	if args.To != "" {
		q.Set("endDate", args.To)
	}
	if args.OutputSize == "compact" || args.OutputSize == "" {
		q.Set("resampleFreq", "daily")
	}

	body, status, err := a.get(ctx, "/tiingo/daily/"+args.Symbol+"/prices", q, credential)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%s: unexpected status %d: %s", model.ProviderTiingo, status, string(body))
	}

	var rows []dailyPriceRaw
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%s: decode daily prices: %w", model.ProviderTiingo, err)
	}
	if len(rows) == 0 {
		return nil, provider.AppError(model.ProviderTiingo, "no price history for "+args.Symbol)
	}

	if args.OutputSize != "full" && len(rows) > 100 {
		rows = rows[len(rows)-100:]
	}

	out := make(map[string]model.Candle, len(rows))
	for _, r := range rows {
		date := r.Date
		if t, err := time.Parse(time.RFC3339, date); err == nil {
			date = t.Format("2006-01-02")
		}
		out[date] = model.Candle{
			Date:     date,
			Open:     r.Open,
			High:     r.High,
			Low:      r.Low,
			Close:    r.Close,
			Volume:   r.Volume,
			AdjClose: r.AdjClose,
			HasAdj:   !r.AdjClose.IsZero(),
		}
	}
	return out, nil
}

type newsItemRaw struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	URL           string   `json:"url"`
	PublishedDate string   `json:"publishedDate"`
	Source        string   `json:"source"`
	Tags          []string `json:"tags"`
}

func (a *Adapter) fetchNews(ctx context.Context, credential string, args provider.Args) (any, error) {
	q := url.Values{"tickers": {args.Symbol}}
	body, status, err := a.get(ctx, "/tiingo/news", q, credential)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%s: unexpected status %d: %s", model.ProviderTiingo, status, string(body))
	}

	var rows []newsItemRaw
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%s: decode news: %w", model.ProviderTiingo, err)
	}

	out := make([]model.NewsItem, 0, len(rows))
	for _, r := range rows {
		if args.MinID > 0 && r.ID < args.MinID {
			continue
		}
		var category string
		if len(r.Tags) > 0 {
			category = r.Tags[0]
		}
		if args.Category != "" && category != args.Category {
			continue
		}
		ts := parsePublishedDate(r.PublishedDate)
		out = append(out, model.NewsItem{
			ID:       strconv.FormatInt(r.ID, 10),
			Headline: r.Title,
			Summary:  r.Description,
			URL:      r.URL,
			Datetime: ts,
			Source:   r.Source,
			Category: category,
		})
	}
	return out, nil
}

func parsePublishedDate(s string) int64 {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Unix()
	}
	if t, err := time.Parse("2006-01-02T15:04:05Z", s); err == nil {
		return t.Unix()
	}
	return 0
}
