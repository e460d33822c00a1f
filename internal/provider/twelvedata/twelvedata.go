// Package twelvedata adapts the TwelveData REST API
// (https://api.twelvedata.com) to the common provider contract: quotes,
// candles via time_series, and its per-indicator technical-indicator
// endpoints. TwelveData's documented coverage extends past US symbols into
// a subset of Hong Kong and Shanghai listings.
package twelvedata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/LeeXN/finance-gateway/internal/breaker"
	"github.com/LeeXN/finance-gateway/internal/httpx"
	"github.com/LeeXN/finance-gateway/internal/keypool"
	"github.com/LeeXN/finance-gateway/internal/model"
	"github.com/LeeXN/finance-gateway/internal/provider"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

const defaultBaseURL = "https://api.twelvedata.com"

// Config configures an Adapter.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Adapter implements provider.Adapter for TwelveData.
type Adapter struct {
	*provider.Base
	cfg    Config
	client *httpx.Client
}

// New builds a TwelveData adapter and registers every operation it
// supports.
func New(cfg Config, keys *keypool.Pool, cb *breaker.Breaker, client *httpx.Client) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	a := &Adapter{
		Base: provider.NewBase(model.ProviderTwelveData, keys, cb, cfg.Timeout, []model.Market{
			model.MarketUS, model.MarketHK, model.MarketSH,
		}),
		cfg:    cfg,
		client: client,
	}

	a.SetHandler(model.ToolQuote, a.fetchQuote)
	a.SetHandler(model.ToolCandles, a.fetchCandles)
	a.SetHandler(model.ToolTechnicalIndicator, a.fetchTechnicalIndicator)

	return a
}

type apiEnvelopeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (a *Adapter) doJSON(ctx context.Context, endpoint string, q url.Values, credential string) ([]byte, error) {
	q.Set("apikey", credential)
	req, err := http.NewRequest(http.MethodGet, a.cfg.BaseURL+"/"+endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", model.ProviderTwelveData, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s: unexpected status %d: %s", model.ProviderTwelveData, resp.StatusCode, string(body))
	}

	var envErr apiEnvelopeError
	if err := json.Unmarshal(body, &envErr); err == nil && strings.EqualFold(envErr.Status, "error") {
		return nil, provider.AppError(model.ProviderTwelveData, fmt.Sprintf("code=%d %s", envErr.Code, envErr.Message))
	}
	return body, nil
}

type quoteRaw struct {
	Symbol        string          `json:"symbol"`
	Open          decimal.Decimal `json:"open"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Close         decimal.Decimal `json:"close"`
	PreviousClose decimal.Decimal `json:"previous_close"`
	Change        decimal.Decimal `json:"change"`
	PercentChange decimal.Decimal `json:"percent_change"`
}

func (a *Adapter) fetchQuote(ctx context.Context, credential string, args provider.Args) (any, error) {
	body, err := a.doJSON(ctx, "quote", url.Values{"symbol": {args.Symbol}}, credential)
	if err != nil {
		return nil, err
	}

	var q quoteRaw
	if err := json.Unmarshal(body, &q); err != nil {
		return nil, fmt.Errorf("%s: decode quote: %w", model.ProviderTwelveData, err)
	}
	if q.Symbol == "" {
		return nil, provider.AppError(model.ProviderTwelveData, "symbol not found: "+args.Symbol)
	}

	return model.Quote{
		Symbol:        args.Symbol,
		Current:       q.Close,
		Change:        q.Change,
		PercentChange: q.PercentChange,
		DayHigh:       q.High,
		DayLow:        q.Low,
		DayOpen:       q.Open,
		PrevClose:     q.PreviousClose,
	}, nil
}

type timeSeriesValue struct {
	Datetime string          `json:"datetime"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	Volume   decimal.Decimal `json:"volume"`
}

type timeSeriesEnvelope struct {
	Values []timeSeriesValue `json:"values"`
	Status string            `json:"status"`
}

func (a *Adapter) fetchCandles(ctx context.Context, credential string, args provider.Args) (any, error) {
	interval := intervalFromResolution(args.Resolution)
	q := url.Values{"symbol": {args.Symbol}, "interval": {interval}}
	if args.From != "" {
		q.Set("start_date", args.From)
	}
	if args.To != "" {
		q.Set("end_date", args.To)
	}

	body, err := a.doJSON(ctx, "time_series", q, credential)
	if err != nil {
		return nil, err
	}

	var env timeSeriesEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%s: decode time_series: %w", model.ProviderTwelveData, err)
	}

	out := make([]model.Candle, 0, len(env.Values))
	for _, v := range env.Values {
		out = append(out, model.Candle{
			Date:   v.Datetime,
			Open:   v.Open,
			High:   v.High,
			Low:    v.Low,
			Close:  v.Close,
			Volume: v.Volume,
		})
	}
	return out, nil
}

func (a *Adapter) fetchTechnicalIndicator(ctx context.Context, credential string, args provider.Args) (any, error) {
	function := strings.ToLower(args.Indicator)
	timePeriod := args.TimePeriod
	if timePeriod <= 0 {
		timePeriod = 14
	}
	interval := intervalFromResolution(args.Interval)
	if args.Interval == "" {
		interval = "1day"
	}

	q := url.Values{
		"symbol":      {args.Symbol},
		"interval":    {interval},
		"time_period": {strconv.Itoa(timePeriod)},
	}
	body, err := a.doJSON(ctx, function, q, credential)
	if err != nil {
		return nil, err
	}

	raw := struct {
		Values []map[string]string `json:"values"`
	}{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%s: decode indicator: %w", model.ProviderTwelveData, err)
	}

	indicatorKey := function
	points := make([]model.IndicatorPoint, 0, len(raw.Values))
	for _, v := range raw.Values {
		ts, err := time.Parse("2006-01-02", v["datetime"])
		if err != nil {
			ts, err = time.Parse("2006-01-02 15:04:05", v["datetime"])
			if err != nil {
				continue
			}
		}
		valStr, ok := v[indicatorKey]
		if !ok {
			continue
		}
		val, err := decimal.NewFromString(valStr)
		if err != nil {
			continue
		}
		points = append(points, model.IndicatorPoint{Timestamp: ts.Unix(), Value: val})
	}

	return model.Indicator{
		Name:   strings.ToUpper(args.Indicator),
		Symbol: args.Symbol,
		Series: points,
	}, nil
}

func intervalFromResolution(resolution string) string {
	switch strings.ToUpper(resolution) {
	case "", "D":
		return "1day"
	case "W":
		return "1week"
	case "M":
		return "1month"
	case "1":
		return "1min"
	case "5":
		return "5min"
	case "15":
		return "15min"
	case "30":
		return "30min"
	case "60":
		return "1h"
	default:
		return "1day"
	}
}
