// Package alphavantage adapts Alpha Vantage's function-based REST API
// (https://www.alphavantage.co/query) to the common provider contract:
// quotes, daily prices, company overview, the three financial statements,
// and technical indicators for US symbols.
package alphavantage

import (
	"context"
	"fmt"
	"io"
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
	"github.com/shopspring/decimal"
)

const defaultBaseURL = "https://www.alphavantage.co/query"

// Config configures an Adapter.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Adapter implements provider.Adapter for Alpha Vantage.
type Adapter struct {
	*provider.Base
	cfg    Config
	client *httpx.Client
}

// New builds an Alpha Vantage adapter and registers every operation it
// supports.
func New(cfg Config, keys *keypool.Pool, cb *breaker.Breaker, client *httpx.Client) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	a := &Adapter{
		Base:   provider.NewBase(model.ProviderAlphaVantage, keys, cb, cfg.Timeout, []model.Market{model.MarketUS}),
		cfg:    cfg,
		client: client,
	}

	a.SetHandler(model.ToolQuote, a.fetchQuote)
	a.SetHandler(model.ToolDailyPrices, a.fetchDailyPrices)
	a.SetHandler(model.ToolCompanyOverview, a.fetchCompanyOverview)
	a.SetHandler(model.ToolIncomeStatement, a.statementFetcher("INCOME_STATEMENT"))
	a.SetHandler(model.ToolBalanceSheet, a.statementFetcher("BALANCE_SHEET"))
	a.SetHandler(model.ToolCashFlow, a.statementFetcher("CASH_FLOW"))
	a.SetHandler(model.ToolTechnicalIndicator, a.fetchTechnicalIndicator)

	return a
}

func (a *Adapter) call(ctx context.Context, q url.Values, credential string) (*http.Response, error) {
	q.Set("apikey", credential)
	req, err := http.NewRequest(http.MethodGet, a.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", model.ProviderAlphaVantage, err)
	}
	return resp, nil
}

// errorEnvelope catches the three application-level error shapes Alpha
// Vantage uses instead of a non-2xx status: {"Error Message": ...},
// {"Note": ...} and {"Information": ...} (rate-limit throttling notices),
// all returned with HTTP 200.
type errorEnvelope struct {
	ErrorMessage string `json:"Error Message"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
}

func checkAppError(body []byte) error {
	var e errorEnvelope
	if err := json.Unmarshal(body, &e); err != nil {
		return nil
	}
	switch {
	case e.ErrorMessage != "":
		return provider.AppError(model.ProviderAlphaVantage, e.ErrorMessage)
	case e.Note != "":
		return provider.AppError(model.ProviderAlphaVantage, "rate limit: "+e.Note)
	case e.Information != "":
		return provider.AppError(model.ProviderAlphaVantage, e.Information)
	default:
		return nil
	}
}

type globalQuoteEnvelope struct {
	Quote globalQuote `json:"Global Quote"`
}

type globalQuote struct {
	Symbol        string          `json:"01. symbol"`
	Open          decimal.Decimal `json:"02. open"`
	High          decimal.Decimal `json:"03. high"`
	Low           decimal.Decimal `json:"04. low"`
	Price         decimal.Decimal `json:"05. price"`
	PrevClose     decimal.Decimal `json:"08. previous close"`
	Change        decimal.Decimal `json:"09. change"`
	ChangePercent string          `json:"10. change percent"`
}

func (a *Adapter) fetchQuote(ctx context.Context, credential string, args provider.Args) (any, error) {
	q := url.Values{"function": {"GLOBAL_QUOTE"}, "symbol": {args.Symbol}}
	body, err := a.doJSON(ctx, q, credential)
	if err != nil {
		return nil, err
	}

	var env globalQuoteEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%s: decode quote: %w", model.ProviderAlphaVantage, err)
	}
	if env.Quote.Symbol == "" {
		return nil, provider.AppError(model.ProviderAlphaVantage, "symbol not found: "+args.Symbol)
	}

	percent := parsePercent(env.Quote.ChangePercent)
	return model.Quote{
		Symbol:        args.Symbol,
		Current:       env.Quote.Price,
		Change:        env.Quote.Change,
		PercentChange: percent,
		DayHigh:       env.Quote.High,
		DayLow:        env.Quote.Low,
		DayOpen:       env.Quote.Open,
		PrevClose:     env.Quote.PrevClose,
	}, nil
}

type dailyBarRaw struct {
	Open   decimal.Decimal `json:"1. open"`
	High   decimal.Decimal `json:"2. high"`
	Low    decimal.Decimal `json:"3. low"`
	Close  decimal.Decimal `json:"4. close"`
	Volume decimal.Decimal `json:"5. volume"`
}

type dailySeriesEnvelope struct {
	Series map[string]dailyBarRaw `json:"Time Series (Daily)"`
}

func (a *Adapter) fetchDailyPrices(ctx context.Context, credential string, args provider.Args) (any, error) {
	outputsize := args.OutputSize
	if outputsize == "" {
		outputsize = "compact"
	}
	q := url.Values{
		"function":   {"TIME_SERIES_DAILY"},
		"symbol":     {args.Symbol},
		"outputsize": {outputsize},
	}
	body, err := a.doJSON(ctx, q, credential)
	if err != nil {
		return nil, err
	}

	var env dailySeriesEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%s: decode daily prices: %w", model.ProviderAlphaVantage, err)
	}
	if len(env.Series) == 0 {
		return nil, provider.AppError(model.ProviderAlphaVantage, "no daily series for "+args.Symbol)
	}

	out := make(map[string]model.Candle, len(env.Series))
	for date, bar := range env.Series {
		out[date] = model.Candle{
			Date:   date,
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: bar.Volume,
		}
	}
	return out, nil
}

type overviewRaw struct {
	Symbol            string          `json:"Symbol"`
	Name              string          `json:"Name"`
	Description       string          `json:"Description"`
	Sector            string          `json:"Sector"`
	Industry          string          `json:"Industry"`
	MarketCap         decimal.Decimal `json:"MarketCapitalization"`
	SharesOutstanding decimal.Decimal `json:"SharesOutstanding"`
}

func (a *Adapter) fetchCompanyOverview(ctx context.Context, credential string, args provider.Args) (any, error) {
	q := url.Values{"function": {"OVERVIEW"}, "symbol": {args.Symbol}}
	body, err := a.doJSON(ctx, q, credential)
	if err != nil {
		return nil, err
	}

	var o overviewRaw
	if err := json.Unmarshal(body, &o); err != nil {
		return nil, fmt.Errorf("%s: decode overview: %w", model.ProviderAlphaVantage, err)
	}
	if o.Symbol == "" {
		return nil, provider.AppError(model.ProviderAlphaVantage, "symbol not found: "+args.Symbol)
	}

	return model.CompanyInfo{
		Symbol:            o.Symbol,
		Name:              o.Name,
		Industry:          o.Industry,
		Sector:            o.Sector,
		Description:       o.Description,
		MarketCap:         o.MarketCap,
		HasMarketCap:      !o.MarketCap.IsZero(),
		SharesOutstanding: o.SharesOutstanding,
		HasShares:         !o.SharesOutstanding.IsZero(),
	}, nil
}

type statementEnvelope struct {
	Symbol          string                       `json:"symbol"`
	AnnualReports   []map[string]decimal.Decimal `json:"annualReports"`
	QuarterlyReport []map[string]decimal.Decimal `json:"quarterlyReports"`
}

func (a *Adapter) statementFetcher(function string) provider.Handler {
	return func(ctx context.Context, credential string, args provider.Args) (any, error) {
		q := url.Values{"function": {function}, "symbol": {args.Symbol}}
		body, err := a.doJSON(ctx, q, credential)
		if err != nil {
			return nil, err
		}

		var env statementEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("%s: decode %s: %w", model.ProviderAlphaVantage, function, err)
		}
		if env.Symbol == "" || len(env.AnnualReports) == 0 {
			return nil, provider.AppError(model.ProviderAlphaVantage, "no "+function+" for "+args.Symbol)
		}

		latest := env.AnnualReports[0]
		fin := model.Financials{Symbol: env.Symbol, Period: "annual"}
		switch function {
		case "INCOME_STATEMENT":
			fin.Income = model.FinancialStatement(latest)
		case "BALANCE_SHEET":
			fin.Balance = model.FinancialStatement(latest)
		case "CASH_FLOW":
			fin.CashFlow = model.FinancialStatement(latest)
		}
		return fin, nil
	}
}

func (a *Adapter) fetchTechnicalIndicator(ctx context.Context, credential string, args provider.Args) (any, error) {
	interval := args.Interval
	if interval == "" {
		interval = "daily"
	}
	timePeriod := args.TimePeriod
	if timePeriod <= 0 {
		timePeriod = 14
	}
	function := strings.ToUpper(args.Indicator)
	q := url.Values{
		"function":    {function},
		"symbol":      {args.Symbol},
		"interval":    {interval},
		"time_period": {fmt.Sprintf("%d", timePeriod)},
		"series_type": {"close"},
	}
	body, err := a.doJSON(ctx, q, credential)
	if err != nil {
		return nil, err
	}

	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%s: decode indicator: %w", model.ProviderAlphaVantage, err)
	}

	var seriesKey string
	var seriesRaw json.RawMessage
	for k, v := range raw {
		if strings.HasPrefix(k, "Technical Analysis:") {
			seriesKey = k
			seriesRaw = v
			break
		}
	}
	if seriesKey == "" {
		return nil, provider.AppError(model.ProviderAlphaVantage, "no technical analysis series for "+args.Symbol)
	}

	var series map[string]map[string]decimal.Decimal
	if err := json.Unmarshal(seriesRaw, &series); err != nil {
		return nil, fmt.Errorf("%s: decode indicator series: %w", model.ProviderAlphaVantage, err)
	}

	points := make([]model.IndicatorPoint, 0, len(series))
	for dateStr, fields := range series {
		ts, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		for _, v := range fields {
			points = append(points, model.IndicatorPoint{Timestamp: ts.Unix(), Value: v})
			break
		}
	}
	sortIndicatorPoints(points)

	return model.Indicator{
		Name:   function,
		Symbol: args.Symbol,
		Series: points,
	}, nil
}

func (a *Adapter) doJSON(ctx context.Context, q url.Values, credential string) ([]byte, error) {
	resp, err := a.call(ctx, q, credential)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readAll(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s: unexpected status %d: %s", model.ProviderAlphaVantage, resp.StatusCode, string(body))
	}
	if appErr := checkAppError(body); appErr != nil {
		return nil, appErr
	}
	return body, nil
}

func readAll(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

func parsePercent(s string) decimal.Decimal {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func sortIndicatorPoints(points []model.IndicatorPoint) {
	for i := 1; i < len(points); i++ {
		for j := i; j > 0 && points[j-1].Timestamp > points[j].Timestamp; j-- {
			points[j-1], points[j] = points[j], points[j-1]
		}
	}
}
