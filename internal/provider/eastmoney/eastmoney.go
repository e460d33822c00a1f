// Package eastmoney adapts Eastmoney's public push2/push2his JSON feeds
// (https://push2.eastmoney.com, https://push2his.eastmoney.com) to the
// common provider contract: quotes and daily/minute candles for Chinese
// A-share and Hong Kong listings. Like sina, it requires no API key and
// paces its own requests.
package eastmoney

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
	"github.com/LeeXN/finance-gateway/internal/market"
	"github.com/LeeXN/finance-gateway/internal/model"
	"github.com/LeeXN/finance-gateway/internal/provider"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

const (
	defaultQuoteBaseURL   = "https://push2.eastmoney.com"
	defaultHistoryBaseURL = "https://push2his.eastmoney.com"
	referer               = "https://quote.eastmoney.com/"
)

// Config configures an Adapter.
type Config struct {
	QuoteBaseURL   string
	HistoryBaseURL string
	Timeout        time.Duration
	MinRequestGap  time.Duration // default 200ms
}

// Adapter implements provider.Adapter for Eastmoney's public feeds.
type Adapter struct {
	*provider.Base
	cfg    Config
	client *httpx.Client
	pace   *httpx.Paced
}

// New builds an Eastmoney adapter backed by a key-less pool.
func New(cfg Config, keys *keypool.Pool, cb *breaker.Breaker, client *httpx.Client) *Adapter {
	if cfg.QuoteBaseURL == "" {
		cfg.QuoteBaseURL = defaultQuoteBaseURL
	}
	if cfg.HistoryBaseURL == "" {
		cfg.HistoryBaseURL = defaultHistoryBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MinRequestGap <= 0 {
		cfg.MinRequestGap = 200 * time.Millisecond
	}

	a := &Adapter{
		Base: provider.NewBase(model.ProviderEastmoney, keys, cb, cfg.Timeout, []model.Market{
			model.MarketSH, model.MarketSZ, model.MarketBJ, model.MarketHK,
		}),
		cfg:    cfg,
		client: client,
		pace:   &httpx.Paced{Interval: cfg.MinRequestGap},
	}

	a.SetHandler(model.ToolQuote, a.fetchQuote)
	a.SetHandler(model.ToolCandles, a.fetchCandles)

	return a
}

// secID converts a gateway symbol into Eastmoney's "<exchange>.<code>"
// security ID, where exchange is 1 for Shanghai, 0 for Shenzhen/Beijing,
// and 116 for Hong Kong.
func secID(symbol string) (string, error) {
	code := symbol
	if i := strings.IndexByte(symbol, '.'); i >= 0 {
		code = symbol[:i]
	}

	switch market.Classify(symbol) {
	case model.MarketSH:
		return "1." + code, nil
	case model.MarketSZ, model.MarketBJ:
		return "0." + code, nil
	case model.MarketHK:
		return "116." + code, nil
	default:
		return "", fmt.Errorf("symbol %q is not a recognized SH/SZ/BJ/HK code", symbol)
	}
}

func (a *Adapter) doJSON(ctx context.Context, rawURL string) ([]byte, error) {
	var body []byte
	err := a.pace.Call(ctx, func(ctx context.Context) error {
		req, err := http.NewRequest(http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Referer", referer)

		resp, err := a.client.Do(ctx, req)
		if err != nil {
			return fmt.Errorf("%s: %w", model.ProviderEastmoney, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return provider.StatusError(model.ProviderEastmoney, resp)
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return err
	})
	return body, err
}

type quoteEnvelope struct {
	Data *quoteData `json:"data"`
}

// quoteData fields follow push2's documented "fields" codes: f43 current
// price, f44 high, f45 low, f46 open, f60 previous close, f169 change,
// f170 percent change — all scaled by 100 (fen, not yuan) except percent
// change which is scaled by 100 as a percentage-times-100 integer.
type quoteData struct {
	Current       decimal.Decimal `json:"f43"`
	High          decimal.Decimal `json:"f44"`
	Low           decimal.Decimal `json:"f45"`
	Open          decimal.Decimal `json:"f46"`
	PrevClose     decimal.Decimal `json:"f60"`
	Change        decimal.Decimal `json:"f169"`
	PercentChange decimal.Decimal `json:"f170"`
}

var hundred = decimal.NewFromInt(100)

func (a *Adapter) fetchQuote(ctx context.Context, credential string, args provider.Args) (any, error) {
	sec, err := secID(args.Symbol)
	if err != nil {
		return nil, provider.AppError(model.ProviderEastmoney, err.Error())
	}

	q := url.Values{
		"secid":  {sec},
		"fields": {"f43,f44,f45,f46,f60,f169,f170"},
	}
	body, err := a.doJSON(ctx, a.cfg.QuoteBaseURL+"/api/qt/stock/get?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var env quoteEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%s: decode quote: %w", model.ProviderEastmoney, err)
	}
	if env.Data == nil {
		return nil, provider.AppError(model.ProviderEastmoney, "symbol not found: "+args.Symbol)
	}

	d := env.Data
	return model.Quote{
		Symbol:        args.Symbol,
		Current:       d.Current.Div(hundred),
		Change:        d.Change.Div(hundred),
		PercentChange: d.PercentChange.Div(hundred),
		DayHigh:       d.High.Div(hundred),
		DayLow:        d.Low.Div(hundred),
		DayOpen:       d.Open.Div(hundred),
		PrevClose:     d.PrevClose.Div(hundred),
	}, nil
}

type klineEnvelope struct {
	Data *klineData `json:"data"`
}

type klineData struct {
	Klines []string `json:"klines"`
}

func (a *Adapter) fetchCandles(ctx context.Context, credential string, args provider.Args) (any, error) {
	sec, err := secID(args.Symbol)
	if err != nil {
		return nil, provider.AppError(model.ProviderEastmoney, err.Error())
	}

	q := url.Values{
		"secid":  {sec},
		"fields1": {"f1,f2,f3,f4,f5,f6"},
		"fields2": {"f51,f52,f53,f54,f55,f56"},
		"klt":    {klineType(args.Resolution)},
		"fqt":    {"1"},
		"lmt":    {strconv.Itoa(candleLimit(args.OutputSize))},
	}
	if args.From != "" {
		q.Set("beg", strings.ReplaceAll(args.From, "-", ""))
	}
	if args.To != "" {
		q.Set("end", strings.ReplaceAll(args.To, "-", ""))
	}

	body, err := a.doJSON(ctx, a.cfg.HistoryBaseURL+"/api/qt/stock/kline/get?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var env klineEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%s: decode kline: %w", model.ProviderEastmoney, err)
	}
	if env.Data == nil {
		return nil, provider.AppError(model.ProviderEastmoney, "no candles for "+args.Symbol)
	}

	out := make([]model.Candle, 0, len(env.Data.Klines))
	for _, line := range env.Data.Klines {
		c, ok := parseKlineRow(line)
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// parseKlineRow decodes one comma-separated "date,open,close,high,low,volume"
// row from the klines array, matching the fields2 selection above.
func parseKlineRow(line string) (model.Candle, bool) {
	parts := strings.Split(line, ",")
	if len(parts) < 6 {
		return model.Candle{}, false
	}
	return model.Candle{
		Date:   parts[0],
		Open:   parseDecimal(parts[1]),
		Close:  parseDecimal(parts[2]),
		High:   parseDecimal(parts[3]),
		Low:    parseDecimal(parts[4]),
		Volume: parseDecimal(parts[5]),
	}, true
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// klineType maps a candles Resolution to Eastmoney's klt parameter: 101
// daily, 102 weekly, 103 monthly, or an intraday minute count.
func klineType(resolution string) string {
	switch strings.ToUpper(resolution) {
	case "", "D":
		return "101"
	case "W":
		return "102"
	case "M":
		return "103"
	case "1":
		return "1"
	case "5":
		return "5"
	case "15":
		return "15"
	case "30":
		return "30"
	case "60":
		return "60"
	default:
		return "101"
	}
}

func candleLimit(outputSize string) int {
	if outputSize == "full" {
		return 1000
	}
	return 100
}
