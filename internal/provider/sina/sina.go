// Package sina adapts Sina Finance's plaintext quote feed
// (https://hq.sinajs.cn) to the common provider contract. It is quote-only
// and covers Shanghai/Shenzhen/Beijing-listed symbols; it requires no API
// key and paces its own requests to stay under the feed's informal IP
// throttle.
package sina

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/LeeXN/finance-gateway/internal/breaker"
	"github.com/LeeXN/finance-gateway/internal/httpx"
	"github.com/LeeXN/finance-gateway/internal/keypool"
	"github.com/LeeXN/finance-gateway/internal/market"
	"github.com/LeeXN/finance-gateway/internal/model"
	"github.com/LeeXN/finance-gateway/internal/provider"

	"github.com/shopspring/decimal"
)

const defaultBaseURL = "https://hq.sinajs.cn"

// Config configures an Adapter.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	MinRequestGap time.Duration // default 200ms
}

// Adapter implements provider.Adapter for Sina's public quote feed.
type Adapter struct {
	*provider.Base
	cfg    Config
	client *httpx.Client
	pace   *httpx.Paced
}

// New builds a Sina adapter backed by a key-less pool; the keys/cb
// arguments are still accepted so construction mirrors every other
// adapter and the dispatcher never needs to special-case a key-less
// provider.
func New(cfg Config, keys *keypool.Pool, cb *breaker.Breaker, client *httpx.Client) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MinRequestGap <= 0 {
		cfg.MinRequestGap = 200 * time.Millisecond
	}

	a := &Adapter{
		Base: provider.NewBase(model.ProviderSina, keys, cb, cfg.Timeout, []model.Market{
			model.MarketSH, model.MarketSZ, model.MarketBJ,
		}),
		cfg:    cfg,
		client: client,
		pace:   &httpx.Paced{Interval: cfg.MinRequestGap},
	}

	a.SetHandler(model.ToolQuote, a.fetchQuote)

	return a
}

func (a *Adapter) fetchQuote(ctx context.Context, credential string, args provider.Args) (any, error) {
	wireSymbol, err := wireSymbol(args.Symbol)
	if err != nil {
		return nil, provider.AppError(model.ProviderSina, err.Error())
	}

	var fields []string
	err = a.pace.Call(ctx, func(ctx context.Context) error {
		req, err := http.NewRequest(http.MethodGet, a.cfg.BaseURL+"/list="+wireSymbol, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Referer", "https://finance.sina.com.cn/")

		resp, err := a.client.Do(ctx, req)
		if err != nil {
			return fmt.Errorf("%s: %w", model.ProviderSina, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return provider.StatusError(model.ProviderSina, resp)
		}

		fields, err = parseFeedLine(string(body))
		return err
	})
	if err != nil {
		return nil, err
	}

	// index layout: 0 name, 1 open, 2 prevclose, 3 current, 4 high, 5 low
	if len(fields) < 6 {
		return nil, provider.AppError(model.ProviderSina, "unrecognized feed for "+args.Symbol)
	}

	open := parseDecimal(fields[1])
	prevClose := parseDecimal(fields[2])
	current := parseDecimal(fields[3])
	high := parseDecimal(fields[4])
	low := parseDecimal(fields[5])

	change := current.Sub(prevClose)
	var percent decimal.Decimal
	if !prevClose.IsZero() {
		percent = change.Div(prevClose).Mul(decimal.NewFromInt(100))
	}

	return model.Quote{
		Symbol:        args.Symbol,
		Current:       current,
		Change:        change,
		PercentChange: percent,
		DayHigh:       high,
		DayLow:        low,
		DayOpen:       open,
		PrevClose:     prevClose,
	}, nil
}

// wireSymbol converts a gateway symbol (e.g. "601899.SH" or "601899") into
// Sina's prefixed wire form (e.g. "sh601899"), based on the market the
// symbol classifies to.
func wireSymbol(symbol string) (string, error) {
	code := symbol
	if i := strings.IndexByte(symbol, '.'); i >= 0 {
		code = symbol[:i]
	}

	switch market.Classify(symbol) {
	case model.MarketSH:
		return "sh" + code, nil
	case model.MarketSZ:
		return "sz" + code, nil
	case model.MarketBJ:
		return "bj" + code, nil
	default:
		return "", fmt.Errorf("symbol %q is not a recognized SH/SZ/BJ code", symbol)
	}
}

// parseFeedLine extracts the comma-separated field list from Sina's
// `var hq_str_<code>="f1,f2,...";` response line.
func parseFeedLine(body string) ([]string, error) {
	start := strings.IndexByte(body, '"')
	end := strings.LastIndexByte(body, '"')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%s: malformed feed response", model.ProviderSina)
	}
	content := body[start+1 : end]
	if content == "" {
		return nil, fmt.Errorf("%s: empty feed response, symbol may not exist", model.ProviderSina)
	}
	return strings.Split(content, ","), nil
}

func parseDecimal(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
