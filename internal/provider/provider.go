// Package provider defines the Adapter contract implemented by each
// upstream financial-data source and the shared scaffolding (capability
// map, market coverage set, injected key pool and circuit breaker) common
// to all six concrete adapters under internal/provider/<name>.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/LeeXN/finance-gateway/internal/breaker"
	"github.com/LeeXN/finance-gateway/internal/keypool"
	"github.com/LeeXN/finance-gateway/internal/model"
)

// Tag identifies a concrete upstream provider. It is the same set of values
// as model.Provider; Adapter.Tag returns this type directly so router and
// dispatcher code never has to convert between the two.
type Tag = model.Provider

// Args bundles every argument any tool operation might need. A given
// Handler only reads the fields its own operation uses; the Tool Facade is
// responsible for populating the fields relevant to the tool it's serving.
type Args struct {
	Symbol     string
	Resolution string // candles: "D", "W", "M", "1", "5", "15", "30", "60"
	From       string // YYYY-MM-DD
	To         string // YYYY-MM-DD
	OutputSize string // daily prices: "compact" | "full"
	Category   string // news
	MinID      int64  // news
	MetricType string // company_metrics
	Indicator  string // technical_indicator: "RSI", "SMA", ...
	Interval   string // technical_indicator: "daily", "weekly", ...
	TimePeriod int    // technical_indicator
}

// Handler executes one operation against an upstream, given the credential
// acquired from the adapter's key pool. It returns one of the model record
// types (model.Quote, []model.Candle, map[string]model.Candle,
// []model.NewsItem, model.CompanyInfo, model.Financials, model.Indicator).
type Handler func(ctx context.Context, credential string, args Args) (any, error)

// Adapter is the contract every upstream connector satisfies. It owns its
// key pool and circuit breaker (process-wide singletons constructed once at
// startup per spec §3) rather than having the Dispatcher look them up
// separately, since each provider's pool/breaker only ever serves that one
// provider.
type Adapter interface {
	Tag() Tag
	Supports(tool model.Tool) bool
	Covers(market model.Market) bool
	Keys() *keypool.Pool
	Breaker() *breaker.Breaker
	// IsAvailable reports whether the provider has any non-cooling key and
	// its circuit would currently let a call through, without consuming
	// the circuit's half-open trial budget.
	IsAvailable() bool
	Handle(ctx context.Context, tool model.Tool, credential string, args Args) (any, error)
}

// Base implements the bookkeeping shared by every adapter: capability
// lookup, market coverage, and delegation to the injected key pool and
// circuit breaker. Concrete adapters embed Base and populate handlers in
// their constructor.
type Base struct {
	tag      Tag
	keys     *keypool.Pool
	cb       *breaker.Breaker
	timeout  time.Duration
	coverage map[model.Market]bool
	handlers map[model.Tool]Handler
}

// NewBase builds a Base with the given identity, key pool, breaker, call
// timeout, and market coverage set. Concrete adapters call this from their
// own constructor and then populate handlers via SetHandler.
func NewBase(tag Tag, keys *keypool.Pool, cb *breaker.Breaker, timeout time.Duration, coverage []model.Market) *Base {
	cov := make(map[model.Market]bool, len(coverage))
	for _, m := range coverage {
		cov[m] = true
	}
	return &Base{
		tag:      tag,
		keys:     keys,
		cb:       cb,
		timeout:  timeout,
		coverage: cov,
		handlers: make(map[model.Tool]Handler),
	}
}

// SetHandler registers the handler for one tool's capability. Call once per
// supported operation from the concrete adapter's constructor.
func (b *Base) SetHandler(tool model.Tool, h Handler) {
	b.handlers[tool] = h
}

func (b *Base) Tag() Tag { return b.tag }

func (b *Base) Supports(tool model.Tool) bool {
	_, ok := b.handlers[tool]
	return ok
}

func (b *Base) Covers(market model.Market) bool {
	return b.coverage[market]
}

func (b *Base) Keys() *keypool.Pool { return b.keys }

func (b *Base) Breaker() *breaker.Breaker { return b.cb }

func (b *Base) Timeout() time.Duration { return b.timeout }

func (b *Base) IsAvailable() bool {
	return b.keys.Available() && b.cb.IsAvailable()
}

// Handle dispatches to the registered handler for tool, applying the
// adapter's configured timeout as a context deadline around the call. It
// returns a descriptive error, naming the provider and tool, if the
// operation isn't supported — callers should normally have already checked
// Supports before reaching this point (the router filters on capability),
// so this path is a defensive fallback, not the common case.
func (b *Base) Handle(ctx context.Context, tool model.Tool, credential string, args Args) (any, error) {
	h, ok := b.handlers[tool]
	if !ok {
		return nil, fmt.Errorf("%s: operation %s not supported", b.tag, tool)
	}
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	return h(ctx, credential, args)
}
