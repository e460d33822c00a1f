// Package facade exposes one function per externally-visible tool (spec.md
// §6's table), translating a typed argument struct into a Dispatcher call
// and the Dispatcher's result/error back into the record types and typed
// sentinel errors the transport layer (cmd/server) serializes.
//
// Each method validates its arguments with struct tags via
// go-playground/validator, the same validate-then-delegate shape the
// teacher's exchange connectors use before touching the network.
package facade

import (
	"context"
	"fmt"

	"github.com/LeeXN/finance-gateway/internal/dispatcher"
	"github.com/LeeXN/finance-gateway/internal/model"
	"github.com/LeeXN/finance-gateway/internal/provider"
	"github.com/go-playground/validator/v10"
)

// Facade is the process-wide entry point the transport layer calls into.
// It owns nothing beyond a Dispatcher and a validator instance; all state
// (adapters, router, key pools, breakers) lives one layer down.
type Facade struct {
	dispatcher *dispatcher.Dispatcher
	validate   *validator.Validate
}

// New builds a Facade around an already-wired Dispatcher.
func New(d *dispatcher.Dispatcher) *Facade {
	return &Facade{dispatcher: d, validate: validator.New()}
}

func (f *Facade) validateArgs(args any) error {
	if err := f.validate.Struct(args); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return nil
}

// GetStockQuoteArgs are the arguments for the get_stock_quote and get_quote
// tools, which both resolve to the single canonical quote operation per
// spec.md §9's aliasing note.
type GetStockQuoteArgs struct {
	Symbol string `json:"symbol" validate:"required"`
}

// GetStockQuote fetches a real-time (or last-traded) quote for Symbol.
func (f *Facade) GetStockQuote(ctx context.Context, args GetStockQuoteArgs) (model.Quote, error) {
	if err := f.validateArgs(args); err != nil {
		return model.Quote{}, err
	}
	data, err := f.dispatch(ctx, model.ToolQuote, args.Symbol, provider.Args{Symbol: args.Symbol})
	if err != nil {
		return model.Quote{}, err
	}
	q, ok := data.(model.Quote)
	if !ok {
		return model.Quote{}, fmt.Errorf("%w: provider returned %T for quote", ErrUpstreamPermanent, data)
	}
	return q, nil
}

// GetQuote is the get_quote alias for GetStockQuote.
func (f *Facade) GetQuote(ctx context.Context, args GetStockQuoteArgs) (model.Quote, error) {
	return f.GetStockQuote(ctx, args)
}

// GetStockCandlesArgs are the arguments for get_stock_candles.
type GetStockCandlesArgs struct {
	Symbol     string `json:"symbol" validate:"required"`
	Resolution string `json:"resolution" validate:"omitempty,oneof=D W M 1 5 15 30 60"`
	From       string `json:"from" validate:"omitempty,datetime=2006-01-02"`
	To         string `json:"to" validate:"omitempty,datetime=2006-01-02"`
}

// GetStockCandles fetches OHLCV bars for Symbol over [From, To] at
// Resolution, defaulting to daily bars when Resolution is empty.
func (f *Facade) GetStockCandles(ctx context.Context, args GetStockCandlesArgs) ([]model.Candle, error) {
	if err := f.validateArgs(args); err != nil {
		return nil, err
	}
	data, err := f.dispatch(ctx, model.ToolCandles, args.Symbol, provider.Args{
		Symbol: args.Symbol, Resolution: args.Resolution, From: args.From, To: args.To,
	})
	if err != nil {
		return nil, err
	}
	candles, ok := data.([]model.Candle)
	if !ok {
		return nil, fmt.Errorf("%w: provider returned %T for candles", ErrUpstreamPermanent, data)
	}
	return candles, nil
}

// GetDailyPricesArgs are the arguments for get_daily_prices.
type GetDailyPricesArgs struct {
	Symbol     string `json:"symbol" validate:"required"`
	OutputSize string `json:"outputsize" validate:"omitempty,oneof=compact full"`
}

// GetDailyPrices fetches a date-keyed map of end-of-day bars for Symbol.
func (f *Facade) GetDailyPrices(ctx context.Context, args GetDailyPricesArgs) (map[string]model.Candle, error) {
	if err := f.validateArgs(args); err != nil {
		return nil, err
	}
	outputSize := args.OutputSize
	if outputSize == "" {
		outputSize = "compact"
	}
	data, err := f.dispatch(ctx, model.ToolDailyPrices, args.Symbol, provider.Args{
		Symbol: args.Symbol, OutputSize: outputSize,
	})
	if err != nil {
		return nil, err
	}
	byDate, ok := data.(map[string]model.Candle)
	if !ok {
		return nil, fmt.Errorf("%w: provider returned %T for daily prices", ErrUpstreamPermanent, data)
	}
	return byDate, nil
}

// GetNewsArgs are the arguments for get_news.
type GetNewsArgs struct {
	Symbol   string `json:"symbol" validate:"required"`
	Category string `json:"category"`
	MinID    int64  `json:"minId"`
}

// GetNews fetches recent news/press releases about Symbol.
func (f *Facade) GetNews(ctx context.Context, args GetNewsArgs) ([]model.NewsItem, error) {
	if err := f.validateArgs(args); err != nil {
		return nil, err
	}
	data, err := f.dispatch(ctx, model.ToolNews, args.Symbol, provider.Args{
		Symbol: args.Symbol, Category: args.Category, MinID: args.MinID,
	})
	if err != nil {
		return nil, err
	}
	news, ok := data.([]model.NewsItem)
	if !ok {
		return nil, fmt.Errorf("%w: provider returned %T for news", ErrUpstreamPermanent, data)
	}
	return news, nil
}

// GetCompanyOverviewArgs are the arguments for get_company_overview.
type GetCompanyOverviewArgs struct {
	Symbol string `json:"symbol" validate:"required"`
}

// GetCompanyOverview fetches issuer/company metadata for Symbol.
func (f *Facade) GetCompanyOverview(ctx context.Context, args GetCompanyOverviewArgs) (model.CompanyInfo, error) {
	if err := f.validateArgs(args); err != nil {
		return model.CompanyInfo{}, err
	}
	data, err := f.dispatch(ctx, model.ToolCompanyOverview, args.Symbol, provider.Args{Symbol: args.Symbol})
	if err != nil {
		return model.CompanyInfo{}, err
	}
	info, ok := data.(model.CompanyInfo)
	if !ok {
		return model.CompanyInfo{}, fmt.Errorf("%w: provider returned %T for company overview", ErrUpstreamPermanent, data)
	}
	return info, nil
}

// GetCompanyBasicFinancialsArgs are the arguments for
// get_company_basic_financials.
type GetCompanyBasicFinancialsArgs struct {
	Symbol string `json:"symbol" validate:"required"`
}

// GetCompanyBasicFinancials fetches summary financial ratios for Symbol.
func (f *Facade) GetCompanyBasicFinancials(ctx context.Context, args GetCompanyBasicFinancialsArgs) (model.Financials, error) {
	if err := f.validateArgs(args); err != nil {
		return model.Financials{}, err
	}
	data, err := f.dispatch(ctx, model.ToolBasicFinancials, args.Symbol, provider.Args{Symbol: args.Symbol})
	if err != nil {
		return model.Financials{}, err
	}
	fin, ok := data.(model.Financials)
	if !ok {
		return model.Financials{}, fmt.Errorf("%w: provider returned %T for basic financials", ErrUpstreamPermanent, data)
	}
	return fin, nil
}

// GetCompanyMetricsArgs are the arguments for get_company_metrics. It is
// additive over get_company_overview: MetricType is passed through to the
// adapter so it may subset the fields it returns, but the operation still
// resolves through the company_overview capability/route since no adapter
// registers a distinct metrics handler.
type GetCompanyMetricsArgs struct {
	Symbol     string `json:"symbol" validate:"required"`
	MetricType string `json:"metricType"`
}

// GetCompanyMetrics fetches company metadata, optionally narrowed by
// MetricType.
func (f *Facade) GetCompanyMetrics(ctx context.Context, args GetCompanyMetricsArgs) (model.CompanyInfo, error) {
	if err := f.validateArgs(args); err != nil {
		return model.CompanyInfo{}, err
	}
	data, err := f.dispatch(ctx, model.ToolCompanyOverview, args.Symbol, provider.Args{
		Symbol: args.Symbol, MetricType: args.MetricType,
	})
	if err != nil {
		return model.CompanyInfo{}, err
	}
	info, ok := data.(model.CompanyInfo)
	if !ok {
		return model.CompanyInfo{}, fmt.Errorf("%w: provider returned %T for company metrics", ErrUpstreamPermanent, data)
	}
	return info, nil
}

// StatementArgs are the shared arguments for get_income_statement,
// get_balance_sheet, and get_cash_flow — all three fetch the same
// Financials shape, differing only in which of its fields are populated by
// the underlying adapter.
type StatementArgs struct {
	Symbol string `json:"symbol" validate:"required"`
}

// GetIncomeStatement fetches income-statement line items for Symbol.
func (f *Facade) GetIncomeStatement(ctx context.Context, args StatementArgs) (model.Financials, error) {
	return f.statement(ctx, model.ToolIncomeStatement, args)
}

// GetBalanceSheet fetches balance-sheet line items for Symbol.
func (f *Facade) GetBalanceSheet(ctx context.Context, args StatementArgs) (model.Financials, error) {
	return f.statement(ctx, model.ToolBalanceSheet, args)
}

// GetCashFlow fetches cash-flow-statement line items for Symbol.
func (f *Facade) GetCashFlow(ctx context.Context, args StatementArgs) (model.Financials, error) {
	return f.statement(ctx, model.ToolCashFlow, args)
}

func (f *Facade) statement(ctx context.Context, tool model.Tool, args StatementArgs) (model.Financials, error) {
	if err := f.validateArgs(args); err != nil {
		return model.Financials{}, err
	}
	data, err := f.dispatch(ctx, tool, args.Symbol, provider.Args{Symbol: args.Symbol})
	if err != nil {
		return model.Financials{}, err
	}
	fin, ok := data.(model.Financials)
	if !ok {
		return model.Financials{}, fmt.Errorf("%w: provider returned %T for %s", ErrUpstreamPermanent, data, tool)
	}
	return fin, nil
}

// GetTechnicalIndicatorArgs are the arguments for get_technical_indicator.
type GetTechnicalIndicatorArgs struct {
	Symbol     string `json:"symbol" validate:"required"`
	Indicator  string `json:"indicator" validate:"required"`
	Interval   string `json:"interval" validate:"omitempty,oneof=daily weekly monthly"`
	TimePeriod int    `json:"time_period" validate:"omitempty,min=1"`
}

// GetTechnicalIndicator fetches a named technical-indicator series for
// Symbol, defaulting Interval to "daily" and TimePeriod to 14.
func (f *Facade) GetTechnicalIndicator(ctx context.Context, args GetTechnicalIndicatorArgs) (model.Indicator, error) {
	if err := f.validateArgs(args); err != nil {
		return model.Indicator{}, err
	}
	interval := args.Interval
	if interval == "" {
		interval = "daily"
	}
	timePeriod := args.TimePeriod
	if timePeriod == 0 {
		timePeriod = 14
	}
	data, err := f.dispatch(ctx, model.ToolTechnicalIndicator, args.Symbol, provider.Args{
		Symbol: args.Symbol, Indicator: args.Indicator, Interval: interval, TimePeriod: timePeriod,
	})
	if err != nil {
		return model.Indicator{}, err
	}
	ind, ok := data.(model.Indicator)
	if !ok {
		return model.Indicator{}, fmt.Errorf("%w: provider returned %T for technical indicator", ErrUpstreamPermanent, data)
	}
	return ind, nil
}

// dispatch builds the Executor closure every tool method shares — bind the
// tool and its already-populated provider.Args, call Handle with whatever
// credential the Dispatcher acquired — and translates any Dispatcher error
// into this package's sentinel error family.
func (f *Facade) dispatch(ctx context.Context, tool model.Tool, symbol string, args provider.Args) (any, error) {
	data, err := f.dispatcher.Dispatch(ctx, tool, symbol, func(ctx context.Context, a provider.Adapter, credential string) (any, error) {
		return a.Handle(ctx, tool, credential, args)
	})
	if err != nil {
		return nil, translateDispatchError(err)
	}
	return data.Data, nil
}
