// Package model defines the common record shapes produced by provider
// adapters and consumed by the Tool Facade, plus the Market and Provider
// enumerations that the Source Router and Key Pool key their state on.
//
// All monetary and numeric fields use decimal.Decimal so adapters never
// lose precision converting an upstream's string-encoded price into a
// floating point value and back again.
package model

import (
	"github.com/shopspring/decimal"
)

// Market is a coarse tag of a symbol's venue, used to filter which
// providers are allowed to serve a given symbol.
type Market string

const (
	MarketUS      Market = "US"
	MarketSH      Market = "SH"
	MarketSZ      Market = "SZ"
	MarketBJ      Market = "BJ"
	MarketHK      Market = "HK"
	MarketUnknown Market = "UNKNOWN"
)

// Provider is an enumerated upstream financial-data source.
type Provider string

const (
	ProviderFinnhub      Provider = "finnhub"
	ProviderAlphaVantage Provider = "alphavantage"
	ProviderTwelveData   Provider = "twelvedata"
	ProviderTiingo       Provider = "tiingo"
	ProviderSina         Provider = "sina"
	ProviderEastmoney    Provider = "eastmoney"
)

// Tool identifies one of the operations exposed by the Tool Facade. The
// Source Router and provider capability maps key on this, not on the
// outer-facing tool name — get_quote and get_stock_quote both resolve to
// ToolQuote before reaching the router.
type Tool string

const (
	ToolQuote              Tool = "quote"
	ToolCandles            Tool = "candles"
	ToolDailyPrices        Tool = "daily_prices"
	ToolNews               Tool = "news"
	ToolCompanyOverview    Tool = "company_overview"
	ToolBasicFinancials    Tool = "basic_financials"
	ToolIncomeStatement    Tool = "income_statement"
	ToolBalanceSheet       Tool = "balance_sheet"
	ToolCashFlow           Tool = "cash_flow"
	ToolTechnicalIndicator Tool = "technical_indicator"
)

// Quote is a normalized real-time (or last-traded) price snapshot.
type Quote struct {
	Symbol        string
	Current       decimal.Decimal
	Change        decimal.Decimal
	PercentChange decimal.Decimal
	DayHigh       decimal.Decimal
	DayLow        decimal.Decimal
	DayOpen       decimal.Decimal
	PrevClose     decimal.Decimal
}

// Candle is one OHLCV bar for a trading session.
type Candle struct {
	Date     string // YYYY-MM-DD
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   decimal.Decimal
	AdjClose decimal.Decimal // meaningful only when HasAdj is true
	HasAdj   bool
}

// NewsItem is one normalized news article or press release.
type NewsItem struct {
	ID       string
	Headline string
	Summary  string
	URL      string
	Datetime int64 // unix seconds
	Source   string
	Category string
	Related  string
}

// CompanyInfo is normalized issuer/company metadata.
type CompanyInfo struct {
	Symbol            string
	Name              string
	Industry          string
	Sector            string
	MarketCap         decimal.Decimal
	HasMarketCap      bool
	SharesOutstanding decimal.Decimal
	HasShares         bool
	Description       string
	Peers             []string
}

// FinancialStatement is a named set of financial-statement line items for
// one period, e.g. {"totalRevenue": 12345.0}.
type FinancialStatement map[string]decimal.Decimal

// Financials bundles the three statement kinds a provider may return for a
// symbol. Any of the three may be nil when the provider or operation
// doesn't produce that statement.
type Financials struct {
	Symbol   string
	Period   string
	Income   FinancialStatement
	Balance  FinancialStatement
	CashFlow FinancialStatement
}

// IndicatorPoint is one (timestamp -> value) sample of a technical
// indicator series.
type IndicatorPoint struct {
	Timestamp int64 // unix seconds
	Value     decimal.Decimal
}

// Indicator is a named technical-indicator series for a symbol, ordered
// oldest-first.
type Indicator struct {
	Name   string
	Symbol string
	Series []IndicatorPoint
}
