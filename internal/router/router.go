// Package router implements the Source Router (spec §4.6): given a tool and
// an optional symbol, it produces an ordered candidate list of providers by
// combining a per-tool priority list with a per-market coverage set, then
// filtering to providers that actually support the tool.
//
// The default priority and market-coverage tables below are this gateway's
// own static configuration — nothing upstream of this repo specifies them
// verbatim, so they're authored here from each adapter's known capability
// and market-coverage set (see internal/provider/<name>), roughly ordered
// by data quality/reliability within a tier. internal/config loads any
// environment overrides and passes them into New.
package router

import (
	"strings"

	"github.com/LeeXN/finance-gateway/internal/market"
	"github.com/LeeXN/finance-gateway/internal/model"
	"github.com/LeeXN/finance-gateway/internal/provider"
)

// Tag is a provider enum value, aliased for readability in router code.
type Tag = provider.Tag

// DefaultPriority is the static per-tool candidate order, used whenever no
// SOURCE_PRIORITY_<TOOL> override applies; a legacy PRIMARY/SECONDARY_API_SOURCE
// order is prepended ahead of it.
func DefaultPriority() map[model.Tool][]Tag {
	return map[model.Tool][]Tag{
		model.ToolQuote:              {model.ProviderFinnhub, model.ProviderTwelveData, model.ProviderSina, model.ProviderEastmoney},
		model.ToolCandles:            {model.ProviderFinnhub, model.ProviderTwelveData, model.ProviderEastmoney},
		model.ToolDailyPrices:        {model.ProviderAlphaVantage, model.ProviderTiingo},
		model.ToolNews:               {model.ProviderFinnhub, model.ProviderTiingo},
		model.ToolCompanyOverview:    {model.ProviderFinnhub, model.ProviderAlphaVantage, model.ProviderTiingo},
		model.ToolBasicFinancials:    {model.ProviderFinnhub},
		model.ToolIncomeStatement:    {model.ProviderAlphaVantage},
		model.ToolBalanceSheet:       {model.ProviderAlphaVantage},
		model.ToolCashFlow:           {model.ProviderAlphaVantage},
		model.ToolTechnicalIndicator: {model.ProviderFinnhub, model.ProviderAlphaVantage, model.ProviderTwelveData},
	}
}

// DefaultMarketCoverage is the static per-market provider set, in canonical
// (fallback) order, used both to intersect against a tool's priority list
// and as the fallback order when that intersection is empty.
func DefaultMarketCoverage() map[model.Market][]Tag {
	return map[model.Market][]Tag{
		model.MarketUS: {model.ProviderFinnhub, model.ProviderAlphaVantage, model.ProviderTwelveData, model.ProviderTiingo},
		model.MarketHK: {model.ProviderTwelveData, model.ProviderEastmoney},
		model.MarketSH: {model.ProviderTwelveData, model.ProviderSina, model.ProviderEastmoney},
		model.MarketSZ: {model.ProviderSina, model.ProviderEastmoney},
		model.MarketBJ: {model.ProviderSina, model.ProviderEastmoney},
	}
}

// Router produces ordered candidate lists per spec §4.6. It is built once
// at startup from the process's adapters and any environment overrides,
// then treated as immutable/read-only for the lifetime of the process.
type Router struct {
	adapters        map[Tag]provider.Adapter
	defaultPriority map[model.Tool][]Tag
	customPriority  map[model.Tool][]Tag
	marketCoverage  map[model.Market][]Tag
	legacyOrder     []Tag
}

// New builds a Router. customPriority and marketCoverageOverride come from
// SOURCE_PRIORITY_<TOOL>/MARKET_SOURCES_<MARKET> env vars (internal/config);
// either may be nil. legacyOrder comes from PRIMARY_API_SOURCE +
// SECONDARY_API_SOURCE and, when set, is prepended ahead of every tool's
// custom/default priority, per the original source's global two-source
// override that predates the per-tool SOURCE_PRIORITY_* mechanism.
func New(adapters []provider.Adapter, customPriority map[model.Tool][]Tag, marketCoverageOverride map[model.Market][]Tag, legacyOrder []Tag) *Router {
	byTag := make(map[Tag]provider.Adapter, len(adapters))
	for _, a := range adapters {
		byTag[a.Tag()] = a
	}

	coverage := DefaultMarketCoverage()
	for m, tags := range marketCoverageOverride {
		coverage[m] = tags
	}

	return &Router{
		adapters:        byTag,
		defaultPriority: DefaultPriority(),
		customPriority:  customPriority,
		marketCoverage:  coverage,
		legacyOrder:     legacyOrder,
	}
}

// Route produces the ordered candidate list for tool, optionally narrowed
// by symbol's inferred market. An empty result means "no candidate
// provider" per spec §4.6 step 4.
func (r *Router) Route(tool model.Tool, symbol string) []Tag {
	base := r.base(tool)

	if symbol != "" {
		m := market.Classify(symbol)
		coverage := r.marketCoverage[m]
		base = intersectPreservingOrder(base, coverage)
		if len(base) == 0 {
			base = append([]Tag(nil), coverage...)
		}
	}

	return r.filterByCapability(tool, base)
}

// base resolves the tool's priority list before any market filtering:
// per-tool custom priority, else the built-in default, else a bare
// [finnhub] per spec §4.6 step 1 — then, when the legacy global override is
// set, prepended ahead of that list (in order, deduplicated), per spec §4.6.
func (r *Router) base(tool model.Tool) []Tag {
	var rest []Tag
	switch {
	case len(r.customPriority[tool]) > 0:
		rest = r.customPriority[tool]
	case len(r.defaultPriority[tool]) > 0:
		rest = r.defaultPriority[tool]
	default:
		rest = []Tag{model.ProviderFinnhub}
	}

	if len(r.legacyOrder) == 0 {
		return rest
	}
	combined := append(append([]Tag{}, r.legacyOrder...), rest...)
	return dedupePreservingOrder(combined)
}

func dedupePreservingOrder(tags []Tag) []Tag {
	seen := make(map[Tag]bool, len(tags))
	out := make([]Tag, 0, len(tags))
	for _, t := range tags {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func (r *Router) filterByCapability(tool model.Tool, candidates []Tag) []Tag {
	out := make([]Tag, 0, len(candidates))
	for _, tag := range candidates {
		a, ok := r.adapters[tag]
		if !ok || !a.Supports(tool) {
			continue
		}
		out = append(out, tag)
	}
	return out
}

func intersectPreservingOrder(base, coverage []Tag) []Tag {
	allowed := make(map[Tag]bool, len(coverage))
	for _, t := range coverage {
		allowed[t] = true
	}
	out := make([]Tag, 0, len(base))
	for _, t := range base {
		if allowed[t] {
			out = append(out, t)
		}
	}
	return out
}

// ParseTagList parses a comma-separated provider-tag list (as used by
// SOURCE_PRIORITY_<TOOL>, MARKET_SOURCES_<MARKET>, PRIMARY/SECONDARY_API_SOURCE),
// dropping blank entries and any tag that isn't one of the six known
// providers.
func ParseTagList(raw string) []Tag {
	known := map[Tag]bool{
		model.ProviderFinnhub: true, model.ProviderAlphaVantage: true,
		model.ProviderTwelveData: true, model.ProviderTiingo: true,
		model.ProviderSina: true, model.ProviderEastmoney: true,
	}

	var out []Tag
	for _, part := range strings.Split(raw, ",") {
		tag := Tag(strings.ToLower(strings.TrimSpace(part)))
		if tag == "" || !known[tag] {
			continue
		}
		out = append(out, tag)
	}
	return out
}
