// Package market classifies a trading symbol into a coarse Market tag
// (US, SH, SZ, BJ, HK, UNKNOWN) so the Source Router can filter candidate
// providers by coverage before the Dispatcher ever looks at a key or a
// circuit breaker.
package market

import (
	"regexp"
	"strings"

	"github.com/LeeXN/finance-gateway/internal/model"
)

var usBareSymbol = regexp.MustCompile(`^[A-Z]{1,5}$`)

// suffixMarkets maps a case-insensitive symbol suffix to its Market. Suffix
// rules win over the prefix/length rules below when a symbol matches both.
var suffixMarkets = []struct {
	suffix string
	market model.Market
}{
	{".SH", model.MarketSH},
	{".SS", model.MarketSH},
	{".SZ", model.MarketSZ},
	{".BJ", model.MarketBJ},
	{".HK", model.MarketHK},
}

// Classify derives the Market tag for a symbol exactly as routed — leading
// or trailing whitespace is never trimmed, so a symbol a caller padded with
// whitespace classifies as UNKNOWN rather than silently matching a rule.
func Classify(symbol string) model.Market {
	if symbol == "" || strings.TrimSpace(symbol) != symbol {
		return model.MarketUnknown
	}

	upper := strings.ToUpper(symbol)

	for _, rule := range suffixMarkets {
		if strings.HasSuffix(upper, rule.suffix) {
			return rule.market
		}
	}

	if usBareSymbol.MatchString(upper) {
		return model.MarketUS
	}

	if len(upper) == 5 && isAllDigits(upper) {
		return model.MarketHK
	}

	if market, ok := classifyByDigitPrefix(upper); ok {
		return market
	}

	return model.MarketUnknown
}

// classifyByDigitPrefix applies the Chinese A-share numeric-code fallback:
// a bare numeric code (no suffix) starting with 6 or 5 trades on the
// Shanghai exchange, 0/2/3 on Shenzhen, 4/8 on Beijing. Checked only after
// the 5-digit HK rule, since HK codes are themselves 5-digit numerics.
func classifyByDigitPrefix(symbol string) (model.Market, bool) {
	if len(symbol) == 0 || !isAllDigits(symbol) {
		return "", false
	}

	switch symbol[0] {
	case '6', '5':
		return model.MarketSH, true
	case '0', '2', '3':
		return model.MarketSZ, true
	case '4', '8':
		return model.MarketBJ, true
	default:
		return "", false
	}
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
