package market

import (
	"testing"

	"github.com/LeeXN/finance-gateway/internal/model"
	"github.com/stretchr/testify/assert"
)

func Test_Classify(t *testing.T) {
	tests := []struct {
		name        string
		symbol      string
		want        model.Market
		description string
	}{
		{
			name:        "US bare ticker",
			symbol:      "AAPL",
			want:        model.MarketUS,
			description: "1-5 uppercase letters with no suffix is US",
		},
		{
			name:        "US single letter ticker",
			symbol:      "F",
			want:        model.MarketUS,
			description: "Ford's one-letter ticker still matches the bare US rule",
		},
		{
			name:        "Shanghai suffix",
			symbol:      "601899.SH",
			want:        model.MarketSH,
			description: "explicit .SH suffix wins regardless of prefix digits",
		},
		{
			name:        "Shanghai alternate suffix",
			symbol:      "601899.SS",
			want:        model.MarketSH,
			description: ".SS is a recognized Shanghai suffix alias",
		},
		{
			name:        "Shenzhen suffix",
			symbol:      "000001.SZ",
			want:        model.MarketSZ,
			description: "explicit .SZ suffix",
		},
		{
			name:        "Beijing suffix",
			symbol:      "430047.BJ",
			want:        model.MarketBJ,
			description: "explicit .BJ suffix",
		},
		{
			name:        "Hong Kong suffix",
			symbol:      "0700.HK",
			want:        model.MarketHK,
			description: "explicit .HK suffix",
		},
		{
			name:        "suffix case insensitivity",
			symbol:      "601899.sh",
			want:        model.MarketSH,
			description: "suffix matching is case-insensitive",
		},
		{
			name:        "bare Shanghai prefix",
			symbol:      "601899",
			want:        model.MarketSH,
			description: "6-prefix numeric code with no suffix falls back to SH",
		},
		{
			name:        "bare Shanghai prefix starting with 5",
			symbol:      "513050",
			want:        model.MarketSH,
			description: "5-prefix numeric code (ETF) falls back to SH",
		},
		{
			name:        "bare Shenzhen prefix",
			symbol:      "000001",
			want:        model.MarketSZ,
			description: "0-prefix numeric code falls back to SZ",
		},
		{
			name:        "bare Shenzhen prefix starting with 3",
			symbol:      "300750",
			want:        model.MarketSZ,
			description: "3-prefix ChiNext code falls back to SZ",
		},
		{
			name:        "bare Beijing prefix",
			symbol:      "430047",
			want:        model.MarketBJ,
			description: "4-prefix numeric code falls back to BJ",
		},
		{
			name:        "bare Beijing prefix starting with 8",
			symbol:      "830799",
			want:        model.MarketBJ,
			description: "8-prefix numeric code falls back to BJ",
		},
		{
			name:        "five digit HK code",
			symbol:      "00700",
			want:        model.MarketHK,
			description: "5-digit numeric codes are HK even though they start with a SZ-style digit",
		},
		{
			name:        "suffix wins over digit prefix",
			symbol:      "000001.SZ",
			want:        model.MarketSZ,
			description: "explicit suffix takes priority when both rules would match",
		},
		{
			name:        "empty symbol",
			symbol:      "",
			want:        model.MarketUnknown,
			description: "empty input is unknown",
		},
		{
			name:        "whitespace not trimmed",
			symbol:      " AAPL",
			want:        model.MarketUnknown,
			description: "classifier accepts the symbol exactly as routed; padded whitespace is unknown",
		},
		{
			name:        "lowercase letters too long for bare US rule",
			symbol:      "toolong1",
			want:        model.MarketUnknown,
			description: "not a suffix match, not all-digit, more than 5 alpha chars",
		},
		{
			name:        "six uppercase letters",
			symbol:      "GOOGLE",
			want:        model.MarketUnknown,
			description: "bare US rule caps at 5 letters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.symbol)
			assert.Equal(t, tt.want, got, tt.description)
		})
	}
}

func Test_Classify_SuffixCaseInsensitivity(t *testing.T) {
	mixed := []string{"601899.Sh", "601899.sH", "601899.SH"}
	for _, sym := range mixed {
		assert.Equal(t, model.MarketSH, Classify(sym), sym)
	}
}
