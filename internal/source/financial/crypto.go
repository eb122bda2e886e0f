package financial

import (
	"context"
	"net/url"
	"strings"

	"github.com/JakeFAU/multisource-scraper/internal/fetcher"
	"github.com/JakeFAU/multisource-scraper/internal/scrape"
	"github.com/JakeFAU/multisource-scraper/internal/source"
)

// Crypto reads the CoinGecko markets endpoint.
type Crypto struct {
	source.Base
	baseURL string
}

type coin struct {
	Symbol                   string   `json:"symbol"`
	Name                     string   `json:"name"`
	CurrentPrice             *float64 `json:"current_price"`
	MarketCap                *float64 `json:"market_cap"`
	MarketCapRank            *int     `json:"market_cap_rank"`
	PriceChange24h           *float64 `json:"price_change_24h"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
}

// NewCrypto creates the crypto source.
func NewCrypto(deps source.Deps, baseURL string) *Crypto {
	return &Crypto{Base: source.NewBase("crypto", deps), baseURL: strings.TrimRight(baseURL, "/")}
}

// Scrape implements scrape.Source. Records are labeled "coingecko".
func (s *Crypto) Scrape(ctx context.Context, params scrape.Params) ([]scrape.Record, error) {
	var coins []coin
	err := s.GetJSON(ctx, fetcher.Request{
		URL: s.baseURL + "/coins/markets",
		Query: url.Values{
			"vs_currency": {params.StringOr("vs_currency", "usd")},
			"order":       {"market_cap_desc"},
			"per_page":    {"100"},
			"page":        {"1"},
			"sparkline":   {"false"},
		},
	}, &coins)
	if err != nil {
		return nil, &scrape.SourceError{Source: s.Name(), Err: err}
	}
	records := make([]scrape.Record, 0, len(coins))
	for _, c := range coins {
		rec := s.NewRecordFor("coingecko")
		rec.Set("symbol", strings.ToUpper(c.Symbol))
		rec.Set("name", c.Name)
		setOptional(&rec, "current_price", c.CurrentPrice)
		setOptional(&rec, "market_cap", c.MarketCap)
		setOptional(&rec, "market_cap_rank", c.MarketCapRank)
		setOptional(&rec, "price_change_24h", c.PriceChange24h)
		setOptional(&rec, "price_change_percentage_24h", c.PriceChangePercentage24h)
		records = append(records, rec)
	}
	return records, nil
}

func setOptional[T any](rec *scrape.Record, key string, v *T) {
	if v != nil {
		rec.Set(key, *v)
	}
}
