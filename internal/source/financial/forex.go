package financial

import (
	"context"
	"sort"

	"github.com/JakeFAU/multisource-scraper/internal/fetcher"
	"github.com/JakeFAU/multisource-scraper/internal/scrape"
	"github.com/JakeFAU/multisource-scraper/internal/source"
)

// Forex reads the latest rates for one base currency.
type Forex struct {
	source.Base
	url string
}

type ratesResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// NewForex creates the forex source.
func NewForex(deps source.Deps, url string) *Forex {
	return &Forex{Base: source.NewBase("forex", deps), url: url}
}

// Scrape implements scrape.Source. One record per target currency, sorted by
// currency code; the base currency itself is skipped.
func (s *Forex) Scrape(ctx context.Context, _ scrape.Params) ([]scrape.Record, error) {
	var resp ratesResponse
	if err := s.GetJSON(ctx, fetcher.Request{URL: s.url}, &resp); err != nil {
		return nil, &scrape.SourceError{Source: s.Name(), Err: err}
	}
	currencies := make([]string, 0, len(resp.Rates))
	for currency := range resp.Rates {
		if currency != resp.Base {
			currencies = append(currencies, currency)
		}
	}
	sort.Strings(currencies)

	records := make([]scrape.Record, 0, len(currencies))
	for _, currency := range currencies {
		rec := s.NewRecordFor("exchangerate-api")
		rec.Set("base_currency", resp.Base)
		rec.Set("target_currency", currency)
		rec.Set("exchange_rate", resp.Rates[currency])
		records = append(records, rec)
	}
	return records, nil
}
