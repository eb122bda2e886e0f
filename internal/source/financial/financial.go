// Package financial scrapes market data: JSE share prices, CoinGecko crypto
// markets and exchangerate-api ZAR rates. The category selects markets with
// the "markets" param.
package financial

import (
	"github.com/JakeFAU/multisource-scraper/internal/scrape"
	"github.com/JakeFAU/multisource-scraper/internal/source"
)

// Endpoints overrides market base URLs.
type Endpoints struct {
	JSE    string
	Crypto string
	Forex  string
}

// DefaultEndpoints are the production market URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		JSE:    "https://www.sharenet.co.za/v3/quotes.php",
		Crypto: "https://api.coingecko.com/api/v3",
		Forex:  "https://api.exchangerate-api.com/v4/latest/ZAR",
	}
}

// NewCategory returns the financial category.
func NewCategory(deps source.Deps, endpoints Endpoints) *source.Group {
	def := DefaultEndpoints()
	if endpoints.JSE == "" {
		endpoints.JSE = def.JSE
	}
	if endpoints.Crypto == "" {
		endpoints.Crypto = def.Crypto
	}
	if endpoints.Forex == "" {
		endpoints.Forex = def.Forex
	}
	return source.NewGroup("financial", []scrape.Source{
		NewJSE(deps, endpoints.JSE),
		NewCrypto(deps, endpoints.Crypto),
		NewForex(deps, endpoints.Forex),
	}, source.SelectBy("markets"), source.WithGroupLogger(deps.Logger))
}
