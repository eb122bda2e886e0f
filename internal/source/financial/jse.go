package financial

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/multisource-scraper/internal/scrape"
	"github.com/JakeFAU/multisource-scraper/internal/source"
)

// JSE scrapes the sharenet quote table.
type JSE struct {
	source.Base
	url string
}

// NewJSE creates the JSE source.
func NewJSE(deps source.Deps, url string) *JSE {
	return &JSE{Base: source.NewBase("jse", deps), url: url}
}

// Scrape implements scrape.Source.
func (s *JSE) Scrape(ctx context.Context, _ scrape.Params) ([]scrape.Record, error) {
	doc, err := s.Document(ctx, s.url)
	if err != nil {
		return nil, &scrape.SourceError{Source: s.Name(), Err: err}
	}
	return s.parse(doc), nil
}

func (s *JSE) parse(doc *goquery.Document) []scrape.Record {
	stocks := []scrape.Record{}
	doc.Find("tr.stock-row").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 5 {
			return
		}
		cell := func(i int) string { return strings.TrimSpace(cells.Eq(i).Text()) }
		price, err := strconv.ParseFloat(stripThousands(cell(2)), 64)
		if err != nil {
			s.Logger().Warn("stock row skipped", zap.String("symbol", cell(0)), zap.Error(fmt.Errorf("parse price: %w", err)))
			return
		}
		volume, err := strconv.ParseInt(stripThousands(cell(4)), 10, 64)
		if err != nil {
			s.Logger().Warn("stock row skipped", zap.String("symbol", cell(0)), zap.Error(fmt.Errorf("parse volume: %w", err)))
			return
		}
		rec := s.NewRecord()
		rec.Set("symbol", cell(0))
		rec.Set("name", cell(1))
		rec.Set("price", price)
		rec.Set("change", cell(3))
		rec.Set("volume", volume)
		stocks = append(stocks, rec)
	})
	return stocks
}

func stripThousands(s string) string {
	return strings.ReplaceAll(s, ",", "")
}
