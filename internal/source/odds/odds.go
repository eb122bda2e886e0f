// Package odds scrapes bookmaker listing pages for match odds. The "sports"
// param picks the sports; every bookmaker is visited for every sport.
package odds

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/multisource-scraper/internal/scrape"
	"github.com/JakeFAU/multisource-scraper/internal/source"
)

var (
	matchClass = regexp.MustCompile(`(?i)match|event`)
	teamClass  = regexp.MustCompile(`(?i)team|participant`)
	priceClass = regexp.MustCompile(`(?i)odds|price`)
	timeClass  = regexp.MustCompile(`(?i)time|date`)
)

var defaultSports = []string{"soccer", "rugby", "cricket", "tennis", "basketball"}

// Bookmaker is one listing site. PerSport sites take the sport as a path
// segment; others serve a single combined page.
type Bookmaker struct {
	Name     string
	BaseURL  string
	PerSport bool
}

// DefaultBookmakers are the production sites, in visiting order.
func DefaultBookmakers() []Bookmaker {
	return []Bookmaker{
		{Name: "betway", BaseURL: "https://www.betway.co.za/sports", PerSport: true},
		{Name: "sportingbet", BaseURL: "https://www.sportingbet.co.za/sports", PerSport: true},
		{Name: "hollywoodbets", BaseURL: "https://www.hollywoodbets.net"},
	}
}

// Source scrapes match odds from every bookmaker.
type Source struct {
	source.Base
	bookmakers []Bookmaker
}

// New creates the odds source. A nil bookmakers slice uses the defaults.
func New(deps source.Deps, bookmakers []Bookmaker) *Source {
	if len(bookmakers) == 0 {
		bookmakers = DefaultBookmakers()
	}
	return &Source{Base: source.NewBase("odds", deps), bookmakers: bookmakers}
}

// Scrape implements scrape.Source.
func (s *Source) Scrape(ctx context.Context, params scrape.Params) ([]scrape.Record, error) {
	sports := params.StringsOr("sports", defaultSports)
	batch := source.NewBatch(s.Name())
	for _, sport := range sports {
		for _, bm := range s.bookmakers {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			target := bm.BaseURL
			if bm.PerSport {
				target = strings.TrimRight(bm.BaseURL, "/") + "/" + sport
			}
			s.Logger().Info("scraping", zap.String("bookmaker", bm.Name), zap.String("sport", sport))
			doc, err := s.Document(ctx, target)
			if err != nil {
				s.Logger().Warn("bookmaker skipped", zap.String("url", target), zap.Error(err))
				batch.Fail(err)
				continue
			}
			batch.Add(s.parse(doc, bm.Name, sport)...)
		}
	}
	return batch.Result()
}

func (s *Source) parse(doc *goquery.Document, bookmaker, sport string) []scrape.Record {
	var matches []scrape.Record
	source.ClassMatching(doc.Selection, "div", matchClass).Each(func(_ int, card *goquery.Selection) {
		teams := source.ClassMatching(card, "span", teamClass)
		prices := source.ClassMatching(card, "span", priceClass)
		if teams.Length() < 2 || prices.Length() < 2 {
			return
		}
		rec := s.NewRecordFor(bookmaker)
		rec.Set("sport", sport)
		rec.Set("bookmaker", bookmaker)
		rec.Set("team1", source.Text(teams.Eq(0)))
		rec.Set("team2", source.Text(teams.Eq(1)))
		rec.Set("odds1", ParseOdds(prices.Eq(0).Text()))
		rec.Set("odds2", ParseOdds(prices.Eq(1).Text()))
		if prices.Length() > 2 {
			rec.Set("draw_odds", ParseOdds(prices.Eq(2).Text()))
		}
		rec.Set("match_time", source.Text(source.ClassMatching(card, "span", timeClass)))
		matches = append(matches, rec)
	})
	return matches
}
