// Package teams scrapes team directories of sports leagues.
package teams

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
	cardClass  = regexp.MustCompile(`(?i)team|club`)
	nameClass  = regexp.MustCompile(`(?i)name`)
	statsClass = regexp.MustCompile(`(?i)stats|record`)
)

var defaultSports = []string{"soccer", "rugby", "cricket"}

// League is one league site. Its team directory lives at BaseURL + "/teams".
type League struct {
	Sport   string
	Name    string
	BaseURL string
}

// DefaultLeagues are the production league sites grouped by sport.
func DefaultLeagues() []League {
	return []League{
		{Sport: "soccer", Name: "premier_league", BaseURL: "https://www.premierleague.com"},
		{Sport: "soccer", Name: "la_liga", BaseURL: "https://www.laliga.com"},
		{Sport: "soccer", Name: "bundesliga", BaseURL: "https://www.bundesliga.com"},
		{Sport: "rugby", Name: "super_rugby", BaseURL: "https://www.sanzarrugby.com"},
		{Sport: "rugby", Name: "premiership", BaseURL: "https://www.premiershiprugby.com"},
		{Sport: "cricket", Name: "icc", BaseURL: "https://www.icc-cricket.com"},
		{Sport: "cricket", Name: "csa", BaseURL: "https://cricket.co.za"},
	}
}

// Source scrapes every league of the requested sports ("sports" param).
// Unknown sports are ignored.
type Source struct {
	source.Base
	leagues []League
}

// New creates the teams source. A nil leagues slice uses the defaults.
func New(deps source.Deps, leagues []League) *Source {
	if len(leagues) == 0 {
		leagues = DefaultLeagues()
	}
	return &Source{Base: source.NewBase("teams", deps), leagues: leagues}
}

// Scrape implements scrape.Source.
func (s *Source) Scrape(ctx context.Context, params scrape.Params) ([]scrape.Record, error) {
	batch := source.NewBatch(s.Name())
	for _, sport := range params.StringsOr("sports", defaultSports) {
		for _, league := range s.leagues {
			if league.Sport != sport {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			target := strings.TrimRight(league.BaseURL, "/") + "/teams"
			s.Logger().Info("scraping", zap.String("league", league.Name))
			doc, err := s.Document(ctx, target)
			if err != nil {
				s.Logger().Warn("league skipped", zap.String("url", target), zap.Error(err))
				batch.Fail(err)
				continue
			}
			batch.Add(s.parse(doc, league)...)
		}
	}
	return batch.Result()
}

func (s *Source) parse(doc *goquery.Document, league League) []scrape.Record {
	var teams []scrape.Record
	source.ClassMatching(doc.Selection, "div", cardClass).Each(func(_ int, card *goquery.Selection) {
		name := source.Text(card.Find("h3"))
		if name == "" {
			name = source.Text(source.ClassMatching(card, "span", nameClass))
		}
		if name == "" {
			return
		}
		rec := s.NewRecord()
		rec.Set("sport", league.Sport)
		rec.Set("league", league.Name)
		rec.Set("name", name)
		rec.Set("logo_url", card.Find("img").First().AttrOr("src", ""))
		rec.Set("stats", source.Text(source.ClassMatching(card, "div", statsClass)))
		teams = append(teams, rec)
	})
	return teams
}
