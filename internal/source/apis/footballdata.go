package apis

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/multisource-scraper/internal/fetcher"
	"github.com/JakeFAU/multisource-scraper/internal/scrape"
	"github.com/JakeFAU/multisource-scraper/internal/source"
)

var defaultLeagues = []string{"PL"}

// FootballData lists matches per competition from football-data.org.
// Params: leagues (competition codes, default PL).
type FootballData struct {
	source.Base
	baseURL string
	apiKey  string
}

type matchesResponse struct {
	Matches []struct {
		Status      string `json:"status"`
		UTCDate     string `json:"utcDate"`
		HomeTeam    team   `json:"homeTeam"`
		AwayTeam    team   `json:"awayTeam"`
		Competition team   `json:"competition"`
		Score       struct {
			FullTime struct {
				Home *int `json:"home"`
				Away *int `json:"away"`
			} `json:"fullTime"`
		} `json:"score"`
	} `json:"matches"`
}

type team struct {
	Name string `json:"name"`
}

// NewFootballData creates the football source.
func NewFootballData(deps source.Deps, baseURL, apiKey string) *FootballData {
	return &FootballData{
		Base:    source.NewBase("football", deps),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// Scrape implements scrape.Source.
func (s *FootballData) Scrape(ctx context.Context, params scrape.Params) ([]scrape.Record, error) {
	batch := source.NewBatch(s.Name())
	for _, league := range params.StringsOr("leagues", defaultLeagues) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var resp matchesResponse
		err := s.GetJSON(ctx, fetcher.Request{
			URL:     fmt.Sprintf("%s/competitions/%s/matches", s.baseURL, league),
			Headers: http.Header{"X-Auth-Token": {s.apiKey}},
		}, &resp)
		if err != nil {
			s.Logger().Warn("competition skipped", zap.String("league", league), zap.Error(err))
			batch.Fail(err)
			continue
		}
		records := make([]scrape.Record, 0, len(resp.Matches))
		for _, m := range resp.Matches {
			rec := s.NewRecordFor("football-data-api")
			rec.Set("home_team", m.HomeTeam.Name)
			rec.Set("away_team", m.AwayTeam.Name)
			if home, away := m.Score.FullTime.Home, m.Score.FullTime.Away; home != nil && away != nil {
				rec.Set("score", fmt.Sprintf("%d-%d", *home, *away))
			}
			rec.Set("status", m.Status)
			rec.Set("match_date", m.UTCDate)
			rec.Set("competition", m.Competition.Name)
			records = append(records, rec)
		}
		batch.Add(records...)
	}
	return batch.Result()
}
