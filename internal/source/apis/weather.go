package apis

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/multisource-scraper/internal/fetcher"
	"github.com/JakeFAU/multisource-scraper/internal/scrape"
	"github.com/JakeFAU/multisource-scraper/internal/source"
)

// weatherSpacing is the fixed gap between city lookups.
const weatherSpacing = 500 * time.Millisecond

var defaultCities = []string{"Johannesburg", "Cape Town", "Durban", "Pretoria"}

// Weather reads current conditions per city from OpenWeatherMap.
// Params: cities.
type Weather struct {
	source.Base
	baseURL string
	apiKey  string
}

type weatherResponse struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

// NewWeather creates the weather source.
func NewWeather(deps source.Deps, baseURL, apiKey string) *Weather {
	return &Weather{
		Base:    source.NewBaseWithDelay("weather", deps, weatherSpacing),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// Scrape implements scrape.Source.
func (s *Weather) Scrape(ctx context.Context, params scrape.Params) ([]scrape.Record, error) {
	batch := source.NewBatch(s.Name())
	for _, city := range params.StringsOr("cities", defaultCities) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var resp weatherResponse
		err := s.GetJSON(ctx, fetcher.Request{
			URL:   s.baseURL + "/weather",
			Query: url.Values{"q": {city}, "appid": {s.apiKey}, "units": {"metric"}},
		}, &resp)
		if err != nil {
			s.Logger().Warn("city skipped", zap.String("city", city), zap.Error(err))
			batch.Fail(err)
			continue
		}
		rec := s.NewRecordFor("openweathermap")
		rec.Set("city", city)
		rec.Set("temperature", resp.Main.Temp)
		rec.Set("humidity", resp.Main.Humidity)
		if len(resp.Weather) > 0 {
			rec.Set("description", resp.Weather[0].Description)
		}
		rec.Set("wind_speed", resp.Wind.Speed)
		batch.Add(rec)
	}
	return batch.Result()
}
