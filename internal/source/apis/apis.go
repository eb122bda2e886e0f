// Package apis reads structured data from public JSON APIs: football-data.org
// matches and OpenWeatherMap current conditions.
package apis

import (
	"github.com/JakeFAU/multisource-scraper/internal/scrape"
	"github.com/JakeFAU/multisource-scraper/internal/source"
)

// Config carries API endpoints and credentials.
type Config struct {
	FootballDataURL string
	FootballDataKey string
	WeatherURL      string
	WeatherKey      string
}

// DefaultConfig returns the production endpoints without keys.
func DefaultConfig() Config {
	return Config{
		FootballDataURL: "https://api.football-data.org/v4",
		WeatherURL:      "https://api.openweathermap.org/data/2.5",
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.FootballDataURL == "" {
		c.FootballDataURL = def.FootballDataURL
	}
	if c.WeatherURL == "" {
		c.WeatherURL = def.WeatherURL
	}
	return c
}

// NewCategory returns the api category. Params may restrict APIs with
// "apis" (football, weather).
func NewCategory(deps source.Deps, cfg Config) *source.Group {
	cfg = cfg.withDefaults()
	return source.NewGroup("api", []scrape.Source{
		NewFootballData(deps, cfg.FootballDataURL, cfg.FootballDataKey),
		NewWeather(deps, cfg.WeatherURL, cfg.WeatherKey),
	}, source.SelectBy("apis"), source.WithGroupLogger(deps.Logger))
}
