package apis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/multisource-scraper/internal/scrape"
	"github.com/JakeFAU/multisource-scraper/internal/source/sourcetest"
)

const matchesJSON = `{"matches":[
 {"status":"FINISHED","utcDate":"2024-04-30T19:00:00Z","homeTeam":{"name":"Arsenal"},"awayTeam":{"name":"Chelsea"},
  "competition":{"name":"Premier League"},"score":{"fullTime":{"home":5,"away":0}}},
 {"status":"SCHEDULED","utcDate":"2024-05-04T14:00:00Z","homeTeam":{"name":"Spurs"},"awayTeam":{"name":"Villa"},
  "competition":{"name":"Premier League"},"score":{"fullTime":{"home":null,"away":null}}}
]}`

const weatherJSON = `{"main":{"temp":18.5,"humidity":40},"weather":[{"description":"clear sky"}],"wind":{"speed":3.1}}`

func TestFootballDataSendsTokenAndMapsMatches(t *testing.T) {
	t.Parallel()

	pages := sourcetest.NewFetcher(map[string]string{"https://fd.test/v4/competitions/PL/matches": matchesJSON})
	src := NewFootballData(sourcetest.Deps(pages), "https://fd.test/v4/", "secret")

	records, err := src.Scrape(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "5-0", records[0].String("score"))
	_, scored := records[1].Get("score")
	require.False(t, scored)
	require.Equal(t, "football-data-api", records[0].Source())
	require.Equal(t, "secret", pages.Requests()[0].Headers.Get("X-Auth-Token"))
}

func TestWeatherQueriesEachCity(t *testing.T) {
	t.Parallel()

	pages := sourcetest.NewFetcher(map[string]string{
		"https://ow.test/weather?appid=k&q=Durban&units=metric": weatherJSON,
	})
	src := NewWeather(sourcetest.Deps(pages), "https://ow.test", "k")

	records, err := src.Scrape(context.Background(), scrape.Params{"cities": []string{"Durban", "Atlantis"}})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "Durban", records[0].String("city"))
	require.Equal(t, "clear sky", records[0].String("description"))
	require.Len(t, pages.Requests(), 2)
}

func TestCategorySelectsAPIs(t *testing.T) {
	t.Parallel()

	pages := sourcetest.NewFetcher(map[string]string{"https://fd.test/competitions/BL1/matches": matchesJSON})
	category := NewCategory(sourcetest.Deps(pages), Config{FootballDataURL: "https://fd.test"})
	records, err := category.Scrape(context.Background(), scrape.Params{"apis": "football", "leagues": "BL1"})
	require.NoError(t, err)
	require.Len(t, records, 2)
}
