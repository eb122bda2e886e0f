package manager

import (
	"sort"

	"github.com/JakeFAU/multisource-scraper/internal/scrape"
	"github.com/JakeFAU/multisource-scraper/internal/source"
	"github.com/JakeFAU/multisource-scraper/internal/source/apis"
	"github.com/JakeFAU/multisource-scraper/internal/source/feeds"
	"github.com/JakeFAU/multisource-scraper/internal/source/financial"
	"github.com/JakeFAU/multisource-scraper/internal/source/jobs"
	"github.com/JakeFAU/multisource-scraper/internal/source/odds"
	"github.com/JakeFAU/multisource-scraper/internal/source/realestate"
	"github.com/JakeFAU/multisource-scraper/internal/source/teams"
	"github.com/JakeFAU/multisource-scraper/internal/source/web"
)

// Category names.
const (
	CategoryJobs       = "jobs"
	CategoryFinancial  = "financial"
	CategoryRealEstate = "real_estate"
	CategoryOdds       = "odds"
	CategoryTeams      = "teams"
	CategoryAPI        = "api"
	CategoryWeb        = "web"
	CategoryFeeds      = "feeds"
)

// RegistryConfig carries per-category endpoints and credentials. Zero values
// select each category's production defaults.
type RegistryConfig struct {
	Jobs       jobs.Endpoints
	Financial  financial.Endpoints
	RealEstate realestate.Endpoints
	Bookmakers []odds.Bookmaker
	Leagues    []teams.League
	APIs       apis.Config
	Feeds      []string
	// Disabled lists categories left out of the registry.
	Disabled []string
}

// Registry maps category names to their sources.
type Registry map[string]scrape.Source

// NewRegistry builds every enabled category over deps.
func NewRegistry(deps source.Deps, cfg RegistryConfig) Registry {
	all := Registry{
		CategoryJobs:       jobs.NewCategory(deps, cfg.Jobs),
		CategoryFinancial:  financial.NewCategory(deps, cfg.Financial),
		CategoryRealEstate: realestate.NewCategory(deps, cfg.RealEstate),
		CategoryOdds:       odds.New(deps, cfg.Bookmakers),
		CategoryTeams:      teams.New(deps, cfg.Leagues),
		CategoryAPI:        apis.NewCategory(deps, cfg.APIs),
		CategoryWeb:        web.New(deps),
		CategoryFeeds:      feeds.New(deps, cfg.Feeds),
	}
	for _, name := range cfg.Disabled {
		delete(all, name)
	}
	return all
}

// Names returns the registered categories, sorted.
func (r Registry) Names() []string {
	out := make([]string, 0, len(r))
	for name := range r {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// DefaultTargets is the run used when none is given.
func DefaultTargets() map[string]scrape.Params {
	return map[string]scrape.Params{
		CategoryJobs:      {"keywords": []string{"python", "ai", "data scientist"}},
		CategoryFinancial: {"markets": []string{"crypto", "forex"}},
		CategoryOdds:      {"sports": []string{"soccer", "rugby"}},
		CategoryTeams:     {"sports": []string{"soccer", "rugby"}},
	}
}
