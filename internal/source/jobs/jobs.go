// Package jobs scrapes job boards: LinkedIn, Indeed and CareerJunction.
//
// All boards take the same params:
//
//	keywords  []string  search terms, one search per keyword
//	location  string    free-text location
//	max_pages int       result pages per keyword (LinkedIn only)
package jobs

import (
	"github.com/JakeFAU/multisource-scraper/internal/scrape"
	"github.com/JakeFAU/multisource-scraper/internal/source"
)

// Record fields emitted by job boards.
const (
	FieldTitle      = "title"
	FieldCompany    = "company"
	FieldLocation   = "location"
	FieldURL        = "url"
	FieldSalary     = "salary"
	FieldPostedDate = "posted_date"
	FieldSummary    = "summary"
	FieldCategory   = "category"
	FieldJobBoard   = "job_board"
	FieldKeyword    = "keyword"
)

const defaultLocation = "South Africa"

// Endpoints overrides board base URLs (tests point them at fixtures).
type Endpoints struct {
	LinkedIn       string
	Indeed         string
	CareerJunction string
}

// DefaultEndpoints are the production board URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		LinkedIn:       "https://www.linkedin.com/jobs/search/",
		Indeed:         "https://za.indeed.com",
		CareerJunction: "https://www.careerjunction.co.za",
	}
}

func (e Endpoints) withDefaults() Endpoints {
	def := DefaultEndpoints()
	if e.LinkedIn == "" {
		e.LinkedIn = def.LinkedIn
	}
	if e.Indeed == "" {
		e.Indeed = def.Indeed
	}
	if e.CareerJunction == "" {
		e.CareerJunction = def.CareerJunction
	}
	return e
}

// NewCategory returns the jobs category: every board behind one Group.
// Params may restrict boards with "boards".
func NewCategory(deps source.Deps, endpoints Endpoints) *source.Group {
	endpoints = endpoints.withDefaults()
	return source.NewGroup("jobs", []scrape.Source{
		NewLinkedIn(deps, endpoints.LinkedIn),
		NewIndeed(deps, endpoints.Indeed),
		NewCareerJunction(deps, endpoints.CareerJunction),
	}, source.SelectBy("boards"), source.WithGroupLogger(deps.Logger))
}

func newJob(b source.Base, keyword, title, company, location, url string) scrape.Record {
	rec := b.NewRecord()
	rec.Set(FieldTitle, title)
	rec.Set(FieldCompany, company)
	rec.Set(FieldLocation, location)
	rec.Set(FieldURL, url)
	rec.Set(FieldJobBoard, b.Name())
	rec.Set(FieldKeyword, keyword)
	return rec
}
