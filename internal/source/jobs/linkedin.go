package jobs

import (
	"context"
	"net/url"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/multisource-scraper/internal/scrape"
	"github.com/JakeFAU/multisource-scraper/internal/source"
)

const (
	linkedInPageSize        = 25
	linkedInDefaultMaxPages = 5
)

var linkedInKeywords = []string{"python", "ai", "machine learning", "data scientist", "software engineer"}

// LinkedIn scrapes the public LinkedIn job search pages.
type LinkedIn struct {
	source.Base
	baseURL string
}

// NewLinkedIn creates a LinkedIn source rooted at baseURL.
func NewLinkedIn(deps source.Deps, baseURL string) *LinkedIn {
	return &LinkedIn{Base: source.NewBase("linkedin", deps), baseURL: baseURL}
}

// Scrape implements scrape.Source.
func (l *LinkedIn) Scrape(ctx context.Context, params scrape.Params) ([]scrape.Record, error) {
	keywords := params.StringsOr("keywords", linkedInKeywords)
	location := params.StringOr("location", defaultLocation)
	maxPages := params.Int("max_pages", linkedInDefaultMaxPages)

	batch := source.NewBatch(l.Name())
	for _, keyword := range keywords {
		l.Logger().Info("scraping", zap.String("keyword", keyword))
		for page := 0; page < maxPages; page++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			target := source.WithQuery(l.baseURL, url.Values{
				"keywords": {keyword},
				"location": {location},
				"start":    {strconv.Itoa(page * linkedInPageSize)},
			})
			doc, err := l.Document(ctx, target)
			if err != nil {
				l.Logger().Warn("page skipped", zap.String("url", target), zap.Error(err))
				batch.Fail(err)
				continue
			}
			batch.Add(l.parse(doc, keyword)...)
		}
	}
	return batch.Result()
}

func (l *LinkedIn) parse(doc *goquery.Document, keyword string) []scrape.Record {
	var jobs []scrape.Record
	doc.Find("div.base-card").Each(func(_ int, card *goquery.Selection) {
		title := source.Text(card.Find("h3.base-search-card__title"))
		company := source.Text(card.Find("h4.base-search-card__subtitle"))
		location := source.Text(card.Find("span.job-search-card__location"))
		href, hasLink := card.Find("a.base-card__full-link").First().Attr("href")
		if title == "" || company == "" || location == "" || !hasLink {
			l.Logger().Debug("incomplete job card skipped")
			return
		}
		job := newJob(l.Base, keyword, title, company, location, source.StripQuery(href))
		job.Set(FieldSalary, source.Text(card.Find("span.job-search-card__salary-info")))
		job.Set(FieldPostedDate, card.Find("time").First().AttrOr("datetime", ""))
		jobs = append(jobs, job)
	})
	return jobs
}
