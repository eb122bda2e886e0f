package jobs

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/multisource-scraper/internal/scrape"
	"github.com/JakeFAU/multisource-scraper/internal/source"
)

var indeedKeywords = []string{"python developer", "data scientist", "software engineer"}

// Indeed scrapes za.indeed.com search results.
type Indeed struct {
	source.Base
	baseURL string
}

// NewIndeed creates an Indeed source rooted at baseURL.
func NewIndeed(deps source.Deps, baseURL string) *Indeed {
	return &Indeed{Base: source.NewBase("indeed", deps), baseURL: strings.TrimRight(baseURL, "/")}
}

// Scrape implements scrape.Source.
func (s *Indeed) Scrape(ctx context.Context, params scrape.Params) ([]scrape.Record, error) {
	keywords := params.StringsOr("keywords", indeedKeywords)
	location := params.StringOr("location", defaultLocation)

	batch := source.NewBatch(s.Name())
	for _, keyword := range keywords {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.Logger().Info("scraping", zap.String("keyword", keyword))
		target := source.WithQuery(s.baseURL+"/jobs", url.Values{"q": {keyword}, "l": {location}})
		doc, err := s.Document(ctx, target)
		if err != nil {
			s.Logger().Warn("page skipped", zap.String("url", target), zap.Error(err))
			batch.Fail(err)
			continue
		}
		batch.Add(s.parse(doc, keyword)...)
	}
	return batch.Result()
}

func (s *Indeed) parse(doc *goquery.Document, keyword string) []scrape.Record {
	var jobs []scrape.Record
	doc.Find("div.job_seen_beacon").Each(func(_ int, card *goquery.Selection) {
		title := source.Text(card.Find("h2.jobTitle"))
		company := source.Text(card.Find("span.companyName"))
		location := source.Text(card.Find("div.companyLocation"))
		href, hasLink := card.Find("a.jcs-JobTitle").First().Attr("href")
		if title == "" || company == "" || location == "" || !hasLink {
			s.Logger().Debug("incomplete job card skipped")
			return
		}
		job := newJob(s.Base, keyword, title, company, location, source.Resolve(s.baseURL, href))
		job.Set(FieldSalary, source.Text(card.Find("div.salary-snippet-container")))
		job.Set(FieldSummary, source.Text(card.Find("div.job-snippet")))
		jobs = append(jobs, job)
	})
	return jobs
}
