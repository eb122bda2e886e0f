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

var careerJunctionKeywords = []string{"python", "developer", "data", "software"}

// CareerJunction scrapes careerjunction.co.za, a South African board.
// Searches are keyword only.
type CareerJunction struct {
	source.Base
	baseURL string
}

// NewCareerJunction creates a CareerJunction source rooted at baseURL.
func NewCareerJunction(deps source.Deps, baseURL string) *CareerJunction {
	return &CareerJunction{Base: source.NewBase("careerjunction", deps), baseURL: strings.TrimRight(baseURL, "/")}
}

// Scrape implements scrape.Source.
func (s *CareerJunction) Scrape(ctx context.Context, params scrape.Params) ([]scrape.Record, error) {
	keywords := params.StringsOr("keywords", careerJunctionKeywords)

	batch := source.NewBatch(s.Name())
	for _, keyword := range keywords {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		target := source.WithQuery(s.baseURL+"/jobs/results", url.Values{"keywords": {keyword}})
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

func (s *CareerJunction) parse(doc *goquery.Document, keyword string) []scrape.Record {
	var jobs []scrape.Record
	doc.Find("div.job-result").Each(func(_ int, card *goquery.Selection) {
		title := source.Text(card.Find("h2"))
		company := source.Text(card.Find("span.company"))
		location := source.Text(card.Find("span.location"))
		href, hasLink := card.Find("a[href]").First().Attr("href")
		if title == "" || company == "" || location == "" || !hasLink {
			return
		}
		job := newJob(s.Base, keyword, title, company, location, source.Resolve(s.baseURL, href))
		job.Set(FieldCategory, source.Text(card.Find("span.category")))
		jobs = append(jobs, job)
	})
	return jobs
}
