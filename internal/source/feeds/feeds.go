// Package feeds reads RSS and Atom feeds.
//
// Params: urls (feed URLs) and max_items (per feed, default 50).
package feeds

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/JakeFAU/multisource-scraper/internal/hash/sha256"
	"github.com/JakeFAU/multisource-scraper/internal/scrape"
	"github.com/JakeFAU/multisource-scraper/internal/source"
)

const defaultMaxItems = 50

// Source turns feed entries into records.
type Source struct {
	source.Base
	parser *gofeed.Parser
	hasher *sha256.Hasher
	urls   []string
}

// New creates the feeds source. urls are used when a run passes none.
func New(deps source.Deps, urls []string) *Source {
	return &Source{
		Base:   source.NewBase("feeds", deps),
		parser: gofeed.NewParser(),
		hasher: sha256.New(),
		urls:   urls,
	}
}

// Scrape implements scrape.Source.
func (s *Source) Scrape(ctx context.Context, params scrape.Params) ([]scrape.Record, error) {
	urls := params.StringsOr("urls", s.urls)
	maxItems := params.Int("max_items", defaultMaxItems)

	batch := source.NewBatch(s.Name())
	for _, url := range urls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		body, err := s.Get(ctx, url, nil)
		if err != nil {
			s.Logger().Warn("feed skipped", zap.String("url", url), zap.Error(err))
			batch.Fail(err)
			continue
		}
		// gofeed is not safe for concurrent use; Scrape runs one feed at a time.
		feed, err := s.parser.Parse(bytes.NewReader(body))
		if err != nil {
			err = fmt.Errorf("parse feed %s: %w", url, err)
			s.Logger().Warn("feed skipped", zap.String("url", url), zap.Error(err))
			batch.Fail(err)
			continue
		}
		batch.Add(s.records(feed, url, maxItems)...)
	}
	return batch.Result()
}

func (s *Source) records(feed *gofeed.Feed, url string, maxItems int) []scrape.Record {
	out := make([]scrape.Record, 0, len(feed.Items))
	for i, item := range feed.Items {
		if maxItems > 0 && i >= maxItems {
			break
		}
		rec := s.NewRecord()
		rec.Set("item_id", s.hasher.Key(url, item.Link, item.GUID))
		rec.Set("feed_title", strings.TrimSpace(feed.Title))
		rec.Set("feed_url", url)
		rec.Set("title", strings.TrimSpace(item.Title))
		rec.Set("url", item.Link)
		rec.Set("summary", strings.TrimSpace(item.Description))
		if item.Author != nil {
			rec.Set("author", item.Author.Name)
		}
		if item.PublishedParsed != nil {
			rec.Set("posted_date", item.PublishedParsed.UTC().Format(time.RFC3339))
		}
		if len(item.Categories) > 0 {
			rec.Set("categories", append([]string(nil), item.Categories...))
		}
		out = append(out, rec)
	}
	return out
}
