package normalize

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/multisource-scraper/internal/clock/system"
	"github.com/JakeFAU/multisource-scraper/internal/scrape"
)

// Scoring weights.
const (
	WeightPhraseInTitle = 10
	WeightWordInTitle   = 3
	WeightWordInSummary = 1
	WeightPostedDay     = 5
	WeightPostedWeek    = 2
)

// FieldRelevance holds the score Rank assigned to a record.
const FieldRelevance = "relevance_score"

const day = 24 * time.Hour

// Ranker scores records against a query relative to its clock.
type Ranker struct {
	clock scrape.Clock
}

// NewRanker returns a Ranker. A nil clock uses the system clock.
func NewRanker(clock scrape.Clock) *Ranker {
	if clock == nil {
		clock = system.New()
	}
	return &Ranker{clock: clock}
}

// Rank scores records against query using the system clock.
func Rank(records []scrape.Record, query string) []scrape.Record {
	return NewRanker(nil).Rank(records, query)
}

// Rank returns copies of records tagged with FieldRelevance, sorted by score
// descending. Equal scores keep their input order.
func (r *Ranker) Rank(records []scrape.Record, query string) []scrape.Record {
	type scored struct {
		rec   scrape.Record
		score int
	}
	items := make([]scored, len(records))
	for i, rec := range records {
		score := r.Score(rec, query)
		clone := rec.Clone()
		clone.Set(FieldRelevance, score)
		items[i] = scored{rec: clone, score: score}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].score > items[j].score })
	out := make([]scrape.Record, len(items))
	for i, item := range items {
		out[i] = item.rec
	}
	return out
}

// Score computes the relevance of rec for query.
func (r *Ranker) Score(rec scrape.Record, query string) int {
	query = strings.ToLower(strings.TrimSpace(query))
	title := strings.ToLower(rec.String("title"))
	summary := strings.ToLower(rec.String("summary"))

	score := 0
	if query != "" && strings.Contains(title, query) {
		score += WeightPhraseInTitle
	}
	for _, word := range strings.Fields(query) {
		if strings.Contains(title, word) {
			score += WeightWordInTitle
		}
		if strings.Contains(summary, word) {
			score += WeightWordInSummary
		}
	}

	now := r.clock.Now()
	if posted, ok := ParsePostedDate(rec.String("posted_date"), now); ok {
		switch days := int(now.Sub(posted) / day); {
		case days <= 1:
			score += WeightPostedDay
		case days <= 7:
			score += WeightPostedWeek
		}
	}
	return score
}

// ParsePostedDate reads RFC 3339 timestamps, plain dates and relative phrases
// such as "today", "yesterday", "3 days ago" or "1 week ago".
func ParsePostedDate(s string, now time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	s = strings.ToLower(s)
	switch s {
	case "today", "just now", "just posted":
		return now, true
	case "yesterday":
		return now.Add(-day), true
	}
	return parseRelative(s, now)
}

func parseRelative(s string, now time.Time) (time.Time, bool) {
	fields := strings.Fields(strings.TrimSuffix(s, " ago"))
	if len(fields) != 2 || !strings.HasSuffix(s, " ago") {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(fields[0], "+"))
	if err != nil || n < 0 {
		return time.Time{}, false
	}
	var unit time.Duration
	switch strings.TrimSuffix(fields[1], "s") {
	case "minute":
		unit = time.Minute
	case "hour":
		unit = time.Hour
	case "day":
		unit = day
	case "week":
		unit = 7 * day
	case "month":
		unit = 30 * day
	default:
		return time.Time{}, false
	}
	return now.Add(-time.Duration(n) * unit), true
}
