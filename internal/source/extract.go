package source

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/multisource-scraper/internal/scrape"
)

// Text returns the trimmed text of the first node in sel.
func Text(sel *goquery.Selection) string {
	return strings.TrimSpace(sel.First().Text())
}

// CollapseSpace replaces every whitespace run in s with a single space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// StripQuery drops the query string and fragment from raw.
func StripQuery(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		return raw[:i]
	}
	return raw
}

// Resolve turns href into an absolute URL relative to base. Unparseable
// input is returned unchanged.
func Resolve(base, href string) string {
	href = strings.TrimSpace(href)
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

// WithQuery appends q to base.
func WithQuery(base string, q url.Values) string {
	if len(q) == 0 {
		return base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + q.Encode()
}

// ClassMatching selects nodes in sel matching tag whose class list contains a
// token matching re.
func ClassMatching(sel *goquery.Selection, tag string, re *regexp.Regexp) *goquery.Selection {
	return sel.Find(tag + "[class]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		for _, class := range strings.Fields(s.AttrOr("class", "")) {
			if re.MatchString(class) {
				return true
			}
		}
		return false
	})
}

// Batch accumulates the records of one invocation across several URLs. A
// URL that fails is skipped; the invocation only fails when every attempted
// URL failed.
type Batch struct {
	source    string
	records   []scrape.Record
	attempted int
	errs      []error
}

// NewBatch starts a batch for source.
func NewBatch(source string) *Batch {
	return &Batch{source: source}
}

// Add records one successful URL and its records.
func (b *Batch) Add(records ...scrape.Record) {
	b.attempted++
	b.records = append(b.records, records...)
}

// Fail records one failed URL. Empty bodies are skipped without counting as
// a failure.
func (b *Batch) Fail(err error) {
	b.attempted++
	if errors.Is(err, scrape.ErrEmptyBody) {
		return
	}
	b.errs = append(b.errs, err)
}

// Len reports the records collected so far.
func (b *Batch) Len() int { return len(b.records) }

// Result returns the collected records, or a *scrape.SourceError when every
// attempted URL failed.
func (b *Batch) Result() ([]scrape.Record, error) {
	if b.attempted > 0 && len(b.errs) == b.attempted {
		return nil, &scrape.SourceError{Source: b.source, Err: errors.Join(b.errs...)}
	}
	if b.records == nil {
		return []scrape.Record{}, nil
	}
	return b.records, nil
}
