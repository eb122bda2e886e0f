package normalize

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/multisource-scraper/internal/scrape"
)

var at = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func fields(rec scrape.Record) map[string]any {
	out := map[string]any{}
	for _, k := range rec.Keys() {
		out[k], _ = rec.Get(k)
	}
	return out
}

func TestNormalizeCleansAndFlattens(t *testing.T) {
	t.Parallel()

	rec := scrape.NewRecord("web", at)
	rec.Set("title", "  Widget  ")
	rec.Set("blank", "   ")
	rec.Set("none", nil)
	rec.Set("empty_list", []string{})
	rec.Set("empty_map", map[string]any{})
	rec.Set("tags", []string{"a", "b"})
	rec.Set("meta", map[string]any{"z": 1, "a": "x"})
	rec.Set("price", 9.5)
	rec.Set("count", 0)
	rec.Set("live", false)

	got := Normalize(rec)
	want := map[string]any{
		"source":     "web",
		"scraped_at": at,
		"title":      "Widget",
		"tags":       `["a","b"]`,
		"meta":       `{"a":"x","z":1}`,
		"price":      9.5,
		"count":      0,
		"live":       false,
	}
	if diff := cmp.Diff(want, fields(got)); diff != "" {
		t.Fatalf("normalized fields mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, []string{"source", "scraped_at", "title", "tags", "meta", "price", "count", "live"}, got.Keys())
}

func TestNormalizeIsIdempotent(t *testing.T) {
	t.Parallel()

	rec := scrape.NewRecord("web", at)
	rec.Set("title", " x ")
	rec.Set("nested", []any{map[string]any{"b": 2, "a": []int{1}}})
	ptr := "  pointed "
	rec.Set("ptr", &ptr)
	rec.Set("struct", struct{ Name string }{Name: "n"})

	once := Normalize(rec)
	twice := Normalize(once)
	if diff := cmp.Diff(fields(once), fields(twice)); diff != "" {
		t.Fatalf("second pass changed record (-once +twice):\n%s", diff)
	}
	require.Equal(t, `[{"a":[1],"b":2}]`, once.String("nested"))
	require.Equal(t, "pointed", once.String("ptr"))
	require.Equal(t, `{"Name":"n"}`, once.String("struct"))
}

type decimalOdds float64

func TestNormalizeDropsNonFiniteFloats(t *testing.T) {
	t.Parallel()

	rec := scrape.NewRecord("odds", at)
	rec.Set("home_odds", math.NaN())
	rec.Set("away_odds", math.Inf(1))
	rec.Set("draw_odds", float32(math.Inf(-1)))
	rec.Set("named", decimalOdds(math.NaN()))
	rec.Set("prices", []float64{1.5, math.NaN()})
	rec.Set("total", 2.5)

	got := Normalize(rec)
	require.Equal(t, []string{"source", "scraped_at", "prices", "total"}, got.Keys())
	require.Equal(t, "[1.5 NaN]", got.String("prices"))

	data, err := json.Marshal(got)
	require.NoError(t, err)
	require.Contains(t, string(data), `"total":2.5`)
	require.Equal(t, fields(got), fields(Normalize(got)))
}

func TestNormalizeAllKeepsOrder(t *testing.T) {
	t.Parallel()

	a := scrape.NewRecord("a", at)
	b := scrape.NewRecord("b", at)
	out := NormalizeAll([]scrape.Record{a, b})
	require.Len(t, out, 2)
	require.Equal(t, "a", out[0].Source())
	require.Equal(t, "b", out[1].Source())
}

func job(title, summary, posted string) scrape.Record {
	rec := scrape.NewRecord("test", at)
	rec.Set("title", title)
	if summary != "" {
		rec.Set("summary", summary)
	}
	if posted != "" {
		rec.Set("posted_date", posted)
	}
	return rec
}

func TestScoreWeights(t *testing.T) {
	t.Parallel()

	r := NewRanker(fixedClock{t: at})
	// phrase 10 + two title words 6 + summary word 1 + posted today 5
	require.Equal(t, 22, r.Score(job("Senior Python Developer", "python shop", "2024-05-01"), "python developer"))
	// one title word, posted 5 days ago
	require.Equal(t, 5, r.Score(job("Python Engineer", "", "2024-04-26"), "python developer"))
	// no match, posted a month ago, unparseable dates score 0
	require.Equal(t, 0, r.Score(job("Chef", "", "2024-04-01"), "python developer"))
	require.Equal(t, 0, r.Score(job("Chef", "", "whenever"), "python developer"))
	require.Equal(t, 5, r.Score(job("Chef", "", "today"), "python"))
	require.Equal(t, 2, r.Score(job("Chef", "", "3 days ago"), "python"))
	require.Equal(t, 2, r.Score(job("Chef", "", "1 week ago"), "python"))
	require.Equal(t, 5, r.Score(job("Chef", "", "2024-05-01T06:00:00Z"), "python"))
}

func TestRankIsStableAndTagged(t *testing.T) {
	t.Parallel()

	records := []scrape.Record{
		job("Chef", "", ""),
		job("Python Developer", "", ""),
		job("Baker", "", ""),
		job("Junior Python Developer", "", "today"),
	}
	ranked := NewRanker(fixedClock{t: at}).Rank(records, "python developer")

	var titles []string
	for _, rec := range ranked {
		titles = append(titles, rec.String("title"))
	}
	require.Equal(t, []string{"Junior Python Developer", "Python Developer", "Chef", "Baker"}, titles)
	score, _ := ranked[0].Get(FieldRelevance)
	require.Equal(t, 21, score)
	_, tagged := records[0].Get(FieldRelevance)
	require.False(t, tagged, "input records must not be mutated")
}

func TestParsePostedDate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2024-04-30", time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC), true},
		{"yesterday", at.Add(-24 * time.Hour), true},
		{"5 hours ago", at.Add(-5 * time.Hour), true},
		{"30+ days ago", at.Add(-30 * 24 * time.Hour), true},
		{"2 fortnights ago", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, tc := range cases {
		got, ok := ParsePostedDate(tc.in, at)
		require.Equal(t, tc.ok, ok, tc.in)
		require.True(t, got.Equal(tc.want), "%s: got %v", tc.in, got)
	}
}
