package history

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/multisource-scraper/internal/scrape"
)

func summary(i int) scrape.RunSummary {
	return scrape.RunSummary{
		ID:         fmt.Sprintf("run-%d", i),
		Timestamp:  time.Date(2024, 1, 1, 0, 0, i, 0, time.UTC),
		Counts:     map[string]int{"jobs": i},
		TotalItems: i,
	}
}

func TestHistoryEvictsOldestBeyondCapacity(t *testing.T) {
	t.Parallel()

	h := New(0)
	require.Equal(t, DefaultCapacity, h.Capacity())
	for i := 1; i <= 150; i++ {
		h.Append(summary(i))
	}
	entries := h.Entries()
	require.Len(t, entries, 100)
	require.Equal(t, 100, h.Len())
	for i, e := range entries {
		require.Equal(t, fmt.Sprintf("run-%d", i+51), e.ID)
	}
}

func TestHistoryEntriesIsSnapshot(t *testing.T) {
	t.Parallel()

	h := New(3)
	h.Append(summary(1))
	snap := h.Entries()
	snap[0].ID = "mutated"
	h.Append(summary(2))
	require.Equal(t, "run-1", h.Entries()[0].ID)
	require.Len(t, snap, 1)
}

func TestHistoryStats(t *testing.T) {
	t.Parallel()

	h := New(5)
	_, ok := h.Stats()
	require.False(t, ok)
	_, ok = h.Latest()
	require.False(t, ok)

	h.Append(summary(1))
	last := scrape.RunSummary{
		ID:         "run-2",
		Timestamp:  time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Counts:     map[string]int{"odds": 4, "financial": 3},
		Failed:     []string{"jobs"},
		TotalItems: 7,
	}
	h.Append(last)

	stats, ok := h.Stats()
	require.True(t, ok)
	require.Equal(t, Stats{
		LastRun:         last.Timestamp,
		TotalCategories: 3,
		TotalItems:      7,
		HistoryEntries:  2,
		Categories:      []string{"financial", "jobs", "odds"},
	}, stats)

	latest, ok := h.Latest()
	require.True(t, ok)
	require.Equal(t, "run-2", latest.ID)
}

func TestHistoryConcurrentAppendAndRead(t *testing.T) {
	t.Parallel()

	h := New(10)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			h.Append(summary(i))
		}(i)
		go func() {
			defer wg.Done()
			_, _ = h.Stats()
			_ = h.Entries()
		}()
	}
	wg.Wait()
	require.Equal(t, 10, h.Len())
}
