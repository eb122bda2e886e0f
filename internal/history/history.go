// Package history keeps a bounded, in-memory log of run summaries.
package history

import (
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/multisource-scraper/internal/scrape"
)

// DefaultCapacity is the number of summaries kept when none is configured.
const DefaultCapacity = 100

// Stats is the latest-run view served to dashboards.
type Stats struct {
	LastRun         time.Time `json:"last_scraping"`
	TotalCategories int       `json:"total_categories"`
	TotalItems      int       `json:"total_items"`
	HistoryEntries  int       `json:"history_entries"`
	Categories      []string  `json:"categories"`
}

// History is a FIFO of run summaries. Appends evict the oldest entry once
// capacity is reached. It is safe for concurrent use; readers always see
// whole entries.
type History struct {
	mu       sync.RWMutex
	capacity int
	entries  []scrape.RunSummary
}

// New returns a History holding up to capacity entries. Non-positive
// capacities use DefaultCapacity.
func New(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{capacity: capacity, entries: make([]scrape.RunSummary, 0, capacity)}
}

// Append records s, evicting the oldest entry when full.
func (h *History) Append(s scrape.RunSummary) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == h.capacity {
		copy(h.entries, h.entries[1:])
		h.entries = h.entries[:len(h.entries)-1]
	}
	h.entries = append(h.entries, s)
}

// Entries returns a snapshot of the history, oldest first.
func (h *History) Entries() []scrape.RunSummary {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]scrape.RunSummary(nil), h.entries...)
}

// Len reports the number of stored entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Capacity reports the maximum number of entries.
func (h *History) Capacity() int { return h.capacity }

// Latest returns the most recent entry.
func (h *History) Latest() (scrape.RunSummary, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.entries) == 0 {
		return scrape.RunSummary{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// Stats summarizes the most recent run. Categories include failed ones. The
// zero Stats is returned when nothing has run yet.
func (h *History) Stats() (Stats, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.entries) == 0 {
		return Stats{Categories: []string{}}, false
	}
	latest := h.entries[len(h.entries)-1]
	categories := latest.Categories()
	categories = append(categories, latest.Failed...)
	sort.Strings(categories)
	return Stats{
		LastRun:         latest.Timestamp,
		TotalCategories: len(categories),
		TotalItems:      latest.TotalItems,
		HistoryEntries:  len(h.entries),
		Categories:      categories,
	}, true
}
