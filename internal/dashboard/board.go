package dashboard

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// Board holds the rows shown by a dashboard, keyed by code. It is safe for
// concurrent use.
type Board struct {
	mu    sync.RWMutex
	rows  map[string]Link
	order []string // newest first, as served by the API
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	return &Board{rows: make(map[string]Link)}
}

// Load replaces every row with links.
func (b *Board) Load(links []Link) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rows = make(map[string]Link, len(links))
	b.order = make([]string, 0, len(links))
	for _, l := range links {
		if _, dup := b.rows[l.Code]; !dup {
			b.order = append(b.order, l.Code)
		}
		b.rows[l.Code] = l
	}
}

// Patch updates clicks and last_clicked of rows already on the board and
// returns the codes whose values changed. Unknown codes are ignored.
func (b *Board) Patch(counters []Counter) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var changed []string
	for _, c := range counters {
		row, ok := b.rows[c.Code]
		if !ok {
			continue
		}
		if row.Clicks == c.Clicks && sameTime(row.LastClicked, c.LastClicked) {
			continue
		}
		row.Clicks = c.Clicks
		row.LastClicked = c.LastClicked
		b.rows[c.Code] = row
		changed = append(changed, c.Code)
	}
	return changed
}

// Matches reports whether the board holds exactly the given codes.
func (b *Board) Matches(counters []Counter) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(counters) != len(b.rows) {
		return false
	}
	for _, c := range counters {
		if _, ok := b.rows[c.Code]; !ok {
			return false
		}
	}
	return true
}

// Filter returns rows whose code or URL contains query, ignoring case,
// newest first. An empty query returns every row.
func (b *Board) Filter(query string) []Link {
	b.mu.RLock()
	defer b.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Link, 0, len(b.order))
	for _, code := range b.order {
		row := b.rows[code]
		if q == "" ||
			strings.Contains(strings.ToLower(row.Code), q) ||
			strings.Contains(strings.ToLower(row.URL), q) {
			out = append(out, row)
		}
	}
	return out
}

// Get returns the row for code.
func (b *Board) Get(code string) (Link, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	l, ok := b.rows[code]
	return l, ok
}

// Codes returns every code on the board, newest first.
func (b *Board) Codes() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.order)
}

// Len returns the number of rows.
func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rows)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
