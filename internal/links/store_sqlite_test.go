package links

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sundayezeilo/tinylink/internal/db/migrations"
	"github.com/sundayezeilo/tinylink/internal/errx"
)

/***************
 * Helpers
 ***************/

// newTestDB returns a migrated SQLite database in a temp dir.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := OpenSQLite("file:" + filepath.Join(t.TempDir(), "links.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := migrations.Up(context.Background(), db, migrations.SQLite); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	db.SetMaxOpenConns(1)
	return db
}

// tickingClock returns a clock that advances one second per call.
func tickingClock(start time.Time) func() time.Time {
	var n atomic.Int64
	return func() time.Time {
		return start.Add(time.Duration(n.Add(1)) * time.Second)
	}
}

/***************
 * Unit tests
 ***************/

func TestSQLiteDriverName(t *testing.T) {
	tests := map[string]string{
		"file:/tmp/links.db":                  "sqlite",
		"links.db":                            "sqlite",
		":memory:":                            "sqlite",
		"libsql://db-org.turso.io":            "libsql",
		"wss://db-org.turso.io":               "libsql",
		"https://db-org.turso.io?authToken=x": "libsql",
	}
	for dsn, want := range tests {
		if got := SQLiteDriverName(dsn); got != want {
			t.Errorf("SQLiteDriverName(%q) = %q, want %q", dsn, got, want)
		}
	}
}

func TestSQLiteStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewSQLiteStore(newTestDB(t), &SQLiteStoreConfig{Now: tickingClock(start)})

	created, err := store.Insert(ctx, "abc123", "https://example.com")
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if created.Clicks != 0 || created.LastClicked != nil {
		t.Errorf("new link = %+v, want zero clicks and nil last_clicked", created)
	}

	found, err := store.FindByCode(ctx, "abc123")
	if err != nil {
		t.Fatalf("FindByCode() error = %v", err)
	}
	if !found.CreatedAt.Equal(created.CreatedAt) || found.URL != "https://example.com" {
		t.Errorf("FindByCode() = %+v, want %+v", found, created)
	}

	if err := store.IncrementClicks(ctx, "abc123"); err != nil {
		t.Fatalf("IncrementClicks() error = %v", err)
	}
	found, _ = store.FindByCode(ctx, "abc123")
	if found.Clicks != 1 {
		t.Errorf("Clicks = %d, want 1", found.Clicks)
	}
	if found.LastClicked == nil || found.LastClicked.Before(found.CreatedAt) {
		t.Errorf("LastClicked = %v, want >= created_at %v", found.LastClicked, found.CreatedAt)
	}
	first := *found.LastClicked

	if err := store.IncrementClicks(ctx, "abc123"); err != nil {
		t.Fatalf("IncrementClicks() error = %v", err)
	}
	found, _ = store.FindByCode(ctx, "abc123")
	if found.Clicks != 2 || found.LastClicked.Before(first) {
		t.Errorf("after second click = %+v, first click at %v", found, first)
	}

	if err := store.Delete(ctx, "abc123"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.FindByCode(ctx, "abc123"); !errx.Is(err, errx.NotFound) {
		t.Errorf("FindByCode() after delete kind = %v, want NotFound", errx.KindOf(err))
	}
	if err := store.Delete(ctx, "abc123"); !errx.Is(err, errx.NotFound) {
		t.Errorf("second Delete() kind = %v, want NotFound", errx.KindOf(err))
	}
	if err := store.IncrementClicks(ctx, "abc123"); !errx.Is(err, errx.NotFound) {
		t.Errorf("IncrementClicks() after delete kind = %v, want NotFound", errx.KindOf(err))
	}
}

func TestSQLiteStore_LastClickedNeverBeforeCreated(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := NewSQLiteStore(newTestDB(t), &SQLiteStoreConfig{Now: clock})

	if _, err := store.Insert(ctx, "abc123", "https://example.com"); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	// Clock moves backwards.
	now = now.Add(-time.Hour)
	if err := store.IncrementClicks(ctx, "abc123"); err != nil {
		t.Fatalf("IncrementClicks() error = %v", err)
	}

	link, _ := store.FindByCode(ctx, "abc123")
	if link.LastClicked == nil || link.LastClicked.Before(link.CreatedAt) {
		t.Errorf("LastClicked = %v, created_at = %v", link.LastClicked, link.CreatedAt)
	}
}

func TestSQLiteStore_DuplicateInsert(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteStore(newTestDB(t), nil)

	if _, err := store.Insert(ctx, "abc123", "https://a.example"); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	_, err := store.Insert(ctx, "abc123", "https://b.example")
	if !errx.Is(err, errx.Conflict) {
		t.Fatalf("duplicate Insert() kind = %v, want Conflict (err=%v)", errx.KindOf(err), err)
	}

	link, _ := store.FindByCode(ctx, "abc123")
	if link.URL != "https://a.example" {
		t.Errorf("URL = %q, duplicate insert overwrote the original", link.URL)
	}
}

func TestSQLiteStore_ListOrder(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := NewSQLiteStore(newTestDB(t), &SQLiteStoreConfig{Now: tickingClock(start)})

	empty, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("List() on empty table = %#v, want empty slice", empty)
	}

	for _, code := range []string{"first1", "second", "third3"} {
		if _, err := store.Insert(ctx, code, "https://example.com/"+code); err != nil {
			t.Fatalf("Insert(%s) error = %v", code, err)
		}
	}
	if err := store.IncrementClicks(ctx, "second"); err != nil {
		t.Fatalf("IncrementClicks() error = %v", err)
	}

	links, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"third3", "second", "first1"}
	for i, l := range links {
		if l.Code != want[i] {
			t.Errorf("List()[%d] = %s, want %s", i, l.Code, want[i])
		}
	}

	counters, err := store.Counters(ctx)
	if err != nil {
		t.Fatalf("Counters() error = %v", err)
	}
	if len(counters) != 3 {
		t.Fatalf("Counters() len = %d, want 3", len(counters))
	}
	for i, c := range counters {
		if c.Code != want[i] {
			t.Errorf("Counters()[%d] = %s, want %s", i, c.Code, want[i])
		}
	}
	if counters[1].Clicks != 1 || counters[1].LastClicked == nil {
		t.Errorf("Counters()[1] = %+v, want one click", counters[1])
	}
	if counters[0].LastClicked != nil {
		t.Errorf("Counters()[0].LastClicked = %v, want nil", counters[0].LastClicked)
	}
}

func TestSQLiteStore_ConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteStore(newTestDB(t), nil)
	if _, err := store.Insert(ctx, "hot123", "https://example.com"); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.IncrementClicks(ctx, "hot123")
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("IncrementClicks() error = %v", err)
		}
	}

	link, _ := store.FindByCode(ctx, "hot123")
	if link.Clicks != n {
		t.Errorf("Clicks = %d, want %d", link.Clicks, n)
	}
}

func TestSQLiteStore_ConcurrentCustomCode(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewSQLiteStore(newTestDB(t), nil), nil)

	const n = 8
	var (
		wg        sync.WaitGroup
		created   atomic.Int32
		conflicts atomic.Int32
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(ctx, CreateLinkRequest{
				URL:  fmt.Sprintf("https://a.example/%d", i),
				Code: "ABC123",
			})
			switch {
			case err == nil:
				created.Add(1)
			case errx.Is(err, errx.Conflict):
				conflicts.Add(1)
			default:
				t.Errorf("Create() unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if created.Load() != 1 || conflicts.Load() != n-1 {
		t.Errorf("created = %d, conflicts = %d; want 1 and %d", created.Load(), conflicts.Load(), n-1)
	}
}
