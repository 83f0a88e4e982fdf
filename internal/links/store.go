package links

import "context"

// Store persists links. It is the only writer of link state.
//
// Implementations enforce code uniqueness in the database and report a
// duplicate insert as errx.Conflict, unknown codes as errx.NotFound and
// any other storage failure as errx.Unavailable.
type Store interface {
	Insert(ctx context.Context, code, url string) (Link, error)
	List(ctx context.Context) ([]Link, error)
	Counters(ctx context.Context) ([]Counter, error)
	FindByCode(ctx context.Context, code string) (Link, error)
	// IncrementClicks adds one click and stamps last_clicked in a single statement.
	IncrementClicks(ctx context.Context, code string) error
	Delete(ctx context.Context, code string) error
}
