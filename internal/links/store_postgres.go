package links

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	db "github.com/sundayezeilo/tinylink/internal/db/sqlc"
	"github.com/sundayezeilo/tinylink/internal/errx"
)

// querier abstracts *db.Queries
type querier interface {
	InsertLink(ctx context.Context, arg db.InsertLinkParams) (db.Link, error)
	GetLinkByCode(ctx context.Context, code string) (db.Link, error)
	ListLinks(ctx context.Context) ([]db.Link, error)
	ListLinkCounters(ctx context.Context) ([]db.ListLinkCountersRow, error)
	IncrementLinkClicks(ctx context.Context, code string) (int64, error)
	DeleteLink(ctx context.Context, code string) (int64, error)
}

type pgStore struct {
	q querier
}

// NewPostgresStore returns a Store backed by the generated Postgres queries.
func NewPostgresStore(q querier) Store {
	return &pgStore{q: q}
}

func mustTime(ts pgtype.Timestamptz, field string) (time.Time, error) {
	if !ts.Valid {
		return time.Time{}, fmt.Errorf("%s unexpectedly NULL", field)
	}
	return ts.Time.UTC(), nil
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time.UTC()
	return &t
}

func toDomainLink(x db.Link) (Link, error) {
	createdAt, err := mustTime(x.CreatedAt, "created_at")
	if err != nil {
		return Link{}, err
	}
	return Link{
		Code:        x.Code,
		URL:         x.Url,
		Clicks:      x.Clicks,
		CreatedAt:   createdAt,
		LastClicked: timePtr(x.LastClicked),
	}, nil
}

func mapPgError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, err)
	case isPgCodeUniqueViolation(err):
		return errx.E(op, errx.Conflict, err)
	case isPgCheckViolation(err):
		return errx.E(op, errx.Invalid, err)
	default:
		return errx.E(op, errx.Unavailable, err)
	}
}

func (s *pgStore) Insert(ctx context.Context, code, url string) (Link, error) {
	const op = "links.pgStore.Insert"

	row, err := s.q.InsertLink(ctx, db.InsertLinkParams{Code: code, Url: url})
	if err != nil {
		return Link{}, mapPgError(op, err)
	}
	link, err := toDomainLink(row)
	if err != nil {
		return Link{}, errx.E(op, errx.Internal, err)
	}
	return link, nil
}

func (s *pgStore) List(ctx context.Context) ([]Link, error) {
	const op = "links.pgStore.List"

	rows, err := s.q.ListLinks(ctx)
	if err != nil {
		return nil, mapPgError(op, err)
	}
	out := make([]Link, 0, len(rows))
	for _, row := range rows {
		link, err := toDomainLink(row)
		if err != nil {
			return nil, errx.E(op, errx.Internal, err)
		}
		out = append(out, link)
	}
	return out, nil
}

func (s *pgStore) Counters(ctx context.Context) ([]Counter, error) {
	const op = "links.pgStore.Counters"

	rows, err := s.q.ListLinkCounters(ctx)
	if err != nil {
		return nil, mapPgError(op, err)
	}
	out := make([]Counter, 0, len(rows))
	for _, row := range rows {
		out = append(out, Counter{
			Code:        row.Code,
			Clicks:      row.Clicks,
			LastClicked: timePtr(row.LastClicked),
		})
	}
	return out, nil
}

func (s *pgStore) FindByCode(ctx context.Context, code string) (Link, error) {
	const op = "links.pgStore.FindByCode"

	row, err := s.q.GetLinkByCode(ctx, code)
	if err != nil {
		return Link{}, mapPgError(op, err)
	}
	link, err := toDomainLink(row)
	if err != nil {
		return Link{}, errx.E(op, errx.Internal, err)
	}
	return link, nil
}

func (s *pgStore) IncrementClicks(ctx context.Context, code string) error {
	const op = "links.pgStore.IncrementClicks"

	n, err := s.q.IncrementLinkClicks(ctx, code)
	if err != nil {
		return mapPgError(op, err)
	}
	if n == 0 {
		return errx.E(op, errx.NotFound, pgx.ErrNoRows)
	}
	return nil
}

func (s *pgStore) Delete(ctx context.Context, code string) error {
	const op = "links.pgStore.Delete"

	n, err := s.q.DeleteLink(ctx, code)
	if err != nil {
		return mapPgError(op, err)
	}
	if n == 0 {
		return errx.E(op, errx.NotFound, pgx.ErrNoRows)
	}
	return nil
}
