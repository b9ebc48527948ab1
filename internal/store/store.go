// Package store wraps the shared connection pool with the read-only query
// surface the report engines consume. Every query is parameterized; callers
// hand over SQL text plus bound arguments and never interpolate values.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/jmoiron/sqlx"
)

// ErrUnavailable marks failures where the database could not be reached or
// the query timed out. The engines do not retry; callers decide on backoff.
var ErrUnavailable = errors.New("event store unavailable")

// Store executes parameterized read queries against the event store.
type Store struct {
	db *sqlx.DB
}

// New wraps an existing connection pool. The driver name controls sqlx
// placeholder binding; both pgx and the sqlmock test driver use $n.
func New(db *sql.DB, driverName string) *Store {
	return &Store{db: sqlx.NewDb(db, driverName)}
}

// DB exposes the underlying pool, for collaborators that manage their own scans.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Select runs a parameterized query and scans all rows into dest.
func (s *Store) Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if err := s.db.SelectContext(ctx, dest, query, args...); err != nil {
		return classify(err)
	}
	return nil
}

// Get runs a parameterized query expected to return exactly one row.
// A missing row is returned as sql.ErrNoRows, not ErrUnavailable.
func (s *Store) Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if err := s.db.GetContext(ctx, dest, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return classify(err)
	}
	return nil
}

// Page describes offset/limit paging for listing queries.
type Page struct {
	Limit  int
	Offset int
}

// PageInfo reports the window a paged query covered.
type PageInfo struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

// PagedSelect appends LIMIT/OFFSET to a listing query and scans the page into
// dest. Only simple listing reports page; the report engines never do.
func (s *Store) PagedSelect(ctx context.Context, dest interface{}, query string, page Page, args ...interface{}) (PageInfo, error) {
	if page.Limit <= 0 {
		page.Limit = 50
	}
	if page.Offset < 0 {
		page.Offset = 0
	}

	paged := fmt.Sprintf("%s LIMIT $%d OFFSET $%d", query, len(args)+1, len(args)+2)
	args = append(args, page.Limit, page.Offset)

	if err := s.db.SelectContext(ctx, dest, paged, args...); err != nil {
		return PageInfo{}, classify(err)
	}

	// Count is filled in by the caller from the scanned slice length.
	return PageInfo{Limit: page.Limit, Offset: page.Offset}, nil
}

// classify folds driver-level connectivity failures into ErrUnavailable so
// callers can tell a dead backend from a bad query.
func classify(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, driver.ErrBadConn),
		errors.As(err, &netErr):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return fmt.Errorf("query failed: %w", err)
	}
}
