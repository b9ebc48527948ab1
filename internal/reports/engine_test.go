package reports

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/seuros/raporta/internal/store"
)

// newMockEngine backs an Engine with sqlmock. Expectations match by regexp,
// so tests pin queries down with distinctive snippets.
func newMockEngine(t *testing.T) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewEngine(store.New(db, "pgx"), 4), mock
}
