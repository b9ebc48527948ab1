package reports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderRebindsToPostgresPlaceholders(t *testing.T) {
	b := NewBuilder()
	b.Push("select * from website_event where website_id = ?", "site-1")
	b.Push(" and created_at >= ? and created_at < ?", "2026-01-01", "2026-02-01")

	query, args, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, "select * from website_event where website_id = $1 and created_at >= $2 and created_at < $3", query)
	assert.Equal(t, []interface{}{"site-1", "2026-01-01", "2026-02-01"}, args)
}

func TestBuilderRejectsPlaceholderMismatch(t *testing.T) {
	b := NewBuilder()
	b.Push("select * from website_event where website_id = ? and url_path = ?", "site-1")

	_, _, err := b.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 placeholders but 1 bound arguments")
}

func TestBuilderComposesFragments(t *testing.T) {
	join := Fragment{SQL: " inner join session on session.session_id = website_event.session_id"}
	where := Fragment{SQL: " and session.country = ?", Args: []interface{}{"DE"}}

	b := NewBuilder()
	b.Push("select count(*) from website_event")
	b.PushFragment(join)
	b.Push(" where website_id = ?", "site-1")
	b.PushFragment(where)

	query, args, err := b.Build()
	require.NoError(t, err)
	assert.Contains(t, query, "inner join session")
	assert.Equal(t, []interface{}{"site-1", "DE"}, args)
	assert.Contains(t, query, "website_id = $1")
	assert.Contains(t, query, "session.country = $2")
}

func TestEmptyFragmentIsNoop(t *testing.T) {
	b := NewBuilder()
	b.Push("select 1")
	b.PushFragment(Fragment{})

	query, args, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, "select 1", query)
	assert.Empty(t, args)
	assert.True(t, Fragment{}.Empty())
}
