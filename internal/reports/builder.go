package reports

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Fragment is a reusable piece of SQL text with its bound arguments. Values
// appear as ? placeholders and travel alongside the text, so fragments can
// be composed in any query as long as text order and argument order agree.
type Fragment struct {
	SQL  string
	Args []interface{}
}

// Empty reports whether the fragment contributes nothing.
func (f Fragment) Empty() bool {
	return f.SQL == ""
}

// Builder assembles a parameterized query from fragments. Caller-supplied
// values are only ever bound through Push arguments; the final statement is
// rendered with positional $n placeholders at the boundary.
type Builder struct {
	sql  strings.Builder
	args []interface{}
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Push appends SQL text and its bound arguments. The text must contain one
// ? placeholder per argument.
func (b *Builder) Push(sql string, args ...interface{}) *Builder {
	b.sql.WriteString(sql)
	b.args = append(b.args, args...)
	return b
}

// PushFragment appends a previously composed fragment.
func (b *Builder) PushFragment(f Fragment) *Builder {
	return b.Push(f.SQL, f.Args...)
}

// Build renders the statement with $n placeholders and returns it with the
// ordered argument list. It fails when placeholder and argument counts
// disagree, which would silently misalign bindings at execution time.
func (b *Builder) Build() (string, []interface{}, error) {
	raw := b.sql.String()
	if n := strings.Count(raw, "?"); n != len(b.args) {
		return "", nil, fmt.Errorf("query has %d placeholders but %d bound arguments", n, len(b.args))
	}
	return sqlx.Rebind(sqlx.DOLLAR, raw), b.args, nil
}

// Raw returns the un-rebound statement text, for tests and logging.
func (b *Builder) Raw() string {
	return b.sql.String()
}

// Args returns the bound arguments in placeholder order.
func (b *Builder) Args() []interface{} {
	return b.args
}
