package reports

import (
	"github.com/seuros/raporta/internal/async"
	"github.com/seuros/raporta/internal/channels"
	"github.com/seuros/raporta/internal/store"
)

// Engine runs reports against the event store. It holds no per-request
// state; one Engine serves all requests.
type Engine struct {
	store *store.Store
	pool  *async.Pool
	lists channels.Lists
}

// NewEngine wraps a store. workers bounds how many breakdown queries a single
// attribution request runs concurrently.
func NewEngine(st *store.Store, workers int) *Engine {
	return &Engine{
		store: st,
		pool:  async.NewPool(workers),
		lists: channels.Default(),
	}
}
