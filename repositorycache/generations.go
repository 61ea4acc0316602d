package repositorycache

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// Generations holds one write counter per cache namespace. A read records
// the counter before fetching and drops its freshly stored entry when a write
// moved the counter in the meantime.
type Generations struct {
	counters *xsync.MapOf[string, *atomic.Uint64]
}

func NewGenerations() *Generations {
	return &Generations{counters: xsync.NewMapOf[string, *atomic.Uint64]()}
}

func (g *Generations) counter(namespace string) *atomic.Uint64 {
	c, _ := g.counters.LoadOrCompute(namespace, func() *atomic.Uint64 {
		return new(atomic.Uint64)
	})
	return c
}

// Current returns the write generation of namespace.
func (g *Generations) Current(namespace string) uint64 {
	return g.counter(namespace).Load()
}

// Bump records a write to namespace and returns the new generation.
func (g *Generations) Bump(namespace string) uint64 {
	return g.counter(namespace).Add(1)
}
