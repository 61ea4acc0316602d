package repository

import (
	"context"
	"sync"

	"github.com/uptrace/bun"
)

// ScopeState is the lifecycle of a unit of work.
type ScopeState int

const (
	ScopeNotStarted ScopeState = iota
	ScopeActive
	ScopeCommitted
	ScopeRolledBack
)

func (s ScopeState) String() string {
	switch s {
	case ScopeNotStarted:
		return "not_started"
	case ScopeActive:
		return "active"
	case ScopeCommitted:
		return "committed"
	case ScopeRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

type stagedChange struct {
	op    string
	apply func(ctx context.Context, db bun.IDB) (int64, error)
}

type commitHook struct {
	key string
	fn  func(ctx context.Context)
}

// Scope is the ambient unit of work carried in a context. It owns the
// transaction, the changes staged by repositories and the hooks to run once
// the transaction has committed.
type Scope struct {
	mu     sync.Mutex
	tx     bun.Tx
	state  ScopeState
	staged []stagedChange
	hooks  []commitHook
}

func newScope(tx bun.Tx) *Scope {
	return &Scope{tx: tx, state: ScopeActive}
}

type scopeKey struct{}

// ContextWithScope returns a new context carrying scope.
func ContextWithScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ScopeFromContext returns the active scope carried by ctx, if any.
func ScopeFromContext(ctx context.Context) (*Scope, bool) {
	if ctx == nil {
		return nil, false
	}
	scope, ok := ctx.Value(scopeKey{}).(*Scope)
	if !ok || scope == nil || scope.State() != ScopeActive {
		return nil, false
	}
	return scope, true
}

// InScope reports whether ctx carries an active unit of work.
func InScope(ctx context.Context) bool {
	_, ok := ScopeFromContext(ctx)
	return ok
}

// IDB returns the transaction of the active scope, or fallback.
func IDB(ctx context.Context, fallback bun.IDB) bun.IDB {
	if scope, ok := ScopeFromContext(ctx); ok {
		return scope.tx
	}
	return fallback
}

func (s *Scope) State() ScopeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pending returns the number of staged changes not yet flushed.
func (s *Scope) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.staged)
}

// AfterCommit registers fn to run after a successful commit. Hooks sharing a
// non-empty key are registered once.
func (s *Scope) AfterCommit(key string, fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key != "" {
		for _, h := range s.hooks {
			if h.key == key {
				return
			}
		}
	}
	s.hooks = append(s.hooks, commitHook{key: key, fn: fn})
}

func (s *Scope) stage(op string, apply func(ctx context.Context, db bun.IDB) (int64, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = append(s.staged, stagedChange{op: op, apply: apply})
}

// flush applies staged changes in order. Applied changes are removed even
// when a later one fails; the caller rolls the transaction back.
func (s *Scope) flush(ctx context.Context) (int64, error) {
	s.mu.Lock()
	staged := s.staged
	s.staged = nil
	s.mu.Unlock()

	var total int64
	for _, change := range staged {
		n, err := change.apply(ctx, s.tx)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// commit ends the transaction. A failed commit leaves nothing to roll
// back, so the scope is marked rolled back and its hooks are dropped.
func (s *Scope) commit() error {
	err := s.tx.Commit()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = ScopeRolledBack
		s.staged = nil
		s.hooks = nil
		return err
	}
	s.state = ScopeCommitted
	return nil
}

// rollback discards staged changes and hooks. It is safe to call more than
// once.
func (s *Scope) rollback() error {
	s.mu.Lock()
	if s.state != ScopeActive {
		s.mu.Unlock()
		return nil
	}
	s.state = ScopeRolledBack
	s.staged = nil
	s.hooks = nil
	s.mu.Unlock()
	return s.tx.Rollback()
}

func (s *Scope) runAfterCommit(ctx context.Context) {
	s.mu.Lock()
	hooks := s.hooks
	s.hooks = nil
	s.mu.Unlock()

	for _, h := range hooks {
		h.fn(ctx)
	}
}
