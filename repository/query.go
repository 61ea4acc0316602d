package repository

import (
	"github.com/uptrace/bun"
)

// Filter is a SQL boolean expression with positional arguments. Use
// ?TableAlias to qualify columns when relations are joined:
//
//	Filter{Expr: "?TableAlias.category_id = ?", Args: []any{id}}
type Filter struct {
	Expr string
	Args []any
}

// Setter assigns Value to Column in UpdateCertainFields.
type Setter struct {
	Column string
	Value  any
}

// Set builds a Setter.
func Set(column string, value any) Setter {
	return Setter{Column: column, Value: value}
}

// Query describes a read or a set-based write. Its identity for caching is
// Name plus the structure of every other field, so two queries with the same
// name and different filter arguments never share a cache entry.
//
// Query values are immutable: every builder method returns a copy.
type Query struct {
	Name      string
	Filters   []Filter
	Orders    []string
	Limit     int
	Relations []string
	Columns   []string
}

// NewQuery starts a query with the given name.
func NewQuery(name string) Query {
	return Query{Name: name}
}

// All is the unfiltered query.
func All() Query {
	return Query{Name: "all"}
}

func (q Query) Where(expr string, args ...any) Query {
	out := q.clone()
	out.Filters = append(out.Filters, Filter{Expr: expr, Args: append([]any(nil), args...)})
	return out
}

func (q Query) OrderBy(exprs ...string) Query {
	out := q.clone()
	out.Orders = append(out.Orders, exprs...)
	return out
}

func (q Query) WithLimit(n int) Query {
	out := q.clone()
	out.Limit = n
	return out
}

func (q Query) WithRelations(relations ...string) Query {
	out := q.clone()
	out.Relations = append(out.Relations, relations...)
	return out
}

func (q Query) WithColumns(columns ...string) Query {
	out := q.clone()
	out.Columns = append(out.Columns, columns...)
	return out
}

// HasFilters reports whether the query restricts the rows it touches.
func (q Query) HasFilters() bool {
	return len(q.Filters) > 0
}

// Structure returns the parts of the query that determine its result, in a
// fixed order, for fingerprinting.
func (q Query) Structure() []any {
	return []any{q.Filters, q.Orders, q.Limit, q.Relations, q.Columns}
}

func (q Query) clone() Query {
	out := q
	out.Filters = append([]Filter(nil), q.Filters...)
	out.Orders = append([]string(nil), q.Orders...)
	out.Relations = append([]string(nil), q.Relations...)
	out.Columns = append([]string(nil), q.Columns...)
	return out
}

func (q Query) applySelect(sq *bun.SelectQuery) *bun.SelectQuery {
	for _, rel := range q.Relations {
		sq = sq.Relation(rel)
	}
	if len(q.Columns) > 0 {
		sq = sq.Column(q.Columns...)
	}
	for _, f := range q.Filters {
		sq = sq.Where(f.Expr, f.Args...)
	}
	for _, o := range q.Orders {
		sq = sq.OrderExpr(o)
	}
	if q.Limit > 0 {
		sq = sq.Limit(q.Limit)
	}
	return sq
}

func (q Query) applyUpdate(uq *bun.UpdateQuery) *bun.UpdateQuery {
	for _, f := range q.Filters {
		uq = uq.Where(f.Expr, f.Args...)
	}
	return uq
}

func (q Query) applyDelete(dq *bun.DeleteQuery) *bun.DeleteQuery {
	for _, f := range q.Filters {
		dq = dq.Where(f.Expr, f.Args...)
	}
	return dq
}
