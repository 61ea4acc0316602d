package model

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

type tableSpec struct {
	model       any
	name        string
	foreignKeys []string
}

// tables lists every table in creation order.
var tables = []tableSpec{
	{model: (*Category)(nil), name: "categories"},
	{model: (*User)(nil), name: "users"},
	{
		model: (*UserRole)(nil),
		name:  "user_roles",
		foreignKeys: []string{
			`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`,
		},
	},
	{
		model: (*Product)(nil),
		name:  "products",
		foreignKeys: []string{
			`("category_id") REFERENCES "categories" ("id") ON DELETE CASCADE`,
			`("submitter_id") REFERENCES "users" ("id") ON DELETE SET NULL`,
		},
	},
	{
		model: (*CartItem)(nil),
		name:  "cart_items",
		foreignKeys: []string{
			`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`,
			`("product_id") REFERENCES "products" ("id") ON DELETE CASCADE`,
		},
	},
}

// CreateSchema creates every table and index that does not exist yet.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, t := range tables {
		q := db.NewCreateTable().Model(t.model).IfNotExists()
		for _, fk := range t.foreignKeys {
			q = q.ForeignKey(fk)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("create table %s: %w", t.name, err)
		}
	}

	indexes := []struct {
		model  any
		name   string
		column string
	}{
		{(*Product)(nil), "products_category_id_idx", "category_id"},
		{(*Product)(nil), "products_submitter_id_idx", "submitter_id"},
	}
	for _, idx := range indexes {
		_, err := db.NewCreateIndex().Model(idx.model).Index(idx.name).Column(idx.column).IfNotExists().Exec(ctx)
		if err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}

// DropSchema drops every table in reverse dependency order.
func DropSchema(ctx context.Context, db bun.IDB) error {
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := db.NewDropTable().Model(tables[i].model).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop table %s: %w", tables[i].name, err)
		}
	}
	return nil
}
