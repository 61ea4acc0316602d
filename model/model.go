// Package model holds the bun records of the storefront and its schema.
package model

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type Category struct {
	bun.BaseModel `bun:"table:categories,alias:category"`

	ID       int64      `bun:"id,pk,autoincrement" json:"id"`
	Name     string     `bun:"name,notnull,unique" json:"name"`
	Products []*Product `bun:"rel:has-many,join:id=category_id" json:"products,omitempty"`
}

type Product struct {
	bun.BaseModel `bun:"table:products,alias:product"`

	ID          int64           `bun:"id,pk,autoincrement" json:"id"`
	Name        string          `bun:"name,notnull" json:"name"`
	Description string          `bun:"description" json:"description"`
	Price       decimal.Decimal `bun:"price,type:numeric(12,2),notnull" json:"price"`
	CategoryID  int64           `bun:"category_id,notnull" json:"category_id"`
	SubmitterID *string         `bun:"submitter_id" json:"submitter_id,omitempty"`
	CreatedAt   time.Time       `bun:"created_at,notnull" json:"created_at"`

	Category *Category `bun:"rel:belongs-to,join:category_id=id" json:"category,omitempty"`
}

var _ bun.BeforeAppendModelHook = (*Product)(nil)

func (p *Product) BeforeAppendModel(_ context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok && p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return nil
}

// User is the application user aggregate. Credentials and roles are managed
// through the identity package.
type User struct {
	bun.BaseModel `bun:"table:users,alias:app_user"`

	ID           string    `bun:"id,pk" json:"id"`
	UserName     string    `bun:"user_name,notnull,unique" json:"user_name"`
	Email        string    `bun:"email" json:"email"`
	PhoneNumber  string    `bun:"phone_number" json:"phone_number"`
	PasswordHash string    `bun:"password_hash" json:"-"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"created_at"`
}

var _ bun.BeforeAppendModelHook = (*User)(nil)

func (u *User) BeforeAppendModel(_ context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok && u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	return nil
}

type UserRole struct {
	bun.BaseModel `bun:"table:user_roles,alias:user_role"`

	UserID string `bun:"user_id,pk" json:"user_id"`
	Role   string `bun:"role,pk" json:"role"`
}

// CartItem is one line of a user's cart, keyed by {UserID, ProductID}.
type CartItem struct {
	bun.BaseModel `bun:"table:cart_items,alias:cart_item"`

	UserID    string `bun:"user_id,pk" json:"user_id"`
	ProductID int64  `bun:"product_id,pk" json:"product_id"`
	Count     int    `bun:"count,notnull" json:"count"`

	Product *Product `bun:"rel:belongs-to,join:product_id=id" json:"product,omitempty"`
}
