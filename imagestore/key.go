// Package imagestore stores one normalized PNG per entity on an afero
// filesystem and serves a generated placeholder when none exists.
package imagestore

import (
	"strconv"
	"strings"

	"github.com/jinzhu/inflection"
)

// Key identifies the image of one entity. Identifier must be unique within a
// store's folder and safe to use as a file name.
type Key interface {
	Identifier() string
}

// ProductImageKey addresses a product picture: "{id}_product".
type ProductImageKey struct {
	ID int64
}

func (k ProductImageKey) Identifier() string {
	return strconv.FormatInt(k.ID, 10) + "_product"
}

// UserImageKey addresses a profile picture: "{id}_pfp".
type UserImageKey struct {
	ID string
}

func (k UserImageKey) Identifier() string {
	return k.ID + "_pfp"
}

// FolderFor returns the folder name for an entity name: "Product" → "products".
func FolderFor(entity string) string {
	return inflection.Plural(strings.ToLower(strings.TrimSpace(entity)))
}
