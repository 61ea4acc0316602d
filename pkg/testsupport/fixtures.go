// Package testsupport provides fixtures shared by the package tests: sqlite
// databases with the storefront schema, generated image payloads and memory
// filesystems.
package testsupport

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/goliatone/go-storefront/model"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/afero"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// SQLiteDSN returns a DSN for a file database with foreign keys enforced,
// WAL journaling and a busy timeout, so a transaction and readers outside it
// can coexist.
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", path)
}

// NewDB opens an empty sqlite database in the test's temp directory and
// closes it on cleanup.
func NewDB(t testing.TB) *bun.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "storefront.db")
	sqldb, err := sql.Open("sqlite3", SQLiteDSN(path))
	if err != nil {
		t.Fatalf("failed to open sqlite database: %v", err)
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// NewSchemaDB opens a sqlite database with the storefront schema created.
func NewSchemaDB(t testing.TB) *bun.DB {
	t.Helper()

	db := NewDB(t)
	if err := model.CreateSchema(context.Background(), db); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return db
}

// MemFs returns an empty in-memory filesystem.
func MemFs() afero.Fs {
	return afero.NewMemMapFs()
}

// Pattern returns a w×h RGBA image with a deterministic gradient.
func Pattern(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / max(w, 1)),
				G: uint8((y * 255) / max(h, 1)),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}
	return img
}

// PNG encodes a w×h pattern as PNG.
func PNG(t testing.TB, w, h int) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, Pattern(w, h)); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

// JPEG encodes a w×h pattern as JPEG.
func JPEG(t testing.TB, w, h int) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Pattern(w, h), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// GIF encodes a w×h pattern as GIF.
func GIF(t testing.TB, w, h int) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := gif.Encode(&buf, Pattern(w, h), nil); err != nil {
		t.Fatalf("failed to encode gif: %v", err)
	}
	return buf.Bytes()
}

// Garbage returns bytes no image decoder accepts.
func Garbage() []byte {
	return []byte("this is definitely not an image payload")
}

// DecodeConfig returns the format and bounds of an encoded image.
func DecodeConfig(t testing.TB, data []byte) (string, image.Config) {
	t.Helper()

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to decode image config: %v", err)
	}
	return format, cfg
}
