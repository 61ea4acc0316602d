package testsupport

import (
	"bytes"
	"context"
	"image"
	"testing"

	"github.com/goliatone/go-storefront/model"
)

func TestNewSchemaDB(t *testing.T) {
	db := NewSchemaDB(t)
	ctx := context.Background()

	for _, table := range []string{"categories", "products", "users", "user_roles", "cart_items"} {
		var n int
		err := db.NewSelect().
			TableExpr("sqlite_master").
			ColumnExpr("count(*)").
			Where("type = 'table' AND name = ?", table).
			Scan(ctx, &n)
		if err != nil {
			t.Fatalf("query sqlite_master: %v", err)
		}
		if n != 1 {
			t.Errorf("expected table %s to exist", table)
		}
	}

	var fk int
	if err := db.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("read pragma: %v", err)
	}
	if fk != 1 {
		t.Errorf("expected foreign keys to be enforced")
	}

	cat := &model.Category{Name: "Books"}
	if _, err := db.NewInsert().Model(cat).Exec(ctx); err != nil {
		t.Fatalf("insert category: %v", err)
	}
	if cat.ID == 0 {
		t.Error("expected generated id")
	}
}

func TestImagePayloads(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		format string
	}{
		{name: "png", data: PNG(t, 32, 16), format: "png"},
		{name: "jpeg", data: JPEG(t, 32, 16), format: "jpeg"},
		{name: "gif", data: GIF(t, 32, 16), format: "gif"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, cfg := DecodeConfig(t, tt.data)
			if format != tt.format {
				t.Errorf("expected format %s, got %s", tt.format, format)
			}
			if cfg.Width != 32 || cfg.Height != 16 {
				t.Errorf("expected 32x16, got %dx%d", cfg.Width, cfg.Height)
			}
		})
	}
}

func TestGarbageIsNotAnImage(t *testing.T) {
	if _, _, err := image.DecodeConfig(bytes.NewReader(Garbage())); err == nil {
		t.Error("expected garbage to be rejected")
	}
}

func TestMemFs(t *testing.T) {
	fs := MemFs()
	if err := fs.MkdirAll("images/products", 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := fs.Stat("images/products"); err != nil {
		t.Errorf("expected directory to exist: %v", err)
	}
}
