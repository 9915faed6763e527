package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	embedded, err := fs.Glob(Migrations, EmbeddedDir+"/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, embedded)

	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	require.NoError(t, err)
	assert.Len(t, embedded, len(onDisk))
}

func TestMigrationsDirValidates(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
}

func TestSchemaMigrationsContainCoreObjects(t *testing.T) {
	var all strings.Builder
	matches, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	require.NoError(t, err)
	for _, m := range matches {
		data, err := os.ReadFile(m)
		require.NoError(t, err)
		all.Write(data)
	}
	content := all.String()

	checks := []string{
		"CREATE TABLE IF NOT EXISTS products",
		"CONSTRAINT ux_products_product_id UNIQUE (product_id)",
		"CREATE TABLE IF NOT EXISTS product_sizes",
		"CREATE TABLE IF NOT EXISTS orders",
		"CONSTRAINT ux_orders_order_id UNIQUE (order_id)",
		"CREATE INDEX IF NOT EXISTS idx_order_items_product_id",
		"CREATE TABLE IF NOT EXISTS account_carts",
		"CREATE TABLE IF NOT EXISTS outbox_events",
		"'/images/placeholder-shoe.jpg'",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Order Notes!")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_add_order_notes.sql"), path)
	require.NoError(t, ValidateDir(dir))
}

func TestEmbeddedMigrationsValidate(t *testing.T) {
	require.NoError(t, ValidateFS(Migrations, EmbeddedDir))
}

func TestCreateSQLMigrationRejectsReusedName(t *testing.T) {
	dir := t.TempDir()
	restore := now
	t.Cleanup(func() { now = restore })

	now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	first, err := CreateSQLMigration(dir, "add order notes")
	require.NoError(t, err)
	assert.Equal(t, "20260301090000_add_order_notes.sql", filepath.Base(first))

	now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }
	_, err = CreateSQLMigration(dir, "Add-Order-Notes")
	require.Error(t, err)

	_, err = CreateSQLMigration(dir, "!!!")
	require.Error(t, err)
}

func TestValidateFSRejectsBrokenMigrations(t *testing.T) {
	cases := map[string]fstest.MapFile{
		"20260301090000_Bad_Name.sql":   {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"20260301090000_no_down.sql":    {Data: []byte("-- +goose Up\nSELECT 1;\n")},
		"20260301090000_down_first.sql": {Data: []byte("-- +goose Down\n-- +goose Up\n")},
		"20260301090000_open_block.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n")},
		"20260301090000_stray_end.sql":  {Data: []byte("-- +goose Up\n-- +goose StatementEnd\n-- +goose Down\n")},
	}
	for name, file := range cases {
		t.Run(name, func(t *testing.T) {
			fsys := fstest.MapFS{"m/" + name: &fstest.MapFile{Data: file.Data}}
			assert.Error(t, ValidateFS(fsys, "m"))
		})
	}

	dup := fstest.MapFS{
		"m/20260301090000_a.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"m/20260301090000_b.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
	}
	assert.ErrorContains(t, ValidateFS(dup, "m"), "already used")
}
