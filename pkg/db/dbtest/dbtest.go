// Package dbtest opens throwaway SQLite databases carrying the storefront
// schema for repository and service tests.
package dbtest

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
)

// Schema mirrors the goose migrations using types SQLite understands.
// Money columns use NUMERIC affinity so price filters compare numerically.
var Schema = []string{
	`CREATE TABLE products (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		brand TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price NUMERIC NOT NULL,
		image_url TEXT NOT NULL DEFAULT '/images/placeholder-shoe.jpg',
		stock INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE product_sizes (
		product_id TEXT NOT NULL REFERENCES products (product_id) ON DELETE CASCADE,
		label TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		stock INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (product_id, label)
	)`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		total_qty INTEGER NOT NULL,
		total_amount NUMERIC NOT NULL,
		shipping TEXT NOT NULL,
		status TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		paid_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders (order_id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		product_id TEXT NOT NULL,
		name TEXT NOT NULL,
		brand TEXT NOT NULL DEFAULT '',
		price NUMERIC NOT NULL,
		quantity INTEGER NOT NULL,
		subtotal NUMERIC NOT NULL,
		size TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX idx_order_items_product_id ON order_items (product_id)`,
	`CREATE TABLE account_carts (
		user_id TEXT PRIMARY KEY,
		items TEXT NOT NULL DEFAULT '[]',
		total_qty INTEGER NOT NULL DEFAULT 0,
		total_amount NUMERIC NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT,
		published_at DATETIME,
		terminal_at DATETIME,
		created_at DATETIME NOT NULL
	)`,
}

// Open returns a private in-memory database with Schema applied. The pool is
// capped at one connection, so code under test must use the tx handle inside
// WithTx.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range Schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn
}

// Client wraps Open in a db.Client.
func Client(t *testing.T) *db.Client {
	t.Helper()
	return db.Wrap(Open(t))
}
