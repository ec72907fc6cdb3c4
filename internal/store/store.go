// Package store persists tender projects, supplier catalogs, picked offers
// and orders in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tenderbench/internal/searchtext"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique name is already taken.
	ErrDuplicate = errors.New("already exists")
	// ErrInUse is returned when a record is still referenced by orders.
	ErrInUse = errors.New("in use")
)

const (
	defaultTitle   = "Tender"
	defaultLimit   = 30
	altPerSupplier = 3
	timeLayout     = time.RFC3339
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the SQLite-backed repository.
type Store struct {
	DB   *sql.DB
	Norm *searchtext.Normalizer
	Now  func() time.Time
}

// New returns a Store over db. A nil normalizer uses the built-in rules.
func New(db *sql.DB, norm *searchtext.Normalizer) *Store {
	if norm == nil {
		norm = searchtext.NewNormalizer(nil)
	}
	return &Store{DB: db, Norm: norm, Now: time.Now}
}

func (s *Store) timestamp() string {
	return s.Now().UTC().Format(timeLayout)
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tender_projects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tender_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id INTEGER NOT NULL,
		row_no INTEGER NOT NULL DEFAULT 0,
		name_input TEXT NOT NULL,
		search_name TEXT DEFAULT '',
		qty REAL CHECK(qty IS NULL OR qty >= 0),
		qty_override REAL CHECK(qty_override IS NULL OR qty_override >= 0),
		unit_input TEXT DEFAULT '',
		selected_offer_id INTEGER,
		FOREIGN KEY (project_id) REFERENCES tender_projects(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS suppliers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS supplier_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		supplier_id INTEGER NOT NULL,
		code TEXT DEFAULT '',
		name_raw TEXT NOT NULL,
		name_normalized TEXT DEFAULT '',
		unit TEXT DEFAULT '',
		price REAL,
		base_unit TEXT DEFAULT '',
		base_qty REAL,
		price_per_unit REAL,
		is_active INTEGER NOT NULL DEFAULT 1,
		FOREIGN KEY (supplier_id) REFERENCES suppliers(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS project_suppliers (
		project_id INTEGER NOT NULL,
		supplier_id INTEGER NOT NULL,
		PRIMARY KEY (project_id, supplier_id),
		FOREIGN KEY (project_id) REFERENCES tender_projects(id) ON DELETE CASCADE,
		FOREIGN KEY (supplier_id) REFERENCES suppliers(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS tender_offers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tender_item_id INTEGER NOT NULL,
		offer_type TEXT NOT NULL DEFAULT 'alternative' CHECK(offer_type IN ('selected','alternative')),
		supplier_id INTEGER NOT NULL,
		supplier_item_id INTEGER NOT NULL,
		supplier_name TEXT NOT NULL,
		name_raw TEXT DEFAULT '',
		unit TEXT DEFAULT '',
		price REAL,
		base_unit TEXT DEFAULT '',
		base_qty REAL,
		price_per_unit REAL,
		score REAL,
		chosen_at TEXT,
		UNIQUE (tender_item_id, supplier_item_id),
		FOREIGN KEY (tender_item_id) REFERENCES tender_items(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		public_id TEXT NOT NULL UNIQUE,
		tender_project_id INTEGER NOT NULL,
		supplier_id INTEGER NOT NULL,
		supplier_name TEXT NOT NULL,
		items_count INTEGER NOT NULL DEFAULT 0,
		total_price REAL NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		FOREIGN KEY (tender_project_id) REFERENCES tender_projects(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id INTEGER NOT NULL,
		tender_item_id INTEGER NOT NULL,
		supplier_item_id INTEGER NOT NULL,
		name_raw TEXT DEFAULT '',
		unit TEXT DEFAULT '',
		qty REAL,
		price REAL,
		total_price REAL,
		FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tender_items_project ON tender_items(project_id, row_no)`,
	`CREATE INDEX IF NOT EXISTS idx_supplier_items_supplier ON supplier_items(supplier_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tender_offers_item ON tender_offers(tender_item_id)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_project ON orders(tender_project_id)`,
}

// Migrate creates every table the store needs. It is safe to run repeatedly.
func Migrate(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration: %w", err)
		}
	}
	return nil
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func affected(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return nil
}
