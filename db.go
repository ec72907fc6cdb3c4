package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	_ "modernc.org/sqlite"

	"tenderbench/internal/importer"
	"tenderbench/internal/models"
	"tenderbench/internal/store"
	"tenderbench/internal/tender"
)

// openDB opens the SQLite database at path and brings its schema up to date.
func openDB(path string) (*sql.DB, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", path+sep+"_journal_mode=WAL&_busy_timeout=10000&_foreign_keys=1")
	if err != nil {
		return nil, err
	}

	// SQLite handles one writer and many readers in WAL mode
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	// some drivers ignore DSN params, so set them again
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=30000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if err := store.Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

type demoItem struct {
	name, unit string
	price      float64
}

var demoCatalogs = []struct {
	supplier string
	items    []demoItem
}{
	{"Молочный двор", []demoItem{
		{"Сулугуни 45% палка", "кг", 520},
		{"Сыр Российский 50%", "кг", 610},
		{"Молоко 3,2% 0,9л", "шт", 81},
		{"Сметана 20% 400г", "шт", 115},
	}},
	{"ФермерПродукт", []demoItem{
		{"Сулугуни 45%", "кг", 485},
		{"Молоко пастеризованное 3,2% 1л", "шт", 92},
		{"Томаты розовые", "кг", 240},
		{"Огурцы гладкие", "кг", 160},
	}},
}

var demoTender = []struct {
	name, unit string
	qty        float64
}{
	{"Сулугуни 45%", "кг", 12},
	{"Молоко 3,2%", "л", 40},
	{"Томаты", "кг", 25},
	{"Сметана 20%", "кг", 6},
}

// seedDemo loads two demo suppliers and a sample tender. A database that
// already has suppliers is left alone.
func seedDemo(ctx context.Context, s *store.Store) error {
	existing, err := s.ListSuppliers(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	for _, c := range demoCatalogs {
		sp, err := s.CreateSupplier(ctx, c.supplier)
		if err != nil {
			return err
		}
		for _, it := range c.items {
			price := tender.Float(it.price)
			baseUnit, baseQty, ppu := importer.UnitMetrics(it.name, it.unit, price)
			_, err := s.AddSupplierItem(ctx, models.SupplierItem{
				SupplierID:   sp.ID,
				Name:         it.name,
				Unit:         it.unit,
				Price:        price,
				BaseUnit:     baseUnit,
				BaseQty:      baseQty,
				PricePerUnit: ppu,
			})
			if err != nil {
				return err
			}
		}
	}

	p, err := s.CreateProject(ctx, "Демо: молочка и овощи")
	if err != nil {
		return err
	}
	for _, it := range demoTender {
		if _, err := s.AddItem(ctx, p.ID, it.name, tender.Float(it.qty), it.unit); err != nil {
			return err
		}
	}
	log.Printf("db: seeded demo data (%d suppliers, tender %d)", len(demoCatalogs), p.ID)
	return nil
}
