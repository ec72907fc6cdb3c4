package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"tenderbench/internal/models"
)

// ListSuppliers returns every supplier by name with its catalog size.
func (s *Store) ListSuppliers(ctx context.Context) ([]models.Supplier, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT s.id, s.name, s.created_at,
		(SELECT COUNT(*) FROM supplier_items si WHERE si.supplier_id = s.id)
		FROM suppliers s ORDER BY s.name, s.id`)
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	defer rows.Close()
	out := []models.Supplier{}
	for rows.Next() {
		var sp models.Supplier
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.CreatedAt, &sp.ItemsCount); err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

// CreateSupplier adds a supplier. Names are unique.
func (s *Store) CreateSupplier(ctx context.Context, name string) (models.Supplier, error) {
	sp := models.Supplier{Name: strings.TrimSpace(name), CreatedAt: s.timestamp()}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM suppliers WHERE name=?`, sp.Name).Scan(&id)
		if err == nil {
			return fmt.Errorf("supplier %q: %w", sp.Name, ErrDuplicate)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO suppliers (name, created_at) VALUES (?,?)`, sp.Name, sp.CreatedAt)
		if err != nil {
			return fmt.Errorf("create supplier: %w", err)
		}
		if sp.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("supplier id: %w", err)
		}
		return nil
	})
	return sp, err
}

// DeleteSupplier removes a supplier with its catalog and project
// selections. Suppliers with ordered items are kept and ErrInUse is
// returned. Offers already picked keep their snapshots.
func (s *Store) DeleteSupplier(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := supplierExists(ctx, tx, id); err != nil {
			return err
		}
		var ordered int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM order_items oi
			JOIN orders o ON o.id = oi.order_id
			LEFT JOIN supplier_items si ON si.id = oi.supplier_item_id
			WHERE o.supplier_id=? OR si.supplier_id=?`, id, id).Scan(&ordered)
		if err != nil {
			return fmt.Errorf("count ordered items: %w", err)
		}
		if ordered > 0 {
			return fmt.Errorf("supplier %d has %d ordered items: %w", id, ordered, ErrInUse)
		}
		for _, stmt := range []string{
			`DELETE FROM supplier_items WHERE supplier_id=?`,
			`DELETE FROM project_suppliers WHERE supplier_id=?`,
			`DELETE FROM suppliers WHERE id=?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("delete supplier: %w", err)
			}
		}
		return nil
	})
}

func supplierExists(ctx context.Context, q querier, id int64) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM suppliers WHERE id=?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("supplier %d: %w", id, ErrNotFound)
	}
	return err
}

// AddSupplierItem adds a catalog line. The search name is derived from the
// name and unit when not given, and the unit price from price over pack
// size when only those are known.
func (s *Store) AddSupplierItem(ctx context.Context, it models.SupplierItem) (models.SupplierItem, error) {
	it = s.prepareSupplierItem(it)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := supplierExists(ctx, tx, it.SupplierID); err != nil {
			return err
		}
		var err error
		it.ID, err = insertSupplierItem(ctx, tx, it)
		return err
	})
	return it, err
}

// ReplaceSupplierItems swaps a supplier's whole catalog for items, as a
// fresh price list does. Offers already picked keep their snapshots.
func (s *Store) ReplaceSupplierItems(ctx context.Context, supplierID int64, items []models.SupplierItem) (int, error) {
	n := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := supplierExists(ctx, tx, supplierID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM supplier_items WHERE supplier_id=?`, supplierID); err != nil {
			return fmt.Errorf("clear supplier items: %w", err)
		}
		for _, it := range items {
			it.SupplierID = supplierID
			it = s.prepareSupplierItem(it)
			if it.Name == "" {
				continue
			}
			if _, err := insertSupplierItem(ctx, tx, it); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) prepareSupplierItem(it models.SupplierItem) models.SupplierItem {
	it.Name = strings.TrimSpace(it.Name)
	it.Code = strings.TrimSpace(it.Code)
	if it.NameNormalized == "" {
		it.NameNormalized = s.Norm.SupplierSearchName(it.Name, it.Unit)
	}
	if it.PricePerUnit == nil && it.Price != nil && it.BaseQty != nil && *it.BaseQty > 0 {
		v := *it.Price / *it.BaseQty
		it.PricePerUnit = &v
	}
	it.Active = true
	return it
}

func insertSupplierItem(ctx context.Context, tx *sql.Tx, it models.SupplierItem) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO supplier_items
		(supplier_id, code, name_raw, name_normalized, unit, price, base_unit, base_qty, price_per_unit, is_active)
		VALUES (?,?,?,?,?,?,?,?,?,1)`,
		it.SupplierID, it.Code, it.Name, it.NameNormalized, it.Unit, nullable(it.Price), it.BaseUnit, nullable(it.BaseQty), nullable(it.PricePerUnit))
	if err != nil {
		return 0, fmt.Errorf("insert supplier item: %w", err)
	}
	return res.LastInsertId()
}

// SupplierItems lists a supplier's catalog.
func (s *Store) SupplierItems(ctx context.Context, supplierID int64) ([]models.SupplierItem, error) {
	if err := supplierExists(ctx, s.DB, supplierID); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT id, supplier_id, COALESCE(code,''), name_raw, COALESCE(name_normalized,''), COALESCE(unit,''),
		price, COALESCE(base_unit,''), base_qty, price_per_unit, is_active
		FROM supplier_items WHERE supplier_id=? ORDER BY id`, supplierID)
	if err != nil {
		return nil, fmt.Errorf("list supplier items: %w", err)
	}
	defer rows.Close()
	out := []models.SupplierItem{}
	for rows.Next() {
		var it models.SupplierItem
		var price, baseQty, ppu sql.NullFloat64
		if err := rows.Scan(&it.ID, &it.SupplierID, &it.Code, &it.Name, &it.NameNormalized, &it.Unit,
			&price, &it.BaseUnit, &baseQty, &ppu, &it.Active); err != nil {
			return nil, err
		}
		it.Price, it.BaseQty, it.PricePerUnit = floatPtr(price), floatPtr(baseQty), floatPtr(ppu)
		out = append(out, it)
	}
	return out, rows.Err()
}

// SetProjectSuppliers replaces the suppliers compared in a project.
func (s *Store) SetProjectSuppliers(ctx context.Context, projectID int64, supplierIDs []int64) ([]models.Supplier, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := projectExists(ctx, tx, projectID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM project_suppliers WHERE project_id=?`, projectID); err != nil {
			return err
		}
		for _, sid := range supplierIDs {
			if err := supplierExists(ctx, tx, sid); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO project_suppliers (project_id, supplier_id) VALUES (?,?)`, projectID, sid); err != nil {
				return fmt.Errorf("add project supplier: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.ProjectSuppliers(ctx, projectID)
}

// ProjectSuppliers returns the suppliers selected for a project, by name.
func (s *Store) ProjectSuppliers(ctx context.Context, projectID int64) ([]models.Supplier, error) {
	if err := projectExists(ctx, s.DB, projectID); err != nil {
		return nil, err
	}
	return projectSuppliers(ctx, s.DB, projectID)
}

func projectSuppliers(ctx context.Context, q querier, projectID int64) ([]models.Supplier, error) {
	rows, err := q.QueryContext(ctx, `SELECT s.id, s.name, s.created_at,
		(SELECT COUNT(*) FROM supplier_items si WHERE si.supplier_id = s.id)
		FROM project_suppliers ps JOIN suppliers s ON s.id = ps.supplier_id
		WHERE ps.project_id=? ORDER BY s.name, s.id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("project suppliers: %w", err)
	}
	defer rows.Close()
	out := []models.Supplier{}
	for rows.Next() {
		var sp models.Supplier
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.CreatedAt, &sp.ItemsCount); err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

// comparedSuppliers resolves the supplier set for matching: the explicit ids
// when given, else the project's selection, else every supplier.
func comparedSuppliers(ctx context.Context, q querier, projectID int64, ids []int64) ([]models.Supplier, error) {
	if len(ids) > 0 {
		var out []models.Supplier
		for _, id := range ids {
			var sp models.Supplier
			err := q.QueryRowContext(ctx, `SELECT id, name, created_at FROM suppliers WHERE id=?`, id).Scan(&sp.ID, &sp.Name, &sp.CreatedAt)
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("supplier %d: %w", id, ErrNotFound)
			}
			if err != nil {
				return nil, err
			}
			out = append(out, sp)
		}
		return out, nil
	}
	sel, err := projectSuppliers(ctx, q, projectID)
	if err != nil || len(sel) > 0 {
		return sel, err
	}
	rows, err := q.QueryContext(ctx, `SELECT id, name, created_at FROM suppliers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var all []models.Supplier
	for rows.Next() {
		var sp models.Supplier
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.CreatedAt); err != nil {
			return nil, err
		}
		all = append(all, sp)
	}
	return all, rows.Err()
}
