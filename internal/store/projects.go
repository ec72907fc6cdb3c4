package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"tenderbench/internal/importer"
	"tenderbench/internal/models"
	"tenderbench/internal/tender"
)

// ListProjects returns every project, newest first.
func (s *Store) ListProjects(ctx context.Context) ([]models.ProjectSummary, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT tp.id, tp.title, tp.created_at,
		(SELECT COUNT(*) FROM tender_items ti WHERE ti.project_id = tp.id)
		FROM tender_projects tp ORDER BY tp.created_at DESC, tp.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()
	out := []models.ProjectSummary{}
	for rows.Next() {
		var p models.ProjectSummary
		if err := rows.Scan(&p.ID, &p.Title, &p.CreatedAt, &p.ItemsCount); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateProject inserts an empty project. A blank title becomes "Tender".
func (s *Store) CreateProject(ctx context.Context, title string) (models.ProjectSummary, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultTitle
	}
	p := models.ProjectSummary{Title: title, CreatedAt: s.timestamp()}
	res, err := s.DB.ExecContext(ctx, `INSERT INTO tender_projects (title, created_at) VALUES (?,?)`, p.Title, p.CreatedAt)
	if err != nil {
		return p, fmt.Errorf("create project: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return p, fmt.Errorf("project id: %w", err)
	}
	return p, nil
}

// GetProject loads a project with its items, each item's stored offers and
// the suppliers selected for comparison.
func (s *Store) GetProject(ctx context.Context, id int64) (tender.Project, error) {
	var p tender.Project
	var created string
	err := s.DB.QueryRowContext(ctx, `SELECT id, title, created_at FROM tender_projects WHERE id=?`, id).
		Scan(&p.ID, &p.Title, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return p, fmt.Errorf("get project: %w", err)
	}
	p.CreatedAt = parseTime(created)

	p.Items, err = loadItems(ctx, s.DB, `ti.project_id=?`, id)
	if err != nil {
		return p, err
	}

	sups, err := projectSuppliers(ctx, s.DB, id)
	if err != nil {
		return p, err
	}
	names := make([]string, len(sups))
	for i, sp := range sups {
		names[i] = sp.Name
	}
	p.SetSuppliers(names)
	return p, nil
}

// DeleteProject removes a project and everything hanging off it.
func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM tender_projects WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return affected(res, "project", id)
}

func projectExists(ctx context.Context, q querier, id int64) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM tender_projects WHERE id=?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	return err
}

// ReplaceItems swaps the project's lines for freshly imported rows and
// returns how many were inserted.
func (s *Store) ReplaceItems(ctx context.Context, projectID int64, rows []importer.Row) (int, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := projectExists(ctx, tx, projectID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tender_items WHERE project_id=?`, projectID); err != nil {
			return fmt.Errorf("clear items: %w", err)
		}
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, `INSERT INTO tender_items (project_id, row_no, name_input, search_name, qty, unit_input)
				VALUES (?,?,?,?,?,?)`, projectID, r.RowNo, r.Name, s.Norm.SearchName(r.Name), nullable(r.Qty), r.Unit); err != nil {
				return fmt.Errorf("insert item row %d: %w", r.RowNo, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// AddItem appends a line after the current last row.
func (s *Store) AddItem(ctx context.Context, projectID int64, name string, qty *float64, unit string) (tender.Item, error) {
	it := tender.Item{Name: strings.TrimSpace(name), Qty: qty, Unit: strings.TrimSpace(unit), Offers: []tender.Offer{}}
	it.SearchName = s.Norm.SearchName(it.Name)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := projectExists(ctx, tx, projectID); err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(row_no), 0) + 1 FROM tender_items WHERE project_id=?`, projectID).Scan(&it.RowNo); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO tender_items (project_id, row_no, name_input, search_name, qty, unit_input)
			VALUES (?,?,?,?,?,?)`, projectID, it.RowNo, it.Name, it.SearchName, nullable(qty), it.Unit)
		if err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
		if it.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("item id: %w", err)
		}
		return nil
	})
	return it, err
}

// UpdateItem applies a partial update and returns the reloaded item.
func (s *Store) UpdateItem(ctx context.Context, itemID int64, p models.ItemPatch) (tender.Item, error) {
	var sets []string
	var args []any
	if p.Name != nil {
		sets = append(sets, "name_input=?")
		args = append(args, strings.TrimSpace(*p.Name))
		if p.SearchName == nil {
			sets = append(sets, "search_name=?")
			args = append(args, s.Norm.SearchName(*p.Name))
		}
	}
	if p.SearchName != nil {
		sets = append(sets, "search_name=?")
		args = append(args, s.Norm.PinnedSearchName(*p.SearchName))
	}
	if p.Unit != nil {
		sets = append(sets, "unit_input=?")
		args = append(args, strings.TrimSpace(*p.Unit))
	}
	if p.SetQty {
		sets = append(sets, "qty=?")
		args = append(args, nullable(p.Qty))
	}
	if p.SetQtyOverride {
		sets = append(sets, "qty_override=?")
		args = append(args, nullable(p.QtyOverride))
	}
	if len(sets) == 0 {
		return s.Item(ctx, itemID)
	}
	args = append(args, itemID)
	res, err := s.DB.ExecContext(ctx, `UPDATE tender_items SET `+strings.Join(sets, ", ")+` WHERE id=?`, args...)
	if err != nil {
		return tender.Item{}, fmt.Errorf("update item: %w", err)
	}
	if err := affected(res, "item", itemID); err != nil {
		return tender.Item{}, err
	}
	return s.Item(ctx, itemID)
}

// Item loads one line with its stored offers.
func (s *Store) Item(ctx context.Context, itemID int64) (tender.Item, error) {
	items, err := loadItems(ctx, s.DB, `ti.id=?`, itemID)
	if err != nil {
		return tender.Item{}, err
	}
	if len(items) == 0 {
		return tender.Item{}, fmt.Errorf("item %d: %w", itemID, ErrNotFound)
	}
	return items[0], nil
}

// ItemProject returns the project owning an item.
func (s *Store) ItemProject(ctx context.Context, itemID int64) (int64, error) {
	var pid int64
	err := s.DB.QueryRowContext(ctx, `SELECT project_id FROM tender_items WHERE id=?`, itemID).Scan(&pid)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("item %d: %w", itemID, ErrNotFound)
	}
	return pid, err
}

func loadItems(ctx context.Context, q querier, where string, arg any) ([]tender.Item, error) {
	rows, err := q.QueryContext(ctx, `SELECT ti.id, ti.row_no, ti.name_input, COALESCE(ti.search_name,''), ti.qty, ti.qty_override,
		COALESCE(ti.unit_input,''), ti.selected_offer_id
		FROM tender_items ti WHERE `+where+` ORDER BY ti.row_no ASC, ti.id ASC`, arg)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	items := []tender.Item{}
	index := map[int64]int{}
	for rows.Next() {
		var it tender.Item
		var qty, override sql.NullFloat64
		var picked sql.NullInt64
		if err := rows.Scan(&it.ID, &it.RowNo, &it.Name, &it.SearchName, &qty, &override, &it.Unit, &picked); err != nil {
			rows.Close()
			return nil, err
		}
		it.Qty = floatPtr(qty)
		it.QtyOverride = floatPtr(override)
		if picked.Valid {
			it.PickedOfferID = tender.ID(picked.Int64)
		}
		it.Offers = []tender.Offer{}
		index[it.ID] = len(items)
		items = append(items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}

	orows, err := q.QueryContext(ctx, `SELECT toff.id, toff.tender_item_id, toff.supplier_id, toff.supplier_item_id,
		toff.supplier_name, COALESCE(toff.name_raw,''), COALESCE(toff.unit,''), COALESCE(toff.base_unit,''),
		toff.price, toff.price_per_unit, toff.base_qty, toff.score
		FROM tender_offers toff JOIN tender_items ti ON ti.id = toff.tender_item_id
		WHERE `+where+`
		ORDER BY CASE WHEN toff.offer_type='selected' THEN 0 ELSE 1 END,
			toff.score IS NULL, toff.score DESC, toff.price_per_unit IS NULL, toff.price_per_unit ASC, toff.id DESC`, arg)
	if err != nil {
		return nil, fmt.Errorf("load offers: %w", err)
	}
	defer orows.Close()
	for orows.Next() {
		var o tender.Offer
		var itemID int64
		var price, ppu, baseQty, score sql.NullFloat64
		if err := orows.Scan(&o.ID, &itemID, &o.SupplierID, &o.SupplierItemID, &o.Supplier, &o.Name, &o.Unit, &o.BaseUnit,
			&price, &ppu, &baseQty, &score); err != nil {
			return nil, err
		}
		o.Price, o.PricePerUnit, o.BaseQty, o.Score = floatPtr(price), floatPtr(ppu), floatPtr(baseQty), floatPtr(score)
		if i, ok := index[itemID]; ok {
			items[i].Offers = append(items[i].Offers, o)
		}
	}
	return items, orows.Err()
}
