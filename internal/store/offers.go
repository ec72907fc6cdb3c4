package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"tenderbench/internal/models"
	"tenderbench/internal/pricing"
	"tenderbench/internal/searchtext"
	"tenderbench/internal/tender"
)

// catalogLine is an active supplier item as read for matching.
type catalogLine struct {
	ID, SupplierID            int64
	Supplier, Name, NameNorm  string
	Unit, BaseUnit            string
	Price, BaseQty, UnitPrice *float64
}

func (c catalogLine) matchText() string {
	if c.NameNorm != "" {
		return c.NameNorm
	}
	return c.Name
}

// offer snapshots the catalog line as a candidate. Its id is the supplier item id.
func (c catalogLine) offer(score float64) tender.Offer {
	return tender.Offer{
		ID:             c.ID,
		SupplierID:     c.SupplierID,
		Supplier:       c.Supplier,
		SupplierItemID: c.ID,
		Name:           c.Name,
		Unit:           c.Unit,
		BaseUnit:       c.BaseUnit,
		Price:          c.Price,
		PricePerUnit:   c.UnitPrice,
		BaseQty:        c.BaseQty,
		Score:          tender.Float(score),
	}
}

const catalogSelect = `SELECT si.id, si.supplier_id, s.name, si.name_raw, COALESCE(si.name_normalized,''),
	COALESCE(si.unit,''), COALESCE(si.base_unit,''), si.price, si.base_qty, si.price_per_unit
	FROM supplier_items si JOIN suppliers s ON s.id = si.supplier_id`

func scanCatalog(rows *sql.Rows) ([]catalogLine, error) {
	defer rows.Close()
	var out []catalogLine
	for rows.Next() {
		var c catalogLine
		var price, baseQty, ppu sql.NullFloat64
		if err := rows.Scan(&c.ID, &c.SupplierID, &c.Supplier, &c.Name, &c.NameNorm, &c.Unit, &c.BaseUnit,
			&price, &baseQty, &ppu); err != nil {
			return nil, err
		}
		c.Price, c.BaseQty, c.UnitPrice = floatPtr(price), floatPtr(baseQty), floatPtr(ppu)
		out = append(out, c)
	}
	return out, rows.Err()
}

// loadCatalog reads active supplier items, limited to supplierIDs when given.
func loadCatalog(ctx context.Context, q querier, supplierIDs []int64) ([]catalogLine, error) {
	query := catalogSelect + ` WHERE si.is_active = 1`
	var args []any
	if len(supplierIDs) > 0 {
		query += ` AND si.supplier_id IN (?` + strings.Repeat(",?", len(supplierIDs)-1) + `)`
		for _, id := range supplierIDs {
			args = append(args, id)
		}
	}
	rows, err := q.QueryContext(ctx, query+` ORDER BY si.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return scanCatalog(rows)
}

func catalogLineByID(ctx context.Context, q querier, id int64) (catalogLine, error) {
	rows, err := q.QueryContext(ctx, catalogSelect+` WHERE si.id=?`, id)
	if err != nil {
		return catalogLine{}, err
	}
	lines, err := scanCatalog(rows)
	if err != nil {
		return catalogLine{}, err
	}
	if len(lines) == 0 {
		return catalogLine{}, fmt.Errorf("supplier item %d: %w", id, ErrNotFound)
	}
	return lines[0], nil
}

// queryText is what an item is matched by: its search name, else its name.
func queryText(it tender.Item) string {
	if it.SearchName != "" {
		return searchtext.NormalizeQuery(it.SearchName)
	}
	return searchtext.NormalizeQuery(it.Name)
}

// rank scores every line against query and keeps those with some overlap
// and a score of at least minScore, best first. Ties go to the lower unit
// price, unknown prices last, then to the lower id.
func rank(query string, lines []catalogLine, minScore float64) []tender.Offer {
	var out []tender.Offer
	for _, c := range lines {
		score := searchtext.Similarity(query, c.matchText())
		if score <= 0 || score < minScore {
			continue
		}
		out = append(out, c.offer(score))
	}
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := *out[i].Score, *out[j].Score
		if si != sj {
			return si > sj
		}
		pi, pj := out[i].PricePerUnit, out[j].PricePerUnit
		if (pi == nil) != (pj == nil) {
			return pi != nil
		}
		if pi != nil && *pi != *pj {
			return *pi < *pj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// firstPerSupplier keeps each supplier's first offer, preserving order.
func firstPerSupplier(offers []tender.Offer) []pricing.Candidate {
	seen := map[string]bool{}
	var out []pricing.Candidate
	for _, o := range offers {
		if seen[o.Supplier] {
			continue
		}
		seen[o.Supplier] = true
		out = append(out, pricing.Candidate{Supplier: o.Supplier, Offer: o})
	}
	return out
}

// SearchOffers ranks live catalog matches for an item.
func (s *Store) SearchOffers(ctx context.Context, itemID int64, limit int, minScore float64) ([]tender.Offer, error) {
	it, err := s.Item(ctx, itemID)
	if err != nil {
		return nil, err
	}
	lines, err := loadCatalog(ctx, s.DB, nil)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	offers := rank(queryText(it), lines, minScore)
	if len(offers) > limit {
		offers = offers[:limit]
	}
	if offers == nil {
		offers = []tender.Offer{}
	}
	return offers, nil
}

// Matrix builds the side-by-side comparison: for every item, the best
// matching line of each compared supplier, priced for the item quantity,
// plus the supplier with the cheapest known total.
func (s *Store) Matrix(ctx context.Context, projectID int64, supplierIDs []int64, minScore float64) (models.Matrix, error) {
	m := models.Matrix{MinScore: minScore, Suppliers: []models.Supplier{}, Rows: []models.MatrixRow{}}
	if err := projectExists(ctx, s.DB, projectID); err != nil {
		return m, err
	}
	sups, err := comparedSuppliers(ctx, s.DB, projectID, supplierIDs)
	if err != nil {
		return m, err
	}
	if len(sups) == 0 {
		return m, nil
	}
	m.Suppliers = sups
	items, err := loadItems(ctx, s.DB, `ti.project_id=?`, projectID)
	if err != nil {
		return m, err
	}
	ids := make([]int64, len(sups))
	names := make([]string, len(sups))
	for i, sp := range sups {
		ids[i], names[i] = sp.ID, sp.Name
	}
	lines, err := loadCatalog(ctx, s.DB, ids)
	if err != nil {
		return m, err
	}
	bySupplier := map[int64][]catalogLine{}
	for _, c := range lines {
		bySupplier[c.SupplierID] = append(bySupplier[c.SupplierID], c)
	}

	for _, it := range items {
		qty := it.EffectiveQty()
		row := models.MatrixRow{ItemID: it.ID, RowNo: it.RowNo, Name: it.Name, Qty: qty, Unit: it.Unit, Cells: []models.MatrixCell{}}
		cmp := tender.Item{ID: it.ID}
		q := queryText(it)
		for _, sp := range sups {
			ranked := rank(q, bySupplier[sp.ID], minScore)
			if len(ranked) == 0 {
				continue
			}
			best := ranked[0]
			cmp.Offers = append(cmp.Offers, best)
			if err := cmp.SetCompare(sp.Name, best.ID); err != nil {
				return m, err
			}
			row.Cells = append(row.Cells, models.MatrixCell{
				SupplierID: sp.ID,
				Supplier:   sp.Name,
				Offer:      best,
				Totals:     pricing.ComputeTotals(best, qty),
			})
		}
		if name, ok := pricing.SelectBest(cmp.CompareOffers(names), qty, minScore); ok {
			row.BestSupplier = name
		}
		m.Rows = append(m.Rows, row)
	}
	return m, nil
}

type itemRef struct {
	ProjectID int64
	Query     string
}

func lookupItem(ctx context.Context, q querier, itemID int64) (itemRef, error) {
	var ref itemRef
	var name, search string
	err := q.QueryRowContext(ctx, `SELECT project_id, name_input, COALESCE(search_name,'') FROM tender_items WHERE id=?`, itemID).
		Scan(&ref.ProjectID, &name, &search)
	if errors.Is(err, sql.ErrNoRows) {
		return ref, fmt.Errorf("item %d: %w", itemID, ErrNotFound)
	}
	if err != nil {
		return ref, err
	}
	ref.Query = queryText(tender.Item{Name: name, SearchName: search})
	return ref, nil
}

// PickOffer snapshots a catalog line as the item's selected offer and
// refreshes the stored alternatives from the compared suppliers.
func (s *Store) PickOffer(ctx context.Context, itemID, supplierItemID int64) (tender.Offer, error) {
	var picked tender.Offer
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ref, err := lookupItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		line, err := catalogLineByID(ctx, tx, supplierItemID)
		if err != nil {
			return err
		}
		picked, err = s.pickTx(ctx, tx, itemID, line.offer(searchtext.Similarity(ref.Query, line.matchText())))
		if err != nil {
			return err
		}
		sups, err := comparedSuppliers(ctx, tx, ref.ProjectID, nil)
		if err != nil {
			return err
		}
		ids := make([]int64, len(sups))
		for i, sp := range sups {
			ids[i] = sp.ID
		}
		var lines []catalogLine
		if len(ids) > 0 {
			if lines, err = loadCatalog(ctx, tx, ids); err != nil {
				return err
			}
		}
		return s.rebuildAlternatives(ctx, tx, itemID, ref.Query, line.ID, lines)
	})
	return picked, err
}

const upsertOffer = `INSERT INTO tender_offers
	(tender_item_id, offer_type, supplier_id, supplier_item_id, supplier_name, name_raw, unit, price, base_unit, base_qty, price_per_unit, score, chosen_at)
	VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
	ON CONFLICT(tender_item_id, supplier_item_id) DO UPDATE SET
		offer_type=excluded.offer_type, supplier_id=excluded.supplier_id, supplier_name=excluded.supplier_name,
		name_raw=excluded.name_raw, unit=excluded.unit, price=excluded.price, base_unit=excluded.base_unit,
		base_qty=excluded.base_qty, price_per_unit=excluded.price_per_unit, score=excluded.score,
		chosen_at=COALESCE(excluded.chosen_at, tender_offers.chosen_at)`

func storeOffer(ctx context.Context, tx *sql.Tx, itemID int64, kind string, o tender.Offer, chosenAt any) (int64, error) {
	if _, err := tx.ExecContext(ctx, upsertOffer, itemID, kind, o.SupplierID, o.SupplierItemID, o.Supplier, o.Name, o.Unit,
		nullable(o.Price), o.BaseUnit, nullable(o.BaseQty), nullable(o.PricePerUnit), nullable(o.Score), chosenAt); err != nil {
		return 0, fmt.Errorf("store offer: %w", err)
	}
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM tender_offers WHERE tender_item_id=? AND supplier_item_id=?`, itemID, o.SupplierItemID).Scan(&id)
	return id, err
}

func (s *Store) pickTx(ctx context.Context, tx *sql.Tx, itemID int64, o tender.Offer) (tender.Offer, error) {
	if _, err := tx.ExecContext(ctx, `UPDATE tender_offers SET offer_type='alternative' WHERE tender_item_id=? AND offer_type='selected'`, itemID); err != nil {
		return o, err
	}
	id, err := storeOffer(ctx, tx, itemID, "selected", o, s.timestamp())
	if err != nil {
		return o, err
	}
	o.ID = id
	if _, err := tx.ExecContext(ctx, `UPDATE tender_items SET selected_offer_id=? WHERE id=?`, id, itemID); err != nil {
		return o, fmt.Errorf("set selected offer: %w", err)
	}
	return o, nil
}

// rebuildAlternatives stores up to altPerSupplier best matches per supplier
// beside the selected offer and drops alternatives no longer among them.
func (s *Store) rebuildAlternatives(ctx context.Context, tx *sql.Tx, itemID int64, query string, selectedID int64, lines []catalogLine) error {
	perSupplier := map[int64]int{}
	keep := []any{itemID, selectedID}
	for _, o := range rank(query, lines, 0) {
		if o.SupplierItemID == selectedID || perSupplier[o.SupplierID] >= altPerSupplier {
			continue
		}
		perSupplier[o.SupplierID]++
		if _, err := storeOffer(ctx, tx, itemID, "alternative", o, nil); err != nil {
			return err
		}
		keep = append(keep, o.SupplierItemID)
	}
	_, err := tx.ExecContext(ctx, `DELETE FROM tender_offers WHERE tender_item_id=? AND offer_type='alternative'
		AND supplier_item_id NOT IN (?`+strings.Repeat(",?", len(keep)-2)+`)`, keep...)
	if err != nil {
		return fmt.Errorf("prune alternatives: %w", err)
	}
	return nil
}

// ClearPick takes the item out of the cart. Stored offers stay as alternatives.
func (s *Store) ClearPick(ctx context.Context, itemID int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := lookupItem(ctx, tx, itemID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE tender_offers SET offer_type='alternative' WHERE tender_item_id=? AND offer_type='selected'`, itemID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE tender_items SET selected_offer_id=NULL WHERE id=?`, itemID)
		return err
	})
}

// AutoPick selects an offer for every item with a match scoring at least
// threshold. Among each supplier's best match the cheapest known total
// wins; when no total can be computed the best-scoring match is taken.
func (s *Store) AutoPick(ctx context.Context, projectID int64, threshold float64) (models.AutoPickResult, error) {
	var res models.AutoPickResult
	if err := projectExists(ctx, s.DB, projectID); err != nil {
		return res, err
	}
	items, err := loadItems(ctx, s.DB, `ti.project_id=?`, projectID)
	if err != nil {
		return res, err
	}
	sups, err := comparedSuppliers(ctx, s.DB, projectID, nil)
	if err != nil {
		return res, err
	}
	res.Items = len(items)
	if len(sups) == 0 {
		return res, nil
	}
	ids := make([]int64, len(sups))
	for i, sp := range sups {
		ids[i] = sp.ID
	}
	lines, err := loadCatalog(ctx, s.DB, ids)
	if err != nil {
		return res, err
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		for _, it := range items {
			q := queryText(it)
			ranked := rank(q, lines, threshold)
			if len(ranked) == 0 {
				continue
			}
			choice := ranked[0]
			cands := firstPerSupplier(ranked)
			if name, ok := pricing.SelectBest(cands, it.EffectiveQty(), threshold); ok {
				for _, c := range cands {
					if c.Supplier == name {
						choice = c.Offer
						break
					}
				}
			}
			if _, err := s.pickTx(ctx, tx, it.ID, choice); err != nil {
				return err
			}
			if err := s.rebuildAlternatives(ctx, tx, it.ID, q, choice.SupplierItemID, lines); err != nil {
				return err
			}
			res.Selected++
		}
		return nil
	})
	return res, err
}
