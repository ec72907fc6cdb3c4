package store

import (
	"context"
	"sort"
	"strings"

	"tenderbench/internal/searchtext"
	"tenderbench/internal/tender"
)

// Catalog search orders.
const (
	SortRank      = "rank"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortUnitPrice = "ppu_asc"
)

// CatalogSorts lists the accepted catalog search orders.
var CatalogSorts = []string{SortRank, SortPriceAsc, SortPriceDesc, SortUnitPrice}

const (
	defaultCatalogLimit = 60
	maxCatalogLimit     = 300
)

// CatalogQuery filters and orders a catalog search. An empty Q lists every
// active line, newest first under SortRank.
type CatalogQuery struct {
	Q          string
	SupplierID int64
	Sort       string
	Limit      int
	MinScore   float64
}

// containsFold reports whether the line's name or search name contains
// needle, which must already be lower case.
func (c catalogLine) containsFold(needle string) bool {
	return strings.Contains(strings.ToLower(c.Name), needle) ||
		strings.Contains(strings.ToLower(c.NameNorm), needle)
}

// cmpPrice orders known prices before unknown ones, ascending.
func cmpPrice(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	}
	return 0
}

// cmpPriceDesc is cmpPrice descending, unknown prices still last.
func cmpPriceDesc(a, b *float64) int {
	if a == nil || b == nil {
		return cmpPrice(a, b)
	}
	return -cmpPrice(a, b)
}

func cmpScore(a, b tender.Offer) int {
	var sa, sb float64
	if a.Score != nil {
		sa = *a.Score
	}
	if b.Score != nil {
		sb = *b.Score
	}
	switch {
	case sa > sb:
		return -1
	case sa < sb:
		return 1
	}
	return 0
}

// sortCatalog orders hits by the requested key, then by score. Scored
// hits under SortRank fall back to price; ids break the remaining ties,
// newest first.
func sortCatalog(out []tender.Offer, order string, scored bool) {
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		var c int
		switch order {
		case SortPriceAsc:
			c = cmpPrice(a.Price, b.Price)
		case SortPriceDesc:
			c = cmpPriceDesc(a.Price, b.Price)
		case SortUnitPrice:
			c = cmpPrice(a.PricePerUnit, b.PricePerUnit)
		}
		if c == 0 {
			c = cmpScore(a, b)
		}
		if c == 0 && scored && (order == SortRank || order == "") {
			c = cmpPrice(a.Price, b.Price)
		}
		if c != 0 {
			return c < 0
		}
		return a.ID > b.ID
	})
}

// SearchCatalog looks up active supplier lines by name. With a query a line
// is kept when it scores at least MinScore or its name contains the query.
func (s *Store) SearchCatalog(ctx context.Context, cq CatalogQuery) ([]tender.Offer, error) {
	var ids []int64
	if cq.SupplierID > 0 {
		if err := supplierExists(ctx, s.DB, cq.SupplierID); err != nil {
			return nil, err
		}
		ids = []int64{cq.SupplierID}
	}
	lines, err := loadCatalog(ctx, s.DB, ids)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(cq.Q))
	query := searchtext.NormalizeQuery(cq.Q)
	out := []tender.Offer{}
	for _, c := range lines {
		if needle == "" {
			out = append(out, c.offer(0))
			continue
		}
		score := searchtext.Similarity(query, c.matchText())
		if (score <= 0 || score < cq.MinScore) && !c.containsFold(needle) {
			continue
		}
		out = append(out, c.offer(score))
	}
	sortCatalog(out, cq.Sort, needle != "")

	limit := cq.Limit
	if limit <= 0 {
		limit = defaultCatalogLimit
	}
	if limit > maxCatalogLimit {
		limit = maxCatalogLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SupplierMatches ranks one supplier's active lines for an item. A non-empty
// filter keeps only lines whose name contains it, and the lines are then
// scored against the filter instead of the item's search text.
func (s *Store) SupplierMatches(ctx context.Context, itemID, supplierID int64, filter string, limit int, minScore float64) ([]tender.Offer, error) {
	ref, err := lookupItem(ctx, s.DB, itemID)
	if err != nil {
		return nil, err
	}
	if err := supplierExists(ctx, s.DB, supplierID); err != nil {
		return nil, err
	}
	lines, err := loadCatalog(ctx, s.DB, []int64{supplierID})
	if err != nil {
		return nil, err
	}

	query := ref.Query
	if needle := strings.ToLower(strings.TrimSpace(filter)); needle != "" {
		var kept []catalogLine
		for _, c := range lines {
			if c.containsFold(needle) {
				kept = append(kept, c)
			}
		}
		lines, query = kept, searchtext.NormalizeQuery(filter)
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	offers := rank(query, lines, minScore)
	if len(offers) > limit {
		offers = offers[:limit]
	}
	if offers == nil {
		offers = []tender.Offer{}
	}
	return offers, nil
}
