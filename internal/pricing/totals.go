// Package pricing computes offer totals and picks the cheapest eligible
// supplier for a tender line.
package pricing

import (
	"math"

	"tenderbench/internal/tender"
)

// Totals is the cost of covering a quantity with one offer. Nil fields are
// unknown and must not be compared as zero.
type Totals struct {
	TotalPrice  *float64 `json:"total_price"`
	PacksNeeded *float64 `json:"packs_needed"`
}

// ComputeTotals prices qty against o.
//
// Price per unit wins when both it and qty are known. Otherwise the qty is
// rounded up to whole packs of BaseQty and each pack costs Price. Packs are
// reported whenever qty and a positive BaseQty are known.
func ComputeTotals(o tender.Offer, qty *float64) Totals {
	var t Totals
	q := finite(qty)
	if q == nil {
		return t
	}
	if base := finite(o.BaseQty); base != nil && *base > 0 {
		t.PacksNeeded = tender.Float(math.Ceil(*q / *base))
	}
	if ppu := finite(o.PricePerUnit); ppu != nil {
		t.TotalPrice = tender.Float(*ppu * *q)
		return t
	}
	if t.PacksNeeded != nil {
		if price := finite(o.Price); price != nil {
			t.TotalPrice = tender.Float(*t.PacksNeeded * *price)
		}
	}
	return t
}

// finite drops NaN and infinities that slipped past the boundary.
func finite(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return tender.Float(*v)
}
