package pricing

import (
	"sort"

	"tenderbench/internal/tender"
)

// Candidate is one comparison-matrix cell: a supplier and its offer for an item.
type Candidate = tender.SupplierOffer

// ScorePolicy decides how an offer without a score is treated by the threshold.
type ScorePolicy int

const (
	// MissingScorePasses lets unscored offers through the threshold.
	MissingScorePasses ScorePolicy = iota
	// MissingScoreFails rejects unscored offers whenever a threshold applies.
	MissingScoreFails
)

// Selector picks the cheapest eligible supplier for one item.
type Selector struct {
	MinScore     float64
	MissingScore ScorePolicy
}

// SelectBest runs the default Selector: unscored offers pass the threshold.
func SelectBest(candidates []Candidate, qty *float64, minScore float64) (string, bool) {
	return Selector{MinScore: minScore}.Select(candidates, qty)
}

// Select returns the supplier whose offer has the lowest known total for qty
// among offers meeting the score threshold. Ties keep the earliest candidate;
// a supplier appearing twice only counts with its first offer.
func (s Selector) Select(candidates []Candidate, qty *float64) (string, bool) {
	best := ""
	var bestTotal float64
	found := false
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c.Supplier]; dup {
			continue
		}
		seen[c.Supplier] = struct{}{}
		if !s.passes(c.Offer) {
			continue
		}
		total := ComputeTotals(c.Offer, qty).TotalPrice
		if total == nil {
			continue
		}
		if !found || *total < bestTotal {
			best, bestTotal, found = c.Supplier, *total, true
		}
	}
	return best, found
}

func (s Selector) passes(o tender.Offer) bool {
	if o.Score == nil {
		return s.MissingScore == MissingScorePasses || s.MinScore <= 0
	}
	return *o.Score >= s.MinScore
}

// unitPrice is the price used to compare offers without a quantity.
func unitPrice(o tender.Offer) *float64 {
	if o.PricePerUnit != nil {
		return finite(o.PricePerUnit)
	}
	return finite(o.Price)
}

// BestPerSupplier keeps the cheapest offer of each supplier, by price per
// unit falling back to pack price, ordered from cheapest to dearest.
// Offers without any price are ignored.
func BestPerSupplier(offers []tender.Offer) []Candidate {
	index := make(map[string]int)
	var out []Candidate
	for _, o := range offers {
		p := unitPrice(o)
		if p == nil {
			continue
		}
		i, ok := index[o.Supplier]
		if !ok {
			index[o.Supplier] = len(out)
			out = append(out, Candidate{Supplier: o.Supplier, Offer: o})
			continue
		}
		if *p < *unitPrice(out[i].Offer) {
			out[i].Offer = o
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return *unitPrice(out[a].Offer) < *unitPrice(out[b].Offer)
	})
	return out
}

// RankOffers orders offers for display: best score first, then cheapest price
// per unit with unknown prices last, then id. The input slice is not modified.
func RankOffers(offers []tender.Offer) []tender.Offer {
	out := make([]tender.Offer, len(offers))
	copy(out, offers)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if sa, sb := scoreOf(a), scoreOf(b); sa != sb {
			return sa > sb
		}
		pa, pb := finite(a.PricePerUnit), finite(b.PricePerUnit)
		switch {
		case pa != nil && pb == nil:
			return true
		case pa == nil && pb != nil:
			return false
		case pa != nil && *pa != *pb:
			return *pa < *pb
		}
		return a.ID < b.ID
	})
	return out
}

func scoreOf(o tender.Offer) float64 {
	if s := finite(o.Score); s != nil {
		return *s
	}
	return -1
}
