package tender

import (
	"errors"
	"math"
	"strings"
	"time"
)

// ErrOfferNotFound is returned when an offer id does not belong to an item.
var ErrOfferNotFound = errors.New("offer not found")

// Offer is a candidate supplier line matching a tender item.
// Optional numeric fields are nil when the source did not carry them.
type Offer struct {
	ID             int64    `json:"id"`
	SupplierID     int64    `json:"supplier_id,omitempty"`
	Supplier       string   `json:"supplier"`
	SupplierItemID int64    `json:"supplier_item_id,omitempty"`
	Name           string   `json:"name"`
	Unit           string   `json:"unit,omitempty"`
	BaseUnit       string   `json:"base_unit,omitempty"`
	Price          *float64 `json:"price"`
	PricePerUnit   *float64 `json:"price_per_unit"`
	BaseQty        *float64 `json:"base_qty"`
	Score          *float64 `json:"score"`
}

// Item is one line of a tender.
type Item struct {
	ID             int64            `json:"id"`
	RowNo          int              `json:"row_no"`
	Name           string           `json:"name"`
	SearchName     string           `json:"search_name,omitempty"`
	Qty            *float64         `json:"qty"`
	QtyOverride    *float64         `json:"qty_override,omitempty"`
	Unit           string           `json:"unit"`
	Offers         []Offer          `json:"offers"`
	PickedOfferID  *int64           `json:"picked_offer_id"`
	CompareOfferID map[string]int64 `json:"compare_offer_id,omitempty"`
}

// Project is a tender: its items plus the suppliers compared side by side.
type Project struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	Items     []Item    `json:"items"`
	Suppliers []string  `json:"suppliers"`
}

// Float returns a pointer to v, or nil when v is NaN or infinite.
func Float(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ID returns a pointer to id.
func ID(id int64) *int64 {
	return &id
}

// EffectiveQty is the override quantity when set, otherwise the requested one.
func (it *Item) EffectiveQty() *float64 {
	if it.QtyOverride != nil {
		return it.QtyOverride
	}
	return it.Qty
}

// Offer looks up an offer by id.
func (it *Item) Offer(id int64) (Offer, bool) {
	for _, o := range it.Offers {
		if o.ID == id {
			return o, true
		}
	}
	return Offer{}, false
}

// ReplaceOffers swaps the offer set. References into the old set that no
// longer resolve are dropped.
func (it *Item) ReplaceOffers(offers []Offer) {
	it.Offers = offers
	if it.PickedOfferID != nil {
		if _, ok := it.Offer(*it.PickedOfferID); !ok {
			it.PickedOfferID = nil
		}
	}
	for supplier, id := range it.CompareOfferID {
		if _, ok := it.Offer(id); !ok {
			delete(it.CompareOfferID, supplier)
		}
	}
}

// Pick places the offer in the cart for this item.
func (it *Item) Pick(offerID int64) error {
	if _, ok := it.Offer(offerID); !ok {
		return ErrOfferNotFound
	}
	it.PickedOfferID = ID(offerID)
	return nil
}

// ClearPick removes the item from the cart.
func (it *Item) ClearPick() {
	it.PickedOfferID = nil
}

// PickedOffer resolves the picked reference. It reports false when nothing
// is picked or the reference is dangling.
func (it *Item) PickedOffer() (Offer, bool) {
	if it.PickedOfferID == nil {
		return Offer{}, false
	}
	return it.Offer(*it.PickedOfferID)
}

// SetCompare fills the comparison matrix cell for supplier.
func (it *Item) SetCompare(supplier string, offerID int64) error {
	if _, ok := it.Offer(offerID); !ok {
		return ErrOfferNotFound
	}
	if it.CompareOfferID == nil {
		it.CompareOfferID = make(map[string]int64)
	}
	it.CompareOfferID[supplier] = offerID
	return nil
}

// CompareOffers returns the matrix cells for the given suppliers, in that
// order. Suppliers without a resolvable cell are skipped.
func (it *Item) CompareOffers(suppliers []string) []SupplierOffer {
	var out []SupplierOffer
	for _, s := range suppliers {
		id, ok := it.CompareOfferID[s]
		if !ok {
			continue
		}
		if o, ok := it.Offer(id); ok {
			out = append(out, SupplierOffer{Supplier: s, Offer: o})
		}
	}
	return out
}

// SupplierOffer pairs a supplier with its candidate offer for one item.
type SupplierOffer struct {
	Supplier string `json:"supplier"`
	Offer    Offer  `json:"offer"`
}

// SetSuppliers replaces the compared supplier list. Blank names are dropped
// and duplicates keep their first position.
func (p *Project) SetSuppliers(names []string) {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	p.Suppliers = out
}

// Item returns a pointer to the item with the given id so callers can mutate it in place.
func (p *Project) Item(id int64) (*Item, bool) {
	for i := range p.Items {
		if p.Items[i].ID == id {
			return &p.Items[i], true
		}
	}
	return nil, false
}
