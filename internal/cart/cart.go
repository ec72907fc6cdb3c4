// Package cart groups picked offers into a cart and per-supplier orders.
package cart

import (
	"sort"

	"tenderbench/internal/pricing"
	"tenderbench/internal/tender"
)

// UnknownTotalPolicy decides what happens to picked lines whose total
// cannot be computed.
type UnknownTotalPolicy int

const (
	// ZeroFillUnknown keeps such lines; they add 0 to every sum.
	ZeroFillUnknown UnknownTotalPolicy = iota
	// ExcludeUnknown drops such lines from the cart entirely.
	ExcludeUnknown
)

// Line is one picked item priced against its offer.
type Line struct {
	Item       tender.Item  `json:"item"`
	Offer      tender.Offer `json:"offer"`
	Qty        *float64     `json:"qty"`
	TotalPrice *float64     `json:"total_price"`
}

// SupplierTotal accumulates the lines going to one supplier.
type SupplierTotal struct {
	Count int     `json:"count"`
	Total float64 `json:"total"`
}

// SupplierSummary is a SupplierTotal with its supplier name, for ordered output.
type SupplierSummary struct {
	Supplier string `json:"supplier"`
	SupplierTotal
}

// Cart is the aggregated result.
type Cart struct {
	Lines         []Line                   `json:"lines"`
	BySupplier    map[string]SupplierTotal `json:"by_supplier"`
	GrandTotal    float64                  `json:"grand_total"`
	UnknownTotals int                      `json:"unknown_totals"`
}

// Aggregate builds the cart with ZeroFillUnknown.
func Aggregate(items []tender.Item) Cart {
	return AggregateWith(items, ZeroFillUnknown)
}

// AggregateWith builds the cart from every item whose picked offer still
// resolves. Items with no pick or a dangling one are skipped and left as is.
// Lines come out in row order.
func AggregateWith(items []tender.Item, policy UnknownTotalPolicy) Cart {
	c := Cart{BySupplier: make(map[string]SupplierTotal)}
	for i := range items {
		it := &items[i]
		o, ok := it.PickedOffer()
		if !ok {
			continue
		}
		qty := it.EffectiveQty()
		total := pricing.ComputeTotals(o, qty).TotalPrice
		if total == nil {
			if policy == ExcludeUnknown {
				continue
			}
			c.UnknownTotals++
		}
		c.Lines = append(c.Lines, Line{Item: *it, Offer: o, Qty: qty, TotalPrice: total})
	}

	sort.SliceStable(c.Lines, func(i, j int) bool {
		a, b := c.Lines[i].Item, c.Lines[j].Item
		if a.RowNo != b.RowNo {
			return a.RowNo < b.RowNo
		}
		return a.ID < b.ID
	})

	for _, l := range c.Lines {
		v := lineValue(l)
		st := c.BySupplier[l.Offer.Supplier]
		st.Count++
		st.Total += v
		c.BySupplier[l.Offer.Supplier] = st
		c.GrandTotal += v
	}
	return c
}

func lineValue(l Line) float64 {
	if l.TotalPrice == nil {
		return 0
	}
	return *l.TotalPrice
}

// Suppliers lists supplier totals for display: largest total first, then by name.
func (c Cart) Suppliers() []SupplierSummary {
	out := make([]SupplierSummary, 0, len(c.BySupplier))
	for name, st := range c.BySupplier {
		out = append(out, SupplierSummary{Supplier: name, SupplierTotal: st})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Supplier < out[j].Supplier
	})
	return out
}

// Order is the part of a cart going to one supplier.
type Order struct {
	Supplier string  `json:"supplier"`
	Lines    []Line  `json:"lines"`
	Total    float64 `json:"total"`
}

// SplitOrders cuts the cart into one order per supplier, in Suppliers order.
// Lines keep their row order inside each order.
func SplitOrders(c Cart) []Order {
	summaries := c.Suppliers()
	index := make(map[string]int, len(summaries))
	orders := make([]Order, len(summaries))
	for i, s := range summaries {
		index[s.Supplier] = i
		orders[i] = Order{Supplier: s.Supplier, Total: s.Total}
	}
	for _, l := range c.Lines {
		i := index[l.Offer.Supplier]
		orders[i].Lines = append(orders[i].Lines, l)
	}
	return orders
}
