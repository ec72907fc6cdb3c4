package cart

import (
	"math"
	"testing"

	"tenderbench/internal/tender"
)

var f = tender.Float

func TestAggregateScenario(t *testing.T) {
	items := []tender.Item{
		{
			ID: 1, RowNo: 1, Qty: f(3),
			Offers:        []tender.Offer{{ID: 7, Supplier: "X", PricePerUnit: f(10)}},
			PickedOfferID: tender.ID(7),
		},
		{ID: 2, RowNo: 2, Qty: f(3), Offers: []tender.Offer{{ID: 8, Supplier: "Y", PricePerUnit: f(1)}}},
	}
	c := Aggregate(items)
	if len(c.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(c.Lines))
	}
	if c.Lines[0].TotalPrice == nil || *c.Lines[0].TotalPrice != 30 {
		t.Errorf("line total = %v, want 30", c.Lines[0].TotalPrice)
	}
	if st := c.BySupplier["X"]; st.Count != 1 || st.Total != 30 {
		t.Errorf("BySupplier[X] = %+v", st)
	}
	if c.GrandTotal != 30 {
		t.Errorf("GrandTotal = %v", c.GrandTotal)
	}
}

func TestAggregateSkipsDanglingPick(t *testing.T) {
	items := []tender.Item{
		{ID: 1, Qty: f(1), Offers: []tender.Offer{{ID: 1, Supplier: "A", PricePerUnit: f(2)}}, PickedOfferID: tender.ID(99)},
	}
	c := Aggregate(items)
	if len(c.Lines) != 0 {
		t.Errorf("dangling pick should be excluded, got %d lines", len(c.Lines))
	}
	if items[0].PickedOfferID == nil || *items[0].PickedOfferID != 99 {
		t.Error("aggregator must not mutate the item")
	}
}

func TestAggregateOrderAndGrandTotal(t *testing.T) {
	items := []tender.Item{
		{ID: 30, RowNo: 3, Qty: f(2), Offers: []tender.Offer{{ID: 1, Supplier: "B", PricePerUnit: f(1.1)}}, PickedOfferID: tender.ID(1)},
		{ID: 10, RowNo: 1, Qty: f(1), Offers: []tender.Offer{{ID: 2, Supplier: "A", PricePerUnit: f(0.7)}}, PickedOfferID: tender.ID(2)},
		{ID: 20, RowNo: 2, Qty: f(4), Offers: []tender.Offer{{ID: 3, Supplier: "B", Price: f(5)}}, PickedOfferID: tender.ID(3)},
		{ID: 5, RowNo: 2, QtyOverride: f(2), Qty: f(9), Offers: []tender.Offer{{ID: 4, Supplier: "A", PricePerUnit: f(3)}}, PickedOfferID: tender.ID(4)},
	}
	c := Aggregate(items)

	wantOrder := []int64{10, 5, 20, 30}
	for i, id := range wantOrder {
		if c.Lines[i].Item.ID != id {
			t.Errorf("line %d: item %d, want %d", i, c.Lines[i].Item.ID, id)
		}
	}

	var sum float64
	for _, l := range c.Lines {
		if l.TotalPrice != nil {
			sum += *l.TotalPrice
		}
	}
	if math.Abs(c.GrandTotal-sum) > 1e-9 {
		t.Errorf("GrandTotal = %v, sum of lines = %v", c.GrandTotal, sum)
	}
	if c.UnknownTotals != 1 {
		t.Errorf("UnknownTotals = %d, want 1", c.UnknownTotals)
	}
	if st := c.BySupplier["B"]; st.Count != 2 || math.Abs(st.Total-2.2) > 1e-9 {
		t.Errorf("BySupplier[B] = %+v", st)
	}
	if qty := c.Lines[1].Qty; qty == nil || *qty != 2 {
		t.Errorf("override qty should be used, got %v", qty)
	}
}

func TestAggregateExcludeUnknown(t *testing.T) {
	items := []tender.Item{
		{ID: 1, RowNo: 1, Qty: f(1), Offers: []tender.Offer{{ID: 1, Supplier: "A", Price: f(5)}}, PickedOfferID: tender.ID(1)},
		{ID: 2, RowNo: 2, Qty: f(1), Offers: []tender.Offer{{ID: 2, Supplier: "B", PricePerUnit: f(5)}}, PickedOfferID: tender.ID(2)},
	}
	c := AggregateWith(items, ExcludeUnknown)
	if len(c.Lines) != 1 || c.Lines[0].Offer.Supplier != "B" {
		t.Fatalf("unexpected lines: %+v", c.Lines)
	}
	if _, ok := c.BySupplier["A"]; ok {
		t.Error("excluded supplier should not be totalled")
	}
	if c.UnknownTotals != 0 || c.GrandTotal != 5 {
		t.Errorf("UnknownTotals = %d, GrandTotal = %v", c.UnknownTotals, c.GrandTotal)
	}
}

func TestSuppliersOrder(t *testing.T) {
	c := Cart{BySupplier: map[string]SupplierTotal{
		"C": {Count: 1, Total: 10},
		"A": {Count: 2, Total: 50},
		"B": {Count: 1, Total: 10},
	}}
	got := c.Suppliers()
	want := []string{"A", "B", "C"}
	for i, s := range want {
		if got[i].Supplier != s {
			t.Errorf("position %d: %q, want %q", i, got[i].Supplier, s)
		}
	}
}

func TestSplitOrders(t *testing.T) {
	items := []tender.Item{
		{ID: 1, RowNo: 1, Qty: f(1), Offers: []tender.Offer{{ID: 1, Supplier: "A", PricePerUnit: f(10)}}, PickedOfferID: tender.ID(1)},
		{ID: 2, RowNo: 2, Qty: f(1), Offers: []tender.Offer{{ID: 2, Supplier: "B", PricePerUnit: f(30)}}, PickedOfferID: tender.ID(2)},
		{ID: 3, RowNo: 3, Qty: f(1), Offers: []tender.Offer{{ID: 3, Supplier: "A", PricePerUnit: f(5)}}, PickedOfferID: tender.ID(3)},
	}
	orders := SplitOrders(Aggregate(items))
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	if orders[0].Supplier != "B" || orders[0].Total != 30 {
		t.Errorf("first order = %+v", orders[0])
	}
	if orders[1].Supplier != "A" || len(orders[1].Lines) != 2 || orders[1].Total != 15 {
		t.Errorf("second order = %+v", orders[1])
	}
	if orders[1].Lines[0].Item.ID != 1 || orders[1].Lines[1].Item.ID != 3 {
		t.Error("order lines should keep row order")
	}
}

func TestAggregateEmpty(t *testing.T) {
	c := Aggregate(nil)
	if len(c.Lines) != 0 || c.GrandTotal != 0 || len(c.BySupplier) != 0 {
		t.Errorf("unexpected cart: %+v", c)
	}
	if len(SplitOrders(c)) != 0 {
		t.Error("expected no orders")
	}
}
