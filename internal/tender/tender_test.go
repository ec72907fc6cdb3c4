package tender

import (
	"errors"
	"math"
	"testing"
)

func TestFloat(t *testing.T) {
	if Float(math.NaN()) != nil {
		t.Error("NaN should map to nil")
	}
	if Float(math.Inf(1)) != nil || Float(math.Inf(-1)) != nil {
		t.Error("Inf should map to nil")
	}
	if v := Float(2.5); v == nil || *v != 2.5 {
		t.Errorf("Float(2.5) = %v", v)
	}
}

func TestEffectiveQty(t *testing.T) {
	it := Item{Qty: Float(5)}
	if q := it.EffectiveQty(); q == nil || *q != 5 {
		t.Fatalf("expected 5, got %v", q)
	}
	it.QtyOverride = Float(8)
	if q := it.EffectiveQty(); q == nil || *q != 8 {
		t.Fatalf("expected override 8, got %v", q)
	}
	empty := Item{}
	if empty.EffectiveQty() != nil {
		t.Error("expected nil qty")
	}
}

func TestPickAndClear(t *testing.T) {
	it := Item{Offers: []Offer{{ID: 1, Supplier: "A"}, {ID: 2, Supplier: "B"}}}

	if err := it.Pick(3); !errors.Is(err, ErrOfferNotFound) {
		t.Fatalf("expected ErrOfferNotFound, got %v", err)
	}
	if it.PickedOfferID != nil {
		t.Fatal("failed pick must not set reference")
	}

	if err := it.Pick(2); err != nil {
		t.Fatalf("Pick: %v", err)
	}
	o, ok := it.PickedOffer()
	if !ok || o.Supplier != "B" {
		t.Fatalf("PickedOffer = %+v, %v", o, ok)
	}

	it.ClearPick()
	if _, ok := it.PickedOffer(); ok {
		t.Error("expected no picked offer after ClearPick")
	}
}

func TestReplaceOffersDropsDanglingReferences(t *testing.T) {
	it := Item{Offers: []Offer{{ID: 1, Supplier: "A"}, {ID: 2, Supplier: "B"}}}
	if err := it.Pick(1); err != nil {
		t.Fatal(err)
	}
	if err := it.SetCompare("A", 1); err != nil {
		t.Fatal(err)
	}
	if err := it.SetCompare("B", 2); err != nil {
		t.Fatal(err)
	}

	it.ReplaceOffers([]Offer{{ID: 2, Supplier: "B"}, {ID: 9, Supplier: "C"}})

	if it.PickedOfferID != nil {
		t.Errorf("picked reference should be cleared, got %d", *it.PickedOfferID)
	}
	if _, ok := it.CompareOfferID["A"]; ok {
		t.Error("compare cell for A should be removed")
	}
	if id := it.CompareOfferID["B"]; id != 2 {
		t.Errorf("compare cell for B should survive, got %d", id)
	}
}

func TestReplaceOffersKeepsLivePick(t *testing.T) {
	it := Item{Offers: []Offer{{ID: 1}, {ID: 2}}}
	_ = it.Pick(2)
	it.ReplaceOffers([]Offer{{ID: 2}, {ID: 3}})
	if it.PickedOfferID == nil || *it.PickedOfferID != 2 {
		t.Errorf("pick on surviving offer should stay, got %v", it.PickedOfferID)
	}
}

func TestCompareOffersOrder(t *testing.T) {
	it := Item{Offers: []Offer{{ID: 1, Supplier: "A"}, {ID: 2, Supplier: "B"}}}
	_ = it.SetCompare("B", 2)
	_ = it.SetCompare("A", 1)

	got := it.CompareOffers([]string{"B", "X", "A"})
	if len(got) != 2 {
		t.Fatalf("expected 2 cells, got %d", len(got))
	}
	if got[0].Supplier != "B" || got[1].Supplier != "A" {
		t.Errorf("order not preserved: %+v", got)
	}
}

func TestSetSuppliers(t *testing.T) {
	var p Project
	p.SetSuppliers([]string{" A ", "", "B", "A", "C"})
	want := []string{"A", "B", "C"}
	if len(p.Suppliers) != len(want) {
		t.Fatalf("got %v", p.Suppliers)
	}
	for i := range want {
		if p.Suppliers[i] != want[i] {
			t.Errorf("Suppliers[%d] = %q, want %q", i, p.Suppliers[i], want[i])
		}
	}
}

func TestProjectItemMutatesInPlace(t *testing.T) {
	p := Project{Items: []Item{{ID: 10, Offers: []Offer{{ID: 1}}}}}
	it, ok := p.Item(10)
	if !ok {
		t.Fatal("item not found")
	}
	_ = it.Pick(1)
	if p.Items[0].PickedOfferID == nil {
		t.Error("pick through Item() should update the project")
	}
	if _, ok := p.Item(99); ok {
		t.Error("unexpected item 99")
	}
}
