package offer

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestFromRecordPriority(t *testing.T) {
	rec := map[string]any{
		"supplier_item_id": 44,
		"supplier_name":    "Поставщик A",
		"vendor":           "ignored",
		"item":             "Томаты сливовидные",
		"product_name":     "ignored",
		"price":            152.99,
		"price_unit":       "152,99",
		"score":            json.Number("0.42"),
	}
	o, err := FromRecord(rec)
	if err != nil {
		t.Fatalf("FromRecord: %v", err)
	}
	if o.ID != 44 {
		t.Errorf("ID = %d, want fallback to supplier_item_id 44", o.ID)
	}
	if o.SupplierItemID != 44 {
		t.Errorf("SupplierItemID = %d", o.SupplierItemID)
	}
	if o.Supplier != "Поставщик A" {
		t.Errorf("Supplier = %q", o.Supplier)
	}
	if o.Name != "Томаты сливовидные" {
		t.Errorf("Name = %q", o.Name)
	}
	if o.PricePerUnit == nil || *o.PricePerUnit != 152.99 {
		t.Errorf("PricePerUnit = %v", o.PricePerUnit)
	}
	if o.Score == nil || *o.Score != 0.42 {
		t.Errorf("Score = %v", o.Score)
	}
	if o.BaseQty != nil {
		t.Errorf("BaseQty should be missing, got %v", *o.BaseQty)
	}
}

func TestFromRecordEmptyFallsThrough(t *testing.T) {
	o, err := FromRecord(map[string]any{
		"name":     "  ",
		"title":    "Лук репчатый",
		"price":    "",
		"supplier": nil,
		"vendor":   "B",
	})
	if err != nil {
		t.Fatalf("FromRecord: %v", err)
	}
	if o.Name != "Лук репчатый" {
		t.Errorf("Name = %q", o.Name)
	}
	if o.Supplier != "B" {
		t.Errorf("Supplier = %q", o.Supplier)
	}
	if o.Price != nil {
		t.Error("empty price should be missing")
	}
}

func TestFromRecordInvalidNumber(t *testing.T) {
	_, err := FromRecord(map[string]any{"supplier": "A", "price_per_unit": "abc"})
	var fe *FieldError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldError, got %v", err)
	}
	if fe.Key != "price_per_unit" {
		t.Errorf("Key = %q", fe.Key)
	}
}

func TestFromRecordNaNIsMissing(t *testing.T) {
	o, err := FromRecord(map[string]any{"price": "NaN", "base_qty": 2})
	if err != nil {
		t.Fatalf("FromRecord: %v", err)
	}
	if o.Price != nil {
		t.Error("NaN price should be missing")
	}
	if o.BaseQty == nil || *o.BaseQty != 2 {
		t.Errorf("BaseQty = %v", o.BaseQty)
	}
}

func TestFromRecords(t *testing.T) {
	offers, err := FromRecords([]map[string]any{
		{"id": 1, "supplier": "A", "price": 10},
		{"id": 2, "supplier": "B", "ppu": 3.5},
	})
	if err != nil {
		t.Fatalf("FromRecords: %v", err)
	}
	if len(offers) != 2 || offers[1].PricePerUnit == nil || *offers[1].PricePerUnit != 3.5 {
		t.Errorf("unexpected offers: %+v", offers)
	}

	_, err = FromRecords([]map[string]any{{"id": 1}, {"id": "x"}})
	if err == nil {
		t.Fatal("expected error for invalid id")
	}

	_, err = FromRecord(map[string]any{"id": 7.9, "supplier": "A"})
	var fe *FieldError
	if !errors.As(err, &fe) || fe.Key != "id" {
		t.Errorf("fractional id should be rejected, got %v", err)
	}
}

func TestUsable(t *testing.T) {
	o, _ := FromRecord(map[string]any{"supplier": "A"})
	if Usable(o) {
		t.Error("offer without prices should not be usable")
	}
	o, _ = FromRecord(map[string]any{"supplier": "A", "price": 1})
	if !Usable(o) {
		t.Error("offer with price should be usable")
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12.5", 12.5, true},
		{"12,5", 12.5, true},
		{"1 200,50", 1200.5, true},
		{"1\u00a0200", 1200, true},
		{"1,234.50", 1234.5, true},
		{"1.234,50", 1234.5, true},
		{"1.234.567,8", 1234567.8, true},
		{"1,2,3", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseNumber(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("ParseNumber(%q) err = %v", tt.in, err)
			continue
		}
		if tt.ok && got != tt.want {
			t.Errorf("ParseNumber(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
