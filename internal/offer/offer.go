// Package offer converts loosely shaped offer records (API rows, demo data,
// imported sheets) into tender.Offer values.
package offer

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"tenderbench/internal/tender"
)

// Source keys per canonical field, in priority order. The first key that is
// present with a non-empty value wins.
var (
	IDKeys             = []string{"id", "offer_id", "supplier_item_id"}
	SupplierIDKeys     = []string{"supplier_id"}
	SupplierKeys       = []string{"supplier", "supplier_name", "vendor", "vendor_name"}
	SupplierItemIDKeys = []string{"supplier_item_id"}
	NameKeys           = []string{"name", "item", "item_name", "title", "product_name", "name_raw"}
	UnitKeys           = []string{"unit", "unit_raw"}
	BaseUnitKeys       = []string{"base_unit"}
	PriceKeys          = []string{"price", "pack_price"}
	PricePerUnitKeys   = []string{"price_per_unit", "pricePerUnit", "price_unit", "ppu"}
	BaseQtyKeys        = []string{"base_qty", "baseQty", "pack_qty"}
	ScoreKeys          = []string{"score", "similarity"}
)

// FieldError reports a value that is present but not numeric.
type FieldError struct {
	Key   string
	Value any
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s: value %v is not a number", e.Key, e.Value)
}

// FromRecord builds an Offer from rec. Missing numeric fields stay nil;
// a non-numeric value where a number is expected is an error.
func FromRecord(rec map[string]any) (tender.Offer, error) {
	var o tender.Offer
	var err error

	if o.ID, err = intField(rec, IDKeys); err != nil {
		return o, err
	}
	if o.SupplierID, err = intField(rec, SupplierIDKeys); err != nil {
		return o, err
	}
	if o.SupplierItemID, err = intField(rec, SupplierItemIDKeys); err != nil {
		return o, err
	}
	o.Supplier = stringField(rec, SupplierKeys)
	o.Name = stringField(rec, NameKeys)
	o.Unit = stringField(rec, UnitKeys)
	o.BaseUnit = stringField(rec, BaseUnitKeys)

	if o.Price, err = floatField(rec, PriceKeys); err != nil {
		return o, err
	}
	if o.PricePerUnit, err = floatField(rec, PricePerUnitKeys); err != nil {
		return o, err
	}
	if o.BaseQty, err = floatField(rec, BaseQtyKeys); err != nil {
		return o, err
	}
	if o.Score, err = floatField(rec, ScoreKeys); err != nil {
		return o, err
	}
	return o, nil
}

// FromRecords converts every record, stopping at the first invalid one.
func FromRecords(recs []map[string]any) ([]tender.Offer, error) {
	out := make([]tender.Offer, 0, len(recs))
	for i, rec := range recs {
		o, err := FromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, o)
	}
	return out, nil
}

// Usable reports whether the offer carries enough pricing to compute a total.
func Usable(o tender.Offer) bool {
	return o.Price != nil || o.PricePerUnit != nil
}

// lookup returns the first key holding a non-empty value.
func lookup(rec map[string]any, keys []string) (string, any, bool) {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return k, v, true
	}
	return "", nil, false
}

func stringField(rec map[string]any, keys []string) string {
	_, v, ok := lookup(rec, keys)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

func floatField(rec map[string]any, keys []string) (*float64, error) {
	k, v, ok := lookup(rec, keys)
	if !ok {
		return nil, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return nil, &FieldError{Key: k, Value: v}
	}
	return tender.Float(f), nil
}

func intField(rec map[string]any, keys []string) (int64, error) {
	k, v, ok := lookup(rec, keys)
	if !ok {
		return 0, nil
	}
	f, err := toFloat(v)
	// ids must be whole numbers; 7.9 is rejected rather than truncated
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, &FieldError{Key: k, Value: v}
	}
	return int64(f), nil
}

// ParseNumber parses a numeric string, accepting a comma decimal separator
// and embedded spaces used as thousands separators. When both "," and "."
// appear, the last one is the decimal separator and the other groups
// thousands ("1,234.50" and "1.234,50" are both 1234.5).
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\u00a0", "")
	s = strings.ReplaceAll(s, " ", "")
	comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	case comma >= 0 && dot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		s = strings.ReplaceAll(s, ",", ".")
	}
	return strconv.ParseFloat(s, 64)
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return ParseNumber(n)
	case *float64:
		if n == nil {
			return math.NaN(), nil
		}
		return *n, nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
