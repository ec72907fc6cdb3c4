// Package export renders carts and orders as CSV, XLSX and plain text.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"tenderbench/internal/cart"
)

// Column keys shared by the cart and per-supplier order exports.
const (
	ColRowNo            = "row_no"
	ColItemName         = "item_name"
	ColQty              = "qty"
	ColUnit             = "unit"
	ColSupplier         = "supplier"
	ColSupplierItemName = "supplier_item_name"
	ColPricePerUnit     = "price_per_unit"
	ColScore            = "score"
	ColTotal            = "total"
)

// CartColumns is the fixed column order of a cart export.
var CartColumns = []string{
	ColRowNo, ColItemName, ColQty, ColUnit, ColSupplier,
	ColSupplierItemName, ColPricePerUnit, ColScore, ColTotal,
}

// OrderColumns is the fixed column order of a per-supplier order export.
var OrderColumns = CartColumns

// ColumnLabels are human readable headers for spreadsheet exports.
var ColumnLabels = map[string]string{
	ColRowNo:            "No.",
	ColItemName:         "Item",
	ColQty:              "Qty",
	ColUnit:             "Unit",
	ColSupplier:         "Supplier",
	ColSupplierItemName: "Supplier item",
	ColPricePerUnit:     "Price/unit",
	ColScore:            "Score",
	ColTotal:            "Total",
}

// ToCSV writes rows as RFC 4180 CSV with a header of column keys. Numbers
// are written in their raw form; missing values become empty fields.
func ToCSV(rows []map[string]any, columns []string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(columns); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(columns))
	for i, row := range rows {
		for j, col := range columns {
			record[j] = FormatValue(row[col])
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return buf.String(), nil
}

// FormatValue renders one cell for machine-readable output. Line breaks in
// strings are written as "\n" since CSV readers turn a quoted "\r\n" into
// "\n" anyway.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.ReplaceAll(x, "\r\n", "\n")
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case *float64:
		if x == nil {
			return ""
		}
		return strconv.FormatFloat(*x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case *int64:
		if x == nil {
			return ""
		}
		return strconv.FormatInt(*x, 10)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}

// LineRow maps a cart line onto the export columns.
func LineRow(l cart.Line) map[string]any {
	return map[string]any{
		ColRowNo:            l.Item.RowNo,
		ColItemName:         l.Item.Name,
		ColQty:              l.Qty,
		ColUnit:             l.Item.Unit,
		ColSupplier:         l.Offer.Supplier,
		ColSupplierItemName: l.Offer.Name,
		ColPricePerUnit:     l.Offer.PricePerUnit,
		ColScore:            l.Offer.Score,
		ColTotal:            l.TotalPrice,
	}
}

// CartRows converts every cart line to an export row.
func CartRows(c cart.Cart) []map[string]any {
	return linesRows(c.Lines)
}

// OrderRows converts the lines of one supplier order to export rows.
func OrderRows(o cart.Order) []map[string]any {
	return linesRows(o.Lines)
}

func linesRows(lines []cart.Line) []map[string]any {
	rows := make([]map[string]any, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, LineRow(l))
	}
	return rows
}
