// Package importer reads tender line items and supplier price lists from
// uploaded spreadsheets.
package importer

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/xuri/excelize/v2"

	"tenderbench/internal/offer"
	"tenderbench/internal/tender"
)

// ErrNoHeader is returned when no row names both an item and a quantity column.
var ErrNoHeader = errors.New("header row with name and quantity columns not found")

var (
	nameKeywords = []string{"наимен", "товар", "номенклат", "name", "item"}
	qtyKeywords  = []string{"кол", "qty", "quantity"}
	unitKeywords = []string{"ед", "unit"}
)

// Row is one imported tender line.
type Row struct {
	RowNo int      `json:"row_no"`
	Name  string   `json:"name"`
	Qty   *float64 `json:"qty"`
	Unit  string   `json:"unit"`
}

type columns struct {
	name, qty, unit int
}

// ParseTenderXLSX reads the first sheet of a workbook. The header is the
// first row where both a name and a quantity column have been seen; rows
// below it with a blank name are skipped but still advance the row number.
func ParseTenderXLSX(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoHeader
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return parseRows(rows)
}

// ListSheets returns the sheet names of a workbook in tab order.
func ListSheets(r io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

func parseRows(rows [][]string) ([]Row, error) {
	cols := columns{name: -1, qty: -1, unit: -1}
	header := -1
	for i, row := range rows {
		for j, cell := range row {
			v := strings.ToLower(strings.TrimSpace(cell))
			if v == "" {
				continue
			}
			if cols.name < 0 && containsAny(v, nameKeywords) {
				cols.name = j
			} else if cols.qty < 0 && containsAny(v, qtyKeywords) {
				cols.qty = j
			} else if cols.unit < 0 && containsAny(v, unitKeywords) {
				cols.unit = j
			}
		}
		if cols.name >= 0 && cols.qty >= 0 {
			header = i
			break
		}
	}
	if header < 0 {
		return nil, ErrNoHeader
	}

	var out []Row
	rowNo := 0
	for _, row := range rows[header+1:] {
		rowNo++
		name := strings.TrimSpace(cell(row, cols.name))
		if name == "" {
			continue
		}
		r := Row{RowNo: rowNo, Name: name, Unit: strings.TrimSpace(cell(row, cols.unit))}
		if raw := strings.TrimSpace(cell(row, cols.qty)); raw != "" {
			// negative or non-finite quantities are treated as missing
			if q, err := offer.ParseNumber(raw); err == nil && q >= 0 && !math.IsInf(q, 0) {
				r.Qty = tender.Float(q)
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
