package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"tenderbench/internal/tender"
)

// ErrUnsupportedFormat is returned for price lists that are neither CSV nor XLSX.
var ErrUnsupportedFormat = errors.New("unsupported price list format")

// Header keys, compared against headers with spaces and punctuation removed.
// Keys of three runes or fewer must prefix the header; longer keys may
// appear anywhere in it.
var (
	priceNameKeys  = []string{"наименование", "наименованиетовара", "товар", "описание", "позиция", "product", "item", "name", "название"}
	priceCodeKeys  = []string{"код", "кодтовара", "артикул", "art", "sku", "код1с", "штрихкод", "баркод"}
	priceUnitKeys  = []string{"ед", "едизм", "единицаизмерения", "единица", "unit", "едиз", "упак", "уп", "шт", "кг", "л", "литр"}
	priceValueKeys = []string{"цена", "ценабезндс", "ценасндс", "ценаруб", "стоимость", "price", "отпускнаяцена", "сумма", "руб"}

	knownUnits = map[string]bool{
		"шт": true, "штука": true, "штук": true, "кг": true, "г": true, "гр": true,
		"л": true, "литр": true, "литров": true, "уп": true, "упак": true, "кор": true, "коробка": true,
	}

	headerPunct = regexp.MustCompile(`[\s.,;:\-_/\\]+`)
	numberLike  = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	codeLike    = regexp.MustCompile(`^[0-9A-Za-zА-Яа-яЁё\-_/.]+$`)
	priceJunk   = regexp.MustCompile(`[^0-9.]`)
)

const (
	headerScanLimit = 80
	sampleRows      = 50
)

// PriceRow is one supplier catalog line read from a price list.
type PriceRow struct {
	Code         string   `json:"code,omitempty"`
	Name         string   `json:"name"`
	Unit         string   `json:"unit"`
	Price        float64  `json:"price"`
	BaseUnit     string   `json:"base_unit,omitempty"`
	BaseQty      *float64 `json:"base_qty"`
	PricePerUnit *float64 `json:"price_per_unit"`
}

// SheetStats reports what happened to one sheet of a price list.
type SheetStats struct {
	Sheet    string `json:"sheet"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
	Reason   string `json:"reason"`
}

// Sheet outcome reasons.
const (
	ReasonOK        = "ok"
	ReasonEmpty     = "empty"
	ReasonNoColumns = "columns_not_detected"
)

type priceColumns struct {
	name, code, unit, price int
}

// ParsePriceList reads every sheet of an XLSX price list, or a CSV one, by
// file extension. Rows without a name or a parsable price are skipped.
func ParsePriceList(r io.Reader, filename string) ([]PriceRow, []SheetStats, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return parsePriceXLSX(r)
	case ".csv", ".txt":
		rows, err := readCSV(r)
		if err != nil {
			return nil, nil, err
		}
		out, st := parsePriceSheet("CSV", rows)
		return out, []SheetStats{st}, nil
	}
	return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
}

func parsePriceXLSX(r io.Reader) ([]PriceRow, []SheetStats, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var out []PriceRow
	var stats []SheetStats
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		lines, st := parsePriceSheet(sheet, rows)
		out = append(out, lines...)
		stats = append(stats, st)
	}
	return out, stats, nil
}

// readCSV decodes UTF-8 (with or without BOM) or Windows-1251 text and
// splits it on the most frequent of ; , tab and | in the first line.
func readCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		decoded, _, err := transform.Bytes(charmap.Windows1251.NewDecoder(), data)
		if err != nil {
			return nil, fmt.Errorf("decode csv: %w", err)
		}
		data = decoded
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = sniffDelimiter(data)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return rows, nil
}

func sniffDelimiter(data []byte) rune {
	first, _ := bufio.NewReader(bytes.NewReader(data)).ReadString('\n')
	best, bestCount := ';', 0
	for _, d := range []rune{';', ',', '\t', '|'} {
		if n := strings.Count(first, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// parsePriceSheet finds the header within the first rows, fills missing
// columns from a sample of the data, then converts every data row.
func parsePriceSheet(sheet string, raw [][]string) ([]PriceRow, SheetStats) {
	st := SheetStats{Sheet: sheet}
	rows := cleanRows(raw)
	if len(rows) == 0 {
		st.Reason = ReasonEmpty
		return nil, st
	}

	cols := priceColumns{name: -1, code: -1, unit: -1, price: -1}
	data := rows
	if h := findPriceHeader(rows); h >= 0 {
		cols = columnsFromHeader(rows[h])
		data = rows[h+1:]
	}
	sample := data
	if len(sample) > sampleRows {
		sample = sample[:sampleRows]
	}
	cols = columnsFromSample(sample, cols)
	if cols.name < 0 || cols.price < 0 {
		st.Reason = ReasonNoColumns
		return nil, st
	}

	var out []PriceRow
	for _, row := range data {
		name := strings.TrimSpace(cell(row, cols.name))
		price, ok := ParsePrice(cell(row, cols.price))
		if name == "" || !ok {
			st.Skipped++
			continue
		}
		pr := PriceRow{
			Code:  strings.TrimSpace(cell(row, cols.code)),
			Name:  name,
			Unit:  strings.TrimSpace(cell(row, cols.unit)),
			Price: price,
		}
		pr.BaseUnit, pr.BaseQty, pr.PricePerUnit = UnitMetrics(pr.Name, pr.Unit, &price)
		out = append(out, pr)
		st.Imported++
	}
	st.Reason = ReasonOK
	return out, st
}

// cleanRows drops trailing empty cells and rows with no content.
func cleanRows(raw [][]string) [][]string {
	var out [][]string
	for _, row := range raw {
		end := len(row)
		for end > 0 && strings.TrimSpace(row[end-1]) == "" {
			end--
		}
		if end > 0 {
			out = append(out, row[:end])
		}
	}
	return out
}

func normalizeHeader(s string) string {
	return headerPunct.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "")
}

func findPriceHeader(rows [][]string) int {
	for i, row := range rows {
		if i >= headerScanLimit {
			break
		}
		var hasName, hasPrice bool
		for _, c := range row {
			h := normalizeHeader(c)
			if h == "" {
				continue
			}
			hasName = hasName || containsAny(h, priceNameKeys)
			hasPrice = hasPrice || containsAny(h, priceValueKeys)
		}
		if hasName && hasPrice {
			return i
		}
	}
	return -1
}

func matchHeader(keys []string, taken map[int]bool, headers []string) int {
	for i, h := range headers {
		if taken[i] || h == "" {
			continue
		}
		for _, k := range keys {
			if utf8.RuneCountInString(k) <= 3 {
				if strings.HasPrefix(h, k) {
					return i
				}
			} else if strings.Contains(h, k) {
				return i
			}
		}
	}
	return -1
}

// columnsFromHeader claims columns in the order name, price, code, unit so
// that e.g. "Цена за кг" is taken as the price before unit keys see it.
func columnsFromHeader(header []string) priceColumns {
	norm := make([]string, len(header))
	for i, h := range header {
		norm[i] = normalizeHeader(h)
	}
	taken := map[int]bool{}
	claim := func(keys []string) int {
		idx := matchHeader(keys, taken, norm)
		if idx >= 0 {
			taken[idx] = true
		}
		return idx
	}
	var c priceColumns
	c.name = claim(priceNameKeys)
	c.price = claim(priceValueKeys)
	c.code = claim(priceCodeKeys)
	c.unit = claim(priceUnitKeys)
	return c
}

func isNumberLike(s string) bool {
	s = strings.ReplaceAll(strings.ReplaceAll(strings.TrimSpace(s), " ", ""), ",", ".")
	return numberLike.MatchString(s)
}

func isUnitLike(s string) bool {
	s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), ".", "")
	if s == "" {
		return false
	}
	if knownUnits[s] {
		return true
	}
	n := utf8.RuneCountInString(s)
	return n >= 1 && n <= 5
}

// columnsFromSample guesses columns the header did not name: the name is
// the column with the longest average text, the price the most numeric
// column (larger values win ties), the unit the column with most unit-like
// cells and the code the column with most short code-like cells.
func columnsFromSample(rows [][]string, c priceColumns) priceColumns {
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	if width == 0 {
		return c
	}

	if c.name < 0 {
		bestIdx, bestAvg := -1, 0.0
		for i := 0; i < width; i++ {
			var total, n int
			for _, r := range rows {
				if v := strings.TrimSpace(cell(r, i)); v != "" {
					total += utf8.RuneCountInString(v)
					n++
				}
			}
			if n == 0 {
				continue
			}
			if avg := float64(total) / float64(n); avg > bestAvg {
				bestIdx, bestAvg = i, avg
			}
		}
		if bestAvg > 3 {
			c.name = bestIdx
		}
	}

	if c.price < 0 {
		bestIdx, bestRatio, bestAvg := -1, 0.0, 0.0
		for i := 0; i < width; i++ {
			if i == c.name {
				continue
			}
			var nums []float64
			for _, r := range rows {
				if v := cell(r, i); isNumberLike(v) {
					f, _ := strconv.ParseFloat(strings.ReplaceAll(strings.ReplaceAll(strings.TrimSpace(v), " ", ""), ",", "."), 64)
					nums = append(nums, f)
				}
			}
			ratio := float64(len(nums)) / float64(len(rows))
			if ratio < 0.5 {
				continue
			}
			var sum float64
			for _, f := range nums {
				sum += f
			}
			avg := sum / float64(len(nums))
			if ratio > bestRatio || (ratio == bestRatio && avg > bestAvg) {
				bestIdx, bestRatio, bestAvg = i, ratio, avg
			}
		}
		c.price = bestIdx
	}

	if c.unit < 0 {
		bestIdx, bestScore := -1, 0
		for i := 0; i < width; i++ {
			if i == c.name || i == c.price {
				continue
			}
			score := 0
			for _, r := range rows {
				if isUnitLike(cell(r, i)) {
					score++
				}
			}
			if score > bestScore {
				bestIdx, bestScore = i, score
			}
		}
		c.unit = bestIdx
	}

	if c.code < 0 {
		bestIdx, bestScore := -1, 0
		for i := 0; i < width; i++ {
			if i == c.name || i == c.price || i == c.unit {
				continue
			}
			score := 0
			for _, r := range rows {
				v := strings.TrimSpace(cell(r, i))
				if n := utf8.RuneCountInString(v); n >= 2 && n <= 24 && codeLike.MatchString(v) {
					score++
				}
			}
			if score > bestScore {
				bestIdx, bestScore = i, score
			}
		}
		c.code = bestIdx
	}
	return c
}

// ParsePrice reads a price cell such as "1 250,50 руб.". Currency marks and
// spaces are dropped and a comma is a decimal separator.
func ParsePrice(s string) (float64, bool) {
	v := strings.TrimSpace(s)
	if v == "" {
		return 0, false
	}
	if strings.HasPrefix(v, "-") {
		return 0, false
	}
	v = strings.ReplaceAll(v, " ", "")
	v = strings.ReplaceAll(v, "\u00a0", "")
	for _, cur := range []string{"руб", "р.", "р"} {
		v = strings.ReplaceAll(v, cur, "")
	}
	v = strings.ReplaceAll(v, ",", ".")
	v = strings.Trim(priceJunk.ReplaceAllString(v, ""), ".")
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var packPatterns = []struct {
	re   *regexp.Regexp
	unit string
	mult float64
}{
	{regexp.MustCompile(`(\d+[.,]?\d*)\s*кг`), "kg", 1},
	{regexp.MustCompile(`(\d+[.,]?\d*)\s*(?:грам|гр|г)`), "kg", 0.001},
	{regexp.MustCompile(`(\d+[.,]?\d*)\s*(?:литров|литр|л)`), "l", 1},
	{regexp.MustCompile(`(\d+[.,]?\d*)\s*(?:ml|мл)`), "l", 0.001},
}

// UnitMetrics derives the base unit, the pack size in that unit and the
// price per base unit. Weight and volume units are their own base; pieces
// and packs take the size from the name ("Молоко 3,2% 0,9л" is 0.9 l).
func UnitMetrics(name, unit string, price *float64) (string, *float64, *float64) {
	u := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(unit)), ".", "")
	var baseUnit string
	var baseQty *float64
	switch u {
	case "кг", "kg":
		baseUnit, baseQty = "kg", tender.Float(1)
	case "л", "литр", "литров", "l":
		baseUnit, baseQty = "l", tender.Float(1)
	case "мл", "ml":
		baseUnit, baseQty = "l", tender.Float(0.001)
	case "шт", "штука", "штук", "уп", "упак", "кор", "коробка":
		lower := strings.ToLower(name)
		for _, p := range packPatterns {
			m := p.re.FindStringSubmatch(lower)
			if m == nil {
				continue
			}
			v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
			if err != nil {
				continue
			}
			baseUnit = p.unit
			baseQty = tender.Float(math.Round(v*p.mult*1e6) / 1e6)
			break
		}
	}

	var ppu *float64
	if baseQty != nil && *baseQty > 0 && price != nil {
		ppu = tender.Float(math.Round(*price / *baseQty * 1e4) / 1e4)
	}
	return baseUnit, baseQty, ppu
}
