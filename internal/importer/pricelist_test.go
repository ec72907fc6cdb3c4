package importer

import (
	"errors"
	"math"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"
)

func near(got *float64, want float64) bool {
	return got != nil && math.Abs(*got-want) < 1e-9
}

func TestParsePriceListXLSX(t *testing.T) {
	buf := workbook(t, [][]any{
		{"Прайс-лист ООО Ромашка"},
		{"Код", "Наименование", "Ед. изм.", "Цена, руб."},
		{"A-1", "Сулугуни 45% палка", "кг", "500"},
		{"A-2", "Молоко 3,2% 0,9л", "шт", "81,00"},
		{"A-3", "Без цены", "шт", ""},
	})
	rows, stats, err := ParsePriceList(buf, "price.xlsx")
	if err != nil {
		t.Fatalf("ParsePriceList: %v", err)
	}
	if len(stats) != 1 || stats[0].Imported != 2 || stats[0].Skipped != 1 || stats[0].Reason != ReasonOK {
		t.Errorf("stats = %+v", stats)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0].Code != "A-1" || rows[0].Unit != "кг" || rows[0].BaseUnit != "kg" || !near(rows[0].PricePerUnit, 500) {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[1].BaseUnit != "l" || !near(rows[1].BaseQty, 0.9) || !near(rows[1].PricePerUnit, 90) {
		t.Errorf("row 1 = %+v", rows[1])
	}
}

func TestParsePriceListCSVWindows1251(t *testing.T) {
	text := "Томаты розовые;кг;200\nОгурцы гладкие;кг;150,5\nЗелень укроп;шт;35\n"
	encoded, err := charmap.Windows1251.NewEncoder().String(text)
	if err != nil {
		t.Fatal(err)
	}
	rows, stats, err := ParsePriceList(strings.NewReader(encoded), "price.csv")
	if err != nil {
		t.Fatalf("ParsePriceList: %v", err)
	}
	if len(rows) != 3 || stats[0].Reason != ReasonOK {
		t.Fatalf("rows = %+v, stats = %+v", rows, stats)
	}
	if rows[1].Name != "Огурцы гладкие" || rows[1].Price != 150.5 || rows[1].Unit != "кг" {
		t.Errorf("row 1 = %+v", rows[1])
	}
	if rows[2].BaseQty != nil || rows[2].PricePerUnit != nil {
		t.Errorf("pieces without a size in the name have no unit price: %+v", rows[2])
	}
}

func TestParsePriceListCSVHeader(t *testing.T) {
	text := "\ufeffname,price,unit\n\"Sugar, white\",60,kg\n"
	rows, _, err := ParsePriceList(strings.NewReader(text), "PRICE.CSV")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Name != "Sugar, white" || rows[0].Price != 60 || !near(rows[0].PricePerUnit, 60) {
		t.Errorf("rows = %+v", rows)
	}
}

func TestParsePriceListNoColumns(t *testing.T) {
	buf := workbook(t, [][]any{{"a"}, {"b"}})
	rows, stats, err := ParsePriceList(buf, "price.xlsx")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 || stats[0].Reason != ReasonNoColumns {
		t.Errorf("rows = %+v, stats = %+v", rows, stats)
	}
}

func TestParsePriceListUnsupported(t *testing.T) {
	if _, _, err := ParsePriceList(strings.NewReader(""), "price.pdf"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v", err)
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"450", 450, true},
		{"1 250,50 руб.", 1250.5, true},
		{"99р", 99, true},
		{"12.5", 12.5, true},
		{"", 0, false},
		{"договорная", 0, false},
		{"-120", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParsePrice(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParsePrice(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestUnitMetrics(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	tests := []struct {
		name, unit string
		price      *float64
		baseUnit   string
		baseQty    *float64
		ppu        *float64
	}{
		{"Сахар", "кг", f(60), "kg", f(1), f(60)},
		{"Сок 200мл", "шт", f(50), "l", f(0.2), f(250)},
		{"Масло 500 г", "уп.", f(300), "kg", f(0.5), f(600)},
		{"Вода", "Л", f(40), "l", f(1), f(40)},
		{"Яйцо", "шт", f(10), "", nil, nil},
		{"Сметана 1кг", "шт", nil, "kg", f(1), nil},
	}
	for _, tt := range tests {
		bu, bq, ppu := UnitMetrics(tt.name, tt.unit, tt.price)
		if bu != tt.baseUnit {
			t.Errorf("%s: base unit %q, want %q", tt.name, bu, tt.baseUnit)
		}
		if (bq == nil) != (tt.baseQty == nil) || (bq != nil && !near(bq, *tt.baseQty)) {
			t.Errorf("%s: base qty %v, want %v", tt.name, bq, tt.baseQty)
		}
		if (ppu == nil) != (tt.ppu == nil) || (ppu != nil && !near(ppu, *tt.ppu)) {
			t.Errorf("%s: ppu %v, want %v", tt.name, ppu, tt.ppu)
		}
	}
}
