package export

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"tenderbench/internal/cart"
)

// NewPrinter returns a display printer for a BCP 47 locale, falling back to
// Russian, the language of the tender sheets.
func NewPrinter(locale string) *message.Printer {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Russian
	}
	return message.NewPrinter(tag)
}

// FormatNumber renders v for people, with grouping and at most digits
// fraction digits. Its output is for display only and is never valid CSV input.
func FormatNumber(p *message.Printer, v *float64, digits int) string {
	if v == nil {
		return "—"
	}
	return p.Sprint(number.Decimal(*v, number.MaxFractionDigits(digits)))
}

// ClipboardText renders an order as tab separated text for pasting into
// email or a messenger.
func ClipboardText(o cart.Order, p *message.Printer) string {
	var sb strings.Builder
	sb.WriteString(o.Supplier)
	sb.WriteString("\n")
	for _, l := range o.Lines {
		name := l.Offer.Name
		if name == "" {
			name = l.Item.Name
		}
		fields := []string{
			FormatValue(l.Item.RowNo),
			name,
			strings.TrimSpace(FormatNumber(p, l.Qty, 3) + " " + l.Item.Unit),
			FormatNumber(p, l.Offer.PricePerUnit, 2),
			FormatNumber(p, l.TotalPrice, 2),
		}
		sb.WriteString(strings.Join(fields, "\t"))
		sb.WriteString("\n")
	}
	total := o.Total
	sb.WriteString(p.Sprintf("Total: %s", FormatNumber(p, &total, 2)))
	sb.WriteString("\n")
	return sb.String()
}
