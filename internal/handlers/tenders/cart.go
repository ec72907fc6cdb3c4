package tenders

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"tenderbench/internal/cart"
	"tenderbench/internal/export"
	"tenderbench/internal/models"
	"tenderbench/internal/response"
	"tenderbench/internal/validation"
	"tenderbench/internal/websocket"
)

// cartView is the cart plus per-supplier totals in display order.
type cartView struct {
	cart.Cart
	Suppliers []cart.SupplierSummary `json:"suppliers"`
}

func (h *Handler) loadCart(w http.ResponseWriter, r *http.Request, id string) (int64, string, cart.Cart, bool) {
	pid, ok := parseID(w, id, "tender")
	if !ok {
		return 0, "", cart.Cart{}, false
	}
	p, err := h.Store.GetProject(r.Context(), pid)
	if err != nil {
		storeErr(w, err)
		return 0, "", cart.Cart{}, false
	}
	return pid, p.Title, cart.AggregateWith(p.Items, h.UnknownTotals), true
}

// Cart returns picked lines grouped by supplier with a grand total.
func (h *Handler) Cart(w http.ResponseWriter, r *http.Request, id string) {
	_, _, c, ok := h.loadCart(w, r, id)
	if !ok {
		return
	}
	if c.Lines == nil {
		c.Lines = []cart.Line{}
	}
	response.JSON(w, cartView{Cart: c, Suppliers: c.Suppliers()})
}

// Export downloads the cart, or one supplier's order when supplier is
// given, as csv (default), xlsx or text.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request, id string) {
	q := r.URL.Query()
	format := strings.ToLower(strings.TrimSpace(q.Get("format")))
	if format == "" {
		format = "csv"
	}
	ve := &validation.ValidationErrors{}
	validation.ValidateEnum(ve, "format", format, validation.ValidExportFormats)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}
	_, title, c, ok := h.loadCart(w, r, id)
	if !ok {
		return
	}

	orders := cart.SplitOrders(c)
	rows := export.CartRows(c)
	name := title
	if supplier := strings.TrimSpace(q.Get("supplier")); supplier != "" {
		var found bool
		for _, o := range orders {
			if o.Supplier == supplier {
				orders = []cart.Order{o}
				rows = export.OrderRows(o)
				found = true
				break
			}
		}
		if !found {
			response.Err(w, fmt.Sprintf("supplier %q has no lines in the cart", supplier), 404)
			return
		}
		name = title + " " + supplier
	}
	name = validation.SanitizeFilename(name)

	switch format {
	case "csv":
		out, err := export.ToCSV(rows, export.CartColumns)
		if err != nil {
			storeErr(w, err)
			return
		}
		response.Attachment(w, name+".csv", "text/csv; charset=utf-8")
		w.Write([]byte(out))
	case "xlsx":
		var buf bytes.Buffer
		if err := export.WriteXLSX(&buf, "Cart", export.CartColumns, rows); err != nil {
			storeErr(w, err)
			return
		}
		response.Attachment(w, name+".xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Write(buf.Bytes())
	case "text":
		p := h.printer()
		parts := make([]string, len(orders))
		for i, o := range orders {
			parts[i] = export.ClipboardText(o, p)
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(strings.Join(parts, "\n")))
	}
}

// CreateOrders splits the cart into one stored order per supplier.
func (h *Handler) CreateOrders(w http.ResponseWriter, r *http.Request, id string) {
	pid, _, c, ok := h.loadCart(w, r, id)
	if !ok {
		return
	}
	if len(c.Lines) == 0 {
		response.Err(w, "no picked items to order", 400)
		return
	}
	orders, err := h.Store.CreateOrders(r.Context(), pid, cart.SplitOrders(c))
	if err != nil {
		storeErr(w, err)
		return
	}
	for _, o := range orders {
		h.Hub.BroadcastChange(websocket.ResourceOrder, "create", o.PublicID, pid)
	}
	response.Created(w, orders)
}

// ListOrders lists orders, optionally for one project (?project_id=).
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	var pid *int64
	if raw := strings.TrimSpace(r.URL.Query().Get("project_id")); raw != "" {
		v, ok := parseID(w, raw, "project")
		if !ok {
			return
		}
		pid = &v
	}
	list, err := h.Store.ListOrders(r.Context(), pid)
	if err != nil {
		storeErr(w, err)
		return
	}
	response.JSONMeta(w, list, len(list), 0)
}

// GetOrder returns an order with its lines, by numeric id or public uuid.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request, id string) {
	var (
		o   models.Order
		err error
	)
	if n, perr := strconv.ParseInt(id, 10, 64); perr == nil && n > 0 {
		o, err = h.Store.GetOrder(r.Context(), n)
	} else if u, perr := uuid.Parse(id); perr == nil {
		o, err = h.Store.GetOrderByPublicID(r.Context(), u)
	} else {
		response.Err(w, "invalid order id", 400)
		return
	}
	if err != nil {
		storeErr(w, err)
		return
	}
	response.JSON(w, o)
}
