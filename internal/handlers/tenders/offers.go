package tenders

import (
	"net/http"
	"strconv"

	"tenderbench/internal/models"
	"tenderbench/internal/pricing"
	"tenderbench/internal/response"
	"tenderbench/internal/validation"
	"tenderbench/internal/websocket"
)

// scoreParam reads a score in [0, 1] from the query, defaulting to def.
func scoreParam(w http.ResponseWriter, r *http.Request, key string, def float64) (float64, bool) {
	v, err := validation.FloatParam(r.URL.Query(), key, def)
	if err != nil {
		response.Err(w, err.Error(), 400)
		return 0, false
	}
	ve := &validation.ValidationErrors{}
	validation.ValidateFloatRange(ve, key, v, 0, 1)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return 0, false
	}
	return v, true
}

// SearchOffers ranks catalog matches for an item and prices each for the
// item's effective quantity.
func (h *Handler) SearchOffers(w http.ResponseWriter, r *http.Request, id string) {
	itemID, ok := parseID(w, id, "item")
	if !ok {
		return
	}
	minScore, ok := scoreParam(w, r, "min_score", h.minScore())
	if !ok {
		return
	}
	limit, err := validation.IntParam(r.URL.Query(), "limit", h.offerLimit())
	if err != nil || limit <= 0 || limit > validation.MaxOfferLimit {
		response.Err(w, "limit must be between 1 and 200", 400)
		return
	}

	it, err := h.Store.Item(r.Context(), itemID)
	if err != nil {
		storeErr(w, err)
		return
	}
	offers, err := h.Store.SearchOffers(r.Context(), itemID, limit, minScore)
	if err != nil {
		storeErr(w, err)
		return
	}
	qty := it.EffectiveQty()
	out := make([]models.PricedOffer, len(offers))
	for i, o := range offers {
		out[i] = models.PricedOffer{Offer: o, Totals: pricing.ComputeTotals(o, qty)}
	}
	response.JSONMeta(w, out, len(out), limit)
}

// SupplierMatches ranks one supplier's lines for an item, optionally
// narrowed to names containing q.
func (h *Handler) SupplierMatches(w http.ResponseWriter, r *http.Request, id string) {
	itemID, ok := parseID(w, id, "item")
	if !ok {
		return
	}
	query := r.URL.Query()
	supplierID, err := strconv.ParseInt(query.Get("supplier_id"), 10, 64)
	if err != nil || supplierID <= 0 {
		response.Err(w, "supplier_id is required", 400)
		return
	}
	minScore, ok := scoreParam(w, r, "min_score", 0)
	if !ok {
		return
	}
	limit, err := validation.IntParam(query, "limit", h.offerLimit())
	if err != nil || limit <= 0 || limit > validation.MaxOfferLimit {
		response.Err(w, "limit must be between 1 and 200", 400)
		return
	}

	it, err := h.Store.Item(r.Context(), itemID)
	if err != nil {
		storeErr(w, err)
		return
	}
	offers, err := h.Store.SupplierMatches(r.Context(), itemID, supplierID, query.Get("q"), limit, minScore)
	if err != nil {
		storeErr(w, err)
		return
	}
	qty := it.EffectiveQty()
	out := make([]models.PricedOffer, len(offers))
	for i, o := range offers {
		out[i] = models.PricedOffer{Offer: o, Totals: pricing.ComputeTotals(o, qty)}
	}
	response.JSONMeta(w, out, len(out), limit)
}

// Matrix returns the supplier comparison for a project. supplier_ids
// overrides the project's selected suppliers.
func (h *Handler) Matrix(w http.ResponseWriter, r *http.Request, id string) {
	pid, ok := parseID(w, id, "tender")
	if !ok {
		return
	}
	minScore, ok := scoreParam(w, r, "min_score", h.minScore())
	if !ok {
		return
	}
	ids, err := validation.ParseIDList(r.URL.Query().Get("supplier_ids"))
	if err != nil {
		response.Err(w, "supplier_ids: "+err.Error(), 400)
		return
	}
	m, err := h.Store.Matrix(r.Context(), pid, ids, minScore)
	if err != nil {
		storeErr(w, err)
		return
	}
	response.JSON(w, m)
}

// SelectOffer picks a catalog line for an item: {"supplier_item_id": N}.
func (h *Handler) SelectOffer(w http.ResponseWriter, r *http.Request, id string) {
	itemID, ok := parseID(w, id, "item")
	if !ok {
		return
	}
	var body struct {
		SupplierItemID int64 `json:"supplier_item_id"`
	}
	if err := response.DecodeBody(r, &body); err != nil || body.SupplierItemID <= 0 {
		response.Err(w, "supplier_item_id is required", 400)
		return
	}
	o, err := h.Store.PickOffer(r.Context(), itemID, body.SupplierItemID)
	if err != nil {
		storeErr(w, err)
		return
	}
	h.broadcastItem(r, "pick", itemID)
	response.JSON(w, o)
}

// ClearOffer removes an item's pick.
func (h *Handler) ClearOffer(w http.ResponseWriter, r *http.Request, id string) {
	itemID, ok := parseID(w, id, "item")
	if !ok {
		return
	}
	if err := h.Store.ClearPick(r.Context(), itemID); err != nil {
		storeErr(w, err)
		return
	}
	h.broadcastItem(r, "clear", itemID)
	response.JSON(w, map[string]any{"cleared": itemID})
}

// AutoPick selects the best offer for every item of a project. The
// threshold query parameter overrides the configured one.
func (h *Handler) AutoPick(w http.ResponseWriter, r *http.Request, id string) {
	pid, ok := parseID(w, id, "tender")
	if !ok {
		return
	}
	threshold, ok := scoreParam(w, r, "threshold", h.threshold())
	if !ok {
		return
	}
	res, err := h.Store.AutoPick(r.Context(), pid, threshold)
	if err != nil {
		storeErr(w, err)
		return
	}
	h.Hub.BroadcastChange(websocket.ResourceTender, "autopick", pid, pid)
	response.JSON(w, res)
}
