package tenders

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"tenderbench/internal/importer"
	"tenderbench/internal/models"
	"tenderbench/internal/response"
	"tenderbench/internal/validation"
)

// ListSuppliers returns all suppliers with their catalog sizes.
func (h *Handler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListSuppliers(r.Context())
	if err != nil {
		storeErr(w, err)
		return
	}
	response.JSONMeta(w, list, len(list), 0)
}

// CreateSupplier adds a supplier; names are unique.
func (h *Handler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := response.DecodeBody(r, &body); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}
	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "name", body.Name)
	validation.ValidateMaxLength(ve, "name", body.Name, validation.MaxStringLength)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}
	sp, err := h.Store.CreateSupplier(r.Context(), body.Name)
	if err != nil {
		storeErr(w, err)
		return
	}
	response.Created(w, sp)
}

// DeleteSupplier removes a supplier and its catalog. Suppliers with
// ordered items answer 409.
func (h *Handler) DeleteSupplier(w http.ResponseWriter, r *http.Request, id string) {
	sid, ok := parseID(w, id, "supplier")
	if !ok {
		return
	}
	if err := h.Store.DeleteSupplier(r.Context(), sid); err != nil {
		storeErr(w, err)
		return
	}
	log.Printf("suppliers: deleted %d", sid)
	response.JSON(w, map[string]any{"deleted": sid})
}

// ListSupplierItems returns a supplier's catalog.
func (h *Handler) ListSupplierItems(w http.ResponseWriter, r *http.Request, id string) {
	sid, ok := parseID(w, id, "supplier")
	if !ok {
		return
	}
	items, err := h.Store.SupplierItems(r.Context(), sid)
	if err != nil {
		storeErr(w, err)
		return
	}
	response.JSONMeta(w, items, len(items), 0)
}

// AddSupplierItem adds a catalog line. Numeric fields accept numbers,
// numeric strings or null.
func (h *Handler) AddSupplierItem(w http.ResponseWriter, r *http.Request, id string) {
	sid, ok := parseID(w, id, "supplier")
	if !ok {
		return
	}
	var body struct {
		Name         string `json:"name"`
		Unit         string `json:"unit"`
		BaseUnit     string `json:"base_unit"`
		Price        any    `json:"price"`
		BaseQty      any    `json:"base_qty"`
		PricePerUnit any    `json:"price_per_unit"`
	}
	if err := response.DecodeBody(r, &body); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}

	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "name", body.Name)
	validation.ValidateMaxLength(ve, "name", body.Name, validation.MaxStringLength)
	parse := func(field string, v any) *float64 {
		f, err := validation.ParseOptionalFloat(v)
		if err != nil {
			ve.Add(field, err.Error())
			return nil
		}
		validation.ValidateNonNegativeFloat(ve, field, f)
		validation.ValidateMaxPrice(ve, field, f)
		return f
	}
	it := models.SupplierItem{
		SupplierID:   sid,
		Name:         body.Name,
		Unit:         strings.TrimSpace(body.Unit),
		BaseUnit:     strings.TrimSpace(body.BaseUnit),
		Price:        parse("price", body.Price),
		BaseQty:      parse("base_qty", body.BaseQty),
		PricePerUnit: parse("price_per_unit", body.PricePerUnit),
	}
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	it, err := h.Store.AddSupplierItem(r.Context(), it)
	if err != nil {
		storeErr(w, err)
		return
	}
	response.Created(w, it)
}

// GetTenderSuppliers returns the suppliers selected for comparison.
func (h *Handler) GetTenderSuppliers(w http.ResponseWriter, r *http.Request, id string) {
	pid, ok := parseID(w, id, "tender")
	if !ok {
		return
	}
	list, err := h.Store.ProjectSuppliers(r.Context(), pid)
	if err != nil {
		storeErr(w, err)
		return
	}
	response.JSON(w, list)
}

// SetTenderSuppliers replaces the compared suppliers with {"supplier_ids": [...]}.
func (h *Handler) SetTenderSuppliers(w http.ResponseWriter, r *http.Request, id string) {
	pid, ok := parseID(w, id, "tender")
	if !ok {
		return
	}
	var body struct {
		SupplierIDs []int64 `json:"supplier_ids"`
	}
	if err := response.DecodeBody(r, &body); err != nil {
		response.Err(w, "supplier_ids must be a list of ids", 400)
		return
	}
	list, err := h.Store.SetProjectSuppliers(r.Context(), pid, body.SupplierIDs)
	if err != nil {
		storeErr(w, err)
		return
	}
	response.JSON(w, list)
}

// UploadPriceList replaces a supplier's catalog with a spreadsheet or CSV
// price list. A file with no usable rows leaves the catalog untouched.
func (h *Handler) UploadPriceList(w http.ResponseWriter, r *http.Request, id string) {
	sid, ok := parseID(w, id, "supplier")
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, validation.MaxUploadSize+1024*1024)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		response.Err(w, "invalid multipart form", 400)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		response.Err(w, "file is required", 400)
		return
	}
	defer file.Close()

	ve := &validation.ValidationErrors{}
	validation.ValidatePriceListUpload(ve, header.Filename, header.Size)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	rows, stats, err := importer.ParsePriceList(file, header.Filename)
	if err != nil {
		log.Printf("import: supplier %d: %v", sid, err)
		response.Err(w, fmt.Sprintf("cannot read price list: %v", err), 400)
		return
	}
	if len(rows) == 0 {
		response.Err(w, "no price rows found", 400)
		return
	}
	items := make([]models.SupplierItem, len(rows))
	for i, row := range rows {
		price := row.Price
		items[i] = models.SupplierItem{
			Code:         row.Code,
			Name:         row.Name,
			Unit:         row.Unit,
			Price:        &price,
			BaseUnit:     row.BaseUnit,
			BaseQty:      row.BaseQty,
			PricePerUnit: row.PricePerUnit,
		}
	}
	n, err := h.Store.ReplaceSupplierItems(r.Context(), sid, items)
	if err != nil {
		storeErr(w, err)
		return
	}
	log.Printf("import: supplier %d: %d items from %s", sid, n, header.Filename)
	response.JSON(w, map[string]any{"imported": n, "sheets": stats})
}
