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
	"tenderbench/internal/websocket"
)

// ListTenders returns project summaries.
func (h *Handler) ListTenders(w http.ResponseWriter, r *http.Request) {
	list, err := h.Store.ListProjects(r.Context())
	if err != nil {
		storeErr(w, err)
		return
	}
	response.JSONMeta(w, list, len(list), 0)
}

// CreateTender creates an empty project.
func (h *Handler) CreateTender(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if r.ContentLength != 0 {
		if err := response.DecodeBody(r, &body); err != nil {
			response.Err(w, "invalid body", 400)
			return
		}
	}
	ve := &validation.ValidationErrors{}
	validation.ValidateMaxLength(ve, "title", body.Title, validation.MaxStringLength)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}
	p, err := h.Store.CreateProject(r.Context(), body.Title)
	if err != nil {
		storeErr(w, err)
		return
	}
	h.Hub.BroadcastChange(websocket.ResourceTender, "create", p.ID, p.ID)
	response.Created(w, p)
}

// GetTender returns a project with its items and stored offers.
func (h *Handler) GetTender(w http.ResponseWriter, r *http.Request, id string) {
	pid, ok := parseID(w, id, "tender")
	if !ok {
		return
	}
	p, err := h.Store.GetProject(r.Context(), pid)
	if err != nil {
		storeErr(w, err)
		return
	}
	response.JSON(w, p)
}

// DeleteTender removes a project with its items, offers and orders.
func (h *Handler) DeleteTender(w http.ResponseWriter, r *http.Request, id string) {
	pid, ok := parseID(w, id, "tender")
	if !ok {
		return
	}
	if err := h.Store.DeleteProject(r.Context(), pid); err != nil {
		storeErr(w, err)
		return
	}
	h.Hub.BroadcastChange(websocket.ResourceTender, "delete", pid, pid)
	response.JSON(w, map[string]any{"deleted": pid})
}

// UploadTender replaces the project's items with the lines of an uploaded
// XLSX sheet (multipart field "file").
func (h *Handler) UploadTender(w http.ResponseWriter, r *http.Request, id string) {
	pid, ok := parseID(w, id, "tender")
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
	validation.ValidateSpreadsheetUpload(ve, header.Filename, header.Size)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	rows, err := importer.ParseTenderXLSX(file)
	if err != nil {
		log.Printf("import: tender %d: %v", pid, err)
		response.Err(w, fmt.Sprintf("cannot read sheet: %v", err), 400)
		return
	}
	n, err := h.Store.ReplaceItems(r.Context(), pid, rows)
	if err != nil {
		storeErr(w, err)
		return
	}
	log.Printf("import: tender %d: %d items from %s", pid, n, header.Filename)
	h.Hub.BroadcastChange(websocket.ResourceTender, "import", pid, pid)
	response.JSON(w, map[string]any{"items": n})
}

// AddItem appends a line to a project.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request, id string) {
	pid, ok := parseID(w, id, "tender")
	if !ok {
		return
	}
	var body struct {
		Name string `json:"name"`
		Qty  any    `json:"qty"`
		Unit string `json:"unit"`
	}
	if err := response.DecodeBody(r, &body); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}
	ve := &validation.ValidationErrors{}
	validation.RequireField(ve, "name", body.Name)
	validation.ValidateMaxLength(ve, "name", body.Name, validation.MaxStringLength)
	qty, err := validation.ParseOptionalFloat(body.Qty)
	if err != nil {
		ve.Add("qty", err.Error())
	}
	validation.ValidateNonNegativeFloat(ve, "qty", qty)
	validation.ValidateMaxQuantity(ve, "qty", qty)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}
	it, err := h.Store.AddItem(r.Context(), pid, body.Name, qty, body.Unit)
	if err != nil {
		storeErr(w, err)
		return
	}
	h.Hub.BroadcastChange(websocket.ResourceItem, "create", it.ID, pid)
	response.Created(w, it)
}

// UpdateItem patches name, search name, unit, qty or qty_override. Keys
// absent from the body are left alone; null clears a quantity.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request, id string) {
	itemID, ok := parseID(w, id, "item")
	if !ok {
		return
	}
	var body map[string]any
	if err := response.DecodeBody(r, &body); err != nil {
		response.Err(w, "invalid body", 400)
		return
	}

	var p models.ItemPatch
	ve := &validation.ValidationErrors{}
	text := func(key string) *string {
		v, present := body[key]
		if !present {
			return nil
		}
		s, isString := v.(string)
		if !isString && v != nil {
			ve.Add(key, "must be a string")
			return nil
		}
		validation.ValidateMaxLength(ve, key, s, validation.MaxStringLength)
		return &s
	}
	num := func(key string) (bool, *float64) {
		v, present := body[key]
		if !present {
			return false, nil
		}
		f, err := validation.ParseOptionalFloat(v)
		if err != nil {
			ve.Add(key, err.Error())
			return false, nil
		}
		validation.ValidateNonNegativeFloat(ve, key, f)
		validation.ValidateMaxQuantity(ve, key, f)
		return true, f
	}
	if p.Name = text("name"); p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		ve.Add("name", "is required")
	}
	p.SearchName = text("search_name")
	p.Unit = text("unit")
	p.SetQty, p.Qty = num("qty")
	p.SetQtyOverride, p.QtyOverride = num("qty_override")
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}

	it, err := h.Store.UpdateItem(r.Context(), itemID, p)
	if err != nil {
		storeErr(w, err)
		return
	}
	h.broadcastItem(r, "update", it.ID)
	response.JSON(w, it)
}

// broadcastItem announces an item change together with its project.
func (h *Handler) broadcastItem(r *http.Request, action string, itemID int64) {
	if h.Hub.Count() == 0 {
		return
	}
	pid, err := h.Store.ItemProject(r.Context(), itemID)
	if err != nil {
		log.Printf("ws: item %d: %v", itemID, err)
		return
	}
	h.Hub.BroadcastChange(websocket.ResourceItem, action, itemID, pid)
}
