package tenders

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"tenderbench/internal/importer"
	"tenderbench/internal/response"
	"tenderbench/internal/store"
	"tenderbench/internal/validation"
)

// SearchCatalog looks up supplier lines by name across the catalog.
// Query: q, supplier_id, sort (rank, price_asc, price_desc, ppu_asc), limit.
func (h *Handler) SearchCatalog(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	cq := store.CatalogQuery{
		Q:    strings.TrimSpace(query.Get("q")),
		Sort: query.Get("sort"),
	}
	if cq.Sort == "" {
		cq.Sort = store.SortRank
	}
	ve := &validation.ValidationErrors{}
	validation.ValidateEnum(ve, "sort", cq.Sort, store.CatalogSorts)
	validation.ValidateMaxLength(ve, "q", cq.Q, validation.MaxStringLength)
	if ve.HasErrors() {
		response.Err(w, ve.Error(), 400)
		return
	}
	if raw := query.Get("supplier_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			response.Err(w, "invalid supplier id", 400)
			return
		}
		cq.SupplierID = id
	}
	limit, err := validation.IntParam(query, "limit", 60)
	if err != nil || limit <= 0 || limit > 300 {
		response.Err(w, "limit must be between 1 and 300", 400)
		return
	}
	cq.Limit = limit
	minScore, ok := scoreParam(w, r, "min_score", h.minScore())
	if !ok {
		return
	}
	cq.MinScore = minScore

	hits, err := h.Store.SearchCatalog(r.Context(), cq)
	if err != nil {
		storeErr(w, err)
		return
	}
	response.JSONMeta(w, hits, len(hits), limit)
}

// ListSheets returns the sheet names of an uploaded workbook (multipart
// field "file") so a client can choose what to import.
func (h *Handler) ListSheets(w http.ResponseWriter, r *http.Request) {
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
	sheets, err := importer.ListSheets(file)
	if err != nil {
		response.Err(w, fmt.Sprintf("cannot read workbook: %v", err), 400)
		return
	}
	response.JSON(w, map[string]any{"sheets": sheets})
}
