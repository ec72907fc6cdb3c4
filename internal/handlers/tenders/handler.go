// Package tenders serves the tender comparison API.
package tenders

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"golang.org/x/text/message"

	"tenderbench/internal/cart"
	"tenderbench/internal/export"
	"tenderbench/internal/response"
	"tenderbench/internal/store"
	"tenderbench/internal/tender"
	"tenderbench/internal/websocket"
)

// Defaults used when the Handler fields are left zero.
const (
	DefaultMinScore          = 0.2
	DefaultAutopickThreshold = 0.35
	DefaultOfferLimit        = 30
)

// Handler holds dependencies for tender handlers.
type Handler struct {
	Store *store.Store
	Hub   *websocket.Hub

	MinScore          float64
	AutopickThreshold float64
	OfferLimit        int
	UnknownTotals     cart.UnknownTotalPolicy

	// Printer formats numbers in text exports.
	Printer *message.Printer
}

func (h *Handler) minScore() float64 {
	if h.MinScore > 0 {
		return h.MinScore
	}
	return DefaultMinScore
}

func (h *Handler) threshold() float64 {
	if h.AutopickThreshold > 0 {
		return h.AutopickThreshold
	}
	return DefaultAutopickThreshold
}

func (h *Handler) offerLimit() int {
	if h.OfferLimit > 0 {
		return h.OfferLimit
	}
	return DefaultOfferLimit
}

func (h *Handler) printer() *message.Printer {
	if h.Printer != nil {
		return h.Printer
	}
	return export.NewPrinter("ru")
}

// parseID reads a positive integer path id, writing a 400 when it is not one.
func parseID(w http.ResponseWriter, raw, what string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		response.Err(w, "invalid "+what+" id", 400)
		return 0, false
	}
	return id, true
}

// storeErr maps repository errors to HTTP statuses.
func storeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, tender.ErrOfferNotFound):
		response.Err(w, err.Error(), 404)
	case errors.Is(err, store.ErrDuplicate), errors.Is(err, store.ErrInUse):
		response.Err(w, err.Error(), 409)
	default:
		log.Printf("tenders: %v", err)
		response.Err(w, "internal error", 500)
	}
}
