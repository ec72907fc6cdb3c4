package models

import (
	"tenderbench/internal/pricing"
	"tenderbench/internal/tender"
)

// APIResponse is the standard JSON envelope for all API responses.
type APIResponse struct {
	Data interface{} `json:"data"`
	Meta *Meta       `json:"meta,omitempty"`
}

// Meta contains pagination metadata.
type Meta struct {
	Total int `json:"total,omitempty"`
	Page  int `json:"page,omitempty"`
	Limit int `json:"limit,omitempty"`
}

type ProjectSummary struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	CreatedAt  string `json:"created_at"`
	ItemsCount int    `json:"items_count"`
}

type Supplier struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	ItemsCount int    `json:"items_count"`
	CreatedAt  string `json:"created_at"`
}

type SupplierItem struct {
	ID             int64    `json:"id"`
	SupplierID     int64    `json:"supplier_id"`
	Code           string   `json:"code"`
	Name           string   `json:"name"`
	NameNormalized string   `json:"name_normalized"`
	Unit           string   `json:"unit"`
	Price          *float64 `json:"price"`
	BaseUnit       string   `json:"base_unit"`
	BaseQty        *float64 `json:"base_qty"`
	PricePerUnit   *float64 `json:"price_per_unit"`
	Active         bool     `json:"active"`
}

// ItemPatch carries a partial tender item update. Set* flags distinguish
// "clear the value" from "leave it alone".
type ItemPatch struct {
	Name           *string
	SearchName     *string
	Unit           *string
	SetQty         bool
	Qty            *float64
	SetQtyOverride bool
	QtyOverride    *float64
}

// PricedOffer is an offer together with its totals for the item quantity.
type PricedOffer struct {
	tender.Offer
	pricing.Totals
}

type MatrixCell struct {
	SupplierID int64        `json:"supplier_id"`
	Supplier   string       `json:"supplier"`
	Offer      tender.Offer `json:"offer"`
	pricing.Totals
}

type MatrixRow struct {
	ItemID       int64        `json:"item_id"`
	RowNo        int          `json:"row_no"`
	Name         string       `json:"name"`
	Qty          *float64     `json:"qty"`
	Unit         string       `json:"unit"`
	Cells        []MatrixCell `json:"cells"`
	BestSupplier string       `json:"best_supplier,omitempty"`
}

type Matrix struct {
	Suppliers []Supplier  `json:"suppliers"`
	MinScore  float64     `json:"min_score"`
	Rows      []MatrixRow `json:"rows"`
}

type AutoPickResult struct {
	Selected int `json:"selected"`
	Items    int `json:"items"`
}

type Order struct {
	ID           int64       `json:"id"`
	PublicID     string      `json:"public_id"`
	ProjectID    int64       `json:"project_id"`
	SupplierID   int64       `json:"supplier_id"`
	SupplierName string      `json:"supplier_name"`
	ItemsCount   int         `json:"items_count"`
	TotalPrice   float64     `json:"total_price"`
	CreatedAt    string      `json:"created_at"`
	Items        []OrderItem `json:"items,omitempty"`
}

type OrderItem struct {
	ID             int64    `json:"id"`
	OrderID        int64    `json:"order_id"`
	TenderItemID   int64    `json:"tender_item_id"`
	SupplierItemID int64    `json:"supplier_item_id"`
	Name           string   `json:"name"`
	Unit           string   `json:"unit"`
	Qty            *float64 `json:"qty"`
	Price          *float64 `json:"price"`
	TotalPrice     *float64 `json:"total_price"`
}
