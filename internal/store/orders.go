package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"tenderbench/internal/cart"
	"tenderbench/internal/models"
)

// CreateOrders persists one order per supplier split out of a cart.
func (s *Store) CreateOrders(ctx context.Context, projectID int64, orders []cart.Order) ([]models.Order, error) {
	out := []models.Order{}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := projectExists(ctx, tx, projectID); err != nil {
			return err
		}
		now := s.timestamp()
		for _, o := range orders {
			if len(o.Lines) == 0 {
				continue
			}
			rec := models.Order{
				PublicID:     uuid.NewString(),
				ProjectID:    projectID,
				SupplierID:   o.Lines[0].Offer.SupplierID,
				SupplierName: o.Supplier,
				ItemsCount:   len(o.Lines),
				TotalPrice:   o.Total,
				CreatedAt:    now,
			}
			res, err := tx.ExecContext(ctx, `INSERT INTO orders (public_id, tender_project_id, supplier_id, supplier_name, items_count, total_price, created_at)
				VALUES (?,?,?,?,?,?,?)`, rec.PublicID, rec.ProjectID, rec.SupplierID, rec.SupplierName, rec.ItemsCount, rec.TotalPrice, rec.CreatedAt)
			if err != nil {
				return fmt.Errorf("insert order for %s: %w", o.Supplier, err)
			}
			if rec.ID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("order id: %w", err)
			}
			for _, l := range o.Lines {
				item := models.OrderItem{
					OrderID:        rec.ID,
					TenderItemID:   l.Item.ID,
					SupplierItemID: l.Offer.SupplierItemID,
					Name:           l.Offer.Name,
					Unit:           l.Offer.Unit,
					Qty:            l.Qty,
					Price:          l.Offer.PricePerUnit,
					TotalPrice:     l.TotalPrice,
				}
				if item.Price == nil {
					item.Price = l.Offer.Price
				}
				res, err := tx.ExecContext(ctx, `INSERT INTO order_items (order_id, tender_item_id, supplier_item_id, name_raw, unit, qty, price, total_price)
					VALUES (?,?,?,?,?,?,?,?)`, item.OrderID, item.TenderItemID, item.SupplierItemID, item.Name, item.Unit,
					nullable(item.Qty), nullable(item.Price), nullable(item.TotalPrice))
				if err != nil {
					return fmt.Errorf("insert order item: %w", err)
				}
				if item.ID, err = res.LastInsertId(); err != nil {
					return fmt.Errorf("order item id: %w", err)
				}
				rec.Items = append(rec.Items, item)
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

const orderSelect = `SELECT id, public_id, tender_project_id, supplier_id, supplier_name, items_count, total_price, created_at FROM orders`

func scanOrder(sc interface{ Scan(...any) error }) (models.Order, error) {
	var o models.Order
	err := sc.Scan(&o.ID, &o.PublicID, &o.ProjectID, &o.SupplierID, &o.SupplierName, &o.ItemsCount, &o.TotalPrice, &o.CreatedAt)
	return o, err
}

// ListOrders returns orders newest first, for one project when projectID is set.
func (s *Store) ListOrders(ctx context.Context, projectID *int64) ([]models.Order, error) {
	query, args := orderSelect+` ORDER BY id DESC`, []any{}
	if projectID != nil {
		query, args = orderSelect+` WHERE tender_project_id=? ORDER BY id DESC`, []any{*projectID}
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	out := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// GetOrder loads an order with its lines.
func (s *Store) GetOrder(ctx context.Context, id int64) (models.Order, error) {
	return s.getOrder(ctx, `WHERE id=?`, id)
}

// GetOrderByPublicID loads an order by its public uuid.
func (s *Store) GetOrderByPublicID(ctx context.Context, pid uuid.UUID) (models.Order, error) {
	return s.getOrder(ctx, `WHERE public_id=?`, pid.String())
}

func (s *Store) getOrder(ctx context.Context, where string, arg any) (models.Order, error) {
	o, err := scanOrder(s.DB.QueryRowContext(ctx, orderSelect+` `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return o, fmt.Errorf("order %v: %w", arg, ErrNotFound)
	}
	if err != nil {
		return o, fmt.Errorf("get order: %w", err)
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT id, order_id, tender_item_id, supplier_item_id, COALESCE(name_raw,''), COALESCE(unit,''),
		qty, price, total_price FROM order_items WHERE order_id=? ORDER BY id`, o.ID)
	if err != nil {
		return o, fmt.Errorf("order items: %w", err)
	}
	defer rows.Close()
	o.Items = []models.OrderItem{}
	for rows.Next() {
		var it models.OrderItem
		var qty, price, total sql.NullFloat64
		if err := rows.Scan(&it.ID, &it.OrderID, &it.TenderItemID, &it.SupplierItemID, &it.Name, &it.Unit, &qty, &price, &total); err != nil {
			return o, err
		}
		it.Qty, it.Price, it.TotalPrice = floatPtr(qty), floatPtr(price), floatPtr(total)
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}
