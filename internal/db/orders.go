package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/clarencejohnson126/stripe-webook-server/internal/orders"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// InsertOrder stores an order keyed by its checkout session id. The insert
// is a single conditional write, so a concurrent duplicate delivery for the
// same session id results in exactly one row. Returns false when the row
// already existed.
func (c *Database) InsertOrder(ctx context.Context, order orders.Order) (bool, error) {
	var shippingAddress sql.NullString
	if order.Customer.Address != nil {
		encoded, err := json.Marshal(order.Customer.Address)
		if err != nil {
			return false, fmt.Errorf("encode shipping address: %w", err)
		}
		shippingAddress = sql.NullString{String: string(encoded), Valid: true}
	}

	pageCount := sql.NullInt64{}
	if order.Options.PageCount != nil {
		pageCount = sql.NullInt64{Int64: *order.Options.PageCount, Valid: true}
	}

	result, err := c.db.ExecContext(ctx, `
		INSERT INTO orders (
			session_id, email, amount_minor_units, currency, payment_status,
			binding_type, binding_name, format, paper_weight, printing_option,
			page_count, total_price, payment_method,
			customer_name, customer_phone, shipping_address, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO NOTHING`,
		order.SessionID,
		order.Email,
		order.AmountMinorUnits,
		order.Currency,
		order.PaymentStatus,
		order.Options.BindingType,
		order.Options.BindingName,
		order.Options.Format,
		order.Options.PaperWeight,
		order.Options.PrintingOption,
		pageCount,
		order.Options.TotalPrice,
		order.Options.PaymentMethod,
		order.Customer.Name,
		order.Customer.Phone,
		shippingAddress,
		order.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("insert order: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return inserted > 0, nil
}

// GetOrderBySessionID fetches a stored order.
func (c *Database) GetOrderBySessionID(ctx context.Context, sessionID string) (orders.Order, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT session_id, email, amount_minor_units, currency, payment_status,
			binding_type, binding_name, format, paper_weight, printing_option,
			page_count, total_price, payment_method,
			customer_name, customer_phone, shipping_address, created_at
		FROM orders WHERE session_id = ?`, sessionID)

	var (
		order           orders.Order
		pageCount       sql.NullInt64
		shippingAddress sql.NullString
		createdAt       string
	)
	err := row.Scan(
		&order.SessionID,
		&order.Email,
		&order.AmountMinorUnits,
		&order.Currency,
		&order.PaymentStatus,
		&order.Options.BindingType,
		&order.Options.BindingName,
		&order.Options.Format,
		&order.Options.PaperWeight,
		&order.Options.PrintingOption,
		&pageCount,
		&order.Options.TotalPrice,
		&order.Options.PaymentMethod,
		&order.Customer.Name,
		&order.Customer.Phone,
		&shippingAddress,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return orders.Order{}, ErrNotFound
	}
	if err != nil {
		return orders.Order{}, fmt.Errorf("get order: %w", err)
	}

	if pageCount.Valid {
		order.Options.PageCount = &pageCount.Int64
	}
	if shippingAddress.Valid {
		address := &orders.Address{}
		if err := json.Unmarshal([]byte(shippingAddress.String), address); err != nil {
			return orders.Order{}, fmt.Errorf("decode shipping address: %w", err)
		}
		order.Customer.Address = address
	}
	if parsed, err := time.Parse(time.RFC3339, createdAt); err == nil {
		order.CreatedAt = parsed
	}

	return order, nil
}

// CountOrders returns the number of stored orders.
func (c *Database) CountOrders(ctx context.Context) (int64, error) {
	var count int64
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return count, nil
}
