package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/xenking/storefront/internal/domain/order"
)

const orderColumns = `id, order_no, email, country, region, address1, address2, postal_code, phone,
	currency, total_amount, status, external_ref, capture_ref, capture_status, created_at, updated_at`

const (
	createOrderSQL = `INSERT INTO orders
		(order_no, email, country, region, address1, address2, postal_code, phone, currency, total_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + orderColumns

	insertLineSQL = `INSERT INTO order_items (order_id, commodity_id, title_snapshot, unit_price, quantity, line_total)
		VALUES ($1, $2, $3, $4, $5, $6)`

	setExternalRefSQL = `UPDATE orders SET external_ref = $2, updated_at = now() WHERE id = $1`

	recordCaptureSQL = `UPDATE orders
		SET capture_ref = $2, capture_status = $3, status = 'PAID', updated_at = now()
		WHERE id = $1 AND capture_ref IS NULL AND status IN ('PENDING', 'PAID')`

	setStatusSQL = `UPDATE orders SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`

	findByNumberAndEmailSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE order_no = $1 AND lower(email) = lower($2)`

	findByExternalRefSQL = `SELECT ` + orderColumns + ` FROM orders WHERE external_ref = $1 FOR UPDATE`

	findByNumberSQL = `SELECT ` + orderColumns + ` FROM orders WHERE order_no = $1 FOR UPDATE`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC, id DESC`

	linesByOrderIDsSQL = `SELECT order_id, commodity_id, title_snapshot, unit_price, quantity, line_total
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`

	countByStatusSQL = `SELECT status, count(*) FROM orders GROUP BY status`

	reserveStockSQL = `UPDATE commodities SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`

	releaseStockSQL = `UPDATE commodities c SET stock = c.stock + i.qty, updated_at = now()
		FROM (SELECT commodity_id, SUM(quantity) AS qty FROM order_items WHERE order_id = $1 GROUP BY commodity_id) i
		WHERE c.id = i.commodity_id`

	orderNumberConstraint = "orders_order_no_key"
)

const defaultNumberAttempts = 5

var _ order.Ledger = (*OrderRepository)(nil)

// OrderOption configures an OrderRepository.
type OrderOption func(*OrderRepository)

// WithNumberGenerator replaces the order number generator.
func WithNumberGenerator(g order.NumberGenerator) OrderOption {
	return func(r *OrderRepository) { r.numbers = g }
}

// WithNumberAttempts bounds how many order numbers CreatePending tries.
func WithNumberAttempts(n int) OrderOption {
	return func(r *OrderRepository) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// OrderRepository implements order.Ledger backed by PostgreSQL.
type OrderRepository struct {
	db       dbtx
	numbers  order.NumberGenerator
	attempts int
	now      func() time.Time
}

// NewOrderRepository returns an OrderRepository that uses db.
func NewOrderRepository(db dbtx, opts ...OrderOption) *OrderRepository {
	r := &OrderRepository{
		db:       db,
		numbers:  order.GenerateNumber,
		attempts: defaultNumberAttempts,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreatePending inserts a PENDING order under a freshly generated number.
// Each attempt runs in a savepoint so that a number collision does not abort
// the enclosing transaction.
func (r *OrderRepository) CreatePending(ctx context.Context, no order.NewOrder) (*order.Order, error) {
	c := no.Contact
	for attempt := 1; attempt <= r.attempts; attempt++ {
		number := r.numbers(r.now())

		var created order.Order
		err := pgx.BeginFunc(ctx, r.db, func(sp pgx.Tx) error {
			rows, err := sp.Query(ctx, createOrderSQL,
				number, c.Email, c.Country, c.Region, c.Address1, nullString(c.Address2), c.PostalCode, c.Phone,
				no.Currency, no.Total, order.StatusPending,
			)
			if err != nil {
				return err
			}
			created, err = pgx.CollectExactlyOneRow(rows, scanOrder)
			return err
		})
		if isUniqueViolation(err, orderNumberConstraint) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("creating order: %w", err)
		}
		return &created, nil
	}
	return nil, order.ErrOrderNumberExhausted
}

// AttachLines inserts the order's line snapshots.
func (r *OrderRepository) AttachLines(ctx context.Context, orderID int64, lines []order.Line) error {
	b := &pgx.Batch{}
	for _, l := range lines {
		b.Queue(insertLineSQL, orderID, l.CommodityID, l.Title, l.UnitPrice, l.Quantity, l.LineTotal)
	}
	if err := r.db.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("inserting lines for order %d: %w", orderID, err)
	}
	return nil
}

// SetExternalRef records the payment processor's order id.
func (r *OrderRepository) SetExternalRef(ctx context.Context, orderID int64, ref string) error {
	tag, err := r.db.Exec(ctx, setExternalRefSQL, orderID, ref)
	if err != nil {
		return fmt.Errorf("setting external ref for order %d: %w", orderID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// RecordCapture stores the capture and marks the order PAID unless a
// capture is already recorded.
func (r *OrderRepository) RecordCapture(ctx context.Context, orderID int64, captureRef, rawStatus string) (bool, error) {
	tag, err := r.db.Exec(ctx, recordCaptureSQL, orderID, captureRef, rawStatus)
	if err != nil {
		return false, fmt.Errorf("recording capture for order %d: %w", orderID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetStatus moves the order from one status to another.
func (r *OrderRepository) SetStatus(ctx context.Context, orderID int64, from, to order.Status) (bool, error) {
	tag, err := r.db.Exec(ctx, setStatusSQL, orderID, from, to)
	if err != nil {
		return false, fmt.Errorf("setting status for order %d: %w", orderID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// FindByNumberAndEmail returns the order with its lines. The email match is
// case-insensitive.
func (r *OrderRepository) FindByNumberAndEmail(ctx context.Context, number, email string) (*order.Order, error) {
	return r.findOne(ctx, findByNumberAndEmailSQL, number, email)
}

// FindByExternalRef returns the order created for a payment processor id.
func (r *OrderRepository) FindByExternalRef(ctx context.Context, ref string) (*order.Order, error) {
	return r.findOne(ctx, findByExternalRefSQL, ref)
}

// FindByNumber returns the order with the given number.
func (r *OrderRepository) FindByNumber(ctx context.Context, number string) (*order.Order, error) {
	return r.findOne(ctx, findByNumberSQL, number)
}

func (r *OrderRepository) findOne(ctx context.Context, sql string, args ...any) (*order.Order, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("finding order: %w", err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("finding order: %w", err)
	}

	orders := []order.Order{o}
	if err := r.loadLines(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// List returns all orders with their lines, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	rows, err := r.db.Query(ctx, listOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	if err := r.loadLines(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *OrderRepository) loadLines(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := r.db.Query(ctx, linesByOrderIDsSQL, ids)
	if err != nil {
		return fmt.Errorf("loading order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID int64
			l       order.Line
		)
		if err := rows.Scan(&orderID, &l.CommodityID, &l.Title, &l.UnitPrice, &l.Quantity, &l.LineTotal); err != nil {
			return fmt.Errorf("scanning order line: %w", err)
		}
		i := index[orderID]
		orders[i].Lines = append(orders[i].Lines, l)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("loading order lines: %w", err)
	}
	return nil
}

// CountByStatus counts orders per status.
func (r *OrderRepository) CountByStatus(ctx context.Context) (order.Stats, error) {
	var st order.Stats
	rows, err := r.db.Query(ctx, countByStatusSQL)
	if err != nil {
		return st, fmt.Errorf("counting orders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return st, fmt.Errorf("scanning order count: %w", err)
		}
		st.Add(order.Status(status), n)
	}
	if err := rows.Err(); err != nil {
		return st, fmt.Errorf("counting orders: %w", err)
	}
	return st, nil
}

// ReserveStock decrements stock for every line, failing on the first
// commodity that cannot cover its quantity.
func (r *OrderRepository) ReserveStock(ctx context.Context, lines []order.Line) error {
	for _, l := range lines {
		tag, err := r.db.Exec(ctx, reserveStockSQL, l.CommodityID, l.Quantity)
		if err != nil {
			return fmt.Errorf("reserving stock for commodity %d: %w", l.CommodityID, err)
		}
		if tag.RowsAffected() == 0 {
			return &order.OutOfStockError{CommodityID: l.CommodityID}
		}
	}
	return nil
}

// ReleaseStock returns the order's quantities to stock.
func (r *OrderRepository) ReleaseStock(ctx context.Context, orderID int64) error {
	if _, err := r.db.Exec(ctx, releaseStockSQL, orderID); err != nil {
		return fmt.Errorf("releasing stock for order %d: %w", orderID, err)
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                                 order.Order
		address2, extRef, capRef, capStat pgtype.Text
		status                            string
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.Contact.Email, &o.Contact.Country, &o.Contact.Region,
		&o.Contact.Address1, &address2, &o.Contact.PostalCode, &o.Contact.Phone,
		&o.Currency, &o.Total, &status, &extRef, &capRef, &capStat, &o.CreatedAt, &o.UpdatedAt,
	)
	o.Contact.Address2 = address2.String
	o.Status = order.Status(status)
	o.ExternalRef = extRef.String
	o.CaptureRef = capRef.String
	o.CaptureStatus = capStat.String
	return o, err
}

func nullString(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
