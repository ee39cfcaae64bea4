package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ViniMktd/FlowBot-sub001/internal/domain"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Orders is the PostgreSQL order store. Each call is its own transaction;
// no job spans multiple calls transactionally.
type Orders struct {
	pool *pgxpool.Pool
}

func NewOrders(pool *pgxpool.Pool) *Orders {
	return &Orders{pool: pool}
}

const orderColumns = `
	id, external_id, customer_name, customer_phone, shipping_address, items,
	status, supplier_id, tracking_code, promised_delivery,
	confirmed_at, delivered_at, created_at, updated_at`

// Create inserts an order. Inserting the same external_id twice returns the
// existing row unchanged, so a retried processOrder job is a no-op.
func (s *Orders) Create(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO orders
			(external_id, customer_name, customer_phone, shipping_address,
			 items, status, promised_delivery)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (external_id) DO UPDATE SET updated_at = orders.updated_at
		RETURNING`+orderColumns,
		o.ExternalID, o.CustomerName, o.CustomerPhone, o.ShippingAddress,
		items, domain.OrderPending, o.PromisedDelivery)
	return scanOrder(row)
}

func (s *Orders) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT`+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (s *Orders) FindByExternalID(ctx context.Context, externalID string) (*domain.Order, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT`+orderColumns+` FROM orders WHERE external_id = $1`, externalID)
	return scanOrder(row)
}

func (s *Orders) FindByPhone(ctx context.Context, phone string) (*domain.Order, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT`+orderColumns+` FROM orders
		WHERE customer_phone = $1
		ORDER BY created_at DESC
		LIMIT 1`, phone)
	return scanOrder(row)
}

func (s *Orders) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET
			status       = $2,
			confirmed_at = CASE WHEN $2 = 'confirmed' THEN NOW() ELSE confirmed_at END,
			delivered_at = CASE WHEN $2 = 'delivered' THEN NOW() ELSE delivered_at END,
			updated_at   = NOW()
		WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return nil
}

// AssignSupplier binds an order to the least loaded active supplier and
// returns it. Assignment is stable on retry: an order that already has a
// supplier keeps it, even when no supplier is active anymore.
func (s *Orders) AssignSupplier(ctx context.Context, orderID uuid.UUID) (*domain.Supplier, error) {
	var existing *uuid.UUID
	err := s.pool.QueryRow(ctx,
		`SELECT supplier_id FROM orders WHERE id = $1`, orderID).Scan(&existing)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.FindSupplier(ctx, *existing)
	}

	row := s.pool.QueryRow(ctx, `
		WITH pick AS (
			SELECT s.id FROM suppliers s
			LEFT JOIN orders o ON o.supplier_id = s.id
				AND o.status NOT IN ('delivered', 'cancelled', 'returned')
			WHERE s.active
			GROUP BY s.id
			ORDER BY COUNT(o.id) ASC, s.created_at ASC
			LIMIT 1
		)
		UPDATE orders
		SET supplier_id = COALESCE(orders.supplier_id, pick.id),
		    updated_at  = NOW()
		FROM pick
		WHERE orders.id = $1
		RETURNING orders.supplier_id`, orderID)

	// Zero rows here means pick was empty: the order exists and is
	// unassigned, but no supplier is active to take it.
	var supplierID uuid.UUID
	if err := row.Scan(&supplierID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("no active supplier for order %s: %w", orderID, ErrNotFound)
		}
		return nil, err
	}
	return s.FindSupplier(ctx, supplierID)
}

func (s *Orders) FindSupplier(ctx context.Context, id uuid.UUID) (*domain.Supplier, error) {
	var sup domain.Supplier
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, endpoint, active, created_at
		FROM suppliers WHERE id = $1`, id).
		Scan(&sup.ID, &sup.Name, &sup.Endpoint, &sup.Active, &sup.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("supplier %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &sup, nil
}

func (s *Orders) ListActiveSuppliers(ctx context.Context) ([]*domain.Supplier, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, endpoint, active, created_at
		FROM suppliers WHERE active
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Supplier
	for rows.Next() {
		var sup domain.Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.Endpoint, &sup.Active, &sup.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &sup)
	}
	return out, rows.Err()
}

func (s *Orders) SetTracking(ctx context.Context, id uuid.UUID, trackingCode string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders SET tracking_code = $2, status = 'in_transit', updated_at = NOW()
		WHERE id = $1`, id, trackingCode)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListOverdue returns undelivered orders whose promised delivery date has
// passed as of asOf.
func (s *Orders) ListOverdue(ctx context.Context, asOf time.Time) ([]*domain.Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT`+orderColumns+` FROM orders
		WHERE promised_delivery IS NOT NULL
		  AND promised_delivery < $1
		  AND status NOT IN ('delivered', 'cancelled', 'returned')
		ORDER BY promised_delivery ASC`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// CountByStatus powers the periodic tracking report.
func (s *Orders) CountByStatus(ctx context.Context) (map[domain.OrderStatus]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[domain.OrderStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[domain.OrderStatus(status)] = n
	}
	return out, rows.Err()
}

// AdjustInventory applies a delta to a supplier's stock count, creating the
// row when absent. Negative resulting quantities are clamped to zero.
func (s *Orders) AdjustInventory(ctx context.Context, supplierID uuid.UUID, productID string, delta int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO inventory (supplier_id, product_id, quantity)
		VALUES ($1, $2, GREATEST($3, 0))
		ON CONFLICT (supplier_id, product_id) DO UPDATE SET
			quantity   = GREATEST(inventory.quantity + $3, 0),
			updated_at = NOW()`, supplierID, productID, delta)
	return err
}

// SetInventory overwrites a supplier's stock count from a sync snapshot.
func (s *Orders) SetInventory(ctx context.Context, supplierID uuid.UUID, productID string, quantity int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO inventory (supplier_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (supplier_id, product_id) DO UPDATE SET
			quantity   = EXCLUDED.quantity,
			updated_at = NOW()`, supplierID, productID, quantity)
	return err
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var items []byte
	err := row.Scan(
		&o.ID, &o.ExternalID, &o.CustomerName, &o.CustomerPhone,
		&o.ShippingAddress, &items, (*string)(&o.Status), &o.SupplierID,
		&o.TrackingCode, &o.PromisedDelivery, &o.ConfirmedAt, &o.DeliveredAt,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return &o, nil
}
