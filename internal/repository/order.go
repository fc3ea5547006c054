package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"courier-dispatch/internal/domain"
)

// Order statuses the engine cares about. Orders are owned by the platform;
// the engine only reads the dispatch context and flips ready<->assigned.
const (
	orderStatusReady     = "ready_for_dispatch"
	orderStatusAssigned  = "assigned"
	orderStatusCanceled  = "canceled"
	orderStatusCompleted = "completed"
)

// OrderRepo reads order dispatch context from Postgres.
type OrderRepo struct{ db *pgxpool.Pool }

// NewOrderRepo creates a new OrderRepo.
func NewOrderRepo(db *pgxpool.Pool) *OrderRepo { return &OrderRepo{db: db} }

// GetContext returns the dispatch context for an order, or nil when the
// order is unknown.
func (r *OrderRepo) GetContext(ctx context.Context, orderID string) (*domain.OrderContext, error) {
	var (
		oc     domain.OrderContext
		status string
	)
	err := r.db.QueryRow(ctx, `
        SELECT id, status, priority, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng
        FROM orders
        WHERE id = $1`, orderID).Scan(
		&oc.OrderID, &status, &oc.Priority,
		&oc.Pickup.Lat, &oc.Pickup.Lng,
		&oc.Dropoff.Lat, &oc.Dropoff.Lng,
	)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	return &oc, nil
}

// UpsertContext stores the dispatch context received from the order intake
// stream so later reassignments can re-read it.
func (r *OrderRepo) UpsertContext(ctx context.Context, oc domain.OrderContext) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO orders (id, status, priority, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (id) DO UPDATE SET
            priority    = EXCLUDED.priority,
            pickup_lat  = EXCLUDED.pickup_lat,
            pickup_lng  = EXCLUDED.pickup_lng,
            dropoff_lat = EXCLUDED.dropoff_lat,
            dropoff_lng = EXCLUDED.dropoff_lng`,
		oc.OrderID, orderStatusReady, oc.Priority,
		oc.Pickup.Lat, oc.Pickup.Lng, oc.Dropoff.Lat, oc.Dropoff.Lng,
	)
	if err != nil {
		return fmt.Errorf("upsert order %s: %w", oc.OrderID, err)
	}
	return nil
}

// ListUnassignedReady returns up to limit orders that are ready for dispatch
// and have no active assignment, oldest first.
func (r *OrderRepo) ListUnassignedReady(ctx context.Context, limit int) ([]domain.OrderContext, error) {
	rows, err := r.db.Query(ctx, `
        SELECT o.id, o.priority, o.pickup_lat, o.pickup_lng, o.dropoff_lat, o.dropoff_lng
        FROM orders o
        WHERE o.status = $1
          AND NOT EXISTS (
              SELECT 1 FROM assignments a
              WHERE a.order_id = o.id
                AND a.status IN ('assigned', 'accepted', 'in_transit'))
        ORDER BY o.priority DESC, o.created_at
        LIMIT $2`, orderStatusReady, limit)
	if err != nil {
		return nil, fmt.Errorf("list unassigned orders: %w", err)
	}
	defer rows.Close()

	var out []domain.OrderContext
	for rows.Next() {
		var oc domain.OrderContext
		if err := rows.Scan(
			&oc.OrderID, &oc.Priority,
			&oc.Pickup.Lat, &oc.Pickup.Lng,
			&oc.Dropoff.Lat, &oc.Dropoff.Lng,
		); err != nil {
			return nil, err
		}
		out = append(out, oc)
	}
	return out, rows.Err()
}

// MarkAssigned flips an order into the assigned state. Best effort: the
// assignment row is the source of truth.
func (r *OrderRepo) MarkAssigned(ctx context.Context, orderID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE orders SET status = $2 WHERE id = $1`,
		orderID, orderStatusAssigned)
	if err != nil {
		return fmt.Errorf("mark order %s assigned: %w", orderID, err)
	}
	return nil
}

// MarkReady returns an order to the dispatch pool after a terminal
// non-delivered assignment.
func (r *OrderRepo) MarkReady(ctx context.Context, orderID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE orders SET status = $2 WHERE id = $1`,
		orderID, orderStatusReady)
	if err != nil {
		return fmt.Errorf("mark order %s ready: %w", orderID, err)
	}
	return nil
}

// MarkCanceled takes an order out of the dispatch pool for good.
func (r *OrderRepo) MarkCanceled(ctx context.Context, orderID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE orders SET status = $2 WHERE id = $1`,
		orderID, orderStatusCanceled)
	if err != nil {
		return fmt.Errorf("mark order %s canceled: %w", orderID, err)
	}
	return nil
}

// MarkCompleted records that the platform closed the order.
func (r *OrderRepo) MarkCompleted(ctx context.Context, orderID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE orders SET status = $2 WHERE id = $1`,
		orderID, orderStatusCompleted)
	if err != nil {
		return fmt.Errorf("mark order %s completed: %w", orderID, err)
	}
	return nil
}
