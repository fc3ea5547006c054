package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/ports/dispatchtx"
)

// AssignmentRepo persists assignments. Rows are never deleted; terminal
// statuses are kept for audit.
type AssignmentRepo struct {
	db *pgxpool.Pool
}

// NewAssignmentRepo creates a new AssignmentRepo.
func NewAssignmentRepo(db *pgxpool.Pool) *AssignmentRepo {
	return &AssignmentRepo{db: db}
}

const assignmentColumns = `
    id, order_id, courier_id, shift_id, status, priority,
    pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
    courier_lat, courier_lng,
    assigned_at, accepted_at, started_at, completed_at, expires_at,
    est_distance_km, est_duration_seconds, est_earning,
    act_distance_km, act_duration_seconds, act_earning,
    reason, metadata`

// WithTx opens a transaction and executes fn within it.
func (r *AssignmentRepo) WithTx(ctx context.Context, fn func(tx dispatchtx.Repository) error) (err error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	wrapped := &TxRepo{tx: tx}

	if err := fn(wrapped); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback tx: %w (original error: %s)", rbErr, err.Error())
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// Get returns an assignment by id, or nil when absent.
func (r *AssignmentRepo) Get(ctx context.Context, id string) (*domain.Assignment, error) {
	row := r.db.QueryRow(ctx,
		`SELECT`+assignmentColumns+` FROM assignments WHERE id = $1`, id)
	a, err := scanAssignment(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get assignment %s: %w", id, err)
	}
	return a, nil
}

// UpdateStatus performs the atomic compare-and-set at the core of the state
// machine: the row is only mutated when its current status equals from and
// every guard in the patch holds. Returns true when exactly one row changed;
// false means a concurrent writer won the race.
func (r *AssignmentRepo) UpdateStatus(ctx context.Context, id string, from, to domain.AssignmentStatus, p domain.StatusPatch) (bool, error) {
	ct, err := r.db.Exec(ctx, `
        UPDATE assignments
        SET status = $2,
            accepted_at  = CASE WHEN $2 = 'accepted'   THEN $3 ELSE accepted_at END,
            started_at   = CASE WHEN $2 = 'in_transit' THEN $3 ELSE started_at END,
            completed_at = CASE WHEN $2 IN ('delivered', 'failed') THEN $3 ELSE completed_at END,
            reason               = COALESCE($4, reason),
            act_distance_km      = COALESCE($5, act_distance_km),
            act_duration_seconds = COALESCE($6, act_duration_seconds),
            act_earning          = COALESCE($7, act_earning)
        WHERE id = $1
          AND status = $8
          AND ($9::BIGINT IS NULL OR courier_id = $9)
          AND ($10::TIMESTAMPTZ IS NULL OR expires_at > $10)`,
		id, string(to), p.Now,
		p.Reason, p.ActDistanceKm, p.ActDurationSec, p.ActEarning,
		string(from), p.CourierID, p.NotAfter,
	)
	if err != nil {
		return false, fmt.Errorf("update assignment %s status: %w", id, err)
	}
	return ct.RowsAffected() == 1, nil
}

// HasActiveByOrder reports whether the order has an assignment in a
// non-terminal status.
func (r *AssignmentRepo) HasActiveByOrder(ctx context.Context, orderID string) (bool, error) {
	return hasActiveByOrder(ctx, r.db, orderID)
}

// LatestByOrder returns the most recently created assignment for the order,
// or nil when the order has none.
func (r *AssignmentRepo) LatestByOrder(ctx context.Context, orderID string) (*domain.Assignment, error) {
	row := r.db.QueryRow(ctx,
		`SELECT`+assignmentColumns+`
         FROM assignments
         WHERE order_id = $1
         ORDER BY assigned_at DESC, id DESC
         LIMIT 1`, orderID)
	a, err := scanAssignment(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest assignment for order %q: %w", orderID, err)
	}
	return a, nil
}

// TriedCouriers returns the couriers that have already received an
// assignment for the order.
func (r *AssignmentRepo) TriedCouriers(ctx context.Context, orderID string) ([]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT courier_id FROM assignments WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, fmt.Errorf("tried couriers for order %q: %w", orderID, err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// CountByOrder returns how many assignments have been created for the order.
func (r *AssignmentRepo) CountByOrder(ctx context.Context, orderID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM assignments WHERE order_id = $1`, orderID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count assignments for order %q: %w", orderID, err)
	}
	return n, nil
}

// ListActiveByCourier returns the courier's assignments in non-terminal
// statuses, oldest first.
func (r *AssignmentRepo) ListActiveByCourier(ctx context.Context, courierID int64) ([]domain.Assignment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT`+assignmentColumns+`
         FROM assignments
         WHERE courier_id = $1
           AND status IN ('assigned', 'accepted', 'in_transit')
         ORDER BY assigned_at`, courierID)
	if err != nil {
		return nil, fmt.Errorf("active assignments for courier %d: %w", courierID, err)
	}
	defer rows.Close()

	var out []domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// ListPendingExpiries returns every still-offered assignment and its
// deadline, for the reconciliation sweep.
func (r *AssignmentRepo) ListPendingExpiries(ctx context.Context) ([]domain.PendingExpiry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, expires_at FROM assignments WHERE status = 'assigned'`)
	if err != nil {
		return nil, fmt.Errorf("pending expiries: %w", err)
	}
	defer rows.Close()

	var out []domain.PendingExpiry
	for rows.Next() {
		var p domain.PendingExpiry
		if err := rows.Scan(&p.AssignmentID, &p.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateCourierPosition stamps the courier's current position on their
// active assignments.
func (r *AssignmentRepo) UpdateCourierPosition(ctx context.Context, courierID int64, p domain.Point) error {
	_, err := r.db.Exec(ctx, `
        UPDATE assignments
        SET courier_lat = $2, courier_lng = $3
        WHERE courier_id = $1
          AND status IN ('assigned', 'accepted', 'in_transit')`,
		courierID, p.Lat, p.Lng)
	if err != nil {
		return fmt.Errorf("update courier %d position: %w", courierID, err)
	}
	return nil
}

// TxRepo is the transactional view used during assignment creation.
type TxRepo struct {
	tx pgx.Tx
}

// GetCourierForUpdate loads the courier read model with its row locked.
func (r *TxRepo) GetCourierForUpdate(ctx context.Context, courierID int64) (*domain.Courier, error) {
	row := r.tx.QueryRow(ctx, courierQuery+` FOR UPDATE OF c`, courierID)
	c, err := scanCourier(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get courier %d for update: %w", courierID, err)
	}
	return c, nil
}

// HasActiveByOrder reports whether the order has a non-terminal assignment.
func (r *TxRepo) HasActiveByOrder(ctx context.Context, orderID string) (bool, error) {
	return hasActiveByOrder(ctx, r.tx, orderID)
}

// InsertAssignment persists a new assignment row. A violation of the
// one-active-per-order index surfaces as apperr.ErrConflict.
func (r *TxRepo) InsertAssignment(ctx context.Context, a *domain.Assignment) error {
	_, err := r.tx.Exec(ctx, `
        INSERT INTO assignments (
            id, order_id, courier_id, shift_id, status, priority,
            pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
            assigned_at, expires_at,
            est_distance_km, est_duration_seconds, est_earning,
            metadata
        ) VALUES (
            $1, $2, $3, $4, $5, $6,
            $7, $8, $9, $10,
            $11, $12,
            $13, $14, $15,
            $16
        )`,
		a.ID, a.OrderID, a.CourierID, a.ShiftID, string(a.Status), a.Priority,
		a.Pickup.Lat, a.Pickup.Lng, a.Dropoff.Lat, a.Dropoff.Lng,
		a.AssignedAt, a.ExpiresAt,
		a.EstDistance, int64(a.EstDuration.Seconds()), a.EstEarning,
		metadataOrEmpty(a.Metadata),
	)
	if err != nil {
		if IsDuplicate(err) {
			return apperr.ErrConflict
		}
		if IsForeignKeyViolation(err) {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func hasActiveByOrder(ctx context.Context, q queryer, orderID string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM assignments
            WHERE order_id = $1
              AND status IN ('assigned', 'accepted', 'in_transit')
        )`, orderID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("active assignment check for order %q: %w", orderID, err)
	}
	return exists, nil
}

func metadataOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func scanAssignment(row pgx.Row) (*domain.Assignment, error) {
	var (
		a              domain.Assignment
		status         string
		courierLat     *float64
		courierLng     *float64
		estDurationSec int64
		actDurationSec *int64
	)
	err := row.Scan(
		&a.ID, &a.OrderID, &a.CourierID, &a.ShiftID, &status, &a.Priority,
		&a.Pickup.Lat, &a.Pickup.Lng, &a.Dropoff.Lat, &a.Dropoff.Lng,
		&courierLat, &courierLng,
		&a.AssignedAt, &a.AcceptedAt, &a.StartedAt, &a.CompletedAt, &a.ExpiresAt,
		&a.EstDistance, &estDurationSec, &a.EstEarning,
		&a.ActDistance, &actDurationSec, &a.ActEarning,
		&a.Reason, &a.Metadata,
	)
	if err != nil {
		return nil, err
	}

	a.Status = domain.AssignmentStatus(status)
	a.EstDuration = time.Duration(estDurationSec) * time.Second
	if actDurationSec != nil {
		d := time.Duration(*actDurationSec) * time.Second
		a.ActDuration = &d
	}
	if courierLat != nil && courierLng != nil {
		a.CourierPos = &domain.Point{Lat: *courierLat, Lng: *courierLng}
	}
	return &a, nil
}
