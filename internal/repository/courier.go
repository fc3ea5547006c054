package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"courier-dispatch/internal/domain"
)

// CourierRepo is the Postgres-backed courier directory read model. The
// engine only reads couriers; ownership stays with the platform.
type CourierRepo struct{ db *pgxpool.Pool }

// NewCourierRepo creates a new CourierRepo.
func NewCourierRepo(db *pgxpool.Pool) *CourierRepo { return &CourierRepo{db: db} }

const courierQuery = `
    SELECT c.id, c.name, c.phone, c.status, c.account_status, c.transport_type,
           c.rating, c.zones,
           (SELECT s.id FROM courier_shifts s
             WHERE s.courier_id = c.id AND s.ended_at IS NULL
             ORDER BY s.started_at DESC LIMIT 1) AS open_shift_id,
           (SELECT COUNT(*) FROM assignments a
             WHERE a.courier_id = c.id
               AND a.status IN ('assigned', 'accepted', 'in_transit')) AS active_load
    FROM couriers c
    WHERE c.id = $1`

// Get returns the courier read model by id, or nil when absent.
func (r *CourierRepo) Get(ctx context.Context, id int64) (*domain.Courier, error) {
	c, err := scanCourier(r.db.QueryRow(ctx, courierQuery, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get courier %d: %w", id, err)
	}
	return c, nil
}

// ListByIDs returns read models for the given couriers. Unknown ids are
// silently omitted.
func (r *CourierRepo) ListByIDs(ctx context.Context, ids []int64) ([]domain.Courier, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `
        SELECT c.id, c.name, c.phone, c.status, c.account_status, c.transport_type,
               c.rating, c.zones,
               (SELECT s.id FROM courier_shifts s
                 WHERE s.courier_id = c.id AND s.ended_at IS NULL
                 ORDER BY s.started_at DESC LIMIT 1) AS open_shift_id,
               (SELECT COUNT(*) FROM assignments a
                 WHERE a.courier_id = c.id
                   AND a.status IN ('assigned', 'accepted', 'in_transit')) AS active_load
        FROM couriers c
        WHERE c.id = ANY($1)
        ORDER BY c.id`, ids)
	if err != nil {
		return nil, fmt.Errorf("list couriers: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Courier, 0, len(ids))
	for rows.Next() {
		c, err := scanCourier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanCourier(row pgx.Row) (*domain.Courier, error) {
	var (
		c       domain.Courier
		status  string
		account string
		tt      string
	)
	err := row.Scan(
		&c.ID, &c.Name, &c.Phone, &status, &account, &tt,
		&c.Rating, &c.Zones, &c.OpenShiftID, &c.ActiveLoad,
	)
	if err != nil {
		return nil, err
	}
	// The couriers table is owned by the platform, which may grow its enums
	// before this service learns them. An unknown value must read as
	// ineligible, never as available.
	c.Status = domain.CourierStatus(status)
	if !c.Status.Valid() {
		c.Status = domain.StatusOff
	}
	c.Account = domain.AccountStatus(account)
	if !c.Account.Valid() {
		c.Account = domain.AccountSuspended
	}
	c.TransportType = domain.CourierTransportType(tt)
	if !c.TransportType.Valid() {
		c.TransportType = domain.TransportTypeFoot
	}
	return &c, nil
}
