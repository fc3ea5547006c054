package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"courier-dispatch/internal/domain"
)

// ZoneRepo resolves geographic points to delivery zones. Zones are static
// bounding boxes loaded by the platform.
type ZoneRepo struct{ db *pgxpool.Pool }

// NewZoneRepo creates a new ZoneRepo.
func NewZoneRepo(db *pgxpool.Pool) *ZoneRepo { return &ZoneRepo{db: db} }

// ZoneForPoint returns the id of the zone containing the point, or "" when
// the point falls outside every known zone. Overlapping zones resolve to the
// lexicographically smallest id so lookups stay deterministic.
func (r *ZoneRepo) ZoneForPoint(ctx context.Context, p domain.Point) (string, error) {
	var id string
	err := r.db.QueryRow(ctx, `
        SELECT id FROM zones
        WHERE $1 BETWEEN min_lat AND max_lat
          AND $2 BETWEEN min_lng AND max_lng
        ORDER BY id
        LIMIT 1`, p.Lat, p.Lng).Scan(&id)
	if err != nil {
		if IsNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("zone for point: %w", err)
	}
	return id, nil
}

// List returns all known zone ids.
func (r *ZoneRepo) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM zones ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
