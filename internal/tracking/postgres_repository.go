package tracking

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/citytransit/transitengine/internal/deviation"
	"github.com/citytransit/transitengine/internal/network"
)

// PostgresFixRepository reads persisted GPS fixes.
type PostgresFixRepository struct {
	pool *pgxpool.Pool
}

var _ deviation.FixSource = (*PostgresFixRepository)(nil)

// NewPostgresFixRepository creates a fix repository backed by pool.
func NewPostgresFixRepository(pool *pgxpool.Pool) *PostgresFixRepository {
	return &PostgresFixRepository{pool: pool}
}

// LatestFix implements deviation.FixSource.
func (r *PostgresFixRepository) LatestFix(ctx context.Context, vehicleID string) (network.GpsFix, bool, error) {
	const query = `
		SELECT vehicle_id, lat, lon, recorded_at
		FROM gps_fixes
		WHERE vehicle_id = $1
		ORDER BY recorded_at DESC
		LIMIT 1`

	var fix network.GpsFix
	err := r.pool.QueryRow(ctx, query, vehicleID).Scan(
		&fix.VehicleID,
		&fix.Point.Lat,
		&fix.Point.Lon,
		&fix.RecordedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return network.GpsFix{}, false, nil
	}
	if err != nil {
		return network.GpsFix{}, false, fmt.Errorf("query latest fix: %w", err)
	}
	return fix, true, nil
}
