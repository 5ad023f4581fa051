package network

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL network repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// LoadNetwork reads every table in parallel. Tables are independent reads of
// committed rows, so a rebuild triggered after a mutation sees that mutation.
func (r *PostgresRepository) LoadNetwork(ctx context.Context) (*Data, error) {
	var data Data
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) { data.Stops, err = r.loadStops(ctx); return })
	g.Go(func() (err error) { data.TransportTypes, err = r.loadTransportTypes(ctx); return })
	g.Go(func() (err error) { data.Routes, err = r.loadRoutes(ctx); return })
	g.Go(func() (err error) { data.RouteStops, err = r.loadRouteStops(ctx); return })
	g.Go(func() (err error) { data.RoutePoints, err = r.loadRoutePoints(ctx); return })
	g.Go(func() (err error) { data.Schedules, err = r.loadSchedules(ctx); return })
	g.Go(func() (err error) { data.Vehicles, err = r.loadVehicles(ctx); return })
	g.Go(func() (err error) { data.Assignments, err = r.loadAssignments(ctx); return })

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &data, nil
}

func (r *PostgresRepository) loadStops(ctx context.Context) ([]Stop, error) {
	query := `SELECT id::text, name, lon, lat FROM stops`

	return collect(ctx, r.pool, "stops", query, func(row pgx.CollectableRow) (Stop, error) {
		var s Stop
		err := row.Scan(&s.ID, &s.Name, &s.Point.Lon, &s.Point.Lat)
		return s, err
	})
}

func (r *PostgresRepository) loadTransportTypes(ctx context.Context) ([]TransportType, error) {
	query := `SELECT id::text, name FROM transport_types`

	return collect(ctx, r.pool, "transport_types", query, func(row pgx.CollectableRow) (TransportType, error) {
		var t TransportType
		err := row.Scan(&t.ID, &t.Name)
		return t, err
	})
}

func (r *PostgresRepository) loadRoutes(ctx context.Context) ([]Route, error) {
	query := `SELECT id::text, number, transport_type_id::text, direction, is_active FROM routes`

	return collect(ctx, r.pool, "routes", query, func(row pgx.CollectableRow) (Route, error) {
		var (
			rt  Route
			dir string
		)
		err := row.Scan(&rt.ID, &rt.Number, &rt.TransportTypeID, &dir, &rt.Active)
		rt.Direction = Direction(dir)
		return rt, err
	})
}

func (r *PostgresRepository) loadRouteStops(ctx context.Context) ([]RouteStop, error) {
	query := `
		SELECT route_id::text, stop_id::text, ordinal, distance_to_next_km
		FROM route_stops
		ORDER BY route_id, ordinal
	`

	return collect(ctx, r.pool, "route_stops", query, func(row pgx.CollectableRow) (RouteStop, error) {
		var rs RouteStop
		err := row.Scan(&rs.RouteID, &rs.StopID, &rs.Ordinal, &rs.DistanceToNextKm)
		return rs, err
	})
}

func (r *PostgresRepository) loadRoutePoints(ctx context.Context) ([]RoutePoint, error) {
	query := `
		SELECT route_id::text, sequence, lon, lat
		FROM route_points
		ORDER BY route_id, sequence
	`

	return collect(ctx, r.pool, "route_points", query, func(row pgx.CollectableRow) (RoutePoint, error) {
		var p RoutePoint
		err := row.Scan(&p.RouteID, &p.Sequence, &p.Point.Lon, &p.Point.Lat)
		return p, err
	})
}

func (r *PostgresRepository) loadSchedules(ctx context.Context) ([]Schedule, error) {
	query := `
		SELECT
			id::text, route_id::text,
			to_char(work_start, 'HH24:MI:SS'), to_char(work_end, 'HH24:MI:SS'), interval_min,
			sunday, monday, tuesday, wednesday, thursday, friday, saturday,
			valid_from, valid_to, created_at
		FROM schedules
	`

	return collect(ctx, r.pool, "schedules", query, func(row pgx.CollectableRow) (Schedule, error) {
		var (
			s          Schedule
			start, end string
			from, to   *time.Time
		)
		err := row.Scan(
			&s.ID, &s.RouteID,
			&start, &end, &s.IntervalMin,
			&s.Weekdays[0], &s.Weekdays[1], &s.Weekdays[2], &s.Weekdays[3],
			&s.Weekdays[4], &s.Weekdays[5], &s.Weekdays[6],
			&from, &to, &s.CreatedAt,
		)
		if err != nil {
			return s, err
		}
		if s.WorkStart, err = ParseTimeOfDay(start); err != nil {
			return s, err
		}
		if s.WorkEnd, err = ParseTimeOfDay(end); err != nil {
			return s, err
		}
		s.ValidFrom, s.ValidTo = from, to
		return s, nil
	})
}

func (r *PostgresRepository) loadVehicles(ctx context.Context) ([]Vehicle, error) {
	query := `SELECT id::text, fleet_number, route_id::text, capacity FROM vehicles`

	return collect(ctx, r.pool, "vehicles", query, func(row pgx.CollectableRow) (Vehicle, error) {
		var v Vehicle
		err := row.Scan(&v.ID, &v.FleetNumber, &v.RouteID, &v.Capacity)
		return v, err
	})
}

func (r *PostgresRepository) loadAssignments(ctx context.Context) ([]Assignment, error) {
	query := `
		SELECT DISTINCT ON (vehicle_id)
			id::text, vehicle_id::text, driver_id::text, route_id::text, assigned_at
		FROM vehicle_assignments
		ORDER BY vehicle_id, assigned_at DESC
	`

	return collect(ctx, r.pool, "vehicle_assignments", query, func(row pgx.CollectableRow) (Assignment, error) {
		var a Assignment
		err := row.Scan(&a.ID, &a.VehicleID, &a.DriverID, &a.RouteID, &a.AssignedAt)
		return a, err
	})
}

func collect[T any](ctx context.Context, pool *pgxpool.Pool, table, query string, scan pgx.RowToFunc[T]) ([]T, error) {
	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	out, err := pgx.CollectRows(rows, scan)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", table, err)
	}
	return out, nil
}

// Ensure PostgresRepository implements Repository.
var _ Repository = (*PostgresRepository)(nil)
