package transit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/citytransit/transitengine/internal/deviation"
	"github.com/citytransit/transitengine/internal/geo"
	"github.com/citytransit/transitengine/internal/network"
	nt "github.com/citytransit/transitengine/internal/network/networktest"
	"github.com/citytransit/transitengine/internal/planner"
	"github.com/citytransit/transitengine/internal/telemetry"
	"github.com/citytransit/transitengine/internal/tracking"
	"github.com/citytransit/transitengine/internal/transit"
)

// mockSnapshots is a mock implementation of transit.Snapshots.
type mockSnapshots struct {
	snap       *network.Snapshot
	err        error
	rebuildErr error
	rebuilds   int
}

func (m *mockSnapshots) Current() (*network.Snapshot, error) {
	if m.snap == nil {
		return nil, network.ErrNoSnapshot
	}
	return m.snap, m.err
}

func (m *mockSnapshots) Rebuild(context.Context) (*network.Snapshot, error) {
	m.rebuilds++
	if m.rebuildErr != nil {
		return nil, m.rebuildErr
	}
	return m.snap, nil
}

func newService(t *testing.T, snaps transit.Snapshots, fixes deviation.FixSource, metrics *telemetry.EngineMetrics) *transit.Service {
	t.Helper()

	pcfg := planner.DefaultConfig()
	pcfg.Location = time.UTC
	dcfg := deviation.DefaultConfig()
	dcfg.Location = time.UTC

	return transit.NewService(transit.ServiceConfig{
		Snapshots: snaps,
		Planner:   planner.New(pcfg),
		Detector:  deviation.New(dcfg, fixes),
		Location:  time.UTC,
		Metrics:   metrics,
		Logger:    zerolog.Nop(),
	})
}

func TestService_NoSnapshot(t *testing.T) {
	svc := newService(t, &mockSnapshots{}, nil, nil)
	ctx := context.Background()

	_, err := svc.Plan(ctx, planner.Request{From: nt.PointX, To: nt.PointY, At: nt.At(nt.Monday, 8, 0)})
	assert.ErrorIs(t, err, network.ErrNoSnapshot)

	_, err = svc.DetectDeviation(ctx, nt.FleetAssigned, time.Time{})
	assert.ErrorIs(t, err, network.ErrNoSnapshot)

	_, err = svc.DetectAll(ctx, time.Time{})
	assert.ErrorIs(t, err, network.ErrNoSnapshot)

	_, err = svc.SynthesizeSchedule(ctx, nt.Route12Forward, network.DirectionForward, nt.Monday)
	assert.ErrorIs(t, err, network.ErrNoSnapshot)

	_, err = svc.NearbyStops(ctx, nt.PointX, 500, 0)
	assert.ErrorIs(t, err, network.ErrNoSnapshot)

	assert.False(t, svc.Status().Ready)
}

func TestService_Plan(t *testing.T) {
	svc := newService(t, &mockSnapshots{snap: nt.Snapshot(t)}, nil, nil)

	options, err := svc.Plan(context.Background(), planner.Request{
		From: nt.PointX,
		To:   nt.PointY,
		At:   nt.At(nt.Monday, 8, 0),
	})
	require.NoError(t, err)
	require.NotEmpty(t, options)
	assert.Equal(t, nt.Route12Forward, options[0].Segments[0].RouteID)
	assert.Equal(t, 0, options[0].Transfers)
}

func TestService_PlanInvalidInput(t *testing.T) {
	svc := newService(t, &mockSnapshots{snap: nt.Snapshot(t)}, nil, nil)

	_, err := svc.Plan(context.Background(), planner.Request{
		From: geo.Point{Lat: 120, Lon: 0},
		To:   nt.PointY,
		At:   nt.At(nt.Monday, 8, 0),
	})
	assert.ErrorIs(t, err, planner.ErrInvalidInput)
}

func TestService_DetectDeviationWithTracker(t *testing.T) {
	tracker := tracking.NewTracker()
	asOf := nt.At(nt.Monday, 8, 20)
	_, err := tracker.Record(network.GpsFix{
		VehicleID:  nt.VehicleLine5,
		Point:      nt.Lerp(nt.PointP, nt.PointQ, 26.0/30),
		RecordedAt: asOf.Add(-time.Minute),
	})
	require.NoError(t, err)

	svc := newService(t, &mockSnapshots{snap: nt.Snapshot(t)}, tracker, nil)

	res, err := svc.DetectDeviation(context.Background(), nt.FleetLine5, asOf)
	require.NoError(t, err)
	assert.Equal(t, deviation.StatusLate, res.Status)

	_, err = svc.DetectDeviation(context.Background(), "9999", asOf)
	assert.ErrorIs(t, err, deviation.ErrVehicleNotFound)
}

func TestService_DetectAllRecordsMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(ctx) })

	metrics, err := telemetry.NewEngineMetrics(mp.Meter("test"))
	require.NoError(t, err)

	snap := nt.Snapshot(t)
	svc := newService(t, &mockSnapshots{snap: snap}, tracking.NewTracker(), metrics)

	results, err := svc.DetectAll(ctx, nt.At(nt.Monday, 9, 0))
	require.NoError(t, err)
	assert.Len(t, results, len(snap.Vehicles()))
	for _, res := range results {
		assert.Equal(t, deviation.StatusUnknown, res.Status)
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != "transit.deviation.classifications" {
				continue
			}
			sum, ok := md.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	assert.Equal(t, int64(len(results)), total)
}

func TestService_SynthesizeSchedule(t *testing.T) {
	svc := newService(t, &mockSnapshots{snap: nt.Snapshot(t)}, nil, nil)

	tt, err := svc.SynthesizeSchedule(context.Background(), nt.Route12Forward, network.DirectionForward, nt.Monday)
	require.NoError(t, err)
	require.NotEmpty(t, tt.Departures)
	assert.Equal(t, nt.At(nt.Monday, 6, 0), tt.Departures[0])

	_, err = svc.SynthesizeSchedule(context.Background(), "route-missing", network.DirectionForward, nt.Monday)
	assert.ErrorIs(t, err, network.ErrRouteNotFound)
}

func TestService_RouteGeometry(t *testing.T) {
	svc := newService(t, &mockSnapshots{snap: nt.Snapshot(t)}, nil, nil)

	pts, err := svc.RouteGeometry(nt.Route12Forward, network.DirectionForward)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(pts), 2)
}

func TestService_NearbyStops(t *testing.T) {
	svc := newService(t, &mockSnapshots{snap: nt.Snapshot(t)}, nil, nil)

	stops, err := svc.NearbyStops(context.Background(), nt.PointB, 1000, 0)
	require.NoError(t, err)
	require.NotEmpty(t, stops)
	assert.Equal(t, nt.StopB, stops[0].Stop.ID)
	assert.InDelta(t, 0, stops[0].DistanceMeters, 0.01)

	var routeIDs []string
	for _, r := range stops[0].Routes {
		routeIDs = append(routeIDs, r.ID)
	}
	assert.Contains(t, routeIDs, nt.Route12Forward)
	assert.Contains(t, routeIDs, nt.Tram3)

	for i := 1; i < len(stops); i++ {
		assert.LessOrEqual(t, stops[i-1].DistanceMeters, stops[i].DistanceMeters)
	}

	limited, err := svc.NearbyStops(context.Background(), nt.PointB, 1000, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestService_RebuildAndStatus(t *testing.T) {
	store := network.NewStore(network.StoreConfig{
		Repository: network.NewInMemoryRepository(nt.Data()),
		Build:      network.DefaultBuildOptions(),
		Logger:     zerolog.Nop(),
	})
	svc := newService(t, store, nil, nil)

	assert.False(t, svc.Status().Ready)

	snap, err := svc.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Version)

	status := svc.Status()
	assert.True(t, status.Ready)
	assert.Equal(t, int64(1), status.Version)
	assert.Equal(t, 8, status.Stops)
	assert.Positive(t, status.Routes)
	assert.Positive(t, status.Vehicles)
}

func TestService_RebuildFailure(t *testing.T) {
	boom := errors.New("db down")
	snaps := &mockSnapshots{snap: nt.Snapshot(t), rebuildErr: boom}
	svc := newService(t, snaps, nil, nil)

	_, err := svc.Rebuild(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, snaps.rebuilds)
	// The previous snapshot keeps serving.
	assert.True(t, svc.Status().Ready)
}
