package network_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citytransit/transitengine/internal/geo"
	"github.com/citytransit/transitengine/internal/network"
	nt "github.com/citytransit/transitengine/internal/network/networktest"
)

func issueKinds(issues []network.Issue) []string {
	kinds := make([]string, len(issues))
	for i, is := range issues {
		kinds[i] = is.Kind + ":" + is.Ref
	}
	return kinds
}

func TestBuild_DropsInvalidSchedules(t *testing.T) {
	data := nt.Data()
	data.Schedules = append(data.Schedules,
		network.Schedule{ID: "reversed", RouteID: nt.Tram3, WorkStart: network.TimeOfDay(22 * time.Hour), WorkEnd: network.TimeOfDay(6 * time.Hour), IntervalMin: 10},
		network.Schedule{ID: "zero-interval", RouteID: nt.Tram3, WorkStart: network.TimeOfDay(6 * time.Hour), WorkEnd: network.TimeOfDay(7 * time.Hour)},
		network.Schedule{ID: "orphan", RouteID: "missing", IntervalMin: 10},
	)

	snap, issues := network.Build(data, network.DefaultBuildOptions())
	assert.ElementsMatch(t, []string{"schedule:reversed", "schedule:zero-interval", "schedule:orphan"}, issueKinds(issues))

	require.Len(t, snap.Schedules(nt.Tram3), 1)
	assert.Equal(t, "sch-t3", snap.Schedules(nt.Tram3)[0].ID)
}

func TestBuild_OrdersSchedulesNewestFirst(t *testing.T) {
	data := nt.Data()
	later := data.Schedules[2]
	later.ID = "sch-t3-new"
	later.CreatedAt = later.CreatedAt.Add(24 * time.Hour)
	data.Schedules = append(data.Schedules, later)

	snap, issues := network.Build(data, network.DefaultBuildOptions())
	require.Empty(t, issues)

	list := snap.Schedules(nt.Tram3)
	require.Len(t, list, 2)
	assert.Equal(t, "sch-t3-new", list[0].ID)
}

func TestBuild_DropsOrphanRows(t *testing.T) {
	data := nt.Data()
	data.RouteStops = append(data.RouteStops,
		network.RouteStop{RouteID: nt.Tram3, StopID: "ghost", Ordinal: 9},
		network.RouteStop{RouteID: "ghost-route", StopID: nt.StopB, Ordinal: 0},
	)
	data.Assignments = append(data.Assignments, network.Assignment{ID: "asg-x", VehicleID: "ghost", RouteID: nt.Tram3})
	data.Stops = append(data.Stops, network.Stop{ID: "off-planet", Point: geo.Point{Lat: 120, Lon: 0}})

	snap, issues := network.Build(data, network.DefaultBuildOptions())
	assert.Len(t, issues, 4)

	stops, err := snap.StopsOnRoute(nt.Tram3, network.DirectionForward)
	require.NoError(t, err)
	assert.Len(t, stops, 3)
	_, ok := snap.Stop("off-planet")
	assert.False(t, ok)
}

func TestBuild_UnknownTransportTypeUsesDefaultSpeed(t *testing.T) {
	data := nt.Data()
	data.Routes[2].TransportTypeID = "tt-monorail"

	opts := network.DefaultBuildOptions()
	opts.DefaultSpeedKmh = 27
	snap, issues := network.Build(data, opts)
	require.Len(t, issues, 1)
	assert.Equal(t, nt.Tram3, issues[0].Ref)
	assert.InDelta(t, 27.0, snap.SpeedKmh(nt.Tram3), 1e-9)

	// 0.9 km at 27 km/h.
	d, err := snap.SegmentTravelTime(nt.Tram3, network.DirectionForward, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, d)
}

func TestBuild_LatestAssignmentWins(t *testing.T) {
	data := nt.Data()
	data.Assignments = append(data.Assignments, network.Assignment{
		ID:         "asg-2",
		VehicleID:  nt.VehicleAssigned,
		RouteID:    nt.Tram3,
		AssignedAt: time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
	})

	snap, issues := network.Build(data, network.DefaultBuildOptions())
	require.Empty(t, issues)

	a, ok := snap.CurrentAssignment(nt.VehicleAssigned)
	require.True(t, ok)
	assert.Equal(t, "asg-2", a.ID)
}

func TestBuild_NilData(t *testing.T) {
	snap, issues := network.Build(nil, network.BuildOptions{})
	assert.Empty(t, issues)
	assert.Zero(t, snap.StopCount())
	assert.Empty(t, snap.Routes())
}

func TestSchedule_RunsOn(t *testing.T) {
	from := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)
	s := network.Schedule{
		Weekdays:  [7]bool{false, true, true, true, true, true, true},
		ValidFrom: &from,
		ValidTo:   &to,
	}

	assert.True(t, s.RunsOn(nt.Monday))
	assert.False(t, s.RunsOn(nt.Sunday), "sunday flag is off")
	assert.True(t, s.RunsOn(time.Date(2024, time.March, 1, 23, 0, 0, 0, time.UTC)), "window start is inclusive")
	assert.True(t, s.RunsOn(time.Date(2024, time.March, 30, 12, 0, 0, 0, time.UTC)))
	assert.False(t, s.RunsOn(time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, s.RunsOn(time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)))
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "06:00", want: 6 * time.Hour},
		{in: "22:15:30", want: 22*time.Hour + 15*time.Minute + 30*time.Second},
		{in: " 7:05 ", want: 7*time.Hour + 5*time.Minute},
		{in: "24:00", wantErr: true},
		{in: "12", wantErr: true},
		{in: "ab:cd", wantErr: true},
		{in: "10:60", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := network.ParseTimeOfDay(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, network.TimeOfDay(tt.want), got)
		})
	}

	assert.Equal(t, "06:05", network.TimeOfDay(6*time.Hour+5*time.Minute).String())
	assert.Equal(t, "22:15:30", network.TimeOfDay(22*time.Hour+15*time.Minute+30*time.Second).String())
}

func TestParseDirection(t *testing.T) {
	d, err := network.ParseDirection("Reverse")
	require.NoError(t, err)
	assert.Equal(t, network.DirectionReverse, d)

	d, err = network.ParseDirection("")
	require.NoError(t, err)
	assert.Equal(t, network.Direction(""), d)

	_, err = network.ParseDirection("sideways")
	assert.Error(t, err)
}
