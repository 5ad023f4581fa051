// Package networktest provides a small reference network for tests.
//
// Line 12 (bus) runs west to east through X, A, B and Y with stored leg distances
// of 1.0, 1.2 and 0.8 km, every 15 minutes 06:00-22:00 Monday to Saturday. Its
// reverse direction has no stored distances or geometry. Tram 3 runs north from B
// through C to D every 10 minutes, daily. Line 5 (bus) is a single 10 km leg from
// P to Q with its own geometry, every 30 minutes 06:00-22:00 daily.
package networktest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/citytransit/transitengine/internal/geo"
	"github.com/citytransit/transitengine/internal/network"
)

// Identifiers used by the reference network.
const (
	StopX = "stop-x"
	StopA = "stop-a"
	StopB = "stop-b"
	StopY = "stop-y"
	StopC = "stop-c"
	StopD = "stop-d"
	StopP = "stop-p"
	StopQ = "stop-q"

	Route12Forward = "route-12-f"
	Route12Reverse = "route-12-r"
	Tram3          = "route-t3"
	Route5         = "route-5"

	FleetAssigned   = "1001"
	FleetUnassigned = "1002"
	FleetRouteOnly  = "1003"
	FleetLine5      = "1005"

	VehicleAssigned   = "veh-1001"
	VehicleUnassigned = "veh-1002"
	VehicleRouteOnly  = "veh-1003"
	VehicleLine5      = "veh-1005"
)

// Stop coordinates.
var (
	PointX = geo.Point{Lat: 50.4500, Lon: 30.5000}
	PointA = geo.Point{Lat: 50.4500, Lon: 30.5141}
	PointB = geo.Point{Lat: 50.4500, Lon: 30.5310}
	PointY = geo.Point{Lat: 50.4500, Lon: 30.5423}
	PointC = geo.Point{Lat: 50.4581, Lon: 30.5310}
	PointD = geo.Point{Lat: 50.4662, Lon: 30.5310}
	PointP = geo.Point{Lat: 50.4000, Lon: 30.4000}
	PointQ = geo.Point{Lat: 50.4000, Lon: 30.5411}
)

// Monday is a service date on which every line runs.
var Monday = time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)

// Sunday is a service date on which line 12 does not run.
var Sunday = time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)

// At returns hh:mm on the given service date.
func At(date time.Time, hh, mm int) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, hh, mm, 0, 0, date.Location())
}

func km(v float64) *float64 { return &v }

func strPtr(s string) *string { return &s }

func tod(s string) network.TimeOfDay {
	t, err := network.ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Data returns a fresh copy of the reference network.
func Data() *network.Data {
	created := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	everyDay := [7]bool{true, true, true, true, true, true, true}
	workingWeek := [7]bool{false, true, true, true, true, true, true}

	return &network.Data{
		TransportTypes: []network.TransportType{
			{ID: "tt-bus", Name: "Bus"},
			{ID: "tt-tram", Name: "Tram"},
		},
		Stops: []network.Stop{
			{ID: StopX, Name: "X Square", Point: PointX},
			{ID: StopA, Name: "A Street", Point: PointA},
			{ID: StopB, Name: "B Market", Point: PointB},
			{ID: StopY, Name: "Y Station", Point: PointY},
			{ID: StopC, Name: "C Park", Point: PointC},
			{ID: StopD, Name: "D Depot", Point: PointD},
			{ID: StopP, Name: "P Terminal", Point: PointP},
			{ID: StopQ, Name: "Q Terminal", Point: PointQ},
		},
		Routes: []network.Route{
			{ID: Route12Forward, Number: "12", TransportTypeID: "tt-bus", Direction: network.DirectionForward, Active: true},
			{ID: Route12Reverse, Number: "12", TransportTypeID: "tt-bus", Direction: network.DirectionReverse, Active: true},
			{ID: Tram3, Number: "3", TransportTypeID: "tt-tram", Direction: network.DirectionForward, Active: true},
			{ID: Route5, Number: "5", TransportTypeID: "tt-bus", Direction: network.DirectionForward, Active: true},
		},
		RouteStops: []network.RouteStop{
			{RouteID: Route12Forward, StopID: StopX, Ordinal: 1, DistanceToNextKm: km(1.0)},
			{RouteID: Route12Forward, StopID: StopA, Ordinal: 2, DistanceToNextKm: km(1.2)},
			{RouteID: Route12Forward, StopID: StopB, Ordinal: 3, DistanceToNextKm: km(0.8)},
			{RouteID: Route12Forward, StopID: StopY, Ordinal: 4},

			{RouteID: Route12Reverse, StopID: StopY, Ordinal: 0},
			{RouteID: Route12Reverse, StopID: StopB, Ordinal: 1},
			{RouteID: Route12Reverse, StopID: StopA, Ordinal: 2},
			{RouteID: Route12Reverse, StopID: StopX, Ordinal: 3},

			{RouteID: Tram3, StopID: StopB, Ordinal: 0, DistanceToNextKm: km(0.9)},
			{RouteID: Tram3, StopID: StopC, Ordinal: 1, DistanceToNextKm: km(0.9)},
			{RouteID: Tram3, StopID: StopD, Ordinal: 2},

			{RouteID: Route5, StopID: StopP, Ordinal: 0, DistanceToNextKm: km(10.0)},
			{RouteID: Route5, StopID: StopQ, Ordinal: 1},
		},
		RoutePoints: []network.RoutePoint{
			{RouteID: Route12Forward, Sequence: 0, Point: PointX},
			{RouteID: Route12Forward, Sequence: 1, Point: PointA},
			{RouteID: Route12Forward, Sequence: 2, Point: PointB},
			{RouteID: Route12Forward, Sequence: 3, Point: PointY},
			{RouteID: Route5, Sequence: 0, Point: PointP},
			{RouteID: Route5, Sequence: 1, Point: PointQ},
		},
		Schedules: []network.Schedule{
			{ID: "sch-12f", RouteID: Route12Forward, WorkStart: tod("06:00"), WorkEnd: tod("22:00"), IntervalMin: 15, Weekdays: workingWeek, CreatedAt: created},
			{ID: "sch-12r", RouteID: Route12Reverse, WorkStart: tod("06:05"), WorkEnd: tod("22:05"), IntervalMin: 15, Weekdays: workingWeek, CreatedAt: created},
			{ID: "sch-t3", RouteID: Tram3, WorkStart: tod("06:00"), WorkEnd: tod("23:00"), IntervalMin: 10, Weekdays: everyDay, CreatedAt: created},
			{ID: "sch-5", RouteID: Route5, WorkStart: tod("06:00"), WorkEnd: tod("22:00"), IntervalMin: 30, Weekdays: everyDay, CreatedAt: created},
		},
		Vehicles: []network.Vehicle{
			{ID: VehicleAssigned, FleetNumber: FleetAssigned, Capacity: 80},
			{ID: VehicleUnassigned, FleetNumber: FleetUnassigned, Capacity: 80},
			{ID: VehicleRouteOnly, FleetNumber: FleetRouteOnly, RouteID: strPtr(Tram3), Capacity: 120},
			{ID: VehicleLine5, FleetNumber: FleetLine5, Capacity: 80},
		},
		Assignments: []network.Assignment{
			{ID: "asg-1", VehicleID: VehicleAssigned, DriverID: "drv-1", RouteID: Route12Forward, AssignedAt: created},
			{ID: "asg-5", VehicleID: VehicleLine5, DriverID: "drv-5", RouteID: Route5, AssignedAt: created},
		},
	}
}

// Snapshot builds the reference network with default speeds and fails the test on
// any build issue.
func Snapshot(tb testing.TB) *network.Snapshot {
	tb.Helper()

	snap, issues := network.Build(Data(), network.DefaultBuildOptions())
	require.Empty(tb, issues)
	return snap
}

// Lerp returns the point a fraction f of the way from a to b.
func Lerp(a, b geo.Point, f float64) geo.Point {
	return geo.Point{Lat: a.Lat + f*(b.Lat-a.Lat), Lon: a.Lon + f*(b.Lon-a.Lon)}
}
