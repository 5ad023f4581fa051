package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/citytransit/transitengine/internal/geo"
	"github.com/citytransit/transitengine/pkg/polyline"
)

// FixtureRepository loads the network from a JSON document on disk. The file is
// re-read on every load so edits are picked up by the next rebuild.
type FixtureRepository struct {
	path string
}

// NewFixtureRepository creates a repository reading the JSON file at path.
func NewFixtureRepository(path string) *FixtureRepository {
	return &FixtureRepository{path: path}
}

// LoadNetwork reads and decodes the fixture file.
func (r *FixtureRepository) LoadNetwork(_ context.Context) (*Data, error) {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return DecodeFixture(bytes.NewReader(raw))
}

// Ensure FixtureRepository implements Repository.
var _ Repository = (*FixtureRepository)(nil)

// flexString accepts both JSON strings and numbers. Exported dashboards send
// route numbers and ids either way.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func firstOf(values ...flexString) string {
	for _, v := range values {
		if v != "" {
			return string(v)
		}
	}
	return ""
}

type fixtureDoc struct {
	TransportTypes []struct {
		ID   flexString `json:"id"`
		Name string     `json:"name"`
	} `json:"transportTypes"`
	Stops []struct {
		ID     flexString `json:"id"`
		StopID flexString `json:"stopId"`
		Name   string     `json:"name"`
		Lon    float64    `json:"lon"`
		Lat    float64    `json:"lat"`
	} `json:"stops"`
	Routes      []fixtureRoute `json:"routes"`
	Schedules   []fixtureSched `json:"schedules"`
	Vehicles    []fixtureVeh   `json:"vehicles"`
	Assignments []struct {
		ID         flexString `json:"id"`
		VehicleID  flexString `json:"vehicleId"`
		DriverID   flexString `json:"driverId"`
		RouteID    flexString `json:"routeId"`
		AssignedAt time.Time  `json:"assignedAt"`
	} `json:"assignments"`
}

type fixtureRoute struct {
	ID              flexString `json:"id"`
	RouteID         flexString `json:"routeId"`
	Number          flexString `json:"number"`
	RouteNumber     flexString `json:"routeNumber"`
	TransportTypeID flexString `json:"transportTypeId"`
	Direction       string     `json:"direction"`
	IsActive        *bool      `json:"isActive"`
	Stops           []struct {
		ID               flexString `json:"id"`
		StopID           flexString `json:"stopId"`
		DistanceToNextKm *float64   `json:"distanceToNextKm"`
	} `json:"stops"`
	// Points are [lon, lat] pairs.
	Points   [][2]float64 `json:"points"`
	Polyline string       `json:"polyline"`
}

type fixtureSched struct {
	ID          flexString `json:"id"`
	RouteID     flexString `json:"routeId"`
	WorkStart   string     `json:"workStart"`
	WorkEnd     string     `json:"workEnd"`
	IntervalMin int        `json:"intervalMin"`
	Sunday      bool       `json:"sunday"`
	Monday      bool       `json:"monday"`
	Tuesday     bool       `json:"tuesday"`
	Wednesday   bool       `json:"wednesday"`
	Thursday    bool       `json:"thursday"`
	Friday      bool       `json:"friday"`
	Saturday    bool       `json:"saturday"`
	ValidFrom   string     `json:"validFrom"`
	ValidTo     string     `json:"validTo"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type fixtureVeh struct {
	ID          flexString  `json:"id"`
	FleetNumber flexString  `json:"fleetNumber"`
	RouteID     *flexString `json:"routeId"`
	Capacity    int         `json:"capacity"`
}

// DecodeFixture decodes a JSON network document, normalizing the alternate field
// names (id/routeId, number/routeNumber, id/stopId) into the canonical model.
func DecodeFixture(r io.Reader) (*Data, error) {
	var doc fixtureDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}

	var data Data
	for _, t := range doc.TransportTypes {
		data.TransportTypes = append(data.TransportTypes, TransportType{ID: string(t.ID), Name: t.Name})
	}
	for _, s := range doc.Stops {
		data.Stops = append(data.Stops, Stop{
			ID:    firstOf(s.ID, s.StopID),
			Name:  s.Name,
			Point: geo.Point{Lat: s.Lat, Lon: s.Lon},
		})
	}

	for _, fr := range doc.Routes {
		id := firstOf(fr.ID, fr.RouteID)
		dir, err := ParseDirection(fr.Direction)
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", id, err)
		}
		active := true
		if fr.IsActive != nil {
			active = *fr.IsActive
		}
		data.Routes = append(data.Routes, Route{
			ID:              id,
			Number:          firstOf(fr.Number, fr.RouteNumber),
			TransportTypeID: string(fr.TransportTypeID),
			Direction:       dir,
			Active:          active,
		})
		for i, rs := range fr.Stops {
			data.RouteStops = append(data.RouteStops, RouteStop{
				RouteID:          id,
				StopID:           firstOf(rs.StopID, rs.ID),
				Ordinal:          i,
				DistanceToNextKm: rs.DistanceToNextKm,
			})
		}
		for i, p := range fixturePoints(fr) {
			data.RoutePoints = append(data.RoutePoints, RoutePoint{RouteID: id, Sequence: i, Point: p})
		}
	}

	for _, fs := range doc.Schedules {
		s, err := fs.schedule()
		if err != nil {
			return nil, fmt.Errorf("schedule %s: %w", fs.ID, err)
		}
		data.Schedules = append(data.Schedules, s)
	}

	for _, fv := range doc.Vehicles {
		v := Vehicle{ID: string(fv.ID), FleetNumber: string(fv.FleetNumber), Capacity: fv.Capacity}
		if fv.RouteID != nil && *fv.RouteID != "" {
			id := string(*fv.RouteID)
			v.RouteID = &id
		}
		data.Vehicles = append(data.Vehicles, v)
	}
	for _, a := range doc.Assignments {
		data.Assignments = append(data.Assignments, Assignment{
			ID:         string(a.ID),
			VehicleID:  string(a.VehicleID),
			DriverID:   string(a.DriverID),
			RouteID:    string(a.RouteID),
			AssignedAt: a.AssignedAt,
		})
	}

	return &data, nil
}

func fixturePoints(fr fixtureRoute) []geo.Point {
	if len(fr.Points) > 0 {
		out := make([]geo.Point, len(fr.Points))
		for i, p := range fr.Points {
			out[i] = geo.Point{Lon: p[0], Lat: p[1]}
		}
		return out
	}
	return polyline.Decode(fr.Polyline)
}

func (fs fixtureSched) schedule() (Schedule, error) {
	start, err := ParseTimeOfDay(fs.WorkStart)
	if err != nil {
		return Schedule{}, err
	}
	end, err := ParseTimeOfDay(fs.WorkEnd)
	if err != nil {
		return Schedule{}, err
	}
	from, err := parseDate(fs.ValidFrom)
	if err != nil {
		return Schedule{}, err
	}
	to, err := parseDate(fs.ValidTo)
	if err != nil {
		return Schedule{}, err
	}

	return Schedule{
		ID:          string(fs.ID),
		RouteID:     string(fs.RouteID),
		WorkStart:   start,
		WorkEnd:     end,
		IntervalMin: fs.IntervalMin,
		Weekdays: [7]bool{
			fs.Sunday, fs.Monday, fs.Tuesday, fs.Wednesday, fs.Thursday, fs.Friday, fs.Saturday,
		},
		ValidFrom: from,
		ValidTo:   to,
		CreatedAt: fs.CreatedAt,
	}, nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return &t, nil
}
