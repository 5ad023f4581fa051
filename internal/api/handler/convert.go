package handler

import (
	"github.com/citytransit/transitengine/internal/api/models"
	"github.com/citytransit/transitengine/internal/deviation"
	"github.com/citytransit/transitengine/internal/planner"
)

func toRouteOptions(options []planner.RouteOption) []models.RouteOption {
	out := make([]models.RouteOption, 0, len(options))
	for _, o := range options {
		ro := models.RouteOption{
			Segments:        make([]models.Segment, 0, len(o.Segments)),
			WalkToStop:      toWalk(o.WalkToStop),
			WalkFromStop:    toWalk(o.WalkFromStop),
			Transfers:       o.Transfers,
			TotalMinutes:    o.TotalMinutes,
			TotalDistanceKm: o.TotalDistanceKm,
			Departure:       models.Timestamp(o.Departure),
			Arrival:         models.Timestamp(o.Arrival),
		}
		for _, s := range o.Segments {
			ro.Segments = append(ro.Segments, models.Segment{
				RouteID:       s.RouteID,
				RouteNumber:   s.RouteNumber,
				TransportType: s.TransportType,
				Direction:     string(s.Direction),
				From:          toPlanStop(s.From),
				To:            toPlanStop(s.To),
				DistanceKm:    s.DistanceKm,
				TravelMinutes: s.TravelMinutes,
				WaitMinutes:   s.WaitMinutes,
				Departure:     models.Timestamp(s.Departure),
				Arrival:       models.Timestamp(s.Arrival),
			})
		}
		out = append(out, ro)
	}
	return out
}

func toWalk(w *planner.Walk) *models.Walk {
	if w == nil {
		return nil
	}
	return &models.Walk{DistanceMeters: w.DistanceMeters, Minutes: w.Minutes}
}

func toPlanStop(s planner.StopRef) models.StopRef {
	loc := models.NewPoint(s.Point)
	return models.StopRef{ID: s.ID, Name: s.Name, Ordinal: s.Ordinal, Location: &loc}
}

func toDeviation(res *deviation.Result) models.Deviation {
	d := models.Deviation{
		FleetNumber:   res.FleetNumber,
		VehicleID:     res.VehicleID,
		RouteID:       res.RouteID,
		AssignmentRef: res.AssignmentRef,
		TripRef:       res.TripRef,
		TripDeparture: models.NewTimestamp(res.TripDeparture),
		Status:        string(res.Status),
		State:         string(res.State),
		DelayMinutes:  res.DelayMinutes,
		EvaluatedAt:   models.Timestamp(res.EvaluatedAt),
		OffsetMeters:  res.OffsetMeters,
	}
	if res.Fix != nil {
		d.LastFix = &models.Fix{
			Location:   models.NewPoint(res.Fix.Point),
			RecordedAt: models.Timestamp(res.Fix.RecordedAt),
		}
	}
	if res.ExpectedStop != nil {
		d.ExpectedStop = &models.StopRef{ID: res.ExpectedStop.ID, Name: res.ExpectedStop.Name, Ordinal: res.ExpectedStop.Ordinal}
	}
	if res.LastPassedStop != nil {
		d.LastPassedStop = &models.StopRef{ID: res.LastPassedStop.ID, Name: res.LastPassedStop.Name, Ordinal: res.LastPassedStop.Ordinal}
	}
	return d
}
