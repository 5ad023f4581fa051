package models

// PlanRequest is the body of POST /v1/journeys:plan.
type PlanRequest struct {
	From *Point `json:"from" validate:"required"`
	To   *Point `json:"to" validate:"required"`
	// DepartureTime defaults to now.
	DepartureTime *Timestamp   `json:"departureTime,omitempty"`
	Options       *PlanOptions `json:"options,omitempty"`
}

// PlanOptions override the configured planner defaults.
type PlanOptions struct {
	RadiusMeters   *float64 `json:"radiusMeters,omitempty" validate:"omitempty,gte=0"`
	MaxWaitMinutes *float64 `json:"maxWaitMinutes,omitempty" validate:"omitempty,gte=0"`
	MaxResults     *int     `json:"maxResults,omitempty" validate:"omitempty,gte=0"`
	MaxWalkMeters  *float64 `json:"maxWalkMeters,omitempty" validate:"omitempty,gte=0"`
}

// PlanResponse lists itineraries, best first.
type PlanResponse struct {
	Options []RouteOption `json:"options"`
	Count   int           `json:"count"`
}

// RouteOption is one itinerary.
type RouteOption struct {
	Segments        []Segment `json:"segments"`
	WalkToStop      *Walk     `json:"walkToStop,omitempty"`
	WalkFromStop    *Walk     `json:"walkFromStop,omitempty"`
	Transfers       int       `json:"transfers"`
	TotalMinutes    float64   `json:"totalMinutes"`
	TotalDistanceKm float64   `json:"totalDistanceKm"`
	Departure       Timestamp `json:"departure"`
	Arrival         Timestamp `json:"arrival"`
}

// Segment is one ride on a single route.
type Segment struct {
	RouteID       string    `json:"routeId"`
	RouteNumber   string    `json:"routeNumber"`
	TransportType string    `json:"transportType"`
	Direction     string    `json:"direction"`
	From          StopRef   `json:"from"`
	To            StopRef   `json:"to"`
	DistanceKm    float64   `json:"distanceKm"`
	TravelMinutes float64   `json:"travelMinutes"`
	WaitMinutes   float64   `json:"waitMinutes"`
	Departure     Timestamp `json:"departure"`
	Arrival       Timestamp `json:"arrival"`
}

// Walk is a straight-line walking leg.
type Walk struct {
	DistanceMeters float64 `json:"distanceMeters"`
	Minutes        float64 `json:"minutes"`
}

// StopRef identifies a stop on a route.
type StopRef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Ordinal  int    `json:"ordinal"`
	Location *Point `json:"location,omitempty"`
}
