package models

// NearbyStopsResponse is returned by GET /v1/stops:nearby.
type NearbyStopsResponse struct {
	Stops []NearbyStop `json:"stops"`
	Count int          `json:"count"`
}

// NearbyStop is a stop around the query point.
type NearbyStop struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Location       Point          `json:"location"`
	DistanceMeters float64        `json:"distanceMeters"`
	Routes         []RouteSummary `json:"routes"`
}

// RouteSummary names a directional route.
type RouteSummary struct {
	ID            string `json:"id"`
	Number        string `json:"number"`
	TransportType string `json:"transportType"`
	Direction     string `json:"direction"`
}
