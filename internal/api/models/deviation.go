package models

// Deviation is the schedule adherence of one vehicle.
type Deviation struct {
	FleetNumber    string     `json:"fleetNumber"`
	VehicleID      string     `json:"vehicleId"`
	RouteID        string     `json:"routeId,omitempty"`
	AssignmentRef  string     `json:"assignmentRef,omitempty"`
	TripRef        string     `json:"tripRef,omitempty"`
	TripDeparture  *Timestamp `json:"tripDeparture,omitempty"`
	Status         string     `json:"status"`
	State          string     `json:"state"`
	DelayMinutes   *float64   `json:"delayMinutes,omitempty"`
	EvaluatedAt    Timestamp  `json:"evaluatedAt"`
	LastFix        *Fix       `json:"lastFix,omitempty"`
	OffsetMeters   *float64   `json:"offsetMeters,omitempty"`
	ExpectedStop   *StopRef   `json:"expectedStop,omitempty"`
	LastPassedStop *StopRef   `json:"lastPassedStop,omitempty"`
}

// Fix is a reported vehicle position.
type Fix struct {
	Location   Point     `json:"location"`
	RecordedAt Timestamp `json:"recordedAt"`
}

// DeviationBoard lists deviations for the dispatcher board.
type DeviationBoard struct {
	AsOf       Timestamp      `json:"asOf"`
	Deviations []Deviation    `json:"deviations"`
	Counts     map[string]int `json:"counts"`
}
