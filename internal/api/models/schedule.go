package models

// ScheduleResponse is the timetable of one directional route on one service date.
type ScheduleResponse struct {
	Route       RouteSummary    `json:"route"`
	ServiceDate string          `json:"serviceDate"`
	Schedule    *ScheduleWindow `json:"schedule,omitempty"`
	Stops       []ScheduleStop  `json:"stops"`
	Departures  []Timestamp     `json:"departures"`
	Arrivals    []Timestamp     `json:"arrivals"`
	// Geometry is the route path as an encoded polyline.
	Geometry string `json:"geometry,omitempty"`
}

// ScheduleWindow is the schedule in effect.
type ScheduleWindow struct {
	ID              string `json:"id"`
	WorkStart       string `json:"workStart"`
	WorkEnd         string `json:"workEnd"`
	IntervalMinutes int    `json:"intervalMinutes"`
}

// ScheduleStop is a stop's offset from the first departure.
type ScheduleStop struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Ordinal       int     `json:"ordinal"`
	OffsetMinutes float64 `json:"offsetMinutes"`
}
