package models

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus is the dispatcher view of the engine and its dependencies.
type SystemStatus struct {
	Status     HealthStatus      `json:"status"`
	Time       Timestamp         `json:"time"`
	Snapshot   SnapshotStatus    `json:"snapshot"`
	Subsystems []SubsystemStatus `json:"subsystems"`
	Providers  []ProviderStatus  `json:"providers"`
}

// SnapshotStatus describes the network snapshot in effect.
type SnapshotStatus struct {
	Ready    bool       `json:"ready"`
	Version  int64      `json:"version"`
	BuiltAt  *Timestamp `json:"builtAt,omitempty"`
	Stops    int        `json:"stops"`
	Routes   int        `json:"routes"`
	Vehicles int        `json:"vehicles"`
}

// SubsystemStatus represents the status of a subsystem.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}

// ProviderStatus reports a guarded upstream dependency.
type ProviderStatus struct {
	Provider      string       `json:"provider"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}

// RebuildResponse reports the snapshot published by a rebuild.
type RebuildResponse struct {
	Version int64     `json:"version"`
	BuiltAt Timestamp `json:"builtAt"`
	Stops   int       `json:"stops"`
	Routes  int       `json:"routes"`
}
