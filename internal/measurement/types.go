package measurement

import "time"

// Measurement is one reading of a sensor.
//
// IsOutlier is nil as stored and set only on results returned by Service.
type Measurement struct {
	CreatedAt time.Time `json:"createdAt"`
	Value     float64   `json:"value"`
	IsOutlier *bool     `json:"isOutlier,omitempty"`
}

// Stats summarises a set of measurements inside a time window.
type Stats struct {
	StartDate      *time.Time `json:"startDate,omitempty"`
	EndDate        *time.Time `json:"endDate,omitempty"`
	Mean           float64    `json:"mean"`
	Variance       float64    `json:"variance"`
	UpperThreshold float64    `json:"upperThreshold"`
	LowerThreshold float64    `json:"lowerThreshold"`
}

// Result is the per-sensor view returned by Service.
type Result struct {
	SensorMacAddress string        `json:"sensorMacAddress"`
	Stats            Stats         `json:"stats"`
	Measurements     []Measurement `json:"measurements,omitempty"`
}

// SensorKey addresses a sensor through its ancestors.
type SensorKey struct {
	NetworkCode string
	GatewayMac  string
	SensorMac   string
}

// NetworkQuery narrows a network- or gateway-wide read.
type NetworkQuery struct {
	// SensorMacs restricts the read to these sensors. Empty means every
	// sensor in scope; MACs outside the scope are ignored.
	SensorMacs []string
	Window     Window
}
