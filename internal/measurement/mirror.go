package measurement

import "time"

// pointName is the series every mirrored measurement is written to.
const pointName = "measurement"

// PointWriter queues time-series points. influxdb.Client satisfies it.
type PointWriter interface {
	WritePointWithTime(name string, tags map[string]string, fields map[string]any, ts time.Time)
}

// PointMirror is a Mirror that writes each measurement as one point tagged
// with its network, gateway and sensor.
type PointMirror struct {
	w PointWriter
}

// NewPointMirror creates a Mirror writing to w.
func NewPointMirror(w PointWriter) *PointMirror {
	return &PointMirror{w: w}
}

// WriteMeasurement implements Mirror.
func (p *PointMirror) WriteMeasurement(key SensorKey, m Measurement) {
	p.w.WritePointWithTime(
		pointName,
		map[string]string{
			"network": key.NetworkCode,
			"gateway": key.GatewayMac,
			"sensor":  key.SensorMac,
		},
		map[string]any{"value": m.Value},
		m.CreatedAt.UTC(),
	)
}
