package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePointWithTime queues a point stamped with ts, converted to UTC. It never
// blocks on the network and is a no-op once the client is closed.
func (c *Client) WritePointWithTime(name string, tags map[string]string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(newPoint(name, tags, fields, ts))
}

func newPoint(name string, tags map[string]string, fields map[string]any, ts time.Time) *write.Point {
	return write.NewPoint(name, tags, fields, ts.UTC())
}
