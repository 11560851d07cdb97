// Package influxdb writes time-series points to InfluxDB v2.
//
// GeoControl uses it as an optional mirror of stored measurements so that
// dashboards can query raw series without touching the API. The relational
// store stays authoritative; statistics never read from InfluxDB.
//
// Writes go through the non-blocking WriteAPI and are batched by BatchSize
// and FlushInterval. Failures surface asynchronously via SetOnError.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.WritePointWithTime("measurement", tags, fields, ts)
package influxdb
