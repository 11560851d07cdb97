// Package measurement stores sensor readings and derives their statistics.
//
// Statistics are never stored. Every read filters the sensor's measurements
// to the requested window, computes mean, population variance and the
// mean ± 2σ thresholds over that filtered set, and flags each returned
// measurement against those thresholds. Narrowing the window therefore
// changes both the thresholds and which points are outliers.
//
// Service is the entry point used by the HTTP API and the MQTT ingestion
// adapter. Single-sensor calls fail with topology.ErrNotFound when any part of
// the sensor's path is missing; network-wide calls skip sensors that vanish
// while the aggregate is being built.
package measurement
