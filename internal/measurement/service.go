package measurement

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/geocontrol/geocontrol-core/internal/infrastructure/metrics"
	"github.com/geocontrol/geocontrol-core/internal/topology"
)

// Logger defines the logging interface used by the Service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// SensorLookup resolves sensors through their ancestors.
// topology.SQLiteRepository satisfies it.
type SensorLookup interface {
	GetSensor(ctx context.Context, networkCode, gatewayMac, mac string) (*topology.Sensor, error)
	ListNetworkSensors(ctx context.Context, networkCode string) ([]topology.SensorRef, error)
	ListGatewaySensors(ctx context.Context, networkCode, gatewayMac string) ([]topology.SensorRef, error)
}

// Mirror receives a copy of every stored measurement.
type Mirror interface {
	WriteMeasurement(key SensorKey, m Measurement)
}

// Service composes the sensor hierarchy, the measurement store and the
// statistics engine.
//
// Single-sensor calls are strict: a missing network, gateway or sensor is
// returned as topology.ErrNotFound. Network-wide calls are lenient: sensors
// that disappear while the call fans out are left out of the result. Any
// other error fails the call in both cases.
type Service struct {
	sensors SensorLookup
	repo    Repository
	mirror  Mirror
	logger  Logger
}

// NewService creates a measurement service.
func NewService(sensors SensorLookup, repo Repository) *Service {
	return &Service{
		sensors: sensors,
		repo:    repo,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// SetMirror sets a secondary sink that receives every stored measurement.
func (s *Service) SetMirror(m Mirror) {
	s.mirror = m
}

// Store appends ms to the sensor identified by key.
func (s *Service) Store(ctx context.Context, key SensorKey, ms []Measurement) error {
	for i, m := range ms {
		if err := validateMeasurement(m); err != nil {
			return fmt.Errorf("measurement %d: %w", i, err)
		}
	}

	sensor, err := s.sensors.GetSensor(ctx, key.NetworkCode, key.GatewayMac, key.SensorMac)
	if err != nil {
		return err
	}

	stored := make([]Measurement, len(ms))
	for i, m := range ms {
		stored[i] = Measurement{CreatedAt: m.CreatedAt.UTC(), Value: m.Value}
	}
	if err := s.repo.Append(ctx, sensor.ID, stored); err != nil {
		return fmt.Errorf("storing measurements for %s: %w", key, err)
	}
	metrics.MeasurementsStored.Add(float64(len(stored)))

	if s.mirror != nil {
		for _, m := range stored {
			s.mirror.WriteMeasurement(key, m)
		}
	}

	s.logger.Debug("measurements stored", "sensor", key.String(), "count", len(stored))
	return nil
}

// SensorMeasurements returns the sensor's measurements inside w, each flagged
// against the statistics of the same window.
func (s *Service) SensorMeasurements(ctx context.Context, key SensorKey, w Window) (Result, error) {
	return s.strictResult(ctx, key, w)
}

// SensorStats returns the statistics of the sensor's measurements inside w.
func (s *Service) SensorStats(ctx context.Context, key SensorKey, w Window) (Stats, error) {
	r, err := s.strictResult(ctx, key, w)
	if err != nil {
		return Stats{}, err
	}
	return r.Stats, nil
}

// SensorOutliers returns only the flagged measurements of the sensor inside w,
// together with the statistics they were judged against.
func (s *Service) SensorOutliers(ctx context.Context, key SensorKey, w Window) (Result, error) {
	r, err := s.strictResult(ctx, key, w)
	if err != nil {
		return Result{}, err
	}
	r.Measurements = Outliers(r.Measurements)
	return r, nil
}

// NetworkMeasurements returns one Result per sensor of the network.
func (s *Service) NetworkMeasurements(ctx context.Context, networkCode string, q NetworkQuery) ([]Result, error) {
	return s.networkAggregate(ctx, networkCode, q, keepAll)
}

// NetworkStats returns the statistics of every sensor of the network, without
// the measurements themselves.
func (s *Service) NetworkStats(ctx context.Context, networkCode string, q NetworkQuery) ([]Result, error) {
	return s.networkAggregate(ctx, networkCode, q, statsOnly)
}

// NetworkOutliers returns the flagged measurements of every sensor of the
// network.
func (s *Service) NetworkOutliers(ctx context.Context, networkCode string, q NetworkQuery) ([]Result, error) {
	return s.networkAggregate(ctx, networkCode, q, outliersOnly)
}

// GatewayMeasurements returns one Result per sensor of the gateway.
func (s *Service) GatewayMeasurements(ctx context.Context, networkCode, gatewayMac string, q NetworkQuery) ([]Result, error) {
	return s.gatewayAggregate(ctx, networkCode, gatewayMac, q, keepAll)
}

// GatewayStats returns the statistics of every sensor of the gateway.
func (s *Service) GatewayStats(ctx context.Context, networkCode, gatewayMac string, q NetworkQuery) ([]Result, error) {
	return s.gatewayAggregate(ctx, networkCode, gatewayMac, q, statsOnly)
}

// GatewayOutliers returns the flagged measurements of every sensor of the
// gateway.
func (s *Service) GatewayOutliers(ctx context.Context, networkCode, gatewayMac string, q NetworkQuery) ([]Result, error) {
	return s.gatewayAggregate(ctx, networkCode, gatewayMac, q, outliersOnly)
}

func keepAll(r Result) Result { return r }

func statsOnly(r Result) Result {
	r.Measurements = nil
	return r
}

func outliersOnly(r Result) Result {
	r.Measurements = Outliers(r.Measurements)
	return r
}

// networkAggregate fans out over the network's sensors. The network itself
// must exist.
func (s *Service) networkAggregate(ctx context.Context, networkCode string, q NetworkQuery, shape func(Result) Result) ([]Result, error) {
	refs, err := s.sensors.ListNetworkSensors(ctx, networkCode)
	if err != nil {
		return nil, err
	}
	return s.collect(ctx, networkCode, refs, q, shape)
}

// gatewayAggregate fans out over the gateway's sensors. The network and the
// gateway must exist.
func (s *Service) gatewayAggregate(ctx context.Context, networkCode, gatewayMac string, q NetworkQuery, shape func(Result) Result) ([]Result, error) {
	refs, err := s.sensors.ListGatewaySensors(ctx, networkCode, gatewayMac)
	if err != nil {
		return nil, err
	}
	return s.collect(ctx, networkCode, refs, q, shape)
}

// strictResult is sensorResult for the single-sensor queries. Only these
// count towards the outliers-flagged metric; aggregates do not.
func (s *Service) strictResult(ctx context.Context, key SensorKey, w Window) (Result, error) {
	r, err := s.sensorResult(ctx, key, w)
	if err != nil {
		return Result{}, err
	}
	if n := len(Outliers(r.Measurements)); n > 0 {
		metrics.OutliersFlagged.Add(float64(n))
	}
	return r, nil
}

// sensorResult loads and analyses one sensor. Lookup failures are returned
// unchanged so callers can tell NotFound apart from other errors.
func (s *Service) sensorResult(ctx context.Context, key SensorKey, w Window) (Result, error) {
	sensor, err := s.sensors.GetSensor(ctx, key.NetworkCode, key.GatewayMac, key.SensorMac)
	if err != nil {
		return Result{}, err
	}

	ms, err := s.repo.ListBySensor(ctx, sensor.ID, w)
	if err != nil {
		return Result{}, fmt.Errorf("loading measurements for %s: %w", key, err)
	}

	stats, flagged := Analyze(ms, w)
	return Result{
		SensorMacAddress: sensor.MacAddress,
		Stats:            stats,
		Measurements:     flagged,
	}, nil
}

// collect analyses every listed sensor and keeps only the successes.
func (s *Service) collect(ctx context.Context, networkCode string, refs []topology.SensorRef, q NetworkQuery, shape func(Result) Result) ([]Result, error) {
	allowed := allowList(q.SensorMacs)
	results := make([]Result, 0, len(refs))
	for _, ref := range refs {
		if allowed != nil && !allowed[ref.SensorMac] {
			continue
		}
		key := SensorKey{NetworkCode: networkCode, GatewayMac: ref.GatewayMac, SensorMac: ref.SensorMac}
		r, err := s.sensorResult(ctx, key, q.Window)
		if errors.Is(err, topology.ErrNotFound) {
			s.logger.Debug("sensor vanished during aggregate", "sensor", key.String())
			continue
		}
		if err != nil {
			return nil, err
		}
		results = append(results, shape(r))
	}
	return results, nil
}

func allowList(macs []string) map[string]bool {
	if len(macs) == 0 {
		return nil
	}
	set := make(map[string]bool, len(macs))
	for _, m := range macs {
		set[m] = true
	}
	return set
}

// MaxMagnitude bounds the absolute value of a stored measurement. It keeps
// variance and thresholds finite for any realistic number of samples.
const MaxMagnitude = 1e100

func validateMeasurement(m Measurement) error {
	if m.CreatedAt.IsZero() {
		return fmt.Errorf("%w: createdAt is required", ErrInvalidMeasurement)
	}
	if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		return fmt.Errorf("%w: value must be a finite number", ErrInvalidMeasurement)
	}
	if math.Abs(m.Value) > MaxMagnitude {
		return fmt.Errorf("%w: value magnitude exceeds %g", ErrInvalidMeasurement, MaxMagnitude)
	}
	return nil
}

// String returns the key as network/gateway/sensor.
func (k SensorKey) String() string {
	return k.NetworkCode + "/" + k.GatewayMac + "/" + k.SensorMac
}
