// Package ingest stores measurements that gateways publish over MQTT.
//
// Each message on {prefix}/{networkCode}/{gatewayMac}/{sensorMac} carries the
// same body as the HTTP store endpoint and goes through the same
// measurement.Service.Store call. Messages for unknown sensors or with
// malformed bodies are logged and dropped; MQTT has no caller to report to.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocontrol/geocontrol-core/internal/infrastructure/logging"
	"github.com/geocontrol/geocontrol-core/internal/infrastructure/metrics"
	"github.com/geocontrol/geocontrol-core/internal/infrastructure/mqtt"
	"github.com/geocontrol/geocontrol-core/internal/measurement"
	"github.com/geocontrol/geocontrol-core/internal/topology"
)

// storeTimeout bounds one message's database work.
const storeTimeout = 5 * time.Second

// Outcome labels for metrics.IngestMessages.
const (
	resultStored         = "stored"
	resultInvalidTopic   = "invalid_topic"
	resultInvalidPayload = "invalid_payload"
	resultUnknownSensor  = "unknown_sensor"
	resultError          = "error"
)

// Store is the write side of measurement.Service.
type Store interface {
	Store(ctx context.Context, key measurement.SensorKey, ms []measurement.Measurement) error
}

// Subscriber is the subset of *mqtt.Client the ingester needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Ingester turns MQTT messages into stored measurements.
type Ingester struct {
	store  Store
	prefix string
	logger *logging.Logger
}

// New creates an Ingester for topics under prefix.
func New(store Store, prefix string, logger *logging.Logger) *Ingester {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Ingester{store: store, prefix: prefix, logger: logger}
}

// Start subscribes to every sensor topic under the prefix.
func (i *Ingester) Start(sub Subscriber, qos byte) error {
	topic := mqtt.Topics{}.AllSensorMeasurements(i.prefix)
	if err := sub.Subscribe(topic, qos, i.HandleMessage); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	i.logger.Info("measurement ingest subscribed", "topic", topic)
	return nil
}

// HandleMessage decodes and stores one message. Only unexpected storage
// failures are returned; rejected messages are counted, logged and dropped.
func (i *Ingester) HandleMessage(topic string, payload []byte) error {
	networkCode, gatewayMac, sensorMac, err := mqtt.ParseSensorTopic(i.prefix, topic)
	if err != nil {
		i.drop(resultInvalidTopic, topic, err)
		return nil
	}
	key := measurement.SensorKey{NetworkCode: networkCode, GatewayMac: gatewayMac, SensorMac: sensorMac}

	ms, err := measurement.DecodeBatch(payload)
	if err != nil {
		i.drop(resultInvalidPayload, topic, err)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	err = i.store.Store(ctx, key, ms)
	switch {
	case err == nil:
		metrics.IngestMessages.WithLabelValues(resultStored).Inc()
		i.logger.Debug("ingested measurements", "sensor", key.String(), "count", len(ms))
		return nil
	case errors.Is(err, topology.ErrNotFound):
		i.drop(resultUnknownSensor, topic, err)
		return nil
	case errors.Is(err, measurement.ErrInvalidMeasurement):
		i.drop(resultInvalidPayload, topic, err)
		return nil
	default:
		metrics.IngestMessages.WithLabelValues(resultError).Inc()
		return fmt.Errorf("storing measurements for %s: %w", key, err)
	}
}

func (i *Ingester) drop(result, topic string, err error) {
	metrics.IngestMessages.WithLabelValues(result).Inc()
	i.logger.Warn("dropping ingest message", "topic", topic, "reason", result, "error", err)
}
