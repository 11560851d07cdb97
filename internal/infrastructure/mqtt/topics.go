package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefixSystem is the base for service status topics.
const TopicPrefixSystem = "geocontrol/system"

// Topics builds the topic names GeoControl publishes and subscribes to.
type Topics struct{}

// SystemStatus is the retained online/offline status topic.
//
// Example: geocontrol/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// SensorMeasurements returns the topic a gateway publishes readings on.
//
// Example: geocontrol/measurements/NET01/GW01/S01
func (Topics) SensorMeasurements(prefix, networkCode, gatewayMac, sensorMac string) string {
	return fmt.Sprintf("%s/%s/%s/%s", strings.TrimSuffix(prefix, "/"), networkCode, gatewayMac, sensorMac)
}

// AllSensorMeasurements returns the wildcard covering every sensor under prefix.
//
// Example: geocontrol/measurements/+/+/+
func (Topics) AllSensorMeasurements(prefix string) string {
	return strings.TrimSuffix(prefix, "/") + "/+/+/+"
}

// ParseSensorTopic splits a concrete measurement topic into its network code,
// gateway MAC and sensor MAC. The topic must be prefix followed by exactly
// three non-empty levels.
func ParseSensorTopic(prefix, topic string) (networkCode, gatewayMac, sensorMac string, err error) {
	base := strings.TrimSuffix(prefix, "/") + "/"
	rest, ok := strings.CutPrefix(topic, base)
	if !ok {
		return "", "", "", fmt.Errorf("%w: %q is not under %q", ErrInvalidTopic, topic, prefix)
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("%w: %q needs network/gateway/sensor levels", ErrInvalidTopic, topic)
	}
	for _, p := range parts {
		if p == "" || strings.ContainsAny(p, "+#") {
			return "", "", "", fmt.Errorf("%w: %q has an empty or wildcard level", ErrInvalidTopic, topic)
		}
	}
	return parts[0], parts[1], parts[2], nil
}
