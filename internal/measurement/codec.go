package measurement

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/relvacode/iso8601"
)

// wireMeasurement is the inbound shape shared by the HTTP API and MQTT
// ingestion. createdAt accepts any ISO-8601 timestamp.
type wireMeasurement struct {
	CreatedAt string   `json:"createdAt"`
	Value     *float64 `json:"value"`
}

// DecodeBatch parses a JSON array of {createdAt, value} objects, or a single
// such object, into measurements with UTC timestamps.
func DecodeBatch(data []byte) ([]Measurement, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidMeasurement)
	}

	var wire []wireMeasurement
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &wire); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidMeasurement, err)
		}
	} else {
		var one wireMeasurement
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidMeasurement, err)
		}
		wire = []wireMeasurement{one}
	}

	ms := make([]Measurement, len(wire))
	for i, w := range wire {
		if w.CreatedAt == "" {
			return nil, fmt.Errorf("%w: item %d: createdAt is required", ErrInvalidMeasurement, i)
		}
		if w.Value == nil {
			return nil, fmt.Errorf("%w: item %d: value is required", ErrInvalidMeasurement, i)
		}
		t, err := iso8601.ParseString(w.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d: createdAt: %w", ErrInvalidMeasurement, i, err)
		}
		ms[i] = Measurement{CreatedAt: t.UTC(), Value: *w.Value}
	}
	return ms, nil
}

// ParseTime parses an optional ISO-8601 query bound. An empty string yields nil.
func ParseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := iso8601.ParseString(s)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}
