package topology

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateMAC(t *testing.T) {
	tests := []struct {
		mac     string
		wantErr bool
	}{
		{"94:3F:BE:4C:4A:79", false},
		{"GW-01", false},
		{"", true},
		{"has space", true},
		{"a/b", true},
		{"wild+card", true},
		{"hash#", true},
		{strings.Repeat("a", maxKeyLength), false},
		{strings.Repeat("a", maxKeyLength+1), true},
	}

	for _, tt := range tests {
		err := ValidateMAC(tt.mac)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateMAC(%q) error = %v, wantErr %v", tt.mac, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidMAC) {
			t.Errorf("ValidateMAC(%q) error %v should match ErrInvalidMAC", tt.mac, err)
		}
	}
}

func TestValidateSensor_TextLimits(t *testing.T) {
	long := strings.Repeat("x", maxTextLength+1)

	if err := validateSensor(&Sensor{MacAddress: "S1", Unit: &long}); !errors.Is(err, ErrInvalidText) {
		t.Errorf("long unit: got %v, want ErrInvalidText", err)
	}
	if err := validateSensor(&Sensor{MacAddress: "S1", Name: strings.Repeat("n", maxNameLength+1)}); !errors.Is(err, ErrInvalidText) {
		t.Errorf("long name: got %v, want ErrInvalidText", err)
	}
	if err := validateSensor(&Sensor{MacAddress: "S1"}); err != nil {
		t.Errorf("minimal sensor: %v", err)
	}
}

func TestMergeOptional(t *testing.T) {
	current := strPtr("old")

	if got := mergeOptional(current, nil); got != current {
		t.Error("nil patch should keep current")
	}
	if got := mergeOptional(current, strPtr("")); got != nil {
		t.Errorf("empty patch should clear, got %q", *got)
	}
	if got := mergeOptional(current, strPtr("new")); got == nil || *got != "new" {
		t.Errorf("patch should replace, got %v", got)
	}
}

func TestNewKey(t *testing.T) {
	if got := newKey(nil, "A"); got != "" {
		t.Errorf("nil request: got %q", got)
	}
	if got := newKey(strPtr("A"), "A"); got != "" {
		t.Errorf("same key: got %q", got)
	}
	if got := newKey(strPtr("B"), "A"); got != "B" {
		t.Errorf("different key: got %q", got)
	}
}
