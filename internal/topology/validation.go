package topology

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

const (
	maxKeyLength  = 64
	maxNameLength = 100
	maxTextLength = 1024
)

// ValidateCode checks a network code.
func ValidateCode(code string) error {
	if err := validateKey(code); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidCode, err.Error())
	}
	return nil
}

// ValidateMAC checks a gateway or sensor MAC address. Any identifier is
// accepted as long as it can appear as a single URL path segment and a single
// MQTT topic level.
func ValidateMAC(mac string) error {
	if err := validateKey(mac); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidMAC, err.Error())
	}
	return nil
}

func validateKey(key string) error {
	if key == "" {
		return errors.New("cannot be empty")
	}
	if len(key) > maxKeyLength {
		return fmt.Errorf("exceeds %d characters", maxKeyLength)
	}
	for _, r := range key {
		if unicode.IsSpace(r) || unicode.IsControl(r) || strings.ContainsRune("/?#+", r) {
			return fmt.Errorf("contains forbidden character %q", r)
		}
	}
	return nil
}

func validateName(name string) error {
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidText, maxNameLength)
	}
	return nil
}

func validateText(field string, v *string) error {
	if v != nil && len(*v) > maxTextLength {
		return fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidText, field, maxTextLength)
	}
	return nil
}

func validateNetwork(n *Network) error {
	if err := ValidateCode(n.Code); err != nil {
		return err
	}
	if err := validateName(n.Name); err != nil {
		return err
	}
	return validateText("description", n.Description)
}

func validateGateway(g *Gateway) error {
	if err := ValidateMAC(g.MacAddress); err != nil {
		return err
	}
	if err := validateName(g.Name); err != nil {
		return err
	}
	return validateText("description", g.Description)
}

func validateSensor(s *Sensor) error {
	if err := ValidateMAC(s.MacAddress); err != nil {
		return err
	}
	if err := validateName(s.Name); err != nil {
		return err
	}
	if err := validateText("description", s.Description); err != nil {
		return err
	}
	if err := validateText("variable", s.Variable); err != nil {
		return err
	}
	return validateText("unit", s.Unit)
}

func (u NetworkUpdate) validate() error {
	if u.Code != nil {
		if err := ValidateCode(*u.Code); err != nil {
			return err
		}
	}
	if u.Name != nil {
		if err := validateName(*u.Name); err != nil {
			return err
		}
	}
	return validateText("description", u.Description)
}

func (u GatewayUpdate) validate() error {
	if u.MacAddress != nil {
		if err := ValidateMAC(*u.MacAddress); err != nil {
			return err
		}
	}
	if u.Name != nil {
		if err := validateName(*u.Name); err != nil {
			return err
		}
	}
	return validateText("description", u.Description)
}

func (u SensorUpdate) validate() error {
	if u.MacAddress != nil {
		if err := ValidateMAC(*u.MacAddress); err != nil {
			return err
		}
	}
	if u.Name != nil {
		if err := validateName(*u.Name); err != nil {
			return err
		}
	}
	if err := validateText("description", u.Description); err != nil {
		return err
	}
	if err := validateText("variable", u.Variable); err != nil {
		return err
	}
	return validateText("unit", u.Unit)
}
