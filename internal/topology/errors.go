package topology

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by every lookup failure in this package.
	ErrNotFound = errors.New("not found")

	// ErrConflict is matched by every natural-key collision in this package.
	ErrConflict = errors.New("already exists")

	// ErrInvalid is matched by every validation failure in this package.
	ErrInvalid = errors.New("invalid input")
)

var (
	ErrNetworkNotFound = fmt.Errorf("network %w", ErrNotFound)
	ErrGatewayNotFound = fmt.Errorf("gateway %w", ErrNotFound)
	ErrSensorNotFound  = fmt.Errorf("sensor %w", ErrNotFound)

	ErrNetworkExists = fmt.Errorf("network code %w", ErrConflict)
	ErrGatewayExists = fmt.Errorf("gateway mac address %w", ErrConflict)
	ErrSensorExists  = fmt.Errorf("sensor mac address %w", ErrConflict)

	ErrInvalidCode = fmt.Errorf("%w: network code", ErrInvalid)
	ErrInvalidMAC  = fmt.Errorf("%w: mac address", ErrInvalid)
	ErrInvalidText = fmt.Errorf("%w: text field", ErrInvalid)
)
