package topology

// Network is the root of the hierarchy.
type Network struct {
	ID          int64     `json:"-"`
	Code        string    `json:"code"`
	Name        string    `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Gateways    []Gateway `json:"gateways,omitempty"`
}

// Gateway belongs to exactly one network.
type Gateway struct {
	ID          int64    `json:"-"`
	NetworkID   int64    `json:"-"`
	MacAddress  string   `json:"macAddress"`
	Name        string   `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Sensors     []Sensor `json:"sensors,omitempty"`
}

// Sensor belongs to exactly one gateway and owns its measurements.
type Sensor struct {
	ID          int64   `json:"-"`
	GatewayID   int64   `json:"-"`
	MacAddress  string  `json:"macAddress"`
	Name        string  `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Variable    *string `json:"variable,omitempty"`
	Unit        *string `json:"unit,omitempty"`
}

// NetworkUpdate carries the fields of a partial network update. A nil field
// keeps the stored value; an empty optional string clears it. A Code
// different from the current one renames the network.
type NetworkUpdate struct {
	Code        *string `json:"code,omitempty"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// GatewayUpdate carries the fields of a partial gateway update.
type GatewayUpdate struct {
	MacAddress  *string `json:"macAddress,omitempty"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// SensorUpdate carries the fields of a partial sensor update.
type SensorUpdate struct {
	MacAddress  *string `json:"macAddress,omitempty"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Variable    *string `json:"variable,omitempty"`
	Unit        *string `json:"unit,omitempty"`
}

// SensorRef locates a sensor inside a network.
type SensorRef struct {
	GatewayMac string
	SensorMac  string
}

func (u NetworkUpdate) apply(n *Network) {
	if u.Name != nil {
		n.Name = *u.Name
	}
	n.Description = mergeOptional(n.Description, u.Description)
}

func (u GatewayUpdate) apply(g *Gateway) {
	if u.Name != nil {
		g.Name = *u.Name
	}
	g.Description = mergeOptional(g.Description, u.Description)
}

func (u SensorUpdate) apply(s *Sensor) {
	if u.Name != nil {
		s.Name = *u.Name
	}
	s.Description = mergeOptional(s.Description, u.Description)
	s.Variable = mergeOptional(s.Variable, u.Variable)
	s.Unit = mergeOptional(s.Unit, u.Unit)
}

// mergeOptional returns current when patch is nil, nil when patch is empty,
// and patch otherwise.
func mergeOptional(current, patch *string) *string {
	switch {
	case patch == nil:
		return current
	case *patch == "":
		return nil
	default:
		v := *patch
		return &v
	}
}

// newKey returns the requested key, or "" when the update keeps the key.
func newKey(requested *string, current string) string {
	if requested == nil || *requested == current {
		return ""
	}
	return *requested
}

// normalize drops empty optional strings so they are stored and returned as absent.
func (n *Network) normalize() {
	n.Description = mergeOptional(nil, n.Description)
}

func (g *Gateway) normalize() {
	g.Description = mergeOptional(nil, g.Description)
}

func (s *Sensor) normalize() {
	s.Description = mergeOptional(nil, s.Description)
	s.Variable = mergeOptional(nil, s.Variable)
	s.Unit = mergeOptional(nil, s.Unit)
}
