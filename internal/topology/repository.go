package topology

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/geocontrol/geocontrol-core/internal/infrastructure/database"
)

// Repository defines the persistence operations on the hierarchy.
//
// Lookups are scoped by the parent keys; list operations return an empty,
// non-nil slice when the parent has no children.
type Repository interface {
	CreateNetwork(ctx context.Context, n *Network) error
	GetNetwork(ctx context.Context, code string) (*Network, error)
	ListNetworks(ctx context.Context) ([]Network, error)
	UpdateNetwork(ctx context.Context, code string, u NetworkUpdate) (*Network, error)
	DeleteNetwork(ctx context.Context, code string) error

	CreateGateway(ctx context.Context, networkCode string, g *Gateway) error
	GetGateway(ctx context.Context, networkCode, mac string) (*Gateway, error)
	ListGateways(ctx context.Context, networkCode string) ([]Gateway, error)
	UpdateGateway(ctx context.Context, networkCode, mac string, u GatewayUpdate) (*Gateway, error)
	DeleteGateway(ctx context.Context, networkCode, mac string) error

	CreateSensor(ctx context.Context, networkCode, gatewayMac string, s *Sensor) error
	GetSensor(ctx context.Context, networkCode, gatewayMac, mac string) (*Sensor, error)
	ListSensors(ctx context.Context, networkCode, gatewayMac string) ([]Sensor, error)
	UpdateSensor(ctx context.Context, networkCode, gatewayMac, mac string, u SensorUpdate) (*Sensor, error)
	DeleteSensor(ctx context.Context, networkCode, gatewayMac, mac string) error

	// ListNetworkSensors returns every sensor reachable from the network.
	ListNetworkSensors(ctx context.Context, networkCode string) ([]SensorRef, error)
	// ListGatewaySensors returns every sensor of the gateway.
	ListGatewaySensors(ctx context.Context, networkCode, gatewayMac string) ([]SensorRef, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed topology repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// ---------------------------------------------------------------------------
// Networks
// ---------------------------------------------------------------------------

// CreateNetwork inserts n and sets its ID.
func (r *SQLiteRepository) CreateNetwork(ctx context.Context, n *Network) error {
	n.normalize()
	if err := validateNetwork(n); err != nil {
		return err
	}
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := networkTable.ensureKeyFree(ctx, tx, n.Code); err != nil {
			return err
		}
		id, err := networkTable.insert(ctx, tx, 0, n.Code, networkValues(n))
		if err != nil {
			return err
		}
		n.ID = id
		return nil
	})
}

// GetNetwork returns the network with its gateways and their sensors.
func (r *SQLiteRepository) GetNetwork(ctx context.Context, code string) (*Network, error) {
	n, err := findNetwork(ctx, r.db, code)
	if err != nil {
		return nil, err
	}
	gateways, err := r.gatewaysWithSensors(ctx, "g.network_id = ?", n.ID)
	if err != nil {
		return nil, err
	}
	n.Gateways = gateways
	return n, nil
}

// ListNetworks returns every network with its gateways and their sensors.
func (r *SQLiteRepository) ListNetworks(ctx context.Context) ([]Network, error) {
	networks, err := queryNetworks(ctx, r.db, `SELECT id, code, name, description FROM networks ORDER BY code`)
	if err != nil {
		return nil, err
	}
	gateways, err := r.gatewaysWithSensors(ctx, "1 = 1")
	if err != nil {
		return nil, err
	}

	byNetwork := make(map[int64][]Gateway)
	for _, g := range gateways {
		byNetwork[g.NetworkID] = append(byNetwork[g.NetworkID], g)
	}
	for i := range networks {
		networks[i].Gateways = byNetwork[networks[i].ID]
	}
	return networks, nil
}

// UpdateNetwork applies u to the network identified by code. When u carries a
// different code the network is renamed and its gateways follow it.
func (r *SQLiteRepository) UpdateNetwork(ctx context.Context, code string, u NetworkUpdate) (*Network, error) {
	if err := u.validate(); err != nil {
		return nil, err
	}

	finalCode := code
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		n, err := findNetwork(ctx, tx, code)
		if err != nil {
			return err
		}
		u.apply(n)
		if next := newKey(u.Code, n.Code); next != "" {
			finalCode = next
		}
		_, err = networkTable.rekey(ctx, tx, keyedRow{id: n.ID, key: n.Code}, finalCode, networkValues(n))
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.GetNetwork(ctx, finalCode)
}

// DeleteNetwork removes the network and, through the foreign keys, everything below it.
func (r *SQLiteRepository) DeleteNetwork(ctx context.Context, code string) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		n, err := findNetwork(ctx, tx, code)
		if err != nil {
			return err
		}
		return networkTable.deleteByID(ctx, tx, n.ID)
	})
}

// ---------------------------------------------------------------------------
// Gateways
// ---------------------------------------------------------------------------

// CreateGateway inserts g under the network identified by networkCode.
func (r *SQLiteRepository) CreateGateway(ctx context.Context, networkCode string, g *Gateway) error {
	g.normalize()
	if err := validateGateway(g); err != nil {
		return err
	}
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		n, err := findNetwork(ctx, tx, networkCode)
		if err != nil {
			return err
		}
		if err := gatewayTable.ensureKeyFree(ctx, tx, g.MacAddress); err != nil {
			return err
		}
		id, err := gatewayTable.insert(ctx, tx, n.ID, g.MacAddress, gatewayValues(g))
		if err != nil {
			return err
		}
		g.ID, g.NetworkID = id, n.ID
		return nil
	})
}

// GetGateway returns the gateway with its sensors.
func (r *SQLiteRepository) GetGateway(ctx context.Context, networkCode, mac string) (*Gateway, error) {
	g, err := findGateway(ctx, r.db, networkCode, mac)
	if err != nil {
		return nil, err
	}
	sensors, err := querySensors(ctx, r.db, sensorSelect+` WHERE s.gateway_id = ? ORDER BY s.mac_address`, g.ID)
	if err != nil {
		return nil, err
	}
	g.Sensors = sensors
	return g, nil
}

// ListGateways returns the gateways of a network, each with its sensors.
func (r *SQLiteRepository) ListGateways(ctx context.Context, networkCode string) ([]Gateway, error) {
	n, err := findNetwork(ctx, r.db, networkCode)
	if err != nil {
		return nil, err
	}
	return r.gatewaysWithSensors(ctx, "g.network_id = ?", n.ID)
}

// UpdateGateway applies u to a gateway. A different MAC address renames it
// and moves its sensors to the renamed row.
func (r *SQLiteRepository) UpdateGateway(ctx context.Context, networkCode, mac string, u GatewayUpdate) (*Gateway, error) {
	if err := u.validate(); err != nil {
		return nil, err
	}

	finalMac := mac
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		g, err := findGateway(ctx, tx, networkCode, mac)
		if err != nil {
			return err
		}
		u.apply(g)
		if next := newKey(u.MacAddress, g.MacAddress); next != "" {
			finalMac = next
		}
		row := keyedRow{id: g.ID, parentID: g.NetworkID, key: g.MacAddress}
		_, err = gatewayTable.rekey(ctx, tx, row, finalMac, gatewayValues(g))
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.GetGateway(ctx, networkCode, finalMac)
}

// DeleteGateway removes the gateway with its sensors and their measurements.
func (r *SQLiteRepository) DeleteGateway(ctx context.Context, networkCode, mac string) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		g, err := findGateway(ctx, tx, networkCode, mac)
		if err != nil {
			return err
		}
		return gatewayTable.deleteByID(ctx, tx, g.ID)
	})
}

// ---------------------------------------------------------------------------
// Sensors
// ---------------------------------------------------------------------------

// CreateSensor inserts s under the given gateway.
func (r *SQLiteRepository) CreateSensor(ctx context.Context, networkCode, gatewayMac string, s *Sensor) error {
	s.normalize()
	if err := validateSensor(s); err != nil {
		return err
	}
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		g, err := findGateway(ctx, tx, networkCode, gatewayMac)
		if err != nil {
			return err
		}
		if err := sensorTable.ensureKeyFree(ctx, tx, s.MacAddress); err != nil {
			return err
		}
		id, err := sensorTable.insert(ctx, tx, g.ID, s.MacAddress, sensorValues(s))
		if err != nil {
			return err
		}
		s.ID, s.GatewayID = id, g.ID
		return nil
	})
}

// GetSensor returns the sensor, scoped to its network and gateway.
func (r *SQLiteRepository) GetSensor(ctx context.Context, networkCode, gatewayMac, mac string) (*Sensor, error) {
	return findSensor(ctx, r.db, networkCode, gatewayMac, mac)
}

// ListSensors returns the sensors of a gateway.
func (r *SQLiteRepository) ListSensors(ctx context.Context, networkCode, gatewayMac string) ([]Sensor, error) {
	g, err := findGateway(ctx, r.db, networkCode, gatewayMac)
	if err != nil {
		return nil, err
	}
	return querySensors(ctx, r.db, sensorSelect+` WHERE s.gateway_id = ? ORDER BY s.mac_address`, g.ID)
}

// UpdateSensor applies u to a sensor. A different MAC address renames it and
// moves its measurements to the renamed row.
func (r *SQLiteRepository) UpdateSensor(ctx context.Context, networkCode, gatewayMac, mac string, u SensorUpdate) (*Sensor, error) {
	if err := u.validate(); err != nil {
		return nil, err
	}

	finalMac := mac
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		s, err := findSensor(ctx, tx, networkCode, gatewayMac, mac)
		if err != nil {
			return err
		}
		u.apply(s)
		if next := newKey(u.MacAddress, s.MacAddress); next != "" {
			finalMac = next
		}
		row := keyedRow{id: s.ID, parentID: s.GatewayID, key: s.MacAddress}
		_, err = sensorTable.rekey(ctx, tx, row, finalMac, sensorValues(s))
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.GetSensor(ctx, networkCode, gatewayMac, finalMac)
}

// DeleteSensor removes the sensor and its measurements.
func (r *SQLiteRepository) DeleteSensor(ctx context.Context, networkCode, gatewayMac, mac string) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		s, err := findSensor(ctx, tx, networkCode, gatewayMac, mac)
		if err != nil {
			return err
		}
		return sensorTable.deleteByID(ctx, tx, s.ID)
	})
}

// ListNetworkSensors returns the gateway and sensor MAC of every sensor under
// the network, ordered by gateway then sensor.
func (r *SQLiteRepository) ListNetworkSensors(ctx context.Context, networkCode string) ([]SensorRef, error) {
	n, err := findNetwork(ctx, r.db, networkCode)
	if err != nil {
		return nil, err
	}

	const query = `SELECT g.mac_address, s.mac_address
		FROM sensors s JOIN gateways g ON g.id = s.gateway_id
		WHERE g.network_id = ?
		ORDER BY g.mac_address, s.mac_address`
	return r.querySensorRefs(ctx, query, n.ID)
}

// ListGatewaySensors returns the gateway and sensor MAC of every sensor under
// the gateway, ordered by sensor MAC.
func (r *SQLiteRepository) ListGatewaySensors(ctx context.Context, networkCode, gatewayMac string) ([]SensorRef, error) {
	g, err := findGateway(ctx, r.db, networkCode, gatewayMac)
	if err != nil {
		return nil, err
	}

	const query = `SELECT g.mac_address, s.mac_address
		FROM sensors s JOIN gateways g ON g.id = s.gateway_id
		WHERE g.id = ?
		ORDER BY s.mac_address`
	return r.querySensorRefs(ctx, query, g.ID)
}

func (r *SQLiteRepository) querySensorRefs(ctx context.Context, query string, id int64) ([]SensorRef, error) {
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("querying sensor refs: %w", err)
	}
	defer rows.Close()

	refs := make([]SensorRef, 0)
	for rows.Next() {
		var ref SensorRef
		if err := rows.Scan(&ref.GatewayMac, &ref.SensorMac); err != nil {
			return nil, fmt.Errorf("scanning sensor ref: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sensor refs: %w", err)
	}
	return refs, nil
}

// ---------------------------------------------------------------------------
// Scoped lookups
// ---------------------------------------------------------------------------

const (
	networkSelect = `SELECT id, code, name, description FROM networks`
	gatewaySelect = `SELECT g.id, g.network_id, g.mac_address, g.name, g.description FROM gateways g`
	sensorSelect  = `SELECT s.id, s.gateway_id, s.mac_address, s.name, s.description, s.variable, s.unit FROM sensors s`
)

func findNetwork(ctx context.Context, q querier, code string) (*Network, error) {
	n, err := scanNetwork(q.QueryRowContext(ctx, networkSelect+` WHERE code = ?`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNetworkNotFound
	}
	return n, err
}

func findGateway(ctx context.Context, q querier, networkCode, mac string) (*Gateway, error) {
	n, err := findNetwork(ctx, q, networkCode)
	if err != nil {
		return nil, err
	}
	g, err := scanGateway(q.QueryRowContext(ctx,
		gatewaySelect+` WHERE g.network_id = ? AND g.mac_address = ?`, n.ID, mac))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGatewayNotFound
	}
	return g, err
}

func findSensor(ctx context.Context, q querier, networkCode, gatewayMac, mac string) (*Sensor, error) {
	g, err := findGateway(ctx, q, networkCode, gatewayMac)
	if err != nil {
		return nil, err
	}
	s, err := scanSensor(q.QueryRowContext(ctx,
		sensorSelect+` WHERE s.gateway_id = ? AND s.mac_address = ?`, g.ID, mac))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSensorNotFound
	}
	return s, err
}

// gatewaysWithSensors loads gateways matching where (over alias g) and
// attaches their sensors. Both result sets are fully read before returning
// so the single pooled connection is free again.
func (r *SQLiteRepository) gatewaysWithSensors(ctx context.Context, where string, args ...any) ([]Gateway, error) {
	gateways, err := queryGateways(ctx, r.db, gatewaySelect+` WHERE `+where+` ORDER BY g.mac_address`, args...)
	if err != nil {
		return nil, err
	}
	if len(gateways) == 0 {
		return gateways, nil
	}

	sensors, err := querySensors(ctx, r.db,
		sensorSelect+` JOIN gateways g ON g.id = s.gateway_id WHERE `+where+` ORDER BY s.mac_address`, args...)
	if err != nil {
		return nil, err
	}

	byGateway := make(map[int64][]Sensor)
	for _, s := range sensors {
		byGateway[s.GatewayID] = append(byGateway[s.GatewayID], s)
	}
	for i := range gateways {
		gateways[i].Sensors = byGateway[gateways[i].ID]
	}
	return gateways, nil
}

// ---------------------------------------------------------------------------
// Scanning
// ---------------------------------------------------------------------------

type scanner interface {
	Scan(dest ...any) error
}

func scanNetwork(row scanner) (*Network, error) {
	var n Network
	var description sql.NullString
	if err := row.Scan(&n.ID, &n.Code, &n.Name, &description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning network: %w", err)
	}
	n.Description = fromNull(description)
	return &n, nil
}

func scanGateway(row scanner) (*Gateway, error) {
	var g Gateway
	var description sql.NullString
	if err := row.Scan(&g.ID, &g.NetworkID, &g.MacAddress, &g.Name, &description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning gateway: %w", err)
	}
	g.Description = fromNull(description)
	return &g, nil
}

func scanSensor(row scanner) (*Sensor, error) {
	var s Sensor
	var description, variable, unit sql.NullString
	if err := row.Scan(&s.ID, &s.GatewayID, &s.MacAddress, &s.Name, &description, &variable, &unit); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning sensor: %w", err)
	}
	s.Description = fromNull(description)
	s.Variable = fromNull(variable)
	s.Unit = fromNull(unit)
	return &s, nil
}

func queryNetworks(ctx context.Context, q querier, query string, args ...any) ([]Network, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying networks: %w", err)
	}
	defer rows.Close()

	networks := make([]Network, 0)
	for rows.Next() {
		n, err := scanNetwork(rows)
		if err != nil {
			return nil, err
		}
		networks = append(networks, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating network rows: %w", err)
	}
	return networks, nil
}

func queryGateways(ctx context.Context, q querier, query string, args ...any) ([]Gateway, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying gateways: %w", err)
	}
	defer rows.Close()

	gateways := make([]Gateway, 0)
	for rows.Next() {
		g, err := scanGateway(rows)
		if err != nil {
			return nil, err
		}
		gateways = append(gateways, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating gateway rows: %w", err)
	}
	return gateways, nil
}

func querySensors(ctx context.Context, q querier, query string, args ...any) ([]Sensor, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sensors: %w", err)
	}
	defer rows.Close()

	sensors := make([]Sensor, 0)
	for rows.Next() {
		s, err := scanSensor(rows)
		if err != nil {
			return nil, err
		}
		sensors = append(sensors, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sensor rows: %w", err)
	}
	return sensors, nil
}

// ---------------------------------------------------------------------------
// Column values
// ---------------------------------------------------------------------------

// The value slices follow the column order of the matching keyedTable.

func networkValues(n *Network) []any {
	return []any{n.Name, nullStr(n.Description)}
}

func gatewayValues(g *Gateway) []any {
	return []any{g.Name, nullStr(g.Description)}
}

func sensorValues(s *Sensor) []any {
	return []any{s.Name, nullStr(s.Description), nullStr(s.Variable), nullStr(s.Unit)}
}

// nullStr maps nil and empty strings to NULL.
func nullStr(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
