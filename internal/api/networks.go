package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/geocontrol/geocontrol-core/internal/audit"
	"github.com/geocontrol/geocontrol-core/internal/topology"
)

// Create payloads carry only the entity's own fields; children are created
// through their own endpoints.

type createNetworkRequest struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type createGatewayRequest struct {
	MacAddress  string  `json:"macAddress"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type createSensorRequest struct {
	MacAddress  string  `json:"macAddress"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Variable    *string `json:"variable"`
	Unit        *string `json:"unit"`
}

// ─── Networks ──────────────────────────────────────────────────────

func (s *Server) handleListNetworks(w http.ResponseWriter, r *http.Request) {
	networks, err := s.topology.ListNetworks(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, networks)
}

func (s *Server) handleCreateNetwork(w http.ResponseWriter, r *http.Request) {
	var req createNetworkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	n := &topology.Network{Code: req.Code, Name: req.Name, Description: req.Description}
	if err := s.topology.CreateNetwork(r.Context(), n); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.auditLog(r, audit.ActionCreate, audit.EntityNetwork, n.Code, nil)
	writeJSON(w, http.StatusCreated, n)
}

func (s *Server) handleGetNetwork(w http.ResponseWriter, r *http.Request) {
	n, err := s.topology.GetNetwork(r.Context(), chi.URLParam(r, "networkCode"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleUpdateNetwork(w http.ResponseWriter, r *http.Request) {
	var u topology.NetworkUpdate
	if err := decodeJSON(r, &u); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	code := chi.URLParam(r, "networkCode")
	n, err := s.topology.UpdateNetwork(r.Context(), code, u)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.auditLog(r, audit.ActionUpdate, audit.EntityNetwork, code, renamed(code, n.Code, "code"))
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleDeleteNetwork(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "networkCode")
	if err := s.topology.DeleteNetwork(r.Context(), code); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.auditLog(r, audit.ActionDelete, audit.EntityNetwork, code, nil)
	w.WriteHeader(http.StatusNoContent)
}

// ─── Gateways ──────────────────────────────────────────────────────

func (s *Server) handleListGateways(w http.ResponseWriter, r *http.Request) {
	gateways, err := s.topology.ListGateways(r.Context(), chi.URLParam(r, "networkCode"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gateways)
}

func (s *Server) handleCreateGateway(w http.ResponseWriter, r *http.Request) {
	var req createGatewayRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	code := chi.URLParam(r, "networkCode")
	g := &topology.Gateway{MacAddress: req.MacAddress, Name: req.Name, Description: req.Description}
	if err := s.topology.CreateGateway(r.Context(), code, g); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.auditLog(r, audit.ActionCreate, audit.EntityGateway, entityPath(code, g.MacAddress), nil)
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleGetGateway(w http.ResponseWriter, r *http.Request) {
	g, err := s.topology.GetGateway(r.Context(), chi.URLParam(r, "networkCode"), chi.URLParam(r, "gatewayMac"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleUpdateGateway(w http.ResponseWriter, r *http.Request) {
	var u topology.GatewayUpdate
	if err := decodeJSON(r, &u); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	code, mac := chi.URLParam(r, "networkCode"), chi.URLParam(r, "gatewayMac")
	g, err := s.topology.UpdateGateway(r.Context(), code, mac, u)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.auditLog(r, audit.ActionUpdate, audit.EntityGateway, entityPath(code, mac), renamed(mac, g.MacAddress, "macAddress"))
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleDeleteGateway(w http.ResponseWriter, r *http.Request) {
	code, mac := chi.URLParam(r, "networkCode"), chi.URLParam(r, "gatewayMac")
	if err := s.topology.DeleteGateway(r.Context(), code, mac); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.auditLog(r, audit.ActionDelete, audit.EntityGateway, entityPath(code, mac), nil)
	w.WriteHeader(http.StatusNoContent)
}

// ─── Sensors ───────────────────────────────────────────────────────

func (s *Server) handleListSensors(w http.ResponseWriter, r *http.Request) {
	sensors, err := s.topology.ListSensors(r.Context(), chi.URLParam(r, "networkCode"), chi.URLParam(r, "gatewayMac"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sensors)
}

func (s *Server) handleCreateSensor(w http.ResponseWriter, r *http.Request) {
	var req createSensorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	sensor := &topology.Sensor{
		MacAddress:  req.MacAddress,
		Name:        req.Name,
		Description: req.Description,
		Variable:    req.Variable,
		Unit:        req.Unit,
	}
	code, mac := chi.URLParam(r, "networkCode"), chi.URLParam(r, "gatewayMac")
	if err := s.topology.CreateSensor(r.Context(), code, mac, sensor); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.auditLog(r, audit.ActionCreate, audit.EntitySensor, entityPath(code, mac, sensor.MacAddress), nil)
	writeJSON(w, http.StatusCreated, sensor)
}

func (s *Server) handleGetSensor(w http.ResponseWriter, r *http.Request) {
	key := sensorKey(r)
	sensor, err := s.topology.GetSensor(r.Context(), key.NetworkCode, key.GatewayMac, key.SensorMac)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sensor)
}

func (s *Server) handleUpdateSensor(w http.ResponseWriter, r *http.Request) {
	var u topology.SensorUpdate
	if err := decodeJSON(r, &u); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	key := sensorKey(r)
	sensor, err := s.topology.UpdateSensor(r.Context(), key.NetworkCode, key.GatewayMac, key.SensorMac, u)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.auditLog(r, audit.ActionUpdate, audit.EntitySensor, key.String(), renamed(key.SensorMac, sensor.MacAddress, "macAddress"))
	writeJSON(w, http.StatusOK, sensor)
}

func (s *Server) handleDeleteSensor(w http.ResponseWriter, r *http.Request) {
	key := sensorKey(r)
	if err := s.topology.DeleteSensor(r.Context(), key.NetworkCode, key.GatewayMac, key.SensorMac); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.auditLog(r, audit.ActionDelete, audit.EntitySensor, key.String(), nil)
	w.WriteHeader(http.StatusNoContent)
}

// entityPath joins natural keys into the audit entity id, e.g. "NET01/GW01".
func entityPath(keys ...string) string {
	return strings.Join(keys, "/")
}

// renamed returns audit details when an update changed the natural key.
func renamed(from, to, field string) map[string]any {
	if from == to {
		return nil
	}
	return map[string]any{field: to}
}
