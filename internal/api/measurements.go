package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/geocontrol/geocontrol-core/internal/measurement"
)

// sensorKey reads the sensor path parameters.
func sensorKey(r *http.Request) measurement.SensorKey {
	return measurement.SensorKey{
		NetworkCode: chi.URLParam(r, "networkCode"),
		GatewayMac:  chi.URLParam(r, "gatewayMac"),
		SensorMac:   chi.URLParam(r, "sensorMac"),
	}
}

// parseWindow reads the optional startDate and endDate query parameters.
// A start after the end is passed through; it yields an empty result.
func parseWindow(r *http.Request) (measurement.Window, error) {
	q := r.URL.Query()

	start, err := measurement.ParseTime(q.Get("startDate"))
	if err != nil {
		return measurement.Window{}, fmt.Errorf("invalid startDate: %w", err)
	}
	end, err := measurement.ParseTime(q.Get("endDate"))
	if err != nil {
		return measurement.Window{}, fmt.Errorf("invalid endDate: %w", err)
	}
	return measurement.NewWindow(start, end), nil
}

// parseNetworkQuery reads the window plus the sensorMacs allow-list, which may
// be repeated, comma separated, or both.
func parseNetworkQuery(r *http.Request) (measurement.NetworkQuery, error) {
	w, err := parseWindow(r)
	if err != nil {
		return measurement.NetworkQuery{}, err
	}

	var macs []string
	for _, v := range r.URL.Query()["sensorMacs"] {
		for _, mac := range strings.Split(v, ",") {
			if mac = strings.TrimSpace(mac); mac != "" {
				macs = append(macs, mac)
			}
		}
	}
	return measurement.NetworkQuery{SensorMacs: macs, Window: w}, nil
}

// handleStoreMeasurements records a batch of measurements for one sensor.
func (s *Server) handleStoreMeasurements(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "request body too large")
			return
		}
		writeBadRequest(w, "failed to read request body")
		return
	}

	ms, err := measurement.DecodeBatch(body)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	if err := s.measurements.Store(r.Context(), sensorKey(r), ms); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleSensorMeasurements(w http.ResponseWriter, r *http.Request) {
	win, err := parseWindow(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	result, err := s.measurements.SensorMeasurements(r.Context(), sensorKey(r), win)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSensorStats(w http.ResponseWriter, r *http.Request) {
	win, err := parseWindow(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	stats, err := s.measurements.SensorStats(r.Context(), sensorKey(r), win)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSensorOutliers(w http.ResponseWriter, r *http.Request) {
	win, err := parseWindow(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	result, err := s.measurements.SensorOutliers(r.Context(), sensorKey(r), win)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleNetworkMeasurements(w http.ResponseWriter, r *http.Request) {
	s.serveNetworkAggregate(w, r, s.measurements.NetworkMeasurements)
}

func (s *Server) handleNetworkStats(w http.ResponseWriter, r *http.Request) {
	s.serveNetworkAggregate(w, r, s.measurements.NetworkStats)
}

func (s *Server) handleNetworkOutliers(w http.ResponseWriter, r *http.Request) {
	s.serveNetworkAggregate(w, r, s.measurements.NetworkOutliers)
}

func (s *Server) handleGatewayMeasurements(w http.ResponseWriter, r *http.Request) {
	s.serveGatewayAggregate(w, r, s.measurements.GatewayMeasurements)
}

func (s *Server) handleGatewayStats(w http.ResponseWriter, r *http.Request) {
	s.serveGatewayAggregate(w, r, s.measurements.GatewayStats)
}

func (s *Server) handleGatewayOutliers(w http.ResponseWriter, r *http.Request) {
	s.serveGatewayAggregate(w, r, s.measurements.GatewayOutliers)
}

type networkAggregate func(ctx context.Context, networkCode string, q measurement.NetworkQuery) ([]measurement.Result, error)

func (s *Server) serveNetworkAggregate(w http.ResponseWriter, r *http.Request, fetch networkAggregate) {
	q, err := parseNetworkQuery(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	results, err := fetch(r.Context(), chi.URLParam(r, "networkCode"), q)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

type gatewayAggregate func(ctx context.Context, networkCode, gatewayMac string, q measurement.NetworkQuery) ([]measurement.Result, error)

func (s *Server) serveGatewayAggregate(w http.ResponseWriter, r *http.Request, fetch gatewayAggregate) {
	q, err := parseNetworkQuery(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	results, err := fetch(r.Context(), chi.URLParam(r, "networkCode"), chi.URLParam(r, "gatewayMac"), q)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}
