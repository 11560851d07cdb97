package api

import (
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/geocontrol/geocontrol-core/internal/auth"
	"github.com/geocontrol/geocontrol-core/internal/measurement"
)

const sensorPath = "/api/v1/networks/NET01/gateways/GW01/sensors/S01"

const spikeBatch = `[
	{"createdAt":"2025-02-18T15:00:00Z","value":10},
	{"createdAt":"2025-02-18T15:01:00Z","value":11},
	{"createdAt":"2025-02-18T15:02:00Z","value":12},
	{"createdAt":"2025-02-18T15:03:00Z","value":13},
	{"createdAt":"2025-02-18T15:04:00Z","value":14},
	{"createdAt":"2025-02-18T15:05:00Z","value":100}
]`

func TestStoreAndReadSensorMeasurements(t *testing.T) {
	env := testServer(t)
	env.seedTopology(t)
	op := tokenFor(t, auth.RoleOperator)
	viewer := tokenFor(t, auth.RoleViewer)

	env.mustDo(t, http.MethodPost, sensorPath+"/measurements", op, spikeBatch, http.StatusCreated)

	r := decode[measurement.Result](t, env.mustDo(t, http.MethodGet, sensorPath+"/measurements", viewer, "", http.StatusOK))
	if r.SensorMacAddress != "S01" || len(r.Measurements) != 6 {
		t.Fatalf("result = %+v", r)
	}
	flagged := 0
	for _, m := range r.Measurements {
		if m.IsOutlier == nil {
			t.Fatalf("measurement at %v has no isOutlier", m.CreatedAt)
		}
		if *m.IsOutlier {
			flagged++
		}
	}
	if flagged != 1 {
		t.Errorf("flagged %d outliers, want 1", flagged)
	}

	stats := decode[measurement.Stats](t, env.mustDo(t, http.MethodGet, sensorPath+"/stats", viewer, "", http.StatusOK))
	if stats.Mean < 26.66 || stats.Mean > 26.67 {
		t.Errorf("mean = %v, want ≈26.67", stats.Mean)
	}

	out := decode[measurement.Result](t, env.mustDo(t, http.MethodGet, sensorPath+"/outliers", viewer, "", http.StatusOK))
	if len(out.Measurements) != 1 || out.Measurements[0].Value != 100 {
		t.Errorf("outliers = %+v", out.Measurements)
	}
}

func TestStoreMeasurements_SingleObjectAndOffsets(t *testing.T) {
	env := testServer(t)
	env.seedTopology(t)
	op := tokenFor(t, auth.RoleOperator)

	// 16:00+01:00 is 15:00 UTC.
	env.mustDo(t, http.MethodPost, sensorPath+"/measurements", op,
		`{"createdAt":"2025-02-18T16:00:00+01:00","value":5}`, http.StatusCreated)

	q := url.Values{"startDate": {"2025-02-18T15:00:00Z"}, "endDate": {"2025-02-18T15:00:00Z"}}
	r := decode[measurement.Result](t, env.mustDo(t, http.MethodGet, sensorPath+"/measurements?"+q.Encode(), op, "", http.StatusOK))
	if len(r.Measurements) != 1 {
		t.Fatalf("inclusive single-instant window returned %d measurements", len(r.Measurements))
	}
	if got := r.Measurements[0].CreatedAt.Format("2006-01-02T15:04:05Z07:00"); got != "2025-02-18T15:00:00Z" {
		t.Errorf("createdAt = %s, want UTC", got)
	}
}

func TestStoreMeasurements_Errors(t *testing.T) {
	env := testServer(t)
	env.seedTopology(t)
	op := tokenFor(t, auth.RoleOperator)

	env.mustDo(t, http.MethodPost, "/api/v1/networks/NET01/gateways/GW01/sensors/S99/measurements", op,
		`[{"createdAt":"2025-02-18T15:00:00Z","value":1}]`, http.StatusNotFound)
	env.mustDo(t, http.MethodPost, sensorPath+"/measurements", op, `[{"value":1}]`, http.StatusBadRequest)
	env.mustDo(t, http.MethodPost, sensorPath+"/measurements", op, `[{"createdAt":"yesterday","value":1}]`, http.StatusBadRequest)
	env.mustDo(t, http.MethodPost, sensorPath+"/measurements", op, `[{"createdAt":"2025-02-18T15:00:00Z"}]`, http.StatusBadRequest)
	env.mustDo(t, http.MethodPost, sensorPath+"/measurements", op, `{broken`, http.StatusBadRequest)
}

func TestStoreMeasurements_RejectsOverflowingValues(t *testing.T) {
	env := testServer(t)
	env.seedTopology(t)
	op := tokenFor(t, auth.RoleOperator)

	env.mustDo(t, http.MethodPost, sensorPath+"/measurements", op,
		`[{"createdAt":"2025-02-18T15:00:00Z","value":1e308},{"createdAt":"2025-02-18T15:01:00Z","value":1e308}]`,
		http.StatusBadRequest)
	env.mustDo(t, http.MethodPost, sensorPath+"/measurements", op,
		`[{"createdAt":"2025-02-18T15:00:00Z","value":1e100},{"createdAt":"2025-02-18T15:01:00Z","value":-1e100}]`,
		http.StatusCreated)

	stats := decode[measurement.Stats](t, env.mustDo(t, http.MethodGet, sensorPath+"/stats", op, "", http.StatusOK))
	if math.IsInf(stats.UpperThreshold, 0) || math.IsNaN(stats.LowerThreshold) {
		t.Errorf("stats = %+v, want finite thresholds", stats)
	}
	all := decode[[]measurement.Result](t, env.mustDo(t, http.MethodGet, "/api/v1/networks/NET01/stats", op, "", http.StatusOK))
	if len(all) != 2 {
		t.Errorf("network stats = %+v, want both sensors", all)
	}
}

func TestWriteJSON_UnencodableValueIsInternalError(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusOK, measurement.Stats{Mean: math.Inf(1)})

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	body := decode[Error](t, w)
	if body.Code != ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, ErrCodeInternal)
	}
}

func TestSensorQueries_WindowHandling(t *testing.T) {
	env := testServer(t)
	env.seedTopology(t)
	op := tokenFor(t, auth.RoleOperator)
	env.mustDo(t, http.MethodPost, sensorPath+"/measurements", op, spikeBatch, http.StatusCreated)

	// Excluding the spike leaves five well-behaved points.
	q := url.Values{"endDate": {"2025-02-18T15:04:00Z"}}
	out := decode[measurement.Result](t, env.mustDo(t, http.MethodGet, sensorPath+"/outliers?"+q.Encode(), op, "", http.StatusOK))
	if len(out.Measurements) != 0 {
		t.Errorf("outliers inside narrowed window = %+v", out.Measurements)
	}
	if out.Stats.EndDate == nil || out.Stats.Mean != 12 {
		t.Errorf("stats = %+v, want mean 12 with echoed endDate", out.Stats)
	}

	// startDate after endDate is an empty result, not an error.
	q = url.Values{"startDate": {"2025-02-18T16:00:00Z"}, "endDate": {"2025-02-18T15:00:00Z"}}
	r := decode[measurement.Result](t, env.mustDo(t, http.MethodGet, sensorPath+"/measurements?"+q.Encode(), op, "", http.StatusOK))
	if len(r.Measurements) != 0 || r.Stats.Mean != 0 {
		t.Errorf("inverted window = %+v, want empty", r)
	}

	env.mustDo(t, http.MethodGet, sensorPath+"/stats?startDate=not-a-date", op, "", http.StatusBadRequest)
	env.mustDo(t, http.MethodGet, "/api/v1/networks/NET01/gateways/GW01/sensors/S99/stats", op, "", http.StatusNotFound)
}

func TestNetworkAggregates(t *testing.T) {
	env := testServer(t)
	env.seedTopology(t)
	op := tokenFor(t, auth.RoleOperator)
	env.mustDo(t, http.MethodPost, sensorPath+"/measurements", op, spikeBatch, http.StatusCreated)
	env.mustDo(t, http.MethodPost, "/api/v1/networks/NET01/gateways/GW01/sensors/S02/measurements", op,
		`[{"createdAt":"2025-02-18T15:00:00Z","value":3}]`, http.StatusCreated)

	all := decode[[]measurement.Result](t, env.mustDo(t, http.MethodGet, "/api/v1/networks/NET01/measurements", op, "", http.StatusOK))
	if len(all) != 2 {
		t.Fatalf("network measurements = %+v", all)
	}

	stats := decode[[]map[string]any](t, env.mustDo(t, http.MethodGet, "/api/v1/networks/NET01/stats", op, "", http.StatusOK))
	for _, r := range stats {
		if _, ok := r["measurements"]; ok {
			t.Errorf("stats response carries measurements: %v", r)
		}
		if _, ok := r["stats"]; !ok {
			t.Errorf("stats response lacks stats: %v", r)
		}
	}

	outliers := decode[[]measurement.Result](t, env.mustDo(t, http.MethodGet,
		"/api/v1/networks/NET01/outliers?sensorMacs=S01,S99", op, "", http.StatusOK))
	if len(outliers) != 1 || outliers[0].SensorMacAddress != "S01" || len(outliers[0].Measurements) != 1 {
		t.Errorf("filtered outliers = %+v", outliers)
	}

	repeated := decode[[]measurement.Result](t, env.mustDo(t, http.MethodGet,
		"/api/v1/networks/NET01/stats?sensorMacs=S02&sensorMacs=S01", op, "", http.StatusOK))
	if len(repeated) != 2 {
		t.Errorf("repeated sensorMacs = %+v, want both sensors", repeated)
	}

	env.mustDo(t, http.MethodGet, "/api/v1/networks/NET99/stats", op, "", http.StatusNotFound)
}

func TestGatewayAggregates(t *testing.T) {
	env := testServer(t)
	env.seedTopology(t)
	op := tokenFor(t, auth.RoleOperator)
	env.mustDo(t, http.MethodPost, "/api/v1/networks/NET01/gateways", op, `{"macAddress":"GW02"}`, http.StatusCreated)
	env.mustDo(t, http.MethodPost, "/api/v1/networks/NET01/gateways/GW02/sensors", op, `{"macAddress":"S03"}`, http.StatusCreated)
	env.mustDo(t, http.MethodPost, sensorPath+"/measurements", op, spikeBatch, http.StatusCreated)
	env.mustDo(t, http.MethodPost, "/api/v1/networks/NET01/gateways/GW02/sensors/S03/measurements", op,
		`[{"createdAt":"2025-02-18T15:00:00Z","value":3}]`, http.StatusCreated)

	all := decode[[]measurement.Result](t, env.mustDo(t, http.MethodGet,
		"/api/v1/networks/NET01/gateways/GW01/measurements", op, "", http.StatusOK))
	if len(all) != 2 || all[0].SensorMacAddress != "S01" || all[1].SensorMacAddress != "S02" {
		t.Fatalf("GW01 measurements = %+v", all)
	}

	stats := decode[[]map[string]any](t, env.mustDo(t, http.MethodGet,
		"/api/v1/networks/NET01/gateways/GW02/stats", op, "", http.StatusOK))
	if len(stats) != 1 || stats[0]["sensorMacAddress"] != "S03" {
		t.Errorf("GW02 stats = %v", stats)
	}

	outliers := decode[[]measurement.Result](t, env.mustDo(t, http.MethodGet,
		"/api/v1/networks/NET01/gateways/GW01/outliers?sensorMacs=S01", op, "", http.StatusOK))
	if len(outliers) != 1 || len(outliers[0].Measurements) != 1 || outliers[0].Measurements[0].Value != 100 {
		t.Errorf("GW01 outliers = %+v", outliers)
	}

	env.mustDo(t, http.MethodGet, "/api/v1/networks/NET01/gateways/GW99/stats", op, "", http.StatusNotFound)
	env.mustDo(t, http.MethodGet, "/api/v1/networks/NET99/gateways/GW01/stats", op, "", http.StatusNotFound)
}

func TestParseNetworkQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet,
		"/x?sensorMacs=A,%20B,&sensorMacs=C&startDate=2025-02-18T16:00:00%2B01:00", nil)

	q, err := parseNetworkQuery(req)
	if err != nil {
		t.Fatalf("parseNetworkQuery: %v", err)
	}
	want := []string{"A", "B", "C"}
	if len(q.SensorMacs) != len(want) {
		t.Fatalf("SensorMacs = %v, want %v", q.SensorMacs, want)
	}
	for i := range want {
		if q.SensorMacs[i] != want[i] {
			t.Errorf("SensorMacs[%d] = %q, want %q", i, q.SensorMacs[i], want[i])
		}
	}
	if q.Window.Start == nil || q.Window.Start.Hour() != 15 || q.Window.End != nil {
		t.Errorf("window = %+v, want start 15:00 UTC and open end", q.Window)
	}
}
