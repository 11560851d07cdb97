package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/geocontrol/geocontrol-core/internal/auth"
	"github.com/geocontrol/geocontrol-core/internal/infrastructure/metrics"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "route not found")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/auth", s.handleLogin)
		if s.metrics {
			r.Handle("/metrics", metrics.Handler())
		}

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/users", func(r chi.Router) {
				r.Use(requirePermission(auth.PermUserManage))
				r.Get("/", s.handleListUsers)
				r.Post("/", s.handleCreateUser)
				r.Get("/{username}", s.handleGetUser)
				r.Delete("/{username}", s.handleDeleteUser)
			})

			r.With(requirePermission(auth.PermAuditRead)).Get("/audit", s.handleListAudit)

			r.Route("/networks", func(r chi.Router) {
				read := r.With(requirePermission(auth.PermNetworkRead))
				write := r.With(requirePermission(auth.PermNetworkWrite))

				read.Get("/", s.handleListNetworks)
				write.Post("/", s.handleCreateNetwork)

				r.Route("/{networkCode}", func(r chi.Router) {
					read := r.With(requirePermission(auth.PermNetworkRead))
					write := r.With(requirePermission(auth.PermNetworkWrite))

					read.Get("/", s.handleGetNetwork)
					write.Patch("/", s.handleUpdateNetwork)
					write.Delete("/", s.handleDeleteNetwork)

					read.Get("/measurements", s.handleNetworkMeasurements)
					read.Get("/stats", s.handleNetworkStats)
					read.Get("/outliers", s.handleNetworkOutliers)

					read.Get("/gateways", s.handleListGateways)
					write.Post("/gateways", s.handleCreateGateway)

					r.Route("/gateways/{gatewayMac}", s.gatewayRoutes)
				})
			})
		})
	})

	return r
}

// gatewayRoutes mounts the routes below /networks/{networkCode}/gateways/{gatewayMac}.
func (s *Server) gatewayRoutes(r chi.Router) {
	read := r.With(requirePermission(auth.PermNetworkRead))
	write := r.With(requirePermission(auth.PermNetworkWrite))

	read.Get("/", s.handleGetGateway)
	write.Patch("/", s.handleUpdateGateway)
	write.Delete("/", s.handleDeleteGateway)

	read.Get("/measurements", s.handleGatewayMeasurements)
	read.Get("/stats", s.handleGatewayStats)
	read.Get("/outliers", s.handleGatewayOutliers)

	read.Get("/sensors", s.handleListSensors)
	write.Post("/sensors", s.handleCreateSensor)

	r.Route("/sensors/{sensorMac}", func(r chi.Router) {
		read := r.With(requirePermission(auth.PermNetworkRead))
		write := r.With(requirePermission(auth.PermNetworkWrite))

		read.Get("/", s.handleGetSensor)
		write.Patch("/", s.handleUpdateSensor)
		write.Delete("/", s.handleDeleteSensor)

		read.Get("/measurements", s.handleSensorMeasurements)
		r.With(requirePermission(auth.PermMeasurementWrite)).Post("/measurements", s.handleStoreMeasurements)
		read.Get("/stats", s.handleSensorStats)
		read.Get("/outliers", s.handleSensorOutliers)
	})
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{
		"status":  "ok",
		"version": s.version,
	}
	if s.database != nil {
		if err := s.database.HealthCheck(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = err.Error()
		}
	}
	writeJSON(w, status, body)
}
