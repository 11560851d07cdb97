// Package config loads and validates GeoControl Core configuration.
//
// Loading order:
//   - hardcoded defaults
//   - the YAML file (path from GEOCONTROL_CONFIG, default configs/config.yaml)
//   - GEOCONTROL_* environment variables
//
// Secrets (JWT secret, MQTT password, InfluxDB token, bootstrap admin
// password) should be supplied through the environment.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
package config
