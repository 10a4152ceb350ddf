package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// parseEnv overlays GOPHSOCIAL_CLIENT_* variables onto cfg. environ replaces
// the process environment when non-nil.
func parseEnv(cfg *Config, environ map[string]string) error {
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}
