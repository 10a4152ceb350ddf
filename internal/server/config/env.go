package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// parseEnv overlays GOPHSOCIAL_* variables onto config. environ replaces the
// process environment when non-nil. Unset variables leave fields alone.
func parseEnv(config *Config, environ map[string]string) error {
	if err := env.ParseWithOptions(config, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}
