// Package config loads settings for the gophsocial CLI: defaults, an
// optional JSON file, GOPHSOCIAL_CLIENT_* environment variables and flags,
// each layer overriding the previous one.
package config

import "time"

// Config holds runtime settings for the CLI.
//
// Fields:
//   - ServerURL: base URL of the gophsocial HTTP API.
//   - RequestTimeout: deadline of a single API call.
//   - SessionDir: directory, relative to the working directory, where the
//     access token is kept between runs.
type Config struct {
	ServerURL      string        `env:"GOPHSOCIAL_CLIENT_SERVER_URL"`
	RequestTimeout time.Duration `env:"GOPHSOCIAL_CLIENT_REQUEST_TIMEOUT"`
	SessionDir     string        `env:"GOPHSOCIAL_CLIENT_SESSION_DIR"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.RequestTimeout = 5 * time.Second
	c.SessionDir = ".gophsocial"
}

// LoadConfig constructs a Config from defaults, then JSON, environment and
// args (the command line without the program name).
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, nil); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
