package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophsocial/internal/flagx"
	"github.com/dmitrijs2005/gophsocial/internal/timex"
)

// JsonConfig is the on-disk shape of the CLI configuration file.
type JsonConfig struct {
	ServerURL      string         `json:"server_url"`
	RequestTimeout timex.Duration `json:"request_timeout"`
	SessionDir     string         `json:"session_dir"`
}

// parseJson overlays the file named by -c/-config onto cfg. Keys absent from
// the file keep their current value.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	jc := JsonConfig{
		ServerURL:      cfg.ServerURL,
		RequestTimeout: timex.Duration{Duration: cfg.RequestTimeout},
		SessionDir:     cfg.SessionDir,
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	cfg.ServerURL = jc.ServerURL
	cfg.RequestTimeout = jc.RequestTimeout.Duration
	cfg.SessionDir = jc.SessionDir
	return nil
}
