package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophsocial/internal/flagx"
	"github.com/dmitrijs2005/gophsocial/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so both "15m" and integer nanoseconds are accepted.
type JsonConfig struct {
	HTTPAddr                    string         `json:"http_addr"`
	StorageBackend              string         `json:"storage"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	ResetTokenValidityDuration  timex.Duration `json:"reset_token_validity_duration"`
	BcryptCost                  int            `json:"bcrypt_cost"`
	CascadeSweepWorkers         int            `json:"cascade_sweep_workers"`
	FollowRetryAttempts         uint64         `json:"follow_retry_attempts"`
	FollowRetryBaseDelay        timex.Duration `json:"follow_retry_base_delay"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
	PublicBaseURL               string         `json:"public_base_url"`
	LogLevel                    string         `json:"log_level"`
}

// parseJson overlays the file named by -c/-config onto config. Keys absent
// from the file keep their current value. No flag means no file.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	fromJson(config, c)
	return nil
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		HTTPAddr:                    c.HTTPAddr,
		StorageBackend:              c.StorageBackend,
		DatabaseDSN:                 c.DatabaseDSN,
		SecretKey:                   c.SecretKey,
		AccessTokenValidityDuration: timex.Duration{Duration: c.AccessTokenValidityDuration},
		ResetTokenValidityDuration:  timex.Duration{Duration: c.ResetTokenValidityDuration},
		BcryptCost:                  c.BcryptCost,
		CascadeSweepWorkers:         c.CascadeSweepWorkers,
		FollowRetryAttempts:         c.FollowRetryAttempts,
		FollowRetryBaseDelay:        timex.Duration{Duration: c.FollowRetryBaseDelay},
		S3RootUser:                  c.S3RootUser,
		S3RootPassword:              c.S3RootPassword,
		S3Bucket:                    c.S3Bucket,
		S3Region:                    c.S3Region,
		S3BaseEndpoint:              c.S3BaseEndpoint,
		PublicBaseURL:               c.PublicBaseURL,
		LogLevel:                    c.LogLevel,
	}
}

func fromJson(config *Config, c *JsonConfig) {
	config.HTTPAddr = c.HTTPAddr
	config.StorageBackend = c.StorageBackend
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	config.ResetTokenValidityDuration = c.ResetTokenValidityDuration.Duration
	config.BcryptCost = c.BcryptCost
	config.CascadeSweepWorkers = c.CascadeSweepWorkers
	config.FollowRetryAttempts = c.FollowRetryAttempts
	config.FollowRetryBaseDelay = c.FollowRetryBaseDelay.Duration
	config.S3RootUser = c.S3RootUser
	config.S3RootPassword = c.S3RootPassword
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.PublicBaseURL = c.PublicBaseURL
	config.LogLevel = c.LogLevel
}
