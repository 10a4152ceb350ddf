package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name      string
		start     *Config
		args      []string
		expected  *Config
		expectErr bool
	}{
		{
			name: "all flags",
			start: &Config{},
			args: []string{
				"-a", "127.0.0.1:9090", "-m", "memory", "-d", "db", "-s", "secret",
				"-t", "60", "-r", "5", "-k", "11", "-w", "2", "-n", "4",
				"-u", "user", "-p", "password", "-b", "bucket", "-g", "us-west-1", "-e", "http://endpoint",
				"-o", "https://social.example", "-l", "debug",
			},
			expected: &Config{
				HTTPAddr:                    "127.0.0.1:9090",
				StorageBackend:              "memory",
				DatabaseDSN:                 "db",
				SecretKey:                   "secret",
				AccessTokenValidityDuration: time.Hour,
				ResetTokenValidityDuration:  5 * time.Minute,
				BcryptCost:                  11,
				CascadeSweepWorkers:         2,
				FollowRetryAttempts:         4,
				S3RootUser:                  "user",
				S3RootPassword:              "password",
				S3Bucket:                    "bucket",
				S3Region:                    "us-west-1",
				S3BaseEndpoint:              "http://endpoint",
				PublicBaseURL:               "https://social.example",
				LogLevel:                    "debug",
			},
		},
		{
			name:     "foreign flags are ignored",
			start:    &Config{HTTPAddr: ":1"},
			args:     []string{"-c", "cfg.json", "-x", "y", "-a", ":2"},
			expected: &Config{HTTPAddr: ":2"},
		},
		{
			name:     "sub-minute durations survive when minute flags are absent",
			start:    &Config{AccessTokenValidityDuration: 30 * time.Second},
			args:     nil,
			expected: &Config{AccessTokenValidityDuration: 30 * time.Second},
		},
		{
			name:      "bad int",
			start:     &Config{},
			args:      []string{"-k", "lots"},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseFlags(tt.start, tt.args)
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.expected, tt.start))
		})
	}
}
