package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/gophsocial/internal/flagx"
)

var ownFlags = []string{"-a", "-m", "-d", "-s", "-t", "-r", "-k", "-w", "-n", "-u", "-p", "-b", "-g", "-e", "-o", "-l"}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-m string   storage backend: postgres or memory
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-r int      reset token validity, minutes
//	-k int      bcrypt cost
//	-w int      cascade sweep workers
//	-n int      follow retry attempts
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-o string   public base URL
//	-l string   log level
//
// args are filtered with flagx.FilterArgs first so flags owned by other
// components (-c) do not fail parsing.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, ownFlags)

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.StorageBackend, "m", config.StorageBackend, "storage backend")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	resetTokenValidity := fs.Int("r", int(config.ResetTokenValidityDuration.Minutes()), "reset token validity (in minutes)")

	fs.IntVar(&config.BcryptCost, "k", config.BcryptCost, "bcrypt cost")
	fs.IntVar(&config.CascadeSweepWorkers, "w", config.CascadeSweepWorkers, "cascade sweep workers")
	fs.Uint64Var(&config.FollowRetryAttempts, "n", config.FollowRetryAttempts, "follow retry attempts")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.PublicBaseURL, "o", config.PublicBaseURL, "public base URL")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	// Minute flags only apply when given, so sub-minute values from earlier
	// layers survive.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenValidityDuration = time.Duration(*accessTokenValidity) * time.Minute
		case "r":
			config.ResetTokenValidityDuration = time.Duration(*resetTokenValidity) * time.Minute
		}
	})
	return nil
}
