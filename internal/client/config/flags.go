package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/gophsocial/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
//	-a string   base URL of the server API
//	-t int      request timeout (in seconds)
//	-s string   session directory
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-t", "-s"})

	fs := flag.NewFlagSet("cli", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the server")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")
	fs.StringVar(&cfg.SessionDir, "s", cfg.SessionDir, "session directory")

	if err := fs.Parse(args); err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			cfg.RequestTimeout = time.Duration(*timeout) * time.Second
		}
	})
	return nil
}
