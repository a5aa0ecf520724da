// Command ratelimit-advisor serves the adaptive rate-limit recommendation
// engine over HTTP (SPEC_FULL.md §2): a cobra root plus a serve subcommand
// and a one-shot health-check subcommand, in the teacher's
// cmd/cryptorun/main.go pattern of a cobra.Command root with leaf
// subcommands.
package main

import (
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	appName = "ratelimit-advisor"
	version = "v1.0.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if isatty.IsTerminal(os.Stderr.Fd()) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Adaptive rate-limit recommendation engine",
		Version: version,
		Long: `ratelimit-advisor serves an online rate-limit advisor: a reverse
proxy, gateway, or sidecar reports observed traffic telemetry and its
current limiter configuration to POST /v1/limit-config, and the advisor
replies with a recommended configuration for the next short horizon.`,
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newHealthCheckCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
