package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/ai-ratelimit-advisor/internal/advisor"
	"github.com/sawpanic/ai-ratelimit-advisor/internal/httpapi"
)

// newServeCmd builds the "serve" subcommand that starts the HTTP entrypoint
// (spec.md §4.6), mirroring the teacher's runMonitor command
// (cmd/cryptorun/monitor_main.go): build dependencies, start a
// goroutine-backed server, then wait for a shutdown signal.
func newServeCmd() *cobra.Command {
	var (
		host       string
		port       int
		configFile string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP decision endpoint",
		Long:  "Starts the HTTP server exposing POST /v1/limit-config, GET /health, GET /metrics, and GET /version.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := advisor.LoadConfig(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			logger := log.Logger.Level(parseLogLevel(cfg.LogLevel))

			engine := advisor.NewEngine(cfg, nil, logger)
			metrics := httpapi.NewMetricsRegistry(algorithms())

			serverCfg := httpapi.DefaultServerConfig()
			serverCfg.Host = host
			serverCfg.Port = port

			server := httpapi.NewServer(serverCfg, engine, metrics, logger, version)

			errCh := make(chan error, 1)
			go func() {
				logger.Info().Str("addr", server.Addr()).Msg("serving")
				if err := server.Start(); err != nil {
					errCh <- err
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			select {
			case sig := <-quit:
				logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
			case err := <-errCh:
				return fmt.Errorf("server error: %w", err)
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("graceful shutdown: %w", err)
			}
			logger.Info().Msg("shutdown complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().IntVar(&port, "port", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&configFile, "config", "", "optional YAML config file overlaying built-in defaults; environment variables take precedence")

	return cmd
}

func algorithms() []advisor.Algorithm {
	return []advisor.Algorithm{advisor.AlgoFixed, advisor.AlgoSliding, advisor.AlgoToken}
}

func parseLogLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.InfoLevel
	}
	return parsed
}
