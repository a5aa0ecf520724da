package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// healthResponse mirrors spec.md §6's GET /health body.
type healthResponse struct {
	Status string `json:"status"`
}

// newHealthCheckCmd builds a one-shot GET against a running instance's
// /health endpoint, useful for container liveness probes.
func newHealthCheckCmd() *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "health-check",
		Short: "Check a running instance's /health endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: timeout}
			url := fmt.Sprintf("http://%s/health", addr)

			resp, err := client.Get(url)
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("health check returned status %d", resp.StatusCode)
			}

			var body healthResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				return fmt.Errorf("decode health response: %w", err)
			}
			if body.Status != "UP" {
				return fmt.Errorf("unexpected health status: %q", body.Status)
			}

			fmt.Println("UP")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "host:port of a running instance")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")

	return cmd
}
