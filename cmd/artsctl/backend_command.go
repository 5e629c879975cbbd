package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/artsengine/internal/adapter/driven/backend"
	"github.com/ericfisherdev/artsengine/internal/domain/model"
)

const probeTimeout = 5 * time.Second

func newBackendCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "backend",
		Short: "Check the generation backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := backend.New(cfg.APIBase)
			if err != nil {
				return err
			}

			c, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
			defer cancel()

			health, err := client.Health(c)
			switch {
			case err == nil:
				line := fmt.Sprintf("%s: online", client.BaseURL())
				if health.Provider != "" {
					line += " (" + model.ProviderLabel(health.Provider) + ")"
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
				return nil
			case backend.IsUnreachable(err):
				return fmt.Errorf("%s: unreachable; start the backend or pass --api-base", client.BaseURL())
			default:
				return fmt.Errorf("%s: unhealthy: %w", client.BaseURL(), err)
			}
		},
	}
}

func newPingCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the artsengine server answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				addr = cfg.ListenAddr
			}
			target := normalizeAddr(addr)

			c, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
			defer cancel()

			req, err := http.NewRequestWithContext(c, http.MethodGet, fmt.Sprintf("http://%s/api/v1/health", target), nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return fmt.Errorf("server at %s not reachable: %w", target, err)
			}
			_ = resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return errors.New("server at " + target + " answered " + resp.Status)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", target)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Server address (default from ARTSENGINE_LISTEN_ADDR)")
	return cmd
}

// normalizeAddr connects to loopback rather than the bind-all address.
// Containers bind 0.0.0.0 but the check runs alongside the server, so
// loopback is reachable and more correct.
func normalizeAddr(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "127.0.0.1:8090"
	}

	host, port, err := net.SplitHostPort(raw)
	if err != nil {
		return "127.0.0.1:8090"
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	return net.JoinHostPort(host, port)
}
