package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	httpAdapter "github.com/aretw0/sight/pkg/adapters/http"
	"github.com/aretw0/sight/pkg/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve <config-id>",
	Short: "Run a configuration with the admin HTTP API",
	Long: `Launches the configuration and exposes its state, channels, services, objects and
Prometheus metrics over HTTP until SIGINT or SIGTERM.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := observability.NewCollectors(reg)

		launcher, closeLauncher, err := newLauncher(cmd, launchSetup{
			hooks:      metrics.Hooks(),
			proxyHooks: metrics.ProxyHooks(),
		})
		if err != nil {
			return err
		}
		defer closeLauncher()

		m, err := launcher.Launch(args[0])
		if err != nil {
			return err
		}
		defer m.StopAndDestroy()

		srv := &http.Server{
			Addr:    ":" + port,
			Handler: httpAdapter.NewHandler(launcher.Context(), m, httpAdapter.WithGatherer(reg)),
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			fmt.Fprintf(cmd.OutOrStdout(), "Starting Sight admin server on %s\n", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
		case sig := <-shutdown:
			fmt.Fprintf(cmd.OutOrStdout(), "\nStart shutdown... Signal: %v\n", sig)

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Error killing server: %v\n", err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Sight admin server stopped gracefully")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
}
