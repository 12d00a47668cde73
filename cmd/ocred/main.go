package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/project-ocre/ocre/pkg/log"
	"github.com/project-ocre/ocre/pkg/metrics"
	"github.com/project-ocre/ocre/pkg/supervisor"
)

const shutdownTimeout = 15 * time.Second

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "ocred",
	Short:   "ocred - the Ocre container runtime supervisor daemon",
	Long:    `ocred owns a Library and its default Context and serves container and image operations over a Unix domain socket.`,
	Version: Version,
	RunE:    run,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("ocred version %s (%s)\n", Version, Commit))

	rootCmd.Flags().String("socket", "/run/ocre/ocred.sock", "Unix domain socket to listen on")
	rootCmd.Flags().String("workdir", "/var/lib/ocre", "Working directory for images and container state")
	rootCmd.Flags().String("db", "/var/lib/ocre/ocred.db", "Path to the container metadata store")
	rootCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.Flags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.Flags().String("metrics-addr", ":9090", "Address to serve /metrics, /healthz, /readyz and /livez on; empty disables it")

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	level, _ := rootCmd.Flags().GetString("log-level")
	jsonOutput, _ := rootCmd.Flags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOutput})
}

func run(cmd *cobra.Command, args []string) error {
	socketPath, _ := cmd.Flags().GetString("socket")
	workdir, _ := cmd.Flags().GetString("workdir")
	dbPath, _ := cmd.Flags().GetString("db")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	metrics.SetVersion(Version)

	sv, err := supervisor.Open(workdir, dbPath)
	if err != nil {
		return fmt.Errorf("failed to start supervisor: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 2)
	go func() {
		errCh <- sv.Serve(ctx, socketPath)
	}()
	if metricsAddr != "" {
		go func() {
			errCh <- sv.ServeMetrics(ctx, metricsAddr)
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			log.Logger.Error().Err(err).Msg("serve loop exited with an error")
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := sv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down cleanly: %w", err)
	}

	log.Logger.Info().Msg("shutdown complete")
	return nil
}
