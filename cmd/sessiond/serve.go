package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"buildsession/internal/server"

	"github.com/spf13/cobra"
)

func init() {
	serveCmd.Flags().Bool("connect", false, "connect to the workspace on startup")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session daemon with its local HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if connect, _ := cmd.Flags().GetBool("connect"); connect {
		cfg.Session.AutoConnect = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := newServerLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	deps, err := server.InitDeps(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialise dependencies: %w", err)
	}
	defer deps.Close()

	srv := server.NewServer(cfg, deps)
	return srv.Start(ctx)
}
