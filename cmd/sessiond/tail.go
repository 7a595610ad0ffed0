package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"buildsession/internal/eventbus"
	"buildsession/internal/protocol"
	"buildsession/internal/server"

	"github.com/spf13/cobra"
)

func init() {
	tailCmd.Flags().String("session", "", "session id to follow (defaults to session.session_id)")
	rootCmd.AddCommand(tailCmd)
}

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print frames mirrored to Redis by a running daemon",
	RunE:  runTail,
}

func runTail(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Redis.Enabled {
		return errors.New("tail needs redis.enabled=true")
	}
	sessionID, _ := cmd.Flags().GetString("session")
	if sessionID == "" {
		sessionID = cfg.Session.SessionID
	}
	if sessionID == "" {
		return errors.New("no session id: pass --session or set session.session_id")
	}

	logger := newConsoleLogger(cfg.Log, os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	deps, err := server.InitDeps(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialise dependencies: %w", err)
	}
	defer deps.Close()

	frames, err := eventbus.NewRedisMirror(deps.Redis, logger).Subscribe(ctx, sessionID)
	if err != nil {
		return err
	}
	logger.Info("Following session", "session_id", sessionID, "channel", eventbus.SessionChannelKey(sessionID))

	out := cmd.OutOrStdout()
	for frame := range frames {
		data, err := protocol.Encode(frame)
		if err != nil {
			logger.Warn("Skipping frame", "error", err)
			continue
		}
		fmt.Fprintln(out, string(data))
	}
	return nil
}
