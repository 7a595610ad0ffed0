package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"buildsession/internal/server"
	"buildsession/internal/service"
	"buildsession/internal/state"
	"buildsession/internal/transport"

	"github.com/spf13/cobra"
)

func init() {
	watchCmd.Flags().StringP("message", "m", "", "chat message to send once the workspace is ready")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Connect and print the transcript as it changes",
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := newConsoleLogger(cfg.Log, os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	deps, err := server.InitDeps(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialise dependencies: %w", err)
	}
	defer deps.Close()

	manager, store := server.NewSession(cfg, deps, transport.NewWebSocket)
	defer manager.Close()
	svc := service.NewService(manager, store, logger)

	changes := svc.StreamChanges(ctx)
	if err := svc.Connect(ctx); err != nil {
		return err
	}

	out := newTranscriptPrinter(cmd.OutOrStdout())
	out.print(svc.Snapshot())

	if msg, _ := cmd.Flags().GetString("message"); msg != "" {
		go func() {
			if _, err := svc.WaitForReady(ctx, waitPollInterval); err != nil {
				logger.Warn("Workspace never became ready", "error", err)
				return
			}
			if err := svc.SendChat(ctx, msg); err != nil {
				logger.Error("Failed to send message", "error", err)
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			out.print(svc.Snapshot())
		}
	}
}

// transcriptPrinter writes finished transcript entries once each.
type transcriptPrinter struct {
	w       io.Writer
	printed map[string]string
}

func newTranscriptPrinter(w io.Writer) *transcriptPrinter {
	return &transcriptPrinter{w: w, printed: make(map[string]string)}
}

func (p *transcriptPrinter) print(s state.State) {
	for _, e := range s.Transcript {
		if e.Streaming {
			continue
		}
		key := e.ID
		if key == "" {
			key = string(e.Kind) + "@" + strconv.FormatInt(e.Timestamp, 10) + ":" + e.Text
		}
		if prev, ok := p.printed[key]; ok && prev == e.Text {
			continue
		}
		p.printed[key] = e.Text
		fmt.Fprintf(p.w, "[%s] %s\n", e.Sender, e.Text)
	}
}

const waitPollInterval = 250 * time.Millisecond
