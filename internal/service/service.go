package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"buildsession/internal/session"
	"buildsession/internal/state"
)

var ErrSessionClosed = errors.New("session disconnected while waiting")

// Service coordinates the connection manager and the state store for the
// presentation layer.
type Service struct {
	Conn   session.Connector
	Store  *state.Store
	Logger *slog.Logger
}

func NewService(conn session.Connector, store *state.Store, logger *slog.Logger) *Service {
	return &Service{
		Conn:   conn,
		Store:  store,
		Logger: logger.With("component", "service"),
	}
}

// Connect opens the workspace connection, or joins the attempt in flight.
func (s *Service) Connect(ctx context.Context) error {
	return s.Conn.Connect(ctx)
}

func (s *Service) Disconnect() {
	s.Conn.Disconnect()
}

func (s *Service) SessionID() string { return s.Conn.SessionID() }

// SendChat sends a user chat message to the agent.
func (s *Service) SendChat(ctx context.Context, text string) error {
	return s.Conn.SendUserMessage(ctx, text)
}

func (s *Service) RequestFileTree(ctx context.Context) error {
	return s.Conn.RequestFileTree(ctx)
}

func (s *Service) RequestFileContent(ctx context.Context, path string) error {
	return s.Conn.RequestFileContent(ctx, path)
}

func (s *Service) SaveFile(ctx context.Context, path, content string) error {
	return s.Conn.SaveFile(ctx, path, content)
}

// PreviewLoaded records that the sandbox preview finished loading.
func (s *Service) PreviewLoaded() {
	s.Store.Dispatch(state.PreviewLoaded{})
}

func (s *Service) Snapshot() state.State {
	return s.Store.Snapshot()
}

// StreamChanges subscribes to committed state changes until ctx is done.
func (s *Service) StreamChanges(ctx context.Context) <-chan state.Change {
	src, cancel := s.Store.Subscribe(64)
	out := make(chan state.Change)

	go func() {
		defer close(out)
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case c, ok := <-src:
				if !ok {
					return
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// WaitForReady polls until the workspace reports init completed or the
// context is cancelled.
func (s *Service) WaitForReady(ctx context.Context, pollInterval time.Duration) (state.WorkspaceStatus, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ws := s.Store.Snapshot().Workspace
		if ws.InitCompleted {
			return ws, nil
		}
		if !s.Conn.Connected() && !s.Conn.Connecting() {
			return ws, fmt.Errorf("%w: %w", ErrSessionClosed, session.ErrNotConnected)
		}

		select {
		case <-ctx.Done():
			return ws, ctx.Err()
		case <-ticker.C:
			// Still initializing, continue polling
		}
	}
}
