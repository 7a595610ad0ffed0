package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"buildsession/internal/eventbus"
	"buildsession/internal/monitor"
	"buildsession/internal/protocol"
	"buildsession/internal/state"
	"buildsession/internal/transport"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

var _ Connector = (*Manager)(nil)

const connectKey = "connect"

// Manager owns the connection for one session: at most one connect attempt
// in flight, idempotent disconnect, and the processed-id set.
type Manager struct {
	cfg     Config
	store   *state.Store
	ids     *state.IDSet
	bus     *eventbus.Bus
	factory transport.Factory
	group   singleflight.Group
	rec     *reconnector
	now     func() time.Time
	logger  *slog.Logger

	mu         sync.Mutex
	conn       transport.Conn
	sess       *sessionContext
	connecting bool
	connected  bool
	closed     bool
	promptSent bool
}

type Option func(*managerOptions)

type managerOptions struct {
	mirror eventbus.Mirror
	now    func() time.Time
}

// WithMirror republishes every dispatched frame to m under this session.
func WithMirror(m eventbus.Mirror) Option {
	return func(o *managerOptions) { o.mirror = m }
}

func WithClock(now func() time.Time) Option {
	return func(o *managerOptions) { o.now = now }
}

func NewManager(cfg Config, store *state.Store, factory transport.Factory, logger *slog.Logger, opts ...Option) *Manager {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 15 * time.Second
	}
	if cfg.Reconnect.Mode == "" {
		cfg.Reconnect = DefaultReconnectPolicy()
	}
	if factory == nil {
		factory = transport.NewWebSocket
	}

	o := managerOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Manager{
		cfg:     cfg,
		store:   store,
		ids:     state.NewIDSet(),
		factory: factory,
		now:     o.now,
		logger:  logger.With("component", "session-manager", "session_id", cfg.SessionID),
	}

	busOpts := []eventbus.Option{eventbus.WithErrorHandler(m.handleHandlerError)}
	if o.mirror != nil {
		busOpts = append(busOpts, eventbus.WithMirror(o.mirror, cfg.SessionID))
	}
	m.bus = eventbus.New(store.Handler(m.ids), logger, busOpts...)
	m.rec = newReconnector(m, cfg.Reconnect, m.logger)
	return m
}

func (m *Manager) SessionID() string { return m.cfg.SessionID }

func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Connecting reports whether a connect attempt is outstanding.
func (m *Manager) Connecting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connecting
}

// Connect opens the connection, or joins the attempt already in flight.
// It returns nil right away when already connected. Abandoning ctx does not
// cancel the shared attempt, which is bounded by ConnectTimeout.
func (m *Manager) Connect(ctx context.Context) error {
	if m.cfg.SessionID == "" {
		m.logger.Error("Refusing to connect without a session id")
		m.store.Dispatch(state.Notice{Kind: protocol.KindError, Text: state.TextMissingSession})
		return ErrMissingSessionID
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if m.connected {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	ch := m.group.DoChan(connectKey, func() (any, error) {
		return nil, m.dial()
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) dial() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if m.connected {
		m.mu.Unlock()
		return nil
	}
	sc := newSessionContext()
	m.sess = sc
	m.connecting = true
	conn := m.factory(m.transportOptions(sc))
	m.conn = conn
	m.mu.Unlock()

	m.logger.Info("Connecting", "url", m.cfg.URL)
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ConnectTimeout)
	defer cancel()
	err := conn.Open(ctx)

	m.mu.Lock()
	if m.sess != sc || !sc.alive() {
		// Torn down or closed while the handshake was pending.
		m.mu.Unlock()
		_ = conn.Close()
		if cause := sc.err(); cause != nil && !errors.Is(cause, ErrConnectAborted) {
			return cause
		}
		return ErrConnectAborted
	}
	m.connecting = false
	if err != nil {
		m.conn = nil
		m.sess = nil
		sc.destroy(err)
		m.mu.Unlock()

		m.logger.Warn("Connect failed", "error", err)
		m.store.Dispatch(state.Notice{Kind: protocol.KindError, Text: connectionErrorText(err)})
		return fmt.Errorf("connect: %w", err)
	}
	m.connected = true
	m.mu.Unlock()

	m.logger.Info("Connected")
	m.store.Dispatch(state.ConnectionChanged{Connected: true})
	m.store.Dispatch(state.Notice{Kind: protocol.KindInit, Text: state.TextConnected})

	if m.cfg.SendInit {
		if err := m.Send(sc.ctx, protocol.InitData{}); err != nil {
			m.logger.Warn("Failed to send init handshake", "error", err)
		}
	}

	// Frames read while Open was still pending are applied now, after the
	// connected notice. An init among them may already call for the prompt.
	if sc.adopt() {
		m.maybeSendInitialPrompt(sc)
	}
	return nil
}

func (m *Manager) transportOptions(sc *sessionContext) transport.Options {
	opts := m.cfg.Transport
	opts.URL = m.cfg.URL
	opts.Token = m.cfg.Token
	opts.SessionID = m.cfg.SessionID
	opts.Logger = m.logger
	opts.OnEvent = func(ev protocol.Event) { m.deliver(sc, ev) }
	opts.OnProtocolError = func(err error) { m.handleProtocolError(sc, err) }
	opts.OnClose = func(err error) { m.handleClose(sc, err) }
	return opts
}

// deliver hands one decoded frame to the bus unless its connection has
// been torn down.
func (m *Manager) deliver(sc *sessionContext, ev protocol.Event) {
	if !sc.run(func() { m.bus.Dispatch(sc.ctx, ev) }) {
		monitor.StaleDeliveries.Inc()
		return
	}
	if ev.Kind == protocol.KindInit {
		m.maybeSendInitialPrompt(sc)
	}
}

// handleProtocolError posts an undecodable frame as a connection error.
// The connection stays open.
func (m *Manager) handleProtocolError(sc *sessionContext, err error) {
	ok := sc.run(func() {
		m.logger.Warn("Protocol error", "error", err)
		m.store.Dispatch(state.Notice{Kind: protocol.KindError, Text: connectionErrorText(err)})
	})
	if !ok {
		monitor.StaleDeliveries.Inc()
	}
}

func (m *Manager) handleHandlerError(_ protocol.EventKind, err error) {
	m.store.Dispatch(state.Notice{Kind: protocol.KindError, Text: connectionErrorText(err)})
}

func (m *Manager) handleClose(sc *sessionContext, err error) {
	m.mu.Lock()
	if m.sess != sc || !sc.alive() {
		m.mu.Unlock()
		monitor.StaleDeliveries.Inc()
		return
	}
	wasConnected := m.connected
	m.conn = nil
	m.sess = nil
	m.connected = false
	m.connecting = false
	closed := m.closed
	sc.destroy(err)
	m.mu.Unlock()

	m.group.Forget(connectKey)
	m.ids.Clear()

	m.logger.Warn("Connection lost", "error", err)
	m.store.Dispatch(state.ConnectionChanged{Connected: false})
	m.store.Dispatch(state.Notice{Kind: protocol.KindError, Text: connectionErrorText(err)})

	if wasConnected && !closed && m.cfg.Reconnect.Mode == ReconnectBackoff {
		m.rec.Start()
	}
}

// Disconnect drops the connection. It is safe to call at any time, also
// when never connected, and a pending connect attempt returns
// ErrConnectAborted.
func (m *Manager) Disconnect() {
	m.rec.Stop()

	m.mu.Lock()
	conn, sc := m.conn, m.sess
	m.conn = nil
	m.sess = nil
	m.connected = false
	m.connecting = false
	if sc != nil {
		sc.destroy(ErrConnectAborted)
	}
	m.mu.Unlock()

	m.group.Forget(connectKey)
	if conn != nil {
		if err := conn.Close(); err != nil {
			m.logger.Debug("Close returned error", "error", err)
		}
		m.logger.Info("Disconnected")
	}
	m.ids.Clear()
	m.store.Dispatch(state.ConnectionChanged{Connected: false})
}

// Close disconnects and stops all further dispatch. The manager cannot be
// reused afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.Disconnect()
	m.bus.Clear()
}

// Send stamps payload with the session id and a send-time timestamp and
// writes it. It fails with ErrNotConnected instead of queueing.
func (m *Manager) Send(ctx context.Context, payload protocol.Outbound) error {
	kind := payload.Kind()

	m.mu.Lock()
	conn, connected := m.conn, m.connected
	m.mu.Unlock()
	if !connected || conn == nil {
		monitor.SendRejected.WithLabelValues(string(kind)).Inc()
		m.logger.Warn("Cannot send message, not connected", "kind", kind)
		return ErrNotConnected
	}

	frame, err := protocol.NewFrame(uuid.NewString(), payload, m.cfg.SessionID, m.now())
	if err != nil {
		return err
	}
	if err := conn.Send(ctx, frame); err != nil {
		if errors.Is(err, transport.ErrNotOpen) {
			monitor.SendRejected.WithLabelValues(string(kind)).Inc()
			return fmt.Errorf("%w: %v", ErrNotConnected, err)
		}
		return fmt.Errorf("send %s: %w", kind, err)
	}
	m.logger.Debug("Sent frame", "kind", kind, "id", frame.ID)
	return nil
}

// SendUserMessage sends chat text and echoes it into the transcript once
// the frame is written.
func (m *Manager) SendUserMessage(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if err := m.Send(ctx, protocol.UserData{Text: text}); err != nil {
		if errors.Is(err, ErrNotConnected) {
			m.store.Dispatch(state.Notice{Kind: protocol.KindError, Text: "Not connected to workspace."})
		}
		return err
	}
	m.store.Dispatch(state.UserMessage{ID: uuid.NewString(), Text: text})
	return nil
}

func (m *Manager) RequestFileTree(ctx context.Context) error {
	return m.Send(ctx, protocol.GetFileTreeData{})
}

func (m *Manager) RequestFileContent(ctx context.Context, path string) error {
	return m.Send(ctx, protocol.GetFileContentData{Path: path})
}

// SaveFile sends the new content and marks the file as saving until the
// server answers with file_saved or error.
func (m *Manager) SaveFile(ctx context.Context, path, content string) error {
	if err := m.Send(ctx, protocol.SaveFileData{Path: path, Content: content}); err != nil {
		return err
	}
	m.store.Dispatch(state.SaveRequested{Path: path, Content: content})
	return nil
}

// maybeSendInitialPrompt sends the configured prompt once, after the first
// init that reports a freshly created sandbox.
func (m *Manager) maybeSendInitialPrompt(sc *sessionContext) {
	if m.cfg.InitialPrompt == "" {
		return
	}
	ws := m.store.Snapshot().Workspace
	if !ws.InitCompleted || ws.SandboxPreexisted {
		return
	}

	m.mu.Lock()
	if m.promptSent || !m.connected {
		m.mu.Unlock()
		return
	}
	m.promptSent = true
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(sc.ctx, 10*time.Second)
	defer cancel()
	if err := m.SendUserMessage(ctx, m.cfg.InitialPrompt); err != nil {
		m.logger.Warn("Failed to send initial prompt", "error", err)
		m.mu.Lock()
		m.promptSent = false
		m.mu.Unlock()
	}
}
