package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"buildsession/internal/monitor"
	"buildsession/internal/protocol"

	"github.com/gorilla/websocket"
)

var _ Conn = (*WebSocketConn)(nil)

// WebSocketConn is a Conn over gorilla/websocket. One goroutine reads and
// decodes frames; writes are serialised by writeMu.
type WebSocketConn struct {
	opts   Options
	dialer *websocket.Dialer
	logger *slog.Logger

	mu         sync.Mutex
	state      State
	conn       *websocket.Conn
	cancelDial context.CancelFunc

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

// NewWebSocket is the default Factory.
func NewWebSocket(opts Options) Conn {
	opts = opts.withDefaults()
	return &WebSocketConn{
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		logger: opts.Logger.With("component", "transport"),
		done:   make(chan struct{}),
	}
}

func (c *WebSocketConn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *WebSocketConn) Done() <-chan struct{} { return c.done }

// Open performs the handshake. A Close while the handshake is pending makes
// Open discard the socket and return ErrClosed.
func (c *WebSocketConn) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrAlreadyUsed
	}
	c.state = StateConnecting
	dialCtx, cancel := context.WithCancel(ctx)
	c.cancelDial = cancel
	c.mu.Unlock()
	defer cancel()

	target, err := endpoint(c.opts.URL, c.opts.SessionID)
	if err != nil {
		c.abort()
		return &TransportError{Op: "dial", Err: err}
	}
	header := http.Header{}
	if c.opts.Token != "" {
		header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	start := time.Now()
	conn, resp, err := c.dialer.DialContext(dialCtx, target, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	monitor.ConnectLatency.Observe(time.Since(start).Seconds())

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		monitor.ConnectAttempts.WithLabelValues("aborted").Inc()
		return ErrClosed
	}
	if err != nil {
		c.state = StateClosed
		c.mu.Unlock()
		c.finish()
		monitor.ConnectAttempts.WithLabelValues("failed").Inc()
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return &TransportError{Op: "dial", Err: err}
	}
	c.conn = conn
	c.state = StateOpen
	c.mu.Unlock()

	monitor.ConnectAttempts.WithLabelValues("opened").Inc()
	monitor.ConnectionOpen.Set(1)
	c.logger.Info("Connection opened", "url", c.opts.URL, "session_id", c.opts.SessionID)

	conn.SetReadLimit(c.opts.MaxFrameBytes)
	c.extendReadDeadline(conn)
	conn.SetPongHandler(func(string) error {
		c.extendReadDeadline(conn)
		return nil
	})

	go c.readLoop(conn)
	if c.opts.PingInterval > 0 {
		go c.pingLoop(conn)
	}
	return nil
}

// Send writes one frame. It fails fast unless the connection is open.
func (c *WebSocketConn) Send(ctx context.Context, frame protocol.Frame) error {
	c.mu.Lock()
	state, conn := c.state, c.conn
	c.mu.Unlock()
	if state != StateOpen {
		return fmt.Errorf("%w (state %s)", ErrNotOpen, state)
	}

	data, err := protocol.Encode(frame)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(c.opts.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	_ = conn.SetWriteDeadline(deadline)
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		c.fail(err)
		return &TransportError{Op: "write", Err: err}
	}

	monitor.FramesSent.WithLabelValues(string(frame.Type)).Inc()
	return nil
}

// Close tears the connection down without reporting OnClose. It is safe to
// call in any state and more than once.
func (c *WebSocketConn) Close() error {
	c.mu.Lock()
	prev := c.state
	c.state = StateClosed
	conn := c.conn
	if c.cancelDial != nil {
		c.cancelDial()
	}
	c.mu.Unlock()

	if prev == StateClosed {
		return nil
	}
	defer c.finish()
	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect"),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()
	c.logger.Info("Connection closed", "session_id", c.opts.SessionID)
	return conn.Close()
}

func (c *WebSocketConn) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}
		c.extendReadDeadline(conn)
		monitor.FramesReceived.Inc()

		ev, err := protocol.Decode(data)
		if err != nil {
			monitor.ProtocolErrors.Inc()
			c.logger.Warn("Dropping malformed frame", "error", err, "size", len(data))
			c.opts.OnProtocolError(err)
			continue
		}
		c.opts.OnEvent(ev)
	}
}

func (c *WebSocketConn) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				c.fail(err)
				return
			}
		}
	}
}

func (c *WebSocketConn) extendReadDeadline(conn *websocket.Conn) {
	if c.opts.PongWait > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	}
}

// fail handles an unsolicited close. Errors seen after Close are ignored.
func (c *WebSocketConn) fail(err error) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	c.finish()

	monitor.UnsolicitedCloses.Inc()
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.logger.Info("Connection closed by peer", "error", err)
	} else {
		c.logger.Warn("Connection lost", "error", err)
	}
	c.opts.OnClose(&TransportError{Op: "read", Err: err})
}

func (c *WebSocketConn) abort() {
	c.mu.Lock()
	c.state = StateClosed
	c.mu.Unlock()
	c.finish()
}

func (c *WebSocketConn) finish() {
	c.closeOnce.Do(func() {
		close(c.done)
		monitor.ConnectionOpen.Set(0)
	})
}

// endpoint appends the session id as a query parameter.
func endpoint(raw, sessionID string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if sessionID != "" {
		q := u.Query()
		if q.Get("session_id") == "" {
			q.Set("session_id", sessionID)
			u.RawQuery = q.Encode()
		}
	}
	return u.String(), nil
}
