package transport

import (
	"context"
	"log/slog"
	"time"

	"buildsession/internal/protocol"
)

// Conn owns one physical connection. Closed is terminal: a retry needs a
// new Conn from the Factory.
type Conn interface {
	Open(ctx context.Context) error
	Send(ctx context.Context, frame protocol.Frame) error
	Close() error
	State() State
	Done() <-chan struct{}
}

// Factory builds a fresh Conn for every connect attempt.
type Factory func(opts Options) Conn

type Options struct {
	URL       string
	Token     string
	SessionID string

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	PongWait         time.Duration
	MaxFrameBytes    int64

	// OnEvent receives every decoded frame, ping included, from the read goroutine.
	OnEvent func(protocol.Event)
	// OnProtocolError receives frames that failed to decode.
	OnProtocolError func(error)
	// OnClose fires once when the peer or the network ends an open
	// connection. It never fires for Close.
	OnClose func(error)

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.MaxFrameBytes <= 0 {
		o.MaxFrameBytes = 8 << 20
	}
	if o.OnEvent == nil {
		o.OnEvent = func(protocol.Event) {}
	}
	if o.OnProtocolError == nil {
		o.OnProtocolError = func(error) {}
	}
	if o.OnClose == nil {
		o.OnClose = func(error) {}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
