package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"buildsession/internal/monitor"
	"buildsession/internal/protocol"
)

type handlerFunc func(ctx context.Context, ev protocol.Event) error

// Bus dispatches decoded events to a fixed handler table, one at a time,
// in the order the caller delivers them.
type Bus struct {
	table   map[protocol.EventKind]handlerFunc
	onError ErrorFunc
	mirror  Mirror
	channel string
	cleared atomic.Bool
	logger  *slog.Logger
}

type Option func(*Bus)

func WithErrorHandler(fn ErrorFunc) Option {
	return func(b *Bus) { b.onError = fn }
}

// WithMirror republishes every dispatched frame under sessionID.
func WithMirror(m Mirror, sessionID string) Option {
	return func(b *Bus) {
		b.mirror = m
		b.channel = sessionID
	}
}

const mirrorTimeout = 2 * time.Second

func New(h Handler, logger *slog.Logger, opts ...Option) *Bus {
	b := &Bus{
		table: map[protocol.EventKind]handlerFunc{
			protocol.KindInit:             h.HandleInit,
			protocol.KindAgentPartial:     h.HandleAgentPartial,
			protocol.KindAgentFinal:       h.HandleAgentFinal,
			protocol.KindUpdateInProgress: h.HandleUpdateInProgress,
			protocol.KindUpdateFile:       h.HandleUpdateFile,
			protocol.KindUpdateCompleted:  h.HandleUpdateCompleted,
			protocol.KindFileTree:         h.HandleFileTree,
			protocol.KindFileContent:      h.HandleFileContent,
			protocol.KindFileSaved:        h.HandleFileSaved,
			protocol.KindError:            h.HandleError,
		},
		onError: func(protocol.EventKind, error) {},
		logger:  logger.With("component", "eventbus"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Dispatch delivers ev to its handler. Handler failures, including panics,
// are reported through the error handler and never returned.
func (b *Bus) Dispatch(ctx context.Context, ev protocol.Event) {
	if b.cleared.Load() {
		return
	}
	if ev.Kind == protocol.KindPing {
		monitor.FramesDiscarded.WithLabelValues(string(ev.Kind)).Inc()
		return
	}

	fn, ok := b.table[ev.Kind]
	if !ok {
		b.logger.Warn("No handler registered for event", "kind", ev.Kind, "id", ev.ID)
		monitor.FramesDiscarded.WithLabelValues(string(ev.Kind)).Inc()
		return
	}

	monitor.FramesDispatched.WithLabelValues(string(ev.Kind)).Inc()
	if err := invoke(ctx, fn, ev); err != nil {
		monitor.HandlerErrors.WithLabelValues(string(ev.Kind)).Inc()
		b.logger.Error("Handler failed", "kind", ev.Kind, "id", ev.ID, "error", err)
		b.onError(ev.Kind, &HandlerError{Kind: ev.Kind, Err: err})
	}

	b.publish(ctx, ev)
}

// Clear turns every later Dispatch into a no-op.
func (b *Bus) Clear() {
	b.cleared.Store(true)
}

func (b *Bus) Cleared() bool { return b.cleared.Load() }

func invoke(ctx context.Context, fn handlerFunc, ev protocol.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn(ctx, ev)
}

func (b *Bus) publish(ctx context.Context, ev protocol.Event) {
	if b.mirror == nil {
		return
	}
	frame, err := protocol.FrameOf(ev)
	if err != nil {
		b.logger.Error("Failed to encode frame for mirror", "kind", ev.Kind, "error", err)
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mirrorTimeout)
	defer cancel()
	if err := b.mirror.Publish(pubCtx, b.channel, frame); err != nil {
		b.logger.Warn("Failed to mirror frame", "kind", ev.Kind, "session_id", b.channel, "error", err)
	}
}
