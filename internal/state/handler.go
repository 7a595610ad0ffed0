package state

import (
	"context"
	"fmt"

	"buildsession/internal/eventbus"
	"buildsession/internal/protocol"
)

var _ eventbus.Handler = (*Handler)(nil)

// Handler feeds bus events into a Store using the caller's IDSet.
type Handler struct {
	store *Store
	ids   *IDSet
}

// Handler binds the store to the processed-id set of one connection manager.
func (s *Store) Handler(ids *IDSet) *Handler {
	return &Handler{store: s, ids: ids}
}

func (h *Handler) apply(kind protocol.EventKind, ev protocol.Event) error {
	if ev.Payload == nil || ev.Payload.Kind() != kind {
		return fmt.Errorf("payload %T does not match kind %s", ev.Payload, kind)
	}
	h.store.Apply(ev, h.ids)
	return nil
}

func (h *Handler) HandleInit(_ context.Context, ev protocol.Event) error {
	return h.apply(protocol.KindInit, ev)
}

func (h *Handler) HandleAgentPartial(_ context.Context, ev protocol.Event) error {
	return h.apply(protocol.KindAgentPartial, ev)
}

func (h *Handler) HandleAgentFinal(_ context.Context, ev protocol.Event) error {
	return h.apply(protocol.KindAgentFinal, ev)
}

func (h *Handler) HandleUpdateInProgress(_ context.Context, ev protocol.Event) error {
	return h.apply(protocol.KindUpdateInProgress, ev)
}

func (h *Handler) HandleUpdateFile(_ context.Context, ev protocol.Event) error {
	return h.apply(protocol.KindUpdateFile, ev)
}

func (h *Handler) HandleUpdateCompleted(_ context.Context, ev protocol.Event) error {
	return h.apply(protocol.KindUpdateCompleted, ev)
}

func (h *Handler) HandleFileTree(_ context.Context, ev protocol.Event) error {
	return h.apply(protocol.KindFileTree, ev)
}

func (h *Handler) HandleFileContent(_ context.Context, ev protocol.Event) error {
	return h.apply(protocol.KindFileContent, ev)
}

func (h *Handler) HandleFileSaved(_ context.Context, ev protocol.Event) error {
	return h.apply(protocol.KindFileSaved, ev)
}

func (h *Handler) HandleError(_ context.Context, ev protocol.Event) error {
	return h.apply(protocol.KindError, ev)
}
