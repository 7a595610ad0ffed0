package eventbus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"buildsession/internal/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder records every call and fails or panics on demand.
type recorder struct {
	mu      sync.Mutex
	calls   []protocol.EventKind
	failOn  protocol.EventKind
	panicOn protocol.EventKind
}

func (r *recorder) handle(ev protocol.Event) error {
	r.mu.Lock()
	r.calls = append(r.calls, ev.Kind)
	r.mu.Unlock()
	if ev.Kind == r.panicOn {
		panic("boom")
	}
	if ev.Kind == r.failOn {
		return errors.New("handler failed")
	}
	return nil
}

func (r *recorder) HandleInit(_ context.Context, ev protocol.Event) error { return r.handle(ev) }
func (r *recorder) HandleAgentPartial(_ context.Context, ev protocol.Event) error {
	return r.handle(ev)
}
func (r *recorder) HandleAgentFinal(_ context.Context, ev protocol.Event) error { return r.handle(ev) }
func (r *recorder) HandleUpdateInProgress(_ context.Context, ev protocol.Event) error {
	return r.handle(ev)
}
func (r *recorder) HandleUpdateFile(_ context.Context, ev protocol.Event) error { return r.handle(ev) }
func (r *recorder) HandleUpdateCompleted(_ context.Context, ev protocol.Event) error {
	return r.handle(ev)
}
func (r *recorder) HandleFileTree(_ context.Context, ev protocol.Event) error    { return r.handle(ev) }
func (r *recorder) HandleFileContent(_ context.Context, ev protocol.Event) error { return r.handle(ev) }
func (r *recorder) HandleFileSaved(_ context.Context, ev protocol.Event) error   { return r.handle(ev) }
func (r *recorder) HandleError(_ context.Context, ev protocol.Event) error       { return r.handle(ev) }

func (r *recorder) kinds() []protocol.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.EventKind(nil), r.calls...)
}

type fakeMirror struct {
	mu     sync.Mutex
	frames []protocol.Frame
}

func (m *fakeMirror) Publish(_ context.Context, _ string, f protocol.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, f)
	return nil
}

func (m *fakeMirror) Subscribe(context.Context, string) (<-chan protocol.Frame, error) {
	return nil, errors.New("not supported")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ev(kind protocol.EventKind, payload protocol.Payload) protocol.Event {
	return protocol.Event{ID: "id-" + string(kind), Kind: kind, Payload: payload}
}

func TestDispatchRoutesEveryInboundKind(t *testing.T) {
	rec := &recorder{}
	bus := New(rec, testLogger())

	inbound := []protocol.Event{
		ev(protocol.KindInit, protocol.InitData{}),
		ev(protocol.KindAgentPartial, protocol.AgentPartialData{Text: "a"}),
		ev(protocol.KindAgentFinal, protocol.AgentFinalData{Text: "a"}),
		ev(protocol.KindUpdateInProgress, protocol.UpdateInProgressData{}),
		ev(protocol.KindUpdateFile, protocol.UpdateFileData{}),
		ev(protocol.KindUpdateCompleted, protocol.UpdateCompletedData{}),
		ev(protocol.KindFileTree, protocol.FileTreeData{}),
		ev(protocol.KindFileContent, protocol.FileContentData{Path: "a"}),
		ev(protocol.KindFileSaved, protocol.FileSavedData{Path: "a"}),
		ev(protocol.KindError, protocol.ErrorData{}),
	}
	var want []protocol.EventKind
	for _, e := range inbound {
		bus.Dispatch(context.Background(), e)
		want = append(want, e.Kind)
	}

	assert.Equal(t, want, rec.kinds())
}

func TestDispatchDiscardsPingAndClientKinds(t *testing.T) {
	rec := &recorder{}
	bus := New(rec, testLogger())

	bus.Dispatch(context.Background(), ev(protocol.KindPing, protocol.PingData{}))
	bus.Dispatch(context.Background(), ev(protocol.KindUser, protocol.UserData{Text: "echo"}))

	assert.Empty(t, rec.kinds())
}

func TestHandlerFailureIsIsolated(t *testing.T) {
	rec := &recorder{failOn: protocol.KindFileTree, panicOn: protocol.KindAgentPartial}

	var mu sync.Mutex
	var reported []error
	bus := New(rec, testLogger(), WithErrorHandler(func(kind protocol.EventKind, err error) {
		mu.Lock()
		defer mu.Unlock()
		reported = append(reported, err)
	}))

	bus.Dispatch(context.Background(), ev(protocol.KindAgentPartial, protocol.AgentPartialData{Text: "x"}))
	bus.Dispatch(context.Background(), ev(protocol.KindFileTree, protocol.FileTreeData{}))
	bus.Dispatch(context.Background(), ev(protocol.KindAgentFinal, protocol.AgentFinalData{Text: "x"}))

	assert.Equal(t, []protocol.EventKind{
		protocol.KindAgentPartial, protocol.KindFileTree, protocol.KindAgentFinal,
	}, rec.kinds())

	require.Len(t, reported, 2)
	var herr *HandlerError
	require.ErrorAs(t, reported[0], &herr)
	assert.Equal(t, protocol.KindAgentPartial, herr.Kind)
	assert.Contains(t, herr.Error(), "panic")
	require.ErrorAs(t, reported[1], &herr)
	assert.Equal(t, protocol.KindFileTree, herr.Kind)
}

func TestClearStopsDispatch(t *testing.T) {
	rec := &recorder{}
	bus := New(rec, testLogger())

	bus.Clear()
	bus.Dispatch(context.Background(), ev(protocol.KindInit, protocol.InitData{}))

	assert.True(t, bus.Cleared())
	assert.Empty(t, rec.kinds())
}

func TestDispatchMirrorsFrames(t *testing.T) {
	mirror := &fakeMirror{}
	bus := New(&recorder{}, testLogger(), WithMirror(mirror, "s1"))

	bus.Dispatch(context.Background(), ev(protocol.KindAgentFinal, protocol.AgentFinalData{Text: "done"}))
	bus.Dispatch(context.Background(), ev(protocol.KindPing, protocol.PingData{}))

	require.Len(t, mirror.frames, 1)
	assert.Equal(t, protocol.KindAgentFinal, mirror.frames[0].Type)
	assert.JSONEq(t, `{"text":"done"}`, string(mirror.frames[0].Data))
}
