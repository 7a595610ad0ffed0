package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"buildsession/internal/protocol"
	"buildsession/internal/service"
	"buildsession/internal/session"
	"buildsession/internal/state"
	"buildsession/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConnector struct {
	mu         sync.Mutex
	connected  bool
	connectErr error
	sent       []protocol.Outbound
}

func (s *stubConnector) Connect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connectErr != nil {
		return s.connectErr
	}
	s.connected = true
	return nil
}

func (s *stubConnector) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
}

func (s *stubConnector) Send(_ context.Context, p protocol.Outbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return session.ErrNotConnected
	}
	s.sent = append(s.sent, p)
	return nil
}

func (s *stubConnector) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *stubConnector) Connecting() bool  { return false }
func (s *stubConnector) SessionID() string { return "s1" }

func (s *stubConnector) SendUserMessage(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return session.ErrEmptyMessage
	}
	return s.Send(ctx, protocol.UserData{Text: text})
}

func (s *stubConnector) RequestFileTree(ctx context.Context) error {
	return s.Send(ctx, protocol.GetFileTreeData{})
}

func (s *stubConnector) RequestFileContent(ctx context.Context, path string) error {
	return s.Send(ctx, protocol.GetFileContentData{Path: path})
}

func (s *stubConnector) SaveFile(ctx context.Context, path, content string) error {
	return s.Send(ctx, protocol.SaveFileData{Path: path, Content: content})
}

func newTestRouter(t *testing.T) (http.Handler, *service.Service, *stubConnector) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	conn := &stubConnector{}
	svc := service.NewService(conn, state.NewStore(logger), logger)
	return NewRouter(svc, logger), svc, conn
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	h, _, _ := newTestRouter(t)
	w := do(t, h, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "s1", resp.SessionID)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	h, _, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

func TestPreflight(t *testing.T) {
	h, _, _ := newTestRouter(t)
	w := do(t, h, http.MethodOptions, "/api/v1/session/chat", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestChatLifecycle(t *testing.T) {
	h, svc, conn := newTestRouter(t)

	w := do(t, h, http.MethodPost, "/api/v1/session/chat", `{"text":"Hi"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/session/chat", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/session/connect", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"connected","session_id":"s1"}`, w.Body.String())

	w = do(t, h, http.MethodPost, "/api/v1/session/chat", `{"text":"Hi"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, conn.sent, 1)
	assert.Equal(t, protocol.UserData{Text: "Hi"}, conn.sent[0])

	w = do(t, h, http.MethodPost, "/api/v1/session/disconnect", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, svc.Conn.Connected())
}

func TestFileRoutes(t *testing.T) {
	h, svc, conn := newTestRouter(t)
	require.NoError(t, svc.Connect(context.Background()))

	assert.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/api/v1/session/files/tree", "").Code)
	assert.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/api/v1/session/files/content", `{"path":"/app/a.js"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/session/files/content", `{}`).Code)
	assert.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/api/v1/session/files/save", `{"path":"/app/a.js","content":"x"}`).Code)

	require.Len(t, conn.sent, 3)
	assert.Equal(t, protocol.KindGetFileTree, conn.sent[0].Kind())
	assert.Equal(t, protocol.GetFileContentData{Path: "/app/a.js"}, conn.sent[1])
	assert.Equal(t, protocol.SaveFileData{Path: "/app/a.js", Content: "x"}, conn.sent[2])

	ev, err := protocol.Decode([]byte(`{"type":"file_content","data":{"path":"/app/a.js","content":"x"}}`))
	require.NoError(t, err)
	svc.Store.Apply(ev, state.NewIDSet())

	w := do(t, h, http.MethodGet, "/api/v1/session/files", "")
	require.Equal(t, http.StatusOK, w.Code)
	var files state.FileCache
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &files))
	assert.Equal(t, "/app/a.js", files.CurrentPath)
	assert.Equal(t, state.DefaultLanguage, files.Language)
}

func TestSnapshotRoutes(t *testing.T) {
	h, svc, _ := newTestRouter(t)
	ev, err := protocol.Decode([]byte(`{"id":"i1","type":"init","data":{"url":"https://sb","sandbox_id":"sb"}}`))
	require.NoError(t, err)
	svc.Store.Apply(ev, state.NewIDSet())

	w := do(t, h, http.MethodGet, "/api/v1/session", "")
	require.Equal(t, http.StatusOK, w.Code)
	var snap state.State
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.Len(t, snap.Transcript, 1)
	assert.Equal(t, state.TextWorkspaceLoaded, snap.Transcript[0].Text)

	w = do(t, h, http.MethodGet, "/api/v1/session/transcript", "")
	require.Equal(t, http.StatusOK, w.Code)
	var tr TranscriptResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tr))
	assert.Equal(t, "s1", tr.SessionID)
	assert.Len(t, tr.Transcript, 1)

	w = do(t, h, http.MethodPost, "/api/v1/session/preview/loaded", "")
	require.Equal(t, http.StatusOK, w.Code)
	var ws state.WorkspaceStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ws))
	assert.True(t, ws.SandboxReady)

	w = do(t, h, http.MethodGet, "/api/v1/session/workspace", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sandbox_url":"https://sb"`)
}

func TestWaitRoute(t *testing.T) {
	h, svc, _ := newTestRouter(t)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/session/wait?timeout=soon", "").Code)
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodGet, "/api/v1/session/wait", "").Code)

	require.NoError(t, svc.Connect(context.Background()))
	assert.Equal(t, http.StatusGatewayTimeout, do(t, h, http.MethodGet, "/api/v1/session/wait?timeout=20ms", "").Code)

	ev, err := protocol.Decode([]byte(`{"id":"i1","type":"init","data":{}}`))
	require.NoError(t, err)
	svc.Store.Apply(ev, state.NewIDSet())
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/session/wait?timeout=1s", "").Code)
}

func TestConnectFailureStatus(t *testing.T) {
	h, _, conn := newTestRouter(t)
	conn.connectErr = fmt.Errorf("connect: %w", &transport.TransportError{Op: "dial", Err: errors.New("refused")})

	w := do(t, h, http.MethodPost, "/api/v1/session/connect", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusBadGateway, resp.Code)
	assert.Contains(t, resp.Error, "refused")
}

func TestMapServiceError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{session.ErrMissingSessionID, http.StatusBadRequest},
		{session.ErrEmptyMessage, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", session.ErrNotConnected), http.StatusConflict},
		{session.ErrConnectAborted, http.StatusConflict},
		{&transport.TransportError{Op: "write", Err: io.ErrClosedPipe}, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, mapServiceError(tc.err), "%v", tc.err)
	}
}

func TestStreamChanges(t *testing.T) {
	h, svc, _ := newTestRouter(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// The first event flushes the headers; keep producing changes until the
	// subscription is live.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ev, _ := protocol.Decode([]byte(`{"type":"update_completed","data":{}}`))
				svc.Store.Apply(ev, state.NewIDSet())
			}
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/session/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
		if event != "" && data != "" {
			break
		}
	}

	assert.Equal(t, "refresh", event)
	var got SSEEvent
	require.NoError(t, json.Unmarshal([]byte(data), &got))
	assert.Equal(t, "update_completed", got.Kind)
	assert.True(t, got.Refresh)
	assert.Equal(t, "s1", got.SessionID)
}
