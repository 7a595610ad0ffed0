package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"buildsession/internal/service"
	"buildsession/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func accessRecords(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		if rec["msg"] == "Request" {
			out = append(out, rec)
		}
	}
	return out
}

func TestAccessLogCarriesSessionAndRoute(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	svc := service.NewService(&stubConnector{}, state.NewStore(logger), logger)
	h := NewRouter(svc, logger)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/session/connect", nil)
	req.Header.Set(headerRequestID, "req-7")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s1", w.Header().Get(headerSessionID))

	w = do(t, h, http.MethodPost, "/api/v1/session/chat", `{"text":""}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	recs := accessRecords(t, &buf)
	require.Len(t, recs, 2)

	assert.Equal(t, "INFO", recs[0]["level"])
	assert.Equal(t, "api", recs[0]["component"])
	assert.Equal(t, "s1", recs[0]["session_id"])
	assert.Equal(t, "req-7", recs[0]["request_id"])
	assert.Equal(t, "/api/v1/session/connect", recs[0]["route"])
	assert.EqualValues(t, http.StatusOK, recs[0]["status"])

	assert.Equal(t, "WARN", recs[1]["level"])
	assert.NotEmpty(t, recs[1]["request_id"])
	assert.NotEqual(t, "req-7", recs[1]["request_id"])
}

func TestAccessLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, accessLevel(http.MethodGet, http.StatusOK))
	assert.Equal(t, slog.LevelInfo, accessLevel(http.MethodPost, http.StatusOK))
	assert.Equal(t, slog.LevelWarn, accessLevel(http.MethodPost, http.StatusConflict))
	assert.Equal(t, slog.LevelError, accessLevel(http.MethodGet, http.StatusBadGateway))
}

func TestCORSPreflightExposesSessionHeaders(t *testing.T) {
	h, _, _ := newTestRouter(t)
	w := do(t, h, http.MethodOptions, "/api/v1/session/chat", "")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "s1", w.Header().Get(headerSessionID))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), headerSessionID)
}
