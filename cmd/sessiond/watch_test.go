package main

import (
	"bytes"
	"log/slog"
	"testing"

	"buildsession/internal/config"
	"buildsession/internal/protocol"
	"buildsession/internal/state"

	"github.com/stretchr/testify/assert"
)

func TestTranscriptPrinterPrintsFinishedEntriesOnce(t *testing.T) {
	var buf bytes.Buffer
	p := newTranscriptPrinter(&buf)

	s := state.State{Transcript: []state.Entry{
		{Kind: protocol.KindUser, Sender: state.SenderUser, Text: "Hi", Timestamp: 1},
		{ID: "a1", Kind: protocol.KindAgentPartial, Sender: state.SenderAssistant, Text: "Sure,", Streaming: true, Timestamp: 2},
	}}
	p.print(s)
	assert.Equal(t, "[user] Hi\n", buf.String())

	s.Transcript[1] = state.Entry{ID: "a1", Kind: protocol.KindAgentFinal, Sender: state.SenderAssistant, Text: "Sure, building now.", Timestamp: 2}
	p.print(s)
	p.print(s)
	assert.Equal(t, "[user] Hi\n[assistant] Sure, building now.\n", buf.String())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestServerLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	newServerLogger(config.LogConfig{Level: "info", Format: "json"}, &buf).Info("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	newServerLogger(config.LogConfig{Level: "error", Format: "text"}, &buf).Info("hidden")
	assert.Empty(t, buf.String())
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)
	assert.Equal(t, "sessiond dev\n", buf.String())
}
