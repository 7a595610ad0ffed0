package state

import (
	"time"

	"buildsession/internal/protocol"
)

// Action is a local state change that does not arrive over the wire.
type Action interface {
	apply(s State, now time.Time) State
}

// ConnectionChanged mirrors the transport's connected flag.
type ConnectionChanged struct {
	Connected bool
}

// UserMessage echoes a chat message the user has sent.
type UserMessage struct {
	ID   string
	Text string
}

// Notice posts a locally generated line such as a connection error.
type Notice struct {
	Kind protocol.EventKind
	Text string
}

// SaveRequested marks the current file as being saved.
type SaveRequested struct {
	Path    string
	Content string
}

// PreviewLoaded is reported by the presentation layer once the sandbox
// preview finished loading.
type PreviewLoaded struct{}

func (a ConnectionChanged) apply(s State, _ time.Time) State {
	s.Workspace.Connected = a.Connected
	return s
}

func (a UserMessage) apply(s State, now time.Time) State {
	s.Transcript = upsert(s.Transcript, Entry{
		ID:     a.ID,
		Kind:   protocol.KindUser,
		Sender: SenderUser,
		Text:   a.Text,
	}, 0, now)
	return s
}

func (a Notice) apply(s State, now time.Time) State {
	kind := a.Kind
	if kind == "" {
		kind = protocol.KindError
	}
	s.Transcript = upsert(s.Transcript, Entry{
		Kind:   kind,
		Sender: SenderSystem,
		Text:   a.Text,
	}, 0, now)
	return s
}

func (a SaveRequested) apply(s State, _ time.Time) State {
	s.Files.Saving = true
	s.Files.CurrentPath = a.Path
	s.Files.Content = a.Content
	return s
}

func (PreviewLoaded) apply(s State, _ time.Time) State {
	if s.Workspace.SandboxURL != "" {
		s.Workspace.SandboxReady = true
	}
	return s
}

// ApplyAction folds a local action into s.
func ApplyAction(s State, a Action, now time.Time) State {
	return a.apply(s, now)
}
