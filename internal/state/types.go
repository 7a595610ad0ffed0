package state

import "buildsession/internal/protocol"

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
	SenderSystem    Sender = "system"
)

// Fixed transcript texts.
const (
	TextWorkspaceLoaded  = "Workspace loaded! You can now make edits here."
	TextUpdateInProgress = "Ok - I'll make those changes!"
	TextUpdateCompleted  = "Update completed!"
	TextUnknownError     = "Unknown error"
	TextConnected        = "Connected to workspace!"
	TextMissingSession   = "Missing session ID. Please restart the workspace."
)

// DefaultLanguage is used when file_content carries no language.
const DefaultLanguage = "javascript"

// Entry is one line of the conversation transcript.
type Entry struct {
	ID        string             `json:"id,omitempty"`
	Kind      protocol.EventKind `json:"kind"`
	Timestamp int64              `json:"timestamp"`
	Sender    Sender             `json:"sender"`
	Text      string             `json:"text"`
	Streaming bool               `json:"streaming"`
}

type WorkspaceStatus struct {
	Connected         bool   `json:"connected"`
	SandboxURL        string `json:"sandbox_url"`
	SandboxReady      bool   `json:"sandbox_ready"`
	UpdateInProgress  bool   `json:"update_in_progress"`
	InitCompleted     bool   `json:"init_completed"`
	SandboxPreexisted bool   `json:"sandbox_preexisted"`
}

// FileCache holds the directory listing and the single current file.
type FileCache struct {
	Tree        []protocol.FileNode `json:"tree"`
	Root        string              `json:"root,omitempty"`
	CurrentPath string              `json:"current_path,omitempty"`
	Content     string              `json:"content"`
	Language    string              `json:"language,omitempty"`
	Saving      bool                `json:"saving"`
}

// State is everything the presentation layer renders.
type State struct {
	Transcript []Entry         `json:"transcript"`
	Workspace  WorkspaceStatus `json:"workspace"`
	Files      FileCache       `json:"files"`
}

// Effect is work that must run only after a reducer step is committed.
type Effect int

const (
	EffectRefreshPreview Effect = iota + 1
)

func (e Effect) String() string {
	switch e {
	case EffectRefreshPreview:
		return "refresh_preview"
	}
	return "unknown"
}

// Clone returns a deep copy safe to hand to readers.
func (s State) Clone() State {
	out := s
	if s.Transcript != nil {
		out.Transcript = make([]Entry, len(s.Transcript))
		copy(out.Transcript, s.Transcript)
	}
	out.Files.Tree = cloneTree(s.Files.Tree)
	return out
}

func cloneTree(nodes []protocol.FileNode) []protocol.FileNode {
	if nodes == nil {
		return nil
	}
	out := make([]protocol.FileNode, len(nodes))
	for i, n := range nodes {
		out[i] = n
		if n.Size != nil {
			size := *n.Size
			out[i].Size = &size
		}
		out[i].Children = cloneTree(n.Children)
	}
	return out
}
