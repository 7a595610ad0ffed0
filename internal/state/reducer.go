package state

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"buildsession/internal/protocol"
)

// Apply folds one inbound event into s and returns the next state plus the
// effects to run once that state is committed. It performs no I/O; ids is
// the only input it mutates, and only for init events.
func Apply(s State, ids *IDSet, ev protocol.Event, now time.Time) (State, []Effect) {
	switch d := ev.Payload.(type) {
	case protocol.InitData:
		return applyInit(s, ids, ev, d, now), nil
	case protocol.ErrorData:
		return applyError(s, ev, d, now), nil
	case protocol.AgentPartialData:
		return applyAgentText(s, ev, d.Text, true, now), nil
	case protocol.AgentFinalData:
		return applyAgentText(s, ev, d.Text, false, now), nil
	case protocol.UpdateInProgressData:
		return applyUpdateInProgress(s, ev, now), nil
	case protocol.UpdateFileData:
		return applyUpdateFile(s, ev, d, now), nil
	case protocol.UpdateCompletedData:
		return applyUpdateCompleted(s, ev, now), []Effect{EffectRefreshPreview}
	case protocol.FileTreeData:
		return applyFileTree(s, d), nil
	case protocol.FileContentData:
		return applyFileContent(s, d), nil
	case protocol.FileSavedData:
		return applyFileSaved(s, d, now), []Effect{EffectRefreshPreview}
	}
	// ping and client-only kinds never change state.
	return s, nil
}

func applyInit(s State, ids *IDSet, ev protocol.Event, d protocol.InitData, now time.Time) State {
	if ev.ID != "" && !ids.Add(ev.ID) {
		return s
	}

	s.Workspace.InitCompleted = true
	if d.URL != "" && d.SandboxID != "" && d.URL != s.Workspace.SandboxURL {
		s.Workspace.SandboxURL = d.URL
		s.Workspace.SandboxReady = false
	}
	if d.Exists != nil && *d.Exists {
		s.Workspace.SandboxPreexisted = true
	}

	s.Transcript = upsert(s.Transcript, entryFor(ev, SenderAssistant, TextWorkspaceLoaded, false), ev.Timestamp, now)
	return s
}

func applyError(s State, ev protocol.Event, d protocol.ErrorData, now time.Time) State {
	text := d.Text
	if text == "" {
		text = TextUnknownError
	}
	s.Files.Saving = false
	s.Transcript = upsert(s.Transcript, entryFor(ev, SenderAssistant, text, false), ev.Timestamp, now)
	return s
}

func applyAgentText(s State, ev protocol.Event, text string, streaming bool, now time.Time) State {
	if ev.ID == "" || strings.TrimSpace(text) == "" {
		return s
	}
	s.Transcript = upsert(s.Transcript, entryFor(ev, SenderAssistant, protocol.Unescape(text), streaming), ev.Timestamp, now)
	return s
}

func applyUpdateInProgress(s State, ev protocol.Event, now time.Time) State {
	s.Workspace.UpdateInProgress = true
	s.Transcript = upsert(s.Transcript, entryFor(ev, SenderAssistant, TextUpdateInProgress, false), ev.Timestamp, now)
	return s
}

func applyUpdateFile(s State, ev protocol.Event, d protocol.UpdateFileData, now time.Time) State {
	text := d.Text
	switch {
	case text != "":
	case d.Path != "":
		text = fmt.Sprintf("Working on %s", d.Path)
	default:
		text = "Working on files..."
	}
	s.Transcript = upsert(s.Transcript, entryFor(ev, SenderAssistant, text, true), ev.Timestamp, now)
	return s
}

func applyUpdateCompleted(s State, ev protocol.Event, now time.Time) State {
	s.Workspace.UpdateInProgress = false
	kept := make([]Entry, 0, len(s.Transcript))
	for _, e := range s.Transcript {
		if e.Kind != protocol.KindUpdateFile {
			kept = append(kept, e)
		}
	}
	s.Transcript = upsert(kept, entryFor(ev, SenderAssistant, TextUpdateCompleted, false), ev.Timestamp, now)
	return s
}

func applyFileTree(s State, d protocol.FileTreeData) State {
	tree := d.Tree
	if tree == nil {
		tree = []protocol.FileNode{}
	}
	s.Files.Tree = cloneTree(tree)
	s.Files.Root = d.Root
	return s
}

func applyFileContent(s State, d protocol.FileContentData) State {
	s.Files.CurrentPath = d.Path
	s.Files.Content = d.Content
	s.Files.Language = d.Language
	if s.Files.Language == "" {
		s.Files.Language = DefaultLanguage
	}
	return s
}

func applyFileSaved(s State, d protocol.FileSavedData, now time.Time) State {
	s.Files.Saving = false
	s.Transcript = upsert(s.Transcript, Entry{
		Kind:   protocol.KindFileSaved,
		Sender: SenderAssistant,
		Text:   fmt.Sprintf("File saved: %s", d.Path),
	}, 0, now)
	return s
}

func entryFor(ev protocol.Event, sender Sender, text string, streaming bool) Entry {
	return Entry{
		ID:        ev.ID,
		Kind:      ev.Kind,
		Sender:    sender,
		Text:      text,
		Streaming: streaming,
	}
}

// upsert replaces the entry carrying e.ID or appends e, then restores
// timestamp order. ts is the frame timestamp; 0 keeps the existing entry's
// timestamp on replace and stamps arrival time on append. The input slice
// is never modified.
func upsert(transcript []Entry, e Entry, ts int64, now time.Time) []Entry {
	out := make([]Entry, len(transcript), len(transcript)+1)
	copy(out, transcript)

	if e.ID != "" {
		if i := slices.IndexFunc(out, func(x Entry) bool { return x.ID == e.ID }); i >= 0 {
			e.Timestamp = out[i].Timestamp
			if ts > 0 {
				e.Timestamp = ts
			}
			out[i] = e
			sortTranscript(out)
			return out
		}
	}

	e.Timestamp = ts
	if e.Timestamp <= 0 {
		e.Timestamp = protocol.NowMillis(now)
	}
	out = append(out, e)
	sortTranscript(out)
	return out
}

func sortTranscript(entries []Entry) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
}
