package protocol

import "time"

// EventKind is the "type" field of a wire frame.
type EventKind string

const (
	KindInit             EventKind = "init"
	KindUser             EventKind = "user"
	KindAgentPartial     EventKind = "agent_partial"
	KindAgentFinal       EventKind = "agent_final"
	KindUpdateInProgress EventKind = "update_in_progress"
	KindUpdateFile       EventKind = "update_file"
	KindUpdateCompleted  EventKind = "update_completed"
	KindGetFileTree      EventKind = "get_file_tree"
	KindFileTree         EventKind = "file_tree"
	KindGetFileContent   EventKind = "get_file_content"
	KindFileContent      EventKind = "file_content"
	KindSaveFile         EventKind = "save_file"
	KindFileSaved        EventKind = "file_saved"
	KindError            EventKind = "error"
	KindPing             EventKind = "ping"
)

// Kinds lists every kind in wire order.
var Kinds = []EventKind{
	KindInit, KindUser, KindAgentPartial, KindAgentFinal,
	KindUpdateInProgress, KindUpdateFile, KindUpdateCompleted,
	KindGetFileTree, KindFileTree, KindGetFileContent, KindFileContent,
	KindSaveFile, KindFileSaved, KindError, KindPing,
}

func (k EventKind) Valid() bool {
	switch k {
	case KindInit, KindUser, KindAgentPartial, KindAgentFinal,
		KindUpdateInProgress, KindUpdateFile, KindUpdateCompleted,
		KindGetFileTree, KindFileTree, KindGetFileContent, KindFileContent,
		KindSaveFile, KindFileSaved, KindError, KindPing:
		return true
	}
	return false
}

// Inbound reports whether the server is expected to send this kind.
// user, get_file_tree, get_file_content and save_file only travel client to server.
func (k EventKind) Inbound() bool {
	switch k {
	case KindUser, KindGetFileTree, KindGetFileContent, KindSaveFile:
		return false
	}
	return k.Valid()
}

// RequiresID reports whether frames of this kind must carry an id.
func (k EventKind) RequiresID() bool {
	switch k {
	case KindAgentPartial, KindAgentFinal, KindUpdateFile:
		return true
	}
	return false
}

func (k EventKind) String() string { return string(k) }

// Event is a decoded frame with its payload already validated.
type Event struct {
	ID        string
	Kind      EventKind
	Timestamp int64 // epoch millis, 0 when the frame carried none
	SessionID string
	Payload   Payload
}

// HasTimestamp reports whether the sender stamped the frame.
func (e Event) HasTimestamp() bool { return e.Timestamp > 0 }

// Time converts the frame timestamp to a time.Time.
func (e Event) Time() time.Time {
	if e.Timestamp <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(e.Timestamp)
}

// NowMillis returns t as epoch millis, the unit used on the wire.
func NowMillis(t time.Time) int64 { return t.UnixMilli() }
