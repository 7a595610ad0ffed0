package eventbus

import (
	"fmt"

	"buildsession/internal/protocol"
)

// HandlerError wraps a failure raised by one handler.
type HandlerError struct {
	Kind protocol.EventKind
	Err  error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler error for %s: %v", e.Kind, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// ErrorFunc receives handler failures; it must not block.
type ErrorFunc func(kind protocol.EventKind, err error)

func SessionChannelKey(sessionID string) string {
	return "session:" + sessionID + ":events"
}
