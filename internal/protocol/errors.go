package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedFrame = errors.New("malformed frame")

	ErrUnknownKind = errors.New("unknown event kind")

	ErrMissingID = errors.New("frame requires an id")

	ErrInvalidPayload = errors.New("invalid payload")
)

// ProtocolError describes one frame that could not be turned into an Event.
// It never closes the connection.
type ProtocolError struct {
	Kind EventKind
	ID   string
	Err  error
}

func (e *ProtocolError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("protocol: %v", e.Err)
	}
	return fmt.Sprintf("protocol: %s: %v", e.Kind, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
