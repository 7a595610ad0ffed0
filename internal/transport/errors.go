package transport

import (
	"errors"
	"fmt"
)

var (
	ErrNotOpen = errors.New("connection is not open")

	ErrAlreadyUsed = errors.New("connection was already opened")

	ErrClosed = errors.New("connection closed")
)

// TransportError is a handshake failure or an abnormal close.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
