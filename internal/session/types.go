package session

import (
	"errors"
	"time"

	"buildsession/internal/transport"
)

var (
	ErrMissingSessionID = errors.New("missing session id")

	ErrNotConnected = errors.New("not connected to workspace")

	ErrConnectAborted = errors.New("connect aborted by disconnect")

	ErrManagerClosed = errors.New("session manager closed")

	ErrEmptyMessage = errors.New("message text is empty")
)

type ReconnectMode string

const (
	// ReconnectManual leaves reconnecting to the caller.
	ReconnectManual ReconnectMode = "manual"
	// ReconnectBackoff retries with exponential backoff after the peer or
	// the network drops the connection.
	ReconnectBackoff ReconnectMode = "backoff"
)

type ReconnectPolicy struct {
	Mode                ReconnectMode
	MaxAttempts         uint
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
	MaxElapsedTime      time.Duration
}

// DefaultReconnectPolicy is manual; the backoff fields only apply when
// Mode is switched to ReconnectBackoff.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		Mode:                ReconnectManual,
		MaxAttempts:         5,
		InitialInterval:     time.Second,
		MaxInterval:         30 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
		MaxElapsedTime:      10 * time.Minute,
	}
}

type Config struct {
	URL       string
	Token     string
	SessionID string

	// ConnectTimeout bounds one shared connect attempt.
	ConnectTimeout time.Duration
	// SendInit sends the init handshake right after the socket opens.
	SendInit bool
	// InitialPrompt is sent once after the first init for a fresh sandbox.
	InitialPrompt string

	// Transport carries socket timeouts; its URL, credentials and callbacks
	// are filled in by the manager.
	Transport transport.Options
	Reconnect ReconnectPolicy
}

func connectionErrorText(err error) string {
	return "Connection error: " + err.Error() + ". Please check your configuration."
}
