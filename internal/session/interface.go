package session

import (
	"context"

	"buildsession/internal/protocol"
)

// Connector is the façade the presentation layer drives.
type Connector interface {
	Connect(ctx context.Context) error
	Disconnect()
	Send(ctx context.Context, payload protocol.Outbound) error
	Connected() bool
	Connecting() bool
	SessionID() string

	SendUserMessage(ctx context.Context, text string) error
	RequestFileTree(ctx context.Context) error
	RequestFileContent(ctx context.Context, path string) error
	SaveFile(ctx context.Context, path, content string) error
}
