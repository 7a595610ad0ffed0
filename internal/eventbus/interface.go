package eventbus

import (
	"context"

	"buildsession/internal/protocol"
)

// Handler has one method per inbound event kind, so a consumer that misses
// a kind does not compile.
type Handler interface {
	HandleInit(ctx context.Context, ev protocol.Event) error
	HandleAgentPartial(ctx context.Context, ev protocol.Event) error
	HandleAgentFinal(ctx context.Context, ev protocol.Event) error
	HandleUpdateInProgress(ctx context.Context, ev protocol.Event) error
	HandleUpdateFile(ctx context.Context, ev protocol.Event) error
	HandleUpdateCompleted(ctx context.Context, ev protocol.Event) error
	HandleFileTree(ctx context.Context, ev protocol.Event) error
	HandleFileContent(ctx context.Context, ev protocol.Event) error
	HandleFileSaved(ctx context.Context, ev protocol.Event) error
	HandleError(ctx context.Context, ev protocol.Event) error
}

// Mirror republishes dispatched frames for observers outside the process.
type Mirror interface {
	Publish(ctx context.Context, sessionID string, frame protocol.Frame) error
	Subscribe(ctx context.Context, sessionID string) (<-chan protocol.Frame, error)
}
