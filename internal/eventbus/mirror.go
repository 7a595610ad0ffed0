package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"buildsession/internal/protocol"

	"github.com/redis/go-redis/v9"
)

var _ Mirror = (*RedisMirror)(nil)

// RedisMirror publishes frames as JSON on session:<id>:events.
type RedisMirror struct {
	client redis.UniversalClient
	logger *slog.Logger
}

func NewRedisMirror(client redis.UniversalClient, logger *slog.Logger) *RedisMirror {
	return &RedisMirror{client: client, logger: logger.With("component", "redis-mirror")}
}

func (m *RedisMirror) Publish(ctx context.Context, sessionID string, frame protocol.Frame) error {
	data, err := protocol.Encode(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}
	return m.client.Publish(ctx, SessionChannelKey(sessionID), data).Err()
}

// Subscribe streams mirrored frames until ctx is cancelled.
func (m *RedisMirror) Subscribe(ctx context.Context, sessionID string) (<-chan protocol.Frame, error) {
	pubSub := m.client.Subscribe(ctx, SessionChannelKey(sessionID))

	// 等待订阅确认，避免丢失订阅建立前发布的消息
	if _, err := pubSub.Receive(ctx); err != nil {
		_ = pubSub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", SessionChannelKey(sessionID), err)
	}

	ch := make(chan protocol.Frame)

	go func() {
		defer close(ch)
		defer func() {
			if err := pubSub.Close(); err != nil {
				m.logger.Error("failed to close pubsub", "error", err)
			}
		}()

		msgs := pubSub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var frame protocol.Frame
				if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
					m.logger.Error("failed to unmarshal frame", "error", err)
					continue
				}
				select {
				case ch <- frame:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}
