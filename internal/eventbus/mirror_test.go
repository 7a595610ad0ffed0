package eventbus

import (
	"context"
	"testing"
	"time"

	"buildsession/internal/protocol"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisMirrorRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mirror := NewRedisMirror(client, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	frames, err := mirror.Subscribe(ctx, "s1")
	require.NoError(t, err)

	sent, err := protocol.FrameOf(protocol.Event{
		ID:        "a1",
		Kind:      protocol.KindAgentFinal,
		Timestamp: 42,
		Payload:   protocol.AgentFinalData{Text: "Sure, building now."},
	})
	require.NoError(t, err)
	require.NoError(t, mirror.Publish(ctx, "s1", sent))

	select {
	case got := <-frames:
		assert.Equal(t, sent.ID, got.ID)
		assert.Equal(t, sent.Type, got.Type)
		assert.Equal(t, sent.Timestamp, got.Timestamp)
		assert.JSONEq(t, string(sent.Data), string(got.Data))
	case <-ctx.Done():
		t.Fatal("timed out waiting for mirrored frame")
	}

	cancel()
	for range frames {
	}
}

func TestSessionChannelKey(t *testing.T) {
	assert.Equal(t, "session:abc:events", SessionChannelKey("abc"))
}
