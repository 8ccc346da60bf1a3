package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalEventsFanOut(t *testing.T) {
	ctx := context.Background()
	bus := NewLocalEvents()
	defer bus.Close()

	first, cancelFirst, err := bus.Subscribe(ctx, "command_events")
	require.NoError(t, err)
	second, cancelSecond, err := bus.Subscribe(ctx, "command_events")
	require.NoError(t, err)
	defer cancelSecond()

	require.NoError(t, bus.Publish(ctx, "command_events", map[string]string{"type": "enqueued"}))

	for _, ch := range []<-chan []byte{first, second} {
		select {
		case msg := <-ch:
			assert.JSONEq(t, `{"type":"enqueued"}`, string(msg))
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}

	require.NoError(t, cancelFirst())
	_, open := <-first
	assert.False(t, open)

	// другой канал не получает сообщения
	require.NoError(t, bus.Publish(ctx, "other", "x"))
	select {
	case msg := <-second:
		t.Fatalf("unexpected message %s", msg)
	default:
	}
}
