package events

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/videotube/accounts/internal/mq"
)

type failingBackend struct{ mq.Backend }

func (failingBackend) Publish(context.Context, string, []byte, map[string]string) (string, error) {
	return "", errors.New("broker down")
}

func TestMQPublisher_RoundTrip(t *testing.T) {
	backend := mq.NewMemory()
	p := NewMQPublisher(backend, "", slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	sent := New(UserLoggedIn, "u-1")
	p.Publish(ctx, sent)

	var got Event
	_ = backend.Subscribe(ctx, DefaultChannel, func(ctx context.Context, msg mq.Message) error {
		assert.Equal(t, UserLoggedIn, msg.Attributes["type"])
		var err error
		got, err = Decode(msg)
		require.NoError(t, err)
		cancel()
		return nil
	})

	assert.Equal(t, sent.ID, got.ID)
	assert.Equal(t, UserLoggedIn, got.Type)
	assert.Equal(t, "u-1", got.UserID)
	assert.WithinDuration(t, sent.OccurredAt, got.OccurredAt, time.Millisecond)
}

func TestMQPublisher_LogsFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	p := NewMQPublisher(failingBackend{}, "events", logger)

	assert.NotPanics(t, func() {
		p.Publish(context.Background(), New(UserRegistered, "u-1"))
	})
	assert.Contains(t, buf.String(), "broker down")
	assert.Contains(t, buf.String(), UserRegistered)
}

func TestMQPublisher_UnconsumedMemoryBackend(t *testing.T) {
	var buf bytes.Buffer
	p := NewMQPublisher(mq.NewMemory(), "", slog.New(slog.NewTextHandler(&buf, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()
	for i := 0; i < 300; i++ {
		p.Publish(ctx, New(UserLoggedIn, "u-1"))
	}

	assert.Less(t, time.Since(start), time.Second)
	assert.NoError(t, ctx.Err())
	assert.Contains(t, buf.String(), mq.ErrQueueFull.Error())
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode(mq.Message{ID: "m1", Data: []byte("{")})
	assert.Error(t, err)
}
