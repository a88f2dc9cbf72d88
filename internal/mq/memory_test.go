package mq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/videotube/accounts/config"
)

func TestMemory_PublishThenSubscribe(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	id, err := m.Publish(ctx, "events", []byte(`{"a":1}`), map[string]string{"type": "x"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got := make(chan Message, 1)
	err = m.Subscribe(ctx, "events", func(ctx context.Context, msg Message) error {
		got <- msg
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	msg := <-got
	assert.Equal(t, id, msg.ID)
	assert.Equal(t, "x", msg.Attributes["type"])
	assert.JSONEq(t, `{"a":1}`, string(msg.Data))
}

func TestMemory_RedeliversOnHandlerError(t *testing.T) {
	m := NewMemory()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := m.Publish(ctx, "events", []byte("payload"), nil)
	require.NoError(t, err)

	attempts := 0
	_ = m.Subscribe(ctx, "events", func(ctx context.Context, msg Message) error {
		attempts++
		if attempts == 1 {
			return errors.New("try again")
		}
		cancel()
		return nil
	})
	assert.Equal(t, 2, attempts)
}

func TestMemory_PublishDoesNotBlockWhenFull(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for i := 0; i < memoryQueueSize; i++ {
		_, err := m.Publish(ctx, "events", []byte("x"), nil)
		require.NoError(t, err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := m.Publish(ctx, "events", []byte("overflow"), nil)
		done <- err
	}()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrQueueFull)
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full queue")
	}

	_, err := m.Publish(ctx, "other", []byte("x"), nil)
	assert.NoError(t, err, "other channels keep their own buffer")
}

func TestMemory_Closed(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Close())

	_, err := m.Publish(context.Background(), "events", nil, nil)
	assert.Error(t, err)
}

func TestOpen_Providers(t *testing.T) {
	backend, err := Open(context.Background(), config.MQConfig{Provider: "none"})
	require.NoError(t, err)
	assert.Nil(t, backend)

	backend, err = Open(context.Background(), config.MQConfig{Provider: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, backend)

	_, err = Open(context.Background(), config.MQConfig{Provider: "kafka"})
	assert.Error(t, err)
}
