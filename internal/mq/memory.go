package mq

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrQueueFull is returned by Memory.Publish when the channel buffer is full.
var ErrQueueFull = errors.New("memory mq queue is full")

// Memory is an in-process Backend. Messages published before a subscriber
// attaches are buffered per channel, up to memoryQueueSize; Publish never
// waits for a consumer.
type Memory struct {
	mu     sync.Mutex
	queues map[string]chan Message
	closed bool
}

const memoryQueueSize = 256

// NewMemory returns an empty in-process broker.
func NewMemory() *Memory {
	return &Memory{queues: map[string]chan Message{}}
}

func (m *Memory) queue(channel string) (chan Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errors.New("memory mq is closed")
	}
	q, ok := m.queues[channel]
	if !ok {
		q = make(chan Message, memoryQueueSize)
		m.queues[channel] = q
	}
	return q, nil
}

func (m *Memory) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	q, err := m.queue(channel)
	if err != nil {
		return "", err
	}
	msg := Message{ID: uuid.NewString(), Data: data, Attributes: attrs}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	select {
	case q <- msg:
		return msg.ID, nil
	default:
		return "", ErrQueueFull
	}
}

// Subscribe delivers messages until ctx is done. A message whose handler
// fails is put back on the queue.
func (m *Memory) Subscribe(ctx context.Context, channel string, handler Handler) error {
	q, err := m.queue(channel)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-q:
			if err := handler(ctx, msg); err != nil {
				select {
				case q <- msg:
				default:
				}
			}
		}
	}
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
