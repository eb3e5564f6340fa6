package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPublisher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubPublisher) Publish(context.Context, string, any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

func TestBreakerPublisherOpensAfterConsecutiveFailures(t *testing.T) {
	stub := &stubPublisher{err: errors.New("redis down")}
	pub := NewBreakerPublisher(stub, BreakerConfig{Name: "test", FailureThreshold: 2, OpenTimeout: time.Minute}, nil)

	assert.Error(t, pub.Publish(context.Background(), "bookings.events", map[string]string{"type": "x"}))
	assert.Error(t, pub.Publish(context.Background(), "bookings.events", map[string]string{"type": "x"}))
	assert.Equal(t, gobreaker.StateOpen, pub.State())

	err := pub.Publish(context.Background(), "bookings.events", map[string]string{"type": "x"})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, stub.calls)
}

func TestBreakerPublisherPassesThrough(t *testing.T) {
	stub := &stubPublisher{}
	pub := NewBreakerPublisher(stub, BreakerConfig{}, nil)

	require.NoError(t, pub.Publish(context.Background(), "bookings.events", struct{}{}))
	assert.Equal(t, gobreaker.StateClosed, pub.State())
	assert.Equal(t, 1, stub.calls)
}

func TestRedisPublisherReportsUnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	pub := NewRedisPublisher(client, nil)
	err := pub.Publish(context.Background(), "bookings.events", map[string]string{"type": "booking.created"})
	assert.Error(t, err)

	err = pub.Publish(context.Background(), "bookings.events", func() {})
	assert.ErrorContains(t, err, "marshal event")
}
