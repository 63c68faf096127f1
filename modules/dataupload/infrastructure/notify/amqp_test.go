package notify

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
)

type acker struct {
	mu    sync.Mutex
	acked []uint64
}

func (a *acker) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *acker) Nack(uint64, bool, bool) error { return nil }
func (a *acker) Reject(uint64, bool) error     { return nil }

func (a *acker) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.acked)
}

type nopCloser struct{ closed *atomic.Int32 }

func (c nopCloser) Close() error {
	c.closed.Add(1)
	return nil
}

func TestAMQPListener_WakesAndReconnects(t *testing.T) {
	ack := &acker{}
	var dials, closed atomic.Int32

	dial := func(context.Context, string, string) (<-chan amqp.Delivery, io.Closer, error) {
		switch dials.Add(1) {
		case 1:
			ch := make(chan amqp.Delivery, 2)
			ch <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1}
			ch <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2}
			close(ch)
			return ch, nopCloser{&closed}, nil
		case 2:
			return nil, nil, errors.New("connection refused")
		default:
			return make(chan amqp.Delivery), nopCloser{&closed}, nil
		}
	}

	l := NewAMQPListener("amqp://localhost", "jobs", Options{
		Dial:       dial,
		MinBackoff: time.Millisecond,
		MaxBackoff: 5 * time.Millisecond,
	})

	var wakes atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx, func() { wakes.Add(1) }) }()

	require.Eventually(t, func() bool { return dials.Load() >= 3 }, 2*time.Second, time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	require.Equal(t, int32(2), wakes.Load())
	require.Equal(t, 2, ack.count())
	require.Equal(t, int32(2), closed.Load())
}

func TestAMQPListener_Backoff(t *testing.T) {
	l := NewAMQPListener("", "jobs", Options{MinBackoff: time.Second, MaxBackoff: 5 * time.Second})
	require.Equal(t, time.Second, l.backoff(1))
	require.Equal(t, 2*time.Second, l.backoff(2))
	require.Equal(t, 4*time.Second, l.backoff(3))
	require.Equal(t, 5*time.Second, l.backoff(4))
	require.Equal(t, 5*time.Second, l.backoff(10))
}
