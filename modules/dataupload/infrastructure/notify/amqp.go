package notify

import (
	"context"
	"fmt"
	"io"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/statreg/pkg/logging"
)

// Dialer opens a consumer on queue. Closing the returned io.Closer releases
// the connection; the delivery channel is closed when the connection drops.
type Dialer func(ctx context.Context, url, queue string) (<-chan amqp.Delivery, io.Closer, error)

type Options struct {
	Dial       Dialer
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Logger     *logrus.Entry
}

func (o *Options) setDefaults() {
	if o.Dial == nil {
		o.Dial = DialAMQP
	}
	if o.MinBackoff <= 0 {
		o.MinBackoff = time.Second
	}
	if o.MaxBackoff < o.MinBackoff {
		o.MaxBackoff = time.Minute
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
}

// AMQPListener turns "job enqueued" messages into worker wake-ups. The
// message body is not read; the queue table stays the source of truth.
type AMQPListener struct {
	url   string
	queue string
	opts  Options
}

func NewAMQPListener(url, queue string, opts Options) *AMQPListener {
	opts.setDefaults()
	opts.Logger = opts.Logger.WithFields(logrus.Fields{"component": "amqp_listener", "queue": queue})
	return &AMQPListener{url: url, queue: queue, opts: opts}
}

// Run consumes until ctx is done, reconnecting with a doubling backoff.
func (l *AMQPListener) Run(ctx context.Context, wake func()) error {
	attempts := 0
	for {
		delivered, err := l.consume(ctx, wake)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if delivered > 0 {
			attempts = 0
		}
		attempts++
		wait := l.backoff(attempts)
		entry := l.opts.Logger.WithFields(logrus.Fields{"attempt": attempts, "retry_in": wait.String()})
		if err != nil {
			entry = entry.WithError(err)
		}
		entry.Warn("amqp consumer disconnected")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (l *AMQPListener) consume(ctx context.Context, wake func()) (int, error) {
	deliveries, closer, err := l.opts.Dial(ctx, l.url, l.queue)
	if err != nil {
		return 0, err
	}
	defer closer.Close()
	l.opts.Logger.Info("amqp consumer connected")

	n := 0
	for {
		select {
		case <-ctx.Done():
			return n, ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return n, nil
			}
			n++
			wake()
			if err := d.Ack(false); err != nil {
				return n, fmt.Errorf("ack delivery: %w", err)
			}
		}
	}
}

func (l *AMQPListener) backoff(attempts int) time.Duration {
	d := l.opts.MinBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= l.opts.MaxBackoff {
			return l.opts.MaxBackoff
		}
	}
	return d
}

type connection struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func (c *connection) Close() error {
	_ = c.ch.Close()
	return c.conn.Close()
}

// DialAMQP connects to a broker and consumes a durable queue one message at a time.
func DialAMQP(_ context.Context, url, queue string) (<-chan amqp.Delivery, io.Closer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open amqp channel: %w", err)
	}
	c := &connection{conn: conn, ch: ch}
	if err := ch.Qos(1, 0, false); err != nil {
		c.Close()
		return nil, nil, fmt.Errorf("set amqp qos: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		c.Close()
		return nil, nil, fmt.Errorf("declare queue %q: %w", queue, err)
	}
	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		c.Close()
		return nil, nil, fmt.Errorf("consume queue %q: %w", queue, err)
	}
	return deliveries, c, nil
}

// Publish sends an empty "job enqueued" message to queue.
func Publish(ctx context.Context, url, queue string, jobID int64) error {
	conn, err := amqp.Dial(url)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}
	defer conn.Close()
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open amqp channel: %w", err)
	}
	defer ch.Close()
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %q: %w", queue, err)
	}
	return ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		MessageId:    fmt.Sprintf("import-job-%d", jobID),
		Timestamp:    time.Now(),
	})
}
