package outbox

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Message is one row of an outbox table. Key groups messages that describe the
// same entity; the relay only dispatches the newest pending message per key.
type Message struct {
	Topic   string
	Key     string
	EventID uuid.UUID
	Payload json.RawMessage
}

type Meta struct {
	Table    pgx.Identifier
	Topic    string
	Key      string
	EventID  uuid.UUID
	Sequence int64
	Attempts int
}

type DispatchedMessage struct {
	Meta    Meta
	Payload json.RawMessage
}

type Dispatcher interface {
	Dispatch(ctx context.Context, msg DispatchedMessage) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, msg DispatchedMessage) error

func (f DispatcherFunc) Dispatch(ctx context.Context, msg DispatchedMessage) error {
	return f(ctx, msg)
}

// TopicRouter dispatches by topic. Unknown topics fail and end up dead.
type TopicRouter map[string]Dispatcher

func (r TopicRouter) Dispatch(ctx context.Context, msg DispatchedMessage) error {
	d, ok := r[msg.Meta.Topic]
	if !ok {
		return ErrUnknownTopic
	}
	return d.Dispatch(ctx, msg)
}
