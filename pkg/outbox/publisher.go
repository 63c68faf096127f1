package outbox

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/statreg/pkg/repo"
)

type Publisher interface {
	Enqueue(ctx context.Context, tx repo.Tx, table pgx.Identifier, msg Message) (sequence int64, err error)
	EnqueueBatch(ctx context.Context, tx repo.Tx, table pgx.Identifier, msgs []Message) error
}

type publisher struct {
	m *metrics
}

func NewPublisher() Publisher {
	return &publisher{m: getMetrics()}
}

func insertQuery(table pgx.Identifier) string {
	return fmt.Sprintf(
		`INSERT INTO %s (topic, key, payload, event_id, available_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (event_id) DO UPDATE SET event_id = EXCLUDED.event_id
		 RETURNING sequence`,
		table.Sanitize(),
	)
}

func (p *publisher) Enqueue(ctx context.Context, tx repo.Tx, table pgx.Identifier, msg Message) (int64, error) {
	if err := validateMessage(table, msg); err != nil {
		return 0, err
	}

	var sequence int64
	if err := tx.QueryRow(ctx, insertQuery(table), msg.Topic, msg.Key, msg.Payload, msg.EventID).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("outbox enqueue: %w", err)
	}
	p.m.enqueueTotal.WithLabelValues(TableLabel(table), msg.Topic).Inc()
	return sequence, nil
}

// EnqueueBatch inserts msgs with a single round trip. Every message is
// validated before anything is sent.
func (p *publisher) EnqueueBatch(ctx context.Context, tx repo.Tx, table pgx.Identifier, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	for _, msg := range msgs {
		if err := validateMessage(table, msg); err != nil {
			return err
		}
	}

	q := insertQuery(table)
	batch := &pgx.Batch{}
	for _, msg := range msgs {
		batch.Queue(q, msg.Topic, msg.Key, msg.Payload, msg.EventID)
	}
	results := tx.SendBatch(ctx, batch)
	for range msgs {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("outbox enqueue batch: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("outbox enqueue batch: %w", err)
	}

	label := TableLabel(table)
	for _, msg := range msgs {
		p.m.enqueueTotal.WithLabelValues(label, msg.Topic).Inc()
	}
	return nil
}

func validateMessage(table pgx.Identifier, msg Message) error {
	switch {
	case len(table) == 0:
		return fmt.Errorf("%w: table is required", ErrInvalidConfig)
	case msg.EventID == uuid.Nil:
		return fmt.Errorf("%w: event_id is required", ErrInvalidMessage)
	case msg.Topic == "":
		return fmt.Errorf("%w: topic is required", ErrInvalidMessage)
	case msg.Key == "":
		return fmt.Errorf("%w: key is required", ErrInvalidMessage)
	case len(msg.Payload) == 0:
		return fmt.Errorf("%w: payload is required", ErrInvalidMessage)
	}
	return nil
}
