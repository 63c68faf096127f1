package services

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/statreg/modules/statunit/domain/aggregates/statunit"
	"github.com/iota-uz/statreg/modules/statunit/infrastructure/searchindex"
	"github.com/iota-uz/statreg/pkg/composables"
	"github.com/iota-uz/statreg/pkg/outbox"
)

// WriteBuffer collects search index refreshes for the units saved by one job
// and hands them to the outbox in batches. It is not safe for concurrent use.
type WriteBuffer struct {
	publisher outbox.Publisher
	table     pgx.Identifier
	maxSize   int
	runTx     TxRunner
	pending   []outbox.Message
}

func NewWriteBuffer(publisher outbox.Publisher, table pgx.Identifier, maxSize int, runTx TxRunner) *WriteBuffer {
	if maxSize < 1 {
		maxSize = 1
	}
	if runTx == nil {
		runTx = DefaultTxRunner
	}
	return &WriteBuffer{publisher: publisher, table: table, maxSize: maxSize, runTx: runTx}
}

// Add queues a refresh per unit and flushes once the buffer is full.
func (b *WriteBuffer) Add(ctx context.Context, units ...statunit.Unit) error {
	for _, u := range units {
		msg, err := searchindex.NewMessage(searchindex.FromUnit(u))
		if err != nil {
			return err
		}
		b.pending = append(b.pending, msg)
	}
	if len(b.pending) >= b.maxSize {
		return b.Flush(ctx)
	}
	return nil
}

// Flush enqueues everything buffered in one transaction. The buffer is kept on error.
func (b *WriteBuffer) Flush(ctx context.Context) error {
	if len(b.pending) == 0 {
		return nil
	}
	err := b.runTx(ctx, func(ctx context.Context) error {
		tx, err := composables.UseTx(ctx)
		if err != nil {
			return err
		}
		return b.publisher.EnqueueBatch(ctx, tx, b.table, b.pending)
	})
	if err != nil {
		return err
	}
	b.pending = nil
	return nil
}

func (b *WriteBuffer) Discard() { b.pending = nil }

func (b *WriteBuffer) Len() int { return len(b.pending) }
