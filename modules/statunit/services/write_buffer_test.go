package services

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/statreg/modules/statunit/infrastructure/searchindex"
	"github.com/iota-uz/statreg/pkg/composables"
)

func TestWriteBuffer_FlushesAtMaxSize(t *testing.T) {
	pub := &fakePublisher{}
	buf := NewWriteBuffer(pub, pgx.Identifier{"statunit_outbox"}, 2, passthroughTx)
	ctx := composables.WithTx(context.Background(), nopTx{})

	require.NoError(t, buf.Add(ctx, legalUnit(1, "1")))
	require.Empty(t, pub.batches)

	require.NoError(t, buf.Add(ctx, legalUnit(2, "2")))
	require.Len(t, pub.batches, 1)
	require.Len(t, pub.batches[0], 2)
	require.Equal(t, searchindex.Topic, pub.batches[0][0].Topic)
	require.Equal(t, "1", pub.batches[0][0].Key)
	require.Zero(t, buf.Len())
}

func TestWriteBuffer_KeepsPendingOnError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("db down")}
	buf := NewWriteBuffer(pub, pgx.Identifier{"statunit_outbox"}, 10, passthroughTx)
	ctx := composables.WithTx(context.Background(), nopTx{})

	require.NoError(t, buf.Add(ctx, legalUnit(1, "1")))
	require.Error(t, buf.Flush(ctx))
	require.Equal(t, 1, buf.Len())

	buf.Discard()
	require.Zero(t, buf.Len())
	require.NoError(t, buf.Flush(ctx))
}
