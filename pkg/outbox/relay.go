package outbox

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/statreg/pkg/repo"
)

type Relay struct {
	pool       *pgxpool.Pool
	table      pgx.Identifier
	dispatcher Dispatcher
	opts       RelayOptions

	lockKey    int64
	tableLabel string
	m          *metrics
}

func NewRelay(pool *pgxpool.Pool, table pgx.Identifier, dispatcher Dispatcher, opts RelayOptions) (*Relay, error) {
	if pool == nil {
		return nil, invalidConfig("pool is required")
	}
	if len(table) == 0 {
		return nil, invalidConfig("table is required")
	}
	if dispatcher == nil {
		return nil, invalidConfig("dispatcher is required")
	}
	opts.setDefaults()

	label := TableLabel(table)
	return &Relay{
		pool:       pool,
		table:      table,
		dispatcher: dispatcher,
		opts:       opts,
		lockKey:    advisoryLockKey("outbox:" + label),
		tableLabel: label,
		m:          getMetrics(),
	}, nil
}

// Run polls the table until ctx is done. With SingleActive only the process
// holding the table's advisory lock dispatches; the others keep retrying.
func (r *Relay) Run(ctx context.Context) error {
	if !r.opts.SingleActive {
		r.m.relayLeader.WithLabelValues(r.tableLabel).Set(1)
		return r.runLoop(ctx, r.pool)
	}

	for {
		conn, leader, err := r.becomeLeader(ctx)
		if err != nil {
			r.opts.Logger.WithError(err).Warn("outbox: leader election failed")
		}
		if leader {
			r.m.relayLeader.WithLabelValues(r.tableLabel).Set(1)
			r.opts.Logger.WithField("table", r.tableLabel).Info("outbox: relay became leader")

			err = r.runLoop(ctx, conn)
			r.releaseLeader(conn)
			r.m.relayLeader.WithLabelValues(r.tableLabel).Set(0)
			return err
		}
		r.m.relayLeader.WithLabelValues(r.tableLabel).Set(0)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.opts.PollInterval):
		}
	}
}

func (r *Relay) becomeLeader(ctx context.Context) (*pgxpool.Conn, bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, false, err
	}
	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1::bigint)`, r.lockKey).Scan(&ok); err != nil {
		conn.Release()
		return nil, false, err
	}
	if !ok {
		conn.Release()
		return nil, false, nil
	}
	return conn, true, nil
}

func (r *Relay) releaseLeader(conn *pgxpool.Conn) {
	var ok bool
	if err := conn.QueryRow(context.Background(), `SELECT pg_advisory_unlock($1::bigint)`, r.lockKey).Scan(&ok); err != nil {
		r.opts.Logger.WithError(err).Warn("outbox: failed to release advisory lock")
	}
	conn.Release()
}

func (r *Relay) runLoop(ctx context.Context, db repo.Tx) error {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	nextDepthAt := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if time.Now().After(nextDepthAt) {
			r.observeQueueDepth(ctx, db)
			nextDepthAt = time.Now().Add(r.opts.ObserveQueueDepthEvery)
		}
		if err := r.ProcessOnce(ctx, db); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			r.opts.Logger.WithError(err).Warn("outbox: process tick failed")
		}
	}
}

type claimed struct {
	ID       uuid.UUID
	Topic    string
	Key      string
	Payload  []byte
	EventID  uuid.UUID
	Sequence int64
	Attempts int
}

// ProcessOnce claims one batch, acknowledges superseded messages and
// dispatches the rest.
func (r *Relay) ProcessOnce(ctx context.Context, db repo.Tx) error {
	now := time.Now()
	batch, err := r.claim(ctx, db, now)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	dispatch, superseded := coalesce(batch)
	if len(superseded) > 0 {
		ids := make([]uuid.UUID, 0, len(superseded))
		for _, c := range superseded {
			ids = append(ids, c.ID)
			r.m.coalescedTotal.WithLabelValues(r.tableLabel, c.Topic).Inc()
		}
		if err := r.ack(ctx, db, ids...); err != nil {
			r.opts.Logger.WithError(err).WithField("table", r.tableLabel).Warn("outbox: ack of superseded messages failed")
		}
	}

	for _, c := range dispatch {
		r.deliver(ctx, db, c)
	}
	return nil
}

func (r *Relay) deliver(ctx context.Context, db repo.Tx, c claimed) {
	dispatchCtx, cancel := context.WithTimeout(ctx, r.opts.DispatchTimeout)
	start := time.Now()
	err := r.dispatcher.Dispatch(dispatchCtx, DispatchedMessage{
		Meta: Meta{
			Table:    r.table,
			Topic:    c.Topic,
			Key:      c.Key,
			EventID:  c.EventID,
			Sequence: c.Sequence,
			Attempts: c.Attempts,
		},
		Payload: c.Payload,
	})
	cancel()

	result := "success"
	if err != nil {
		result = "failure"
	}
	r.m.dispatchTotal.WithLabelValues(r.tableLabel, c.Topic, result).Inc()
	r.m.dispatchLatency.WithLabelValues(r.tableLabel, c.Topic, result).Observe(time.Since(start).Seconds())

	logger := r.opts.Logger.WithFields(logFields(c, r.tableLabel))
	if err == nil {
		if ackErr := r.ack(ctx, db, c.ID); ackErr != nil {
			logger.WithError(ackErr).Warn("outbox: ack failed")
		}
		return
	}

	lastErr := lastError(err, r.opts.LastErrorMaxLen)
	if c.Attempts >= r.opts.MaxAttempts {
		r.m.deadTotal.WithLabelValues(r.tableLabel, c.Topic).Inc()
		logger.WithError(err).Error("outbox: message exhausted its attempts")
		if deadErr := r.release(ctx, db, c.ID, lastErr, time.Now()); deadErr != nil {
			logger.WithError(deadErr).Warn("outbox: dead update failed")
		}
		return
	}
	next := time.Now().Add(backoff(c.Attempts, r.opts.BaseBackoff, r.opts.MaxBackoff) + jitter(r.opts.Rand, r.opts.JitterMax))
	if nackErr := r.release(ctx, db, c.ID, lastErr, next); nackErr != nil {
		logger.WithError(nackErr).Warn("outbox: nack failed")
	}
}

func (r *Relay) claim(ctx context.Context, db repo.Tx, now time.Time) ([]claimed, error) {
	tableName := r.table.Sanitize()
	q := fmt.Sprintf(
		`WITH picked AS (
			SELECT id FROM %[1]s
			 WHERE published_at IS NULL
			   AND available_at <= $1
			   AND attempts < $2
			   AND (locked_at IS NULL OR locked_at < $3)
			 ORDER BY available_at, sequence
			 LIMIT $4
			 FOR UPDATE SKIP LOCKED
		)
		UPDATE %[1]s o
		   SET locked_at = $1, attempts = o.attempts + 1
		  FROM picked
		 WHERE o.id = picked.id
		RETURNING o.id, o.topic, o.key, o.payload, o.event_id, o.sequence, o.attempts`,
		tableName,
	)
	rows, err := db.Query(ctx, q, now, r.opts.MaxAttempts, now.Add(-r.opts.LockTTL), r.opts.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("outbox claim: %w", err)
	}
	defer rows.Close()

	var items []claimed
	for rows.Next() {
		var c claimed
		if err := rows.Scan(&c.ID, &c.Topic, &c.Key, &c.Payload, &c.EventID, &c.Sequence, &c.Attempts); err != nil {
			return nil, fmt.Errorf("outbox claim scan: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox claim rows: %w", err)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Sequence < items[j].Sequence })
	return items, nil
}

// coalesce keeps the newest message per (topic, key), in sequence order, and
// returns the older ones as superseded.
func coalesce(batch []claimed) (dispatch, superseded []claimed) {
	newest := make(map[[2]string]int64, len(batch))
	for _, c := range batch {
		k := [2]string{c.Topic, c.Key}
		if seq, ok := newest[k]; !ok || c.Sequence > seq {
			newest[k] = c.Sequence
		}
	}
	for _, c := range batch {
		if newest[[2]string{c.Topic, c.Key}] == c.Sequence {
			dispatch = append(dispatch, c)
		} else {
			superseded = append(superseded, c)
		}
	}
	return dispatch, superseded
}

func (r *Relay) ack(ctx context.Context, db repo.Tx, ids ...uuid.UUID) error {
	q := fmt.Sprintf(
		`UPDATE %s SET published_at = now(), locked_at = NULL, last_error = NULL
		  WHERE id = ANY($1) AND published_at IS NULL`,
		r.table.Sanitize(),
	)
	if _, err := db.Exec(ctx, q, pgtype.FlatArray[uuid.UUID](ids)); err != nil {
		return fmt.Errorf("outbox ack: %w", err)
	}
	return nil
}

// release unlocks a failed message and schedules it for availableAt.
func (r *Relay) release(ctx context.Context, db repo.Tx, id uuid.UUID, lastError string, availableAt time.Time) error {
	q := fmt.Sprintf(
		`UPDATE %s SET locked_at = NULL, last_error = $2, available_at = $3
		  WHERE id = $1 AND published_at IS NULL`,
		r.table.Sanitize(),
	)
	if _, err := db.Exec(ctx, q, id, lastError, availableAt); err != nil {
		return fmt.Errorf("outbox release: %w", err)
	}
	return nil
}

func (r *Relay) observeQueueDepth(ctx context.Context, db repo.Tx) {
	var pending int64
	q := fmt.Sprintf(`SELECT count(*) FROM %s WHERE published_at IS NULL`, r.table.Sanitize())
	if err := db.QueryRow(ctx, q).Scan(&pending); err != nil {
		r.opts.Logger.WithError(err).Debug("outbox: observe queue depth failed")
		return
	}
	r.m.pending.WithLabelValues(r.tableLabel).Set(float64(pending))
}

func advisoryLockKey(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64())
}

func logFields(c claimed, table string) logrus.Fields {
	return logrus.Fields{
		"table":    table,
		"topic":    c.Topic,
		"key":      c.Key,
		"event_id": c.EventID.String(),
		"sequence": c.Sequence,
		"attempts": c.Attempts,
	}
}
