package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/statreg/pkg/repo"
)

type Cleaner struct {
	db         repo.Tx
	table      pgx.Identifier
	opts       CleanerOptions
	tableLabel string
	m          *metrics
}

func NewCleaner(db repo.Tx, table pgx.Identifier, opts CleanerOptions) (*Cleaner, error) {
	if db == nil {
		return nil, invalidConfig("db is required")
	}
	if len(table) == 0 {
		return nil, invalidConfig("table is required")
	}
	if opts.DeadRetention > 0 && opts.MaxAttempts <= 0 {
		return nil, invalidConfig("dead retention requires MaxAttempts > 0")
	}
	opts.setDefaults()
	return &Cleaner{
		db:         db,
		table:      table,
		opts:       opts,
		tableLabel: TableLabel(table),
		m:          getMetrics(),
	}, nil
}

func (c *Cleaner) Run(ctx context.Context) error {
	if !c.opts.Enabled {
		return nil
	}
	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := c.CleanOnce(ctx, time.Now()); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			c.opts.Logger.WithError(err).WithField("table", c.tableLabel).Warn("outbox: cleaner tick failed")
		}
	}
}

// CleanOnce removes published rows past retention and, when configured, dead rows.
func (c *Cleaner) CleanOnce(ctx context.Context, now time.Time) error {
	tableName := c.table.Sanitize()

	tag, err := c.db.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE published_at IS NOT NULL AND published_at < $1`, tableName),
		now.Add(-c.opts.Retention),
	)
	if err != nil {
		return fmt.Errorf("outbox cleaner delete published: %w", err)
	}
	c.m.cleanedTotal.WithLabelValues(c.tableLabel, "published").Add(float64(tag.RowsAffected()))

	if c.opts.DeadRetention <= 0 {
		return nil
	}
	tag, err = c.db.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE published_at IS NULL AND attempts >= $1 AND created_at < $2`, tableName),
		c.opts.MaxAttempts, now.Add(-c.opts.DeadRetention),
	)
	if err != nil {
		return fmt.Errorf("outbox cleaner delete dead: %w", err)
	}
	c.m.cleanedTotal.WithLabelValues(c.tableLabel, "dead").Add(float64(tag.RowsAffected()))
	return nil
}
