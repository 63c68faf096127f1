package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/statreg/modules/dataupload/domain/entities/queuejob"
	"github.com/iota-uz/statreg/modules/dataupload/infrastructure/persistence/models"
	"github.com/iota-uz/statreg/pkg/composables"
)

const (
	// One statement: concurrent workers skip the row another worker has locked.
	claimJobQuery = `
		WITH next AS (
			SELECT id FROM import_jobs
			WHERE status = $1
			ORDER BY created_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE import_jobs j
		SET status = $2, started_at = now()
		FROM next
		WHERE j.id = next.id
		RETURNING j.id`

	selectJobQuery = `
		SELECT j.id, j.file_name, j.file_path, j.description, j.user_id, j.is_admin, j.data_source_id,
		       j.status, j.note, j.skip_lines_count, j.created_at, j.started_at, j.ended_at,
		       d.id, d.name, d.mapping, d.csv_delimiter, d.csv_skip_count, d.allowed_operations,
		       d.stat_unit_type, d.upload_type, d.priority
		FROM import_jobs j
		JOIN data_sources d ON d.id = j.data_source_id
		WHERE j.id = $1`

	reclaimJobsQuery = `
		UPDATE import_jobs
		SET status = $1, started_at = NULL
		WHERE status = $2 AND started_at < now() - make_interval(secs => $3)`

	finishJobQuery = `
		UPDATE import_jobs
		SET status = $2, note = $3, ended_at = now()
		WHERE id = $1`

	insertJobQuery = `
		INSERT INTO import_jobs (file_name, file_path, description, user_id, is_admin, data_source_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	upsertDataSourceQuery = `
		INSERT INTO data_sources (
			name, mapping, csv_delimiter, csv_skip_count, allowed_operations, stat_unit_type, upload_type, priority
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (name) DO UPDATE SET
			mapping = EXCLUDED.mapping,
			csv_delimiter = EXCLUDED.csv_delimiter,
			csv_skip_count = EXCLUDED.csv_skip_count,
			allowed_operations = EXCLUDED.allowed_operations,
			stat_unit_type = EXCLUDED.stat_unit_type,
			upload_type = EXCLUDED.upload_type,
			priority = EXCLUDED.priority
		RETURNING id`
)

type QueueRepository struct{}

func NewQueueRepository() queuejob.Repository {
	return &QueueRepository{}
}

func (r *QueueRepository) Claim(ctx context.Context) (*queuejob.ImportJob, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var id int64
	err = tx.QueryRow(ctx, claimJobQuery, int(queuejob.StatusEnqueued), int(queuejob.StatusDequeued)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, queuejob.ErrNoJob
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to claim import job")
	}
	return r.GetByID(ctx, id)
}

func (r *QueueRepository) GetByID(ctx context.Context, id int64) (*queuejob.ImportJob, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var (
		j  models.ImportJob
		ds models.DataSource
	)
	if err := tx.QueryRow(ctx, selectJobQuery, id).Scan(
		&j.ID,
		&j.FileName,
		&j.FilePath,
		&j.Description,
		&j.UserID,
		&j.IsAdmin,
		&j.DataSourceID,
		&j.Status,
		&j.Note,
		&j.SkipLinesCount,
		&j.CreatedAt,
		&j.StartedAt,
		&j.EndedAt,
		&ds.ID,
		&ds.Name,
		&ds.Mapping,
		&ds.CSVDelimiter,
		&ds.CSVSkipCount,
		&ds.AllowedOperations,
		&ds.StatUnitType,
		&ds.UploadType,
		&ds.Priority,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrap(queuejob.ErrNoJob, fmt.Sprintf("import job %d", id))
		}
		return nil, errors.Wrap(err, "failed to load import job")
	}
	return toDomainImportJob(&j, &ds)
}

// Reclaim returns jobs dequeued longer than timeout ago to the queue.
func (r *QueueRepository) Reclaim(ctx context.Context, timeout time.Duration) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, reclaimJobsQuery, int(queuejob.StatusEnqueued), int(queuejob.StatusDequeued), timeout.Seconds())
	if err != nil {
		return 0, errors.Wrap(err, "failed to reclaim import jobs")
	}
	return tag.RowsAffected(), nil
}

func (r *QueueRepository) Finish(ctx context.Context, id int64, status queuejob.Status, note string) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, finishJobQuery, id, int(status), note); err != nil {
		return errors.Wrap(err, "failed to finish import job")
	}
	return nil
}

func (r *QueueRepository) IncrementSkip(ctx context.Context, id int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE import_jobs SET skip_lines_count = skip_lines_count + 1 WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "failed to increment skipped lines")
	}
	return nil
}

func (r *QueueRepository) Enqueue(ctx context.Context, job *queuejob.ImportJob) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	job.Status = queuejob.StatusEnqueued
	if err := tx.QueryRow(ctx, insertJobQuery,
		job.FileName, job.FilePath, job.Description, job.UserID, job.IsAdmin, job.DataSource.ID, int(job.Status),
	).Scan(&job.ID, &job.CreatedAt); err != nil {
		return errors.Wrap(err, "failed to enqueue import job")
	}
	return nil
}

// SaveDataSource inserts ds or overwrites the data source with the same name.
func (r *QueueRepository) SaveDataSource(ctx context.Context, ds *queuejob.DataSourceConfig) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	m, err := toDBDataSource(ds)
	if err != nil {
		return err
	}
	if err := tx.QueryRow(ctx, upsertDataSourceQuery,
		m.Name, m.Mapping, m.CSVDelimiter, m.CSVSkipCount, m.AllowedOperations, m.StatUnitType, m.UploadType, m.Priority,
	).Scan(&ds.ID); err != nil {
		return errors.Wrap(err, "failed to save data source")
	}
	return nil
}
