package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/statreg/modules/dataupload/domain/entities/uploadlog"
	"github.com/iota-uz/statreg/modules/dataupload/infrastructure/persistence/models"
	"github.com/iota-uz/statreg/pkg/composables"
)

const insertUploadLogQuery = `
	INSERT INTO upload_logs (
		job_id, started_at, ended_at, target_stat_id, stat_unit_name, serialized_raw_unit,
		serialized_unit, status, note, errors, summary
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

type UploadLogRepository struct{}

func NewUploadLogRepository() uploadlog.Repository {
	return &UploadLogRepository{}
}

// InsertBatch writes entries in a single round trip.
func (r *UploadLogRepository) InsertBatch(ctx context.Context, entries []uploadlog.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for i := range entries {
		m, err := toDBUploadLog(&entries[i])
		if err != nil {
			return err
		}
		batch.Queue(insertUploadLogQuery,
			m.JobID, m.StartedAt, m.EndedAt, m.TargetStatID, m.StatUnitName, m.SerializedRawUnit,
			m.SerializedUnit, m.Status, m.Note, m.Errors, m.Summary,
		)
	}
	results := tx.SendBatch(ctx, batch)
	for range entries {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return errors.Wrap(err, "failed to insert upload logs")
		}
	}
	if err := results.Close(); err != nil {
		return errors.Wrap(err, "failed to insert upload logs")
	}
	return nil
}

func (r *UploadLogRepository) ListByJob(ctx context.Context, jobID int64) ([]uploadlog.Entry, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
		SELECT id, job_id, started_at, ended_at, target_stat_id, stat_unit_name, serialized_raw_unit,
		       serialized_unit, status, note, errors, summary
		FROM upload_logs
		WHERE job_id = $1
		ORDER BY id`, jobID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query upload logs")
	}
	defer rows.Close()

	var out []uploadlog.Entry
	for rows.Next() {
		var m models.UploadLog
		if err := rows.Scan(
			&m.ID,
			&m.JobID,
			&m.StartedAt,
			&m.EndedAt,
			&m.TargetStatID,
			&m.StatUnitName,
			&m.SerializedRawUnit,
			&m.SerializedUnit,
			&m.Status,
			&m.Note,
			&m.Errors,
			&m.Summary,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan upload log")
		}
		e, err := toDomainUploadLog(&m)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
