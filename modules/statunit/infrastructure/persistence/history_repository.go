package persistence

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/iota-uz/statreg/modules/statunit/domain/entities/history"
	"github.com/iota-uz/statreg/modules/statunit/infrastructure/persistence/models"
	"github.com/iota-uz/statreg/pkg/composables"
)

type HistoryRepository struct{}

func NewHistoryRepository() history.Repository {
	return &HistoryRepository{}
}

func (r *HistoryRepository) Create(ctx context.Context, rec *history.Record) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	row := toDBHistory(rec)
	if err := tx.QueryRow(ctx, `
		INSERT INTO statistical_unit_history (
			reg_id, kind, snapshot, changes, change_reason, edit_comment, user_id, start_period, end_period
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		row.RegID, row.Kind, row.Snapshot, row.Changes, row.ChangeReason, row.EditComment,
		row.UserID, row.StartPeriod, row.EndPeriod,
	).Scan(&rec.ID); err != nil {
		return errors.Wrap(err, "failed to insert stat unit history")
	}
	return nil
}

func (r *HistoryRepository) ListByRegID(ctx context.Context, regID int64) ([]history.Record, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
		SELECT id, reg_id, kind, snapshot, changes, change_reason, edit_comment, user_id, start_period, end_period
		FROM statistical_unit_history
		WHERE reg_id = $1
		ORDER BY id`, regID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query stat unit history")
	}
	defer rows.Close()

	var out []history.Record
	for rows.Next() {
		var m models.History
		if err := rows.Scan(
			&m.ID,
			&m.RegID,
			&m.Kind,
			&m.Snapshot,
			&m.Changes,
			&m.ChangeReason,
			&m.EditComment,
			&m.UserID,
			&m.StartPeriod,
			&m.EndPeriod,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan stat unit history")
		}
		out = append(out, toDomainHistory(&m))
	}
	return out, rows.Err()
}
