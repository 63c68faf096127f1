package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/statreg/modules/statunit/domain/aggregates/statunit"
	"github.com/iota-uz/statreg/modules/statunit/infrastructure/persistence/models"
	"github.com/iota-uz/statreg/pkg/composables"
)

const (
	selectStatUnitQuery = `
		SELECT reg_id, kind, stat_id, tax_reg_id, external_id, name, short_name, telephone_no,
		       email_address, address_key, parent_reg_id, status, liq_date, document
		FROM statistical_units`

	insertStatUnitQuery = `
		INSERT INTO statistical_units (
			kind, stat_id, tax_reg_id, external_id, name, short_name, telephone_no,
			email_address, address_key, parent_reg_id, status, liq_date, document
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING reg_id`

	updateStatUnitQuery = `
		UPDATE statistical_units SET
			stat_id = $2, tax_reg_id = $3, external_id = $4, name = $5, short_name = $6,
			telephone_no = $7, email_address = $8, address_key = $9, parent_reg_id = $10,
			status = $11, liq_date = $12, document = $13, updated_at = now()
		WHERE reg_id = $1 AND kind = $14`
)

type StatUnitRepository struct{}

func NewStatUnitRepository() statunit.Repository {
	return &StatUnitRepository{}
}

func (r *StatUnitRepository) GetByRegID(ctx context.Context, kind statunit.Kind, regID int64) (statunit.Unit, error) {
	units, err := r.queryUnits(ctx, selectStatUnitQuery+" WHERE kind = $1 AND reg_id = $2", kind, regID)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, errors.Wrap(statunit.ErrNotFound, fmt.Sprintf("%s reg_id=%d", kind, regID))
	}
	return units[0], nil
}

func (r *StatUnitRepository) GetByStatID(ctx context.Context, kind statunit.Kind, statID string) (statunit.Unit, error) {
	units, err := r.queryUnits(ctx, selectStatUnitQuery+" WHERE kind = $1 AND stat_id = $2 ORDER BY reg_id LIMIT 1", kind, statID)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, errors.Wrap(statunit.ErrNotFound, fmt.Sprintf("%s stat_id=%s", kind, statID))
	}
	return units[0], nil
}

func (r *StatUnitRepository) ListByStatID(ctx context.Context, kind statunit.Kind, statID string) ([]statunit.Unit, error) {
	return r.queryUnits(ctx, selectStatUnitQuery+" WHERE kind = $1 AND stat_id = $2 ORDER BY reg_id", kind, statID)
}

func (r *StatUnitRepository) ListChildren(ctx context.Context, kind statunit.Kind, parentRegID int64) ([]statunit.Unit, error) {
	return r.queryUnits(ctx, selectStatUnitQuery+" WHERE kind = $1 AND parent_reg_id = $2 ORDER BY reg_id", kind, parentRegID)
}

func (r *StatUnitRepository) CountChildren(ctx context.Context, kind statunit.Kind, parentRegID int64) (int, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var count int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM statistical_units WHERE kind = $1 AND parent_reg_id = $2`,
		string(kind), parentRegID,
	).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count child units")
	}
	return count, nil
}

// AddressesInUse returns the addresses of other units stored under addressKey.
func (r *StatUnitRepository) AddressesInUse(ctx context.Context, addressKey string, excludeRegID int64) ([]statunit.Address, error) {
	if addressKey == "" {
		return nil, nil
	}
	units, err := r.queryUnits(ctx, selectStatUnitQuery+" WHERE address_key = $1 AND reg_id <> $2 ORDER BY reg_id", addressKey, excludeRegID)
	if err != nil {
		return nil, err
	}
	out := make([]statunit.Address, 0, len(units))
	for _, u := range units {
		if addr := statunit.FirstAddress(u); addr != nil {
			out = append(out, *addr)
		}
	}
	return out, nil
}

func (r *StatUnitRepository) FindDuplicateCandidates(ctx context.Context, f statunit.DuplicateFilter) ([]statunit.Unit, error) {
	where, args, ok := buildDuplicateFilter(f)
	if !ok {
		return nil, nil
	}
	query := selectStatUnitQuery + " WHERE " + where + " ORDER BY reg_id"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	return r.queryUnits(ctx, query, args...)
}

func (r *StatUnitRepository) Create(ctx context.Context, u statunit.Unit) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	row, err := toDBStatUnit(u)
	if err != nil {
		return err
	}
	var regID int64
	if err := tx.QueryRow(ctx, insertStatUnitQuery,
		row.Kind, row.StatID, row.TaxRegID, row.ExternalID, row.Name, row.ShortName, row.TelephoneNo,
		row.EmailAddress, row.AddressKey, row.ParentRegID, row.Status, row.LiqDate, row.Document,
	).Scan(&regID); err != nil {
		return errors.Wrap(err, "failed to insert stat unit")
	}
	u.Base().RegID = regID
	return nil
}

func (r *StatUnitRepository) Update(ctx context.Context, u statunit.Unit) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	row, err := toDBStatUnit(u)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, updateStatUnitQuery,
		row.RegID, row.StatID, row.TaxRegID, row.ExternalID, row.Name, row.ShortName, row.TelephoneNo,
		row.EmailAddress, row.AddressKey, row.ParentRegID, row.Status, row.LiqDate, row.Document, row.Kind,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update stat unit")
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrap(statunit.ErrNotFound, fmt.Sprintf("%s reg_id=%d", row.Kind, row.RegID))
	}
	return nil
}

func (r *StatUnitRepository) queryUnits(ctx context.Context, query string, args ...any) ([]statunit.Unit, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	for i, a := range args {
		if k, ok := a.(statunit.Kind); ok {
			args[i] = string(k)
		}
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query stat units")
	}
	defer rows.Close()

	var units []statunit.Unit
	for rows.Next() {
		var m models.StatUnit
		if err := rows.Scan(
			&m.RegID,
			&m.Kind,
			&m.StatID,
			&m.TaxRegID,
			&m.ExternalID,
			&m.Name,
			&m.ShortName,
			&m.TelephoneNo,
			&m.EmailAddress,
			&m.AddressKey,
			&m.ParentRegID,
			&m.Status,
			&m.LiqDate,
			&m.Document,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan stat unit")
		}
		u, err := toDomainStatUnit(&m)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate stat units")
	}
	return units, nil
}

// buildDuplicateFilter compiles the duplicate candidate predicate: the same
// (stat_id, tax_reg_id) pair, or at least two of the remaining comparable
// columns equal. Empty values never take part.
func buildDuplicateFilter(f statunit.DuplicateFilter) (string, []any, bool) {
	if f.IsEmpty() {
		return "", nil, false
	}
	args := []any{string(f.Kind), f.ExcludeRegID}
	where := []string{"kind = $1", "reg_id <> $2"}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var alts []string
	if f.StatID != "" && f.TaxRegID != "" {
		alts = append(alts, fmt.Sprintf("(stat_id = %s AND tax_reg_id = %s)", arg(f.StatID), arg(f.TaxRegID)))
	}

	columns := [][2]string{
		{"external_id", f.ExternalID},
		{"lower(name)", strings.ToLower(f.Name)},
		{"address_key", f.AddressKey},
		{"short_name", f.ShortName},
		{"telephone_no", f.TelephoneNo},
		{"email_address", f.EmailAddress},
	}
	var present [][2]string
	for _, c := range columns {
		if c[1] != "" {
			present = append(present, c)
		}
	}
	if len(present) >= 2 {
		matches := make([]string, 0, len(present))
		for _, c := range present {
			matches = append(matches, fmt.Sprintf("(%s = %s)::int", c[0], arg(c[1])))
		}
		alts = append(alts, "("+strings.Join(matches, " + ")+") >= 2")
	}
	if len(alts) == 0 {
		return "", nil, false
	}
	where = append(where, "("+strings.Join(alts, " OR ")+")")
	return strings.Join(where, " AND "), args, true
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
