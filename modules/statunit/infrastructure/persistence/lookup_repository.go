package persistence

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/iota-uz/statreg/modules/statunit/domain/entities/lookup"
	"github.com/iota-uz/statreg/modules/statunit/infrastructure/persistence/models"
	"github.com/iota-uz/statreg/pkg/composables"
	"github.com/iota-uz/statreg/pkg/constants"
)

type LookupRepository struct{}

func NewLookupRepository() lookup.Repository {
	return &LookupRepository{}
}

func (r *LookupRepository) FindByCode(ctx context.Context, catalog lookup.Catalog, code string) (lookup.Item, error) {
	return r.findOne(ctx, catalog, "code = $2", code)
}

// FindByName matches name case-insensitively.
func (r *LookupRepository) FindByName(ctx context.Context, catalog lookup.Catalog, name string) (lookup.Item, error) {
	return r.findOne(ctx, catalog, "lower(name) = lower($2)", name)
}

func (r *LookupRepository) List(ctx context.Context, catalog lookup.Catalog) ([]lookup.Item, error) {
	if !catalog.Valid() {
		return nil, fmt.Errorf("unknown lookup catalog %q", catalog)
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
		SELECT id, catalog, code, name FROM lookup_items
		WHERE catalog = $1 AND NOT is_deleted
		ORDER BY id`, string(catalog))
	if err != nil {
		return nil, errors.Wrap(err, "failed to list lookup items")
	}
	defer rows.Close()

	var items []lookup.Item
	for rows.Next() {
		var m models.LookupItem
		if err := rows.Scan(&m.ID, &m.Catalog, &m.Code, &m.Name); err != nil {
			return nil, errors.Wrap(err, "failed to scan lookup item")
		}
		items = append(items, toDomainLookupItem(&m))
	}
	return items, rows.Err()
}

func (r *LookupRepository) findOne(ctx context.Context, catalog lookup.Catalog, cond, value string) (lookup.Item, error) {
	if !catalog.Valid() {
		return lookup.Item{}, fmt.Errorf("unknown lookup catalog %q", catalog)
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return lookup.Item{}, err
	}
	var m models.LookupItem
	err = tx.QueryRow(ctx, `
		SELECT id, catalog, code, name FROM lookup_items
		WHERE catalog = $1 AND `+cond+` AND NOT is_deleted
		ORDER BY id LIMIT 1`, string(catalog), value,
	).Scan(&m.ID, &m.Catalog, &m.Code, &m.Name)
	if isNoRows(err) {
		return lookup.Item{}, errors.Wrap(lookup.ErrNotFound, fmt.Sprintf("%s %q", catalog, value))
	}
	if err != nil {
		return lookup.Item{}, errors.Wrap(err, "failed to query lookup item")
	}
	item := toDomainLookupItem(&m)
	if err := constants.Validate.Struct(item); err != nil {
		return lookup.Item{}, errors.Wrap(err, "invalid lookup row")
	}
	return item, nil
}
