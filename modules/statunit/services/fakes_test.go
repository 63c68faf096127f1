package services

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/statreg/modules/statunit/domain/aggregates/statunit"
	"github.com/iota-uz/statreg/modules/statunit/domain/entities/history"
	"github.com/iota-uz/statreg/modules/statunit/domain/entities/lookup"
	"github.com/iota-uz/statreg/pkg/outbox"
	"github.com/iota-uz/statreg/pkg/repo"
)

func passthroughTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type fakeUnits struct {
	nextID  int64
	units   map[int64]statunit.Unit
	created []statunit.Unit
	updated []statunit.Unit
}

func newFakeUnits(seed ...statunit.Unit) *fakeUnits {
	f := &fakeUnits{nextID: 100, units: map[int64]statunit.Unit{}}
	for _, u := range seed {
		f.units[u.Base().RegID] = u.Clone()
	}
	return f
}

func (f *fakeUnits) get(regID int64) statunit.Unit { return f.units[regID] }

func (f *fakeUnits) GetByRegID(_ context.Context, kind statunit.Kind, regID int64) (statunit.Unit, error) {
	u, ok := f.units[regID]
	if !ok || u.Kind() != kind {
		return nil, statunit.ErrNotFound
	}
	return u.Clone(), nil
}

func (f *fakeUnits) GetByStatID(ctx context.Context, kind statunit.Kind, statID string) (statunit.Unit, error) {
	list, _ := f.ListByStatID(ctx, kind, statID)
	if len(list) == 0 {
		return nil, statunit.ErrNotFound
	}
	return list[0], nil
}

func (f *fakeUnits) ListByStatID(_ context.Context, kind statunit.Kind, statID string) ([]statunit.Unit, error) {
	var out []statunit.Unit
	for _, u := range f.units {
		if u.Kind() == kind && u.Base().StatID == statID {
			out = append(out, u.Clone())
		}
	}
	return out, nil
}

func (f *fakeUnits) ListChildren(_ context.Context, kind statunit.Kind, parentRegID int64) ([]statunit.Unit, error) {
	var out []statunit.Unit
	for _, u := range f.units {
		if p := u.ParentRegID(); u.Kind() == kind && p != nil && *p == parentRegID {
			out = append(out, u.Clone())
		}
	}
	return out, nil
}

func (f *fakeUnits) CountChildren(ctx context.Context, kind statunit.Kind, parentRegID int64) (int, error) {
	list, _ := f.ListChildren(ctx, kind, parentRegID)
	return len(list), nil
}

func (f *fakeUnits) AddressesInUse(_ context.Context, addressKey string, excludeRegID int64) ([]statunit.Address, error) {
	var out []statunit.Address
	for id, u := range f.units {
		if addr := statunit.FirstAddress(u); id != excludeRegID && addr != nil && addr.Key() == addressKey {
			out = append(out, *addr)
		}
	}
	return out, nil
}

func (f *fakeUnits) FindDuplicateCandidates(_ context.Context, flt statunit.DuplicateFilter) ([]statunit.Unit, error) {
	var out []statunit.Unit
	for id, u := range f.units {
		if id != flt.ExcludeRegID && u.Kind() == flt.Kind && strings.EqualFold(u.Base().Name, flt.Name) {
			out = append(out, u.Clone())
		}
	}
	return out, nil
}

func (f *fakeUnits) Create(_ context.Context, u statunit.Unit) error {
	f.nextID++
	u.Base().RegID = f.nextID
	f.units[f.nextID] = u.Clone()
	f.created = append(f.created, u.Clone())
	return nil
}

func (f *fakeUnits) Update(_ context.Context, u statunit.Unit) error {
	if _, ok := f.units[u.Base().RegID]; !ok {
		return statunit.ErrNotFound
	}
	f.units[u.Base().RegID] = u.Clone()
	f.updated = append(f.updated, u.Clone())
	return nil
}

type fakeHistory struct {
	records []history.Record
}

func (f *fakeHistory) Create(_ context.Context, rec *history.Record) error {
	rec.ID = int64(len(f.records) + 1)
	f.records = append(f.records, *rec)
	return nil
}

func (f *fakeHistory) ListByRegID(_ context.Context, regID int64) ([]history.Record, error) {
	var out []history.Record
	for _, r := range f.records {
		if r.RegID == regID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakePublisher struct {
	batches [][]outbox.Message
	err     error
}

func (f *fakePublisher) Enqueue(context.Context, repo.Tx, pgx.Identifier, outbox.Message) (int64, error) {
	return 0, f.err
}

func (f *fakePublisher) EnqueueBatch(_ context.Context, _ repo.Tx, _ pgx.Identifier, msgs []outbox.Message) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, append([]outbox.Message(nil), msgs...))
	return nil
}

// nopTx satisfies repo.Tx for code paths that only look the transaction up.
type nopTx struct{ repo.Tx }

type fakePermissions struct {
	denied map[string]bool
}

func (f fakePermissions) CanWrite(_ context.Context, _ string, isAdmin bool, object string) (bool, error) {
	return isAdmin || !f.denied[object], nil
}

type fakeLookups struct {
	items map[lookup.Catalog][]lookup.Item
}

func (f fakeLookups) FindByCode(_ context.Context, catalog lookup.Catalog, code string) (lookup.Item, error) {
	for _, it := range f.items[catalog] {
		if it.Code == code {
			return it, nil
		}
	}
	return lookup.Item{}, lookup.ErrNotFound
}

func (f fakeLookups) FindByName(_ context.Context, catalog lookup.Catalog, name string) (lookup.Item, error) {
	for _, it := range f.items[catalog] {
		if strings.EqualFold(it.Name, name) {
			return it, nil
		}
	}
	return lookup.Item{}, lookup.ErrNotFound
}

func (f fakeLookups) List(_ context.Context, catalog lookup.Catalog) ([]lookup.Item, error) {
	return f.items[catalog], nil
}
