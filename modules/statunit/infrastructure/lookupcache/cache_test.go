package lookupcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/statreg/modules/statunit/domain/entities/lookup"
	"github.com/iota-uz/statreg/pkg/logging"
)

type fakeRedis struct {
	redis.Cmdable
	hashes  map[string]map[string]string
	expires map[string]time.Duration
	readErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{hashes: map[string]map[string]string{}, expires: map[string]time.Duration{}}
}

func (f *fakeRedis) HGet(ctx context.Context, key, field string) *redis.StringCmd {
	if f.readErr != nil {
		return redis.NewStringResult("", f.readErr)
	}
	v, ok := f.hashes[key][field]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	if f.hashes[key] == nil {
		f.hashes[key] = map[string]string{}
	}
	for i := 0; i+1 < len(values); i += 2 {
		f.hashes[key][values[i].(string)] = string(values[i+1].([]byte))
	}
	return redis.NewIntResult(int64(len(values)/2), nil)
}

func (f *fakeRedis) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.expires[key] = expiration
	return redis.NewBoolResult(true, nil)
}

type countingRepo struct {
	calls int
	item  lookup.Item
	err   error
}

func (c *countingRepo) FindByCode(ctx context.Context, catalog lookup.Catalog, code string) (lookup.Item, error) {
	c.calls++
	return c.item, c.err
}

func (c *countingRepo) FindByName(ctx context.Context, catalog lookup.Catalog, name string) (lookup.Item, error) {
	c.calls++
	return c.item, c.err
}

func (c *countingRepo) List(ctx context.Context, catalog lookup.Catalog) ([]lookup.Item, error) {
	return []lookup.Item{c.item}, c.err
}

func TestRepository_CachesHits(t *testing.T) {
	next := &countingRepo{item: lookup.Item{ID: 1, Code: "A", Name: "Agriculture"}}
	rdb := newFakeRedis()
	repo := New(next, rdb, time.Minute, logging.Nop())

	for i := 0; i < 3; i++ {
		item, err := repo.FindByCode(context.Background(), lookup.ActivityCategories, "A")
		require.NoError(t, err)
		require.Equal(t, "Agriculture", item.Name)
	}
	require.Equal(t, 1, next.calls)
	require.Equal(t, time.Minute, rdb.expires["statreg:lookup:v1:{activity_categories}"])
}

func TestRepository_NameKeysAreCaseInsensitive(t *testing.T) {
	next := &countingRepo{item: lookup.Item{ID: 2, Name: "Owner"}}
	repo := New(next, newFakeRedis(), 0, logging.Nop())

	_, err := repo.FindByName(context.Background(), lookup.PersonTypes, "OWNER")
	require.NoError(t, err)
	_, err = repo.FindByName(context.Background(), lookup.PersonTypes, "owner")
	require.NoError(t, err)
	require.Equal(t, 1, next.calls)
}

func TestRepository_ReadFailureFallsThrough(t *testing.T) {
	next := &countingRepo{item: lookup.Item{ID: 3, Name: "Small"}}
	rdb := newFakeRedis()
	rdb.readErr = errors.New("connection refused")
	repo := New(next, rdb, 0, logging.Nop())

	item, err := repo.FindByCode(context.Background(), lookup.UnitSizes, "S")
	require.NoError(t, err)
	require.Equal(t, int64(3), item.ID)
	require.Equal(t, 1, next.calls)
}

func TestRepository_MissesAreNotCached(t *testing.T) {
	next := &countingRepo{err: lookup.ErrNotFound}
	rdb := newFakeRedis()
	repo := New(next, rdb, 0, logging.Nop())

	_, err := repo.FindByCode(context.Background(), lookup.Countries, "ZZ")
	require.ErrorIs(t, err, lookup.ErrNotFound)
	require.Empty(t, rdb.hashes)
}

func TestNew_WithoutClientReturnsNext(t *testing.T) {
	next := &countingRepo{}
	require.Same(t, next, New(next, nil, 0, nil))
}
