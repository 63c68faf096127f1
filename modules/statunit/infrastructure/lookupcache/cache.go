package lookupcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/statreg/modules/statunit/domain/entities/lookup"
)

const defaultPrefix = "statreg:lookup:v1"

// Repository caches reference catalog rows in a redis hash per catalog.
// Misses fall through to the wrapped repository and are written back.
type Repository struct {
	next   lookup.Repository
	redis  redis.Cmdable
	prefix string
	ttl    time.Duration
	logger *logrus.Entry
}

func New(next lookup.Repository, client redis.Cmdable, ttl time.Duration, logger *logrus.Entry) lookup.Repository {
	if client == nil {
		return next
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Repository{
		next:   next,
		redis:  client,
		prefix: defaultPrefix,
		ttl:    ttl,
		logger: logger.WithField("component", "lookupcache"),
	}
}

func (r *Repository) FindByCode(ctx context.Context, catalog lookup.Catalog, code string) (lookup.Item, error) {
	return r.find(ctx, catalog, "code:"+code, func() (lookup.Item, error) {
		return r.next.FindByCode(ctx, catalog, code)
	})
}

func (r *Repository) FindByName(ctx context.Context, catalog lookup.Catalog, name string) (lookup.Item, error) {
	return r.find(ctx, catalog, "name:"+strings.ToLower(name), func() (lookup.Item, error) {
		return r.next.FindByName(ctx, catalog, name)
	})
}

// List is not cached; it only serves the fuzzy fallback.
func (r *Repository) List(ctx context.Context, catalog lookup.Catalog) ([]lookup.Item, error) {
	return r.next.List(ctx, catalog)
}

func (r *Repository) find(ctx context.Context, catalog lookup.Catalog, field string, load func() (lookup.Item, error)) (lookup.Item, error) {
	key := r.hashKey(catalog)
	raw, err := r.redis.HGet(ctx, key, field).Result()
	switch {
	case err == nil:
		var item lookup.Item
		if uErr := json.Unmarshal([]byte(raw), &item); uErr == nil {
			return item, nil
		}
		r.logger.WithField("key", key).Warn("dropping undecodable lookup cache entry")
	case !errors.Is(err, redis.Nil):
		r.logger.WithError(err).WithField("key", key).Warn("lookup cache read failed")
	}

	item, err := load()
	if err != nil {
		return lookup.Item{}, err
	}
	r.store(ctx, key, field, item)
	return item, nil
}

func (r *Repository) store(ctx context.Context, key, field string, item lookup.Item) {
	data, err := json.Marshal(item)
	if err != nil {
		return
	}
	if err := r.redis.HSet(ctx, key, field, data).Err(); err != nil {
		r.logger.WithError(err).WithField("key", key).Warn("lookup cache write failed")
		return
	}
	if r.ttl > 0 {
		if err := r.redis.Expire(ctx, key, r.ttl).Err(); err != nil {
			r.logger.WithError(err).WithField("key", key).Warn("lookup cache expire failed")
		}
	}
}

func (r *Repository) hashKey(catalog lookup.Catalog) string {
	return fmt.Sprintf("%s:{%s}", r.prefix, catalog)
}
