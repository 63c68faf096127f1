package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/iota-uz/statreg/modules/statunit/domain/aggregates/statunit"
	"github.com/iota-uz/statreg/modules/statunit/domain/entities/lookup"
)

// LookupResolver turns codes and names read from files into catalog references.
type LookupResolver struct {
	repo lookup.Repository
}

func NewLookupResolver(repo lookup.Repository) *LookupResolver {
	return &LookupResolver{repo: repo}
}

// Find matches by code, then by case-folded name, then by the best fuzzy name match.
func (r *LookupResolver) Find(ctx context.Context, catalog lookup.Catalog, code, name string) (statunit.CodeRef, error) {
	code, name = strings.TrimSpace(code), strings.TrimSpace(name)
	if code != "" {
		item, err := r.repo.FindByCode(ctx, catalog, code)
		if err == nil {
			return toRef(item), nil
		}
		if !errors.Is(err, lookup.ErrNotFound) {
			return statunit.CodeRef{}, err
		}
	}
	if name != "" {
		item, err := r.repo.FindByName(ctx, catalog, name)
		if err == nil {
			return toRef(item), nil
		}
		if !errors.Is(err, lookup.ErrNotFound) {
			return statunit.CodeRef{}, err
		}
		item, ok, err := r.closest(ctx, catalog, name)
		if err != nil {
			return statunit.CodeRef{}, err
		}
		if ok {
			return toRef(item), nil
		}
	}
	return statunit.CodeRef{}, fmt.Errorf("%w: %s code=%q name=%q", lookup.ErrNotFound, catalog, code, name)
}

func (r *LookupResolver) closest(ctx context.Context, catalog lookup.Catalog, name string) (lookup.Item, bool, error) {
	items, err := r.repo.List(ctx, catalog)
	if err != nil {
		return lookup.Item{}, false, err
	}
	if len(items) == 0 {
		return lookup.Item{}, false, nil
	}
	words := make([]string, len(items))
	for i, it := range items {
		words[i] = it.Name
	}
	ranks := fuzzy.RankFindNormalizedFold(name, words)
	if len(ranks) == 0 {
		return lookup.Item{}, false, nil
	}
	sort.Sort(ranks)
	return items[ranks[0].OriginalIndex], true, nil
}

// PersonRole maps a role name to one of the built-in roles or to a person type
// from the catalog.
func (r *LookupResolver) PersonRole(ctx context.Context, name string) (statunit.PersonRole, error) {
	name = strings.TrimSpace(name)
	for _, role := range []statunit.PersonRole{statunit.RoleOwner, statunit.RoleContactPerson, statunit.RoleFounder, statunit.RoleDirector} {
		if strings.EqualFold(name, string(role)) {
			return role, nil
		}
	}
	ref, err := r.Find(ctx, lookup.PersonTypes, "", name)
	if err != nil {
		return "", err
	}
	return statunit.PersonRole(ref.Name), nil
}

func toRef(item lookup.Item) statunit.CodeRef {
	return statunit.CodeRef{ID: item.ID, Code: item.Code, Name: item.Name}
}
