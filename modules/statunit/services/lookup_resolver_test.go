package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/statreg/modules/statunit/domain/aggregates/statunit"
	"github.com/iota-uz/statreg/modules/statunit/domain/entities/lookup"
)

func newResolver() *LookupResolver {
	return NewLookupResolver(fakeLookups{items: map[lookup.Catalog][]lookup.Item{
		lookup.LegalForms: {
			{ID: 1, Code: "LLC", Name: "Limited Liability Company"},
			{ID: 2, Code: "JSC", Name: "Joint Stock Company"},
		},
		lookup.PersonTypes: {
			{ID: 9, Code: "ACC", Name: "Accountant"},
		},
	}})
}

func TestLookupResolver_Find(t *testing.T) {
	r := newResolver()
	ctx := context.Background()

	ref, err := r.Find(ctx, lookup.LegalForms, "JSC", "")
	require.NoError(t, err)
	require.Equal(t, int64(2), ref.ID)

	ref, err = r.Find(ctx, lookup.LegalForms, "", "limited liability company")
	require.NoError(t, err)
	require.Equal(t, int64(1), ref.ID)

	ref, err = r.Find(ctx, lookup.LegalForms, "XX", "joint stock")
	require.NoError(t, err)
	require.Equal(t, "JSC", ref.Code)

	_, err = r.Find(ctx, lookup.LegalForms, "XX", "partnership")
	require.ErrorIs(t, err, lookup.ErrNotFound)
}

func TestLookupResolver_PersonRole(t *testing.T) {
	r := newResolver()
	ctx := context.Background()

	role, err := r.PersonRole(ctx, "owner")
	require.NoError(t, err)
	require.Equal(t, statunit.RoleOwner, role)

	role, err = r.PersonRole(ctx, "accountant")
	require.NoError(t, err)
	require.Equal(t, statunit.PersonRole("Accountant"), role)

	_, err = r.PersonRole(ctx, "astronaut")
	require.Error(t, err)
}
