package persistence

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/statreg/modules/statunit/domain/aggregates/statunit"
	"github.com/iota-uz/statreg/modules/statunit/domain/entities/history"
	"github.com/iota-uz/statreg/modules/statunit/domain/entities/lookup"
	"github.com/iota-uz/statreg/pkg/composables"
)

func unitRow(t *testing.T, u statunit.Unit) []any {
	t.Helper()
	m, err := toDBStatUnit(u)
	require.NoError(t, err)
	return []any{m.RegID, m.Kind, m.StatID, m.TaxRegID, m.ExternalID, m.Name, m.ShortName, m.TelephoneNo,
		m.EmailAddress, m.AddressKey, m.ParentRegID, m.Status, m.LiqDate, m.Document}
}

func TestStatUnitRepository_GetByStatID_MapsDocument(t *testing.T) {
	parent := int64(3)
	stored := &statunit.LegalUnit{
		Common:              statunit.Common{RegID: 10, StatID: "111", Name: "Acme", Status: statunit.StatusActive},
		EnterpriseUnitRegID: &parent,
	}
	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			require.Contains(t, sql, "FROM statistical_units")
			require.Contains(t, sql, "stat_id = $2")
			require.Equal(t, "LegalUnit", args[0])
			require.Equal(t, "111", args[1])
			return &stubRows{data: [][]any{unitRow(t, stored)}}, nil
		},
	}
	ctx := composables.WithTx(context.Background(), tx)

	got, err := NewStatUnitRepository().GetByStatID(ctx, statunit.KindLegalUnit, "111")
	require.NoError(t, err)
	legal, ok := got.(*statunit.LegalUnit)
	require.True(t, ok)
	require.Equal(t, int64(10), legal.RegID)
	require.Equal(t, "Acme", legal.Name)
	require.Equal(t, int64(3), *legal.EnterpriseUnitRegID)
}

func TestStatUnitRepository_GetByStatID_NotFound(t *testing.T) {
	tx := &stubTx{
		queryFunc: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
			return &stubRows{}, nil
		},
	}
	ctx := composables.WithTx(context.Background(), tx)

	_, err := NewStatUnitRepository().GetByStatID(ctx, statunit.KindLocalUnit, "404")
	require.ErrorIs(t, err, statunit.ErrNotFound)
}

func TestStatUnitRepository_Create_AssignsRegIDAndIndexesColumns(t *testing.T) {
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Contains(t, sql, "INSERT INTO statistical_units")
			require.Equal(t, "LocalUnit", args[0])
			require.Equal(t, "222", args[1])
			require.Equal(t, "|main st 1||", args[8])
			return stubRow{scan: func(dest ...any) error {
				*dest[0].(*int64) = 77
				return nil
			}}
		},
	}
	ctx := composables.WithTx(context.Background(), tx)

	u := &statunit.LocalUnit{Common: statunit.Common{StatID: "222", Address: &statunit.Address{AddressPart1: "Main St 1"}}}
	require.NoError(t, NewStatUnitRepository().Create(ctx, u))
	require.Equal(t, int64(77), u.RegID)
}

func TestStatUnitRepository_Update_ReportsMissingRow(t *testing.T) {
	tx := &stubTx{
		execFunc: func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
			require.Contains(t, sql, "UPDATE statistical_units")
			require.Equal(t, int64(5), args[0])
			return pgconn.NewCommandTag("UPDATE 0"), nil
		},
	}
	ctx := composables.WithTx(context.Background(), tx)

	err := NewStatUnitRepository().Update(ctx, &statunit.EnterpriseGroup{Common: statunit.Common{RegID: 5}})
	require.ErrorIs(t, err, statunit.ErrNotFound)
}

func TestBuildDuplicateFilter(t *testing.T) {
	t.Run("empty filter selects nothing", func(t *testing.T) {
		_, _, ok := buildDuplicateFilter(statunit.DuplicateFilter{Kind: statunit.KindLegalUnit})
		require.False(t, ok)
	})

	t.Run("single comparable field is not enough", func(t *testing.T) {
		_, _, ok := buildDuplicateFilter(statunit.DuplicateFilter{Kind: statunit.KindLegalUnit, Name: "Acme"})
		require.False(t, ok)
	})

	t.Run("stat and tax id pair plus two comparable fields", func(t *testing.T) {
		where, args, ok := buildDuplicateFilter(statunit.DuplicateFilter{
			Kind:         statunit.KindLegalUnit,
			ExcludeRegID: 9,
			StatID:       "1",
			TaxRegID:     "T",
			Name:         "Acme",
			TelephoneNo:  "555",
		})
		require.True(t, ok)
		require.Equal(t,
			"kind = $1 AND reg_id <> $2 AND ((stat_id = $3 AND tax_reg_id = $4) OR "+
				"((lower(name) = $5)::int + (telephone_no = $6)::int) >= 2)",
			where)
		require.Equal(t, []any{"LegalUnit", int64(9), "1", "T", "acme", "555"}, args)
	})
}

func TestStatUnitRepository_FindDuplicateCandidates_SkipsQueryWithoutPredicates(t *testing.T) {
	ctx := composables.WithTx(context.Background(), &stubTx{})
	units, err := NewStatUnitRepository().FindDuplicateCandidates(ctx, statunit.DuplicateFilter{Kind: statunit.KindLegalUnit})
	require.NoError(t, err)
	require.Empty(t, units)
}

func TestHistoryRepository_Create_ReturnsID(t *testing.T) {
	tx := &stubTx{
		queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
			require.Contains(t, sql, "INSERT INTO statistical_unit_history")
			require.Equal(t, int64(12), args[0])
			require.Equal(t, "edit", args[4])
			return stubRow{scan: func(dest ...any) error {
				*dest[0].(*int64) = 3
				return nil
			}}
		},
	}
	ctx := composables.WithTx(context.Background(), tx)

	rec := &history.Record{RegID: 12, Kind: statunit.KindLegalUnit, ChangeReason: statunit.ChangeReasonEdit}
	require.NoError(t, NewHistoryRepository().Create(ctx, rec))
	require.Equal(t, int64(3), rec.ID)
}

func TestLookupRepository_FindByCode(t *testing.T) {
	t.Run("maps row", func(t *testing.T) {
		tx := &stubTx{
			queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
				require.Contains(t, sql, "code = $2")
				require.Equal(t, "legal_forms", args[0])
				return stubRow{scan: func(dest ...any) error {
					*dest[0].(*int64) = 4
					*dest[1].(*string) = "legal_forms"
					*dest[2].(*string) = "LLC"
					*dest[3].(*string) = "Limited liability company"
					return nil
				}}
			},
		}
		ctx := composables.WithTx(context.Background(), tx)
		item, err := NewLookupRepository().FindByCode(ctx, lookup.LegalForms, "LLC")
		require.NoError(t, err)
		require.Equal(t, lookup.Item{ID: 4, Code: "LLC", Name: "Limited liability company"}, item)
	})

	t.Run("no rows", func(t *testing.T) {
		tx := &stubTx{
			queryRowFunc: func(ctx context.Context, sql string, args ...any) pgx.Row {
				return stubRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
			},
		}
		ctx := composables.WithTx(context.Background(), tx)
		_, err := NewLookupRepository().FindByName(ctx, lookup.Countries, "Atlantis")
		require.ErrorIs(t, err, lookup.ErrNotFound)
	})

	t.Run("unknown catalog", func(t *testing.T) {
		ctx := composables.WithTx(context.Background(), &stubTx{})
		_, err := NewLookupRepository().FindByCode(ctx, lookup.Catalog("planets"), "X")
		require.Error(t, err)
	})
}
