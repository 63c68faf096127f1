package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFS_EveryMigrationHasUpAndDown(t *testing.T) {
	names, err := fs.Glob(FS(), "*.sql")
	require.NoError(t, err)
	require.Len(t, names, 3)

	for _, name := range names {
		raw, err := fs.ReadFile(FS(), name)
		require.NoError(t, err)
		body := string(raw)
		require.True(t, strings.HasPrefix(body, "-- +goose Up"), name)
		require.Contains(t, body, "-- +goose Down", name)
	}
}

func TestFS_CreatesRepositoryTables(t *testing.T) {
	var all strings.Builder
	names, err := fs.Glob(FS(), "*.sql")
	require.NoError(t, err)
	for _, name := range names {
		raw, err := fs.ReadFile(FS(), name)
		require.NoError(t, err)
		all.Write(raw)
	}
	for _, table := range []string{
		"statistical_units", "statistical_unit_history", "lookup_items",
		"statunit_outbox", "data_sources", "import_jobs", "upload_logs",
	} {
		require.Contains(t, all.String(), "CREATE TABLE "+table+" (", table)
	}
}
