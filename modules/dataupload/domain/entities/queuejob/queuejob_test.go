package queuejob

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/statreg/modules/statunit/domain/aggregates/statunit"
	"github.com/iota-uz/statreg/modules/statunit/domain/entities/datasource"
	"github.com/iota-uz/statreg/pkg/fileparser"
)

func validConfig() DataSourceConfig {
	return DataSourceConfig{
		Name: "tax office",
		Mapping: []fileparser.MappingRule{
			{Source: "id", Target: "StatId"},
			{Source: "name", Target: "Name"},
		},
		CSVDelimiter:      ";",
		AllowedOperations: datasource.OperationCreateAndAlter,
		StatUnitType:      statunit.KindLegalUnit,
		UploadType:        datasource.UploadStatUnits,
		Priority:          datasource.PriorityTrusted,
	}
}

func TestDataSourceConfig_Validate(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	cfg.CSVDelimiter = "tab"
	require.NoError(t, cfg.Validate())

	cases := map[string]func(c *DataSourceConfig){
		"no mapping":      func(c *DataSourceConfig) { c.Mapping = nil },
		"no stat id":      func(c *DataSourceConfig) { c.Mapping = c.Mapping[1:] },
		"empty target":    func(c *DataSourceConfig) { c.Mapping[1].Target = "" },
		"long delimiter":  func(c *DataSourceConfig) { c.CSVDelimiter = ";;" },
		"unknown kind":    func(c *DataSourceConfig) { c.StatUnitType = "Branch" },
		"no priority":     func(c *DataSourceConfig) { c.Priority = 0 },
		"bad operation":   func(c *DataSourceConfig) { c.AllowedOperations = 7 },
		"negative skip":   func(c *DataSourceConfig) { c.CSVSkipCount = -1 },
		"missing name":    func(c *DataSourceConfig) { c.Name = "" },
		"bad upload type": func(c *DataSourceConfig) { c.UploadType = 3 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := validConfig()
			mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}

func TestStatus(t *testing.T) {
	require.Equal(t, "CompletedPartially", StatusCompletedPartially.String())
	require.True(t, StatusFailed.Final())
	require.False(t, StatusDequeued.Final())
}
