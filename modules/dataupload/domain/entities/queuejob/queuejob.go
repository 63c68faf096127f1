package queuejob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iota-uz/statreg/modules/statunit/domain/aggregates/statunit"
	"github.com/iota-uz/statreg/modules/statunit/domain/entities/datasource"
	"github.com/iota-uz/statreg/pkg/constants"
	"github.com/iota-uz/statreg/pkg/fileparser"
)

var (
	ErrNoJob                 = errors.New("no enqueued import job")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

type Status int

const (
	StatusEnqueued Status = iota + 1
	StatusDequeued
	StatusCompleted
	StatusCompletedPartially
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusEnqueued:
		return "Enqueued"
	case StatusDequeued:
		return "Dequeued"
	case StatusCompleted:
		return "Completed"
	case StatusCompletedPartially:
		return "CompletedPartially"
	case StatusFailed:
		return "Failed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

func (s Status) Final() bool {
	return s == StatusCompleted || s == StatusCompletedPartially || s == StatusFailed
}

const StatIDTarget = "StatId"

// DataSourceConfig describes how the files of one data source map onto units.
type DataSourceConfig struct {
	ID                int64                       `json:"id" yaml:"id"`
	Name              string                      `json:"name" yaml:"name" validate:"required"`
	Mapping           []fileparser.MappingRule    `json:"mapping" yaml:"mapping" validate:"required,min=1,dive"`
	CSVDelimiter      string                      `json:"csv_delimiter" yaml:"csv_delimiter"`
	CSVSkipCount      int                         `json:"csv_skip_count" yaml:"csv_skip_count" validate:"gte=0"`
	AllowedOperations datasource.AllowedOperation `json:"allowed_operations" yaml:"allowed_operations" validate:"required,min=1,max=3"`
	StatUnitType      statunit.Kind               `json:"stat_unit_type" yaml:"stat_unit_type" validate:"required"`
	UploadType        datasource.UploadType       `json:"upload_type" yaml:"upload_type" validate:"required,min=1,max=2"`
	Priority          datasource.Priority         `json:"priority" yaml:"priority" validate:"required,min=1,max=3"`
}

func (c *DataSourceConfig) Validate() error {
	if err := constants.Validate.Struct(c); err != nil {
		return fmt.Errorf("invalid data source %q: %w", c.Name, err)
	}
	if _, err := statunit.ParseKind(string(c.StatUnitType)); err != nil {
		return err
	}
	if utf8.RuneCountInString(c.CSVDelimiter) > 1 && !strings.EqualFold(c.CSVDelimiter, "tab") && c.CSVDelimiter != `\t` {
		return fmt.Errorf("invalid data source %q: delimiter %q must be a single character", c.Name, c.CSVDelimiter)
	}
	if !c.HasStatIDMapping() {
		return fmt.Errorf("invalid data source %q: StatId mapping is required", c.Name)
	}
	return nil
}

func (c *DataSourceConfig) HasStatIDMapping() bool {
	for _, m := range c.Mapping {
		if strings.EqualFold(m.Target, StatIDTarget) {
			return true
		}
	}
	return false
}

// ImportJob is one uploaded file waiting for, or going through, the import.
type ImportJob struct {
	ID             int64
	FileName       string
	FilePath       string
	Description    string
	UserID         string
	IsAdmin        bool
	DataSource     DataSourceConfig
	Status         Status
	Note           string
	SkipLinesCount int
	CreatedAt      time.Time
	StartedAt      *time.Time
	EndedAt        *time.Time
}

type Repository interface {
	// Claim moves the oldest enqueued job to Dequeued and returns it, or ErrNoJob.
	Claim(ctx context.Context) (*ImportJob, error)
	Reclaim(ctx context.Context, timeout time.Duration) (int64, error)
	Finish(ctx context.Context, id int64, status Status, note string) error
	IncrementSkip(ctx context.Context, id int64) error
	Enqueue(ctx context.Context, job *ImportJob) error
	SaveDataSource(ctx context.Context, ds *DataSourceConfig) error
	GetByID(ctx context.Context, id int64) (*ImportJob, error)
}
