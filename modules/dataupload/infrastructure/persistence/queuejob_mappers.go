package persistence

import (
	"encoding/json"

	"github.com/go-faster/errors"

	"github.com/iota-uz/statreg/modules/dataupload/domain/entities/queuejob"
	"github.com/iota-uz/statreg/modules/dataupload/domain/entities/uploadlog"
	"github.com/iota-uz/statreg/modules/dataupload/infrastructure/persistence/models"
	"github.com/iota-uz/statreg/modules/statunit/domain/aggregates/statunit"
	"github.com/iota-uz/statreg/modules/statunit/domain/entities/datasource"
	"github.com/iota-uz/statreg/pkg/fileparser"
)

func toDomainImportJob(j *models.ImportJob, ds *models.DataSource) (*queuejob.ImportJob, error) {
	cfg, err := toDomainDataSource(ds)
	if err != nil {
		return nil, err
	}
	return &queuejob.ImportJob{
		ID:             j.ID,
		FileName:       j.FileName,
		FilePath:       j.FilePath,
		Description:    j.Description,
		UserID:         j.UserID,
		IsAdmin:        j.IsAdmin,
		DataSource:     cfg,
		Status:         queuejob.Status(j.Status),
		Note:           j.Note,
		SkipLinesCount: j.SkipLinesCount,
		CreatedAt:      j.CreatedAt,
		StartedAt:      j.StartedAt,
		EndedAt:        j.EndedAt,
	}, nil
}

func toDomainDataSource(m *models.DataSource) (queuejob.DataSourceConfig, error) {
	var mapping []fileparser.MappingRule
	if len(m.Mapping) > 0 {
		if err := json.Unmarshal(m.Mapping, &mapping); err != nil {
			return queuejob.DataSourceConfig{}, errors.Wrap(err, "failed to decode data source mapping")
		}
	}
	return queuejob.DataSourceConfig{
		ID:                m.ID,
		Name:              m.Name,
		Mapping:           mapping,
		CSVDelimiter:      m.CSVDelimiter,
		CSVSkipCount:      m.CSVSkipCount,
		AllowedOperations: datasource.AllowedOperation(m.AllowedOperations),
		StatUnitType:      statunit.Kind(m.StatUnitType),
		UploadType:        datasource.UploadType(m.UploadType),
		Priority:          datasource.Priority(m.Priority),
	}, nil
}

func toDBDataSource(c *queuejob.DataSourceConfig) (*models.DataSource, error) {
	mapping, err := json.Marshal(c.Mapping)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode data source mapping")
	}
	return &models.DataSource{
		ID:                c.ID,
		Name:              c.Name,
		Mapping:           mapping,
		CSVDelimiter:      c.CSVDelimiter,
		CSVSkipCount:      c.CSVSkipCount,
		AllowedOperations: int(c.AllowedOperations),
		StatUnitType:      string(c.StatUnitType),
		UploadType:        int(c.UploadType),
		Priority:          int(c.Priority),
	}, nil
}

func toDBUploadLog(e *uploadlog.Entry) (*models.UploadLog, error) {
	errs, err := json.Marshal(e.Errors)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode upload log errors")
	}
	summary, err := json.Marshal(e.Summary)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode upload log summary")
	}
	return &models.UploadLog{
		ID:                e.ID,
		JobID:             e.JobID,
		StartedAt:         e.StartedAt,
		EndedAt:           e.EndedAt,
		TargetStatID:      e.TargetStatID,
		StatUnitName:      e.StatUnitName,
		SerializedRawUnit: e.SerializedRawUnit,
		SerializedUnit:    e.SerializedUnit,
		Status:            int(e.Status),
		Note:              e.Note,
		Errors:            errs,
		Summary:           summary,
	}, nil
}

func toDomainUploadLog(m *models.UploadLog) (uploadlog.Entry, error) {
	e := uploadlog.Entry{
		ID:                m.ID,
		JobID:             m.JobID,
		StartedAt:         m.StartedAt,
		EndedAt:           m.EndedAt,
		TargetStatID:      m.TargetStatID,
		StatUnitName:      m.StatUnitName,
		SerializedRawUnit: m.SerializedRawUnit,
		SerializedUnit:    m.SerializedUnit,
		Status:            uploadlog.Status(m.Status),
		Note:              m.Note,
	}
	if len(m.Errors) > 0 {
		if err := json.Unmarshal(m.Errors, &e.Errors); err != nil {
			return e, errors.Wrap(err, "failed to decode upload log errors")
		}
	}
	if len(m.Summary) > 0 {
		if err := json.Unmarshal(m.Summary, &e.Summary); err != nil {
			return e, errors.Wrap(err, "failed to decode upload log summary")
		}
	}
	return e, nil
}
