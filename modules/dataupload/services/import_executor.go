package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/iota-uz/statreg/modules/dataupload/domain/entities/queuejob"
	"github.com/iota-uz/statreg/modules/dataupload/domain/entities/uploadlog"
	"github.com/iota-uz/statreg/modules/dataupload/services/analysis"
	"github.com/iota-uz/statreg/modules/dataupload/services/populate"
	"github.com/iota-uz/statreg/modules/statunit/domain/aggregates/statunit"
	"github.com/iota-uz/statreg/modules/statunit/domain/entities/datasource"
	unitservices "github.com/iota-uz/statreg/modules/statunit/services"
	"github.com/iota-uz/statreg/pkg/fileparser"
)

const (
	uploadEditComment = "Uploaded from data source file"
	notSavedNote      = "Unit was not saved (skipped or unchanged)"
)

type Populator interface {
	Populate(ctx context.Context, rec fileparser.LogicalRecord, job *queuejob.ImportJob, isAdmin bool, asOf time.Time) (populate.Result, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, u statunit.Unit, onlyIdentifiers bool) (analysis.Result, error)
}

type UnitSaver interface {
	SaveUnit(ctx context.Context, req unitservices.SaveRequest, buf *unitservices.WriteBuffer) (bool, error)
}

// ImportExecutor runs the records of one job through population, analysis
// and saving. A failing record is logged and skipped; it never stops the job.
// An executor belongs to a single job and is not safe for concurrent use.
type ImportExecutor struct {
	populator Populator
	analyzer  Analyzer
	saver     UnitSaver
	logBuf    *UploadLogBuffer
	writeBuf  *unitservices.WriteBuffer
	logger    *logrus.Entry
	now       func() time.Time
	m         *metrics

	anyWarnings bool
}

func NewImportExecutor(
	populator Populator,
	analyzer Analyzer,
	saver UnitSaver,
	logBuf *UploadLogBuffer,
	writeBuf *unitservices.WriteBuffer,
	logger *logrus.Entry,
) *ImportExecutor {
	return &ImportExecutor{
		populator: populator,
		analyzer:  analyzer,
		saver:     saver,
		logBuf:    logBuf,
		writeBuf:  writeBuf,
		logger:    logger,
		now:       time.Now,
		m:         getMetrics(),
	}
}

// AnyWarnings reports whether any record ended in something other than Done.
func (e *ImportExecutor) AnyWarnings() bool { return e.anyWarnings }

// Process handles records in order. It stops early only when ctx is done or
// the upload log cannot be written.
func (e *ImportExecutor) Process(ctx context.Context, job *queuejob.ImportJob, records []fileparser.LogicalRecord) error {
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.processRecord(ctx, job, rec, i); err != nil {
			return err
		}
	}
	return nil
}

func (e *ImportExecutor) processRecord(ctx context.Context, job *queuejob.ImportJob, rec fileparser.LogicalRecord, index int) error {
	ctx, span := tracer.Start(ctx, "dataupload.process_record")
	defer span.End()

	startedAt := e.now()
	raw := rec.Snapshot()
	statID, _ := raw[queuejob.StatIDTarget].(string)
	span.SetAttributes(attribute.Int("dataupload.record", index), attribute.String("statunit.stat_id", statID))

	logger := e.logger.WithFields(logrus.Fields{"row": firstRow(rec), "stat_id": statID})
	ds := job.DataSource

	var unit statunit.Unit
	record := func(status uploadlog.Status, note string, errs map[string][]string, summary []string) error {
		if status != uploadlog.StatusDone {
			e.anyWarnings = true
			span.SetStatus(codes.Error, note)
		}
		e.m.recordsTotal.WithLabelValues(status.String()).Inc()
		return e.logBuf.LogUnitUpload(ctx, job, raw, startedAt, unit, status, note, errs, summary)
	}

	res, err := e.populator.Populate(ctx, rec, job, job.IsAdmin, startedAt)
	if err != nil {
		logger.WithError(err).Info("record could not be populated")
		return record(uploadlog.StatusError, err.Error(), nil, []string{err.Error()})
	}
	unit = res.Unit

	base := unit.Base()
	base.DataSource = job.FileName
	base.ChangeReason = statunit.ChangeReasonEdit
	base.EditComment = uploadEditComment
	base.UserID = job.UserID

	if ds.UploadType == datasource.UploadStatUnits {
		result, err := e.analyzer.Analyze(ctx, unit, ds.AllowedOperations == datasource.OperationAlter)
		if err != nil {
			logger.WithError(err).Warn("analysis failed")
			return record(uploadlog.StatusError, err.Error(), nil, nil)
		}
		if result.HasMessages() {
			logger.WithField("fields", result.Messages.Keys()).Info("analysis revealed problems")
			note := strings.Join(result.Messages.Texts(), ",")
			return record(uploadlog.StatusWarning, note, result.Messages, result.Summary)
		}
	}

	saved, err := e.saver.SaveUnit(ctx, unitservices.SaveRequest{
		Unit:      unit,
		Previous:  res.Previous,
		IsNew:     res.IsNew,
		Priority:  ds.Priority,
		Operation: ds.AllowedOperations,
		UserID:    job.UserID,
		IsAdmin:   job.IsAdmin,
	}, e.writeBuf)
	if err != nil {
		var saveErr *unitservices.SaveError
		if errors.As(err, &saveErr) {
			logger.WithError(saveErr.Cause).Warn("unit was not saved")
		} else {
			logger.WithError(err).Warn("unit was not saved")
		}
		return record(uploadlog.StatusWarning, err.Error(), nil, nil)
	}
	if !saved {
		return record(uploadlog.StatusWarning, notSavedNote, nil, nil)
	}
	return record(uploadlog.StatusDone, "", nil, nil)
}

func firstRow(rec fileparser.LogicalRecord) int {
	if len(rec.Rows) == 0 {
		return 0
	}
	return rec.Rows[0]
}
