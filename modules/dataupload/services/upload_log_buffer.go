package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iota-uz/statreg/modules/dataupload/domain/entities/queuejob"
	"github.com/iota-uz/statreg/modules/dataupload/domain/entities/uploadlog"
	"github.com/iota-uz/statreg/modules/statunit/domain/aggregates/statunit"
)

// UploadLogBuffer collects the upload log of one job and writes it in
// batches. Flushes are not part of the unit transactions: an entry buffered
// for a saved unit is lost if the process dies before the next flush.
type UploadLogBuffer struct {
	logs    uploadlog.Repository
	jobs    queuejob.Repository
	maxSize int
	now     func() time.Time
	entries []uploadlog.Entry
	m       *metrics
}

func NewUploadLogBuffer(logs uploadlog.Repository, jobs queuejob.Repository, maxSize int) *UploadLogBuffer {
	if maxSize < 1 {
		maxSize = 1
	}
	return &UploadLogBuffer{
		logs:    logs,
		jobs:    jobs,
		maxSize: maxSize,
		now:     time.Now,
		m:       getMetrics(),
	}
}

// LogUnitUpload buffers one entry. Entries with errors also bump the job's
// skip counter so a reclaimed job does not log the same records twice.
func (b *UploadLogBuffer) LogUnitUpload(
	ctx context.Context,
	job *queuejob.ImportJob,
	raw map[string]any,
	startedAt time.Time,
	unit statunit.Unit,
	status uploadlog.Status,
	note string,
	errs map[string][]string,
	summary []string,
) error {
	entry, err := b.entry(job, raw, startedAt, unit, status, note, errs, summary)
	if err != nil {
		return err
	}
	b.entries = append(b.entries, entry)

	if len(errs) > 0 {
		job.SkipLinesCount++
		if err := b.jobs.IncrementSkip(ctx, job.ID); err != nil {
			return fmt.Errorf("increment skip lines of job %d: %w", job.ID, err)
		}
	}
	if len(b.entries) >= b.maxSize {
		return b.Flush(ctx)
	}
	return nil
}

func (b *UploadLogBuffer) entry(
	job *queuejob.ImportJob,
	raw map[string]any,
	startedAt time.Time,
	unit statunit.Unit,
	status uploadlog.Status,
	note string,
	errs map[string][]string,
	summary []string,
) (uploadlog.Entry, error) {
	rawJSON, err := json.Marshal(raw)
	if err != nil {
		return uploadlog.Entry{}, fmt.Errorf("serialize raw record: %w", err)
	}
	e := uploadlog.Entry{
		JobID:             job.ID,
		StartedAt:         startedAt,
		EndedAt:           b.now(),
		SerializedRawUnit: rawJSON,
		Status:            status,
		Note:              note,
		Errors:            copyErrors(errs),
		Summary:           append([]string(nil), summary...),
	}
	if statID, ok := raw[queuejob.StatIDTarget].(string); ok {
		e.TargetStatID = statID
	}
	if unit != nil {
		doc, err := statunit.Marshal(unit)
		if err != nil {
			return uploadlog.Entry{}, fmt.Errorf("serialize unit: %w", err)
		}
		e.SerializedUnit = doc
		e.StatUnitName = unit.Base().Name
		if statID := unit.Base().StatID; statID != "" {
			e.TargetStatID = statID
		}
	}
	return e, nil
}

func copyErrors(errs map[string][]string) map[string][]string {
	if len(errs) == 0 {
		return nil
	}
	out := make(map[string][]string, len(errs))
	for k, v := range errs {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Flush writes the buffered entries as one batch. The buffer is kept on error.
func (b *UploadLogBuffer) Flush(ctx context.Context) error {
	if len(b.entries) == 0 {
		return nil
	}
	if err := b.logs.InsertBatch(ctx, b.entries); err != nil {
		b.m.logFlushTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("flush %d upload log entries: %w", len(b.entries), err)
	}
	b.m.logFlushTotal.WithLabelValues("success").Inc()
	b.entries = nil
	return nil
}

func (b *UploadLogBuffer) Discard() { b.entries = nil }

func (b *UploadLogBuffer) Len() int { return len(b.entries) }
