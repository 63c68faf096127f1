package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/iota-uz/statreg/modules/dataupload/domain/entities/queuejob"
	"github.com/iota-uz/statreg/modules/dataupload/domain/entities/uploadlog"
	unitservices "github.com/iota-uz/statreg/modules/statunit/services"
	"github.com/iota-uz/statreg/pkg/authz"
	"github.com/iota-uz/statreg/pkg/fileparser"
	"github.com/iota-uz/statreg/pkg/logging"
)

const noUploadRightsNote = "You have no rights to upload this unit type"

// Pinger is the connectivity check of the search index.
type Pinger interface {
	Ping(ctx context.Context) error
}

type QueueWorkerOptions struct {
	PollInterval    time.Duration
	ReclaimInterval time.Duration
	DequeueTimeout  time.Duration
	LogBufferMax    int
	UploadsRoot     string

	// IndexRequired fails a job up front when Index does not answer.
	IndexRequired bool
	Index         Pinger

	Permissions unitservices.Permissions
	// NewWriteBuffer builds the search index buffer of one job. Nil disables re-indexing.
	NewWriteBuffer func() *unitservices.WriteBuffer
	Logger         *logrus.Entry
}

func (o *QueueWorkerOptions) setDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
	if o.ReclaimInterval <= 0 {
		o.ReclaimInterval = time.Minute
	}
	if o.DequeueTimeout <= 0 {
		o.DequeueTimeout = time.Hour
	}
	if o.LogBufferMax < 1 {
		o.LogBufferMax = 100
	}
	if o.Permissions == nil {
		o.Permissions = authz.AllowAll{}
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
}

// QueueWorker claims import jobs one at a time and runs them to a final status.
// Several workers may share a queue; a claim is exclusive.
type QueueWorker struct {
	jobs      queuejob.Repository
	logs      uploadlog.Repository
	populator Populator
	analyzer  Analyzer
	saver     UnitSaver
	opts      QueueWorkerOptions

	wake chan struct{}
	now  func() time.Time
	m    *metrics
}

func NewQueueWorker(
	jobs queuejob.Repository,
	logs uploadlog.Repository,
	populator Populator,
	analyzer Analyzer,
	saver UnitSaver,
	opts QueueWorkerOptions,
) *QueueWorker {
	opts.setDefaults()
	opts.Logger = opts.Logger.WithField("component", "queue_worker")
	return &QueueWorker{
		jobs:      jobs,
		logs:      logs,
		populator: populator,
		analyzer:  analyzer,
		saver:     saver,
		opts:      opts,
		wake:      make(chan struct{}, 1),
		now:       time.Now,
		m:         getMetrics(),
	}
}

// Wake asks Run to look at the queue now instead of at the next tick.
func (w *QueueWorker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run executes jobs until ctx is done, draining the queue on every tick and wake-up.
func (w *QueueWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		w.drain(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-w.wake:
		}
	}
}

func (w *QueueWorker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		processed, err := w.execute(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				w.opts.Logger.WithError(err).Warn("import job execution failed")
			}
			return
		}
		if !processed {
			return
		}
	}
}

// RunReclaimer returns timed out jobs to the queue on its own interval.
func (w *QueueWorker) RunReclaimer(ctx context.Context) error {
	ticker := time.NewTicker(w.opts.ReclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if _, err := w.ReclaimTimedOutJobs(ctx, w.opts.DequeueTimeout); err != nil && !errors.Is(err, context.Canceled) {
			w.opts.Logger.WithError(err).Warn("reclaim of timed out import jobs failed")
		}
	}
}

// ReclaimTimedOutJobs puts jobs dequeued longer than timeout ago back in the queue.
func (w *QueueWorker) ReclaimTimedOutJobs(ctx context.Context, timeout time.Duration) (int64, error) {
	n, err := w.jobs.Reclaim(ctx, timeout)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		w.m.reclaimedTotal.Add(float64(n))
		w.opts.Logger.WithFields(logrus.Fields{"count": n, "timeout": timeout.String()}).Info("reclaimed timed out import jobs")
	}
	return n, nil
}

// Execute claims at most one job and runs it. It returns nil when the queue is
// empty. Problems with the job itself end up in its status and note.
func (w *QueueWorker) Execute(ctx context.Context) error {
	_, err := w.execute(ctx)
	return err
}

func (w *QueueWorker) execute(ctx context.Context) (bool, error) {
	job, err := w.jobs.Claim(ctx)
	if errors.Is(err, queuejob.ErrNoJob) {
		return false, nil
	}
	if err != nil {
		w.opts.Logger.WithError(err).Error("failed to claim import job")
		return false, err
	}
	return true, w.run(ctx, job)
}

func (w *QueueWorker) run(ctx context.Context, job *queuejob.ImportJob) error {
	ctx, span := tracer.Start(ctx, "dataupload.execute_job")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("dataupload.job_id", job.ID),
		attribute.String("dataupload.file", job.FileName),
	)

	started := w.now()
	logger := w.opts.Logger.WithFields(logrus.Fields{
		"job_id":         job.ID,
		"data_source_id": job.DataSource.ID,
		"file":           job.FileName,
	})
	logger.Info("import job claimed")

	fail := func(note string) error {
		span.SetStatus(codes.Error, note)
		return w.finish(ctx, job, queuejob.StatusFailed, note, started, logger)
	}

	if err := job.DataSource.Validate(); err != nil {
		return fail(err.Error())
	}
	if w.opts.IndexRequired && w.opts.Index != nil {
		if err := w.opts.Index.Ping(ctx); err != nil {
			return fail(fmt.Sprintf("%v: %v", queuejob.ErrDependencyUnavailable, err))
		}
	}

	allowed, err := w.opts.Permissions.CanWrite(ctx, job.UserID, job.IsAdmin, authz.UnitObject(string(job.DataSource.StatUnitType)))
	if err != nil {
		return fail(err.Error())
	}
	if !allowed {
		return fail(noUploadRightsNote)
	}

	records, err := fileparser.ParseFile(w.resolvePath(job.FilePath), fileparser.Options{
		Mapping:   job.DataSource.Mapping,
		Delimiter: job.DataSource.CSVDelimiter,
		SkipLines: job.DataSource.CSVSkipCount,
	})
	if err == nil {
		err = fileparser.CheckRecords(records)
	}
	if err != nil {
		if pe, ok := fileparser.AsParseError(err); ok && pe.Line != "" {
			logger.WithField("line", pe.Line).Error("possible problem line")
		}
		return fail(err.Error())
	}
	logger.WithField("records", len(records)).Info("file parsed")

	if skip := job.SkipLinesCount; skip > 0 {
		if skip > len(records) {
			skip = len(records)
		}
		records = records[skip:]
		logger.WithField("skipped", skip).Info("skipping records logged by an earlier attempt")
	}

	logBuf := NewUploadLogBuffer(w.logs, w.jobs, w.opts.LogBufferMax)
	var writeBuf *unitservices.WriteBuffer
	if w.opts.NewWriteBuffer != nil {
		writeBuf = w.opts.NewWriteBuffer()
	}
	exec := NewImportExecutor(w.populator, w.analyzer, w.saver, logBuf, writeBuf, logger)

	anyWarnings, note := false, ""
	procErr := exec.Process(ctx, job, records)

	// Whatever was processed is logged, even when the job is interrupted.
	flushCtx := context.WithoutCancel(ctx)
	if err := logBuf.Flush(flushCtx); err != nil {
		logger.WithError(err).Error("failed to flush upload log")
		anyWarnings, note = true, err.Error()
		logBuf.Discard()
	}
	if writeBuf != nil {
		if err := writeBuf.Flush(flushCtx); err != nil {
			logger.WithError(err).Error("failed to queue search index refresh")
			anyWarnings, note = true, err.Error()
		}
	}

	if procErr != nil {
		if ctx.Err() != nil {
			// Left Dequeued: the reclaimer hands the job to the next worker.
			logger.WithError(procErr).Warn("import job interrupted")
			return procErr
		}
		logger.WithError(procErr).Error("import job aborted")
		anyWarnings, note = true, procErr.Error()
	}

	status := queuejob.StatusCompleted
	if anyWarnings || exec.AnyWarnings() {
		status = queuejob.StatusCompletedPartially
	}
	return w.finish(ctx, job, status, note, started, logger)
}

func (w *QueueWorker) resolvePath(path string) string {
	if filepath.IsAbs(path) || w.opts.UploadsRoot == "" {
		return path
	}
	return filepath.Join(w.opts.UploadsRoot, path)
}

func (w *QueueWorker) finish(ctx context.Context, job *queuejob.ImportJob, status queuejob.Status, note string, started time.Time, logger *logrus.Entry) error {
	if err := w.jobs.Finish(context.WithoutCancel(ctx), job.ID, status, note); err != nil {
		logger.WithError(err).Error("failed to finish import job")
		return err
	}
	job.Status, job.Note = status, note
	w.m.jobsTotal.WithLabelValues(status.String()).Inc()
	w.m.jobDuration.Observe(w.now().Sub(started).Seconds())

	entry := logger.WithField("status", status.String())
	if note != "" {
		entry = entry.WithField("note", note)
	}
	entry.Info("import job finished")
	return nil
}
