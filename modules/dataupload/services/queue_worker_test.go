package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/statreg/modules/dataupload/domain/entities/queuejob"
	"github.com/iota-uz/statreg/modules/dataupload/domain/entities/uploadlog"
	"github.com/iota-uz/statreg/modules/dataupload/services/analysis"
	"github.com/iota-uz/statreg/pkg/fileparser"
)

type workerFixture struct {
	jobs     *fakeJobs
	logs     *fakeLogs
	analyzer *fakeAnalyzer
	saver    *fakeSaver
	root     string
}

func newWorkerFixture(t *testing.T, content string) *workerFixture {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "upload.csv"), []byte(content), 0o600))
	return &workerFixture{
		jobs:     newFakeJobs(),
		logs:     &fakeLogs{},
		analyzer: &fakeAnalyzer{},
		saver:    &fakeSaver{},
		root:     root,
	}
}

func (f *workerFixture) worker(opts QueueWorkerOptions) *QueueWorker {
	opts.UploadsRoot = f.root
	return NewQueueWorker(f.jobs, f.logs, fakePopulator{}, f.analyzer, f.saver, opts)
}

const twoUnits = "id,name\n1,Acme\n2,Beta\n"

func TestQueueWorker_ExecuteEmptyQueue(t *testing.T) {
	f := newWorkerFixture(t, twoUnits)
	require.NoError(t, f.worker(QueueWorkerOptions{}).Execute(context.Background()))
	require.Empty(t, f.jobs.finished)
}

func TestQueueWorker_ExecuteCompleted(t *testing.T) {
	f := newWorkerFixture(t, twoUnits)
	f.jobs.queue = append(f.jobs.queue, testJob(1, "upload.csv"))

	require.NoError(t, f.worker(QueueWorkerOptions{}).Execute(context.Background()))

	res, ok := f.jobs.result(1)
	require.True(t, ok)
	require.Equal(t, queuejob.StatusCompleted, res.status)
	require.Empty(t, res.note)
	require.Len(t, f.logs.entries, 2)
	for _, e := range f.logs.entries {
		require.Equal(t, uploadlog.StatusDone, e.Status)
	}
	require.Len(t, f.saver.requests, 2)
}

func TestQueueWorker_ExecuteCompletedPartially(t *testing.T) {
	f := newWorkerFixture(t, twoUnits)
	f.analyzer.flagged = map[string]analysis.Result{
		"2": {Messages: analysis.Messages{"Name": {"Name field is duplicated"}}, Summary: []string{analysis.SummaryDuplicates}},
	}
	job := testJob(1, filepath.Join(f.root, "upload.csv"))
	f.jobs.queue = append(f.jobs.queue, job)

	require.NoError(t, f.worker(QueueWorkerOptions{}).Execute(context.Background()))

	res, _ := f.jobs.result(1)
	require.Equal(t, queuejob.StatusCompletedPartially, res.status)
	require.Equal(t, 1, f.jobs.skips[1])
	require.Len(t, f.saver.requests, 1)
}

func TestQueueWorker_ExecuteSkipsLoggedRecords(t *testing.T) {
	f := newWorkerFixture(t, twoUnits)
	job := testJob(1, "upload.csv")
	job.SkipLinesCount = 1
	f.jobs.queue = append(f.jobs.queue, job)

	require.NoError(t, f.worker(QueueWorkerOptions{}).Execute(context.Background()))

	require.Len(t, f.logs.entries, 1)
	require.Equal(t, "2", f.logs.entries[0].TargetStatID)
}

func TestQueueWorker_ExecuteFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(job *queuejob.ImportJob)
		opts   QueueWorkerOptions
		note   string
	}{
		{
			name:   "invalid data source",
			mutate: func(job *queuejob.ImportJob) { job.DataSource.Mapping = job.DataSource.Mapping[1:] },
			note:   "StatId mapping is required",
		},
		{
			name: "index unavailable",
			opts: QueueWorkerOptions{IndexRequired: true, Index: fakePinger{err: errors.New("connection refused")}},
			note: "dependency unavailable: connection refused",
		},
		{
			name: "no upload rights",
			opts: QueueWorkerOptions{Permissions: denyAll{}},
			note: noUploadRightsNote,
		},
		{
			name:   "missing file",
			mutate: func(job *queuejob.ImportJob) { job.FilePath = "absent.csv" },
			note:   fileparser.CodeUploadedFileProblem,
		},
		{
			name:   "missing mapped column",
			mutate: func(job *queuejob.ImportJob) { job.DataSource.Mapping[1].Source = "title" },
			note:   fileparser.CodeMappingColumnMissing,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newWorkerFixture(t, twoUnits)
			job := testJob(1, "upload.csv")
			if tc.mutate != nil {
				tc.mutate(job)
			}
			f.jobs.queue = append(f.jobs.queue, job)

			require.NoError(t, f.worker(tc.opts).Execute(context.Background()))

			res, ok := f.jobs.result(1)
			require.True(t, ok)
			require.Equal(t, queuejob.StatusFailed, res.status)
			require.Contains(t, res.note, tc.note)
			require.Empty(t, f.logs.entries)
			require.Empty(t, f.saver.requests)
		})
	}
}

func TestQueueWorker_ExecuteIndexReachable(t *testing.T) {
	f := newWorkerFixture(t, twoUnits)
	f.jobs.queue = append(f.jobs.queue, testJob(1, "upload.csv"))

	w := f.worker(QueueWorkerOptions{IndexRequired: true, Index: fakePinger{}})
	require.NoError(t, w.Execute(context.Background()))

	res, _ := f.jobs.result(1)
	require.Equal(t, queuejob.StatusCompleted, res.status)
}

func TestQueueWorker_LogFlushFailureIsPartial(t *testing.T) {
	f := newWorkerFixture(t, twoUnits)
	f.logs.err = errors.New("disk full")
	f.jobs.queue = append(f.jobs.queue, testJob(1, "upload.csv"))

	require.NoError(t, f.worker(QueueWorkerOptions{}).Execute(context.Background()))

	res, _ := f.jobs.result(1)
	require.Equal(t, queuejob.StatusCompletedPartially, res.status)
	require.Contains(t, res.note, "disk full")
}

func TestQueueWorker_ClaimError(t *testing.T) {
	f := newWorkerFixture(t, twoUnits)
	f.jobs.claimErr = errors.New("db down")
	require.ErrorContains(t, f.worker(QueueWorkerOptions{}).Execute(context.Background()), "db down")
}

func TestQueueWorker_ReclaimTimedOutJobs(t *testing.T) {
	f := newWorkerFixture(t, twoUnits)
	f.jobs.reclaimed = 2

	n, err := f.worker(QueueWorkerOptions{}).ReclaimTimedOutJobs(context.Background(), time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}

func TestQueueWorker_RunDrainsOnWake(t *testing.T) {
	f := newWorkerFixture(t, twoUnits)
	w := f.worker(QueueWorkerOptions{PollInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, f.jobs.Enqueue(ctx, testJob(1, "upload.csv")))
	require.NoError(t, f.jobs.Enqueue(ctx, testJob(2, "upload.csv")))
	w.Wake()

	require.Eventually(t, func() bool {
		_, ok1 := f.jobs.result(1)
		_, ok2 := f.jobs.result(2)
		return ok1 && ok2
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
