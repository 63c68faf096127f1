package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iota-uz/statreg/modules/dataupload/domain/entities/queuejob"
	"github.com/iota-uz/statreg/modules/dataupload/domain/entities/uploadlog"
	"github.com/iota-uz/statreg/modules/dataupload/services/analysis"
	"github.com/iota-uz/statreg/modules/dataupload/services/populate"
	"github.com/iota-uz/statreg/modules/statunit/domain/aggregates/statunit"
	"github.com/iota-uz/statreg/modules/statunit/domain/entities/datasource"
	unitservices "github.com/iota-uz/statreg/modules/statunit/services"
	"github.com/iota-uz/statreg/pkg/fileparser"
)

type finished struct {
	status queuejob.Status
	note   string
}

type fakeJobs struct {
	mu        sync.Mutex
	queue     []*queuejob.ImportJob
	finished  map[int64]finished
	skips     map[int64]int
	reclaimed int64
	claimErr  error
	skipErr   error
}

func newFakeJobs(jobs ...*queuejob.ImportJob) *fakeJobs {
	return &fakeJobs{queue: jobs, finished: map[int64]finished{}, skips: map[int64]int{}}
}

func (f *fakeJobs) Claim(context.Context) (*queuejob.ImportJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	if len(f.queue) == 0 {
		return nil, queuejob.ErrNoJob
	}
	job := f.queue[0]
	f.queue = f.queue[1:]
	job.Status = queuejob.StatusDequeued
	return job, nil
}

func (f *fakeJobs) Reclaim(context.Context, time.Duration) (int64, error) {
	return f.reclaimed, nil
}

func (f *fakeJobs) Finish(_ context.Context, id int64, status queuejob.Status, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished[id] = finished{status: status, note: note}
	return nil
}

func (f *fakeJobs) IncrementSkip(_ context.Context, id int64) error {
	if f.skipErr != nil {
		return f.skipErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.skips[id]++
	return nil
}

func (f *fakeJobs) Enqueue(_ context.Context, job *queuejob.ImportJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, job)
	return nil
}

func (f *fakeJobs) SaveDataSource(context.Context, *queuejob.DataSourceConfig) error { return nil }

func (f *fakeJobs) GetByID(context.Context, int64) (*queuejob.ImportJob, error) {
	return nil, errors.New("not implemented")
}

type fakeLogs struct {
	entries []uploadlog.Entry
	batches int
	err     error
}

func (f *fakeLogs) InsertBatch(_ context.Context, entries []uploadlog.Entry) error {
	if f.err != nil {
		return f.err
	}
	f.batches++
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *fakeLogs) ListByJob(_ context.Context, jobID int64) ([]uploadlog.Entry, error) {
	var out []uploadlog.Entry
	for _, e := range f.entries {
		if e.JobID == jobID {
			out = append(out, e)
		}
	}
	return out, nil
}

// fakePopulator builds a legal unit from the record's StatId and Name, and
// fails records whose StatId is listed in failing.
type fakePopulator struct {
	failing map[string]error
}

func (f fakePopulator) Populate(_ context.Context, rec fileparser.LogicalRecord, _ *queuejob.ImportJob, _ bool, _ time.Time) (populate.Result, error) {
	statID := rec.Scalars[queuejob.StatIDTarget]
	if err, ok := f.failing[statID]; ok {
		return populate.Result{}, err
	}
	u := &statunit.LegalUnit{}
	u.StatID, u.Name = statID, rec.Scalars["Name"]
	return populate.Result{Unit: u, IsNew: true}, nil
}

type fakeAnalyzer struct {
	flagged map[string]analysis.Result
	err     error
	calls   []bool
}

func (f *fakeAnalyzer) Analyze(_ context.Context, u statunit.Unit, onlyIdentifiers bool) (analysis.Result, error) {
	f.calls = append(f.calls, onlyIdentifiers)
	if f.err != nil {
		return analysis.Result{}, f.err
	}
	return f.flagged[u.Base().StatID], nil
}

type fakeSaver struct {
	unchanged map[string]bool
	failing   map[string]error
	requests  []unitservices.SaveRequest
}

func (f *fakeSaver) SaveUnit(_ context.Context, req unitservices.SaveRequest, _ *unitservices.WriteBuffer) (bool, error) {
	f.requests = append(f.requests, req)
	statID := req.Unit.Base().StatID
	if err, ok := f.failing[statID]; ok {
		return false, err
	}
	return !f.unchanged[statID], nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type denyAll struct{}

func (denyAll) CanWrite(context.Context, string, bool, string) (bool, error) { return false, nil }

func testJob(id int64, path string) *queuejob.ImportJob {
	return &queuejob.ImportJob{
		ID:       id,
		FileName: "upload.csv",
		FilePath: path,
		UserID:   "u-1",
		DataSource: queuejob.DataSourceConfig{
			ID:   3,
			Name: "tax office",
			Mapping: []fileparser.MappingRule{
				{Source: "id", Target: "StatId"},
				{Source: "name", Target: "Name"},
			},
			CSVDelimiter:      ",",
			AllowedOperations: datasource.OperationCreateAndAlter,
			StatUnitType:      statunit.KindLegalUnit,
			UploadType:        datasource.UploadStatUnits,
			Priority:          datasource.PriorityTrusted,
		},
		Status: queuejob.StatusEnqueued,
	}
}

func logicalRecord(statID, name string, row int) fileparser.LogicalRecord {
	return fileparser.LogicalRecord{
		Scalars: map[string]string{"StatId": statID, "Name": name},
		Rows:    []int{row},
	}
}

func (f *fakeJobs) result(id int64) (finished, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.finished[id]
	return r, ok
}
