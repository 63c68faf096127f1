package uploadlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type Status int

const (
	StatusDone Status = iota + 1
	StatusWarning
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "Done"
	case StatusWarning:
		return "Warning"
	case StatusError:
		return "Error"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Entry is the audit record of one processed logical record. Entries are never
// changed after they are built.
type Entry struct {
	ID                int64
	JobID             int64
	StartedAt         time.Time
	EndedAt           time.Time
	TargetStatID      string
	StatUnitName      string
	SerializedRawUnit json.RawMessage
	SerializedUnit    json.RawMessage
	Status            Status
	Note              string
	Errors            map[string][]string
	Summary           []string
}

type Repository interface {
	InsertBatch(ctx context.Context, entries []Entry) error
	ListByJob(ctx context.Context, jobID int64) ([]Entry, error)
}
