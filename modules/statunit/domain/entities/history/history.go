package history

import (
	"context"
	"encoding/json"
	"time"

	"github.com/iota-uz/statreg/modules/statunit/domain/aggregates/statunit"
)

// Record is the state of a unit before an edit plus the merge patch that
// turned it into the new state.
type Record struct {
	ID           int64
	RegID        int64
	Kind         statunit.Kind
	Snapshot     json.RawMessage
	Changes      json.RawMessage
	ChangeReason statunit.ChangeReason
	EditComment  string
	UserID       string
	StartPeriod  time.Time
	EndPeriod    time.Time
}

type Repository interface {
	Create(ctx context.Context, rec *Record) error
	ListByRegID(ctx context.Context, regID int64) ([]Record, error)
}
