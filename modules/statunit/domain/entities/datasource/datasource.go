package datasource

import (
	"fmt"
	"strconv"
	"strings"
)

// Priority is how far a data source is trusted to write to the register.
type Priority int

const (
	PriorityNotTrusted Priority = iota + 1
	PriorityOk
	PriorityTrusted
)

// Permits reports whether a source of this priority may save a unit.
// Trusted sources save anything, Ok sources only update existing units.
func (p Priority) Permits(isNew bool) bool {
	switch p {
	case PriorityTrusted:
		return true
	case PriorityOk:
		return !isNew
	default:
		return false
	}
}

func (p Priority) String() string {
	switch p {
	case PriorityNotTrusted:
		return "NotTrusted"
	case PriorityOk:
		return "Ok"
	case PriorityTrusted:
		return "Trusted"
	}
	return strconv.Itoa(int(p))
}

type AllowedOperation int

const (
	OperationCreate AllowedOperation = iota + 1
	OperationAlter
	OperationCreateAndAlter
)

func (o AllowedOperation) AllowsCreate() bool {
	return o == OperationCreate || o == OperationCreateAndAlter
}

func (o AllowedOperation) AllowsAlter() bool {
	return o == OperationAlter || o == OperationCreateAndAlter
}

func (o AllowedOperation) String() string {
	switch o {
	case OperationCreate:
		return "Create"
	case OperationAlter:
		return "Alter"
	case OperationCreateAndAlter:
		return "CreateAndAlter"
	}
	return strconv.Itoa(int(o))
}

type UploadType int

const (
	UploadStatUnits UploadType = iota + 1
	UploadActivities
)

func (u UploadType) String() string {
	switch u {
	case UploadStatUnits:
		return "StatUnits"
	case UploadActivities:
		return "Activities"
	}
	return strconv.Itoa(int(u))
}

func ParsePriority(s string) (Priority, error) {
	for _, p := range []Priority{PriorityNotTrusted, PriorityOk, PriorityTrusted} {
		if matches(s, p.String(), int(p)) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown data source priority %q", s)
}

func ParseAllowedOperation(s string) (AllowedOperation, error) {
	for _, o := range []AllowedOperation{OperationCreate, OperationAlter, OperationCreateAndAlter} {
		if matches(s, o.String(), int(o)) {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown allowed operation %q", s)
}

func ParseUploadType(s string) (UploadType, error) {
	for _, u := range []UploadType{UploadStatUnits, UploadActivities} {
		if matches(s, u.String(), int(u)) {
			return u, nil
		}
	}
	return 0, fmt.Errorf("unknown upload type %q", s)
}

func matches(s, name string, value int) bool {
	s = strings.TrimSpace(s)
	return strings.EqualFold(s, name) || s == strconv.Itoa(value)
}
