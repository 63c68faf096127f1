package populate

import (
	"errors"
	"fmt"

	"github.com/iota-uz/statreg/modules/statunit/domain/aggregates/statunit"
)

var (
	ErrStatIDMappingRequired = errors.New("StatId mapping is required")
	ErrStatIDAlreadyExists   = errors.New("StatisticalUnitWithSuchStatIDAlreadyExists")
	ErrStatIDNotFound        = errors.New("StatUnitIdIsNotFound")
	ErrUnknownProperty       = errors.New("unknown property")
)

// FieldError annotates a failure to apply one target path to a unit.
type FieldError struct {
	Path       string
	Value      string
	UnitStatID string
	Err        error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%v, property path: `%s`, value: `%s`, stat id: `%s`", e.Err, e.Path, e.Value, e.UnitStatID)
}

func (e *FieldError) Unwrap() error { return e.Err }

type unknownPropertyError struct {
	head string
	kind statunit.Kind
}

func (e unknownPropertyError) Error() string {
	return fmt.Sprintf("Property `%s` not found in type `%s`", e.head, e.kind)
}

func (e unknownPropertyError) Is(target error) bool { return target == ErrUnknownProperty }
