package services

import (
	"errors"
)

var (
	ErrUnitHasLiquidated       = errors.New("unit has been liquidated and its status cannot change")
	ErrLiquidateEnterprise     = errors.New("enterprise units cannot be liquidated directly")
	ErrLocalUnitsNotLiquidated = errors.New("local units of the legal unit are in a status incompatible with liquidation")
	ErrPreviousMissing         = errors.New("previous snapshot is required to edit a unit")
)

const SaveErrorCode = "SaveError"

// SaveError is what callers may show to users: the message never includes the
// cause. Operators reach the cause through errors.Is, errors.As or Cause.
type SaveError struct {
	Code  string
	Cause error
}

func (e *SaveError) Error() string { return "save failed" }

func (e *SaveError) Unwrap() error { return e.Cause }

func saveError(err error) error {
	return &SaveError{Code: SaveErrorCode, Cause: err}
}
