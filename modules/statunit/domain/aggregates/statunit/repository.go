package statunit

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("stat unit not found")

// DuplicateFilter selects existing units sharing at least one comparable
// field value with the unit under analysis.
type DuplicateFilter struct {
	Kind         Kind
	ExcludeRegID int64
	Name         string
	StatID       string
	TaxRegID     string
	ExternalID   string
	ShortName    string
	TelephoneNo  string
	EmailAddress string
	AddressKey   string
	Limit        int
}

func (f DuplicateFilter) IsEmpty() bool {
	return f.Name == "" && f.StatID == "" && f.TaxRegID == "" && f.ExternalID == "" &&
		f.ShortName == "" && f.TelephoneNo == "" && f.EmailAddress == "" && f.AddressKey == ""
}

type Repository interface {
	GetByRegID(ctx context.Context, kind Kind, regID int64) (Unit, error)
	GetByStatID(ctx context.Context, kind Kind, statID string) (Unit, error)
	ListByStatID(ctx context.Context, kind Kind, statID string) ([]Unit, error)
	ListChildren(ctx context.Context, kind Kind, parentRegID int64) ([]Unit, error)
	CountChildren(ctx context.Context, kind Kind, parentRegID int64) (int, error)
	AddressesInUse(ctx context.Context, addressKey string, excludeRegID int64) ([]Address, error)
	FindDuplicateCandidates(ctx context.Context, f DuplicateFilter) ([]Unit, error)
	Create(ctx context.Context, u Unit) error
	Update(ctx context.Context, u Unit) error
}
