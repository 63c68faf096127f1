package lookup

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("lookup item not found")

// Catalog names a reference table.
type Catalog string

const (
	ActivityCategories        Catalog = "activity_categories"
	LegalForms                Catalog = "legal_forms"
	SectorCodes               Catalog = "sector_codes"
	DataSourceClassifications Catalog = "data_source_classifications"
	UnitSizes                 Catalog = "unit_sizes"
	UnitStatuses              Catalog = "unit_statuses"
	ReorgTypes                Catalog = "reorg_types"
	RegistrationReasons       Catalog = "registration_reasons"
	ForeignParticipations     Catalog = "foreign_participations"
	Countries                 Catalog = "countries"
	Regions                   Catalog = "regions"
	PersonTypes               Catalog = "person_types"
)

var Catalogs = []Catalog{
	ActivityCategories, LegalForms, SectorCodes, DataSourceClassifications, UnitSizes, UnitStatuses,
	ReorgTypes, RegistrationReasons, ForeignParticipations, Countries, Regions, PersonTypes,
}

func (c Catalog) Valid() bool {
	for _, k := range Catalogs {
		if k == c {
			return true
		}
	}
	return false
}

type Item struct {
	ID   int64  `json:"id" validate:"required"`
	Code string `json:"code"`
	Name string `json:"name" validate:"required"`
}

type Repository interface {
	FindByCode(ctx context.Context, catalog Catalog, code string) (Item, error)
	FindByName(ctx context.Context, catalog Catalog, name string) (Item, error)
	List(ctx context.Context, catalog Catalog) ([]Item, error)
}
