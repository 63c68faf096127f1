package analysis

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

type ConnectionRules struct {
	CheckRelatedLegalUnit  bool `toml:"check_related_legal_unit"`
	CheckRelatedActivities bool `toml:"check_related_activities"`
	CheckRelatedPersons    bool `toml:"check_related_persons"`
	CheckAddress           bool `toml:"check_address"`
}

type MandatoryRules struct {
	DataSource         bool `toml:"data_source"`
	Name               bool `toml:"name"`
	ShortName          bool `toml:"short_name"`
	TelephoneNo        bool `toml:"telephone_no"`
	RegistrationReason bool `toml:"registration_reason"`
	ContactPerson      bool `toml:"contact_person"`
	Status             bool `toml:"status"`
	LegalUnitOwner     bool `toml:"legal_unit_owner"`
}

type CalculationRules struct {
	StatID bool `toml:"stat_id"`
}

type DuplicateRules struct {
	CheckName                   bool `toml:"check_name"`
	CheckStatIDTaxRegID         bool `toml:"check_stat_id_tax_reg_id"`
	CheckExternalID             bool `toml:"check_external_id"`
	CheckShortName              bool `toml:"check_short_name"`
	CheckTelephoneNo            bool `toml:"check_telephone_no"`
	CheckAddress                bool `toml:"check_address"`
	CheckEmailAddress           bool `toml:"check_email_address"`
	CheckContactPerson          bool `toml:"check_contact_person"`
	CheckOwnerPerson            bool `toml:"check_owner_person"`
	MinimalIdenticalFieldsCount int  `toml:"minimal_identical_fields_count"`
}

// Enabled reports whether any duplicate comparison is switched on.
func (d DuplicateRules) Enabled() bool {
	return d.CheckName || d.CheckStatIDTaxRegID || d.CheckExternalID || d.CheckShortName ||
		d.CheckTelephoneNo || d.CheckAddress || d.CheckEmailAddress || d.CheckContactPerson || d.CheckOwnerPerson
}

type OrphanRules struct {
	CheckOrphanLegalUnits                  bool `toml:"check_orphan_legal_units"`
	CheckOrphanLocalUnits                  bool `toml:"check_orphan_local_units"`
	CheckLegalUnitRelatedLocalUnits        bool `toml:"check_legal_unit_related_local_units"`
	CheckEnterpriseRelatedLegalUnits       bool `toml:"check_enterprise_related_legal_units"`
	CheckEnterpriseGroupRelatedEnterprises bool `toml:"check_enterprise_group_related_enterprises"`
}

func (o OrphanRules) Enabled() bool {
	return o.CheckOrphanLegalUnits || o.CheckOrphanLocalUnits || o.CheckLegalUnitRelatedLocalUnits ||
		o.CheckEnterpriseRelatedLegalUnits || o.CheckEnterpriseGroupRelatedEnterprises
}

// Rules toggles every analysis check. Each group can be switched off on its own.
type Rules struct {
	Connections ConnectionRules  `toml:"connections"`
	Mandatory   MandatoryRules   `toml:"mandatory"`
	Calculation CalculationRules `toml:"calculation"`
	Duplicates  DuplicateRules   `toml:"duplicates"`
	Orphan      OrphanRules      `toml:"orphan"`
}

// DefaultRules checks the name and data source, and flags units sharing at
// least two comparable fields with an existing unit.
func DefaultRules() Rules {
	return Rules{
		Mandatory: MandatoryRules{
			DataSource: true,
			Name:       true,
		},
		Duplicates: DuplicateRules{
			CheckName:                   true,
			CheckStatIDTaxRegID:         true,
			CheckExternalID:             true,
			CheckShortName:              true,
			CheckTelephoneNo:            true,
			CheckAddress:                true,
			CheckEmailAddress:           true,
			CheckContactPerson:          true,
			CheckOwnerPerson:            true,
			MinimalIdenticalFieldsCount: 2,
		},
	}
}

// LoadRules decodes a TOML rules file over DefaultRules. An empty path returns
// the defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if strings.TrimSpace(path) == "" {
		return rules, nil
	}
	if _, err := toml.DecodeFile(path, &rules); err != nil {
		return Rules{}, fmt.Errorf("decode analysis rules %s: %w", path, err)
	}
	if err := rules.Validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

func (r Rules) Validate() error {
	if r.Duplicates.MinimalIdenticalFieldsCount < 1 {
		return fmt.Errorf("minimal_identical_fields_count must be at least 1, got %d", r.Duplicates.MinimalIdenticalFieldsCount)
	}
	return nil
}
