package statunit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Unit is one of LegalUnit, LocalUnit, EnterpriseUnit or EnterpriseGroup.
type Unit interface {
	Kind() Kind
	Base() *Common
	Clone() Unit
	NaturalKey() string
	ParentRegID() *int64
	SetParentRegID(id *int64)
}

// Common holds the fields shared by every unit variant.
type Common struct {
	RegID      int64      `json:"reg_id,omitempty"`
	StatID     string     `json:"stat_id,omitempty"`
	StatIDDate *time.Time `json:"stat_id_date,omitempty"`
	Name       string     `json:"name,omitempty"`
	ShortName  string     `json:"short_name,omitempty"`
	TaxRegID   string     `json:"tax_reg_id,omitempty"`
	TaxRegDate *time.Time `json:"tax_reg_date,omitempty"`

	ExternalID     string     `json:"external_id,omitempty"`
	ExternalIDType *int       `json:"external_id_type,omitempty"`
	ExternalIDDate *time.Time `json:"external_id_date,omitempty"`

	DataSource   string `json:"data_source,omitempty"`
	WebAddress   string `json:"web_address,omitempty"`
	TelephoneNo  string `json:"telephone_no,omitempty"`
	EmailAddress string `json:"email_address,omitempty"`

	Address       *Address `json:"address,omitempty"`
	ActualAddress *Address `json:"actual_address,omitempty"`
	PostalAddress *Address `json:"postal_address,omitempty"`

	NumOfPeopleEmp *int             `json:"num_of_people_emp,omitempty"`
	Employees      *int             `json:"employees,omitempty"`
	EmployeesYear  *int             `json:"employees_year,omitempty"`
	EmployeesDate  *time.Time       `json:"employees_date,omitempty"`
	Turnover       *decimal.Decimal `json:"turnover,omitempty"`
	TurnoverYear   *int             `json:"turnover_year,omitempty"`
	TurnoverDate   *time.Time       `json:"turnover_date,omitempty"`

	Notes            string     `json:"notes,omitempty"`
	Status           Status     `json:"status,omitempty"`
	StatusDate       *time.Time `json:"status_date,omitempty"`
	RegistrationDate time.Time  `json:"registration_date"`

	LiqDate         *time.Time `json:"liq_date,omitempty"`
	LiqReason       string     `json:"liq_reason,omitempty"`
	SuspensionStart *time.Time `json:"suspension_start,omitempty"`
	SuspensionEnd   *time.Time `json:"suspension_end,omitempty"`
	ReorgTypeCode   string     `json:"reorg_type_code,omitempty"`
	ReorgDate       *time.Time `json:"reorg_date,omitempty"`
	ReorgReferences *int       `json:"reorg_references,omitempty"`

	RegistrationReason       *CodeRef `json:"registration_reason,omitempty"`
	LegalForm                *CodeRef `json:"legal_form,omitempty"`
	InstSectorCode           *CodeRef `json:"inst_sector_code,omitempty"`
	DataSourceClassification *CodeRef `json:"data_source_classification,omitempty"`
	Size                     *CodeRef `json:"size,omitempty"`
	UnitStatus               *CodeRef `json:"unit_status,omitempty"`
	ReorgType                *CodeRef `json:"reorg_type,omitempty"`
	ForeignParticipation     *CodeRef `json:"foreign_participation,omitempty"`

	FreeEconZone bool `json:"free_econ_zone,omitempty"`
	Classified   bool `json:"classified,omitempty"`

	Activities                    []Activity   `json:"activities,omitempty"`
	Persons                       []PersonLink `json:"persons,omitempty"`
	ForeignParticipationCountries []CountryRef `json:"foreign_participation_countries,omitempty"`

	UserID       string       `json:"user_id,omitempty"`
	ChangeReason ChangeReason `json:"change_reason,omitempty"`
	EditComment  string       `json:"edit_comment,omitempty"`
	StartPeriod  time.Time    `json:"start_period"`
	EndPeriod    *time.Time   `json:"end_period,omitempty"`
}

func (c *Common) Base() *Common { return c }

// NaturalKey is the stat id, the key an import row is matched by.
func (c *Common) NaturalKey() string { return c.StatID }

// PersonsWithRole returns the linked persons holding role.
func (c *Common) PersonsWithRole(role PersonRole) []Person {
	var out []Person
	for _, p := range c.Persons {
		if p.Role == role {
			out = append(out, p.Person)
		}
	}
	return out
}

type LegalUnit struct {
	Common
	EnterpriseUnitRegID *int64           `json:"enterprise_unit_reg_id,omitempty"`
	EntRegIDDate        *time.Time       `json:"ent_reg_id_date,omitempty"`
	Market              *bool            `json:"market,omitempty"`
	TotalCapital        *decimal.Decimal `json:"total_capital,omitempty"`
	MunCapitalShare     string           `json:"mun_capital_share,omitempty"`
	StateCapitalShare   string           `json:"state_capital_share,omitempty"`
	PrivCapitalShare    string           `json:"priv_capital_share,omitempty"`
	ForeignCapitalShare string           `json:"foreign_capital_share,omitempty"`
	ForeignCapitalCurr  string           `json:"foreign_capital_currency,omitempty"`
	HistoryLocalUnitIDs string           `json:"history_local_unit_ids,omitempty"`
}

func (u *LegalUnit) Kind() Kind               { return KindLegalUnit }
func (u *LegalUnit) Clone() Unit              { return cloneOf(u) }
func (u *LegalUnit) ParentRegID() *int64      { return u.EnterpriseUnitRegID }
func (u *LegalUnit) SetParentRegID(id *int64) { u.EnterpriseUnitRegID = id }

type LocalUnit struct {
	Common
	LegalUnitRegID  *int64     `json:"legal_unit_reg_id,omitempty"`
	LegalUnitIDDate *time.Time `json:"legal_unit_id_date,omitempty"`
}

func (u *LocalUnit) Kind() Kind               { return KindLocalUnit }
func (u *LocalUnit) Clone() Unit              { return cloneOf(u) }
func (u *LocalUnit) ParentRegID() *int64      { return u.LegalUnitRegID }
func (u *LocalUnit) SetParentRegID(id *int64) { u.LegalUnitRegID = id }

type EnterpriseUnit struct {
	Common
	EntGroupID          *int64           `json:"ent_group_id,omitempty"`
	EntGroupIDDate      *time.Time       `json:"ent_group_id_date,omitempty"`
	EntGroupRole        string           `json:"ent_group_role,omitempty"`
	LegalUnitRegIDs     []int64          `json:"legal_unit_reg_ids,omitempty"`
	HistoryLegalUnitIDs string           `json:"history_legal_unit_ids,omitempty"`
	Commercial          bool             `json:"commercial,omitempty"`
	TotalCapital        *decimal.Decimal `json:"total_capital,omitempty"`
}

func (u *EnterpriseUnit) Kind() Kind               { return KindEnterpriseUnit }
func (u *EnterpriseUnit) Clone() Unit              { return cloneOf(u) }
func (u *EnterpriseUnit) ParentRegID() *int64      { return u.EntGroupID }
func (u *EnterpriseUnit) SetParentRegID(id *int64) { u.EntGroupID = id }

type EnterpriseGroup struct {
	Common
	EnterpriseUnitRegIDs     []int64 `json:"enterprise_unit_reg_ids,omitempty"`
	ContactPerson            string  `json:"contact_person,omitempty"`
	EntGroupTypeCode         string  `json:"ent_group_type_code,omitempty"`
	HistoryEnterpriseUnitIDs string  `json:"history_enterprise_unit_ids,omitempty"`
}

func (u *EnterpriseGroup) Kind() Kind            { return KindEnterpriseGroup }
func (u *EnterpriseGroup) Clone() Unit           { return cloneOf(u) }
func (u *EnterpriseGroup) ParentRegID() *int64   { return nil }
func (u *EnterpriseGroup) SetParentRegID(*int64) {}

// New returns an empty unit of the given kind.
func New(kind Kind) (Unit, error) {
	switch kind {
	case KindLegalUnit:
		return &LegalUnit{}, nil
	case KindLocalUnit:
		return &LocalUnit{}, nil
	case KindEnterpriseUnit:
		return &EnterpriseUnit{}, nil
	case KindEnterpriseGroup:
		return &EnterpriseGroup{}, nil
	}
	return nil, fmt.Errorf("unknown stat unit type %q", kind)
}

// Marshal encodes the stored document of a unit.
func Marshal(u Unit) ([]byte, error) {
	return json.Marshal(u)
}

// Unmarshal decodes a stored document into a unit of the given kind.
func Unmarshal(kind Kind, data []byte) (Unit, error) {
	u, err := New(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, u); err != nil {
		return nil, fmt.Errorf("decode %s document: %w", kind, err)
	}
	return u, nil
}

func cloneOf[T any](src *T) *T {
	data, err := json.Marshal(src)
	if err != nil {
		panic(fmt.Sprintf("statunit: clone: %v", err))
	}
	dst := new(T)
	if err := json.Unmarshal(data, dst); err != nil {
		panic(fmt.Sprintf("statunit: clone: %v", err))
	}
	return dst
}
