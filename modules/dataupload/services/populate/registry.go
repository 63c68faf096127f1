package populate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iota-uz/statreg/modules/statunit/domain/aggregates/statunit"
	"github.com/iota-uz/statreg/modules/statunit/domain/entities/lookup"
)

// Lookups resolves catalog references read from files.
type Lookups interface {
	Find(ctx context.Context, catalog lookup.Catalog, code, name string) (statunit.CodeRef, error)
	PersonRole(ctx context.Context, name string) (statunit.PersonRole, error)
}

// Setter writes value into u. tail is the target path below the head segment.
type Setter func(ctx context.Context, u statunit.Unit, tail, value string, lk Lookups) error

// Registry maps (unit kind, lower-cased head segment) to the setter of that property.
type Registry struct {
	setters map[statunit.Kind]map[string]Setter
}

func (r *Registry) Lookup(kind statunit.Kind, head string) (Setter, bool) {
	s, ok := r.setters[kind][strings.ToLower(head)]
	return s, ok
}

func (r *Registry) add(kinds []statunit.Kind, head string, s Setter) {
	for _, k := range kinds {
		if r.setters[k] == nil {
			r.setters[k] = map[string]Setter{}
		}
		r.setters[k][strings.ToLower(head)] = s
	}
}

func NewRegistry() *Registry {
	r := &Registry{setters: map[statunit.Kind]map[string]Setter{}}
	all := statunit.Kinds

	r.add(all, "StatId", text(common(func(c *statunit.Common) *string { return &c.StatID })))
	r.add(all, "StatIdDate", date(common(func(c *statunit.Common) **time.Time { return &c.StatIDDate })))
	r.add(all, "Name", text(common(func(c *statunit.Common) *string { return &c.Name })))
	r.add(all, "ShortName", text(common(func(c *statunit.Common) *string { return &c.ShortName })))
	r.add(all, "TaxRegId", text(common(func(c *statunit.Common) *string { return &c.TaxRegID })))
	r.add(all, "TaxRegDate", date(common(func(c *statunit.Common) **time.Time { return &c.TaxRegDate })))
	r.add(all, "ExternalId", text(common(func(c *statunit.Common) *string { return &c.ExternalID })))
	r.add(all, "ExternalIdType", integer(common(func(c *statunit.Common) **int { return &c.ExternalIDType })))
	r.add(all, "ExternalIdDate", date(common(func(c *statunit.Common) **time.Time { return &c.ExternalIDDate })))
	r.add(all, "DataSource", text(common(func(c *statunit.Common) *string { return &c.DataSource })))
	r.add(all, "WebAddress", text(common(func(c *statunit.Common) *string { return &c.WebAddress })))
	r.add(all, "TelephoneNo", text(common(func(c *statunit.Common) *string { return &c.TelephoneNo })))
	r.add(all, "EmailAddress", text(common(func(c *statunit.Common) *string { return &c.EmailAddress })))
	r.add(all, "NumOfPeopleEmp", integer(common(func(c *statunit.Common) **int { return &c.NumOfPeopleEmp })))
	r.add(all, "Employees", integer(common(func(c *statunit.Common) **int { return &c.Employees })))
	r.add(all, "EmployeesYear", integer(common(func(c *statunit.Common) **int { return &c.EmployeesYear })))
	r.add(all, "EmployeesDate", date(common(func(c *statunit.Common) **time.Time { return &c.EmployeesDate })))
	r.add(all, "Turnover", number(common(func(c *statunit.Common) **decimal.Decimal { return &c.Turnover })))
	r.add(all, "TurnoverYear", integer(common(func(c *statunit.Common) **int { return &c.TurnoverYear })))
	r.add(all, "TurnoverDate", date(common(func(c *statunit.Common) **time.Time { return &c.TurnoverDate })))
	r.add(all, "Notes", text(common(func(c *statunit.Common) *string { return &c.Notes })))
	r.add(all, "Status", setStatus)
	r.add(all, "StatusDate", date(common(func(c *statunit.Common) **time.Time { return &c.StatusDate })))
	r.add(all, "RegistrationDate", setRegistrationDate)
	r.add(all, "LiqDate", date(common(func(c *statunit.Common) **time.Time { return &c.LiqDate })))
	r.add(all, "LiqReason", text(common(func(c *statunit.Common) *string { return &c.LiqReason })))
	r.add(all, "SuspensionStart", date(common(func(c *statunit.Common) **time.Time { return &c.SuspensionStart })))
	r.add(all, "SuspensionEnd", date(common(func(c *statunit.Common) **time.Time { return &c.SuspensionEnd })))
	r.add(all, "ReorgTypeCode", text(common(func(c *statunit.Common) *string { return &c.ReorgTypeCode })))
	r.add(all, "ReorgDate", date(common(func(c *statunit.Common) **time.Time { return &c.ReorgDate })))
	r.add(all, "ReorgReferences", integer(common(func(c *statunit.Common) **int { return &c.ReorgReferences })))
	r.add(all, "FreeEconZone", flag(common(func(c *statunit.Common) *bool { return &c.FreeEconZone })))
	r.add(all, "Classified", flag(common(func(c *statunit.Common) *bool { return &c.Classified })))

	r.add(all, "Address", address(func(c *statunit.Common) **statunit.Address { return &c.Address }))
	r.add(all, "ActualAddress", address(func(c *statunit.Common) **statunit.Address { return &c.ActualAddress }))
	r.add(all, "PostalAddress", address(func(c *statunit.Common) **statunit.Address { return &c.PostalAddress }))

	r.add(all, "RegistrationReason", codeRef(lookup.RegistrationReasons, func(c *statunit.Common) **statunit.CodeRef { return &c.RegistrationReason }))
	r.add(all, "LegalForm", codeRef(lookup.LegalForms, func(c *statunit.Common) **statunit.CodeRef { return &c.LegalForm }))
	r.add(all, "InstSectorCode", codeRef(lookup.SectorCodes, func(c *statunit.Common) **statunit.CodeRef { return &c.InstSectorCode }))
	r.add(all, "DataSourceClassification", codeRef(lookup.DataSourceClassifications, func(c *statunit.Common) **statunit.CodeRef { return &c.DataSourceClassification }))
	r.add(all, "Size", codeRef(lookup.UnitSizes, func(c *statunit.Common) **statunit.CodeRef { return &c.Size }))
	r.add(all, "UnitStatus", codeRef(lookup.UnitStatuses, func(c *statunit.Common) **statunit.CodeRef { return &c.UnitStatus }))
	r.add(all, "ReorgType", codeRef(lookup.ReorgTypes, func(c *statunit.Common) **statunit.CodeRef { return &c.ReorgType }))
	r.add(all, "ForeignParticipation", codeRef(lookup.ForeignParticipations, func(c *statunit.Common) **statunit.CodeRef { return &c.ForeignParticipation }))

	legal := []statunit.Kind{statunit.KindLegalUnit}
	r.add(legal, "EnterpriseUnitRegId", id64(variant(func(u *statunit.LegalUnit) **int64 { return &u.EnterpriseUnitRegID })))
	r.add(legal, "EntRegIdDate", date(variant(func(u *statunit.LegalUnit) **time.Time { return &u.EntRegIDDate })))
	r.add(legal, "Market", optionalFlag(variant(func(u *statunit.LegalUnit) **bool { return &u.Market })))
	r.add(legal, "TotalCapital", number(variant(func(u *statunit.LegalUnit) **decimal.Decimal { return &u.TotalCapital })))
	r.add(legal, "MunCapitalShare", text(variant(func(u *statunit.LegalUnit) *string { return &u.MunCapitalShare })))
	r.add(legal, "StateCapitalShare", text(variant(func(u *statunit.LegalUnit) *string { return &u.StateCapitalShare })))
	r.add(legal, "PrivCapitalShare", text(variant(func(u *statunit.LegalUnit) *string { return &u.PrivCapitalShare })))
	r.add(legal, "ForeignCapitalShare", text(variant(func(u *statunit.LegalUnit) *string { return &u.ForeignCapitalShare })))
	r.add(legal, "ForeignCapitalCurrency", text(variant(func(u *statunit.LegalUnit) *string { return &u.ForeignCapitalCurr })))

	local := []statunit.Kind{statunit.KindLocalUnit}
	r.add(local, "LegalUnitId", id64(variant(func(u *statunit.LocalUnit) **int64 { return &u.LegalUnitRegID })))
	r.add(local, "LegalUnitIdDate", date(variant(func(u *statunit.LocalUnit) **time.Time { return &u.LegalUnitIDDate })))

	ent := []statunit.Kind{statunit.KindEnterpriseUnit}
	r.add(ent, "EntGroupId", id64(variant(func(u *statunit.EnterpriseUnit) **int64 { return &u.EntGroupID })))
	r.add(ent, "EntGroupIdDate", date(variant(func(u *statunit.EnterpriseUnit) **time.Time { return &u.EntGroupIDDate })))
	r.add(ent, "EntGroupRole", text(variant(func(u *statunit.EnterpriseUnit) *string { return &u.EntGroupRole })))
	r.add(ent, "Commercial", flag(variant(func(u *statunit.EnterpriseUnit) *bool { return &u.Commercial })))
	r.add(ent, "TotalCapital", number(variant(func(u *statunit.EnterpriseUnit) **decimal.Decimal { return &u.TotalCapital })))

	group := []statunit.Kind{statunit.KindEnterpriseGroup}
	r.add(group, "ContactPerson", text(variant(func(u *statunit.EnterpriseGroup) *string { return &u.ContactPerson })))
	r.add(group, "EntGroupType", text(variant(func(u *statunit.EnterpriseGroup) *string { return &u.EntGroupTypeCode })))

	return r
}

// common adapts an accessor of the shared fields to any unit.
func common[T any](f func(*statunit.Common) *T) func(statunit.Unit) *T {
	return func(u statunit.Unit) *T { return f(u.Base()) }
}

// variant adapts an accessor of one unit type. Setters built from it are only
// registered for that type.
func variant[V statunit.Unit, T any](f func(V) *T) func(statunit.Unit) *T {
	return func(u statunit.Unit) *T { return f(u.(V)) }
}

func text(ref func(statunit.Unit) *string) Setter {
	return func(_ context.Context, u statunit.Unit, _, value string, _ Lookups) error {
		*ref(u) = strings.TrimSpace(value)
		return nil
	}
}

func flag(ref func(statunit.Unit) *bool) Setter {
	return func(_ context.Context, u statunit.Unit, _, value string, _ Lookups) error {
		v, err := parseBool(value)
		if err != nil {
			return err
		}
		*ref(u) = v != nil && *v
		return nil
	}
}

func optionalFlag(ref func(statunit.Unit) **bool) Setter {
	return parsed(ref, parseBool)
}

func integer(ref func(statunit.Unit) **int) Setter {
	return parsed(ref, parseInt)
}

func id64(ref func(statunit.Unit) **int64) Setter {
	return parsed(ref, parseInt64)
}

func number(ref func(statunit.Unit) **decimal.Decimal) Setter {
	return parsed(ref, parseDecimal)
}

func date(ref func(statunit.Unit) **time.Time) Setter {
	return parsed(ref, parseDate)
}

func parsed[T any](ref func(statunit.Unit) **T, parse func(string) (*T, error)) Setter {
	return func(_ context.Context, u statunit.Unit, _, value string, _ Lookups) error {
		v, err := parse(value)
		if err != nil {
			return err
		}
		*ref(u) = v
		return nil
	}
}

func setStatus(_ context.Context, u statunit.Unit, _, value string, _ Lookups) error {
	s, err := statunit.ParseStatus(value)
	if err != nil {
		return err
	}
	u.Base().Status = s
	return nil
}

func setRegistrationDate(_ context.Context, u statunit.Unit, _, value string, _ Lookups) error {
	t, err := parseDate(value)
	if err != nil {
		return err
	}
	if t == nil {
		u.Base().RegistrationDate = time.Time{}
		return nil
	}
	u.Base().RegistrationDate = *t
	return nil
}

// address writes one part of an address, creating the address when the unit has none.
func address(ref func(*statunit.Common) **statunit.Address) Setter {
	return func(ctx context.Context, u statunit.Unit, tail, value string, lk Lookups) error {
		slot := ref(u.Base())
		addr := *slot
		if addr == nil {
			addr = &statunit.Address{}
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(tail) {
		case "", "addresspart1":
			addr.AddressPart1 = value
		case "addresspart2":
			addr.AddressPart2 = value
		case "addresspart3":
			addr.AddressPart3 = value
		case "region", "region.code", "region.name":
			code, name := value, ""
			if strings.EqualFold(tail, "region.name") {
				code, name = "", value
			}
			region, err := lk.Find(ctx, lookup.Regions, code, name)
			if err != nil {
				return err
			}
			assignRef(&addr.Region, region)
		case "latitude", "longitude":
			d, err := parseDecimal(value)
			if err != nil {
				return err
			}
			if strings.EqualFold(tail, "latitude") {
				addr.Latitude = d
			} else {
				addr.Longitude = d
			}
		default:
			return fmt.Errorf("address has no field %q", tail)
		}
		*slot = addr
		return nil
	}
}

// codeRef resolves a catalog reference by code or by name. An empty tail
// tries the value as a code first, then as a name.
func codeRef(catalog lookup.Catalog, ref func(*statunit.Common) **statunit.CodeRef) Setter {
	return func(ctx context.Context, u statunit.Unit, tail, value string, lk Lookups) error {
		var code, name string
		switch strings.ToLower(tail) {
		case "":
			code, name = value, value
		case "code":
			code = value
		case "name":
			name = value
		default:
			return fmt.Errorf("%s reference has no field %q", catalog, tail)
		}
		resolved, err := lk.Find(ctx, catalog, code, name)
		if err != nil {
			return err
		}
		assignRef(ref(u.Base()), resolved)
		return nil
	}
}

// assignRef overwrites the existing reference in place, or sets a new one.
func assignRef(slot **statunit.CodeRef, v statunit.CodeRef) {
	if *slot != nil {
		**slot = v
		return
	}
	*slot = &v
}
