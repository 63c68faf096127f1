package analysis

import (
	"sort"
	"strings"

	"github.com/iota-uz/statreg/modules/statunit/domain/aggregates/statunit"
)

const (
	SummaryConnections = "Connection rules warnings"
	SummaryMandatory   = "Mandatory fields rules warnings"
	SummaryCalculation = "Calculation fields rules warnings"
	SummaryDuplicates  = "Duplicate fields rules warnings"
	SummaryOrphans     = "Orphan units rules warnings"
)

// Messages maps a unit field to the problems found on it.
type Messages map[string][]string

func (m Messages) add(key string, msg ...string) {
	m[key] = append(m[key], msg...)
}

func (m Messages) merge(src Messages) {
	for k, v := range src {
		m.add(k, v...)
	}
}

// Keys returns the flagged fields in sorted order.
func (m Messages) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Texts returns every message, grouped by field in sorted field order.
func (m Messages) Texts() []string {
	var out []string
	for _, k := range m.Keys() {
		out = append(out, m[k]...)
	}
	return out
}

// Result is the outcome of analysing one unit.
type Result struct {
	Name     string
	Kind     statunit.Kind
	Messages Messages
	Summary  []string
}

func (r Result) HasMessages() bool { return len(r.Messages) > 0 }

func (r *Result) append(summary string, m Messages) {
	if len(m) == 0 {
		return
	}
	r.Summary = append(r.Summary, summary)
	r.Messages.merge(m)
}

// Analyzer runs the rule groups against a single unit. OnlyIdentifiers
// narrows the mandatory checks to the identifier fields, which is what alter
// uploads need.
type Analyzer struct {
	Rules           Rules
	OnlyIdentifiers bool
}

// CheckAll runs connections, mandatory, calculation and duplicate checks in
// that order. An empty population skips the duplicate check.
func (a Analyzer) CheckAll(
	u statunit.Unit,
	hasRelatedParent, hasRelatedActivities bool,
	addresses []statunit.Address,
	population []statunit.Unit,
) Result {
	res := Result{Name: u.Base().Name, Kind: u.Kind(), Messages: Messages{}}
	res.append(SummaryConnections, a.CheckConnections(u, hasRelatedParent, hasRelatedActivities, addresses))
	res.append(SummaryMandatory, a.CheckMandatoryFields(u))
	res.append(SummaryCalculation, a.CheckCalculationFields(u))
	if len(population) > 0 {
		res.append(SummaryDuplicates, a.CheckDuplicates(u, population))
	}
	return res
}

func (a Analyzer) CheckConnections(u statunit.Unit, hasRelatedParent, hasRelatedActivities bool, addresses []statunit.Address) Messages {
	rules := a.Rules.Connections
	m := Messages{}
	c := u.Base()
	isGroup := u.Kind() == statunit.KindEnterpriseGroup

	if rules.CheckRelatedLegalUnit && !isGroup && !hasRelatedParent {
		switch u.Kind() {
		case statunit.KindLocalUnit:
			m.add("LegalUnitId", "Stat unit doesn't have related legal unit")
		case statunit.KindEnterpriseUnit:
			m.add("LegalUnits", "Stat unit doesn't have related legal unit")
		case statunit.KindLegalUnit:
			m.add("EnterpriseUnitRegId", "Stat unit doesn't have related enterprise unit")
		}
	}
	if rules.CheckRelatedActivities && !isGroup && !hasRelatedActivities {
		m.add("Activities", "Stat unit doesn't have related activity")
	}
	if rules.CheckRelatedPersons && !isGroup && len(c.Persons) == 0 {
		m.add("Persons", "Stat unit doesn't have related persons")
	}
	if rules.CheckAddress {
		addr := statunit.FirstAddress(u)
		switch {
		case addr == nil:
			m.add("Address", "Stat unit doesn't have address")
		case addressInUse(addr.Key(), addresses):
			m.add("Address", "Stat unit's address is used by another unit")
		}
	}
	return m
}

func addressInUse(key string, addresses []statunit.Address) bool {
	for i := range addresses {
		if addresses[i].Key() == key {
			return true
		}
	}
	return false
}

func (a Analyzer) CheckMandatoryFields(u statunit.Unit) Messages {
	if a.OnlyIdentifiers {
		return checkIdentifiers(u)
	}
	rules := a.Rules.Mandatory
	m := Messages{}
	c := u.Base()
	group, isGroup := u.(*statunit.EnterpriseGroup)

	if rules.DataSource && c.DataSource == "" {
		m.add("DataSource", "Stat unit doesn't have data source")
	}
	if rules.Name && c.Name == "" {
		m.add("Name", "Stat unit doesn't have name")
	}
	if rules.ShortName {
		switch {
		case c.ShortName == "":
			m.add("ShortName", "Stat unit doesn't have short name")
		case c.ShortName == c.Name:
			m.add("ShortName", "Stat unit's short name is the same as name")
		}
	}
	if rules.TelephoneNo && c.TelephoneNo == "" {
		m.add("TelephoneNo", "Stat unit doesn't have telephone number")
	}
	if rules.RegistrationReason && c.RegistrationReason.IsEmpty() {
		m.add("RegistrationReason", "Stat unit doesn't have registration reason")
	}
	if rules.ContactPerson {
		missing := len(c.PersonsWithRole(statunit.RoleContactPerson)) == 0
		if isGroup {
			missing = strings.TrimSpace(group.ContactPerson) == ""
		}
		if missing {
			m.add("ContactPerson", "Stat unit doesn't have contact person")
		}
	}
	if rules.Status && !isGroup && c.Status != statunit.StatusActive {
		m.add("Status", `Stat unit's status is not "active"`)
	}
	if rules.LegalUnitOwner && u.Kind() == statunit.KindLegalUnit && len(c.PersonsWithRole(statunit.RoleOwner)) == 0 {
		m.add("Persons", `Legal unit doesn't have any person with "Owner" status`)
	}
	return m
}

func checkIdentifiers(u statunit.Unit) Messages {
	c := u.Base()
	if c.StatID != "" || c.TaxRegID != "" || c.ExternalID != "" {
		return nil
	}
	return Messages{"RegId": {"One of these fields should be filled: StatId, TaxRegId, ExternalId"}}
}

func (a Analyzer) CheckCalculationFields(u statunit.Unit) Messages {
	statID := u.Base().StatID
	if !a.Rules.Calculation.StatID || statID == "" {
		return nil
	}
	digitsOnly, valid := checkStatID(statID)
	switch {
	case !digitsOnly:
		return Messages{"StatId": {"StatId should contain only digits"}}
	case !valid:
		return Messages{"StatId": {"StatId check digit is not valid"}}
	}
	return nil
}

type duplicateCheck struct {
	enabled bool
	key     string
	message string
	same    func(u, o statunit.Unit) bool
}

func (a Analyzer) duplicateChecks(kind statunit.Kind) []duplicateCheck {
	rules := a.Rules.Duplicates
	checks := []duplicateCheck{
		{rules.CheckName, "Name", "Name field is duplicated", sameText(func(c *statunit.Common) string { return c.Name })},
		{rules.CheckStatIDTaxRegID, "StatId", "StatId field is duplicated", sameStatAndTaxID},
		{rules.CheckExternalID, "ExternalId", "ExternalId field is duplicated", sameText(func(c *statunit.Common) string { return c.ExternalID })},
		{rules.CheckShortName, "ShortName", "ShortName field is duplicated", sameText(func(c *statunit.Common) string { return c.ShortName })},
		{rules.CheckTelephoneNo, "TelephoneNo", "TelephoneNo field is duplicated", sameText(func(c *statunit.Common) string { return c.TelephoneNo })},
		{rules.CheckAddress, "Address", "Address field is duplicated", sameAddress},
		{rules.CheckEmailAddress, "EmailAddress", "EmailAddress field is duplicated", sameText(func(c *statunit.Common) string { return c.EmailAddress })},
		{rules.CheckContactPerson, "ContactPerson", "ContactPerson field is duplicated", sameContactPerson},
	}
	if kind != statunit.KindEnterpriseGroup {
		checks = append(checks, duplicateCheck{rules.CheckOwnerPerson, "Persons", "Stat unit owner person is duplicated", sameFirstPerson(statunit.RoleOwner)})
	}
	return checks
}

// CheckDuplicates compares u against every unit of population. A candidate
// counts as a duplicate once at least MinimalIdenticalFieldsCount fields
// match, and only fields not already reported by an earlier candidate are
// added.
func (a Analyzer) CheckDuplicates(u statunit.Unit, population []statunit.Unit) Messages {
	checks := a.duplicateChecks(u.Kind())
	threshold := a.Rules.Duplicates.MinimalIdenticalFieldsCount
	m := Messages{}
	for _, other := range population {
		found := Messages{}
		same := 0
		for _, chk := range checks {
			if !chk.enabled || !chk.same(u, other) {
				continue
			}
			same++
			if _, flagged := m[chk.key]; !flagged {
				found.add(chk.key, chk.message)
			}
		}
		if same >= threshold {
			m.merge(found)
		}
	}
	return m
}

func sameText(get func(*statunit.Common) string) func(u, o statunit.Unit) bool {
	return func(u, o statunit.Unit) bool {
		v := get(u.Base())
		return v != "" && v == get(o.Base())
	}
}

func sameStatAndTaxID(u, o statunit.Unit) bool {
	a, b := u.Base(), o.Base()
	return a.StatID != "" && a.TaxRegID != "" && a.StatID == b.StatID && a.TaxRegID == b.TaxRegID
}

func sameAddress(u, o statunit.Unit) bool {
	a, b := statunit.FirstAddress(u), statunit.FirstAddress(o)
	return a != nil && b != nil && a.Key() == b.Key()
}

func sameContactPerson(u, o statunit.Unit) bool {
	if g, ok := u.(*statunit.EnterpriseGroup); ok {
		og, ok := o.(*statunit.EnterpriseGroup)
		return ok && g.ContactPerson != "" && strings.EqualFold(g.ContactPerson, og.ContactPerson)
	}
	return sameFirstPerson(statunit.RoleContactPerson)(u, o)
}

func sameFirstPerson(role statunit.PersonRole) func(u, o statunit.Unit) bool {
	return func(u, o statunit.Unit) bool {
		a, b := u.Base().PersonsWithRole(role), o.Base().PersonsWithRole(role)
		if len(a) == 0 || len(b) == 0 {
			return false
		}
		return a[0].SameIdentity(b[0]) || a[0].SameBirthAndName(b[0])
	}
}
