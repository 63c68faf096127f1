package populate

import (
	"context"
	"strings"
	"time"

	"github.com/iota-uz/statreg/modules/statunit/domain/aggregates/statunit"
	"github.com/iota-uz/statreg/modules/statunit/domain/entities/lookup"
	"github.com/iota-uz/statreg/pkg/fileparser"
)

const (
	headActivities = "Activities"
	headPersons    = "Persons"
	headCountries  = "ForeignParticipationCountries"
)

// itemValue returns the first field of it named by one of names, matching
// either the whole key or its last segments.
func itemValue(it fileparser.ArrayItem, names ...string) string {
	for _, name := range names {
		if v, ok := it.Field(name); ok {
			return strings.TrimSpace(v)
		}
		suffix := "." + strings.ToLower(name)
		for k, v := range it.Fields {
			if strings.HasSuffix(strings.ToLower(k), suffix) {
				return strings.TrimSpace(v)
			}
		}
	}
	return ""
}

type importedActivity struct {
	activity     statunit.Activity
	explicitType bool
	path         string
	value        string
}

func (p *Populator) parseActivities(ctx context.Context, items []fileparser.ArrayItem, asOf time.Time) ([]importedActivity, error) {
	out := make([]importedActivity, 0, len(items))
	for _, it := range items {
		code := itemValue(it, "ActivityCategory.Code", "ActivityCategoryCode")
		if code == "" {
			continue
		}
		ia := importedActivity{path: headActivities + ".ActivityCategory.Code", value: code}

		year, err := parseInt(itemValue(it, "ActivityYear"))
		if err != nil {
			return nil, &FieldError{Path: headActivities + ".Activity.ActivityYear", Value: itemValue(it, "ActivityYear"), Err: err}
		}
		if year == nil {
			y := asOf.Year() - 1
			year = &y
		}
		ia.activity.Year = year

		if raw := itemValue(it, "ActivityType"); raw != "" {
			t, err := statunit.ParseActivityType(raw)
			if err != nil {
				return nil, &FieldError{Path: headActivities + ".Activity.ActivityType", Value: raw, Err: err}
			}
			ia.activity.Type, ia.explicitType = t, true
		}
		if ia.activity.Employees, err = parseInt(itemValue(it, "Employees")); err != nil {
			return nil, &FieldError{Path: headActivities + ".Activity.Employees", Value: itemValue(it, "Employees"), Err: err}
		}
		if ia.activity.Turnover, err = parseDecimal(itemValue(it, "Turnover")); err != nil {
			return nil, &FieldError{Path: headActivities + ".Activity.Turnover", Value: itemValue(it, "Turnover"), Err: err}
		}

		category, err := p.lookups.Find(ctx, lookup.ActivityCategories, code, itemValue(it, "ActivityCategory.Name"))
		if err != nil {
			return nil, &FieldError{Path: ia.path, Value: code, Err: err}
		}
		ia.activity.Category = category
		out = append(out, ia)
	}
	return out, nil
}

// mergeActivities matches imported activities against the stored ones of the
// same year by category code. Matches are overwritten in place; the rest are
// added as secondary unless the file names a type. A year with no stored
// activities takes its first imported row as primary.
func mergeActivities(u statunit.Unit, imported []importedActivity) {
	c := u.Base()
	var years []int
	byYear := map[int][]importedActivity{}
	for _, ia := range imported {
		y := ia.activity.YearValue()
		if _, ok := byYear[y]; !ok {
			years = append(years, y)
		}
		byYear[y] = append(byYear[y], ia)
	}

	for _, year := range years {
		stored := hasActivityInYear(c.Activities, year)
		for i, ia := range byYear[year] {
			if idx := findActivity(c.Activities, year, ia.activity.Category.Code); idx >= 0 {
				overwriteActivity(&c.Activities[idx], ia)
				continue
			}
			a := ia.activity
			if !ia.explicitType {
				a.Type = statunit.ActivitySecondary
				if i == 0 && !stored {
					a.Type = statunit.ActivityPrimary
				}
			}
			c.Activities = append(c.Activities, a)
		}
	}
}

func hasActivityInYear(list []statunit.Activity, year int) bool {
	for _, a := range list {
		if a.YearValue() == year {
			return true
		}
	}
	return false
}

func findActivity(list []statunit.Activity, year int, code string) int {
	for i, a := range list {
		if a.YearValue() == year && strings.EqualFold(a.Category.Code, code) {
			return i
		}
	}
	return -1
}

func overwriteActivity(dst *statunit.Activity, ia importedActivity) {
	src := ia.activity
	if ia.explicitType {
		dst.Type = src.Type
	}
	if src.Employees != nil {
		dst.Employees = src.Employees
	}
	if src.Turnover != nil {
		dst.Turnover = src.Turnover
	}
	dst.Category = src.Category
}

func (p *Populator) parsePersons(ctx context.Context, items []fileparser.ArrayItem) ([]statunit.PersonLink, error) {
	out := make([]statunit.PersonLink, 0, len(items))
	for _, it := range items {
		var (
			link statunit.PersonLink
			err  error
		)
		person := &link.Person
		person.PersonalID = itemValue(it, "PersonalId")
		person.GivenName = itemValue(it, "GivenName")
		person.Surname = itemValue(it, "Surname")
		person.MiddleName = itemValue(it, "MiddleName")
		person.PhoneNumber = itemValue(it, "PhoneNumber")
		person.PhoneNumber1 = itemValue(it, "PhoneNumber1")
		person.Address = itemValue(it, "Address")

		if raw := itemValue(it, "BirthDate"); raw != "" {
			if person.BirthDate, err = parseDate(raw); err != nil {
				return nil, &FieldError{Path: headPersons + ".Person.BirthDate", Value: raw, Err: err}
			}
		}
		if raw := itemValue(it, "Sex"); raw != "" {
			if person.Sex, err = parseInt(raw); err != nil {
				return nil, &FieldError{Path: headPersons + ".Person.Sex", Value: raw, Err: err}
			}
		}
		if raw := itemValue(it, "NationalityCode.Code", "NationalityCode"); raw != "" {
			ref, err := p.lookups.Find(ctx, lookup.Countries, raw, "")
			if err != nil {
				return nil, &FieldError{Path: headPersons + ".Person.NationalityCode", Value: raw, Err: err}
			}
			person.NationalityCode = &ref
		}

		link.Role = statunit.RoleOwner
		if raw := itemValue(it, "Role", "PersonType"); raw != "" {
			if link.Role, err = p.lookups.PersonRole(ctx, raw); err != nil {
				return nil, &FieldError{Path: headPersons + ".Person.Role", Value: raw, Err: err}
			}
		}
		out = append(out, link)
	}
	return out, nil
}

// mergePersons folds imported persons into the stored ones. In good quality
// mode the first pass matches by personal id and the second by birth date and
// name; the second pass sees every imported person the first did not consume,
// so a stored person can be merged twice. Unmatched imports are appended.
func mergePersons(u statunit.Unit, imported []statunit.PersonLink, goodQuality bool) {
	c := u.Base()
	if !goodQuality {
		c.Persons = append(c.Persons, imported...)
		return
	}

	consumed := make([]bool, len(imported))
	for i := range c.Persons {
		for j, in := range imported {
			if !consumed[j] && c.Persons[i].Person.SameIdentity(in.Person) {
				mergeLink(&c.Persons[i], in)
				consumed[j] = true
				break
			}
		}
	}
	afterFirst := append([]bool(nil), consumed...)
	for i := range c.Persons {
		for j, in := range imported {
			if !afterFirst[j] && c.Persons[i].Person.SameBirthAndName(in.Person) {
				mergeLink(&c.Persons[i], in)
				consumed[j] = true
				break
			}
		}
	}
	for j, in := range imported {
		if !consumed[j] {
			c.Persons = append(c.Persons, in)
		}
	}
}

func mergeLink(dst *statunit.PersonLink, src statunit.PersonLink) {
	dst.Person.MergeFrom(src.Person)
	if src.Role != "" {
		dst.Role = src.Role
	}
}

func (p *Populator) mergeCountries(ctx context.Context, u statunit.Unit, items []fileparser.ArrayItem) error {
	c := u.Base()
	for _, it := range items {
		code, name := itemValue(it, "Code"), itemValue(it, "Name")
		if code == "" && name == "" {
			continue
		}
		ref, err := p.lookups.Find(ctx, lookup.Countries, code, name)
		if err != nil {
			value := code
			if value == "" {
				value = name
			}
			return &FieldError{Path: headCountries + "." + it.Item, Value: value, Err: err}
		}
		country := statunit.CountryRef{ID: ref.ID, Code: ref.Code, Name: ref.Name}
		if !hasCountry(c.ForeignParticipationCountries, country) {
			c.ForeignParticipationCountries = append(c.ForeignParticipationCountries, country)
		}
	}
	return nil
}

func hasCountry(list []statunit.CountryRef, c statunit.CountryRef) bool {
	for _, x := range list {
		if (c.ID != 0 && x.ID == c.ID) || x.Key() == c.Key() {
			return true
		}
	}
	return false
}
