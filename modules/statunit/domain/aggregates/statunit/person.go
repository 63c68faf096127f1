package statunit

import (
	"strings"
	"time"
)

type PersonRole string

const (
	RoleOwner         PersonRole = "Owner"
	RoleContactPerson PersonRole = "ContactPerson"
	RoleFounder       PersonRole = "Founder"
	RoleDirector      PersonRole = "Director"
)

type Person struct {
	ID              int64      `json:"id,omitempty"`
	PersonalID      string     `json:"personal_id,omitempty"`
	GivenName       string     `json:"given_name,omitempty"`
	Surname         string     `json:"surname,omitempty"`
	MiddleName      string     `json:"middle_name,omitempty"`
	BirthDate       *time.Time `json:"birth_date,omitempty"`
	Sex             *int       `json:"sex,omitempty"`
	PhoneNumber     string     `json:"phone_number,omitempty"`
	PhoneNumber1    string     `json:"phone_number1,omitempty"`
	Address         string     `json:"address,omitempty"`
	NationalityCode *CodeRef   `json:"nationality_code,omitempty"`
}

// PersonLink is a person attached to a unit under a role.
type PersonLink struct {
	Role   PersonRole `json:"role,omitempty"`
	Person Person     `json:"person"`
}

func (p PersonLink) Key() string {
	if p.Person.PersonalID != "" {
		return string(p.Role) + "|id|" + p.Person.PersonalID
	}
	birth := ""
	if p.Person.BirthDate != nil {
		birth = p.Person.BirthDate.Format(time.DateOnly)
	}
	return string(p.Role) + "|" + birth + "|" + strings.ToLower(p.Person.GivenName) + "|" + strings.ToLower(p.Person.Surname)
}

// SameIdentity reports whether both persons carry the same non-empty personal id.
func (p Person) SameIdentity(o Person) bool {
	return p.PersonalID != "" && p.PersonalID == o.PersonalID
}

// SameBirthAndName compares birth date, given name and surname.
func (p Person) SameBirthAndName(o Person) bool {
	if p.BirthDate == nil || o.BirthDate == nil {
		return false
	}
	return p.BirthDate.Equal(*o.BirthDate) &&
		strings.EqualFold(p.GivenName, o.GivenName) &&
		strings.EqualFold(p.Surname, o.Surname)
}

// MergeFrom copies every non-empty field of src onto p.
func (p *Person) MergeFrom(src Person) {
	if src.PersonalID != "" {
		p.PersonalID = src.PersonalID
	}
	if src.GivenName != "" {
		p.GivenName = src.GivenName
	}
	if src.Surname != "" {
		p.Surname = src.Surname
	}
	if src.MiddleName != "" {
		p.MiddleName = src.MiddleName
	}
	if src.BirthDate != nil {
		p.BirthDate = src.BirthDate
	}
	if src.Sex != nil {
		p.Sex = src.Sex
	}
	if src.PhoneNumber != "" {
		p.PhoneNumber = src.PhoneNumber
	}
	if src.PhoneNumber1 != "" {
		p.PhoneNumber1 = src.PhoneNumber1
	}
	if src.Address != "" {
		p.Address = src.Address
	}
	if !src.NationalityCode.IsEmpty() {
		p.NationalityCode = src.NationalityCode
	}
}
