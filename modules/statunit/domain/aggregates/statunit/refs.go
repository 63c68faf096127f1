package statunit

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CodeRef points at a row of a reference catalog (legal forms, sector codes, ...).
type CodeRef struct {
	ID   int64  `json:"id,omitempty"`
	Code string `json:"code,omitempty"`
	Name string `json:"name,omitempty"`
}

func (r *CodeRef) IsEmpty() bool {
	return r == nil || (r.ID == 0 && r.Code == "" && r.Name == "")
}

func (r *CodeRef) Equal(o *CodeRef) bool {
	if r.IsEmpty() || o.IsEmpty() {
		return r.IsEmpty() == o.IsEmpty()
	}
	if r.ID != 0 && o.ID != 0 {
		return r.ID == o.ID
	}
	return r.Code == o.Code && r.Name == o.Name
}

type Address struct {
	ID           int64            `json:"id,omitempty"`
	AddressPart1 string           `json:"address_part1,omitempty"`
	AddressPart2 string           `json:"address_part2,omitempty"`
	AddressPart3 string           `json:"address_part3,omitempty"`
	Region       *CodeRef         `json:"region,omitempty"`
	Latitude     *decimal.Decimal `json:"latitude,omitempty"`
	Longitude    *decimal.Decimal `json:"longitude,omitempty"`
}

func (a *Address) IsEmpty() bool {
	return a == nil || (a.AddressPart1 == "" && a.AddressPart2 == "" && a.AddressPart3 == "" && a.Region.IsEmpty())
}

// Key is the normalized comparison key of an address; empty for an empty address.
func (a *Address) Key() string {
	if a.IsEmpty() {
		return ""
	}
	region := ""
	if a.Region != nil {
		region = a.Region.Code
	}
	parts := []string{region, a.AddressPart1, a.AddressPart2, a.AddressPart3}
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.Join(strings.Fields(p), " "))
	}
	return strings.Join(parts, "|")
}

// CountryRef is a foreign participation country.
type CountryRef struct {
	ID   int64  `json:"id,omitempty"`
	Code string `json:"code,omitempty"`
	Name string `json:"name,omitempty"`
}

func (c CountryRef) Key() string {
	if c.Code != "" {
		return strings.ToUpper(c.Code)
	}
	return strings.ToLower(c.Name)
}
