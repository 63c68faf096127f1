package statunit

import (
	"slices"
	"strings"
)

// SortRelations orders the relation collections of u by natural key so two
// units holding the same members compare equal regardless of insertion order.
func SortRelations(u Unit) {
	c := u.Base()
	slices.SortStableFunc(c.Activities, func(a, b Activity) int {
		return strings.Compare(a.Key(), b.Key())
	})
	slices.SortStableFunc(c.Persons, func(a, b PersonLink) int {
		return strings.Compare(a.Key(), b.Key())
	})
	slices.SortStableFunc(c.ForeignParticipationCountries, func(a, b CountryRef) int {
		return strings.Compare(a.Key(), b.Key())
	})
}

// FirstAddress returns the legal address, falling back to the actual one.
func FirstAddress(u Unit) *Address {
	c := u.Base()
	if !c.Address.IsEmpty() {
		return c.Address
	}
	if !c.ActualAddress.IsEmpty() {
		return c.ActualAddress
	}
	return nil
}
