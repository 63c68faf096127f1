package persistence

import (
	"encoding/json"

	"github.com/go-faster/errors"

	"github.com/iota-uz/statreg/modules/statunit/domain/aggregates/statunit"
	"github.com/iota-uz/statreg/modules/statunit/domain/entities/history"
	"github.com/iota-uz/statreg/modules/statunit/domain/entities/lookup"
	"github.com/iota-uz/statreg/modules/statunit/infrastructure/persistence/models"
)

func toDBStatUnit(u statunit.Unit) (*models.StatUnit, error) {
	doc, err := statunit.Marshal(u)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode unit document")
	}
	c := u.Base()
	return &models.StatUnit{
		RegID:        c.RegID,
		Kind:         string(u.Kind()),
		StatID:       c.StatID,
		TaxRegID:     c.TaxRegID,
		ExternalID:   c.ExternalID,
		Name:         c.Name,
		ShortName:    c.ShortName,
		TelephoneNo:  c.TelephoneNo,
		EmailAddress: c.EmailAddress,
		AddressKey:   statunit.FirstAddress(u).Key(),
		ParentRegID:  u.ParentRegID(),
		Status:       string(c.Status),
		LiqDate:      c.LiqDate,
		Document:     doc,
	}, nil
}

func toDomainStatUnit(m *models.StatUnit) (statunit.Unit, error) {
	u, err := statunit.Unmarshal(statunit.Kind(m.Kind), m.Document)
	if err != nil {
		return nil, err
	}
	u.Base().RegID = m.RegID
	u.SetParentRegID(m.ParentRegID)
	return u, nil
}

func toDBHistory(rec *history.Record) *models.History {
	return &models.History{
		ID:           rec.ID,
		RegID:        rec.RegID,
		Kind:         string(rec.Kind),
		Snapshot:     rec.Snapshot,
		Changes:      rec.Changes,
		ChangeReason: string(rec.ChangeReason),
		EditComment:  rec.EditComment,
		UserID:       rec.UserID,
		StartPeriod:  rec.StartPeriod,
		EndPeriod:    rec.EndPeriod,
	}
}

func toDomainHistory(m *models.History) history.Record {
	return history.Record{
		ID:           m.ID,
		RegID:        m.RegID,
		Kind:         statunit.Kind(m.Kind),
		Snapshot:     json.RawMessage(m.Snapshot),
		Changes:      json.RawMessage(m.Changes),
		ChangeReason: statunit.ChangeReason(m.ChangeReason),
		EditComment:  m.EditComment,
		UserID:       m.UserID,
		StartPeriod:  m.StartPeriod,
		EndPeriod:    m.EndPeriod,
	}
}

func toDomainLookupItem(m *models.LookupItem) lookup.Item {
	return lookup.Item{ID: m.ID, Code: m.Code, Name: m.Name}
}
