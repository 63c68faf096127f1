package searchindex

import (
	"encoding/json"
	"strconv"

	"github.com/google/uuid"

	"github.com/iota-uz/statreg/modules/statunit/domain/aggregates/statunit"
	"github.com/iota-uz/statreg/pkg/outbox"
)

// Topic is the outbox topic carrying index refreshes.
const Topic = "statunit.index.v1"

// Document is the searchable projection of a unit.
type Document struct {
	RegID       int64  `json:"reg_id"`
	Kind        string `json:"kind"`
	StatID      string `json:"stat_id,omitempty"`
	TaxRegID    string `json:"tax_reg_id,omitempty"`
	ExternalID  string `json:"external_id,omitempty"`
	Name        string `json:"name,omitempty"`
	ShortName   string `json:"short_name,omitempty"`
	Address     string `json:"address,omitempty"`
	Status      string `json:"status,omitempty"`
	ParentRegID *int64 `json:"parent_reg_id,omitempty"`
	Deleted     bool   `json:"deleted,omitempty"`
}

func FromUnit(u statunit.Unit) Document {
	c := u.Base()
	doc := Document{
		RegID:       c.RegID,
		Kind:        string(u.Kind()),
		StatID:      c.StatID,
		TaxRegID:    c.TaxRegID,
		ExternalID:  c.ExternalID,
		Name:        c.Name,
		ShortName:   c.ShortName,
		Status:      string(c.Status),
		ParentRegID: u.ParentRegID(),
	}
	if addr := statunit.FirstAddress(u); addr != nil {
		doc.Address = addr.Key()
	}
	return doc
}

// NewMessage wraps doc for the outbox, keyed by reg id so the relay only
// ships the newest version of a unit.
func NewMessage(doc Document) (outbox.Message, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return outbox.Message{}, err
	}
	return outbox.Message{
		Topic:   Topic,
		Key:     strconv.FormatInt(doc.RegID, 10),
		EventID: uuid.New(),
		Payload: payload,
	}, nil
}
