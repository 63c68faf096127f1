package models

import "time"

type StatUnit struct {
	RegID        int64
	Kind         string
	StatID       string
	TaxRegID     string
	ExternalID   string
	Name         string
	ShortName    string
	TelephoneNo  string
	EmailAddress string
	AddressKey   string
	ParentRegID  *int64
	Status       string
	LiqDate      *time.Time
	Document     []byte
}

type History struct {
	ID           int64
	RegID        int64
	Kind         string
	Snapshot     []byte
	Changes      []byte
	ChangeReason string
	EditComment  string
	UserID       string
	StartPeriod  time.Time
	EndPeriod    time.Time
}

type LookupItem struct {
	ID      int64
	Catalog string
	Code    string
	Name    string
}
