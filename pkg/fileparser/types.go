package fileparser

import (
	"slices"
	"strings"
)

// DefaultArrayHeads are the relation collections whose targets hold one item per row.
var DefaultArrayHeads = []string{"Activities", "Persons", "ForeignParticipationCountries"}

// MappingRule binds a source column to a dot separated target path.
type MappingRule struct {
	Source string `json:"source" yaml:"source" validate:"required"`
	Target string `json:"target" yaml:"target" validate:"required"`
}

// RawRecord is one physical row keyed by source column.
type RawRecord struct {
	Line   int
	Values map[string]string
}

// Table is the output of a format reader: the header plus its rows.
type Table struct {
	Columns []string
	Rows    []RawRecord
}

func (t Table) hasColumn(name string) bool {
	return slices.Contains(t.Columns, name)
}

// ArrayItem is the contribution of one row to a relation collection.
// Fields are keyed by the path below the collection head, e.g. "ActivityCategory.Code".
type ArrayItem struct {
	Item   string            `json:"item"`
	Fields map[string]string `json:"fields"`
}

// Field returns the value stored under tail, matching case-insensitively.
func (a ArrayItem) Field(tail string) (string, bool) {
	if v, ok := a.Fields[tail]; ok {
		return v, true
	}
	for k, v := range a.Fields {
		if strings.EqualFold(k, tail) {
			return v, true
		}
	}
	return "", false
}

// LogicalRecord is one reconstructed unit after merging its rows.
type LogicalRecord struct {
	Scalars map[string]string
	Arrays  map[string][]ArrayItem
	Rows    []int
}

func (r LogicalRecord) IsEmpty() bool {
	return len(r.Scalars) == 0 && len(r.Arrays) == 0
}

// Snapshot renders the record keyed by target path, with array groups as lists.
func (r LogicalRecord) Snapshot() map[string]any {
	out := make(map[string]any, len(r.Scalars)+len(r.Arrays))
	for k, v := range r.Scalars {
		out[k] = v
	}
	for head, items := range r.Arrays {
		list := make([]map[string]string, 0, len(items))
		for _, it := range items {
			list = append(list, it.Fields)
		}
		out[head] = list
	}
	return out
}

// Options drive Parse.
type Options struct {
	Mapping    []MappingRule
	Delimiter  string
	SkipLines  int
	ArrayHeads []string
}

func (o *Options) setDefaults() {
	if len(o.ArrayHeads) == 0 {
		o.ArrayHeads = DefaultArrayHeads
	}
	if o.Delimiter == "" {
		o.Delimiter = ","
	}
}
