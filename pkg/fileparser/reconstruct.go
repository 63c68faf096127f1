package fileparser

import (
	"fmt"
	"slices"
	"strings"
)

type targetValue struct {
	target string
	value  string
	path   []string
}

// Reconstruct merges consecutive rows into logical records. Rows join the
// current record while their scalar (target, value) set equals the record's;
// each such row adds one item per array head it maps values into.
func Reconstruct(t Table, mapping []MappingRule, arrayHeads []string) ([]LogicalRecord, error) {
	for _, m := range mapping {
		if !t.hasColumn(m.Source) {
			return nil, problem(CodeMappingColumnMissing, fmt.Errorf("column %q mapped to %q is not in the file header", m.Source, m.Target))
		}
	}

	var (
		out     []LogicalRecord
		current *LogicalRecord
		scalars map[string]string
	)
	for _, row := range t.Rows {
		pairs := mapRow(row, mapping)
		prim, arrays := splitPairs(pairs, arrayHeads)
		primSet := toSet(prim)

		if current == nil || !sameSet(scalars, primSet) {
			if current != nil {
				out = append(out, *current)
			}
			current = &LogicalRecord{Scalars: map[string]string{}, Arrays: map[string][]ArrayItem{}}
			for _, p := range prim {
				current.Scalars[p.target] = p.value
			}
			scalars = primSet
		}
		current.Rows = append(current.Rows, row.Line)
		appendItems(current, arrays)
	}
	if current != nil {
		out = append(out, *current)
	}
	return out, nil
}

func mapRow(row RawRecord, mapping []MappingRule) []targetValue {
	out := make([]targetValue, 0, len(mapping))
	for _, m := range mapping {
		v := strings.TrimSpace(row.Values[m.Source])
		if v == "" {
			continue
		}
		out = append(out, targetValue{target: m.Target, value: v, path: strings.SplitN(m.Target, ".", 3)})
	}
	return out
}

func splitPairs(pairs []targetValue, arrayHeads []string) (prim, arrays []targetValue) {
	for _, p := range pairs {
		if slices.Contains(arrayHeads, p.path[0]) {
			arrays = append(arrays, p)
		} else {
			prim = append(prim, p)
		}
	}
	return prim, arrays
}

// appendItems adds one item per head, in the order heads first appear in the row.
func appendItems(rec *LogicalRecord, arrays []targetValue) {
	var heads []string
	items := map[string]*ArrayItem{}
	for _, p := range arrays {
		head := p.path[0]
		item, ok := items[head]
		if !ok {
			item = &ArrayItem{Fields: map[string]string{}}
			if len(p.path) > 1 {
				item.Item = p.path[1]
			}
			items[head] = item
			heads = append(heads, head)
		}
		item.Fields[strings.Join(p.path[1:], ".")] = p.value
	}
	for _, head := range heads {
		rec.Arrays[head] = append(rec.Arrays[head], *items[head])
	}
}

func toSet(pairs []targetValue) map[string]string {
	set := make(map[string]string, len(pairs))
	for _, p := range pairs {
		set[p.target] = p.value
	}
	return set
}

func sameSet(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
