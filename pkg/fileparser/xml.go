package fileparser

import (
	"bytes"
	"strings"

	"github.com/antchfx/xmlquery"
)

// ReadXML treats every child element of the document root as one record.
// Child element text becomes a value; record attributes are keyed "@name".
func ReadXML(content []byte) (Table, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(content))
	if err != nil {
		return Table{}, problem(CodeUploadedFileProblem, err)
	}

	var t Table
	seen := map[string]bool{}
	addColumn := func(name string) {
		if !seen[name] {
			seen[name] = true
			t.Columns = append(t.Columns, name)
		}
	}

	for i, node := range xmlquery.Find(doc, "/*/*") {
		rec := RawRecord{Line: i + 1, Values: map[string]string{}}
		for _, attr := range node.Attr {
			key := "@" + attr.Name.Local
			rec.Values[key] = strings.TrimSpace(attr.Value)
			addColumn(key)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			if child.Type != xmlquery.ElementNode {
				continue
			}
			rec.Values[child.Data] = strings.TrimSpace(child.InnerText())
			addColumn(child.Data)
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}
