package fileparser

import (
	"bytes"
	"errors"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadXLSX reads the first sheet. The first row after skipLines is the header.
func ReadXLSX(content []byte, skipLines int) (Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return Table{}, problem(CodeUploadedFileProblem, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, problem(CodeUploadedFileProblem, errors.New("workbook has no sheets"))
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Table{}, problem(CodeUploadedFileProblem, err)
	}

	var t Table
	for i, cells := range rows {
		if i < skipLines || blankRow(cells) {
			continue
		}
		if t.Columns == nil {
			t.Columns = make([]string, len(cells))
			for j, c := range cells {
				t.Columns[j] = strings.TrimSpace(c)
			}
			continue
		}
		rec := RawRecord{Line: i + 1, Values: make(map[string]string, len(t.Columns))}
		for j, col := range t.Columns {
			if j < len(cells) {
				rec.Values[col] = strings.TrimSpace(cells[j])
			} else {
				rec.Values[col] = ""
			}
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
