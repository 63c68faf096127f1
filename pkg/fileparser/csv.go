package fileparser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

type physicalLine struct {
	number int
	text   string
}

// ReadCSV tokenizes content with delimiter after skipping skipLines lines.
// Quote characters are stripped first, so every record occupies one line and
// a field count mismatch on any line fails the whole file.
func ReadCSV(content []byte, delimiter string, skipLines int) (Table, error) {
	comma, err := delimiterRune(delimiter)
	if err != nil {
		return Table{}, problem(CodeUploadedFileProblem, err)
	}
	decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), content)
	if err != nil {
		return Table{}, problem(CodeUploadedFileProblem, err)
	}
	text := strings.ReplaceAll(string(decoded), `"`, "")

	var kept []physicalLine
	for i, line := range splitLines(text) {
		if i < skipLines || strings.TrimSpace(line) == "" {
			continue
		}
		kept = append(kept, physicalLine{number: i + 1, text: line})
	}
	if len(kept) == 0 {
		return Table{}, nil
	}

	body := make([]string, len(kept))
	for i, l := range kept {
		body[i] = l.text
	}
	r := csv.NewReader(strings.NewReader(strings.Join(body, "\n")))
	r.Comma = comma
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return Table{}, &ParseError{Code: CodeUploadedFileProblem, Line: kept[0].text, LineNumber: kept[0].number, Err: err}
	}
	t := Table{Columns: make([]string, len(header))}
	for i, h := range header {
		t.Columns[i] = strings.TrimSpace(h)
	}

	var offending *physicalLine
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if offending == nil && errors.As(err, &pe) && pe.StartLine >= 1 && pe.StartLine <= len(kept) {
				offending = &kept[pe.StartLine-1]
			}
			if errors.Is(err, csv.ErrFieldCount) {
				continue
			}
			break
		}
		line, _ := r.FieldPos(0)
		row := RawRecord{Line: kept[line-1].number, Values: make(map[string]string, len(rec))}
		for i, v := range rec {
			row.Values[t.Columns[i]] = strings.TrimSpace(v)
		}
		t.Rows = append(t.Rows, row)
	}

	if expected := len(kept) - 1; len(t.Rows) != expected {
		pe := &ParseError{
			Code: CodeUploadedFileProblem,
			Err:  fmt.Errorf("parsed %d rows from %d lines", len(t.Rows), expected),
		}
		if offending != nil {
			pe.Line, pe.LineNumber = offending.text, offending.number
		}
		return Table{}, pe
	}
	return t, nil
}

// delimiterText spells the tab aliases as the character itself.
func delimiterText(delimiter string) string {
	if delimiter == `\t` || delimiter == "tab" {
		return "\t"
	}
	return delimiter
}

func delimiterRune(delimiter string) (rune, error) {
	switch delimiter {
	case "":
		return ',', nil
	case `\t`, "tab":
		return '\t', nil
	}
	if utf8.RuneCountInString(delimiter) != 1 {
		return 0, fmt.Errorf("delimiter %q must be a single character", delimiter)
	}
	r, _ := utf8.DecodeRuneInString(delimiter)
	return r, nil
}
