package fileparser

import (
	"os"

	"github.com/go-faster/errors"
)

// ParseFile reads path, mutates it for CSV input and reconstructs its logical records.
func ParseFile(path string, opts Options) ([]LogicalRecord, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, problem(CodeUploadedFileProblem, errors.Wrap(err, "read upload"))
	}
	head := content
	if len(head) > 3072 {
		head = head[:3072]
	}
	format, err := DetectFormat(path, head)
	if err != nil {
		return nil, err
	}
	return Parse(content, format, opts)
}

// Parse reconstructs the logical records of content in the given format.
func Parse(content []byte, format Format, opts Options) ([]LogicalRecord, error) {
	opts.setDefaults()

	var (
		t   Table
		err error
	)
	switch format {
	case FormatCSV:
		t, err = ReadCSV(MutateFile(content, delimiterText(opts.Delimiter)), opts.Delimiter, opts.SkipLines)
	case FormatXML:
		t, err = ReadXML(content)
	case FormatXLSX:
		t, err = ReadXLSX(content, opts.SkipLines)
	default:
		return nil, problem(CodeUnsupportedFileType, errors.Errorf("format %q", format))
	}
	if err != nil {
		return nil, err
	}
	return Reconstruct(t, opts.Mapping, opts.ArrayHeads)
}

// CheckRecords rejects a file without records or with a record that maps no values.
func CheckRecords(records []LogicalRecord) error {
	if len(records) == 0 {
		return problem(CodeUploadFileEmpty, nil)
	}
	for _, r := range records {
		if r.IsEmpty() {
			pe := problem(CodeFileHasEmptyUnit, nil)
			if len(r.Rows) > 0 {
				pe.LineNumber = r.Rows[0]
			}
			return pe
		}
	}
	return nil
}
