package fileparser

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXML  Format = "xml"
	FormatXLSX Format = "xlsx"
)

// DetectFormat picks the reader for a file. The extension wins; content
// sniffing on head is the fallback.
func DetectFormat(path string, head []byte) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xml":
		return FormatXML, nil
	case ".xlsx":
		return FormatXLSX, nil
	}

	mtype := mimetype.Detect(head)
	switch {
	case mtype.Is("text/csv"):
		return FormatCSV, nil
	case mtype.Is("text/xml"), mtype.Is("application/xml"):
		return FormatXML, nil
	case mtype.Is("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"):
		return FormatXLSX, nil
	}
	return "", problem(CodeUnsupportedFileType, fmt.Errorf("%s (%s)", filepath.Base(path), mtype.String()))
}
