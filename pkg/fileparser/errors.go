package fileparser

import (
	"errors"
	"fmt"
)

// Error codes reported in ParseError.Code and surfaced as the job note.
const (
	CodeUploadedFileProblem  = "UploadedFileProblem"
	CodeUnsupportedFileType  = "UnsupportedFileType"
	CodeMappingColumnMissing = "MappingColumnMissing"
	CodeUploadFileEmpty      = "UploadFileEmpty"
	CodeFileHasEmptyUnit     = "FileHasEmptyUnit"
)

// ParseError aborts the whole file. Line and LineNumber are set when the
// failure can be pinned to a physical line.
type ParseError struct {
	Code       string
	Line       string
	LineNumber int
	Err        error
}

func (e *ParseError) Error() string {
	msg := e.Code
	if e.LineNumber > 0 {
		msg = fmt.Sprintf("%s: line %d", msg, e.LineNumber)
	}
	if e.Line != "" {
		msg = fmt.Sprintf("%s: %q", msg, e.Line)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// AsParseError reports whether err carries a ParseError.
func AsParseError(err error) (*ParseError, bool) {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

func problem(code string, err error) *ParseError {
	return &ParseError{Code: code, Err: err}
}
