package spreadsheet

import (
	"fmt"
	"strings"
)

// ErrorKind classifies why a workbook was rejected.
type ErrorKind string

const (
	KindInvalidFormat  ErrorKind = "invalid_format"
	KindMissingHeaders ErrorKind = "missing_headers"
	KindInconsistent   ErrorKind = "inconsistent_values"
	KindInvalidData    ErrorKind = "invalid_data"
	KindNoData         ErrorKind = "no_data"
)

// ParseError is a classified content problem. Its message is what the
// data provider sees on the submission.
type ParseError struct {
	Kind    ErrorKind
	Column  string
	Row     int
	Missing []string
	Detail  string
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case KindInvalidFormat:
		return "invalid format"
	case KindMissingHeaders:
		return fmt.Sprintf("missing headers: [%s]", strings.Join(e.Missing, ", "))
	case KindInconsistent:
		if e.Detail != "" {
			return e.Detail
		}
		return "inconsistent values in " + e.Column
	case KindInvalidData:
		return fmt.Sprintf("invalid data in row %d: %s", e.Row, e.Detail)
	case KindNoData:
		return "no valid data rows"
	default:
		return "invalid spreadsheet"
	}
}

func invalidFormat() *ParseError {
	return &ParseError{Kind: KindInvalidFormat}
}

func inconsistent(column string) *ParseError {
	return &ParseError{Kind: KindInconsistent, Column: column}
}

func emptyColumn(column string) *ParseError {
	return &ParseError{
		Kind:   KindInconsistent,
		Column: column,
		Detail: fmt.Sprintf("column %s is entirely empty", column),
	}
}
