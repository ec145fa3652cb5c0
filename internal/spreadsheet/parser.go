// Package spreadsheet validates uploaded submission workbooks and extracts
// their metadata record and time series.
//
// Validation short-circuits on the first failure, in this order:
//  1. file format (.xlsx only)
//  2. required headers (all missing columns are reported together)
//  3. metadata consistency (exactly one distinct value per metadata column)
//  4. row-wise series extraction (rows with a null timestamp or value are skipped)
//  5. at least one surviving data row
package spreadsheet

import (
	"io"
	"path/filepath"
	"strings"
)

// AcceptedExtension is the only workbook format the pipeline reads.
const AcceptedExtension = ".xlsx"

// IsAcceptedFile reports whether a file name carries the accepted extension.
func IsAcceptedFile(fileName string) bool {
	return strings.EqualFold(filepath.Ext(strings.TrimSpace(fileName)), AcceptedExtension)
}

// ParseWorkbook checks the file format, reads the first worksheet and validates it.
func ParseWorkbook(fileName string, r io.Reader) (Result, *ParseError) {
	if !IsAcceptedFile(fileName) {
		return Result{}, invalidFormat()
	}
	table, err := ReadXLSX(r)
	if err != nil {
		return Result{}, invalidFormat()
	}
	return Parse(table)
}

// Parse validates a table and returns its metadata and ordered series.
// It has no side effects.
func Parse(t Table) (Result, *ParseError) {
	idx := makeHeaderIndex(t.Header)

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return Result{}, &ParseError{Kind: KindMissingHeaders, Missing: missing}
	}

	values := make(map[string]string, len(MetadataColumns))
	for _, col := range MetadataColumns {
		v, perr := singleValue(t.Rows, idx, col)
		if perr != nil {
			return Result{}, perr
		}
		values[col] = v
	}

	series := make([]Point, 0, len(t.Rows))
	for i, row := range t.Rows {
		rawTS := idx.cell(row, ColumnTimestamp)
		rawValue := idx.cell(row, ColumnValue)
		if rawTS == "" || rawValue == "" {
			continue
		}

		ts, err := toISOTimestamp(rawTS)
		if err != nil {
			return Result{}, &ParseError{Kind: KindInvalidData, Row: i + 2, Detail: err.Error()}
		}
		value, err := toFloat(rawValue)
		if err != nil {
			return Result{}, &ParseError{Kind: KindInvalidData, Row: i + 2, Detail: err.Error()}
		}
		series = append(series, Point{Timestamp: ts, Value: value})
	}
	if len(series) == 0 {
		return Result{}, &ParseError{Kind: KindNoData}
	}

	return Result{
		Metadata: Metadata{
			Title:     values[ColumnTitle],
			Unit:      values[ColumnUnit],
			StartDate: normalizeDateCell(values[ColumnStartDate]),
			EndDate:   normalizeDateCell(values[ColumnEndDate]),
			Type:      values[ColumnType],
			Sector:    values[ColumnSector],
		},
		Series: series,
	}, nil
}

// singleValue returns the one distinct non-null value of a column.
func singleValue(rows [][]string, idx headerIndex, column string) (string, *ParseError) {
	var (
		first    string
		distinct int
	)
	for _, row := range rows {
		v := idx.cell(row, column)
		if v == "" {
			continue
		}
		if distinct == 0 {
			first = v
			distinct = 1
			continue
		}
		if v != first {
			return "", inconsistent(column)
		}
	}
	if distinct == 0 {
		return "", emptyColumn(column)
	}
	return first, nil
}
