package spreadsheet

import "strings"

// Column names every submission workbook must carry.
const (
	ColumnTimestamp = "timestamp"
	ColumnValue     = "value"
	ColumnTitle     = "title"
	ColumnUnit      = "unit"
	ColumnStartDate = "start_date"
	ColumnEndDate   = "end_date"
	ColumnType      = "type"
	ColumnSector    = "sector"
)

// RequiredColumns lists the header set in the order missing columns are reported.
var RequiredColumns = []string{
	ColumnTimestamp,
	ColumnValue,
	ColumnTitle,
	ColumnUnit,
	ColumnStartDate,
	ColumnEndDate,
	ColumnType,
	ColumnSector,
}

// MetadataColumns must hold exactly one distinct value across all rows.
// The order here decides which column is reported when several disagree.
var MetadataColumns = []string{
	ColumnTitle,
	ColumnUnit,
	ColumnStartDate,
	ColumnEndDate,
	ColumnType,
	ColumnSector,
}

// Table is a single worksheet: a header row followed by data rows.
// An empty or whitespace-only cell is treated as null.
type Table struct {
	Header []string
	Rows   [][]string
}

// Metadata is the descriptive record shared by every row of a submission.
type Metadata struct {
	Title     string `json:"title"`
	Unit      string `json:"unit"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Type      string `json:"type"`
	Sector    string `json:"sector"`
}

// Point is one time-series observation.
type Point struct {
	Timestamp string  `json:"timestamp"`
	Value     float64 `json:"value"`
}

// Result is a successfully validated workbook.
type Result struct {
	Metadata Metadata `json:"metadata"`
	Series   []Point  `json:"series"`
}

type headerIndex map[string]int

func makeHeaderIndex(header []string) headerIndex {
	idx := make(headerIndex, len(header))
	for i, h := range header {
		key := cleanCell(h)
		if key == "" {
			continue
		}
		if _, seen := idx[key]; seen {
			continue
		}
		idx[key] = i
	}
	return idx
}

// cell returns the cleaned value at the named column, or "" when the row is short.
func (h headerIndex) cell(row []string, column string) string {
	pos, ok := h[column]
	if !ok || pos >= len(row) {
		return ""
	}
	return cleanCell(row[pos])
}

func cleanCell(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "\ufeff")
	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}
	return strings.TrimSpace(s)
}
