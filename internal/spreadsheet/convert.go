package spreadsheet

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// numericRegex matches plain decimal and scientific notation after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// thousandsRegex matches values grouped with comma thousands separators.
var thousandsRegex = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)

const (
	// minExcelSerial is 1927-05-18. Smaller numbers, such as a bare year,
	// are not read as date serials.
	minExcelSerial = 10000
	// maxExcelSerial is 9999-12-31, the last date a workbook can hold.
	maxExcelSerial = 2958465.99999
)

var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05Z07:00",
	}
	localLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04",
		"2006-01-02",
		"2006/01/02 15:04:05",
		"2006/01/02",
		"2006.01.02",
		"1/2/2006 15:04:05",
		"1/2/2006 15:04",
		"1/2/2006",
		"01/02/2006",
		"1-2-2006",
		"01-02-2006",
		"Jan 2, 2006",
		"2 Jan 2006",
		"20060102",
		"2006-01",
		"2006",
	}
)

// toISOTimestamp coerces a timestamp cell into ISO-8601. Numeric cells are
// read as workbook date serials; text cells are matched against known layouts.
func toISOTimestamp(raw string) (string, error) {
	s := cleanCell(raw)
	if s == "" {
		return "", errors.New("empty timestamp")
	}

	if numericRegex.MatchString(s) {
		serial, err := strconv.ParseFloat(s, 64)
		if err == nil && serial >= minExcelSerial && serial <= maxExcelSerial {
			t, err := excelize.ExcelDateToTime(serial, false)
			if err != nil {
				return "", fmt.Errorf("unknown datetime serial %q", s)
			}
			return formatTimestamp(t.Round(time.Millisecond), false), nil
		}
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return formatTimestamp(t, true), nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return formatTimestamp(t, false), nil
		}
	}
	return "", fmt.Errorf("unknown datetime string format, unable to parse: %s", s)
}

func formatTimestamp(t time.Time, withZone bool) string {
	layout := "2006-01-02T15:04:05"
	if t.Nanosecond() != 0 {
		layout += ".000000"
	}
	if withZone {
		layout += "Z07:00"
	}
	return t.Format(layout)
}

// toFloat coerces a value cell. Commas are accepted only as well-formed
// thousands separators; anything else that is not a finite number is rejected.
func toFloat(raw string) (float64, error) {
	s := cleanCell(raw)
	if thousandsRegex.MatchString(s) {
		s = strings.ReplaceAll(s, ",", "")
	}
	if !numericRegex.MatchString(s) {
		return 0, fmt.Errorf("could not convert string to float: %q", raw)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("could not convert string to float: %q", raw)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("value out of range: %q", raw)
	}
	return v, nil
}

// normalizeDateCell renders date-like metadata cells readably. Workbook date
// serials become ISO dates; any other value is returned unchanged.
func normalizeDateCell(s string) string {
	if !numericRegex.MatchString(s) {
		return s
	}
	serial, err := strconv.ParseFloat(s, 64)
	if err != nil || serial < minExcelSerial || serial > maxExcelSerial {
		return s
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return s
	}
	t = t.Round(time.Second)
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return formatTimestamp(t, false)
}
