package dataset

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/SwapnilGautama/HaloQuality/internal/month"
)

// dateLayouts are tried in order. Slash and dash dates are day-first,
// matching the UK-formatted source workbooks.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"02/01/2006",
	"2/1/2006",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
	"02/01/06",
	"2/1/06",
	"02-01-2006",
	"2-1-2006",
	"02-01-06",
	"2-1-06",
	"Jan 2006",
	"January 2006",
	"Jan-06",
	"2006/01/02",
}

// Excel serial day numbers between 1900-01-01 and 9999-12-31.
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465
)

// monthOf turns a raw date-like cell into a canonical YYYY-MM key.
// It accepts canonical months, the layouts above, and Excel serial dates.
func monthOf(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	if month.Valid(s) {
		return s, true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return month.Of(t), true
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= minExcelSerial && f <= maxExcelSerial {
		t, err := excelize.ExcelDateToTime(f, false)
		if err == nil {
			return month.Of(t), true
		}
	}
	return "", false
}
