package table

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/roach88/palletwatch/internal/model"
)

// dateLayouts are the textual date forms found in the date column.
var dateLayouts = []string{
	"02.01.2006",
	"2.1.2006",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseCellDate parses a date-column cell: one of the textual layouts, or
// an Excel serial number as stored for date-formatted cells.
func ParseCellDate(v string) (model.Date, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return model.Date{}, fmt.Errorf("empty date cell")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return model.DateOf(t), nil
		}
	}
	if serial, err := strconv.ParseFloat(v, 64); err == nil && serial > 0 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return model.Date{}, fmt.Errorf("date serial %q: %w", v, err)
		}
		return model.DateOf(t), nil
	}
	return model.Date{}, fmt.Errorf("unrecognized date cell %q", v)
}
