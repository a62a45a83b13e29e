package table

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/palletwatch/internal/model"
)

// Column is a logical column of the operational table.
type Column string

const (
	ColDate     Column = "date"
	ColCenter   Column = "center"
	ColSupplier Column = "supplier"
	ColDriver   Column = "driver"
	ColVehicle  Column = "vehicle"
)

// Matcher recognizes one column's header. With Exact set the header must
// equal the single term; otherwise every term must occur in the header.
// Both comparisons ignore case and Unicode normalization.
type Matcher struct {
	Terms []string `yaml:"terms" json:"terms"`
	Exact bool     `yaml:"exact" json:"exact"`
}

// Matches reports whether header satisfies m.
func (m Matcher) Matches(header string) bool {
	if len(m.Terms) == 0 || model.IsEmptyCell(header) {
		return false
	}
	if m.Exact {
		return model.FoldEqual(header, m.Terms[0])
	}
	for _, term := range m.Terms {
		if !model.FoldContains(header, term) {
			return false
		}
	}
	return true
}

// Vocabulary maps each logical column to its header matcher.
type Vocabulary map[Column]Matcher

// columnOrder fixes the discovery and error-reporting order.
var columnOrder = []Column{ColDate, ColCenter, ColSupplier, ColDriver, ColVehicle}

// DefaultVocabulary returns the header vocabulary of the "приход" sheet.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		ColDate:     {Terms: []string{"дата"}, Exact: true},
		ColCenter:   {Terms: []string{"рц", "(выберите из списка)"}},
		ColSupplier: {Terms: []string{"поставщик"}},
		ColDriver:   {Terms: []string{"водитель", "фамилия"}},
		ColVehicle:  {Terms: []string{"номер ам"}, Exact: true},
	}
}

// Columns maps discovered logical columns to 0-based header positions.
type Columns map[Column]int

// Has reports whether c was discovered.
func (c Columns) Has(col Column) bool {
	_, ok := c[col]
	return ok
}

// ColumnError reports required columns whose header was not found.
type ColumnError struct {
	Missing []Column
}

func (e *ColumnError) Error() string {
	names := make([]string, len(e.Missing))
	for i, c := range e.Missing {
		names[i] = string(c)
	}
	return fmt.Sprintf("table: columns not found: %s", strings.Join(names, ", "))
}

// Discover locates vocabulary columns in headers. The first header that
// matches a column wins, and a header is assigned to at most one column.
// A required column that is not found yields a *ColumnError; the columns
// that were found are returned alongside it.
func Discover(headers []string, vocab Vocabulary, required ...Column) (Columns, error) {
	cols := make(Columns, len(vocab))
	taken := make(map[int]bool, len(headers))

	for _, col := range orderedColumns(vocab) {
		m := vocab[col]
		for i, h := range headers {
			if taken[i] || !m.Matches(h) {
				continue
			}
			cols[col] = i
			taken[i] = true
			break
		}
	}

	var missing []Column
	for _, col := range required {
		if !cols.Has(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return cols, &ColumnError{Missing: missing}
	}
	return cols, nil
}

// orderedColumns returns the vocabulary's columns, known ones first in
// columnOrder, then any extra ones sorted by name.
func orderedColumns(vocab Vocabulary) []Column {
	out := make([]Column, 0, len(vocab))
	known := make(map[Column]bool, len(columnOrder))
	for _, c := range columnOrder {
		known[c] = true
		if _, ok := vocab[c]; ok {
			out = append(out, c)
		}
	}
	var extra []Column
	for c := range vocab {
		if !known[c] {
			extra = append(extra, c)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}
