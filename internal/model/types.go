package model

import (
	"fmt"
	"time"
)

// Event is one return notification after extraction.
//
// ID is the opaque identifier assigned by the mail source; it is unique for
// the lifetime of the ledger. Events are never mutated once extraction
// returns them.
type Event struct {
	ID         string
	ReceivedAt time.Time

	// ReturnDate is the date stated in the body; zero when the body has none
	// or it failed to parse.
	ReturnDate Date

	// CorrelationTime is ReceivedAt with its date replaced by ReturnDate
	// (time-of-day preserved). Equal to ReceivedAt when ReturnDate is zero.
	CorrelationTime time.Time

	PartnerCategory string
	RegionalCenter  string
	TractorID       string
	TrailerID       string
	DriverName      string
	Passport        string
	LicenseNumber   string
	Phone           string
	TaxID           string
	ExtraNotes      string

	// Warnings collects recoverable extraction problems (e.g. a bad date token).
	Warnings []string
}

// EffectiveReturnDate returns ReturnDate, or the received date when unset.
func (e Event) EffectiveReturnDate() Date {
	if !e.ReturnDate.IsZero() {
		return e.ReturnDate
	}
	return DateOf(e.ReceivedAt)
}

// Value returns the event's value for a fillable table field.
func (e Event) Value(f Field) string {
	switch f {
	case FieldDriver:
		return e.DriverName
	case FieldTractor:
		return e.TractorID
	}
	return ""
}

// KeyValue is one named field of an event in output order.
type KeyValue struct {
	Key   string
	Value string
}

// Fields lists the event's fields in the fixed output-record order.
func (e Event) Fields() []KeyValue {
	return []KeyValue{
		{"received_at", e.ReceivedAt.Format(time.RFC3339)},
		{"return_date", e.ReturnDate.String()},
		{"correlation_time", e.CorrelationTime.Format(time.RFC3339)},
		{"partner_category", e.PartnerCategory},
		{"regional_center", e.RegionalCenter},
		{"tractor_id", e.TractorID},
		{"trailer_id", e.TrailerID},
		{"driver_name", e.DriverName},
		{"passport", e.Passport},
		{"license_number", e.LicenseNumber},
		{"phone", e.Phone},
		{"tax_id", e.TaxID},
		{"extra_notes", e.ExtraNotes},
	}
}

// Field names a fillable column of the operational table.
type Field string

const (
	FieldDriver  Field = "driver"
	FieldTractor Field = "tractor"
)

// ParseField maps a configuration name onto a Field.
func ParseField(s string) (Field, error) {
	switch Field(s) {
	case FieldDriver, FieldTractor:
		return Field(s), nil
	}
	return "", fmt.Errorf("unknown field %q (want driver or tractor)", s)
}

// Row is one parsed row of the operational table, keyed by (Date, Center).
type Row struct {
	// Index is the 1-based row number in the backing sheet (header is row 1).
	Index    int
	Date     Date
	Center   string
	Supplier string
	Driver   string
	Tractor  string
}

// Value returns the row's current value for f.
func (r Row) Value(f Field) string {
	switch f {
	case FieldDriver:
		return r.Driver
	case FieldTractor:
		return r.Tractor
	}
	return ""
}

// Filled reports whether the cell for f holds a real value.
func (r Row) Filled(f Field) bool {
	return !IsEmptyCell(r.Value(f))
}

// DispatchKey identifies one reminder rule instance for one table key.
// At most one notification is sent per key.
type DispatchKey struct {
	Date   Date
	Center string
	Kind   string
}

func (k DispatchKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Date, NormalizeLabel(k.Center), k.Kind)
}
