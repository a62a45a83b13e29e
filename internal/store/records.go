package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/palletwatch/internal/model"
)

// Layout selects how an output record is laid out.
type Layout string

const (
	// LayoutRow writes one wide row per event.
	LayoutRow Layout = "row"
	// LayoutKV writes one (key, value) row per field, in output order.
	LayoutKV Layout = "kv"
)

// ParseLayout maps a configuration value onto a Layout.
func ParseLayout(s string) (Layout, error) {
	switch Layout(s) {
	case LayoutRow, LayoutKV:
		return Layout(s), nil
	}
	return "", fmt.Errorf("unknown record layout %q (want row or kv)", s)
}

// Record is one output record.
type Record struct {
	ID        string
	EventID   string
	Layout    Layout
	WrittenAt time.Time
	Fields    []model.KeyValue
}

// NewRecord builds the output record for ev with a fresh UUIDv7 id.
func NewRecord(ev model.Event, layout Layout, at time.Time) (Record, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Record{}, fmt.Errorf("new record: %w", err)
	}
	return Record{
		ID:        id.String(),
		EventID:   ev.ID,
		Layout:    layout,
		WrittenAt: at,
		Fields:    ev.Fields(),
	}, nil
}

// rowColumns are the wide columns of the records table, in output order.
// They match the keys of model.Event.Fields.
var rowColumns = []string{
	"received_at", "return_date", "correlation_time",
	"partner_category", "regional_center",
	"tractor_id", "trailer_id", "driver_name",
	"passport", "license_number", "phone", "tax_id", "extra_notes",
}

// AppendRecord writes rec. Uses ON CONFLICT(event_id) DO NOTHING: a second
// record for the same event is silently ignored and inserted reports false.
func (s *Store) AppendRecord(ctx context.Context, rec Record) (inserted bool, err error) {
	if rec.EventID == "" {
		return false, fmt.Errorf("append record: empty event id")
	}
	if _, err := ParseLayout(string(rec.Layout)); err != nil {
		return false, fmt.Errorf("append record: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("append record: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	cols := []string{"id", "event_id", "layout", "written_at"}
	args := []any{rec.ID, rec.EventID, string(rec.Layout), rec.WrittenAt.UTC().Format(time.RFC3339Nano)}
	if rec.Layout == LayoutRow {
		values := fieldMap(rec.Fields)
		for _, c := range rowColumns {
			cols = append(cols, c)
			args = append(args, values[c])
		}
	}

	query := fmt.Sprintf(
		"INSERT INTO records (%s) VALUES (%s) ON CONFLICT(event_id) DO NOTHING",
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
	)
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("append record: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("append record: rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	if rec.Layout == LayoutKV {
		for i, kv := range rec.Fields {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO record_fields (record_id, position, key, value)
				VALUES (?, ?, ?, ?)
			`, rec.ID, i, kv.Key, kv.Value); err != nil {
				return false, fmt.Errorf("append record field %q: %w", kv.Key, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("append record: commit: %w", err)
	}
	return true, nil
}

// HasRecord reports whether a record for eventID exists.
func (s *Store) HasRecord(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM records WHERE event_id = ?)", eventID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has record: %w", err)
	}
	return exists, nil
}

// ReadRecord returns the record written for eventID, or ErrNotFound.
func (s *Store) ReadRecord(ctx context.Context, eventID string) (Record, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT id, event_id, layout, written_at, %s FROM records WHERE event_id = ?",
		strings.Join(rowColumns, ", "),
	), eventID)

	rec, wide, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("read record %s: %w", eventID, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("read record %s: %w", eventID, err)
	}
	if err := s.completeRecord(ctx, &rec, wide); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Records returns up to limit records, newest first. A limit <= 0 returns all.
func (s *Store) Records(ctx context.Context, limit int) ([]Record, error) {
	query := fmt.Sprintf(
		"SELECT id, event_id, layout, written_at, %s FROM records ORDER BY written_at DESC, id DESC",
		strings.Join(rowColumns, ", "),
	)
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	type scanned struct {
		rec  Record
		wide []sql.NullString
	}
	var all []scanned
	for rows.Next() {
		rec, wide, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		all = append(all, scanned{rec, wide})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	rows.Close()

	// record_fields are read after the cursor is closed; the pool holds one connection.
	records := make([]Record, 0, len(all))
	for _, sc := range all {
		if err := s.completeRecord(ctx, &sc.rec, sc.wide); err != nil {
			return nil, err
		}
		records = append(records, sc.rec)
	}
	return records, nil
}

// CountRecords returns the number of stored records.
func (s *Store) CountRecords(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, []sql.NullString, error) {
	var (
		rec       Record
		layout    string
		writtenAt string
	)
	wide := make([]sql.NullString, len(rowColumns))
	dest := []any{&rec.ID, &rec.EventID, &layout, &writtenAt}
	for i := range wide {
		dest = append(dest, &wide[i])
	}
	if err := row.Scan(dest...); err != nil {
		return Record{}, nil, err
	}
	rec.Layout = Layout(layout)
	t, err := time.Parse(time.RFC3339Nano, writtenAt)
	if err != nil {
		return Record{}, nil, fmt.Errorf("parse written_at %q: %w", writtenAt, err)
	}
	rec.WrittenAt = t
	return rec, wide, nil
}

func (s *Store) completeRecord(ctx context.Context, rec *Record, wide []sql.NullString) error {
	if rec.Layout == LayoutRow {
		rec.Fields = make([]model.KeyValue, len(rowColumns))
		for i, c := range rowColumns {
			rec.Fields[i] = model.KeyValue{Key: c, Value: wide[i].String}
		}
		return nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value FROM record_fields
		WHERE record_id = ?
		ORDER BY position ASC
	`, rec.ID)
	if err != nil {
		return fmt.Errorf("query record fields: %w", err)
	}
	defer rows.Close()

	rec.Fields = []model.KeyValue{}
	for rows.Next() {
		var kv model.KeyValue
		if err := rows.Scan(&kv.Key, &kv.Value); err != nil {
			return fmt.Errorf("scan record field: %w", err)
		}
		rec.Fields = append(rec.Fields, kv)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate record fields: %w", err)
	}
	return nil
}

func fieldMap(fields []model.KeyValue) map[string]string {
	m := make(map[string]string, len(fields))
	for _, kv := range fields {
		m[kv.Key] = kv.Value
	}
	return m
}
