package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/palletwatch/internal/model"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var msk = time.FixedZone("MSK", 3*3600)

// createTestEvent creates an event with the fields the records tests read back.
func createTestEvent(id string) model.Event {
	received := time.Date(2025, time.October, 9, 16, 42, 7, 0, msk)
	return model.Event{
		ID:              id,
		ReceivedAt:      received,
		ReturnDate:      model.NewDate(2025, time.October, 11),
		CorrelationTime: time.Date(2025, time.October, 11, 16, 42, 7, 0, msk),
		PartnerCategory: "X5",
		RegionalCenter:  "РЦ Тюмень",
		TractorID:       "А123ВС 72",
		DriverName:      "Иванов И.И.",
		Phone:           "+7 900 000-00-00",
	}
}

func createTestRecord(t *testing.T, ev model.Event, layout Layout, at time.Time) Record {
	t.Helper()
	rec, err := NewRecord(ev, layout, at)
	if err != nil {
		t.Fatalf("NewRecord() failed: %v", err)
	}
	return rec
}
