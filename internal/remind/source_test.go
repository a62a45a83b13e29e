package remind

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/palletwatch/internal/correlate"
	"github.com/roach88/palletwatch/internal/model"
	"github.com/roach88/palletwatch/internal/table"
)

var prihod = []string{
	"дата",
	"РЦ (выберите из списка)",
	"Поставщик (выберите из списка)",
	"водитель Фамилия И.О.",
	"номер ам",
}

func newTable() *table.Memory {
	return table.NewMemory(prihod,
		[]string{"13.10.2025", "Тюмень", "X5 Тюмень", "", ""},
		[]string{"13.10.2025", "Пермь", "Тандер", "Иванов", "А123ВС"},
		[]string{"", "Тюмень", "X5", "", ""},
		[]string{"14.10.2025", "nan", "X5", "", ""},
	)
}

func TestTableSource_Targets(t *testing.T) {
	c := correlate.New(newTable(), correlate.Options{})

	targets, err := TableSource{Rows: c}.Targets(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, targets, 2, "rows without date or center are skipped")

	assert.Equal(t, oct13, targets[0].ReturnDate)
	assert.Equal(t, "Тюмень", targets[0].Center)
	assert.Equal(t, "X5 Тюмень", targets[0].Label)
	assert.Equal(t, "Тандер", targets[1].Label)
	assert.Equal(t, "Иванов", targets[1].Row.Driver)
}

func TestTableSource_MissingColumns(t *testing.T) {
	sheet := table.NewMemory([]string{"дата", "номер ам"}, []string{"13.10.2025", "А1"})
	c := correlate.New(sheet, correlate.Options{})

	_, err := TableSource{Rows: c}.Targets(context.Background(), time.Now())
	var colErr *table.ColumnError
	assert.ErrorAs(t, err, &colErr)
}

func TestEventSource_Targets(t *testing.T) {
	c := correlate.New(newTable(), correlate.Options{})
	src := NewEventSource(c)

	src.Remember(model.Event{ID: "b", ReturnDate: oct13, RegionalCenter: "Пермь"})
	src.Remember(model.Event{ID: "a", ReturnDate: oct13, RegionalCenter: "Тюмень", PartnerCategory: "X5 из письма"})
	src.Remember(model.Event{ID: "c", ReturnDate: oct13, RegionalCenter: "Сочи"})
	src.Remember(model.Event{ReturnDate: oct13, RegionalCenter: "Тюмень"})
	require.Equal(t, 3, src.Len(), "events without an id are ignored")

	targets, err := src.Targets(context.Background(), oct13.At(8, 0, msk))
	require.NoError(t, err)
	require.Len(t, targets, 2, "events without a table row are skipped")

	assert.Equal(t, "a", targets[0].EventID)
	assert.Equal(t, "X5 из письма", targets[0].Label)
	assert.Equal(t, "b", targets[1].EventID)
	assert.Equal(t, "Тандер", targets[1].Label, "label falls back to the supplier cell")
	assert.Equal(t, "А123ВС", targets[1].Row.Tractor)
}

func TestEventSource_PrunesPastReturns(t *testing.T) {
	src := NewEventSource(correlate.New(newTable(), correlate.Options{}))
	src.Remember(model.Event{ID: "a", ReturnDate: oct13, RegionalCenter: "Тюмень"})

	targets, err := src.Targets(context.Background(), oct13.AddDays(1).At(0, 0, msk))
	require.NoError(t, err)
	assert.Empty(t, targets)
	assert.Equal(t, 0, src.Len())
}

type failingFinder struct{ err error }

func (f failingFinder) FindRow(ctx context.Context, date model.Date, center string) (model.Row, error) {
	return model.Row{}, f.err
}

func TestEventSource_FinderError(t *testing.T) {
	boom := errors.New("sheet unreadable")
	src := NewEventSource(failingFinder{err: boom})
	src.Remember(model.Event{ID: "a", ReturnDate: oct13, RegionalCenter: "Тюмень"})

	_, err := src.Targets(context.Background(), oct13.At(8, 0, time.UTC))
	assert.ErrorIs(t, err, boom)
}
