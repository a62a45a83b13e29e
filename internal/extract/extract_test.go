package extract

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/palletwatch/internal/model"
)

const fullBody = `Добрый день!

Дата 11.10.2025 возврат
Сеть | X5 | РЦ Тюмень
Тягач: А123ВС 72
Прицеп: ВВ 1234 72
Ф.И.О. водителя: Иванов Иван Иванович
Паспорт: 7100 123456
Номер ВУ: 72 12 345678
Телефон: +7 900 000-00-00
ИНН: 720000000000
Дополнительная информация: звонить за час
`

var received = time.Date(2025, time.October, 9, 16, 42, 7, 0, time.FixedZone("MSK", 3*3600))

func TestExtract_FullTemplate(t *testing.T) {
	ev, err := New().Extract(fullBody, received)
	require.NoError(t, err)

	assert.Equal(t, "X5", ev.PartnerCategory)
	assert.Equal(t, "РЦ Тюмень", ev.RegionalCenter)
	assert.Equal(t, "А123ВС 72", ev.TractorID)
	assert.Equal(t, "ВВ 1234 72", ev.TrailerID)
	assert.Equal(t, "Иванов Иван Иванович", ev.DriverName)
	assert.Equal(t, "7100 123456", ev.Passport)
	assert.Equal(t, "72 12 345678", ev.LicenseNumber)
	assert.Equal(t, "+7 900 000-00-00", ev.Phone)
	assert.Equal(t, "720000000000", ev.TaxID)
	assert.Equal(t, "звонить за час", ev.ExtraNotes)
	assert.Empty(t, ev.Warnings)
	assert.Empty(t, ev.ID, "extractor never assigns ids")
}

func TestExtract_ReturnDateKeepsTimeOfDay(t *testing.T) {
	ev, err := New().Extract(fullBody, received)
	require.NoError(t, err)

	assert.Equal(t, model.NewDate(2025, time.October, 11), ev.ReturnDate)
	assert.Equal(t, time.Date(2025, time.October, 11, 16, 42, 7, 0, received.Location()), ev.CorrelationTime)
	assert.Equal(t, received, ev.ReceivedAt)
	assert.Equal(t, model.NewDate(2025, time.October, 11), ev.EffectiveReturnDate())
}

func TestExtract_NetworkLineTrimmed(t *testing.T) {
	tests := []struct {
		line     string
		category string
		center   string
	}{
		{"Сеть | Тандер | РЦ Екатеринбург", "Тандер", "РЦ Екатеринбург"},
		{"Сеть|X5|РЦ Пермь", "X5", "РЦ Пермь"},
		{"Сеть   |   Лента   |   РЦ Тюмень   ", "Лента", "РЦ Тюмень"},
		{"Сеть | X5", "X5", ""},
		{"Сеть", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			ev, err := New().Extract(tt.line, received)
			require.NoError(t, err)
			assert.Equal(t, tt.category, ev.PartnerCategory)
			assert.Equal(t, tt.center, ev.RegionalCenter)
		})
	}
}

func TestExtract_MissingDateFallsBackToReceived(t *testing.T) {
	ev, err := New().Extract("Сеть | X5 | РЦ Тюмень", received)
	require.NoError(t, err)

	assert.True(t, ev.ReturnDate.IsZero())
	assert.Equal(t, received, ev.CorrelationTime)
	assert.Equal(t, model.DateOf(received), ev.EffectiveReturnDate())
}

func TestExtract_BadDateDegrades(t *testing.T) {
	ev, err := New().Extract("Дата 32.13.2025 возврат\nСеть | X5 | РЦ Тюмень", received)
	require.NoError(t, err)

	assert.True(t, ev.ReturnDate.IsZero())
	assert.Equal(t, received, ev.CorrelationTime)
	require.Len(t, ev.Warnings, 1)
	assert.Contains(t, ev.Warnings[0], "32.13.2025")
}

func TestExtract_ReturnKeywordCaseInsensitive(t *testing.T) {
	ev, err := New().Extract("ВОЗВРАТ поддонов 03.11.2025", received)
	require.NoError(t, err)
	assert.Equal(t, model.NewDate(2025, time.November, 3), ev.ReturnDate)
}

func TestExtract_DateWithoutKeywordIgnored(t *testing.T) {
	ev, err := New().Extract("Дата 03.11.2025", received)
	require.NoError(t, err)
	assert.True(t, ev.ReturnDate.IsZero())
}

func TestExtract_FieldLineWithoutColonIsEmpty(t *testing.T) {
	ev, err := New().Extract("Тягач А123ВС\nТелефон: 123", received)
	require.NoError(t, err)
	assert.Empty(t, ev.TractorID)
	assert.Equal(t, "123", ev.Phone)
}

func TestExtract_FieldValueKeepsLaterColons(t *testing.T) {
	ev, err := New().Extract("Дополнительная информация: окно: 10:00-12:00", received)
	require.NoError(t, err)
	assert.Equal(t, "окно: 10:00-12:00", ev.ExtraNotes)
}

func TestExtract_PrefixIsCaseSensitive(t *testing.T) {
	ev, err := New().Extract("тягач: А123ВС", received)
	require.NoError(t, err)
	assert.Empty(t, ev.TractorID)
}

func TestExtract_NotesMentioningReturnStayNotes(t *testing.T) {
	ev, err := New().Extract("Дополнительная информация: возврат перенесён с 10.10.2025", received)
	require.NoError(t, err)
	assert.True(t, ev.ReturnDate.IsZero())
	assert.Equal(t, "возврат перенесён с 10.10.2025", ev.ExtraNotes)
}

func TestExtract_CRLFAndBOM(t *testing.T) {
	body := "\ufeffСеть | X5 | РЦ Тюмень\r\nТягач: А123ВС\r\n"
	ev, err := New().Extract(body, received)
	require.NoError(t, err)
	assert.Equal(t, "X5", ev.PartnerCategory)
	assert.Equal(t, "А123ВС", ev.TractorID)
}

func TestExtract_InvalidUTF8IsParseFailure(t *testing.T) {
	_, err := New().Extract("Сеть | X5 \xff\xfe", received)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse))
}

func TestExtractReader_ReadFailure(t *testing.T) {
	r := iotest.ErrReader(errors.New("connection reset"))
	_, err := New().ExtractReader(r, received)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse))
	assert.Contains(t, err.Error(), "connection reset")
}

func TestExtract_EmptyBody(t *testing.T) {
	ev, err := New().Extract("", received)
	require.NoError(t, err)
	assert.Equal(t, received, ev.ReceivedAt)
	assert.Empty(t, ev.PartnerCategory)
}

func TestNew_CustomRulesFirstMatchWins(t *testing.T) {
	calls := []string{}
	rule := func(name string) Rule {
		return Rule{
			Name:  name,
			Match: func(line string) bool { return strings.HasPrefix(line, "K") },
			Apply: func(line string, ev *model.Event) { calls = append(calls, name) },
		}
	}
	x := New(rule("first"), rule("second"))
	_, err := x.Extract("K1\nK2\nother", received)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "first"}, calls)
}
