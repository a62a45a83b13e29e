package remind

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/palletwatch/internal/model"
	"github.com/roach88/palletwatch/internal/notify"
	"github.com/roach88/palletwatch/internal/store"
	"github.com/roach88/palletwatch/internal/testutil"
)

var msk = time.FixedZone("MSK", 3*3600)

type staticSource []Target

func (s staticSource) Targets(ctx context.Context, now time.Time) ([]Target, error) {
	return s, nil
}

type errSource struct{ err error }

func (s errSource) Targets(ctx context.Context, now time.Time) ([]Target, error) {
	return nil, s.err
}

func categoriesWithRecipients() []Category {
	cats := DefaultCategories()
	for i := range cats {
		cats[i].Recipients = []string{cats[i].Name + "@example.com"}
	}
	return cats
}

func newScheduler(t *testing.T, src Source, sender notify.Sender, claims Claims) *Scheduler {
	t.Helper()
	cl, err := NewClassifier(categoriesWithRecipients(), DefaultExcluded)
	require.NoError(t, err)
	s, err := New(Options{
		Classifier: cl,
		Source:     src,
		Sender:     sender,
		Claims:     claims,
		Location:   msk,
	})
	require.NoError(t, err)
	return s
}

func at(d model.Date, h, m, sec int) time.Time {
	return d.At(h, m, msk).Add(time.Duration(sec) * time.Second)
}

func emptyRow(supplier string) model.Row {
	return model.Row{Supplier: supplier, Driver: "nan"}
}

func filledRow(supplier string) model.Row {
	return model.Row{Supplier: supplier, Driver: "Иванов И.И.", Tractor: "А123ВС"}
}

func TestSweep_SameDayNeedDataAtNoon(t *testing.T) {
	ctx := context.Background()
	sender := &testutil.Sender{}
	src := staticSource{{ReturnDate: oct13, Center: "Тюмень", Label: "X5 Тюмень", Row: emptyRow("X5 Тюмень")}}
	s := newScheduler(t, src, sender, nil)

	n, err := s.Sweep(ctx, at(oct13, 11, 59, 30))
	require.NoError(t, err)
	assert.Equal(t, 0, n, "before the mark")

	n, err = s.Sweep(ctx, at(oct13, 12, 0, 20))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.Sweep(ctx, at(oct13, 12, 0, 40))
	require.NoError(t, err)
	assert.Equal(t, 0, n, "second sweep in the same window sends nothing")

	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"x5@example.com"}, sent[0].To)
	assert.Contains(t, sent[0].Subject, "Напоминание (X5)")
	assert.Contains(t, sent[0].Body, "Дата возврата: 13.10.2025")
}

func TestSweep_MissedWindowNeverFires(t *testing.T) {
	sender := &testutil.Sender{}
	src := staticSource{{ReturnDate: oct13, Center: "Тюмень", Label: "X5", Row: emptyRow("X5")}}
	s := newScheduler(t, src, sender, nil)

	n, err := s.Sweep(context.Background(), at(oct13, 12, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, sender.Sent())
}

func TestSweep_ConvertsToLocation(t *testing.T) {
	sender := &testutil.Sender{}
	src := staticSource{{ReturnDate: oct13, Center: "Тюмень", Label: "X5", Row: emptyRow("X5")}}
	s := newScheduler(t, src, sender, nil)

	// 09:00 UTC is noon in Moscow.
	n, err := s.Sweep(context.Background(), time.Date(2025, time.October, 13, 9, 0, 10, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSweep_DayBeforeMondayFiresFriday(t *testing.T) {
	ctx := context.Background()
	sender := &testutil.Sender{}
	src := staticSource{{ReturnDate: oct13, Center: "Пермь", Label: "Тандер", Row: emptyRow("Тандер")}}
	s := newScheduler(t, src, sender, nil)

	friday := model.NewDate(2025, time.October, 10)
	n, err := s.Sweep(ctx, at(friday, 14, 0, 5))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	for _, d := range []model.Date{friday.AddDays(1), friday.AddDays(2), oct13} {
		n, err := s.Sweep(ctx, at(d, 14, 0, 5))
		require.NoError(t, err)
		assert.Equal(t, 0, n, "no reminder on %s", d)
	}

	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "ТАНДЕР: срочно предоставьте данные водителя на РЦ Пермь", sent[0].Subject)
}

func TestSweep_DayBeforeTuesdayFiresMonday(t *testing.T) {
	sender := &testutil.Sender{}
	tuesday := oct13.AddDays(1)
	src := staticSource{{ReturnDate: tuesday, Center: "Пермь", Label: "Тандер", Row: emptyRow("Тандер")}}
	s := newScheduler(t, src, sender, nil)

	n, err := s.Sweep(context.Background(), at(oct13, 14, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSweep_ConfirmPassHourly(t *testing.T) {
	ctx := context.Background()
	sender := &testutil.Sender{}
	src := staticSource{{ReturnDate: oct13, Center: "Тюмень", Label: "X5", Row: filledRow("X5")}}
	claims := NewMemoryClaims()
	s := newScheduler(t, src, sender, claims)

	steps := []struct {
		at   time.Time
		want int
	}{
		{at(oct13, 9, 0, 10), 1},
		{at(oct13, 9, 0, 50), 0},
		{at(oct13, 9, 30, 0), 0},
		{at(oct13, 10, 0, 0), 1},
		{at(oct13, 12, 0, 0), 1},
	}
	for _, st := range steps {
		n, err := s.Sweep(ctx, st.at)
		require.NoError(t, err)
		assert.Equal(t, st.want, n, "sweep at %s", st.at.Format("15:04:05"))
	}

	assert.True(t, claims.Claimed(model.DispatchKey{Date: oct13, Center: "Тюмень", Kind: "x5-confirm-pass-09:00"}))
	assert.False(t, claims.Claimed(model.DispatchKey{Date: oct13, Center: "Тюмень", Kind: "x5-need-data"}),
		"filled rows get no need-data reminder")

	for _, m := range sender.Sent() {
		assert.Contains(t, m.Subject, "Проверка (X5)")
	}
}

func TestSweep_NoConfirmPassForDayBefore(t *testing.T) {
	sender := &testutil.Sender{}
	src := staticSource{{ReturnDate: oct13.AddDays(1), Center: "Пермь", Label: "Тандер", Row: filledRow("Тандер")}}
	s := newScheduler(t, src, sender, nil)

	n, err := s.Sweep(context.Background(), at(oct13, 14, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSweep_ExcludedAndUnclassifiedAreInert(t *testing.T) {
	sender := &testutil.Sender{}
	src := staticSource{
		{ReturnDate: oct13, Center: "Тюмень", Label: "Лента X5", Row: emptyRow("Лента X5")},
		{ReturnDate: oct13, Center: "Тюмень", Label: "Магнит", Row: emptyRow("Магнит")},
	}
	s := newScheduler(t, src, sender, nil)

	n, err := s.Sweep(context.Background(), at(oct13, 12, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSweep_DuplicateRowsSendOnce(t *testing.T) {
	sender := &testutil.Sender{}
	target := Target{ReturnDate: oct13, Center: "Тюмень", Label: "X5", Row: emptyRow("X5")}
	src := staticSource{target, target}
	s := newScheduler(t, src, sender, nil)

	n, err := s.Sweep(context.Background(), at(oct13, 12, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSweep_SendFailureKeepsClaim(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("smtp down")
	sender := &testutil.Sender{Err: boom}
	src := staticSource{{ReturnDate: oct13, Center: "Тюмень", Label: "X5", Row: emptyRow("X5")}}
	s := newScheduler(t, src, sender, nil)

	n, err := s.Sweep(ctx, at(oct13, 12, 0, 0))
	assert.Equal(t, 0, n)
	require.ErrorIs(t, err, boom)
	var dErr *DispatchError
	require.ErrorAs(t, err, &dErr)
	assert.Equal(t, "x5-need-data", dErr.Key.Kind)

	sender.Err = nil
	n, err = s.Sweep(ctx, at(oct13, 12, 0, 30))
	require.NoError(t, err)
	assert.Equal(t, 0, n, "claimed keys are not retried")
}

func TestSweep_NoRecipients(t *testing.T) {
	cl, err := NewClassifier(DefaultCategories(), nil)
	require.NoError(t, err)
	src := staticSource{{ReturnDate: oct13, Center: "Тюмень", Label: "X5", Row: emptyRow("X5")}}
	s, err := New(Options{Classifier: cl, Source: src, Sender: &testutil.Sender{}, Location: msk})
	require.NoError(t, err)

	n, err := s.Sweep(context.Background(), at(oct13, 12, 0, 0))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, notify.ErrNoRecipients)
}

func TestSweep_SourceFailureAborts(t *testing.T) {
	boom := errors.New("table unreadable")
	s := newScheduler(t, errSource{err: boom}, &testutil.Sender{}, nil)

	n, err := s.Sweep(context.Background(), at(oct13, 12, 0, 0))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, boom)
}

func TestSweep_PersistedClaimsSurviveRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "palletwatch.db")
	src := staticSource{{ReturnDate: oct13, Center: "Тюмень", Label: "X5", Row: emptyRow("X5")}}

	first, err := store.Open(path)
	require.NoError(t, err)
	sender := &testutil.Sender{}
	n, err := newScheduler(t, src, sender, first).Sweep(ctx, at(oct13, 12, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, first.Close())

	second, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { second.Close() })
	n, err = newScheduler(t, src, sender, second).Sweep(ctx, at(oct13, 12, 0, 30))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, sender.Sent(), 1)
}

func TestSweep_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := staticSource{{ReturnDate: oct13, Center: "Тюмень", Label: "X5", Row: emptyRow("X5")}}
	s := newScheduler(t, src, &testutil.Sender{}, nil)

	_, err := s.Sweep(ctx, at(oct13, 12, 0, 0))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	cl, err := NewClassifier(DefaultCategories(), nil)
	require.NoError(t, err)

	_, err = New(Options{Source: staticSource{}, Sender: &testutil.Sender{}})
	assert.Error(t, err)
	_, err = New(Options{Classifier: cl, Sender: &testutil.Sender{}})
	assert.Error(t, err)
	_, err = New(Options{Classifier: cl, Source: staticSource{}})
	assert.Error(t, err)
}
