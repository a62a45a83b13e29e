package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/palletwatch/internal/model"
	"github.com/roach88/palletwatch/internal/remind"
)

const minimal = `
table:
  path: /data/Екатеринбург - учет оборота поддонов.xlsx
notify:
  dry_run: true
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, "Europe/Moscow", cfg.Timezone)
	assert.Equal(t, "Возврат поддонов из сетей", cfg.Mail.SubjectFilter)
	assert.Equal(t, 24*time.Hour, cfg.Lookback())
	assert.Equal(t, time.Minute, cfg.PollInterval())
	assert.Equal(t, time.Minute, cfg.ReminderWindow())
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL())
	assert.Equal(t, "row", cfg.Records.Layout)
	assert.Equal(t, "file", cfg.Ledger.Backend)
	assert.Equal(t, "приход", cfg.Table.Sheet)
	assert.Equal(t, "table", cfg.Reminders.Source)
	assert.Equal(t, []string{"лента"}, cfg.Reminders.Excluded)

	cats, err := cfg.Categories()
	require.NoError(t, err)
	require.Len(t, cats, 3)
	assert.Equal(t, "x5", cats[0].Name)
	assert.Equal(t, model.TimeOfDay{Hour: 12}, cats[0].NeedDataAt)
	assert.True(t, cats[0].ConfirmPass)
	assert.Equal(t, 23, cats[0].ConfirmUntil)
	assert.Equal(t, remind.DayBefore, cats[2].Kind)
	assert.Equal(t, model.TimeOfDay{Hour: 14}, cats[2].NeedDataAt)
	assert.False(t, cats[2].ConfirmPass)

	_, err = remind.NewClassifier(cats, cfg.Reminders.Excluded)
	assert.NoError(t, err)
}

func TestParse_Categories(t *testing.T) {
	cfg, err := Parse([]byte(minimal + `
reminders:
  source: events
  categories:
    - name: x5
      kind: same_day
      keywords: [x5, х5]
      recipients: [x5-team@example.com]
      required: [driver]
      need_data_at: "11:30"
      confirm_from: 8
      confirm_until: 18
    - name: тандер
      kind: day_before
      keywords: [тандер]
      recipients: [tander@example.com]
`))
	require.NoError(t, err)

	cats, err := cfg.Categories()
	require.NoError(t, err)
	require.Len(t, cats, 2)

	x5 := cats[0]
	assert.Equal(t, []string{"x5-team@example.com"}, x5.Recipients)
	assert.Equal(t, []model.Field{model.FieldDriver}, x5.Required)
	assert.Equal(t, model.TimeOfDay{Hour: 11, Minute: 30}, x5.NeedDataAt)
	assert.True(t, x5.ConfirmPass, "same_day categories confirm by default")
	assert.Equal(t, 8, x5.ConfirmFrom)
	assert.Equal(t, 18, x5.ConfirmUntil)

	tander := cats[1]
	assert.Equal(t, model.TimeOfDay{Hour: 14}, tander.NeedDataAt)
	assert.False(t, tander.ConfirmPass)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing table path", "notify:\n  dry_run: true\n"},
		{"bad layout", minimal + "records:\n  layout: csv\n"},
		{"bad ledger backend", minimal + "ledger:\n  backend: redis\n"},
		{"bad source", minimal + "reminders:\n  source: inbox\n"},
		{"zero interval", minimal + "poll:\n  interval_seconds: 0\n"},
		{"bad time", minimal + "reminders:\n  categories:\n    - {name: a, kind: same_day, keywords: [a], need_data_at: \"25:00\"}\n"},
		{"bad kind", minimal + "reminders:\n  categories:\n    - {name: a, kind: weekly, keywords: [a]}\n"},
		{"no keywords", minimal + "reminders:\n  categories:\n    - {name: a, kind: same_day, keywords: []}\n"},
		{"confirm pass on day before", minimal + "reminders:\n  categories:\n    - {name: a, kind: day_before, keywords: [a], confirm_pass: true}\n"},
		{"confirm hours reversed", minimal + "reminders:\n  categories:\n    - {name: a, kind: same_day, keywords: [a], confirm_from: 18, confirm_until: 9}\n"},
		{"bad recipient", minimal + "reminders:\n  categories:\n    - {name: a, kind: same_day, keywords: [a], recipients: [nobody]}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			var vErr *ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}
}

func TestParse_UnknownKey(t *testing.T) {
	_, err := Parse([]byte(minimal + "tabel:\n  path: x.xlsx\n"))
	assert.Error(t, err)
}

func TestParse_SMTPRequiredUnlessDryRun(t *testing.T) {
	_, err := Parse([]byte("table:\n  path: t.xlsx\n"))
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)

	_, err = Parse([]byte("table:\n  path: t.xlsx\nsmtp:\n  addr: smtp.example.com:587\n  from: robot@example.com\n"))
	assert.NoError(t, err)
}

func TestParse_BadTimezone(t *testing.T) {
	_, err := Parse([]byte(minimal + "timezone: Mars/Olympus\n"))
	assert.ErrorContains(t, err, "timezone")
}

func TestParse_PasswordFromEnv(t *testing.T) {
	t.Setenv(PasswordEnv, "s3cret")

	cfg, err := Parse([]byte(minimal + "smtp:\n  password: from-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.SMTP.Password)
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse(nil)
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr, "table.path has no default")
}

func TestCacheTTL_Disabled(t *testing.T) {
	cfg := Default()
	cfg.Table.CacheTTLSeconds = 0
	assert.Negative(t, cfg.CacheTTL())
}

func TestLoad_ResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "palletwatch.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
table:
  path: returns.xlsx
mail:
  spool_dir: spool
  folder: Inbox
records:
  path: /var/lib/palletwatch/records.db
notify:
  dry_run: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "returns.xlsx"), cfg.Table.Path)
	assert.Equal(t, filepath.Join(dir, "spool", "Inbox"), cfg.SpoolPath())
	assert.Equal(t, "/var/lib/palletwatch/records.db", cfg.Records.Path)
	assert.Equal(t, filepath.Join(dir, "processed_ids.txt"), cfg.Ledger.Path)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRenderer_Overrides(t *testing.T) {
	cfg, err := Parse([]byte(minimal + `
reminders:
  templates:
    confirm-pass:
      subject: "Пропуск {{.Center}} {{.Hour}}"
`))
	require.NoError(t, err)

	r, err := cfg.Renderer()
	require.NoError(t, err)
	subject, _, err := r.Render(remind.TemplateConfirmPass, remind.MessageData{Center: "Тюмень", Hour: "09:00"})
	require.NoError(t, err)
	assert.Equal(t, "Пропуск Тюмень 09:00", subject)
}

func TestLocation(t *testing.T) {
	cfg := Default()
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Moscow", loc.String())
}
