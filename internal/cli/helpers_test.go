package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const testConfig = `
timezone: Europe/Moscow
mail:
  spool_dir: mail
records:
  path: palletwatch.db
ledger:
  path: processed_ids.txt
table:
  path: table.xlsx
reminders:
  categories:
    - name: x5
      title: X5
      kind: same_day
      keywords: [x5, х5]
      recipients: [x5@example.com]
notify:
  dry_run: true
`

const testMessage = "Message-Id: <m1@example.com>\r\n" +
	"Date: Mon, 13 Oct 2025 10:30:00 +0300\r\n" +
	"Subject: Возврат поддонов из сетей\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Возврат 13.10.2025\r\n" +
	"Сеть | X5 | РЦ Тюмень\r\n" +
	"Ф.И.О. водителя: Иванов Иван\r\n"

var msk = mustLocation("Europe/Moscow")

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// env is a working directory with a config, an empty spool and a sheet
// holding one X5 row for 13.10.2025.
type env struct {
	dir    string
	config string
}

func newEnv(t *testing.T) env {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "mail"), 0755))
	cfgPath := filepath.Join(dir, "palletwatch.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(testConfig), 0644))

	f := excelize.NewFile()
	defer f.Close()
	idx, err := f.NewSheet("приход")
	require.NoError(t, err)
	f.SetActiveSheet(idx)
	require.NoError(t, f.DeleteSheet("Sheet1"))
	require.NoError(t, f.SetSheetRow("приход", "A1", &[]any{
		"дата", "РЦ (выберите из списка)", "Поставщик (выберите из списка)", "водитель Фамилия И.О.", "номер ам",
	}))
	require.NoError(t, f.SetSheetRow("приход", "A2", &[]any{"13.10.2025", "РЦ Тюмень", "X5 Тюмень"}))
	require.NoError(t, f.SaveAs(filepath.Join(dir, "table.xlsx")))

	return env{dir: dir, config: cfgPath}
}

func (e env) deliver(t *testing.T, name, raw string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(e.dir, "mail", name), []byte(raw), 0644))
}

func (e env) cell(t *testing.T, axis string) string {
	t.Helper()
	f, err := excelize.OpenFile(filepath.Join(e.dir, "table.xlsx"))
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue("приход", axis)
	require.NoError(t, err)
	return v
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
