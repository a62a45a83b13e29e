package table

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSX is a Sheet backed by one worksheet of an .xlsx workbook.
// The file is opened on every Read and Write, so edits made by operators
// between cycles are picked up.
type XLSX struct {
	Path  string
	Sheet string
}

// NewXLSX returns an XLSX sheet; an empty sheet name selects DefaultSheet.
func NewXLSX(path, sheet string) *XLSX {
	if sheet == "" {
		sheet = DefaultSheet
	}
	return &XLSX{Path: path, Sheet: sheet}
}

// Read loads the worksheet with raw cell values (dates as serial numbers).
func (x *XLSX) Read(ctx context.Context) (*Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(x.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", x.Path, err)
	}
	defer f.Close()

	if err := x.checkSheet(f); err != nil {
		return nil, err
	}
	rows, err := f.GetRows(x.Sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", x.Sheet, err)
	}
	if len(rows) == 0 {
		return &Grid{}, nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}
	return &Grid{Header: header, Rows: rows[1:]}, nil
}

// Write stores the cells changed in g. A grid without changes is not
// written. The workbook is saved to a temp file and renamed over the
// original.
func (x *XLSX) Write(ctx context.Context, g *Grid) error {
	if !g.Dirty() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if x.lockHeld() {
		return fmt.Errorf("%w: %s is open in another program", ErrLocked, x.Path)
	}

	f, err := excelize.OpenFile(x.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", x.Path, lockedOr(err))
	}
	defer f.Close()

	if err := x.checkSheet(f); err != nil {
		return err
	}
	for _, c := range g.Changes() {
		// Data row 0 is sheet row 2; excelize coordinates are 1-based.
		cell, err := excelize.CoordinatesToCellName(c.Col+1, c.Row+2)
		if err != nil {
			return fmt.Errorf("cell (%d,%d): %w", c.Row, c.Col, err)
		}
		if err := f.SetCellStr(x.Sheet, cell, c.Value); err != nil {
			return fmt.Errorf("set %s: %w", cell, err)
		}
	}

	dir := filepath.Dir(x.Path)
	tmp, err := os.CreateTemp(dir, ".palletwatch-*"+filepath.Ext(x.Path))
	if err != nil {
		return fmt.Errorf("create temp in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	tmp.Close()

	if err := f.SaveAs(tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("save %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, x.Path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", x.Path, lockedOr(err))
	}
	return nil
}

func (x *XLSX) checkSheet(f *excelize.File) error {
	idx, err := f.GetSheetIndex(x.Sheet)
	if err != nil {
		return fmt.Errorf("sheet %q: %w", x.Sheet, err)
	}
	if idx < 0 {
		return fmt.Errorf("%w: %q in %s", ErrNoSheet, x.Sheet, x.Path)
	}
	return nil
}

// lockHeld reports whether an office-suite owner file ("~$name.xlsx")
// sits next to the workbook.
func (x *XLSX) lockHeld() bool {
	owner := filepath.Join(filepath.Dir(x.Path), "~$"+filepath.Base(x.Path))
	_, err := os.Stat(owner)
	return err == nil
}

func lockedOr(err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %v", ErrLocked, err)
	}
	return err
}
