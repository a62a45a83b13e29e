package table

import (
	"context"
	"errors"
)

// DefaultSheet is the worksheet holding incoming returns.
const DefaultSheet = "приход"

var (
	// ErrLocked reports a table that another writer holds open.
	ErrLocked = errors.New("table: locked by another writer")
	// ErrNoSheet reports a workbook without the configured worksheet.
	ErrNoSheet = errors.New("table: sheet not found")
)

// Sheet is the tabular store: read everything, write back changed cells.
type Sheet interface {
	Read(ctx context.Context) (*Grid, error)
	Write(ctx context.Context, g *Grid) error
}
