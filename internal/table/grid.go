package table

import (
	"sort"
)

// Grid is an in-memory copy of a sheet: the header row plus data rows.
// Data row i is sheet row i+2. Rows may be ragged; missing cells read as "".
type Grid struct {
	Header []string
	Rows   [][]string

	changes map[cellPos]string
}

type cellPos struct{ row, col int }

// Change is one cell written through Set.
type Change struct {
	Row   int // 0-based data row
	Col   int // 0-based column
	Value string
}

// NewGrid builds a grid from a header and data rows. The slices are copied.
func NewGrid(header []string, rows ...[]string) *Grid {
	g := &Grid{Header: append([]string(nil), header...)}
	for _, r := range rows {
		g.Rows = append(g.Rows, append([]string(nil), r...))
	}
	return g
}

// Cell returns the value at (row, col), or "" outside the grid.
func (g *Grid) Cell(row, col int) string {
	if row < 0 || row >= len(g.Rows) || col < 0 || col >= len(g.Rows[row]) {
		return ""
	}
	return g.Rows[row][col]
}

// Set writes v at (row, col), growing the row if needed, and records the
// change for the next Sheet.Write. Rows beyond the grid are ignored.
func (g *Grid) Set(row, col int, v string) {
	if row < 0 || row >= len(g.Rows) || col < 0 {
		return
	}
	for len(g.Rows[row]) <= col {
		g.Rows[row] = append(g.Rows[row], "")
	}
	g.Rows[row][col] = v
	if g.changes == nil {
		g.changes = make(map[cellPos]string)
	}
	g.changes[cellPos{row, col}] = v
}

// Changes returns the cells written through Set, ordered by row then column.
func (g *Grid) Changes() []Change {
	out := make([]Change, 0, len(g.changes))
	for p, v := range g.changes {
		out = append(out, Change{Row: p.row, Col: p.col, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Col < out[j].Col
	})
	return out
}

// Dirty reports whether any cell was written through Set.
func (g *Grid) Dirty() bool {
	return len(g.changes) > 0
}

// Clone returns a deep copy without pending changes.
func (g *Grid) Clone() *Grid {
	return NewGrid(g.Header, g.Rows...)
}
