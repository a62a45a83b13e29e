package table

import (
	"context"
	"sync"
)

// Memory is an in-process Sheet for tests and dry runs.
type Memory struct {
	mu     sync.Mutex
	grid   *Grid
	reads  int
	writes int

	// WriteErr, when set, is returned by Write and nothing is stored.
	WriteErr error
}

// NewMemory returns a Memory sheet holding header and rows.
func NewMemory(header []string, rows ...[]string) *Memory {
	return &Memory{grid: NewGrid(header, rows...)}
}

// Read returns a copy of the stored grid.
func (m *Memory) Read(ctx context.Context) (*Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	return m.grid.Clone(), nil
}

// Write applies g's changes to the stored grid.
func (m *Memory) Write(ctx context.Context, g *Grid) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	if !g.Dirty() {
		return nil
	}
	for _, c := range g.Changes() {
		m.grid.Set(c.Row, c.Col, c.Value)
	}
	m.grid.changes = nil
	m.writes++
	return nil
}

// Cell returns the stored value at (row, col).
func (m *Memory) Cell(row, col int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.grid.Cell(row, col)
}

// SetCell changes the stored grid directly, as an operator editing the
// table between cycles would.
func (m *Memory) SetCell(row, col int, v string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grid.Set(row, col, v)
	m.grid.changes = nil
}

// Reads returns how many times Read was called.
func (m *Memory) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// Writes returns how many writes were stored.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
