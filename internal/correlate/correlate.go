package correlate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/palletwatch/internal/model"
	"github.com/roach88/palletwatch/internal/table"
)

// DefaultCacheTTL is the freshness window of the parsed-table cache.
const DefaultCacheTTL = 5 * time.Minute

// ErrNotFound reports that no row matches a (date, center) key.
var ErrNotFound = errors.New("correlate: no matching row")

// Outcome is the result of one conditional fill.
type Outcome int

const (
	// Updated means the empty cell now holds the incoming value.
	Updated Outcome = iota
	// AlreadyFilled means the cell had a value and was left untouched.
	AlreadyFilled
	// NotFound means no row matches the key.
	NotFound
	// Skipped means the incoming value was empty.
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Updated:
		return "updated"
	case AlreadyFilled:
		return "already-filled"
	case NotFound:
		return "not-found"
	case Skipped:
		return "skipped"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// WriteError reports that the table could not be persisted after a fill.
// The fill is lost; nothing retries it.
type WriteError struct {
	Date   model.Date
	Center string
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write table for %s %q: %v", e.Date, e.Center, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Options configure a Correlator.
type Options struct {
	// Vocabulary locates columns; nil selects table.DefaultVocabulary.
	Vocabulary table.Vocabulary
	// CacheTTL is the cache freshness window. Zero selects DefaultCacheTTL;
	// a negative value disables caching.
	CacheTTL time.Duration
	// Now is the clock used to age the cache; nil selects time.Now.
	Now func() time.Time
}

// fillColumns are required for lookups and fills.
var fillColumns = []table.Column{table.ColDate, table.ColCenter, table.ColDriver, table.ColVehicle}

var fieldColumn = map[model.Field]table.Column{
	model.FieldDriver:  table.ColDriver,
	model.FieldTractor: table.ColVehicle,
}

// Correlator owns the cache of one Sheet.
type Correlator struct {
	sheet table.Sheet
	vocab table.Vocabulary
	ttl   time.Duration
	now   func() time.Time

	mu   sync.Mutex
	snap *snapshot
}

type snapshot struct {
	grid     *table.Grid
	cols     table.Columns
	rows     []model.Row
	loadedAt time.Time
}

// New returns a Correlator over sheet.
func New(sheet table.Sheet, opts Options) *Correlator {
	c := &Correlator{
		sheet: sheet,
		vocab: opts.Vocabulary,
		ttl:   opts.CacheTTL,
		now:   opts.Now,
	}
	if c.vocab == nil {
		c.vocab = table.DefaultVocabulary()
	}
	if c.ttl == 0 {
		c.ttl = DefaultCacheTTL
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// FindRow returns the first row whose date equals date and whose trimmed
// center equals center. Returns ErrNotFound when none does or when center
// is blank.
func (c *Correlator) FindRow(ctx context.Context, date model.Date, center string) (model.Row, error) {
	snap, err := c.cached(ctx)
	if err != nil {
		return model.Row{}, err
	}
	row, ok := snap.find(date, center)
	if !ok {
		return model.Row{}, fmt.Errorf("%w: %s %q", ErrNotFound, date, center)
	}
	return row, nil
}

// FillIfEmpty writes value into field of the row keyed by (date, center)
// when value is non-empty and the cell is empty.
func (c *Correlator) FillIfEmpty(ctx context.Context, date model.Date, center string, field model.Field, value string) (Outcome, error) {
	res, err := c.fill(ctx, date, center, []fill{{field, value}})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return NotFound, nil
		}
		return res.outcomes[0], err
	}
	return res.outcomes[0], nil
}

// Result is the outcome of Apply for one event.
type Result struct {
	Row     model.Row
	Driver  Outcome
	Tractor Outcome
}

// Updated reports whether Apply changed any cell.
func (r Result) Updated() bool {
	return r.Driver == Updated || r.Tractor == Updated
}

// Apply fills the driver and tractor cells for ev with one read and at
// most one write. A missing row yields ErrNotFound with both outcomes
// NotFound; a failed write yields a *WriteError, with the outcomes
// describing the change that was attempted.
func (c *Correlator) Apply(ctx context.Context, ev model.Event) (Result, error) {
	res, err := c.fill(ctx, ev.EffectiveReturnDate(), ev.RegionalCenter, []fill{
		{model.FieldDriver, ev.DriverName},
		{model.FieldTractor, ev.TractorID},
	})
	out := Result{Row: res.row, Driver: res.outcomes[0], Tractor: res.outcomes[1]}
	return out, err
}

// Rows returns every dated row of the table, in sheet order. It needs the
// supplier column in addition to the fill columns.
func (c *Correlator) Rows(ctx context.Context) ([]model.Row, error) {
	snap, err := c.cached(ctx)
	if err != nil {
		return nil, err
	}
	if !snap.cols.Has(table.ColSupplier) {
		return nil, &table.ColumnError{Missing: []table.Column{table.ColSupplier}}
	}
	out := make([]model.Row, len(snap.rows))
	copy(out, snap.rows)
	return out, nil
}

// Invalidate drops the cache; the next lookup re-reads the sheet.
func (c *Correlator) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = nil
}

type fill struct {
	field model.Field
	value string
}

type fillResult struct {
	row      model.Row
	outcomes []Outcome
}

func (c *Correlator) fill(ctx context.Context, date model.Date, center string, fills []fill) (fillResult, error) {
	res := fillResult{outcomes: make([]Outcome, len(fills))}
	for i := range res.outcomes {
		res.outcomes[i] = NotFound
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	snap, err := c.load(ctx)
	if err != nil {
		return res, err
	}
	row, ok := snap.find(date, center)
	if !ok {
		c.keep(snap)
		return res, fmt.Errorf("%w: %s %q", ErrNotFound, date, center)
	}
	res.row = row

	g := snap.grid
	for i, f := range fills {
		switch {
		case model.IsEmptyCell(f.value):
			res.outcomes[i] = Skipped
		case row.Filled(f.field):
			res.outcomes[i] = AlreadyFilled
		default:
			g.Set(row.Index-2, snap.cols[fieldColumn[f.field]], model.NormalizeLabel(f.value))
			res.outcomes[i] = Updated
		}
	}

	if !g.Dirty() {
		c.keep(snap)
		return res, nil
	}

	// The table was modified or its state is unknown; either way the
	// next lookup reads it again.
	c.snap = nil
	if err := c.sheet.Write(ctx, g); err != nil {
		return res, &WriteError{Date: date, Center: center, Err: err}
	}
	return res, nil
}

// keep caches snap when caching is enabled. Callers hold c.mu.
func (c *Correlator) keep(snap *snapshot) {
	if c.ttl > 0 {
		c.snap = snap
	}
}

// cached returns the cached snapshot when fresh, loading it otherwise.
func (c *Correlator) cached(ctx context.Context) (*snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snap != nil && c.ttl > 0 && c.now().Sub(c.snap.loadedAt) < c.ttl {
		return c.snap, nil
	}
	snap, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	c.keep(snap)
	return snap, nil
}

// load reads and parses the sheet. Callers hold c.mu.
func (c *Correlator) load(ctx context.Context) (*snapshot, error) {
	g, err := c.sheet.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	cols, err := table.Discover(g.Header, c.vocab, fillColumns...)
	if err != nil {
		return nil, err
	}
	return &snapshot{
		grid:     g,
		cols:     cols,
		rows:     parseRows(g, cols),
		loadedAt: c.now(),
	}, nil
}

// parseRows converts grid rows with a parseable date into model rows.
// Rows whose date cell is blank or malformed are not addressable and are
// left out.
func parseRows(g *table.Grid, cols table.Columns) []model.Row {
	rows := make([]model.Row, 0, len(g.Rows))
	for i := range g.Rows {
		d, err := table.ParseCellDate(g.Cell(i, cols[table.ColDate]))
		if err != nil {
			continue
		}
		r := model.Row{
			Index:   i + 2,
			Date:    d,
			Center:  model.NormalizeLabel(g.Cell(i, cols[table.ColCenter])),
			Driver:  g.Cell(i, cols[table.ColDriver]),
			Tractor: g.Cell(i, cols[table.ColVehicle]),
		}
		if idx, ok := cols[table.ColSupplier]; ok {
			r.Supplier = model.NormalizeLabel(g.Cell(i, idx))
		}
		rows = append(rows, r)
	}
	return rows
}

// find never matches a blank center, so an event without one cannot land
// on an unkeyed row.
func (s *snapshot) find(date model.Date, center string) (model.Row, bool) {
	if model.IsEmptyCell(center) {
		return model.Row{}, false
	}
	for _, r := range s.rows {
		if r.Date == date && model.SameLabel(r.Center, center) {
			return r, true
		}
	}
	return model.Row{}, false
}
