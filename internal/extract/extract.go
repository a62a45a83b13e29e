package extract

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/roach88/palletwatch/internal/model"
)

// ErrParse reports a body that could not be read at all. Missing or
// malformed lines are not parse failures.
var ErrParse = errors.New("extract: unreadable body")

// maxLine bounds a single body line; longer lines abort the scan.
const maxLine = 1 << 20

// Extractor applies an ordered rule list to message bodies.
// An Extractor is stateless and safe for concurrent use.
type Extractor struct {
	rules []Rule
}

// New returns an Extractor using rules, or DefaultRules when none are given.
func New(rules ...Rule) *Extractor {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	cp := make([]Rule, len(rules))
	copy(cp, rules)
	return &Extractor{rules: cp}
}

// Extract parses body received at receivedAt. The returned Event has no ID;
// callers assign the source identifier.
func (x *Extractor) Extract(body string, receivedAt time.Time) (model.Event, error) {
	if !utf8.ValidString(body) {
		return model.Event{}, fmt.Errorf("%w: invalid UTF-8", ErrParse)
	}
	return x.ExtractReader(strings.NewReader(body), receivedAt)
}

// ExtractReader is Extract over a stream.
func (x *Extractor) ExtractReader(r io.Reader, receivedAt time.Time) (model.Event, error) {
	ev := model.Event{
		ReceivedAt:      receivedAt,
		CorrelationTime: receivedAt,
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLine)
	first := true
	for sc.Scan() {
		line := sc.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		x.applyLine(line, &ev)
	}
	if err := sc.Err(); err != nil {
		return model.Event{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return ev, nil
}

func (x *Extractor) applyLine(line string, ev *model.Event) {
	for _, r := range x.rules {
		if r.Match(line) {
			r.Apply(line, ev)
			return
		}
	}
}
