package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TimeLayout is the layout of step and message times. Times are read in
// the scenario's timezone.
const TimeLayout = "2006-01-02T15:04:05"

// Scenario defines a reminder conformance scenario.
// A scenario seeds the table, then walks a list of timed steps that
// deliver mail, edit cells, and run cycles or sweeps, and finally checks
// assertions against the trace and the table.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Timezone defaults to Europe/Moscow.
	Timezone string `yaml:"timezone,omitempty"`

	// Source selects the reminder targets: "table" (default) or "events".
	Source string `yaml:"source,omitempty"`

	// Recipients overrides the recipients per category name. Categories
	// left out get "<name>@example.com".
	Recipients map[string][]string `yaml:"recipients,omitempty"`

	Table TableFixture `yaml:"table"`

	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and table.
	// Supported types: sent_count, sent_contains, cell_equals, claimed
	Assertions []Assertion `yaml:"assertions"`
}

// TableFixture is the initial sheet content.
type TableFixture struct {
	// Header defaults to the standard "приход" header.
	Header []string   `yaml:"header,omitempty"`
	Rows   [][]string `yaml:"rows"`
}

// Step is one point in scenario time.
type Step struct {
	At string `yaml:"at"`

	// Deliver adds messages to the mailbox before the action runs.
	Deliver []MessageFixture `yaml:"deliver,omitempty"`

	// Edit changes cells before the action runs, as an operator would.
	Edit []CellEdit `yaml:"edit,omitempty"`

	// Action is "cycle" (full poll cycle), "sweep" (reminders only) or
	// "none".
	Action string `yaml:"action"`

	// Expect checks the step's outcome when present.
	Expect *StepExpect `yaml:"expect,omitempty"`
}

// MessageFixture is one incoming message.
type MessageFixture struct {
	ID string `yaml:"id"`
	// Subject defaults to the standard subject filter.
	Subject string `yaml:"subject,omitempty"`
	Body    string `yaml:"body"`
	// Received defaults to one minute before the step.
	Received string `yaml:"received,omitempty"`
}

// CellEdit addresses a data row (0-based) and a column by name
// (date, center, supplier, driver, vehicle).
type CellEdit struct {
	Row    int    `yaml:"row"`
	Column string `yaml:"column"`
	Value  string `yaml:"value"`
}

// StepExpect holds per-step expectations. Nil fields are not checked.
type StepExpect struct {
	Sent      *int     `yaml:"sent,omitempty"`
	Processed *int     `yaml:"processed,omitempty"`
	Errors    []string `yaml:"errors,omitempty"`
}

// Assertion validates the final trace or table.
type Assertion struct {
	// Type specifies the assertion type:
	// - "sent_count": exactly Count messages were sent overall
	// - "sent_contains": some message matches To/Subject/Body (substrings)
	// - "cell_equals": the table cell at Row/Column equals Value
	// - "claimed": the dispatch key Date/Center/Kind was claimed
	// - "recorded": an output record exists for message ID
	Type string `yaml:"type"`

	ID string `yaml:"id,omitempty"`

	Count int `yaml:"count,omitempty"`

	To      string `yaml:"to,omitempty"`
	Subject string `yaml:"subject,omitempty"`
	Body    string `yaml:"body,omitempty"`

	Row    int    `yaml:"row,omitempty"`
	Column string `yaml:"column,omitempty"`
	Value  string `yaml:"value,omitempty"`

	Date   string `yaml:"date,omitempty"`
	Center string `yaml:"center,omitempty"`
	Kind   string `yaml:"kind,omitempty"`
}

// Assertion type constants.
const (
	AssertSentCount    = "sent_count"
	AssertSentContains = "sent_contains"
	AssertCellEquals   = "cell_equals"
	AssertClaimed      = "claimed"
	AssertRecorded     = "recorded"
)

// Step action constants.
const (
	ActionCycle = "cycle"
	ActionSweep = "sweep"
	ActionNone  = "none"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func (s *Scenario) location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.LoadLocation("Europe/Moscow")
	}
	return time.LoadLocation(s.Timezone)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	switch s.Source {
	case "", "table", "events":
	default:
		return fmt.Errorf("unknown source %q", s.Source)
	}
	loc, err := s.location()
	if err != nil {
		return fmt.Errorf("timezone: %w", err)
	}

	var prev time.Time
	for i, step := range s.Steps {
		at, err := time.ParseInLocation(TimeLayout, step.At, loc)
		if err != nil {
			return fmt.Errorf("steps[%d]: at: %w", i, err)
		}
		if at.Before(prev) {
			return fmt.Errorf("steps[%d]: time goes backwards", i)
		}
		prev = at
		switch step.Action {
		case ActionCycle, ActionSweep, ActionNone:
		default:
			return fmt.Errorf("steps[%d]: unknown action %q", i, step.Action)
		}
		for j, m := range step.Deliver {
			if m.ID == "" {
				return fmt.Errorf("steps[%d].deliver[%d]: id is required", i, j)
			}
			if m.Received != "" {
				if _, err := time.ParseInLocation(TimeLayout, m.Received, loc); err != nil {
					return fmt.Errorf("steps[%d].deliver[%d]: received: %w", i, j, err)
				}
			}
		}
		for j, e := range step.Edit {
			if e.Column == "" {
				return fmt.Errorf("steps[%d].edit[%d]: column is required", i, j)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertSentCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for sent_count", index)
		}
	case AssertSentContains:
		if a.To == "" && a.Subject == "" && a.Body == "" {
			return fmt.Errorf("assertions[%d]: sent_contains needs to, subject or body", index)
		}
	case AssertCellEquals:
		if a.Column == "" {
			return fmt.Errorf("assertions[%d]: column is required for cell_equals", index)
		}
	case AssertClaimed:
		if a.Date == "" || a.Center == "" || a.Kind == "" {
			return fmt.Errorf("assertions[%d]: date, center and kind are required for claimed", index)
		}
	case AssertRecorded:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for recorded", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
