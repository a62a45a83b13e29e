package harness

import "github.com/roach88/palletwatch/internal/notify"

// TraceEntry records what one step did.
type TraceEntry struct {
	Step      int
	At        string
	Action    string
	Processed int
	Fills     int
	// Errors lists the kinds of contained cycle errors, in order.
	Errors []string
	Sent   []notify.Message
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step expectation and assertion matched.
	Pass bool

	// Trace has one entry per step, in order.
	Trace []TraceEntry

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{Pass: true}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Sent returns every message sent during the scenario, in order.
func (r *Result) Sent() []notify.Message {
	var out []notify.Message
	for _, e := range r.Trace {
		out = append(out, e.Sent...)
	}
	return out
}
