// Package ledger tracks which event identifiers have been handled.
//
// The ledger is an in-memory set loaded once at startup from an IDStore and
// rewritten in full through that store on every addition. A second guard,
// the RecordChecker, reports events that already have an output record even
// when the identifier set was lost; such events are recorded as seen so the
// record store is not re-queried every cycle.
package ledger
