// Package poll drives the ingestion cycle: enumerate recent messages,
// drop duplicates, extract events, persist records, correlate them with
// the table, and run one reminder sweep.
//
// Every failure inside a cycle is classified as an *Error and contained
// at the message it concerns. An unavailable mail source skips the cycle's
// messages and nothing else; Run keeps going until its context ends.
package poll
