// Package harness runs reminder scenarios end to end.
//
// A scenario drives the real poll loop, correlator and scheduler over
// in-memory collaborators: an in-memory SQLite store, an in-memory sheet,
// a settable clock and a recording sender. Time only moves when a step
// says so, which makes trigger windows exact and transcripts stable.
//
// # Scenario Format
//
//	name: x5_noon
//	description: "X5 partner is reminded at noon while the tractor is missing"
//	table:
//	  rows:
//	    - ["13.10.2025", "РЦ Тюмень", "X5 Тюмень", "", ""]
//	steps:
//	  - at: "2025-10-13T11:00:00"
//	    action: cycle
//	    deliver:
//	      - id: m1
//	        body: |
//	          Дата 13.10.2025 возврат
//	          Сеть | X5 | РЦ Тюмень
//	  - at: "2025-10-13T12:00:10"
//	    action: sweep
//	    expect: { sent: 1 }
//	assertions:
//	  - type: sent_count
//	    count: 1
//
// # Assertion Types
//
//   - sent_count: exactly N messages were sent
//   - sent_contains: some message matches to/subject/body substrings
//   - cell_equals: a table cell holds a value
//   - claimed: a dispatch key was claimed
//   - recorded: an output record exists for a message id
package harness
