// Package model defines the domain types shared by every palletwatch component.
//
// The types are deliberately plain values:
//   - Event: one parsed return notification (immutable after extraction)
//   - Row: one operational row of the external pallet-turnover table
//   - DispatchKey: the idempotence token guarding at-most-once reminders
//   - Date and TimeOfDay: calendar values detached from wall-clock instants
//
// # Label Normalization
//
// Regional-center and supplier labels arrive from two independent sources
// (mail bodies and a spreadsheet typed by hand). Both are compared after
// trimming and Unicode NFC normalization, so a precomposed "й" in one source
// equals a decomposed "й" in the other.
package model
