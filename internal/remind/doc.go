// Package remind decides when to nag partners about missing return data
// and sends at most one notification per dispatch key.
//
// A sweep walks every target (a table row, or an event seen by this
// process), classifies its partner label into a Category, computes the
// trigger date for the category's Kind, and fires the rules whose time
// window contains the sweep time:
//
//   - need-data: once at the category's NeedDataAt mark, while any
//     required field is still empty.
//   - confirm-pass: on every hour mark of the trigger date while all
//     required fields are filled (same-day categories only).
//
// Windows are evaluated once per sweep and never retroactively: a sweep
// that misses a window does not fire it later.
package remind
