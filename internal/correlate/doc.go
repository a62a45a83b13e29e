// Package correlate matches return events to rows of the operational
// table by (return date, regional center) and fills the driver and tractor
// cells that are still empty.
//
// Lookups may be served from a read-through cache of the parsed table.
// Writes always start from a fresh read, so a cell an operator filled
// after the cache was loaded is never overwritten. Every write attempt
// drops the cache.
package correlate
