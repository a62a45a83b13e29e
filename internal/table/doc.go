// Package table reads and selectively writes the operational table that
// return events are correlated against.
//
// A Sheet exposes the whole table as a Grid of string cells. Columns are
// located by header text through a Vocabulary, never by position, so the
// operators can reorder or insert columns freely. Writes carry only the
// cells changed through Grid.Set; everything else in the backing file is
// left as it was.
package table
