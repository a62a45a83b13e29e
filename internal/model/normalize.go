package model

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// placeholders are cell values that count as empty. Spreadsheet exports
// written through dataframe tooling leave these behind in blank cells.
var placeholders = map[string]bool{
	"nan":  true,
	"none": true,
	"null": true,
}

// NormalizeLabel trims s and applies Unicode NFC normalization.
func NormalizeLabel(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// SameLabel reports whether a and b are equal after NormalizeLabel.
// Comparison stays case-sensitive.
func SameLabel(a, b string) bool {
	return NormalizeLabel(a) == NormalizeLabel(b)
}

// FoldContains reports whether s contains sub, ignoring case and
// normalization differences.
func FoldContains(s, sub string) bool {
	return strings.Contains(foldLabel(s), foldLabel(sub))
}

// FoldEqual reports whether a equals b, ignoring case and normalization differences.
func FoldEqual(a, b string) bool {
	return foldLabel(a) == foldLabel(b)
}

func foldLabel(s string) string {
	return strings.ToLower(NormalizeLabel(s))
}

// IsEmptyCell reports whether a cell value counts as empty: blank,
// whitespace-only, or a placeholder such as "nan" or "none".
func IsEmptyCell(v string) bool {
	t := strings.ToLower(strings.TrimSpace(v))
	return t == "" || placeholders[t]
}
