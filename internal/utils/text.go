package utils

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// FoldString normalises s to NFC and applies Unicode case folding so that
// comparisons are insensitive to case and composition.
func FoldString(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// ContainsFold reports whether substr occurs in s under case folding.
func ContainsFold(s, substr string) bool {
	return strings.Contains(FoldString(s), FoldString(substr))
}

// EqualFold reports whether a and b are equal under case folding.
func EqualFold(a, b string) bool {
	return FoldString(a) == FoldString(b)
}
