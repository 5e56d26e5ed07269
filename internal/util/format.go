package util //nolint:revive // package name util hosts shared formatting helpers used across the worker and CLI

import (
	"strings"
)

// targetErrorLimit bounds the per-target error detail embedded in job summaries.
const targetErrorLimit = 120

// Truncate returns s cut to at most max runes. Error messages are stored and
// rendered verbatim, so the cut must not split a multi-byte rune.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// FormatTargetError renders one failed target as "{label}: {error}" with the
// error detail bounded so a noisy provider cannot blow up the job summary.
func FormatTargetError(label string, err error) string {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "target"
	}
	detail := ""
	if err != nil {
		detail = strings.TrimSpace(err.Error())
	}
	if detail == "" {
		detail = "Unknown error"
	}
	return label + ": " + Truncate(detail, targetErrorLimit)
}

// JoinFirst joins up to n items with the separator, dropping the rest.
func JoinFirst(items []string, n int, sep string) string {
	if n < len(items) {
		items = items[:n]
	}
	return strings.Join(items, sep)
}
