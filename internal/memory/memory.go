// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package memory holds the execution memory of a session and the
// incremental summarizer that condenses it.
package memory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pdiddy/proposal-engine/pkg/types"
)

// ResultSummaryLen bounds MemoryEntry.ResultSummary.
const ResultSummaryLen = 200

// Append adds e to mem unless mem already holds limit entries. The boolean
// reports whether the entry was appended.
func Append(mem []types.MemoryEntry, e types.MemoryEntry, limit int) ([]types.MemoryEntry, bool) {
	if limit > 0 && len(mem) >= limit {
		return mem, false
	}
	return append(mem, e), true
}

// SuccessRate returns the fraction of successful entries among the last
// window entries. ok is false while fewer than window entries exist, so a
// single early failure never counts as a trend.
func SuccessRate(mem []types.MemoryEntry, window int) (rate float64, ok bool) {
	if window <= 0 || len(mem) < window {
		return 0, false
	}
	recent := mem[len(mem)-window:]
	n := 0
	for _, e := range recent {
		if e.Success {
			n++
		}
	}
	return float64(n) / float64(window), true
}

// DescribeAction renders an action call as name(k=v, ...) with keys sorted.
func DescribeAction(action string, params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, params[k])
	}
	return action + "(" + strings.Join(parts, ", ") + ")"
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// FormatEntry renders one entry as a single line.
func FormatEntry(e types.MemoryEntry) string {
	status := "ok"
	if !e.Success {
		status = "failed"
	}
	return fmt.Sprintf("step %d %s [%s]: %s -> %s", e.StepID, e.Action, status, e.Description, e.ResultSummary)
}

// Render lists every entry, one per line.
func Render(mem []types.MemoryEntry) string {
	lines := make([]string, len(mem))
	for i, e := range mem {
		lines[i] = FormatEntry(e)
	}
	return strings.Join(lines, "\n")
}

// Context returns the history text given to prompts: the running summary
// when one exists, otherwise the full memory.
func Context(s *types.Session) string {
	if s.HistorySummary != "" {
		// Entries recorded after the last summarization are appended so the
		// prompt never misses the newest outcome.
		if s.SummarizedThrough < len(s.Memory) {
			return s.HistorySummary + "\n\nSince then:\n" + Render(s.Memory[s.SummarizedThrough:])
		}
		return s.HistorySummary
	}
	if len(s.Memory) == 0 {
		return "(nothing executed yet)"
	}
	return Render(s.Memory)
}
