// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"math"
	"sort"

	"github.com/pdiddy/proposal-engine/pkg/types"
)

// Scorer rates the relevance of one entry to a topic on a 0-10 scale.
type Scorer interface {
	Score(ctx context.Context, topic string, e types.LedgerEntry) (float64, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, topic string, e types.LedgerEntry) (float64, error)

// Score calls f.
func (f ScorerFunc) Score(ctx context.Context, topic string, e types.LedgerEntry) (float64, error) {
	return f(ctx, topic, e)
}

// RerankOptions tunes Rerank.
type RerankOptions struct {
	// KeepRatio keeps entries scoring at least KeepRatio * mean.
	KeepRatio float64

	// MinKeep is the minimum number of entries kept (capped at the ledger size).
	MinKeep int
}

// Rerank scores every entry, drops those below KeepRatio of the mean score,
// sorts the rest by descending score, and renumbers them 1..N. A scoring
// error or out-of-range score counts as 0 and 10 respectively after
// clamping. When fewer than min(MinKeep, n) entries pass, the top
// min(MinKeep, n) by score are kept instead, so a non-empty ledger never
// comes back empty. The input slice is not modified.
func Rerank(ctx context.Context, topic string, entries []types.LedgerEntry, scorer Scorer, opts RerankOptions) []types.LedgerEntry {
	n := len(entries)
	if n == 0 {
		return []types.LedgerEntry{}
	}

	scored := make([]types.LedgerEntry, n)
	copy(scored, entries)

	var sum float64
	for i := range scored {
		s, err := scorer.Score(ctx, topic, scored[i])
		if err != nil || math.IsNaN(s) {
			s = 0
		}
		s = math.Max(0, math.Min(10, s))
		scored[i].Score = s
		sum += s
	}
	mean := sum / float64(n)

	// Stable sort keeps ledger order among equal scores.
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	threshold := opts.KeepRatio * mean
	kept := make([]types.LedgerEntry, 0, n)
	for _, e := range scored {
		if e.Score >= threshold {
			kept = append(kept, e)
		}
	}

	floor := opts.MinKeep
	if floor <= 0 {
		floor = 1
	}
	if floor > n {
		floor = n
	}
	if len(kept) < floor {
		kept = append(kept[:0], scored[:floor]...)
	}

	Renumber(kept)
	return kept
}
