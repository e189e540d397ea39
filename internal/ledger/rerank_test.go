// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/proposal-engine/pkg/types"
)

func entriesWithTitles(titles ...string) []types.LedgerEntry {
	out := make([]types.LedgerEntry, len(titles))
	for i, t := range titles {
		out[i] = types.LedgerEntry{ID: i + 1, Kind: types.KindPaper, Title: t}
	}
	return out
}

// fixedScores returns the score mapped to each title, or an error for
// titles mapped to a negative value.
func fixedScores(scores map[string]float64) Scorer {
	return ScorerFunc(func(_ context.Context, _ string, e types.LedgerEntry) (float64, error) {
		s := scores[e.Title]
		if s < 0 {
			return 0, errors.New("unscorable")
		}
		return s, nil
	})
}

var defaultOpts = RerankOptions{KeepRatio: 0.6, MinKeep: 3}

func TestRerankKeepsAboveRatioAndSorts(t *testing.T) {
	entries := entriesWithTitles("a", "b", "c", "d", "e")
	// mean = (9+1+6+8+1)/5 = 5, threshold = 3
	scorer := fixedScores(map[string]float64{"a": 9, "b": 1, "c": 6, "d": 8, "e": 1})

	got := Rerank(context.Background(), "topic", entries, scorer, defaultOpts)

	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "d", "c"}, titlesOf(got))
	assert.Equal(t, []int{1, 2, 3}, idsOf(got))
	assert.Equal(t, 9.0, got[0].Score)
	require.NoError(t, Validate(got))

	assert.Equal(t, 2, entries[1].ID, "input is not modified")
	assert.Zero(t, entries[0].Score)
}

func TestRerankClampsAndTreatsErrorsAsZero(t *testing.T) {
	entries := entriesWithTitles("a", "b", "c", "d")
	scorer := fixedScores(map[string]float64{"a": 42, "b": -1, "c": 10, "d": 0})

	got := Rerank(context.Background(), "topic", entries, scorer, defaultOpts)

	// a clamps to 10; mean = 5, threshold = 3; b and d drop, then the
	// minimum of 3 pulls the best of them back in ledger order.
	require.Len(t, got, 3)
	assert.Equal(t, 10.0, got[0].Score)
	assert.Equal(t, []string{"a", "c", "b"}, titlesOf(got))
}

func TestRerankMinimumKept(t *testing.T) {
	for n := 1; n <= 8; n++ {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			titles := make([]string, n)
			scores := make(map[string]float64, n)
			for i := range titles {
				titles[i] = fmt.Sprintf("t%d", i)
				if i == 0 {
					scores[titles[i]] = 10
				}
			}
			// Raise the ratio so only the single top entry passes.
			opts := RerankOptions{KeepRatio: 1, MinKeep: 3}
			got := Rerank(context.Background(), "topic", entriesWithTitles(titles...), fixedScores(scores), opts)

			assert.GreaterOrEqual(t, len(got), min(3, n))
			assert.Equal(t, "t0", got[0].Title)
			require.NoError(t, Validate(got))
		})
	}
}

func TestRerankAllZeroKeepsEverything(t *testing.T) {
	entries := entriesWithTitles("a", "b", "c", "d", "e")
	got := Rerank(context.Background(), "topic", entries, fixedScores(nil), defaultOpts)
	assert.Len(t, got, 5)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, titlesOf(got))
}

func TestRerankEmpty(t *testing.T) {
	got := Rerank(context.Background(), "topic", nil, fixedScores(nil), defaultOpts)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func titlesOf(entries []types.LedgerEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Title
	}
	return out
}

func idsOf(entries []types.LedgerEntry) []int {
	out := make([]int, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}
