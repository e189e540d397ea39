// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package review

import (
	"math"

	"github.com/pdiddy/proposal-engine/internal/draft"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

// Citation density band, in markers per reference, that scores full marks.
const (
	densityLow  = 1.5
	densityHigh = 4.0
)

// Metadata scores the document's citation use against the ledger. Only the
// body above the references heading is counted.
func Metadata(document string, refs []types.LedgerEntry) *types.ReviewMetadata {
	markers, ids := draft.Citations(draft.Body(document))
	m := &types.ReviewMetadata{
		CitationMarkers: markers,
		CitedReferences: len(ids),
		References:      len(refs),
		Dangling:        draft.ValidateCitations(document, refs),
	}
	if len(refs) > 0 {
		m.Density = round(float64(markers)/float64(len(refs)), 2)
	}
	m.DensityScore = DensityScore(m.Density)
	return m
}

// DensityScore rates citation density on a 0-10 scale: full marks inside
// the band, linear below it, one point lost per marker above it down to 5.
func DensityScore(d float64) float64 {
	switch {
	case d >= densityLow && d <= densityHigh:
		return 10
	case d < densityLow:
		return round(10*d/densityLow, 1)
	default:
		return math.Max(5, round(10-(d-densityHigh), 1))
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
