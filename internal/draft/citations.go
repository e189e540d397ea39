// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package draft

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/proposal-engine/pkg/types"
)

// citationPattern matches numeric citation groups: [3] or [1, 4].
var citationPattern = regexp.MustCompile(`\[\d+(?:,\s*\d+)*\]`)

// Citations returns the citation groups in text and the distinct ids they
// cite in ascending order.
func Citations(text string) (markers int, ids []int) {
	groups := citationPattern.FindAllString(text, -1)
	seen := make(map[int]bool)
	for _, g := range groups {
		for _, part := range strings.Split(strings.Trim(g, "[]"), ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || seen[n] {
				continue
			}
			seen[n] = true
			ids = append(ids, n)
		}
	}
	sort.Ints(ids)
	return len(groups), ids
}

// ValidateCitations returns the ids cited in the document body that have no
// ledger entry.
func ValidateCitations(document string, refs []types.LedgerEntry) []int {
	known := make(map[int]bool, len(refs))
	for _, r := range refs {
		known[r.ID] = true
	}
	_, ids := Citations(Body(document))
	var missing []int
	for _, id := range ids {
		if !known[id] {
			missing = append(missing, id)
		}
	}
	return missing
}
