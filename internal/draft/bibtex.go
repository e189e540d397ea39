// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package draft

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/pdiddy/proposal-engine/pkg/types"
)

// CitationKey derives a BibTeX key from the first author's surname and the
// publication year, suffixed with the ledger id so keys never collide
// (e.g. "Vaswani2017_3"). Entries without authors use "ref<id>".
func CitationKey(e types.LedgerEntry) string {
	if len(e.Authors) == 0 {
		return fmt.Sprintf("ref%d", e.ID)
	}
	fields := strings.Fields(e.Authors[0])
	surname := ""
	if len(fields) > 0 {
		surname = fields[len(fields)-1]
	}
	var b strings.Builder
	for _, r := range surname {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return fmt.Sprintf("ref%d", e.ID)
	}
	return fmt.Sprintf("%s%s_%d", b.String(), year(e.Published), e.ID)
}

func year(published string) string {
	if len(published) >= 4 {
		return published[:4]
	}
	return ""
}

// GenerateBibTeX renders the ledger as BibTeX: papers as arXiv articles,
// metadata records as journal articles with a DOI, web pages as misc
// entries with a URL.
func GenerateBibTeX(refs []types.LedgerEntry) string {
	var b strings.Builder
	for _, r := range refs {
		kind := "article"
		if r.Kind == types.KindWeb {
			kind = "misc"
		}
		fmt.Fprintf(&b, "@%s{%s,\n", kind, CitationKey(r))
		fmt.Fprintf(&b, "  title = {%s},\n", r.Title)
		if len(r.Authors) > 0 {
			fmt.Fprintf(&b, "  author = {%s},\n", strings.Join(r.Authors, " and "))
		}
		if y := year(r.Published); y != "" {
			fmt.Fprintf(&b, "  year = {%s},\n", y)
		}
		switch r.Kind {
		case types.KindPaper:
			fmt.Fprintf(&b, "  journal = {arXiv preprint arXiv:%s},\n", r.ArxivID)
			fmt.Fprintf(&b, "  eprint = {%s},\n", r.ArxivID)
			b.WriteString("  archivePrefix = {arXiv},\n")
		case types.KindMetadata:
			if r.Journal != "" {
				fmt.Fprintf(&b, "  journal = {%s},\n", r.Journal)
			}
			fmt.Fprintf(&b, "  doi = {%s},\n", r.DOI)
		default:
			fmt.Fprintf(&b, "  howpublished = {\\url{%s}},\n", r.URL)
		}
		b.WriteString("}\n\n")
	}
	return b.String()
}
