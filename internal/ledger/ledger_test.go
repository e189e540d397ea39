// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/proposal-engine/pkg/types"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Attention Is All You Need", "attention is all you need"},
		{"  Attention   is all you need!  ", "attention is all you need"},
		{"BERT: Pre-training of Deep Bidirectional Transformers", "bert pretraining of deep bidirectional transformers"},
		{"", ""},
		{"???", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTitle(tt.in))
		})
	}
}

func TestIngestDeduplicatesAndNumbers(t *testing.T) {
	papers := []types.PaperRecord{
		{ArxivID: "1706.03762", Title: "Attention Is All You Need", Authors: []string{"Vaswani"}},
		{ArxivID: "1706.03762", Title: "Attention is all you need.", Authors: []string{"Vaswani"}},
		{ArxivID: "1810.04805", Title: "BERT", Summary: "short", DetailedSummary: "long summary"},
		{Title: "Broken", Error: "timeout"},
		{Title: "   "},
	}
	web := []types.WebRecord{
		{Title: "ATTENTION IS ALL YOU NEED", URL: "https://example.com/a"},
		{Title: "A Survey of RAG", URL: "https://doi.org/10.1/rag", DOI: "10.1/rag", Journal: "J. AI"},
		{Title: "", URL: "https://blog.example.com/post", Content: strings.Repeat("x", 500)},
		{Title: "Failed", Error: "boom"},
	}

	got, added := Ingest(nil, papers, web)
	require.Equal(t, 4, added)
	require.NoError(t, Validate(got))

	assert.Equal(t, types.KindPaper, got[0].Kind)
	assert.Equal(t, "long summary", got[1].Summary, "detailed summary is preferred")
	assert.Equal(t, types.KindMetadata, got[2].Kind)
	assert.Equal(t, "10.1/rag", got[2].DOI)
	assert.Equal(t, types.KindWeb, got[3].Kind)
	assert.Equal(t, "https://blog.example.com/post", got[3].Title, "URL stands in for a missing title")
	assert.Len(t, got[3].ContentPreview, previewLen)
}

func TestIngestIsIncremental(t *testing.T) {
	first, _ := Ingest(nil, []types.PaperRecord{{ArxivID: "1", Title: "One"}}, nil)
	second, added := Ingest(first, []types.PaperRecord{
		{ArxivID: "1", Title: "One (v2 title)"},
		{ArxivID: "2", Title: "one"},
		{ArxivID: "3", Title: "Three"},
	}, nil)

	assert.Equal(t, 1, added, "same arXiv id and same normalized title are both duplicates")
	require.Len(t, second, 2)
	assert.Equal(t, 2, second[1].ID)
	assert.Equal(t, "Three", second[1].Title)
	require.NoError(t, Validate(second))
}

func TestIngestNeverDuplicatesTitles(t *testing.T) {
	var entries []types.LedgerEntry
	titles := []string{"Deep Learning", "deep learning", "Deep-Learning", "Deep  Learning!", "Shallow Learning"}
	for i, title := range titles {
		entries, _ = Ingest(entries, nil, []types.WebRecord{{Title: title, URL: "https://x.test/" + string(rune('a'+i))}})
		require.NoError(t, Validate(entries), "after ingesting %q", title)
	}
	assert.Len(t, entries, 3, "Deep-Learning normalizes to deeplearning, a distinct title")
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(nil))
	assert.Error(t, Validate([]types.LedgerEntry{{ID: 2, Title: "a"}}))
	assert.Error(t, Validate([]types.LedgerEntry{{ID: 1, Title: "A"}, {ID: 2, Title: "a."}}))
}

func TestLookup(t *testing.T) {
	entries := []types.LedgerEntry{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}}
	e, ok := Lookup(entries, 2)
	assert.True(t, ok)
	assert.Equal(t, "b", e.Title)
	_, ok = Lookup(entries, 3)
	assert.False(t, ok)
}

func TestFormat(t *testing.T) {
	accessed := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		entry types.LedgerEntry
		want  string
	}{
		{
			name: "paper",
			entry: types.LedgerEntry{ID: 1, Kind: types.KindPaper, Title: "Attention", Authors: []string{"A", "B"},
				ArxivID: "1706.03762", Published: "2017-06-12", Categories: []string{"cs.CL"}},
			want: "[1] A, B. Attention. arXiv:1706.03762 (2017-06-12). Categories: cs.CL",
		},
		{
			name: "metadata",
			entry: types.LedgerEntry{ID: 2, Kind: types.KindMetadata, Title: "RAG", Authors: []string{"C"},
				Journal: "J. AI", Published: "2021", DOI: "10.1/rag"},
			want: "[2] C. RAG. J. AI (2021). DOI: 10.1/rag",
		},
		{
			name:  "web",
			entry: types.LedgerEntry{ID: 3, Kind: types.KindWeb, Title: "Blog", URL: "https://b.test"},
			want:  "[3] Blog. Accessed 2026-05-04. URL: https://b.test",
		},
		{
			name:  "paper without authors or date",
			entry: types.LedgerEntry{ID: 4, Kind: types.KindPaper, Title: "X", ArxivID: "1"},
			want:  "[4] Unknown authors. X. arXiv:1 (n.d.)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.entry, accessed))
		})
	}
}

func TestNumberedGroupsByKind(t *testing.T) {
	entries := []types.LedgerEntry{
		{ID: 1, Kind: types.KindWeb, Title: "Blog", URL: "https://b.test"},
		{ID: 2, Kind: types.KindPaper, Title: "Paper"},
	}
	out := Numbered(entries)
	assert.Less(t, strings.Index(out, "Papers:"), strings.Index(out, "Web sources:"))
	assert.Contains(t, out, "[2] Paper")
	assert.Contains(t, out, "[1] Blog")
	assert.NotContains(t, out, "Bibliographic records")

	assert.Equal(t, "(no references collected)", Numbered(nil))
}

func TestCounts(t *testing.T) {
	entries := []types.LedgerEntry{{Kind: types.KindWeb}, {Kind: types.KindWeb}, {Kind: types.KindPaper}}
	c := Counts(entries)
	assert.Equal(t, 2, c[types.KindWeb])
	assert.Equal(t, 1, c[types.KindPaper])
	assert.Equal(t, 0, c[types.KindMetadata])
}
