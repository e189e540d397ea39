// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAccessPDFs(t *testing.T) {
	tests := []struct {
		name     string
		response string
		status   int
		want     []string
		wantErr  bool
	}{
		{
			name:     "best location first",
			response: `{"best_oa_location": {"pdf_url": "https://a.org/best.pdf"}, "primary_location": {"pdf_url": "https://b.org/primary.pdf"}}`,
			status:   http.StatusOK,
			want:     []string{"https://a.org/best.pdf", "https://b.org/primary.pdf"},
		},
		{
			name: "locations deduplicated",
			response: `{"best_oa_location": {"pdf_url": "https://a.org/x.pdf"},
				"locations": [{"pdf_url": "https://a.org/x.pdf"}, {"pdf_url": ""}, {"pdf_url": "https://c.org/y.pdf"}]}`,
			status: http.StatusOK,
			want:   []string{"https://a.org/x.pdf", "https://c.org/y.pdf"},
		},
		{
			name:     "closed access",
			response: `{"best_oa_location": null, "primary_location": {"pdf_url": null}}`,
			status:   http.StatusOK,
		},
		{
			name:     "not found",
			response: `{"error": "not found"}`,
			status:   http.StatusNotFound,
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "team@example.com", r.URL.Query().Get("mailto"))
				assert.True(t, strings.HasSuffix(r.URL.Path, "10.1145/42"), r.URL.Path)
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.response)
			}))
			defer ts.Close()

			orig := openAlexAPIBase
			openAlexAPIBase = ts.URL + "/"
			defer func() { openAlexAPIBase = orig }()

			f := &Fetcher{Client: ts.Client(), UserAgent: "proposal-engine-test/0.1", Mailto: "team@example.com"}
			got, err := f.openAccessPDFs(context.Background(), "10.1145/42")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenAccessPDFsNetworkError(t *testing.T) {
	orig := openAlexAPIBase
	openAlexAPIBase = "http://127.0.0.1:1/"
	defer func() { openAlexAPIBase = orig }()

	f := &Fetcher{Client: http.DefaultClient, UserAgent: "proposal-engine-test/0.1"}
	_, err := f.openAccessPDFs(context.Background(), "10.1145/42")
	assert.Error(t, err)
}
