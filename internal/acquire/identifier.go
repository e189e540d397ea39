// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// Kind classifies a document identifier.
type Kind int

const (
	KindUnknown Kind = iota
	KindArxiv
	KindDOI
	KindURL
)

func (k Kind) String() string {
	switch k {
	case KindArxiv:
		return "arxiv"
	case KindDOI:
		return "doi"
	case KindURL:
		return "url"
	default:
		return "unknown"
	}
}

// Download endpoints, swapped in tests.
var (
	arxivPDFBase = "https://arxiv.org/pdf/"
	doiBase      = "https://doi.org/"
)

var (
	// arxivID matches "2301.07041", "arXiv:2301.07041v2", and the arxiv.org
	// abs and pdf page URLs that search results carry.
	arxivID = regexp.MustCompile(`^(?:arXiv:|https?://(?:export\.)?arxiv\.org/(?:abs|pdf)/)?(\d{4}\.\d{4,5}(?:v\d+)?)(?:\.pdf)?/?$`)

	doiPattern = regexp.MustCompile(`^10\.\d{4,9}/\S+$`)
)

// Identifier is a parsed document reference.
type Identifier struct {
	Kind  Kind
	Value string
}

// Parse classifies raw. DOIs lose their "doi:" or resolver prefix; arXiv
// page URLs reduce to the bare id.
func Parse(raw string) Identifier {
	raw = strings.TrimSpace(raw)
	if m := arxivID.FindStringSubmatch(raw); m != nil {
		return Identifier{KindArxiv, m[1]}
	}
	doi := raw
	for _, p := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "doi:"} {
		doi = strings.TrimPrefix(doi, p)
	}
	if doiPattern.MatchString(doi) {
		return Identifier{KindDOI, doi}
	}
	if u, err := url.Parse(raw); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return Identifier{KindURL, raw}
	}
	return Identifier{KindUnknown, raw}
}

func (id Identifier) String() string {
	return id.Kind.String() + ":" + id.Value
}

// Slug is the file name stem the identifier's PDF is stored under. Stems
// carry the kind so an arXiv id and a DOI never collide.
func (id Identifier) Slug() string {
	switch id.Kind {
	case KindArxiv:
		return "arxiv-" + id.Value
	case KindDOI:
		return "doi-" + strings.NewReplacer("/", "-", ":", "-").Replace(id.Value)
	case KindURL:
		if u, err := url.Parse(id.Value); err == nil {
			base := strings.TrimSuffix(path.Base(u.Path), path.Ext(u.Path))
			if base != "" && base != "." && base != "/" {
				return "url-" + base
			}
		}
		h := sha256.Sum256([]byte(id.Value))
		return fmt.Sprintf("url-%x", h[:8])
	default:
		return "unknown"
	}
}

// directURL is where the PDF is fetched from when no open-access copy is
// known. DOIs go through the resolver, which may land on an HTML page.
func (id Identifier) directURL() string {
	switch id.Kind {
	case KindArxiv:
		return arxivPDFBase + id.Value
	case KindDOI:
		return doiBase + id.Value
	case KindURL:
		return id.Value
	default:
		return ""
	}
}
