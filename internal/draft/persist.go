// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package draft

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/proposal-engine/pkg/types"
)

// Paths lists the files written for one session. Empty fields were not written.
type Paths struct {
	Document       string
	ReferencesJSON string
	ReferencesYAML string
	BibTeX         string
	Review         string
}

// ReviewRecord is the review side file: the latest review, the guidance it
// produced, and how many revision cycles ran.
type ReviewRecord struct {
	SessionID          string                  `json:"session_id" yaml:"session_id"`
	Topic              string                  `json:"topic" yaml:"topic"`
	Review             *types.ReviewResult     `json:"review" yaml:"review"`
	Guidance           *types.RevisionGuidance `json:"guidance,omitempty" yaml:"guidance,omitempty"`
	ImprovementAttempt int                     `json:"improvement_attempt" yaml:"improvement_attempt"`
}

// Write persists the session's final document under dir as
// <id>.md, <id>.references.json, and <id>.references.yaml, plus <id>.bib
// when bibtex is set and <id>.review.json when the session was reviewed.
func Write(dir string, s *types.Session, bibtex bool) (Paths, error) {
	if s.ID == "" {
		return Paths{}, fmt.Errorf("writing proposal: session has no id")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("creating output directory: %w", err)
	}
	base := filepath.Join(dir, s.ID)

	p := Paths{
		Document:       base + ".md",
		ReferencesJSON: base + ".references.json",
		ReferencesYAML: base + ".references.yaml",
	}
	if err := writeFile(p.Document, []byte(s.FinalDocument)); err != nil {
		return Paths{}, err
	}

	refs := s.References
	if refs == nil {
		refs = []types.LedgerEntry{}
	}
	data, err := json.MarshalIndent(refs, "", "  ")
	if err != nil {
		return Paths{}, fmt.Errorf("encoding references: %w", err)
	}
	if err := writeFile(p.ReferencesJSON, data); err != nil {
		return Paths{}, err
	}
	data, err = yaml.Marshal(refs)
	if err != nil {
		return Paths{}, fmt.Errorf("encoding references: %w", err)
	}
	if err := writeFile(p.ReferencesYAML, data); err != nil {
		return Paths{}, err
	}

	if bibtex {
		p.BibTeX = base + ".bib"
		if err := writeFile(p.BibTeX, []byte(GenerateBibTeX(refs))); err != nil {
			return Paths{}, err
		}
	}

	if s.Review != nil {
		p.Review = base + ".review.json"
		rec := ReviewRecord{
			SessionID:          s.ID,
			Topic:              s.Topic,
			Review:             s.Review,
			Guidance:           s.Guidance,
			ImprovementAttempt: s.ImprovementAttempt,
		}
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return Paths{}, fmt.Errorf("encoding review: %w", err)
		}
		if err := writeFile(p.Review, data); err != nil {
			return Paths{}, err
		}
	}
	return p, nil
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func decode(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	if isYAML(path) {
		err = yaml.Unmarshal(data, v)
	} else {
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// LoadReferences reads a references side file, JSON or YAML by extension.
func LoadReferences(path string) ([]types.LedgerEntry, error) {
	var refs []types.LedgerEntry
	if err := decode(path, &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

// LoadReview reads a review side file. A bare review result (as printed by
// the review command) is accepted as well as a full ReviewRecord.
func LoadReview(path string) (*ReviewRecord, error) {
	var rec ReviewRecord
	if err := decode(path, &rec); err != nil {
		return nil, err
	}
	if rec.Review != nil && len(rec.Review.Scores) > 0 {
		return &rec, nil
	}

	var bare types.ReviewResult
	if err := decode(path, &bare); err != nil {
		return nil, err
	}
	if len(bare.Scores) == 0 {
		return nil, fmt.Errorf("parsing %s: no review scores", filepath.Base(path))
	}
	return &ReviewRecord{Review: &bare, Guidance: rec.Guidance}, nil
}
