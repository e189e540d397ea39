// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/proposal-engine/internal/draft"
	"github.com/pdiddy/proposal-engine/internal/review"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

var reviewCmd = &cobra.Command{
	Use:   "review <document.md>",
	Short: "Review an existing proposal",
	Long: `Review scores a proposal document on structure, rigor, methodology,
novelty, feasibility, and citation quality, and reports its strengths,
weaknesses, and suggestions. Citation metadata is computed from the
references side file next to the document when one exists.

The result is written as JSON; pass it to improve with --review.`,
	Args: cobra.ExactArgs(1),
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().String("topic", "", "research topic (default: read from the document title)")
	reviewCmd.Flags().String("references", "", "references file, JSON or YAML (default: <document>.references.json)")
	reviewCmd.Flags().String("output", "", "write the review here instead of stdout")
	reviewCmd.Flags().Bool("guidance", false, "also generate revision guidance")

	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
	docPath := args[0]
	data, err := os.ReadFile(docPath)
	if err != nil {
		return fmt.Errorf("reading document: %w", err)
	}
	document := string(data)

	topic, _ := cmd.Flags().GetString("topic")
	if topic == "" {
		topic = draft.Topic(document)
	}
	if topic == "" {
		return fmt.Errorf("no topic in the document title, pass --topic")
	}

	refsPath, _ := cmd.Flags().GetString("references")
	refs, err := loadSiblingReferences(docPath, refsPath)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	gen, err := newGenerator(cfg.AI, &http.Client{})
	if err != nil {
		return err
	}
	reviewer := review.NewReviewer(gen)

	ctx := context.Background()
	res, err := reviewer.Review(ctx, topic, document)
	if err != nil {
		return err
	}
	res.Metadata = review.Metadata(document, refs)

	rec := draft.ReviewRecord{
		SessionID: strings.TrimSuffix(filepath.Base(docPath), filepath.Ext(docPath)),
		Topic:     topic,
		Review:    res,
	}
	if withGuidance, _ := cmd.Flags().GetBool("guidance"); withGuidance {
		if rec.Guidance, err = reviewer.Guidance(ctx, topic, res); err != nil {
			return err
		}
	}

	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		fmt.Println(string(out))
	} else if err := os.WriteFile(output, append(out, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing review: %w", err)
	}
	printScores(res)
	return nil
}

// loadSiblingReferences reads explicit, or <doc>.references.json when
// explicit is empty. A missing sibling file means no references.
func loadSiblingReferences(docPath, explicit string) ([]types.LedgerEntry, error) {
	if explicit != "" {
		return draft.LoadReferences(explicit)
	}
	sibling := strings.TrimSuffix(docPath, filepath.Ext(docPath)) + ".references.json"
	if _, err := os.Stat(sibling); err != nil {
		return nil, nil
	}
	return draft.LoadReferences(sibling)
}

func printScores(res *types.ReviewResult) {
	for _, c := range types.Criteria {
		if score, ok := res.Scores[c]; ok {
			fmt.Fprintf(os.Stderr, "  %-20s %4.1f\n", c, score)
		}
	}
	fmt.Fprintf(os.Stderr, "  %-20s %4.1f\n", "overall", res.Overall)
	if m := res.Metadata; m != nil {
		fmt.Fprintf(os.Stderr, "  %d citations of %d references, density %.2f\n", m.CitationMarkers, m.References, m.Density)
		if len(m.Dangling) > 0 {
			fmt.Fprintf(os.Stderr, "  cited ids missing from the references: %v\n", m.Dangling)
		}
	}
}
