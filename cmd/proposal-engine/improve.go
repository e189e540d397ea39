// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/proposal-engine/internal/bus"
	"github.com/pdiddy/proposal-engine/internal/draft"
	"github.com/pdiddy/proposal-engine/internal/engine"
	"github.com/pdiddy/proposal-engine/internal/review"
)

var improveCmd = &cobra.Command{
	Use:   "improve",
	Short: "Regenerate a proposal guided by an earlier review",
	Long: `Improve runs the full workflow again for the topic of an earlier review,
with revision guidance steering the plan and every drafted section. The
guidance stored in the review file is used when present; otherwise it is
generated from the review's scores and suggestions.

The improvement run is the proposal's one revision cycle: its own review is
recorded but does not trigger another revision.`,
	RunE: runImprove,
}

func init() {
	improveCmd.Flags().String("review", "", "review file written by review or generate (JSON or YAML)")
	improveCmd.Flags().String("topic", "", "research topic (default: the topic stored in the review)")
	improveCmd.Flags().Bool("quiet", false, "do not print progress messages")
	_ = improveCmd.MarkFlagRequired("review")

	rootCmd.AddCommand(improveCmd)
}

func runImprove(cmd *cobra.Command, args []string) error {
	reviewPath, _ := cmd.Flags().GetString("review")
	rec, err := draft.LoadReview(reviewPath)
	if err != nil {
		return err
	}
	topic, _ := cmd.Flags().GetString("topic")
	if topic == "" {
		topic = rec.Topic
	}
	if topic == "" {
		return fmt.Errorf("review file has no topic, pass --topic")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	rt, err := newRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	guidance := rec.Guidance
	if guidance.Empty() {
		guidance, err = review.NewReviewer(rt.gen).Guidance(ctx, topic, rec.Review)
		if err != nil {
			return err
		}
	}
	log.Info("improving proposal", zap.Float64("previous_overall", rec.Review.Overall), zap.Int("instructions", len(guidance.Instructions)))

	messages := bus.New(cfg.Server.Backlog)
	eng, err := rt.newEngine(messages, nil)
	if err != nil {
		return err
	}
	s := eng.NewSession(topic, engine.WithGuidance(guidance))

	quiet, _ := cmd.Flags().GetBool("quiet")
	var progress sync.WaitGroup
	progress.Add(1)
	go func() {
		defer progress.Done()
		printProgress(ctx, messages, s.ID, os.Stderr, quiet)
	}()

	_, err = eng.Run(ctx, s)
	progress.Wait()
	if err != nil {
		return err
	}
	reportSession(os.Stdout, s)
	if s.Review != nil {
		fmt.Fprintf(os.Stderr, "Overall score %.1f -> %.1f\n", rec.Review.Overall, s.Review.Overall)
	}
	return nil
}
