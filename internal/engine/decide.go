// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"github.com/pdiddy/proposal-engine/internal/memory"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

// Decision is the outcome of one evaluation of the research loop.
type Decision int

const (
	// Execute runs the step at CurrentStep.
	Execute Decision = iota

	// Replan resets CurrentStep and asks for a new step list.
	Replan

	// Summarize folds new memory entries into the history summary.
	Summarize

	// Finish leaves the research loop for drafting.
	Finish
)

func (d Decision) String() string {
	switch d {
	case Execute:
		return "execute"
	case Replan:
		return "replan"
	case Summarize:
		return "summarize"
	case Finish:
		return "finish"
	default:
		return "unknown"
	}
}

// Decide picks what the research loop does next. Rules apply in fixed
// priority order and the function reads nothing but its arguments:
//
//  1. the iteration budget is spent: Finish
//  2. the plan is exhausted: Finish
//  3. a summarization boundary with unsummarized entries: Summarize
//  4. enough papers and web results: Finish
//  5. the recent success rate is below the re-plan threshold: Replan
//  6. otherwise: Execute
func Decide(s *types.Session, cfg types.EngineConfig) Decision {
	if len(s.Memory) >= s.MaxIterations {
		return Finish
	}
	if s.CurrentStep >= len(s.Steps) {
		return Finish
	}
	if cfg.SummarizeInterval > 0 && s.CurrentStep > 0 &&
		s.CurrentStep%cfg.SummarizeInterval == 0 && len(s.Memory) > s.SummarizedThrough {
		return Summarize
	}
	if len(s.Papers) >= cfg.EvidenceThreshold && len(s.WebResults) >= cfg.EvidenceThreshold {
		return Finish
	}
	if rate, ok := memory.SuccessRate(s.Memory, cfg.ReplanWindow); ok && rate < cfg.ReplanSuccessRate {
		return Replan
	}
	return Execute
}
