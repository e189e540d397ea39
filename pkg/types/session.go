// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the data shared across proposal-engine packages:
// the session record, references, reviews, stream messages, and
// configuration.
package types

import "strings"

// SectionName identifies one drafted section of a proposal.
type SectionName string

const (
	SectionIntroduction     SectionName = "introduction"
	SectionLiteratureReview SectionName = "literature_review"
	SectionDesign           SectionName = "research_design"
	SectionConclusion       SectionName = "conclusion"
)

// SectionOrder is the order in which sections are drafted and rendered.
var SectionOrder = []SectionName{
	SectionIntroduction,
	SectionLiteratureReview,
	SectionDesign,
	SectionConclusion,
}

// Title returns the heading used for the section in rendered documents.
func (s SectionName) Title() string {
	switch s {
	case SectionIntroduction:
		return "Introduction"
	case SectionLiteratureReview:
		return "Literature Review"
	case SectionDesign:
		return "Research Design"
	case SectionConclusion:
		return "Conclusion"
	default:
		return string(s)
	}
}

// SessionStatus tracks a session through its lifecycle.
type SessionStatus string

const (
	StatusRunning   SessionStatus = "running"
	StatusCompleted SessionStatus = "completed"
	StatusFailed    SessionStatus = "failed"
)

// ExecutionStep is one planned tool invocation.
type ExecutionStep struct {
	// ID is the 1-based position of the step in the plan it came from.
	ID int `json:"id" yaml:"id"`

	// Action is the tool name (e.g. "search-papers").
	Action string `json:"action" yaml:"action"`

	// Parameters are passed to the tool unchanged.
	Parameters map[string]any `json:"parameters" yaml:"parameters"`

	// Description explains what the step is meant to find.
	Description string `json:"description" yaml:"description"`
}

// MemoryEntry records the outcome of one executed step.
type MemoryEntry struct {
	StepID        int    `json:"step_id" yaml:"step_id"`
	Action        string `json:"action" yaml:"action"`
	Description   string `json:"description" yaml:"description"`
	ResultSummary string `json:"result_summary" yaml:"result_summary"`
	Success       bool   `json:"success" yaml:"success"`
}

// Session is the single mutable record threaded through every workflow
// step. Exactly one goroutine mutates a Session at a time.
type Session struct {
	// ID keys the session on the message bus and in persisted output.
	ID string `json:"session_id" yaml:"session_id"`

	// Topic is the research question. It never changes after creation.
	Topic string `json:"topic" yaml:"topic"`

	// ClarificationQuestions are the questions pushed to the user.
	ClarificationQuestions []string `json:"clarification_questions,omitempty" yaml:"clarification_questions,omitempty"`

	// UserClarification is the user's answer; empty when absent.
	UserClarification string `json:"user_clarification,omitempty" yaml:"user_clarification,omitempty"`

	// Plan is the free-text research plan.
	Plan string `json:"plan,omitempty" yaml:"plan,omitempty"`

	// Steps is the current execution plan. Replaced wholesale on re-plan.
	Steps []ExecutionStep `json:"steps" yaml:"steps"`

	// CurrentStep indexes Steps. Always <= len(Steps).
	CurrentStep int `json:"current_step" yaml:"current_step"`

	// MaxIterations bounds len(Memory).
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`

	// Memory holds one entry per executed step.
	Memory []MemoryEntry `json:"memory" yaml:"memory"`

	// HistorySummary condenses Memory; empty when absent.
	HistorySummary string `json:"history_summary,omitempty" yaml:"history_summary,omitempty"`

	// SummarizedThrough is the memory length HistorySummary covers.
	SummarizedThrough int `json:"summarized_through" yaml:"summarized_through"`

	// Papers and WebResults are tool results, append-only.
	Papers     []PaperRecord `json:"papers" yaml:"papers"`
	WebResults []WebRecord   `json:"web_results" yaml:"web_results"`

	// References is the deduplicated, numbered reference ledger.
	References []LedgerEntry `json:"references" yaml:"references"`

	// Sections maps each drafted section to its text.
	Sections map[SectionName]string `json:"sections" yaml:"sections"`

	// Timeline is the Mermaid source of the project timeline, if one was generated.
	Timeline string `json:"timeline,omitempty" yaml:"timeline,omitempty"`

	// Review is the latest review; nil when no review is available.
	Review *ReviewResult `json:"review,omitempty" yaml:"review,omitempty"`

	// Guidance steers drafting. It is either pre-seeded for an improvement
	// run or produced by the review loop.
	Guidance *RevisionGuidance `json:"guidance,omitempty" yaml:"guidance,omitempty"`

	// ImprovementAttempt counts revision cycles. Never exceeds 1.
	ImprovementAttempt int `json:"improvement_attempt" yaml:"improvement_attempt"`

	// FinalDocument is the rendered Markdown proposal.
	FinalDocument string `json:"final_document,omitempty" yaml:"final_document,omitempty"`

	// DocumentPath and ReferencesPath are set after a successful persist.
	DocumentPath   string `json:"document_path,omitempty" yaml:"document_path,omitempty"`
	ReferencesPath string `json:"references_path,omitempty" yaml:"references_path,omitempty"`

	Status SessionStatus `json:"status" yaml:"status"`
	Err    string        `json:"error,omitempty" yaml:"error,omitempty"`

	// StreamStep is the step number of the last streamed block and
	// StreamBlock identifies it, so chunks of one block share a number.
	StreamStep  int    `json:"-" yaml:"-"`
	StreamBlock string `json:"-" yaml:"-"`
}

// NewSession returns a session with empty collections.
func NewSession(id, topic string, maxIterations int) *Session {
	return &Session{
		ID:            id,
		Topic:         topic,
		MaxIterations: maxIterations,
		Steps:         []ExecutionStep{},
		Memory:        []MemoryEntry{},
		Papers:        []PaperRecord{},
		WebResults:    []WebRecord{},
		References:    []LedgerEntry{},
		Sections:      make(map[SectionName]string),
		Status:        StatusRunning,
	}
}

// ResearchQuestion returns the topic with the user's clarification
// appended when one was given.
func (s *Session) ResearchQuestion() string {
	c := strings.TrimSpace(s.UserClarification)
	if c == "" {
		return s.Topic
	}
	return s.Topic + "\n\nClarification: " + c
}

// HasGuidance reports whether drafting should follow revision guidance.
func (s *Session) HasGuidance() bool {
	return s.Guidance != nil && !s.Guidance.Empty()
}
