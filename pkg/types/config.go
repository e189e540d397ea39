// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// HTTPConfig holds shared HTTP settings used by tools that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "proposal-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent" validate:"required"`
}

// EngineConfig holds the workflow thresholds. It is built once and shared
// read-only by every session.
type EngineConfig struct {
	// MaxIterations bounds the number of executed steps per session (default 10).
	MaxIterations int `json:"max_iterations" yaml:"max_iterations" mapstructure:"max_iterations" validate:"min=1"`

	// SummarizeInterval triggers summarization every N executed steps (default 1).
	SummarizeInterval int `json:"summarize_interval" yaml:"summarize_interval" mapstructure:"summarize_interval" validate:"min=1"`

	// EvidenceThreshold is the paper and web result count at which
	// execution stops early (default 3 each).
	EvidenceThreshold int `json:"evidence_threshold" yaml:"evidence_threshold" mapstructure:"evidence_threshold" validate:"min=1"`

	// ReplanWindow is the number of recent memory entries inspected for
	// the re-plan heuristic (default 3).
	ReplanWindow int `json:"replan_window" yaml:"replan_window" mapstructure:"replan_window" validate:"min=1"`

	// ReplanSuccessRate triggers a re-plan when the windowed success rate
	// falls below it (default 0.3).
	ReplanSuccessRate float64 `json:"replan_success_rate" yaml:"replan_success_rate" mapstructure:"replan_success_rate" validate:"gte=0,lte=1"`

	// ImproveThreshold is the overall review score below which one
	// revision cycle runs (default 8.5).
	ImproveThreshold float64 `json:"improve_threshold" yaml:"improve_threshold" mapstructure:"improve_threshold" validate:"gte=0,lte=10"`

	// Review enables the review loop.
	Review bool `json:"review" yaml:"review" mapstructure:"review"`

	// Rerank enables relevance re-ranking of the ledger before drafting.
	Rerank bool `json:"rerank" yaml:"rerank" mapstructure:"rerank"`

	// RerankKeepRatio keeps entries scoring at least this fraction of the
	// mean score (default 0.6).
	RerankKeepRatio float64 `json:"rerank_keep_ratio" yaml:"rerank_keep_ratio" mapstructure:"rerank_keep_ratio" validate:"gt=0,lte=1"`

	// RerankMinKeep is the number of entries kept when none pass the
	// ratio (default 3).
	RerankMinKeep int `json:"rerank_min_keep" yaml:"rerank_min_keep" mapstructure:"rerank_min_keep" validate:"min=1"`

	// ClarifyWait bounds the wait for a user clarification (default 30s).
	ClarifyWait time.Duration `json:"clarify_wait" yaml:"clarify_wait" mapstructure:"clarify_wait" validate:"gte=0"`

	// SummarizeTimeout bounds the document summarization tool (default 2m).
	SummarizeTimeout time.Duration `json:"summarize_timeout" yaml:"summarize_timeout" mapstructure:"summarize_timeout" validate:"gt=0"`

	// MaxQuestions caps the clarification questions (default 3).
	MaxQuestions int `json:"max_questions" yaml:"max_questions" mapstructure:"max_questions" validate:"min=1"`

	// MaxPlanSteps caps the steps accepted from one analysis (default 5).
	MaxPlanSteps int `json:"max_plan_steps" yaml:"max_plan_steps" mapstructure:"max_plan_steps" validate:"min=1"`

	// MemoryCap caps the execution memory (default 100).
	MemoryCap int `json:"memory_cap" yaml:"memory_cap" mapstructure:"memory_cap" validate:"min=1"`
}

// AIConfig holds settings for the generative model backend.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model" mapstructure:"model" validate:"required"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0"`

	// MaxTokens bounds each response (default 4096).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens" validate:"min=1"`

	// Stream enables streamed responses for drafting.
	Stream bool `json:"stream" yaml:"stream" mapstructure:"stream"`
}

// ConversionBackend identifies the PDF-to-text tool used by the document
// summarizer.
type ConversionBackend string

const (
	BackendPdftotext  ConversionBackend = "pdftotext"
	BackendMarkitdown ConversionBackend = "markitdown"
)

// ToolsConfig holds settings for the retrieval tools.
type ToolsConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// MaxResults is the default result count when a step omits max_results (default 5).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results" validate:"min=1"`

	// TavilyAPIKey enables the web search tool.
	TavilyAPIKey string `json:"tavily_api_key,omitempty" yaml:"tavily_api_key,omitempty" mapstructure:"tavily_api_key"`

	// Mailto is sent to Crossref for polite-pool access.
	Mailto string `json:"mailto,omitempty" yaml:"mailto,omitempty" mapstructure:"mailto"`

	// Converter selects the PDF-to-text backend.
	Converter ConversionBackend `json:"converter" yaml:"converter" mapstructure:"converter" validate:"oneof=pdftotext markitdown"`

	// WorkDir holds downloaded PDFs (default os.TempDir()).
	WorkDir string `json:"work_dir,omitempty" yaml:"work_dir,omitempty" mapstructure:"work_dir"`
}

// CacheConfig holds settings for the tool result cache.
type CacheConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Path is the SQLite database file (default ".cache/tools.db").
	Path string `json:"path" yaml:"path" mapstructure:"path" validate:"required_if=Enabled true"`

	// TTL is the entry lifetime (default 7 days).
	TTL time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl" validate:"gt=0"`
}

// OutputConfig holds settings for persisted documents.
type OutputConfig struct {
	// Dir is the directory for <sessionId>.md and side files (default "output/proposals").
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir" validate:"required"`

	// BibTeX also writes <sessionId>.bib.
	BibTeX bool `json:"bibtex" yaml:"bibtex" mapstructure:"bibtex"`
}

// ServerConfig holds settings for the HTTP and WebSocket server.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr" validate:"required"`

	// SessionTTL is how long finished sessions stay queryable (default 1h).
	SessionTTL time.Duration `json:"session_ttl" yaml:"session_ttl" mapstructure:"session_ttl" validate:"gt=0"`

	// Backlog bounds each session's message queue (default 100).
	Backlog int `json:"backlog" yaml:"backlog" mapstructure:"backlog" validate:"min=1"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	// File is the rotated JSON log file; empty disables file logging.
	File string `json:"file,omitempty" yaml:"file,omitempty" mapstructure:"file"`

	// Level is the minimum console level (debug, info, warn, error).
	Level string `json:"level" yaml:"level" mapstructure:"level" validate:"oneof=debug info warn error"`

	// JSON switches the console encoder to JSON.
	JSON bool `json:"json" yaml:"json" mapstructure:"json"`
}

// Config is the root configuration for proposal-engine.
type Config struct {
	Engine EngineConfig `json:"engine" yaml:"engine" mapstructure:"engine"`
	AI     AIConfig     `json:"ai" yaml:"ai" mapstructure:"ai"`
	Tools  ToolsConfig  `json:"tools" yaml:"tools" mapstructure:"tools"`
	Cache  CacheConfig  `json:"cache" yaml:"cache" mapstructure:"cache"`
	Output OutputConfig `json:"output" yaml:"output" mapstructure:"output"`
	Server ServerConfig `json:"server" yaml:"server" mapstructure:"server"`
	Log    LogConfig    `json:"log" yaml:"log" mapstructure:"log"`
}

// DefaultEngineConfig returns the workflow thresholds used when none are configured.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxIterations:     10,
		SummarizeInterval: 1,
		EvidenceThreshold: 3,
		ReplanWindow:      3,
		ReplanSuccessRate: 0.3,
		ImproveThreshold:  8.5,
		Review:            true,
		Rerank:            true,
		RerankKeepRatio:   0.6,
		RerankMinKeep:     3,
		ClarifyWait:       30 * time.Second,
		SummarizeTimeout:  2 * time.Minute,
		MaxQuestions:      3,
		MaxPlanSteps:      5,
		MemoryCap:         100,
	}
}

// DefaultConfig returns a complete configuration with every default applied.
func DefaultConfig() Config {
	return Config{
		Engine: DefaultEngineConfig(),
		AI: AIConfig{
			Model:      "claude-sonnet-4-5-20250929",
			MaxRetries: 3,
			MaxTokens:  4096,
			Stream:     true,
		},
		Tools: ToolsConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   30 * time.Second,
				UserAgent: "proposal-engine/0.1",
			},
			MaxResults: 5,
			Converter:  BackendPdftotext,
		},
		Cache: CacheConfig{
			Enabled: true,
			Path:    ".cache/tools.db",
			TTL:     7 * 24 * time.Hour,
		},
		Output: OutputConfig{
			Dir: "output/proposals",
		},
		Server: ServerConfig{
			Addr:       ":8080",
			SessionTTL: time.Hour,
			Backlog:    100,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

var validate = validator.New()

// Validate checks the configuration against its field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
