// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/pdiddy/proposal-engine/internal/acquire"
	"github.com/pdiddy/proposal-engine/internal/cache"
	"github.com/pdiddy/proposal-engine/internal/convert"
	"github.com/pdiddy/proposal-engine/internal/engine"
	"github.com/pdiddy/proposal-engine/internal/llm"
	"github.com/pdiddy/proposal-engine/internal/tools"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

// runtime holds the collaborators shared by every session of one process.
type runtime struct {
	cfg     types.Config
	log     *zap.Logger
	gen     llm.Generator
	invoker *tools.Invoker
	store   *cache.Store
}

// Close releases the cache store.
func (r *runtime) Close() error {
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}

// newGenerator returns the Claude backend with retries. Streaming is
// hidden from the engine when disabled in the configuration.
func newGenerator(cfg types.AIConfig, client *http.Client) (llm.Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no Anthropic API key: set ai.api_key, ANTHROPIC_API_KEY, or .secrets/anthropic-api-key")
	}
	backend := llm.NewClaudeBackend(cfg, client)
	if !cfg.Stream {
		return llm.WithRetry(llm.GeneratorFunc(backend.Generate), cfg.MaxRetries), nil
	}
	return llm.WithRetry(backend, cfg.MaxRetries), nil
}

// newRuntime builds the generator, cache store, and tool registry.
func newRuntime(ctx context.Context, cfg types.Config, log *zap.Logger) (*runtime, error) {
	client := &http.Client{Timeout: cfg.Tools.Timeout}
	gen, err := newGenerator(cfg.AI, &http.Client{})
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, log: log, gen: gen}
	if cfg.Cache.Enabled {
		rt.store, err = cache.Open(cfg.Cache)
		if err != nil {
			return nil, err
		}
	}

	search := []tools.Handler{
		&tools.ArxivSearch{Client: client, UserAgent: cfg.Tools.UserAgent, MaxResults: cfg.Tools.MaxResults},
		&tools.CrossrefSearch{Client: client, UserAgent: cfg.Tools.UserAgent, Mailto: cfg.Tools.Mailto, MaxResults: cfg.Tools.MaxResults},
	}
	if cfg.Tools.TavilyAPIKey != "" {
		search = append(search, &tools.TavilySearch{Client: client, APIKey: cfg.Tools.TavilyAPIKey, MaxResults: cfg.Tools.MaxResults})
	} else {
		log.Warn("no Tavily API key, search-web disabled")
	}

	rt.invoker = tools.NewInvoker(log)
	for _, h := range search {
		if rt.store != nil {
			h = tools.Cached(h, rt.store, log)
		}
		rt.invoker.Register(h)
	}

	conv, err := convert.New(ctx, cfg.Tools.Converter)
	if err != nil {
		log.Warn("document conversion unavailable, summarize-document disabled", zap.Error(err))
	} else {
		summarizer := &tools.DocumentSummarizer{
			Source: &acquire.Fetcher{
				Client:    client,
				UserAgent: cfg.Tools.UserAgent,
				Mailto:    cfg.Tools.Mailto,
				Dir:       cfg.Tools.WorkDir,
			},
			Converter: conv,
			Generator: gen,
		}
		rt.invoker.Register(tools.WithTimeout(summarizer, cfg.Engine.SummarizeTimeout))
	}
	rt.invoker.Register(&tools.TimelineDiagram{Generator: gen})

	log.Debug("tools registered", zap.Strings("actions", rt.invoker.Actions()))
	return rt, nil
}

// newEngine builds an engine over the runtime with the given sink and
// clarifier.
func (r *runtime) newEngine(sink engine.Sink, clarifier engine.Clarifier) (*engine.Engine, error) {
	return engine.New(engine.Config{
		EngineConfig: r.cfg.Engine,
		OutputDir:    r.cfg.Output.Dir,
		BibTeX:       r.cfg.Output.BibTeX,
		MaxResults:   r.cfg.Tools.MaxResults,
	}, engine.Deps{
		Generator: r.gen,
		Invoker:   r.invoker,
		Sink:      sink,
		Clarifier: clarifier,
		Logger:    r.log,
	})
}
