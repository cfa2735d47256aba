package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"outreach/internal/analyzer"
	"outreach/internal/cache"
	"outreach/internal/config"
	"outreach/internal/evaluator"
	"outreach/internal/fetch"
	"outreach/internal/generator"
	"outreach/internal/llm"
	"outreach/internal/pipeline"
	"outreach/internal/scrape"
)

// app bundles the wired pipeline components for one command invocation.
type app struct {
	cfg    config.Config
	store  *cache.Store
	chat   *llm.Client
	finder *scrape.HubFinder
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// newApp loads config and wires the fetch/scrape/LLM/cache stack shared by
// the processing commands.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	store, err := cache.Open(cfg.Cache.DBPath, time.Duration(cfg.Cache.TTLDays)*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}

	chat := llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey)
	limiter := fetch.NewLimiter(cfg.RateLimit.RequestsPerSecond,
		time.Duration(cfg.RateLimit.DomainDelaySeconds*float64(time.Second)))
	fetcher := fetch.New(limiter, time.Duration(cfg.Scrape.TimeoutSeconds*float64(time.Second)))
	ranker := scrape.NewModelRanker(chat, cfg.LLM.FastModel)
	finder := scrape.NewHubFinder(fetcher, ranker, cfg.Scrape.MaxAttempts)

	return &app{cfg: cfg, store: store, chat: chat, finder: finder}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func (a *app) analyzer() *analyzer.Analyzer {
	return analyzer.New(a.finder, a.store,
		a.cfg.Scrape.MaxArticles, a.cfg.Scrape.MinArticleWords, a.cfg.Scrape.MaxSummaryChars)
}

func (a *app) evaluator() *evaluator.Evaluator {
	return evaluator.New(a.chat, a.cfg.LLM.Model, a.cfg.Evaluation.Threshold, evaluator.Weights{
		AI:         a.cfg.Evaluation.AIWeight,
		Style:      a.cfg.Evaluation.StyleWeight,
		Other:      a.cfg.Evaluation.OtherWeight,
		Multiplier: a.cfg.Evaluation.Multiplier,
	})
}

// engine uses the fast model when cheap is set (dry runs).
func (a *app) engine(cheap bool) *generator.Engine {
	model := a.cfg.LLM.Model
	if cheap {
		model = a.cfg.LLM.FastModel
	}
	return generator.NewEngine(a.chat, model, a.cfg.LLM.MaxTokens)
}

func (a *app) orchestrator() *pipeline.Orchestrator {
	return pipeline.NewOrchestrator(a.engine(false), a.evaluator(), a.cfg.Generation.MaxRetries)
}
