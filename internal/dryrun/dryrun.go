// Package dryrun trials every prompt variant for a single contact in
// parallel and writes the scored results to a JSON file for comparison.
package dryrun

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"outreach/internal/contact"
	"outreach/internal/evaluator"
	"outreach/internal/generator"
	"outreach/internal/pipeline"
	"outreach/internal/scrape"
)

// maxParallel bounds concurrent generation calls during a trial.
const maxParallel = 10

// VariantResult is the outcome of one prompt variant trial.
type VariantResult struct {
	VariantKey  string            `json:"variation_key"`
	VariantName string            `json:"variation_name"`
	Description string            `json:"variation_description"`
	Opener      string            `json:"opener"`
	Error       string            `json:"error,omitempty"`
	Success     bool              `json:"success"`
	Evaluation  *evaluator.Result `json:"evaluation,omitempty"`
}

// Report is the full dry-run output for one contact.
type Report struct {
	Timestamp time.Time       `json:"timestamp"`
	Contact   reportContact   `json:"contact"`
	Context   reportContext   `json:"context"`
	Results   []VariantResult `json:"results"`
}

type reportContact struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Company string `json:"company"`
	Domain  string `json:"domain"`
}

type reportContext struct {
	Quality        scrape.Quality `json:"quality"`
	HubURL         string         `json:"hub_url,omitempty"`
	SummaryPreview string         `json:"summary_preview,omitempty"`
}

// Tester generates and scores every variant for one contact.
type Tester struct {
	engine pipeline.OpenerGenerator
	scorer pipeline.Scorer
}

// New creates a Tester.
func New(engine pipeline.OpenerGenerator, scorer pipeline.Scorer) *Tester {
	return &Tester{engine: engine, scorer: scorer}
}

// TestAllVariants runs every prompt variant concurrently and returns the
// results in variant order. A failing variant reports its error without
// cancelling the others.
func (t *Tester) TestAllVariants(ctx context.Context, c contact.Contact, sctx scrape.SiteContext) []VariantResult {
	variants := generator.Variants
	results := make([]VariantResult, len(variants))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)

	for i, v := range variants {
		i, v := i, v
		g.Go(func() error {
			results[i] = t.trialVariant(gctx, c, sctx, v)
			// Branch failures are recorded in the result, never returned,
			// so siblings keep running.
			return nil
		})
	}
	g.Wait()

	return results
}

// trialVariant generates one opener and, on success, evaluates the
// assembled message.
func (t *Tester) trialVariant(ctx context.Context, c contact.Contact, sctx scrape.SiteContext, v generator.Variant) VariantResult {
	result := VariantResult{
		VariantKey:  v.Key,
		VariantName: v.Name,
		Description: v.Description,
	}

	opener, err := t.engine.GenerateOpener(ctx, c, sctx, v.Key, "", "")
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Opener = opener
	result.Success = true

	var tm generator.TemplateManager
	subject, body := tm.Assemble(c, opener)
	eval := t.scorer.Evaluate(ctx, body, subject)
	result.Evaluation = &eval

	return result
}

// WriteReport saves a timestamped JSON report for the contact into dir and
// returns its path.
func WriteReport(dir string, c contact.Contact, sctx scrape.SiteContext, results []VariantResult) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	preview := sctx.Summary
	if runes := []rune(preview); len(runes) > 500 {
		preview = string(runes[:500])
	}

	report := Report{
		Timestamp: time.Now().UTC(),
		Contact: reportContact{
			Email:   c.Email,
			Name:    c.FullName(),
			Company: c.Company,
			Domain:  c.Domain(),
		},
		Context: reportContext{
			Quality:        sctx.Quality,
			HubURL:         sctx.HubURL,
			SummaryPreview: preview,
		},
		Results: results,
	}

	name := fmt.Sprintf("dry_run_%s_%s.json", c.Domain(), report.Timestamp.Format("20060102_150405"))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}

	slog.Info("dry run report written", "path", path, "variants", len(results))
	return path, nil
}
