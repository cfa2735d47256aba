package pipeline

import (
	"context"
	"log/slog"

	"outreach/internal/contact"
	"outreach/internal/evaluator"
	"outreach/internal/generator"
	"outreach/internal/scrape"
)

// OpenerGenerator produces one opener per call. Satisfied by
// *generator.Engine.
type OpenerGenerator interface {
	GenerateOpener(ctx context.Context, c contact.Contact, sctx scrape.SiteContext, variantKey, prior, feedback string) (string, error)
}

// Scorer evaluates a candidate message. Satisfied by *evaluator.Evaluator.
type Scorer interface {
	Evaluate(ctx context.Context, body, subject string) evaluator.Result
	Threshold() int
}

// Orchestrator runs the bounded generate-evaluate retry loop for one
// contact. It always produces a message: an accepted attempt, the
// best-scoring rejected attempt once the retry budget is spent, or a static
// template when generation never produced usable text.
type Orchestrator struct {
	engine     OpenerGenerator
	scorer     Scorer
	templates  generator.TemplateManager
	maxRetries int
}

// NewOrchestrator creates an Orchestrator. maxRetries is the number of
// regeneration attempts after the first, so the loop makes at most
// maxRetries+1 attempts.
func NewOrchestrator(engine OpenerGenerator, scorer Scorer, maxRetries int) *Orchestrator {
	return &Orchestrator{engine: engine, scorer: scorer, maxRetries: maxRetries}
}

// Generate produces the message for one contact. initialVariant names the
// prompt variant for the first attempt; empty means the first in the
// variant order. Model failures never escape: they end this contact's loop
// and fall back to the template.
func (o *Orchestrator) Generate(ctx context.Context, c contact.Contact, sctx scrape.SiteContext, initialVariant string) GeneratedMessage {
	if !sctx.HasUsableContent() {
		slog.Debug("context not usable, using template", "recipient", c.Email, "quality", sctx.Quality)
		return o.templateMessage(c)
	}

	if initialVariant == "" {
		initialVariant = generator.VariantKeys()[0]
	}

	maxAttempts := o.maxRetries + 1
	ledger := make([]Attempt, 0, maxAttempts)

	variant := initialVariant
	prior, feedback := "", ""

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		opener, err := o.engine.GenerateOpener(ctx, c, sctx, variant, prior, feedback)
		if err != nil {
			slog.Warn("generation failed, using template",
				"recipient", c.Email, "attempt", attempt, "variant", variant, "error", err)
			return o.templateMessage(c)
		}

		subject, body := o.templates.Assemble(c, opener)
		eval := o.scorer.Evaluate(ctx, body, subject)
		ledger = append(ledger, Attempt{
			Number:     attempt,
			Variant:    variant,
			Opener:     opener,
			Subject:    subject,
			Body:       body,
			Evaluation: eval,
		})

		if eval.IsAcceptable {
			slog.Info("candidate accepted",
				"recipient", c.Email, "attempt", attempt, "variant", variant, "score", eval.QualityScore)
			return o.attemptMessage(c, ledger[len(ledger)-1])
		}

		slog.Info("candidate rejected",
			"recipient", c.Email, "attempt", attempt, "variant", variant,
			"score", eval.QualityScore, "threshold", o.scorer.Threshold())

		prior = opener
		feedback = eval.FeedbackText(o.scorer.Threshold())
		variant = o.nextVariant(ledger)
	}

	// Retry budget spent: keep the best attempt rather than discarding the
	// work. Earliest attempt wins ties.
	best := ledger[0]
	for _, a := range ledger[1:] {
		if a.Evaluation.QualityScore > best.Evaluation.QualityScore {
			best = a
		}
	}
	slog.Info("retry budget exhausted, keeping best attempt",
		"recipient", c.Email, "attempt", best.Number, "score", best.Evaluation.QualityScore)
	return o.attemptMessage(c, best)
}

// nextVariant picks the first variant not yet present in the ledger,
// reusing the most recent one when all have been tried.
func (o *Orchestrator) nextVariant(ledger []Attempt) string {
	used := make(map[string]bool, len(ledger))
	for _, a := range ledger {
		used[a.Variant] = true
	}
	for _, key := range generator.VariantKeys() {
		if !used[key] {
			return key
		}
	}
	return ledger[len(ledger)-1].Variant
}

func (o *Orchestrator) attemptMessage(c contact.Contact, a Attempt) GeneratedMessage {
	eval := a.Evaluation
	return GeneratedMessage{
		Recipient:            c.Email,
		ToName:               c.FullName(),
		Company:              c.Company,
		Subject:              a.Subject,
		Body:                 a.Body,
		Opener:               a.Opener,
		UsedGenerativeOpener: true,
		VariantUsed:          a.Variant,
		Evaluation:           &eval,
	}
}

func (o *Orchestrator) templateMessage(c contact.Contact) GeneratedMessage {
	opener := o.templates.FallbackOpener(c, 0)
	subject, body := o.templates.Assemble(c, opener)
	return GeneratedMessage{
		Recipient:            c.Email,
		ToName:               c.FullName(),
		Company:              c.Company,
		Subject:              subject,
		Body:                 body,
		Opener:               opener,
		UsedGenerativeOpener: false,
	}
}
