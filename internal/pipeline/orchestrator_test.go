package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"outreach/internal/contact"
	"outreach/internal/evaluator"
	"outreach/internal/scrape"
)

type mockEngine struct {
	generateFn func(ctx context.Context, c contact.Contact, sctx scrape.SiteContext, variant, prior, feedback string) (string, error)
	calls      []engineCall
}

type engineCall struct {
	variant  string
	prior    string
	feedback string
}

func (m *mockEngine) GenerateOpener(ctx context.Context, c contact.Contact, sctx scrape.SiteContext, variant, prior, feedback string) (string, error) {
	m.calls = append(m.calls, engineCall{variant: variant, prior: prior, feedback: feedback})
	return m.generateFn(ctx, c, sctx, variant, prior, feedback)
}

// scriptedScorer returns the queued scores in order.
type scriptedScorer struct {
	scores    []int
	threshold int
	next      int
}

func (s *scriptedScorer) Evaluate(ctx context.Context, body, subject string) evaluator.Result {
	score := s.scores[s.next]
	s.next++
	return evaluator.Result{
		QualityScore: score,
		IsAcceptable: score >= s.threshold,
	}
}

func (s *scriptedScorer) Threshold() int { return s.threshold }

func testContact() contact.Contact {
	return contact.Contact{
		Email:     "jane@acme.dev",
		FirstName: "Jane",
		LastName:  "Doe",
		Company:   "Acme",
		Website:   "https://acme.dev",
	}
}

func goodContext() scrape.SiteContext {
	return scrape.SiteContext{
		Domain:  "acme.dev",
		Quality: scrape.QualityGood,
		Summary: "Title: Scaling support\nWe cut response times in half by routing tickets with a small classifier model built in-house.",
	}
}

func openerEngine() *mockEngine {
	n := 0
	return &mockEngine{generateFn: func(ctx context.Context, c contact.Contact, sctx scrape.SiteContext, variant, prior, feedback string) (string, error) {
		n++
		return fmt.Sprintf("Candidate opener %d.", n), nil
	}}
}

func TestGenerate_AcceptedFirstAttempt(t *testing.T) {
	engine := openerEngine()
	orch := NewOrchestrator(engine, &scriptedScorer{scores: []int{85}, threshold: 70}, 2)

	msg := orch.Generate(context.Background(), testContact(), goodContext(), "direct_reference")

	if !msg.UsedGenerativeOpener {
		t.Error("accepted attempt not marked generative")
	}
	if msg.VariantUsed != "direct_reference" {
		t.Errorf("variant = %q, want the initially requested one", msg.VariantUsed)
	}
	if msg.Evaluation == nil || msg.Evaluation.QualityScore != 85 {
		t.Errorf("evaluation not attached: %+v", msg.Evaluation)
	}
	if len(engine.calls) != 1 {
		t.Errorf("made %d generation calls, want 1", len(engine.calls))
	}
}

func TestGenerate_ExhaustedKeepsBestAttempt(t *testing.T) {
	engine := openerEngine()
	orch := NewOrchestrator(engine, &scriptedScorer{scores: []int{40, 55, 60}, threshold: 70}, 2)

	msg := orch.Generate(context.Background(), testContact(), goodContext(), "")

	if len(engine.calls) != 3 {
		t.Fatalf("made %d generation calls, want 3", len(engine.calls))
	}
	if !msg.UsedGenerativeOpener {
		t.Error("best attempt not marked generative")
	}
	if msg.Evaluation.QualityScore != 60 {
		t.Errorf("kept attempt scored %d, want 60", msg.Evaluation.QualityScore)
	}
	if msg.Opener != "Candidate opener 3." {
		t.Errorf("kept opener = %q, want the third attempt", msg.Opener)
	}
}

func TestGenerate_ExhaustedTieBrokenByEarliestAttempt(t *testing.T) {
	engine := openerEngine()
	orch := NewOrchestrator(engine, &scriptedScorer{scores: []int{60, 40, 60}, threshold: 70}, 2)

	msg := orch.Generate(context.Background(), testContact(), goodContext(), "")

	if msg.Opener != "Candidate opener 1." {
		t.Errorf("kept opener = %q, want the earliest of the tied attempts", msg.Opener)
	}
}

func TestGenerate_RetryRotatesVariantsAndCarriesFeedback(t *testing.T) {
	engine := openerEngine()
	orch := NewOrchestrator(engine, &scriptedScorer{scores: []int{40, 90}, threshold: 70}, 2)

	msg := orch.Generate(context.Background(), testContact(), goodContext(), "direct_reference")

	if len(engine.calls) != 2 {
		t.Fatalf("made %d generation calls, want 2", len(engine.calls))
	}

	first, second := engine.calls[0], engine.calls[1]
	if first.prior != "" || first.feedback != "" {
		t.Error("first attempt carried prior text or feedback")
	}
	if second.variant != "problem_focused" {
		t.Errorf("second variant = %q, want the next unused key", second.variant)
	}
	if second.prior != "Candidate opener 1." {
		t.Errorf("prior = %q, want the rejected opener", second.prior)
	}
	if second.feedback == "" {
		t.Error("feedback missing from retry")
	}
	if msg.VariantUsed != "problem_focused" {
		t.Errorf("variant used = %q", msg.VariantUsed)
	}
}

func TestGenerate_UnusableContextSkipsGeneration(t *testing.T) {
	engine := &mockEngine{generateFn: func(context.Context, contact.Contact, scrape.SiteContext, string, string, string) (string, error) {
		t.Fatal("generation attempted for unusable context")
		return "", nil
	}}
	orch := NewOrchestrator(engine, &scriptedScorer{threshold: 70}, 2)

	sctx := scrape.SiteContext{
		Domain:       "dead.example",
		Quality:      scrape.QualityLow,
		ErrorMessage: "No blog or content section found",
	}
	msg := orch.Generate(context.Background(), testContact(), sctx, "")

	if msg.UsedGenerativeOpener {
		t.Error("template message marked generative")
	}
	if msg.VariantUsed != "" {
		t.Errorf("template message carries variant %q", msg.VariantUsed)
	}
	if msg.Evaluation != nil {
		t.Error("template message carries an evaluation")
	}
	if msg.Body == "" || msg.Subject == "" {
		t.Error("template message incomplete")
	}
}

func TestGenerate_ShortSummarySkipsGeneration(t *testing.T) {
	engine := &mockEngine{generateFn: func(context.Context, contact.Contact, scrape.SiteContext, string, string, string) (string, error) {
		t.Fatal("generation attempted for thin summary")
		return "", nil
	}}
	orch := NewOrchestrator(engine, &scriptedScorer{threshold: 70}, 2)

	sctx := scrape.SiteContext{Domain: "thin.example", Quality: scrape.QualityGood, Summary: "Title: X"}
	msg := orch.Generate(context.Background(), testContact(), sctx, "")
	if msg.UsedGenerativeOpener {
		t.Error("thin-summary message marked generative")
	}
}

func TestGenerate_GenerationErrorFallsBackToTemplate(t *testing.T) {
	engine := &mockEngine{generateFn: func(context.Context, contact.Contact, scrape.SiteContext, string, string, string) (string, error) {
		return "", errors.New("model unavailable")
	}}
	orch := NewOrchestrator(engine, &scriptedScorer{threshold: 70}, 2)

	msg := orch.Generate(context.Background(), testContact(), goodContext(), "")

	if msg.UsedGenerativeOpener {
		t.Error("fallback message marked generative")
	}
	if len(engine.calls) != 1 {
		t.Errorf("made %d generation calls after failure, want 1", len(engine.calls))
	}
}

func TestGenerate_AllVariantsUsedReusesLast(t *testing.T) {
	engine := openerEngine()
	scores := make([]int, 12)
	orch := NewOrchestrator(engine, &scriptedScorer{scores: scores, threshold: 70}, 11)

	orch.Generate(context.Background(), testContact(), goodContext(), "")

	if len(engine.calls) != 12 {
		t.Fatalf("made %d generation calls, want 12", len(engine.calls))
	}
	// Ten variants exist; calls 11 and 12 reuse the tenth.
	if engine.calls[10].variant != "minimalist" || engine.calls[11].variant != "minimalist" {
		t.Errorf("overflow variants = %q, %q, want minimalist reused",
			engine.calls[10].variant, engine.calls[11].variant)
	}
}
