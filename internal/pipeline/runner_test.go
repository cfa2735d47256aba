package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"outreach/internal/cache"
	"outreach/internal/contact"
	"outreach/internal/scrape"
)

type mockContexts struct {
	getFn func(ctx context.Context, domain string) (scrape.SiteContext, error)
	calls int
}

func (m *mockContexts) GetContext(ctx context.Context, domain string) (scrape.SiteContext, error) {
	m.calls++
	return m.getFn(ctx, domain)
}

type mockDrafts struct {
	createFn func(msg GeneratedMessage) (string, error)
	calls    int
}

func (m *mockDrafts) Create(msg GeneratedMessage) (string, error) {
	m.calls++
	return m.createFn(msg)
}

func openRunStore(t *testing.T) *cache.Store {
	t.Helper()
	s, err := cache.Open(":memory:", time.Hour)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func contactList(n int) []contact.Contact {
	contacts := make([]contact.Contact, n)
	for i := range contacts {
		contacts[i] = contact.Contact{
			Email:     string(rune('a'+i)) + "@example.com",
			FirstName: "Person",
			Company:   "Org",
			Website:   "https://example.com",
			RowIndex:  i,
		}
	}
	return contacts
}

func goodContexts() *mockContexts {
	return &mockContexts{getFn: func(ctx context.Context, domain string) (scrape.SiteContext, error) {
		return goodContext(), nil
	}}
}

func acceptingOrchestrator() *Orchestrator {
	engine := &mockEngine{generateFn: func(context.Context, contact.Contact, scrape.SiteContext, string, string, string) (string, error) {
		return "Accepted opener text.", nil
	}}
	return NewOrchestrator(engine, &scriptedScorer{scores: []int{90, 90, 90, 90, 90}, threshold: 70}, 2)
}

func TestRun_ProcessesAllContacts(t *testing.T) {
	store := openRunStore(t)
	r := NewRunner(goodContexts(), acceptingOrchestrator(), store, nil)

	contacts := contactList(3)
	summary, err := r.Run(context.Background(), contacts, "fp1", RunOptions{Resume: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 3 || summary.Generated != 3 {
		t.Errorf("summary = %+v, want 3 processed and generated", summary)
	}
	if summary.EvalPassed != 3 {
		t.Errorf("eval passed = %d, want 3", summary.EvalPassed)
	}

	// Progress cleared on completion.
	if _, err := store.GetProgress("fp1"); !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("progress not cleared: %v", err)
	}

	// Messages logged per recipient.
	msgs, err := store.MessagesFor("a@example.com")
	if err != nil {
		t.Fatalf("MessagesFor: %v", err)
	}
	if len(msgs) != 1 {
		t.Errorf("got %d logged messages, want 1", len(msgs))
	}
}

func TestRun_ResumeSkipsCompletedContacts(t *testing.T) {
	store := openRunStore(t)
	contexts := goodContexts()
	r := NewRunner(contexts, acceptingOrchestrator(), store, nil)

	contacts := contactList(4)
	if err := store.SetProgress("fp2", 1, 4); err != nil {
		t.Fatalf("seeding progress: %v", err)
	}

	summary, err := r.Run(context.Background(), contacts, "fp2", RunOptions{Resume: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 2 {
		t.Errorf("processed %d contacts, want 2 (indices 2 and 3)", summary.Processed)
	}
	if contexts.calls != 2 {
		t.Errorf("context lookups = %d, want 2", contexts.calls)
	}
}

func TestRun_AlreadyCompleteMakesNoCalls(t *testing.T) {
	store := openRunStore(t)
	contexts := goodContexts()
	engine := &mockEngine{generateFn: func(context.Context, contact.Contact, scrape.SiteContext, string, string, string) (string, error) {
		t.Fatal("generation attempted on already-complete run")
		return "", nil
	}}
	orch := NewOrchestrator(engine, &scriptedScorer{threshold: 70}, 2)
	r := NewRunner(contexts, orch, store, nil)

	contacts := contactList(2)
	if err := store.SetProgress("fp3", 1, 2); err != nil {
		t.Fatalf("seeding progress: %v", err)
	}

	summary, err := r.Run(context.Background(), contacts, "fp3", RunOptions{Resume: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !summary.AlreadyComplete {
		t.Error("AlreadyComplete not reported")
	}
	if summary.Processed != 0 || contexts.calls != 0 {
		t.Errorf("already-complete run did work: %+v, %d context calls", summary, contexts.calls)
	}
}

func TestRun_NoResumeStartsFromBeginning(t *testing.T) {
	store := openRunStore(t)
	contexts := goodContexts()
	r := NewRunner(contexts, acceptingOrchestrator(), store, nil)

	contacts := contactList(2)
	if err := store.SetProgress("fp4", 0, 2); err != nil {
		t.Fatalf("seeding progress: %v", err)
	}

	summary, err := r.Run(context.Background(), contacts, "fp4", RunOptions{Resume: false})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 2 {
		t.Errorf("processed %d, want 2 with resume disabled", summary.Processed)
	}
}

func TestRun_ContactFailureCountedAndRunContinues(t *testing.T) {
	store := openRunStore(t)
	failing := &mockContexts{getFn: func(ctx context.Context, domain string) (scrape.SiteContext, error) {
		if domain == "example.com" {
			return goodContext(), nil
		}
		return scrape.SiteContext{}, errors.New("cache corrupted")
	}}
	// First contact's website resolves to example.com; make the second fail.
	contacts := contactList(2)
	contacts[1].Website = "https://broken.example"

	r := NewRunner(failing, acceptingOrchestrator(), store, nil)
	summary, err := r.Run(context.Background(), contacts, "fp5", RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Errors != 1 {
		t.Errorf("errors = %d, want 1", summary.Errors)
	}
	if summary.Processed != 2 {
		t.Errorf("processed = %d, want both contacts attempted", summary.Processed)
	}
}

// progressRecorder tracks which indexes get checkpointed.
type progressRecorder struct {
	*cache.Store
	checkpoints []int
}

func (p *progressRecorder) SetProgress(fingerprint string, lastIndex, total int) error {
	p.checkpoints = append(p.checkpoints, lastIndex)
	return p.Store.SetProgress(fingerprint, lastIndex, total)
}

func TestRun_FailedContactNotCheckpointed(t *testing.T) {
	recorder := &progressRecorder{Store: openRunStore(t)}
	failing := &mockContexts{getFn: func(ctx context.Context, domain string) (scrape.SiteContext, error) {
		if domain == "example.com" {
			return goodContext(), nil
		}
		return scrape.SiteContext{}, errors.New("cache corrupted")
	}}
	contacts := contactList(2)
	contacts[1].Website = "https://broken.example"

	r := NewRunner(failing, acceptingOrchestrator(), recorder, nil)
	summary, err := r.Run(context.Background(), contacts, "fp10", RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Errors != 1 {
		t.Errorf("errors = %d, want 1", summary.Errors)
	}

	// Only the successful contact advances the checkpoint; an interrupted
	// run must retry the failed one on resume.
	if len(recorder.checkpoints) != 1 || recorder.checkpoints[0] != 0 {
		t.Errorf("checkpointed indexes = %v, want [0]", recorder.checkpoints)
	}
}

func TestRun_TemplateFallbackCounted(t *testing.T) {
	store := openRunStore(t)
	lowQuality := &mockContexts{getFn: func(ctx context.Context, domain string) (scrape.SiteContext, error) {
		return scrape.SiteContext{
			Domain:       domain,
			Quality:      scrape.QualityLow,
			ErrorMessage: "No blog or content section found",
		}, nil
	}}
	engine := &mockEngine{generateFn: func(context.Context, contact.Contact, scrape.SiteContext, string, string, string) (string, error) {
		t.Fatal("generation attempted for low-quality context")
		return "", nil
	}}
	orch := NewOrchestrator(engine, &scriptedScorer{threshold: 70}, 2)
	r := NewRunner(lowQuality, orch, store, nil)

	summary, err := r.Run(context.Background(), contactList(1), "fp6", RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Templated != 1 || summary.Generated != 0 {
		t.Errorf("summary = %+v, want 1 templated", summary)
	}
}

func TestRun_DraftIDRecordedOnMessage(t *testing.T) {
	store := openRunStore(t)
	drafts := &mockDrafts{createFn: func(msg GeneratedMessage) (string, error) {
		return "draft-123", nil
	}}
	r := NewRunner(goodContexts(), acceptingOrchestrator(), store, drafts)

	if _, err := r.Run(context.Background(), contactList(1), "fp7", RunOptions{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if drafts.calls != 1 {
		t.Errorf("draft created %d times, want 1", drafts.calls)
	}

	msgs, err := store.MessagesFor("a@example.com")
	if err != nil {
		t.Fatalf("MessagesFor: %v", err)
	}
	if len(msgs) != 1 || !containsDraftID(string(msgs[0].Data), "draft-123") {
		t.Errorf("draft id not persisted with message: %s", msgs[0].Data)
	}
}

func TestRun_SkipDraftsLeavesCreatorUnused(t *testing.T) {
	store := openRunStore(t)
	drafts := &mockDrafts{createFn: func(msg GeneratedMessage) (string, error) {
		return "draft-999", nil
	}}
	r := NewRunner(goodContexts(), acceptingOrchestrator(), store, drafts)

	if _, err := r.Run(context.Background(), contactList(1), "fp8", RunOptions{SkipDrafts: true}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if drafts.calls != 0 {
		t.Errorf("draft creator called %d times with drafts skipped", drafts.calls)
	}
}

func TestRun_DraftFailureIsNonFatal(t *testing.T) {
	store := openRunStore(t)
	drafts := &mockDrafts{createFn: func(msg GeneratedMessage) (string, error) {
		return "", errors.New("provider down")
	}}
	r := NewRunner(goodContexts(), acceptingOrchestrator(), store, drafts)

	summary, err := r.Run(context.Background(), contactList(1), "fp9", RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Errors != 0 {
		t.Errorf("draft failure counted as contact error: %+v", summary)
	}

	// Message still logged, just without a draft id.
	msgs, err := store.MessagesFor("a@example.com")
	if err != nil || len(msgs) != 1 {
		t.Fatalf("message not logged after draft failure: %v", err)
	}
}

func containsDraftID(data, id string) bool {
	return strings.Contains(data, `"draft_id":"`+id+`"`)
}
