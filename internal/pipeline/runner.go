package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"outreach/internal/cache"
	"outreach/internal/contact"
	"outreach/internal/scrape"
)

// ContextProvider yields the assessed content context for a domain.
// Satisfied by *analyzer.Analyzer.
type ContextProvider interface {
	GetContext(ctx context.Context, domain string) (scrape.SiteContext, error)
}

// RunStore is the slice of the cache the runner needs for progress and the
// message log.
type RunStore interface {
	GetProgress(fingerprint string) (cache.Progress, error)
	SetProgress(fingerprint string, lastIndex, total int) error
	ClearProgress(fingerprint string) error
	SaveMessage(recipient string, message any) error
}

// DraftCreator turns a generated message into a stored draft.
type DraftCreator interface {
	Create(msg GeneratedMessage) (string, error)
}

// RunOptions tune one pipeline run.
type RunOptions struct {
	// Resume picks up from the stored checkpoint for this input file.
	Resume bool
	// SkipDrafts generates and logs messages without creating drafts.
	SkipDrafts bool
}

// Summary reports what a run did.
type Summary struct {
	Processed       int
	Generated       int
	Templated       int
	Errors          int
	EvalPassed      int
	EvalFailed      int
	AlreadyComplete bool
}

// Runner processes a contact list sequentially: context, message,
// optional draft, persistence, checkpoint. One contact's failure never
// stops the run.
type Runner struct {
	contexts ContextProvider
	orch     *Orchestrator
	store    RunStore
	drafts   DraftCreator
}

// NewRunner creates a Runner. drafts may be nil when draft creation is
// disabled entirely.
func NewRunner(contexts ContextProvider, orch *Orchestrator, store RunStore, drafts DraftCreator) *Runner {
	return &Runner{contexts: contexts, orch: orch, store: store, drafts: drafts}
}

// Run processes contacts, resuming from the checkpoint recorded under
// fingerprint when opts.Resume is set. The checkpoint is advanced after
// every successfully processed contact and cleared when the list
// completes.
func (r *Runner) Run(ctx context.Context, contacts []contact.Contact, fingerprint string, opts RunOptions) (Summary, error) {
	var summary Summary

	start := 0
	if opts.Resume {
		progress, err := r.store.GetProgress(fingerprint)
		switch {
		case err == nil:
			start = progress.LastIndex + 1
			if start >= len(contacts) {
				slog.Info("input file already fully processed", "fingerprint", fingerprint)
				summary.AlreadyComplete = true
				return summary, nil
			}
			slog.Info("resuming run", "from", start+1, "total", len(contacts))
		case errors.Is(err, cache.ErrNotFound):
			// fresh run
		default:
			return summary, fmt.Errorf("reading progress: %w", err)
		}
	}

	for i := start; i < len(contacts); i++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		c := contacts[i]
		if err := r.processContact(ctx, c, opts, &summary); err != nil {
			slog.Error("contact failed", "recipient", c.Email, "error", err)
			summary.Errors++
			summary.Processed++
			// No checkpoint for a failed contact: an interrupted run must
			// retry it on resume.
			continue
		}
		summary.Processed++

		if err := r.store.SetProgress(fingerprint, i, len(contacts)); err != nil {
			return summary, fmt.Errorf("writing progress: %w", err)
		}
	}

	if err := r.store.ClearProgress(fingerprint); err != nil {
		return summary, fmt.Errorf("clearing progress: %w", err)
	}
	return summary, nil
}

func (r *Runner) processContact(ctx context.Context, c contact.Contact, opts RunOptions, summary *Summary) error {
	sctx, err := r.contexts.GetContext(ctx, c.Domain())
	if err != nil {
		return fmt.Errorf("getting context: %w", err)
	}

	msg := r.orch.Generate(ctx, c, sctx, "")

	if msg.UsedGenerativeOpener {
		summary.Generated++
	} else {
		summary.Templated++
	}
	if msg.Evaluation != nil {
		if msg.Evaluation.IsAcceptable {
			summary.EvalPassed++
		} else {
			summary.EvalFailed++
		}
	}

	if r.drafts != nil && !opts.SkipDrafts {
		draftID, err := r.drafts.Create(msg)
		if err != nil {
			slog.Warn("draft creation failed", "recipient", c.Email, "error", err)
		} else {
			msg.DraftID = draftID
		}
	}

	if err := r.store.SaveMessage(c.Email, msg); err != nil {
		return fmt.Errorf("saving message: %w", err)
	}
	return nil
}
