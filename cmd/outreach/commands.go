package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"outreach/internal/contact"
	"outreach/internal/draft"
	"outreach/internal/dryrun"
	"outreach/internal/pipeline"
)

// --- run ---

var runCmd = &cobra.Command{
	Use:   "run <contacts.csv>",
	Short: "Process a contact list and generate outreach messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		noResume, _ := cmd.Flags().GetBool("no-resume")
		skipDrafts, _ := cmd.Flags().GetBool("skip-drafts")

		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		contacts, err := contact.LoadCSV(args[0])
		if err != nil {
			return fmt.Errorf("loading contacts: %w", err)
		}
		if len(contacts) == 0 {
			return fmt.Errorf("no valid contacts found in %s", args[0])
		}
		if limit > 0 && limit < len(contacts) {
			contacts = contacts[:limit]
		}

		fingerprint, err := contact.Fingerprint(args[0])
		if err != nil {
			return fmt.Errorf("fingerprinting input: %w", err)
		}

		drafts := draft.NewLocalCreator(filepath.Join(app.cfg.Output.Dir, "drafts"))
		runner := pipeline.NewRunner(app.analyzer(), app.orchestrator(), app.store, drafts)

		summary, err := runner.Run(cmd.Context(), contacts, fingerprint, pipeline.RunOptions{
			Resume:     !noResume,
			SkipDrafts: skipDrafts,
		})
		if err != nil {
			return err
		}

		if summary.AlreadyComplete {
			fmt.Fprintln(os.Stdout, "All contacts already processed.")
			return nil
		}

		fmt.Fprintln(os.Stdout, "Processing complete.")
		fmt.Fprintf(os.Stdout, "  Generated openers:  %d\n", summary.Generated)
		fmt.Fprintf(os.Stdout, "  Template fallbacks: %d\n", summary.Templated)
		fmt.Fprintf(os.Stdout, "  Errors:             %d\n", summary.Errors)
		fmt.Fprintf(os.Stdout, "  Evaluation passed:  %d\n", summary.EvalPassed)
		fmt.Fprintf(os.Stdout, "  Evaluation failed:  %d\n", summary.EvalFailed)
		return nil
	},
}

// --- dry-run ---

var dryRunCmd = &cobra.Command{
	Use:   "dry-run <contacts.csv>",
	Short: "Trial every prompt variant for one contact and save a report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		row, _ := cmd.Flags().GetInt("row")

		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		contacts, err := contact.LoadCSV(args[0])
		if err != nil {
			return fmt.Errorf("loading contacts: %w", err)
		}
		if row < 0 || row >= len(contacts) {
			return fmt.Errorf("row %d out of range, file has %d usable contacts", row, len(contacts))
		}
		c := contacts[row]

		sctx, err := app.analyzer().GetContext(cmd.Context(), c.Domain())
		if err != nil {
			return fmt.Errorf("getting context for %s: %w", c.Domain(), err)
		}

		tester := dryrun.New(app.engine(true), app.evaluator())
		results := tester.TestAllVariants(cmd.Context(), c, sctx)

		succeeded := 0
		for _, r := range results {
			if r.Success {
				succeeded++
				fmt.Fprintf(os.Stdout, "[ok]   %-20s score=%d  %s\n", r.VariantKey, r.Evaluation.QualityScore, r.Opener)
			} else {
				fmt.Fprintf(os.Stdout, "[fail] %-20s %s\n", r.VariantKey, r.Error)
			}
		}
		fmt.Fprintf(os.Stdout, "\n%d/%d variants succeeded\n", succeeded, len(results))

		path, err := dryrun.WriteReport(app.cfg.Output.Dir, c, sctx, results)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Report saved to %s\n", path)
		return nil
	},
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status [contacts.csv]",
	Short: "Show cache statistics and, for a given file, run progress",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		stats, err := app.store.Stats()
		if err != nil {
			return fmt.Errorf("reading cache stats: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Cached contexts:    %d\n", stats.Contexts)
		fmt.Fprintf(os.Stdout, "Generated messages: %d\n", stats.Messages)
		fmt.Fprintf(os.Stdout, "Unfinished runs:    %d\n", stats.ActiveRuns)

		if len(args) == 1 {
			fingerprint, err := contact.Fingerprint(args[0])
			if err != nil {
				return fmt.Errorf("fingerprinting input: %w", err)
			}
			progress, err := app.store.GetProgress(fingerprint)
			if err != nil {
				fmt.Fprintf(os.Stdout, "No saved progress for %s\n", args[0])
				return nil
			}
			fmt.Fprintf(os.Stdout, "Progress for %s: %d/%d (updated %s)\n",
				args[0], progress.LastIndex+1, progress.Total, progress.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

// --- clear-cache ---

var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Remove cached contexts, progress, and the message log",
	RunE: func(cmd *cobra.Command, args []string) error {
		expiredOnly, _ := cmd.Flags().GetBool("expired-only")

		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if expiredOnly {
			n, err := app.store.ClearExpired()
			if err != nil {
				return fmt.Errorf("clearing expired contexts: %w", err)
			}
			fmt.Fprintf(os.Stdout, "Removed %d expired context(s)\n", n)
			return nil
		}

		if err := app.store.ClearAll(); err != nil {
			return fmt.Errorf("clearing cache: %w", err)
		}
		fmt.Fprintln(os.Stdout, "Cache cleared.")
		return nil
	},
}

func init() {
	runCmd.Flags().Int("limit", 0, "process only the first N contacts")
	runCmd.Flags().Bool("no-resume", false, "ignore saved progress and start over")
	runCmd.Flags().Bool("skip-drafts", false, "generate messages without creating drafts")

	dryRunCmd.Flags().Int("row", 0, "contact row to test (0-based, after filtering)")

	clearCacheCmd.Flags().Bool("expired-only", false, "remove only contexts past their TTL")
}
