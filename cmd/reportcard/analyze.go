package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pbaille/reportcard/internal/aggregate"
	"github.com/pbaille/reportcard/internal/classifier"
	"github.com/pbaille/reportcard/internal/domain"
	"github.com/pbaille/reportcard/internal/extractor"
	"github.com/pbaille/reportcard/internal/logger"
	"github.com/pbaille/reportcard/internal/pipeline"
	"github.com/pbaille/reportcard/internal/records"
)

func analyzeCmd() *cobra.Command {
	var (
		all  bool
		date string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Extract new report cards and regenerate the aggregates",
		Long: `Extracts every report card that has no analysis yet, then regenerates the
aggregates over the whole corpus. --all re-extracts every record and --date
re-extracts a single day; both reuse the learned categories.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := pipeline.Request{Mode: pipeline.ModeNew}
			switch {
			case all:
				req.Mode = pipeline.ModeAll
			case date != "":
				req = pipeline.Request{Mode: pipeline.ModeDate, Date: date}
			}

			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.close()

			kb, err := a.knowledge()
			if err != nil {
				return err
			}
			clf, err := classifier.New(a.cfg.Classifier, a.log)
			if err != nil {
				return err
			}

			c := a.corpus()
			ex := extractor.New(kb, clf, c, a.log, extractor.WithDogName(a.cfg.DogName))

			var history pipeline.History
			if ledger, err := a.ledger(); err != nil {
				a.log.Warn("run history disabled", logger.Error(err))
			} else {
				defer ledger.Close()
				history = ledger
			}

			p := pipeline.New(records.New(a.cfg.RecordsDir, a.log), c, ex, history, a.log)
			report, err := p.Run(cmd.Context(), req)
			if report != nil {
				printReport(cmd.OutOrStdout(), report)
			}
			if serr := kb.Save(); serr != nil {
				a.log.Error("failed to flush knowledge base", logger.Error(serr))
			}
			return explain(err, a)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "re-extract every record")
	cmd.Flags().StringVar(&date, "date", "", "re-extract one date (YYYY-MM-DD)")
	cmd.MarkFlagsMutuallyExclusive("all", "date")
	return cmd
}

func aggregateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate",
		Short: "Regenerate the aggregates from the existing analyses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.close()

			var history pipeline.History
			if ledger, err := a.ledger(); err != nil {
				a.log.Warn("run history disabled", logger.Error(err))
			} else {
				defer ledger.Close()
				history = ledger
			}

			p := pipeline.New(records.New(a.cfg.RecordsDir, a.log), a.corpus(), nil, history, a.log)
			report, err := p.Aggregate(cmd.Context())
			if report != nil {
				printReport(cmd.OutOrStdout(), report)
			}
			return explain(err, a)
		},
	}
}

// explain turns the errors a user can act on into a readable diagnostic.
func explain(err error, a *app) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, aggregate.ErrNoData):
		return fmt.Errorf("nothing to aggregate: no report cards under %s and no analyses under %s",
			a.cfg.RecordsDir, a.corpus().Dir())
	case errors.Is(err, classifier.ErrNoAPIKey):
		return fmt.Errorf("%w (or set classifier.provider to %q)", err, "rules")
	default:
		return err
	}
}

func printReport(w io.Writer, r *domain.RunReport) {
	fmt.Fprintf(w, "Run %s (%s)\n", shortID(r.ID), r.Mode)
	if r.Mode != pipeline.ModeAggregate {
		fmt.Fprintf(w, "  candidates: %d  extracted: %d  skipped: %d  failed: %d  warnings: %d\n",
			r.Candidates, r.Extracted, r.Skipped, r.Failed, r.Warnings)
	}
	if r.Aggregated {
		fmt.Fprintf(w, "  aggregated %d analyses", r.Analyses)
		if r.Excluded > 0 {
			fmt.Fprintf(w, " (%d malformed excluded)", r.Excluded)
		}
		fmt.Fprintln(w)
	}

	if failed := r.FailedDates(); len(failed) > 0 {
		fmt.Fprintf(w, "\nFailed dates (retry with --date):\n")
		for _, o := range r.Outcomes {
			if o.Status == domain.OutcomeFailed || o.Status == domain.OutcomeMissing {
				fmt.Fprintf(w, "  %s  %s  %s\n", o.Date, o.Status, truncate(o.Message, 60))
			}
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
