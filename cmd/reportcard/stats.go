package main

import (
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pbaille/reportcard/internal/aggregate"
	"github.com/pbaille/reportcard/internal/api"
	"github.com/pbaille/reportcard/internal/corpus"
	"github.com/pbaille/reportcard/internal/domain"
	"github.com/pbaille/reportcard/internal/logger"
)

func statsCmd() *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show grade trends and top friends from the last aggregation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.close()
			c := a.corpus()

			var summary corpus.SummaryDoc
			if err := c.LoadAggregate(corpus.Summary, &summary); err != nil {
				if errors.Is(err, corpus.ErrNotFound) {
					return errors.New("no aggregates yet, run 'reportcard analyze' first")
				}
				return err
			}
			var grades aggregate.GradeTrends
			if err := c.LoadAggregate(corpus.GradeTrends, &grades); err != nil {
				return err
			}
			var friends aggregate.FriendTable
			if err := c.LoadAggregate(corpus.Friends, &friends); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d report cards, %s to %s (generated %s)\n\n",
				summary.Records, summary.FirstDate, summary.LastDate, summary.GeneratedAt.Format("2006-01-02 15:04"))

			t := newTable(out)
			t.SetTitle("Grades")
			header := table.Row{"Period", "Days", "Average"}
			for _, g := range domain.Grades {
				header = append(header, string(g))
			}
			t.AppendHeader(header)
			t.AppendRow(gradeRow("overall", grades.Overall))
			t.AppendSeparator()
			for _, m := range grades.Monthly {
				t.AppendRow(gradeRow(m.Month, m.GradeStats))
			}
			t.Render()

			ft := newTable(out)
			ft.SetTitle("Friends")
			ft.AppendHeader(table.Row{"Name", "Mentions", "%", "First seen", "Last seen", "Trend"})
			for i, f := range friends.Friends {
				if i == top {
					break
				}
				ft.AppendRow(table.Row{f.Name, f.Mentions, f.Percentage, f.FirstSeen, f.LastSeen, f.Trend})
			}
			ft.Render()
			return nil
		},
	}

	cmd.Flags().IntVarP(&top, "top", "n", 10, "number of friends to show")
	return cmd
}

func gradeRow(label string, s aggregate.GradeStats) table.Row {
	row := table.Row{label, s.Days, fmt.Sprintf("%.2f", s.Average)}
	for _, g := range domain.Grades {
		row = append(row, s.Distribution[string(g)])
	}
	return row
}

func runsCmd() *cobra.Command {
	var (
		limit  int
		failed string
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List past runs, or the failed dates of one run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.close()

			ledger, err := a.ledger()
			if err != nil {
				return err
			}
			defer ledger.Close()

			out := cmd.OutOrStdout()
			if failed != "" {
				dates, err := ledger.FailedDates(failed)
				if err != nil {
					return err
				}
				for _, d := range dates {
					fmt.Fprintln(out, d)
				}
				return nil
			}

			runs, err := ledger.ListRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet.")
				return nil
			}

			t := newTable(out)
			t.AppendHeader(table.Row{"ID", "Started", "Mode", "Candidates", "Extracted", "Skipped", "Failed", "Warnings", "Aggregated", "Error"})
			for _, r := range runs {
				t.AppendRow(table.Row{
					shortID(r.ID), r.StartedAt.Local().Format("2006-01-02 15:04"), r.Mode,
					r.Candidates, r.Extracted, r.Skipped, r.Failed, r.Warnings, r.Aggregated,
					truncate(r.Error, 40),
				})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	cmd.Flags().StringVar(&failed, "failed", "", "print the failed dates of this run (id or prefix)")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve analyses, aggregates and run history as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			defer a.close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			kb, err := a.knowledge()
			if err != nil {
				return err
			}

			var runs api.RunLister
			if ledger, err := a.ledger(); err != nil {
				a.log.Warn("run history disabled", logger.Error(err))
			} else {
				defer ledger.Close()
				runs = ledger
			}

			return api.New(a.corpus(), runs, kb, addr, a.log).Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "server address (default server.addr from config)")
	return cmd
}
