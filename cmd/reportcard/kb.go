package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pbaille/reportcard/internal/domain"
	"github.com/pbaille/reportcard/internal/knowledge"
)

func kbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Inspect and correct the learned category mappings",
	}

	cmd.AddCommand(kbListCmd())
	cmd.AddCommand(kbSetActivityCmd())
	cmd.AddCommand(kbSetTrainingCmd())
	cmd.AddCommand(kbForgetCmd())
	return cmd
}

func withKnowledge(fn func(cmd *cobra.Command, args []string, kb *knowledge.Base) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.close()

		kb, err := a.knowledge()
		if err != nil {
			return err
		}
		return fn(cmd, args, kb)
	}
}

func kbListCmd() *cobra.Command {
	var axis string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List learned mappings",
		Args:  cobra.NoArgs,
		RunE: withKnowledge(func(cmd *cobra.Command, args []string, kb *knowledge.Base) error {
			stats := kb.Stats()
			if stats.Activities+stats.Training == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No mappings yet. They are learned during 'reportcard analyze'.")
				return nil
			}

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Axis", "Label", "Categories"})
			if axis == "" || axis == string(domain.AxisActivity) {
				for _, e := range kb.ActivityEntries() {
					t.AppendRow(table.Row{domain.AxisActivity, e.Label, strings.Join(e.Categories, ", ")})
				}
			}
			if axis == "" || axis == string(domain.AxisTraining) {
				if axis == "" && stats.Activities > 0 {
					t.AppendSeparator()
				}
				for _, e := range kb.TrainingEntries() {
					t.AppendRow(table.Row{domain.AxisTraining, e.Label, strings.Join(e.Categories, ", ")})
				}
			}
			t.AppendFooter(table.Row{"", "activities / training", fmt.Sprintf("%d / %d", stats.Activities, stats.Training)})
			t.Render()
			return nil
		}),
	}

	cmd.Flags().StringVar(&axis, "axis", "", "only show one axis (activity or training)")
	return cmd
}

func kbSetActivityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-activity LABEL CATEGORY[,CATEGORY...]",
		Short: "Override the categories of an activity label",
		Long:  "Valid categories: " + strings.Join(domain.Vocabulary(domain.AxisActivity), ", "),
		Args:  cobra.ExactArgs(2),
		RunE: withKnowledge(func(cmd *cobra.Command, args []string, kb *knowledge.Base) error {
			cats := strings.Split(args[1], ",")
			if err := kb.OverrideActivity(args[0], cats); err != nil {
				return fmt.Errorf("%w (valid: %s)", err, strings.Join(domain.Vocabulary(domain.AxisActivity), ", "))
			}
			got, _ := kb.LookupActivity(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", args[0], strings.Join(got, ", "))
			return nil
		}),
	}
}

func kbSetTrainingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-training LABEL CATEGORY",
		Short: "Override the category of a training label",
		Long:  "Valid categories: " + strings.Join(domain.Vocabulary(domain.AxisTraining), ", "),
		Args:  cobra.ExactArgs(2),
		RunE: withKnowledge(func(cmd *cobra.Command, args []string, kb *knowledge.Base) error {
			if err := kb.OverrideTraining(args[0], args[1]); err != nil {
				return fmt.Errorf("%w (valid: %s)", err, strings.Join(domain.Vocabulary(domain.AxisTraining), ", "))
			}
			got, _ := kb.LookupTraining(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", args[0], got)
			return nil
		}),
	}
}

func kbForgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "forget {activity|training} LABEL",
		Short:     "Drop a mapping so the label is classified again",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(domain.AxisActivity), string(domain.AxisTraining)},
		RunE: withKnowledge(func(cmd *cobra.Command, args []string, kb *knowledge.Base) error {
			axis := domain.Axis(args[0])
			if axis != domain.AxisActivity && axis != domain.AxisTraining {
				return fmt.Errorf("unknown axis %q, expected activity or training", args[0])
			}
			removed, err := kb.Forget(axis, args[1])
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %q was not mapped\n", axis, args[1])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "forgot %s %q\n", axis, args[1])
			return nil
		}),
	}
}
