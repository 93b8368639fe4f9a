package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"tinct/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show archived batch runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return newExitError(exitFailure, "history is disabled in the configuration")
			}

			store, err := history.Open(cfg.History.Path)
			if err != nil {
				return newExitError(exitFailure, err.Error())
			}
			defer store.Close()

			if len(args) == 1 {
				runID, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return newExitError(exitFailure, fmt.Sprintf("invalid run id %q", args[0]))
				}
				return showRunItems(cmd, store, runID)
			}
			return listRuns(cmd, store, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list")
	return cmd
}

func listRuns(cmd *cobra.Command, store *history.Store, limit int) error {
	runs, err := store.List(cmd.Context(), limit)
	if err != nil {
		return newExitError(exitFailure, err.Error())
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No archived runs yet.")
		return nil
	}

	rep := newReport("Run", "Started", "Total", "Completed", "Failed", "Cancelled", "Success", "Duration")
	for _, run := range runs {
		duration := ""
		if !run.StartedAt.IsZero() && !run.FinishedAt.IsZero() {
			duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
		}
		rep.addRow(
			strconv.FormatInt(run.ID, 10),
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			strconv.Itoa(run.Total),
			strconv.Itoa(run.Completed),
			strconv.Itoa(run.Failed),
			strconv.Itoa(run.Cancelled),
			formatPercent(run.SuccessRate),
			duration,
		)
	}
	fmt.Fprintln(cmd.OutOrStdout(), rep.render())
	return nil
}

func showRunItems(cmd *cobra.Command, store *history.Store, runID int64) error {
	items, err := store.Items(cmd.Context(), runID)
	if err != nil {
		return newExitError(exitFailure, err.Error())
	}
	if len(items) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No items archived for run %d.\n", runID)
		return nil
	}

	rep := newReport("Input", "State", "Result")
	for _, item := range items {
		rep.addRow(
			filepath.Base(item.InputPath),
			item.State,
			outcomeDetail(item.OutputPath, item.ErrorMessage),
		)
	}
	fmt.Fprintln(cmd.OutOrStdout(), rep.render())
	return nil
}
