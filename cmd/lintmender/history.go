package main

import (
	"fmt"
	"time"

	"github.com/lintmender/lintmender/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent fix attempts and spending",
		Long: `Print the most recent fix attempts with their outcomes and costs,
plus total spend over the requested window.`,
		RunE: runHistory,
	}

	// Flags
	cmd.Flags().Int("limit", 20, "Number of attempts to show")
	cmd.Flags().Duration("since", 30*24*time.Hour, "Spend accounting window")

	_ = viper.BindPFlag("history.limit", cmd.Flags().Lookup("limit"))
	_ = viper.BindPFlag("history.since", cmd.Flags().Lookup("since"))

	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	limit := viper.GetInt("history.limit")
	attempts, err := store.GetRecentFixAttempts(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to load fix attempts: %w", err)
	}

	if len(attempts) == 0 {
		fmt.Println(dimStyle.Render("No fix attempts recorded yet."))
		return nil
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("Last %d fix attempts", len(attempts))))
	for _, a := range attempts {
		outcome := string(a.Outcome)
		switch a.Outcome {
		case model.OutcomeSuccess:
			outcome = goodStyle.Render(outcome)
		case model.OutcomeFailed, model.OutcomeTimeout:
			outcome = badStyle.Render(outcome)
		}
		fmt.Printf("  %s  %-9s resolved=%d cost=$%.3f %s\n",
			a.StartedAt.Format("2006-01-02 15:04"),
			outcome,
			a.ErrorsResolved,
			a.ActualCost,
			dimStyle.Render(a.BatchID))
	}

	since := time.Now().Add(-viper.GetDuration("history.since"))
	spend, err := store.GetTotalSpend(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to compute total spend: %w", err)
	}
	fmt.Printf("\n  Spend since %s: $%.2f\n", since.Format("2006-01-02"), spend)

	return nil
}
