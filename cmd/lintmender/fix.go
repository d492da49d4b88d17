package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/lintmender/lintmender/internal/backend"
	"github.com/lintmender/lintmender/internal/budget"
	"github.com/lintmender/lintmender/internal/converge"
	"github.com/lintmender/lintmender/internal/engine"
	"github.com/lintmender/lintmender/internal/linter"
	"github.com/lintmender/lintmender/internal/model"
	"github.com/lintmender/lintmender/internal/planner"
	"github.com/lintmender/lintmender/internal/service"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func fixCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fix [paths...]",
		Short: "Classify and automatically repair lint errors",
		Long: `Run the configured linters, classify every finding, and drive the
budget-capped repair loop until the error set converges.

Examples:
  lintmender fix                      # Repair the current directory
  lintmender fix src/ pkg/            # Repair specific paths
  lintmender fix --max-cost 5.00      # Cap total spend at $5
  lintmender fix --confidence 0.9     # Only attempt high-confidence fixes`,
		RunE: runFix,
	}

	// Flags
	cmd.Flags().String("language", "", "Language label for the training log (default: auto)")
	cmd.Flags().Int("max-passes", 10, "Maximum repair passes before giving up")
	cmd.Flags().Int("max-batch-size", 10, "Maximum errors per fix batch")
	cmd.Flags().Int("concurrency", 4, "Maximum batches dispatched in parallel")
	cmd.Flags().Duration("timeout", 2*time.Minute, "Per-batch backend timeout")
	cmd.Flags().Duration("deadline", 0, "Wall-clock limit for the whole run (0 = none)")
	cmd.Flags().Float64("confidence", 0.7, "Minimum classification confidence to attempt a fix")
	cmd.Flags().Float64("max-cost", 10.0, "Total spend ceiling in dollars")
	cmd.Flags().Float64("max-cost-per-pass", 0, "Per-pass spend ceiling (0 = no per-pass cap)")
	cmd.Flags().Float64("max-cost-per-batch", 1.0, "Predicted cost ceiling for a single batch")
	cmd.Flags().Bool("revert-on-regression", false, "Revert files that pick up new errors (requires git)")

	// Bind to viper (errors are rare and can be ignored in practice)
	_ = viper.BindPFlag("language", cmd.Flags().Lookup("language"))
	_ = viper.BindPFlag("fix.max_passes", cmd.Flags().Lookup("max-passes"))
	_ = viper.BindPFlag("fix.max_batch_size", cmd.Flags().Lookup("max-batch-size"))
	_ = viper.BindPFlag("fix.concurrency", cmd.Flags().Lookup("concurrency"))
	_ = viper.BindPFlag("fix.timeout", cmd.Flags().Lookup("timeout"))
	_ = viper.BindPFlag("fix.deadline", cmd.Flags().Lookup("deadline"))
	_ = viper.BindPFlag("fix.confidence", cmd.Flags().Lookup("confidence"))
	_ = viper.BindPFlag("budget.max_cost", cmd.Flags().Lookup("max-cost"))
	_ = viper.BindPFlag("budget.max_cost_per_pass", cmd.Flags().Lookup("max-cost-per-pass"))
	_ = viper.BindPFlag("budget.max_cost_per_batch", cmd.Flags().Lookup("max-cost-per-batch"))
	_ = viper.BindPFlag("fix.revert_on_regression", cmd.Flags().Lookup("revert-on-regression"))

	return cmd
}

func runFix(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	paths := args
	if len(paths) == 0 {
		paths = []string{"."}
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	cls, _, err := newClassifier(ctx, store)
	if err != nil {
		return fmt.Errorf("failed to build classifier: %w", err)
	}

	fixer, err := backend.New(backend.Config{
		Provider:    viper.GetString("backend.provider"),
		CommandPath: viper.GetString("backend.command"),
		Model:       viper.GetString("backend.model"),
		MaxRetries:  viper.GetInt("backend.max_retries"),
		RateLimit:   viper.GetInt("backend.rate_limit"),
	}, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create fix backend: %w", err)
	}
	defer fixer.Close()

	monitor := budget.NewMonitor(model.Budget{
		MaxTotal:        viper.GetFloat64("budget.max_cost"),
		MaxPerIteration: viper.GetFloat64("budget.max_cost_per_pass"),
	}, nil, store)

	maxPasses := viper.GetInt("fix.max_passes")
	bar := progressbar.NewOptions(maxPasses,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Repairing...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	cfg := engine.Config{
		Language:           viper.GetString("language"),
		MaxPasses:          maxPasses,
		MaxBatchSize:       viper.GetInt("fix.max_batch_size"),
		Concurrency:        viper.GetInt("fix.concurrency"),
		Timeout:            viper.GetDuration("fix.timeout"),
		Deadline:           runDeadline(),
		MinConfidence:      viper.GetFloat64("fix.confidence"),
		MaxCostPerBatch:    viper.GetFloat64("budget.max_cost_per_batch"),
		RevertOnRegression: viper.GetBool("fix.revert_on_regression"),
		OnPass: func(pass int, delta converge.PassDelta) {
			_ = bar.Set(pass)
			bar.Describe(fmt.Sprintf("[cyan][bold]Pass %d: -%d +%d[reset]",
				pass, delta.Resolved, len(delta.Introduced)))
		},
	}
	if cfg.RevertOnRegression {
		cfg.RevertFunc = gitRevert
	}

	eng := engine.New(
		linter.NewRunner(linter.DefaultAdapters()...),
		fixer,
		cls,
		planner.New(monitor),
		monitor,
		converge.NewTracker(converge.DefaultConfig()),
		store,
		cfg,
	)

	stats, err := eng.Run(ctx, paths)
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)

	if stats != nil {
		printRunSummary(stats)
	}
	return err
}

// gitRevert restores the given files from the index, discarding the
// backend's edits to them.
func gitRevert(ctx context.Context, files []string) error {
	args := append([]string{"checkout", "--"}, files...)
	out, err := exec.CommandContext(ctx, "git", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("git checkout failed: %w: %s", err, out)
	}
	return nil
}

func printRunSummary(stats *service.RunStats) {
	fmt.Println(headerStyle.Render("Repair Run Summary"))
	fmt.Printf("  Halt reason:     %s\n", valueStyle.Render(stats.HaltReason))
	fmt.Printf("  Passes:          %d\n", stats.Passes)
	fmt.Printf("  Errors found:    %d\n", stats.TotalErrors)
	fmt.Printf("  Resolved:        %s\n", goodStyle.Render(fmt.Sprintf("%d", stats.Resolved)))
	fmt.Printf("  Introduced:      %s\n", badIfPositive(stats.Introduced))
	fmt.Printf("  Manual only:     %d\n", stats.ManualOnly)
	fmt.Printf("  Batches planned: %d\n", stats.BatchesPlanned)
	fmt.Printf("  Batches failed:  %s\n", badIfPositive(stats.BatchesFailed))
	fmt.Printf("  Deferred:        %d\n", stats.Deferred)
	fmt.Printf("  Spend:           $%.2f\n", stats.Spend)
	fmt.Printf("  Duration:        %s\n", stats.Duration.Round(time.Second))
}
