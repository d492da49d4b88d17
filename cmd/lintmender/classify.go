package main

import (
	"fmt"
	"sort"

	"github.com/lintmender/lintmender/internal/linter"
	"github.com/lintmender/lintmender/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify [paths...]",
		Short: "Classify lint errors without fixing anything",
		Long: `Run the configured linters and print each finding's category,
fixability tier, confidence, and which signal produced it. Nothing is
modified and nothing is sent to the fix backend.

Examples:
  lintmender classify             # Classify the current directory
  lintmender classify --tier TRIVIAL  # Show only one tier`,
		RunE: runClassifyCmd,
	}

	// Flags
	cmd.Flags().String("tier", "", "Only show findings in this fixability tier")
	_ = viper.BindPFlag("classify.tier", cmd.Flags().Lookup("tier"))

	return cmd
}

func runClassifyCmd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	paths := args
	if len(paths) == 0 {
		paths = []string{"."}
	}

	var tierFilter model.FixabilityTier
	filterSet := false
	if raw := viper.GetString("classify.tier"); raw != "" {
		tier, ok := model.ParseTier(raw)
		if !ok {
			return fmt.Errorf("unknown tier %q", raw)
		}
		tierFilter, filterSet = tier, true
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

	runner := linter.NewRunner(linter.DefaultAdapters()...)
	errs, err := runner.Lint(ctx, paths)
	if err != nil {
		return fmt.Errorf("lint failed: %w", err)
	}
	if len(errs) == 0 {
		fmt.Println(goodStyle.Render("No lint errors found."))
		return nil
	}

	classified := make([]model.ErrorClassification, 0, len(errs))
	for _, e := range errs {
		c := cls.Classify(ctx, e)
		if filterSet && c.Tier != tierFilter {
			continue
		}
		classified = append(classified, c)
	}

	sort.Slice(classified, func(i, j int) bool {
		a, b := classified[i], classified[j]
		if a.Tier != b.Tier {
			return a.Tier < b.Tier
		}
		if a.Error.File != b.Error.File {
			return a.Error.File < b.Error.File
		}
		return a.Error.Line < b.Error.Line
	})

	fmt.Println(headerStyle.Render(fmt.Sprintf("Classified %d findings", len(classified))))
	counts := make(map[model.FixabilityTier]int)
	for _, c := range classified {
		counts[c.Tier]++
		line := fmt.Sprintf("  %-11s %-10s %.2f  %-8s %s:%d:%d %s %s",
			c.Tier, c.Category, c.Confidence, c.Source,
			c.Error.File, c.Error.Line, c.Error.Column,
			c.Error.Rule, c.Error.Message)
		if c.Tier == model.TierManualOnly {
			line = dimStyle.Render(line)
		}
		fmt.Println(line)
	}

	fmt.Println()
	for tier := model.TierTrivial; tier <= model.TierManualOnly; tier++ {
		if counts[tier] > 0 {
			fmt.Printf("  %-11s %d\n", tier, counts[tier])
		}
	}
	return nil
}
