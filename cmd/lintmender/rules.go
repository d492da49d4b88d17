package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and refresh the rule knowledge base",
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesRefreshCmd())

	return cmd
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [linter]",
		Short: "List known rule classifications",
		Long: `Print the merged rule table for each linter: built-in entries plus
any refreshed metadata that is still fresh enough to use.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer func() { _ = store.Close() }()

			kb, err := newKnowledgeBase(ctx, store)
			if err != nil {
				return err
			}

			names := kb.Loaded()
			if len(args) == 1 {
				names = []string{args[0]}
			}
			sort.Strings(names)

			for _, name := range names {
				table, err := kb.Load(ctx, name)
				if err != nil {
					return err
				}

				fmt.Println(headerStyle.Render(fmt.Sprintf("%s (%d rules)", name, len(table))))
				ids := make([]string, 0, len(table))
				for id := range table {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				for _, id := range ids {
					entry := table[id]
					fmt.Printf("  %-12s %-10s %-11s %s\n", id, entry.Category, entry.Tier, dimStyle.Render(string(entry.Provenance)))
				}
				fmt.Println()
			}
			return nil
		},
	}
}

func rulesRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [linter]",
		Short: "Fetch updated rule metadata",
		Long: `Fetch newer rule classifications from the configured refresh source
and cache them locally. A failed fetch leaves the last good table in
effect.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer func() { _ = store.Close() }()

			kb, err := newKnowledgeBase(ctx, store)
			if err != nil {
				return err
			}

			names := kb.Loaded()
			if len(args) == 1 {
				names = []string{args[0]}
			}
			sort.Strings(names)

			failed := 0
			for _, name := range names {
				if err := kb.Refresh(ctx, name); err != nil {
					failed++
					fmt.Printf("  %s %v\n", badStyle.Render("✗"), err)
					continue
				}
				fmt.Printf("  %s refreshed %s\n", goodStyle.Render("✓"), name)
			}
			if failed == len(names) {
				return fmt.Errorf("no rule tables could be refreshed")
			}
			return nil
		},
	}
}
