package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/copperpot/copperpot/internal/cli"
	"github.com/copperpot/copperpot/internal/common"
	"github.com/copperpot/copperpot/internal/model"
	"github.com/copperpot/copperpot/internal/pattern"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rules",
		Aliases: []string{"rule"},
		Short:   "Manage pattern rules for categorization",
		Long: `Manage the pattern rules the categorization engine matches against
transaction text and counterparty IBANs.`,
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesCreateCmd())
	cmd.AddCommand(rulesEditCmd())
	cmd.AddCommand(rulesDeactivateCmd())
	cmd.AddCommand(rulesTestCmd())

	return cmd
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active pattern rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rules, err := store.GetActiveRulesForUser(ctx, currentUserID())
			if err != nil {
				return fmt.Errorf("failed to get pattern rules: %w", err)
			}

			if len(rules) == 0 {
				slog.Info("No pattern rules found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tPATTERN\tKIND\tCATEGORY\tPRIORITY\tCONFIDENCE\tSOURCE")
			_, _ = fmt.Fprintln(w, "──\t───────\t────\t────────\t────────\t──────────\t──────")

			for _, rule := range rules {
				_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%.0f%%\t%s\n",
					rule.ID,
					rule.Pattern,
					rule.Kind,
					rule.Category,
					rule.Priority,
					rule.Confidence*100,
					rule.Source)
			}

			return w.Flush()
		},
	}
}

func rulesCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <pattern>",
		Short: "Create a new pattern rule",
		Long: `Create a pattern rule. The kind determines how the pattern matches:
exact and contains compare case-insensitively against transaction text,
regex compiles the pattern case-insensitively, and iban compares against
the counterparty IBAN.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			kind, _ := cmd.Flags().GetString("kind")
			category, _ := cmd.Flags().GetString("category")
			confidence, _ := cmd.Flags().GetFloat64("confidence")
			priority, _ := cmd.Flags().GetInt("priority")

			rule, err := model.NewPatternRule(currentUserID(), args[0],
				model.PatternKind(kind), category, confidence, priority, model.RuleSourceUser)
			if err != nil {
				return common.NewUserError("invalid pattern rule", err)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.CreateRule(ctx, rule); err != nil {
				return fmt.Errorf("failed to create pattern rule: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created rule %d: %s → %s", rule.ID, rule.Pattern, rule.Category)))
			return nil
		},
	}

	cmd.Flags().StringP("kind", "k", "contains", "match kind (exact, contains, regex, iban)")
	cmd.Flags().StringP("category", "c", "", "category the rule assigns")
	cmd.Flags().Float64P("confidence", "f", 0.9, "confidence assigned on match (0-1)")
	cmd.Flags().IntP("priority", "p", 0, "rule priority (higher wins)")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func rulesEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit an existing pattern rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid rule ID: %s", args[0])
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rule, err := store.GetRule(ctx, id)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("pattern") {
				rule.Pattern, _ = cmd.Flags().GetString("pattern")
			}
			if cmd.Flags().Changed("category") {
				rule.Category, _ = cmd.Flags().GetString("category")
			}
			if cmd.Flags().Changed("confidence") {
				rule.Confidence, _ = cmd.Flags().GetFloat64("confidence")
			}
			if cmd.Flags().Changed("priority") {
				rule.Priority, _ = cmd.Flags().GetInt("priority")
			}

			if err := store.UpdateRule(ctx, rule); err != nil {
				return fmt.Errorf("failed to update pattern rule: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Updated rule %d", rule.ID)))
			return nil
		},
	}

	cmd.Flags().String("pattern", "", "new pattern text")
	cmd.Flags().StringP("category", "c", "", "new category")
	cmd.Flags().Float64P("confidence", "f", 0, "new confidence (0-1)")
	cmd.Flags().IntP("priority", "p", 0, "new priority")

	return cmd
}

func rulesDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <id>",
		Short: "Deactivate a pattern rule",
		Long:  `Deactivate a rule so it no longer matches. Rules are never deleted.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid rule ID: %s", args[0])
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.SetRuleActive(ctx, id, false); err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Deactivated rule %d", id)))
			return nil
		},
	}
}

func rulesTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <text>",
		Short: "Test sample text against the active rules",
		Long: `Run sample transaction text through the active rules and report which
ones match, in priority order.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			iban, _ := cmd.Flags().GetString("iban")

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rules, err := store.GetActiveRulesForUser(ctx, currentUserID())
			if err != nil {
				return fmt.Errorf("failed to get pattern rules: %w", err)
			}

			var ibanPtr *string
			if iban != "" {
				ibanPtr = &iban
			}

			matcher := pattern.NewMatcher(rules)
			matched := 0
			for _, rule := range rules {
				if matcher.Matches(rule, args[0], ibanPtr) {
					matched++
					fmt.Println(cli.FormatSuccess(fmt.Sprintf("rule %d (%s %q) → %s", rule.ID, rule.Kind, rule.Pattern, rule.Category)))
				}
			}

			if matched == 0 {
				fmt.Println(cli.FormatInfo("no rules matched"))
			}
			return nil
		},
	}

	cmd.Flags().String("iban", "", "counterparty IBAN to test iban rules against")

	return cmd
}
