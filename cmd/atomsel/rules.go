package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/praetorian-inc/atomsel/pkg/rule"
	"github.com/praetorian-inc/atomsel/pkg/types"
	"github.com/spf13/cobra"
)

var (
	rulesPath    string
	rulesInclude string
	rulesExclude string
	outputFormat string
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage detection rules",
	Long:  "Commands for listing and checking detection rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available rules",
	Long:  "Display all available detection rules with their IDs, kinds and names",
	RunE:  runRulesList,
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate rules",
	Long:  "Validate rule fields and patterns, printing a source excerpt for pattern errors",
	RunE:  runRulesCheck,
}

func init() {
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesCheckCmd)
	for _, c := range []*cobra.Command{rulesListCmd, rulesCheckCmd} {
		addRuleFlags(c, &rulesPath, &rulesInclude, &rulesExclude)
	}
	rulesListCmd.Flags().StringVar(&outputFormat, "format", "table", "Output format: table, json")
}

func addRuleFlags(c *cobra.Command, path, include, exclude *string) {
	c.Flags().StringVar(path, "rules", "", "Path to custom rules file or directory")
	c.Flags().StringVar(include, "rules-include", "", "Include rules matching regex pattern (comma-separated)")
	c.Flags().StringVar(exclude, "rules-exclude", "", "Exclude rules matching regex pattern (comma-separated)")
}

func runRulesList(cmd *cobra.Command, args []string) error {
	rules, err := loadRules(rulesPath, rulesInclude, rulesExclude)
	if err != nil {
		return err
	}

	// Output based on format
	switch outputFormat {
	case "json":
		return writeJSON(cmd.OutOrStdout(), rules)
	case "table":
		return outputRulesTable(cmd, rules)
	default:
		return fmt.Errorf("unknown output format: %s", outputFormat)
	}
}

func runRulesCheck(cmd *cobra.Command, args []string) error {
	rules, err := loadRules(rulesPath, rulesInclude, rulesExclude)
	if err != nil {
		return err
	}
	if err := validateRules(cmd, rules); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d rules OK\n", len(rules))
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// loadRules loads built-in rules, or the rules under path, and applies the
// include and exclude filters.
func loadRules(path, include, exclude string) ([]*types.Rule, error) {
	loader := rule.NewLoader()

	var rules []*types.Rule
	var err error

	if path != "" {
		rules, err = loader.LoadPath(path)
		if err != nil {
			return nil, fmt.Errorf("loading rules from %s: %w", path, err)
		}
	} else {
		rules, err = loader.LoadBuiltinRules()
		if err != nil {
			return nil, fmt.Errorf("loading builtin rules: %w", err)
		}
	}

	// Apply filtering if patterns specified
	if include != "" || exclude != "" {
		config := rule.FilterConfig{
			Include: rule.ParsePatterns(include),
			Exclude: rule.ParsePatterns(exclude),
		}
		rules, err = rule.Filter(rules, config)
		if err != nil {
			return nil, fmt.Errorf("filtering rules: %w", err)
		}
	}

	if len(rules) == 0 {
		return nil, fmt.Errorf("no rules selected")
	}
	return rules, nil
}

// validateRules validates rules and prints the source excerpt of a pattern
// diagnostic to stderr.
func validateRules(cmd *cobra.Command, rules []*types.Rule) error {
	if err := rule.ValidateRules(rules); err != nil {
		printDiagnostic(cmd.ErrOrStderr(), err)
		return err
	}
	return nil
}

func outputRulesTable(cmd *cobra.Command, rules []*types.Rule) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "ID\tKind\tName\tCategories\n")
	fmt.Fprintf(w, "--\t----\t----\t----------\n")

	for _, r := range rules {
		categories := ""
		if len(r.Categories) > 0 {
			categories = r.Categories[0]
			if len(r.Categories) > 1 {
				categories += fmt.Sprintf(" (+%d)", len(r.Categories)-1)
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.EffectiveKind(), r.Name, categories)
	}

	return nil
}
