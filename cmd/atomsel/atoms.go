package main

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/praetorian-inc/atomsel/pkg/atoms"
	"github.com/praetorian-inc/atomsel/pkg/compiler"
	"github.com/praetorian-inc/atomsel/pkg/store"
	"github.com/praetorian-inc/atomsel/pkg/types"
	"github.com/spf13/cobra"
)

var (
	atomsRulesPath    string
	atomsRulesInclude string
	atomsRulesExclude string
	atomsFormat       string
	atomsCache        string
	atomsWorkers      int
	atomsFallbacks    bool
)

var atomsCmd = &cobra.Command{
	Use:   "atoms",
	Short: "Show the atoms selected for each rule",
	Long: `Compile rules and print the atoms chosen for the prefilter together with
the quality of the selected sequence. Rules without usable atoms are marked as
fallback and are verified against every input.`,
	RunE: runAtoms,
}

func init() {
	addRuleFlags(atomsCmd, &atomsRulesPath, &atomsRulesInclude, &atomsRulesExclude)
	atomsCmd.Flags().StringVar(&atomsFormat, "format", "table", "Output format: table, json")
	atomsCmd.Flags().StringVar(&atomsCache, "cache", "", "SQLite database caching atom selections")
	atomsCmd.Flags().IntVar(&atomsWorkers, "workers", 0, "Rules compiled in parallel (0 = number of CPUs)")
	atomsCmd.Flags().BoolVar(&atomsFallbacks, "fallbacks", false, "Only show rules without usable atoms")
}

// atomSelection is the JSON form of a compiled rule.
type atomSelection struct {
	RuleID   string            `json:"rule_id"`
	Kind     types.Kind        `json:"kind"`
	Atoms    []string          `json:"atoms"`
	Quality  *atoms.SeqQuality `json:"quality,omitempty"`
	Fallback bool              `json:"fallback"`
	Cached   bool              `json:"cached"`
}

func runAtoms(cmd *cobra.Command, args []string) error {
	rules, err := loadRules(atomsRulesPath, atomsRulesInclude, atomsRulesExclude)
	if err != nil {
		return err
	}
	if err := validateRules(cmd, rules); err != nil {
		return err
	}

	rs, err := compileRules(cmd, rules, atomsCache, atomsWorkers)
	if err != nil {
		return err
	}

	compiled := rs.Rules
	if atomsFallbacks {
		compiled = rs.Fallbacks()
	}

	switch atomsFormat {
	case "json":
		out := make([]atomSelection, 0, len(compiled))
		for _, cr := range compiled {
			sel := atomSelection{
				RuleID:   cr.Rule.ID,
				Kind:     cr.Rule.EffectiveKind(),
				Atoms:    make([]string, 0, len(cr.Atoms)),
				Quality:  cr.Quality,
				Fallback: cr.Fallback,
				Cached:   cr.Cached,
			}
			for _, a := range cr.Atoms {
				sel.Atoms = append(sel.Atoms, a.String())
			}
			out = append(out, sel)
		}
		return writeJSON(cmd.OutOrStdout(), out)
	case "table":
		return outputAtomsTable(cmd, compiled)
	default:
		return fmt.Errorf("unknown output format: %s", atomsFormat)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// compileRules compiles rules, reading and writing selections to the SQLite
// database at cachePath when it is set.
func compileRules(cmd *cobra.Command, rules []*types.Rule, cachePath string, workers int) (*compiler.Ruleset, error) {
	opts := compiler.Options{
		Limits:  cfg.Compile.Limits,
		Workers: workers,
		Logger:  slog.Default(),
	}

	if cachePath != "" {
		s, err := store.New(store.Config{Path: cachePath})
		if err != nil {
			return nil, fmt.Errorf("opening atom cache: %w", err)
		}
		defer s.Close()
		opts.Cache = s
	}

	rs, err := compiler.Compile(commandContext(cmd), rules, opts)
	if err != nil {
		printDiagnostic(cmd.ErrOrStderr(), err)
		return nil, fmt.Errorf("compiling rules: %w", err)
	}

	if n := len(rs.Fallbacks()); n > 0 {
		slog.Info("rules without usable atoms are verified against every input", "count", n)
	}
	return rs, nil
}

func outputAtomsTable(cmd *cobra.Command, compiled []*compiler.CompiledRule) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "ID\tAtoms\tSeqLen\tMinLen\tMinQuality\tNote\n")
	fmt.Fprintf(w, "--\t-----\t------\t------\t----------\t----\n")

	for _, cr := range compiled {
		note := ""
		if cr.Cached {
			note = "cached"
		}
		if cr.Fallback || cr.Quality == nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\tfallback\n", cr.Rule.ID)
			continue
		}
		q := cr.Quality
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
			cr.Rule.ID, formatAtoms(cr.Atoms, 4), q.SeqLen, q.MinAtomLen, q.MinAtomQuality, note)
	}

	return nil
}
