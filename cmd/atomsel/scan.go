package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/praetorian-inc/atomsel/pkg/compiler"
	"github.com/praetorian-inc/atomsel/pkg/enum"
	"github.com/praetorian-inc/atomsel/pkg/matcher"
	"github.com/praetorian-inc/atomsel/pkg/sarif"
	"github.com/praetorian-inc/atomsel/pkg/store"
	"github.com/praetorian-inc/atomsel/pkg/types"
	"github.com/spf13/cobra"
)

var (
	scanRulesPath     string
	scanRulesInclude  string
	scanRulesExclude  string
	scanOutputPath    string
	scanOutputFormat  string
	scanColor         string
	scanMaxFileSize   int64
	scanIncludeHidden bool
	scanSkipBinary    bool
	scanContext       int
	scanEngine        string
	scanDedupe        string
	scanMaxMatches    int
	scanCache         string
	scanWorkers       int
)

var scanCmd = &cobra.Command{
	Use:   "scan <target>",
	Short: "Scan a file or directory",
	Long:  "Compile the rules, then scan a file or every file below a directory (honoring .gitignore)",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

func init() {
	addRuleFlags(scanCmd, &scanRulesPath, &scanRulesInclude, &scanRulesExclude)
	scanCmd.Flags().StringVar(&scanOutputPath, "output", ":memory:", "Database storing matches (\":memory:\" keeps them in memory)")
	scanCmd.Flags().StringVar(&scanOutputFormat, "format", "human", "Output format: human, json, sarif")
	scanCmd.Flags().StringVar(&scanColor, "color", "auto", "Color output: auto, always, never")
	scanCmd.Flags().Int64Var(&scanMaxFileSize, "max-file-size", 10*1024*1024, "Maximum file size to scan (bytes, 0 = no limit)")
	scanCmd.Flags().BoolVar(&scanIncludeHidden, "include-hidden", false, "Include hidden files and directories")
	scanCmd.Flags().BoolVar(&scanSkipBinary, "skip-binary", false, "Skip files that look binary")
	scanCmd.Flags().IntVar(&scanContext, "context", 32, "Bytes of context kept around each match")
	scanCmd.Flags().StringVar(&scanEngine, "engine", "default", "Matcher engine: default, hyperscan")
	scanCmd.Flags().StringVar(&scanDedupe, "dedupe", "location", "Deduplicate matches by: location, content")
	scanCmd.Flags().IntVar(&scanMaxMatches, "max-matches", 0, "Maximum matches per rule and file (0 = unlimited)")
	scanCmd.Flags().StringVar(&scanCache, "cache", "", "SQLite database caching atom selections")
	scanCmd.Flags().IntVar(&scanWorkers, "workers", 0, "Rules compiled in parallel (0 = number of CPUs)")
}

// scanResult is the JSON form of a match.
type scanResult struct {
	Path string `json:"path"`
	*types.Match
}

func runScan(cmd *cobra.Command, args []string) error {
	target := args[0]

	// Validate target exists
	if _, err := os.Stat(target); err != nil {
		return fmt.Errorf("target does not exist: %s", target)
	}

	engine, err := matcher.ParseEngine(scanEngine)
	if err != nil {
		return err
	}
	dedupe, err := matcher.ParseDedupeMode(scanDedupe)
	if err != nil {
		return err
	}
	colored, err := colorEnabled(scanColor, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	rules, err := loadRules(scanRulesPath, scanRulesInclude, scanRulesExclude)
	if err != nil {
		return err
	}
	if err := validateRules(cmd, rules); err != nil {
		return err
	}
	rs, err := compileRules(cmd, rules, scanCache, scanWorkers)
	if err != nil {
		return err
	}

	// Create matcher
	m, err := matcher.New(matcher.Config{
		Ruleset:           rs,
		Engine:            engine,
		SnippetContext:    scanContext,
		MaxMatchesPerRule: scanMaxMatches,
		Dedupe:            dedupe,
	})
	if err != nil {
		return fmt.Errorf("creating matcher: %w", err)
	}
	defer m.Close()

	// Create store
	s, err := store.New(store.Config{Path: scanOutputPath})
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	defer s.Close()

	enumerator := enum.NewFilesystemEnumerator(enum.Config{
		Root:           target,
		IncludeHidden:  scanIncludeHidden,
		MaxFileSize:    scanMaxFileSize,
		FollowSymlinks: false,
		SkipBinary:     scanSkipBinary,
	})

	// Files are read in parallel; the store and path index are shared.
	var (
		mu        sync.Mutex
		paths     = make(map[types.BlobID]string)
		blobCount int
	)
	err = enumerator.Enumerate(commandContext(cmd), func(b enum.Blob) error {
		matches, err := m.MatchWithBlobID(b.Content, b.ID)
		if err != nil {
			return fmt.Errorf("matching %s: %w", b.Path, err)
		}

		mu.Lock()
		defer mu.Unlock()
		blobCount++
		if _, ok := paths[b.ID]; !ok {
			paths[b.ID] = b.Path
		}
		for _, match := range matches {
			if err := s.AddMatch(match); err != nil {
				return fmt.Errorf("storing match: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}

	matches, err := s.GetAllMatches()
	if err != nil {
		return fmt.Errorf("retrieving matches: %w", err)
	}
	results := make([]scanResult, 0, len(matches))
	for _, match := range matches {
		results = append(results, scanResult{Path: paths[match.BlobID], Match: match})
	}
	sortResults(results)

	// Keep stdout pure JSON for the json and sarif formats
	summary := cmd.OutOrStdout()
	if scanOutputFormat == "json" || scanOutputFormat == "sarif" {
		summary = cmd.ErrOrStderr()
	}

	switch scanOutputFormat {
	case "json":
		if err := writeJSON(cmd.OutOrStdout(), results); err != nil {
			return err
		}
	case "sarif":
		if err := outputSARIF(cmd.OutOrStdout(), rs, results); err != nil {
			return err
		}
	case "human":
		outputScanHuman(cmd.OutOrStdout(), results, newStyles(colored))
	default:
		return fmt.Errorf("unknown output format: %s", scanOutputFormat)
	}

	fmt.Fprintf(summary, "Scan complete: %d files, %d rules (%d without atoms), %d matches\n",
		blobCount, len(rs.Rules), len(rs.Fallbacks()), len(results))
	if scanOutputPath != ":memory:" {
		fmt.Fprintf(summary, "Results stored in: %s\n", scanOutputPath)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func sortResults(results []scanResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Location.Offset.Start != b.Location.Offset.Start {
			return a.Location.Offset.Start < b.Location.Offset.Start
		}
		return a.RuleID < b.RuleID
	})
}

// outputSARIF writes the compiled rules and matches as a SARIF 2.1.0 log.
func outputSARIF(w io.Writer, rs *compiler.Ruleset, results []scanResult) error {
	report := sarif.NewReport(version)
	for _, cr := range rs.Rules {
		report.AddRule(cr)
	}
	for _, r := range results {
		report.AddResult(r.Match, r.Path)
	}

	jsonBytes, err := report.ToJSON()
	if err != nil {
		return fmt.Errorf("serializing SARIF: %w", err)
	}
	if _, err := w.Write(append(jsonBytes, '\n')); err != nil {
		return fmt.Errorf("writing SARIF output: %w", err)
	}
	return nil
}

func outputScanHuman(w io.Writer, results []scanResult, s *styles) {
	if len(results) == 0 {
		fmt.Fprintf(w, "No matches.\n")
		return
	}

	for _, r := range results {
		pos := r.Location.Source.Start
		fmt.Fprintf(w, "%s%s %s (%s)\n",
			s.path.Sprint(r.Path),
			s.position.Sprintf(":%d:%d", pos.Line, pos.Column),
			s.ruleID.Sprint(r.RuleID),
			s.ruleName.Sprint(r.RuleName))
		fmt.Fprintf(w, "    %s%s%s\n",
			s.dim.Sprint(printable(r.Snippet.Before)),
			s.match.Sprint(printable(r.Snippet.Matching)),
			s.dim.Sprint(printable(r.Snippet.After)))
	}
}
