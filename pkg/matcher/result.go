package matcher

import (
	"time"

	"github.com/praetorian-inc/atomsel/pkg/types"
)

// RuleStatus represents the outcome of verifying a rule against a blob
type RuleStatus int

const (
	// RuleCompleted indicates the rule finished successfully
	RuleCompleted RuleStatus = iota
	// RuleTimedOut indicates the regex exceeded its match timeout
	RuleTimedOut
	// RuleError indicates the rule encountered an error
	RuleError
)

// String returns the string representation of RuleStatus
func (rs RuleStatus) String() string {
	switch rs {
	case RuleCompleted:
		return "completed"
	case RuleTimedOut:
		return "timeout"
	case RuleError:
		return "error"
	default:
		return "unknown"
	}
}

// RuleStat contains statistics about a single rule verification
type RuleStat struct {
	RuleID   string        // Rule identifier
	Status   RuleStatus    // Execution status
	Duration time.Duration // Time taken to verify
	Matches  int           // Number of matches found
	Error    error         // Error if Status is not RuleCompleted
}

// ResultSummary provides aggregate statistics for one blob
type ResultSummary struct {
	TotalRules     int // Rules in the ruleset
	VerifiedRules  int // Rules that passed the prefilter and were verified
	SkippedRules   int // Rules ruled out by the prefilter
	CompletedRules int // Verified rules that completed successfully
	TimedOutRules  int // Verified rules that timed out
	ErrorRules     int // Verified rules that encountered errors
}

// MatchResult contains matches and execution statistics
type MatchResult struct {
	Matches   []*types.Match      // Deduplicated matches ordered by offset
	RuleStats map[string]RuleStat // Statistics for each verified rule (keyed by RuleID)
	Summary   ResultSummary       // Aggregate statistics
}
