package rules

import "strings"

// Rule type prefixes recorded in match results and statistics.
const (
	RuleMention = "mention"

	ruleKeywordPrefix = "keyword:"
	rulePatternPrefix = "pattern:"
)

// Result is the outcome of evaluating one message against the rule set.
type Result struct {
	Matched bool
	// Rule identifies what matched: "mention", "keyword:<value>" or
	// "pattern:<value>". Empty when Matched is false.
	Rule string
}

// RuleType collapses a matched rule to its type for per-rule-type counters.
func (r Result) RuleType() string {
	switch {
	case r.Rule == RuleMention:
		return "mention"
	case strings.HasPrefix(r.Rule, ruleKeywordPrefix):
		return "keyword"
	case strings.HasPrefix(r.Rule, rulePatternPrefix):
		return "pattern"
	default:
		return "none"
	}
}

// Evaluate runs the matching pipeline. It is pure: no shared state is
// touched, so concurrent callers need no synchronization.
//
// A direct mention always wins, independent of keywords and patterns.
// Otherwise keywords are tested in configured order as case-insensitive
// substrings, then patterns in configured order. First hit is the reason.
// Matching is substring/regex search, not whole-word: callers wanting word
// boundaries encode \b into their patterns.
func Evaluate(text string, isMention bool, set *Set) Result {
	if isMention {
		return Result{Matched: true, Rule: RuleMention}
	}

	if text == "" {
		return Result{}
	}

	lowered := strings.ToLower(text)
	for _, kw := range set.keywords {
		if strings.Contains(lowered, kw) {
			return Result{Matched: true, Rule: ruleKeywordPrefix + kw}
		}
	}

	for i, re := range set.patterns {
		if re.MatchString(text) {
			return Result{Matched: true, Rule: rulePatternPrefix + set.rawPattern[i]}
		}
	}

	return Result{}
}
