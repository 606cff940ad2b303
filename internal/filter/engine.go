// Package filter implements the per-destination allow-list engine.
//
// Patterns use a JS-style trailing flag convention ("pattern/flags").
// Only i, m and s change matching under RE2: g is meaningless for
// single-match filtering, u adds nothing because RE2 is Unicode-aware
// by default, and v/x (verbose) have no RE2 equivalent. All of them are
// accepted so patterns written for other engines keep working.
package filter

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"statusbot/internal/model"
	"statusbot/internal/status"
)

const flagAlphabet = "igmsuvx"

// ParseFlags splits "pattern/flags" into the bare pattern and its flag
// set. If the segment after the last '/' is empty or contains any
// character outside the flag alphabet, the whole input is the pattern
// and no flags are parsed.
func ParseFlags(pattern string) (string, string) {
	idx := strings.LastIndex(pattern, "/")
	if idx <= 0 || idx == len(pattern)-1 {
		return pattern, ""
	}
	flags := strings.ToLower(pattern[idx+1:])
	for _, c := range flags {
		if !strings.ContainsRune(flagAlphabet, c) {
			return pattern, ""
		}
	}
	return pattern[:idx], flags
}

// Compile parses flags and compiles the remaining pattern, translating
// i/m/s into inline (?ims) groups.
func Compile(pattern string) (*regexp.Regexp, error) {
	clean, flags := ParseFlags(pattern)

	var inline strings.Builder
	for _, c := range "ims" {
		if strings.ContainsRune(flags, c) {
			inline.WriteRune(c)
		}
	}
	if inline.Len() > 0 {
		clean = "(?" + inline.String() + ")" + clean
	}

	re, err := regexp.Compile(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	return re, nil
}

// Validate reports whether a pattern (with optional flags) compiles.
// The error text is suitable for showing to the operator.
func Validate(pattern string) error {
	_, err := Compile(pattern)
	return err
}

// Matches decides whether a service name passes the given rules. No
// rules means everything passes. Otherwise a search hit on any rule
// passes, first match short-circuits. Invalid rules are skipped with a
// warning; if every rule is invalid nothing passes, so a broken filter
// fails closed instead of flooding the destination.
func Matches(service string, rules []model.FilterRule, log *slog.Logger) bool {
	if len(rules) == 0 {
		return true
	}
	for _, re := range compileRules(rules, log) {
		if re.MatchString(service) {
			return true
		}
	}
	return false
}

// FilterIssues returns the subset of issues whose service name passes
// the rules, compiling each rule once for the whole set.
func FilterIssues(issues status.IssueSet, rules []model.FilterRule, log *slog.Logger) status.IssueSet {
	if len(rules) == 0 {
		return issues
	}

	compiled := compileRules(rules, log)
	out := make(status.IssueSet)
	for issue := range issues {
		for _, re := range compiled {
			if re.MatchString(issue.Service) {
				out[issue] = struct{}{}
				break
			}
		}
	}
	return out
}

func compileRules(rules []model.FilterRule, log *slog.Logger) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(rules))
	for _, rule := range rules {
		re, err := Compile(rule.Pattern)
		if err != nil {
			log.Warn("skipping invalid filter pattern", "pattern", rule.Pattern, "error", err)
			continue
		}
		compiled = append(compiled, re)
	}
	return compiled
}
