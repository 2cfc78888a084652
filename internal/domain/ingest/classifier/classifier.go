// Package classifier assigns categories and payee overrides to raw
// transaction descriptions from an ordered list of mapping rules.
package classifier

import "strings"

// DefaultCategory is assigned when no rule matches
const DefaultCategory = "Uncategorized"

// Rule is one pattern -> result classification entry. Rules are evaluated
// in their given order; the first match wins.
type Rule struct {
	Pattern    string // substring matched case-insensitively against the raw description
	Normalized string // optional canonical payee override
	Category   string
}

// Result is the outcome of classifying a description
type Result struct {
	Category        string
	NormalizedPayee string // empty when no rule supplied an override
}

// Classify matches the description against the rules in order. No match
// yields DefaultCategory and no payee override.
func Classify(description string, rules []Rule) Result {
	lowered := strings.ToLower(description)
	for _, rule := range rules {
		pattern := strings.ToLower(strings.TrimSpace(rule.Pattern))
		if pattern == "" {
			continue
		}
		if strings.Contains(lowered, pattern) {
			return Result{
				Category:        rule.Category,
				NormalizedPayee: strings.TrimSpace(rule.Normalized),
			}
		}
	}
	return Result{Category: DefaultCategory}
}
