// Package classifier maps a failed delivery result to a decision via the
// two-tier scheme of spec §4.5: an optional remote advisor consulted
// first, falling back to an always-available local rule engine.
package classifier

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/casapps/hookrelay/src/internal/models"
)

// Rule is one prioritised entry in the rule engine's table.
type Rule struct {
	Name                string
	Enabled             bool
	Priority            int
	ExactStatusCode     *int
	StatusCodeMin       *int
	StatusCodeMax       *int
	ErrorTypePattern    string // case-insensitive equality against the derived ErrorType
	ErrorMessagePattern string // regex
	Decision            models.Decision
	ExplanationTemplate string
}

// matches reports whether every constraint the rule specifies holds for
// the given failure context. A rule with no constraints at all matches
// everything, but the default rule set never constructs one.
func (r Rule) matches(statusCode int, errorType models.ErrorType, errorMessage string) bool {
	if r.ExactStatusCode != nil && statusCode != *r.ExactStatusCode {
		return false
	}
	if r.StatusCodeMin != nil && statusCode < *r.StatusCodeMin {
		return false
	}
	if r.StatusCodeMax != nil && statusCode > *r.StatusCodeMax {
		return false
	}
	if r.ErrorTypePattern != "" && !strings.EqualFold(r.ErrorTypePattern, string(errorType)) {
		return false
	}
	if r.ErrorMessagePattern != "" {
		matched, err := regexp.MatchString(r.ErrorMessagePattern, errorMessage)
		if err != nil || !matched {
			return false
		}
	}
	return true
}

func (r Rule) explain(statusCode int, errorType models.ErrorType, errorMessage string) string {
	out := r.ExplanationTemplate
	out = strings.ReplaceAll(out, "{statusCode}", fmt.Sprintf("%d", statusCode))
	out = strings.ReplaceAll(out, "{errorMessage}", errorMessage)
	out = strings.ReplaceAll(out, "{errorType}", string(errorType))
	return out
}

func intPtr(v int) *int { return &v }

// DefaultRules returns the rule set tabulated in spec §4.5, sorted
// descending by priority (ties broken by list order, which RuleEngine
// preserves with a stable sort).
func DefaultRules() []Rule {
	return []Rule{
		{
			Name: "rate-limit", Enabled: true, Priority: 100,
			ExactStatusCode: intPtr(429), Decision: models.DecisionRetry,
			ExplanationTemplate: "Received HTTP {statusCode} (rate limited); will retry honouring Retry-After.",
		},
		{
			Name: "unauthorized", Enabled: true, Priority: 90,
			ExactStatusCode: intPtr(401), Decision: models.DecisionFailPermanent,
			ExplanationTemplate: "Received HTTP {statusCode} (unauthorized); endpoint credentials are invalid.",
		},
		{
			Name: "forbidden", Enabled: true, Priority: 90,
			ExactStatusCode: intPtr(403), Decision: models.DecisionFailPermanent,
			ExplanationTemplate: "Received HTTP {statusCode} (forbidden); endpoint rejected the request.",
		},
		{
			Name: "not-found", Enabled: true, Priority: 90,
			ExactStatusCode: intPtr(404), Decision: models.DecisionFailPermanent,
			ExplanationTemplate: "Received HTTP {statusCode} (endpoint-not-found); the target URL no longer exists.",
		},
		{
			Name: "bad-request", Enabled: true, Priority: 90,
			ExactStatusCode: intPtr(400), Decision: models.DecisionFailPermanent,
			ExplanationTemplate: "Received HTTP {statusCode} (bad request); the payload was rejected.",
		},
		{
			Name: "request-timeout", Enabled: true, Priority: 80,
			ExactStatusCode: intPtr(408), Decision: models.DecisionRetry,
			ExplanationTemplate: "Received HTTP {statusCode} (request timeout); will retry.",
		},
		{
			Name: "legal-hold", Enabled: true, Priority: 75,
			ExactStatusCode: intPtr(451), Decision: models.DecisionPauseWebhook,
			ExplanationTemplate: "Received HTTP {statusCode} (unavailable for legal reasons); pausing endpoint.",
		},
		{
			Name: "network-error", Enabled: true, Priority: 70,
			StatusCodeMax: intPtr(0), Decision: models.DecisionRetry,
			ExplanationTemplate: "Transport failure ({errorMessage}); will retry.",
		},
		{
			Name: "server-error", Enabled: true, Priority: 50,
			StatusCodeMin: intPtr(500), StatusCodeMax: intPtr(599), Decision: models.DecisionRetry,
			ExplanationTemplate: "Received HTTP {statusCode} (server error); will retry.",
		},
		{
			Name: "client-error", Enabled: true, Priority: 10,
			StatusCodeMin: intPtr(400), StatusCodeMax: intPtr(499), Decision: models.DecisionFailPermanent,
			ExplanationTemplate: "Received HTTP {statusCode} (client error); will not retry.",
		},
	}
}

// RuleEngine evaluates a prioritised, configurable rule list. It never
// errors; an unmatched failure defaults to RETRY per spec §4.5.
type RuleEngine struct {
	rules []Rule
}

// NewRuleEngine builds an engine from rules, sorted descending by
// priority with ties broken by original list order (a stable sort).
func NewRuleEngine(rules []Rule) *RuleEngine {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	stableSortByPriorityDesc(sorted)
	return &RuleEngine{rules: sorted}
}

func stableSortByPriorityDesc(rules []Rule) {
	// Simple stable insertion sort: the rule lists here are tiny (single
	// digits to low dozens), so O(n^2) is not a concern and avoids
	// pulling in sort.Slice's interface-based comparator for ~10 rows.
	for i := 1; i < len(rules); i++ {
		j := i
		for j > 0 && rules[j-1].Priority < rules[j].Priority {
			rules[j-1], rules[j] = rules[j], rules[j-1]
			j--
		}
	}
}

// Evaluate returns the decision and explanation of the first enabled,
// matching rule, or a conservative RETRY default if nothing matches.
func (e *RuleEngine) Evaluate(statusCode int, errorMessage string) (models.Decision, string, models.ErrorType) {
	errorType := DeriveErrorType(statusCode, errorMessage)
	for _, rule := range e.rules {
		if !rule.Enabled {
			continue
		}
		if rule.matches(statusCode, errorType, errorMessage) {
			return rule.Decision, rule.explain(statusCode, errorType, errorMessage), errorType
		}
	}
	return models.DecisionRetry, fmt.Sprintf("No rule matched status %d; defaulting to retry.", statusCode), errorType
}

// DeriveErrorType implements the derivation table in spec §4.5.
func DeriveErrorType(statusCode int, errorMessage string) models.ErrorType {
	lowered := strings.ToLower(errorMessage)
	switch {
	case statusCode == 429:
		return models.ErrorTypeRateLimit
	case statusCode >= 500:
		return models.ErrorTypeServer
	case statusCode == 401 || statusCode == 403:
		return models.ErrorTypeAuth
	case statusCode > 0 && statusCode >= 400:
		return models.ErrorTypeClient
	case statusCode <= 0 && strings.Contains(lowered, "timeout"):
		return models.ErrorTypeTimeout
	case statusCode <= 0 && strings.Contains(lowered, "dns"):
		return models.ErrorTypeDNS
	case statusCode <= 0:
		return models.ErrorTypeNetwork
	default:
		return models.ErrorTypeUnknown
	}
}
