// Package diagnostics is a pure function of classifier output, endpoint
// counters, and recent classifications, per spec §4.6. Nothing here
// mutates Webhook, Event, or ErrorClassification state.
package diagnostics

import (
	"fmt"

	"github.com/casapps/hookrelay/src/internal/models"
)

// Explain produces the per-failure human explanation keyed primarily on
// HTTP status and decision, spec §4.6(a). It is a thin wrapper: the
// classifier already produces a templated explanation, but Diagnostics
// is the seam that would let a richer explanation (e.g. incorporating
// endpoint history) be substituted without touching the classifier.
func Explain(statusCode int, decision models.Decision, classifierExplanation string) string {
	if classifierExplanation != "" {
		return classifierExplanation
	}
	return fmt.Sprintf("delivery failed with status %d, decision %s", statusCode, decision)
}

// HealthSummary is the per-webhook health view spec §4.6(b) describes:
// success rate, breaker state, and the last N error lines.
type HealthSummary struct {
	WebhookID           string                       `json:"webhook_id"`
	CircuitState        models.CircuitState          `json:"circuit_state"`
	SuccessRate         float64                      `json:"success_rate"`
	TotalSuccesses      int64                        `json:"total_successes"`
	TotalFailures       int64                        `json:"total_failures"`
	ConsecutiveFailures int                          `json:"consecutive_failures"`
	RecentErrors        []models.ErrorClassification `json:"recent_errors"`
	Recommendations     []string                     `json:"recommendations"`
}

// Summarize builds a HealthSummary for webhook, given its most recent
// classifications ordered newest-first. Only the first maxRecent entries
// are retained in the summary and considered for recommendations.
func Summarize(webhook *models.Webhook, recentClassifications []models.ErrorClassification, maxRecent int) HealthSummary {
	if maxRecent <= 0 || maxRecent > len(recentClassifications) {
		maxRecent = len(recentClassifications)
	}
	recent := recentClassifications[:maxRecent]

	return HealthSummary{
		WebhookID:           webhook.ID.String(),
		CircuitState:        webhook.CircuitState,
		SuccessRate:         webhook.SuccessRate(),
		TotalSuccesses:      webhook.TotalSuccesses,
		TotalFailures:       webhook.TotalFailures,
		ConsecutiveFailures: webhook.ConsecutiveFailures,
		RecentErrors:        recent,
		Recommendations:     recommend(webhook, recent),
	}
}

// recommend implements spec §4.6(c): simple counts over the last up-to-10
// classifications drive canned recommendations.
func recommend(webhook *models.Webhook, recent []models.ErrorClassification) []string {
	window := recent
	if len(window) > 10 {
		window = window[:10]
	}

	var authCount, rateLimitCount, serverErrorCount int
	for _, c := range window {
		switch c.ErrorType {
		case models.ErrorTypeAuth:
			authCount++
		case models.ErrorTypeRateLimit:
			rateLimitCount++
		case models.ErrorTypeServer:
			serverErrorCount++
		}
	}

	var recs []string
	if authCount >= 3 {
		recs = append(recs, "3 or more authentication errors in recent history: review endpoint credentials.")
	}
	if rateLimitCount >= 2 {
		recs = append(recs, "2 or more rate-limit responses in recent history: suggest the subscriber apply backoff.")
	}
	if serverErrorCount >= 5 {
		recs = append(recs, "5 or more server errors in recent history: suggest a subscriber health check.")
	}
	if webhook.CircuitState == models.CircuitOpen {
		recs = append(recs, "circuit breaker is OPEN: endpoint is temporarily disabled.")
	}
	return recs
}
