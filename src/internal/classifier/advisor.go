package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/casapps/hookrelay/src/internal/models"
)

// AdvisorConfig configures the optional remote learning advisor, per
// spec §6 (advisor.*).
type AdvisorConfig struct {
	URL                 string
	Enabled             bool
	Timeout             time.Duration
	FallbackEnabled     bool
	ConfidenceThreshold float64
}

// DefaultAdvisorConfig returns the spec-mandated defaults.
func DefaultAdvisorConfig() AdvisorConfig {
	return AdvisorConfig{Enabled: true, Timeout: 5 * time.Second, FallbackEnabled: true, ConfidenceThreshold: 0.6}
}

// Context carries the webhook-health signal the advisor (and, via
// ErrorClassification, the rule engine's audit trail) need to make a
// decision, per spec §4.5 and the wire protocol in §6.
type Context struct {
	RetryCount          int
	RecentFailureRate   float64
	WebhookID           string
	TotalFailures       int64
	TotalSuccesses      int64
	ConsecutiveFailures int
	CircuitBreakerState models.CircuitState
}

type advisorRequest struct {
	ErrorSignature struct {
		HTTPStatusCode      int    `json:"http_status_code"`
		ErrorType           string `json:"error_type"`
		ErrorMessagePattern string `json:"error_message_pattern"`
	} `json:"error_signature"`
	RetryCount        int     `json:"retry_count"`
	RecentFailureRate float64 `json:"recent_failure_rate"`
	WebhookHealth     struct {
		WebhookID           string `json:"webhook_id"`
		TotalFailures       int64  `json:"total_failures"`
		TotalSuccesses      int64  `json:"total_successes"`
		ConsecutiveFailures int    `json:"consecutive_failures"`
		CircuitBreakerState string `json:"circuit_breaker_state"`
	} `json:"webhook_health"`
}

type advisorEvidence struct {
	SampleSize      int      `json:"sample_size"`
	SuccessRate     float64  `json:"success_rate"`
	DecisionType    string   `json:"decision_type"`
	SimilarityScore *float64 `json:"similarity_score,omitempty"`
	ConfidenceScore float64  `json:"confidence_score"`
}

type advisorResponse struct {
	Decision        string          `json:"decision"`
	ConfidenceScore float64         `json:"confidence_score"`
	Explanation     string          `json:"explanation"`
	FallbackUsed    bool            `json:"fallback_used"`
	Evidence        advisorEvidence `json:"evidence"`
}

// Advisor calls the remote learning classifier. A nil *Advisor (or one
// with Enabled=false) is always skipped by Classifier.
type Advisor struct {
	cfg        AdvisorConfig
	httpClient *http.Client
}

// NewAdvisor builds an Advisor from cfg.
func NewAdvisor(cfg AdvisorConfig) *Advisor {
	return &Advisor{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

// Consult fires the single advisor HTTP POST described in spec §6. It
// returns ok=false on any transport failure, parse failure, or
// confidence below the configured threshold — the fail-open behaviour
// spec §7 requires.
func (a *Advisor) Consult(ctx context.Context, statusCode int, errorType models.ErrorType, errorMessage string, delivCtx Context) (decision models.Decision, explanation string, ok bool) {
	if a == nil || !a.cfg.Enabled || a.cfg.URL == "" {
		return "", "", false
	}

	reqCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	var body advisorRequest
	body.ErrorSignature.HTTPStatusCode = statusCode
	body.ErrorSignature.ErrorType = string(errorType)
	body.ErrorSignature.ErrorMessagePattern = errorMessage
	body.RetryCount = delivCtx.RetryCount
	body.RecentFailureRate = delivCtx.RecentFailureRate
	body.WebhookHealth.WebhookID = delivCtx.WebhookID
	body.WebhookHealth.TotalFailures = delivCtx.TotalFailures
	body.WebhookHealth.TotalSuccesses = delivCtx.TotalSuccesses
	body.WebhookHealth.ConsecutiveFailures = delivCtx.ConsecutiveFailures
	body.WebhookHealth.CircuitBreakerState = string(delivCtx.CircuitBreakerState)

	payload, err := json.Marshal(body)
	if err != nil {
		return "", "", false
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, a.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return "", "", false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", "", false
	}
	defer resp.Body.Close()

	var parsed advisorResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", "", false
	}

	if parsed.ConfidenceScore < a.cfg.ConfidenceThreshold {
		return "", "", false
	}

	parsedDecision, valid := parseDecision(parsed.Decision)
	if !valid {
		return "", "", false
	}

	return parsedDecision, parsed.Explanation, true
}

func parseDecision(raw string) (models.Decision, bool) {
	switch models.Decision(raw) {
	case models.DecisionRetry, models.DecisionFailPermanent, models.DecisionPauseWebhook, models.DecisionEscalate:
		return models.Decision(raw), true
	default:
		return "", false
	}
}
