package classifier

import (
	"context"

	"github.com/casapps/hookrelay/src/internal/delivery"
	"github.com/casapps/hookrelay/src/internal/models"
)

// AdvisorLimiter is satisfied by internal/ratelimit.Limiter; kept as a
// narrow interface here so classifier does not import ratelimit directly
// (it only needs permission to make one more outbound call).
type AdvisorLimiter interface {
	Allow(webhookID string) bool
}

// Classifier implements the two-tier decision scheme of spec §4.5:
// consult the remote advisor first (if enabled, admitted by the rate
// limiter, and confident), otherwise fall back to the always-available
// rule engine.
type Classifier struct {
	advisor *Advisor
	engine  *RuleEngine
	limiter AdvisorLimiter
}

// New builds a Classifier. advisor and limiter may be nil to disable the
// remote-advisor tier entirely (pure rule engine).
func New(advisor *Advisor, engine *RuleEngine, limiter AdvisorLimiter) *Classifier {
	return &Classifier{advisor: advisor, engine: engine, limiter: limiter}
}

// Outcome is what the worker records after a failed attempt.
type Outcome struct {
	Decision    models.Decision
	Explanation string
	ErrorType   models.ErrorType
}

// Classify maps a failed delivery.Result to a decision, consulting the
// advisor first when available and falling back to the rule engine.
func (c *Classifier) Classify(ctx context.Context, result delivery.Result, delivCtx Context) Outcome {
	errorType := DeriveErrorType(result.StatusCode, result.ErrorMessage)

	if c.advisor != nil && (c.limiter == nil || c.limiter.Allow(delivCtx.WebhookID)) {
		if decision, explanation, ok := c.advisor.Consult(ctx, result.StatusCode, errorType, result.ErrorMessage, delivCtx); ok {
			return Outcome{Decision: decision, Explanation: explanation, ErrorType: errorType}
		}
	}

	decision, explanation, derivedType := c.engine.Evaluate(result.StatusCode, result.ErrorMessage)
	return Outcome{Decision: decision, Explanation: explanation, ErrorType: derivedType}
}
