package classifier

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casapps/hookrelay/src/internal/models"
)

func TestAdvisor_ConsultReturnsDecisionAboveThreshold(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req advisorRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 503, req.ErrorSignature.HTTPStatusCode)

		json.NewEncoder(w).Encode(advisorResponse{
			Decision:        "RETRY",
			ConfidenceScore: 0.9,
			Explanation:     "similar endpoints recovered after retrying",
		})
	}))
	defer server.Close()

	advisor := NewAdvisor(AdvisorConfig{URL: server.URL, Enabled: true, Timeout: time.Second, ConfidenceThreshold: 0.5})
	decision, explanation, ok := advisor.Consult(t.Context(), 503, models.ErrorTypeServer, "service unavailable", Context{WebhookID: "wh-1"})

	assert.True(t, ok)
	assert.Equal(t, models.DecisionRetry, decision)
	assert.NotEmpty(t, explanation)
}

func TestAdvisor_FailsOpenBelowConfidenceThreshold(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(advisorResponse{Decision: "RETRY", ConfidenceScore: 0.1})
	}))
	defer server.Close()

	advisor := NewAdvisor(AdvisorConfig{URL: server.URL, Enabled: true, Timeout: time.Second, ConfidenceThreshold: 0.6})
	_, _, ok := advisor.Consult(t.Context(), 503, models.ErrorTypeServer, "", Context{})
	assert.False(t, ok)
}

func TestAdvisor_FailsOpenOnTransportError(t *testing.T) {
	advisor := NewAdvisor(AdvisorConfig{URL: "http://127.0.0.1:1", Enabled: true, Timeout: 50 * time.Millisecond, ConfidenceThreshold: 0.5})
	_, _, ok := advisor.Consult(t.Context(), 503, models.ErrorTypeServer, "", Context{})
	assert.False(t, ok)
}

func TestAdvisor_DisabledIsSkipped(t *testing.T) {
	advisor := NewAdvisor(AdvisorConfig{Enabled: false})
	_, _, ok := advisor.Consult(t.Context(), 503, models.ErrorTypeServer, "", Context{})
	assert.False(t, ok)
}

func TestAdvisor_NilReceiverIsSkipped(t *testing.T) {
	var advisor *Advisor
	_, _, ok := advisor.Consult(t.Context(), 503, models.ErrorTypeServer, "", Context{})
	assert.False(t, ok)
}
