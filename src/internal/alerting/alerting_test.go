package alerting

import (
	"testing"

	"github.com/google/uuid"

	"github.com/casapps/hookrelay/src/internal/models"
)

func testEventWebhookClassification() (*models.Event, *models.Webhook, *models.ErrorClassification) {
	webhook := &models.Webhook{ID: uuid.New(), CircuitState: models.CircuitOpen}
	event := &models.Event{ID: uuid.New(), WebhookID: webhook.ID}
	classification := &models.ErrorClassification{StatusCode: 503, ErrorMessage: "service unavailable", Explanation: "server errors"}
	return event, webhook, classification
}

// Escalate never dials out (and so never blocks on network I/O) unless
// alerting is enabled with at least one recipient — these are the paths
// exercisable without a real or mocked SMTP server.

func TestNotifier_DisabledIsNoop(t *testing.T) {
	n := New(Config{Enabled: false, To: []string{"ops@example.com"}})
	event, webhook, classification := testEventWebhookClassification()
	n.Escalate(event, webhook, classification)
}

func TestNotifier_NoRecipientsIsNoop(t *testing.T) {
	n := New(Config{Enabled: true})
	event, webhook, classification := testEventWebhookClassification()
	n.Escalate(event, webhook, classification)
}

func TestNotifier_NilReceiverIsNoop(t *testing.T) {
	var n *Notifier
	event, webhook, classification := testEventWebhookClassification()
	n.Escalate(event, webhook, classification)
}
