// Package alerting sends a best-effort operator email when the
// classifier returns an ESCALATE decision, per spec §4.7 step 7.d. It is
// adapted from the teacher's email dispatch pattern (gomail.v2 Dialer
// with optional TLS, fire-and-forget send).
package alerting

import (
	"crypto/tls"
	"fmt"
	"log"

	"gopkg.in/gomail.v2"

	"github.com/casapps/hookrelay/src/internal/models"
)

// Config mirrors the email.* keys the teacher's mailer read from viper,
// narrowed to what an escalation notice needs.
type Config struct {
	Enabled    bool
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	To         []string
	SkipVerify bool
}

// Notifier sends escalation alerts. A Notifier with Enabled=false (or a
// nil *Notifier) is a no-op, so callers never need to branch on whether
// alerting is configured.
type Notifier struct {
	cfg    Config
	dialer *gomail.Dialer
}

// New builds a Notifier from cfg. Safe to call even when cfg.Enabled is
// false; the dialer is simply never used.
func New(cfg Config) *Notifier {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if cfg.SkipVerify {
		dialer.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Notifier{cfg: cfg, dialer: dialer}
}

// Escalate sends a best-effort notification for an ESCALATE decision on
// event/webhook. Failures are logged, never returned: an alert-delivery
// problem must not affect event processing (spec §4.7 step 7.d treats
// this hook as out of the core retry/classification loop).
func (n *Notifier) Escalate(event *models.Event, webhook *models.Webhook, classification *models.ErrorClassification) {
	if n == nil || !n.cfg.Enabled || len(n.cfg.To) == 0 {
		return
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", n.cfg.To...)
	m.SetHeader("X-Mailer", "hookrelay-alerting")
	m.SetHeader("X-Priority", "1")
	m.SetHeader("Subject", fmt.Sprintf("[hookrelay] webhook %s escalated", webhook.ID))
	m.SetBody("text/plain", fmt.Sprintf(
		"Webhook %s has been escalated for manual review.\n\n"+
			"Event:           %s\n"+
			"HTTP status:     %d\n"+
			"Error message:   %s\n"+
			"Explanation:     %s\n"+
			"Consecutive failures: %d\n"+
			"Circuit state:   %s\n",
		webhook.ID, event.ID, classification.StatusCode, classification.ErrorMessage,
		classification.Explanation, webhook.ConsecutiveFailures, webhook.CircuitState,
	))

	if err := n.dialer.DialAndSend(m); err != nil {
		log.Printf("alerting: failed to send escalation email for webhook %s: %v", webhook.ID, err)
	}
}
