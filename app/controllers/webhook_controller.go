package controllers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PayoutFox/internal/pkg/webhook"
)

const webhookTimeout = 15 * time.Second

// WebhookController serves provider withdrawal callbacks.
type WebhookController struct {
	receiver *webhook.Receiver
}

func NewWebhookController(receiver *webhook.Receiver) *WebhookController {
	return &WebhookController{receiver: receiver}
}

// HandleOpenNodeWithdrawal applies a form-encoded OpenNode withdrawal
// notification. Unknown withdrawals and statuses are acknowledged with 200
// so the provider stops redelivering.
func (wc *WebhookController) HandleOpenNodeWithdrawal(c *fiber.Ctx) error {
	if !wc.receiver.Configured() {
		log.Warn("[Webhook] OpenNode withdrawal webhook received but OPENNODE_API_KEY is not configured")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "provider_not_configured"})
	}

	values := formValues(c)

	ctx, cancel := context.WithTimeout(c.UserContext(), webhookTimeout)
	defer cancel()

	res, err := wc.receiver.Receive(ctx, values)
	if err != nil {
		log.Errorw("[Webhook] Withdrawal webhook processing failed",
			"withdrawal_id", values.Get("id"),
			"status", values.Get("status"),
			"event_id", res.EventID,
			"error", err,
		)
	}
	if res.CounterErr != nil {
		log.Warnf("[Webhook] Could not update triage counters: %v", res.CounterErr)
	}
	if len(res.Flags) > 0 {
		log.Warnw("[Webhook] Withdrawal webhook needs triage",
			"withdrawal_id", values.Get("id"),
			"outcome", res.Outcome,
			"flags", strings.Join(res.Flags, ","),
			"event_id", res.EventID,
		)
	}

	switch res.StatusCode {
	case http.StatusOK:
		var payoutID uint
		if res.PayoutID != nil {
			payoutID = *res.PayoutID
		}
		log.Infow("[Webhook] Withdrawal webhook applied",
			"withdrawal_id", values.Get("id"),
			"outcome", res.Outcome,
			"payout_id", payoutID,
		)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "outcome": res.Outcome})
	case http.StatusBadRequest:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload", "detail": res.Detail})
	case http.StatusUnauthorized:
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	case http.StatusServiceUnavailable:
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "provider_not_configured"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_processing_failed"})
	}
}

// formValues copies the parsed form body. Bodies that are not
// application/x-www-form-urlencoded yield no values.
func formValues(c *fiber.Ctx) url.Values {
	values := url.Values{}
	c.Request().PostArgs().VisitAll(func(key, value []byte) {
		values.Add(string(key), string(value))
	})
	return values
}
