package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/PayoutFox/app/controllers"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/constants"
)

const (
	webhookRateLimit  = 120
	webhookRateWindow = time.Minute
)

type WebhookRouter struct {
	controller *controllers.WebhookController
	storage    fiber.Storage
}

func NewWebhookRouter(controller *controllers.WebhookController, storage fiber.Storage) *WebhookRouter {
	return &WebhookRouter{controller: controller, storage: storage}
}

func (w WebhookRouter) InstallRouter(app *fiber.App) {
	cfg := limiter.Config{
		Max:        webhookRateLimit,
		Expiration: webhookRateWindow,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited"})
		},
	}
	if w.storage != nil {
		cfg.Storage = w.storage
	}
	app.Post(constants.OpenNodeWithdrawalWebhookRoute, limiter.New(cfg), w.controller.HandleOpenNodeWithdrawal)
}
