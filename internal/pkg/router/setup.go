package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PayoutFox/app/controllers"
)

// Router installs a group of routes.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Deps carries the controllers and shared middleware storage.
type Deps struct {
	Webhook *controllers.WebhookController
	Health  *controllers.HealthController
	// LimiterStorage backs the webhook rate limiter. Nil keeps the limiter
	// in process memory.
	LimiterStorage fiber.Storage
}

func InstallRouter(app *fiber.App, deps Deps) {
	setup(app, NewHealthRouter(deps.Health), NewWebhookRouter(deps.Webhook, deps.LimiterStorage))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
