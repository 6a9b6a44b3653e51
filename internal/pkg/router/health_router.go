package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/PayoutFox/app/controllers"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/constants"
)

type HealthRouter struct {
	controller *controllers.HealthController
}

func NewHealthRouter(controller *controllers.HealthController) *HealthRouter {
	return &HealthRouter{controller: controller}
}

func (h HealthRouter) InstallRouter(app *fiber.App) {
	app.Get(constants.PayoutReadinessRoute, h.controller.HandleReadiness)
}
