package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PayoutFox/app/repository"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/config"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/metrics/counter"
)

// HealthController reports payout readiness.
type HealthController struct {
	settlement config.Settlement
	repos      *repository.Repositories
	counters   *counter.Recorder
}

func NewHealthController(settlement config.Settlement, repos *repository.Repositories, counters *counter.Recorder) *HealthController {
	return &HealthController{settlement: settlement, repos: repos, counters: counters}
}

// HandleReadiness answers 200 when the provider is configured and 503
// otherwise. Payout counts and triage counters are included when available.
func (h *HealthController) HandleReadiness(c *fiber.Ctx) error {
	readiness := h.settlement.Readiness()
	body := fiber.Map{
		"ready":         readiness.Ready,
		"provider_mode": readiness.ProviderMode,
		"reasons":       readiness.Reasons,
	}
	if readiness.Reasons == nil {
		body["reasons"] = []string{}
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	if h.repos != nil {
		counts, err := h.repos.Payout.CountByStatus(ctx)
		if err != nil {
			log.Warnf("[Health] Could not count payouts: %v", err)
		} else {
			body["payouts"] = counts
		}
	}
	if h.counters.Enabled() {
		triage, err := h.counters.Snapshot(ctx)
		if err != nil {
			log.Warnf("[Health] Could not read triage counters: %v", err)
		} else {
			body["triage"] = triage
		}
	}

	status := fiber.StatusOK
	if !readiness.Ready {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(body)
}
