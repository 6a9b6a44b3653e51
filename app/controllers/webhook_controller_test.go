package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PayoutFox/app/models"
	"github.com/ManuelReschke/PayoutFox/app/repository"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/config"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/database"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/webhook"
)

const testAPIKey = "controller-test-key"

func newTestRepos(t *testing.T) *repository.Repositories {
	t.Helper()
	db, err := database.OpenSQLite(database.MemoryDSN(t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return repository.NewRepositories(db)
}

func newWebhookApp(apiKey string, repos *repository.Repositories) *fiber.App {
	app := fiber.New()
	wc := NewWebhookController(webhook.NewReceiver(apiKey, repos, counter.NewRecorder(nil)))
	app.Post("/webhooks/opennode/withdrawals", wc.HandleOpenNodeWithdrawal)
	return app
}

func postForm(t *testing.T, app *fiber.App, form url.Values) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest("POST", "/webhooks/opennode/withdrawals", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	return resp.StatusCode, body
}

func signed(id, status string) url.Values {
	return url.Values{
		"id":           {id},
		"status":       {status},
		"hashed_order": {webhook.ComputeSignature(testAPIKey, id)},
	}
}

func TestWebhookResponseCodes(t *testing.T) {
	repos := newTestRepos(t)
	wid := "wd_ctrl"
	p := &models.Payout{
		PurchaseID:           1,
		DeveloperUserID:      1,
		DestinationAddress:   "dev@getalby.com",
		AmountMsat:           1_000_000,
		Status:               models.PayoutStatusSubmitted,
		IdempotencyKey:       uuid.NewString(),
		ProviderWithdrawalID: &wid,
	}
	require.NoError(t, repos.Payout.Create(context.Background(), p))
	app := newWebhookApp(testAPIKey, repos)

	code, body := postForm(t, app, url.Values{"id": {wid}})
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, "invalid_payload", body["error"])

	tampered := signed(wid, "confirmed")
	tampered.Set("hashed_order", webhook.ComputeSignature("other", wid))
	code, body = postForm(t, app, tampered)
	assert.Equal(t, fiber.StatusUnauthorized, code)
	assert.Equal(t, "invalid_signature", body["error"])

	code, body = postForm(t, app, signed("wd_unknown", "confirmed"))
	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, webhook.OutcomeLookupMiss, body["outcome"])

	code, body = postForm(t, app, signed(wid, "confirmed"))
	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, webhook.OutcomeSent, body["outcome"])

	got, err := repos.Payout.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusSent, got.Status)
}

func TestWebhookReadsOnlyFormBodies(t *testing.T) {
	repos := newTestRepos(t)
	app := newWebhookApp(testAPIKey, repos)

	form := signed("wd_json", "failed")
	form.Set("error", "route not found & no retry")
	payload, err := json.Marshal(map[string]string{
		"id":           form.Get("id"),
		"status":       form.Get("status"),
		"hashed_order": form.Get("hashed_order"),
	})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/webhooks/opennode/withdrawals", strings.NewReader(string(payload)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	// Escaped form values still decode into a valid notification.
	code, body := postForm(t, app, form)
	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, webhook.OutcomeLookupMiss, body["outcome"])
}

func TestWebhookNotConfigured(t *testing.T) {
	app := newWebhookApp("", newTestRepos(t))

	code, body := postForm(t, app, signed("wd_1", "confirmed"))
	assert.Equal(t, fiber.StatusServiceUnavailable, code)
	assert.Equal(t, "provider_not_configured", body["error"])
}

func TestReadiness(t *testing.T) {
	repos := newTestRepos(t)

	tests := []struct {
		name     string
		cfg      config.Settlement
		code     int
		mode     string
		nReasons int
	}{
		{name: "mock", cfg: config.Settlement{}, code: fiber.StatusServiceUnavailable, mode: config.ProviderModeMock, nReasons: 1},
		{name: "bad callback", cfg: config.Settlement{ProviderAPIKey: "k", CallbackURL: "ftp://x.example.com/cb"}, code: fiber.StatusServiceUnavailable, mode: config.ProviderModeLive, nReasons: 1},
		{name: "ready", cfg: config.Settlement{ProviderAPIKey: "k", CallbackURL: "https://x.example.com/cb"}, code: fiber.StatusOK, mode: config.ProviderModeLive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/health/payouts", NewHealthController(tt.cfg, repos, counter.NewRecorder(nil)).HandleReadiness)

			resp, err := app.Test(httptest.NewRequest("GET", "/health/payouts", nil))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.code, resp.StatusCode)

			var body struct {
				Ready        bool             `json:"ready"`
				ProviderMode string           `json:"provider_mode"`
				Reasons      []string         `json:"reasons"`
				Payouts      map[string]int64 `json:"payouts"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.code == fiber.StatusOK, body.Ready)
			assert.Equal(t, tt.mode, body.ProviderMode)
			assert.Len(t, body.Reasons, tt.nReasons)
			assert.NotNil(t, body.Payouts)
		})
	}
}
