package constants

// Route constants
const (
	OpenNodeWithdrawalWebhookRoute = "/webhooks/opennode/withdrawals"
	PayoutReadinessRoute           = "/health/payouts"
	// Swagger UI base path and the doc path below it
	DocsBasePath = "/docs/api/"
	DocsPath     = "v1"
	// OpenAPI document, relative to the project root
	OpenAPIFile = "public/docs/v1/openapi.yml"
)
