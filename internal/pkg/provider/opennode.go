package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/ManuelReschke/PayoutFox/app/models"
	"github.com/ManuelReschke/PayoutFox/internal/pkg/config"
)

const (
	withdrawalsPath  = "/v2/withdrawals"
	maxErrorBodyLen  = 500
	maxResponseBytes = 1 << 20
)

// OpenNodeClient talks to the OpenNode withdrawals API.
type OpenNodeClient struct {
	APIKey  string
	BaseURL string

	HTTPClient *http.Client
	Limiter    *rate.Limiter
}

type openNodeWithdrawalRequest struct {
	Type        string `json:"type"`
	Address     string `json:"address"`
	Amount      int64  `json:"amount"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type openNodeWithdrawalResponse struct {
	Data models.OpenNodeWithdrawalSnapshot `json:"data"`
}

// NewOpenNodeClient builds a client that issues at most rps requests per
// second, with bursts of one.
func NewOpenNodeClient(apiKey, baseURL string, timeout time.Duration, rps float64) *OpenNodeClient {
	if baseURL == "" {
		baseURL = config.DefaultProviderBaseURL
	}
	if timeout <= 0 {
		timeout = config.DefaultHTTPTimeout
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &OpenNodeClient{
		APIKey:     apiKey,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
		Limiter:    rate.NewLimiter(limit, 1),
	}
}

// New returns the live OpenNode client when an API key is configured and
// the mock client otherwise.
func New(cfg config.Settlement) Client {
	if cfg.ProviderMode() == config.ProviderModeMock {
		return NewMockClient()
	}
	return NewOpenNodeClient(cfg.ProviderAPIKey, cfg.ProviderBaseURL, cfg.HTTPTimeout, cfg.ProviderRPS)
}

func (c *OpenNodeClient) Name() string { return models.PayoutProviderOpenNode }

func (c *OpenNodeClient) Withdraw(ctx context.Context, req WithdrawalRequest) (*WithdrawalResult, error) {
	sats, err := SatsFromMsat(req.AmountMsat)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Invoice) == "" {
		return nil, errors.New("withdrawal invoice is required")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, errors.New("OPENNODE_API_KEY is not configured")
	}

	payload, err := json.Marshal(openNodeWithdrawalRequest{
		Type:        "ln",
		Address:     req.Invoice,
		Amount:      sats,
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		return nil, err
	}

	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("provider rate limiter: %w", err)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+withdrawalsPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", c.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: config.DefaultHTTPTimeout}
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), maxErrorBodyLen)}
	}

	var out openNodeWithdrawalResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if strings.TrimSpace(out.Data.ID) == "" {
		return nil, ErrMissingWithdrawalID
	}

	return &WithdrawalResult{
		WithdrawalID: out.Data.ID,
		Status:       out.Data.Status,
		FeeSats:      out.Data.Fee,
		Meta:         models.NewOpenNodeMeta(out.Data),
	}, nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
