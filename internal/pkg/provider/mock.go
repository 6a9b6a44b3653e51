package provider

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ManuelReschke/PayoutFox/app/models"
)

// MockClient accepts every withdrawal without contacting anyone. It is used
// when no provider API key is configured and in tests.
type MockClient struct {
	// Err, when set, is returned from every Withdraw call.
	Err error

	mu    sync.Mutex
	calls []WithdrawalRequest
}

// NewMockClient returns a MockClient that always succeeds.
func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Name() string { return models.PayoutProviderMock }

func (m *MockClient) Withdraw(ctx context.Context, req WithdrawalRequest) (*WithdrawalResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	sats, err := SatsFromMsat(req.AmountMsat)
	if err != nil {
		return nil, err
	}

	id := "mock_" + uuid.NewString()
	return &WithdrawalResult{
		WithdrawalID: id,
		Status:       "pending",
		Meta: models.NewMockMeta(models.MockWithdrawalSnapshot{
			ID:         id,
			AmountSats: sats,
			Invoice:    req.Invoice,
		}),
	}, nil
}

// Calls returns a copy of the requests received so far.
func (m *MockClient) Calls() []WithdrawalRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]WithdrawalRequest, len(m.calls))
	copy(out, m.calls)
	return out
}
