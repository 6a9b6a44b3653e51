package models

// Provider names stored on Payout.Provider and ProviderMeta.Kind.
const (
	PayoutProviderOpenNode = "opennode"
	PayoutProviderMock     = "mock"
)

// ProviderMeta is the provider response snapshot kept on a payout. Exactly
// one variant is set and Kind names it.
type ProviderMeta struct {
	Kind     string                      `json:"kind,omitempty"`
	OpenNode *OpenNodeWithdrawalSnapshot `json:"opennode,omitempty"`
	Mock     *MockWithdrawalSnapshot     `json:"mock,omitempty"`
}

// OpenNodeWithdrawalSnapshot mirrors the data object of an OpenNode
// withdrawal response.
type OpenNodeWithdrawalSnapshot struct {
	ID          string `json:"id"`
	Type        string `json:"type,omitempty"`
	Amount      int64  `json:"amount"`
	Fee         int64  `json:"fee"`
	Status      string `json:"status,omitempty"`
	Reference   string `json:"reference,omitempty"`
	ProcessedAt int64  `json:"processed_at,omitempty"`
}

// MockWithdrawalSnapshot is recorded when no provider API key is configured.
type MockWithdrawalSnapshot struct {
	ID         string `json:"id"`
	AmountSats int64  `json:"amount_sats"`
	Invoice    string `json:"invoice"`
}

// NewOpenNodeMeta wraps an OpenNode snapshot.
func NewOpenNodeMeta(s OpenNodeWithdrawalSnapshot) ProviderMeta {
	return ProviderMeta{Kind: PayoutProviderOpenNode, OpenNode: &s}
}

// NewMockMeta wraps a mock snapshot.
func NewMockMeta(s MockWithdrawalSnapshot) ProviderMeta {
	return ProviderMeta{Kind: PayoutProviderMock, Mock: &s}
}

// Valid reports whether Kind matches exactly one populated variant.
func (m ProviderMeta) Valid() bool {
	switch m.Kind {
	case PayoutProviderOpenNode:
		return m.OpenNode != nil && m.Mock == nil
	case PayoutProviderMock:
		return m.Mock != nil && m.OpenNode == nil
	case "":
		return m.OpenNode == nil && m.Mock == nil
	default:
		return false
	}
}
