package lnurl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	server  *httptest.Server
	params  map[string]interface{}
	invoice map[string]interface{}

	mu        sync.Mutex
	lastQuery url.Values
}

func (fs *fakeService) callbackQuery() url.Values {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.lastQuery
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()
	fs := &fakeService{}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/lnurlp/alice", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(fs.params)
	})
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.lastQuery = r.URL.Query()
		fs.mu.Unlock()
		_ = json.NewEncoder(w).Encode(fs.invoice)
	})
	fs.server = httptest.NewServer(mux)
	t.Cleanup(fs.server.Close)

	fs.params = map[string]interface{}{
		"callback":       fs.server.URL + "/callback?id=abc",
		"minSendable":    1000,
		"maxSendable":    100_000_000,
		"metadata":       `[["text/plain","alice"]]`,
		"tag":            "payRequest",
		"commentAllowed": 5,
	}
	fs.invoice = map[string]interface{}{"pr": "lnbc50u1fakeinvoice", "routes": []string{}}
	return fs
}

func (fs *fakeService) address() string {
	return "alice@" + strings.TrimPrefix(fs.server.URL, "http://")
}

func newTestResolver(fs *fakeService) *Resolver {
	return &Resolver{HTTPClient: fs.server.Client(), Scheme: "http"}
}

func TestResolveReturnsInvoiceForExactAmount(t *testing.T) {
	fs := newFakeService(t)

	pr, err := newTestResolver(fs).Resolve(context.Background(), fs.address(), 5_000_000, "thanks for the game")
	require.NoError(t, err)
	assert.Equal(t, "lnbc50u1fakeinvoice", pr)

	q := fs.callbackQuery()
	require.NotNil(t, q)
	assert.Equal(t, "5000000", q.Get("amount"))
	assert.Equal(t, "abc", q.Get("id"))
	assert.Equal(t, "thank", q.Get("comment"))
}

func TestResolveOmitsCommentWhenNotAllowed(t *testing.T) {
	fs := newFakeService(t)
	delete(fs.params, "commentAllowed")

	_, err := newTestResolver(fs).Resolve(context.Background(), fs.address(), 5_000_000, "hello")
	require.NoError(t, err)
	assert.False(t, fs.callbackQuery().Has("comment"))
}

func TestResolveValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(fs *fakeService)
		amount int64
		reason string
	}{
		{
			name:   "inverted bounds",
			mutate: func(fs *fakeService) {
				fs.params["minSendable"] = 10_000
				fs.params["maxSendable"] = 1000
			},
			amount: 5000,
			reason: ReasonInvalidBounds,
		},
		{
			name:   "amount above max",
			mutate: func(fs *fakeService) {},
			amount: 200_000_000,
			reason: ReasonAmountOutOfBounds,
		},
		{
			name:   "non http callback",
			mutate: func(fs *fakeService) { fs.params["callback"] = "ftp://example.com/cb" },
			amount: 5_000_000,
			reason: ReasonUnsupportedProto,
		},
		{
			name:   "wrong tag",
			mutate: func(fs *fakeService) { fs.params["tag"] = "withdrawRequest" },
			amount: 5_000_000,
			reason: ReasonUnsupportedTag,
		},
		{
			name:   "service error",
			mutate: func(fs *fakeService) { fs.params = map[string]interface{}{"status": "ERROR", "reason": "unknown user"} },
			amount: 5_000_000,
			reason: ReasonInvalidResponse,
		},
		{
			name:   "callback error",
			mutate: func(fs *fakeService) { fs.invoice = map[string]interface{}{"status": "ERROR", "reason": "no liquidity"} },
			amount: 5_000_000,
			reason: ReasonInvalidResponse,
		},
		{
			name:   "missing invoice",
			mutate: func(fs *fakeService) { fs.invoice = map[string]interface{}{"routes": []string{}} },
			amount: 5_000_000,
			reason: ReasonMissingInvoice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFakeService(t)
			tt.mutate(fs)

			_, err := newTestResolver(fs).Resolve(context.Background(), fs.address(), tt.amount, "")
			require.Error(t, err)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.reason, ve.Reason)
			assert.False(t, ve.Retryable())
		})
	}
}

func TestResolveServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	r := &Resolver{HTTPClient: server.Client(), Scheme: "http"}
	_, err := r.Resolve(context.Background(), "alice@"+strings.TrimPrefix(server.URL, "http://"), 5_000_000, "")
	require.Error(t, err)
	assert.False(t, IsValidation(err))
	assert.Contains(t, err.Error(), "status=502")
}

func TestParseAddress(t *testing.T) {
	user, domain, err := ParseAddress("  Alice@GetAlby.com ")
	require.NoError(t, err)
	assert.Equal(t, "alice", user)
	assert.Equal(t, "getalby.com", domain)

	for _, bad := range []string{"", "alice", "@getalby.com", "alice@", "al ice@x.com", "alice@x.com/path"} {
		_, _, err := ParseAddress(bad)
		assert.True(t, IsValidation(err), bad)
	}
}

func TestWellKnownURL(t *testing.T) {
	r := NewResolver(0)

	u, err := r.WellKnownURL("bob@getalby.com")
	require.NoError(t, err)
	assert.Equal(t, "https://getalby.com/.well-known/lnurlp/bob", u)

	u, err = r.WellKnownURL("bob@exampleonionaddress.onion")
	require.NoError(t, err)
	assert.Equal(t, "http://exampleonionaddress.onion/.well-known/lnurlp/bob", u)
}

func TestResolveRejectsNonPositiveAmount(t *testing.T) {
	_, err := NewResolver(0).Resolve(context.Background(), "bob@getalby.com", 0, "")
	assert.True(t, IsValidation(err))
}
