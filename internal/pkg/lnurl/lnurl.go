// Package lnurl resolves Lightning addresses (LUD-16) into BOLT11 invoices
// using the LNURL-pay flow.
package lnurl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	ReasonInvalidAddress    = "Invalid lightning address"
	ReasonInvalidResponse   = "Invalid pay service response"
	ReasonUnsupportedTag    = "Unsupported LNURL tag"
	ReasonInvalidBounds     = "Invalid sendable bounds"
	ReasonAmountOutOfBounds = "Amount outside sendable bounds"
	ReasonUnsupportedProto  = "Unsupported URL protocol"
	ReasonMissingInvoice    = "Missing invoice in callback response"

	defaultTimeout   = 15 * time.Second
	maxResponseBytes = 1 << 20
	payRequestTag    = "payRequest"
	statusError      = "ERROR"
	wellKnownPath    = "/.well-known/lnurlp/"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9\-_.+]+$`)

// ValidationError is a resolution failure that retrying will not fix.
type ValidationError struct {
	Reason string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Reason
	}
	return e.Reason + ": " + e.Detail
}

// Retryable is always false for validation failures.
func (e *ValidationError) Retryable() bool { return false }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func invalid(reason, detail string) error {
	return &ValidationError{Reason: reason, Detail: detail}
}

// Resolver fetches pay parameters and invoices over HTTP.
type Resolver struct {
	HTTPClient *http.Client
	// Scheme overrides the URL scheme of the well-known lookup. Empty means
	// https, or http for .onion domains.
	Scheme string
}

// NewResolver returns a Resolver whose HTTP calls time out after timeout.
func NewResolver(timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Resolver{
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type payParams struct {
	Callback       string `json:"callback"`
	MinSendable    int64  `json:"minSendable"`
	MaxSendable    int64  `json:"maxSendable"`
	Metadata       string `json:"metadata"`
	Tag            string `json:"tag"`
	CommentAllowed int    `json:"commentAllowed"`
	Status         string `json:"status"`
	Reason         string `json:"reason"`
}

type invoiceResponse struct {
	PR     string `json:"pr"`
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// ParseAddress splits a user@domain address into its lower-cased parts.
func ParseAddress(address string) (user, domain string, err error) {
	address = strings.ToLower(strings.TrimSpace(address))
	at := strings.LastIndex(address, "@")
	if at <= 0 || at == len(address)-1 {
		return "", "", invalid(ReasonInvalidAddress, address)
	}
	user, domain = address[:at], address[at+1:]
	if !usernamePattern.MatchString(user) || strings.ContainsAny(domain, "/?#@ ") {
		return "", "", invalid(ReasonInvalidAddress, address)
	}
	return user, domain, nil
}

// WellKnownURL returns the LUD-16 pay endpoint for an address.
func (r *Resolver) WellKnownURL(address string) (string, error) {
	user, domain, err := ParseAddress(address)
	if err != nil {
		return "", err
	}
	scheme := r.Scheme
	if scheme == "" {
		scheme = "https"
		host := domain
		if i := strings.LastIndex(host, ":"); i > 0 {
			host = host[:i]
		}
		if strings.HasSuffix(host, ".onion") {
			scheme = "http"
		}
	}
	return scheme + "://" + domain + wellKnownPath + user, nil
}

// Resolve turns a Lightning address into an invoice for exactly amountMsat.
// The comment is only sent when the service allows comments and is cut to
// the advertised length.
func (r *Resolver) Resolve(ctx context.Context, address string, amountMsat int64, comment string) (string, error) {
	if amountMsat <= 0 {
		return "", invalid(ReasonAmountOutOfBounds, strconv.FormatInt(amountMsat, 10))
	}
	endpoint, err := r.WellKnownURL(address)
	if err != nil {
		return "", err
	}

	var params payParams
	if err := r.getJSON(ctx, endpoint, &params); err != nil {
		return "", err
	}
	if strings.EqualFold(params.Status, statusError) {
		return "", invalid(ReasonInvalidResponse, params.Reason)
	}
	if params.Tag != payRequestTag {
		return "", invalid(ReasonUnsupportedTag, params.Tag)
	}
	if params.MinSendable > params.MaxSendable {
		return "", invalid(ReasonInvalidBounds, fmt.Sprintf("min=%d max=%d", params.MinSendable, params.MaxSendable))
	}
	if amountMsat < params.MinSendable || amountMsat > params.MaxSendable {
		return "", invalid(ReasonAmountOutOfBounds, fmt.Sprintf("amount=%d min=%d max=%d", amountMsat, params.MinSendable, params.MaxSendable))
	}

	callback, err := url.Parse(strings.TrimSpace(params.Callback))
	if err != nil || callback.Host == "" {
		return "", invalid(ReasonInvalidResponse, "callback url")
	}
	if callback.Scheme != "http" && callback.Scheme != "https" {
		return "", invalid(ReasonUnsupportedProto, callback.Scheme)
	}

	q := callback.Query()
	q.Set("amount", strconv.FormatInt(amountMsat, 10))
	if c := truncateComment(strings.TrimSpace(comment), params.CommentAllowed); c != "" {
		q.Set("comment", c)
	}
	callback.RawQuery = q.Encode()

	var inv invoiceResponse
	if err := r.getJSON(ctx, callback.String(), &inv); err != nil {
		return "", err
	}
	if strings.EqualFold(inv.Status, statusError) {
		return "", invalid(ReasonInvalidResponse, inv.Reason)
	}
	pr := strings.TrimSpace(inv.PR)
	if pr == "" {
		return "", invalid(ReasonMissingInvoice, "")
	}
	return pr, nil
}

func truncateComment(comment string, allowed int) string {
	if allowed <= 0 || comment == "" {
		return ""
	}
	if utf8.RuneCountInString(comment) <= allowed {
		return comment
	}
	return string([]rune(comment)[:allowed])
}

// getJSON returns plain errors for transport and status failures, which
// callers treat as transient, and a ValidationError for undecodable bodies.
func (r *Resolver) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return invalid(ReasonInvalidAddress, err.Error())
	}
	req.Header.Set("Accept", "application/json")

	client := r.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("lnurl request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("lnurl request failed: status=%d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return invalid(ReasonInvalidResponse, err.Error())
	}
	return nil
}
