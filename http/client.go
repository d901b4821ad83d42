package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"

	dcvx "github.com/dcentralverse/dcvx-go"
	"github.com/dcentralverse/dcvx-go/retry"
)

// Client talks to an exchange API server. Settlement submissions are
// sent exactly once; only idempotent reads are retried.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Backoff    retry.Backoff
}

// NewClient creates a client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Backoff:    retry.DefaultBackoff,
	}
}

// Settle submits a signed order for settlement, choosing the endpoint
// by order kind. Failures carry the engine's sentinel errors, so callers
// can branch with errors.Is.
func (c *Client) Settle(ctx context.Context, caller common.Address, value *big.Int, order dcvx.SignedOrder) error {
	var path string
	switch order.Kind {
	case dcvx.OrderKindSale:
		path = "/v1/orders/sale"
	case dcvx.OrderKindSaleWithRoyalty:
		path = "/v1/orders/sale-with-royalty"
	case dcvx.OrderKindOffer:
		path = "/v1/orders/offer/accept"
	default:
		return fmt.Errorf("unknown order kind %q", order.Kind)
	}

	req := SettleRequest{Caller: caller, Value: value, Order: order}
	var resp SettleResponse
	return c.post(ctx, path, req, &resp)
}

// CancelNonce pre-emptively invalidates one of the caller's nonces.
func (c *Client) CancelNonce(ctx context.Context, caller common.Address, nonce *big.Int) error {
	req := CancelNonceRequest{Caller: caller, Nonce: nonce}
	return c.post(ctx, "/v1/nonces/cancel", req, nil)
}

// UpdateConfiguration overwrites the engine configuration. Owner-only.
func (c *Client) UpdateConfiguration(ctx context.Context, caller common.Address, cfg dcvx.Config) error {
	req := UpdateConfigurationRequest{Caller: caller, Config: cfg}
	return c.post(ctx, "/v1/config", req, nil)
}

// Config reads the current engine configuration. Retried on transport
// failure.
func (c *Client) Config(ctx context.Context) (dcvx.Config, error) {
	return retry.Do(ctx, c.Backoff, isTransportError, func() (dcvx.Config, error) {
		var cfg dcvx.Config
		err := c.get(ctx, "/v1/config", &cfg)
		return cfg, err
	})
}

// NonceUsed reports whether a (signer, nonce) pair is spent. Retried on
// transport failure.
func (c *Client) NonceUsed(ctx context.Context, signer common.Address, nonce *big.Int) (bool, error) {
	path := fmt.Sprintf("/v1/nonces/%s/%s", signer.Hex(), nonce)
	resp, err := retry.Do(ctx, c.Backoff, isTransportError, func() (NonceStatusResponse, error) {
		var r NonceStatusResponse
		err := c.get(ctx, path, &r)
		return r, err
	})
	if err != nil {
		return false, err
	}
	return resp.Used, nil
}

// RoyaltyQuote returns the royalty recipient and amount for a token at
// a price. Retried on transport failure.
func (c *Client) RoyaltyQuote(ctx context.Context, collection common.Address, tokenID, price *big.Int) (common.Address, *big.Int, error) {
	path := fmt.Sprintf("/v1/royalties/%s/%s?price=%s",
		collection.Hex(), tokenID, url.QueryEscape(price.String()))
	resp, err := retry.Do(ctx, c.Backoff, isTransportError, func() (RoyaltyQuoteResponse, error) {
		var r RoyaltyQuoteResponse
		err := c.get(ctx, path, &r)
		return r, err
	})
	if err != nil {
		return common.Address{}, nil, err
	}
	return resp.Recipient, resp.Amount, nil
}

// transportError marks failures before an HTTP response was decoded.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func isTransportError(err error) bool {
	_, ok := err.(*transportError)
	return ok
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return &transportError{err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &transportError{err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr ErrorResponse
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Code != "" {
			return fmt.Errorf("%w: %s", errorForCode(apiErr.Code), apiErr.Error)
		}
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// errorForCode maps a wire signal name back to the engine sentinel.
func errorForCode(code string) error {
	switch code {
	case "InvalidSignature":
		return dcvx.ErrInvalidSignature
	case "NonceUsed":
		return dcvx.ErrNonceUsed
	case "OfferExpired":
		return dcvx.ErrOfferExpired
	case "InvalidCaller":
		return dcvx.ErrInvalidCaller
	case "Ownable":
		return dcvx.ErrNotOwner
	case "UnsufficientCurrencySupplied":
		return dcvx.ErrUnsufficientCurrencySupplied
	case "FeeOverTheLimit":
		return dcvx.ErrFeeOverTheLimit
	case "InvalidAddress":
		return dcvx.ErrInvalidAddress
	case "UnauthorizedRoyaltyChange":
		return dcvx.ErrUnauthorizedRoyaltyChange
	default:
		return fmt.Errorf("settlement failed (%s)", code)
	}
}
