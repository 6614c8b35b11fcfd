// Package custody talks to the external custody service that holds the
// treasury wallets and performs signing and broadcast. The service is opaque:
// this client submits logical transaction requests and polls opaque handles;
// it never touches key material.
package custody

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	clierr "github.com/ssandoval/treasury-cli/internal/errors"
	"github.com/ssandoval/treasury-cli/internal/httpx"
	"github.com/ssandoval/treasury-cli/internal/id"
	"github.com/ssandoval/treasury-cli/internal/model"
)

type Client struct {
	http    *httpx.Client
	baseURL string
	apiKey  string
	now     func() time.Time
}

func New(httpClient *httpx.Client, baseURL, apiKey string) *Client {
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		now:     time.Now,
	}
}

type balancesResponse struct {
	Balances []struct {
		ChainID  string `json:"chain_id"`
		Asset    string `json:"asset"`
		Amount   string `json:"amount"`
		Decimals int    `json:"decimals"`
	} `json:"balances"`
}

// Balances returns the current token balances of one treasury wallet. Upstream
// unavailability is reported as a distinct balance-unavailable error so
// callers treat it as a planning failure rather than retrying silently.
func (c *Client) Balances(ctx context.Context, walletRef string) ([]model.WalletBalance, error) {
	ref := strings.TrimSpace(walletRef)
	if ref == "" {
		return nil, clierr.New(clierr.CodeUsage, "wallet reference is required")
	}

	var resp balancesResponse
	endpoint := fmt.Sprintf("%s/v1/wallets/%s/balances", c.baseURL, url.PathEscape(ref))
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodGet, endpoint, nil, c.headers(), &resp); err != nil {
		return nil, clierr.Wrap(clierr.CodeBalanceUnavailable, fmt.Sprintf("read balances for wallet %s", ref), err)
	}

	out := make([]model.WalletBalance, 0, len(resp.Balances))
	for _, b := range resp.Balances {
		amount, err := id.ParseBaseUnits(b.Amount)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeBalanceUnavailable, fmt.Sprintf("custody returned malformed %s balance", b.Asset), err)
		}
		if b.ChainID == "" || b.Asset == "" {
			return nil, clierr.New(clierr.CodeBalanceUnavailable, "custody returned balance entry without chain or asset")
		}
		out = append(out, model.WalletBalance{
			ChainID:         b.ChainID,
			Asset:           b.Asset,
			AmountBaseUnits: amount.String(),
			AmountDecimal:   id.FormatBaseUnits(amount, b.Decimals),
			Decimals:        b.Decimals,
		})
	}
	return out, nil
}

// SubmitRequest is one logical monetary operation handed to the custody
// service for signing and broadcast.
type SubmitRequest struct {
	SourceWallet string         `json:"source_wallet"`
	ChainID      string         `json:"chain_id"`
	Kind         model.StepKind `json:"kind"`

	// transfer
	Recipient string `json:"recipient,omitempty"`

	Asset           string `json:"asset"`
	AmountBaseUnits string `json:"amount_base_units"`

	// swap
	PoolRef           string `json:"pool_ref,omitempty"`
	MaxInputBaseUnits string `json:"max_input_base_units,omitempty"`

	// bridge
	RouteRef    string `json:"route_ref,omitempty"`
	DestChainID string `json:"dest_chain_id,omitempty"`
}

type submitResponse struct {
	RequestID string `json:"request_id"`
}

// Submit hands one request to the custody service and returns its opaque
// handle. Malformed requests fail fast before any network call. The custody
// service enforces per-wallet transaction ordering, so submissions against the
// same source wallet are serialized process-wide.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if err := validateSubmitRequest(req); err != nil {
		return "", err
	}

	unlock := acquireWalletLock(req.SourceWallet)
	defer unlock()

	body, err := marshalJSON(req)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeInternal, "marshal submit request", err)
	}
	// The POST is sent exactly once. A transient failure can arrive after the
	// custody service already accepted and broadcast the transaction; a
	// transport-level retry would resubmit the same monetary operation.
	var resp submitResponse
	if _, err := httpx.DoBodyJSON(ctx, c.http.Once(), http.MethodPost, c.baseURL+"/v1/transactions", body, c.headers(), &resp); err != nil {
		if clierr.HasCode(err, clierr.CodeUnsupported) {
			// 4xx from the signer means the request itself was rejected.
			return "", clierr.Wrap(clierr.CodeSubmission, "custody rejected transaction request", err)
		}
		return "", err
	}
	if strings.TrimSpace(resp.RequestID) == "" {
		return "", clierr.New(clierr.CodeUnavailable, "custody returned empty request id")
	}
	return resp.RequestID, nil
}

func validateSubmitRequest(req SubmitRequest) error {
	if strings.TrimSpace(req.SourceWallet) == "" {
		return clierr.New(clierr.CodeSubmission, "submit request missing source wallet")
	}
	if strings.TrimSpace(req.ChainID) == "" {
		return clierr.New(clierr.CodeSubmission, "submit request missing chain id")
	}
	if _, err := id.ParseBaseUnits(req.AmountBaseUnits); err != nil {
		return clierr.Wrap(clierr.CodeSubmission, "submit request has invalid amount", err)
	}
	if strings.TrimSpace(req.Asset) == "" {
		return clierr.New(clierr.CodeSubmission, "submit request missing asset")
	}
	switch req.Kind {
	case model.StepKindTransfer:
		if _, err := id.ValidateAddress(req.Recipient); err != nil {
			return clierr.Wrap(clierr.CodeSubmission, "transfer request has invalid recipient", err)
		}
	case model.StepKindSwap:
		if strings.TrimSpace(req.PoolRef) == "" {
			return clierr.New(clierr.CodeSubmission, "swap request missing pool ref")
		}
		if _, err := id.ParseBaseUnits(req.MaxInputBaseUnits); err != nil {
			return clierr.Wrap(clierr.CodeSubmission, "swap request has invalid max input", err)
		}
	case model.StepKindBridge:
		if strings.TrimSpace(req.RouteRef) == "" {
			return clierr.New(clierr.CodeSubmission, "bridge request missing route ref")
		}
		if strings.TrimSpace(req.DestChainID) == "" {
			return clierr.New(clierr.CodeSubmission, "bridge request missing destination chain")
		}
	default:
		return clierr.New(clierr.CodeSubmission, fmt.Sprintf("unknown step kind %q", req.Kind))
	}
	return nil
}

func (c *Client) headers() map[string]string {
	if c.apiKey == "" {
		return nil
	}
	return map[string]string{"x-api-key": c.apiKey}
}
