// Package pricing quotes exact-output swaps against the external price source
// and applies the configured slippage policy.
package pricing

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"

	clierr "github.com/ssandoval/treasury-cli/internal/errors"
	"github.com/ssandoval/treasury-cli/internal/httpx"
	"github.com/ssandoval/treasury-cli/internal/id"
)

type Client struct {
	http    *httpx.Client
	baseURL string
}

func NewClient(httpClient *httpx.Client, baseURL string) *Client {
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

type quoteResponse struct {
	RequiredInput string `json:"required_input"`
}

// QuoteExactOutput asks the price source how much of the pool's input asset is
// currently required to receive exactly outputBaseUnits of its output asset.
func (c *Client) QuoteExactOutput(ctx context.Context, poolRef string, outputBaseUnits *big.Int) (*big.Int, error) {
	if strings.TrimSpace(poolRef) == "" {
		return nil, clierr.New(clierr.CodeUsage, "pool ref is required")
	}
	if outputBaseUnits == nil || outputBaseUnits.Sign() <= 0 {
		return nil, clierr.New(clierr.CodeUsage, "exact output amount must be positive")
	}

	endpoint := fmt.Sprintf("%s/v1/pools/%s/quote?exact_out=%s", c.baseURL, url.PathEscape(poolRef), outputBaseUnits.String())
	var resp quoteResponse
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodGet, endpoint, nil, nil, &resp); err != nil {
		return nil, err
	}
	required, err := id.ParseBaseUnits(resp.RequiredInput)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "price source returned malformed required input", err)
	}
	if required.Sign() <= 0 {
		return nil, clierr.New(clierr.CodeUnavailable, "price source returned zero required input")
	}
	return required, nil
}
