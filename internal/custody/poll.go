package custody

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	clierr "github.com/ssandoval/treasury-cli/internal/errors"
	"github.com/ssandoval/treasury-cli/internal/httpx"
	"github.com/ssandoval/treasury-cli/internal/id"
)

type PollState string

const (
	StateConfirmed PollState = "confirmed"
	StateFailed    PollState = "failed"
	StateCancelled PollState = "cancelled"
	// StateTimeout means no terminal state was observed before the deadline.
	// The underlying transaction may still land later; an operator must verify
	// on-chain state before any retry.
	StateTimeout PollState = "timeout"
)

type PollResult struct {
	State       PollState
	TxHash      string
	ErrorReason string
}

type statusResponse struct {
	State       string `json:"state"`
	TxHash      string `json:"tx_hash"`
	ErrorReason string `json:"error_reason"`
}

// Poll watches a submitted handle until the custody service reports a
// terminal state or the timeout elapses. Transient read failures are
// tolerated until the deadline; the wait is always bounded.
func (c *Client) Poll(ctx context.Context, handle string, interval, timeout time.Duration) (PollResult, error) {
	if strings.TrimSpace(handle) == "" {
		return PollResult{}, clierr.New(clierr.CodeUsage, "poll requires a transaction handle")
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	endpoint := fmt.Sprintf("%s/v1/transactions/%s", c.baseURL, url.PathEscape(handle))
	for {
		var resp statusResponse
		_, err := httpx.DoBodyJSON(waitCtx, c.http, http.MethodGet, endpoint, nil, c.headers(), &resp)
		if err == nil {
			switch strings.ToLower(strings.TrimSpace(resp.State)) {
			case "confirmed":
				hash := resp.TxHash
				if normalized, ok := id.NormalizeTxHash(hash); ok {
					hash = normalized
				}
				return PollResult{State: StateConfirmed, TxHash: hash}, nil
			case "failed":
				return PollResult{State: StateFailed, ErrorReason: reasonOrDefault(resp.ErrorReason, "custody reported failure")}, nil
			case "cancelled":
				return PollResult{State: StateCancelled, ErrorReason: reasonOrDefault(resp.ErrorReason, "custody cancelled request")}, nil
			case "pending", "submitted", "broadcasting":
				// keep waiting
			default:
				return PollResult{}, clierr.New(clierr.CodeUnavailable, fmt.Sprintf("custody returned unknown state %q", resp.State))
			}
		}
		// Transient polling failures are ignored until timeout.

		select {
		case <-waitCtx.Done():
			// Caller cancellation is not a timeout; only an elapsed deadline
			// yields the timeout outcome.
			if err := ctx.Err(); err != nil {
				return PollResult{}, clierr.Wrap(clierr.CodeUnavailable, "polling cancelled", err)
			}
			return PollResult{State: StateTimeout}, nil
		case <-ticker.C:
		}
	}
}

func reasonOrDefault(reason, fallback string) string {
	if strings.TrimSpace(reason) == "" {
		return fallback
	}
	return reason
}

func marshalJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}
