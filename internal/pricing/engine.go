package pricing

import (
	"context"
	"math/big"
	"time"

	"github.com/ssandoval/treasury-cli/internal/id"
	"github.com/ssandoval/treasury-cli/internal/model"
)

// QuoteSource is the raw exact-output price lookup. *Client implements it.
type QuoteSource interface {
	QuoteExactOutput(ctx context.Context, poolRef string, outputBaseUnits *big.Int) (*big.Int, error)
}

// Engine wraps a quote source with the slippage policy. The wide default
// (500 bps) tolerates thin liquidity between quoting and execution.
type Engine struct {
	source      QuoteSource
	slippageBps int64
	now         func() time.Time
}

func NewEngine(source QuoteSource, slippageBps int64) *Engine {
	if slippageBps <= 0 {
		slippageBps = 500
	}
	return &Engine{source: source, slippageBps: slippageBps, now: time.Now}
}

// Quote derives a fresh exact-output quote with its slippage-widened input
// bound. Quotes are ephemeral: callers submitting a swap must call Quote again
// immediately before submission rather than reuse an earlier result.
func (e *Engine) Quote(ctx context.Context, poolRef string, outputBaseUnits *big.Int) (model.Quote, error) {
	required, err := e.source.QuoteExactOutput(ctx, poolRef, outputBaseUnits)
	if err != nil {
		return model.Quote{}, err
	}
	maxInput := id.ApplySlippage(required, e.slippageBps)
	return model.Quote{
		PoolRef:                poolRef,
		DesiredOutputBaseUnits: outputBaseUnits.String(),
		RequiredInputBaseUnits: required.String(),
		MaxInputBaseUnits:      maxInput.String(),
		SlippageBps:            e.slippageBps,
		FetchedAt:              e.now().UTC().Format(time.RFC3339),
	}, nil
}
