// Package planner decides how to fund a recipient payment when the required
// funds are split across the settlement and liquidity chains. Building a plan
// reads balances and quotes but never mutates external state.
package planner

import (
	"context"
	"fmt"
	"math/big"
	"time"

	clierr "github.com/ssandoval/treasury-cli/internal/errors"
	"github.com/ssandoval/treasury-cli/internal/id"
	"github.com/ssandoval/treasury-cli/internal/model"
	"github.com/ssandoval/treasury-cli/internal/registry"
)

type BalanceReader interface {
	Balances(ctx context.Context, walletRef string) ([]model.WalletBalance, error)
}

type Quoter interface {
	Quote(ctx context.Context, poolRef string, outputBaseUnits *big.Int) (model.Quote, error)
}

type Deps struct {
	Balances BalanceReader
	Quoter   Quoter

	SettlementWallet string
	LiquidityWallet  string

	// OperatingBufferDecimal is reserved on top of the invoice amount for the
	// settlement wallet's own network fees, denominated in the invoice
	// currency.
	OperatingBufferDecimal string

	now func() time.Time
}

// Build runs the deterministic single-pass funding algorithm. Planning
// failures (unsupported currency, no viable funding path) are expressed as
// CanExecute=false with a reason, never as errors; errors are reserved for
// invalid input and upstream unavailability.
func Build(ctx context.Context, deps Deps, invoice model.Invoice) (model.Plan, error) {
	now := deps.now
	if now == nil {
		now = time.Now
	}
	plan := model.Plan{
		PlanID:    id.NewPlanID(),
		Invoice:   invoice,
		Steps:     []model.Step{},
		CreatedAt: now().UTC().Format(time.RFC3339),
	}

	currency, supported := registry.LookupCurrency(invoice.Currency)
	if !supported {
		plan.Reason = fmt.Sprintf("unsupported currency %q", invoice.Currency)
		return plan, nil
	}

	recipient, err := id.ValidateAddress(invoice.RecipientAddress)
	if err != nil {
		return model.Plan{}, err
	}
	amount, err := id.DecimalToBaseUnits(invoice.AmountDecimal, currency.Decimals)
	if err != nil {
		return model.Plan{}, err
	}
	if amount.Sign() <= 0 {
		return model.Plan{}, clierr.New(clierr.CodeUsage, "invoice amount must be positive")
	}
	buffer, err := id.DecimalToBaseUnits(deps.OperatingBufferDecimal, currency.Decimals)
	if err != nil {
		return model.Plan{}, clierr.Wrap(clierr.CodeInternal, "parse operating buffer", err)
	}

	settlementBalances, err := deps.Balances.Balances(ctx, deps.SettlementWallet)
	if err != nil {
		return model.Plan{}, err
	}
	settlementBal, settlementSnap := findBalance(settlementBalances, registry.Settlement.CAIP2, currency.Symbol, currency.Decimals)
	plan.SettlementBalance = settlementSnap

	required := new(big.Int).Add(amount, buffer)

	transferStep := model.Step{
		ID:              id.NewStepID(),
		Kind:            model.StepKindTransfer,
		Status:          model.StepStatusPending,
		Description:     fmt.Sprintf("Transfer %s %s to %s on %s", invoice.AmountDecimal, currency.Symbol, recipient, registry.Settlement.Name),
		ChainID:         registry.Settlement.CAIP2,
		SourceWallet:    deps.SettlementWallet,
		Asset:           currency.Symbol,
		AmountBaseUnits: amount.String(),
		AmountDecimal:   id.FormatBaseUnits(amount, currency.Decimals),
		Recipient:       recipient,
	}

	if settlementBal.Cmp(required) >= 0 {
		plan.DeficitBaseUnits = "0"
		plan.DeficitDecimal = "0"
		plan.Steps = []model.Step{transferStep}
		plan.CanExecute = true
		return plan, nil
	}

	deficit := new(big.Int).Sub(required, settlementBal)
	plan.DeficitBaseUnits = deficit.String()
	plan.DeficitDecimal = id.FormatBaseUnits(deficit, currency.Decimals)

	if !currency.Bridgeable {
		plan.Reason = fmt.Sprintf(
			"settlement balance %s %s is short %s %s and %s has no swap or bridge route",
			settlementSnap.AmountDecimal, currency.Symbol, plan.DeficitDecimal, currency.Symbol, currency.Symbol,
		)
		return plan, nil
	}

	liquidityBalances, err := deps.Balances.Balances(ctx, deps.LiquidityWallet)
	if err != nil {
		return model.Plan{}, err
	}
	plan.LiquidityBalances = liquidityBalances
	stableBal, _ := findBalance(liquidityBalances, registry.Liquidity.CAIP2, currency.Symbol, currency.Decimals)
	volatileBal, volatileSnap := findBalance(liquidityBalances, registry.Liquidity.CAIP2, currency.VolatileSymbol, currency.VolatileDecimals)

	swapNeeded := new(big.Int).Sub(deficit, stableBal)
	if swapNeeded.Sign() < 0 {
		swapNeeded.SetInt64(0)
	}

	steps := make([]model.Step, 0, 3)
	if swapNeeded.Sign() > 0 {
		quote, err := deps.Quoter.Quote(ctx, currency.PoolRef, swapNeeded)
		if err != nil {
			return model.Plan{}, err
		}
		maxInput, err := id.ParseBaseUnits(quote.MaxInputBaseUnits)
		if err != nil {
			return model.Plan{}, clierr.Wrap(clierr.CodeInternal, "parse quoted max input", err)
		}
		if maxInput.Cmp(volatileBal) > 0 {
			shortfall := new(big.Int).Sub(maxInput, volatileBal)
			plan.Reason = fmt.Sprintf(
				"swap requires up to %s %s but the liquidity wallet holds %s %s (short %s %s)",
				id.FormatBaseUnits(maxInput, currency.VolatileDecimals), currency.VolatileSymbol,
				volatileSnap.AmountDecimal, currency.VolatileSymbol,
				id.FormatBaseUnits(shortfall, currency.VolatileDecimals), currency.VolatileSymbol,
			)
			return plan, nil
		}
		plan.PlanningQuote = &quote
		steps = append(steps, model.Step{
			ID:     id.NewStepID(),
			Kind:   model.StepKindSwap,
			Status: model.StepStatusPending,
			Description: fmt.Sprintf("Swap %s for exactly %s %s on %s",
				currency.VolatileSymbol, id.FormatBaseUnits(swapNeeded, currency.Decimals), currency.Symbol, registry.Liquidity.Name),
			ChainID:         registry.Liquidity.CAIP2,
			SourceWallet:    deps.LiquidityWallet,
			Asset:           currency.Symbol,
			AmountBaseUnits: swapNeeded.String(),
			AmountDecimal:   id.FormatBaseUnits(swapNeeded, currency.Decimals),
			PoolRef:         currency.PoolRef,
		})
	}

	steps = append(steps, model.Step{
		ID:     id.NewStepID(),
		Kind:   model.StepKindBridge,
		Status: model.StepStatusPending,
		Description: fmt.Sprintf("Bridge %s %s from %s to %s",
			plan.DeficitDecimal, currency.Symbol, registry.Liquidity.Name, registry.Settlement.Name),
		ChainID:         registry.Liquidity.CAIP2,
		SourceWallet:    deps.LiquidityWallet,
		Asset:           currency.Symbol,
		AmountBaseUnits: deficit.String(),
		AmountDecimal:   plan.DeficitDecimal,
		RouteRef:        currency.RouteRef,
		DestChainID:     registry.Settlement.CAIP2,
	})
	steps = append(steps, transferStep)

	plan.Steps = steps
	plan.CanExecute = true
	return plan, nil
}

func findBalance(balances []model.WalletBalance, chainID, asset string, decimals int) (*big.Int, model.WalletBalance) {
	for _, b := range balances {
		if b.ChainID == chainID && b.Asset == asset {
			amount, err := id.ParseBaseUnits(b.AmountBaseUnits)
			if err == nil {
				return amount, b
			}
		}
	}
	zero := big.NewInt(0)
	return zero, model.WalletBalance{
		ChainID:         chainID,
		Asset:           asset,
		AmountBaseUnits: "0",
		AmountDecimal:   "0",
		Decimals:        decimals,
	}
}
