package planner

import (
	"context"
	"math/big"
	"strings"
	"testing"

	clierr "github.com/ssandoval/treasury-cli/internal/errors"
	"github.com/ssandoval/treasury-cli/internal/model"
	"github.com/ssandoval/treasury-cli/internal/registry"
)

const recipient = "0x00000000000000000000000000000000000000aa"

type fakeBalances struct {
	byWallet map[string][]model.WalletBalance
	err      error
}

func (f *fakeBalances) Balances(_ context.Context, walletRef string) ([]model.WalletBalance, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byWallet[walletRef], nil
}

type fakeQuoter struct {
	maxInput   string
	err        error
	lastOutput *big.Int
}

func (f *fakeQuoter) Quote(_ context.Context, poolRef string, outputBaseUnits *big.Int) (model.Quote, error) {
	f.lastOutput = new(big.Int).Set(outputBaseUnits)
	if f.err != nil {
		return model.Quote{}, f.err
	}
	return model.Quote{
		PoolRef:                poolRef,
		DesiredOutputBaseUnits: outputBaseUnits.String(),
		RequiredInputBaseUnits: f.maxInput,
		MaxInputBaseUnits:      f.maxInput,
		SlippageBps:            500,
	}, nil
}

func usdc(amount string) model.WalletBalance {
	return model.WalletBalance{ChainID: registry.Liquidity.CAIP2, Asset: "USDC", AmountBaseUnits: amount, Decimals: 6}
}

func weth(amount string) model.WalletBalance {
	return model.WalletBalance{ChainID: registry.Liquidity.CAIP2, Asset: "WETH", AmountBaseUnits: amount, Decimals: 18}
}

func deps(balances *fakeBalances, quoter *fakeQuoter, buffer string) Deps {
	return Deps{
		Balances:               balances,
		Quoter:                 quoter,
		SettlementWallet:       "treasury-settlement",
		LiquidityWallet:        "treasury-liquidity",
		OperatingBufferDecimal: buffer,
	}
}

func kinds(plan model.Plan) []model.StepKind {
	out := make([]model.StepKind, 0, len(plan.Steps))
	for _, s := range plan.Steps {
		out = append(out, s.Kind)
	}
	return out
}

func TestSufficientSettlementBalanceYieldsSingleTransfer(t *testing.T) {
	balances := &fakeBalances{byWallet: map[string][]model.WalletBalance{
		"treasury-settlement": {{ChainID: registry.Settlement.CAIP2, Asset: "USDC", AmountBaseUnits: "100000000", Decimals: 6}},
	}}
	quoter := &fakeQuoter{}

	plan, err := Build(context.Background(), deps(balances, quoter, "1"),
		model.Invoice{AmountDecimal: "50", Currency: "USDC", RecipientAddress: recipient})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !plan.CanExecute {
		t.Fatalf("expected executable plan, reason: %s", plan.Reason)
	}
	if got := kinds(plan); len(got) != 1 || got[0] != model.StepKindTransfer {
		t.Fatalf("expected single transfer, got %v", got)
	}
	if plan.DeficitBaseUnits != "0" {
		t.Fatalf("expected zero deficit, got %s", plan.DeficitBaseUnits)
	}
	step := plan.Steps[0]
	if step.AmountBaseUnits != "50000000" || step.ChainID != registry.Settlement.CAIP2 {
		t.Fatalf("unexpected transfer step: %+v", step)
	}
	if step.Status != model.StepStatusPending {
		t.Fatalf("new steps must start pending, got %s", step.Status)
	}
	if quoter.lastOutput != nil {
		t.Fatal("no quote should be requested when settlement balance suffices")
	}
}

func TestShortfallBuildsSwapBridgeTransfer(t *testing.T) {
	balances := &fakeBalances{byWallet: map[string][]model.WalletBalance{
		"treasury-settlement": {{ChainID: registry.Settlement.CAIP2, Asset: "USDC", AmountBaseUnits: "10000000", Decimals: 6}},
		"treasury-liquidity":  {usdc("20000000"), weth("1000000000000000000")},
	}}
	quoter := &fakeQuoter{maxInput: "7000000000000000"}

	plan, err := Build(context.Background(), deps(balances, quoter, "0"),
		model.Invoice{AmountDecimal: "50", Currency: "USDC", RecipientAddress: recipient})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !plan.CanExecute {
		t.Fatalf("expected executable plan, reason: %s", plan.Reason)
	}
	got := kinds(plan)
	want := []model.StepKind{model.StepKindSwap, model.StepKindBridge, model.StepKindTransfer}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	// deficit 40, of which 20 is already held as stablecoin
	if plan.DeficitBaseUnits != "40000000" {
		t.Fatalf("unexpected deficit: %s", plan.DeficitBaseUnits)
	}
	if quoter.lastOutput.String() != "20000000" {
		t.Fatalf("swap should be quoted for the uncovered portion, got %s", quoter.lastOutput)
	}
	swap, bridge, transfer := plan.Steps[0], plan.Steps[1], plan.Steps[2]
	if swap.AmountBaseUnits != "20000000" || swap.PoolRef == "" {
		t.Fatalf("unexpected swap step: %+v", swap)
	}
	if bridge.AmountBaseUnits != "40000000" || bridge.DestChainID != registry.Settlement.CAIP2 {
		t.Fatalf("unexpected bridge step: %+v", bridge)
	}
	if transfer.AmountBaseUnits != "50000000" || transfer.Recipient == "" {
		t.Fatalf("unexpected transfer step: %+v", transfer)
	}
	if plan.PlanningQuote == nil {
		t.Fatal("expected planning quote to be recorded")
	}
}

func TestAmpleStablecoinSkipsSwap(t *testing.T) {
	balances := &fakeBalances{byWallet: map[string][]model.WalletBalance{
		"treasury-settlement": {{ChainID: registry.Settlement.CAIP2, Asset: "USDC", AmountBaseUnits: "10000000", Decimals: 6}},
		"treasury-liquidity":  {usdc("90000000")},
	}}
	quoter := &fakeQuoter{}

	plan, err := Build(context.Background(), deps(balances, quoter, "0"),
		model.Invoice{AmountDecimal: "50", Currency: "USDC", RecipientAddress: recipient})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	got := kinds(plan)
	if len(got) != 2 || got[0] != model.StepKindBridge || got[1] != model.StepKindTransfer {
		t.Fatalf("expected bridge+transfer, got %v", got)
	}
	if quoter.lastOutput != nil {
		t.Fatal("no quote should be requested when stablecoin covers the deficit")
	}
}

func TestInsufficientVolatileBalanceIsNotExecutable(t *testing.T) {
	balances := &fakeBalances{byWallet: map[string][]model.WalletBalance{
		"treasury-settlement": {{ChainID: registry.Settlement.CAIP2, Asset: "USDC", AmountBaseUnits: "10000000", Decimals: 6}},
		"treasury-liquidity":  {usdc("0"), weth("1000000000000000")},
	}}
	quoter := &fakeQuoter{maxInput: "7000000000000000"}

	plan, err := Build(context.Background(), deps(balances, quoter, "0"),
		model.Invoice{AmountDecimal: "50", Currency: "USDC", RecipientAddress: recipient})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if plan.CanExecute {
		t.Fatal("expected plan to be rejected")
	}
	if !strings.Contains(plan.Reason, "short") {
		t.Fatalf("reason should name the shortfall, got %q", plan.Reason)
	}
	if len(plan.Steps) != 0 {
		t.Fatalf("rejected plan must carry no steps, got %d", len(plan.Steps))
	}
}

func TestUnsupportedCurrencyIsAPlanningOutcome(t *testing.T) {
	plan, err := Build(context.Background(), deps(&fakeBalances{}, &fakeQuoter{}, "1"),
		model.Invoice{AmountDecimal: "50", Currency: "DOGE", RecipientAddress: recipient})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if plan.CanExecute || !strings.Contains(plan.Reason, "DOGE") {
		t.Fatalf("expected unsupported-currency reason, got %+v", plan)
	}
	if len(plan.Steps) != 0 {
		t.Fatalf("unsupported currency must yield no steps, got %d", len(plan.Steps))
	}
}

func TestNonBridgeableCurrencyShortfall(t *testing.T) {
	balances := &fakeBalances{byWallet: map[string][]model.WalletBalance{
		"treasury-settlement": {{ChainID: registry.Settlement.CAIP2, Asset: "EURC", AmountBaseUnits: "10000000", Decimals: 6}},
	}}
	plan, err := Build(context.Background(), deps(balances, &fakeQuoter{}, "0"),
		model.Invoice{AmountDecimal: "50", Currency: "EURC", RecipientAddress: recipient})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if plan.CanExecute {
		t.Fatal("expected plan to be rejected for a currency without a route")
	}
	if !strings.Contains(plan.Reason, "no swap or bridge route") {
		t.Fatalf("unexpected reason: %q", plan.Reason)
	}
}

func TestInvalidRecipientIsAnError(t *testing.T) {
	_, err := Build(context.Background(), deps(&fakeBalances{}, &fakeQuoter{}, "1"),
		model.Invoice{AmountDecimal: "50", Currency: "USDC", RecipientAddress: "not-an-address"})
	if !clierr.HasCode(err, clierr.CodeUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestNonPositiveAmountIsAnError(t *testing.T) {
	_, err := Build(context.Background(), deps(&fakeBalances{}, &fakeQuoter{}, "1"),
		model.Invoice{AmountDecimal: "0", Currency: "USDC", RecipientAddress: recipient})
	if !clierr.HasCode(err, clierr.CodeUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestBalanceFailureBubblesUp(t *testing.T) {
	balances := &fakeBalances{err: clierr.New(clierr.CodeBalanceUnavailable, "custody down")}
	_, err := Build(context.Background(), deps(balances, &fakeQuoter{}, "1"),
		model.Invoice{AmountDecimal: "50", Currency: "USDC", RecipientAddress: recipient})
	if !clierr.HasCode(err, clierr.CodeBalanceUnavailable) {
		t.Fatalf("expected balance-unavailable error, got %v", err)
	}
}

func TestPlanningIsReadOnlyAndRepeatable(t *testing.T) {
	balances := &fakeBalances{byWallet: map[string][]model.WalletBalance{
		"treasury-settlement": {{ChainID: registry.Settlement.CAIP2, Asset: "USDC", AmountBaseUnits: "10000000", Decimals: 6}},
		"treasury-liquidity":  {usdc("20000000"), weth("1000000000000000000")},
	}}
	invoice := model.Invoice{AmountDecimal: "50", Currency: "USDC", RecipientAddress: recipient}

	first, err := Build(context.Background(), deps(balances, &fakeQuoter{maxInput: "7000000000000000"}, "0"), invoice)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	second, err := Build(context.Background(), deps(balances, &fakeQuoter{maxInput: "7000000000000000"}, "0"), invoice)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if first.PlanID == second.PlanID {
		t.Fatal("plans must get distinct ids")
	}
	firstKinds, secondKinds := kinds(first), kinds(second)
	if len(firstKinds) != len(secondKinds) {
		t.Fatalf("same inputs must produce the same step shape: %v vs %v", firstKinds, secondKinds)
	}
	for i := range firstKinds {
		if firstKinds[i] != secondKinds[i] {
			t.Fatalf("same inputs must produce the same step shape: %v vs %v", firstKinds, secondKinds)
		}
	}
}
